// Command trapcover reports how much of each sticky trap photo is covered by
// non-yellow material.
//
//	trapcover [-references DIR | -hue-min H -hue-max H] [-overlay-dir DIR] [-workers N] image-or-dir...
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go-trap-coverage/internal/config"
	"go-trap-coverage/internal/container"
	apperrors "go-trap-coverage/internal/errors"
	"go-trap-coverage/internal/logger"
	"go-trap-coverage/internal/service"
	"go-trap-coverage/internal/storage"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("trapcover", flag.ContinueOnError)
	fs.SetOutput(stderr)
	references := fs.String("references", "", "folder of clean reference photos (default $REFERENCE_DIR)")
	hueMin := fs.Int("hue-min", -1, "fixed hue lower bound 0-179, skips calibration")
	hueMax := fs.Int("hue-max", -1, "fixed hue upper bound 0-179, skips calibration")
	overlayDir := fs.String("overlay-dir", "", "write a highlighted crop per image into this folder")
	workers := fs.Int("workers", -1, "parallel images (default $WORKERS, 0 = one per CPU)")
	verbose := fs.Bool("v", false, "log pipeline events to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// Failures are already reported per image; logs are opt-in
	if *verbose {
		logger.UseTextFormat(stderr)
		logger.SetLevel("debug")
	} else {
		logger.UseTextFormat(io.Discard)
		logger.SetLevel("error")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return 2
	}
	if err := applyFlags(cfg, *references, *hueMin, *hueMax, *workers); err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	local := storage.NewLocalStorage("")
	targets, err := expandTargets(ctx, local, fs.Args())
	if err != nil {
		fmt.Fprintf(stderr, "%s\n", describe(err))
		return 2
	}
	if len(targets) == 0 {
		fmt.Fprintln(stderr, "usage: trapcover [flags] image-or-dir...")
		fs.PrintDefaults()
		return 2
	}

	c, err := container.NewContainer(cfg, local)
	if err != nil {
		fmt.Fprintf(stderr, "%v\n", err)
		return 2
	}

	results, err := c.CoverageService().ScoreBatch(ctx, targets, *overlayDir != "")
	if err != nil {
		fmt.Fprintf(stderr, "calibration: %s\n", describe(err))
		return 1
	}

	return report(results, local, *overlayDir, stdout, stderr)
}

// applyFlags layers command line settings over the environment
func applyFlags(cfg *config.Config, references string, hueMin, hueMax, workers int) error {
	if workers >= 0 {
		cfg.Workers = workers
	}

	fixed := hueMin >= 0 || hueMax >= 0
	if fixed && references != "" {
		return fmt.Errorf("-references and -hue-min/-hue-max are mutually exclusive")
	}
	if fixed {
		if hueMin < 0 || hueMax < 0 {
			return fmt.Errorf("-hue-min and -hue-max must be given together")
		}
		cfg.HueMode = config.HueModeFixed
		cfg.Pipeline.SeedHueMin = hueMin
		cfg.Pipeline.SeedHueMax = hueMax
		return cfg.Pipeline.Validate()
	}

	cfg.HueMode = config.HueModeCalibrated
	if references != "" {
		cfg.ReferenceSource = config.SourceLocal
		cfg.ReferenceDir = references
		cfg.ReferencePrefix = ""
	}
	return nil
}

// expandTargets replaces directory arguments by the images they contain
func expandTargets(ctx context.Context, local *storage.LocalStorage, args []string) ([]string, error) {
	var targets []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			refs, err := local.ListImages(ctx, arg)
			if err != nil {
				return nil, err
			}
			targets = append(targets, refs...)
			continue
		}
		// Missing files are reported per image by the batch
		targets = append(targets, arg)
	}
	return targets, nil
}

func report(results []service.BatchResult, local *storage.LocalStorage, overlayDir string, stdout, stderr io.Writer) int {
	exit := 0
	for _, r := range results {
		if r.Err != nil {
			fmt.Fprintf(stderr, "%s: %s\n", r.Ref, describe(r.Err))
			exit = 1
			continue
		}
		fmt.Fprintf(stdout, "%s: %s\n", r.Ref, r.Report.Percent)

		if overlayDir != "" && r.Report.Overlay != nil {
			out := filepath.Join(overlayDir, overlayName(r.Ref))
			if err := local.SaveImage(out, r.Report.Overlay); err != nil {
				fmt.Fprintf(stderr, "%s: %s\n", r.Ref, describe(err))
				exit = 1
			}
		}
	}
	return exit
}

func overlayName(ref string) string {
	base := filepath.Base(ref)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "-overlay.png"
}

// describe renders an error as "kind: message"
func describe(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return fmt.Sprintf("%s: %s", appErr.Type, appErr.Message)
	}
	return fmt.Sprintf("%s: %v", apperrors.ErrorTypeInternal, err)
}

package storage

import (
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"

	apperrors "go-trap-coverage/internal/errors"

	"github.com/disintegration/imaging"
)

// LocalStorage reads images from the filesystem
type LocalStorage struct {
	root string
}

// NewLocalStorage creates a source rooted at root. Relative references
// resolve against it; an empty root means the working directory.
func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{root: root}
}

func (s *LocalStorage) resolve(ref string) string {
	if filepath.IsAbs(ref) || s.root == "" {
		return ref
	}
	return filepath.Join(s.root, ref)
}

// LoadImage decodes the file at ref, applying its EXIF orientation
func (s *LocalStorage) LoadImage(ctx context.Context, ref string) (image.Image, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.NewTimeoutError("image load cancelled", err)
	}

	p := s.resolve(ref)
	img, err := imaging.Open(p, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.NewImageLoadError(fmt.Sprintf("cannot read image %s", p), err)
	}
	return img, nil
}

// ListImages returns the image files directly inside the prefix directory,
// sorted by name. Subdirectories are not descended. References are joined
// onto prefix, so they resolve against the root exactly as prefix did.
func (s *LocalStorage) ListImages(ctx context.Context, prefix string) ([]string, error) {
	dir := s.resolve(prefix)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, apperrors.NewImageLoadError(fmt.Sprintf("cannot list directory %s", dir), err)
	}

	var refs []string
	for _, entry := range entries {
		if entry.IsDir() || !IsImageFile(entry.Name()) {
			continue
		}
		refs = append(refs, filepath.Join(prefix, entry.Name()))
	}
	sort.Strings(refs)
	return refs, nil
}

// SaveImage encodes img to path, choosing the format from its extension
func (s *LocalStorage) SaveImage(path string, img image.Image) error {
	p := s.resolve(path)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("cannot create directory for %s", p), err)
	}
	if err := imaging.Save(img, p); err != nil {
		return apperrors.NewInternalError(fmt.Sprintf("cannot write image %s", p), err)
	}
	return nil
}

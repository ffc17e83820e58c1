package storage

import (
	"context"
	"image"
	"path"
	"strings"

	// Decoders beyond what imaging registers
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ImageSource resolves image references to decoded images. A reference is
// a file path, URL or blob name depending on the implementation.
type ImageSource interface {
	LoadImage(ctx context.Context, ref string) (image.Image, error)
	// ListImages returns the references of every raster image under prefix
	ListImages(ctx context.Context, prefix string) ([]string, error)
}

var rasterExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
	".webp": true,
}

// IsImageFile reports whether name carries a supported raster extension
func IsImageFile(name string) bool {
	return rasterExtensions[strings.ToLower(path.Ext(name))]
}

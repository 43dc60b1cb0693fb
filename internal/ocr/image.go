package ocr

import (
	"bytes"
	"fmt"
	"image"

	// Registered decoders define the accepted formats.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// MaxImageSizeBytes is the maximum image size accepted for inline processing (20MB).
const MaxImageSizeBytes = 20 * 1024 * 1024

// ImageInfo describes a decoded image header.
type ImageInfo struct {
	Format string
	Width  int
	Height int
	Size   int
}

// MimeType returns the media type of the image format.
func (i ImageInfo) MimeType() string {
	return "image/" + i.Format
}

// DetectImage checks the size limit and decodes the image header.
func DetectImage(data []byte) (ImageInfo, error) {
	if len(data) == 0 {
		return ImageInfo{}, ErrEmptyImage
	}
	if len(data) > MaxImageSizeBytes {
		return ImageInfo{}, fmt.Errorf("%w: %d bytes", ErrImageTooLarge, len(data))
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}

	return ImageInfo{
		Format: format,
		Width:  cfg.Width,
		Height: cfg.Height,
		Size:   len(data),
	}, nil
}

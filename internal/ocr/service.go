// Package ocr extracts text from scanned report images.
//
// Two backends implement OCRService:
//   - Google Cloud Vision (DOCUMENT_TEXT_DETECTION), the default
//   - Google Document AI (an OCR processor), selected with OCR_PROVIDER=documentai
//
// Required Environment Variables:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//   - GOOGLE_CLOUD_PROJECT, GOOGLE_CLOUD_LOCATION, DOCUMENT_AI_PROCESSOR_ID
//     (Document AI only)
//
// Input Limitations:
//   - Maximum image size: 20MB
//   - Supported formats: PNG, JPEG, GIF (checked locally before any API call)
//
// The extracted text is a best-effort, newline-delimited string. Layout,
// bounding boxes and per-word confidence are not exposed. An image without any
// readable text yields an empty string, not an error.
package ocr

import (
	"context"
	"io"
	"time"
)

// OCRService defines the interface for OCR text extraction services.
type OCRService interface {
	// ExtractText returns the text found in a raster image.
	ExtractText(ctx context.Context, image io.Reader) (string, error)

	// ExtractTextWithMetadata returns the text together with image and processing details.
	ExtractTextWithMetadata(ctx context.Context, image io.Reader) (*OCRResult, error)
}

// OCRResult contains the results of OCR processing with metadata.
type OCRResult struct {
	// Text is the extracted text content, newline-delimited.
	Text string `json:"text"`

	// Format is the decoded image format ("png", "jpeg", "gif").
	Format string `json:"format"`

	Width  int `json:"width"`
	Height int `json:"height"`

	// Confidence is the average page confidence reported by the backend (0.0 to 1.0),
	// or zero when the backend does not report one.
	Confidence float32 `json:"confidence"`

	// LanguageCodes contains the detected languages in the image.
	LanguageCodes []string `json:"language_codes,omitempty"`

	// Provider names the backend that produced the text.
	Provider string `json:"provider"`

	// ProcessedAt is the timestamp when the OCR processing completed.
	ProcessedAt time.Time `json:"processed_at"`

	// ProcessingDuration is how long the OCR processing took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// readImage reads and validates an image before it is sent to a backend.
func readImage(op string, image io.Reader) ([]byte, ImageInfo, error) {
	data, err := io.ReadAll(io.LimitReader(image, MaxImageSizeBytes+1))
	if err != nil {
		return nil, ImageInfo{}, WrapOCRError(op, err, "failed to read image data")
	}

	info, err := DetectImage(data)
	if err != nil {
		return nil, ImageInfo{}, WrapOCRError(op, err, "")
	}
	return data, info, nil
}

package ocr

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Service is an OCRService that owns a backend client.
type Service interface {
	OCRService
	io.Closer
}

// NewService creates the OCR backend named by provider. An empty provider
// selects Cloud Vision.
func NewService(ctx context.Context, provider string, docAI DocumentAIConfig) (Service, error) {
	const op = "NewService"

	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", ProviderVision:
		return NewGoogleVisionOCRService(ctx)
	case ProviderDocumentAI:
		return NewDocumentAIOCRService(ctx, docAI)
	default:
		return nil, NewOCRError(op, ErrInvalidConfiguration, fmt.Sprintf("unknown provider %q", provider))
	}
}

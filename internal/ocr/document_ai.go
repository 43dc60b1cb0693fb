package ocr

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

// ProviderDocumentAI identifies the Document AI backend.
const ProviderDocumentAI = "documentai"

// documentProcessor is the part of the Document AI client used here.
type documentProcessor interface {
	ProcessDocument(ctx context.Context, req *documentaipb.ProcessRequest, opts ...gax.CallOption) (*documentaipb.ProcessResponse, error)
	Close() error
}

// DocumentAIConfig holds the processor coordinates for Document AI.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location (e.g., "us", "eu").
	Location string

	// ProcessorID is the ID of an OCR (Document OCR) processor.
	ProcessorID string
}

// ProcessorName returns the full resource name of the processor.
func (c DocumentAIConfig) ProcessorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

func (c DocumentAIConfig) validate() error {
	var missing []string
	if c.ProjectID == "" {
		missing = append(missing, "GOOGLE_CLOUD_PROJECT")
	}
	if c.ProcessorID == "" {
		missing = append(missing, "DOCUMENT_AI_PROCESSOR_ID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s required for Document AI", ErrInvalidConfiguration, strings.Join(missing, ", "))
	}
	return nil
}

// DocumentAIOCRService implements OCRService using a Document AI OCR processor.
type DocumentAIOCRService struct {
	client documentProcessor
	config DocumentAIConfig
}

// NewDocumentAIOCRService creates the service with credentials from environment.
func NewDocumentAIOCRService(ctx context.Context, config DocumentAIConfig) (*DocumentAIOCRService, error) {
	const op = "NewDocumentAIOCRService"

	if config.Location == "" {
		config.Location = "us"
	}
	if err := config.validate(); err != nil {
		return nil, WrapOCRError(op, err, "")
	}

	opts, source := credentialOptions()
	if config.Location != "us" {
		endpoint := fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		if source == "" {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return &DocumentAIOCRService{client: client, config: config}, nil
}

// ExtractText extracts text from an image.
func (d *DocumentAIOCRService) ExtractText(ctx context.Context, image io.Reader) (string, error) {
	result, err := d.ExtractTextWithMetadata(ctx, image)
	if err != nil {
		return "", err
	}
	return result.Text, nil
}

// ExtractTextWithMetadata extracts text from an image with additional metadata.
func (d *DocumentAIOCRService) ExtractTextWithMetadata(ctx context.Context, image io.Reader) (*OCRResult, error) {
	const op = "ExtractTextWithMetadata"
	startTime := time.Now()

	data, info, err := readImage(op, image)
	if err != nil {
		return nil, err
	}

	req := &documentaipb.ProcessRequest{
		Name: d.config.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  data,
				MimeType: info.MimeType(),
			},
		},
	}

	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, WrapOCRError(op, ctxErr, "Document AI call interrupted")
		}
		return nil, WrapOCRError(op, ErrOCRFailed, fmt.Sprintf("Document AI call failed: %v", err))
	}

	doc := resp.GetDocument()
	if doc == nil {
		return nil, WrapOCRError(op, ErrOCRFailed, "no document in response")
	}

	languageSet := make(map[string]bool)
	var confidenceSum float32
	var confidenceCount int
	for _, page := range doc.GetPages() {
		for _, lang := range page.GetDetectedLanguages() {
			if lang.GetLanguageCode() != "" {
				languageSet[lang.GetLanguageCode()] = true
			}
		}
		if c := page.GetLayout().GetConfidence(); c > 0 {
			confidenceSum += c
			confidenceCount++
		}
	}

	var avgConfidence float32
	if confidenceCount > 0 {
		avgConfidence = confidenceSum / float32(confidenceCount)
	}

	processedAt := time.Now()
	return &OCRResult{
		Text:               doc.GetText(),
		Format:             info.Format,
		Width:              info.Width,
		Height:             info.Height,
		Confidence:         avgConfidence,
		LanguageCodes:      sortedKeys(languageSet),
		Provider:           ProviderDocumentAI,
		ProcessedAt:        processedAt,
		ProcessingDuration: processedAt.Sub(startTime),
	}, nil
}

// Close closes the underlying Document AI client.
func (d *DocumentAIOCRService) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}

package ocr_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"curestat/internal/ocr"
)

// Example demonstrates basic usage of the OCR service.
func Example() {
	// Create context with timeout for OCR processing
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Create service - credentials handled internally from environment
	ocrService, err := ocr.NewGoogleVisionOCRService(ctx)
	if err != nil {
		log.Fatalf("Failed to create OCR service: %v", err)
	}
	defer ocrService.Close()

	scan, err := os.Open("prescription.png")
	if err != nil {
		log.Fatalf("Failed to open image: %v", err)
	}
	defer scan.Close()

	text, err := ocrService.ExtractText(ctx, scan)
	if err != nil {
		log.Fatalf("Failed to extract text: %v", err)
	}

	fmt.Printf("Extracted text (%d characters):\n%s\n", len(text), text)
}

// Example_withMetadata demonstrates OCR processing with detailed metadata.
func Example_withMetadata() {
	ctx := context.Background()

	// OCR_PROVIDER selects the backend; Document AI needs a processor.
	ocrService, err := ocr.NewService(ctx, os.Getenv("OCR_PROVIDER"), ocr.DocumentAIConfig{
		ProjectID:   os.Getenv("GOOGLE_CLOUD_PROJECT"),
		Location:    os.Getenv("GOOGLE_CLOUD_LOCATION"),
		ProcessorID: os.Getenv("DOCUMENT_AI_PROCESSOR_ID"),
	})
	if err != nil {
		log.Fatalf("Failed to create OCR service: %v", err)
	}
	defer ocrService.Close()

	scan, err := os.Open("lab_report.jpg")
	if err != nil {
		log.Fatalf("Failed to open image: %v", err)
	}
	defer scan.Close()

	result, err := ocrService.ExtractTextWithMetadata(ctx, scan)
	if err != nil {
		log.Fatalf("Failed to extract text: %v", err)
	}

	fmt.Printf("OCR Results:\n")
	fmt.Printf("  Provider: %s\n", result.Provider)
	fmt.Printf("  Image: %s %dx%d\n", result.Format, result.Width, result.Height)
	fmt.Printf("  Confidence: %.2f%%\n", result.Confidence*100)
	fmt.Printf("  Languages: %s\n", strings.Join(result.LanguageCodes, ", "))
	fmt.Printf("  Processing time: %v\n", result.ProcessingDuration)
	fmt.Printf("\nExtracted text:\n%s\n", result.Text)
}

// Example_errorHandling demonstrates matching OCR errors.
func Example_errorHandling() {
	ctx := context.Background()

	ocrService, err := ocr.NewGoogleVisionOCRService(ctx)
	if err != nil {
		if errors.Is(err, ocr.ErrMissingCredentials) {
			log.Fatalf("Please set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")
		}
		log.Fatalf("Failed to create OCR service: %v", err)
	}
	defer ocrService.Close()

	scan, err := os.Open("report.pdf")
	if err != nil {
		log.Fatalf("Failed to open file: %v", err)
	}
	defer scan.Close()

	_, err = ocrService.ExtractText(ctx, scan)
	switch {
	case err == nil:
	case errors.Is(err, ocr.ErrUnsupportedImage):
		log.Printf("Only PNG, JPEG and GIF scans are accepted.")
	case errors.Is(err, ocr.ErrImageTooLarge):
		log.Printf("Image is too large. Maximum size is 20MB.")
	case errors.Is(err, ocr.ErrEmptyImage):
		log.Printf("The uploaded file is empty.")
	default:
		log.Fatalf("OCR processing failed: %v", err)
	}
}

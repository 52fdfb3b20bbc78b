// Package ocr extracts text from uploaded medical reports.
//
// Supported inputs are PNG, JPEG, GIF, WebP, BMP and TIFF images and PDF
// documents. Cloud Vision limits synchronous processing to 20MB and, for
// PDFs, 5 pages; larger inputs are rejected rather than truncated.
package ocr

import (
	"context"

	"github.com/gabriel-vasile/mimetype"
)

const (
	// MaxFileSizeBytes is the maximum upload size for synchronous processing.
	MaxFileSizeBytes = 20 * 1024 * 1024

	// MaxPagesSync is the maximum number of PDF pages.
	MaxPagesSync = 5
)

// Result is the text found in one upload.
type Result struct {
	Text     string `json:"text"`
	MimeType string `json:"mimeType"`
	Pages    int    `json:"pages"`
}

type Extractor interface {
	ExtractText(ctx context.Context, data []byte) (*Result, error)
}

var imageTypes = []string{
	"image/png",
	"image/jpeg",
	"image/gif",
	"image/webp",
	"image/bmp",
	"image/tiff",
}

const pdfType = "application/pdf"

// DetectType sniffs data and returns its canonical MIME type, or
// ErrUnsupportedType.
func DetectType(data []byte) (string, error) {
	mt := mimetype.Detect(data)
	if mt.Is(pdfType) {
		return pdfType, nil
	}
	for _, t := range imageTypes {
		if mt.Is(t) {
			return t, nil
		}
	}
	return "", wrap("DetectType", ErrUnsupportedType, mt.String())
}

// Disabled rejects every request.
type Disabled struct{}

func (Disabled) ExtractText(context.Context, []byte) (*Result, error) {
	return nil, wrap("ExtractText", ErrDisabled, "")
}

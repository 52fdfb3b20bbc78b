package ocr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnsupportedType is returned for uploads that are neither a supported
	// image format nor a PDF.
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrTooLarge is returned for uploads over MaxFileSizeBytes.
	ErrTooLarge = errors.New("file size exceeds the maximum limit (20MB)")

	// ErrTooManyPages is returned for PDFs longer than MaxPagesSync.
	ErrTooManyPages = errors.New("PDF has too many pages (maximum 5 pages)")

	// ErrEmptyDocument is returned when no text was detected.
	ErrEmptyDocument = errors.New("document contains no readable text")

	// ErrOCRFailed is returned when the Vision API rejects or fails a request.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrMissingCredentials is returned when the Vision client cannot be
	// created from the configured or default credentials.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials")

	// ErrDisabled is returned by Disabled.
	ErrDisabled = errors.New("OCR is not enabled")
)

// Error wraps an OCR failure with the operation and extra detail.
type Error struct {
	Op      string
	Err     error
	Details string
}

func (e *Error) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func wrap(op string, err error, details string) error {
	return &Error{Op: op, Err: err, Details: details}
}

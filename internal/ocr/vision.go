package ocr

import (
	"context"
	"fmt"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"
)

var (
	newImageAnnotatorClient = func(ctx context.Context, opts ...option.ClientOption) (*vision.ImageAnnotatorClient, error) {
		return vision.NewImageAnnotatorClient(ctx, opts...)
	}
	batchAnnotateImages = func(c *vision.ImageAnnotatorClient, ctx context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return c.BatchAnnotateImages(ctx, req)
	}
	batchAnnotateFiles = func(c *vision.ImageAnnotatorClient, ctx context.Context, req *visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error) {
		return c.BatchAnnotateFiles(ctx, req)
	}
)

// VisionExtractor runs DOCUMENT_TEXT_DETECTION on Google Cloud Vision.
type VisionExtractor struct {
	client *vision.ImageAnnotatorClient
}

// NewVisionExtractor connects with the service account in credentialsFile,
// or with application default credentials when it is empty.
func NewVisionExtractor(ctx context.Context, credentialsFile string) (*VisionExtractor, error) {
	const op = "NewVisionExtractor"

	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := newImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, wrap(op, ErrMissingCredentials, err.Error())
	}
	return &VisionExtractor{client: client}, nil
}

func (v *VisionExtractor) ExtractText(ctx context.Context, data []byte) (*Result, error) {
	const op = "ExtractText"

	if len(data) > MaxFileSizeBytes {
		return nil, wrap(op, ErrTooLarge, fmt.Sprintf("file size: %d bytes", len(data)))
	}
	mime, err := DetectType(data)
	if err != nil {
		return nil, err
	}

	if mime == pdfType {
		return v.pdf(ctx, data)
	}
	return v.image(ctx, data, mime)
}

func (v *VisionExtractor) image(ctx context.Context, data []byte, mime string) (*Result, error) {
	const op = "image"

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: data},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	}
	resp, err := batchAnnotateImages(v.client, ctx, req)
	if err != nil {
		return nil, wrap(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, wrap(op, ErrOCRFailed, "no response from Vision API")
	}

	r := resp.Responses[0]
	if r.Error != nil && r.Error.Message != "" {
		return nil, wrap(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", r.Error.Message))
	}
	if r.FullTextAnnotation == nil || strings.TrimSpace(r.FullTextAnnotation.Text) == "" {
		return nil, wrap(op, ErrEmptyDocument, "")
	}
	return &Result{Text: r.FullTextAnnotation.Text, MimeType: mime, Pages: 1}, nil
}

func (v *VisionExtractor) pdf(ctx context.Context, data []byte) (*Result, error) {
	const op = "pdf"

	pages := make([]int32, MaxPagesSync)
	for i := range pages {
		pages[i] = int32(i + 1)
	}
	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{{
			InputConfig: &visionpb.InputConfig{Content: data, MimeType: pdfType},
			Features:    []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			Pages:       pages,
		}},
	}
	resp, err := batchAnnotateFiles(v.client, ctx, req)
	if err != nil {
		return nil, wrap(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if resp == nil || len(resp.Responses) == 0 || resp.Responses[0] == nil {
		return nil, wrap(op, ErrOCRFailed, "no response from Vision API")
	}

	file := resp.Responses[0]
	if file.Error != nil && file.Error.Message != "" {
		return nil, wrap(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", file.Error.Message))
	}
	if file.TotalPages > MaxPagesSync {
		return nil, wrap(op, ErrTooManyPages, fmt.Sprintf("document has %d pages", file.TotalPages))
	}

	var sb strings.Builder
	for i, page := range file.Responses {
		if page.Error != nil && page.Error.Message != "" {
			return nil, wrap(op, ErrOCRFailed, fmt.Sprintf("page %d: %s", i+1, page.Error.Message))
		}
		if page.FullTextAnnotation == nil {
			continue
		}
		if i > 0 {
			fmt.Fprintf(&sb, "\n\n--- Page %d ---\n\n", i+1)
		}
		sb.WriteString(page.FullTextAnnotation.Text)
	}

	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return nil, wrap(op, ErrEmptyDocument, "")
	}
	return &Result{Text: text, MimeType: pdfType, Pages: len(file.Responses)}, nil
}

// Close closes the underlying Vision client.
func (v *VisionExtractor) Close() error {
	if v.client != nil {
		return v.client.Close()
	}
	return nil
}

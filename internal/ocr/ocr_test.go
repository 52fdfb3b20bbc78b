package ocr

import (
	"context"
	"errors"
	"testing"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	statuspb "google.golang.org/genproto/googleapis/rpc/status"
)

var (
	pngData  = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	jpegData = []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00\x01")
	gifData  = []byte("GIF89a\x01\x00\x01\x00\x00\x00\x00;")
	pdfData  = []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n%%EOF")
)

func TestDetectType(t *testing.T) {
	cases := []struct {
		name string
		data []byte
		want string
	}{
		{"png", pngData, "image/png"},
		{"jpeg", jpegData, "image/jpeg"},
		{"gif", gifData, "image/gif"},
		{"pdf", pdfData, "application/pdf"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := DetectType(tc.data)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := DetectType([]byte("just some text"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
	var oe *Error
	require.True(t, errors.As(err, &oe))
	assert.Equal(t, "DetectType", oe.Op)
}

func TestErrorFormatting(t *testing.T) {
	assert.Equal(t, "ocr: pdf failed: page 2: bad: OCR processing failed",
		(&Error{Op: "pdf", Err: ErrOCRFailed, Details: "page 2: bad"}).Error())
	assert.Equal(t, "ocr: x failed: OCR is not enabled", (&Error{Op: "x", Err: ErrDisabled}).Error())
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.ExtractText(context.Background(), pngData)
	assert.ErrorIs(t, err, ErrDisabled)
}

func stubImages(t *testing.T, fn func(*visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error)) {
	t.Helper()
	orig := batchAnnotateImages
	t.Cleanup(func() { batchAnnotateImages = orig })
	batchAnnotateImages = func(_ *vision.ImageAnnotatorClient, _ context.Context, req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return fn(req)
	}
}

func stubFiles(t *testing.T, fn func(*visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error)) {
	t.Helper()
	orig := batchAnnotateFiles
	t.Cleanup(func() { batchAnnotateFiles = orig })
	batchAnnotateFiles = func(_ *vision.ImageAnnotatorClient, _ context.Context, req *visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error) {
		return fn(req)
	}
}

func TestVision_Image(t *testing.T) {
	stubImages(t, func(req *visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		require.Len(t, req.Requests, 1)
		assert.Equal(t, pngData, req.Requests[0].Image.Content)
		assert.Equal(t, visionpb.Feature_DOCUMENT_TEXT_DETECTION, req.Requests[0].Features[0].Type)
		return &visionpb.BatchAnnotateImagesResponse{Responses: []*visionpb.AnnotateImageResponse{{
			FullTextAnnotation: &visionpb.TextAnnotation{Text: "Hemoglobin: 12.3 g/dL"},
		}}}, nil
	})

	res, err := (&VisionExtractor{}).ExtractText(context.Background(), pngData)
	require.NoError(t, err)
	assert.Equal(t, "Hemoglobin: 12.3 g/dL", res.Text)
	assert.Equal(t, "image/png", res.MimeType)
	assert.Equal(t, 1, res.Pages)
}

func TestVision_ImageErrors(t *testing.T) {
	v := &VisionExtractor{}
	ctx := context.Background()

	stubImages(t, func(*visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return nil, errors.New("unavailable")
	})
	_, err := v.ExtractText(ctx, pngData)
	assert.ErrorIs(t, err, ErrOCRFailed)

	stubImages(t, func(*visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return &visionpb.BatchAnnotateImagesResponse{Responses: []*visionpb.AnnotateImageResponse{{
			Error: &statuspb.Status{Code: 3, Message: "bad image"},
		}}}, nil
	})
	_, err = v.ExtractText(ctx, pngData)
	assert.ErrorIs(t, err, ErrOCRFailed)
	assert.ErrorContains(t, err, "bad image")

	stubImages(t, func(*visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		return &visionpb.BatchAnnotateImagesResponse{Responses: []*visionpb.AnnotateImageResponse{{}}}, nil
	})
	_, err = v.ExtractText(ctx, pngData)
	assert.ErrorIs(t, err, ErrEmptyDocument)
}

func TestVision_RejectsBeforeCallingAPI(t *testing.T) {
	called := false
	stubImages(t, func(*visionpb.BatchAnnotateImagesRequest) (*visionpb.BatchAnnotateImagesResponse, error) {
		called = true
		return nil, nil
	})
	v := &VisionExtractor{}

	_, err := v.ExtractText(context.Background(), []byte("plain text"))
	assert.ErrorIs(t, err, ErrUnsupportedType)

	big := make([]byte, MaxFileSizeBytes+1)
	copy(big, pngData)
	_, err = v.ExtractText(context.Background(), big)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.False(t, called)
}

func TestVision_PDF(t *testing.T) {
	stubFiles(t, func(req *visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error) {
		r := req.Requests[0]
		assert.Equal(t, "application/pdf", r.InputConfig.MimeType)
		assert.Equal(t, []int32{1, 2, 3, 4, 5}, r.Pages)
		return &visionpb.BatchAnnotateFilesResponse{Responses: []*visionpb.AnnotateFileResponse{{
			TotalPages: 2,
			Responses: []*visionpb.AnnotateImageResponse{
				{FullTextAnnotation: &visionpb.TextAnnotation{Text: "page one"}},
				{FullTextAnnotation: &visionpb.TextAnnotation{Text: "page two"}},
			},
		}}}, nil
	})

	res, err := (&VisionExtractor{}).ExtractText(context.Background(), pdfData)
	require.NoError(t, err)
	assert.Equal(t, "page one\n\n--- Page 2 ---\n\npage two", res.Text)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "application/pdf", res.MimeType)
}

func TestVision_PDFTooManyPages(t *testing.T) {
	stubFiles(t, func(*visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error) {
		return &visionpb.BatchAnnotateFilesResponse{Responses: []*visionpb.AnnotateFileResponse{{TotalPages: 9}}}, nil
	})
	_, err := (&VisionExtractor{}).ExtractText(context.Background(), pdfData)
	assert.ErrorIs(t, err, ErrTooManyPages)
}

func TestVision_PDFPageError(t *testing.T) {
	stubFiles(t, func(*visionpb.BatchAnnotateFilesRequest) (*visionpb.BatchAnnotateFilesResponse, error) {
		return &visionpb.BatchAnnotateFilesResponse{Responses: []*visionpb.AnnotateFileResponse{{
			TotalPages: 1,
			Responses: []*visionpb.AnnotateImageResponse{
				{Error: &statuspb.Status{Message: "unreadable"}},
			},
		}}}, nil
	})
	_, err := (&VisionExtractor{}).ExtractText(context.Background(), pdfData)
	assert.ErrorIs(t, err, ErrOCRFailed)
	assert.ErrorContains(t, err, "page 1: unreadable")
}

func TestNewVisionExtractor_ClientError(t *testing.T) {
	orig := newImageAnnotatorClient
	t.Cleanup(func() { newImageAnnotatorClient = orig })

	var gotOpts int
	newImageAnnotatorClient = func(_ context.Context, opts ...option.ClientOption) (*vision.ImageAnnotatorClient, error) {
		gotOpts = len(opts)
		return nil, errors.New("could not find default credentials")
	}

	_, err := NewVisionExtractor(context.Background(), "/nonexistent.json")
	assert.ErrorIs(t, err, ErrMissingCredentials)
	assert.Equal(t, 1, gotOpts)
}

func TestVisionExtractor_CloseNil(t *testing.T) {
	assert.NoError(t, (&VisionExtractor{}).Close())
}

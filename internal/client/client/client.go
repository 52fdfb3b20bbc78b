package client

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/medreport/internal/client/models"
	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/go-resty/resty/v2"
)

type API interface {
	Health(ctx context.Context) error
	Register(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (string, error)
	DeleteAccount(ctx context.Context) error

	CreateReport(ctx context.Context, r models.NewReport) (*models.Report, error)
	AnalyzeReport(ctx context.Context, text, documentKey string) (*models.Report, error)
	ListReports(ctx context.Context) ([]models.Report, error)
	GetReport(ctx context.Context, id string) (*models.Report, error)
	DeleteReport(ctx context.Context, id string) error
	ReportMetrics(ctx context.Context, id string) ([]models.Metric, error)
	CompareLatest(ctx context.Context) (*models.Comparison, error)

	Analyze(ctx context.Context, text string) (string, error)
	Ask(ctx context.Context, question string) (string, error)
	OCR(ctx context.Context, filename string, data []byte) (*models.OCRResult, error)

	SetToken(token string)
}

// HTTPClient talks to the server's JSON API.
type HTTPClient struct {
	http  *resty.Client
	token string
}

// New returns a client for baseURL, e.g. "http://127.0.0.1:5000".
func New(baseURL string, timeout time.Duration) *HTTPClient {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &HTTPClient{http: c}
}

func (c *HTTPClient) SetToken(token string) {
	c.token = token
}

func (c *HTTPClient) request(ctx context.Context, auth bool) (*resty.Request, error) {
	r := c.http.R().SetContext(ctx)
	if auth {
		if c.token == "" {
			return nil, ErrNotLoggedIn
		}
		r.SetHeader(common.AuthorizationHeaderName, common.BearerPrefix+c.token)
	}
	return r, nil
}

// check turns a transport error or a non-2xx response into an error.
func check(resp *resty.Response, err error) error {
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return errors.Join(ErrUnavailable, err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode(), Code: "http_error", Message: http.StatusText(resp.StatusCode())}
	if env, ok := resp.Error().(*errorEnvelope); ok && env.Error.Code != "" {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
		apiErr.Fields = env.Error.Fields
		apiErr.Retryable = env.Error.Retryable
	}
	if s, err := strconv.Atoi(resp.Header().Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(s) * time.Second
	}
	return apiErr
}

func (c *HTTPClient) Health(ctx context.Context) error {
	r, _ := c.request(ctx, false)
	return check(r.SetError(&errorEnvelope{}).Get("/healthcheck"))
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (c *HTTPClient) Register(ctx context.Context, email, password string) (string, error) {
	return c.session(ctx, "/register", email, password)
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	return c.session(ctx, "/login", email, password)
}

func (c *HTTPClient) session(ctx context.Context, path, email, password string) (string, error) {
	r, _ := c.request(ctx, false)

	var out tokenResponse
	err := check(r.SetBody(credentials{Email: email, Password: password}).
		SetResult(&out).
		SetError(&errorEnvelope{}).
		Post(path))
	if err != nil {
		return "", err
	}
	c.token = out.Token
	return out.Token, nil
}

type successResponse struct {
	Success bool `json:"success"`
}

func (c *HTTPClient) DeleteAccount(ctx context.Context) error {
	r, err := c.request(ctx, true)
	if err != nil {
		return err
	}
	if err := check(r.SetResult(&successResponse{}).SetError(&errorEnvelope{}).Delete("/user")); err != nil {
		return err
	}
	c.token = ""
	return nil
}

type reportResponse struct {
	Success bool           `json:"success"`
	Report  *models.Report `json:"report"`
}

type analyzeReportRequest struct {
	Text        string `json:"text"`
	DocumentKey string `json:"documentKey,omitempty"`
}

func (c *HTTPClient) CreateReport(ctx context.Context, in models.NewReport) (*models.Report, error) {
	return c.postReport(ctx, "/reports", in)
}

func (c *HTTPClient) AnalyzeReport(ctx context.Context, text, documentKey string) (*models.Report, error) {
	return c.postReport(ctx, "/reports/analyze", analyzeReportRequest{Text: text, DocumentKey: documentKey})
}

func (c *HTTPClient) postReport(ctx context.Context, path string, body any) (*models.Report, error) {
	r, err := c.request(ctx, true)
	if err != nil {
		return nil, err
	}
	var out reportResponse
	if err := check(r.SetBody(body).SetResult(&out).SetError(&errorEnvelope{}).Post(path)); err != nil {
		return nil, err
	}
	return out.Report, nil
}

func (c *HTTPClient) ListReports(ctx context.Context) ([]models.Report, error) {
	r, err := c.request(ctx, true)
	if err != nil {
		return nil, err
	}
	var out struct {
		Reports []models.Report `json:"reports"`
	}
	if err := check(r.SetResult(&out).SetError(&errorEnvelope{}).Get("/reports")); err != nil {
		return nil, err
	}
	return out.Reports, nil
}

func (c *HTTPClient) GetReport(ctx context.Context, id string) (*models.Report, error) {
	r, err := c.request(ctx, true)
	if err != nil {
		return nil, err
	}
	var out reportResponse
	if err := check(r.SetPathParam("id", id).SetResult(&out).SetError(&errorEnvelope{}).Get("/reports/{id}")); err != nil {
		return nil, err
	}
	return out.Report, nil
}

func (c *HTTPClient) DeleteReport(ctx context.Context, id string) error {
	r, err := c.request(ctx, true)
	if err != nil {
		return err
	}
	return check(r.SetPathParam("id", id).SetResult(&successResponse{}).SetError(&errorEnvelope{}).Delete("/reports/{id}"))
}

func (c *HTTPClient) ReportMetrics(ctx context.Context, id string) ([]models.Metric, error) {
	r, err := c.request(ctx, true)
	if err != nil {
		return nil, err
	}
	var out struct {
		Metrics []models.Metric `json:"metrics"`
	}
	if err := check(r.SetPathParam("id", id).SetResult(&out).SetError(&errorEnvelope{}).Get("/reports/{id}/metrics")); err != nil {
		return nil, err
	}
	return out.Metrics, nil
}

func (c *HTTPClient) CompareLatest(ctx context.Context) (*models.Comparison, error) {
	r, err := c.request(ctx, true)
	if err != nil {
		return nil, err
	}
	var out struct {
		Comparison *models.Comparison `json:"comparison"`
	}
	if err := check(r.SetResult(&out).SetError(&errorEnvelope{}).Get("/reports/compare")); err != nil {
		return nil, err
	}
	return out.Comparison, nil
}

func (c *HTTPClient) Analyze(ctx context.Context, text string) (string, error) {
	r, _ := c.request(ctx, false)
	var out struct {
		Result string `json:"result"`
	}
	err := check(r.SetBody(map[string]string{"text": text}).SetResult(&out).SetError(&errorEnvelope{}).Post("/analyze"))
	if err != nil {
		return "", err
	}
	return out.Result, nil
}

func (c *HTTPClient) Ask(ctx context.Context, question string) (string, error) {
	r, _ := c.request(ctx, false)
	var out struct {
		Answer string `json:"answer"`
	}
	err := check(r.SetBody(map[string]string{"question": question}).SetResult(&out).SetError(&errorEnvelope{}).Post("/ask"))
	if err != nil {
		return "", err
	}
	return out.Answer, nil
}

// OCR uploads data as the "file" form field. The token is sent when one is
// set, so the server archives the upload.
func (c *HTTPClient) OCR(ctx context.Context, filename string, data []byte) (*models.OCRResult, error) {
	r, _ := c.request(ctx, false)
	if c.token != "" {
		r.SetHeader(common.AuthorizationHeaderName, common.BearerPrefix+c.token)
	}

	var out models.OCRResult
	err := check(r.SetFileReader("file", filename, bytes.NewReader(data)).
		SetResult(&out).
		SetError(&errorEnvelope{}).
		Post("/ocr"))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RetryIn is how long to wait before retrying err, zero when it should not
// be retried.
func RetryIn(err error) time.Duration {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || !apiErr.Retryable {
		return 0
	}
	if apiErr.RetryAfter > time.Second {
		return apiErr.RetryAfter
	}
	return time.Second
}

package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/medreport/internal/logging"
	"github.com/dmitrijs2005/medreport/internal/server/completion"
)

// NoResponse is returned in place of an empty model answer.
const NoResponse = "No response from model"

const analyzePrompt = `You are an AI medical report analyzer.
After your summary and recommendations, always output a section titled "Visual Summary" in this format:

Visual Summary:
MetricName: value [unit] (status, Normal: normal-range)
...

For example:
Hemoglobin: 12.3 g/dL (Low, Normal: 13.5-17.5)
Lymphocytes: 52% (High, Normal: 20-40)
Platelets: 200 x10^9/L (Normal, Normal: 150-400)

Only include metrics that are present in the report. If a normal range is not available, omit it.

`

const askPrompt = `You are a helpful, friendly, and medically knowledgeable AI assistant. Answer the following user health or medical question in clear, understandable language. If the question is outside your scope, say so politely.

Question: `

// UpstreamError is a failed call to the AI endpoint. Callers may retry.
type UpstreamError struct {
	Op      string
	Err     error
	Timeout bool
}

func (e *UpstreamError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: upstream timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: upstream failed: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Message is the failure text safe to show to callers. Transport errors
// lose their request URL, which may carry the provider's API key.
func (e *UpstreamError) Message() string {
	if e.Err == nil {
		return "no response"
	}
	var se *completion.StatusError
	if errors.As(e.Err, &se) {
		return se.Error()
	}
	var ue *url.Error
	if errors.As(e.Err, &ue) && ue.Err != nil {
		return ue.Err.Error()
	}
	return e.Err.Error()
}

// Retryable is always true: the request itself was valid.
func (e *UpstreamError) Retryable() bool { return true }

type analysisInput struct {
	Text string `json:"text" validate:"required"`
}

type questionInput struct {
	Question string `json:"question" validate:"required"`
}

// AnalysisService prompts the completion endpoint.
type AnalysisService struct {
	completer completion.Completer
	timeout   time.Duration
	logger    logging.Logger
}

func NewAnalysisService(c completion.Completer, timeout time.Duration, logger logging.Logger) *AnalysisService {
	return &AnalysisService{completer: c, timeout: timeout, logger: logger.With("module", "analysis")}
}

// Analyze asks the model to analyze a medical report text, ending with a
// Visual Summary section.
func (s *AnalysisService) Analyze(ctx context.Context, text string) (string, error) {
	if err := validateStruct(analysisInput{Text: strings.TrimSpace(text)}); err != nil {
		return "", err
	}
	return s.complete(ctx, "analyze", analyzePrompt+text)
}

// Ask answers a free-form health question.
func (s *AnalysisService) Ask(ctx context.Context, question string) (string, error) {
	if err := validateStruct(questionInput{Question: strings.TrimSpace(question)}); err != nil {
		return "", err
	}
	return s.complete(ctx, "ask", askPrompt+question)
}

func (s *AnalysisService) complete(ctx context.Context, op, prompt string) (string, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := s.completer.Complete(ctx, prompt)
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded)
		s.logger.Error(ctx, "completion failed", "op", op, "timeout", timeout, "elapsed", time.Since(start), "error", err)
		return "", &UpstreamError{Op: op, Err: err, Timeout: timeout}
	}

	if strings.TrimSpace(out) == "" {
		s.logger.Warn(ctx, "completion was empty", "op", op)
		return NoResponse, nil
	}
	s.logger.Debug(ctx, "completion done", "op", op, "elapsed", time.Since(start), "length", len(out))
	return out, nil
}

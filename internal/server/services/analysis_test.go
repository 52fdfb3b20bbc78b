package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/medreport/internal/common"
	"github.com/dmitrijs2005/medreport/internal/logging"
	"github.com/dmitrijs2005/medreport/internal/server/completion"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	out    string
	err    error
	block  bool
	prompt string
}

func (f *fakeCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.out, f.err
}

func TestAnalysisService_Analyze(t *testing.T) {
	c := &fakeCompleter{out: "Summary: fine"}
	s := NewAnalysisService(c, time.Second, logging.NewNop())

	out, err := s.Analyze(context.Background(), "Hemoglobin 14")
	require.NoError(t, err)
	assert.Equal(t, "Summary: fine", out)
	assert.True(t, strings.HasPrefix(c.prompt, "You are an AI medical report analyzer."))
	assert.Contains(t, c.prompt, `section titled "Visual Summary"`)
	assert.True(t, strings.HasSuffix(c.prompt, "\n\nHemoglobin 14"))
}

func TestAnalysisService_Ask(t *testing.T) {
	c := &fakeCompleter{out: "Drink water."}
	s := NewAnalysisService(c, time.Second, logging.NewNop())

	out, err := s.Ask(context.Background(), "What is HbA1c?")
	require.NoError(t, err)
	assert.Equal(t, "Drink water.", out)
	assert.Contains(t, c.prompt, "friendly, and medically knowledgeable")
	assert.True(t, strings.HasSuffix(c.prompt, "Question: What is HbA1c?"))
}

func TestAnalysisService_EmptyAnswer(t *testing.T) {
	s := NewAnalysisService(&fakeCompleter{out: "  \n"}, time.Second, logging.NewNop())
	out, err := s.Analyze(context.Background(), "text")
	require.NoError(t, err)
	assert.Equal(t, NoResponse, out)
}

func TestAnalysisService_Validation(t *testing.T) {
	c := &fakeCompleter{}
	s := NewAnalysisService(c, time.Second, logging.NewNop())

	_, err := s.Analyze(context.Background(), "   ")
	assert.ErrorIs(t, err, common.ErrorValidation)
	_, err = s.Ask(context.Background(), "")
	assert.ErrorIs(t, err, common.ErrorValidation)
	assert.Empty(t, c.prompt, "model not called")
}

func TestAnalysisService_UpstreamError(t *testing.T) {
	s := NewAnalysisService(&fakeCompleter{err: errBoom}, time.Second, logging.NewNop())

	_, err := s.Analyze(context.Background(), "text")
	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.Equal(t, "analyze", ue.Op)
	assert.False(t, ue.Timeout)
	assert.True(t, ue.Retryable())
	assert.ErrorIs(t, err, errBoom)
}

func TestAnalysisService_Timeout(t *testing.T) {
	s := NewAnalysisService(&fakeCompleter{block: true}, 20*time.Millisecond, logging.NewNop())

	start := time.Now()
	_, err := s.Ask(context.Background(), "slow?")
	assert.Less(t, time.Since(start), time.Second)

	var ue *UpstreamError
	require.True(t, errors.As(err, &ue))
	assert.True(t, ue.Timeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "timed out")
}

func TestUpstreamError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil cause", nil, "no response"},
		{"plain", errors.New("boom"), "boom"},
		{"provider status", &completion.StatusError{Provider: "openai", StatusCode: 429, Message: "quota"}, "openai: status 429: quota"},
		{"transport", fmt.Errorf("gemini: %w", &url.Error{Op: "Post", URL: "https://x/?key=k1", Err: errors.New("no route to host")}), "no route to host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &UpstreamError{Op: "ask", Err: tt.err}
			assert.Equal(t, tt.want, e.Message())
		})
	}
}

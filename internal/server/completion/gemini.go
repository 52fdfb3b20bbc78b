package completion

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"
	DefaultGeminiModel   = "gemini-1.5-flash"
)

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

// Gemini calls the generateContent REST method.
type Gemini struct {
	http   *resty.Client
	apiKey string
	model  string
}

func NewGemini(opts Options) *Gemini {
	base := opts.BaseURL
	if base == "" {
		base = DefaultGeminiBaseURL
	}
	model := opts.Model
	if model == "" {
		model = DefaultGeminiModel
	}

	client := resty.New().
		SetBaseURL(base).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return &Gemini{http: client, apiKey: opts.APIKey, model: model}
}

func (g *Gemini) Complete(ctx context.Context, prompt string) (string, error) {
	body := geminiRequest{Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}}}

	var out geminiResponse
	var apiErr geminiError
	resp, err := g.http.R().
		SetContext(ctx).
		SetQueryParam("key", g.apiKey).
		SetPathParam("model", g.model).
		SetBody(body).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	if resp.IsError() {
		return "", &StatusError{Provider: "gemini", StatusCode: resp.StatusCode(), Message: apiErr.Error.Message}
	}

	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

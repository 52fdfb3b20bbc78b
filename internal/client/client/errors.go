package client

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"time"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrNotLoggedIn  = errors.New("not logged in, run login first")
)

// APIError is a decoded error envelope.
type APIError struct {
	Status     int
	Code       string
	Message    string
	Fields     map[string]string
	Retryable  bool
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s (%d %s)", e.Message, e.Status, e.Code)
	names := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, k := range names {
		msg += fmt.Sprintf("; %s: %s", k, e.Fields[k])
	}
	return msg
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.Status == http.StatusUnauthorized
	case ErrNotFound:
		return e.Status == http.StatusNotFound
	case ErrRateLimited:
		return e.Status == http.StatusTooManyRequests
	case ErrUnavailable:
		return e.Status == http.StatusServiceUnavailable || e.Status == http.StatusBadGateway
	}
	return false
}

type errorEnvelope struct {
	Error struct {
		Message   string            `json:"message"`
		Code      string            `json:"code"`
		Fields    map[string]string `json:"fields"`
		Retryable bool              `json:"retryable"`
	} `json:"error"`
}

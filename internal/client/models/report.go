// Package models defines the payloads the CLI exchanges with the server.
package models

import (
	"fmt"
	"strconv"
	"time"
)

type Report struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Insights    []string  `json:"insights"`
	Glossary    []string  `json:"glossary"`
	Raw         string    `json:"raw"`
	DocumentKey string    `json:"documentKey,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// NewReport is the body of a create request.
type NewReport struct {
	Summary     string   `json:"summary"`
	Insights    []string `json:"insights"`
	Glossary    []string `json:"glossary"`
	Raw         string   `json:"raw"`
	DocumentKey string   `json:"documentKey,omitempty"`
}

type Metric struct {
	Name      string   `json:"name"`
	Value     float64  `json:"value"`
	Unit      string   `json:"unit,omitempty"`
	NormalMin *float64 `json:"normalMin,omitempty"`
	NormalMax *float64 `json:"normalMax,omitempty"`
	NormalRaw string   `json:"normalRaw,omitempty"`
	Status    string   `json:"status"`
}

// Range renders the normal range, or "-" when there is none.
func (m Metric) Range() string {
	switch {
	case m.NormalRaw != "":
		return m.NormalRaw
	case m.NormalMin != nil && m.NormalMax != nil:
		return fmt.Sprintf("%s-%s", num(*m.NormalMin), num(*m.NormalMax))
	}
	return "-"
}

type ReportRef struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
}

type Delta struct {
	Name           string   `json:"name"`
	Unit           string   `json:"unit,omitempty"`
	PreviousValue  *float64 `json:"previousValue,omitempty"`
	CurrentValue   *float64 `json:"currentValue,omitempty"`
	Delta          *float64 `json:"delta,omitempty"`
	Direction      string   `json:"direction"`
	PreviousStatus string   `json:"previousStatus,omitempty"`
	CurrentStatus  string   `json:"currentStatus,omitempty"`
}

type Comparison struct {
	Previous ReportRef `json:"previous"`
	Current  ReportRef `json:"current"`
	Deltas   []Delta   `json:"deltas"`
}

type OCRResult struct {
	Text        string `json:"text"`
	MimeType    string `json:"mimeType,omitempty"`
	Pages       int    `json:"pages,omitempty"`
	DocumentKey string `json:"documentKey,omitempty"`
}

// FormatValue renders an optional number, "-" when absent.
func FormatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return num(*v)
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

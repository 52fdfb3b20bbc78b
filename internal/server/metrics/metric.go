// Package metrics turns free-text analysis output into structured health
// metrics and compares metrics across reports.
//
// Nothing in this package is persisted and nothing here returns an error:
// input that cannot be understood is skipped.
package metrics

import (
	"strings"
)

// Status classifies a metric value against its normal range.
type Status string

const (
	StatusNormal   Status = "Normal"
	StatusLow      Status = "Low"
	StatusHigh     Status = "High"
	StatusAbnormal Status = "Abnormal"
	StatusUnknown  Status = "unknown"
)

// Metric is one measured value extracted from a report.
type Metric struct {
	Name      string   `json:"name"`
	Value     float64  `json:"value"`
	Unit      string   `json:"unit,omitempty"`
	NormalMin *float64 `json:"normalMin,omitempty"`
	NormalMax *float64 `json:"normalMax,omitempty"`
	NormalRaw string   `json:"normalRaw,omitempty"`
	Status    Status   `json:"status"`
}

// Range is an inclusive normal range.
type Range struct {
	Min float64
	Max float64
}

// defaultRanges is used when the text carries no explicit range.
var defaultRanges = map[string]Range{
	"Hemoglobin":                  {13.8, 17.2},
	"Total WBC Count":             {4.0, 11.0},
	"Packed Cell Volume":          {40, 50},
	"Mean Corpuscular Volume":     {80, 100},
	"Mean Corpuscular Hemoglobin": {27, 31},
	"Neutrophils":                 {40, 75},
	"Lymphocytes":                 {20, 40},
	"Eosinophils":                 {1, 6},
	"Monocytes":                   {2, 10},
	"Basophils":                   {0, 2},
	"Platelets":                   {150, 450},
}

// DefaultRange returns the built-in normal range for a canonical name.
func DefaultRange(name string) (Range, bool) {
	r, ok := defaultRanges[name]
	return r, ok
}

var aliases = map[string]string{
	"hemoglobin":                   "Hemoglobin",
	"haemoglobin":                  "Hemoglobin",
	"hb":                           "Hemoglobin",
	"hgb":                          "Hemoglobin",
	"wbc":                          "Total WBC Count",
	"wbc count":                    "Total WBC Count",
	"total wbc":                    "Total WBC Count",
	"total wbc count":              "Total WBC Count",
	"white blood cells":            "Total WBC Count",
	"white blood cell count":       "Total WBC Count",
	"total leukocyte count":        "Total WBC Count",
	"tlc":                          "Total WBC Count",
	"pcv":                          "Packed Cell Volume",
	"packed cell volume":           "Packed Cell Volume",
	"hematocrit":                   "Packed Cell Volume",
	"haematocrit":                  "Packed Cell Volume",
	"hct":                          "Packed Cell Volume",
	"mcv":                          "Mean Corpuscular Volume",
	"mean corpuscular volume":      "Mean Corpuscular Volume",
	"mch":                          "Mean Corpuscular Hemoglobin",
	"mean corpuscular hemoglobin":  "Mean Corpuscular Hemoglobin",
	"mean corpuscular haemoglobin": "Mean Corpuscular Hemoglobin",
	"neutrophil":                   "Neutrophils",
	"neutrophils":                  "Neutrophils",
	"lymphocyte":                   "Lymphocytes",
	"lymphocytes":                  "Lymphocytes",
	"eosinophil":                   "Eosinophils",
	"eosinophils":                  "Eosinophils",
	"monocyte":                     "Monocytes",
	"monocytes":                    "Monocytes",
	"basophil":                     "Basophils",
	"basophils":                    "Basophils",
	"platelet":                     "Platelets",
	"platelets":                    "Platelets",
	"platelet count":               "Platelets",
	"plt":                          "Platelets",
	"glucose":                      "Glucose",
	"blood glucose":                "Glucose",
	"fasting glucose":              "Glucose",
	"fasting blood glucose":        "Glucose",
	"fasting blood sugar":          "Glucose",
	"blood sugar":                  "Glucose",
	"fbs":                          "Glucose",
	"cholesterol":                  "Cholesterol",
	"total cholesterol":            "Cholesterol",
}

// CanonicalName maps common aliases to one name per metric. Unknown labels
// are returned trimmed with inner whitespace collapsed.
func CanonicalName(label string) string {
	clean := strings.Join(strings.Fields(label), " ")
	if c, ok := aliases[strings.ToLower(clean)]; ok {
		return c
	}
	return clean
}

// finalize canonicalizes the name, fills in a default range when none was
// given and derives the status when the text did not state one.
func finalize(m Metric) Metric {
	m.Name = CanonicalName(m.Name)
	m.Unit = strings.TrimSpace(m.Unit)

	if m.NormalMin == nil && m.NormalMax == nil {
		if r, ok := defaultRanges[m.Name]; ok {
			lo, hi := r.Min, r.Max
			m.NormalMin, m.NormalMax = &lo, &hi
		}
	}
	if m.NormalMin != nil && m.NormalMax == nil {
		hi := *m.NormalMin
		m.NormalMax = &hi
	}

	if m.Status == "" {
		m.Status = deriveStatus(m)
	}
	return m
}

func deriveStatus(m Metric) Status {
	if m.NormalMin == nil || m.NormalMax == nil {
		return StatusUnknown
	}
	switch {
	case m.Value < *m.NormalMin:
		return StatusLow
	case m.Value > *m.NormalMax:
		return StatusHigh
	default:
		return StatusNormal
	}
}

// parseStatus recognizes an explicit status word, case-insensitively.
func parseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return StatusLow, true
	case "high":
		return StatusHigh, true
	case "normal":
		return StatusNormal, true
	case "abnormal":
		return StatusAbnormal, true
	}
	return "", false
}

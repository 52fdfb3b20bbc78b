package metrics

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Parser extracts metrics from analysis text. Implementations never fail:
// unparseable input yields fewer metrics, possibly none.
type Parser interface {
	Parse(text string) []Metric
}

// maxUnitLen bounds the first unit token; longer words are prose.
const maxUnitLen = 16

var (
	bulletRe = regexp.MustCompile(`^\s*(?:[-*•+>]+\s*|\d{1,2}[.)]\s+)`)

	// label: value, followed by an optional unit, an optional (annotation)
	// and free text.
	lineRe = regexp.MustCompile(`^([A-Za-z][A-Za-z0-9 _\-/]*?)\s*:\s*(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`)

	// A status word counts only when it is not the label of a range ("Normal: 1-2").
	statusRe = regexp.MustCompile(`(?i)\b(low|high|normal|abnormal)\b(\s*(?:range\s*)?:)?`)

	rangeRe = regexp.MustCompile(`(?i)\bnormal(?:\s*range)?\s*:?\s*(\d+(?:\.\d+)?)(?:\s*(?:-|–|to)\s*(\d+(?:\.\d+)?))?`)

	visualSummaryRe = regexp.MustCompile(`(?i)^\s*(?:#{1,6}\s*)?visual\s+summary\s*:?\s*$`)
	headingRe       = regexp.MustCompile(`^\s*(?:#{1,6}\s+\S|[A-Za-z][A-Za-z /&'-]{1,60}:\s*$)`)
)

// LineParser reads one metric per line in the form
//
//	Hemoglobin: 12.3 g/dL (Low, Normal: 13.5-17.5)
//
// Text after the value, unit and annotation is allowed; a status word or
// normal range found there is used when the annotation has none. When the text has a "Visual Summary" section only that section is read.
type LineParser struct{}

func (LineParser) Parse(text string) []Metric {
	lines, ok := visualSummaryLines(text)
	if !ok {
		lines = splitLines(text)
	}

	out := make([]Metric, 0)
	for _, line := range lines {
		if m, ok := parseLine(line); ok {
			out = append(out, m)
		}
	}
	return out
}

// HasVisualSummary reports whether text contains a Visual Summary heading.
func HasVisualSummary(text string) bool {
	_, ok := visualSummaryLines(text)
	return ok
}

func splitLines(text string) []string {
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
}

func cleanLine(line string) string {
	line = strings.ReplaceAll(line, "**", "")
	line = strings.ReplaceAll(line, "__", "")
	line = bulletRe.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

// visualSummaryLines returns the lines between a Visual Summary heading and
// the next heading.
func visualSummaryLines(text string) ([]string, bool) {
	lines := splitLines(text)
	start := -1
	for i, l := range lines {
		if visualSummaryRe.MatchString(strings.ReplaceAll(l, "**", "")) {
			start = i + 1
			break
		}
	}
	if start < 0 {
		return nil, false
	}

	end := len(lines)
	for i := start; i < len(lines); i++ {
		c := cleanLine(lines[i])
		if c == "" {
			continue
		}
		if _, metric := parseLine(c); headingRe.MatchString(c) && !metric {
			end = i
			break
		}
	}
	return lines[start:end], true
}

func parseLine(line string) (Metric, bool) {
	c := cleanLine(line)
	if c == "" {
		return Metric{}, false
	}
	idx := lineRe.FindStringSubmatchIndex(c)
	if idx == nil {
		return Metric{}, false
	}
	rest := c[idx[1]:]
	if !valueEnds(rest) {
		return Metric{}, false
	}

	value, err := strconv.ParseFloat(strings.ReplaceAll(c[idx[4]:idx[5]], ",", ""), 64)
	if err != nil {
		return Metric{}, false
	}

	unit, note, trailing := splitRest(rest)
	m := Metric{Name: c[idx[2]:idx[3]], Value: value, Unit: unit}
	for _, text := range []string{note, trailing} {
		if m.Status == "" {
			m.Status = annotationStatus(text)
		}
		if m.NormalMin == nil {
			if lo, hi, raw, ok := annotationRange(text); ok {
				m.NormalMin, m.NormalMax, m.NormalRaw = &lo, &hi, raw
			}
		}
	}
	return finalize(m), true
}

// valueEnds reports whether the number matched by lineRe is complete, so
// that dates, times and ratios ("2024-01-05", "10:30", "1/2") are skipped.
func valueEnds(rest string) bool {
	if rest == "" {
		return true
	}
	switch rest[0] {
	case '-', ':', '/':
		return false
	case '.', ',', ';':
		return len(rest) == 1 || rest[1] == ' '
	}
	return true
}

// splitRest cuts what follows the value into the unit, the first
// parenthesized annotation and the remaining text.
func splitRest(rest string) (unit, note, trailing string) {
	head := rest
	if i := strings.IndexAny(head, "(,;[–"); i >= 0 {
		head = head[:i]
	}
	if i := strings.Index(head, " - "); i >= 0 {
		head = head[:i]
	}
	trailing = rest[len(head):]

	if open := strings.IndexByte(trailing, '('); open >= 0 {
		if end := strings.IndexByte(trailing[open:], ')'); end >= 0 {
			note = trailing[open+1 : open+end]
			trailing = trailing[:open] + trailing[open+end+1:]
		}
	}

	tokens := strings.Fields(head)
	if len(tokens) == 0 {
		return "", note, trailing
	}
	first := strings.TrimRight(tokens[0], ".;:")
	if _, isStatus := parseStatus(first); isStatus || utf8.RuneCountInString(first) > maxUnitLen {
		return "", note, head + trailing
	}
	parts := []string{first}
	n := 1
	for ; n < len(tokens) && strings.ContainsAny(tokens[n], "0123456789^/%"); n++ {
		parts = append(parts, tokens[n])
	}
	unit = strings.TrimRight(strings.Join(parts, " "), ".;:")
	if n < len(tokens) {
		trailing = strings.Join(tokens[n:], " ") + " " + trailing
	}
	return unit, note, trailing
}

func annotationStatus(note string) Status {
	for _, sm := range statusRe.FindAllStringSubmatch(note, -1) {
		if sm[2] != "" {
			continue
		}
		if st, ok := parseStatus(sm[1]); ok {
			return st
		}
	}
	return ""
}

func annotationRange(note string) (lo, hi float64, raw string, ok bool) {
	idx := rangeRe.FindStringSubmatchIndex(note)
	if idx == nil {
		return 0, 0, "", false
	}
	lo, err := strconv.ParseFloat(note[idx[2]:idx[3]], 64)
	if err != nil {
		return 0, 0, "", false
	}
	hi, rawEnd := lo, idx[3]
	if idx[4] >= 0 {
		if v, err := strconv.ParseFloat(note[idx[4]:idx[5]], 64); err == nil {
			hi, rawEnd = v, idx[5]
		}
	}
	return lo, hi, note[idx[2]:rawEnd], true
}

// JSONParser reads structured output: either an array of metric objects or
// an object with a "metrics" array. Code fences around the JSON are ignored.
// Objects without a name or a numeric value are skipped.
type JSONParser struct{}

type jsonMetric struct {
	Name        string     `json:"name"`
	Value       *flexFloat `json:"value"`
	Unit        string     `json:"unit"`
	Status      string     `json:"status"`
	NormalMin   *flexFloat `json:"normalMin"`
	NormalMax   *flexFloat `json:"normalMax"`
	NormalRange string     `json:"normalRange"`
}

// flexFloat accepts 12.3 as well as "12.3".
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

func (JSONParser) Parse(text string) []Metric {
	out := make([]Metric, 0)
	for _, raw := range jsonItems(text) {
		var jm jsonMetric
		if err := json.Unmarshal(raw, &jm); err != nil {
			continue
		}
		if strings.TrimSpace(jm.Name) == "" || jm.Value == nil {
			continue
		}
		m := Metric{Name: jm.Name, Value: float64(*jm.Value), Unit: jm.Unit}
		if st, ok := parseStatus(jm.Status); ok {
			m.Status = st
		}
		switch {
		case jm.NormalMin != nil || jm.NormalMax != nil:
			if jm.NormalMin != nil {
				lo := float64(*jm.NormalMin)
				m.NormalMin = &lo
			}
			if jm.NormalMax != nil {
				hi := float64(*jm.NormalMax)
				m.NormalMax = &hi
			}
			if m.NormalMin == nil {
				lo := *m.NormalMax
				m.NormalMin = &lo
			}
			m.NormalRaw = jm.NormalRange
		case jm.NormalRange != "":
			if lo, hi, raw, ok := annotationRange("normal " + jm.NormalRange); ok {
				m.NormalMin, m.NormalMax, m.NormalRaw = &lo, &hi, raw
			}
		}
		out = append(out, finalize(m))
	}
	return out
}

func jsonItems(text string) []json.RawMessage {
	body, ok := jsonBody(text)
	if !ok {
		return nil
	}
	var items []json.RawMessage
	if body[0] == '[' {
		if err := json.Unmarshal([]byte(body), &items); err != nil {
			return nil
		}
		return items
	}
	var wrapper struct {
		Metrics []json.RawMessage `json:"metrics"`
	}
	if err := json.Unmarshal([]byte(body), &wrapper); err != nil {
		return nil
	}
	return wrapper.Metrics
}

// jsonBody strips an optional ``` fence and reports whether what is left
// starts like a JSON array or object.
func jsonBody(text string) (string, bool) {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") {
		t = strings.TrimPrefix(t, "```")
		if nl := strings.IndexByte(t, '\n'); nl >= 0 && !strings.ContainsAny(t[:nl], "[{") {
			t = t[nl+1:]
		}
		t = strings.TrimSuffix(strings.TrimSpace(t), "```")
		t = strings.TrimSpace(t)
	}
	if t == "" || (t[0] != '[' && t[0] != '{') {
		return "", false
	}
	return t, true
}

// AutoParser uses JSONParser when the text looks like JSON and LineParser
// otherwise.
type AutoParser struct {
	JSON JSONParser
	Line LineParser
}

func (p AutoParser) Parse(text string) []Metric {
	if _, ok := jsonBody(text); ok {
		if items := jsonItems(text); items != nil {
			return p.JSON.Parse(text)
		}
	}
	return p.Line.Parse(text)
}

// Extractor picks which stored text of a report to parse.
type Extractor struct {
	Parser Parser
}

// NewExtractor returns an Extractor over p, or over AutoParser when p is nil.
func NewExtractor(p Parser) *Extractor {
	if p == nil {
		p = AutoParser{}
	}
	return &Extractor{Parser: p}
}

// FromReport parses raw when it carries a Visual Summary section, otherwise
// the summary, falling back to raw when the summary yields nothing.
func (e *Extractor) FromReport(summary, raw string) []Metric {
	if HasVisualSummary(raw) {
		return e.Parser.Parse(raw)
	}
	if strings.TrimSpace(summary) != "" {
		if ms := e.Parser.Parse(summary); len(ms) > 0 {
			return ms
		}
	}
	return e.Parser.Parse(raw)
}

// FromReport runs the default Extractor.
func FromReport(summary, raw string) []Metric {
	return NewExtractor(nil).FromReport(summary, raw)
}

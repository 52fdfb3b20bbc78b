package services

import (
	"regexp"
	"strings"
)

var (
	sectionHeadingRe = regexp.MustCompile(`^\s*(?:#{1,6}\s*)?(?:\d{1,2}[.)]\s*)?\**\s*([A-Za-z][A-Za-z &/'-]{1,60}?)\s*\**\s*:?\s*\**\s*$`)
	insightRe        = regexp.MustCompile(`(?i)risk|recommend|abnormal|suggest|consider|consult`)
	acronymRe        = regexp.MustCompile(`\b([A-Z]{2,}[a-z]*)\b`)
	listMarkerRe     = regexp.MustCompile(`^\s*(?:[-*•+>]+\s*|\d{1,2}[.)]\s+)`)
)

type section struct {
	title string
	lines []string
}

// splitSections cuts text at heading lines. Text before the first heading
// belongs to an untitled section.
func splitSections(text string) []section {
	var out []section
	cur := section{}
	for _, line := range strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n") {
		if title, ok := heading(line); ok {
			out = append(out, cur)
			cur = section{title: title}
			continue
		}
		cur.lines = append(cur.lines, line)
	}
	return append(out, cur)
}

// heading recognizes "## Title", "**Title**" and "Title:" lines, with an
// optional "1." prefix. A bare line of words is body text.
func heading(line string) (string, bool) {
	m := sectionHeadingRe.FindStringSubmatch(line)
	if m == nil {
		return "", false
	}
	t := strings.TrimSpace(line)
	marked := strings.HasPrefix(t, "#") || strings.Contains(t, "**") || strings.HasSuffix(t, ":")
	if !marked {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

func stripMarkers(line string) string {
	line = strings.ReplaceAll(line, "**", "")
	line = listMarkerRe.ReplaceAllString(line, "")
	return strings.TrimSpace(line)
}

// DeriveReport builds report content from AI analysis text:
//   - summary is the "Summary" section, or the whole text when there is none
//   - insights are the lines that mention a risk, recommendation or advice
//   - glossary holds the distinct acronyms longer than two letters
//
// Raw is the text unchanged.
func DeriveReport(analysis string) CreateReportInput {
	in := CreateReportInput{
		Raw:      analysis,
		Insights: []string{},
		Glossary: []string{},
	}

	sections := splitSections(analysis)
	for _, sec := range sections {
		t := strings.ToLower(sec.title)
		if strings.Contains(t, "summary") && !strings.Contains(t, "visual") {
			in.Summary = strings.TrimSpace(strings.Join(sec.lines, "\n"))
			break
		}
	}
	if in.Summary == "" {
		in.Summary = strings.TrimSpace(analysis)
	}

	seen := map[string]bool{}
	for _, sec := range sections {
		for _, line := range sec.lines {
			l := stripMarkers(line)
			if l == "" || !insightRe.MatchString(l) || seen[l] {
				continue
			}
			seen[l] = true
			in.Insights = append(in.Insights, l)
		}
	}

	terms := map[string]bool{}
	for _, m := range acronymRe.FindAllStringSubmatch(analysis, -1) {
		term := m[1]
		if len(term) <= 2 || terms[term] {
			continue
		}
		terms[term] = true
		in.Glossary = append(in.Glossary, term)
	}
	return in
}

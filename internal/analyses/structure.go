package analyses

import "strings"

type section int

const (
	sectionSummary section = iota
	sectionCompliance
)

// Structure splits a raw model answer into sections. It never fails: anything
// it cannot place stays in Summary.
//
// Only one heading is recognized. A line mentioning "summary" or "overview"
// closes the current section (the heading line belongs to it) and sends the
// following lines to Compliance. The layout is the same for every analysis type.
func Structure(raw, analysisType string) (out Sections) {
	defer func() {
		if r := recover(); r != nil {
			out = emptySections()
			out.Summary = raw
		}
	}()

	out = emptySections()
	target := sectionSummary
	var buf []string
	flush := func() {
		switch target {
		case sectionSummary:
			text := strings.TrimSpace(strings.Join(buf, "\n"))
			if text != "" {
				if out.Summary != "" {
					out.Summary += "\n"
				}
				out.Summary += text
			}
		case sectionCompliance:
			out.Compliance = append(out.Compliance, nonBlankLines(buf)...)
		}
		buf = buf[:0]
	}

	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		buf = append(buf, line)
		lower := strings.ToLower(line)
		if strings.Contains(lower, "summary") || strings.Contains(lower, "overview") {
			flush()
			target = sectionCompliance
		}
	}
	flush()
	return out
}

func emptySections() Sections {
	return Sections{
		Findings:        []string{},
		Recommendations: []string{},
		Risks:           []string{},
		Compliance:      []string{},
	}
}

func nonBlankLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out
}

package core

import (
	"sort"
	"strings"

	"github.com/SamuelRCrider/callbridge/utils"
)

// RedactFindings replaces the spans of high severity findings in text with
// "[REDACTED:<category>]". Overlapping spans are merged into the first one.
// Findings whose offsets do not fit text are ignored.
func RedactFindings(text string, findings []utils.ThreatFinding) string {
	spans := make([]utils.ThreatFinding, 0, len(findings))
	for _, f := range findings {
		if f.Severity != utils.SeverityHigh {
			continue
		}
		if f.StartIndex < 0 || f.EndIndex > len(text) || f.StartIndex >= f.EndIndex {
			continue
		}
		spans = append(spans, f)
	}
	if len(spans) == 0 {
		return text
	}

	sort.SliceStable(spans, func(i, j int) bool {
		return spans[i].StartIndex < spans[j].StartIndex
	})

	var builder strings.Builder
	lastIndex := 0

	for _, span := range spans {
		if span.EndIndex <= lastIndex {
			continue
		}
		if span.StartIndex > lastIndex {
			builder.WriteString(text[lastIndex:span.StartIndex])
		} else if lastIndex > 0 {
			// Overlaps the previous redaction; extend it silently
			lastIndex = span.EndIndex
			continue
		}

		builder.WriteString("[REDACTED:" + string(span.Category) + "]")
		lastIndex = span.EndIndex
	}

	if lastIndex < len(text) {
		builder.WriteString(text[lastIndex:])
	}

	return builder.String()
}

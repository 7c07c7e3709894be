package extract

import (
	"regexp"
	"sort"
	"strings"
)

// Source labels used for Follow Up Boss lead sources
const (
	SourceTexting   = "Texting"
	SourceColdEmail = "Cold Email"
	SourceMailer    = "Standard mailer"
	SourceGoogle    = "Google"
	SourceAICall    = "ElevenLabs AI Call"
)

// introTurns bounds how far into the call a caller is expected to introduce
// themselves.
const introTurns = 5

var (
	namePattern    = regexp.MustCompile(`(?:[Mm]y name is|[Tt]his is|[Ii]'m|[Ii] am)\s+([A-Z][a-zA-Z'\-]+(?:\s+[A-Z][a-zA-Z'\-]+)?)`)
	phonePattern   = regexp.MustCompile(`(?:\+?1[\s.\-]?)?\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`)
	countyPattern  = regexp.MustCompile(`\b([A-Z][a-zA-Z]+(?:\s[A-Z][a-zA-Z]+)?)\s+[Cc]ounty\b`)
	acreagePattern = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*-?\s*acres?\b`)
	statePattern   *regexp.Regexp
	codePattern    = regexp.MustCompile(`\b([A-Z]{2})\b`)

	sourceRules = []struct {
		pattern *regexp.Regexp
		source  string
	}{
		{regexp.MustCompile(`(?i)\btext(?:s|ed|ing)?\b|\bsms\b`), SourceTexting},
		{regexp.MustCompile(`(?i)\be-?mails?\b`), SourceColdEmail},
		{regexp.MustCompile(`(?i)\b(?:mailers?|letters?|postcards?|ads?|advertisement)\b`), SourceMailer},
		{regexp.MustCompile(`(?i)\b(?:google|website|online|internet)\b`), SourceGoogle},
	}
)

var stateCodes = map[string]string{
	"alabama": "AL", "alaska": "AK", "arizona": "AZ", "arkansas": "AR", "california": "CA",
	"colorado": "CO", "connecticut": "CT", "delaware": "DE", "florida": "FL", "georgia": "GA",
	"hawaii": "HI", "idaho": "ID", "illinois": "IL", "indiana": "IN", "iowa": "IA",
	"kansas": "KS", "kentucky": "KY", "louisiana": "LA", "maine": "ME", "maryland": "MD",
	"massachusetts": "MA", "michigan": "MI", "minnesota": "MN", "mississippi": "MS", "missouri": "MO",
	"montana": "MT", "nebraska": "NE", "nevada": "NV", "new hampshire": "NH", "new jersey": "NJ",
	"new mexico": "NM", "new york": "NY", "north carolina": "NC", "north dakota": "ND", "ohio": "OH",
	"oklahoma": "OK", "oregon": "OR", "pennsylvania": "PA", "rhode island": "RI", "south carolina": "SC",
	"south dakota": "SD", "tennessee": "TN", "texas": "TX", "utah": "UT", "vermont": "VT",
	"virginia": "VA", "washington": "WA", "west virginia": "WV", "wisconsin": "WI", "wyoming": "WY",
}

// two-letter codes that are also everyday English words
var ambiguousCodes = map[string]bool{"IN": true, "OR": true, "ME": true, "OK": true, "HI": true, "OH": true}

var validCodes = func() map[string]bool {
	codes := make(map[string]bool, len(stateCodes))
	for _, c := range stateCodes {
		codes[c] = true
	}
	return codes
}()

func init() {
	names := make([]string, 0, len(stateCodes))
	for name := range stateCodes {
		names = append(names, regexp.QuoteMeta(name))
	}
	// longest first so "west virginia" wins over "virginia"
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})
	statePattern = regexp.MustCompile(`(?i)\b(` + strings.Join(names, "|") + `)\b`)
}

// ExtractName finds a self-introduction such as "my name is Ann Lee".
func ExtractName(text string) string {
	if m := namePattern.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// ExtractPhone returns the first phone-shaped number in text.
func ExtractPhone(text string) string {
	return strings.TrimSpace(phonePattern.FindString(text))
}

// ExtractCounty returns the name before "County", e.g. "Travis".
func ExtractCounty(text string) string {
	if m := countyPattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// ExtractAcreage returns the number before "acres".
func ExtractAcreage(text string) string {
	if m := acreagePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}

// ExtractState returns a two-letter state code from a state name or an
// unambiguous uppercase code.
func ExtractState(text string) string {
	if m := statePattern.FindStringSubmatch(text); m != nil {
		return stateCodes[strings.ToLower(m[1])]
	}
	for _, m := range codePattern.FindAllStringSubmatch(text, -1) {
		if validCodes[m[1]] && !ambiguousCodes[m[1]] {
			return m[1]
		}
	}
	return ""
}

// NormalizeState maps a state name or code to its two-letter code. Unknown
// values are returned trimmed.
func NormalizeState(state string) string {
	state = strings.TrimSpace(state)
	if code, ok := stateCodes[strings.ToLower(state)]; ok {
		return code
	}
	if up := strings.ToUpper(state); validCodes[up] {
		return up
	}
	return state
}

// ClassifySource maps how the caller heard about us to a lead source.
func ClassifySource(text string) string {
	for _, rule := range sourceRules {
		if rule.pattern.MatchString(text) {
			return rule.source
		}
	}
	return SourceAICall
}

// callerText joins caller turns, or the raw transcript when no turns exist.
func callerText(call *Call, limit int) string {
	if len(call.Turns) == 0 {
		return call.Transcript
	}
	turns := call.Turns
	if limit > 0 && len(turns) > limit {
		turns = turns[:limit]
	}
	var parts []string
	for _, t := range turns {
		switch strings.ToLower(t.Role) {
		case "user", "caller":
			parts = append(parts, t.Message)
		}
	}
	return strings.Join(parts, "\n")
}

// fillFromTurns fills fields the payload left empty from what the caller said.
func fillFromTurns(call *Call) {
	intro := callerText(call, introTurns)
	all := callerText(call, 0)

	if call.CallerName == "" {
		call.CallerName = ExtractName(intro)
	}
	if call.CallerPhone == "" {
		call.CallerPhone = ExtractPhone(all)
	}
	if call.County == "" {
		call.County = ExtractCounty(all)
	}
	if call.State == "" {
		call.State = ExtractState(all)
	} else {
		call.State = NormalizeState(call.State)
	}
	if call.Acreage == "" {
		call.Acreage = ExtractAcreage(all)
	}
	if call.Source == "" {
		call.Source = ClassifySource(all)
	}
}

package core

import (
	"regexp"
	"strings"
)

var (
	// Python-style unicode whitespace: \s plus vertical tab, the 0x1C-0x1F
	// separators, NEL and the Unicode separator classes.
	whitespaceRun = regexp.MustCompile(`[\s\v\x1C-\x1F\x{85}\p{Z}]+`)

	controlChars = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F-\x{9F}]`)

	codeChars = regexp.MustCompile("[<>{}()\\[\\]`]")

	punctuationRun = regexp.MustCompile(`[!@#$%^&*]{3,}`)
)

// Sanitize cleans free text for storage:
//
//  1. collapse whitespace runs to one space
//  2. remove control characters
//  3. remove < > { } ( ) [ ] and backtick
//  4. remove runs of three or more of ! @ # $ % ^ & *
//  5. truncate to maxLength characters
//  6. trim surrounding whitespace
//
// Whitespace is collapsed again after steps 2-4 so that removing characters
// cannot leave a double space behind, which keeps Sanitize idempotent.
func Sanitize(text string, maxLength int) string {
	if text == "" || maxLength <= 0 {
		return ""
	}

	text = whitespaceRun.ReplaceAllString(text, " ")
	text = controlChars.ReplaceAllString(text, "")
	text = codeChars.ReplaceAllString(text, "")
	text = punctuationRun.ReplaceAllString(text, "")
	text = whitespaceRun.ReplaceAllString(text, " ")

	if runes := []rune(text); len(runes) > maxLength {
		text = string(runes[:maxLength])
	}

	return strings.TrimSpace(text)
}

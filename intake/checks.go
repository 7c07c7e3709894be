package intake

import (
	"regexp"
	"strings"
)

// PhonePattern is the accepted caller phone shape: digits, spaces, dashes,
// parentheses and plus, at least ten characters.
const PhonePattern = `^[\+\-\s\(\)\d]{10,}$`

// MaxCallDuration is the longest call accepted, in seconds
const MaxCallDuration = 7200

// UnknownCaller replaces an empty caller name
const UnknownCaller = "Unknown Caller"

const minNameLength = 2

var phoneRe = regexp.MustCompile(PhonePattern)

// ValidPhone reports whether phone has an acceptable format.
func ValidPhone(phone string) bool {
	phone = strings.TrimSpace(phone)
	return phone != "" && phoneRe.MatchString(phone)
}

// ClampDuration maps durations outside [0, MaxCallDuration] to 0.
func ClampDuration(seconds int) int {
	if seconds < 0 || seconds > MaxCallDuration {
		return 0
	}
	return seconds
}

// ValidName reports whether name is long enough to identify a caller.
func ValidName(name string) bool {
	return len([]rune(strings.TrimSpace(name))) >= minNameLength
}

func nameOrUnknown(name string) string {
	if strings.TrimSpace(name) == "" {
		return UnknownCaller
	}
	return name
}

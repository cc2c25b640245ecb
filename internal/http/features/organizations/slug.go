package organizations

import (
	"strings"
	"unicode"
)

// Slugify derives a URL-safe slug from an organization name.
// Lowercases, collapses runs of non-alphanumerics into single hyphens,
// and trims leading/trailing hyphens.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimRight(b.String(), "-")
}

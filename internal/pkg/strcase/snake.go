// Package strcase converts Go identifiers to snake_case, used to turn struct
// field names into the JSON field names reported by validation errors.
package strcase

import (
	"strings"
	"unicode"
)

// ToLowerSnake converts s to snake_case. Initialisms stay intact: "userID"
// becomes "user_id" and "HTTPServer" becomes "http_server".
func ToLowerSnake(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)

	var b strings.Builder
	b.Grow(len(s))

	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			var next rune
			if i+1 < len(runes) {
				next = runes[i+1]
			}

			switch {
			case unicode.IsLower(prev) || unicode.IsDigit(prev):
				// lower/digit followed by upper starts a word.
				b.WriteRune('_')
			case unicode.IsUpper(prev) && next != 0 && unicode.IsLower(next):
				// end of an acronym run.
				b.WriteRune('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}

	return b.String()
}

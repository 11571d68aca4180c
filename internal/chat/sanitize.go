package chat

import (
	"html"
	"regexp"
	"strings"
)

var (
	lineBreakPattern = regexp.MustCompile(`\r\n|\r|\n`)
	scriptPattern    = regexp.MustCompile(`(?is)<script.*?>.*?</script>`)
	tagPattern       = regexp.MustCompile(`(?s)<.*?/?>`)
)

// sanitizeText scrubs untrusted plaintext before it enters a history log:
// line breaks collapse to spaces, script blocks and markup are stripped, the
// remainder is HTML-escaped, and the result is capped at limit runes.
// Encrypted bodies must never pass through here; escaping would corrupt the
// ciphertext.
func sanitizeText(input string, limit int) string {
	cleaned := lineBreakPattern.ReplaceAllString(input, " ")
	cleaned = scriptPattern.ReplaceAllString(cleaned, "")
	cleaned = tagPattern.ReplaceAllString(cleaned, "")
	cleaned = stripControl(cleaned)
	cleaned = html.EscapeString(cleaned)
	if limit > 0 {
		runes := []rune(cleaned)
		if len(runes) > limit {
			cleaned = string(runes[:limit])
		}
	}
	return strings.TrimSpace(cleaned)
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

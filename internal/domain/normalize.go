package domain

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText prepares text for search token computation:
//   - applies Unicode NFC, so composed and decomposed accents compare equal
//   - trims leading/trailing whitespace
//   - converts to lowercase
//   - collapses any run of internal whitespace into a single space
//
// Diacritics, hyphens, and punctuation are preserved.
func NormalizeText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	return strings.Join(strings.Fields(strings.ToLower(norm.NFC.String(text))), " ")
}

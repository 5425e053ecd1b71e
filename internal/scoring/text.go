package scoring

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// NormalizeText lowercases text, collapses whitespace and, when asked,
// strips combining accents (NFKD decomposition).
func NormalizeText(text string, removeAccents bool) string {
	if text == "" {
		return ""
	}
	text = strings.ToLower(text)
	if removeAccents {
		t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
		if folded, _, err := transform.String(t, text); err == nil {
			text = folded
		}
	}
	return strings.Join(strings.Fields(text), " ")
}

// GUID is the stable identifier of an article URL.
func GUID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// ContentHash hashes accent-folded, normalized content so trivially
// reformatted copies collide. Empty content has no hash.
func ContentHash(content string) string {
	if strings.TrimSpace(content) == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(NormalizeText(content, true)))
	return hex.EncodeToString(sum[:])
}

var (
	frenchIndicators = []string{
		"le ", "la ", "les ", "un ", "une ", "des ",
		"est ", "sont ", "dans ", "pour ", "avec ",
		"qui ", "que ", "ce ", "cette ", "ces ",
		" et ", " ou ", " mais ", " donc ",
		"président", "ministre", "gouvernement",
		"élection", "guinée", "guinéen",
	}
	englishIndicators = []string{
		"the ", "a ", "an ", "is ", "are ", "in ",
		"for ", "with ", "and ", "or ", "but ",
		"this ", "that ", "these ", "those ",
		"president", "minister", "government",
		"election", "guinea", "guinean",
	}
)

// DetectLanguage guesses "fr" or "en" by counting indicator substrings.
// Ties and empty text default to French.
func DetectLanguage(text string) string {
	if text == "" {
		return "fr"
	}
	lower := strings.ToLower(text)
	fr, en := 0, 0
	for _, w := range frenchIndicators {
		if strings.Contains(lower, w) {
			fr++
		}
	}
	for _, w := range englishIndicators {
		if strings.Contains(lower, w) {
			en++
		}
	}
	if fr >= en {
		return "fr"
	}
	return "en"
}

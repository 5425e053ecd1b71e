package scoring

import (
	"strings"
	"unicode"
)

// Default summary lengths.
const (
	SentenceSummaryLength = 500
	TruncateSummaryLength = 300
)

var skippedOpenings = []string{"Partager", "Suivez", "Abonnez", "Publicité", "Lire aussi"}

// SentenceSummary keeps leading sentences that fit in maxLen characters,
// skipping short ones and social-share prompts. If that yields less than
// 50 characters the content is cut at the last space instead.
func SentenceSummary(content string, maxLen int) string {
	content = strings.TrimSpace(content)
	if content == "" {
		return ""
	}

	var b strings.Builder
	n := 0
	for _, sentence := range splitSentences(content) {
		sentence = strings.TrimSpace(sentence)
		size := runeLen(sentence)
		if size < 20 || hasAnyPrefix(sentence, skippedOpenings) {
			continue
		}
		if n+size+1 > maxLen {
			break
		}
		if n > 0 {
			b.WriteByte(' ')
			n++
		}
		b.WriteString(sentence)
		n += size
	}

	if n < 50 {
		head := []rune(content)
		if len(head) > maxLen {
			head = head[:maxLen]
		}
		cut := string(head)
		if i := strings.LastIndex(cut, " "); i >= 0 {
			cut = cut[:i]
		}
		return cut + "..."
	}
	return b.String()
}

// TruncateSummary collapses whitespace and cuts text to maxLen characters,
// backing up to the last space when it lies past 70% of the limit.
func TruncateSummary(text string, maxLen int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	summary := string(runes[:maxLen])
	if i := strings.LastIndex(summary, " "); i >= 0 && runeLen(summary[:i]) > maxLen*7/10 {
		summary = summary[:i]
	}
	return strings.TrimSpace(summary) + "..."
}

// splitSentences splits after '.', '!' or '?' when whitespace follows.
func splitSentences(s string) []string {
	var out []string
	runes := []rune(s)
	start := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '.' && runes[i] != '!' && runes[i] != '?' {
			continue
		}
		j := i + 1
		for j < len(runes) && unicode.IsSpace(runes[j]) {
			j++
		}
		if j == i+1 {
			continue
		}
		out = append(out, string(runes[start:i+1]))
		start = j
		i = j - 1
	}
	if start < len(runes) {
		out = append(out, string(runes[start:]))
	}
	return out
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func runeLen(s string) int { return len([]rune(s)) }

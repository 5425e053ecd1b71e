package scoring

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// electionPatterns are matched on lowercased text. Word boundaries are
// checked separately since RE2's \b does not treat accented letters as
// word characters.
var electionPatterns = compileAll(
	`élection[s]?`,
	`election[s]?`,
	`électoral[es]?`,
	`electoral[es]?`,
	`électeur[s]?`,
	`electeur[s]?`,
	`scrutin[s]?`,
	`vote[s]?`,
	`voter`,
	`votant[es]?`,
	`urne[s]?`,
	`candidat[es]?`,
	`candidature[s]?`,
	`suffrage[s]?`,
	`campagne électorale`,
	`campagne electorale`,
	`période électorale`,
	`periode electorale`,
	`bureau[x]? de vote`,
	`bulletin[s]? de vote`,
	`présidentielle[s]?`,
	`presidentielle[s]?`,
	`législative[s]?`,
	`legislative[s]?`,
	`référendum`,
	`referendum`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(p)
	}
	return out
}

// CountElectionMentions returns the total number of whole-word election
// vocabulary matches in text.
func CountElectionMentions(text string) int {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	count := 0
	for _, re := range electionPatterns {
		for _, loc := range re.FindAllStringIndex(lower, -1) {
			if wordBoundary(lower, loc[0], loc[1]) {
				count++
			}
		}
	}
	return count
}

func wordBoundary(s string, start, end int) bool {
	if start > 0 {
		r, _ := utf8.DecodeLastRuneInString(s[:start])
		if isWordRune(r) {
			return false
		}
	}
	if end < len(s) {
		r, _ := utf8.DecodeRuneInString(s[end:])
		if isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

package dedup

import (
	"github.com/blackdavinci/guinea-election-monitor/internal/scoring"
)

const (
	chunkThreshold = 1000
	chunkSize      = 200
	maxChunks      = 5
)

// Ratio is the normalized indel similarity of two strings:
// 2·LCS / (len(a)+len(b)), computed on runes.
func Ratio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return float64(2*lcs(ra, rb)) / float64(total)
}

// lcs returns the longest common subsequence length using two rows.
func lcs(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			switch {
			case a[i-1] == b[j-1]:
				cur[j] = prev[j-1] + 1
			case prev[j] >= cur[j-1]:
				cur[j] = prev[j]
			default:
				cur[j] = cur[j-1]
			}
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

// TitleSimilarity compares accent-folded, lowercased titles.
func TitleSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	na, nb := scoring.NormalizeText(a, true), scoring.NormalizeText(b, true)
	if na == nb {
		return 1
	}
	return Ratio(na, nb)
}

// ContentSimilarity compares normalized bodies. Long bodies are compared
// chunk by chunk over the first few aligned windows.
func ContentSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	na, nb := scoring.NormalizeText(a, true), scoring.NormalizeText(b, true)
	if na == nb {
		return 1
	}
	ra, rb := []rune(na), []rune(nb)
	if len(ra) > chunkThreshold || len(rb) > chunkThreshold {
		return chunkSimilarity(ra, rb)
	}
	return Ratio(na, nb)
}

func chunkSimilarity(a, b []rune) float64 {
	ca, cb := chunks(a), chunks(b)
	n := min(maxChunks, len(ca), len(cb))
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += Ratio(string(ca[i]), string(cb[i]))
	}
	return sum / float64(n)
}

func chunks(r []rune) [][]rune {
	var out [][]rune
	for i := 0; i < len(r); i += chunkSize {
		out = append(out, r[i:min(i+chunkSize, len(r))])
	}
	return out
}

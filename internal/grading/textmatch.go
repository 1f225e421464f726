package grading

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// normalize folds case and collapses runs of whitespace. Punctuation is kept:
// "C++" and "C" are different answers.
func normalize(s string) string {
	fields := strings.FieldsFunc(s, unicode.IsSpace)
	return cases.Fold().String(strings.Join(fields, " "))
}

// accepts reports whether resp matches one of keys, allowing up to maxEdit
// edits when maxEdit > 0. fuzzy is true when only the edit distance matched.
func accepts(keys []string, resp string, maxEdit int) (ok, fuzzy bool) {
	nr := normalize(resp)
	if nr == "" {
		return false, false
	}
	for _, k := range keys {
		if normalize(k) == nr {
			return true, false
		}
	}
	if maxEdit <= 0 {
		return false, false
	}
	for _, k := range keys {
		if levenshtein(normalize(k), nr) <= maxEdit {
			return true, true
		}
	}
	return false, false
}

// levenshtein computes edit distance (insertion, deletion, substitution cost 1).
func levenshtein(a, b string) int {
	ar := []rune(a)
	br := []rune(b)
	n, m := len(ar), len(br)
	if n == 0 {
		return m
	}
	if m == 0 {
		return n
	}
	dp := make([]int, m+1)
	for j := 0; j <= m; j++ {
		dp[j] = j
	}
	for i := 1; i <= n; i++ {
		prev := dp[0]
		dp[0] = i
		for j := 1; j <= m; j++ {
			tmp := dp[j]
			cost := 0
			if ar[i-1] != br[j-1] {
				cost = 1
			}
			dp[j] = min(dp[j]+1, dp[j-1]+1, prev+cost)
			prev = tmp
		}
	}
	return dp[m]
}

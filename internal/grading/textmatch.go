package grading

import (
	"strings"
	"unicode"
)

// normalize trims punctuation and collapses spaces; fold also lowercases.
func normalize(s string, fold bool) string {
	out := make([]rune, 0, len(s))
	space := false
	for _, r := range []rune(s) {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsPunct(r):
			// skip
		default:
			if space && len(out) > 0 {
				out = append(out, ' ')
			}
			space = false
			if fold {
				r = unicode.ToLower(r)
			}
			out = append(out, r)
		}
	}
	return string(out)
}

// wildcardMatch reports whether the normalized response s matches pattern,
// where each * in pattern stands for any run of characters.
func wildcardMatch(pattern, s string, fold bool) bool {
	raw := strings.Split(pattern, "*")
	parts := make([]string, len(raw))
	for i, p := range raw {
		parts[i] = normalize(p, fold)
	}
	if len(parts) == 1 {
		return parts[0] == s
	}

	if !strings.HasPrefix(s, parts[0]) {
		return false
	}
	rest := s[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, p := range parts[1 : len(parts)-1] {
		i := strings.Index(rest, p)
		if i < 0 {
			return false
		}
		rest = rest[i+len(p):]
	}
	return len(rest) >= len(last) && strings.HasSuffix(rest, last)
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

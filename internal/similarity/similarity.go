// Package similarity scores how close two source texts are, as a percentage.
//
// Texts are compared after Unicode NFC normalization, case folding and
// whitespace collapsing; the distance is a rune level Levenshtein distance.
package similarity

import (
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

const (
	// Exact is the score of two identical texts.
	Exact = 100.0
	// NormalizedExact is the score of texts that only differ in case or whitespace,
	// so an identical match always ranks above them.
	NormalizedExact = 99.0
)

// Normalize returns the comparison form of s.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	// Caser хранит состояние, поэтому создаем новый на каждый вызов
	s = cases.Fold().String(s)
	return strings.Join(strings.FieldsFunc(s, unicode.IsSpace), " ")
}

// Length returns the rune length of the normalized form of s.
func Length(s string) int {
	return len([]rune(Normalize(s)))
}

// Score compares two single texts and returns a value in [0, 100].
func Score(a, b string) float64 {
	if a == b {
		return Exact
	}

	na, nb := []rune(Normalize(a)), []rune(Normalize(b))
	if string(na) == string(nb) {
		return NormalizedExact
	}

	longest := max(len(na), len(nb))
	if longest == 0 {
		return Exact
	}

	d := levenshtein(na, nb)
	score := Exact * (1 - float64(d)/float64(longest))
	// 99 is reserved for normalized exact matches
	if score > NormalizedExact-0.01 {
		score = NormalizedExact - 0.01
	}
	return round2(score)
}

// ScoreContents compares two content lists (plural forms). Lists of a
// different size never match; otherwise the result is the mean of the
// per form scores.
func ScoreContents(a, b []string) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var total float64
	for i := range a {
		total += Score(a[i], b[i])
	}
	return round2(total / float64(len(a)))
}

// LengthBounds returns the range of candidate lengths that can still reach
// threshold against a text of length n. ok is false when no bound applies.
func LengthBounds(n int, threshold float64) (lo, hi int, ok bool) {
	if threshold <= 0 || n == 0 {
		return 0, 0, false
	}
	lo = int(math.Floor(float64(n) * threshold / Exact))
	hi = int(math.Ceil(float64(n) * Exact / threshold))
	return lo, hi, true
}

func levenshtein(a, b []rune) int {
	if len(a) < len(b) {
		a, b = b, a
	}
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		cur[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(b)]
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

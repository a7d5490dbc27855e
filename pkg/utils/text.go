package utils

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

var (
	space       = regexp.MustCompile(`\s+`)
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
)

// StopWords is a set of words ignored when counting terms
type StopWords map[string]bool

// NewStopWords returns the stop word set for lang, falling back to fallback
// when lang has no entry.
func NewStopWords(sets map[string][]string, lang, fallback string) StopWords {
	words, ok := sets[strings.ToLower(lang)]
	if !ok {
		words = sets[fallback]
	}
	sw := make(StopWords, len(words))
	for _, w := range words {
		sw[strings.ToLower(w)] = true
	}
	return sw
}

// CleanText removes extra whitespace and normalizes text
func CleanText(text string) string {
	return strings.TrimSpace(space.ReplaceAllString(text, " "))
}

// Tokenize lower-cases text, replaces punctuation with spaces and drops stop
// words and tokens shorter than minLen characters. Text is NFC-normalized first
// so composed and decomposed accents produce the same token.
func Tokenize(text string, stop StopWords, minLen int) []string {
	text = punctuation.ReplaceAllString(strings.ToLower(norm.NFC.String(text)), " ")
	words := strings.Fields(text)
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) < minLen || stop[word] {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

// TermCount is a term with its number of occurrences
type TermCount struct {
	Term  string
	Count int
}

// CountTerms counts tokens and returns the limit most frequent ones, highest
// count first. Ties keep alphabetical order. limit <= 0 returns every term.
func CountTerms(tokens []string, limit int) []TermCount {
	counts := make(map[string]int)
	for _, t := range tokens {
		counts[t]++
	}

	sorted := make([]TermCount, 0, len(counts))
	for k, v := range counts {
		sorted = append(sorted, TermCount{Term: k, Count: v})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Count == sorted[j].Count {
			return sorted[i].Term < sorted[j].Term
		}
		return sorted[i].Count > sorted[j].Count
	})

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

// TruncateText cuts text to at most maxLength characters without splitting a
// multi-byte character.
func TruncateText(text string, maxLength int) string {
	if maxLength <= 0 || utf8.RuneCountInString(text) <= maxLength {
		return text
	}
	n := 0
	for i := range text {
		if n == maxLength {
			return text[:i]
		}
		n++
	}
	return text
}

package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenize(t *testing.T) {
	stop := NewStopWords(map[string][]string{
		"es": {"para", "con"},
		"en": {"with"},
	}, "es", "es")

	tokens := Tokenize("Descalcificador, para agua! Ósmosis-inversa con filtros", stop, 4)

	assert.Equal(t, []string{"descalcificador", "agua", "ósmosis", "inversa", "filtros"}, tokens)
}

func TestTokenizeNormalizesAccents(t *testing.T) {
	decomposed := "o\u0301smosis"
	tokens := Tokenize(decomposed+" ósmosis", nil, 4)
	assert.Equal(t, []string{"ósmosis", "ósmosis"}, tokens)
}

func TestNewStopWordsFallsBack(t *testing.T) {
	stop := NewStopWords(map[string][]string{"es": {"para"}}, "de", "es")
	assert.True(t, stop["para"])
}

func TestCountTerms(t *testing.T) {
	terms := CountTerms([]string{"agua", "filtro", "agua", "osmosis", "filtro", "agua"}, 2)

	assert.Equal(t, []TermCount{{"agua", 3}, {"filtro", 2}}, terms)
}

func TestTruncateText(t *testing.T) {
	assert.Equal(t, "short", TruncateText("short", 500))
	assert.Len(t, []rune(TruncateText(strings.Repeat("é", 600), 500)), 500)
	assert.Equal(t, "abc", TruncateText("abcdef", 3))
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b c", CleanText("  a \n\t b   c "))
}

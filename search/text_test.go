package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"q1", "revenue", "grew", "12"}, Words("Q1 revenue grew 12%."))
	assert.Equal(t, []string{"don", "t", "stop"}, Words("Don't stop!"))
	assert.Empty(t, Words("  ... !!! "))
}

func TestTerms(t *testing.T) {
	assert.Equal(t, []string{"report", "revenue"}, Terms("The report of the revenue"))
}

func TestContentTerms(t *testing.T) {
	assert.Equal(t, []string{"revenue", "grew"}, ContentTerms("Q1 revenue grew 12%."))
	assert.Empty(t, ContentTerms("a an the 2024 is"))
}

func TestWordCount(t *testing.T) {
	tests := map[string]int{
		"":                     0,
		"one":                  1,
		"Q1 revenue grew 12%.": 4,
		"  spaced   out  ":     2,
		"naïve café":           2,
	}
	for text, want := range tests {
		assert.Equal(t, want, WordCount(text), text)
	}
}

func TestSentences(t *testing.T) {
	assert.Equal(t, []string{"One", "Two", "Three"}, Sentences("One. Two!! Three?"))
	assert.Empty(t, Sentences("..."))
}

func TestParagraphs(t *testing.T) {
	text := "first line\nstill first\n\n\n  \nsecond"
	assert.Equal(t, []string{"first line\nstill first", "second"}, Paragraphs(text))
	assert.Empty(t, Paragraphs("\n\n"))
}

func TestIsStopWord(t *testing.T) {
	assert.True(t, IsStopWord("the"))
	assert.False(t, IsStopWord("revenue"))
}

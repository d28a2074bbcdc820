package search

import (
	"strings"
	"unicode"
)

// Stop words excluded from keywords and query terms
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "were": true, "to": true, "of": true, "and": true, "or": true,
	"in": true, "that": true, "have": true, "has": true, "had": true, "it": true,
	"its": true, "for": true, "not": true, "on": true, "with": true, "as": true,
	"you": true, "do": true, "at": true, "this": true, "but": true, "by": true,
	"from": true, "we": true, "they": true, "he": true, "she": true, "i": true,
	"our": true, "their": true, "his": true, "her": true, "will": true, "would": true,
	"can": true, "could": true, "should": true, "may": true, "been": true, "being": true,
	"if": true, "then": true, "than": true, "so": true, "such": true, "these": true,
	"those": true, "there": true, "here": true, "which": true, "who": true, "what": true,
	"when": true, "where": true, "how": true, "all": true, "any": true, "each": true,
	"into": true, "about": true, "also": true, "only": true, "over": true, "more": true,
	"most": true, "other": true, "some": true, "no": true, "yes": true, "up": true,
	"out": true, "my": true, "me": true, "your": true, "us": true, "them": true,
}

// IsStopWord reports whether a lowercase word carries no retrieval signal.
func IsStopWord(word string) bool {
	return stopWords[word]
}

// isWordRune matches the characters of a \w word: letters, digits and underscore.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// Words splits text into lowercase words.
func Words(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !isWordRune(r)
	})
}

// WordCount returns the number of words in text.
func WordCount(text string) int {
	count := 0
	inWord := false
	for _, r := range text {
		if isWordRune(r) {
			if !inWord {
				count++
			}
			inWord = true
		} else {
			inWord = false
		}
	}
	return count
}

// Terms splits text into lowercase words and removes stop words.
func Terms(text string) []string {
	words := Words(text)
	filtered := words[:0]
	for _, word := range words {
		if !stopWords[word] {
			filtered = append(filtered, word)
		}
	}
	return filtered
}

// ContentTerms is Terms restricted to words that can serve as keywords:
// at least three characters and not purely numeric.
func ContentTerms(text string) []string {
	terms := Terms(text)
	filtered := terms[:0]
	for _, term := range terms {
		if len([]rune(term)) >= 3 && !isNumeric(term) {
			filtered = append(filtered, term)
		}
	}
	return filtered
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// Sentences splits text on runs of sentence-ending punctuation and returns
// the trimmed, non-empty pieces.
func Sentences(text string) []string {
	parts := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Paragraphs splits text on blank lines and returns the non-empty paragraphs.
func Paragraphs(text string) []string {
	var (
		out     []string
		current []string
	)
	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, "\n"))
			current = nil
		}
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		current = append(current, line)
	}
	flush()
	return out
}

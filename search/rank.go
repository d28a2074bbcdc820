package search

import (
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docent/core"
)

const (
	titleWeight         = 2.0
	phraseWeight        = 3.0
	metadataWeight      = 1.5
	snippetContext      = 50
	fallbackSnippetSize = 100
)

// Rank scores docs against query and returns the best limit hits, highest
// score first. Ties are broken by document ID so results are stable.
// Returns ErrEmptyQuery if the query contains no words.
func Rank(docs []*core.EnrichedDocument, query string, limit int) ([]core.SearchHit, error) {
	terms := Words(query)
	if len(terms) == 0 {
		return nil, ErrEmptyQuery
	}

	type scored struct {
		doc   *core.EnrichedDocument
		text  string
		score float64
	}
	var candidates []scored
	for _, doc := range docs {
		text := doc.Text()
		if s := Score(doc, text, query, terms); s > 0 {
			candidates = append(candidates, scored{doc: doc, text: text, score: s})
		}
	}

	slices.SortFunc(candidates, func(a, b scored) int {
		if a.score != b.score {
			if a.score > b.score {
				return -1
			}
			return 1
		}
		return strings.Compare(string(a.doc.ID), string(b.doc.ID))
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	hits := make([]core.SearchHit, 0, len(candidates))
	for _, c := range candidates {
		hits = append(hits, core.SearchHit{
			DocumentID: c.doc.ID,
			Title:      c.doc.Title,
			Score:      math.Round(c.score*100) / 100,
			Snippet:    Snippet(c.text, terms),
		})
	}
	return hits, nil
}

// Score computes the relevance of one document. text is the document's joined
// raw text and terms the lowercase words of query.
func Score(doc *core.EnrichedDocument, text, query string, terms []string) float64 {
	textLower := strings.ToLower(text)
	titleLower := strings.ToLower(doc.Title)

	phrase := float64(strings.Count(textLower, strings.ToLower(strings.TrimSpace(query)))) * phraseWeight

	var termScore, titleScore, metadata float64
	for _, term := range terms {
		termScore += float64(strings.Count(textLower, term))
		titleScore += float64(strings.Count(titleLower, term))
		if containsSubstring(doc.Keywords, term) {
			metadata++
		}
		if containsSubstring(doc.Topics, term) {
			metadata++
		}
	}

	score := termScore + titleScore*titleWeight + phrase + metadata*metadataWeight
	if words := WordCount(text); words > 0 {
		score /= math.Sqrt(float64(words))
	}
	return score
}

func containsSubstring(values []string, term string) bool {
	return slices.ContainsFunc(values, func(v string) bool {
		return strings.Contains(strings.ToLower(v), term)
	})
}

// Snippet returns up to 50 characters of context on each side of the first
// whole-word match of any term, tried in order. Without a match it falls
// back to the start of the text.
func Snippet(text string, terms []string) string {
	for _, term := range terms {
		start, end, ok := findWord(text, term)
		if !ok {
			continue
		}
		from := backRunes(text, start, snippetContext)
		to := forwardRunes(text, end, snippetContext)
		if context := strings.TrimSpace(text[from:to]); context != "" {
			return "..." + context + "..."
		}
	}
	if text == "" {
		return ""
	}
	if utf8.RuneCountInString(text) <= fallbackSnippetSize {
		return text
	}
	return text[:forwardRunes(text, 0, fallbackSnippetSize)] + "..."
}

// findWord locates the first case-insensitive whole-word occurrence of term.
// Offsets index into text.
func findWord(text, term string) (int, int, bool) {
	lower := strings.ToLower(text)
	// Lowercasing can change byte lengths; fall back to an exact-case search then
	if len(lower) != len(text) {
		lower = text
	}
	offset := 0
	for {
		i := strings.Index(lower[offset:], term)
		if i < 0 {
			return 0, 0, false
		}
		start := offset + i
		end := start + len(term)
		before, _ := utf8.DecodeLastRuneInString(lower[:start])
		after, _ := utf8.DecodeRuneInString(lower[end:])
		if (start == 0 || !isWordRune(before)) && (end == len(lower) || !isWordRune(after)) {
			return start, end, true
		}
		offset = start + 1
	}
}

func backRunes(s string, from, n int) int {
	for i := 0; i < n && from > 0; i++ {
		_, size := utf8.DecodeLastRuneInString(s[:from])
		from -= size
	}
	return from
}

func forwardRunes(s string, from, n int) int {
	for i := 0; i < n && from < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[from:])
		from += size
	}
	return from
}

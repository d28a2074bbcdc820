package tools

import (
	"cmp"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/search"
)

// ReadingWordsPerMinute is the reading speed used for time estimates.
const ReadingWordsPerMinute = 225

const mostCommonWords = 10

// WordFrequency is a word and how often it occurs.
type WordFrequency struct {
	Word  string `json:"word"`
	Count int    `json:"count"`
}

// Stats is the result of document_stats.
type Stats struct {
	DocumentID         core.DocumentID `json:"document_id"`
	Title              string          `json:"title"`
	Length             int             `json:"length"`
	KeywordCount       int             `json:"keyword_count"`
	TopicCount         int             `json:"topic_count"`
	SizeBytes          int64           `json:"size_bytes"`
	WordCount          int             `json:"word_count"`
	UniqueWordCount    int             `json:"unique_word_count"`
	SentenceCount      int             `json:"sentence_count"`
	ParagraphCount     int             `json:"paragraph_count"`
	AvgWordLength      float64         `json:"average_word_length"`
	AvgSentenceLength  float64         `json:"average_sentence_length"`
	AvgParagraphLength float64         `json:"average_paragraph_length"`
	ReadingMinutes     float64         `json:"estimated_reading_minutes"`
	VocabularyRichness float64         `json:"vocabulary_richness"`
	MostCommonWords    []WordFrequency `json:"most_common_words"`
}

// ComputeStats derives text statistics for doc.
func ComputeStats(doc *core.EnrichedDocument) Stats {
	text := doc.Text()
	words := search.Words(text)
	wordCount := len(words)
	length := utf8.RuneCountInString(text)
	sentences := max(1, len(search.Sentences(text)))
	paragraphs := max(1, len(search.Paragraphs(text)))

	unique := make(map[string]bool, len(words))
	for _, w := range words {
		unique[w] = true
	}

	return Stats{
		DocumentID:         doc.ID,
		Title:              doc.Title,
		Length:             length,
		KeywordCount:       len(doc.Keywords),
		TopicCount:         len(doc.Topics),
		SizeBytes:          sizeBytes(doc),
		WordCount:          wordCount,
		UniqueWordCount:    len(unique),
		SentenceCount:      sentences,
		ParagraphCount:     paragraphs,
		AvgWordLength:      round(float64(length)/float64(max(1, wordCount)), 2),
		AvgSentenceLength:  round(float64(wordCount)/float64(sentences), 2),
		AvgParagraphLength: round(float64(wordCount)/float64(paragraphs), 2),
		ReadingMinutes:     round(float64(wordCount)/ReadingWordsPerMinute, 2),
		VocabularyRichness: round(float64(len(unique))/float64(max(1, wordCount)), 4),
		MostCommonWords:    topWords(search.ContentTerms(text), mostCommonWords),
	}
}

func topWords(terms []string, limit int) []WordFrequency {
	counts := make(map[string]int)
	for _, t := range terms {
		counts[t]++
	}
	out := make([]WordFrequency, 0, len(counts))
	for w, c := range counts {
		out = append(out, WordFrequency{Word: w, Count: c})
	}
	slices.SortFunc(out, func(a, b WordFrequency) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return strings.Compare(a.Word, b.Word)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// ComparedDocument describes one side of a comparison.
type ComparedDocument struct {
	DocumentID     core.DocumentID `json:"document_id"`
	Title          string          `json:"title"`
	SizeBytes      int64           `json:"size_bytes"`
	WordCount      int             `json:"word_count"`
	UniqueTopics   []string        `json:"unique_topics"`
	UniqueKeywords []string        `json:"unique_keywords"`
}

// Comparison is the result of compare_documents. Documents are ordered by
// id, so swapping the arguments yields the same value.
type Comparison struct {
	Documents           [2]ComparedDocument `json:"documents"`
	SharedTopics        []string            `json:"shared_topics"`
	SharedKeywords      []string            `json:"shared_keywords"`
	SizeDifference      int64               `json:"size_difference_bytes"`
	WordCountDifference int                 `json:"word_count_difference"`
	CommonSentences     int                 `json:"common_sentences"`
	SimilarityRatio     float64             `json:"similarity_ratio"`
}

// Compare contrasts two documents.
func Compare(a, b *core.EnrichedDocument) Comparison {
	if b.ID < a.ID {
		a, b = b, a
	}

	sharedTopics, onlyATopics, onlyBTopics := partition(a.Topics, b.Topics)
	sharedKeywords, onlyAKeywords, onlyBKeywords := partition(a.Keywords, b.Keywords)

	textA, textB := a.Text(), b.Text()
	wordsA, wordsB := search.WordCount(textA), search.WordCount(textB)
	sizeA, sizeB := sizeBytes(a), sizeBytes(b)

	sentencesA, sentencesB := sentenceSet(textA), sentenceSet(textB)
	common := 0
	for s := range sentencesA {
		if sentencesB[s] {
			common++
		}
	}
	similarity := float64(common) / math.Max(1, float64(len(sentencesA)+len(sentencesB))/2)

	return Comparison{
		Documents: [2]ComparedDocument{
			{DocumentID: a.ID, Title: a.Title, SizeBytes: sizeA, WordCount: wordsA, UniqueTopics: onlyATopics, UniqueKeywords: onlyAKeywords},
			{DocumentID: b.ID, Title: b.Title, SizeBytes: sizeB, WordCount: wordsB, UniqueTopics: onlyBTopics, UniqueKeywords: onlyBKeywords},
		},
		SharedTopics:        sharedTopics,
		SharedKeywords:      sharedKeywords,
		SizeDifference:      abs(sizeA - sizeB),
		WordCountDifference: int(abs(int64(wordsA - wordsB))),
		CommonSentences:     common,
		SimilarityRatio:     round(similarity, 2),
	}
}

// partition splits two string sets into shared, only-in-a and only-in-b,
// each sorted.
func partition(a, b []string) (shared, onlyA, onlyB []string) {
	inA := make(map[string]bool, len(a))
	for _, s := range a {
		inA[s] = true
	}
	inB := make(map[string]bool, len(b))
	for _, s := range b {
		inB[s] = true
	}
	shared, onlyA, onlyB = []string{}, []string{}, []string{}
	for s := range inA {
		if inB[s] {
			shared = append(shared, s)
		} else {
			onlyA = append(onlyA, s)
		}
	}
	for s := range inB {
		if !inA[s] {
			onlyB = append(onlyB, s)
		}
	}
	slices.Sort(shared)
	slices.Sort(onlyA)
	slices.Sort(onlyB)
	return shared, onlyA, onlyB
}

func sentenceSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, s := range search.Sentences(text) {
		set[strings.Join(strings.Fields(s), " ")] = true
	}
	return set
}

func sizeBytes(doc *core.EnrichedDocument) int64 {
	n, err := strconv.ParseInt(doc.ExtractionMetadata[core.MetaSize], 10, 64)
	if err != nil {
		return int64(len(doc.Text()))
	}
	return n
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

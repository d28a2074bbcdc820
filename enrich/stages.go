package enrich

import (
	"cmp"
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/poiesic/docent/ai"
	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/search"
)

const (
	MaxKeywords      = 15
	MaxTopics        = 10
	MaxSummaryLength = 1200 // characters
	MaxPromptContent = 8000 // characters of document text sent to the provider

	topicsMaxTokens  = 200
	summaryMaxTokens = 400
)

// Stage is one step of the pipeline. Apply receives the document produced by
// the previous stage and returns the next version. It must not persist
// anything.
type Stage interface {
	Name() string
	Apply(ctx context.Context, doc core.EnrichedDocument) (core.EnrichedDocument, error)
}

// metadataStage derives the title and tidies extraction metadata.
type metadataStage struct{}

func (metadataStage) Name() string { return "metadata" }

func (metadataStage) Apply(_ context.Context, doc core.EnrichedDocument) (core.EnrichedDocument, error) {
	meta := make(map[string]string, len(doc.ExtractionMetadata))
	for k, v := range doc.ExtractionMetadata {
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		meta[k] = v
	}
	doc.ExtractionMetadata = meta
	doc.Title = titleFor(doc.SourcePath, meta)
	return doc, nil
}

// titleFor prefers an embedded title and falls back to the file name.
func titleFor(sourcePath string, meta map[string]string) string {
	if title := meta[core.MetaTitle]; title != "" {
		return title
	}
	name := meta[core.MetaFilename]
	if name == "" {
		name = filepath.Base(sourcePath)
	}
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.NewReplacer("_", " ", "-", " ").Replace(name)
	if name = strings.Join(strings.Fields(name), " "); name != "" {
		return name
	}
	return filepath.Base(sourcePath)
}

// keywordStage ranks content terms by frequency.
type keywordStage struct{}

func (keywordStage) Name() string { return "keywords" }

func (keywordStage) Apply(_ context.Context, doc core.EnrichedDocument) (core.EnrichedDocument, error) {
	doc.Keywords = ExtractKeywords(doc.Text(), MaxKeywords)
	return doc, nil
}

// ExtractKeywords returns up to limit distinct content terms of text, most
// frequent first. Ties are broken alphabetically so the result is stable.
func ExtractKeywords(text string, limit int) []string {
	counts := make(map[string]int)
	for _, term := range search.ContentTerms(text) {
		counts[term]++
	}

	type termCount struct {
		term  string
		count int
	}
	ranked := make([]termCount, 0, len(counts))
	for term, count := range counts {
		ranked = append(ranked, termCount{term, count})
	}
	slices.SortFunc(ranked, func(a, b termCount) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return strings.Compare(a.term, b.term)
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	keywords := make([]string, len(ranked))
	for i, tc := range ranked {
		keywords[i] = tc.term
	}
	return keywords
}

// topicStage asks the provider for topic labels.
type topicStage struct {
	p *Pipeline
}

func (topicStage) Name() string { return "topics" }

func (s topicStage) Apply(ctx context.Context, doc core.EnrichedDocument) (core.EnrichedDocument, error) {
	prompt := fmt.Sprintf(topicsPrompt, MaxTopics, doc.Title, strings.Join(doc.Keywords, ", "), promptContent(doc.Text()))
	opts := ai.GenerateOptions{Temperature: 0, MaxTokens: topicsMaxTokens, JSON: true}

	var topics []string
	err := s.p.retry(ctx, func() error {
		response, err := s.p.generator.Generate(ctx, prompt, opts)
		if err != nil {
			return err
		}
		var parsed struct {
			Topics []string `json:"topics"`
		}
		if err := ai.DecodeJSON(response, &parsed); err != nil {
			return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		topics = normalizeTopics(parsed.Topics)
		if len(topics) == 0 {
			return fmt.Errorf("%w: no topics", ErrMalformedResponse)
		}
		return nil
	})
	if err != nil {
		return doc, err
	}
	doc.Topics = topics
	return doc, nil
}

// normalizeTopics trims labels, drops case-insensitive duplicates and caps
// the list, keeping the provider's order.
func normalizeTopics(raw []string) []string {
	seen := make(map[string]bool, len(raw))
	topics := make([]string, 0, len(raw))
	for _, t := range raw {
		t = strings.Join(strings.Fields(t), " ")
		key := strings.ToLower(t)
		if t == "" || seen[key] {
			continue
		}
		seen[key] = true
		topics = append(topics, t)
		if len(topics) == MaxTopics {
			break
		}
	}
	return topics
}

// summaryStage asks the provider for a bounded summary.
type summaryStage struct {
	p *Pipeline
}

func (summaryStage) Name() string { return "summary" }

func (s summaryStage) Apply(ctx context.Context, doc core.EnrichedDocument) (core.EnrichedDocument, error) {
	prompt := fmt.Sprintf(summaryPrompt, doc.Title, promptContent(doc.Text()))
	opts := ai.GenerateOptions{Temperature: 0.2, MaxTokens: summaryMaxTokens}

	var summary string
	err := s.p.retry(ctx, func() error {
		response, err := s.p.generator.Generate(ctx, prompt, opts)
		if err != nil {
			return err
		}
		summary = Truncate(strings.TrimSpace(ai.StripCodeFences(response)), MaxSummaryLength)
		if summary == "" {
			return fmt.Errorf("%w: empty summary", ErrMalformedResponse)
		}
		return nil
	})
	if err != nil {
		return doc, err
	}
	doc.Summary = summary
	return doc, nil
}

func promptContent(text string) string {
	return Truncate(text, MaxPromptContent)
}

// Truncate shortens s to at most limit characters, cutting at a rune
// boundary.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i]
		}
		count++
	}
	return s
}

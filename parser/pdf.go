package parser

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/poiesic/docent/core"
)

// PDFParser extracts text per page. Each page becomes one segment.
type PDFParser struct{}

// NewPDFParser creates a PDF strategy.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

// CanHandle accepts PDF.
func (p *PDFParser) CanHandle(format core.Format) bool {
	return format == core.FormatPDF
}

// Extract validates the file structure, then pulls plain text from each page.
// Pages without extractable text are skipped, so a scanned PDF yields no
// segments and is rejected by the registry.
func (p *PDFParser) Extract(ctx context.Context, path string) (doc *core.ParsedDocument, err error) {
	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("read page count: %w", err)
	}

	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	// The text extractor panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = fmt.Errorf("extract text: %v", rec)
		}
	}()

	var segments []core.Segment
	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("page %d: %w", i, err)
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		segments = append(segments, core.Segment{Label: "page " + strconv.Itoa(i), Text: text})
	}

	meta := map[string]string{core.MetaPages: strconv.Itoa(pageCount)}
	info := r.Trailer().Key("Info")
	if title := strings.TrimSpace(info.Key("Title").Text()); title != "" {
		meta[core.MetaTitle] = title
	}
	if author := strings.TrimSpace(info.Key("Author").Text()); author != "" {
		meta[core.MetaAuthor] = author
	}

	return &core.ParsedDocument{
		RawText:            segments,
		ExtractionMetadata: meta,
	}, nil
}

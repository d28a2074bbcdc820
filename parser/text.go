package parser

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/poiesic/docent/core"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

var (
	bomUTF8    = []byte{0xEF, 0xBB, 0xBF}
	bomUTF16LE = []byte{0xFF, 0xFE}
	bomUTF16BE = []byte{0xFE, 0xFF}
)

// ErrUndecodable is returned when no configured encoding accepts the content.
var ErrUndecodable = errors.New("content matches no supported encoding")

// TextEncoding is one decoding attempt of the text strategy.
// Decode reports false if the content is not valid in this encoding.
type TextEncoding struct {
	Name   string
	Decode func(content []byte) (string, bool)
}

// UTF16 accepts content that starts with a UTF-16 byte-order mark.
var UTF16 = TextEncoding{Name: "utf-16", Decode: func(content []byte) (string, bool) {
	if !bytes.HasPrefix(content, bomUTF16LE) && !bytes.HasPrefix(content, bomUTF16BE) {
		return "", false
	}
	return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), content)
}}

// UTF8 accepts valid UTF-8, dropping a leading byte-order mark.
var UTF8 = TextEncoding{Name: "utf-8", Decode: func(content []byte) (string, bool) {
	content = bytes.TrimPrefix(content, bomUTF8)
	if !utf8.Valid(content) {
		return "", false
	}
	return string(content), true
}}

// Latin1 accepts any byte sequence.
var Latin1 = TextEncoding{Name: "latin-1", Decode: func(content []byte) (string, bool) {
	return decodeWith(charmap.ISO8859_1, content)
}}

func decodeWith(enc encoding.Encoding, content []byte) (string, bool) {
	out, err := enc.NewDecoder().Bytes(content)
	if err != nil {
		return "", false
	}
	return string(out), true
}

// TextParser extracts plain text, Markdown, CSV and JSON files.
type TextParser struct {
	encodings []TextEncoding
}

// NewTextParser creates a text strategy. With no encodings it tries UTF-16
// (BOM only), then UTF-8, then Latin-1.
func NewTextParser(encodings ...TextEncoding) *TextParser {
	if len(encodings) == 0 {
		encodings = []TextEncoding{UTF16, UTF8, Latin1}
	}
	return &TextParser{encodings: encodings}
}

// CanHandle accepts the text-like formats.
func (p *TextParser) CanHandle(format core.Format) bool {
	switch format {
	case core.FormatText, core.FormatMarkdown, core.FormatCSV, core.FormatJSON:
		return true
	}
	return false
}

// Extract decodes the file with the first encoding that accepts it.
func (p *TextParser) Extract(ctx context.Context, path string) (*core.ParsedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	for _, enc := range p.encodings {
		text, ok := enc.Decode(content)
		if !ok {
			continue
		}
		text = strings.ReplaceAll(text, "\r\n", "\n")
		return &core.ParsedDocument{
			RawText: []core.Segment{{Label: "body", Text: text}},
			ExtractionMetadata: map[string]string{
				core.MetaEncoding: enc.Name,
				core.MetaLines:    strconv.Itoa(strings.Count(text, "\n") + 1),
			},
		}, nil
	}
	return nil, ErrUndecodable
}

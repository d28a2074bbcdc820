package parser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/poiesic/docent/core"
	"github.com/poiesic/docent/search"
)

// Parser is one extraction strategy.
type Parser interface {
	// CanHandle reports whether the strategy extracts the given format.
	CanHandle(format core.Format) bool

	// Extract reads the file at path and returns its text segments and
	// format-specific metadata. SourcePath, Format and ContentHash are
	// filled in by the Registry.
	Extract(ctx context.Context, path string) (*core.ParsedDocument, error)
}

var mimeTypes = map[core.Format]string{
	core.FormatText:     "text/plain",
	core.FormatMarkdown: "text/markdown",
	core.FormatCSV:      "text/csv",
	core.FormatJSON:     "application/json",
	core.FormatPDF:      "application/pdf",
	core.FormatDOCX:     "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
}

// Registry dispatches files to the first matching strategy.
// Strategies are registered at startup; Parse is safe for concurrent use
// once registration is complete.
type Registry struct {
	parsers []Parser
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger
		return nil
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...Option) (*Registry, error) {
	r := &Registry{logger: slog.Default()}
	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}
	r.logger = r.logger.With("component", "parser")
	return r, nil
}

// NewDefaultRegistry creates a registry with the built-in strategies:
// PDF, DOCX, then text for the remaining text-like formats.
func NewDefaultRegistry(opts ...Option) (*Registry, error) {
	r, err := NewRegistry(opts...)
	if err != nil {
		return nil, err
	}
	r.Register(NewPDFParser())
	r.Register(NewDOCXParser())
	r.Register(NewTextParser())
	return r, nil
}

// Register appends a strategy. Earlier registrations win ties.
func (r *Registry) Register(p Parser) {
	r.parsers = append(r.parsers, p)
}

// Supports reports whether some registered strategy handles format.
func (r *Registry) Supports(format core.Format) bool {
	return r.lookup(format) != nil
}

func (r *Registry) lookup(format core.Format) Parser {
	if format == "" {
		return nil
	}
	for _, p := range r.parsers {
		if p.CanHandle(format) {
			return p
		}
	}
	return nil
}

// Parse extracts the file at sourcePath. formatHint overrides the format
// derived from the file extension when non-empty.
func (r *Registry) Parse(ctx context.Context, sourcePath string, formatHint core.Format) (*core.ParsedDocument, error) {
	format := formatHint
	if format == "" {
		format = core.FormatFromExtension(filepath.Ext(sourcePath))
	}

	p := r.lookup(format)
	if p == nil {
		r.logger.Debug("no strategy for file", "path", sourcePath, "format", format)
		return nil, fmt.Errorf("%w: %s", core.ErrUnsupportedFormat, sourcePath)
	}

	absPath, err := filepath.Abs(sourcePath)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return nil, &core.ParseError{Path: absPath, Format: format, Err: err}
	}
	if info.IsDir() {
		return nil, &core.ParseError{Path: absPath, Format: format, Err: errors.New("is a directory")}
	}

	hash, err := HashFile(absPath)
	if err != nil {
		return nil, &core.ParseError{Path: absPath, Format: format, Err: err}
	}

	doc, err := p.Extract(ctx, absPath)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var pe *core.ParseError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &core.ParseError{Path: absPath, Format: format, Err: err}
	}
	if !core.HasText(doc.RawText) {
		return nil, &core.ParseError{Path: absPath, Format: format, Err: errors.New("no extractable text")}
	}

	doc.SourcePath = absPath
	doc.Format = format
	doc.ContentHash = hash
	if doc.ExtractionMetadata == nil {
		doc.ExtractionMetadata = make(map[string]string)
	}
	meta := doc.ExtractionMetadata
	meta[core.MetaFilename] = filepath.Base(absPath)
	meta[core.MetaSize] = strconv.FormatInt(info.Size(), 10)
	meta[core.MetaModified] = info.ModTime().UTC().Format(time.RFC3339)
	meta[core.MetaMIME] = mimeTypes[format]
	meta[core.MetaWords] = strconv.Itoa(search.WordCount(doc.Text()))

	r.logger.Debug("parsed file", "path", absPath, "format", format, "segments", len(doc.RawText))
	return doc, nil
}

// HashFile returns the content hash of the file at path.
func HashFile(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return core.ContentHash(content), nil
}

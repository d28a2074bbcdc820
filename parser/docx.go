package parser

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/poiesic/docent/core"
)

const (
	docxBodyPart = "word/document.xml"
	docxCorePart = "docProps/core.xml"
)

// DOCXParser extracts word-processing documents.
// Body paragraphs and table rows are returned as separate segments.
type DOCXParser struct{}

// NewDOCXParser creates a DOCX strategy.
func NewDOCXParser() *DOCXParser {
	return &DOCXParser{}
}

// CanHandle accepts DOCX.
func (p *DOCXParser) CanHandle(format core.Format) bool {
	return format == core.FormatDOCX
}

// Extract reads word/document.xml and docProps/core.xml from the archive.
func (p *DOCXParser) Extract(ctx context.Context, path string) (*core.ParsedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer archive.Close()

	var body, props *zip.File
	for _, f := range archive.File {
		switch f.Name {
		case docxBodyPart:
			body = f
		case docxCorePart:
			props = f
		}
	}
	if body == nil {
		return nil, errors.New("missing " + docxBodyPart)
	}

	rc, err := body.Open()
	if err != nil {
		return nil, err
	}
	content, err := parseDocumentXML(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", docxBodyPart, err)
	}

	meta := map[string]string{
		core.MetaParagraphs: strconv.Itoa(content.paragraphs),
		core.MetaTables:     strconv.Itoa(content.tables),
	}
	if props != nil {
		if cp, err := readCoreProperties(props); err == nil {
			if cp.Title != "" {
				meta[core.MetaTitle] = cp.Title
			}
			if cp.Creator != "" {
				meta[core.MetaAuthor] = cp.Creator
			}
			if cp.Created != "" {
				meta[core.MetaCreated] = cp.Created
			}
		}
	}

	var segments []core.Segment
	if len(content.body) > 0 {
		segments = append(segments, core.Segment{Label: "body", Text: strings.Join(content.body, "\n\n")})
	}
	if len(content.rows) > 0 {
		segments = append(segments, core.Segment{Label: "tables", Text: strings.Join(content.rows, "\n")})
	}

	return &core.ParsedDocument{
		RawText:            segments,
		ExtractionMetadata: meta,
	}, nil
}

type docxContent struct {
	body       []string // Non-empty paragraphs outside tables
	rows       []string // Table rows, cells joined with " | "
	paragraphs int      // All body paragraphs, including empty ones
	tables     int
}

// parseDocumentXML walks the WordprocessingML token stream. Element names
// are matched on their local part so the w: namespace prefix is irrelevant.
func parseDocumentXML(r io.Reader) (*docxContent, error) {
	dec := xml.NewDecoder(r)
	var (
		out      docxContent
		para     strings.Builder
		inText   bool
		tblDepth int
		row      []string
		cell     []string
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tblDepth++
				if tblDepth == 1 {
					out.tables++
				}
			case "tr":
				row = nil
			case "tc":
				cell = nil
			case "p":
				para.Reset()
			case "t":
				inText = true
			case "tab":
				para.WriteByte('\t')
			case "br", "cr":
				para.WriteByte('\n')
			}

		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				text := strings.TrimSpace(para.String())
				if tblDepth > 0 {
					if text != "" {
						cell = append(cell, text)
					}
					continue
				}
				out.paragraphs++
				if text != "" {
					out.body = append(out.body, text)
				}
			case "tc":
				row = append(row, strings.Join(cell, " "))
			case "tr":
				if line := strings.TrimSpace(strings.Join(row, " | ")); strings.Trim(line, "| ") != "" {
					out.rows = append(out.rows, line)
				}
			case "tbl":
				tblDepth--
			}

		case xml.CharData:
			if inText {
				para.Write(t)
			}
		}
	}
	return &out, nil
}

type coreProperties struct {
	Title   string `xml:"title"`
	Creator string `xml:"creator"`
	Created string `xml:"created"`
}

func readCoreProperties(f *zip.File) (*coreProperties, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var cp coreProperties
	if err := xml.NewDecoder(rc).Decode(&cp); err != nil {
		return nil, err
	}
	cp.Title = strings.TrimSpace(cp.Title)
	cp.Creator = strings.TrimSpace(cp.Creator)
	cp.Created = strings.TrimSpace(cp.Created)
	return &cp, nil
}

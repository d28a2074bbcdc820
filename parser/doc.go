// Package parser turns source files into core.ParsedDocument values.
//
// A Registry holds an ordered list of strategies. Parse selects the first
// strategy whose CanHandle accepts the file's format, so more specific
// strategies must be registered before general ones. A file with no matching
// strategy fails with core.ErrUnsupportedFormat; a matching strategy that
// cannot extract text fails with a *core.ParseError.
//
// The registry fills in the metadata every format shares (size, modification
// time, MIME type, file name) and the content hash. Strategies only extract
// text segments and format-specific metadata.
package parser

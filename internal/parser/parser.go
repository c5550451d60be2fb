package parser

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Document is a parsed label document: an optional title and the heading
// delimited blocks in reading order.
type Document struct {
	Title  string  // From <title>, document metadata, or the first short line
	Blocks []Block // Blocks in document order
}

// Block is the text under one heading. The first block of a document may
// have no heading.
type Block struct {
	Heading string
	Level   int // 1 for top-level headings; 0 for the untitled preamble
	Text    string
}

// Parser converts raw document bytes into a Document.
type Parser interface {
	Parse(r io.Reader, filename string) (*Document, error)
}

// SupportedExtensions lists label document extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".pdf":      true,
	".docx":     true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".txt":
		return &TextParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".pdf":
		return &PDFParser{FallbackPdftotext: true}, nil
	case ".docx":
		return &DOCXParser{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// builder accumulates blocks while a parser walks its input.
type builder struct {
	doc     *Document
	heading string
	level   int
	base    int // level of the last structural heading
	text    strings.Builder
	started bool
}

func newBuilder(title string) *builder {
	return &builder{doc: &Document{Title: title}}
}

func (b *builder) flush() {
	t := strings.TrimSpace(b.text.String())
	if t != "" || b.started {
		b.doc.Blocks = append(b.doc.Blocks, Block{Heading: b.heading, Level: b.level, Text: t})
	}
	b.text.Reset()
}

// startHeading closes the current block and opens a new one.
func (b *builder) startHeading(title string, level int) {
	b.open(title, level)
	b.base = level
}

// startInline opens a section named inside running text, one level below
// the enclosing structural heading.
func (b *builder) startInline(title string) {
	b.open(title, b.base+1)
}

func (b *builder) open(title string, level int) {
	b.flush()
	b.heading = strings.TrimSpace(title)
	b.level = level
	b.started = true
}

// paragraph appends a paragraph to the current block. A paragraph that opens
// with a known section name and a colon ("Warnings: ...") starts that section.
func (b *builder) paragraph(t string) {
	t = strings.TrimSpace(t)
	if t == "" {
		return
	}
	if heading, rest, ok := inlineHeading(t); ok {
		b.startInline(heading)
		t = rest
	}
	if b.text.Len() > 0 {
		b.text.WriteString("\n\n")
	}
	b.text.WriteString(t)
}

func (b *builder) finish() *Document {
	b.flush()
	return b.doc
}

func stem(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

package parser

import (
	"bufio"
	"io"
	"strings"
)

// TextParser handles plain text label files. Section headings are detected
// from standalone lines ("WARNINGS", "2 DOSAGE AND ADMINISTRATION") and from
// "Heading: text" lines.
type TextParser struct{}

func (p *TextParser) Parse(r io.Reader, filename string) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return parseLines(lines), nil
}

// parseLines builds a Document from plain text lines. It is shared by the
// text, PDF and DOCX parsers.
func parseLines(lines []string) *Document {
	b := newBuilder("")
	var para strings.Builder
	flushPara := func() {
		if para.Len() > 0 {
			b.paragraph(para.String())
			para.Reset()
		}
	}

	first := true
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flushPara()
			continue
		}
		if first {
			first = false
			if isTitleLine(trimmed) {
				b.doc.Title = trimmed
				continue
			}
		}
		if level, ok := lineHeading(trimmed); ok {
			flushPara()
			b.startHeading(strings.TrimRight(trimmed, ": "), level)
			continue
		}
		if heading, rest, ok := inlineHeading(trimmed); ok {
			flushPara()
			b.startInline(heading)
			trimmed = rest
		}
		if para.Len() > 0 {
			para.WriteString("\n")
		}
		para.WriteString(trimmed)
	}
	flushPara()
	return b.finish()
}

package parser

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/dgallion1/medrag/internal/label"
)

var metaLineRe = regexp.MustCompile(`(?im)^\s*(brand name|drug name|drug|generic name|active ingredients?)\s*:\s*(.+?)\s*$`)

// ParseLabelFile reads a label document from disk.
func ParseLabelFile(path string) (*label.DrugLabel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseLabel(data, path)
}

// ParseLabel parses a label document and maps its headings onto the label
// sections. It fails when no section can be recognized.
func ParseLabel(data []byte, filename string) (*label.DrugLabel, error) {
	p, err := ForFile(filename)
	if err != nil {
		return nil, err
	}
	doc, err := p.Parse(bytes.NewReader(data), filename)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", filename, err)
	}
	l := ToLabel(doc, filename)
	if !l.HasContent() {
		return nil, fmt.Errorf("%s: no label sections found", filename)
	}
	return l, nil
}

// ToLabel assigns document blocks to label sections. A recognized heading
// opens its section; deeper unrecognized headings stay inside it, and an
// unrecognized heading at the same or a shallower level closes it. Text
// outside any section is scanned for "Brand Name:" style identity lines.
func ToLabel(doc *Document, source string) *label.DrugLabel {
	l := &label.DrugLabel{Source: source, Query: stem(source)}
	firstHeading := ""

	current, currentLevel := "", 0
	for _, b := range doc.Blocks {
		if b.Heading != "" {
			if firstHeading == "" {
				firstHeading = b.Heading
			}
			if section := ClassifyHeading(b.Heading); section != "" {
				current, currentLevel = section, b.Level
				l.SetSection(current, b.Text)
				continue
			}
			if current != "" && b.Level > currentLevel {
				l.SetSection(current, strings.TrimSpace(b.Heading+"\n"+b.Text))
				continue
			}
			current = ""
		}
		if current == "" {
			readIdentity(l, b.Text)
			continue
		}
		l.SetSection(current, b.Text)
	}

	if l.BrandName == "" {
		switch {
		case doc.Title != "" && ClassifyHeading(doc.Title) == "":
			l.BrandName = doc.Title
		case firstHeading != "" && ClassifyHeading(firstHeading) == "":
			l.BrandName = firstHeading
		}
	}
	l.BrandName = strings.TrimSpace(l.BrandName)
	return l
}

func readIdentity(l *label.DrugLabel, text string) {
	for _, m := range metaLineRe.FindAllStringSubmatch(text, -1) {
		key, value := strings.ToLower(m[1]), m[2]
		switch {
		case strings.HasPrefix(key, "generic") || strings.HasPrefix(key, "active"):
			if l.GenericName == "" {
				l.GenericName = value
			}
		default:
			if l.BrandName == "" {
				l.BrandName = value
			}
		}
	}
}

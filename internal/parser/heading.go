package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/dgallion1/medrag/internal/label"
)

var (
	numberingRe     = regexp.MustCompile(`^(\d+(?:\.\d+)*)\.?\s+`)
	inlineHeadingRe = regexp.MustCompile(`^([A-Za-z][A-Za-z &/,()-]{2,60}?)\s*:\s*(\S.*)$`)
	wordRe          = regexp.MustCompile(`[a-z]+`)
)

// ClassifyHeading maps a label heading to one of the canonical sections.
// It returns "" for headings that belong to no section.
func ClassifyHeading(heading string) string {
	h := normalizeHeading(heading)
	if h == "" {
		return ""
	}
	words := map[string]bool{}
	for _, w := range wordRe.FindAllString(h, -1) {
		words[w] = true
	}

	switch {
	case strings.Contains(h, "contraindication"):
		return ""
	case strings.Contains(h, "adverse") || strings.Contains(h, "side effect"):
		return label.SectionAdverse
	case strings.Contains(h, "dosage form"):
		return ""
	case strings.Contains(h, "dosage") || strings.Contains(h, "administration") ||
		words["directions"] || strings.Contains(h, "how to take"):
		return label.SectionDosage
	case strings.Contains(h, "indication") || words["uses"] || words["purpose"]:
		return label.SectionIndications
	case strings.Contains(h, "warning") || strings.Contains(h, "precaution"):
		return label.SectionWarnings
	}
	return ""
}

func normalizeHeading(h string) string {
	h = strings.TrimSpace(h)
	h = numberingRe.ReplaceAllString(h, "")
	h = strings.TrimRight(h, ": ")
	h = strings.ReplaceAll(h, "&", " and ")
	return strings.ToLower(strings.Join(strings.Fields(h), " "))
}

// inlineHeading splits "Warnings: text" into its section heading and text.
func inlineHeading(t string) (heading, rest string, ok bool) {
	first, tail, _ := strings.Cut(t, "\n")
	m := inlineHeadingRe.FindStringSubmatch(first)
	if m == nil || ClassifyHeading(m[1]) == "" {
		return "", "", false
	}
	rest = m[2]
	if tail != "" {
		rest += "\n" + tail
	}
	return m[1], rest, true
}

// lineHeading reports whether a standalone line of plain text is a section
// heading and at which level. Numbered headings ("2.1 Recommended Dosage")
// nest by their numbering depth.
func lineHeading(line string) (int, bool) {
	line = strings.TrimSpace(line)
	if line == "" || len([]rune(line)) > 80 || len(strings.Fields(line)) > 8 {
		return 0, false
	}
	if strings.HasSuffix(line, ".") {
		return 0, false
	}
	if _, after, found := strings.Cut(line, ":"); found && strings.TrimSpace(after) != "" {
		return 0, false
	}

	level := 1
	numbered := false
	if m := numberingRe.FindStringSubmatch(line); m != nil {
		level = strings.Count(m[1], ".") + 1
		numbered = true
	}

	if ClassifyHeading(line) != "" {
		return level, true
	}
	if numbered && isUpper(numberingRe.ReplaceAllString(line, "")) {
		return level, true
	}
	return 0, false
}

// isTitleLine reports whether a line can serve as a document title.
func isTitleLine(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || strings.Contains(line, ":") || len(strings.Fields(line)) > 8 {
		return false
	}
	_, heading := lineHeading(line)
	return !heading
}

// isUpper reports whether s has letters and none of them are lowercase.
func isUpper(s string) bool {
	letters := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsLetter(r) {
			letters = true
		}
	}
	return letters
}

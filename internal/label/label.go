package label

import "strings"

// Section names, in the order they are indexed.
const (
	SectionIndications = "Indications & Usage"
	SectionWarnings    = "Warnings"
	SectionDosage      = "Dosage & Administration"
	SectionAdverse     = "Adverse Reactions"
)

// Sections lists every indexed section in processing order.
var Sections = []string{
	SectionIndications,
	SectionWarnings,
	SectionDosage,
	SectionAdverse,
}

// DrugLabel is a normalized drug label. Every field is optional; an empty
// section means the label does not provide it.
type DrugLabel struct {
	BrandName          string `json:"brand_name,omitempty"`
	GenericName        string `json:"generic_name,omitempty"`
	Purpose            string `json:"purpose,omitempty"`
	Warnings           string `json:"warnings,omitempty"`
	DosageInstructions string `json:"dosage_instructions,omitempty"`
	AdverseReactions   string `json:"adverse_reactions,omitempty"`

	// Source records where the label came from ("openfda", a file path).
	Source string `json:"source,omitempty"`

	// Query is the name the label was looked up by, used when the label
	// carries neither a brand nor a generic name.
	Query string `json:"-"`
}

// DisplayName prefers the brand name, then the generic name, then the query.
func (l *DrugLabel) DisplayName() string {
	if s := strings.TrimSpace(l.BrandName); s != "" {
		return s
	}
	if s := strings.TrimSpace(l.GenericName); s != "" {
		return s
	}
	return strings.TrimSpace(l.Query)
}

// Section returns the text of the named section, or "" if absent.
func (l *DrugLabel) Section(name string) string {
	switch name {
	case SectionIndications:
		return l.Purpose
	case SectionWarnings:
		return l.Warnings
	case SectionDosage:
		return l.DosageInstructions
	case SectionAdverse:
		return l.AdverseReactions
	}
	return ""
}

// SetSection assigns text to the named section. Text for an already
// populated section is appended after a blank line.
func (l *DrugLabel) SetSection(name, text string) bool {
	var dst *string
	switch name {
	case SectionIndications:
		dst = &l.Purpose
	case SectionWarnings:
		dst = &l.Warnings
	case SectionDosage:
		dst = &l.DosageInstructions
	case SectionAdverse:
		dst = &l.AdverseReactions
	default:
		return false
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return true
	}
	if *dst != "" {
		*dst += "\n\n" + text
	} else {
		*dst = text
	}
	return true
}

// HasContent reports whether at least one section is non-empty.
func (l *DrugLabel) HasContent() bool {
	for _, name := range Sections {
		if strings.TrimSpace(l.Section(name)) != "" {
			return true
		}
	}
	return false
}

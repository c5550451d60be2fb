package parser

import (
	"strings"
	"testing"

	"github.com/dgallion1/medrag/internal/label"
)

const otcLabel = `Tylenol Extra Strength

Active ingredient: acetaminophen 500 mg

Uses: temporarily relieves minor aches and pains
temporarily reduces fever

Warnings
Liver warning: This product contains acetaminophen.
Severe liver damage may occur if you take more than 6 caplets in 24 hours.

Directions
adults and children 12 years and over: take 2 caplets every 6 hours while symptoms last

Keep out of reach of children.
`

func TestTextParser_OTCLabel(t *testing.T) {
	doc, err := (&TextParser{}).Parse(strings.NewReader(otcLabel), "tylenol.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Tylenol Extra Strength" {
		t.Errorf("expected title from first line, got %q", doc.Title)
	}

	l := ToLabel(doc, "tylenol.txt")
	if l.BrandName != "Tylenol Extra Strength" {
		t.Errorf("unexpected brand %q", l.BrandName)
	}
	if l.GenericName != "acetaminophen 500 mg" {
		t.Errorf("unexpected generic %q", l.GenericName)
	}
	if !strings.HasPrefix(l.Purpose, "temporarily relieves minor aches and pains") ||
		!strings.Contains(l.Purpose, "reduces fever") {
		t.Errorf("unexpected purpose %q", l.Purpose)
	}
	if !strings.Contains(l.Warnings, "This product contains acetaminophen.") ||
		!strings.Contains(l.Warnings, "Severe liver damage") {
		t.Errorf("unexpected warnings %q", l.Warnings)
	}
	if !strings.Contains(l.DosageInstructions, "take 2 caplets every 6 hours") {
		t.Errorf("unexpected dosage %q", l.DosageInstructions)
	}
	if l.AdverseReactions != "" {
		t.Errorf("expected no adverse reactions, got %q", l.AdverseReactions)
	}
}

func TestTextParser_NumberedSections(t *testing.T) {
	input := "1 INDICATIONS AND USAGE\nHypertension.\n\n4 CONTRAINDICATIONS\nAngioedema.\n\n2.1 Not a section\nstray text\n\n6 ADVERSE REACTIONS\nCough."
	doc, err := (&TextParser{}).Parse(strings.NewReader(input), "lisinopril.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	l := ToLabel(doc, "lisinopril.txt")

	if l.Purpose != "Hypertension." {
		t.Errorf("unexpected purpose %q", l.Purpose)
	}
	if strings.Contains(l.Purpose, "Angioedema") {
		t.Errorf("contraindications leaked into purpose")
	}
	if l.AdverseReactions != "Cough." {
		t.Errorf("unexpected adverse reactions %q", l.AdverseReactions)
	}
	if l.DisplayName() != "lisinopril" {
		t.Errorf("expected file stem as display name, got %q", l.DisplayName())
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	doc, err := (&TextParser{}).Parse(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(doc.Blocks) != 0 {
		t.Errorf("expected no blocks, got %d", len(doc.Blocks))
	}
}

func TestClassifyHeading(t *testing.T) {
	tests := []struct {
		heading string
		want    string
	}{
		{"INDICATIONS & USAGE", label.SectionIndications},
		{"1 INDICATIONS AND USAGE", label.SectionIndications},
		{"Uses", label.SectionIndications},
		{"Purpose", label.SectionIndications},
		{"CONTRAINDICATIONS", ""},
		{"Boxed Warning", label.SectionWarnings},
		{"5.1 Warnings and Precautions:", label.SectionWarnings},
		{"Directions", label.SectionDosage},
		{"2 DOSAGE AND ADMINISTRATION", label.SectionDosage},
		{"3 DOSAGE FORMS AND STRENGTHS", ""},
		{"Adverse Reactions", label.SectionAdverse},
		{"Side effects", label.SectionAdverse},
		{"Storage and handling", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.heading, func(t *testing.T) {
			if got := ClassifyHeading(tt.heading); got != tt.want {
				t.Errorf("ClassifyHeading(%q) = %q, want %q", tt.heading, got, tt.want)
			}
		})
	}
}

func TestParseLabel_NoSections(t *testing.T) {
	_, err := ParseLabel([]byte("just some notes\nnothing else"), "notes.txt")
	if err == nil {
		t.Fatal("expected error for document without sections")
	}
}

func TestParseLabel_UnsupportedExtension(t *testing.T) {
	if _, err := ParseLabel([]byte("a,b"), "labels.csv"); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

package parser

import (
	"strings"
	"testing"
)

func TestHTMLParser_ToLabel(t *testing.T) {
	input := `<html><head><title>Advil</title><style>p{}</style></head>
<body>
<nav><p>Home</p></nav>
<h1>Advil Tablets</h1>
<p>Drug Name: Advil</p>
<h2>Warnings</h2>
<p>Allergy alert: ibuprofen may cause a severe allergic reaction.</p>
<p>Stomach bleeding warning.</p>
<h2>Directions</h2>
<ul><li>take 1 tablet every 4 to 6 hours</li><li>do not exceed 6 tablets in 24 hours</li></ul>
<h2>Other information</h2>
<p>Store at room temperature.</p>
</body></html>`

	doc, err := (&HTMLParser{}).Parse(strings.NewReader(input), "advil.html")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.Title != "Advil" {
		t.Errorf("expected title from <title>, got %q", doc.Title)
	}

	l := ToLabel(doc, "advil.html")
	if l.BrandName != "Advil" {
		t.Errorf("unexpected brand %q", l.BrandName)
	}
	if !strings.Contains(l.Warnings, "severe allergic reaction") || !strings.Contains(l.Warnings, "Stomach bleeding") {
		t.Errorf("unexpected warnings %q", l.Warnings)
	}
	if !strings.Contains(l.DosageInstructions, "every 4 to 6 hours") || !strings.Contains(l.DosageInstructions, "do not exceed") {
		t.Errorf("unexpected dosage %q", l.DosageInstructions)
	}
	if strings.Contains(l.DosageInstructions, "room temperature") {
		t.Errorf("unrelated section leaked into dosage: %q", l.DosageInstructions)
	}
	if strings.Contains(l.Warnings, "Home") {
		t.Errorf("navigation leaked into warnings")
	}
}

func TestHeadingLevel(t *testing.T) {
	for tag, want := range map[string]int{"h1": 1, "h6": 6, "h7": 0, "p": 0, "hr": 0} {
		if got := headingLevel(tag); got != want {
			t.Errorf("headingLevel(%q) = %d, want %d", tag, got, want)
		}
	}
}

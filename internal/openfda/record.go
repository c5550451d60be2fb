package openfda

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/dgallion1/medrag/internal/label"
)

// Record is one drug label as returned by the openFDA label endpoint. Only
// the fields the assistant uses are decoded.
type Record struct {
	OpenFDA struct {
		BrandName   []string `json:"brand_name"`
		GenericName []string `json:"generic_name"`
	} `json:"openfda"`
	IndicationsAndUsage     Text `json:"indications_and_usage"`
	Warnings                Text `json:"warnings"`
	DosageAndAdministration Text `json:"dosage_and_administration"`
	AdverseReactions        Text `json:"adverse_reactions"`
}

// Text is a label field that openFDA returns either as a list of strings or
// as a single string. Lists are joined with newlines.
type Text string

func (t *Text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = ""
		return nil
	}
	if b[0] == '[' {
		var parts []string
		if err := json.Unmarshal(b, &parts); err != nil {
			return err
		}
		*t = Text(strings.Join(parts, "\n"))
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*t = Text(s)
	return nil
}

// Named reports whether the record carries a brand or generic name.
func (r *Record) Named() bool {
	return first(r.OpenFDA.BrandName) != "" || first(r.OpenFDA.GenericName) != ""
}

// Label converts the record into the canonical label shape.
func (r *Record) Label(source string) *label.DrugLabel {
	return &label.DrugLabel{
		BrandName:          first(r.OpenFDA.BrandName),
		GenericName:        first(r.OpenFDA.GenericName),
		Purpose:            string(r.IndicationsAndUsage),
		Warnings:           string(r.Warnings),
		DosageInstructions: string(r.DosageAndAdministration),
		AdverseReactions:   string(r.AdverseReactions),
		Source:             source,
	}
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

package pipeline

import (
	"fmt"
	"os"

	"github.com/dgallion1/medrag/internal/label"
	"github.com/dgallion1/medrag/internal/openfda"
	"github.com/dgallion1/medrag/internal/parser"
)

// LoadLabels decodes a file into labels: openFDA bulk downloads (.json,
// .zip) yield every record, label documents yield one label.
func LoadLabels(name string, data []byte) ([]*label.DrugLabel, error) {
	if openfda.IsBulkFile(name) {
		return openfda.ReadBulk(data, name)
	}
	if !parser.IsSupportedExtension(name) {
		return nil, fmt.Errorf("unsupported file type: %s", name)
	}
	l, err := parser.ParseLabel(data, name)
	if err != nil {
		return nil, err
	}
	return []*label.DrugLabel{l}, nil
}

// LoadLabelFile reads path and decodes it with LoadLabels.
func LoadLabelFile(path string) ([]*label.DrugLabel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return LoadLabels(path, data)
}

// SupportedFile reports whether name can be loaded.
func SupportedFile(name string) bool {
	return openfda.IsBulkFile(name) || parser.IsSupportedExtension(name)
}

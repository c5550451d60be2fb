package openfda

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/medrag/internal/label"
)

// IsBulkFile reports whether the file name looks like an openFDA bulk download.
func IsBulkFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".json", ".zip":
		return true
	}
	return false
}

// ReadBulkFile loads labels from an openFDA bulk download: a .json file or a
// .zip archive of .json files.
func ReadBulkFile(path string) ([]*label.DrugLabel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return ReadBulk(data, path)
}

// ReadBulk decodes bulk data whose format is chosen by the name's extension.
func ReadBulk(data []byte, name string) ([]*label.DrugLabel, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".zip":
		return readZip(data, name)
	case ".json":
		return DecodeBulk(bytes.NewReader(data), name)
	default:
		return nil, fmt.Errorf("unsupported bulk file: %s", name)
	}
}

func readZip(data []byte, name string) ([]*label.DrugLabel, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip %s: %w", name, err)
	}

	var labels []*label.DrugLabel
	for _, f := range zr.File {
		if f.FileInfo().IsDir() || !strings.EqualFold(filepath.Ext(f.Name), ".json") {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s in %s: %w", f.Name, name, err)
		}
		got, err := DecodeBulk(rc, name+"::"+f.Name)
		rc.Close()
		if err != nil {
			return nil, err
		}
		labels = append(labels, got...)
	}
	return labels, nil
}

// DecodeBulk decodes {"results":[...]}, a bare array of records, or a single
// record. Records without a brand or generic name are skipped.
func DecodeBulk(r io.Reader, source string) ([]*label.DrugLabel, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}

	var records []Record
	switch raw[0] {
	case '[':
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("decode %s: %w", source, err)
		}
	case '{':
		var envelope struct {
			Results *[]Record `json:"results"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("decode %s: %w", source, err)
		}
		if envelope.Results != nil {
			records = *envelope.Results
			break
		}
		var single Record
		if err := json.Unmarshal(raw, &single); err != nil {
			return nil, fmt.Errorf("decode %s: %w", source, err)
		}
		records = []Record{single}
	default:
		return nil, fmt.Errorf("decode %s: not a JSON object or array", source)
	}

	labels := make([]*label.DrugLabel, 0, len(records))
	for i := range records {
		if !records[i].Named() {
			continue
		}
		labels = append(labels, records[i].Label(source))
	}
	return labels, nil
}

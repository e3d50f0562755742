package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/kimhsiao/dietdaily/internal/models"
)

// Memory is an in-memory Persistence used in tests and for ephemeral
// sessions. It keeps its own copy so the store's internal slice is
// never aliased.
type Memory struct {
	records []*models.Record
}

// NewMemory creates an empty in-memory persistence.
func NewMemory() *Memory {
	return &Memory{}
}

// LoadAll returns the saved records.
func (m *Memory) LoadAll() ([]*models.Record, error) {
	out := make([]*models.Record, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, r.Clone())
	}
	return out, nil
}

// SaveAll replaces the saved records.
func (m *Memory) SaveAll(records []*models.Record) error {
	saved := make([]*models.Record, 0, len(records))
	for _, r := range records {
		saved = append(saved, r.Clone())
	}
	m.records = saved
	return nil
}

// File persists the record set as a single JSON document, written
// atomically via a temp file and rename.
type File struct {
	path string
}

// NewFile creates a file persistence at the given path, creating the
// parent directory if needed.
func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return &File{path: path}, nil
}

// LoadAll reads the record set. A missing file is an empty set.
func (f *File) LoadAll() ([]*models.Record, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var records []*models.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

// SaveAll writes the full record set.
func (f *File) SaveAll(records []*models.Record) error {
	if records == nil {
		records = []*models.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Package state persists the identifiers of messages that have already been
// written to the spreadsheet.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// Processed is an insertion-ordered set of message identifiers.
// The zero value is an empty set ready to use.
type Processed struct {
	ids   []string
	index map[string]struct{}
}

// NewProcessed returns a set seeded with ids, skipping blanks and repeats.
func NewProcessed(ids ...string) *Processed {
	p := &Processed{}
	for _, id := range ids {
		p.Add(id)
	}
	return p
}

// Add inserts id and reports whether it was new.
func (p *Processed) Add(id string) bool {
	if id == "" {
		return false
	}
	if p.index == nil {
		p.index = make(map[string]struct{})
	}
	if _, ok := p.index[id]; ok {
		return false
	}
	p.index[id] = struct{}{}
	p.ids = append(p.ids, id)
	return true
}

func (p *Processed) Has(id string) bool {
	if p == nil {
		return false
	}
	_, ok := p.index[id]
	return ok
}

func (p *Processed) Len() int {
	if p == nil {
		return 0
	}
	return len(p.ids)
}

// IDs returns a copy of the identifiers in insertion order.
func (p *Processed) IDs() []string {
	if p == nil {
		return []string{}
	}
	return append([]string{}, p.ids...)
}

// fileFormat is the on-disk document. Unknown keys are dropped on save.
type fileFormat struct {
	ProcessedIDs []string `json:"processed_ids"`
}

// Store reads and writes the state document at Path.
type Store struct {
	Path   string
	Logger *slog.Logger
}

// NewStore constructs a Store with a discarding logger when none is given.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{Path: path, Logger: logger}
}

// Load never fails: a missing, empty or malformed document yields an empty set.
func (s *Store) Load() *Processed {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.Logger.Warn("read state failed, starting empty", "path", s.Path, "error", err)
		}
		return NewProcessed()
	}
	ids, err := decode(data)
	if err != nil {
		s.Logger.Warn("malformed state, starting empty", "path", s.Path, "error", err)
		return NewProcessed()
	}
	return NewProcessed(ids...)
}

func decode(data []byte) ([]string, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	raw, ok := doc["processed_ids"]
	if !ok {
		return nil, nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode processed_ids: %w", err)
	}
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if id, ok := item.(string); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Save replaces the document atomically: the new content is written to a
// temporary file in the same directory and renamed over Path.
func (s *Store) Save(p *Processed) error {
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create state directory %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(fileFormat{ProcessedIDs: p.IDs()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp state: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp state: %w", err)
	}
	if err := os.Rename(tmpName, s.Path); err != nil {
		return fmt.Errorf("replace state %s: %w", s.Path, err)
	}
	return nil
}

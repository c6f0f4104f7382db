// Package dedupe builds the set of message identifiers already recorded,
// either locally or in the destination sheet.
package dedupe

import (
	"context"
	"log/slog"
	"strings"
)

// Set is a set of message identifiers.
type Set map[string]struct{}

// NewSet returns a set holding the non-blank ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

func (s Set) Add(id string) {
	id = strings.TrimSpace(id)
	if id == "" {
		return
	}
	s[id] = struct{}{}
}

func (s Set) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Union returns a new set containing every member of sets. An identifier is
// handled if any source knows it.
func Union(sets ...Set) Set {
	size := 0
	for _, s := range sets {
		size += len(s)
	}
	out := make(Set, size)
	for _, s := range sets {
		for id := range s {
			out[id] = struct{}{}
		}
	}
	return out
}

// ColumnReader reads one column of the destination.
type ColumnReader interface {
	ReadColumn(ctx context.Context, spreadsheetID, rangeHint string) ([]string, error)
}

// Remote reads the identifier column of the destination. Failures degrade
// to an empty set so the run falls back to local state only.
func Remote(
	ctx context.Context,
	reader ColumnReader,
	spreadsheetID string,
	idRange string,
	logger *slog.Logger,
) Set {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	cells, err := reader.ReadColumn(ctx, spreadsheetID, idRange)
	if err != nil {
		logger.WarnContext(ctx, "could not read existing message ids, using local state only",
			slog.String("range", idRange), slog.Any("error", err))
		return Set{}
	}
	set := NewSet(cells...)
	logger.InfoContext(ctx, "loaded message ids from sheet", slog.Int("count", len(set)))
	return set
}

package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Summary counts what happened to each candidate in a run.
type Summary struct {
	RunID         string    `json:"run_id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	DryRun        bool      `json:"dry_run"`
	Listed        int       `json:"listed"`
	Invalid       int       `json:"invalid"`
	SkippedLocal  int       `json:"skipped_local"`
	FetchFailed   int       `json:"fetch_failed"`
	Filtered      int       `json:"filtered"`
	Deduped       int       `json:"deduped"`
	Appended      int       `json:"appended"`
	AppendFailed  int       `json:"append_failed"`
	ConsumeFailed int       `json:"consume_failed"`
	StateSize     int       `json:"state_size"`
}

// LogValue renders the counters as a single slog group.
func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("dry_run", s.DryRun),
		slog.Int("listed", s.Listed),
		slog.Int("invalid", s.Invalid),
		slog.Int("skipped_local", s.SkippedLocal),
		slog.Int("fetch_failed", s.FetchFailed),
		slog.Int("filtered", s.Filtered),
		slog.Int("deduped", s.Deduped),
		slog.Int("appended", s.Appended),
		slog.Int("append_failed", s.AppendFailed),
		slog.Int("consume_failed", s.ConsumeFailed),
		slog.Int("state_size", s.StateSize),
		slog.Duration("elapsed", s.FinishedAt.Sub(s.StartedAt)),
	)
}

// PrintHuman writes a short plain-text report of the run to w.
func PrintHuman(sum Summary, w io.Writer) error {
	verb := "appended"
	if sum.DryRun {
		verb = "would append"
	}
	failed := sum.FetchFailed + sum.AppendFailed + sum.ConsumeFailed
	_, err := fmt.Fprintf(w,
		"run %s finished in %s\n  listed %s, %s %s, already in sheet %s, filtered %s, skipped %s\n  failures %s (fetch %d, append %d, mark read %d), %s ids remembered\n",
		sum.RunID,
		sum.FinishedAt.Sub(sum.StartedAt).Round(time.Millisecond),
		humanize.Comma(int64(sum.Listed)),
		verb,
		humanize.Comma(int64(sum.Appended)),
		humanize.Comma(int64(sum.Deduped)),
		humanize.Comma(int64(sum.Filtered)),
		humanize.Comma(int64(sum.SkippedLocal)),
		humanize.Comma(int64(failed)),
		sum.FetchFailed,
		sum.AppendFailed,
		sum.ConsumeFailed,
		humanize.Comma(int64(sum.StateSize)),
	)
	return err
}

// WriteSummaryJSON serializes the summary to path, creating parent
// directories as needed.
func WriteSummaryJSON(sum Summary, path string) error {
	clean := strings.TrimSpace(path)
	if clean == "" {
		return fmt.Errorf("path must not be empty")
	}
	clean = filepath.Clean(clean)
	if err := os.MkdirAll(filepath.Dir(clean), 0o755); err != nil {
		return fmt.Errorf("create summary directory: %w", err)
	}
	f, err := os.OpenFile(clean, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) // #nosec G304
	if err != nil {
		return fmt.Errorf("create %s: %w", clean, err)
	}
	defer func() { _ = f.Close() }()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if encodeErr := enc.Encode(sum); encodeErr != nil {
		return fmt.Errorf("encode summary: %w", encodeErr)
	}
	return nil
}

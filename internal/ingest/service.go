package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/xid"

	"github.com/joshsymonds/inboxsheet/internal/dedupe"
	"github.com/joshsymonds/inboxsheet/internal/filter"
	"github.com/joshsymonds/inboxsheet/internal/gmail"
	"github.com/joshsymonds/inboxsheet/internal/rate"
	"github.com/joshsymonds/inboxsheet/internal/retry"
	"github.com/joshsymonds/inboxsheet/internal/sheets"
	"github.com/joshsymonds/inboxsheet/internal/state"
	"github.com/joshsymonds/inboxsheet/internal/transform"
)

const (
	DefaultQuery         = "in:inbox is:unread"
	DefaultMaxCandidates = 200
	DefaultRowRange      = "Sheet1!A:E"
	DefaultIDRange       = "Sheet1!E:E"
	DefaultCallTimeout   = 30 * time.Second

	// Gmail caps messages.list pages at 500.
	maxPageSize = 500
)

// StateStore loads and persists the processed-id set.
type StateStore interface {
	Load() *state.Processed
	Save(p *state.Processed) error
}

// Options controls a single ingestion run.
type Options struct {
	SpreadsheetID string
	RowRange      string
	IDRange       string
	Query         string
	MaxCandidates int
	Keywords      []string
	// MarkFiltered marks messages rejected by the subject filter as read.
	MarkFiltered bool
	ContentLimit int
	CallTimeout  time.Duration
	DryRun       bool
}

func (o Options) withDefaults() Options {
	if o.RowRange == "" {
		o.RowRange = DefaultRowRange
	}
	if o.IDRange == "" {
		o.IDRange = DefaultIDRange
	}
	if o.Query == "" {
		o.Query = DefaultQuery
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = DefaultMaxCandidates
	}
	if o.ContentLimit <= 0 {
		o.ContentLimit = transform.DefaultContentLimit
	}
	o.Keywords = filter.Normalize(o.Keywords)
	return o
}

// Service runs the mailbox-to-sheet pipeline.
type Service struct {
	Mail     gmail.Client
	Sheets   sheets.Client
	State    StateStore
	Limiter  rate.Limiter
	Logger   *slog.Logger
	Retry    retry.Policy
	Clock    func() time.Time
	NewRunID func() string
}

// NewService constructs a Service with sane defaults.
func NewService(
	mail gmail.Client,
	sheetsClient sheets.Client,
	store StateStore,
	limiter rate.Limiter,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Service{
		Mail:     mail,
		Sheets:   sheetsClient,
		State:    store,
		Limiter:  limiter,
		Logger:   logger,
		Retry:    retry.Default(),
		Clock:    time.Now,
		NewRunID: func() string { return xid.New().String() },
	}
}

// run carries the mutable state of one Run call.
type run struct {
	opts      Options
	logger    *slog.Logger
	processed *state.Processed
	seen      dedupe.Set
	summary   *Summary
}

// Run lists candidates and processes them one by one in listing order.
// Per-message failures are logged and counted, never returned; the only
// error is context cancellation, after which state is still flushed.
func (s *Service) Run(ctx context.Context, opts Options) (Summary, error) {
	if opts.SpreadsheetID == "" {
		return Summary{}, errors.New("spreadsheet id must not be empty")
	}
	opts = opts.withDefaults()

	runID := s.NewRunID()
	logger := s.Logger.With(slog.String("run_id", runID))
	summary := Summary{RunID: runID, StartedAt: s.Clock(), DryRun: opts.DryRun}

	processed := s.State.Load()
	remote := dedupe.Remote(ctx, s.columnReader(opts.CallTimeout), opts.SpreadsheetID, opts.IDRange, logger)
	r := &run{
		opts:      opts,
		logger:    logger,
		processed: processed,
		seen:      dedupe.Union(dedupe.NewSet(processed.IDs()...), remote),
		summary:   &summary,
	}

	logger.InfoContext(ctx, "listing messages", slog.String("query", opts.Query), slog.Int("max", opts.MaxCandidates))
	candidates := s.listCandidates(ctx, r)
	summary.Listed = len(candidates)
	if len(candidates) == 0 {
		logger.InfoContext(ctx, "no unread messages found")
	}

	var runErr error
	for _, id := range candidates {
		if err := ctx.Err(); err != nil {
			logger.WarnContext(ctx, "run canceled, stopping before next message", slog.Any("error", err))
			runErr = err
			break
		}
		s.process(ctx, r, id)
	}

	if !opts.DryRun {
		s.save(r, "final")
	}
	summary.StateSize = processed.Len()
	summary.FinishedAt = s.Clock()
	logger.Info("run complete",
		slog.Any("summary", summary),
		slog.String("local_ids", humanize.Comma(int64(summary.StateSize))))
	return summary, runErr
}

func (s *Service) listCandidates(ctx context.Context, r *run) []gmail.MessageID {
	query := gmail.Query{Raw: r.opts.Query}
	var (
		ids   []gmail.MessageID
		token string
	)
	for len(ids) < r.opts.MaxCandidates {
		pageSize := min(r.opts.MaxCandidates-len(ids), maxPageSize)
		var page gmail.ListPage
		err := s.call(ctx, r.opts.CallTimeout, "list messages", func(ctx context.Context) error {
			var listErr error
			page, listErr = s.Mail.List(ctx, query, token, pageSize)
			return listErr
		})
		if err != nil {
			r.logger.ErrorContext(ctx, "list messages failed, continuing with candidates found so far",
				slog.Int("found", len(ids)), slog.Any("error", err))
			break
		}
		ids = append(ids, page.IDs...)
		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}
	if len(ids) > r.opts.MaxCandidates {
		ids = ids[:r.opts.MaxCandidates]
	}
	return ids
}

// process walks one candidate through
// Candidate -> Fetched -> Transformed -> {filtered, deduped, appended, append failed}.
func (s *Service) process(ctx context.Context, r *run, id gmail.MessageID) {
	logger := r.logger.With(slog.String("message_id", string(id)))
	if id == "" {
		logger.WarnContext(ctx, "skipping candidate with no id")
		r.summary.Invalid++
		return
	}
	if r.processed.Has(string(id)) {
		logger.DebugContext(ctx, "skipping already processed (local state)")
		r.summary.SkippedLocal++
		return
	}

	var msg gmail.Message
	err := s.call(ctx, r.opts.CallTimeout, "get message", func(ctx context.Context) error {
		var getErr error
		msg, getErr = s.Mail.Get(ctx, id)
		return getErr
	})
	if err != nil {
		logger.ErrorContext(ctx, "fetch message failed", slog.String("operation", "get"), slog.Any("error", err))
		r.summary.FetchFailed++
		return
	}

	rec := transform.FromMessage(msg)
	if rec.ID == "" {
		rec.ID = string(id)
	}
	logger.DebugContext(ctx, "transformed message",
		slog.String("subject", rec.Subject),
		slog.String("content_size", humanize.Bytes(uint64(len(rec.Content)))))

	if !filter.Allows(rec.Subject, r.opts.Keywords) {
		logger.InfoContext(ctx, "skipping (subject filter)", slog.String("subject", rec.Subject))
		r.summary.Filtered++
		if r.opts.MarkFiltered && !r.opts.DryRun {
			s.consume(ctx, r, logger, id)
		}
		return
	}

	if r.seen.Has(rec.ID) {
		logger.InfoContext(ctx, "skipping, already in sheet")
		r.summary.Deduped++
		if !r.opts.DryRun {
			s.consume(ctx, r, logger, id)
		}
		r.processed.Add(string(id))
		return
	}

	row := transform.Row(rec, r.opts.ContentLimit)
	if r.opts.DryRun {
		logger.InfoContext(ctx, "dry-run: would append row", slog.String("subject", rec.Subject))
		r.seen.Add(rec.ID)
		r.summary.Appended++
		return
	}

	err = s.Retry.Do(ctx, func(ctx context.Context) error {
		return s.call(ctx, r.opts.CallTimeout, "append row", func(ctx context.Context) error {
			return s.Sheets.AppendRow(ctx, r.opts.SpreadsheetID, r.opts.RowRange, row)
		})
	})
	if err != nil {
		logger.ErrorContext(ctx, "append to sheet failed, leaving message for next run",
			slog.String("operation", "append"), slog.Any("error", err))
		r.summary.AppendFailed++
		return
	}

	s.consume(ctx, r, logger, id)
	r.processed.Add(string(id))
	r.seen.Add(rec.ID)
	r.summary.Appended++
	logger.InfoContext(ctx, "processed", slog.String("subject", rec.Subject))
	s.save(r, string(id))
}

// columnReader routes the id column read through the limiter and timeout.
func (s *Service) columnReader(timeout time.Duration) dedupe.ColumnReader {
	return columnReaderFunc(func(ctx context.Context, spreadsheetID, rangeHint string) ([]string, error) {
		var cells []string
		err := s.call(ctx, timeout, "read id column", func(ctx context.Context) error {
			var readErr error
			cells, readErr = s.Sheets.ReadColumn(ctx, spreadsheetID, rangeHint)
			return readErr
		})
		return cells, err
	})
}

type columnReaderFunc func(ctx context.Context, spreadsheetID, rangeHint string) ([]string, error)

func (f columnReaderFunc) ReadColumn(ctx context.Context, spreadsheetID, rangeHint string) ([]string, error) {
	return f(ctx, spreadsheetID, rangeHint)
}

// consume marks the source message read. Failures are counted but never
// undo an append that already happened.
func (s *Service) consume(ctx context.Context, r *run, logger *slog.Logger, id gmail.MessageID) {
	err := s.call(ctx, r.opts.CallTimeout, "mark read", func(ctx context.Context) error {
		return s.Mail.Modify(ctx, id, gmail.MarkRead())
	})
	if err != nil {
		logger.WarnContext(ctx, "mark read failed", slog.String("operation", "modify"), slog.Any("error", err))
		r.summary.ConsumeFailed++
	}
}

func (s *Service) save(r *run, after string) {
	if err := s.State.Save(r.processed); err != nil {
		r.logger.Warn("save state failed", slog.String("after", after), slog.Any("error", err))
	}
}

// call gates fn on the limiter and bounds it with timeout.
func (s *Service) call(
	ctx context.Context,
	timeout time.Duration,
	operation string,
	fn func(ctx context.Context) error,
) error {
	if err := s.wait(ctx, operation); err != nil {
		return err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := fn(ctx); err != nil {
		return fmt.Errorf("%s: %w", operation, err)
	}
	return nil
}

func (s *Service) wait(ctx context.Context, operation string) error {
	if s.Limiter == nil {
		return nil
	}
	if err := s.Limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", operation, err)
	}
	return nil
}

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joshsymonds/inboxsheet/internal/config"
	"github.com/joshsymonds/inboxsheet/internal/ingest"
	"github.com/joshsymonds/inboxsheet/internal/rate"
	"github.com/joshsymonds/inboxsheet/internal/runtime"
	"github.com/joshsymonds/inboxsheet/internal/state"
)

type cliFlags struct {
	configPath    string
	verbose       bool
	spreadsheetID string
	credentials   string
	tokenPath     string
	tokenStore    string
	keywords      string
	query         string
	statePath     string
	summaryPath   string
	maxCandidates int
	contentLimit  int
	rps           int
	maxAttempts   int
	dryRun        bool
	markFiltered  bool
	lock          bool

	// names of flags given on the command line
	set map[string]bool
}

func main() {
	flags := parseFlags()
	if err := run(flags); err != nil {
		runtime.DefaultLogger().Error("inboxsheet failed", "error", err)
		os.Exit(1)
	}
}

func parseFlags() cliFlags {
	var f cliFlags
	flag.StringVar(&f.configPath, "config", config.DefaultPath, "YAML config file (optional)")
	flag.BoolVar(&f.verbose, "verbose", false, "log debug detail")
	flag.StringVar(&f.spreadsheetID, "spreadsheet-id", "", "target spreadsheet id")
	flag.StringVar(&f.credentials, "credentials", "", "OAuth client secret JSON")
	flag.StringVar(&f.tokenPath, "token", "", "cached OAuth token path")
	flag.StringVar(&f.tokenStore, "token-store", "", "where to cache the token: file or keyring")
	flag.StringVar(&f.keywords, "keywords", "", "comma separated subject keywords (empty accepts all)")
	flag.StringVar(&f.query, "query", "", "Gmail search query for candidates")
	flag.StringVar(&f.statePath, "state", "", "local processed-id state file")
	flag.StringVar(&f.summaryPath, "summary-json", "", "write the run summary as JSON to this path")
	flag.IntVar(&f.maxCandidates, "max", 0, "maximum candidates per run")
	flag.IntVar(&f.contentLimit, "content-limit", 0, "maximum characters of body text per row")
	flag.IntVar(&f.rps, "rps", 0, "max requests per second (0 disables limiting)")
	flag.IntVar(&f.maxAttempts, "retry-attempts", 0, "append attempts before giving up")
	flag.BoolVar(&f.dryRun, "dry-run", false, "log what would be appended; change nothing")
	flag.BoolVar(&f.markFiltered, "mark-filtered", false, "mark messages rejected by the subject filter as read")
	flag.BoolVar(&f.lock, "lock", false, "refuse to run while another run holds the state lock")
	flag.Parse()

	f.set = map[string]bool{}
	flag.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f
}

// apply copies explicitly given flags over the loaded config.
func (f cliFlags) apply(cfg *config.Config) {
	if f.set["spreadsheet-id"] {
		cfg.SpreadsheetID = strings.TrimSpace(f.spreadsheetID)
	}
	if f.set["credentials"] {
		cfg.CredentialsPath = f.credentials
	}
	if f.set["token"] {
		cfg.TokenPath = f.tokenPath
	}
	if f.set["token-store"] {
		cfg.TokenStore = f.tokenStore
	}
	if f.set["keywords"] {
		cfg.SubjectKeywords = splitList(f.keywords)
	}
	if f.set["query"] {
		cfg.Query = f.query
	}
	if f.set["state"] {
		cfg.StatePath = f.statePath
	}
	if f.set["summary-json"] {
		cfg.SummaryPath = f.summaryPath
	}
	if f.set["max"] {
		cfg.MaxCandidates = f.maxCandidates
	}
	if f.set["content-limit"] {
		cfg.ContentLimit = f.contentLimit
	}
	if f.set["rps"] {
		cfg.RPS = f.rps
	}
	if f.set["retry-attempts"] {
		cfg.Retry.MaxAttempts = f.maxAttempts
	}
	if f.set["dry-run"] {
		cfg.DryRun = f.dryRun
	}
	if f.set["mark-filtered"] {
		cfg.MarkFiltered = f.markFiltered
	}
	if f.set["lock"] {
		cfg.Lock = f.lock
	}
}

func run(flags cliFlags) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	flags.apply(&cfg)
	if validErr := cfg.Validate(); validErr != nil {
		return validErr
	}
	logger := runtime.NewLogger(flags.verbose)

	if cfg.Lock {
		unlock, lockErr := state.Lock(cfg.StatePath)
		if lockErr != nil {
			return fmt.Errorf("lock state: %w", lockErr)
		}
		defer func() {
			if unlockErr := unlock(); unlockErr != nil {
				logger.Warn("release state lock failed", "error", unlockErr)
			}
		}()
	}

	tokens, err := runtime.OpenTokenStore(cfg.TokenStore, cfg.TokenPath)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	mail, sheetsClient, err := runtime.NewClients(ctx, runtime.AuthConfig{
		CredentialsPath: cfg.CredentialsPath,
		Scopes:          cfg.Scopes,
		Tokens:          tokens,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("create google clients: %w", err)
	}

	var (
		limiter rate.Limiter
		bucket  *rate.TokenBucket
	)
	if cfg.RPS > 0 {
		bucket = rate.NewTokenBucket(cfg.RPS, cfg.RPS)
		limiter = bucket
		defer bucket.Stop()
	}

	svc := ingest.NewService(mail, sheetsClient, state.NewStore(cfg.StatePath, logger), limiter, logger)
	svc.Retry = cfg.RetryPolicy(runtime.IsRetryable)

	sum, runErr := svc.Run(ctx, cfg.IngestOptions())
	if cfg.SummaryPath != "" {
		if writeErr := ingest.WriteSummaryJSON(sum, cfg.SummaryPath); writeErr != nil {
			logger.Warn("write summary failed", "path", cfg.SummaryPath, "error", writeErr)
		}
	}
	if runErr != nil {
		return fmt.Errorf("run ingest: %w", runErr)
	}
	if printErr := ingest.PrintHuman(sum, os.Stdout); printErr != nil {
		return fmt.Errorf("print summary: %w", printErr)
	}
	return nil
}

func splitList(input string) []string {
	if strings.TrimSpace(input) == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

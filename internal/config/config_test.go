package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nalgeon/be"

	"github.com/joshsymonds/inboxsheet/internal/ingest"
	"github.com/joshsymonds/inboxsheet/internal/retry"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "inboxsheet.yaml")
	be.Err(t, os.WriteFile(path, []byte(body), 0o600), nil)
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	be.Err(t, err, nil)

	be.Equal(t, cfg.CredentialsPath, "credentials/credentials.json")
	be.Equal(t, cfg.TokenPath, "credentials/token.json")
	be.Equal(t, cfg.TokenStore, TokenStoreFile)
	be.Equal(t, cfg.MaxCandidates, ingest.DefaultMaxCandidates)
	be.Equal(t, cfg.Query, ingest.DefaultQuery)
	be.Equal(t, cfg.RowRange, "Sheet1!A:E")
	be.Equal(t, cfg.IDRange, "Sheet1!E:E")
	be.Equal(t, cfg.StatePath, "state.json")
	be.Equal(t, cfg.ContentLimit, 1000)
	be.Equal(t, cfg.CallTimeout, 30*time.Second)
	be.Equal(t, cfg.Retry, RetryConfig{MaxAttempts: 4, InitialDelay: time.Second, Factor: 2})
	be.Equal(t, len(cfg.SubjectKeywords), 0)
	be.True(t, !cfg.DryRun)
}

func TestLoadReadsYAML(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"spreadsheet_id: abc_123-XYZ",
		"subject_keywords: [invoice, \" receipt \"]",
		"max_candidates: 50",
		"mark_filtered: true",
		"call_timeout: 5s",
		"token_store: keyring",
		"retry:",
		"  max_attempts: 6",
		"  initial_delay: 250ms",
		"  factor: 1.5",
		"",
	}, "\n"))

	cfg, err := Load(path)
	be.Err(t, err, nil)
	be.Equal(t, cfg.SpreadsheetID, "abc_123-XYZ")
	be.Equal(t, cfg.SubjectKeywords, []string{"invoice", "receipt"})
	be.Equal(t, cfg.MaxCandidates, 50)
	be.True(t, cfg.MarkFiltered)
	be.Equal(t, cfg.CallTimeout, 5*time.Second)
	be.Equal(t, cfg.TokenStore, TokenStoreKeyring)
	be.Equal(t, cfg.Retry, RetryConfig{MaxAttempts: 6, InitialDelay: 250 * time.Millisecond, Factor: 1.5})
	be.Err(t, cfg.Validate(), nil)
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, "spreadsheet_id: from-file\nmax_candidates: 10\n")
	t.Setenv("INBOXSHEET_SPREADSHEET_ID", "from-env")
	t.Setenv("INBOXSHEET_MAX_CANDIDATES", "25")
	t.Setenv("INBOXSHEET_SUBJECT_KEYWORDS", "alpha, beta")
	t.Setenv("INBOXSHEET_RETRY_MAX_ATTEMPTS", "2")

	cfg, err := Load(path)
	be.Err(t, err, nil)
	be.Equal(t, cfg.SpreadsheetID, "from-env")
	be.Equal(t, cfg.MaxCandidates, 25)
	be.Equal(t, cfg.SubjectKeywords, []string{"alpha", "beta"})
	be.Equal(t, cfg.Retry.MaxAttempts, 2)
}

func TestLoadHonorsBareSpreadsheetEnv(t *testing.T) {
	t.Setenv("SPREADSHEET_ID", "bare-id")
	cfg, err := Load("")
	be.Err(t, err, nil)
	be.Equal(t, cfg.SpreadsheetID, "bare-id")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := writeConfig(t, "spreadsheet_id: [unterminated\n")
	_, err := Load(path)
	be.True(t, err != nil)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		cfg, err := Load("")
		be.Err(t, err, nil)
		cfg.SpreadsheetID = "sheet-1"
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing spreadsheet", mutate: func(c *Config) { c.SpreadsheetID = "" }, want: "spreadsheet_id is required"},
		{name: "bad spreadsheet chars", mutate: func(c *Config) { c.SpreadsheetID = "a/b" }, want: "unexpected characters"},
		{name: "unknown token store", mutate: func(c *Config) { c.TokenStore = "vault" }, want: "token_store"},
		{name: "file store needs path", mutate: func(c *Config) { c.TokenPath = "" }, want: "token_path"},
		{name: "keyring ignores path", mutate: func(c *Config) { c.TokenStore = TokenStoreKeyring; c.TokenPath = "" }},
		{name: "zero candidates", mutate: func(c *Config) { c.MaxCandidates = 0 }, want: "max_candidates"},
		{name: "zero content limit", mutate: func(c *Config) { c.ContentLimit = 0 }, want: "content_limit"},
		{name: "negative rps", mutate: func(c *Config) { c.RPS = -1 }, want: "rps"},
		{name: "zero attempts", mutate: func(c *Config) { c.Retry.MaxAttempts = 0 }, want: "retry.max_attempts"},
		{name: "shrinking factor", mutate: func(c *Config) { c.Retry.Factor = 0.5 }, want: "retry.factor"},
	}
	for _, tt := range tests {
		tc := tt
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.want == "" {
				be.Err(t, err, nil)
				return
			}
			be.True(t, errors.Is(err, ErrInvalid))
			be.True(t, strings.Contains(err.Error(), tc.want))
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	err := Config{}.Validate()
	be.True(t, errors.Is(err, ErrInvalid))
	for _, want := range []string{"spreadsheet_id", "credentials_path", "token_store", "state_path", "max_candidates"} {
		be.True(t, strings.Contains(err.Error(), want))
	}
}

func TestIngestOptionsAndRetryPolicy(t *testing.T) {
	cfg, err := Load("")
	be.Err(t, err, nil)
	cfg.SpreadsheetID = "sheet-1"
	cfg.SubjectKeywords = []string{"invoice"}
	cfg.DryRun = true

	opts := cfg.IngestOptions()
	be.Equal(t, opts.SpreadsheetID, "sheet-1")
	be.Equal(t, opts.Keywords, []string{"invoice"})
	be.True(t, opts.DryRun)
	be.Equal(t, opts.CallTimeout, ingest.DefaultCallTimeout)

	policy := cfg.RetryPolicy(nil)
	be.Equal(t, policy.MaxAttempts, retry.DefaultMaxAttempts)
	be.Equal(t, policy.InitialDelay, retry.DefaultInitialDelay)
	be.Equal(t, policy.Factor, retry.DefaultFactor)

	cfg.Retry.InitialDelay = 0
	be.True(t, cfg.RetryPolicy(nil).InitialDelay < 0)
}

// Package config loads inboxsheet settings from YAML, environment and flags.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joshsymonds/inboxsheet/internal/ingest"
	"github.com/joshsymonds/inboxsheet/internal/retry"
	"github.com/joshsymonds/inboxsheet/internal/runtime"
	"github.com/joshsymonds/inboxsheet/internal/transform"
)

const (
	EnvPrefix = "INBOXSHEET"

	TokenStoreFile    = runtime.TokenStoreFile
	TokenStoreKeyring = runtime.TokenStoreKeyring

	DefaultPath = "inboxsheet.yaml"
)

// ErrInvalid marks a configuration that cannot start a run.
var ErrInvalid = errors.New("invalid configuration")

var spreadsheetIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// RetryConfig mirrors retry.Policy for the config file.
type RetryConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay"`
	Factor       float64       `mapstructure:"factor"`
}

// Config is the resolved configuration for one invocation.
type Config struct {
	SpreadsheetID   string        `mapstructure:"spreadsheet_id"`
	CredentialsPath string        `mapstructure:"credentials_path"`
	TokenPath       string        `mapstructure:"token_path"`
	TokenStore      string        `mapstructure:"token_store"`
	Scopes          []string      `mapstructure:"scopes"`
	SubjectKeywords []string      `mapstructure:"subject_keywords"`
	MaxCandidates   int           `mapstructure:"max_candidates"`
	Query           string        `mapstructure:"query"`
	RowRange        string        `mapstructure:"row_range"`
	IDRange         string        `mapstructure:"id_range"`
	StatePath       string        `mapstructure:"state_path"`
	MarkFiltered    bool          `mapstructure:"mark_filtered"`
	ContentLimit    int           `mapstructure:"content_limit"`
	RPS             int           `mapstructure:"rps"`
	CallTimeout     time.Duration `mapstructure:"call_timeout"`
	Retry           RetryConfig   `mapstructure:"retry"`
	DryRun          bool          `mapstructure:"dry_run"`
	Lock            bool          `mapstructure:"lock"`
	SummaryPath     string        `mapstructure:"summary_path"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("spreadsheet_id", "")
	v.SetDefault("credentials_path", "credentials/credentials.json")
	v.SetDefault("token_path", "credentials/token.json")
	v.SetDefault("token_store", TokenStoreFile)
	v.SetDefault("scopes", []string{})
	v.SetDefault("subject_keywords", []string{})
	v.SetDefault("max_candidates", ingest.DefaultMaxCandidates)
	v.SetDefault("query", ingest.DefaultQuery)
	v.SetDefault("row_range", ingest.DefaultRowRange)
	v.SetDefault("id_range", ingest.DefaultIDRange)
	v.SetDefault("state_path", "state.json")
	v.SetDefault("mark_filtered", false)
	v.SetDefault("content_limit", transform.DefaultContentLimit)
	v.SetDefault("rps", 5)
	v.SetDefault("call_timeout", ingest.DefaultCallTimeout)
	v.SetDefault("retry.max_attempts", retry.DefaultMaxAttempts)
	v.SetDefault("retry.initial_delay", retry.DefaultInitialDelay)
	v.SetDefault("retry.factor", retry.DefaultFactor)
	v.SetDefault("dry_run", false)
	v.SetDefault("lock", false)
	v.SetDefault("summary_path", "")
}

// Load reads path (a missing file is fine), then applies INBOXSHEET_*
// environment overrides. The bare SPREADSHEET_ID variable is honored too.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("spreadsheet_id", EnvPrefix+"_SPREADSHEET_ID", "SPREADSHEET_ID"); err != nil {
		return Config{}, fmt.Errorf("bind spreadsheet id env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var pathErr *fs.PathError
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.SubjectKeywords = splitItems(cfg.SubjectKeywords)
	cfg.Scopes = splitItems(cfg.Scopes)
	return cfg, nil
}

// Validate reports every problem at once, each wrapped in ErrInvalid.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}
	switch {
	case c.SpreadsheetID == "":
		add("spreadsheet_id is required (set %s_SPREADSHEET_ID or -spreadsheet-id)", EnvPrefix)
	case !spreadsheetIDPattern.MatchString(c.SpreadsheetID):
		add("spreadsheet_id %q has unexpected characters", c.SpreadsheetID)
	}
	if c.CredentialsPath == "" {
		add("credentials_path is required")
	}
	switch c.TokenStore {
	case TokenStoreFile:
		if c.TokenPath == "" {
			add("token_path is required for the file token store")
		}
	case TokenStoreKeyring:
	default:
		add("token_store must be %q or %q, got %q", TokenStoreFile, TokenStoreKeyring, c.TokenStore)
	}
	if c.StatePath == "" {
		add("state_path is required")
	}
	if c.MaxCandidates <= 0 {
		add("max_candidates must be positive, got %d", c.MaxCandidates)
	}
	if c.ContentLimit <= 0 {
		add("content_limit must be positive, got %d", c.ContentLimit)
	}
	if c.RPS < 0 {
		add("rps must not be negative, got %d", c.RPS)
	}
	if c.CallTimeout < 0 {
		add("call_timeout must not be negative, got %s", c.CallTimeout)
	}
	if c.Retry.MaxAttempts < 1 {
		add("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	if c.Retry.InitialDelay < 0 {
		add("retry.initial_delay must not be negative, got %s", c.Retry.InitialDelay)
	}
	if c.Retry.Factor < 1 {
		add("retry.factor must be at least 1, got %g", c.Retry.Factor)
	}
	return errors.Join(errs...)
}

// IngestOptions maps the config onto one run's options.
func (c Config) IngestOptions() ingest.Options {
	return ingest.Options{
		SpreadsheetID: c.SpreadsheetID,
		RowRange:      c.RowRange,
		IDRange:       c.IDRange,
		Query:         c.Query,
		MaxCandidates: c.MaxCandidates,
		Keywords:      c.SubjectKeywords,
		MarkFiltered:  c.MarkFiltered,
		ContentLimit:  c.ContentLimit,
		CallTimeout:   c.CallTimeout,
		DryRun:        c.DryRun,
	}
}

// RetryPolicy builds the append retry policy. A zero initial delay from the
// config means no wait between attempts.
func (c Config) RetryPolicy(retryable func(error) bool) retry.Policy {
	delay := c.Retry.InitialDelay
	if delay == 0 {
		delay = -1
	}
	return retry.Policy{
		MaxAttempts:  c.Retry.MaxAttempts,
		InitialDelay: delay,
		Factor:       c.Retry.Factor,
		Retryable:    retryable,
	}
}

// splitItems accepts both YAML lists and comma separated env values.
func splitItems(items []string) []string {
	var out []string
	for _, item := range items {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

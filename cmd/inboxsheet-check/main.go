package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/joshsymonds/inboxsheet/internal/config"
	"github.com/joshsymonds/inboxsheet/internal/runtime"
	"github.com/joshsymonds/inboxsheet/internal/sheets"
)

type checkConfig struct {
	configPath    string
	spreadsheetID string
	timeout       time.Duration
}

func main() {
	cfg := parseCheckFlags()
	if err := run(cfg); err != nil {
		runtime.DefaultLogger().Error("inboxsheet-check failed", "error", err)
		os.Exit(1)
	}
}

func parseCheckFlags() checkConfig {
	configPath := flag.String("config", config.DefaultPath, "YAML config file (optional)")
	spreadsheetID := flag.String("spreadsheet-id", "", "spreadsheet to probe (overrides config)")
	timeout := flag.Duration("timeout", 30*time.Second, "deadline for the probe")
	flag.Parse()
	return checkConfig{configPath: *configPath, spreadsheetID: *spreadsheetID, timeout: *timeout}
}

func run(cc checkConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(cc.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cc.spreadsheetID != "" {
		cfg.SpreadsheetID = strings.TrimSpace(cc.spreadsheetID)
	}
	if validErr := cfg.Validate(); validErr != nil {
		return validErr
	}

	logger := runtime.DefaultLogger()
	tokens, err := runtime.OpenTokenStore(cfg.TokenStore, cfg.TokenPath)
	if err != nil {
		return fmt.Errorf("open token store: %w", err)
	}
	_, client, err := runtime.NewClients(ctx, runtime.AuthConfig{
		CredentialsPath: cfg.CredentialsPath,
		Scopes:          cfg.Scopes,
		Tokens:          tokens,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("create google clients: %w", err)
	}

	ctx, cancelProbe := context.WithTimeout(ctx, cc.timeout)
	defer cancelProbe()
	return probe(ctx, client, cfg, os.Stdout)
}

// probe confirms the spreadsheet is reachable and the configured tabs exist.
func probe(ctx context.Context, client sheets.Client, cfg config.Config, w io.Writer) error {
	desc, err := client.Describe(ctx, cfg.SpreadsheetID)
	if err != nil {
		return explain(cfg.SpreadsheetID, err)
	}
	fmt.Fprintf(w, "spreadsheet %q is reachable\n", desc.Title)
	fmt.Fprintf(w, "tabs: %s\n", strings.Join(desc.Tabs, ", "))

	var missing []string
	for _, rng := range []string{cfg.RowRange, cfg.IDRange} {
		tab := tabName(rng)
		if tab != "" && !slices.Contains(desc.Tabs, tab) && !slices.Contains(missing, tab) {
			missing = append(missing, tab)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("configured tab(s) %s not found in spreadsheet", strings.Join(missing, ", "))
	}

	ids, err := client.ReadColumn(ctx, cfg.SpreadsheetID, cfg.IDRange)
	if err != nil {
		return fmt.Errorf("read id column %s: %w", cfg.IDRange, err)
	}
	fmt.Fprintf(w, "id column %s holds %s cells\n", cfg.IDRange, humanize.Comma(int64(len(ids))))
	return nil
}

// explain adds an actionable hint to the two failures users usually hit.
func explain(spreadsheetID string, err error) error {
	switch runtime.StatusCode(err) {
	case http.StatusNotFound:
		return fmt.Errorf("spreadsheet %s not found, check spreadsheet_id: %w", spreadsheetID, err)
	case http.StatusForbidden:
		return fmt.Errorf("no access to spreadsheet %s, share it with the authorized account or re-consent with the spreadsheets scope: %w", spreadsheetID, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("spreadsheet probe timed out: %w", err)
	}
	return fmt.Errorf("describe spreadsheet %s: %w", spreadsheetID, err)
}

// tabName returns the sheet part of an A1 range such as "Sheet1!A:E".
func tabName(a1 string) string {
	tab, _, ok := strings.Cut(a1, "!")
	if !ok {
		return ""
	}
	return strings.Trim(tab, "'")
}


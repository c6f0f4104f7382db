// internal/runtime/auth.go
package runtime

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	gc "github.com/joshsymonds/inboxsheet/internal/gmail"
	sc "github.com/joshsymonds/inboxsheet/internal/sheets"
)

// DefaultScopes lets one token read and modify Gmail and write Sheets.
func DefaultScopes() []string {
	return []string{gmail.GmailModifyScope, sheets.SpreadsheetsScope}
}

// AuthConfig locates the OAuth client secret and the cached token.
type AuthConfig struct {
	CredentialsPath string
	Scopes          []string
	Tokens          TokenStore
	// In and Out drive the one-time consent prompt.
	In     io.Reader
	Out    io.Writer
	Logger *slog.Logger
}

// NewHTTPClient returns an authorized client. The first run walks the user
// through consent; later runs reuse and refresh the stored token.
func NewHTTPClient(ctx context.Context, cfg AuthConfig) (*http.Client, error) {
	secret, err := os.ReadFile(cfg.CredentialsPath)
	if err != nil {
		return nil, fmt.Errorf("read client secret %s: %w", cfg.CredentialsPath, err)
	}
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes()
	}
	oc, err := google.ConfigFromJSON(secret, scopes...)
	if err != nil {
		return nil, fmt.Errorf("parse client secret: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = DefaultLogger()
	}

	tok, err := cfg.Tokens.Load()
	if err != nil {
		logger.Info("no usable cached token, starting consent flow", "error", err)
		tok, err = tokenFromWeb(ctx, oc, cfg.In, cfg.Out)
		if err != nil {
			return nil, err
		}
		if saveErr := cfg.Tokens.Save(tok); saveErr != nil {
			return nil, fmt.Errorf("save token: %w", saveErr)
		}
	}

	ts := &persistingTokenSource{
		base:   oc.TokenSource(ctx, tok),
		store:  cfg.Tokens,
		last:   tok.AccessToken,
		logger: logger,
	}
	return oauth2.NewClient(ctx, ts), nil
}

// NewClients builds the Gmail and Sheets adapters on one authorized client.
func NewClients(ctx context.Context, cfg AuthConfig) (gc.Client, sc.Client, error) {
	httpClient, err := NewHTTPClient(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	gsvc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, nil, fmt.Errorf("create gmail service: %w", err)
	}
	ssvc, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, nil, fmt.Errorf("create sheets service: %w", err)
	}
	return NewGoogleAPIClient(gsvc), NewSheetsAPIClient(ssvc), nil
}

func tokenFromWeb(ctx context.Context, oc *oauth2.Config, in io.Reader, out io.Writer) (*oauth2.Token, error) {
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stderr
	}
	authURL := oc.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	if _, err := fmt.Fprintf(out, "Open this link in your browser, approve access, then paste the authorization code:\n%s\n", authURL); err != nil {
		return nil, fmt.Errorf("write consent prompt: %w", err)
	}
	var code string
	if _, err := fmt.Fscan(in, &code); err != nil {
		return nil, fmt.Errorf("read authorization code: %w", err)
	}
	tok, err := oc.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("exchange authorization code: %w", err)
	}
	return tok, nil
}

// persistingTokenSource writes refreshed tokens back to the store so the
// next run starts from the newest refresh state.
type persistingTokenSource struct {
	mu     sync.Mutex
	base   oauth2.TokenSource
	store  TokenStore
	last   string
	logger *slog.Logger
}

func (p *persistingTokenSource) Token() (*oauth2.Token, error) {
	tok, err := p.base.Token()
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		if saveErr := p.store.Save(tok); saveErr != nil {
			p.logger.Warn("persist refreshed token failed", "error", saveErr)
		} else {
			p.last = tok.AccessToken
		}
	}
	return tok, nil
}

// DefaultLogger is the stderr text logger used by the binaries.
func DefaultLogger() *slog.Logger {
	return NewLogger(false)
}

// NewLogger returns a stderr text logger; verbose enables debug records.
func NewLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

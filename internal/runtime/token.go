package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/99designs/keyring"
	"golang.org/x/oauth2"
)

const (
	keyringService = "inboxsheet"
	keyringKey     = "oauth-token"

	TokenStoreFile    = "file"
	TokenStoreKeyring = "keyring"
)

// TokenStore caches the OAuth token between runs.
type TokenStore interface {
	Load() (*oauth2.Token, error)
	Save(tok *oauth2.Token) error
}

// OpenTokenStore returns the store named by kind. The keyring's file
// fallback lives next to path.
func OpenTokenStore(kind, path string) (TokenStore, error) {
	switch kind {
	case TokenStoreFile, "":
		return FileTokenStore{Path: path}, nil
	case TokenStoreKeyring:
		store, err := OpenKeyringTokenStore(keyringKey, filepath.Dir(path))
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown token store %q", kind)
	}
}

// FileTokenStore keeps the token as JSON on disk.
type FileTokenStore struct {
	Path string
}

func (f FileTokenStore) Load() (*oauth2.Token, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read token %s: %w", f.Path, err)
	}
	return decodeToken(data)
}

func (f FileTokenStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}
	if err := os.WriteFile(f.Path, data, 0o600); err != nil {
		return fmt.Errorf("write token %s: %w", f.Path, err)
	}
	return nil
}

// KeyringTokenStore keeps the token in the OS keychain.
type KeyringTokenStore struct {
	Ring keyring.Keyring
	Key  string
}

// OpenKeyringTokenStore opens the system keyring, falling back to an
// encrypted file under fileDir when no native backend is available.
func OpenKeyringTokenStore(key, fileDir string) (*KeyringTokenStore, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: keyringService,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(keyringService + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open keyring: %w", err)
	}
	return &KeyringTokenStore{Ring: ring, Key: key}, nil
}

func (k *KeyringTokenStore) Load() (*oauth2.Token, error) {
	item, err := k.Ring.Get(k.Key)
	if err != nil {
		return nil, fmt.Errorf("get token %q from keyring: %w", k.Key, err)
	}
	return decodeToken(item.Data)
}

func (k *KeyringTokenStore) Save(tok *oauth2.Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}
	if err := k.Ring.Set(keyring.Item{Key: k.Key, Data: data, Label: keyringService + " OAuth token"}); err != nil {
		return fmt.Errorf("set token %q in keyring: %w", k.Key, err)
	}
	return nil
}

func decodeToken(data []byte) (*oauth2.Token, error) {
	tok := &oauth2.Token{}
	if err := json.Unmarshal(data, tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, errors.New("token has neither access nor refresh token")
	}
	return tok, nil
}

package credential

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"time"

	"github.com/zalando/go-keyring"
	"golang.org/x/oauth2"
)

const (
	// ClaudeCodeKeychainService is the keychain service name Claude Code uses
	// for the default config directory.
	ClaudeCodeKeychainService = "Claude Code-credentials"

	// ClaudeCredentialsFile is the credentials file inside a config directory.
	ClaudeCredentialsFile = ".credentials.json"
)

// ErrNoOAuthToken is returned when neither the keychain nor the config
// directory hold an OAuth token.
var ErrNoOAuthToken = errors.New("no OAuth token found")

// ClaudeOAuthCredentials is the JSON document Claude Code stores.
type ClaudeOAuthCredentials struct {
	ClaudeAiOauth *ClaudeOAuthToken `json:"claudeAiOauth,omitempty"`
}

// ClaudeOAuthToken represents an individual OAuth token from Claude Code.
type ClaudeOAuthToken struct {
	AccessToken      string   `json:"accessToken"`
	RefreshToken     string   `json:"refreshToken"`
	ExpiresAt        int64    `json:"expiresAt"` // Unix timestamp in milliseconds
	Scopes           []string `json:"scopes"`
	SubscriptionType string   `json:"subscriptionType,omitempty"`
	RateLimitTier    string   `json:"rateLimitTier,omitempty"`
}

// ExpiresAtTime returns the expiration time as a time.Time.
func (t *ClaudeOAuthToken) ExpiresAtTime() time.Time {
	return time.UnixMilli(t.ExpiresAt)
}

// OAuth2 converts the token into an oauth2.Token. A zero ExpiresAt yields a
// token without expiry.
func (t *ClaudeOAuthToken) OAuth2() *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    "Bearer",
	}
	if t.ExpiresAt > 0 {
		tok.Expiry = t.ExpiresAtTime()
	}
	return tok
}

// KeychainGetter reads a secret from the system keychain.
type KeychainGetter func(service, user string) (string, error)

// TokenReader looks up Claude OAuth tokens for a config directory. Lookups are
// read-only: it never writes to the keychain or the credentials file.
type TokenReader struct {
	// Keychain defaults to go-keyring's Get.
	Keychain KeychainGetter
	// User is the keychain account name; defaults to the current OS user.
	User string
}

// NewTokenReader returns a TokenReader backed by the system keychain.
func NewTokenReader() *TokenReader {
	return &TokenReader{Keychain: keyring.Get}
}

// KeychainService returns the keychain service name Claude Code uses for
// configDir. The default directory (empty configDir) has no suffix; other
// directories are suffixed with the first 8 hex digits of their SHA-256.
func KeychainService(configDir string) string {
	if configDir == "" {
		return ClaudeCodeKeychainService
	}
	sum := sha256.Sum256([]byte(configDir))
	return ClaudeCodeKeychainService + "-" + hex.EncodeToString(sum[:])[:8]
}

// Token returns the OAuth token for configDir. It tries the keychain first,
// then {configDir}/.credentials.json. An empty configDir means ~/.claude.
func (r *TokenReader) Token(configDir string) (*oauth2.Token, error) {
	if tok, err := r.fromKeychain(configDir); err == nil {
		return tok, nil
	}
	return r.fromFile(configDir)
}

func (r *TokenReader) fromKeychain(configDir string) (*oauth2.Token, error) {
	if r.Keychain == nil {
		return nil, ErrNoOAuthToken
	}
	secret, err := r.Keychain(KeychainService(configDir), r.user())
	if err != nil {
		return nil, fmt.Errorf("keychain lookup: %w", err)
	}
	return parseCredentials([]byte(secret), "keychain")
}

func (r *TokenReader) fromFile(configDir string) (*oauth2.Token, error) {
	dir := configDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dir = filepath.Join(home, ".claude")
	}

	credPath := filepath.Join(dir, ClaudeCredentialsFile)
	data, err := os.ReadFile(credPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNoOAuthToken, dir)
		}
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	return parseCredentials(data, credPath)
}

func (r *TokenReader) user() string {
	if r.User != "" {
		return r.User
	}
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}

func parseCredentials(data []byte, source string) (*oauth2.Token, error) {
	var creds ClaudeOAuthCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("parsing credentials from %s: %w", source, err)
	}
	if creds.ClaudeAiOauth == nil || creds.ClaudeAiOauth.AccessToken == "" {
		return nil, fmt.Errorf("%w in %s", ErrNoOAuthToken, source)
	}
	return creds.ClaudeAiOauth.OAuth2(), nil
}

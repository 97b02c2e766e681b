// Package credential defines the environment variables that carry credential
// material into subprocesses and the helpers for reading Claude OAuth tokens.
package credential

import (
	"maps"
	"sort"
	"strings"
)

// Environment variables consumed by the Claude CLI and related tools.
const (
	// EnvConfigDir points the CLI at a profile's config directory. Its
	// presence marks an OAuth environment as usable.
	EnvConfigDir = "CLAUDE_CONFIG_DIR"
	// EnvOAuthToken carries a raw OAuth access token.
	EnvOAuthToken = "CLAUDE_CODE_OAUTH_TOKEN"

	EnvAPIKey       = "ANTHROPIC_API_KEY"
	EnvAuthToken    = "ANTHROPIC_AUTH_TOKEN"
	EnvBaseURL      = "ANTHROPIC_BASE_URL"
	EnvModel        = "ANTHROPIC_MODEL"
	EnvHaikuModel   = "ANTHROPIC_DEFAULT_HAIKU_MODEL"
	EnvSonnetModel  = "ANTHROPIC_DEFAULT_SONNET_MODEL"
	EnvOpusModel    = "ANTHROPIC_DEFAULT_OPUS_MODEL"
	EnvGitHubToken  = "GITHUB_TOKEN"
	EnvGHToken      = "GH_TOKEN"
	EnvGitNoPrompts = "GIT_TERMINAL_PROMPT"
)

// apiOnlyKeys are set by API profiles and must not survive into an OAuth run.
var apiOnlyKeys = []string{
	EnvAPIKey,
	EnvAuthToken,
	EnvBaseURL,
	EnvModel,
	EnvHaikuModel,
	EnvSonnetModel,
	EnvOpusModel,
}

// oauthOnlyKeys are set by OAuth profiles and must not shadow an API key.
var oauthOnlyKeys = []string{
	EnvOAuthToken,
	EnvConfigDir,
}

// Env is a set of environment variables keyed by name.
type Env map[string]string

// Clone returns a copy of e. A nil Env clones to an empty, non-nil Env.
func (e Env) Clone() Env {
	out := make(Env, len(e))
	maps.Copy(out, e)
	return out
}

// Overlay copies every key of src into e, replacing existing values.
func (e Env) Overlay(src Env) {
	maps.Copy(e, src)
}

// Has reports whether key is present with a non-blank value.
func (e Env) Has(key string) bool {
	return strings.TrimSpace(e[key]) != ""
}

// Keys returns the variable names in sorted order.
func (e Env) Keys() []string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Pairs renders e as KEY=VALUE strings sorted by key, the form expected by
// exec.Cmd.Env.
func (e Env) Pairs() []string {
	pairs := make([]string, 0, len(e))
	for _, k := range e.Keys() {
		pairs = append(pairs, k+"="+e[k])
	}
	return pairs
}

// ParsePairs parses KEY=VALUE strings. Entries without '=' are ignored.
func ParsePairs(pairs []string) Env {
	env := make(Env, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			continue
		}
		env[k] = v
	}
	return env
}

// ClearVars returns the variables that must be blanked for a run using apiEnv.
//
// With an empty apiEnv the run is OAuth-backed and every API-only variable is
// blanked so a stale key in the base environment cannot take over. With a
// non-empty apiEnv the OAuth-only variables are blanked instead. Keys set by
// apiEnv itself are never blanked.
func ClearVars(apiEnv Env) Env {
	keys := apiOnlyKeys
	if len(apiEnv) > 0 {
		keys = oauthOnlyKeys
	}

	blank := make(Env, len(keys))
	for _, k := range keys {
		if _, ok := apiEnv[k]; ok {
			continue
		}
		blank[k] = ""
	}
	return blank
}

// IsSensitive reports whether the variable holds secret material and should
// be redacted when displayed.
func IsSensitive(key string) bool {
	switch key {
	case EnvOAuthToken, EnvAPIKey, EnvAuthToken, EnvGitHubToken, EnvGHToken:
		return true
	}
	return strings.HasSuffix(key, "_TOKEN") || strings.HasSuffix(key, "_API_KEY")
}

// IsOAuthToken returns true if the token appears to be a Claude Code OAuth token.
//
// This uses a prefix-based heuristic: OAuth tokens from Claude Code start with
// "sk-ant-oat" (Anthropic OAuth Token). API keys start with "sk-ant-api".
func IsOAuthToken(token string) bool {
	return len(token) > 10 && token[:10] == "sk-ant-oat"
}

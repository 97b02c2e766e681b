package oauth

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/majorcontext/drawbridge/internal/credential"
)

// CleanProfileEnv strips invalid or partial values from an OAuth profile
// environment.
//
// Values are trimmed and blank entries dropped. A leading "~/" in the config
// directory is expanded. When a config directory is present the raw token is
// dropped, since the CLI reads that directory's own credentials. A token that
// is actually an API key is dropped as well.
func CleanProfileEnv(env credential.Env) credential.Env {
	out := make(credential.Env, len(env))
	for k, v := range env {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[k] = v
	}

	if dir, ok := out[credential.EnvConfigDir]; ok {
		out[credential.EnvConfigDir] = expandHome(dir)
		delete(out, credential.EnvOAuthToken)
	}
	if tok, ok := out[credential.EnvOAuthToken]; ok && strings.HasPrefix(tok, "sk-ant-api") {
		delete(out, credential.EnvOAuthToken)
	}
	return out
}

// IsUsableEnv reports whether a cleaned environment carries either OAuth
// marker.
func IsUsableEnv(env credential.Env) bool {
	return env.Has(credential.EnvConfigDir) || env.Has(credential.EnvOAuthToken)
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path[1:], "/"))
		}
	}
	return path
}

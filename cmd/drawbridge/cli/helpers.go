package cli

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/majorcontext/drawbridge/internal/account"
	"github.com/majorcontext/drawbridge/internal/apiprofile"
	"github.com/majorcontext/drawbridge/internal/authenv"
	"github.com/majorcontext/drawbridge/internal/config"
	"github.com/majorcontext/drawbridge/internal/credential"
	"github.com/majorcontext/drawbridge/internal/github"
	"github.com/majorcontext/drawbridge/internal/oauth"
	"github.com/majorcontext/drawbridge/internal/runner"
)

// validEnvKey matches valid environment variable names.
var validEnvKey = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// registries bundles the on-disk stores a command works against.
type registries struct {
	settings *config.SettingsFile
	oauth    *oauth.Manager
	api      *apiprofile.Registry
}

// openRegistries opens the stores under the drawbridge config directory.
// Callers must Close the result.
func openRegistries() (*registries, error) {
	mgr, err := oauth.Open(oauth.DefaultDir())
	if err != nil {
		return nil, fmt.Errorf("opening oauth profiles: %w", err)
	}
	return &registries{
		settings: config.NewSettingsFile(),
		oauth:    mgr,
		api:      apiprofile.Default(),
	}, nil
}

func (r *registries) Close() error {
	return r.oauth.Close()
}

func (r *registries) resolver() *authenv.Resolver {
	return authenv.NewResolver(r.settings, r.oauth, r.api)
}

// composer returns a Composer that starts from the configured Python
// runtime environment.
func (r *registries) composer(rt config.RuntimeConfig) *runner.Composer {
	return &runner.Composer{
		Resolver: r.resolver(),
		Tokens:   github.NewTokenBridge(),
		BaseEnv:  func() credential.Env { return runner.PythonEnv(rt) },
	}
}

// parseFeature validates a feature argument.
func parseFeature(s string) (account.Feature, error) {
	f, err := account.ParseFeature(s)
	if err != nil {
		return "", fmt.Errorf("%w\n\nKnown features: %s", err, strings.Join(featureNames(), ", "))
	}
	return f, nil
}

func featureNames() []string {
	features := account.Features()
	names := make([]string, len(features))
	for i, f := range features {
		names[i] = string(f)
	}
	return names
}

// parseEnvFlags parses repeated -e KEY=VALUE flags.
func parseEnvFlags(envFlags []string) (credential.Env, error) {
	env := credential.Env{}
	for _, e := range envFlags {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			return nil, fmt.Errorf("invalid environment variable %q: expected KEY=VALUE format", e)
		}
		if !validEnvKey.MatchString(key) {
			return nil, fmt.Errorf("invalid environment variable name %q: must start with letter or underscore, contain only letters, digits, and underscores", key)
		}
		env[key] = value
	}
	return env, nil
}

// redact masks credential values, keeping a short prefix so tokens can be
// told apart. Blank values are left as they are.
func redact(env credential.Env) credential.Env {
	out := make(credential.Env, len(env))
	for k, v := range env {
		if v != "" && credential.IsSensitive(k) {
			v = maskSecret(v)
		}
		out[k] = v
	}
	return out
}

func maskSecret(v string) string {
	const keep = 10
	if len(v) <= keep {
		return "****"
	}
	return v[:keep] + "****"
}

// formatAge formats a time as a human-readable "ago" string.
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}

// orDash returns "-" for an empty string.
func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

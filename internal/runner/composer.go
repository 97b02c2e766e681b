// Package runner builds the process environment for a feature's subprocess.
package runner

import (
	"context"
	"fmt"

	"github.com/majorcontext/drawbridge/internal/account"
	"github.com/majorcontext/drawbridge/internal/authenv"
	"github.com/majorcontext/drawbridge/internal/credential"
	"github.com/majorcontext/drawbridge/internal/log"
)

// Resolver picks the credential for a feature.
type Resolver interface {
	ResolveForFeature(ctx context.Context, feature account.Feature) (*authenv.Resolution, error)
}

// TokenBridge supplies a GitHub token. An empty token means none.
type TokenBridge interface {
	GitHubToken(ctx context.Context) (string, error)
}

// Composer merges runtime variables, resolved credentials, a GitHub token
// and caller overrides into one environment.
type Composer struct {
	Resolver Resolver
	Tokens   TokenBridge
	// BaseEnv returns the runtime variables every subprocess starts from.
	BaseEnv func() credential.Env
}

// RunnerEnv resolves feature and returns its composed environment.
// Resolver errors are returned; token bridge errors are logged and treated
// as no token.
func (c *Composer) RunnerEnv(ctx context.Context, feature account.Feature, extra credential.Env) (credential.Env, error) {
	var base credential.Env
	if c.BaseEnv != nil {
		base = c.BaseEnv()
	}

	res, err := c.Resolver.ResolveForFeature(ctx, feature)
	if err != nil {
		return nil, fmt.Errorf("resolving credentials for %s: %w", feature, err)
	}

	var token string
	if c.Tokens != nil {
		token, err = c.Tokens.GitHubToken(ctx)
		if err != nil {
			log.Debug("github token unavailable", "feature", feature, "error", err)
			token = ""
		}
	}

	return Compose(base, res, token, extra), nil
}

// Compose layers the inputs key by key, later layers winning:
// base, ProfileEnv, APIProfileEnv, OAuthModeClearVars, GITHUB_TOKEN, extra.
// GITHUB_TOKEN is only set when githubToken is non-empty.
func Compose(base credential.Env, res *authenv.Resolution, githubToken string, extra credential.Env) credential.Env {
	env := base.Clone()
	if res != nil {
		env.Overlay(res.ProfileEnv)
		env.Overlay(res.APIProfileEnv)
		env.Overlay(res.OAuthModeClearVars)
	}
	if githubToken != "" {
		env[credential.EnvGitHubToken] = githubToken
	}
	env.Overlay(extra)
	return env
}

package authenv

import (
	"context"

	"github.com/majorcontext/drawbridge/internal/apiprofile"
	"github.com/majorcontext/drawbridge/internal/config"
	"github.com/majorcontext/drawbridge/internal/credential"
	"github.com/majorcontext/drawbridge/internal/oauth"
)

// SettingsSource supplies the routing configuration. It is consulted on
// every resolution; implementations must not cache.
type SettingsSource interface {
	Routing(ctx context.Context) (config.Routing, error)
}

// OAuthRegistry is the OAuth profile manager as seen by the resolver.
//
// Every method except BestAvailableProfileEnv must be free of side effects
// on the globally active profile.
type OAuthRegistry interface {
	// Profile returns nil, nil when id is not registered.
	Profile(ctx context.Context, id string) (*oauth.Profile, error)
	HasValidAuth(ctx context.Context, id string) (bool, error)
	RateLimitStatus(ctx context.Context, id string) (oauth.RateLimitStatus, error)
	ProfileEnv(ctx context.Context, id string) (credential.Env, error)
	// PriorityOrder returns account id strings ("oauth-x", "api-y").
	PriorityOrder(ctx context.Context) ([]string, error)
	// ActiveProfile returns nil, nil when no profile is active.
	ActiveProfile(ctx context.Context) (*oauth.Profile, error)
	Profiles(ctx context.Context) ([]oauth.Profile, error)
	ActiveProfileEnv(ctx context.Context) (credential.Env, error)
	// BestAvailableProfileEnv may swap the active profile.
	BestAvailableProfileEnv(ctx context.Context) (oauth.BestAvailable, error)
	CleanProfileEnv(env credential.Env) credential.Env
}

// APIRegistry is the API profile registry as seen by the resolver.
type APIRegistry interface {
	ActiveProfileEnv(ctx context.Context) (credential.Env, error)
	// ProfileEnv returns an empty env when id is not registered.
	ProfileEnv(ctx context.Context, id string) (credential.Env, error)
	Snapshot(ctx context.Context) (apiprofile.Snapshot, error)
}

var (
	_ SettingsSource = (*config.SettingsFile)(nil)
	_ OAuthRegistry  = (*oauth.Manager)(nil)
	_ APIRegistry    = (*apiprofile.Registry)(nil)
)

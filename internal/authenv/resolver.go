// Package authenv decides which credential a feature runs with.
//
// In global mode every feature uses the globally active account, and the
// OAuth registry may swap that account when it is degraded. In per_feature
// mode each feature walks an ordered candidate list in two passes, first
// skipping rate-limited accounts and then accepting them. Per-feature
// resolution never changes the globally active account.
package authenv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/majorcontext/drawbridge/internal/account"
	"github.com/majorcontext/drawbridge/internal/config"
	"github.com/majorcontext/drawbridge/internal/credential"
	"github.com/majorcontext/drawbridge/internal/log"
)

// Resolver picks the credential environment for a feature.
type Resolver struct {
	settings SettingsSource
	oauth    OAuthRegistry
	api      APIRegistry
}

// NewResolver creates a Resolver over the given collaborators.
func NewResolver(settings SettingsSource, oauth OAuthRegistry, api APIRegistry) *Resolver {
	return &Resolver{settings: settings, oauth: oauth, api: api}
}

// ResolveForFeature returns the credential environment for feature.
//
// Exhausting every candidate is not an error: the result then carries the
// active OAuth profile's environment, or SourceNone when there is none.
// Errors are returned only when a registry cannot be read.
func (r *Resolver) ResolveForFeature(ctx context.Context, feature account.Feature) (*Resolution, error) {
	routing, err := r.settings.Routing(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading routing config: %w", err)
	}
	if routing.Mode != config.ModePerFeature {
		return r.ResolveGlobal(ctx)
	}

	preferred := routing.Preferred(feature)
	candidates, err := r.candidates(ctx, preferred)
	if err != nil {
		return nil, err
	}

	logger := log.ForFeature(feature)
	for _, allowLimited := range []bool{false, true} {
		for _, id := range candidates.IDs() {
			res, reason, err := r.try(ctx, id, allowLimited)
			if err != nil {
				return nil, fmt.Errorf("checking account %s: %w", id, err)
			}
			if res == nil {
				logger.Debug("candidate rejected",
					log.AccountAttr(id),
					slog.String("reason", reason),
					slog.Bool("allow_limited", allowLimited))
				continue
			}
			res.ResolvedAccountID = id
			res.FallbackUsed = id != preferred
			logger.Debug("resolved account",
				log.AccountAttr(id),
				slog.Bool("fallback", res.FallbackUsed))
			return res, nil
		}
	}

	logger.Debug("no candidate accepted, using active oauth profile")
	return r.terminalFallback(ctx)
}

// candidates builds the ordered, de-duplicated list of accounts to try.
func (r *Resolver) candidates(ctx context.Context, preferred account.ID) (*account.Candidates, error) {
	c := &account.Candidates{}
	c.Add(preferred)

	order, err := r.oauth.PriorityOrder(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading account priority order: %w", err)
	}
	for _, s := range order {
		c.Add(account.Parse(s))
	}

	snap, err := r.api.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading api profiles: %w", err)
	}
	c.Add(account.API(snap.ActiveProfileID))

	active, err := r.oauth.ActiveProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading active oauth profile: %w", err)
	}
	if active != nil {
		c.Add(account.OAuth(active.ID))
	}

	profiles, err := r.oauth.Profiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing oauth profiles: %w", err)
	}
	for _, p := range profiles {
		c.Add(account.OAuth(p.ID))
	}
	for _, p := range snap.Profiles {
		c.Add(account.API(p.ID))
	}
	return c, nil
}

// try returns a resolution for id, or nil and the rejection reason.
func (r *Resolver) try(ctx context.Context, id account.ID, allowLimited bool) (*Resolution, string, error) {
	switch id.Kind {
	case account.KindOAuth:
		return r.tryOAuth(ctx, id.Raw, allowLimited)
	case account.KindAPI:
		return r.tryAPI(ctx, id.Raw)
	default:
		return nil, "unrecognised account id", nil
	}
}

func (r *Resolver) tryOAuth(ctx context.Context, id string, allowLimited bool) (*Resolution, string, error) {
	p, err := r.oauth.Profile(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if p == nil {
		return nil, "profile not found", nil
	}
	valid, err := r.oauth.HasValidAuth(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !valid {
		return nil, "no valid auth", nil
	}
	if !allowLimited {
		status, err := r.oauth.RateLimitStatus(ctx, id)
		if err != nil {
			return nil, "", err
		}
		if status.Limited {
			return nil, "rate limited", nil
		}
		if p.Usage.AtCapacity() {
			return nil, "at capacity", nil
		}
	}

	env, err := r.oauth.ProfileEnv(ctx, id)
	if err != nil {
		return nil, "", err
	}
	env = r.oauth.CleanProfileEnv(env)
	if !env.Has(credential.EnvConfigDir) && !env.Has(credential.EnvOAuthToken) {
		return nil, "empty environment", nil
	}

	res := newResolution(config.ModePerFeature, FromFeature)
	res.ProfileEnv = env
	res.SourceType = SourceOAuth
	return res, "", nil
}

func (r *Resolver) tryAPI(ctx context.Context, id string) (*Resolution, string, error) {
	env, err := r.api.ProfileEnv(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if len(env) == 0 {
		return nil, "empty environment", nil
	}

	res := newResolution(config.ModePerFeature, FromFeature)
	res.APIProfileEnv = env
	res.OAuthModeClearVars = credential.ClearVars(env)
	res.SourceType = SourceAPI
	return res, "", nil
}

// terminalFallback returns the active OAuth profile's environment without
// any capacity check or profile swap.
func (r *Resolver) terminalFallback(ctx context.Context) (*Resolution, error) {
	res := newResolution(config.ModePerFeature, FromFeature)
	res.FallbackUsed = true

	env, err := r.oauth.ActiveProfileEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading active oauth profile env: %w", err)
	}
	env = r.oauth.CleanProfileEnv(env)
	if len(env) == 0 {
		return res, nil
	}

	res.ProfileEnv = env
	res.SourceType = SourceOAuth
	active, err := r.oauth.ActiveProfile(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading active oauth profile: %w", err)
	}
	if active != nil {
		res.ResolvedAccountID = account.OAuth(active.ID)
	}
	return res, nil
}

// ResolveGlobal returns the globally active credential. An active API
// profile wins; otherwise the OAuth registry picks its best available
// profile and may swap the active one.
func (r *Resolver) ResolveGlobal(ctx context.Context) (*Resolution, error) {
	res := newResolution(config.ModeGlobal, FromGlobal)

	apiEnv, err := r.api.ActiveProfileEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading active api profile env: %w", err)
	}
	if len(apiEnv) > 0 {
		snap, err := r.api.Snapshot(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading api profiles: %w", err)
		}
		res.APIProfileEnv = apiEnv
		res.OAuthModeClearVars = credential.ClearVars(apiEnv)
		res.ResolvedAccountID = account.API(snap.ActiveProfileID)
		res.SourceType = SourceAPI
		return res, nil
	}

	best, err := r.oauth.BestAvailableProfileEnv(ctx)
	if err != nil {
		return nil, fmt.Errorf("selecting oauth profile: %w", err)
	}
	res.FallbackUsed = best.WasSwapped
	res.OAuthModeClearVars = credential.ClearVars(nil)
	env := r.oauth.CleanProfileEnv(best.Env)
	if len(env) == 0 {
		return res, nil
	}
	res.ProfileEnv = env
	res.ResolvedAccountID = account.OAuth(best.ProfileID)
	res.SourceType = SourceOAuth
	return res, nil
}

package authenv

import (
	"context"
	"errors"

	"github.com/majorcontext/drawbridge/internal/account"
	"github.com/majorcontext/drawbridge/internal/apiprofile"
	"github.com/majorcontext/drawbridge/internal/config"
	"github.com/majorcontext/drawbridge/internal/credential"
	"github.com/majorcontext/drawbridge/internal/oauth"
)

type fakeSettings struct {
	routing config.Routing
	err     error
	calls   int
}

func (f *fakeSettings) Routing(context.Context) (config.Routing, error) {
	f.calls++
	return f.routing, f.err
}

func perFeature(m map[account.Feature]account.ID) *fakeSettings {
	return &fakeSettings{routing: config.Routing{Mode: config.ModePerFeature, FeatureMap: m}}
}

// fakeOAuth is an in-memory OAuthRegistry. Profiles keep insertion order.
type fakeOAuth struct {
	profiles []oauth.Profile
	invalid  map[string]bool
	limited  map[string]bool
	envs     map[string]credential.Env
	priority []string
	activeID string
	best     oauth.BestAvailable
	err      error

	bestCalls     int
	priorityCalls int
	profilesCalls int
}

func newFakeOAuth() *fakeOAuth {
	return &fakeOAuth{
		invalid: map[string]bool{},
		limited: map[string]bool{},
		envs:    map[string]credential.Env{},
	}
}

// add registers a healthy profile whose env points at dir.
func (f *fakeOAuth) add(id, dir string) *fakeOAuth {
	f.profiles = append(f.profiles, oauth.Profile{ID: id, ConfigDir: dir})
	f.envs[id] = credential.Env{credential.EnvConfigDir: dir}
	if f.activeID == "" {
		f.activeID = id
	}
	return f
}

func (f *fakeOAuth) find(id string) *oauth.Profile {
	for i := range f.profiles {
		if f.profiles[i].ID == id {
			p := f.profiles[i]
			return &p
		}
	}
	return nil
}

func (f *fakeOAuth) Profile(_ context.Context, id string) (*oauth.Profile, error) {
	return f.find(id), f.err
}

func (f *fakeOAuth) HasValidAuth(_ context.Context, id string) (bool, error) {
	return f.find(id) != nil && !f.invalid[id], f.err
}

func (f *fakeOAuth) RateLimitStatus(_ context.Context, id string) (oauth.RateLimitStatus, error) {
	return oauth.RateLimitStatus{Limited: f.limited[id]}, f.err
}

func (f *fakeOAuth) ProfileEnv(_ context.Context, id string) (credential.Env, error) {
	return f.envs[id].Clone(), f.err
}

func (f *fakeOAuth) PriorityOrder(context.Context) ([]string, error) {
	f.priorityCalls++
	return f.priority, f.err
}

func (f *fakeOAuth) ActiveProfile(context.Context) (*oauth.Profile, error) {
	return f.find(f.activeID), f.err
}

func (f *fakeOAuth) Profiles(context.Context) ([]oauth.Profile, error) {
	f.profilesCalls++
	return f.profiles, f.err
}

func (f *fakeOAuth) ActiveProfileEnv(context.Context) (credential.Env, error) {
	return f.envs[f.activeID].Clone(), f.err
}

func (f *fakeOAuth) BestAvailableProfileEnv(context.Context) (oauth.BestAvailable, error) {
	f.bestCalls++
	return f.best, f.err
}

func (f *fakeOAuth) CleanProfileEnv(env credential.Env) credential.Env {
	return oauth.CleanProfileEnv(env)
}

type fakeAPI struct {
	snap  apiprofile.Snapshot
	envs  map[string]credential.Env
	err   error
	calls int
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{envs: map[string]credential.Env{}}
}

func (f *fakeAPI) add(id, token string) *fakeAPI {
	f.snap.Profiles = append(f.snap.Profiles, apiprofile.Profile{ID: id, APIKey: token})
	f.envs[id] = credential.Env{credential.EnvAuthToken: token}
	return f
}

func (f *fakeAPI) ActiveProfileEnv(context.Context) (credential.Env, error) {
	f.calls++
	return f.envs[f.snap.ActiveProfileID].Clone(), f.err
}

func (f *fakeAPI) ProfileEnv(_ context.Context, id string) (credential.Env, error) {
	f.calls++
	return f.envs[id].Clone(), f.err
}

func (f *fakeAPI) Snapshot(context.Context) (apiprofile.Snapshot, error) {
	f.calls++
	return f.snap, f.err
}

var errRegistry = errors.New("registry unavailable")

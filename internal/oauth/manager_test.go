package oauth

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/majorcontext/drawbridge/internal/account"
	"github.com/majorcontext/drawbridge/internal/credential"
)

// fakeTokens maps config directories to tokens.
type fakeTokens map[string]*oauth2.Token

func (f fakeTokens) Token(configDir string) (*oauth2.Token, error) {
	if tok, ok := f[configDir]; ok {
		return tok, nil
	}
	return nil, credential.ErrNoOAuthToken
}

func validToken(s string) *oauth2.Token {
	return &oauth2.Token{AccessToken: s, Expiry: time.Now().Add(time.Hour)}
}

func newTestManager(t *testing.T, tokens fakeTokens) *Manager {
	t.Helper()
	dir := t.TempDir()
	usage, err := OpenUsageStore(filepath.Join(dir, usageDBName))
	require.NoError(t, err)
	m := NewManager(dir, usage, tokens)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestManager_ProfilesAndActive(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, fakeTokens{})

	active, err := m.ActiveProfile(ctx)
	require.NoError(t, err)
	assert.Nil(t, active, "empty registry has no active profile")

	require.NoError(t, m.Add(ctx, Profile{ID: "work", Name: "Work", ConfigDir: "/cfg/work"}))
	require.NoError(t, m.Add(ctx, Profile{ID: "personal", Name: "Personal", ConfigDir: "/cfg/personal"}))
	assert.ErrorIs(t, m.Add(ctx, Profile{ID: "work"}), ErrProfileExists)

	profiles, err := m.Profiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "work", profiles[0].ID)
	assert.Equal(t, "personal", profiles[1].ID)
	assert.False(t, profiles[0].CreatedAt.IsZero())

	active, err = m.ActiveProfile(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "work", active.ID, "first profile added becomes active")

	require.NoError(t, m.SetActive(ctx, "personal"))
	active, err = m.ActiveProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "personal", active.ID)

	assert.ErrorIs(t, m.SetActive(ctx, "missing"), ErrProfileNotFound)

	p, err := m.Profile(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, p)
}

func TestManager_HasValidAuth(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, fakeTokens{
		"/cfg/valid":   validToken("sk-ant-oat01-valid"),
		"/cfg/expired": {AccessToken: "sk-ant-oat01-old", Expiry: time.Now().Add(-time.Hour)},
	})
	require.NoError(t, m.Add(ctx, Profile{ID: "valid", ConfigDir: "/cfg/valid"}))
	require.NoError(t, m.Add(ctx, Profile{ID: "expired", ConfigDir: "/cfg/expired"}))
	require.NoError(t, m.Add(ctx, Profile{ID: "notoken", ConfigDir: "/cfg/none"}))

	tests := map[string]bool{
		"valid":   true,
		"expired": false,
		"notoken": false,
		"missing": false,
	}
	for id, want := range tests {
		t.Run(id, func(t *testing.T) {
			got, err := m.HasValidAuth(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestManager_ProfileEnv(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, fakeTokens{"": validToken("sk-ant-oat01-default")})
	require.NoError(t, m.Add(ctx, Profile{ID: "default", IsDefault: true}))
	require.NoError(t, m.Add(ctx, Profile{ID: "work", ConfigDir: "/cfg/work"}))

	env, err := m.ProfileEnv(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, credential.Env{credential.EnvConfigDir: "/cfg/work"}, env)

	env, err = m.ProfileEnv(ctx, "default")
	require.NoError(t, err)
	assert.Equal(t, credential.Env{credential.EnvOAuthToken: "sk-ant-oat01-default"}, env)

	env, err = m.ProfileEnv(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, env)

	env, err = m.ActiveProfileEnv(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-oat01-default", env[credential.EnvOAuthToken])
}

func TestManager_UsageAndRateLimit(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, fakeTokens{})
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	require.NoError(t, m.Add(ctx, Profile{ID: "work", ConfigDir: "/cfg/work"}))

	status, err := m.RateLimitStatus(ctx, "work")
	require.NoError(t, err)
	assert.False(t, status.Limited)

	require.NoError(t, m.RecordUsage(ctx, "work", 42, 100))
	require.NoError(t, m.MarkRateLimited(ctx, "work", now.Add(time.Hour)))

	p, err := m.Profile(ctx, "work")
	require.NoError(t, err)
	require.NotNil(t, p.Usage)
	assert.Equal(t, 42.0, p.Usage.SessionPercent)
	assert.True(t, p.Usage.AtCapacity())

	status, err = m.RateLimitStatus(ctx, "work")
	require.NoError(t, err)
	assert.True(t, status.Limited)
	assert.True(t, status.Until.Equal(now.Add(time.Hour)))

	now = now.Add(2 * time.Hour)
	status, err = m.RateLimitStatus(ctx, "work")
	require.NoError(t, err)
	assert.False(t, status.Limited, "limit expires")

	assert.ErrorIs(t, m.RecordUsage(ctx, "missing", 1, 1), ErrProfileNotFound)
}

func TestManager_BestAvailableProfileEnv(t *testing.T) {
	ctx := context.Background()
	tokens := fakeTokens{
		"/cfg/a": validToken("a"),
		"/cfg/b": validToken("b"),
		"/cfg/c": validToken("c"),
	}

	setup := func(t *testing.T) *Manager {
		m := newTestManager(t, tokens)
		require.NoError(t, m.Add(ctx, Profile{ID: "a", ConfigDir: "/cfg/a"}))
		require.NoError(t, m.Add(ctx, Profile{ID: "b", ConfigDir: "/cfg/b"}))
		require.NoError(t, m.Add(ctx, Profile{ID: "c", ConfigDir: "/cfg/c"}))
		return m
	}

	t.Run("usable active profile is kept", func(t *testing.T) {
		m := setup(t)

		best, err := m.BestAvailableProfileEnv(ctx)
		require.NoError(t, err)
		assert.Equal(t, "a", best.ProfileID)
		assert.False(t, best.WasSwapped)
		assert.Equal(t, credential.Env{credential.EnvConfigDir: "/cfg/a"}, best.Env)
	})

	t.Run("degraded active swaps to lowest usage", func(t *testing.T) {
		m := setup(t)
		require.NoError(t, m.RecordUsage(ctx, "a", 100, 10))
		require.NoError(t, m.RecordUsage(ctx, "b", 80, 10))
		require.NoError(t, m.RecordUsage(ctx, "c", 20, 30))

		best, err := m.BestAvailableProfileEnv(ctx)
		require.NoError(t, err)
		assert.Equal(t, "c", best.ProfileID)
		assert.True(t, best.WasSwapped)

		active, err := m.ActiveProfile(ctx)
		require.NoError(t, err)
		assert.Equal(t, "c", active.ID, "swap is persisted")
	})

	t.Run("priority order wins over usage", func(t *testing.T) {
		m := setup(t)
		require.NoError(t, m.MarkRateLimited(ctx, "a", time.Now().Add(time.Hour)))
		require.NoError(t, m.RecordUsage(ctx, "b", 90, 90))
		require.NoError(t, m.SetPriorityOrder(ctx, []account.ID{account.API("x"), account.OAuth("b")}))

		best, err := m.BestAvailableProfileEnv(ctx)
		require.NoError(t, err)
		assert.Equal(t, "b", best.ProfileID)
		assert.True(t, best.WasSwapped)
	})

	t.Run("nothing usable keeps active without swap", func(t *testing.T) {
		m := setup(t)
		for _, id := range []string{"a", "b", "c"} {
			require.NoError(t, m.RecordUsage(ctx, id, 100, 100))
		}

		best, err := m.BestAvailableProfileEnv(ctx)
		require.NoError(t, err)
		assert.Equal(t, "a", best.ProfileID)
		assert.False(t, best.WasSwapped)
		assert.Equal(t, "/cfg/a", best.Env[credential.EnvConfigDir])
	})

	t.Run("empty registry", func(t *testing.T) {
		m := newTestManager(t, tokens)

		best, err := m.BestAvailableProfileEnv(ctx)
		require.NoError(t, err)
		assert.Empty(t, best.ProfileID)
		assert.Empty(t, best.Env)
	})
}

func TestManager_PriorityOrder(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, fakeTokens{})

	order, err := m.PriorityOrder(ctx)
	require.NoError(t, err)
	assert.Empty(t, order)

	require.NoError(t, m.SetPriorityOrder(ctx, []account.ID{account.OAuth("b"), {}, account.API("x")}))
	order, err = m.PriorityOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"oauth-b", "api-x"}, order)
}

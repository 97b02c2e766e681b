package oauth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/majorcontext/drawbridge/internal/account"
	"github.com/majorcontext/drawbridge/internal/credential"
	"github.com/majorcontext/drawbridge/internal/log"
)

// TokenSource looks up the OAuth token for a config directory. An empty
// directory means the CLI's default location.
type TokenSource interface {
	Token(configDir string) (*oauth2.Token, error)
}

// RateLimitStatus reports whether a profile is currently rate limited.
type RateLimitStatus struct {
	Limited bool
	Until   time.Time
}

// BestAvailable is the result of BestAvailableProfileEnv.
type BestAvailable struct {
	Env        credential.Env
	ProfileID  string
	WasSwapped bool
}

// Manager is the OAuth profile registry.
//
// Reads go to disk on every call. The only method that changes which profile
// is globally active as a side effect of resolution is BestAvailableProfileEnv.
type Manager struct {
	path   string
	usage  *UsageStore
	tokens TokenSource
	now    func() time.Time

	mu sync.Mutex // serializes read-modify-write of the profiles file
}

// NewManager returns a Manager over the profiles file in dir.
func NewManager(dir string, usage *UsageStore, tokens TokenSource) *Manager {
	return &Manager{
		path:   filepath.Join(dir, profilesFileName),
		usage:  usage,
		tokens: tokens,
		now:    time.Now,
	}
}

// Open opens the registry in dir, creating the usage database if needed.
// Tokens are read from the system keychain and config directories.
func Open(dir string) (*Manager, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("creating oauth dir: %w", err)
	}
	usage, err := OpenUsageStore(filepath.Join(dir, usageDBName))
	if err != nil {
		return nil, err
	}
	return NewManager(dir, usage, credential.NewTokenReader()), nil
}

// Close releases the usage database.
func (m *Manager) Close() error {
	if m.usage == nil {
		return nil
	}
	return m.usage.Close()
}

func (m *Manager) load(ctx context.Context) (*profilesFile, error) {
	f, err := readProfilesFile(m.path)
	if err != nil {
		return nil, err
	}
	for i := range f.Profiles {
		if err := m.attachUsage(ctx, &f.Profiles[i]); err != nil {
			return nil, err
		}
	}
	return f, nil
}

func (m *Manager) attachUsage(ctx context.Context, p *Profile) error {
	if m.usage == nil {
		return nil
	}
	u, err := m.usage.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	p.Usage = u
	return nil
}

// Profile returns the profile with id, or nil if there is none.
func (m *Manager) Profile(ctx context.Context, id string) (*Profile, error) {
	f, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	p := f.find(id)
	if p == nil {
		return nil, nil
	}
	return p, nil
}

// Profiles returns every profile in registry order.
func (m *Manager) Profiles(ctx context.Context) ([]Profile, error) {
	f, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	return f.Profiles, nil
}

// PriorityOrder returns the configured account priority order as account id
// strings ("oauth-x", "api-y").
func (m *Manager) PriorityOrder(ctx context.Context) ([]string, error) {
	f, err := readProfilesFile(m.path)
	if err != nil {
		return nil, err
	}
	return f.AccountPriorityOrder, nil
}

// ActiveProfile returns the globally active profile, or nil if none is set.
func (m *Manager) ActiveProfile(ctx context.Context) (*Profile, error) {
	f, err := m.load(ctx)
	if err != nil {
		return nil, err
	}
	id := f.activeID()
	if id == "" {
		return nil, nil
	}
	return f.find(id), nil
}

// HasValidAuth reports whether the profile exists and has an unexpired token.
// A missing or unreadable token is reported as false, not as an error.
func (m *Manager) HasValidAuth(ctx context.Context, id string) (bool, error) {
	p, err := m.Profile(ctx, id)
	if err != nil || p == nil {
		return false, err
	}
	tok, err := m.tokens.Token(expandHome(p.ConfigDir))
	if err != nil {
		log.Debug("no usable oauth token", "profile", id, "error", err)
		return false, nil
	}
	return tok.Valid(), nil
}

// RateLimitStatus reports whether the profile is rate limited right now.
func (m *Manager) RateLimitStatus(ctx context.Context, id string) (RateLimitStatus, error) {
	p, err := m.Profile(ctx, id)
	if err != nil || p == nil || p.Usage == nil {
		return RateLimitStatus{}, err
	}
	return RateLimitStatus{
		Limited: p.Usage.RateLimitedAt(m.now()),
		Until:   p.Usage.RateLimitedUntil,
	}, nil
}

// ProfileEnv returns the environment that selects the profile in the CLI.
// Profiles with a config directory are selected by CLAUDE_CONFIG_DIR; others
// by their OAuth token. Unknown profiles yield an empty environment.
func (m *Manager) ProfileEnv(ctx context.Context, id string) (credential.Env, error) {
	p, err := m.Profile(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return credential.Env{}, nil
	}
	return m.envFor(p), nil
}

func (m *Manager) envFor(p *Profile) credential.Env {
	if p.ConfigDir != "" {
		return credential.Env{credential.EnvConfigDir: p.ConfigDir}
	}
	tok, err := m.tokens.Token("")
	if err != nil || tok.AccessToken == "" {
		return credential.Env{}
	}
	return credential.Env{credential.EnvOAuthToken: tok.AccessToken}
}

// ActiveProfileEnv returns the environment of the active profile, or an empty
// environment when no profile is active.
func (m *Manager) ActiveProfileEnv(ctx context.Context) (credential.Env, error) {
	p, err := m.ActiveProfile(ctx)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return credential.Env{}, nil
	}
	return m.envFor(p), nil
}

// CleanProfileEnv implements the registry's cleaning step; see CleanProfileEnv.
func (m *Manager) CleanProfileEnv(env credential.Env) credential.Env {
	return CleanProfileEnv(env)
}

// usable reports whether a profile can serve requests without degradation.
func (m *Manager) usable(ctx context.Context, p *Profile) (bool, error) {
	if p.Usage.AtCapacity() || p.Usage.RateLimitedAt(m.now()) {
		return false, nil
	}
	valid, err := m.HasValidAuth(ctx, p.ID)
	if err != nil || !valid {
		return false, err
	}
	return IsUsableEnv(CleanProfileEnv(m.envFor(p))), nil
}

// BestAvailableProfileEnv returns the environment of the best usable profile.
//
// If the active profile is usable it is returned unchanged. Otherwise the
// first usable profile by priority order, then by lowest usage, becomes the
// active profile and WasSwapped is set. This is the one registry call that
// moves the global active pointer; it is reserved for global routing. When no
// profile is usable the active profile's environment is returned as is.
func (m *Manager) BestAvailableProfileEnv(ctx context.Context) (BestAvailable, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.load(ctx)
	if err != nil {
		return BestAvailable{}, err
	}

	activeID := f.activeID()
	if active := f.find(activeID); active != nil {
		ok, err := m.usable(ctx, active)
		if err != nil {
			return BestAvailable{}, err
		}
		if ok {
			return BestAvailable{Env: m.envFor(active), ProfileID: active.ID}, nil
		}
	}

	for _, p := range m.rank(f) {
		if p.ID == activeID {
			continue
		}
		ok, err := m.usable(ctx, p)
		if err != nil {
			return BestAvailable{}, err
		}
		if !ok {
			continue
		}

		f.ActiveProfileID = p.ID
		if err := writeProfilesFile(m.path, stripUsage(f)); err != nil {
			return BestAvailable{}, fmt.Errorf("persisting active profile: %w", err)
		}
		log.Info("swapped active oauth profile", "from", activeID, "to", p.ID)
		return BestAvailable{Env: m.envFor(p), ProfileID: p.ID, WasSwapped: true}, nil
	}

	if active := f.find(activeID); active != nil {
		return BestAvailable{Env: m.envFor(active), ProfileID: active.ID}, nil
	}
	return BestAvailable{Env: credential.Env{}}, nil
}

// rank orders profiles for swapping: those named in the priority order first,
// in that order, then the rest by ascending usage.
func (m *Manager) rank(f *profilesFile) []*Profile {
	var ranked []*Profile
	seen := make(map[string]bool)
	for _, raw := range f.AccountPriorityOrder {
		id := account.Parse(raw)
		if !id.IsOAuth() || seen[id.Raw] {
			continue
		}
		if p := f.find(id.Raw); p != nil {
			seen[p.ID] = true
			ranked = append(ranked, p)
		}
	}

	var rest []*Profile
	for i := range f.Profiles {
		if !seen[f.Profiles[i].ID] {
			rest = append(rest, &f.Profiles[i])
		}
	}
	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].Usage.score() < rest[j].Usage.score()
	})
	return append(ranked, rest...)
}

// stripUsage returns a copy of f without runtime-only usage data.
func stripUsage(f *profilesFile) *profilesFile {
	out := *f
	out.Profiles = make([]Profile, len(f.Profiles))
	for i, p := range f.Profiles {
		p.Usage = nil
		out.Profiles[i] = p
	}
	return &out
}

// Add registers a new profile. The first profile added becomes active.
func (m *Manager) Add(ctx context.Context, p Profile) error {
	if p.ID == "" {
		return errors.New("oauth profile id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := readProfilesFile(m.path)
	if err != nil {
		return err
	}
	if f.find(p.ID) != nil {
		return fmt.Errorf("%w: %s", ErrProfileExists, p.ID)
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = m.now().UTC()
	}
	p.Usage = nil
	f.Profiles = append(f.Profiles, p)
	if f.ActiveProfileID == "" {
		f.ActiveProfileID = p.ID
	}
	return writeProfilesFile(m.path, f)
}

// SetActive makes id the globally active profile.
func (m *Manager) SetActive(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := readProfilesFile(m.path)
	if err != nil {
		return err
	}
	if f.find(id) == nil {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	f.ActiveProfileID = id
	return writeProfilesFile(m.path, f)
}

// SetPriorityOrder replaces the account priority order.
func (m *Manager) SetPriorityOrder(ctx context.Context, ids []account.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := readProfilesFile(m.path)
	if err != nil {
		return err
	}
	f.AccountPriorityOrder = make([]string, 0, len(ids))
	for _, id := range ids {
		if !id.IsZero() {
			f.AccountPriorityOrder = append(f.AccountPriorityOrder, id.String())
		}
	}
	return writeProfilesFile(m.path, f)
}

// RecordUsage stores the latest usage percentages for a profile.
func (m *Manager) RecordUsage(ctx context.Context, id string, sessionPercent, weeklyPercent float64) error {
	if err := m.requireProfile(ctx, id); err != nil {
		return err
	}
	return m.usage.Record(ctx, id, sessionPercent, weeklyPercent, m.now())
}

// MarkRateLimited records a rate limit on a profile until the given time.
func (m *Manager) MarkRateLimited(ctx context.Context, id string, until time.Time) error {
	if err := m.requireProfile(ctx, id); err != nil {
		return err
	}
	return m.usage.MarkRateLimited(ctx, id, until, m.now())
}

func (m *Manager) requireProfile(ctx context.Context, id string) error {
	f, err := readProfilesFile(m.path)
	if err != nil {
		return err
	}
	if f.find(id) == nil {
		return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
	}
	if m.usage == nil {
		return errors.New("usage store not configured")
	}
	return nil
}

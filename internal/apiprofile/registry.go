// Package apiprofile manages API-key profiles: an endpoint, a key and
// optional model overrides, one of which may be active.
package apiprofile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/majorcontext/drawbridge/internal/config"
	"github.com/majorcontext/drawbridge/internal/credential"
)

const profilesFileName = "api-profiles.json"

var (
	// ErrProfileNotFound is returned when a profile id is not registered.
	ErrProfileNotFound = errors.New("api profile not found")
	// ErrProfileExists is returned when adding a profile whose id is taken.
	ErrProfileExists = errors.New("api profile already exists")
)

// Models overrides the models a profile's endpoint serves.
type Models struct {
	Default string `json:"default,omitempty"`
	Haiku   string `json:"haiku,omitempty"`
	Sonnet  string `json:"sonnet,omitempty"`
	Opus    string `json:"opus,omitempty"`
}

// Profile is an API-key credential set.
type Profile struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	BaseURL   string    `json:"baseUrl,omitempty"`
	APIKey    string    `json:"apiKey"`
	Models    Models    `json:"models,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Env returns the environment variables that select this profile. Empty
// fields are omitted; a profile without a key yields an empty environment.
func (p *Profile) Env() credential.Env {
	env := credential.Env{}
	if strings.TrimSpace(p.APIKey) == "" {
		return env
	}
	set := func(k, v string) {
		if v = strings.TrimSpace(v); v != "" {
			env[k] = v
		}
	}
	set(credential.EnvAuthToken, p.APIKey)
	set(credential.EnvBaseURL, p.BaseURL)
	set(credential.EnvModel, p.Models.Default)
	set(credential.EnvHaikuModel, p.Models.Haiku)
	set(credential.EnvSonnetModel, p.Models.Sonnet)
	set(credential.EnvOpusModel, p.Models.Opus)
	return env
}

// Snapshot is a point-in-time view of the registry.
type Snapshot struct {
	Profiles        []Profile `json:"profiles"`
	ActiveProfileID string    `json:"activeProfileId,omitempty"`
}

func (s *Snapshot) find(id string) *Profile {
	for i := range s.Profiles {
		if s.Profiles[i].ID == id {
			return &s.Profiles[i]
		}
	}
	return nil
}

// Registry stores API profiles in a JSON file.
type Registry struct {
	path string
	mu   sync.Mutex
}

// NewRegistry returns a registry backed by dir/api-profiles.json.
func NewRegistry(dir string) *Registry {
	return &Registry{path: filepath.Join(dir, profilesFileName)}
}

// Default returns the registry in the drawbridge config directory.
func Default() *Registry {
	return NewRegistry(config.Dir())
}

// Snapshot reads the registry from disk.
func (r *Registry) Snapshot(ctx context.Context) (Snapshot, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Snapshot{}, nil
		}
		return Snapshot{}, fmt.Errorf("reading api profiles: %w", err)
	}

	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, fmt.Errorf("parsing api profiles %s: %w", r.path, err)
	}
	if s.ActiveProfileID != "" && s.find(s.ActiveProfileID) == nil {
		s.ActiveProfileID = ""
	}
	return s, nil
}

// ProfileEnv returns the environment for the profile with id, or an empty
// environment if there is no such profile.
func (r *Registry) ProfileEnv(ctx context.Context, id string) (credential.Env, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	p := s.find(id)
	if p == nil {
		return credential.Env{}, nil
	}
	return p.Env(), nil
}

// ActiveProfileEnv returns the environment of the active profile, or an empty
// environment when none is active.
func (r *Registry) ActiveProfileEnv(ctx context.Context) (credential.Env, error) {
	s, err := r.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	if s.ActiveProfileID == "" {
		return credential.Env{}, nil
	}
	return s.find(s.ActiveProfileID).Env(), nil
}

// Add registers a profile. It does not change the active profile.
func (r *Registry) Add(ctx context.Context, p Profile) error {
	if p.ID == "" {
		return errors.New("api profile id cannot be empty")
	}
	return r.update(ctx, func(s *Snapshot) error {
		if s.find(p.ID) != nil {
			return fmt.Errorf("%w: %s", ErrProfileExists, p.ID)
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = time.Now().UTC()
		}
		s.Profiles = append(s.Profiles, p)
		return nil
	})
}

// SetActive makes id the active profile. An empty id deactivates API mode.
func (r *Registry) SetActive(ctx context.Context, id string) error {
	return r.update(ctx, func(s *Snapshot) error {
		if id != "" && s.find(id) == nil {
			return fmt.Errorf("%w: %s", ErrProfileNotFound, id)
		}
		s.ActiveProfileID = id
		return nil
	})
}

func (r *Registry) update(ctx context.Context, fn func(*Snapshot) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, err := r.Snapshot(ctx)
	if err != nil {
		return err
	}
	if err := fn(&s); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling api profiles: %w", err)
	}
	return config.WriteFileAtomic(r.path, data, 0600)
}

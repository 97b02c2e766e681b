// Package oauth manages OAuth-authenticated Claude accounts.
//
// Profiles live in ~/.drawbridge/oauth/profiles.yaml together with the
// globally active profile and the account priority order. Usage and
// rate-limit state is kept in a SQLite database next to it. Tokens are only
// ever read: from the system keychain, or from the profile's config directory.
package oauth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/majorcontext/drawbridge/internal/config"
)

const (
	profilesFileName = "profiles.yaml"
	usageDBName      = "usage.db"
)

var (
	// ErrProfileNotFound is returned when a profile id is not registered.
	ErrProfileNotFound = errors.New("oauth profile not found")
	// ErrProfileExists is returned when adding a profile whose id is taken.
	ErrProfileExists = errors.New("oauth profile already exists")
)

// Profile is an OAuth-authenticated account.
type Profile struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Email     string    `yaml:"email,omitempty" json:"email,omitempty"`
	ConfigDir string    `yaml:"config_dir,omitempty" json:"config_dir,omitempty"`
	IsDefault bool      `yaml:"is_default,omitempty" json:"is_default,omitempty"`
	CreatedAt time.Time `yaml:"created_at,omitempty" json:"created_at"`

	// Usage is filled from the usage store on read; nil when unknown.
	Usage *Usage `yaml:"-" json:"usage,omitempty"`
}

// profilesFile is the on-disk form of the registry.
type profilesFile struct {
	Profiles             []Profile `yaml:"profiles"`
	ActiveProfileID      string    `yaml:"active_profile_id,omitempty"`
	AccountPriorityOrder []string  `yaml:"account_priority_order,omitempty"`
}

func (f *profilesFile) find(id string) *Profile {
	for i := range f.Profiles {
		if f.Profiles[i].ID == id {
			return &f.Profiles[i]
		}
	}
	return nil
}

// activeID returns the active profile id, defaulting to the profile marked
// as default.
func (f *profilesFile) activeID() string {
	if f.ActiveProfileID != "" && f.find(f.ActiveProfileID) != nil {
		return f.ActiveProfileID
	}
	for _, p := range f.Profiles {
		if p.IsDefault {
			return p.ID
		}
	}
	return ""
}

// DefaultDir returns the directory holding the OAuth registry.
func DefaultDir() string {
	return filepath.Join(config.Dir(), "oauth")
}

func readProfilesFile(path string) (*profilesFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &profilesFile{}, nil
		}
		return nil, fmt.Errorf("reading oauth profiles: %w", err)
	}

	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing oauth profiles %s: %w", path, err)
	}
	return &f, nil
}

func writeProfilesFile(path string, f *profilesFile) error {
	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling oauth profiles: %w", err)
	}
	return config.WriteFileAtomic(path, data, 0600)
}

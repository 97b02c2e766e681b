package config

import (
	"context"

	"github.com/majorcontext/drawbridge/internal/account"
	"github.com/majorcontext/drawbridge/internal/log"
)

// Mode selects how features are routed to accounts.
type Mode string

const (
	// ModeGlobal routes every feature through the globally active account.
	ModeGlobal Mode = "global"
	// ModePerFeature pins features to accounts with automatic fallback.
	ModePerFeature Mode = "per_feature"
)

// ParseMode maps anything other than "per_feature" to ModeGlobal.
func ParseMode(s string) Mode {
	if Mode(s) == ModePerFeature {
		return ModePerFeature
	}
	return ModeGlobal
}

// Routing is the routing configuration read for a single resolution.
type Routing struct {
	Mode       Mode
	FeatureMap map[account.Feature]account.ID
}

// Preferred returns the explicit account for feature, or the zero ID.
func (r Routing) Preferred(feature account.Feature) account.ID {
	return r.FeatureMap[feature]
}

// Routing converts settings into a Routing. Unparseable account IDs are
// dropped.
func (s *Settings) Routing() Routing {
	r := Routing{
		Mode:       ParseMode(s.AuthRoutingMode),
		FeatureMap: make(map[account.Feature]account.ID, len(s.FeatureAuthProfiles)),
	}
	for feature, raw := range s.FeatureAuthProfiles {
		if id := account.Parse(raw); !id.IsZero() {
			r.FeatureMap[account.Feature(feature)] = id
		}
	}
	return r
}

// SettingsFile reads routing from a settings file on every call so edits
// take effect immediately.
type SettingsFile struct {
	Path string
}

// NewSettingsFile returns a SettingsFile for the default settings path.
func NewSettingsFile() *SettingsFile {
	return &SettingsFile{Path: SettingsPath()}
}

// Routing loads the current routing configuration. A broken settings file
// falls back to global mode with no feature assignments.
func (f *SettingsFile) Routing(ctx context.Context) (Routing, error) {
	cfg, err := Load(f.Path)
	if err != nil {
		log.Warn("using default routing", "error", err)
	}
	return cfg.Routing(), nil
}

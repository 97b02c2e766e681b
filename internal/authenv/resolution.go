package authenv

import (
	"github.com/majorcontext/drawbridge/internal/account"
	"github.com/majorcontext/drawbridge/internal/config"
	"github.com/majorcontext/drawbridge/internal/credential"
)

// SourceType is the kind of credential a resolution produced.
type SourceType string

const (
	SourceOAuth SourceType = "oauth"
	SourceAPI   SourceType = "api"
	SourceNone  SourceType = "none"
)

// ResolutionSource records which routing path produced a resolution.
type ResolutionSource string

const (
	FromGlobal  ResolutionSource = "global"
	FromFeature ResolutionSource = "feature"
)

// Resolution is the credential environment chosen for a feature.
//
// At most one of ProfileEnv and APIProfileEnv is non-empty.
// ResolvedAccountID is zero only when no credential was found.
type Resolution struct {
	ProfileEnv         credential.Env   `json:"profileEnv"`
	APIProfileEnv      credential.Env   `json:"apiProfileEnv"`
	OAuthModeClearVars credential.Env   `json:"oauthModeClearVars"`
	ResolvedAccountID  account.ID       `json:"resolvedAccountId"`
	SourceType         SourceType       `json:"sourceType"`
	ResolutionSource   ResolutionSource `json:"resolutionSource"`
	FallbackUsed       bool             `json:"fallbackUsed"`
	Mode               config.Mode      `json:"mode"`
}

func newResolution(mode config.Mode, source ResolutionSource) *Resolution {
	return &Resolution{
		ProfileEnv:         credential.Env{},
		APIProfileEnv:      credential.Env{},
		OAuthModeClearVars: credential.Env{},
		SourceType:         SourceNone,
		ResolutionSource:   source,
		Mode:               mode,
	}
}

// Package account identifies the accounts a feature can be routed to.
//
// An account ID is rendered as "{kind}-{raw}", where kind is "oauth" or "api".
// Parsing is total: anything that does not match yields the zero ID, which
// means "no account".
package account

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the credential kind of an account.
type Kind string

const (
	KindNone  Kind = ""
	KindOAuth Kind = "oauth"
	KindAPI   Kind = "api"
)

// ErrInvalidID is returned by ParseStrict for strings that are not account IDs.
var ErrInvalidID = errors.New("invalid account id")

// ID is a tagged account identifier. The zero value means no account.
type ID struct {
	Kind Kind
	Raw  string
}

// OAuth returns the ID of an OAuth profile. An empty raw id yields the zero ID.
func OAuth(raw string) ID {
	if raw == "" {
		return ID{}
	}
	return ID{Kind: KindOAuth, Raw: raw}
}

// API returns the ID of an API profile. An empty raw id yields the zero ID.
func API(raw string) ID {
	if raw == "" {
		return ID{}
	}
	return ID{Kind: KindAPI, Raw: raw}
}

// Parse parses s as an account ID. It never fails; unparseable input yields
// the zero ID.
func Parse(s string) ID {
	s = strings.TrimSpace(s)
	kind, raw, ok := strings.Cut(s, "-")
	if !ok {
		return ID{}
	}
	switch Kind(kind) {
	case KindOAuth:
		return OAuth(raw)
	case KindAPI:
		return API(raw)
	default:
		return ID{}
	}
}

// ParseStrict is Parse for user input: it reports unparseable strings.
func ParseStrict(s string) (ID, error) {
	id := Parse(s)
	if id.IsZero() {
		return ID{}, fmt.Errorf("%w %q: expected oauth-<id> or api-<id>", ErrInvalidID, s)
	}
	return id, nil
}

// IsZero reports whether id is the "no account" value.
func (id ID) IsZero() bool {
	return id.Kind == KindNone
}

// IsOAuth reports whether id names an OAuth profile.
func (id ID) IsOAuth() bool { return id.Kind == KindOAuth }

// IsAPI reports whether id names an API profile.
func (id ID) IsAPI() bool { return id.Kind == KindAPI }

// String renders the ID in its "{kind}-{raw}" form, or "" for the zero ID.
func (id ID) String() string {
	if id.IsZero() {
		return ""
	}
	return string(id.Kind) + "-" + id.Raw
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Unparseable text decodes
// to the zero ID rather than failing.
func (id *ID) UnmarshalText(text []byte) error {
	*id = Parse(string(text))
	return nil
}

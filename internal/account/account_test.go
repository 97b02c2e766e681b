package account

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want ID
	}{
		{"oauth-work", ID{Kind: KindOAuth, Raw: "work"}},
		{"oauth-oauth-default", ID{Kind: KindOAuth, Raw: "oauth-default"}},
		{"api-profile-b", ID{Kind: KindAPI, Raw: "profile-b"}},
		{"  api-x  ", ID{Kind: KindAPI, Raw: "x"}},
		{"", ID{}},
		{"oauth-", ID{}},
		{"api", ID{}},
		{"github-abc", ID{}},
		{"OAUTH-abc", ID{}},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Parse(tt.in)
			assert.Equal(t, tt.want, got)
			if !got.IsZero() {
				assert.Equal(t, Parse(got.String()), got, "round trip")
			}
		})
	}
}

func TestParseStrict(t *testing.T) {
	id, err := ParseStrict("oauth-work")
	require.NoError(t, err)
	assert.True(t, id.IsOAuth())

	_, err = ParseStrict("work")
	assert.ErrorIs(t, err, ErrInvalidID)
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, "oauth-a", OAuth("a").String())
	assert.Equal(t, "api-b", API("b").String())
	assert.True(t, OAuth("").IsZero())
	assert.True(t, API("").IsZero())
	assert.Equal(t, "", ID{}.String())
}

func TestID_YAML(t *testing.T) {
	var doc struct {
		Preferred ID `yaml:"preferred"`
		Broken    ID `yaml:"broken"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("preferred: api-b\nbroken: nonsense\n"), &doc))
	assert.Equal(t, API("b"), doc.Preferred)
	assert.True(t, doc.Broken.IsZero())
}

func TestParseFeature(t *testing.T) {
	for _, f := range Features() {
		got, err := ParseFeature(string(f))
		require.NoError(t, err)
		assert.Equal(t, f, got)
	}

	_, err := ParseFeature("changelog")
	assert.ErrorIs(t, err, ErrUnknownFeature)
}

func TestCandidates(t *testing.T) {
	var c Candidates
	c.Add(OAuth("a"), ID{}, API("b"))
	c.Add(OAuth("a"), OAuth("c"), API("b"))

	assert.Equal(t, []ID{OAuth("a"), API("b"), OAuth("c")}, c.IDs())
	assert.Equal(t, 3, c.Len())
}

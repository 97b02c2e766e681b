package github

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenBridge_Discover(t *testing.T) {
	tests := map[string]struct {
		envVars    map[string]string
		cliOutput  string
		cliErr     error
		wantToken  string
		wantSource string
	}{
		"GITHUB_TOKEN takes priority": {
			envVars:    map[string]string{"GITHUB_TOKEN": "from-github-token", "GH_TOKEN": "from-gh-token"},
			cliOutput:  "from-cli",
			wantToken:  "from-github-token",
			wantSource: SourceEnv,
		},
		"GH_TOKEN used when no GITHUB_TOKEN": {
			envVars:    map[string]string{"GH_TOKEN": "from-gh-token"},
			cliOutput:  "from-cli",
			wantToken:  "from-gh-token",
			wantSource: SourceEnv,
		},
		"gh CLI used when no env vars": {
			cliOutput:  "from-cli\n",
			wantToken:  "from-cli",
			wantSource: SourceCLI,
		},
		"gh CLI failure yields no token": {
			cliErr:     errors.New("gh not installed"),
			wantToken:  "",
			wantSource: SourceNone,
		},
		"blank output yields no token": {
			cliOutput:  "  \n",
			wantToken:  "",
			wantSource: SourceNone,
		},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			var gotArgs []string
			b := &TokenBridge{
				Getenv: func(k string) string { return tt.envVars[k] },
				RunCommand: func(ctx context.Context, name string, args ...string) ([]byte, error) {
					gotArgs = append([]string{name}, args...)
					if tt.cliErr != nil {
						return nil, tt.cliErr
					}
					return []byte(tt.cliOutput), nil
				},
			}

			token, source := b.Discover(context.Background())
			assert.Equal(t, tt.wantToken, token)
			assert.Equal(t, tt.wantSource, source)
			if tt.wantSource != SourceEnv {
				assert.Equal(t, []string{"gh", "auth", "token"}, gotArgs)
			}
		})
	}
}

func TestTokenBridge_GitHubTokenNeverFails(t *testing.T) {
	b := &TokenBridge{
		Getenv: func(string) string { return "" },
		RunCommand: func(context.Context, string, ...string) ([]byte, error) {
			return nil, errors.New("exit status 1")
		},
	}

	token, err := b.GitHubToken(context.Background())
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestTokenBridge_CLIHasDeadline(t *testing.T) {
	b := &TokenBridge{
		Getenv: func(string) string { return "" },
		RunCommand: func(ctx context.Context, _ string, _ ...string) ([]byte, error) {
			_, ok := ctx.Deadline()
			assert.True(t, ok, "gh call should be bounded")
			return []byte("tok"), nil
		},
	}

	token, _ := b.GitHubToken(context.Background())
	assert.Equal(t, "tok", token)
}

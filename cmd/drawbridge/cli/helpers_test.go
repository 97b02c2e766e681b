package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/majorcontext/drawbridge/internal/account"
	"github.com/majorcontext/drawbridge/internal/apiprofile"
	"github.com/majorcontext/drawbridge/internal/authenv"
	"github.com/majorcontext/drawbridge/internal/config"
	"github.com/majorcontext/drawbridge/internal/credential"
	"github.com/majorcontext/drawbridge/internal/oauth"
	"github.com/majorcontext/drawbridge/internal/ui"
)

func TestParseEnvFlags(t *testing.T) {
	tests := []struct {
		name    string
		flags   []string
		want    credential.Env
		wantErr string
	}{
		{
			name:  "empty",
			flags: nil,
			want:  credential.Env{},
		},
		{
			name:  "values with equals",
			flags: []string{"A=1", "URL=http://x?a=b", "EMPTY="},
			want:  credential.Env{"A": "1", "URL": "http://x?a=b", "EMPTY": ""},
		},
		{
			name:    "missing equals",
			flags:   []string{"NOVALUE"},
			wantErr: "expected KEY=VALUE",
		},
		{
			name:    "bad name",
			flags:   []string{"1BAD=x"},
			wantErr: "invalid environment variable name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEnvFlags(tt.flags)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRedact(t *testing.T) {
	env := credential.Env{
		credential.EnvAuthToken:   "sk-ant-api03-abcdefghijkl",
		credential.EnvGitHubToken: "short",
		credential.EnvOAuthToken:  "",
		credential.EnvConfigDir:   "/home/dev/.claude-work",
	}

	got := redact(env)
	assert.Equal(t, "sk-ant-api****", got[credential.EnvAuthToken])
	assert.Equal(t, "****", got[credential.EnvGitHubToken])
	assert.Equal(t, "", got[credential.EnvOAuthToken], "cleared vars stay visible as cleared")
	assert.Equal(t, "/home/dev/.claude-work", got[credential.EnvConfigDir])
	assert.Equal(t, "sk-ant-api03-abcdefghijkl", env[credential.EnvAuthToken], "input not modified")
}

func TestParseFeature(t *testing.T) {
	f, err := parseFeature("githubPrs")
	require.NoError(t, err)
	assert.Equal(t, account.FeatureGitHubPRs, f)

	_, err = parseFeature("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Known features: tasks")
}

func TestFormatAge(t *testing.T) {
	assert.Equal(t, "-", formatAge(time.Time{}))
	assert.Equal(t, "just now", formatAge(time.Now()))
	assert.Equal(t, "5m ago", formatAge(time.Now().Add(-5*time.Minute-time.Second)))
	assert.Equal(t, "3d ago", formatAge(time.Now().Add(-73*time.Hour)))
}

func TestUpdateSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.SettingsFileName)

	err := updateSettings(path, func(s *config.Settings) error {
		s.AuthRoutingMode = string(config.ModePerFeature)
		setFeatureRoute(s, account.FeatureGitHubPRs, account.API("profile-b"))
		setFeatureRoute(s, account.FeatureTasks, account.OAuth("work"))
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, updateSettings(path, func(s *config.Settings) error {
		setFeatureRoute(s, account.FeatureTasks, account.ID{})
		return nil
	}))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	routing := cfg.Routing()
	assert.Equal(t, config.ModePerFeature, routing.Mode)
	assert.Equal(t, account.API("profile-b"), routing.Preferred(account.FeatureGitHubPRs))
	assert.True(t, routing.Preferred(account.FeatureTasks).IsZero())
}

func TestUpdateSettings_RefusesBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.SettingsFileName)
	broken := []byte("auth_routing_mode: [unterminated\n")
	require.NoError(t, os.WriteFile(path, broken, 0600))

	err := updateSettings(path, func(s *config.Settings) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "refusing to overwrite")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, broken, data)
}

func TestUpdateSettings_IgnoresEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.SettingsFileName)
	t.Setenv("DRAWBRIDGE_ROUTING_MODE", "per_feature")
	t.Setenv("DRAWBRIDGE_PYTHON", "/tmp/throwaway-python")

	require.NoError(t, updateSettings(path, func(s *config.Settings) error {
		setFeatureRoute(s, account.FeatureTasks, account.OAuth("oauth-a"))
		return nil
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "per_feature")
	assert.NotContains(t, string(data), "/tmp/throwaway-python")

	saved, err := config.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(config.ModeGlobal), saved.AuthRoutingMode)
	assert.Empty(t, saved.Runtime.PythonExecutable)
	assert.Equal(t, account.OAuth("oauth-a"), saved.Routing().Preferred(account.FeatureTasks))
}

func TestPrintRouting(t *testing.T) {
	ui.SetColorEnabled(false)
	var buf bytes.Buffer
	err := printRouting(&buf, config.Routing{
		Mode:       config.ModeGlobal,
		FeatureMap: map[account.Feature]account.ID{account.FeatureInsights: account.OAuth("work")},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Mode: global")
	assert.Contains(t, out, "oauth-work")
	assert.Contains(t, out, "ignored in global mode")
}

// setupHome points the config directory at a temp dir with one OAuth and
// one API profile.
func setupHome(t *testing.T) *registries {
	t.Helper()
	home := t.TempDir()
	t.Setenv("DRAWBRIDGE_HOME", home)
	t.Setenv("DRAWBRIDGE_ROUTING_MODE", "")

	regs, err := openRegistries()
	require.NoError(t, err)
	t.Cleanup(func() { regs.Close() })

	ctx := context.Background()
	require.NoError(t, regs.oauth.Add(ctx, oauth.Profile{ID: "work", Name: "Work", ConfigDir: filepath.Join(home, "claude-work")}))
	require.NoError(t, regs.api.Add(ctx, apiprofile.Profile{ID: "profile-b", Name: "B", APIKey: "token-b"}))
	return regs
}

func TestResolveFeatures_PerFeature(t *testing.T) {
	regs := setupHome(t)
	require.NoError(t, updateSettings(config.SettingsPath(), func(s *config.Settings) error {
		s.AuthRoutingMode = string(config.ModePerFeature)
		setFeatureRoute(s, account.FeatureGitHubPRs, account.API("profile-b"))
		return nil
	}))

	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	results, err := resolveFeatures(cmd, regs.resolver(), account.Features())
	require.NoError(t, err)
	require.Len(t, results, len(account.Features()))

	for _, r := range results {
		assert.Equal(t, authenv.FromFeature, r.ResolutionSource)
		if r.Feature == account.FeatureGitHubPRs {
			assert.Equal(t, authenv.SourceAPI, r.SourceType)
			assert.Equal(t, account.API("profile-b"), r.ResolvedAccountID)
			assert.False(t, r.FallbackUsed)
			assert.Equal(t, "token-b", r.APIProfileEnv[credential.EnvAuthToken])
		}
	}

	ui.SetColorEnabled(false)
	var buf bytes.Buffer
	require.NoError(t, printResolutions(&buf, results))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, len(account.Features())+1)
	assert.Contains(t, buf.String(), "api-profile-b")
}

func TestCollectProfiles(t *testing.T) {
	regs := setupHome(t)
	ctx := context.Background()
	require.NoError(t, regs.api.SetActive(ctx, "profile-b"))

	view, err := collectProfiles(ctx, regs.oauth, regs.api)
	require.NoError(t, err)
	require.Len(t, view.OAuth, 1)
	require.Len(t, view.API, 1)
	assert.Equal(t, "oauth-work", view.OAuth[0].AccountID)
	assert.True(t, view.OAuth[0].Active)
	assert.False(t, view.OAuth[0].ValidAuth, "no credentials in the temp config dir")
	assert.Equal(t, "api-profile-b", view.API[0].AccountID)
	assert.True(t, view.API[0].Active)

	ui.SetColorEnabled(false)
	var buf bytes.Buffer
	require.NoError(t, printProfiles(&buf, view))
	assert.Contains(t, buf.String(), "oauth-work")
	assert.Contains(t, buf.String(), "api-profile-b")
}

func TestPrintProfiles_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printProfiles(&buf, profilesView{}))
	assert.Contains(t, buf.String(), "No profiles found.")
}

package runner

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/majorcontext/drawbridge/internal/credential"
)

// Command returns a command whose environment is the current process
// environment overlaid with env. Keys env sets to "" are kept as empty
// assignments so they shadow inherited values.
func Command(ctx context.Context, env credential.Env, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = MergeEnviron(os.Environ(), env)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}

// MergeEnviron overlays env onto a KEY=VALUE list, preserving the order of
// inherited keys and appending new ones sorted.
func MergeEnviron(environ []string, env credential.Env) []string {
	out := make([]string, 0, len(environ)+len(env))
	seen := make(map[string]bool, len(env))
	for _, kv := range environ {
		key, _, _ := strings.Cut(kv, "=")
		if v, ok := env[key]; ok {
			if !seen[key] {
				out = append(out, key+"="+v)
				seen[key] = true
			}
			continue
		}
		out = append(out, kv)
	}
	for _, key := range env.Keys() {
		if !seen[key] {
			out = append(out, key+"="+env[key])
		}
	}
	return out
}

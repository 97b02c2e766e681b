// Package github bridges GitHub CLI authentication into subprocess
// environments.
package github

import (
	"context"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/majorcontext/drawbridge/internal/log"
)

// Token sources, reported by Discover for logging.
const (
	SourceEnv  = "env" // GITHUB_TOKEN or GH_TOKEN
	SourceCLI  = "cli" // `gh auth token`
	SourceNone = ""
)

// DefaultCLITimeout bounds the `gh auth token` call.
const DefaultCLITimeout = 5 * time.Second

// CommandRunner runs a command and returns its stdout.
type CommandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

// TokenBridge finds a GitHub token for subprocesses. It is best effort:
// failing lookups yield no token rather than an error.
type TokenBridge struct {
	Getenv     func(string) string
	RunCommand CommandRunner
	Timeout    time.Duration
}

// NewTokenBridge returns a bridge backed by the process environment and the
// gh CLI.
func NewTokenBridge() *TokenBridge {
	return &TokenBridge{
		Getenv:     os.Getenv,
		RunCommand: runCommand,
		Timeout:    DefaultCLITimeout,
	}
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).Output()
}

// GitHubToken returns a token, or "" when none is available. The error is
// always nil; it exists so callers can treat the bridge like any other
// fallible collaborator.
func (b *TokenBridge) GitHubToken(ctx context.Context) (string, error) {
	token, source := b.Discover(ctx)
	if token != "" {
		log.Debug("github token found", "source", source)
	}
	return token, nil
}

// Discover returns the first token found and where it came from.
//
// Discovery order:
//  1. GITHUB_TOKEN environment variable
//  2. GH_TOKEN environment variable
//  3. `gh auth token`
func (b *TokenBridge) Discover(ctx context.Context) (token, source string) {
	getenv := b.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, name := range []string{"GITHUB_TOKEN", "GH_TOKEN"} {
		if v := strings.TrimSpace(getenv(name)); v != "" {
			return v, SourceEnv
		}
	}

	if token := b.fromCLI(ctx); token != "" {
		return token, SourceCLI
	}
	return "", SourceNone
}

func (b *TokenBridge) fromCLI(ctx context.Context) string {
	run := b.RunCommand
	if run == nil {
		run = runCommand
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = DefaultCLITimeout
	}

	cliCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := run(cliCtx, "gh", "auth", "token")
	if err != nil {
		log.Debug("gh auth token failed", "error", err)
		return ""
	}
	return strings.TrimSpace(string(out))
}

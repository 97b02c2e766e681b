package cli

import (
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/majorcontext/drawbridge/internal/config"
	"github.com/majorcontext/drawbridge/internal/log"
	"github.com/majorcontext/drawbridge/internal/runner"
	"github.com/spf13/cobra"
)

var (
	execEnvFlags []string
	execPython   bool
)

var execCmd = &cobra.Command{
	Use:   "exec <feature> [flags] -- <command> [args...]",
	Short: "Run a command with a feature's credentials",
	Long: `Run a command with the composed environment for a feature.

The command inherits the current environment. Credential variables that do
not apply to the resolved account are cleared. A feature with no usable
credential still runs, without credential variables.

With --python the command is run by the configured interpreter
(runtime.python_executable, default python3).

Examples:
  drawbridge exec tasks -- claude -p "summarize"
  drawbridge exec insights --python -- -m backend.insights
  drawbridge exec githubPrs -e LOG_LEVEL=debug -- ./review.sh`,
	Args:        cobra.MinimumNArgs(2),
	Annotations: map[string]string{annotationInteractive: "true"},
	RunE:        runExec,
}

func init() {
	rootCmd.AddCommand(execCmd)
	execCmd.Flags().StringArrayVarP(&execEnvFlags, "env", "e", nil, "extra environment variable (KEY=VALUE)")
	execCmd.Flags().BoolVar(&execPython, "python", false, "run the command with the configured Python interpreter")
}

func runExec(cmd *cobra.Command, args []string) error {
	feature, err := parseFeature(args[0])
	if err != nil {
		return err
	}
	extra, err := parseEnvFlags(execEnvFlags)
	if err != nil {
		return err
	}

	settings, _ := config.Load(config.SettingsPath())
	regs, err := openRegistries()
	if err != nil {
		return err
	}
	defer regs.Close()

	env, err := regs.composer(settings.Runtime).RunnerEnv(cmd.Context(), feature, extra)
	if err != nil {
		return err
	}

	name, cmdArgs := args[1], args[2:]
	if execPython {
		name, cmdArgs = runner.PythonExecutable(settings.Runtime), args[1:]
	}

	log.Debug("running command", "feature", feature, "command", name)
	c := runner.Command(cmd.Context(), env, name, cmdArgs...)
	if err := c.Run(); err != nil {
		if code, ok := childExitCode(err); ok {
			// os.Exit skips deferred calls and PersistentPostRun.
			regs.Close()
			log.Close()
			os.Exit(code)
		}
		return fmt.Errorf("running %s: %w", name, err)
	}
	return nil
}

// childExitCode reports the exit status of a command that ran and failed,
// so it can be propagated without an extra error line.
func childExitCode(err error) (int, bool) {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), true
	}
	return 0, false
}

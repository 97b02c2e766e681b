package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/majorcontext/drawbridge/internal/config"
	"github.com/majorcontext/drawbridge/internal/credential"
	"github.com/spf13/cobra"
)

var (
	envFlags    []string
	showSecrets bool
)

var envCmd = &cobra.Command{
	Use:   "env <feature>",
	Short: "Print the environment a feature would run with",
	Long: `Print the composed environment for a feature: runtime variables,
the resolved credential, cleared variables, GITHUB_TOKEN when available, and
any -e overrides.

Credential values are masked unless --show-secrets is given. Variables
printed with an empty value are cleared in the subprocess.

Examples:
  drawbridge env tasks
  drawbridge env githubPrs -e DEBUG=1
  drawbridge env insights --show-secrets --json`,
	Args: cobra.ExactArgs(1),
	RunE: runEnv,
}

func init() {
	rootCmd.AddCommand(envCmd)
	envCmd.Flags().StringArrayVarP(&envFlags, "env", "e", nil, "extra environment variable (KEY=VALUE)")
	envCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print credential values unmasked")
}

func runEnv(cmd *cobra.Command, args []string) error {
	feature, err := parseFeature(args[0])
	if err != nil {
		return err
	}
	extra, err := parseEnvFlags(envFlags)
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
	if !showSecrets {
		env = redact(env)
	}

	if jsonOut {
		return json.NewEncoder(os.Stdout).Encode(env)
	}
	printEnv(os.Stdout, env)
	return nil
}

func printEnv(w io.Writer, env credential.Env) {
	for _, kv := range env.Pairs() {
		fmt.Fprintln(w, kv)
	}
}

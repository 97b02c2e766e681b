package cli

import (
	"fmt"

	"github.com/majorcontext/drawbridge/internal/account"
	"github.com/majorcontext/drawbridge/internal/apiprofile"
	"github.com/majorcontext/drawbridge/internal/credential"
	"github.com/majorcontext/drawbridge/internal/ui"
	"github.com/spf13/cobra"
)

var (
	apiAddName    string
	apiAddBaseURL string
	apiAddModels  apiprofile.Models
	apiUseNone    bool
)

var profilesAPICmd = &cobra.Command{
	Use:   "api",
	Short: "Manage API-key profiles",
}

var apiAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Register an API-key profile",
	Long: `Register an API-key profile. The key is read from the terminal without
echo, or from stdin when piped.

Examples:
  drawbridge profiles api add backup --name "Team key"
  echo "$KEY" | drawbridge profiles api add proxy --base-url https://llm.internal`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, err := ui.PromptSecret("API key")
		if err != nil {
			return err
		}
		if key == "" {
			return fmt.Errorf("API key cannot be empty")
		}
		if credential.IsOAuthToken(key) {
			ui.Warn("This looks like an OAuth token. Register OAuth accounts with 'drawbridge profiles oauth add'.")
			ok, err := ui.Confirm("Add it as an API key anyway?")
			if err != nil || !ok {
				return err
			}
		}

		regs, err := openRegistries()
		if err != nil {
			return err
		}
		defer regs.Close()

		p := apiprofile.Profile{
			ID:      args[0],
			Name:    apiAddName,
			BaseURL: apiAddBaseURL,
			APIKey:  key,
			Models:  apiAddModels,
		}
		if err := regs.api.Add(cmd.Context(), p); err != nil {
			return err
		}
		fmt.Printf("Added API profile %s\n", account.API(p.ID))
		return nil
	},
}

var apiUseCmd = &cobra.Command{
	Use:   "use [id]",
	Short: "Make an API profile globally active",
	Long: `Make an API profile globally active. While an API profile is active,
global mode uses it instead of any OAuth profile. Use --none to go back to
OAuth.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := ""
		switch {
		case apiUseNone && len(args) > 0:
			return fmt.Errorf("--none cannot be combined with a profile id")
		case !apiUseNone && len(args) == 0:
			return fmt.Errorf("a profile id or --none is required")
		case len(args) == 1:
			id = args[0]
		}

		regs, err := openRegistries()
		if err != nil {
			return err
		}
		defer regs.Close()

		if err := regs.api.SetActive(cmd.Context(), id); err != nil {
			return err
		}
		if id == "" {
			fmt.Println("No API profile active; global mode uses OAuth.")
			return nil
		}
		fmt.Printf("Active API profile: %s\n", id)
		return nil
	},
}

func init() {
	profilesCmd.AddCommand(profilesAPICmd)
	profilesAPICmd.AddCommand(apiAddCmd, apiUseCmd)

	apiAddCmd.Flags().StringVar(&apiAddName, "name", "", "display name")
	apiAddCmd.Flags().StringVar(&apiAddBaseURL, "base-url", "", "API base URL")
	apiAddCmd.Flags().StringVar(&apiAddModels.Default, "model", "", "default model")
	apiAddCmd.Flags().StringVar(&apiAddModels.Haiku, "haiku-model", "", "model used for haiku requests")
	apiAddCmd.Flags().StringVar(&apiAddModels.Sonnet, "sonnet-model", "", "model used for sonnet requests")
	apiAddCmd.Flags().StringVar(&apiAddModels.Opus, "opus-model", "", "model used for opus requests")
	apiUseCmd.Flags().BoolVar(&apiUseNone, "none", false, "deactivate API mode")
}

package cli

import (
	"fmt"
	"time"

	"github.com/majorcontext/drawbridge/internal/account"
	"github.com/majorcontext/drawbridge/internal/oauth"
	"github.com/spf13/cobra"
)

var (
	oauthAddName      string
	oauthAddEmail     string
	oauthAddConfigDir string
	oauthAddDefault   bool

	usageSession      float64
	usageWeekly       float64
	usageLimitedFor   time.Duration
	usageClearLimited bool
)

var profilesOAuthCmd = &cobra.Command{
	Use:   "oauth",
	Short: "Manage OAuth profiles",
}

var oauthAddCmd = &cobra.Command{
	Use:   "add <id>",
	Short: "Register an OAuth profile",
	Long: `Register an OAuth profile backed by a Claude config directory.

The profile's token is read from the system keychain or from
<config-dir>/.credentials.json; drawbridge never stores it. A profile without
--config-dir uses the default location.

Examples:
  drawbridge profiles oauth add work --config-dir ~/.claude-work --name Work
  drawbridge profiles oauth add personal --default`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regs, err := openRegistries()
		if err != nil {
			return err
		}
		defer regs.Close()

		p := oauth.Profile{
			ID:        args[0],
			Name:      oauthAddName,
			Email:     oauthAddEmail,
			ConfigDir: oauthAddConfigDir,
			IsDefault: oauthAddDefault,
		}
		if err := regs.oauth.Add(cmd.Context(), p); err != nil {
			return err
		}
		fmt.Printf("Added OAuth profile %s\n", account.OAuth(p.ID))
		return nil
	},
}

var oauthUseCmd = &cobra.Command{
	Use:   "use <id>",
	Short: "Make an OAuth profile globally active",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regs, err := openRegistries()
		if err != nil {
			return err
		}
		defer regs.Close()

		if err := regs.oauth.SetActive(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Active OAuth profile: %s\n", args[0])
		return nil
	},
}

var oauthUsageCmd = &cobra.Command{
	Use:   "usage <id>",
	Short: "Record usage or a rate limit for an OAuth profile",
	Long: `Record usage percentages or a rate limit for an OAuth profile.

Profiles at 100% of either window, or rate limited, are skipped in the
first resolution pass.

Examples:
  drawbridge profiles oauth usage work --session 85 --weekly 40
  drawbridge profiles oauth usage work --limited-for 2h
  drawbridge profiles oauth usage work --clear-limit`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		regs, err := openRegistries()
		if err != nil {
			return err
		}
		defer regs.Close()

		ctx, id := cmd.Context(), args[0]
		flags := cmd.Flags()
		if flags.Changed("session") || flags.Changed("weekly") {
			if err := regs.oauth.RecordUsage(ctx, id, usageSession, usageWeekly); err != nil {
				return err
			}
		}
		switch {
		case usageClearLimited:
			if err := regs.oauth.MarkRateLimited(ctx, id, time.Time{}); err != nil {
				return err
			}
		case usageLimitedFor > 0:
			if err := regs.oauth.MarkRateLimited(ctx, id, time.Now().Add(usageLimitedFor)); err != nil {
				return err
			}
		}

		status, err := regs.oauth.RateLimitStatus(ctx, id)
		if err != nil {
			return err
		}
		if status.Limited {
			fmt.Printf("%s is rate limited until %s\n", id, status.Until.Local().Format(time.Kitchen))
		}
		return nil
	},
}

var oauthPriorityCmd = &cobra.Command{
	Use:   "priority <account-id>...",
	Short: "Set the account priority order used for fallback",
	Long: `Set the order accounts are tried in after a feature's own assignment.
Account ids may be OAuth or API profiles.

Examples:
  drawbridge profiles oauth priority oauth-work api-backup oauth-personal`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids := make([]account.ID, 0, len(args))
		for _, a := range args {
			id, err := account.ParseStrict(a)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}

		regs, err := openRegistries()
		if err != nil {
			return err
		}
		defer regs.Close()
		return regs.oauth.SetPriorityOrder(cmd.Context(), ids)
	},
}

func init() {
	profilesCmd.AddCommand(profilesOAuthCmd)
	profilesOAuthCmd.AddCommand(oauthAddCmd, oauthUseCmd, oauthUsageCmd, oauthPriorityCmd)

	oauthAddCmd.Flags().StringVar(&oauthAddName, "name", "", "display name")
	oauthAddCmd.Flags().StringVar(&oauthAddEmail, "email", "", "account email")
	oauthAddCmd.Flags().StringVar(&oauthAddConfigDir, "config-dir", "", "Claude config directory for this account")
	oauthAddCmd.Flags().BoolVar(&oauthAddDefault, "default", false, "mark as the default profile")

	oauthUsageCmd.Flags().Float64Var(&usageSession, "session", 0, "session window usage percent")
	oauthUsageCmd.Flags().Float64Var(&usageWeekly, "weekly", 0, "weekly window usage percent")
	oauthUsageCmd.Flags().DurationVar(&usageLimitedFor, "limited-for", 0, "mark rate limited for this long")
	oauthUsageCmd.Flags().BoolVar(&usageClearLimited, "clear-limit", false, "clear a recorded rate limit")
}

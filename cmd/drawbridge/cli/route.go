package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/majorcontext/drawbridge/internal/account"
	"github.com/majorcontext/drawbridge/internal/config"
	"github.com/majorcontext/drawbridge/internal/ui"
	"github.com/spf13/cobra"
)

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Configure how features are routed to accounts",
	Long: `Configure credential routing.

In global mode every feature uses the active account. In per_feature mode
each feature may be pinned to an account id (oauth-<id> or api-<id>); an
unusable pinned account falls back to the next usable one.

Examples:
  drawbridge route mode per_feature
  drawbridge route set githubPrs api-review
  drawbridge route clear githubPrs
  drawbridge route show`,
}

var routeModeCmd = &cobra.Command{
	Use:       "mode <global|per_feature>",
	Short:     "Set the routing mode",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{string(config.ModeGlobal), string(config.ModePerFeature)},
	RunE: func(cmd *cobra.Command, args []string) error {
		mode := config.Mode(args[0])
		if mode != config.ModeGlobal && mode != config.ModePerFeature {
			return fmt.Errorf("unknown routing mode %q: expected %s or %s", args[0], config.ModeGlobal, config.ModePerFeature)
		}
		if err := updateSettings(config.SettingsPath(), func(s *config.Settings) error {
			s.AuthRoutingMode = string(mode)
			return nil
		}); err != nil {
			return err
		}
		fmt.Printf("Routing mode set to %s\n", mode)
		return nil
	},
}

var routeSetCmd = &cobra.Command{
	Use:   "set <feature> <account-id>",
	Short: "Pin a feature to an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		feature, err := parseFeature(args[0])
		if err != nil {
			return err
		}
		id, err := account.ParseStrict(args[1])
		if err != nil {
			return err
		}
		if err := updateSettings(config.SettingsPath(), func(s *config.Settings) error {
			setFeatureRoute(s, feature, id)
			return nil
		}); err != nil {
			return err
		}
		fmt.Printf("%s now uses %s\n", feature, id)
		return nil
	},
}

var routeClearCmd = &cobra.Command{
	Use:   "clear <feature>",
	Short: "Remove a feature's account assignment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		feature, err := parseFeature(args[0])
		if err != nil {
			return err
		}
		if err := updateSettings(config.SettingsPath(), func(s *config.Settings) error {
			setFeatureRoute(s, feature, account.ID{})
			return nil
		}); err != nil {
			return err
		}
		ui.Infof("%s now follows the fallback order", feature)
		return nil
	},
}

var routeShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the routing mode and feature assignments",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		regs, err := openRegistries()
		if err != nil {
			return err
		}
		defer regs.Close()

		routing, err := regs.settings.Routing(cmd.Context())
		if err != nil {
			return err
		}
		if jsonOut {
			return json.NewEncoder(os.Stdout).Encode(routingView(routing))
		}
		return printRouting(os.Stdout, routing)
	},
}

func init() {
	rootCmd.AddCommand(routeCmd)
	routeCmd.AddCommand(routeModeCmd, routeSetCmd, routeClearCmd, routeShowCmd)
}

// updateSettings loads, modifies and saves the settings file. A settings
// file that cannot be parsed is left untouched.
func updateSettings(path string, fn func(*config.Settings) error) error {
	settings, err := config.ReadFile(path)
	if err != nil {
		var cfgErr *config.ConfigError
		if errors.As(err, &cfgErr) {
			return fmt.Errorf("refusing to overwrite: %w", err)
		}
		return err
	}
	if err := fn(settings); err != nil {
		return err
	}
	return config.Save(path, settings)
}

// setFeatureRoute assigns id to feature, or removes the assignment when id
// is zero.
func setFeatureRoute(s *config.Settings, feature account.Feature, id account.ID) {
	if id.IsZero() {
		delete(s.FeatureAuthProfiles, string(feature))
		return
	}
	if s.FeatureAuthProfiles == nil {
		s.FeatureAuthProfiles = make(map[string]string)
	}
	s.FeatureAuthProfiles[string(feature)] = id.String()
}

type routingJSON struct {
	Mode     config.Mode       `json:"mode"`
	Features map[string]string `json:"features"`
}

func routingView(r config.Routing) routingJSON {
	out := routingJSON{Mode: r.Mode, Features: make(map[string]string, len(r.FeatureMap))}
	for f, id := range r.FeatureMap {
		out.Features[string(f)] = id.String()
	}
	return out
}

func printRouting(w io.Writer, r config.Routing) error {
	fmt.Fprintf(w, "Mode: %s\n\n", ui.Bold(string(r.Mode)))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FEATURE\tACCOUNT")
	for _, f := range account.Features() {
		fmt.Fprintf(tw, "%s\t%s\n", f, orDash(r.Preferred(f).String()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if r.Mode == config.ModeGlobal && len(r.FeatureMap) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.Dim("Assignments are ignored in global mode."))
	}
	return nil
}

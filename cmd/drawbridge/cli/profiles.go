package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/majorcontext/drawbridge/internal/apiprofile"
	"github.com/majorcontext/drawbridge/internal/oauth"
	"github.com/majorcontext/drawbridge/internal/ui"
	"github.com/spf13/cobra"
)

var profilesCmd = &cobra.Command{
	Use:     "profiles",
	Aliases: []string{"profile"},
	Short:   "Manage OAuth and API profiles",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List OAuth and API profiles",
	Long: `List every registered profile with its account id, auth state and usage.

The active profile of each kind is marked with *.

Examples:
  drawbridge profiles list
  drawbridge profiles list --json`,
	Args: cobra.NoArgs,
	RunE: runProfilesList,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd)
}

type oauthProfileView struct {
	oauth.Profile
	AccountID string `json:"account_id"`
	Active    bool   `json:"active"`
	ValidAuth bool   `json:"valid_auth"`
}

type apiProfileView struct {
	ID        string    `json:"id"`
	AccountID string    `json:"account_id"`
	Name      string    `json:"name"`
	BaseURL   string    `json:"base_url,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

type profilesView struct {
	OAuth []oauthProfileView `json:"oauth"`
	API   []apiProfileView   `json:"api"`
}

func runProfilesList(cmd *cobra.Command, args []string) error {
	regs, err := openRegistries()
	if err != nil {
		return err
	}
	defer regs.Close()

	view, err := collectProfiles(cmd.Context(), regs.oauth, regs.api)
	if err != nil {
		return err
	}
	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	return printProfiles(os.Stdout, view)
}

func collectProfiles(ctx context.Context, mgr *oauth.Manager, api *apiprofile.Registry) (profilesView, error) {
	var view profilesView

	profiles, err := mgr.Profiles(ctx)
	if err != nil {
		return view, fmt.Errorf("listing oauth profiles: %w", err)
	}
	active, err := mgr.ActiveProfile(ctx)
	if err != nil {
		return view, fmt.Errorf("reading active oauth profile: %w", err)
	}
	for _, p := range profiles {
		valid, err := mgr.HasValidAuth(ctx, p.ID)
		if err != nil {
			return view, err
		}
		view.OAuth = append(view.OAuth, oauthProfileView{
			Profile:   p,
			AccountID: "oauth-" + p.ID,
			Active:    active != nil && active.ID == p.ID,
			ValidAuth: valid,
		})
	}

	snap, err := api.Snapshot(ctx)
	if err != nil {
		return view, fmt.Errorf("reading api profiles: %w", err)
	}
	for _, p := range snap.Profiles {
		view.API = append(view.API, apiProfileView{
			ID:        p.ID,
			AccountID: "api-" + p.ID,
			Name:      p.Name,
			BaseURL:   p.BaseURL,
			Active:    p.ID == snap.ActiveProfileID,
			CreatedAt: p.CreatedAt,
		})
	}
	return view, nil
}

func printProfiles(w io.Writer, view profilesView) error {
	if len(view.OAuth) == 0 && len(view.API) == 0 {
		fmt.Fprintln(w, "No profiles found.")
		fmt.Fprintln(w, "\nAdd one with: drawbridge profiles oauth add <id> or drawbridge profiles api add <id>")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, " \tACCOUNT\tNAME\tAUTH\tSESSION\tWEEKLY\tADDED")
	for _, p := range view.OAuth {
		auth := ui.OKTag()
		if !p.ValidAuth {
			auth = ui.FailTag()
		}
		session, weekly := "-", "-"
		if p.Usage != nil {
			session, weekly = ui.Percent(p.Usage.SessionPercent), ui.Percent(p.Usage.WeeklyPercent)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			ui.ActiveMark(p.Active), p.AccountID, orDash(p.Name), auth, session, weekly, formatAge(p.CreatedAt))
	}
	for _, p := range view.API {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t-\t-\t%s\n",
			ui.ActiveMark(p.Active), p.AccountID, orDash(p.Name), ui.Dim("key"), formatAge(p.CreatedAt))
	}
	return tw.Flush()
}

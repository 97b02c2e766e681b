package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/majorcontext/drawbridge/internal/account"
	"github.com/majorcontext/drawbridge/internal/authenv"
	"github.com/majorcontext/drawbridge/internal/ui"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var resolveAll bool

var resolveCmd = &cobra.Command{
	Use:   "resolve [feature]",
	Short: "Show which account a feature resolves to",
	Long: `Resolve the credential a feature would run with.

Resolution reads the current routing mode, feature assignments and account
state. In global mode resolving may swap the active OAuth profile when it is
rate limited or at capacity.

Examples:
  drawbridge resolve githubPrs
  drawbridge resolve --all
  drawbridge resolve --all --json`,
	Args: func(cmd *cobra.Command, args []string) error {
		if resolveAll {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)
	resolveCmd.Flags().BoolVar(&resolveAll, "all", false, "resolve every feature")
}

// featureResolution pairs a feature with its resolution for output.
type featureResolution struct {
	Feature account.Feature `json:"feature"`
	*authenv.Resolution
}

func runResolve(cmd *cobra.Command, args []string) error {
	regs, err := openRegistries()
	if err != nil {
		return err
	}
	defer regs.Close()

	features := account.Features()
	if !resolveAll {
		f, err := parseFeature(args[0])
		if err != nil {
			return err
		}
		features = []account.Feature{f}
	}

	results, err := resolveFeatures(cmd, regs.resolver(), features)
	if err != nil {
		return err
	}

	if jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if !resolveAll {
			return enc.Encode(results[0])
		}
		return enc.Encode(results)
	}
	if err := printResolutions(os.Stdout, results); err != nil {
		return err
	}
	for _, r := range results {
		if r.SourceType == authenv.SourceNone {
			ui.Warnf("%s has no usable credential; its tasks will run without one", r.Feature)
		}
	}
	return nil
}

// resolveFeatures resolves features concurrently. Results keep the order of
// features.
func resolveFeatures(cmd *cobra.Command, r *authenv.Resolver, features []account.Feature) ([]featureResolution, error) {
	results := make([]featureResolution, len(features))
	g, ctx := errgroup.WithContext(cmd.Context())
	for i, f := range features {
		g.Go(func() error {
			res, err := r.ResolveForFeature(ctx, f)
			if err != nil {
				return fmt.Errorf("resolving %s: %w", f, err)
			}
			results[i] = featureResolution{Feature: f, Resolution: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func printResolutions(w io.Writer, results []featureResolution) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FEATURE\tSOURCE\tACCOUNT\tVIA\tFALLBACK")
	for _, r := range results {
		fallback := ""
		if r.FallbackUsed {
			fallback = ui.Yellow("yes")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.Feature,
			ui.SourceTag(string(r.SourceType)),
			orDash(r.ResolvedAccountID.String()),
			r.ResolutionSource,
			fallback,
		)
	}
	return tw.Flush()
}

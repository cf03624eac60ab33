package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rshade/ecojourney/internal/ecopoints"
	"github.com/rshade/ecojourney/internal/greenops"
)

func newPointsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "points", Short: "Eco-points commands"}
	cmd.AddCommand(newPointsTierCmd(opts), newPointsAwardsCmd())
	return cmd
}

func newPointsTierCmd(opts *rootOptions) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:     "tier POINTS",
		Short:   "Show the tier and progress for a points balance",
		Example: `  ecojourney points tier 1250`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executePointsTier(cmd, opts, args[0], output)
		},
	}
	cmd.Flags().StringVar(&output, "output", outputTable, "output format: table or json")
	return cmd
}

func executePointsTier(cmd *cobra.Command, opts *rootOptions, raw, output string) error {
	if err := validateOutput(output); err != nil {
		return err
	}
	points, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || points < 0 {
		return fmt.Errorf("%w: points must be a non-negative integer, got %q", greenops.ErrInvalidInput, raw)
	}
	c, err := buildCore(opts.config())
	if err != nil {
		return err
	}
	p := c.points.Progress(points)
	if output == outputJSON {
		return writeJSON(cmd.OutOrStdout(), p)
	}
	return renderProgress(cmd.OutOrStdout(), p)
}

func newPointsAwardsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "awards",
		Short: "List how many points each action earns",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executePointsAwards(cmd)
		},
	}
}

func executePointsAwards(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	for _, r := range ecopoints.AwardTable() {
		award := fmt.Sprintf("%d points", r.Flat)
		if r.PerDollar > 0 {
			award = greenops.FormatFloat(r.PerDollar, 0) + " points per dollar"
		}
		if _, err := fmt.Fprintf(out, "%-24s %-22s %s\n", r.Kind, award, r.Description); err != nil {
			return err
		}
	}
	return nil
}

func newTiersCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "tiers", Short: "Tier catalog commands"}
	var output string
	list := &cobra.Command{
		Use:   "list",
		Short: "List the eco-points tiers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutput(output); err != nil {
				return err
			}
			c, err := buildCore(opts.config())
			if err != nil {
				return err
			}
			if output == outputJSON {
				return writeJSON(cmd.OutOrStdout(), c.points.Tiers())
			}
			return renderTiers(cmd.OutOrStdout(), c.points.Tiers())
		},
	}
	list.Flags().StringVar(&output, "output", outputTable, "output format: table or json")
	cmd.AddCommand(list)
	return cmd
}

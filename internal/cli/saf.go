package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rshade/ecojourney/internal/emissions"
	"github.com/rshade/ecojourney/internal/greenops"
	"github.com/rshade/ecojourney/internal/saf"
)

type safQuoteParams struct {
	route   string
	percent float64
	amount  float64
	output  string
}

func newSAFCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "saf", Short: "Sustainable aviation fuel commands"}
	cmd.AddCommand(newSAFQuoteCmd(opts))
	return cmd
}

func newSAFQuoteCmd(opts *rootOptions) *cobra.Command {
	var params safQuoteParams
	cmd := &cobra.Command{
		Use:   "quote",
		Short: "Price a SAF contribution without recording it",
		Long: `Prices a book-and-claim SAF contribution.

With --route and --percent the contribution covers that share of the
flight's CO2e, and the equivalent generic offset is shown for comparison.
With --amount the whole amount is spent on SAF; adding --route shows how
much of that flight the amount covers.`,
		Example: `  ecojourney saf quote --route SIN-LHR --percent 50
  ecojourney saf quote --amount 25 --route SIN-NRT
  ecojourney saf quote --amount 25 --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeSAFQuote(cmd, opts, params)
		},
	}
	cmd.Flags().StringVar(&params.route, "route", "", "route whose emissions to cover")
	cmd.Flags().Float64Var(&params.percent, "percent", 0, "percent of the flight's CO2e to cover (0-100)")
	cmd.Flags().Float64Var(&params.amount, "amount", 0, "amount of money to spend on SAF")
	cmd.Flags().StringVar(&params.output, "output", outputTable, "output format: table or json")
	cmd.MarkFlagsMutuallyExclusive("amount", "percent")
	cmd.MarkFlagsOneRequired("amount", "percent")
	return cmd
}

type safQuote struct {
	Contribution saf.Contribution    `json:"contribution"`
	RouteID      string              `json:"route_id,omitempty"`
	Coverage     float64             `json:"coverage_percent,omitempty"`
	EcoPoints    int64               `json:"eco_points"`
	Offset       *saf.OffsetPurchase `json:"offset_alternative,omitempty"`
	OffsetPoints int64               `json:"offset_eco_points,omitempty"`
}

func executeSAFQuote(cmd *cobra.Command, opts *rootOptions, params safQuoteParams) error {
	if err := validateOutput(params.output); err != nil {
		return err
	}
	cfg := opts.config()
	c, err := buildCore(cfg)
	if err != nil {
		return err
	}

	byPercent := cmd.Flags().Changed("percent")
	if byPercent && params.route == "" {
		return fmt.Errorf("%w: --percent needs --route", greenops.ErrInvalidInput)
	}

	var (
		q          safQuote
		emissionKg float64
	)
	if params.route != "" {
		res, err := c.calculator.Calculate(emissions.NewRequest(params.route))
		if err != nil {
			return err
		}
		q.RouteID = res.RouteID
		emissionKg = res.EmissionsCO2eKg
	}
	if byPercent {
		q.Contribution, err = c.saf.FromCoveragePercent(emissionKg, params.percent)
		if err != nil {
			return err
		}
		offset, err := saf.QuoteOffset(emissionKg, params.percent, cfg.Offsets.PricePerTonne)
		if err != nil {
			return err
		}
		q.Offset = &offset
		q.OffsetPoints = offset.EcoPoints()
	} else {
		q.Contribution, err = c.saf.FromContributionAmount(params.amount)
		if err != nil {
			return err
		}
	}
	if q.RouteID != "" {
		q.Coverage = saf.CoverageOf(q.Contribution, emissionKg)
	}
	q.EcoPoints = q.Contribution.EcoPoints()

	out := cmd.OutOrStdout()
	if params.output == outputJSON {
		return writeJSON(out, q)
	}

	var b strings.Builder
	sc := q.Contribution
	fmt.Fprintf(&b, "Provider:     %s\n", sc.Provider)
	if q.RouteID != "" {
		fmt.Fprintf(&b, "Coverage:     %s%% of %s\n", greenops.FormatFloat(q.Coverage, 1), q.RouteID)
	}
	fmt.Fprintf(&b, "SAF:          %s L at %s/L\n",
		greenops.FormatFloat(sc.LitersAttributed, 1), greenops.FormatFloat(sc.PricePerLiter, 2))
	fmt.Fprintf(&b, "Avoided:      %s CO2e\n", greenops.FormatKg(sc.CO2eAvoidedKg))
	fmt.Fprintf(&b, "Cost:         %s\n", greenops.FormatFloat(sc.CostAmount, 2))
	fmt.Fprintf(&b, "Eco-points:   %s\n", greenops.FormatNumber(q.EcoPoints))
	if q.Offset != nil {
		b.WriteString("\n")
		b.WriteString(mutedLine(out, fmt.Sprintf("A generic offset for the same %s would cost %s and earn %s points.",
			greenops.FormatKg(q.Offset.KgCovered), greenops.FormatFloat(q.Offset.Cost, 2),
			greenops.FormatNumber(q.OffsetPoints))))
	}
	return renderBox(out, "SAF QUOTE", strings.TrimRight(b.String(), "\n"))
}

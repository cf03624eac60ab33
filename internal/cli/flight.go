package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rshade/ecojourney/internal/emissions"
	"github.com/rshade/ecojourney/internal/greenops"
)

type flightParams struct {
	route       string
	passengers  int
	cabin       string
	output      string
	methodology bool
}

func (p flightParams) request(routeID string) (emissions.Request, error) {
	cabin, err := emissions.ParseCabinClass(p.cabin)
	if err != nil {
		return emissions.Request{}, err
	}
	return emissions.Request{RouteID: routeID, Passengers: p.passengers, CabinClass: cabin}, nil
}

func newFlightCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "flight", Short: "Flight emission commands"}
	cmd.AddCommand(newFlightEstimateCmd(opts), newFlightBatchCmd(opts), newFlightExploreCmd(opts),
		newFlightEquivalencyCmd(opts))
	return cmd
}

func addFlightFlags(cmd *cobra.Command, p *flightParams) {
	cmd.Flags().IntVar(&p.passengers, "passengers", 1, "number of passengers on the booking")
	cmd.Flags().StringVar(&p.cabin, "cabin", string(emissions.CabinEconomy), "cabin class: economy, business, or first")
	cmd.Flags().StringVar(&p.output, "output", outputTable, "output format: table or json")
}

func newFlightEstimateCmd(opts *rootOptions) *cobra.Command {
	var params flightParams
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Estimate the emissions of one booking",
		Example: `  ecojourney flight estimate --route SIN-LHR
  ecojourney flight estimate --route SIN-JFK --passengers 2 --cabin business --methodology
  ecojourney flight estimate --route SIN-NRT --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeFlightEstimate(cmd, opts, params)
		},
	}
	cmd.Flags().StringVar(&params.route, "route", "", "route id, for example SIN-LHR (required)")
	cmd.Flags().BoolVar(&params.methodology, "methodology", false, "print the full calculation trace")
	addFlightFlags(cmd, &params)
	_ = cmd.MarkFlagRequired("route")
	return cmd
}

func executeFlightEstimate(cmd *cobra.Command, opts *rootOptions, params flightParams) error {
	if err := validateOutput(params.output); err != nil {
		return err
	}
	c, err := buildCore(opts.config())
	if err != nil {
		return err
	}
	req, err := params.request(params.route)
	if err != nil {
		return err
	}
	res, err := c.calculator.Calculate(req)
	if err != nil {
		return err
	}
	eq, err := greenops.CalculateKg(res.EmissionsCO2eKg)
	if err != nil {
		return err
	}
	opts.logger.Debug().Str("route_id", res.RouteID).Float64("co2e_kg", res.EmissionsCO2eKg).Msg("flight estimated")

	out := cmd.OutOrStdout()
	if params.output == outputJSON {
		return writeJSON(out, map[string]any{"result": res, "equivalencies": eq})
	}
	if err := renderFlight(out, res, eq, c.calculator.RadiativeForcing().Info()); err != nil {
		return err
	}
	if params.methodology {
		_, _ = fmt.Fprintln(out)
		return renderMethodology(out, res.Methodology)
	}
	return nil
}

func newFlightBatchCmd(opts *rootOptions) *cobra.Command {
	var params flightParams
	cmd := &cobra.Command{
		Use:   "batch ROUTE...",
		Short: "Estimate several routes with the same passengers and cabin",
		Example: `  ecojourney flight batch SIN-LHR SIN-NRT SIN-BKK
  ecojourney flight batch SIN-LHR SIN-CDG --cabin first --output json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeFlightBatch(cmd, opts, params, args)
		},
	}
	addFlightFlags(cmd, &params)
	return cmd
}

func executeFlightBatch(cmd *cobra.Command, opts *rootOptions, params flightParams, routes []string) error {
	if err := validateOutput(params.output); err != nil {
		return err
	}
	c, err := buildCore(opts.config())
	if err != nil {
		return err
	}
	reqs := make([]emissions.Request, 0, len(routes))
	for _, r := range routes {
		req, err := params.request(r)
		if err != nil {
			return err
		}
		reqs = append(reqs, req)
	}
	results, err := c.calculator.EstimateBatch(cmd.Context(), reqs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if params.output == outputJSON {
		return writeJSON(out, results)
	}

	tw := tabwriter.NewWriter(out, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(tw, "ROUTE\tDISTANCE\tFUEL\tCO2\tCO2e\tRANGE")
	fmt.Fprintln(tw, "-----\t--------\t----\t---\t----\t-----")
	var total float64
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s km\t%s L\t%s\t%s\t%s - %s\n",
			r.RouteID,
			greenops.FormatFloat(r.DistanceKm, 0),
			greenops.FormatFloat(r.FuelLiters, 1),
			greenops.FormatKg(r.EmissionsCO2Kg),
			greenops.FormatKg(r.EmissionsCO2eKg),
			greenops.FormatKg(r.Uncertainty.MinKg),
			greenops.FormatKg(r.Uncertainty.MaxKg))
		total += r.EmissionsCO2eKg
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t\t%s\t\n", greenops.FormatKg(total))
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table writer: %w", err)
	}
	return nil
}

func newFlightEquivalencyCmd(opts *rootOptions) *cobra.Command {
	var unit, output string
	cmd := &cobra.Command{
		Use:   "equivalency VALUE",
		Short: "Put an amount of CO2e in everyday terms",
		Example: `  ecojourney flight equivalency 1.82 --unit t
  ecojourney flight equivalency 4000 --unit lb --output json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return executeFlightEquivalency(cmd, opts, args[0], unit, output)
		},
	}
	cmd.Flags().StringVar(&unit, "unit", "kg", "unit of VALUE: g, kg, t or lb, optionally suffixed CO2e")
	cmd.Flags().StringVar(&output, "output", outputTable, "output format: table or json")
	return cmd
}

func executeFlightEquivalency(cmd *cobra.Command, opts *rootOptions, raw, unit, output string) error {
	if err := validateOutput(output); err != nil {
		return err
	}
	if !greenops.IsRecognizedUnit(unit) {
		return fmt.Errorf("%w: unit %q, expected g, kg, t or lb", greenops.ErrInvalidUnit, unit)
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%w: value must be a number, got %q", greenops.ErrInvalidInput, raw)
	}
	eq, err := greenops.Calculate(greenops.CarbonInput{Value: value, Unit: unit})
	if err != nil {
		return err
	}
	opts.logger.Debug().Float64("value", value).Str("unit", unit).Float64("kg", eq.InputKg).Msg("equivalency calculated")

	out := cmd.OutOrStdout()
	if output == outputJSON {
		return writeJSON(out, eq)
	}
	if eq.IsEmpty {
		_, err = fmt.Fprintf(out, "%s CO2e is too small to compare.\n", greenops.FormatKg(eq.InputKg))
		return err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Amount:       %s CO2e\n", greenops.FormatKg(eq.InputKg))
	for _, r := range eq.Results {
		fmt.Fprintf(&b, "              %s %s\n", r.FormattedValue, r.Label)
	}
	b.WriteString("\n")
	b.WriteString(mutedLine(out, eq.DisplayText))
	return renderBox(out, "EQUIVALENCIES", strings.TrimRight(b.String(), "\n"))
}

func renderFlight(w io.Writer, r emissions.FlightEmissionResult, eq greenops.EquivalencyOutput, rf greenops.ForcingInfo) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Route:        %s → %s (%s km)\n", r.Origin, r.Destination, greenops.FormatFloat(r.DistanceKm, 0))
	fmt.Fprintf(&b, "Booking:      %d x %s\n", r.Passengers, r.CabinClass)
	fmt.Fprintf(&b, "Fuel:         %s L\n", greenops.FormatFloat(r.FuelLiters, 1))
	fmt.Fprintf(&b, "CO2:          %s\n", greenops.FormatKg(r.EmissionsCO2Kg))
	fmt.Fprintf(&b, "CO2e:         %s (x%s radiative forcing)\n",
		greenops.FormatKg(r.EmissionsCO2eKg), greenops.FormatFloat(rf.Multiplier, 1))
	fmt.Fprintf(&b, "Range:        %s - %s (±%s%%)\n",
		greenops.FormatKg(r.Uncertainty.MinKg), greenops.FormatKg(r.Uncertainty.MaxKg),
		greenops.FormatFloat(r.Uncertainty.Percent, 1))
	if r.Passengers > 1 {
		fmt.Fprintf(&b, "Per person:   %s CO2e\n", greenops.FormatKg(r.PerPassenger.CO2eKg))
	}
	if !eq.IsEmpty {
		b.WriteString("\n")
		b.WriteString(mutedLine(w, eq.DisplayText))
	}
	return renderBox(w, "FLIGHT EMISSIONS", strings.TrimRight(b.String(), "\n"))
}

func renderMethodology(w io.Writer, factors []emissions.MethodologyFactor) error {
	tw := tabwriter.NewWriter(w, 0, 0, tabPadding, ' ', 0)
	fmt.Fprintln(tw, "FACTOR\tVALUE\tUNIT\tSOURCE")
	fmt.Fprintln(tw, "------\t-----\t----\t------")
	for _, f := range factors {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Name, greenops.FormatFloat(f.Value, 4), f.Unit, f.Source)
	}
	if err := tw.Flush(); err != nil {
		return fmt.Errorf("flushing table writer: %w", err)
	}
	return nil
}

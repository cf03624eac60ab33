package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rshade/ecojourney/internal/config"
)

// newConfigValidateCmd creates the config validate command.
func newConfigValidateCmd(opts *rootOptions) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		Long: `Validates the configuration at $ECOJOURNEY_HOME/config.yaml (or --config),
after applying --config-overlay, the dotenv file and ECOJOURNEY_* variables.

This includes:
- Radiative forcing multiplier of at least 1
- Positive SAF and offset prices
- Nudge timezone, cooldown and meal windows
- Storage backend selection
- The reference dataset (routes, aircraft ratings and tier catalog)`,
		Example: `  # Validate current configuration
  ecojourney config validate

  # Validate and show detailed information
  ecojourney config validate --verbose`,
		Annotations: map[string]string{annotationSkipConfig: "true"},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfigValidate(cmd, opts, verbose)
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show detailed validation information")

	return cmd
}

// runConfigValidate loads the configuration and reference data, listing
// every problem found.
func runConfigValidate(cmd *cobra.Command, opts *rootOptions, verbose bool) error {
	cfg, err := opts.loadConfig()
	if err != nil {
		printJoined(cmd, err)
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	c, err := buildCore(cfg)
	if err != nil {
		return fmt.Errorf("reference data validation failed: %w", err)
	}

	cmd.Println("✅ Configuration is valid")

	if verbose {
		printVerboseDetails(cmd, cfg, c)
	}
	return nil
}

func printJoined(cmd *cobra.Command, err error) {
	var joined interface{ Unwrap() []error }
	if !errors.As(err, &joined) {
		return
	}
	cmd.PrintErrln("Configuration errors:")
	for _, e := range joined.Unwrap() {
		cmd.PrintErrf("  - %s\n", e.Error())
	}
}

// printVerboseDetails prints the effective configuration.
func printVerboseDetails(cmd *cobra.Command, cfg *config.Config, c *core) {
	rf := c.calculator.RadiativeForcing().Info()
	cmd.Println()
	cmd.Println("Configuration details:")
	cmd.Printf("  Logging level: %s (%s)\n", cfg.Logging.Level, cfg.Logging.Output)
	cmd.Printf("  Reference data: version %s, %d routes, %d tiers, %d cup stations\n",
		c.refs.Version(), len(c.refs.Routes()), len(c.refs.Tiers()), len(c.refs.CupStations()))
	cmd.Printf("  Radiative forcing: x%.2f ±%.0f%%\n", rf.Multiplier, rf.UncertaintyPercent)
	cmd.Printf("  SAF: %s at %.2f/L, %.2f kg CO2e avoided per litre\n",
		cfg.SAF.Provider, cfg.SAF.PricePerLiter, cfg.SAF.ReductionFactorPerLiter)
	cmd.Printf("  Offsets: %.2f per tonne\n", cfg.Offsets.PricePerTonne)
	cmd.Printf("  Nudges: cooldown %s, timezone %s\n", cfg.Nudges.Cooldown, cfg.Nudges.Timezone)

	activityLog := "memory"
	if cfg.Storage.ActivityDB != "" {
		activityLog = "sqlite " + cfg.Storage.ActivityDB
	}
	cmd.Printf("  Activity log: %s\n", activityLog)
	cmd.Printf("  Nudge history: %s\n", cfg.Storage.NudgeBackend)
	cmd.Printf("  API: %s\n", cfg.Server.Addr)
}

package cli

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rshade/ecojourney/internal/config"
	"github.com/rshade/ecojourney/internal/logging"
)

// annotationSkipConfig marks commands that load configuration themselves.
const annotationSkipConfig = "ecojourney/skip-config"

// rootOptions is shared by every subcommand. It is filled in by the root
// PersistentPreRunE before any RunE executes.
type rootOptions struct {
	configPath  string
	overlayPath string
	envFile     string
	debug       bool
	logLevel    string

	cfg       *config.Config
	logger    zerolog.Logger
	logResult *logging.LogPathResult
}

// NewRootCmd creates the root Cobra command for the ecojourney CLI.
func NewRootCmd(ver string) *cobra.Command {
	opts := &rootOptions{logger: zerolog.Nop()}

	cmd := &cobra.Command{
		Use:     "ecojourney",
		Short:   "Flight carbon accounting and eco-points engine",
		Long:    "ecojourney: estimate flight emissions, price SAF contributions, and track eco-points tiers",
		Version: ver,
		Example: rootCmdExample,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[annotationSkipConfig] == "" {
				cfg, err := opts.loadConfig()
				if err != nil {
					return err
				}
				opts.cfg = cfg
			}
			result := setupLogging(cmd, opts)
			opts.logResult = &result
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			return opts.logResult.Close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"config file (default $ECOJOURNEY_HOME/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.overlayPath, "config-overlay", "",
		"YAML file whose sections replace those of the config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", "", "dotenv file to load (default .env)")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		newFlightCmd(opts),
		newSAFCmd(opts),
		newPointsCmd(opts),
		newTiersCmd(opts),
		newServeCmd(opts, ver),
		newConfigCmd(opts),
	)
	return cmd
}

const rootCmdExample = `  # Estimate a single booking
  ecojourney flight estimate --route SIN-LHR

  # Estimate several routes at once
  ecojourney flight batch SIN-LHR SIN-NRT SIN-BKK --passengers 2

  # Price covering half of a flight with SAF
  ecojourney saf quote --route SIN-LHR --percent 50

  # Show where 1250 points sit in the tier ladder
  ecojourney points tier 1250

  # Run the HTTP API
  ecojourney serve --addr :8080

  # Check the configuration
  ecojourney config validate --verbose`

// loadConfig reads the dotenv file, the config file and the overlay, in
// that order. Environment variables win over the overlay.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	var envFiles []string
	if o.envFile != "" {
		envFiles = append(envFiles, o.envFile)
	}
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return nil, err
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.overlayPath == "" {
		return cfg, nil
	}
	if err := config.MergeYAML(cfg, o.overlayPath); err != nil {
		return nil, fmt.Errorf("applying overlay: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// config returns the loaded configuration, or the defaults when the
// command skipped loading.
func (o *rootOptions) config() *config.Config {
	if o.cfg == nil {
		return config.New()
	}
	return o.cfg
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "config", Short: "Configuration commands"}
	cmd.AddCommand(newConfigValidateCmd(opts))
	return cmd
}

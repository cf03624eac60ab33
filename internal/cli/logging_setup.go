package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rshade/ecojourney/internal/logging"
)

// setupLogging configures logging from the config file and CLI flags and
// attaches the logger to the command context.
func setupLogging(cmd *cobra.Command, opts *rootOptions) logging.LogPathResult {
	loggingCfg := opts.config().LoggingOptions()

	switch {
	case opts.debug:
		loggingCfg.Level = "debug"
		loggingCfg.Format = logging.FormatConsole
		loggingCfg.Output = logging.OutputStderr
	case opts.logLevel != "":
		loggingCfg.Level = opts.logLevel
	}

	result := logging.NewLoggerWithPath(loggingCfg)
	opts.logger = logging.ComponentLogger(result.Logger, "cli")

	if result.UsingFile {
		logging.PrintLogPathMessage(cmd.ErrOrStderr(), result.FilePath)
	} else if result.FallbackUsed {
		logging.PrintFallbackWarning(cmd.ErrOrStderr(), result.FallbackReason)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = result.Logger.WithContext(ctx)
	cmd.SetContext(ctx)

	opts.logger.Debug().Str("command", cmd.CommandPath()).Msg("command started")
	return result
}

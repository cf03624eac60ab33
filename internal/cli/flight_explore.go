package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/rshade/ecojourney/internal/emissions"
	"github.com/rshade/ecojourney/internal/greenops"
	"github.com/rshade/ecojourney/internal/tui"
)

func newFlightExploreCmd(opts *rootOptions) *cobra.Command {
	var params flightParams
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Browse every route interactively",
		Long: `Opens an interactive table of all routes in the reference data.

Keys: / filters, c cycles the cabin class, + and - change the passenger
count, enter shows the calculation trace and q quits.`,
		Example: `  ecojourney flight explore
  ecojourney flight explore --passengers 2 --cabin business`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return executeFlightExplore(cmd, opts, params)
		},
	}
	cmd.Flags().IntVar(&params.passengers, "passengers", 1, "initial number of passengers")
	cmd.Flags().StringVar(&params.cabin, "cabin", string(emissions.CabinEconomy), "initial cabin class")
	return cmd
}

func executeFlightExplore(cmd *cobra.Command, opts *rootOptions, params flightParams) error {
	if !isWriterTerminal(cmd.OutOrStdout()) {
		return fmt.Errorf("%w: flight explore needs an interactive terminal, use flight batch instead",
			greenops.ErrInvalidInput)
	}
	cabin, err := emissions.ParseCabinClass(params.cabin)
	if err != nil {
		return err
	}
	c, err := buildCore(opts.config())
	if err != nil {
		return err
	}

	model := tui.NewRouteExplorerModel(c.refs.Routes(), c.calculator.Calculate, tui.Settings{
		Passengers: params.passengers,
		Cabin:      cabin,
	})
	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithContext(cmd.Context()),
		tea.WithInput(cmd.InOrStdin()),
		tea.WithOutput(cmd.OutOrStdout()),
	)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running explorer: %w", err)
	}
	return nil
}

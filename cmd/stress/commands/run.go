package commands

import (
	"github.com/spf13/cobra"

	"github.com/aristath/stresslab/internal/domain"
)

func newRunCmd(opts *globalOptions) *cobra.Command {
	flags := &requestFlags{}
	var method string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one stress simulation",
		Long: `Estimates the baseline from the history window, applies the scenario and
simulates portfolio paths with the chosen method.

Example:
  stress run --tickers SPY,TLT --scenario covid-19-crash --simulations 20000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := domain.ParseMethod(method)
			if err != nil {
				return err
			}
			req, err := flags.toRequest(cmd, m)
			if err != nil {
				return err
			}

			eng, closeFn, err := opts.openEngine(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := eng.Run(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd, opts.pretty, res)
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&method, "method", "monte_carlo", "monte_carlo or historical")
	return cmd
}

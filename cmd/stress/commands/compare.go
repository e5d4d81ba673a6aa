package commands

import (
	"github.com/spf13/cobra"
)

func newCompareCmd(opts *globalOptions) *cobra.Command {
	flags := &requestFlags{}

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Run Monte Carlo and historical bootstrap side by side",
		Long: `Runs the same request with both methods under one seed and reports
the per-level VaR and CVaR differences.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := flags.toRequest(cmd, "")
			if err != nil {
				return err
			}

			eng, closeFn, err := opts.openEngine(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeFn()

			cmp, err := eng.Compare(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd, opts.pretty, cmp)
		},
	}

	flags.register(cmd)
	return cmd
}

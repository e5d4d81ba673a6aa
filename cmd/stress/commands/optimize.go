package commands

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/aristath/stresslab/internal/apiutil"
	"github.com/aristath/stresslab/internal/modules/engine"
	"github.com/aristath/stresslab/internal/utils"
)

func newOptimizeCmd(opts *globalOptions) *cobra.Command {
	var (
		tickers  []string
		start    string
		end      string
		riskFree float64
		strict   bool
	)

	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Solve max-Sharpe and min-variance weights over a history window",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := apiutil.ParseDate("start", start)
			if err != nil {
				return err
			}
			e, err := apiutil.ParseDate("end", end)
			if err != nil {
				return err
			}
			upper := utils.NormalizeTickers(tickers)

			eng, closeFn, err := opts.openEngine(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := eng.Optimize(cmd.Context(), engine.OptimizeRequest{
				Tickers:                     upper,
				Start:                       s,
				End:                         e,
				RiskFreeRate:                riskFree,
				FallbackOnOptimizationError: !strict,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd, opts.pretty, res)
		},
	}

	now := time.Now().UTC()
	cmd.Flags().StringSliceVar(&tickers, "tickers", nil, "comma separated tickers (required)")
	cmd.Flags().StringVar(&start, "start", now.AddDate(-3, 0, 0).Format(apiutil.DateLayout), "history window start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&end, "end", now.Format(apiutil.DateLayout), "history window end (YYYY-MM-DD)")
	cmd.Flags().Float64Var(&riskFree, "risk-free", 0, "annual risk-free rate")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail instead of falling back to equal weights")
	_ = cmd.MarkFlagRequired("tickers")

	return cmd
}

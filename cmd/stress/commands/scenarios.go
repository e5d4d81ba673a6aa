package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/aristath/stresslab/internal/domain"
	"github.com/aristath/stresslab/internal/modules/scenarios"
)

func newScenariosCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenarios",
		Short: "Browse the predefined scenario catalog",
	}

	var tag string
	list := &cobra.Command{
		Use:   "list",
		Short: "List predefined scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := scenarios.Catalog()
			if tag != "" {
				filtered := entries[:0]
				for _, e := range entries {
					for _, t := range e.Tags {
						if strings.EqualFold(t, tag) {
							filtered = append(filtered, e)
							break
						}
					}
				}
				entries = filtered
			}
			return writeJSON(cmd, opts.pretty, entries)
		},
	}
	list.Flags().StringVar(&tag, "tag", "", "only scenarios carrying this tag")

	show := &cobra.Command{
		Use:   "show NAME",
		Short: "Show one scenario by slug or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entry, err := scenarios.Lookup(args[0])
			if err != nil {
				return domain.NewError(domain.ErrValidation, domain.StageValidation, "unknown predefined scenario", err)
			}
			return writeJSON(cmd, opts.pretty, entry)
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

package commands

import (
	"github.com/spf13/cobra"
)

func newTypesCommand(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the known file types",
		Long: `List every file type with the extensions and file names it matches and its
counters. Counters shown in brackets are not applied when counting.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Shutdown()

			return a.ListTypes()
		},
	}
}

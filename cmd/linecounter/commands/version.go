package commands

import (
	"encoding/json"
	"fmt"

	"github.com/sonemaro/linecounter/internal/version"
	"github.com/spf13/cobra"
)

func newVersionCommand() *cobra.Command {
	var full, asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		// the version is printed even when the configuration is invalid
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch {
			case asJSON:
				data, err := json.MarshalIndent(version.GetBuildInfo(), "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(data))
			case full:
				fmt.Fprint(out, version.FullVersion())
			default:
				fmt.Fprintln(out, version.Short())
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&full, "full", "f", false, "show full version information")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print build information as JSON")

	return cmd
}

package commands

import (
	"fmt"

	"github.com/sonemaro/linecounter/pkg/filetype"
	"github.com/spf13/cobra"
)

type exportOptions struct {
	*Options
	format string
	inline bool
}

func newExportCommand(opts *Options) *cobra.Command {
	eo := &exportOptions{
		Options: opts,
	}

	cmd := &cobra.Command{
		Use:   "export [file]",
		Short: "Write the active file type definitions",
		Long: `Write the active file type definitions, the built-in ones unless
--definitions is given, to a file or to stdout. The file extension selects
the format (.yaml, .yml, .json or .toml); --format applies to stdout.`,
		Example: `  linecounter export > types.yaml
  linecounter export --inline types.toml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, args, eo)
		},
	}

	cmd.Flags().StringVar(&eo.format, "format", string(filetype.FormatYAML),
		"format when writing to stdout: yaml|json|toml")
	cmd.Flags().BoolVar(&eo.inline, "inline", false,
		"copy shared counters into every file type that uses them")

	return cmd
}

func runExport(cmd *cobra.Command, args []string, opts *exportOptions) error {
	format := filetype.Format(opts.format)
	switch format {
	case filetype.FormatYAML, filetype.FormatJSON, filetype.FormatTOML:
	default:
		return fmt.Errorf("%w: %s", filetype.ErrUnsupportedFormat, opts.format)
	}

	a, err := opts.newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	return a.ExportDefinitions(path, format, opts.inline)
}

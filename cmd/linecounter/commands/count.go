package commands

import (
	"github.com/sonemaro/linecounter/cmd/linecounter/app"
	"github.com/sonemaro/linecounter/internal/config"
	"github.com/spf13/cobra"
)

type countOptions struct {
	*Options
	saveList  string
	withStats bool
}

func newCountCommand(opts *Options) *cobra.Command {
	co := &countOptions{
		Options: opts,
	}

	cmd := &cobra.Command{
		Use:   "count [flags] <path>...",
		Short: "Count the lines of files and directories",
		Long: `Count the lines of the given files and of every recognised file below the
given directories. Paths may also be listed in a file with --files-from.

Files whose type is not known are skipped unless --unknown-type names the
file type to count them as.`,
		Example: `  linecounter count .
  linecounter count -w 8 -i vendor/ -i "**/*.min.js" src
  linecounter count -o csv -f lines.csv --no-progress src
  linecounter count -c ISO-8859-1 --count-blank-lines=false legacy/`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCount(cmd, args, co)
		},
	}

	flags := cmd.Flags()
	flags.IntP("workers", "w", 0,
		"number of concurrent workers (default: number of CPUs)")
	flags.Int("batch-size", config.DefaultBatchSize,
		"results buffered per worker before they are published")
	flags.IntP("rate-limit", "r", 0,
		"maximum files counted per second (0 for unlimited)")
	flags.StringP("charset", "c", "UTF-8",
		"character set used to decode files")
	flags.Bool("count-blank-lines", true,
		"count blank lines separately from source lines")
	flags.StringP("unknown-type", "u", "",
		"file type assigned to files of unknown type (default: skip them)")
	flags.IntP("max-depth", "d", config.UnlimitedDepth,
		"maximum directory depth (-1 for unlimited)")
	flags.StringSliceP("ignore", "i", nil,
		"glob patterns to ignore; a trailing / matches directories only")
	flags.StringP("files-from", "L", "",
		"read the paths to count from a file, one per line")
	flags.StringP("output", "o", string(config.OutputFormatTable),
		"output format: table|json|yaml|csv")
	flags.StringP("output-file", "f", "",
		"write output to file instead of stdout")
	flags.StringVar(&co.saveList, "save-list", "",
		"save the selected file paths to a file before counting")
	flags.BoolVar(&co.withStats, "stats", false,
		"append run statistics to the output")

	bindFlags(opts.Viper, flags,
		"workers", "batch-size", "rate-limit", "charset", "count-blank-lines",
		"unknown-type", "max-depth", "ignore", "files-from", "output", "output-file")

	return cmd
}

func runCount(cmd *cobra.Command, args []string, opts *countOptions) error {
	a, err := opts.newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	a.HandleSignals()

	_, err = a.Count(app.CountOptions{
		Roots:     args,
		SaveList:  opts.saveList,
		WithStats: opts.withStats,
	})
	return err
}

/*
Package commands implements the linecounter command line. Every setting is
bound to one viper instance so flags, LINECOUNTER_ environment variables and
an optional config file resolve the same way for all commands.
*/
package commands

import (
	"github.com/sonemaro/linecounter/cmd/linecounter/app"
	"github.com/sonemaro/linecounter/internal/config"
	"github.com/sonemaro/linecounter/internal/version"
	"github.com/sonemaro/linecounter/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Options holds command-line state shared by all commands
type Options struct {
	Viper      *viper.Viper
	ConfigPath string
	Config     config.Config
	Log        logger.Logger

	appOptions []app.Option
}

// NewRootCommand creates the root command for the application. The app
// options are applied to every application instance the commands create.
func NewRootCommand(appOptions ...app.Option) *cobra.Command {
	opts := &Options{
		Viper:      config.NewViper(),
		appOptions: appOptions,
	}

	rootCmd := &cobra.Command{
		Use:   "linecounter [command] [flags] <path>...",
		Short: "Concurrent source line counter",
		Long: `linecounter counts the lines of source files: total, blank, matched by the
comment counters of each file type, and the source lines that remain.

File types and their counters come from a definitions file (YAML, JSON or
TOML); the built-in definitions are used when none is given.`,
		Version: version.Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeCommand(opts)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate(version.Short() + "\n")

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.ConfigPath, "config", "",
		"config file (YAML, TOML or JSON)")
	flags.CountP("verbose", "v",
		"verbose output (can be used multiple times)")
	flags.Bool("no-progress", false,
		"disable progress reporting")
	flags.Bool("no-color", false,
		"disable colored output")
	flags.String("log-format", string(config.LogFormatJSON),
		"log encoding: json|console")
	flags.StringP("definitions", "t", "",
		"file type definitions file (default: built-in definitions)")
	bindFlags(opts.Viper, flags, "verbose", "no-progress", "no-color", "log-format", "definitions")

	rootCmd.AddCommand(
		newCountCommand(opts),
		newTypesCommand(opts),
		newExportCommand(opts),
		newVersionCommand(),
	)

	return rootCmd
}

// initializeCommand loads the configuration and the logger
func initializeCommand(opts *Options) error {
	cfg, err := config.LoadFrom(opts.Viper, opts.ConfigPath)
	if err != nil {
		return err
	}
	opts.Config = cfg

	opts.Log = logger.NewLogger(logger.Config{
		Verbosity: cfg.Verbose,
		Encoding:  logger.Encoding(cfg.LogFormat),
	})

	opts.Log.WithFields(logger.Fields{
		"config": cfg.String(),
	}).Debug("Configuration loaded")

	return nil
}

// newApp creates the application for a command, writing reports to the
// command's output
func (o *Options) newApp(cmd *cobra.Command) (*app.App, error) {
	appOptions := append([]app.Option{
		app.WithLogger(o.Log),
		app.WithOutput(cmd.OutOrStdout()),
		app.WithProgressOutput(cmd.ErrOrStderr()),
	}, o.appOptions...)

	return app.New(&o.Config, appOptions...)
}

// bindFlags binds flags to the viper keys of the same name with dashes
// replaced by underscores
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, names ...string) {
	for _, name := range names {
		key := flagKey(name)
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

func flagKey(name string) string {
	key := []byte(name)
	for i, c := range key {
		if c == '-' {
			key[i] = '_'
		}
	}
	return string(key)
}

package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/tordrt/leetstore"
	"github.com/tordrt/leetstore/internal/apperr"
	"github.com/tordrt/leetstore/internal/cli"
	"github.com/tordrt/leetstore/internal/config"
	"github.com/tordrt/leetstore/internal/logging"
	"github.com/tordrt/leetstore/internal/schema"
)

var version = "dev"

// app holds the flag values and the configuration they resolve to.
type app struct {
	configFile string
	dataDir    string
	schemaFile string
	minVersion string
	logLevel   string
	logFormat  string
	format     string
	fix        bool
	dropExtra  bool
	noColor    bool

	cfg    *config.Config
	logger *slog.Logger
	stderr io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{stderr: os.Stderr}

	rootCmd := &cobra.Command{
		Use:   "leetstore",
		Short: "Prepare and validate the local data directory",
		Long: `leetstore locates the .leetsolver data directory, keeps settings.json in line with
its defaults, and validates database.db against the declared schema, repairing drift
when --fix is set.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&a.configFile, "config", "c", "", "Config file (default: ./leetstore.yaml or ~/.config/leetstore/leetstore.yaml)")
	flags.StringVar(&a.dataDir, "dir", "", "Data directory (default: ~/.leetsolver, then next to the executable)")
	flags.StringVar(&a.schemaFile, "schema-file", "", "YAML schema descriptor (default: built-in schema)")
	flags.StringVar(&a.minVersion, "min-version", "", "Oldest accepted SQLite version (default: 3.0.0)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: text or json")
	flags.StringVarP(&a.format, "format", "f", "", "Output format: text or markdown (default: text)")
	flags.BoolVar(&a.fix, "fix", true, "Repair drift instead of failing on it")
	flags.BoolVar(&a.dropExtra, "drop-extra-columns", false, "Treat undeclared columns as drift and drop them when fixing")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(
		a.newInitCmd(),
		a.newCheckCmd(),
		a.newSchemaCmd(),
		a.newWatchCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// setup loads the configuration, lets explicitly set flags override it, and
// builds the logger.
func (a *app) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(a.configFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("dir") {
		cfg.Dir = a.dataDir
	}
	if flags.Changed("schema-file") {
		cfg.SchemaFile = a.schemaFile
	}
	if flags.Changed("min-version") {
		cfg.MinEngineVersion = a.minVersion
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = a.logFormat
	}
	if flags.Changed("format") {
		cfg.Output.Format = a.format
	}
	if flags.Changed("fix") {
		cfg.Fix = a.fix
	}
	if flags.Changed("drop-extra-columns") {
		cfg.DropExtraColumns = a.dropExtra
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format, a.stderr)
	if err != nil {
		return apperr.Wrap(apperr.ErrConfig, err, "invalid logging configuration")
	}

	if a.noColor {
		cli.SetDefault(&cli.Config{Mode: cli.ModePlain, Writer: cmd.OutOrStdout()})
	}

	a.cfg = cfg
	a.logger = logger
	return nil
}

// options turns the resolved configuration into library options.
func (a *app) options() (*leetstore.Options, error) {
	desc, err := a.descriptor()
	if err != nil {
		return nil, err
	}
	return &leetstore.Options{
		Dir:              a.cfg.Dir,
		Schema:           desc,
		Fix:              a.cfg.Fix,
		MinEngineVersion: a.cfg.MinEngineVersion,
		DropExtraColumns: a.cfg.DropExtraColumns,
		Logger:           a.logger,
	}, nil
}

func (a *app) descriptor() (*schema.Descriptor, error) {
	if a.cfg.SchemaFile == "" {
		return leetstore.DefaultSchema(), nil
	}
	desc, err := schema.Load(a.cfg.SchemaFile)
	if err != nil {
		return nil, err
	}
	return &desc, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		// No configuration needed.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "leetstore %s\n", version)
		},
	}
}

// exitCode maps an error to the process exit status: 2 for unrepaired drift,
// 1 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case apperr.Is(err, apperr.ErrValidationFailed), errors.Is(err, errDrift):
		return 2
	default:
		return 1
	}
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, cli.Failure("%v", err))
		os.Exit(exitCode(err))
	}
}

package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tordrt/leetstore"
	"github.com/tordrt/leetstore/internal/cli"
	"github.com/tordrt/leetstore/internal/locator"
	"github.com/tordrt/leetstore/internal/schema"
	"github.com/tordrt/leetstore/internal/settings"
	"github.com/tordrt/leetstore/internal/validate"
)

var errDrift = errors.New("database does not match the schema")

func (a *app) newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Locate the data directory and validate settings and database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := a.options()
			if err != nil {
				return err
			}

			store, err := leetstore.Init(cmd.Context(), opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := leetstore.FormatReport(store.Report, &leetstore.OutputOptions{Writer: out, Format: a.cfg.Output.Format}); err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintln(out, cli.Success("data directory ready: %s", store.Dir))
			return nil
		},
	}
}

func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report drift without changing anything",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := a.descriptor()
			if err != nil {
				return err
			}

			dir, err := a.find()
			if err != nil {
				return err
			}

			defaults := leetstore.DefaultSettings()
			if _, err := settings.Ensure(filepath.Join(dir, settings.FileName), defaults, false); err != nil {
				return err
			}

			report, err := validate.Inspect(cmd.Context(), filepath.Join(dir, leetstore.DatabaseFileName), desc, validate.Options{
				MinEngineVersion: a.cfg.MinEngineVersion,
				DropExtraColumns: a.cfg.DropExtraColumns,
				Logger:           a.logger,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if err := leetstore.FormatReport(report, &leetstore.OutputOptions{Writer: out, Format: a.cfg.Output.Format}); err != nil {
				return fmt.Errorf("failed to format output: %w", err)
			}

			if report.Drift(a.cfg.DropExtraColumns) {
				return errDrift
			}
			_, _ = fmt.Fprintln(out)
			_, _ = fmt.Fprintln(out, cli.Success("no drift"))
			return nil
		},
	}
}

func (a *app) newSchemaCmd() *cobra.Command {
	var (
		outputDir string
		asYAML    bool
	)

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the schema the database is validated against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			desc, err := a.descriptor()
			if err != nil {
				return err
			}

			if asYAML {
				if outputDir != "" {
					return fmt.Errorf("cannot use both --yaml and --output-dir flags")
				}
				data, err := schema.Marshal(*desc)
				if err != nil {
					return err
				}
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}

			return leetstore.FormatSchema(desc, &leetstore.OutputOptions{
				Writer:    cmd.OutOrStdout(),
				OutputDir: outputDir,
				Format:    a.cfg.Output.Format,
			})
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output-dir", "d", "", "Write one file per table plus an overview to this directory")
	cmd.Flags().BoolVar(&asYAML, "yaml", false, "Print the descriptor as YAML (loadable with --schema-file)")
	return cmd
}

// find resolves an existing data directory the way Init would, without
// creating one.
func (a *app) find() (string, error) {
	if a.cfg.Dir != "" {
		dir, err := filepath.Abs(a.cfg.Dir)
		if err != nil {
			return "", err
		}
		return locator.Find([]string{filepath.Dir(dir)}, filepath.Base(dir))
	}
	return locator.Find(locator.DefaultCandidates(), locator.DirName)
}

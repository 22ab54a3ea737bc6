package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/radcv/dataset"
	"github.com/YuminosukeSato/radcv/internal/cfg"
	"github.com/YuminosukeSato/radcv/pkg/errors"
	"github.com/YuminosukeSato/radcv/pkg/log"
)

var (
	configPath string
	logLevel   string

	// settings is loaded once by PersistentPreRunE.
	settings cfg.Settings

	rootCmd = &cobra.Command{
		Use:   "radcv",
		Short: "Nested cross-validation model selection for radiomic features",
		Long: `radcv evaluates candidate pipelines (feature filters, selector and
classifier) with repeated nested cross-validation, reports the score
distribution of every pipeline and builds the deployment model of the
winner.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadSettings,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML settings file (default $CONFIG_FILE)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error (overrides the settings)")

	rootCmd.AddCommand(evaluateCmd, buildCmd, scoreCmd, reportCmd, curveCmd)
}

func loadSettings(cmd *cobra.Command, _ []string) error {
	s, err := cfg.Load(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		if _, err := log.ParseLevel(logLevel); err != nil {
			return errors.NewConfigurationError("radcv", "unknown --log-level", logLevel)
		}
		s.LogLevel = logLevel
	}
	// ログは stderr、結果は stdout
	if err := log.SetupLoggerTo(cmd.ErrOrStderr(), s.LogLevel); err != nil {
		return err
	}
	settings = s
	return nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func readTable(path string, opts dataset.CSVOptions) (*dataset.Table, error) {
	if path == "" {
		return nil, errors.NewConfigurationError("radcv", "--data is required", path)
	}
	return dataset.ReadFile(path, opts)
}

// writeTo creates path and hands it to fn. An empty path is a no-op.
func writeTo(path string, fn func(io.Writer) error) (err error) {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = errors.Wrapf(cerr, "close %s", path)
		}
	}()
	return fn(f)
}

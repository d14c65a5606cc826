package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goexperiment/internal/cli"
	"github.com/TimurManjosov/goexperiment/internal/logging"
	"github.com/TimurManjosov/goexperiment/internal/project"
	"github.com/TimurManjosov/goexperiment/internal/sdk"
	"github.com/TimurManjosov/goexperiment/internal/snapshot"
)

var (
	// Global flags
	baseURL  string
	apiKey   string
	env      string
	format   string
	datafile string
	quiet    bool
	verbose  bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "flagship",
	Short: "CLI tool for experiment decisions",
	Long: `Flagship decides experiments and feature flags against a project datafile.

Local commands (decide, variation, bucket, inspect) read the datafile given by
--datafile. The force commands talk to a running decision service.

Examples:
  flagship decide flag-checkout --user u1 --attr browser=chrome
  flagship variation exp-basic --user u1 --format json
  flagship bucket u1 --experiment exp-basic
  flagship inspect --datafile project.json
  flagship force set exp-basic u1 treatment --env dev`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "", "Base URL of the decision service")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Admin API key for the decision service")
	rootCmd.PersistentFlags().StringVar(&env, "env", "", "Environment from the CLI config (dev, staging, prod)")
	rootCmd.PersistentFlags().StringVar(&format, "format", "table", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().StringVar(&datafile, "datafile", "", "Datafile for local commands (default from config, then datafile.json)")
	rootCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress output")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log decision reasons to stderr")
}

func logger() zerolog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logging.New(level, "console", os.Stderr)
}

// loadLocal parses the datafile selected by --datafile or the CLI config.
func loadLocal() (*sdk.Client, *project.Config, error) {
	path, err := cli.ResolveDatafile(datafile)
	if err != nil {
		return nil, nil, err
	}
	snap, err := snapshot.BuildFromFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", path, err)
	}
	return sdk.New(sdk.Static{Config: snap.Config}, sdk.WithLogger(logger())), snap.Config, nil
}

// render prints data unless --quiet is set.
func render(cmd *cobra.Command, data any, table cli.Table) error {
	if quiet {
		return nil
	}
	f, err := cli.ParseFormat(format)
	if err != nil {
		return err
	}
	return cli.Print(cmd.OutOrStdout(), f, data, table)
}

// userFlags are the identity flags shared by decision commands.
type userFlags struct {
	id       string
	attrs    map[string]string
	segments []string
}

func (u *userFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&u.id, "user", "", "User id (required)")
	cmd.Flags().StringToStringVar(&u.attrs, "attr", nil, "User attribute as key=value (repeatable)")
	cmd.Flags().StringSliceVar(&u.segments, "segment", nil, "Qualified segment (repeatable)")
	_ = cmd.MarkFlagRequired("user")
}

func (u *userFlags) user() sdk.User {
	return sdk.User{UserID: u.id, Attributes: cli.ParseAttributes(u.attrs), QualifiedSegments: u.segments}
}

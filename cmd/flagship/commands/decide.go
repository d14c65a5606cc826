package commands

import (
	"slices"

	"github.com/spf13/cobra"
	"golang.org/x/exp/maps"

	"github.com/TimurManjosov/goexperiment/internal/cli"
	"github.com/TimurManjosov/goexperiment/internal/sdk"
)

var (
	decideUser    userFlags
	decideReasons bool
)

var decideCmd = &cobra.Command{
	Use:   "decide [flag...]",
	Short: "Decide feature flags for a user",
	Long: `Decide one or more feature flags for a user against the local datafile.
With no flag keys every flag in the datafile is decided.

Examples:
  flagship decide flag-checkout --user u1 --attr browser=chrome
  flagship decide --user u1 --attr age=30 --format yaml --reasons`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := loadLocal()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		user := decideUser.user()
		opts := sdk.DecideOptions{IncludeReasons: decideReasons}

		var decisions []sdk.Decision
		if len(args) == 0 {
			all, err := c.DecideAll(ctx, user, opts)
			if err != nil {
				return err
			}
			for _, k := range slices.Sorted(maps.Keys(all)) {
				decisions = append(decisions, all[k])
			}
		} else {
			for _, key := range args {
				d, err := c.Decide(ctx, key, user, opts)
				if err != nil {
					return err
				}
				decisions = append(decisions, d)
			}
		}

		if quiet {
			return nil
		}
		f, err := cli.ParseFormat(format)
		if err != nil {
			return err
		}
		return cli.PrintDecisions(cmd.OutOrStdout(), decisions, f)
	},
}

func init() {
	decideUser.register(decideCmd)
	decideCmd.Flags().BoolVar(&decideReasons, "reasons", false, "Include decision reasons")
	rootCmd.AddCommand(decideCmd)
}

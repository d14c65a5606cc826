package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goexperiment/internal/cli"
	"github.com/TimurManjosov/goexperiment/internal/client"
)

var forceCmd = &cobra.Command{
	Use:   "force",
	Short: "Manage forced variations on a running service",
	Long: `Set, show and clear forced variations held by a running decision service.

Examples:
  flagship force set exp-basic u1 treatment --env dev
  flagship force get exp-basic u1 --env dev
  flagship force clear exp-basic u1 --env dev`,
}

func apiClient() (*client.Client, error) {
	envCfg, _, err := cli.GetEnvConfig(env, baseURL, apiKey)
	if err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}
	return client.NewClient(envCfg.BaseURL, envCfg.APIKey), nil
}

func printAssignment(cmd *cobra.Command, a *client.Assignment) error {
	out := assignment{ExperimentKey: a.ExperimentKey, UserID: a.UserID, VariationKey: a.VariationKey}
	return render(cmd, out, assignmentTable(out))
}

var forceSetCmd = &cobra.Command{
	Use:   "set <experiment> <user> <variation>",
	Short: "Force a user into a variation",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}
		a, err := c.SetForcedVariation(cmd.Context(), args[0], args[1], args[2])
		if err != nil {
			return fmt.Errorf("failed to set forced variation: %w", err)
		}
		return printAssignment(cmd, a)
	},
}

var forceGetCmd = &cobra.Command{
	Use:   "get <experiment> <user>",
	Short: "Show a user's forced variation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}
		a, err := c.GetForcedVariation(cmd.Context(), args[0], args[1])
		if client.IsNotFound(err) {
			a = &client.Assignment{ExperimentKey: args[0], UserID: args[1]}
		} else if err != nil {
			return fmt.Errorf("failed to get forced variation: %w", err)
		}
		return printAssignment(cmd, a)
	},
}

var forceClearCmd = &cobra.Command{
	Use:   "clear <experiment> <user>",
	Short: "Remove a user's forced variation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := apiClient()
		if err != nil {
			return err
		}
		if err := c.ClearForcedVariation(cmd.Context(), args[0], args[1]); err != nil {
			return fmt.Errorf("failed to clear forced variation: %w", err)
		}
		if !quiet {
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared forced variation for %s in %s\n", args[1], args[0])
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(forceCmd)
	forceCmd.AddCommand(forceSetCmd, forceGetCmd, forceClearCmd)
}

package commands

import (
	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goexperiment/internal/cli"
)

type assignment struct {
	ExperimentKey string `json:"experimentKey" yaml:"experimentKey"`
	UserID        string `json:"userId" yaml:"userId"`
	VariationKey  string `json:"variationKey" yaml:"variationKey"`
}

func assignmentTable(a assignment) cli.Table {
	v := a.VariationKey
	if v == "" {
		v = "-"
	}
	return cli.Table{
		Header: []string{"Experiment", "User", "Variation"},
		Rows:   [][]string{{a.ExperimentKey, a.UserID, v}},
	}
}

var variationUser userFlags

var variationCmd = &cobra.Command{
	Use:   "variation <experiment>",
	Short: "Show the variation a user is bucketed into",
	Long: `Run the variation waterfall for one experiment against the local datafile.

Examples:
  flagship variation exp-basic --user u1
  flagship variation exp-targeted --user u1 --attr browser=chrome --attr age=30`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, _, err := loadLocal()
		if err != nil {
			return err
		}
		key, err := c.GetVariation(cmd.Context(), args[0], variationUser.user())
		if err != nil {
			return err
		}
		a := assignment{ExperimentKey: args[0], UserID: variationUser.id, VariationKey: key}
		return render(cmd, a, assignmentTable(a))
	},
}

func init() {
	variationUser.register(variationCmd)
	rootCmd.AddCommand(variationCmd)
}

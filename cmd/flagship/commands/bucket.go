package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/TimurManjosov/goexperiment/internal/bucketing"
	"github.com/TimurManjosov/goexperiment/internal/cli"
)

type bucketResult struct {
	BucketingID   string `json:"bucketingId" yaml:"bucketingId"`
	ExperimentKey string `json:"experimentKey" yaml:"experimentKey"`
	BucketValue   int    `json:"bucketValue" yaml:"bucketValue"`
	VariationKey  string `json:"variationKey" yaml:"variationKey"`
}

var bucketExperiment string

var bucketCmd = &cobra.Command{
	Use:   "bucket <bucketing-id>",
	Short: "Show where a bucketing id lands in an experiment",
	Long: `Hash a bucketing id into an experiment's traffic allocation, resolving
mutually exclusive groups, without audiences, whitelists or forced variations.

Example:
  flagship bucket u1 --experiment exp-basic`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadLocal()
		if err != nil {
			return err
		}
		exp, err := cfg.GetExperimentByKey(bucketExperiment)
		if err != nil {
			return err
		}

		id := args[0]
		_, value := bucketing.FindBucket(id, exp.ID, exp.TrafficAllocation)
		res := bucketing.Bucket(cfg, &exp.ExperimentCore, id, id)
		if verbose {
			for _, r := range res.Reasons {
				fmt.Fprintln(cmd.ErrOrStderr(), r)
			}
		}

		out := bucketResult{BucketingID: id, ExperimentKey: exp.Key, BucketValue: value}
		if res.Value != nil {
			out.VariationKey = res.Value.Key
		}
		variation := out.VariationKey
		if variation == "" {
			variation = "-"
		}
		return render(cmd, out, cli.Table{
			Header: []string{"Bucketing ID", "Experiment", "Bucket", "Variation"},
			Rows:   [][]string{{out.BucketingID, out.ExperimentKey, strconv.Itoa(out.BucketValue), variation}},
		})
	},
}

func init() {
	bucketCmd.Flags().StringVar(&bucketExperiment, "experiment", "", "Experiment key (required)")
	_ = bucketCmd.MarkFlagRequired("experiment")
	rootCmd.AddCommand(bucketCmd)
}

package main

import (
	"github.com/spf13/cobra"

	"github.com/ezoic/medscore/anomaly"
	"github.com/ezoic/medscore/pkg/errors"
)

func newAnomaliesCmd(a *app) *cobra.Command {
	var (
		records   string
		isolation bool
	)
	cmd := &cobra.Command{
		Use:   "anomalies",
		Short: "Flag outlying records with the z-score and IQR rules",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if records == "" {
				return errors.NewConfigurationError("anomalies", "records", "--records is required")
			}
			X, err := readRecords(records)
			if err != nil {
				return err
			}
			res, err := anomaly.NewFuser(a.cfg.fuserOptions(isolation)...).Detect(cmd.Context(), X)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVar(&records, "records", "", "records file, CSV or .json")
	cmd.Flags().BoolVar(&isolation, "iforest", false, "add isolation forest scores")
	return cmd
}

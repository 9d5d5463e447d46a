package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/ezoic/medscore/anomaly"
	"github.com/ezoic/medscore/artifact"
	"github.com/ezoic/medscore/catalog"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/serving"
)

func newScoreCmd(a *app) *cobra.Command {
	var (
		models    string
		records   string
		strategy  string
		preset    string
		anomalies bool
		isolation bool
	)
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score a batch of records against trained models",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if records == "" {
				return errors.NewConfigurationError("score", "records", "--records is required")
			}
			strat, err := loadStrategy(strategy, preset)
			if err != nil {
				return err
			}
			req := serving.Request{Models: splitList(models)}
			if strat != nil {
				if len(req.Models) == 0 {
					req.Models = strat.SelectedModels
				}
				req.Thresholds = strat.Thresholds
			}
			if len(req.Models) == 0 {
				return errors.NewConfigurationError("score", "models", "no models selected; use --models, --strategy or --preset")
			}
			if req.Records, err = readRecords(records); err != nil {
				return err
			}

			store := artifact.NewFileStore(a.cfg.Artifacts.Root)
			engine := serving.NewEngine(store, artifact.NewCache(store),
				serving.WithIDColumn(a.cfg.Serving.IDColumn),
				serving.WithFuser(anomaly.NewFuser(a.cfg.fuserOptions(isolation)...)),
			)
			if anomalies {
				report, err := engine.Report(cmd.Context(), req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), report)
			}
			batch, err := engine.ScoreBatch(cmd.Context(), req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), batch)
		},
	}
	f := cmd.Flags()
	f.StringVar(&models, "models", "", "comma-separated model names")
	f.StringVar(&records, "records", "", "records file, CSV or .json")
	f.StringVar(&strategy, "strategy", "", "strategy document, JSON or YAML")
	f.StringVar(&preset, "preset", "", "preset strategy id")
	f.BoolVar(&anomalies, "anomalies", false, "merge anomaly detection into the output")
	f.BoolVar(&isolation, "iforest", false, "add isolation forest scores to the anomaly output")
	return cmd
}

// loadStrategy reads a strategy file or expands a preset. Neither yields nil.
func loadStrategy(path, preset string) (*catalog.Strategy, error) {
	switch {
	case path != "" && preset != "":
		return nil, errors.NewConfigurationError("score", "strategy", "--strategy and --preset are exclusive")
	case path != "":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.NewConfigurationError("score", "strategy", err.Error())
		}
		return catalog.ParseStrategy(data)
	case preset != "":
		return catalog.FromPreset(preset)
	}
	return nil, nil
}

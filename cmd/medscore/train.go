package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ezoic/medscore/artifact"
	"github.com/ezoic/medscore/dataset"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/training"
)

type trainFlags struct {
	data      string
	datasetID string
	target    string
	task      string
	family    string
	name      string
	model     string
}

func newTrainCmd(a *app) *cobra.Command {
	fl := &trainFlags{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train a model and publish it to the artifact store",
		Long: `Train either a catalogued model (--model) on a dataset, or an ad hoc
model on --data with an explicit --target and --name.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts := a.cfg.trainerOptions()
			if cmd.Flags().Changed("task") {
				task, err := training.ParseTask(fl.task)
				if err != nil {
					return err
				}
				opts = append(opts, training.WithTask(task))
			}
			if cmd.Flags().Changed("family") {
				opts = append(opts, training.WithEstimatorFamily(fl.family))
			}
			store := artifact.NewFileStore(a.cfg.Artifacts.Root)

			var (
				outcome *training.Outcome
				err     error
			)
			if fl.model != "" {
				outcome, err = a.trainCatalogued(cmd, fl, store, opts)
			} else {
				outcome, err = trainAdHoc(cmd, fl, store, opts)
			}
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), outcome)
		},
	}
	f := cmd.Flags()
	f.StringVar(&fl.data, "data", "", "training CSV file")
	f.StringVar(&fl.datasetID, "dataset", "", "dataset id under the data directory")
	f.StringVar(&fl.target, "target", "", "target column")
	f.StringVar(&fl.task, "task", "classification", "classification or regression")
	f.StringVar(&fl.family, "family", "random_forest", "estimator family")
	f.StringVar(&fl.name, "name", "", "artifact name (default: the target column)")
	f.StringVar(&fl.model, "model", "", "catalogued model name")
	return cmd
}

// trainCatalogued resolves the dataset into a directory source and lets the
// training service pick the target from the catalog.
func (a *app) trainCatalogued(cmd *cobra.Command, fl *trainFlags, store *artifact.FileStore, opts []training.TrainerOption) (*training.Outcome, error) {
	dir, id := a.cfg.Data.Dir, fl.datasetID
	if fl.data != "" {
		dir = filepath.Dir(fl.data)
		id = strings.TrimSuffix(filepath.Base(fl.data), filepath.Ext(fl.data))
	}
	if id == "" {
		return nil, errors.NewConfigurationError("train", "dataset", "one of --data or --dataset is required with --model")
	}
	svc := training.NewService(dataset.NewDirSource(dir), store, opts...)
	return svc.TrainModel(cmd.Context(), id, fl.model)
}

func trainAdHoc(cmd *cobra.Command, fl *trainFlags, store *artifact.FileStore, opts []training.TrainerOption) (*training.Outcome, error) {
	if fl.data == "" {
		return nil, errors.NewConfigurationError("train", "data", "--data is required without --model")
	}
	if fl.target == "" {
		return nil, errors.NewConfigurationError("train", "target", "--target is required without --model")
	}
	name := fl.name
	if name == "" {
		name = fl.target
	}
	file, err := os.Open(fl.data)
	if err != nil {
		return nil, errors.NewConfigurationError("train", "data", err.Error())
	}
	defer file.Close()
	X, err := dataset.ReadCSV(file)
	if err != nil {
		return nil, err
	}
	res, err := training.NewTrainer(opts...).Train(cmd.Context(), X, fl.target)
	if err != nil {
		return nil, err
	}
	path, err := store.Publish(cmd.Context(), name, res)
	if err != nil {
		return nil, err
	}
	return &training.Outcome{
		Model:        name,
		Dataset:      fl.data,
		Target:       fl.target,
		ArtifactPath: path,
		Evaluation:   res.Evaluation,
	}, nil
}

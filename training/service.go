package training

import (
	"context"
	"strings"

	"github.com/ezoic/medscore/catalog"
	"github.com/ezoic/medscore/dataset"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/pkg/log"
)

// Publisher persists a training result as the newest artifact of a model
// and returns where it was written.
type Publisher interface {
	Publish(ctx context.Context, name string, res *Result) (string, error)
}

// Outcome is what TrainModel reports back.
type Outcome struct {
	Model        string      `json:"model"`
	Dataset      string      `json:"dataset"`
	Target       string      `json:"target"`
	ArtifactPath string      `json:"artifact_path"`
	Evaluation   *Evaluation `json:"evaluation"`
}

// Service trains catalogued models on stored datasets.
type Service struct {
	datasets  dataset.Source
	publisher Publisher
	opts      []TrainerOption
	logger    log.Logger
}

// NewService creates a service. opts are applied after the catalog entry's
// task and family, so they can override either.
func NewService(datasets dataset.Source, publisher Publisher, opts ...TrainerOption) *Service {
	return &Service{
		datasets:  datasets,
		publisher: publisher,
		opts:      opts,
		logger:    log.GetLoggerWithName("training.Service"),
	}
}

// TrainModel trains the catalogued model modelName on dataset datasetID and
// publishes the result.
func (s *Service) TrainModel(ctx context.Context, datasetID, modelName string) (*Outcome, error) {
	entry, err := catalog.Lookup(modelName)
	if err != nil {
		return nil, err
	}
	task, err := ParseTask(entry.Task)
	if err != nil {
		return nil, err
	}
	X, err := s.datasets.Load(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	target := ""
	for _, candidate := range entry.Targets() {
		if X.Has(candidate) {
			target = candidate
			break
		}
	}
	if target == "" {
		return nil, errors.NewConfigurationError("Service.TrainModel", "target",
			modelName+": no target column available (tried "+strings.Join(entry.Targets(), ", ")+")")
	}

	opts := append([]TrainerOption{WithTask(task), WithEstimatorFamily(entry.Family)}, s.opts...)
	res, err := NewTrainer(opts...).Train(ctx, X, target)
	if err != nil {
		return nil, errors.Wrapf(err, "train %s", modelName)
	}
	path, err := s.publisher.Publish(ctx, modelName, res)
	if err != nil {
		return nil, errors.Wrapf(err, "publish %s", modelName)
	}
	s.logger.Info("model trained",
		log.ModelNameKey, modelName,
		"dataset.id", datasetID,
		log.ArtifactPathKey, path,
		log.FamilyKey, res.Evaluation.Family,
	)
	return &Outcome{
		Model:        modelName,
		Dataset:      datasetID,
		Target:       target,
		ArtifactPath: path,
		Evaluation:   res.Evaluation,
	}, nil
}

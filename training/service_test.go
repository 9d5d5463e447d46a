package training_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/medscore/dataset"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/training"
)

type memoryPublisher struct {
	published map[string]*training.Result
}

func (p *memoryPublisher) Publish(_ context.Context, name string, res *training.Result) (string, error) {
	if p.published == nil {
		p.published = map[string]*training.Result{}
	}
	p.published[name] = res
	return "mem://" + name, nil
}

func writeCohort(t *testing.T, dir, id string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, id+".csv"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, dataset.WriteCSV(f, cohort(t, 200, 0.15, 31)))
}

func TestServiceTrainModel(t *testing.T) {
	dir := t.TempDir()
	writeCohort(t, dir, "cohort")
	pub := &memoryPublisher{}
	svc := training.NewService(dataset.NewDirSource(dir), pub,
		training.WithEstimatorFamily(training.FamilyLogistic))
	ctx := context.Background()

	out, err := svc.TrainModel(ctx, "cohort", "ReadmissionPredictor")
	require.NoError(t, err)
	assert.Equal(t, dataset.ColumnReadmit, out.Target)
	assert.Equal(t, "mem://ReadmissionPredictor", out.ArtifactPath)
	assert.Contains(t, pub.published, "ReadmissionPredictor")

	// mortality_1y is absent, the classifier falls back to label_readmit
	out, err = svc.TrainModel(ctx, "cohort", "MortalityRiskModel")
	require.NoError(t, err)
	assert.Equal(t, dataset.ColumnReadmit, out.Target)
}

func TestServiceTrainModelErrors(t *testing.T) {
	dir := t.TempDir()
	writeCohort(t, dir, "cohort")
	svc := training.NewService(dataset.NewDirSource(dir), &memoryPublisher{})
	ctx := context.Background()

	_, err := svc.TrainModel(ctx, "cohort", "UnknownModel")
	assert.True(t, errors.IsConfiguration(err))

	_, err = svc.TrainModel(ctx, "cohort", "AnemiaSeverityRegressor")
	assert.True(t, errors.IsConfiguration(err))

	_, err = svc.TrainModel(ctx, "absent", "ReadmissionPredictor")
	assert.True(t, errors.IsConfiguration(err))
}

package dataset_test

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/dataset"
	"github.com/ezoic/medscore/pkg/errors"
)

const cohortCSV = `patient_id,age,sex,glucose,admit_date
P1,54,F,101.5,2024-01-03
P2,NA,M,,2024-02-11
P3,71,,140,
`

func TestReadCSV(t *testing.T) {
	f, err := dataset.ReadCSV(strings.NewReader(cohortCSV))
	require.NoError(t, err)

	assert.Equal(t, 3, f.NRows())
	assert.Equal(t, []string{"patient_id", "age", "sex", "glucose", "admit_date"}, f.Names())
	assert.Equal(t, frame.Numeric, f.Column("age").Kind)
	assert.Equal(t, frame.Categorical, f.Column("sex").Kind)
	assert.Equal(t, frame.Datetime, f.Column("admit_date").Kind)
	assert.True(t, math.IsNaN(f.Floats("age")[1]))
	assert.True(t, math.IsNaN(f.Floats("glucose")[1]))
	assert.True(t, f.Column("sex").IsMissing(2))
	assert.True(t, f.Column("admit_date").IsMissing(2))
}

func TestReadCSVWithoutHeader(t *testing.T) {
	f, err := dataset.ReadCSV(strings.NewReader("1;a\n2;b\n"), dataset.WithHeader(false), dataset.WithComma(';'))
	require.NoError(t, err)
	assert.Equal(t, []string{"col_0", "col_1"}, f.Names())
	assert.Equal(t, []float64{1, 2}, f.Floats("col_0"))
}

func TestReadCSVRejectsLongRows(t *testing.T) {
	_, err := dataset.ReadCSV(strings.NewReader("a,b\n1,2,3\n"))
	assert.Error(t, err)
}

func TestReadCSVEmpty(t *testing.T) {
	f, err := dataset.ReadCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, 0, f.NRows())
}

func TestWriteCSVRoundTrip(t *testing.T) {
	f, err := dataset.ReadCSV(strings.NewReader(cohortCSV))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, dataset.WriteCSV(&buf, f))
	back, err := dataset.ReadCSV(&buf)
	require.NoError(t, err)

	assert.Equal(t, f.Names(), back.Names())
	assert.Equal(t, f.Column("admit_date").Strings, back.Column("admit_date").Strings)
	assert.True(t, math.IsNaN(back.Floats("age")[1]))
}

func TestReadJSONRecords(t *testing.T) {
	payload := `[{"patient_id": "P1", "age": 54, "glucose": 101.5},
	             {"patient_id": "P2", "age": null, "glucose": 180, "smoker": true}]`
	f, err := dataset.ReadJSONRecords(strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, 2, f.NRows())
	assert.Equal(t, []string{"age", "glucose", "patient_id", "smoker"}, f.Names())
	assert.Equal(t, frame.Numeric, f.Column("age").Kind)
	assert.True(t, f.Column("smoker").IsMissing(0))

	wrapped, err := dataset.ReadJSONRecords(strings.NewReader(`{"records": ` + payload + `}`))
	require.NoError(t, err)
	assert.Equal(t, f.Names(), wrapped.Names())

	_, err = dataset.ReadJSONRecords(strings.NewReader(`{"rows": []}`))
	assert.Error(t, err)

	empty, err := dataset.ReadJSONRecords(strings.NewReader(`[]`))
	require.NoError(t, err)
	assert.Equal(t, 0, empty.NRows())
}

func TestDirSource(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cohort.csv"), []byte(cohortCSV), 0o600))
	src := dataset.NewDirSource(dir)

	f, err := src.Load(context.Background(), "cohort")
	require.NoError(t, err)
	assert.Equal(t, 3, f.NRows())

	_, err = src.Load(context.Background(), "missing")
	assert.True(t, errors.IsConfiguration(err))

	_, err = src.Load(context.Background(), "../cohort")
	assert.True(t, errors.IsConfiguration(err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = src.Load(ctx, "cohort")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSynthetic(t *testing.T) {
	f, err := dataset.Synthetic(500, 0.1, 7)
	require.NoError(t, err)

	assert.Equal(t, 500, f.NRows())
	for _, name := range []string{"age", "sex", "glucose", "bmi", "sbp", "hba1c", "creatinine",
		"visits", "smoker", "patient_id", "admit_date", "label_readmit", "los_days", "cost_of_care"} {
		assert.True(t, f.Has(name), name)
	}

	positives := 0.0
	for _, v := range f.Floats(dataset.ColumnReadmit) {
		positives += v
	}
	assert.Equal(t, 50.0, positives)
	assert.Equal(t, frame.Datetime, f.Column(dataset.ColumnAdmitDate).Kind)
	assert.Equal(t, "P000001", f.Column(dataset.ColumnPatientID).Strings[0])

	again, err := dataset.Synthetic(500, 0.1, 7)
	require.NoError(t, err)
	assert.Equal(t, f.Floats("glucose"), again.Floats("glucose"))
	assert.Equal(t, f.Floats(dataset.ColumnCost), again.Floats(dataset.ColumnCost))
}

func TestSyntheticValidation(t *testing.T) {
	_, err := dataset.Synthetic(1, 0.1, 1)
	assert.Error(t, err)
	_, err = dataset.Synthetic(100, 0, 1)
	assert.Error(t, err)
	_, err = dataset.Synthetic(100, 1, 1)
	assert.Error(t, err)
}

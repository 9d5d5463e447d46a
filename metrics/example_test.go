package metrics_test

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/metrics"
)

// ExampleAUC ranks readmission risk scores against observed outcomes.
func ExampleAUC() {
	readmitted := mat.NewVecDense(4, []float64{0, 0, 1, 1})
	risk := mat.NewVecDense(4, []float64{0.1, 0.4, 0.35, 0.8})

	auc, err := metrics.AUC(readmitted, risk)
	if err != nil {
		slog.Error("AUC failed", "error", err)
		return
	}
	fmt.Printf("AUC: %.2f\n", auc)

	// Output: AUC: 0.75
}

// ExampleBestF1Threshold tunes the decision threshold of a classifier on a
// hold-out set.
func ExampleBestF1Threshold() {
	outcome := mat.NewVecDense(8, []float64{0, 0, 0, 1, 1, 0, 1, 0})
	scores := mat.NewVecDense(8, []float64{0.04, 0.22, 0.32, 0.58, 0.72, 0.47, 0.38, 0.12})

	threshold, f1, err := metrics.BestF1Threshold(outcome, scores)
	if err != nil {
		slog.Error("threshold search failed", "error", err)
		return
	}
	fmt.Printf("threshold=%.2f f1=%.3f\n", threshold, f1)

	// Output: threshold=0.35 f1=0.857
}

// ExampleMAE scores a length-of-stay regressor.
func ExampleMAE() {
	losDays := mat.NewVecDense(4, []float64{3, 5, 2, 8})
	predicted := mat.NewVecDense(4, []float64{4, 5, 3, 6})

	mae, err := metrics.MAE(losDays, predicted)
	if err != nil {
		slog.Error("MAE failed", "error", err)
		return
	}
	fmt.Printf("MAE: %.2f days\n", mae)

	// Output: MAE: 1.00 days
}

// ExampleR2Score reports the explained share of variance.
func ExampleR2Score() {
	yTrue := mat.NewVecDense(5, []float64{1, 2, 3, 4, 5})
	yPred := mat.NewVecDense(5, []float64{1.1, 1.9, 3.2, 3.8, 5.0})

	r2, err := metrics.R2Score(yTrue, yPred)
	if err != nil {
		slog.Error("R2 failed", "error", err)
		return
	}
	fmt.Printf("R²: %.2f\n", r2)

	// Output: R²: 0.99
}

// ExamplePointBiserial measures how strongly a numeric column tracks a
// binary label, as the leakage guard does.
func ExamplePointBiserial() {
	r, ok := metrics.PointBiserial([]float64{1, 2, 3, 4}, []float64{0, 0, 1, 1})
	fmt.Printf("r=%.3f ok=%v\n", r, ok)

	// Output: r=0.894 ok=true
}

// ExampleMutualInformation compares two coded categorical columns.
func ExampleMutualInformation() {
	mi := metrics.MutualInformation([]int{0, 0, 1, 1}, []int{0, 0, 1, 1})
	fmt.Printf("MI: %.3f nats\n", mi)

	// Output: MI: 0.693 nats
}

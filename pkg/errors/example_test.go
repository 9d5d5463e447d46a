package errors_test

import (
	"errors"
	"fmt"

	medErrors "github.com/ezoic/medscore/pkg/errors"
)

// Example shows a configuration error keeping its type through wrapping.
func Example() {
	err := medErrors.NewConfigurationError("Trainer.Train", "target", `column "label_readmit" not found`)
	wrapped := fmt.Errorf("train ReadmissionPredictor: %w", err)

	fmt.Println(wrapped)
	fmt.Println(medErrors.IsConfiguration(wrapped))

	// Output: train ReadmissionPredictor: medscore: Trainer.Train: invalid configuration for "target": column "label_readmit" not found
	// true
}

// Example_artifactSearch lists where the store looked for a missing model.
func Example_artifactSearch() {
	err := fmt.Errorf("score batch: %w", medErrors.NewArtifactNotFoundError(
		"Stroke Risk", "models/Stroke Risk", "models/Stroke_Risk", "models/*Stroke_Risk*"))

	var notFound *medErrors.ArtifactNotFoundError
	if errors.As(err, &notFound) {
		for _, path := range notFound.Searched {
			fmt.Println(path)
		}
	}

	// Output: models/Stroke Risk
	// models/Stroke_Risk
	// models/*Stroke_Risk*
}

// Example_dimensionMismatch shows the error returned when scoring input has
// the wrong number of encoded features.
func Example_dimensionMismatch() {
	err := fmt.Errorf("predict: %w", medErrors.NewDimensionError("LogisticRegression.PredictProba", 12, 10, 1))

	var dimErr *medErrors.DimensionError
	if errors.As(err, &dimErr) {
		fmt.Printf("expected %d features, got %d\n", dimErr.Expected, dimErr.Got)
	}

	// Output: expected 12 features, got 10
}

// Example_searchFallback shows how the trainer recognises a failed search.
func Example_searchFallback() {
	cause := errors.New("n_splits=3 cannot be greater than the number of members in each class")
	err := medErrors.NewSearchFailure("random_forest", cause)

	if medErrors.IsSearchFailure(err) {
		fmt.Println("falling back to manual sweep")
	}
	fmt.Println(errors.Is(err, cause))

	// Output: falling back to manual sweep
	// true
}

// Example_errorLogging demonstrates how estimator errors surface in training logs
func Example_errorLogging() {
	baseErr := medErrors.NewModelError("RandomForestClassifier.Fit", "empty bootstrap sample",
		medErrors.ErrEmptyData)

	opErr := fmt.Errorf("search candidate 2: %w", baseErr)

	fmt.Printf("Error occurred during hyperparameter search: %v\n", opErr)
	fmt.Println(errors.Is(opErr, medErrors.ErrEmptyData))

	// Output: Error occurred during hyperparameter search: search candidate 2: medscore: RandomForestClassifier.Fit: empty bootstrap sample: empty data
	// true
}

// Example_taxonomy shows how per-model failures are classified for batch results
func Example_taxonomy() {
	missing := medErrors.NewArtifactNotFoundError("SepsisEarlyWarning", "models/SepsisEarlyWarning")
	wrapped := fmt.Errorf("score batch: %w", missing)

	fmt.Println(medErrors.Kind(wrapped))
	fmt.Println(medErrors.Kind(medErrors.NewConfigurationError("Trainer.Train", "target", "column not found")))
	fmt.Println(medErrors.Kind(errors.New("disk full")))

	// Output: ArtifactNotFoundError
	// ConfigurationError
	// InternalError
}

package model_test

import (
	"fmt"

	"github.com/ezoic/medscore/core/model"
)

// ExampleBaseEstimator demonstrates fitted-state tracking on an embedded BaseEstimator
func ExampleBaseEstimator() {
	type Clipper struct {
		model.BaseEstimator
		Lower, Upper []float64
	}

	c := &Clipper{}
	fmt.Printf("Initially fitted: %t\n", c.IsFitted())

	c.Lower, c.Upper = []float64{0}, []float64{1}
	c.SetFitted()
	fmt.Printf("After SetFitted: %t\n", c.IsFitted())

	c.Reset()
	fmt.Printf("After Reset: %t\n", c.IsFitted())

	// Output: Initially fitted: false
	// After SetFitted: true
	// After Reset: false
}

// ExampleStateManager shows the composition pattern used by estimators
func ExampleStateManager() {
	state := model.NewStateManager()
	state.SetDimensions(12, 800)
	state.SetFitted()

	features, samples := state.GetDimensions()
	fmt.Println(state.IsFitted(), features, samples)

	// Output: true 12 800
}

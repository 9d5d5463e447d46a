package model_selection

import (
	"sort"

	"github.com/ezoic/medscore/pkg/errors"
)

// Grid maps a parameter name to its candidate values. Pipeline parameters use
// the "<step>__<param>" form.
type Grid map[string][]interface{}

// Keys returns the parameter names in sorted order.
func (g Grid) Keys() []string {
	keys := make([]string, 0, len(g))
	for k := range g {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Size returns the number of combinations in the grid. An empty grid has one,
// the empty combination.
func (g Grid) Size() int {
	size := 1
	for _, values := range g {
		size *= len(values)
	}
	return size
}

// Validate rejects parameters without candidate values.
func (g Grid) Validate() error {
	for _, k := range g.Keys() {
		if len(g[k]) == 0 {
			return errors.NewValidationError(k, "grid parameter has no candidate values", g[k])
		}
	}
	return nil
}

// Combination returns the i-th combination, counting with the last sorted key
// varying fastest.
func (g Grid) Combination(i int) map[string]interface{} {
	keys := g.Keys()
	params := make(map[string]interface{}, len(keys))
	for k := len(keys) - 1; k >= 0; k-- {
		values := g[keys[k]]
		params[keys[k]] = values[i%len(values)]
		i /= len(values)
	}
	return params
}

// Enumerate returns every combination in Combination order.
func (g Grid) Enumerate() []map[string]interface{} {
	out := make([]map[string]interface{}, g.Size())
	for i := range out {
		out[i] = g.Combination(i)
	}
	return out
}

// ParameterSampler draws NIter distinct combinations from a grid. When the
// grid has no more than NIter combinations, or NIter is not positive, every
// combination is returned in grid order.
type ParameterSampler struct {
	Grid        Grid
	NIter       int
	RandomState int64
}

// NewParameterSampler creates a sampler
func NewParameterSampler(grid Grid, nIter int, randomState int64) *ParameterSampler {
	return &ParameterSampler{Grid: grid, NIter: nIter, RandomState: randomState}
}

// Candidates returns the sampled combinations.
func (ps *ParameterSampler) Candidates() ([]map[string]interface{}, error) {
	if err := ps.Grid.Validate(); err != nil {
		return nil, err
	}
	size := ps.Grid.Size()
	if ps.NIter <= 0 || ps.NIter >= size {
		return ps.Grid.Enumerate(), nil
	}
	perm := newRand(ps.RandomState).Perm(size)
	out := make([]map[string]interface{}, ps.NIter)
	for i := range out {
		out[i] = ps.Grid.Combination(perm[i])
	}
	return out, nil
}

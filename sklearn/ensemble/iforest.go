package ensemble

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/core/parallel"
	"github.com/ezoic/medscore/pkg/errors"
	"github.com/ezoic/medscore/sklearn/tree"
)

// IsolationNode is a node of an isolation tree. Leaves have no children.
type IsolationNode struct {
	Feature int
	Split   float64
	Left    *IsolationNode
	Right   *IsolationNode
	Size    int
}

// IsolationForest scores rows by how quickly random axis-aligned splits isolate
// them. Scores follow 2^(-E[h(x)]/c(psi)); higher is more anomalous.
type IsolationForest struct {
	model.BaseEstimator

	NTrees        int
	SampleSize    int
	Contamination float64
	RandomState   int64

	Trees         []*IsolationNode
	NFeatures     int
	AvgPathLength float64
	// Threshold is the (1 - Contamination) quantile of the training scores.
	Threshold float64
}

// IsolationOption configures an IsolationForest.
type IsolationOption func(*IsolationForest)

// WithTrees sets the number of isolation trees.
func WithTrees(n int) IsolationOption {
	return func(f *IsolationForest) { f.NTrees = n }
}

// WithSampleSize sets the subsample size for each tree.
func WithSampleSize(n int) IsolationOption {
	return func(f *IsolationForest) { f.SampleSize = n }
}

// WithContamination sets the expected proportion of anomalies.
func WithContamination(c float64) IsolationOption {
	return func(f *IsolationForest) { f.Contamination = c }
}

// WithSeed sets the random seed for reproducibility.
func WithSeed(seed int64) IsolationOption {
	return func(f *IsolationForest) { f.RandomState = seed }
}

// NewIsolationForest creates a forest of 100 trees over subsamples of 256 rows.
func NewIsolationForest(opts ...IsolationOption) *IsolationForest {
	f := &IsolationForest{
		NTrees:        100,
		SampleSize:    256,
		Contamination: 0.1,
		RandomState:   42,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fit grows the isolation trees and sets Threshold from Contamination.
func (f *IsolationForest) Fit(X mat.Matrix) (err error) {
	defer errors.Recover(&err, "IsolationForest.Fit")
	n, nFeatures := X.Dims()
	if n == 0 || nFeatures == 0 {
		return errors.NewModelError("IsolationForest.Fit", "empty data", errors.ErrEmptyData)
	}
	if f.NTrees < 1 {
		return errors.NewValidationError("n_trees", "must be at least 1", f.NTrees)
	}
	if f.Contamination < 0 || f.Contamination >= 0.5 {
		return errors.NewValidationError("contamination", "must be in [0, 0.5)", f.Contamination)
	}

	Xd := mat.DenseCopyOf(X)
	sampleSize := min(f.SampleSize, n)
	maxDepth := int(math.Ceil(math.Log2(float64(max(sampleSize, 2)))))

	rng := rand.New(rand.NewSource(tree.NewSeed(f.RandomState)))
	seeds := make([]int64, f.NTrees)
	for i := range seeds {
		seeds[i] = rng.Int63()
	}

	trees := make([]*IsolationNode, f.NTrees)
	parallel.ForEach(f.NTrees, func(i int) error {
		treeRng := rand.New(rand.NewSource(seeds[i]))
		rows := treeRng.Perm(n)[:sampleSize]
		trees[i] = buildIsolationNode(Xd, rows, 0, maxDepth, treeRng)
		return nil
	})

	f.Trees = trees
	f.NFeatures = nFeatures
	f.AvgPathLength = averagePathLength(float64(sampleSize))
	f.SetFitted()

	scores, err := f.Score(Xd)
	if err != nil {
		return err
	}
	sorted := append([]float64(nil), scores...)
	sort.Float64s(sorted)
	f.Threshold = stat.Quantile(1-f.Contamination, stat.Empirical, sorted, nil)
	return nil
}

func buildIsolationNode(X *mat.Dense, rows []int, depth, maxDepth int, rng *rand.Rand) *IsolationNode {
	n := len(rows)
	if depth >= maxDepth || n <= 1 {
		return &IsolationNode{Size: n}
	}
	_, nFeatures := X.Dims()
	feature := rng.Intn(nFeatures)

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range rows {
		v := X.At(r, feature)
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if lo == hi {
		return &IsolationNode{Size: n}
	}

	split := lo + rng.Float64()*(hi-lo)
	var left, right []int
	for _, r := range rows {
		if X.At(r, feature) < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return &IsolationNode{
		Feature: feature,
		Split:   split,
		Left:    buildIsolationNode(X, left, depth+1, maxDepth, rng),
		Right:   buildIsolationNode(X, right, depth+1, maxDepth, rng),
		Size:    n,
	}
}

// pathLength is the depth at which row i of X lands, plus the expected
// remaining depth of the leaf's unresolved samples.
func pathLength(X mat.Matrix, i int, node *IsolationNode) float64 {
	depth := 0.0
	for node.Left != nil {
		if X.At(i, node.Feature) < node.Split {
			node = node.Left
		} else {
			node = node.Right
		}
		depth++
	}
	return depth + averagePathLength(float64(node.Size))
}

// averagePathLength is c(n), the average path length of an unsuccessful BST
// search over n points.
func averagePathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	return 2*(math.Log(n-1)+0.5772156649) - 2*(n-1)/n
}

// Score returns the anomaly score of every row, in [0, 1].
func (f *IsolationForest) Score(X mat.Matrix) (_ []float64, err error) {
	defer errors.Recover(&err, "IsolationForest.Score")
	if !f.IsFitted() {
		return nil, errors.NewNotFittedError("IsolationForest", "Score")
	}
	r, c := X.Dims()
	if c != f.NFeatures {
		return nil, errors.NewDimensionError("IsolationForest.Score", f.NFeatures, c, 1)
	}
	scores := make([]float64, r)
	parallel.ParallelizeWithThreshold(r, 512, func(start, end int) {
		for i := start; i < end; i++ {
			total := 0.0
			for _, t := range f.Trees {
				total += pathLength(X, i, t)
			}
			avg := total / float64(len(f.Trees))
			if f.AvgPathLength == 0 {
				scores[i] = 0.5
				continue
			}
			scores[i] = math.Pow(2, -avg/f.AvgPathLength)
		}
	})
	return scores, nil
}

// Predict flags rows whose score reaches Threshold as 1, others as 0.
func (f *IsolationForest) Predict(X mat.Matrix) (_ mat.Matrix, err error) {
	defer errors.Recover(&err, "IsolationForest.Predict")
	scores, err := f.Score(X)
	if err != nil {
		return nil, err
	}
	out := mat.NewVecDense(len(scores), nil)
	for i, s := range scores {
		if s >= f.Threshold {
			out.SetVec(i, 1)
		}
	}
	return out, nil
}

func (f *IsolationForest) String() string {
	return fmt.Sprintf("IsolationForest(n_trees=%d, sample_size=%d, contamination=%g)",
		f.NTrees, f.SampleSize, f.Contamination)
}

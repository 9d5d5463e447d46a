// Package tree implements CART decision trees for classification and regression.
//
// Splits are found with a sorted sweep: for every candidate feature the node's rows
// are sorted once and left/right statistics are updated incrementally, so a node
// costs O(features * n log n). Learned trees are plain exported structs and
// survive gob encoding.
package tree

import (
	crand "crypto/rand"
	"math"
	"math/big"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/ezoic/medscore/core/model"
	"github.com/ezoic/medscore/pkg/errors"
)

func init() {
	model.Register(&DecisionTreeClassifier{}, &DecisionTreeRegressor{})
}

// TreeNode represents a node in the decision tree
type TreeNode struct {
	IsLeaf    bool      // Whether this is a leaf node
	Feature   int       // Feature index for split (internal nodes)
	Threshold float64   // Threshold value for split (internal nodes)
	Left      *TreeNode // Left child (values <= threshold)
	Right     *TreeNode // Right child (values > threshold)
	Value     []float64 // Class fractions (classification) or [mean] (regression)
	Impurity  float64   // Node impurity
	NSamples  int       // Number of samples at this node
	Depth     int       // Depth of this node in the tree
}

// leaf returns the leaf reached by row i of X.
func (n *TreeNode) leaf(X mat.Matrix, i int) *TreeNode {
	node := n
	for !node.IsLeaf {
		if X.At(i, node.Feature) <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node
}

// MaxDepth returns the depth of the deepest leaf below n.
func (n *TreeNode) MaxDepth() int {
	if n == nil {
		return 0
	}
	if n.IsLeaf {
		return n.Depth
	}
	return max(n.Left.MaxDepth(), n.Right.MaxDepth())
}

// NLeaves returns the number of leaves below n.
func (n *TreeNode) NLeaves() int {
	if n == nil {
		return 0
	}
	if n.IsLeaf {
		return 1
	}
	return n.Left.NLeaves() + n.Right.NLeaves()
}

// Params holds the hyperparameters shared by both tree types.
type Params struct {
	Criterion       string // "gini" or "entropy" for classifiers, "squared_error" for regressors
	MaxDepth        int    // 0 = unlimited
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int   // features tried per split, 0 = all
	RandomState     int64 // seed for feature subsampling, negative = random
}

// Option is a functional option for both tree types.
type Option func(*Params)

// WithCriterion sets the splitting criterion
func WithCriterion(criterion string) Option {
	return func(p *Params) {
		p.Criterion = criterion
	}
}

// WithMaxDepth sets the maximum tree depth
func WithMaxDepth(depth int) Option {
	return func(p *Params) {
		p.MaxDepth = depth
	}
}

// WithMinSamplesSplit sets minimum samples to split
func WithMinSamplesSplit(n int) Option {
	return func(p *Params) {
		p.MinSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets minimum samples in leaf
func WithMinSamplesLeaf(n int) Option {
	return func(p *Params) {
		p.MinSamplesLeaf = n
	}
}

// WithMaxFeatures sets the number of features tried at each split
func WithMaxFeatures(n int) Option {
	return func(p *Params) {
		p.MaxFeatures = n
	}
}

// WithRandomState sets the random seed
func WithRandomState(seed int64) Option {
	return func(p *Params) {
		p.RandomState = seed
	}
}

func newParams(criterion string, opts []Option) Params {
	p := Params{
		Criterion:       criterion,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomState:     -1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// GetParams returns the model hyperparameters
func (p *Params) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         p.Criterion,
		"max_depth":         p.MaxDepth,
		"min_samples_split": p.MinSamplesSplit,
		"min_samples_leaf":  p.MinSamplesLeaf,
		"max_features":      p.MaxFeatures,
		"random_state":      p.RandomState,
	}
}

// SetParams sets the model hyperparameters. A nil max_depth means unlimited.
func (p *Params) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var err error
		switch key {
		case "criterion":
			p.Criterion, err = model.StringParam(key, value)
		case "max_depth":
			p.MaxDepth, err = model.IntParam(key, value)
		case "min_samples_split":
			p.MinSamplesSplit, err = model.IntParam(key, value)
		case "min_samples_leaf":
			p.MinSamplesLeaf, err = model.IntParam(key, value)
		case "max_features":
			p.MaxFeatures, err = model.IntParam(key, value)
		case "random_state":
			var seed int
			seed, err = model.IntParam(key, value)
			p.RandomState = int64(seed)
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
		if err != nil {
			return errors.NewValidationError(key, err.Error(), value)
		}
	}
	return nil
}

// NewSeed returns state when it is non-negative and a random seed otherwise.
func NewSeed(state int64) int64 {
	if state >= 0 {
		return state
	}
	seedBig, err := crand.Int(crand.Reader, big.NewInt(math.MaxInt64))
	if err != nil {
		return 0
	}
	return seedBig.Int64()
}

// builder grows one tree. For classification classIdx holds each row's class
// index; for regression y holds the target.
type builder struct {
	X           *mat.Dense
	y           []float64
	classIdx    []int
	nClasses    int
	params      Params
	rng         *rand.Rand
	importances []float64
}

func newBuilder(X *mat.Dense, params Params) *builder {
	_, c := X.Dims()
	return &builder{
		X:           X,
		params:      params,
		rng:         rand.New(rand.NewSource(NewSeed(params.RandomState))),
		importances: make([]float64, c),
	}
}

func (b *builder) classification() bool { return b.classIdx != nil }

// stats accumulates sufficient statistics for a set of rows.
type stats struct {
	counts []float64 // per class
	sum    float64
	sumSq  float64
	n      float64
}

func (b *builder) newStats() stats {
	if b.classification() {
		return stats{counts: make([]float64, b.nClasses)}
	}
	return stats{}
}

func (b *builder) add(s *stats, row int) {
	s.n++
	if b.classification() {
		s.counts[b.classIdx[row]]++
		return
	}
	v := b.y[row]
	s.sum += v
	s.sumSq += v * v
}

func (b *builder) impurity(s stats) float64 {
	if s.n <= 0 {
		return 0
	}
	if !b.classification() {
		mean := s.sum / s.n
		return math.Max(0, s.sumSq/s.n-mean*mean)
	}
	impurity := 0.0
	if b.params.Criterion == "entropy" {
		for _, c := range s.counts {
			if c > 0 {
				p := c / s.n
				impurity -= p * math.Log2(p)
			}
		}
		return impurity
	}
	sumSquared := 0.0
	for _, c := range s.counts {
		p := c / s.n
		sumSquared += p * p
	}
	return 1.0 - sumSquared
}

func (b *builder) value(s stats) []float64 {
	if !b.classification() {
		return []float64{s.sum / s.n}
	}
	out := make([]float64, len(s.counts))
	for k, c := range s.counts {
		out[k] = c / s.n
	}
	return out
}

func (b *builder) shouldStop(n int, impurity float64, depth int) bool {
	p := b.params
	return (p.MaxDepth > 0 && depth >= p.MaxDepth) ||
		n < p.MinSamplesSplit ||
		n < 2*p.MinSamplesLeaf ||
		impurity <= 1e-12
}

// build recursively grows the subtree over rows. rows may contain duplicates
// (bootstrap samples).
func (b *builder) build(rows []int, depth int) *TreeNode {
	s := b.newStats()
	for _, r := range rows {
		b.add(&s, r)
	}
	impurity := b.impurity(s)
	node := &TreeNode{
		Value:    b.value(s),
		Impurity: impurity,
		NSamples: len(rows),
		Depth:    depth,
	}
	if b.shouldStop(len(rows), impurity, depth) {
		node.IsLeaf = true
		return node
	}

	feature, threshold, decrease := b.findBestSplit(rows, s, impurity)
	if feature < 0 {
		node.IsLeaf = true
		return node
	}

	var left, right []int
	for _, r := range rows {
		if b.X.At(r, feature) <= threshold {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}

	node.Feature = feature
	node.Threshold = threshold
	b.importances[feature] += decrease * float64(len(rows))
	node.Left = b.build(left, depth+1)
	node.Right = b.build(right, depth+1)
	return node
}

func (b *builder) candidateFeatures() []int {
	_, c := b.X.Dims()
	if b.params.MaxFeatures > 0 && b.params.MaxFeatures < c {
		return b.rng.Perm(c)[:b.params.MaxFeatures]
	}
	features := make([]int, c)
	for j := range features {
		features[j] = j
	}
	return features
}

// findBestSplit sweeps every candidate feature in sorted order and returns the
// split with the largest impurity decrease, or feature -1 when none helps.
func (b *builder) findBestSplit(rows []int, total stats, parentImpurity float64) (int, float64, float64) {
	n := len(rows)
	minLeaf := b.params.MinSamplesLeaf
	bestFeature, bestThreshold, bestDecrease := -1, 0.0, 0.0

	sorted := make([]int, n)
	values := make([]float64, n)
	for _, feature := range b.candidateFeatures() {
		copy(sorted, rows)
		sort.Slice(sorted, func(i, j int) bool {
			return b.X.At(sorted[i], feature) < b.X.At(sorted[j], feature)
		})
		for i, r := range sorted {
			values[i] = b.X.At(r, feature)
		}

		left := b.newStats()
		for i := 0; i < n-1; i++ {
			b.add(&left, sorted[i])
			if values[i] == values[i+1] {
				continue
			}
			nLeft := i + 1
			nRight := n - nLeft
			if nLeft < minLeaf || nRight < minLeaf {
				continue
			}

			right := b.subtract(total, left)
			weighted := (float64(nLeft)*b.impurity(left) + float64(nRight)*b.impurity(right)) / float64(n)
			if decrease := parentImpurity - weighted; decrease > bestDecrease+1e-15 {
				bestFeature = feature
				bestThreshold = (values[i] + values[i+1]) / 2.0
				bestDecrease = decrease
			}
		}
	}
	return bestFeature, bestThreshold, bestDecrease
}

func (b *builder) subtract(total, left stats) stats {
	out := stats{n: total.n - left.n, sum: total.sum - left.sum, sumSq: total.sumSq - left.sumSq}
	if total.counts != nil {
		out.counts = make([]float64, len(total.counts))
		for k := range total.counts {
			out.counts[k] = total.counts[k] - left.counts[k]
		}
	}
	return out
}

// normalizedImportances scales importances to sum to one.
func (b *builder) normalizedImportances() []float64 {
	sum := 0.0
	for _, imp := range b.importances {
		sum += imp
	}
	if sum > 0 {
		for i := range b.importances {
			b.importances[i] /= sum
		}
	}
	return b.importances
}

// checkXY validates a design matrix and column-vector target and returns their
// dense / slice forms.
func checkXY(op string, X, y mat.Matrix) (*mat.Dense, []float64, error) {
	nSamples, nFeatures := X.Dims()
	yRows, yCols := y.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return nil, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if nSamples != yRows {
		return nil, nil, errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return nil, nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	target := make([]float64, yRows)
	for i := range target {
		target[i] = y.At(i, 0)
		if math.IsNaN(target[i]) {
			return nil, nil, errors.NewValueError(op, "target contains NaN")
		}
	}
	return mat.DenseCopyOf(X), target, nil
}

func allRows(n int) []int {
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return rows
}

// Package model_selection splits data for validation, samples hyperparameter
// candidates and runs randomized cross-validated search over frame pipelines.
package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/ezoic/medscore/pkg/errors"
)

// Fold holds the row indices of one train/test split, each in ascending order.
type Fold struct {
	Train []int
	Test  []int
}

// Splitter produces cross-validation folds for n rows with labels y.
type Splitter interface {
	Split(n int, y []float64) ([]Fold, error)
	NSplits() int
}

func newRand(seed int64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), uint64(seed)))
}

func indices(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// classMembers groups row indices by label, classes in ascending order.
func classMembers(y []float64) ([]float64, map[float64][]int) {
	members := make(map[float64][]int)
	for i, v := range y {
		members[v] = append(members[v], i)
	}
	classes := make([]float64, 0, len(members))
	for c := range members {
		classes = append(classes, c)
	}
	sort.Float64s(classes)
	return classes, members
}

// TrainTestSplit shuffles n rows with the given seed and holds out
// ceil(testSize·n) of them. When stratify is non-nil every class keeps its
// proportion in both parts, which requires at least two members per class.
func TrainTestSplit(n int, testSize float64, seed int64, stratify []float64) (train, test []int, err error) {
	if testSize <= 0 || testSize >= 1 {
		return nil, nil, errors.NewValidationError("test_size", "must be in (0, 1)", testSize)
	}
	nTest := int(math.Ceil(testSize * float64(n)))
	if nTest < 1 || n-nTest < 1 {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("test_size=%g leaves an empty part for %d rows", testSize, n))
	}
	rng := newRand(seed)

	if stratify == nil {
		perm := indices(n)
		rng.Shuffle(n, func(a, b int) { perm[a], perm[b] = perm[b], perm[a] })
		test, train = perm[:nTest], perm[nTest:]
		sort.Ints(test)
		sort.Ints(train)
		return train, test, nil
	}

	if len(stratify) != n {
		return nil, nil, errors.NewDimensionError("TrainTestSplit", n, len(stratify), 0)
	}
	classes, members := classMembers(stratify)
	for _, c := range classes {
		if len(members[c]) < 2 {
			return nil, nil, errors.NewValueError("TrainTestSplit",
				fmt.Sprintf("class %v has a single member; stratification needs at least 2", c))
		}
	}
	if nTest < len(classes) || n-nTest < len(classes) {
		return nil, nil, errors.NewValueError("TrainTestSplit",
			fmt.Sprintf("test_size=%g cannot hold all %d classes in both parts", testSize, len(classes)))
	}

	// Largest-remainder allocation of nTest across classes.
	quota := make([]int, len(classes))
	type remainder struct {
		class int
		frac  float64
	}
	rems := make([]remainder, len(classes))
	allocated := 0
	for k, c := range classes {
		exact := float64(nTest) * float64(len(members[c])) / float64(n)
		quota[k] = int(math.Floor(exact))
		rems[k] = remainder{k, exact - float64(quota[k])}
		allocated += quota[k]
	}
	sort.SliceStable(rems, func(a, b int) bool { return rems[a].frac > rems[b].frac })
	for i := 0; allocated < nTest; i++ {
		quota[rems[i%len(rems)].class]++
		allocated++
	}

	for k, c := range classes {
		rows := append([]int(nil), members[c]...)
		rng.Shuffle(len(rows), func(a, b int) { rows[a], rows[b] = rows[b], rows[a] })
		q := min(max(quota[k], 1), len(rows)-1)
		test = append(test, rows[:q]...)
		train = append(train, rows[q:]...)
	}
	sort.Ints(test)
	sort.Ints(train)
	return train, test, nil
}

// KFold splits rows into NSplits consecutive folds, optionally shuffled first.
type KFold struct {
	Splits      int
	Shuffle     bool
	RandomState int64
}

// NewKFold creates a k-fold splitter
func NewKFold(nSplits int, shuffle bool, randomState int64) *KFold {
	return &KFold{Splits: nSplits, Shuffle: shuffle, RandomState: randomState}
}

// NSplits returns the number of folds
func (kf *KFold) NSplits() int { return kf.Splits }

// Split assigns the first n%k folds one extra row, as scikit-learn does.
func (kf *KFold) Split(n int, _ []float64) ([]Fold, error) {
	if kf.Splits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", kf.Splits)
	}
	if kf.Splits > n {
		return nil, errors.NewValueError("KFold.Split",
			fmt.Sprintf("n_splits=%d is greater than the number of rows %d", kf.Splits, n))
	}
	order := indices(n)
	if kf.Shuffle {
		rng := newRand(kf.RandomState)
		rng.Shuffle(n, func(a, b int) { order[a], order[b] = order[b], order[a] })
	}
	assign := make([]int, n)
	start := 0
	for f := 0; f < kf.Splits; f++ {
		size := n / kf.Splits
		if f < n%kf.Splits {
			size++
		}
		for _, row := range order[start : start+size] {
			assign[row] = f
		}
		start += size
	}
	return foldsFromAssignment(assign, kf.Splits), nil
}

// StratifiedKFold deals every class round-robin over the folds so each fold
// keeps the class proportions.
type StratifiedKFold struct {
	Splits      int
	Shuffle     bool
	RandomState int64
}

// NewStratifiedKFold creates a stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, randomState int64) *StratifiedKFold {
	return &StratifiedKFold{Splits: nSplits, Shuffle: shuffle, RandomState: randomState}
}

// NSplits returns the number of folds
func (skf *StratifiedKFold) NSplits() int { return skf.Splits }

// Split fails when the least populated class has fewer members than folds.
func (skf *StratifiedKFold) Split(n int, y []float64) ([]Fold, error) {
	if skf.Splits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", skf.Splits)
	}
	if len(y) != n {
		return nil, errors.NewDimensionError("StratifiedKFold.Split", n, len(y), 0)
	}
	classes, members := classMembers(y)
	for _, c := range classes {
		if len(members[c]) < skf.Splits {
			return nil, errors.NewValueError("StratifiedKFold.Split",
				fmt.Sprintf("n_splits=%d cannot be greater than the number of members in each class (class %v has %d)",
					skf.Splits, c, len(members[c])))
		}
	}
	rng := newRand(skf.RandomState)
	assign := make([]int, n)
	next := 0
	for _, c := range classes {
		rows := members[c]
		if skf.Shuffle {
			rows = append([]int(nil), rows...)
			rng.Shuffle(len(rows), func(a, b int) { rows[a], rows[b] = rows[b], rows[a] })
		}
		for _, row := range rows {
			assign[row] = next % skf.Splits
			next++
		}
	}
	return foldsFromAssignment(assign, skf.Splits), nil
}

func foldsFromAssignment(assign []int, k int) []Fold {
	folds := make([]Fold, k)
	for row, f := range assign {
		for g := range folds {
			if g == f {
				folds[g].Test = append(folds[g].Test, row)
			} else {
				folds[g].Train = append(folds[g].Train, row)
			}
		}
	}
	return folds
}

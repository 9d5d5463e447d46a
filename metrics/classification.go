package metrics

import (
	"fmt"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	medErrors "github.com/ezoic/medscore/pkg/errors"
)

func checkBinary(op string, yTrue *mat.VecDense) (pos, neg int, err error) {
	for i := 0; i < yTrue.Len(); i++ {
		switch v := yTrue.AtVec(i); v {
		case 1:
			pos++
		case 0:
			neg++
		default:
			return 0, 0, medErrors.NewValidationError(
				"yTrue",
				fmt.Sprintf("%s: must contain only binary values (0 or 1), found %f at index %d", op, v, i),
				v,
			)
		}
	}
	return pos, neg, nil
}

// AUC calculates the area under the ROC curve for binary labels.
//
// Tied scores are processed as one group. If yTrue contains a single class the
// AUC is undefined; 0.5 is returned together with an UndefinedMetricWarning.
//
// Example:
//
//	yTrue := mat.NewVecDense(4, []float64{0, 0, 1, 1})
//	yPred := mat.NewVecDense(4, []float64{0.1, 0.4, 0.35, 0.8})
//	auc, _ := metrics.AUC(yTrue, yPred) // 0.75
func AUC(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AUC", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	totalPos, totalNeg, err := checkBinary("AUC", yTrue)
	if err != nil {
		return 0, err
	}
	if totalPos == 0 || totalNeg == 0 {
		medErrors.Warn(medErrors.NewUndefinedMetricWarning("roc_auc", "only one class present in yTrue", 0.5))
		return 0.5, nil
	}

	type pair struct {
		score float64
		label float64
	}
	pairs := make([]pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = pair{score: yPred.AtVec(i), label: yTrue.AtVec(i)}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].score > pairs[j].score
	})

	// ROC points at every distinct threshold, integrated with the trapezoid rule.
	tprs := []float64{0}
	fprs := []float64{0}
	tp, fp := 0.0, 0.0
	prevScore := pairs[0].score + 1
	for _, p := range pairs {
		if p.score != prevScore {
			tprs = append(tprs, tp/float64(totalPos))
			fprs = append(fprs, fp/float64(totalNeg))
			prevScore = p.score
		}
		if p.label == 1 {
			tp++
		} else {
			fp++
		}
	}
	tprs = append(tprs, 1)
	fprs = append(fprs, 1)

	auc := 0.0
	for i := 1; i < len(fprs); i++ {
		auc += (fprs[i] - fprs[i-1]) * (tprs[i] + tprs[i-1]) / 2
	}
	return auc, nil
}

// AveragePrecision summarises the precision-recall curve as the mean precision at
// each positive, ranked by descending score.
func AveragePrecision(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AveragePrecision", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	numRelevant, _, err := checkBinary("AveragePrecision", yTrue)
	if err != nil {
		return 0, err
	}
	if numRelevant == 0 {
		medErrors.Warn(medErrors.NewUndefinedMetricWarning("average_precision", "no positive samples in yTrue", 0))
		return 0, nil
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return yPred.AtVec(idx[a]) > yPred.AtVec(idx[b])
	})

	sumPrecisions := 0.0
	hits := 0
	for rank, i := range idx {
		if yTrue.AtVec(i) == 1 {
			hits++
			sumPrecisions += float64(hits) / float64(rank+1)
		}
	}
	return sumPrecisions / float64(numRelevant), nil
}

// Accuracy calculates the fraction of correct predictions.
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("Accuracy", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassScores holds precision, recall and F1 for one class label.
type ClassScores struct {
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1-score"`
	Support   int     `json:"support"`
}

// PrecisionRecallF1 computes scores treating label as the positive class. Undefined
// ratios (no predicted or no actual positives) are 0.
func PrecisionRecallF1(yTrue, yPred *mat.VecDense, label float64) (ClassScores, error) {
	n, err := checkPair("PrecisionRecallF1", yTrue, yPred)
	if err != nil {
		return ClassScores{}, err
	}
	var tp, fp, fn int
	for i := 0; i < n; i++ {
		t, p := yTrue.AtVec(i) == label, yPred.AtVec(i) == label
		switch {
		case t && p:
			tp++
		case p:
			fp++
		case t:
			fn++
		}
	}
	s := ClassScores{Support: tp + fn}
	if tp+fp > 0 {
		s.Precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		s.Recall = float64(tp) / float64(tp+fn)
	}
	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}
	return s, nil
}

// F1Score is the F1 of the positive class 1.
func F1Score(yTrue, yPred *mat.VecDense) (float64, error) {
	s, err := PrecisionRecallF1(yTrue, yPred, 1)
	return s.F1, err
}

// Report mirrors scikit-learn's classification_report in dict form.
type Report struct {
	Classes     map[string]ClassScores `json:"classes"`
	Accuracy    float64                `json:"accuracy"`
	MacroAvg    ClassScores            `json:"macro avg"`
	WeightedAvg ClassScores            `json:"weighted avg"`
}

// ClassificationReport computes per-class scores for every label present in
// yTrue or yPred, plus accuracy and macro/weighted averages.
func ClassificationReport(yTrue, yPred *mat.VecDense) (*Report, error) {
	n, err := checkPair("ClassificationReport", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	seen := map[float64]struct{}{}
	for i := 0; i < n; i++ {
		seen[yTrue.AtVec(i)] = struct{}{}
		seen[yPred.AtVec(i)] = struct{}{}
	}
	labels := make([]float64, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Float64s(labels)

	r := &Report{Classes: make(map[string]ClassScores, len(labels))}
	for _, l := range labels {
		s, err := PrecisionRecallF1(yTrue, yPred, l)
		if err != nil {
			return nil, err
		}
		r.Classes[strconv.FormatFloat(l, 'g', -1, 64)] = s

		k := float64(len(labels))
		r.MacroAvg.Precision += s.Precision / k
		r.MacroAvg.Recall += s.Recall / k
		r.MacroAvg.F1 += s.F1 / k

		w := float64(s.Support) / float64(n)
		r.WeightedAvg.Precision += s.Precision * w
		r.WeightedAvg.Recall += s.Recall * w
		r.WeightedAvg.F1 += s.F1 * w
	}
	r.MacroAvg.Support = n
	r.WeightedAvg.Support = n
	if r.Accuracy, err = Accuracy(yTrue, yPred); err != nil {
		return nil, err
	}
	return r, nil
}

// ThresholdGrid returns the candidate cutoffs searched by BestF1Threshold:
// 17 evenly spaced values from 0.1 to 0.9.
func ThresholdGrid() []float64 {
	return floats.Span(make([]float64, 17), 0.1, 0.9)
}

// BestF1Threshold returns the cutoff from ThresholdGrid maximising the F1 of
// (score >= cutoff) against yTrue, and that F1. Ties keep the lowest cutoff.
func BestF1Threshold(yTrue, scores *mat.VecDense) (threshold, f1 float64, err error) {
	n, err := checkPair("BestF1Threshold", yTrue, scores)
	if err != nil {
		return 0, 0, err
	}
	grid := ThresholdGrid()
	f1s := make([]float64, len(grid))
	pred := mat.NewVecDense(n, nil)
	for k, t := range grid {
		for i := 0; i < n; i++ {
			v := 0.0
			if scores.AtVec(i) >= t {
				v = 1
			}
			pred.SetVec(i, v)
		}
		if f1s[k], err = F1Score(yTrue, pred); err != nil {
			return 0, 0, err
		}
	}
	best := floats.MaxIdx(f1s)
	return grid[best], f1s[best], nil
}

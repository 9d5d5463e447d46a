package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/ezoic/medscore/core/frame"
	"github.com/ezoic/medscore/pkg/errors"
)

// Synthetic cohort column names.
const (
	ColumnPatientID  = "patient_id"
	ColumnAdmitDate  = "admit_date"
	ColumnReadmit    = "label_readmit"
	ColumnLengthStay = "los_days"
	ColumnCost       = "cost_of_care"
)

const syntheticMissingRate = 0.02

var cohortEpoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// Synthetic generates a seeded cohort of n patients. label_readmit marks the
// round(prevalence*n) rows (at least one) with the highest latent risk, so the
// positive rate is exact. bmi and sbp carry about 2% missing values.
func Synthetic(n int, prevalence float64, seed uint64) (*frame.Frame, error) {
	if n < 2 {
		return nil, errors.NewValidationError("n", "cohort needs at least two rows", n)
	}
	if !(prevalence > 0 && prevalence < 1) {
		return nil, errors.NewValidationError("prevalence", "must be in (0, 1)", prevalence)
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	normal := func(mu, sigma float64) distuv.Normal {
		return distuv.Normal{Mu: mu, Sigma: sigma, Src: rng}
	}
	var (
		ageDist   = normal(60, 15)
		gluDist   = normal(110, 30)
		bmiDist   = normal(28, 5)
		sbpDist   = normal(130, 18)
		a1cDist   = normal(6.2, 1.1)
		noiseDist = normal(0, 1)
		creatDist = distuv.LogNormal{Mu: 0, Sigma: 0.3, Src: rng}
		visitDist = distuv.Poisson{Lambda: 2, Src: rng}
	)

	age := make([]float64, n)
	glucose := make([]float64, n)
	bmi := make([]float64, n)
	sbp := make([]float64, n)
	hba1c := make([]float64, n)
	creatinine := make([]float64, n)
	visits := make([]float64, n)
	sex := make([]string, n)
	smoker := make([]string, n)
	ids := make([]string, n)
	admit := make([]string, n)
	risk := make([]float64, n)

	for i := 0; i < n; i++ {
		age[i] = math.Round(clamp(ageDist.Rand(), 18, 95))
		glucose[i] = round1(clamp(gluDist.Rand(), 50, 400))
		bmi[i] = round1(clamp(bmiDist.Rand(), 14, 60))
		sbp[i] = math.Round(clamp(sbpDist.Rand(), 80, 220))
		hba1c[i] = round1(clamp(a1cDist.Rand(), 4, 14))
		creatinine[i] = math.Round(creatDist.Rand()*100) / 100
		visits[i] = visitDist.Rand()
		sex[i] = "F"
		if rng.Float64() < 0.48 {
			sex[i] = "M"
		}
		smokes := rng.Float64() < 0.2
		smoker[i] = "no"
		if smokes {
			smoker[i] = "yes"
		}
		ids[i] = fmt.Sprintf("P%06d", i+1)
		admit[i] = cohortEpoch.AddDate(0, 0, rng.IntN(365)).Format(time.RFC3339)

		risk[i] = 0.03*(age[i]-60) + 0.02*(glucose[i]-110) + 0.05*(bmi[i]-28) +
			0.3*(hba1c[i]-6.2) + 0.2*visits[i] + 0.8*creatinine[i] + noiseDist.Rand()
		if smokes {
			risk[i] += 0.5
		}
	}

	label := topFraction(risk, prevalence)
	los := make([]float64, n)
	cost := make([]float64, n)
	for i := 0; i < n; i++ {
		los[i] = round1(math.Max(1, 3+0.05*(age[i]-60)+2*label[i]+1.5*noiseDist.Rand()))
		cost[i] = math.Round(2000 + 900*los[i] + 15*age[i] + 500*noiseDist.Rand())
		if rng.Float64() < syntheticMissingRate {
			bmi[i] = math.NaN()
		}
		if rng.Float64() < syntheticMissingRate {
			sbp[i] = math.NaN()
		}
	}

	return frame.FromSeries(
		frame.NewCategorical(ColumnPatientID, ids, nil),
		frame.NewDatetime(ColumnAdmitDate, admit, nil),
		frame.NewNumeric("age", age),
		frame.NewCategorical("sex", sex, nil),
		frame.NewNumeric("glucose", glucose),
		frame.NewNumeric("bmi", bmi),
		frame.NewNumeric("sbp", sbp),
		frame.NewNumeric("hba1c", hba1c),
		frame.NewNumeric("creatinine", creatinine),
		frame.NewNumeric("visits", visits),
		frame.NewCategorical("smoker", smoker, nil),
		frame.NewNumeric(ColumnReadmit, label),
		frame.NewNumeric(ColumnLengthStay, los),
		frame.NewNumeric(ColumnCost, cost),
	)
}

// topFraction marks the round(p*n) highest scores, at least one.
func topFraction(scores []float64, p float64) []float64 {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	k := max(1, int(math.Round(p*float64(len(scores)))))
	out := make([]float64, len(scores))
	for _, i := range idx[:k] {
		out[i] = 1
	}
	return out
}

func clamp(v, lo, hi float64) float64 { return math.Min(math.Max(v, lo), hi) }

func round1(v float64) float64 { return math.Round(v*10) / 10 }

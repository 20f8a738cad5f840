package modeling

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/pharmgo/pharmgo/pkg/model"
)

// DegreesOfFreedom is the difference in estimated (non-fixed) parameter
// counts between an extended model and the base it nests.
func DegreesOfFreedom(base, extended *model.Model) int {
	return len(extended.Parameters().Nonfixed()) - len(base.Parameters().Nonfixed())
}

// LRTPValue is the likelihood ratio test p-value for a drop in objective
// function value over df degrees of freedom.
func LRTPValue(baseOFV, extendedOFV float64, df int) (float64, error) {
	if df <= 0 {
		return 0, fmt.Errorf("likelihood ratio test needs a positive df, got %d", df)
	}
	stat := baseOFV - extendedOFV
	if math.IsNaN(stat) {
		return 0, fmt.Errorf("objective function value is NaN")
	}
	if stat <= 0 {
		return 1, nil
	}
	chi2 := distuv.ChiSquared{K: float64(df)}
	return chi2.Survival(stat), nil
}

// LRTBetter reports whether the extended model is a significant
// improvement over the base at level alpha.
func LRTBetter(base, extended *model.Model, baseOFV, extendedOFV, alpha float64) (bool, error) {
	df := DegreesOfFreedom(base, extended)
	if df <= 0 {
		return false, nil
	}
	p, err := LRTPValue(baseOFV, extendedOFV, df)
	if err != nil {
		return false, err
	}
	return p < alpha, nil
}

// CutoffOFV is the objective function drop an extension with df extra
// parameters must beat to be significant at level alpha.
func CutoffOFV(df int, alpha float64) float64 {
	chi2 := distuv.ChiSquared{K: float64(df)}
	return chi2.Quantile(1 - alpha)
}

// BestOfMany picks the index of the best candidate among extensions of a
// common base: the lowest OFV among candidates that pass the LRT against
// the base, or -1 when none does. NaN OFVs never win.
func BestOfMany(baseOFV float64, candidateOFVs []float64, dfs []int, alpha float64) (int, error) {
	if len(candidateOFVs) != len(dfs) {
		return -1, fmt.Errorf("got %d candidate OFVs but %d degree counts", len(candidateOFVs), len(dfs))
	}
	best := -1
	bestOFV := math.Inf(1)
	for i, ofv := range candidateOFVs {
		if math.IsNaN(ofv) || dfs[i] <= 0 {
			continue
		}
		p, err := LRTPValue(baseOFV, ofv, dfs[i])
		if err != nil {
			return -1, err
		}
		if p >= alpha {
			continue
		}
		if ofv < bestOFV {
			best = i
			bestOFV = ofv
		}
	}
	return best, nil
}

// BIC is the Bayesian information criterion -2ll + k·ln(n) with the OFV
// standing in for -2ll.
func BIC(ofv float64, nparams, nobs int) float64 {
	return ofv + float64(nparams)*math.Log(float64(nobs))
}

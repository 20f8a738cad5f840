package model

import (
	"fmt"
	"strings"
)

// EstimationMethod is a normalized NONMEM estimation method name.
type EstimationMethod string

const (
	FO    EstimationMethod = "FO"
	FOCE  EstimationMethod = "FOCE"
	ITS   EstimationMethod = "ITS"
	IMP   EstimationMethod = "IMP"
	SAEM  EstimationMethod = "SAEM"
	BAYES EstimationMethod = "BAYES"
)

// NormalizeMethod maps the METHOD= spellings accepted by $ESTIMATION onto
// the canonical method names.
func NormalizeMethod(s string) (EstimationMethod, error) {
	switch strings.ToUpper(s) {
	case "0", "ZERO", "FO":
		return FO, nil
	case "1", "COND", "CONDITIONAL", "FOCE":
		return FOCE, nil
	case "ITS":
		return ITS, nil
	case "IMP":
		return IMP, nil
	case "SAEM":
		return SAEM, nil
	case "BAYES":
		return BAYES, nil
	}
	return "", fmt.Errorf("unknown estimation method %q", s)
}

// EstimationStep is one $ESTIMATION record, normalized.
type EstimationStep struct {
	Method      EstimationMethod
	Interaction bool
	Laplace     bool
	MaxEvals    int // 0 means engine default
	Posthoc     bool
	Cov         bool // a $COVARIANCE step follows the estimation
}

func (e EstimationStep) String() string {
	var b strings.Builder
	b.WriteString(string(e.Method))
	if e.Interaction {
		b.WriteString("+INTERACTION")
	}
	if e.Laplace {
		b.WriteString("+LAPLACE")
	}
	if e.MaxEvals > 0 {
		fmt.Fprintf(&b, " MAXEVAL=%d", e.MaxEvals)
	}
	return b.String()
}

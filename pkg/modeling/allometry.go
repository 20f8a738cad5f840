package modeling

import (
	"fmt"
	"strings"

	"github.com/pharmgo/pharmgo/pkg/model"
)

// AllometryOptions configures AddAllometry. The zero value scales every
// clearance- and volume-like parameter by WT referenced to 70.
type AllometryOptions struct {
	Covariate      string  // size column, default WT
	Reference      float64 // reference covariate value, default 70
	Parameters     []string
	ClearanceInit  float64 // default 0.75
	VolumeInit     float64 // default 1.0
	FixedExponents bool
}

// AddAllometry scales structural parameters by (COV/ref)**exponent.
// Clearance-like parameters (CL, Q*) start at an exponent of 0.75 and
// volume-like ones (V, V*, VC, VP*) at 1.0, bounded to [0, 2] unless the
// exponents are fixed.
func AddAllometry(m *model.Model, opts AllometryOptions) error {
	if opts.Covariate == "" {
		opts.Covariate = "WT"
	}
	if opts.Reference == 0 {
		opts.Reference = 70
	}
	if opts.ClearanceInit == 0 {
		opts.ClearanceInit = 0.75
	}
	if opts.VolumeInit == 0 {
		opts.VolumeInit = 1.0
	}
	if _, ok := m.DataInfo().Column(opts.Covariate); !ok {
		return fmt.Errorf("no column %s in the dataset", opts.Covariate)
	}
	code := structuralCode(m)
	if code == nil {
		return fmt.Errorf("model has no abbreviated code")
	}

	params := opts.Parameters
	if len(params) == 0 {
		for _, sym := range code.Symbols() {
			if clearanceLike(sym) || volumeLike(sym) {
				params = append(params, sym)
			}
		}
	}
	if len(params) == 0 {
		return fmt.Errorf("no parameters to scale")
	}

	for _, sym := range params {
		if _, ok := code.Find(sym); !ok {
			return fmt.Errorf("no parameter %s in the model code", sym)
		}
		init := opts.VolumeInit
		if clearanceLike(sym) {
			init = opts.ClearanceInit
		}
		theta, err := allometricTheta(m, init, opts.FixedExponents)
		if err != nil {
			return err
		}
		expr := fmt.Sprintf("%s*(%s/%s)**%s", sym, opts.Covariate, formatValue(opts.Reference), theta)
		code.Insert(code.Index(sym)+1, model.Assignment{Symbol: sym, Expression: expr})
	}
	return nil
}

func allometricTheta(m *model.Model, init float64, fixed bool) (string, error) {
	name := fmt.Sprintf("THETA(%d)", countThetas(m)+1)
	var p model.Parameter
	var err error
	if fixed {
		p, err = model.NewParameter(name, init, model.WithFix())
	} else {
		p, err = model.NewParameter(name, init, model.WithLower(0), model.WithUpper(2))
	}
	if err != nil {
		return "", err
	}
	if err := addTheta(m, p); err != nil {
		return "", err
	}
	return name, nil
}

func clearanceLike(sym string) bool {
	return sym == "CL" || strings.HasPrefix(sym, "Q") && numericSuffix(sym[1:])
}

func volumeLike(sym string) bool {
	switch {
	case sym == "V", sym == "VC":
		return true
	case strings.HasPrefix(sym, "V") && numericSuffix(sym[1:]):
		return true
	case strings.HasPrefix(sym, "VP") && numericSuffix(sym[2:]):
		return true
	}
	return false
}

func numericSuffix(s string) bool {
	if s == "" {
		return true
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

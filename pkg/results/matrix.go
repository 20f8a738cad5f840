package results

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// NamedMatrix is a symmetric matrix with parameter names attached to its
// rows and columns, as read from .cov/.cor/.coi files.
type NamedMatrix struct {
	Names  []string
	Matrix *mat.SymDense
}

// matrixFromTable turns a .cov/.cor/.coi table into a named symmetric
// matrix. The first column holds the parameter name of each row. The
// original diagonal is returned separately: in .cor files NONMEM writes
// standard errors there, and the matrix diagonal is forced to 1 when
// forceUnitDiagonal is set.
func matrixFromTable(t *Table, forceUnitDiagonal bool) (*NamedMatrix, []float64, error) {
	if len(t.Columns) < 2 || t.Columns[0] != "NAME" {
		return nil, nil, fmt.Errorf("table %d: not a matrix table", t.Number)
	}
	names := append([]string(nil), t.Columns[1:]...)
	n := len(names)
	if len(t.rows) != n {
		return nil, nil, fmt.Errorf("table %d: %d rows for %d parameters", t.Number, len(t.rows), n)
	}
	m := mat.NewSymDense(n, nil)
	diag := make([]float64, n)
	for i, row := range t.rows {
		diag[i] = row[i]
		for j := i; j < n; j++ {
			m.SetSym(i, j, row[j])
		}
	}
	if forceUnitDiagonal {
		for i := 0; i < n; i++ {
			m.SetSym(i, i, 1)
		}
	}
	for i := range names {
		names[i] = TranslateName(names[i])
	}
	return &NamedMatrix{Names: names, Matrix: m}, diag, nil
}

// CovFromCor rebuilds a covariance matrix from a correlation matrix and
// standard errors: cov = D cor D with D = diag(se).
func CovFromCor(cor *mat.SymDense, se []float64) (*mat.SymDense, error) {
	n := cor.SymmetricDim()
	if len(se) != n {
		return nil, fmt.Errorf("%d standard errors for a %d by %d matrix", len(se), n, n)
	}
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, se[i]*cor.At(i, j)*se[j])
		}
	}
	return cov, nil
}

// SEFromCov extracts standard errors as the square roots of the diagonal.
func SEFromCov(cov *mat.SymDense) []float64 {
	n := cov.SymmetricDim()
	se := make([]float64, n)
	for i := 0; i < n; i++ {
		se[i] = math.Sqrt(cov.At(i, i))
	}
	return se
}

// CorFromCov derives the correlation matrix, diagonal 1.
func CorFromCov(cov *mat.SymDense) *mat.SymDense {
	se := SEFromCov(cov)
	n := cov.SymmetricDim()
	cor := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		cor.SetSym(i, i, 1)
		for j := i + 1; j < n; j++ {
			cor.SetSym(i, j, cov.At(i, j)/(se[i]*se[j]))
		}
	}
	return cor
}

// invertSym inverts a symmetric matrix, used both for covariance from
// information and the reverse.
func invertSym(m *mat.SymDense) (*mat.SymDense, error) {
	n := m.SymmetricDim()
	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		return nil, fmt.Errorf("singular matrix: %w", err)
	}
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, (inv.At(i, j)+inv.At(j, i))/2)
		}
	}
	return out, nil
}

// CovFromInfo inverts the information matrix.
func CovFromInfo(info *mat.SymDense) (*mat.SymDense, error) { return invertSym(info) }

// InfoFromCov inverts the covariance matrix.
func InfoFromCov(cov *mat.SymDense) (*mat.SymDense, error) { return invertSym(cov) }

// uncertainty bundles the matrices and standard errors of one estimation
// step; Complete fills whatever can be derived from what was read.
type uncertainty struct {
	cov, cor, info *mat.SymDense
	se             []float64
}

// complete derives missing members: covariance from correlation plus
// standard errors or from information, then everything else from
// covariance. Derivation failures leave members nil rather than erroring.
func (u *uncertainty) complete() {
	if u.cov == nil && u.cor != nil && u.se != nil {
		u.cov, _ = CovFromCor(u.cor, u.se)
	}
	if u.cov == nil && u.info != nil {
		u.cov, _ = CovFromInfo(u.info)
	}
	if u.cov == nil {
		return
	}
	if u.se == nil {
		u.se = SEFromCov(u.cov)
	}
	if u.cor == nil {
		u.cor = CorFromCov(u.cov)
	}
	if u.info == nil {
		u.info, _ = InfoFromCov(u.cov)
	}
}

// Package regression holds the fitted regressors that can be loaded as the
// "model" artifact. Each type predicts one value per row of a design matrix.
package regression

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/score.report/internal/artifact"
)

// Artifact kinds.
const (
	KindLinear       = "linear_regression"
	KindTreeEnsemble = "tree_ensemble"
)

// Register adds every regressor codec to c.
func Register(c *artifact.Codecs) {
	c.Register(KindLinear, DecodeLinear)
	c.Register(KindTreeEnsemble, DecodeTreeEnsemble)
}

// Linear is an ordinary least-squares (or ridge) fit: y = X·coef + intercept.
type Linear struct {
	Coef      []float64 `cbor:"coef"`
	Intercept float64   `cbor:"intercept"`
}

// DecodeLinear is the artifact.DecodeFunc for KindLinear.
func DecodeLinear(payload []byte) (any, error) {
	var m Linear
	if err := artifact.DecodePayload(payload, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks the fitted parameters.
func (m *Linear) Validate() error {
	if len(m.Coef) == 0 {
		return fmt.Errorf("linear model has no coefficients")
	}
	for i, c := range m.Coef {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return fmt.Errorf("coefficient %d is not finite", i)
		}
	}
	if math.IsNaN(m.Intercept) || math.IsInf(m.Intercept, 0) {
		return fmt.Errorf("intercept is not finite")
	}
	return nil
}

// NumFeatures is the expected column count.
func (m *Linear) NumFeatures() int { return len(m.Coef) }

// Predict returns one value per row of x.
func (m *Linear) Predict(x mat.Matrix) ([]float64, error) {
	rows, cols := x.Dims()
	if cols != len(m.Coef) {
		return nil, fmt.Errorf("X has %d features, but linear model expects %d", cols, len(m.Coef))
	}
	var y mat.VecDense
	y.MulVec(x, mat.NewVecDense(cols, m.Coef))

	out := make([]float64, rows)
	for i := range out {
		out[i] = y.AtVec(i) + m.Intercept
	}
	return out, nil
}

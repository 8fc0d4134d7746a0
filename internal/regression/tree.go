package regression

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/score.report/internal/artifact"
)

// Aggregation modes for TreeEnsemble.
const (
	AggregateMean = "mean" // bagged forest
	AggregateSum  = "sum"  // gradient boosting
)

// Tree is a regression tree in flat-array form. Node i is a leaf when
// Left[i] == -1; otherwise samples with x[Feature[i]] <= Threshold[i] go to
// Left[i] and the rest to Right[i].
type Tree struct {
	Feature   []int     `cbor:"feature"`
	Threshold []float64 `cbor:"threshold"`
	Left      []int     `cbor:"left"`
	Right     []int     `cbor:"right"`
	Value     []float64 `cbor:"value"`
}

// TreeEnsemble combines trees by averaging (forest) or by a scaled sum on
// top of a base value (boosting).
type TreeEnsemble struct {
	Trees        []Tree  `cbor:"trees"`
	Aggregate    string  `cbor:"aggregate"`
	Base         float64 `cbor:"base,omitempty"`
	LearningRate float64 `cbor:"learning_rate,omitempty"`
	Features     int     `cbor:"n_features"`
}

// DecodeTreeEnsemble is the artifact.DecodeFunc for KindTreeEnsemble.
func DecodeTreeEnsemble(payload []byte) (any, error) {
	var m TreeEnsemble
	if err := artifact.DecodePayload(payload, &m); err != nil {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks tree structure so Predict can walk nodes without bounds
// failures or cycles.
func (m *TreeEnsemble) Validate() error {
	if len(m.Trees) == 0 {
		return fmt.Errorf("tree ensemble has no trees")
	}
	if m.Features <= 0 {
		return fmt.Errorf("tree ensemble must declare n_features")
	}
	switch m.Aggregate {
	case AggregateMean:
	case AggregateSum:
		if m.LearningRate == 0 {
			m.LearningRate = 1
		}
	default:
		return fmt.Errorf("unsupported aggregate %q", m.Aggregate)
	}
	for ti, t := range m.Trees {
		if err := t.validate(m.Features); err != nil {
			return fmt.Errorf("tree %d: %w", ti, err)
		}
	}
	return nil
}

func (t Tree) validate(features int) error {
	n := len(t.Value)
	if n == 0 {
		return fmt.Errorf("no nodes")
	}
	if len(t.Feature) != n || len(t.Threshold) != n || len(t.Left) != n || len(t.Right) != n {
		return fmt.Errorf("node arrays have mismatched lengths")
	}
	for i := 0; i < n; i++ {
		if t.Left[i] == -1 {
			continue
		}
		// Children must come after their parent, which rules out cycles.
		if t.Left[i] <= i || t.Left[i] >= n || t.Right[i] <= i || t.Right[i] >= n {
			return fmt.Errorf("node %d has invalid children %d/%d", i, t.Left[i], t.Right[i])
		}
		if t.Feature[i] < 0 || t.Feature[i] >= features {
			return fmt.Errorf("node %d splits on feature %d of %d", i, t.Feature[i], features)
		}
	}
	return nil
}

func (t Tree) eval(row []float64) float64 {
	i := 0
	for t.Left[i] != -1 {
		if row[t.Feature[i]] <= t.Threshold[i] {
			i = t.Left[i]
		} else {
			i = t.Right[i]
		}
	}
	return t.Value[i]
}

// NumFeatures is the expected column count.
func (m *TreeEnsemble) NumFeatures() int { return m.Features }

// Predict returns one value per row of x.
func (m *TreeEnsemble) Predict(x mat.Matrix) ([]float64, error) {
	rows, cols := x.Dims()
	if cols != m.Features {
		return nil, fmt.Errorf("X has %d features, but tree ensemble expects %d", cols, m.Features)
	}
	out := make([]float64, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, x)
		var sum float64
		for _, t := range m.Trees {
			sum += t.eval(row)
		}
		if m.Aggregate == AggregateMean {
			out[i] = sum / float64(len(m.Trees))
		} else {
			out[i] = m.Base + m.LearningRate*sum
		}
	}
	return out, nil
}

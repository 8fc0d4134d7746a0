// Package preprocess implements the fitted feature transformer that turns a
// feature.Batch into the numeric design matrix expected by the model.
//
// The transformer standardises numeric columns and one-hot encodes
// categorical columns, scaling each one-hot output by its fitted deviation.
// Output columns are ordered numeric first, then each categorical block, in
// the order the columns were fitted.
package preprocess

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/score.report/internal/artifact"
	"github.com/banshee-data/score.report/internal/feature"
)

// Kind is the artifact kind written for a ColumnTransformer.
const Kind = "column_transformer"

// Unknown-category policies.
const (
	HandleUnknownError  = "error"
	HandleUnknownIgnore = "ignore"
)

// NumericColumn holds the fitted centre and scale of one numeric column.
type NumericColumn struct {
	Name  string  `cbor:"name"`
	Mean  float64 `cbor:"mean"`
	Scale float64 `cbor:"scale"`
}

// CategoricalColumn holds the fitted categories of one string column and the
// scale applied to each one-hot output. Scales may be omitted (all ones).
type CategoricalColumn struct {
	Name       string    `cbor:"name"`
	Categories []string  `cbor:"categories"`
	Scales     []float64 `cbor:"scales,omitempty"`
}

// ColumnTransformer is the decoded preprocessor artifact.
type ColumnTransformer struct {
	Numeric       []NumericColumn     `cbor:"numeric"`
	Categorical   []CategoricalColumn `cbor:"categorical"`
	HandleUnknown string              `cbor:"handle_unknown,omitempty"`

	index []map[string]int
}

// Decode is the artifact.DecodeFunc for Kind.
func Decode(payload []byte) (any, error) {
	var ct ColumnTransformer
	if err := artifact.DecodePayload(payload, &ct); err != nil {
		return nil, err
	}
	if err := ct.Init(); err != nil {
		return nil, err
	}
	return &ct, nil
}

// Register adds the ColumnTransformer codec to c.
func Register(c *artifact.Codecs) {
	c.Register(Kind, Decode)
}

// Init validates the fitted parameters and builds lookup tables. Decode calls
// it; callers constructing a ColumnTransformer directly must call it before
// Transform.
func (ct *ColumnTransformer) Init() error {
	if len(ct.Numeric)+len(ct.Categorical) == 0 {
		return fmt.Errorf("column transformer has no columns")
	}
	switch ct.HandleUnknown {
	case "":
		ct.HandleUnknown = HandleUnknownError
	case HandleUnknownError, HandleUnknownIgnore:
	default:
		return fmt.Errorf("unsupported handle_unknown %q", ct.HandleUnknown)
	}

	seen := map[string]bool{}
	for _, c := range ct.Numeric {
		if c.Name == "" {
			return fmt.Errorf("numeric column with empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("column %q fitted twice", c.Name)
		}
		seen[c.Name] = true
		if !finite(c.Mean) || !finite(c.Scale) {
			return fmt.Errorf("numeric column %q has non-finite parameters", c.Name)
		}
	}

	ct.index = make([]map[string]int, len(ct.Categorical))
	for i, c := range ct.Categorical {
		if c.Name == "" {
			return fmt.Errorf("categorical column with empty name")
		}
		if seen[c.Name] {
			return fmt.Errorf("column %q fitted twice", c.Name)
		}
		seen[c.Name] = true
		if len(c.Categories) == 0 {
			return fmt.Errorf("categorical column %q has no categories", c.Name)
		}
		if len(c.Scales) != 0 && len(c.Scales) != len(c.Categories) {
			return fmt.Errorf("categorical column %q has %d scales for %d categories", c.Name, len(c.Scales), len(c.Categories))
		}
		for _, s := range c.Scales {
			if !finite(s) {
				return fmt.Errorf("categorical column %q has non-finite scale", c.Name)
			}
		}
		idx := make(map[string]int, len(c.Categories))
		for j, cat := range c.Categories {
			if _, dup := idx[cat]; dup {
				return fmt.Errorf("categorical column %q lists %q twice", c.Name, cat)
			}
			idx[cat] = j
		}
		ct.index[i] = idx
	}
	return nil
}

// OutputWidth is the number of columns Transform produces.
func (ct *ColumnTransformer) OutputWidth() int {
	n := len(ct.Numeric)
	for _, c := range ct.Categorical {
		n += len(c.Categories)
	}
	return n
}

// InputColumns lists the fitted input column names in output order.
func (ct *ColumnTransformer) InputColumns() []string {
	out := make([]string, 0, len(ct.Numeric)+len(ct.Categorical))
	for _, c := range ct.Numeric {
		out = append(out, c.Name)
	}
	for _, c := range ct.Categorical {
		out = append(out, c.Name)
	}
	return out
}

// Transform produces a Len() x OutputWidth() matrix.
func (ct *ColumnTransformer) Transform(b feature.Batch) (*mat.Dense, error) {
	if ct.index == nil {
		return nil, fmt.Errorf("column transformer used before Init")
	}
	rows := b.Len()
	if rows == 0 {
		return nil, feature.ErrEmptyBatch
	}
	out := mat.NewDense(rows, ct.OutputWidth(), nil)

	col := 0
	for _, nc := range ct.Numeric {
		values, err := b.Floats(nc.Name)
		if err != nil {
			return nil, fmt.Errorf("numeric column %q: %w", nc.Name, err)
		}
		scale := nc.Scale
		if scale == 0 {
			scale = 1
		}
		for i, v := range values {
			out.Set(i, col, (v-nc.Mean)/scale)
		}
		col++
	}

	for ci, cc := range ct.Categorical {
		values, err := b.Strings(cc.Name)
		if err != nil {
			return nil, fmt.Errorf("categorical column %q: %w", cc.Name, err)
		}
		for i, v := range values {
			j, ok := ct.index[ci][v]
			if !ok {
				if ct.HandleUnknown == HandleUnknownIgnore {
					continue
				}
				return nil, fmt.Errorf("found unknown category %q in column %q during transform", v, cc.Name)
			}
			val := 1.0
			if len(cc.Scales) > 0 && cc.Scales[j] != 0 {
				val /= cc.Scales[j]
			}
			out.Set(i, col+j, val)
		}
		col += len(cc.Categories)
	}
	return out, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

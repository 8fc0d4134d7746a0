// Package fixtures holds a hand-specified demo preprocessor and model over
// the real category vocabulary. They are not trained; they exist so a fresh
// checkout can be served and so tests can exercise real artifacts.
package fixtures

import (
	"github.com/banshee-data/score.report/internal/artifact"
	"github.com/banshee-data/score.report/internal/feature"
	"github.com/banshee-data/score.report/internal/preprocess"
	"github.com/banshee-data/score.report/internal/regression"
)

// SampleInput is the reference observation used by smoke checks.
func SampleInput() feature.Input {
	return feature.Input{
		Gender:                   "male",
		RaceEthnicity:            "group A",
		ParentalLevelOfEducation: "bachelor's degree",
		Lunch:                    "standard",
		TestPreparationCourse:    "none",
		ReadingScore:             "75",
		WritingScore:             "80",
	}
}

// SamplePrediction is what the demo pair returns for SampleInput.
const SamplePrediction = 82.41573089709979

// Preprocessor returns the demo ColumnTransformer, initialised.
func Preprocessor() *preprocess.ColumnTransformer {
	ct := &preprocess.ColumnTransformer{
		Numeric: []preprocess.NumericColumn{
			{Name: feature.ReadingScore, Mean: 69.169, Scale: 14.600},
			{Name: feature.WritingScore, Mean: 68.054, Scale: 15.196},
		},
		HandleUnknown: preprocess.HandleUnknownError,
	}
	for _, col := range feature.CategoricalColumns {
		ct.Categorical = append(ct.Categorical, preprocess.CategoricalColumn{
			Name:       col,
			Categories: feature.Categories(col),
		})
	}
	if err := ct.Init(); err != nil {
		panic(err)
	}
	return ct
}

// Model returns the demo linear model matching Preprocessor's output layout.
func Model() *regression.Linear {
	coef := []float64{
		4.5, 10.2, // reading, writing
		-4.3, 4.3, // gender
		-1.2, -0.9, -0.6, 0.2, 2.5, // race/ethnicity
		0.3, 0.1, -0.2, -0.5, 0.4, 0.1, // parental education
		-1.7, 1.7, // lunch
		-1.6, 1.6, // test preparation
	}
	return &regression.Linear{Coef: coef, Intercept: 66.1}
}

// TreeModel returns a small boosted ensemble over the same layout, splitting
// on the standardised writing score and the lunch block.
func TreeModel() *regression.TreeEnsemble {
	return &regression.TreeEnsemble{
		Trees: []regression.Tree{
			{
				Feature:   []int{1, -2, -2},
				Threshold: []float64{0, 0, 0},
				Left:      []int{1, -1, -1},
				Right:     []int{2, -1, -1},
				Value:     []float64{0, -8, 8},
			},
			{
				Feature:   []int{16, -2, -2},
				Threshold: []float64{0.5, 0, 0},
				Left:      []int{1, -1, -1},
				Right:     []int{2, -1, -1},
				Value:     []float64{0, -3, 3},
			},
		},
		Aggregate:    regression.AggregateSum,
		Base:         66.1,
		LearningRate: 1,
		Features:     19,
	}
}

// WriteDemoArtifacts saves the demo pair into dir under the default logical
// names and returns the written paths.
func WriteDemoArtifacts(r *artifact.Resolver, dir, preprocessorName, modelName string) ([]string, error) {
	pre, err := r.Save(dir, preprocessorName, preprocess.Kind, Preprocessor())
	if err != nil {
		return nil, err
	}
	model, err := r.Save(dir, modelName, regression.KindLinear, Model())
	if err != nil {
		return nil, err
	}
	return []string{pre, model}, nil
}

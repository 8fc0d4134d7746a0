package inference

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/score.report/internal/artifact"
	"github.com/banshee-data/score.report/internal/failure"
	"github.com/banshee-data/score.report/internal/feature"
	"github.com/banshee-data/score.report/internal/fixtures"
	"github.com/banshee-data/score.report/internal/fsutil"
	"github.com/banshee-data/score.report/internal/preprocess"
	"github.com/banshee-data/score.report/internal/testutil"
	"github.com/banshee-data/score.report/internal/timeutil"
)

// These tests swap the package logger, so none of them run in parallel.

func fixedWd() (string, error) { return "/work", nil }

func newPipeline(src ArtifactSource) *Pipeline {
	return New(Config{
		Source: src,
		Clock:  timeutil.NewSteppingClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), 5*time.Millisecond),
		Getwd:  fixedWd,
	})
}

func memoryPipeline(t *testing.T) (*fsutil.MemoryFileSystem, *Pipeline) {
	t.Helper()
	mem, r := testutil.MemoryArtifacts(t)
	return mem, newPipeline(r)
}

func emptyResolver(mem *fsutil.MemoryFileSystem) *artifact.Resolver {
	return artifact.NewResolver(artifact.Options{
		Roots:  []string{testutil.MemoryRoot},
		FS:     mem,
		Codecs: NewCodecs(),
	})
}

// stubSource serves fixed objects without touching a filesystem.
type stubSource map[string]any

func (s stubSource) Resolve(name string) (any, error) {
	obj, ok := s[name]
	if !ok {
		return nil, failure.NotFound(name, []string{"stub/" + name})
	}
	if err, ok := obj.(error); ok {
		return nil, err
	}
	return obj, nil
}

func (s stubSource) Probe(name string) []artifact.Candidate {
	_, ok := s[name]
	return []artifact.Candidate{{Path: "stub/" + name, Exists: ok}}
}

type constPredictor struct{ v []float64 }

func (c constPredictor) Predict(mat.Matrix) ([]float64, error) { return c.v, nil }

func TestPredictSample(t *testing.T) {
	testutil.CaptureLogs(t)
	_, p := memoryPipeline(t)

	got, err := p.Predict(fixtures.SampleInput())
	require.NoError(t, err)
	assert.InDelta(t, fixtures.SamplePrediction, got, 1e-9)
	assert.False(t, math.IsNaN(got))
}

func TestPredictIsDeterministic(t *testing.T) {
	testutil.CaptureLogs(t)
	_, p := memoryPipeline(t)

	a, err := p.Predict(fixtures.SampleInput())
	require.NoError(t, err)
	b, err := p.Predict(fixtures.SampleInput())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestPredictValidationTouchesNoArtifacts(t *testing.T) {
	testutil.CaptureLogs(t)

	tests := []struct {
		name   string
		mutate func(*feature.Input)
		kind   failure.Kind
		check  func(t *testing.T, fe *failure.Error)
	}{
		{
			name:   "reading too high",
			mutate: func(in *feature.Input) { in.ReadingScore = "150" },
			kind:   failure.InvalidScore,
			check: func(t *testing.T, fe *failure.Error) {
				assert.Equal(t, feature.ReadingScore, fe.Field)
				assert.Equal(t, "150", fe.Value)
			},
		},
		{
			name:   "writing not numeric",
			mutate: func(in *feature.Input) { in.WritingScore = "eighty" },
			kind:   failure.InvalidScore,
			check: func(t *testing.T, fe *failure.Error) {
				assert.Equal(t, feature.WritingScore, fe.Field)
			},
		},
		{
			name: "two categoricals missing",
			mutate: func(in *feature.Input) {
				in.Gender = ""
				in.Lunch = "  "
			},
			kind: failure.MissingField,
			check: func(t *testing.T, fe *failure.Error) {
				assert.Equal(t, []string{feature.Gender, feature.Lunch}, fe.Fields)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem, p := memoryPipeline(t)
			in := fixtures.SampleInput()
			tt.mutate(&in)

			_, err := p.Predict(in)
			require.Error(t, err)
			assert.Equal(t, tt.kind, failure.KindOf(err))

			var fe *failure.Error
			require.True(t, errors.As(err, &fe))
			tt.check(t, fe)
			assert.Zero(t, mem.Reads(), "validation must fail before any artifact is read")
		})
	}
}

func TestPredictArtifactFailures(t *testing.T) {
	testutil.CaptureLogs(t)

	tests := []struct {
		name  string
		setup func(t *testing.T, mem *fsutil.MemoryFileSystem)
		root  failure.Kind
	}{
		{
			name:  "no artifacts directory",
			setup: func(*testing.T, *fsutil.MemoryFileSystem) {},
			root:  failure.ArtifactNotFound,
		},
		{
			name: "model missing",
			setup: func(t *testing.T, mem *fsutil.MemoryFileSystem) {
				_, err := emptyResolver(mem).Save(testutil.MemoryRoot, "preprocessor", preprocess.Kind, fixtures.Preprocessor())
				require.NoError(t, err)
			},
			root: failure.ArtifactNotFound,
		},
		{
			name: "empty preprocessor",
			setup: func(t *testing.T, mem *fsutil.MemoryFileSystem) {
				require.NoError(t, mem.WriteFile(testutil.MemoryRoot+"/preprocessor.cbor", nil, 0644))
			},
			root: failure.ArtifactEmpty,
		},
		{
			name: "corrupt preprocessor",
			setup: func(t *testing.T, mem *fsutil.MemoryFileSystem) {
				require.NoError(t, mem.WriteFile(testutil.MemoryRoot+"/preprocessor.cbor", []byte("not cbor at all"), 0644))
			},
			root: failure.ArtifactCorrupt,
		},
		{
			name: "model is a transformer",
			setup: func(t *testing.T, mem *fsutil.MemoryFileSystem) {
				r := emptyResolver(mem)
				_, err := r.Save(testutil.MemoryRoot, "preprocessor", preprocess.Kind, fixtures.Preprocessor())
				require.NoError(t, err)
				_, err = r.Save(testutil.MemoryRoot, "model", preprocess.Kind, fixtures.Preprocessor())
				require.NoError(t, err)
			},
			root: failure.PredictionFailure,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := fsutil.NewMemoryFileSystem()
			tt.setup(t, mem)
			p := newPipeline(emptyResolver(mem))

			_, err := p.Predict(fixtures.SampleInput())
			require.Error(t, err)
			assert.Equal(t, failure.PredictionFailure, failure.KindOf(err))
			assert.Equal(t, tt.root, failure.Root(err))
			assert.True(t, failure.Has(err, tt.root))
		})
	}
}

func TestPredictArtifactsDeletedAfterSuccess(t *testing.T) {
	testutil.CaptureLogs(t)
	mem, p := memoryPipeline(t)

	_, err := p.Predict(fixtures.SampleInput())
	require.NoError(t, err)

	require.NoError(t, mem.RemoveAll(testutil.MemoryRoot))
	_, err = p.Predict(fixtures.SampleInput())
	assert.True(t, failure.Has(err, failure.ArtifactNotFound))
}

func TestPredictUnknownCategory(t *testing.T) {
	testutil.CaptureLogs(t)
	_, p := memoryPipeline(t)

	in := fixtures.SampleInput()
	in.RaceEthnicity = "group Z"
	_, err := p.Predict(in)
	require.Error(t, err)
	assert.Equal(t, failure.PredictionFailure, failure.KindOf(err))
	assert.ErrorContains(t, err, "group Z")
}

func TestPredictNonFiniteOutput(t *testing.T) {
	testutil.CaptureLogs(t)
	p := newPipeline(stubSource{
		DefaultPreprocessorName: fixtures.Preprocessor(),
		DefaultModelName:        constPredictor{v: []float64{math.NaN()}},
	})

	_, err := p.Predict(fixtures.SampleInput())
	require.Error(t, err)
	assert.Equal(t, failure.PredictionFailure, failure.KindOf(err))
	assert.ErrorContains(t, err, "not finite")
}

func TestPredictLengthMismatch(t *testing.T) {
	testutil.CaptureLogs(t)
	p := newPipeline(stubSource{
		DefaultPreprocessorName: fixtures.Preprocessor(),
		DefaultModelName:        constPredictor{v: []float64{1, 2}},
	})

	_, err := p.Predict(fixtures.SampleInput())
	assert.ErrorContains(t, err, "2 predictions for 1 rows")
}

func TestPredictFailureDiagnostics(t *testing.T) {
	logs := testutil.CaptureLogs(t)
	p := newPipeline(stubSource{DefaultPreprocessorName: fixtures.Preprocessor()})

	_, err := p.Predict(fixtures.SampleInput())
	require.Error(t, err)

	assert.True(t, logs.Contains("current working directory: /work"))
	assert.True(t, logs.Contains("preprocessor path exists: stub/preprocessor=true"))
	assert.True(t, logs.Contains("model path exists: stub/model=false"))
	assert.True(t, logs.Contains("kind: artifact_not_found"))
	assert.True(t, logs.Contains("traceback:"))
}

func TestPredictLogsStages(t *testing.T) {
	logs := testutil.CaptureLogs(t)
	_, p := memoryPipeline(t)

	_, err := p.Predict(fixtures.SampleInput())
	require.NoError(t, err)
	assert.True(t, logs.Contains("received -> validated"))
	assert.True(t, logs.Contains("transformed shape: 1x19"))
	assert.True(t, logs.Contains("scored"))
	assert.True(t, logs.Contains("in 5ms"))
}

func TestPredictBatch(t *testing.T) {
	testutil.CaptureLogs(t)
	_, p := memoryPipeline(t)

	second := fixtures.SampleInput()
	second.Lunch = "free/reduced"
	got, err := p.PredictBatch([]feature.Input{fixtures.SampleInput(), second})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.InDelta(t, fixtures.SamplePrediction, got[0], 1e-9)
	assert.InDelta(t, fixtures.SamplePrediction-3.4, got[1], 1e-9)

	bad := fixtures.SampleInput()
	bad.WritingScore = "-1"
	_, err = p.PredictBatch([]feature.Input{fixtures.SampleInput(), bad})
	assert.Equal(t, failure.InvalidScore, failure.KindOf(err))

	_, err = p.PredictBatch(nil)
	assert.ErrorIs(t, err, feature.ErrEmptyBatch)
}

func TestPredictRecord(t *testing.T) {
	testutil.CaptureLogs(t)
	_, p := memoryPipeline(t)

	rec, err := fixtures.SampleInput().Validate()
	require.NoError(t, err)
	got, err := p.PredictRecord(rec)
	require.NoError(t, err)
	assert.InDelta(t, fixtures.SamplePrediction, got, 1e-9)

	_, err = p.PredictRecord(feature.Record{})
	assert.ErrorIs(t, err, feature.ErrUnvalidated)
}

func TestArtifactNames(t *testing.T) {
	pre, model := New(Config{}).ArtifactNames()
	assert.Equal(t, DefaultPreprocessorName, pre)
	assert.Equal(t, DefaultModelName, model)

	pre, model = New(Config{PreprocessorName: "pre_v2", ModelName: "gbr"}).ArtifactNames()
	assert.Equal(t, "pre_v2", pre)
	assert.Equal(t, "gbr", model)
}

func TestPredictConcurrentWithCache(t *testing.T) {
	testutil.CaptureLogs(t)
	dir := testutil.DiskArtifacts(t)
	r := artifact.NewResolver(artifact.Options{Roots: []string{dir}, Codecs: NewCodecs(), Cache: true})
	p := newPipeline(r)

	var wg sync.WaitGroup
	results := make([]float64, 16)
	errs := make([]error, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = p.Predict(fixtures.SampleInput())
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, results[0], results[i])
	}
}

func TestNewCodecsKinds(t *testing.T) {
	assert.ElementsMatch(t,
		[]string{"column_transformer", "linear_regression", "tree_ensemble"},
		NewCodecs().Kinds())
}

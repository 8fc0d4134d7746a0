// Package inference scores student-performance records against a persisted
// preprocessor and model.
//
// A request moves through four stages: the raw input is validated, shaped
// into a one-row feature.Batch, transformed by the preprocessor and scored
// by the model. Validation failures are returned before any artifact is
// read. Every later failure is logged with diagnostics and returned as a
// failure.PredictionFailure wrapping the original cause.
package inference

import (
	"fmt"
	"math"
	"os"
	"runtime/debug"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/score.report/internal/artifact"
	"github.com/banshee-data/score.report/internal/failure"
	"github.com/banshee-data/score.report/internal/feature"
	"github.com/banshee-data/score.report/internal/monitoring"
	"github.com/banshee-data/score.report/internal/preprocess"
	"github.com/banshee-data/score.report/internal/regression"
	"github.com/banshee-data/score.report/internal/timeutil"
)

// Default logical artifact names.
const (
	DefaultPreprocessorName = "preprocessor"
	DefaultModelName        = "model"
)

// Transformer turns a feature batch into a design matrix.
type Transformer interface {
	Transform(b feature.Batch) (*mat.Dense, error)
}

// Predictor scores each row of a design matrix.
type Predictor interface {
	Predict(x mat.Matrix) ([]float64, error)
}

// ArtifactSource resolves artifacts by logical name. *artifact.Resolver
// satisfies it.
type ArtifactSource interface {
	Resolve(name string) (any, error)
	Probe(name string) []artifact.Candidate
}

// Stage names a point in a request's lifecycle.
type Stage string

const (
	StageReceived  Stage = "received"
	StageValidated Stage = "validated"
	StageShaped    Stage = "shaped"
	StageScored    Stage = "scored"
	StageFailed    Stage = "failed"
)

// Config configures a Pipeline.
type Config struct {
	Source           ArtifactSource
	PreprocessorName string
	ModelName        string
	Clock            timeutil.Clock
	Getwd            func() (string, error)
}

// Pipeline is safe for concurrent use; it holds no per-request state.
type Pipeline struct {
	source           ArtifactSource
	preprocessorName string
	modelName        string
	clock            timeutil.Clock
	getwd            func() (string, error)
}

// New returns a Pipeline reading artifacts from cfg.Source.
func New(cfg Config) *Pipeline {
	p := &Pipeline{
		source:           cfg.Source,
		preprocessorName: cfg.PreprocessorName,
		modelName:        cfg.ModelName,
		clock:            cfg.Clock,
		getwd:            cfg.Getwd,
	}
	if p.preprocessorName == "" {
		p.preprocessorName = DefaultPreprocessorName
	}
	if p.modelName == "" {
		p.modelName = DefaultModelName
	}
	if p.clock == nil {
		p.clock = timeutil.RealClock{}
	}
	if p.getwd == nil {
		p.getwd = os.Getwd
	}
	return p
}

// NewCodecs returns a registry with every preprocessor and model kind this
// service can load.
func NewCodecs() *artifact.Codecs {
	c := artifact.NewCodecs()
	preprocess.Register(c)
	regression.Register(c)
	return c
}

// ArtifactNames returns the logical preprocessor and model names.
func (p *Pipeline) ArtifactNames() (preprocessor, model string) {
	return p.preprocessorName, p.modelName
}

// Predict validates in and returns its predicted score.
func (p *Pipeline) Predict(in feature.Input) (float64, error) {
	out, err := p.PredictBatch([]feature.Input{in})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// PredictRecord scores an already validated record.
func (p *Pipeline) PredictRecord(rec feature.Record) (float64, error) {
	out, err := p.score([]feature.Record{rec})
	if err != nil {
		return 0, err
	}
	return out[0], nil
}

// PredictBatch validates every input and returns one prediction per input,
// in order. Validation stops at the first invalid input; its error is
// returned unchanged.
func (p *Pipeline) PredictBatch(inputs []feature.Input) ([]float64, error) {
	recs := make([]feature.Record, len(inputs))
	for i, in := range inputs {
		rec, err := in.Validate()
		if err != nil {
			monitoring.Logf("[inference] %s: row %d: %v", StageFailed, i, err)
			return nil, err
		}
		recs[i] = rec
	}
	return p.score(recs)
}

func (p *Pipeline) score(recs []feature.Record) ([]float64, error) {
	start := p.clock.Now()
	monitoring.Logf("[inference] %s -> %s: %d row(s)", StageReceived, StageValidated, len(recs))

	batch, err := feature.NewBatch(recs...)
	if err != nil {
		return nil, p.fail(StageValidated, err, "shape batch")
	}
	monitoring.Logf("[inference] %s: columns=%s rows=%d", StageShaped, strings.Join(batch.Columns(), ","), batch.Len())

	preprocessor, err := p.transformer()
	if err != nil {
		return nil, p.fail(StageShaped, err, "load preprocessor %q", p.preprocessorName)
	}
	model, err := p.predictor()
	if err != nil {
		return nil, p.fail(StageShaped, err, "load model %q", p.modelName)
	}

	x, err := preprocessor.Transform(batch)
	if err != nil {
		return nil, p.fail(StageShaped, err, "transform")
	}
	r, c := x.Dims()
	monitoring.Logf("[inference] transformed shape: %dx%d", r, c)

	preds, err := model.Predict(x)
	if err != nil {
		return nil, p.fail(StageShaped, err, "predict")
	}
	if len(preds) != batch.Len() {
		return nil, p.fail(StageShaped, fmt.Errorf("model returned %d predictions for %d rows", len(preds), batch.Len()), "predict")
	}
	for i, v := range preds {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, p.fail(StageShaped, fmt.Errorf("prediction %d is not finite: %v", i, v), "predict")
		}
	}

	monitoring.Logf("[inference] %s: predictions=%v in %v", StageScored, preds, p.clock.Since(start))
	return preds, nil
}

func (p *Pipeline) transformer() (Transformer, error) {
	obj, err := p.source.Resolve(p.preprocessorName)
	if err != nil {
		return nil, err
	}
	t, ok := obj.(Transformer)
	if !ok {
		return nil, fmt.Errorf("artifact %q is a %T, which cannot transform features", p.preprocessorName, obj)
	}
	return t, nil
}

func (p *Pipeline) predictor() (Predictor, error) {
	obj, err := p.source.Resolve(p.modelName)
	if err != nil {
		return nil, err
	}
	m, ok := obj.(Predictor)
	if !ok {
		return nil, fmt.Errorf("artifact %q is a %T, which cannot predict", p.modelName, obj)
	}
	return m, nil
}

// fail logs the failure with working directory, artifact existence and the
// stack, then wraps it as a PredictionFailure.
func (p *Pipeline) fail(stage Stage, cause error, format string, args ...any) error {
	err := failure.Wrap(cause, format, args...)

	cwd, werr := p.getwd()
	if werr != nil {
		cwd = "unavailable: " + werr.Error()
	}
	monitoring.LogDiagnostics(
		fmt.Sprintf("[inference] %s after %s: %v", StageFailed, stage, err),
		monitoring.F("kind", failure.Root(err)),
		monitoring.F("current working directory", cwd),
		monitoring.F(p.preprocessorName+" path exists", existence(p.source.Probe(p.preprocessorName))),
		monitoring.F(p.modelName+" path exists", existence(p.source.Probe(p.modelName))),
		monitoring.F("traceback", string(debug.Stack())),
	)
	return err
}

func existence(cands []artifact.Candidate) string {
	parts := make([]string, len(cands))
	for i, c := range cands {
		parts[i] = fmt.Sprintf("%s=%t", c.Path, c.Exists)
	}
	return strings.Join(parts, " ")
}

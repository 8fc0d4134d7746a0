package inference

import (
	"github.com/banshee-data/score.report/internal/artifact"
	"github.com/banshee-data/score.report/internal/failure"
)

// Health statuses.
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
)

// ArtifactStatus reports where one artifact was looked for and whether it
// could be loaded.
type ArtifactStatus struct {
	Name       string               `json:"name"`
	Exists     bool                 `json:"exists"`
	Loaded     bool                 `json:"loaded"`
	Kind       string               `json:"error_kind,omitempty"`
	Error      string               `json:"error,omitempty"`
	Candidates []artifact.Candidate `json:"candidates"`
}

// Health is the deployment self-check served by /health.
type Health struct {
	Status            string         `json:"status"`
	Preprocessor      ArtifactStatus `json:"preprocessor"`
	Model             ArtifactStatus `json:"model"`
	ModelLoaded       bool           `json:"model_loaded"`
	CurrentDirectory  string         `json:"current_directory"`
	ArtifactsDir      string         `json:"artifacts_directory,omitempty"`
	ArtifactsContents []string       `json:"artifacts_contents"`
}

// rootLister is implemented by *artifact.Resolver.
type rootLister interface {
	FirstRoot() (dir string, entries []string, ok bool)
}

// Check probes and loads both artifacts. It never returns an error; problems
// are reported in the result and make it unhealthy.
func (p *Pipeline) Check() Health {
	h := Health{
		Preprocessor:      p.checkArtifact(p.preprocessorName, func(obj any) bool { _, ok := obj.(Transformer); return ok }),
		Model:             p.checkArtifact(p.modelName, func(obj any) bool { _, ok := obj.(Predictor); return ok }),
		ArtifactsContents: []string{},
	}
	h.ModelLoaded = h.Preprocessor.Loaded && h.Model.Loaded
	h.Status = StatusUnhealthy
	if h.ModelLoaded {
		h.Status = StatusHealthy
	}

	if cwd, err := p.getwd(); err == nil {
		h.CurrentDirectory = cwd
	}
	if l, ok := p.source.(rootLister); ok {
		if dir, entries, ok := l.FirstRoot(); ok {
			h.ArtifactsDir = dir
			if entries != nil {
				h.ArtifactsContents = entries
			}
		}
	}
	return h
}

func (p *Pipeline) checkArtifact(name string, fits func(any) bool) ArtifactStatus {
	s := ArtifactStatus{Name: name, Candidates: p.source.Probe(name)}
	for _, c := range s.Candidates {
		if c.Exists {
			s.Exists = true
			break
		}
	}
	obj, err := p.source.Resolve(name)
	switch {
	case err != nil:
		s.Kind = failure.KindOf(err).String()
		s.Error = err.Error()
	case !fits(obj):
		s.Kind = failure.PredictionFailure.String()
		s.Error = "artifact has the wrong type"
	default:
		s.Loaded = true
	}
	return s
}

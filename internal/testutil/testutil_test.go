package testutil

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/score.report/internal/artifact"
	"github.com/banshee-data/score.report/internal/monitoring"
	"github.com/banshee-data/score.report/internal/preprocess"
	"github.com/banshee-data/score.report/internal/regression"
)

func TestAssertStatusCode(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertStatusCode(t, http.StatusNotFound, http.StatusNotFound)
}

func TestNewTestRequest(t *testing.T) {
	t.Parallel()

	req := NewTestRequest(http.MethodPost, "/api/predict")
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/predict", req.URL.Path)
}

func TestMemoryArtifacts(t *testing.T) {
	t.Parallel()

	mem, r := MemoryArtifacts(t)
	assert.True(t, mem.Exists(MemoryRoot+"/preprocessor.cbor"))
	assert.True(t, mem.Exists(MemoryRoot+"/model.cbor"))

	obj, err := r.Resolve("model")
	require.NoError(t, err)
	assert.IsType(t, &regression.Linear{}, obj)
}

func TestDiskArtifacts(t *testing.T) {
	t.Parallel()

	dir := DiskArtifacts(t)
	r := artifact.NewResolver(artifact.Options{Roots: []string{dir}, Codecs: Codecs()})
	c, env, err := r.Inspect("preprocessor")
	require.NoError(t, err)
	assert.True(t, c.Exists)
	assert.Equal(t, preprocess.Kind, env.Kind)
}

func TestCaptureLogs(t *testing.T) {
	rec := CaptureLogs(t)
	monitoring.Logf("hello %s", "world")
	assert.True(t, rec.Contains("hello world"))
}

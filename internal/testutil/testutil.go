// Package testutil provides shared test utilities and fixtures.
//
// This package centralises common test helpers to reduce code duplication
// across test files and improve test maintainability.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/banshee-data/score.report/internal/artifact"
	"github.com/banshee-data/score.report/internal/fixtures"
	"github.com/banshee-data/score.report/internal/fsutil"
	"github.com/banshee-data/score.report/internal/monitoring"
	"github.com/banshee-data/score.report/internal/preprocess"
	"github.com/banshee-data/score.report/internal/regression"
)

// MemoryRoot is the artifacts directory used by MemoryArtifacts.
const MemoryRoot = "/srv/score/artifacts"

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// NewTestRequest creates a test HTTP request.
func NewTestRequest(method, path string) *http.Request {
	return httptest.NewRequest(method, path, nil)
}

// Codecs returns a registry that decodes every artifact kind.
func Codecs() *artifact.Codecs {
	c := artifact.NewCodecs()
	preprocess.Register(c)
	regression.Register(c)
	return c
}

// MemoryArtifacts returns an in-memory filesystem holding the demo artifact
// pair under MemoryRoot, and a resolver searching only that root.
func MemoryArtifacts(t *testing.T) (*fsutil.MemoryFileSystem, *artifact.Resolver) {
	t.Helper()
	mem := fsutil.NewMemoryFileSystem()
	r := artifact.NewResolver(artifact.Options{
		Roots:  []string{MemoryRoot},
		FS:     mem,
		Codecs: Codecs(),
	})
	_, err := fixtures.WriteDemoArtifacts(r, MemoryRoot, "preprocessor", "model")
	AssertNoError(t, err)
	return mem, r
}

// DiskArtifacts writes the demo pair into a fresh temporary directory and
// returns that directory.
func DiskArtifacts(t *testing.T) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), artifact.DefaultDir)
	r := artifact.NewResolver(artifact.Options{Roots: []string{dir}, Codecs: Codecs()})
	_, err := fixtures.WriteDemoArtifacts(r, dir, "preprocessor", "model")
	AssertNoError(t, err)
	return dir
}

// CaptureLogs redirects monitoring.Logf into a Recorder for the rest of the
// test. Tests using it must not run in parallel with others that log.
func CaptureLogs(t *testing.T) *monitoring.Recorder {
	t.Helper()
	prev := monitoring.Logf
	rec := &monitoring.Recorder{}
	monitoring.SetLogger(rec.Logf)
	t.Cleanup(func() { monitoring.SetLogger(prev) })
	return rec
}

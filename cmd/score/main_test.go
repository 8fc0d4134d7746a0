package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/score.report/internal/config"
	"github.com/banshee-data/score.report/internal/fixtures"
	"github.com/banshee-data/score.report/internal/inference"
	"github.com/banshee-data/score.report/internal/testutil"
)

func noEnv(string) string { return "" }

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestFlagDefaults(t *testing.T) {
	assert.Equal(t, "", *configPath)
	assert.Equal(t, "", *listen)
	assert.Equal(t, "", *artifactsDir)
	assert.Equal(t, "", *dbPath)
	assert.False(t, *showVersion)
}

func TestResolveConfigDefaults(t *testing.T) {
	cfg, err := resolveConfig("", "", "", "", noEnv)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultListen, cfg.GetListen())
	assert.Nil(t, cfg.GetArtifactRoots())
}

func TestResolveConfigPort(t *testing.T) {
	env := func(k string) string {
		if k == "PORT" {
			return "9090"
		}
		return ""
	}

	cfg, err := resolveConfig("", "", "", "", env)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.GetListen())

	cfg, err = resolveConfig("", "127.0.0.1:7000", "", "", env)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:7000", cfg.GetListen(), "flag wins over $PORT")

	path := writeConfig(t, `{"listen": ":8181"}`)
	cfg, err = resolveConfig(path, "", "", "", env)
	require.NoError(t, err)
	assert.Equal(t, ":8181", cfg.GetListen(), "config file wins over $PORT")
}

func TestResolveConfigPortWithDefaultsFile(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(filepath.Join("..", "..")))
	t.Cleanup(func() { os.Chdir(wd) })
	require.FileExists(t, config.DefaultConfigPath)

	cfg, err := resolveConfig("", "", "", "", func(k string) string {
		if k == "PORT" {
			return "9999"
		}
		return ""
	})
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.GetListen())
	assert.Equal(t, config.DefaultDBPath, cfg.GetDBPath())
}

func TestResolveConfigOverrides(t *testing.T) {
	path := writeConfig(t, `{"artifact_roots": ["/opt/a"], "db_path": "a.db", "model_name": "gbm"}`)

	cfg, err := resolveConfig(path, "", "/srv/artifacts", "b.db", noEnv)
	require.NoError(t, err)
	assert.Equal(t, []string{"/srv/artifacts"}, cfg.GetArtifactRoots())
	assert.Equal(t, "b.db", cfg.GetDBPath())
	assert.Equal(t, "gbm", cfg.GetModelName())
}

func TestResolveConfigErrors(t *testing.T) {
	_, err := resolveConfig(filepath.Join(t.TempDir(), "missing.json"), "", "", "", noEnv)
	assert.Error(t, err)

	path := writeConfig(t, `{"model_name": "../model"}`)
	_, err = resolveConfig(path, "", "", "", noEnv)
	assert.ErrorContains(t, err, "invalid config")
}

func newTestApp(t *testing.T, record bool) *app {
	t.Helper()
	dir := testutil.DiskArtifacts(t)
	body := `{"record_predictions": false}`
	if record {
		body = `{"record_predictions": true, "cache_artifacts": true}`
	}
	cfg, err := resolveConfig(writeConfig(t, body), "", dir, filepath.Join(t.TempDir(), "score.db"), noEnv)
	require.NoError(t, err)

	a, err := newApp(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func TestAppServesPredictions(t *testing.T) {
	a := newTestApp(t, true)

	req := httptest.NewRequest(http.MethodPost, "/api/predict", strings.NewReader(`{
		"gender": "male", "race_ethnicity": "group A",
		"parental_level_of_education": "bachelor's degree", "lunch": "standard",
		"test_preparation_course": "none", "reading_score": 75, "writing_score": 80}`))
	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)

	var got struct {
		Prediction float64 `json:"prediction"`
	}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.InDelta(t, fixtures.SamplePrediction, got.Prediction, 1e-9)

	preds, err := a.db.RecentPredictions(5)
	require.NoError(t, err)
	assert.Len(t, preds, 1)
}

func TestAppHealthAndAdmin(t *testing.T) {
	a := newTestApp(t, true)
	assert.Equal(t, inference.StatusHealthy, a.pipeline.Check().Status)

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, testutil.NewTestRequest(http.MethodGet, "/health"))
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)

	req := testutil.NewTestRequest(http.MethodGet, "/debug/db-stats")
	req.RemoteAddr = "127.0.0.1:12345"
	rr = httptest.NewRecorder()
	a.handler.ServeHTTP(rr, req)
	testutil.AssertStatusCode(t, rr.Code, http.StatusOK)
	assert.Contains(t, rr.Body.String(), "predictions")
}

func TestAppWithoutPredictionLog(t *testing.T) {
	a := newTestApp(t, false)
	assert.Nil(t, a.db)
	assert.NoError(t, a.Close())

	rr := httptest.NewRecorder()
	a.handler.ServeHTTP(rr, testutil.NewTestRequest(http.MethodGet, "/api/predictions"))
	testutil.AssertStatusCode(t, rr.Code, http.StatusServiceUnavailable)
}

func TestAppShutdownTimeoutFromConfig(t *testing.T) {
	cfg, err := resolveConfig(writeConfig(t, `{"shutdown_timeout": "250ms"}`), "", "", "", noEnv)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.GetShutdownTimeout())
}

package db

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
)

func TestAttachAdminRoutes(t *testing.T) {
	db := newTestDB(t)
	if db.Path() == "" || filepath.Base(db.Path()) != "test.db" {
		t.Errorf("Path() = %q", db.Path())
	}

	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		t.Fatalf("AttachAdminRoutes: %v", err)
	}

	// tsweb only serves /debug/ to loopback or tailnet callers.
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, loopbackRequest(http.MethodGet, "/debug/"))
	if rr.Code != http.StatusOK {
		t.Errorf("/debug/ status = %d, want 200", rr.Code)
	}
}

func TestBackupHandler(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.RecordPrediction(Prediction{Input: sampleInput(), Value: floatPtr(80)}); err != nil {
		t.Fatalf("RecordPrediction: %v", err)
	}

	rr := httptest.NewRecorder()
	db.serveBackup(rr, httptest.NewRequest(http.MethodGet, "/debug/backup", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("backup status = %d: %s", rr.Code, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Encoding"); got != "gzip" {
		t.Errorf("Content-Encoding = %q", got)
	}
	if rr.Body.Len() == 0 {
		t.Error("empty backup body")
	}
}

func loopbackRequest(method, target string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.RemoteAddr = "127.0.0.1:12345"
	return req
}

func TestAdminRoutesRegistered(t *testing.T) {
	db := newTestDB(t)
	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		t.Fatalf("AttachAdminRoutes: %v", err)
	}

	for _, endpoint := range []string{"/debug/db-stats", "/debug/backup", "/debug/tailsql/"} {
		t.Run(endpoint, func(t *testing.T) {
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, endpoint, nil))
			if w.Code == http.StatusNotFound {
				t.Errorf("Endpoint %s should be registered, got 404", endpoint)
			}
		})
	}
}

func TestDBStatsEndpoint(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.RecordPrediction(Prediction{Input: sampleInput(), Value: floatPtr(80)}); err != nil {
		t.Fatalf("RecordPrediction: %v", err)
	}
	mux := http.NewServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		t.Fatalf("AttachAdminRoutes: %v", err)
	}

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, loopbackRequest(http.MethodGet, "/debug/db-stats"))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var stats DatabaseStats
	if err := json.NewDecoder(w.Body).Decode(&stats); err != nil {
		t.Fatalf("failed to decode JSON: %v", err)
	}
	if stats.MigrationVersion != 2 {
		t.Errorf("migration_version = %d", stats.MigrationVersion)
	}
	found := false
	for _, table := range stats.Tables {
		if table.Name == "predictions" {
			found = true
			if table.RowCount != 1 {
				t.Errorf("predictions row_count = %d, want 1", table.RowCount)
			}
		}
	}
	if !found {
		t.Errorf("predictions table missing from %+v", stats.Tables)
	}
}

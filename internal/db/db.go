// Package db stores the prediction log in SQLite.
package db

import (
	"compress/gzip"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"
	"tailscale.com/tsweb"

	"github.com/banshee-data/score.report/internal/monitoring"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps the prediction log database.
type DB struct {
	*sql.DB
	path string
}

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
}

// OpenDB opens path and applies pragmas without migrating.
func OpenDB(path string) (*DB, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return &DB{DB: sqlDB, path: path}, nil
}

// NewDB opens path and migrates it to the latest schema.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}
	if err := db.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Path returns the database file path.
func (db *DB) Path() string { return db.path }

// AttachAdminRoutes mounts the tsweb debugger on mux with a tailsql console
// over the prediction log and a backup download.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+filepath.Base(db.path), db.DB, &tailsql.DBOptions{
		Label: "Prediction log",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("db-stats", "Table row counts and schema version", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats, err := db.GetDatabaseStats()
		if err != nil {
			http.Error(w, fmt.Sprintf("Failed to get database stats: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(stats); err != nil {
			monitoring.Logf("Failed to encode database stats: %v", err)
		}
	}))
	debug.Handle("backup", "Create and download a backup of the database now", http.HandlerFunc(db.serveBackup))
	return nil
}

func (db *DB) serveBackup(w http.ResponseWriter, r *http.Request) {
	name := fmt.Sprintf("backup-%d.db", time.Now().Unix())
	backupPath := filepath.Join(os.TempDir(), name)
	if _, err := db.Exec("VACUUM INTO ?", backupPath); err != nil {
		http.Error(w, fmt.Sprintf("Failed to create backup: %v", err), http.StatusInternalServerError)
		return
	}
	defer func() {
		if err := os.Remove(backupPath); err != nil {
			monitoring.Logf("Failed to remove backup file: %v", err)
		}
	}()

	backupFile, err := os.Open(backupPath)
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to open backup file: %v", err), http.StatusInternalServerError)
		return
	}
	defer backupFile.Close()

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", name))
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Encoding", "gzip")

	gz := gzip.NewWriter(w)
	defer gz.Close()
	if _, err := io.Copy(gz, backupFile); err != nil {
		monitoring.Logf("Failed to write backup: %v", err)
	}
}

// TableStats is the row count of one table.
type TableStats struct {
	Name     string `json:"name"`
	RowCount int64  `json:"row_count"`
}

// DatabaseStats describes the database for the debug console.
type DatabaseStats struct {
	Tables           []TableStats `json:"tables"`
	MigrationVersion uint         `json:"migration_version"`
	Dirty            bool         `json:"dirty"`
}

// GetDatabaseStats counts rows in every user table.
func (db *DB) GetDatabaseStats() (DatabaseStats, error) {
	var stats DatabaseStats
	rows, err := db.Query(`SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return stats, err
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return stats, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, err
	}

	stats.Tables = make([]TableStats, 0, len(names))
	for _, name := range names {
		var n int64
		// Names come from sqlite_master, not from callers.
		if err := db.QueryRow(fmt.Sprintf(`SELECT COUNT(*) FROM %q`, name)).Scan(&n); err != nil {
			return stats, fmt.Errorf("count %s: %w", name, err)
		}
		stats.Tables = append(stats.Tables, TableStats{Name: name, RowCount: n})
	}

	stats.MigrationVersion, stats.Dirty, err = db.MigrateVersion()
	return stats, err
}

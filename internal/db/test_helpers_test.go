package db

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/banshee-data/score.report/internal/feature"
)

func floatPtr(f float64) *float64 {
	return &f
}

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to create database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleInput() feature.Input {
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

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

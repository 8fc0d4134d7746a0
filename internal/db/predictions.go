package db

import (
	"database/sql"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/score.report/internal/feature"
)

// Prediction is one logged request. Exactly one of Value or ErrorKind is set.
type Prediction struct {
	RequestID    string        `json:"request_id"`
	CreatedAt    time.Time     `json:"created_at"`
	Input        feature.Input `json:"input"`
	Value        *float64      `json:"prediction,omitempty"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	ErrorMessage string        `json:"error_message,omitempty"`
	Duration     time.Duration `json:"-"`
	DurationMs   float64       `json:"duration_ms"`
}

// Succeeded reports whether the request produced a value.
func (p Prediction) Succeeded() bool { return p.Value != nil }

// RecordPrediction inserts p, assigning a request ID and timestamp when
// absent. It returns the stored request ID.
func (db *DB) RecordPrediction(p Prediction) (string, error) {
	if p.RequestID == "" {
		p.RequestID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	var value sql.NullFloat64
	if p.Value != nil {
		value = sql.NullFloat64{Float64: *p.Value, Valid: true}
	}
	var kind, msg sql.NullString
	if p.ErrorKind != "" {
		kind = sql.NullString{String: p.ErrorKind, Valid: true}
		msg = sql.NullString{String: p.ErrorMessage, Valid: true}
	}
	if value.Valid == kind.Valid {
		return "", fmt.Errorf("prediction %s must have exactly one of a value or an error kind", p.RequestID)
	}

	_, err := db.Exec(
		`INSERT INTO predictions (
			request_id, created_at, gender, race_ethnicity, parental_level_of_education,
			lunch, test_preparation_course, reading_score, writing_score,
			prediction, error_kind, error_message, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.RequestID, p.CreatedAt.UnixNano(),
		p.Input.Gender, p.Input.RaceEthnicity, p.Input.ParentalLevelOfEducation,
		p.Input.Lunch, p.Input.TestPreparationCourse, p.Input.ReadingScore, p.Input.WritingScore,
		value, kind, msg, float64(p.Duration)/float64(time.Millisecond),
	)
	if err != nil {
		return "", fmt.Errorf("failed to record prediction: %w", err)
	}
	return p.RequestID, nil
}

// RecentPredictions returns up to limit entries, newest first.
func (db *DB) RecentPredictions(limit int) ([]Prediction, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be positive, got %d", limit)
	}
	rows, err := db.Query(`SELECT request_id, created_at, gender, race_ethnicity,
			parental_level_of_education, lunch, test_preparation_course,
			reading_score, writing_score, prediction, error_kind, error_message, duration_ms
		FROM predictions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Prediction
	for rows.Next() {
		var (
			p         Prediction
			createdAt int64
			value     sql.NullFloat64
			kind, msg sql.NullString
		)
		if err := rows.Scan(
			&p.RequestID, &createdAt,
			&p.Input.Gender, &p.Input.RaceEthnicity, &p.Input.ParentalLevelOfEducation,
			&p.Input.Lunch, &p.Input.TestPreparationCourse,
			&p.Input.ReadingScore, &p.Input.WritingScore,
			&value, &kind, &msg, &p.DurationMs,
		); err != nil {
			return nil, err
		}
		p.CreatedAt = time.Unix(0, createdAt).UTC()
		p.Duration = time.Duration(p.DurationMs * float64(time.Millisecond))
		if value.Valid {
			v := value.Float64
			p.Value = &v
		}
		p.ErrorKind = kind.String
		p.ErrorMessage = msg.String
		out = append(out, p)
	}
	return out, rows.Err()
}

// PredictionStats summarises the prediction log.
type PredictionStats struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Mean      float64        `json:"mean"`
	StdDev    float64        `json:"stddev"`
	Min       float64        `json:"min"`
	Max       float64        `json:"max"`
	P50       float64        `json:"p50"`
	Failures  map[string]int `json:"failures"`
}

// PredictionStats computes summary statistics over every successful
// prediction and counts failures by kind.
func (db *DB) PredictionStats() (PredictionStats, error) {
	s := PredictionStats{Failures: map[string]int{}}

	values, err := db.PredictionValues(0)
	if err != nil {
		return s, err
	}
	s.Succeeded = len(values)
	s.Total = len(values)
	if len(values) > 0 {
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)
		s.Min = floats.Min(sorted)
		s.Max = floats.Max(sorted)
		s.P50 = stat.Quantile(0.5, stat.Empirical, sorted, nil)
		if len(values) > 1 {
			s.Mean, s.StdDev = stat.MeanStdDev(values, nil)
		} else {
			s.Mean = values[0]
		}
		if math.IsNaN(s.StdDev) {
			s.StdDev = 0
		}
	}

	rows, err := db.Query(`SELECT error_kind, COUNT(*) FROM predictions
		WHERE error_kind IS NOT NULL GROUP BY error_kind`)
	if err != nil {
		return s, err
	}
	defer rows.Close()
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return s, err
		}
		s.Failures[kind] = n
		s.Total += n
	}
	return s, rows.Err()
}

// PredictionValues returns successful prediction values, oldest first. A
// limit of 0 returns all of them; otherwise the most recent limit values.
func (db *DB) PredictionValues(limit int) ([]float64, error) {
	query := `SELECT prediction FROM (
			SELECT prediction, created_at, rowid AS seq FROM predictions
			WHERE prediction IS NOT NULL ORDER BY created_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	query += `) ORDER BY created_at ASC, seq ASC`

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

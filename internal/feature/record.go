// Package feature holds the student-performance feature record, its
// validation rules and the tabular batch handed to the preprocessor.
package feature

import (
	"math"
	"strconv"
	"strings"

	"github.com/banshee-data/score.report/internal/failure"
)

// Column names, in the order the preprocessor was fit on.
const (
	Gender                   = "gender"
	RaceEthnicity            = "race_ethnicity"
	ParentalLevelOfEducation = "parental_level_of_education"
	Lunch                    = "lunch"
	TestPreparationCourse    = "test_preparation_course"
	ReadingScore             = "reading_score"
	WritingScore             = "writing_score"
)

// Score bounds, inclusive.
const (
	MinScore = 0.0
	MaxScore = 100.0
)

// Columns is the fixed column order of every Batch.
var Columns = []string{
	Gender,
	RaceEthnicity,
	ParentalLevelOfEducation,
	Lunch,
	TestPreparationCourse,
	ReadingScore,
	WritingScore,
}

// CategoricalColumns are the string-valued columns.
var CategoricalColumns = Columns[:5]

// NumericColumns are the float-valued columns.
var NumericColumns = Columns[5:]

// IsNumeric reports whether the named column holds scores.
func IsNumeric(column string) bool {
	return column == ReadingScore || column == WritingScore
}

// Input is an unvalidated observation as supplied by a caller. Scores are
// kept as text so absent and non-numeric values can be reported.
type Input struct {
	Gender                   string `json:"gender"`
	RaceEthnicity            string `json:"race_ethnicity"`
	ParentalLevelOfEducation string `json:"parental_level_of_education"`
	Lunch                    string `json:"lunch"`
	TestPreparationCourse    string `json:"test_preparation_course"`
	ReadingScore             string `json:"reading_score"`
	WritingScore             string `json:"writing_score"`
}

// Record is a validated observation. The zero value is not valid; obtain
// one from Input.Validate or NewRecord.
type Record struct {
	gender                   string
	raceEthnicity            string
	parentalLevelOfEducation string
	lunch                    string
	testPreparationCourse    string
	readingScore             float64
	writingScore             float64
	valid                    bool
}

// Validate checks every categorical field first and reports all absent ones
// together, then checks the scores in column order, stopping at the first
// bad one. Categorical values are stored trimmed; a blank value is absent.
func (in Input) Validate() (Record, error) {
	cats := [...]struct {
		name, value string
	}{
		{Gender, in.Gender},
		{RaceEthnicity, in.RaceEthnicity},
		{ParentalLevelOfEducation, in.ParentalLevelOfEducation},
		{Lunch, in.Lunch},
		{TestPreparationCourse, in.TestPreparationCourse},
	}
	var missing []string
	for i := range cats {
		cats[i].value = strings.TrimSpace(cats[i].value)
		if cats[i].value == "" {
			missing = append(missing, cats[i].name)
		}
	}
	if len(missing) > 0 {
		return Record{}, failure.Missing(missing...)
	}

	reading, err := parseScore(ReadingScore, in.ReadingScore)
	if err != nil {
		return Record{}, err
	}
	writing, err := parseScore(WritingScore, in.WritingScore)
	if err != nil {
		return Record{}, err
	}

	return Record{
		gender:                   cats[0].value,
		raceEthnicity:            cats[1].value,
		parentalLevelOfEducation: cats[2].value,
		lunch:                    cats[3].value,
		testPreparationCourse:    cats[4].value,
		readingScore:             reading,
		writingScore:             writing,
		valid:                    true,
	}, nil
}

// NewRecord validates typed values.
func NewRecord(gender, raceEthnicity, parentalLevelOfEducation, lunch, testPreparationCourse string, readingScore, writingScore float64) (Record, error) {
	return Input{
		Gender:                   gender,
		RaceEthnicity:            raceEthnicity,
		ParentalLevelOfEducation: parentalLevelOfEducation,
		Lunch:                    lunch,
		TestPreparationCourse:    testPreparationCourse,
		ReadingScore:             FormatScore(readingScore),
		WritingScore:             FormatScore(writingScore),
	}.Validate()
}

// FormatScore renders a score the way Input expects it.
func FormatScore(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func parseScore(field, raw string) (float64, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, failure.BadScore(field, raw, "score is required")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, failure.BadScore(field, raw, "score must be numeric")
	}
	if v < MinScore || v > MaxScore {
		return 0, failure.BadScore(field, raw, "score must be between 0 and 100")
	}
	return v, nil
}

// Valid reports whether r came from validation.
func (r Record) Valid() bool { return r.valid }

func (r Record) Gender() string                   { return r.gender }
func (r Record) RaceEthnicity() string            { return r.raceEthnicity }
func (r Record) ParentalLevelOfEducation() string { return r.parentalLevelOfEducation }
func (r Record) Lunch() string                    { return r.lunch }
func (r Record) TestPreparationCourse() string    { return r.testPreparationCourse }
func (r Record) ReadingScore() float64            { return r.readingScore }
func (r Record) WritingScore() float64            { return r.writingScore }

// Input converts the record back to caller form, e.g. for logging.
func (r Record) Input() Input {
	return Input{
		Gender:                   r.gender,
		RaceEthnicity:            r.raceEthnicity,
		ParentalLevelOfEducation: r.parentalLevelOfEducation,
		Lunch:                    r.lunch,
		TestPreparationCourse:    r.testPreparationCourse,
		ReadingScore:             FormatScore(r.readingScore),
		WritingScore:             FormatScore(r.writingScore),
	}
}

// categorical returns the value of a string column; ok is false for numeric
// or unknown columns.
func (r Record) categorical(column string) (string, bool) {
	switch column {
	case Gender:
		return r.gender, true
	case RaceEthnicity:
		return r.raceEthnicity, true
	case ParentalLevelOfEducation:
		return r.parentalLevelOfEducation, true
	case Lunch:
		return r.lunch, true
	case TestPreparationCourse:
		return r.testPreparationCourse, true
	}
	return "", false
}

func (r Record) numeric(column string) (float64, bool) {
	switch column {
	case ReadingScore:
		return r.readingScore, true
	case WritingScore:
		return r.writingScore, true
	}
	return 0, false
}

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/score.report/internal/db"
	"github.com/banshee-data/score.report/internal/failure"
	"github.com/banshee-data/score.report/internal/feature"
	"github.com/banshee-data/score.report/internal/httputil"
	"github.com/banshee-data/score.report/internal/monitoring"
)

const maxPredictBody = 64 << 10

// scoreText accepts a JSON number, a JSON string or null and keeps it as
// text so validation can report the original value.
type scoreText string

func (s *scoreText) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*s = ""
	case len(data) > 0 && data[0] == '"':
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = scoreText(v)
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("score must be a number or a string, got %s", data)
		}
		*s = scoreText(n.String())
	}
	return nil
}

// predictRequest is the /api/predict body. "ethnicity" is accepted as an
// alias for race_ethnicity, matching the form field name.
type predictRequest struct {
	Gender                   string    `json:"gender"`
	RaceEthnicity            string    `json:"race_ethnicity"`
	Ethnicity                string    `json:"ethnicity"`
	ParentalLevelOfEducation string    `json:"parental_level_of_education"`
	Lunch                    string    `json:"lunch"`
	TestPreparationCourse    string    `json:"test_preparation_course"`
	ReadingScore             scoreText `json:"reading_score"`
	WritingScore             scoreText `json:"writing_score"`
}

func (p predictRequest) input() feature.Input {
	race := p.RaceEthnicity
	if race == "" {
		race = p.Ethnicity
	}
	return feature.Input{
		Gender:                   p.Gender,
		RaceEthnicity:            race,
		ParentalLevelOfEducation: p.ParentalLevelOfEducation,
		Lunch:                    p.Lunch,
		TestPreparationCourse:    p.TestPreparationCourse,
		ReadingScore:             string(p.ReadingScore),
		WritingScore:             string(p.WritingScore),
	}
}

type predictResponse struct {
	RequestID  string  `json:"request_id"`
	Prediction float64 `json:"prediction"`
}

func (s *Server) handlePredictAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}

	var req predictRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxPredictBody))
	if err := dec.Decode(&req); err != nil {
		httputil.BadRequest(w, fmt.Sprintf("invalid JSON body: %v", err))
		return
	}

	requestID, value, err := s.predict(req.input())
	w.Header().Set(RequestIDHeader, requestID)
	if err != nil {
		httputil.WriteFailure(w, requestID, err)
		return
	}
	httputil.WriteJSONOK(w, predictResponse{RequestID: requestID, Prediction: value})
}

// homePage is the data behind home.html.tmpl.
type homePage struct {
	Input     feature.Input
	Result    string
	RequestID string

	Genders, RaceEthnicities, Educations, Lunches, TestPreps []string
}

func newHomePage(in feature.Input) homePage {
	return homePage{
		Input:           in,
		Genders:         feature.Categories(feature.Gender),
		RaceEthnicities: feature.Categories(feature.RaceEthnicity),
		Educations:      feature.Categories(feature.ParentalLevelOfEducation),
		Lunches:         feature.Categories(feature.Lunch),
		TestPreps:       feature.Categories(feature.TestPreparationCourse),
	}
}

func (s *Server) handlePredictForm(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.renderHome(w, http.StatusOK, newHomePage(feature.Input{}))
	case http.MethodPost:
		r.Body = http.MaxBytesReader(w, r.Body, maxPredictBody)
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, fmt.Sprintf("invalid form: %v", err))
			return
		}
		in := feature.Input{
			Gender:                   r.PostFormValue("gender"),
			RaceEthnicity:            r.PostFormValue("ethnicity"),
			ParentalLevelOfEducation: r.PostFormValue("parental_level_of_education"),
			Lunch:                    r.PostFormValue("lunch"),
			TestPreparationCourse:    r.PostFormValue("test_preparation_course"),
			ReadingScore:             r.PostFormValue("reading_score"),
			WritingScore:             r.PostFormValue("writing_score"),
		}
		monitoring.Logf("[api] form data: gender=%q ethnicity=%q parental_education=%q lunch=%q test_course=%q writing=%q reading=%q",
			in.Gender, in.RaceEthnicity, in.ParentalLevelOfEducation, in.Lunch, in.TestPreparationCourse, in.WritingScore, in.ReadingScore)

		page := newHomePage(in)
		requestID, value, err := s.predict(in)
		page.RequestID = requestID
		w.Header().Set(RequestIDHeader, requestID)
		status := http.StatusOK
		if err != nil {
			page.Result = formMessage(err)
			status = httputil.StatusFor(err)
		} else {
			page.Result = strconv.FormatFloat(value, 'f', -1, 64)
		}
		s.renderHome(w, status, page)
	default:
		httputil.MethodNotAllowed(w)
	}
}

func (s *Server) renderHome(w http.ResponseWriter, status int, page homePage) {
	var buf bytes.Buffer
	if err := homeTemplate.Execute(&buf, page); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render page: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// formMessage is the user-facing text for a failed form submission.
func formMessage(err error) string {
	var fe *failure.Error
	errors.As(err, &fe)
	switch {
	case failure.KindOf(err) == failure.MissingField:
		return "Error: All fields are required (missing " + strings.Join(fe.Fields, ", ") + ")"
	case failure.KindOf(err) == failure.InvalidScore:
		return "Error: Invalid input data - " + err.Error()
	case failure.Root(err).IsArtifact():
		return "Error: Model files not found. Please check deployment."
	default:
		return "Error: An unexpected error occurred - " + err.Error()
	}
}

// predict runs the pipeline and records the outcome.
func (s *Server) predict(in feature.Input) (string, float64, error) {
	requestID := uuid.New().String()
	start := s.clock.Now()
	value, err := s.pipeline.Predict(in)
	s.record(requestID, in, value, err, s.clock.Since(start))
	if err != nil {
		monitoring.Logf("[api] request %s failed: %v", requestID, err)
	}
	return requestID, value, err
}

func (s *Server) record(requestID string, in feature.Input, value float64, err error, d time.Duration) {
	if s.db == nil || !s.cfg.GetRecordPredictions() {
		return
	}
	p := db.Prediction{
		RequestID: requestID,
		CreatedAt: s.clock.Now(),
		Input:     in,
		Duration:  d,
	}
	if err != nil {
		p.ErrorKind = failure.Root(err).String()
		p.ErrorMessage = err.Error()
	} else {
		p.Value = &value
	}
	if _, rerr := s.db.RecordPrediction(p); rerr != nil {
		monitoring.Logf("[api] failed to record prediction %s: %v", requestID, rerr)
	}
}

// Package api serves the prediction form, the JSON prediction endpoint and
// the operational endpoints around them.
package api

import (
	"embed"
	"html/template"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/score.report/internal/config"
	"github.com/banshee-data/score.report/internal/db"
	"github.com/banshee-data/score.report/internal/httputil"
	"github.com/banshee-data/score.report/internal/inference"
	"github.com/banshee-data/score.report/internal/monitoring"
	"github.com/banshee-data/score.report/internal/timeutil"
	"github.com/banshee-data/score.report/internal/version"
)

// ANSI escape codes for request logging
const colorCyan = "\033[36m"
const colorReset = "\033[0m"
const colorYellow = "\033[33m"
const colorBoldGreen = "\033[1;32m"
const colorBoldRed = "\033[1;31m"

// RequestIDHeader carries the request ID on every prediction response.
const RequestIDHeader = "X-Request-ID"

//go:embed templates/*.html.tmpl
var templateFS embed.FS

var (
	indexTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html.tmpl"))
	homeTemplate  = template.Must(template.ParseFS(templateFS, "templates/home.html.tmpl"))
)

// Options configures a Server. Only Pipeline is required; without a DB the
// prediction log endpoints report that history is disabled.
type Options struct {
	Pipeline *inference.Pipeline
	DB       *db.DB
	Config   *config.ServerConfig
	Clock    timeutil.Clock
}

type Server struct {
	pipeline *inference.Pipeline
	db       *db.DB
	cfg      *config.ServerConfig
	clock    timeutil.Clock
}

func NewServer(opts Options) *Server {
	s := &Server{
		pipeline: opts.Pipeline,
		db:       opts.DB,
		cfg:      opts.Config,
		clock:    opts.Clock,
	}
	if s.cfg == nil {
		s.cfg = config.EmptyServerConfig()
	}
	if s.clock == nil {
		s.clock = timeutil.RealClock{}
	}
	return s
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs method, path, query, status, and duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// ServeMux returns the service routes. Admin routes are attached separately
// by the caller.
func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/predictdata", s.handlePredictForm)
	mux.HandleFunc("/api/predict", s.handlePredictAPI)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/config", s.showConfig)
	mux.HandleFunc("/api/predictions", s.listPredictions)
	mux.HandleFunc("/api/predictions/stats", s.showPredictionStats)
	mux.HandleFunc("/api/predictions/histogram.png", s.predictionHistogram)
	mux.HandleFunc("/charts/predictions", s.predictionChart)
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, struct{ Version string }{version.Version}); err != nil {
		monitoring.Logf("failed to render index: %v", err)
	}
}

func (s *Server) showConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	httputil.WriteJSONOK(w, struct {
		config.Summary
		HistoryEnabled bool         `json:"history_enabled"`
		Version        version.Info `json:"version"`
	}{
		Summary:        s.cfg.Summary(),
		HistoryEnabled: s.db != nil,
		Version:        version.Current(),
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	h := s.pipeline.Check()
	monitoring.Logf("[health] status=%s preprocessor_exists=%t model_exists=%t model_loaded=%t",
		h.Status, h.Preprocessor.Exists, h.Model.Exists, h.ModelLoaded)

	status := http.StatusOK
	if h.Status != inference.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, status, struct {
		inference.Health
		Version string `json:"version"`
	}{h, version.Version})
}

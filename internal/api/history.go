package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/score.report/internal/db"
	"github.com/banshee-data/score.report/internal/httputil"
)

const echartsAssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

const maxHistoryLimit = 10000

// historyLimit reads the limit query parameter, defaulting to the
// configured history limit.
func (s *Server) historyLimit(r *http.Request) (int, error) {
	limit := s.cfg.GetHistoryLimit()
	if l := r.URL.Query().Get("limit"); l != "" {
		v, err := strconv.Atoi(l)
		if err != nil || v < 1 || v > maxHistoryLimit {
			return 0, fmt.Errorf("invalid 'limit' parameter %q", l)
		}
		limit = v
	}
	return limit, nil
}

// historyRequest checks method and availability shared by every history
// endpoint and returns the limit.
func (s *Server) historyRequest(w http.ResponseWriter, r *http.Request) (int, bool) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return 0, false
	}
	if s.db == nil {
		httputil.WriteJSONError(w, http.StatusServiceUnavailable, "prediction log is disabled")
		return 0, false
	}
	limit, err := s.historyLimit(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return 0, false
	}
	return limit, true
}

func (s *Server) listPredictions(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.historyRequest(w, r)
	if !ok {
		return
	}
	preds, err := s.db.RecentPredictions(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve predictions: %v", err))
		return
	}
	if preds == nil {
		preds = []db.Prediction{}
	}
	httputil.WriteJSONOK(w, preds)
}

func (s *Server) showPredictionStats(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.historyRequest(w, r); !ok {
		return
	}
	stats, err := s.db.PredictionStats()
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to compute prediction stats: %v", err))
		return
	}
	httputil.WriteJSONOK(w, stats)
}

// predictionChart renders the most recent successful predictions as a line
// chart.
func (s *Server) predictionChart(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.historyRequest(w, r)
	if !ok {
		return
	}
	values, err := s.db.PredictionValues(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve predictions: %v", err))
		return
	}

	x := make([]string, len(values))
	y := make([]opts.LineData, len(values))
	for i, v := range values {
		x[i] = strconv.Itoa(i + 1)
		y[i] = opts.LineData{Value: v}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Predicted math scores", Width: "100%", Height: "540px", AssetsHost: echartsAssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: "Predicted math scores", Subtitle: fmt.Sprintf("last %d successful predictions", len(values))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "request", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "score", Min: 0, Max: 100}),
	)
	line.SetXAxis(x).AddSeries("prediction", y)

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// predictionHistogram renders a PNG histogram of recent predictions.
func (s *Server) predictionHistogram(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.historyRequest(w, r)
	if !ok {
		return
	}
	values, err := s.db.PredictionValues(limit)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("Failed to retrieve predictions: %v", err))
		return
	}
	if len(values) == 0 {
		httputil.NotFound(w, "no predictions recorded")
		return
	}

	bins := 20
	if len(values) < bins {
		bins = len(values)
	}
	hist, err := plotter.NewHist(plotter.Values(values), bins)
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to build histogram: %v", err))
		return
	}

	p := plot.New()
	p.Title.Text = "Predicted math scores"
	p.X.Label.Text = "score"
	p.Y.Label.Text = "count"
	p.Add(hist)

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render histogram: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render histogram: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

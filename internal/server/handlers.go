package server

import (
	"bytes"
	"errors"
	"net/http"
	"strings"
	"time"

	"benchsite/internal/bench"
	"benchsite/internal/chart"

	"github.com/gorilla/mux"
	"github.com/klauspost/compress/gzhttp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	gzip := func(h http.HandlerFunc) http.Handler { return gzhttp.GzipHandler(h) }

	r.Handle("/", gzip(s.handleIndex)).Methods("GET")
	r.Handle("/api/view", gzip(s.handleView)).Methods("GET")
	r.Handle("/chart.svg", gzip(s.handleChartSVG)).Methods("GET")
	r.HandleFunc("/api/frameworks/{name}", s.handleFramework).Methods("GET")
	r.HandleFunc("/api/trend", s.handleTrend).Methods("GET")
	r.HandleFunc("/notice/dismiss", s.handleDismiss).Methods("POST")
	r.HandleFunc("/ws", s.handleWebSocket).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods("GET")

	return r
}

// modeParam reads the mode query parameter; absent means actual.
func modeParam(r *http.Request) (bench.Mode, error) {
	return bench.ParseMode(r.URL.Query().Get("mode"))
}

// view builds the view for mode from the current chart.
func (s *Server) view(mode bench.Mode) (chart.View, error) {
	v, err := s.chart.Load().UpdateView(mode)
	if err != nil {
		return chart.View{}, err
	}
	s.metrics.ViewUpdated(mode.String(), v.Trend.Degenerate)
	return v, nil
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	mode, err := modeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	v, err := s.view(mode)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, v)
}

func (s *Server) handleChartSVG(w http.ResponseWriter, r *http.Request) {
	mode, err := modeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	start := time.Now()
	v, err := s.view(mode)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := chart.RenderSVG(&buf, v); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.metrics.ObserveRender(start)

	w.Header().Set("Content-Type", "image/svg+xml; charset=utf-8")
	writeTagged(w, r, buf.Bytes())
}

type frameworkResponse struct {
	Framework bench.Framework `json:"framework"`
	Mode      bench.Mode      `json:"mode"`
	Tooltip   bench.Tooltip   `json:"tooltip"`
	Point     chart.Point     `json:"point"`
}

func (s *Server) handleFramework(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	mode, err := modeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	c := s.chart.Load()
	f, err := c.Dataset().Lookup(name)
	if errors.Is(err, bench.ErrUnknownFramework) {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	v, err := s.view(mode)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	p, _ := v.Point(f.Name)

	writeJSON(w, r, http.StatusOK, frameworkResponse{
		Framework: f,
		Mode:      mode,
		Tooltip:   bench.TooltipFor(f, mode),
		Point:     p,
	})
}

type trendResponse struct {
	Mode       bench.Mode   `json:"mode"`
	Slope      chart.Number `json:"slope"`
	Intercept  chart.Number `json:"intercept"`
	Degenerate bool         `json:"degenerate"`
	Equation   string       `json:"equation"`
	Samples    int          `json:"samples"`
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	mode, err := modeParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	line, err := s.chart.Load().Trend(mode)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, trendResponse{
		Mode:       mode,
		Slope:      chart.Number(line.Slope()),
		Intercept:  chart.Number(line.Intercept()),
		Degenerate: line.Degenerate(),
		Equation:   line.String(),
		Samples:    line.Sums().N,
	})
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	n, visitor, err := s.noticeFor(w, r)
	if err != nil {
		s.serverError(w, r, err)
		return
	}

	expires, err := n.Dismiss(r.Context(), visitor)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	log.Debug().Str("notice", n.Name()).Time("expires", expires).Msg("notice dismissed")

	if strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, r, http.StatusOK, map[string]interface{}{
			"notice":    n.Name(),
			"dismissed": true,
			"expires":   expires,
		})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"status":     "ok",
		"source":     s.settings.DatasetSource,
		"frameworks": s.chart.Load().Dataset().Len(),
		"error_rate": s.metrics.ErrorRate(s.gatherer),
	}
	if t := s.loadedAt.Load(); t != nil {
		resp["loaded_at"] = *t
	}
	writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	s.metrics.Error()
	writeError(w, http.StatusInternalServerError, err)
}

// Package server serves the benchmark chart: the HTML page, the JSON and SVG
// views per mode, the deprecation notice, a websocket channel for switching
// modes, and the operational endpoints.
//
// The current chart is swapped atomically when the dataset is reloaded, so
// handlers never observe a partially built chart.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"benchsite/internal/bench"
	"benchsite/internal/cfg"
	"benchsite/internal/chart"
	"benchsite/internal/common"
	"benchsite/internal/metrics"
	"benchsite/internal/notice"
	"benchsite/internal/storage"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Options configures a Server.
type Options struct {
	Settings cfg.Settings
	Store    *storage.Store          // required for the bolt notice store, optional otherwise
	Metrics  *metrics.MetricsWrapper // nil disables metrics
	Gatherer prometheus.Gatherer     // served on /metrics; defaults to the global registry
	Clock    notice.Clock
	PongWait time.Duration // websocket read deadline; defaults to wsPongWait
}

// Server is the benchmark site.
type Server struct {
	settings cfg.Settings
	store    *storage.Store
	metrics  *metrics.MetricsWrapper
	gatherer prometheus.Gatherer
	now      notice.Clock
	loader   *bench.Loader

	chart    atomic.Pointer[chart.Chart]
	loadedAt atomic.Pointer[time.Time]
	reloadMu sync.Mutex

	boltNotice *notice.Notice // nil in cookie mode

	router     *mux.Router
	httpServer *http.Server
	scheduler  *cron.Cron
	upgrader   websocket.Upgrader
	pongWait   time.Duration

	clients   map[*wsClient]struct{}
	clientsMu sync.Mutex

	mu        sync.Mutex
	isRunning bool
}

// New builds the server and performs the initial dataset load.
func New(ctx context.Context, opts Options) (*Server, error) {
	s := &Server{
		settings: opts.Settings,
		store:    opts.Store,
		metrics:  opts.Metrics,
		gatherer: opts.Gatherer,
		now:      opts.Clock,
		loader:   bench.NewLoader(opts.Settings.RESTTimeout),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		clients:  make(map[*wsClient]struct{}),
		pongWait: opts.PongWait,
	}
	if s.pongWait <= 0 {
		s.pongWait = wsPongWait
	}
	if s.gatherer == nil {
		s.gatherer = prometheus.DefaultGatherer
	}
	if s.now == nil {
		s.now = time.Now
	}

	if s.settings.NoticeStore == common.NoticeStoreBolt {
		if s.store == nil {
			return nil, fmt.Errorf("notice store %q requires a storage backend", common.NoticeStoreBolt)
		}
		n, err := notice.New(s.settings.NoticeName, s.settings.NoticeTTL, s.store,
			notice.WithClock(s.now), notice.WithTracker(s.metrics))
		if err != nil {
			return nil, err
		}
		s.boltNotice = n
	}

	if err := s.Reload(ctx); err != nil {
		return nil, fmt.Errorf("initial dataset load: %w", err)
	}

	s.router = s.routes()
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.settings.Port),
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	scheduler, err := s.schedule()
	if err != nil {
		return nil, err
	}
	s.scheduler = scheduler

	return s, nil
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Chart returns the chart currently being served.
func (s *Server) Chart() *chart.Chart { return s.chart.Load() }

// schedule registers the dataset refresh and flag purge jobs. The cron specs
// were validated when the settings were loaded.
func (s *Server) schedule() (*cron.Cron, error) {
	c := cron.New()

	if spec := s.settings.DatasetRefresh; spec != "" {
		if _, err := c.AddFunc(spec, s.refreshJob); err != nil {
			return nil, fmt.Errorf("schedule dataset refresh %q: %w", spec, err)
		}
	}
	if spec := s.settings.PurgeSchedule; spec != "" && s.store != nil {
		if _, err := c.AddFunc(spec, s.purgeJob); err != nil {
			return nil, fmt.Errorf("schedule flag purge %q: %w", spec, err)
		}
	}
	return c, nil
}

func (s *Server) refreshJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*s.settings.RESTTimeout)
	defer cancel()

	if err := s.Reload(ctx); err != nil {
		log.Error().Err(err).Str("source", s.settings.DatasetSource).Msg("scheduled dataset refresh failed")
	}
}

func (s *Server) purgeJob() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	removed, err := s.store.Purge(ctx)
	if err != nil {
		log.Error().Err(err).Msg("flag purge failed")
		s.metrics.Error()
		return
	}
	s.metrics.FlagsPurged(removed)
	if removed > 0 {
		log.Info().Int("removed", removed).Msg("expired notice flags purged")
	}
}

// Start starts the scheduler and the HTTP listener.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("server is already running")
	}

	s.scheduler.Start()

	go func() {
		log.Info().
			Str("address", s.httpServer.Addr).
			Str("notice_store", s.settings.NoticeStore).
			Msg("Starting benchmark site")

		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server failed")
		}
	}()

	s.isRunning = true
	return nil
}

// Shutdown stops scheduled jobs, closes websocket clients and drains the
// HTTP server within ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return nil
	}

	<-s.scheduler.Stop().Done()

	s.clientsMu.Lock()
	for c := range s.clients {
		c.close()
	}
	s.clients = make(map[*wsClient]struct{})
	s.clientsMu.Unlock()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to shutdown HTTP server")
		return err
	}

	s.isRunning = false
	log.Info().Msg("Benchmark site stopped")
	return nil
}

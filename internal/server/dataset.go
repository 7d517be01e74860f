package server

import (
	"context"
	"fmt"
	"time"

	"benchsite/internal/bench"
	"benchsite/internal/chart"
	"benchsite/internal/storage"

	"github.com/rs/zerolog/log"
)

// Reload loads the configured dataset source, rebuilds the chart and swaps it
// in. A failed remote fetch falls back to the last stored snapshot of that
// source; any other failure leaves the current chart in place.
func (s *Server) Reload(ctx context.Context) error {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	source := s.settings.DatasetSource
	start := time.Now()

	raw, fromSnapshot, err := s.fetch(ctx, source)
	if err != nil {
		s.metrics.DatasetFailed()
		return err
	}

	data, err := bench.Parse(raw)
	if err != nil {
		s.metrics.DatasetFailed()
		return fmt.Errorf("dataset %s: %w", source, err)
	}

	c, err := chart.New(data, s.settings.Chart)
	if err != nil {
		s.metrics.DatasetFailed()
		return fmt.Errorf("build chart: %w", err)
	}

	for _, mode := range bench.Modes {
		line, _ := c.Trend(mode)
		if line.Degenerate() {
			log.Warn().
				Str("source", source).
				Str("mode", mode.String()).
				Str("trend", line.String()).
				Msg("trend fit is not finite, the trend line will not be drawn")
		}
	}

	if bench.IsRemote(source) && !fromSnapshot && s.store != nil {
		err := s.store.StoreSnapshot(storage.Snapshot{Source: source, FetchedAt: s.now(), Body: raw})
		if err != nil {
			log.Warn().Err(err).Str("source", source).Msg("failed to store dataset snapshot")
		}
	}

	s.chart.Store(c)
	loadedAt := s.now()
	s.loadedAt.Store(&loadedAt)
	s.metrics.DatasetLoaded(data.Len())

	log.Info().
		Str("source", source).
		Int("frameworks", data.Len()).
		Bool("snapshot", fromSnapshot).
		Dur("took", time.Since(start)).
		Msg("dataset loaded")

	s.broadcastViews()
	return nil
}

// fetch returns the raw dataset and whether it came from a stored snapshot.
func (s *Server) fetch(ctx context.Context, source string) ([]byte, bool, error) {
	raw, err := s.loader.Raw(ctx, source)
	if err == nil {
		return raw, false, nil
	}
	if !bench.IsRemote(source) || s.store == nil {
		return nil, false, err
	}

	snap, found, snapErr := s.store.LatestSnapshot(source)
	if snapErr != nil {
		return nil, false, fmt.Errorf("%w (snapshot lookup: %v)", err, snapErr)
	}
	if !found {
		return nil, false, err
	}

	s.metrics.DatasetFailed()
	log.Warn().
		Err(err).
		Str("source", source).
		Time("fetched_at", snap.FetchedAt).
		Msg("dataset fetch failed, using stored snapshot")
	return snap.Body, true, nil
}

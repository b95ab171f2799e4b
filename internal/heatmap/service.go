package heatmap

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sectorpulse/sectorpulse/internal/cache"
	"github.com/sectorpulse/sectorpulse/internal/model"
	"github.com/sectorpulse/sectorpulse/internal/persistence"
	"github.com/sectorpulse/sectorpulse/internal/telemetry"
)

const cacheKey = "sectorpulse:snapshot:v1"

// ErrStaleResult reports that a fetch completed after a newer generation
// had already committed; its data was discarded.
var ErrStaleResult = errors.New("stale fetch result discarded")

// Fetcher is the provider chain seen by the service. Satisfied by
// *provider.Chain.
type Fetcher interface {
	Fetch(ctx context.Context, limit int) ([]model.Category, string, error)
}

// Broadcaster pushes committed snapshots to live subscribers. Satisfied by
// the websocket hub.
type Broadcaster interface {
	Broadcast(msg []byte)
}

// Options wires the service's optional collaborators.
type Options struct {
	Cache       cache.Cache               // write-through snapshot cache, nil to disable
	Repo        persistence.SnapshotRepo  // snapshot history, nil to disable
	Broadcaster Broadcaster               // live push, nil to disable
	MaxSectors  int                       // cap on categories kept per snapshot
	Overscan    int                       // extra categories requested before validation trims
	CacheTTL    time.Duration
	StaleAfter  time.Duration // snapshot age beyond which consumers see stale=true
	Layout      LayoutConfig
}

// Service owns the latest category snapshot and its derived heatmap.
//
// Concurrent refreshes (poll tick racing a manual trigger) are resolved
// with a generation counter: each refresh takes a generation at start and
// may only commit if no newer generation has committed since. The slower
// request's result is discarded instead of overwriting fresher data.
type Service struct {
	fetcher Fetcher
	metrics *telemetry.Metrics
	opts    Options

	gen atomic.Uint64

	mu           sync.RWMutex
	snap         *model.Snapshot
	committedGen uint64
	lastErr      string
	lastErrAt    time.Time
	consecFails  int
}

// NewService creates the heatmap service. fetcher and metrics are
// required; everything else arrives through opts.
func NewService(fetcher Fetcher, metrics *telemetry.Metrics, opts Options) *Service {
	if opts.MaxSectors <= 0 {
		opts.MaxSectors = 40
	}
	if opts.Overscan < 0 {
		opts.Overscan = 0
	}
	if opts.Layout.DensityFactor <= 0 {
		opts.Layout = DefaultLayoutConfig()
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 15 * time.Minute
	}
	return &Service{
		fetcher: fetcher,
		metrics: metrics,
		opts:    opts,
	}
}

// Refresh fetches a new snapshot and commits it unless a newer generation
// beat it to the commit point. A failed fetch keeps the last good snapshot
// and records the error for consumers.
func (s *Service) Refresh(ctx context.Context) error {
	gen := s.gen.Add(1)

	cats, providerName, err := s.fetcher.Fetch(ctx, s.opts.MaxSectors+s.opts.Overscan)
	if err != nil {
		s.recordFailure(err)
		return err
	}

	valid, dropped := model.SanitizeCategories(cats)
	if dropped > 0 {
		s.metrics.DroppedRecords.Add(float64(dropped))
		log.Warn().Int("dropped", dropped).Str("provider", providerName).
			Msg("rejected invalid category records")
	}
	if len(valid) > s.opts.MaxSectors {
		valid = valid[:s.opts.MaxSectors]
	}

	snap := &model.Snapshot{
		Categories: valid,
		Provider:   providerName,
		FetchedAt:  time.Now(),
		Generation: gen,
	}

	s.mu.Lock()
	if gen <= s.committedGen {
		s.mu.Unlock()
		s.metrics.StaleDrops.Inc()
		log.Debug().Uint64("generation", gen).Msg("discarding stale fetch result")
		return ErrStaleResult
	}
	s.committedGen = gen
	s.snap = snap
	s.consecFails = 0
	s.lastErr = ""
	s.mu.Unlock()

	s.metrics.ConsecutiveFailures.Set(0)
	s.metrics.SnapshotAge.Set(0)

	s.publish(ctx, snap)

	log.Info().
		Str("provider", providerName).
		Int("categories", len(valid)).
		Uint64("generation", gen).
		Msg("snapshot committed")

	return nil
}

// publish writes the committed snapshot through to the cache, the history
// repo and live subscribers. Downstream failures are logged, never fatal.
func (s *Service) publish(ctx context.Context, snap *model.Snapshot) {
	payload, err := json.Marshal(snap)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal snapshot")
		return
	}

	if s.opts.Cache != nil {
		s.opts.Cache.Set(ctx, cacheKey, payload, s.opts.CacheTTL)
	}

	if s.opts.Repo != nil {
		rec := persistence.SnapshotRecord{
			FetchedAt:      snap.FetchedAt,
			Provider:       snap.Provider,
			CategoryCount:  len(snap.Categories),
			TotalMarketCap: snap.TotalMarketCap(),
			Payload:        payload,
		}
		if err := s.opts.Repo.Insert(ctx, rec); err != nil {
			log.Error().Err(err).Msg("failed to archive snapshot")
		}
	}

	if s.opts.Broadcaster != nil {
		s.opts.Broadcaster.Broadcast(payload)
	}
}

func (s *Service) recordFailure(err error) {
	s.mu.Lock()
	s.consecFails++
	s.lastErr = err.Error()
	s.lastErrAt = time.Now()
	fails := s.consecFails
	s.mu.Unlock()

	s.metrics.ConsecutiveFailures.Set(float64(fails))
	log.Error().Err(err).Int("consecutive_failures", fails).Msg("refresh failed")
}

// RestoreFromCache seeds the service with the last cached snapshot so a
// restarted instance can serve before its first live fetch. Only applies
// when nothing has committed yet; generation 0 guarantees the first live
// fetch supersedes it.
func (s *Service) RestoreFromCache(ctx context.Context) bool {
	if s.opts.Cache == nil {
		return false
	}
	payload, ok := s.opts.Cache.Get(ctx, cacheKey)
	if !ok {
		s.metrics.CacheMisses.WithLabelValues("snapshot").Inc()
		return false
	}
	var snap model.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		log.Warn().Err(err).Msg("discarding unreadable cached snapshot")
		return false
	}
	snap.Generation = 0

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap != nil {
		return false
	}
	s.snap = &snap
	s.metrics.CacheHits.WithLabelValues("snapshot").Inc()
	log.Info().Time("fetched_at", snap.FetchedAt).Msg("restored snapshot from cache")
	return true
}

// Snapshot returns the latest committed snapshot, or nil before the first
// successful fetch.
func (s *Service) Snapshot() *model.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Status describes the service's data freshness for health and API
// consumers.
type Status struct {
	HasData      bool      `json:"has_data"`
	FetchedAt    time.Time `json:"fetched_at,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	AgeSeconds   float64   `json:"age_seconds,omitempty"`
	Stale        bool      `json:"stale"`
	LastError    string    `json:"last_error,omitempty"`
	LastErrorAt  time.Time `json:"last_error_at,omitempty"`
	FailureCount int       `json:"failure_count"`
}

// Status returns the current freshness view.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		LastError:    s.lastErr,
		LastErrorAt:  s.lastErrAt,
		FailureCount: s.consecFails,
	}
	if s.snap != nil {
		age := time.Since(s.snap.FetchedAt)
		st.HasData = true
		st.FetchedAt = s.snap.FetchedAt
		st.Provider = s.snap.Provider
		st.AgeSeconds = age.Seconds()
		st.Stale = age > s.opts.StaleAfter
	}
	return st
}

// View is the rendered heatmap served to clients: the packed tiles plus
// the freshness metadata a UI needs to flag stale data inline.
type View struct {
	Rects  []Rect     `json:"rects"`
	Filter FilterMode `json:"filter"`
	Count  int        `json:"count"`
	Status Status     `json:"status"`
}

// View derives the heatmap for the given filter from the latest snapshot.
func (s *Service) View(mode FilterMode, limit int) View {
	status := s.Status()

	snap := s.Snapshot()
	if snap == nil {
		return View{Rects: []Rect{}, Filter: mode, Status: status}
	}

	if limit <= 0 || limit > s.opts.MaxSectors {
		limit = s.opts.MaxSectors
	}
	filtered := Filter(snap.Categories, mode, limit)
	rects := Layout(filtered, s.opts.Layout)

	return View{
		Rects:  rects,
		Filter: mode,
		Count:  len(rects),
		Status: status,
	}
}

// ObserveSnapshotAge refreshes the snapshot age gauge; called by the
// poller each tick.
func (s *Service) ObserveSnapshotAge() {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap != nil {
		s.metrics.SnapshotAge.Set(time.Since(s.snap.FetchedAt).Seconds())
	}
}

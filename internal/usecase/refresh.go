package usecase

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"MarketSignal/pkg/cache"
	applogger "MarketSignal/pkg/logger"
)

// Broadcaster pushes a dashboard snapshot to live subscribers.
type Broadcaster interface {
	Broadcast(v interface{})
}

// Live message types. Pages reload only on a refresh.
const (
	SnapshotInitial = "snapshot"     // sent once on connect
	SnapshotRefresh = "daily_signal" // sent after each scheduled refresh
)

// Snapshot is what live subscribers receive.
type Snapshot struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// RefreshScheduler refetches headlines on a cron schedule, recomputes the
// default signal and pushes it to subscribers. With a shared cache only one
// replica refreshes per tick.
type RefreshScheduler struct {
	cron    *cron.Cron
	spec    string
	dash    *Dashboard
	cache   cache.Service
	out     Broadcaster
	log     *applogger.Logger
	timeout time.Duration
}

func NewRefreshScheduler(spec string, dash *Dashboard, c cache.Service, out Broadcaster, l *applogger.Logger) *RefreshScheduler {
	return &RefreshScheduler{
		cron:    cron.New(),
		spec:    spec,
		dash:    dash,
		cache:   c,
		out:     out,
		log:     l,
		timeout: time.Minute,
	}
}

// Start registers the job and starts the scheduler. An empty spec disables it.
func (s *RefreshScheduler) Start() error {
	if s.spec == "" {
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, s.Run); err != nil {
		return err
	}
	s.cron.Start()
	s.log.Info("refresh scheduler started", applogger.String("spec", s.spec))
	return nil
}

// Stop waits for a running job to finish or ctx to expire.
func (s *RefreshScheduler) Stop(ctx context.Context) {
	done := s.cron.Stop().Done()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Run performs one refresh.
func (s *RefreshScheduler) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	const lockKey = "headlines:refresh-lock"
	ok, err := s.cache.TryLock(ctx, lockKey, s.timeout)
	if err != nil {
		s.log.Warn("refresh lock failed", applogger.Error(err))
		return
	}
	if !ok {
		s.log.Debug("refresh skipped, another instance holds the lock")
		return
	}
	defer func() { _ = s.cache.Unlock(context.Background(), lockKey) }()

	if err := s.dash.InvalidateHeadlines(ctx); err != nil {
		s.log.Warn("headline cache invalidate failed", applogger.Error(err))
	}
	sig, err := s.dash.DailySignal(ctx, "", s.dash.DefaultIndex())
	if err != nil {
		s.log.Error("scheduled refresh failed", applogger.Error(err))
		return
	}
	s.out.Broadcast(Snapshot{Type: SnapshotRefresh, Data: sig})
	s.log.Info("scheduled refresh done",
		applogger.String("target", sig.Target),
		applogger.String("signal", string(sig.Signal)),
		applogger.Int("headlines", len(sig.Headlines)),
	)
}

// Package scheduler implements C5: three independent ticker-driven loops
// that enqueue the project-expiry-warning, project-expiry-deactivation,
// and video-rotation sweeps onto C4's Redis job queue rather than running
// them inline, so a tick is never blocked on a database round trip.
// Grounded on internal/ads/rotator.go's ticker Start/Stop idiom, run once
// per concern rather than once per webinar.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fegerV/arplatform/config"
	"github.com/fegerV/arplatform/pkg/queue"
)

// loop is one cancellable ticker-driven sweep, shared by all three
// schedules below.
type loop struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context)
	logger   *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func (l *loop) Start() {
	l.mu.Lock()
	if l.cancel != nil {
		l.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	l.mu.Unlock()

	go l.run(ctx)
	l.logger.Info("scheduler loop started", zap.String("loop", l.name), zap.Duration("interval", l.interval))
}

func (l *loop) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel == nil {
		return
	}
	l.cancel()
	l.cancel = nil
	<-l.done
	l.logger.Info("scheduler loop stopped", zap.String("loop", l.name))
}

func (l *loop) run(ctx context.Context) {
	defer close(l.done)
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

// Scheduler owns the expiry-warning, expiry-deactivation, and
// video-rotation tickers. Each tick only enqueues a trigger job; the
// actual database work runs in internal/worker's dispatcher when that job
// is dequeued, matching how C4's marker jobs are processed.
type Scheduler struct {
	queue  *queue.Queue
	cfg    config.SchedulerConfig
	logger *zap.Logger

	warningLoop *loop
	expiryLoop  *loop
	rotateLoop  *loop
}

// New builds a Scheduler over its three sweeps. The expiry-warning loop
// ticks once an hour so the configured
// ExpiryWarningHourUTC is never missed by more than that margin.
func New(q *queue.Queue, cfg config.SchedulerConfig, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Scheduler{queue: q, cfg: cfg, logger: logger}

	s.warningLoop = &loop{name: "expiry_warning", interval: time.Hour, logger: logger, tick: s.enqueueExpiryWarningCheck}

	expiryInterval := time.Duration(cfg.ExpiryCheckIntervalSec) * time.Second
	if expiryInterval <= 0 {
		expiryInterval = time.Minute
	}
	s.expiryLoop = &loop{name: "expiry_deactivation", interval: expiryInterval, logger: logger, tick: s.enqueueExpiryDeactivation}

	rotateInterval := time.Duration(cfg.RotationCheckIntervalSec) * time.Second
	if rotateInterval <= 0 {
		rotateInterval = 5 * time.Minute
	}
	s.rotateLoop = &loop{name: "video_rotation", interval: rotateInterval, logger: logger, tick: s.enqueueRotationSweep}

	return s
}

// Start launches all three sweeps.
func (s *Scheduler) Start() {
	s.warningLoop.Start()
	s.expiryLoop.Start()
	s.rotateLoop.Start()
}

// Stop halts all three sweeps and blocks until each has exited.
func (s *Scheduler) Stop() {
	s.warningLoop.Stop()
	s.expiryLoop.Stop()
	s.rotateLoop.Stop()
}

// enqueueExpiryWarningCheck runs hourly, gated on ExpiryWarningHourUTC
// (S2): only within the configured UTC hour does it enqueue the job that
// scans for projects due an expiry_warning Notification.
func (s *Scheduler) enqueueExpiryWarningCheck(ctx context.Context) {
	if time.Now().UTC().Hour() != s.cfg.ExpiryWarningHourUTC {
		return
	}
	if err := s.queue.Enqueue(ctx, queue.JobKindCheckExpiringProjects, queue.SweepTriggerPayload{}); err != nil {
		s.logger.Error("enqueue expiry warning check failed", zap.Error(err))
	}
}

// enqueueExpiryDeactivation runs every ExpiryCheckIntervalSec (S4/S5).
func (s *Scheduler) enqueueExpiryDeactivation(ctx context.Context) {
	if err := s.queue.Enqueue(ctx, queue.JobKindDeactivateExpired, queue.SweepTriggerPayload{}); err != nil {
		s.logger.Error("enqueue expiry deactivation sweep failed", zap.Error(err))
	}
}

// enqueueRotationSweep runs every RotationCheckIntervalSec (S6).
func (s *Scheduler) enqueueRotationSweep(ctx context.Context) {
	if err := s.queue.Enqueue(ctx, queue.JobKindRotateVideos, queue.SweepTriggerPayload{}); err != nil {
		s.logger.Error("enqueue rotation sweep failed", zap.Error(err))
	}
}

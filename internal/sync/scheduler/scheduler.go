// Package scheduler drives the sync reconciler from connectivity
// changes and a periodic timer.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/kimhsiao/dietdaily/internal/connectivity"
	"github.com/kimhsiao/dietdaily/internal/errors"
	"github.com/kimhsiao/dietdaily/internal/logging"
	syncpkg "github.com/kimhsiao/dietdaily/internal/sync"
)

// Scheduler runs drains while the device is online. Going offline
// pauses the timer; coming back online triggers an immediate drain.
type Scheduler struct {
	reconciler *syncpkg.Reconciler
	monitor    connectivity.Monitor
	interval   time.Duration

	stopCh      chan struct{}
	kickCh      chan struct{}
	wg          sync.WaitGroup
	mu          sync.RWMutex
	isRunning   bool
	unsubscribe func()
}

// Config holds scheduler configuration.
type Config struct {
	Interval time.Duration // how often to drain when online (default: 5 minutes)
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() *Config {
	return &Config{
		Interval: 5 * time.Minute,
	}
}

// New creates a Scheduler.
func New(reconciler *syncpkg.Reconciler, monitor connectivity.Monitor, config *Config) *Scheduler {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Interval <= 0 {
		config.Interval = DefaultConfig().Interval
	}

	return &Scheduler{
		reconciler: reconciler,
		monitor:    monitor,
		interval:   config.Interval,
		stopCh:     make(chan struct{}),
		kickCh:     make(chan struct{}, 1),
	}
}

// Start starts the background drain loop and begins watching
// connectivity.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = true
	s.mu.Unlock()

	s.unsubscribe = s.monitor.Subscribe(func(online bool) {
		if online {
			s.kick()
		}
	})

	s.wg.Add(1)
	go s.loop(ctx)

	logging.Info("sync scheduler started", map[string]interface{}{
		"interval_minutes": s.interval.Minutes(),
	})
}

// Stop stops the scheduler gracefully.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	close(s.stopCh)
	s.wg.Wait()

	logging.Info("sync scheduler stopped", nil)
}

// kick requests an immediate drain without blocking the caller. A
// pending kick is enough; drains do not queue up.
func (s *Scheduler) kick() {
	select {
	case s.kickCh <- struct{}{}:
	default:
	}
}

// loop drains on timer ticks while online and immediately on
// reconnect.
func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-s.kickCh:
			logging.Info("connectivity regained, starting drain", nil)
			s.drain(ctx)
		case <-ticker.C:
			if !s.monitor.Online() {
				continue
			}
			s.drain(ctx)
		}
	}
}

// drain runs one reconciler pass with a bounded lifetime.
func (s *Scheduler) drain(ctx context.Context) {
	drainCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	s.reconciler.Drain(drainCtx)
}

// ForceSyncNow runs a drain immediately and waits for it. It fails
// fast when the device is offline instead of burning retry attempts.
func (s *Scheduler) ForceSyncNow(ctx context.Context) (*syncpkg.Result, error) {
	if !s.monitor.Online() {
		return nil, errors.New(errors.ErrOffline, "cannot sync while offline")
	}

	drainCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	result := s.reconciler.Drain(drainCtx)

	logging.Info("manual sync completed", map[string]interface{}{
		"success": result.Success,
		"failed":  result.Failed,
	})
	return result, nil
}

// IsRunning returns whether the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

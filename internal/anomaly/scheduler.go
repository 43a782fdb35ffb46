package anomaly

import (
	"context"
	"time"

	"github.com/logsieve/logsieve/internal/logging"
)

// Scheduler runs detection cycles on a fixed interval. A failed cycle backs
// off for one minute instead of a full interval, matching daemon behavior of
// retrying soon after transient storage errors.
// Implements lifecycle.Component.
type Scheduler struct {
	detector   *Detector
	interval   time.Duration
	retryDelay time.Duration
	logger     *logging.Logger
	stopCh     chan struct{}
	doneCh     chan struct{}
}

func NewScheduler(detector *Detector, interval time.Duration) *Scheduler {
	return &Scheduler{
		detector:   detector,
		interval:   interval,
		retryDelay: time.Minute,
		logger:     logging.GetLogger("anomaly.scheduler"),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start launches the cycle loop. Implements lifecycle.Component.
func (s *Scheduler) Start(ctx context.Context) error {
	go s.loop()
	s.logger.Info("Anomaly detection scheduled every %s", s.interval)
	return nil
}

// Stop halts the loop. A cycle in flight finishes first.
func (s *Scheduler) Stop(ctx context.Context) error {
	close(s.stopCh)
	select {
	case <-s.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Name implements lifecycle.Component.
func (s *Scheduler) Name() string {
	return "anomaly-scheduler"
}

func (s *Scheduler) loop() {
	defer close(s.doneCh)
	timer := time.NewTimer(s.interval)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			delay := s.interval
			if _, err := s.detector.RunCycle(context.Background()); err != nil {
				s.logger.Error("Detection cycle failed: %v", err)
				delay = s.retryDelay
			}
			timer.Reset(delay)
		case <-s.stopCh:
			return
		}
	}
}

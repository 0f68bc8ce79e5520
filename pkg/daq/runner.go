package daq

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Result is the outcome of one poll cycle.
type Result struct {
	At    time.Time
	Scans *ScanBuffer
	Err   error
}

// Run polls the session every interval and sends each Result to out until ctx
// is done or the session stops streaming. A failed cycle is reported on out
// and polling continues; the receiver decides whether to stop. out is never
// closed by Run.
func (s *Session) Run(ctx context.Context, interval time.Duration, out chan<- Result) error {
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("polling started", slog.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("polling stopped")
			return ctx.Err()
		case <-ticker.C:
			scans, err := s.PollOnce(ctx)
			if err != nil {
				s.logger.Error("poll failed", slog.Any("error", err))
			}
			select {
			case out <- Result{At: time.Now(), Scans: scans, Err: err}:
			case <-ctx.Done():
				s.logger.Info("polling stopped")
				return ctx.Err()
			}
			// The session left Streaming, every further tick would fail the same way.
			if errors.Is(err, ErrInvalidState) {
				s.logger.Info("polling stopped", slog.String("state", s.state.String()))
				return err
			}
		}
	}
}

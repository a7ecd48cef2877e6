package gocanapi

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const defaultPollInterval = 100 * time.Millisecond

// Monitor polls the channel for duration and hands every received
// frame to fn. A zero or negative duration polls until the context is
// done. Returning false from fn ends the loop early. Empty polls are
// skipped silently, any other transport error ends the loop and is
// reported through the session's error callback. The return value is
// the number of frames delivered to fn, cancellation and transport
// failure are not errors here, only calling Monitor on a session that
// is not started is.
func (s *Session) Monitor(ctx context.Context, duration time.Duration, fn func(*Frame) bool) (int, error) {
	if s.state != Started {
		return 0, ErrNotInitialized
	}
	var deadline <-chan time.Time
	if duration > 0 {
		t := time.NewTimer(duration)
		defer t.Stop()
		deadline = t.C
	}
	count := 0
	for {
		select {
		case <-ctx.Done():
			return count, nil
		case <-deadline:
			return count, nil
		default:
		}
		frame, err := s.tr.Read(s.poll)
		if err != nil {
			if errors.Is(err, ErrRxEmpty) {
				continue
			}
			s.onError(fmt.Errorf("monitor aborted: %w", err))
			return count, nil
		}
		count++
		if !fn(frame) {
			return count, nil
		}
	}
}

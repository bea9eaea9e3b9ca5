package selection

import (
	"context"
	"time"

	"github.com/robertarktes/floorplan-seating/internal/availability"
)

// DefaultWatchInterval is how often a selection re-reads availability.
const DefaultWatchInterval = 10 * time.Second

type FetchFunc func(ctx context.Context) (availability.View, error)

// Watch polls fetch every interval and reconciles the selection against the
// result until ctx ends. onDropped is called with the seats that were removed
// and may be nil. Fetch errors skip the tick. Call MarkHeld after reserving
// so the session's own holds are not reported as dropped.
func (s *Selection) Watch(ctx context.Context, interval time.Duration, fetch FetchFunc, onDropped func([]availability.SeatView)) error {
	if interval <= 0 {
		interval = DefaultWatchInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		view, err := fetch(ctx)
		if err != nil {
			continue
		}
		if dropped := s.Reconcile(view); len(dropped) > 0 && onDropped != nil {
			onDropped(dropped)
		}
	}
}

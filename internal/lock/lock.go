package lock

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when another scrape holds the lock
var ErrBusy = errors.New("a search is already running")

// Marker is a persistent "busy" flag. Existence means held.
type Marker interface {
	// Acquire creates the marker, returning ErrBusy if it already exists
	Acquire(ctx context.Context) error
	// Release removes the marker; removing a missing marker is not an error
	Release(ctx context.Context) error
	// Held reports whether the marker currently exists
	Held(ctx context.Context) (bool, error)
}

// Guard turns concurrent callers into "one runs, the rest get ErrBusy".
// The semaphore covers goroutines of this process, the marker covers
// other processes and restarts. A crash mid-run leaves the marker in
// place until someone removes it by hand.
type Guard struct {
	sem    *semaphore.Weighted
	marker Marker
}

// NewGuard creates a single-flight guard backed by marker
func NewGuard(marker Marker) *Guard {
	return &Guard{
		sem:    semaphore.NewWeighted(1),
		marker: marker,
	}
}

// Do runs fn while holding the lock. fn is never called when the lock is
// held elsewhere. The lock is released on every exit path, panics included.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if !g.sem.TryAcquire(1) {
		return ErrBusy
	}
	defer g.sem.Release(1)

	if err := g.marker.Acquire(ctx); err != nil {
		if errors.Is(err, ErrBusy) {
			return ErrBusy
		}
		return fmt.Errorf("failed to acquire scrape lock: %w", err)
	}

	defer func() {
		// The caller's context may be done by now; release must still happen.
		if relErr := g.marker.Release(context.Background()); relErr != nil {
			log.Printf("⚠️ Failed to release scrape lock: %v", relErr)
			if err == nil {
				err = fmt.Errorf("failed to release scrape lock: %w", relErr)
			}
		}
	}()

	return fn(ctx)
}

// Busy reports whether a scrape is currently in flight
func (g *Guard) Busy(ctx context.Context) bool {
	held, err := g.marker.Held(ctx)
	if err != nil {
		log.Printf("⚠️ Failed to check scrape lock: %v", err)
		return false
	}
	return held
}

package extract

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/shehryarbajwa/smiles-flights/internal/browser"
)

// ErrExtraction marks an extraction that failed on every attempt
var ErrExtraction = errors.New("extraction failed")

// ExtractionError carries the last failure after retries ran out
type ExtractionError struct {
	Attempts int
	Err      error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtraction, e.Err}
}

// Sessions is the part of the browser session manager the extractor needs
type Sessions interface {
	Ensure(ctx context.Context) (*browser.Session, error)
	Restart(ctx context.Context) (*browser.Session, error)
	Shutdown()
}

// SnapshotSaver keeps rendered markup for offline replay
type SnapshotSaver interface {
	Save(markup string) (string, error)
}

// Extractor navigates to a results page and parses its offers, restarting
// the browser between failed attempts
type Extractor struct {
	sessions  Sessions
	renderer  Renderer
	maxOffers int
	snapshots SnapshotSaver
}

// NewExtractor creates an extractor returning at most maxOffers offers
func NewExtractor(sessions Sessions, renderer Renderer, maxOffers int) *Extractor {
	return &Extractor{
		sessions:  sessions,
		renderer:  renderer,
		maxOffers: maxOffers,
	}
}

// WithSnapshots stores every rendered page in s
func (e *Extractor) WithSnapshots(s SnapshotSaver) *Extractor {
	e.snapshots = s
	return e
}

// Extract runs up to maxRetries+1 sequential attempts. Each retry starts
// from a freshly restarted browser session, and the browser is shut down
// once every attempt has failed.
func (e *Extractor) Extract(ctx context.Context, url string, maxRetries int) (*Result, error) {
	attempts := 0
	var lastErr error

	session, err := e.sessions.Ensure(ctx)
	for {
		attempts++
		if err == nil {
			var result *Result
			result, err = e.extractOnce(ctx, session, url)
			if err == nil {
				result.Attempts = attempts
				return result, nil
			}
		}

		lastErr = err
		log.Printf("⚠️ Extraction attempt %d failed: %v", attempts, err)

		if maxRetries <= 0 || ctx.Err() != nil {
			break
		}
		maxRetries--

		log.Printf("🔄 Restarting browser before retry (%d left)", maxRetries)
		session, err = e.sessions.Restart(ctx)
	}

	// The last session may be the broken one; the next search starts clean
	log.Printf("⚠️ Giving up after %d attempts, shutting browser down", attempts)
	e.sessions.Shutdown()

	return nil, &ExtractionError{Attempts: attempts, Err: lastErr}
}

func (e *Extractor) extractOnce(ctx context.Context, session *browser.Session, url string) (result *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extraction panicked: %v", r)
		}
	}()

	markup, err := e.renderer.Render(ctx, session, url)
	if err != nil {
		return nil, err
	}

	var snapshotID string
	if e.snapshots != nil {
		if id, err := e.snapshots.Save(markup); err != nil {
			log.Printf("⚠️ Failed to save page snapshot: %v", err)
		} else {
			snapshotID = id
		}
	}

	result, err = ParseOffers(markup, e.maxOffers)
	if err != nil {
		return nil, err
	}
	result.SnapshotID = snapshotID
	return result, nil
}

package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/shehryarbajwa/smiles-flights/internal/browser"
	"github.com/shehryarbajwa/smiles-flights/internal/extract"
	"github.com/shehryarbajwa/smiles-flights/internal/format"
	"github.com/shehryarbajwa/smiles-flights/internal/lock"
	"github.com/shehryarbajwa/smiles-flights/internal/search"
	"github.com/shehryarbajwa/smiles-flights/pkg/models"
)

// State is where the coordinator is in its search lifecycle
type State string

const (
	StateIdle    State = "IDLE"
	StateLocked  State = "LOCKED"
	StateRunning State = "RUNNING"
	StateSuccess State = "SUCCESS"
	StateFailed  State = "FAILED"
)

// Guard is the single-flight lock around a whole search
type Guard interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	Busy(ctx context.Context) bool
}

// Extractor fetches and parses the offers behind a results URL
type Extractor interface {
	Extract(ctx context.Context, url string, maxRetries int) (*extract.Result, error)
}

// Restarter replaces the running browser with a fresh one
type Restarter interface {
	Restart(ctx context.Context) (*browser.Session, error)
}

// ErrNoBrowser is returned by RestartBrowser when no browser is attached
var ErrNoBrowser = errors.New("no browser attached")

// Options tune a coordinator
type Options struct {
	MaxRetries int
	// Deadline bounds a whole search when positive
	Deadline time.Duration
}

// Coordinator is the single entry point for a search command
type Coordinator struct {
	normalizer *search.Normalizer
	urls       *search.URLBuilder
	guard      Guard
	extractor  Extractor
	browser    Restarter
	opts       Options

	mu    sync.RWMutex
	state State
}

// New creates a coordinator
func New(normalizer *search.Normalizer, urls *search.URLBuilder, guard Guard, extractor Extractor, opts Options) *Coordinator {
	return &Coordinator{
		normalizer: normalizer,
		urls:       urls,
		guard:      guard,
		extractor:  extractor,
		opts:       opts,
		state:      StateIdle,
	}
}

// WithBrowser lets RestartBrowser restart r
func (c *Coordinator) WithBrowser(r Restarter) *Coordinator {
	c.browser = r
	return c
}

// State returns the current lifecycle state
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Busy reports whether a search holds the lock, here or in another process
func (c *Coordinator) Busy(ctx context.Context) bool {
	return c.guard.Busy(ctx)
}

// RestartBrowser restarts the browser while holding the search lock, so a
// search can never start on a browser that is being replaced. Returns
// lock.ErrBusy when a search is running.
func (c *Coordinator) RestartBrowser(ctx context.Context) error {
	if c.browser == nil {
		return ErrNoBrowser
	}

	return c.guard.Do(ctx, func(ctx context.Context) error {
		log.Println("🔄 Restarting browser on request")
		_, err := c.browser.Restart(ctx)
		return err
	})
}

// Run executes one search command. progress, when set, receives the
// acknowledgement sent before scraping starts. The result always carries the
// messages to show the user; the returned error is the cause of a failed
// search and is only for callers that need to classify it.
func (c *Coordinator) Run(ctx context.Context, raw string, progress func(string)) (*models.SearchResult, error) {
	result := &models.SearchResult{
		Offers:    []models.FlightOffer{},
		StartedAt: time.Now(),
	}

	err := c.guard.Do(ctx, func(ctx context.Context) (err error) {
		c.setState(StateLocked)
		defer func() {
			if r := recover(); r != nil {
				log.Printf("❌ Search panicked: %v", r)
				err = fmt.Errorf("search panicked: %v", r)
			}
		}()

		if c.opts.Deadline > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, c.opts.Deadline)
			defer cancel()
		}

		return c.search(ctx, raw, progress, result)
	})

	result.FinishedAt = time.Now()

	switch {
	case err == nil:
		c.setState(StateSuccess)
	case errors.Is(err, lock.ErrBusy):
		// never got the lock, so the running search keeps its state
		log.Printf("⏳ Rejected %q: search already running", raw)
		result.State = models.StateBusy
		result.Error = err.Error()
		result.Messages = []string{errorMessage(err)}
		return result, err
	default:
		c.setState(StateFailed)
		log.Printf("❌ Search %q failed: %v", raw, err)
		result.State = models.StateFailed
		result.Error = err.Error()
		result.Messages = []string{errorMessage(err)}
	}

	c.setState(StateIdle)
	return result, err
}

func (c *Coordinator) search(ctx context.Context, raw string, progress func(string), result *models.SearchResult) error {
	req, err := c.normalizer.Parse(raw)
	if err != nil {
		return err
	}
	result.Request = req

	url, err := c.urls.Build(req)
	if err != nil {
		return err
	}
	result.URL = url

	if progress != nil {
		progress(ProgressMessage(req, url))
	}

	c.setState(StateRunning)
	log.Printf("🚀 Searching %s → %s on %s", req.Origin, req.Destination, req.Date)

	extracted, err := c.extractor.Extract(ctx, url, c.opts.MaxRetries)
	if err != nil {
		var extractionErr *extract.ExtractionError
		if errors.As(err, &extractionErr) {
			result.Attempts = extractionErr.Attempts
		}
		return err
	}

	result.Attempts = extracted.Attempts
	result.SnapshotID = extracted.SnapshotID

	if extracted.NoResults || len(extracted.Offers) == 0 {
		log.Printf("✅ No flights for %s → %s on %s", req.Origin, req.Destination, req.Date)
		result.State = models.StateNoResult
		result.Messages = []string{noResultsMessage(req)}
		return nil
	}

	log.Printf("✅ Found %d offers for %s → %s on %s", len(extracted.Offers), req.Origin, req.Destination, req.Date)
	result.State = models.StateSuccess
	result.Offers = extracted.Offers
	result.Messages = format.Format(extracted.Offers, req.Date)
	return nil
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

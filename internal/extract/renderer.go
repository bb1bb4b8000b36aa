package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/shehryarbajwa/smiles-flights/internal/browser"
)

// ErrPageLoadTimeout means the results never appeared within the page-load timeout
var ErrPageLoadTimeout = errors.New("timed out waiting for results page")

// Renderer loads a URL in a browser session and returns the rendered markup
type Renderer interface {
	Render(ctx context.Context, session *browser.Session, url string) (string, error)
}

// ChromeRenderer renders pages in a fresh tab of the session's browser
type ChromeRenderer struct {
	PageLoadTimeout time.Duration
	SettleDelay     time.Duration
}

// NewChromeRenderer creates a renderer with the given load timeout and settle delay
func NewChromeRenderer(pageLoadTimeout, settleDelay time.Duration) *ChromeRenderer {
	return &ChromeRenderer{
		PageLoadTimeout: pageLoadTimeout,
		SettleDelay:     settleDelay,
	}
}

func (r *ChromeRenderer) Render(ctx context.Context, session *browser.Session, url string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(session.Context())
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	// The first Run attaches the tab, and its event loop lives as long as the
	// context passed here. Only tabCtx may be used for it.
	if err := chromedp.Run(tabCtx); err != nil {
		return "", fmt.Errorf("failed to open tab: %w", err)
	}

	// Presence of the ready marker is the "loaded" signal, not network idle.
	if err := chromedp.Run(tabCtx, loadWithin(r.PageLoadTimeout, chromedp.Tasks{
		chromedp.Navigate(url),
		chromedp.WaitReady(PageReadySelector, chromedp.ByQuery),
	})); err != nil {
		if errors.Is(err, ErrPageLoadTimeout) {
			return "", err
		}
		return "", fmt.Errorf("failed to load %s: %w", url, err)
	}

	var markup string
	if err := chromedp.Run(tabCtx,
		chromedp.Sleep(r.SettleDelay),
		chromedp.OuterHTML("html", &markup, chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("failed to read page markup: %w", err)
	}

	return markup, nil
}

// loadWithin runs action under its own deadline. The deadline ends only this
// step; the context the returned action runs on is left untouched.
func loadWithin(timeout time.Duration, action chromedp.Action) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		waitCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		if err := action.Do(waitCtx); err != nil {
			if ctx.Err() == nil && errors.Is(waitCtx.Err(), context.DeadlineExceeded) {
				return fmt.Errorf("%w after %s", ErrPageLoadTimeout, timeout)
			}
			return err
		}
		return nil
	})
}

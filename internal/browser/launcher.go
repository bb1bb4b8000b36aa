package browser

import (
	"context"
	"fmt"
	"log"

	"github.com/chromedp/chromedp"
)

// Instance is one running browser reachable through a chromedp context
type Instance struct {
	// Ctx is the chromedp browser context; tabs are derived from it
	Ctx         context.Context
	ConnectURL  string
	ContainerID string
	close       func(ctx context.Context) error
}

// Close tears the browser down
func (i *Instance) Close(ctx context.Context) error {
	if i.close == nil {
		return nil
	}
	return i.close(ctx)
}

// Launcher starts browsers for the session manager
type Launcher interface {
	Name() string
	Launch(ctx context.Context, sessionID, userDataDir string) (*Instance, error)
}

// Options configure how browsers are launched
type Options struct {
	Headless   bool
	UserAgent  string
	ChromePath string
	Image      string
}

// allocatorOptions is the fingerprint profile applied to locally started
// browsers: headless, fixed viewport, automation flags suppressed, images off
func allocatorOptions(opts Options, userDataDir string) []chromedp.ExecAllocatorOption {
	execOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox,
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("enable-automation", false),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-notifications", true),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.Flag("ignore-certificate-errors", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
		chromedp.Flag("log-level", "3"),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(opts.UserAgent),
	)
	if userDataDir != "" {
		execOpts = append(execOpts, chromedp.UserDataDir(userDataDir))
	}
	if opts.ChromePath != "" {
		execOpts = append(execOpts, chromedp.ExecPath(opts.ChromePath))
	}
	return execOpts
}

// LocalLauncher starts Chrome as a child process
type LocalLauncher struct {
	opts Options
}

// NewLocalLauncher creates a launcher for a locally installed Chrome
func NewLocalLauncher(opts Options) *LocalLauncher {
	return &LocalLauncher{opts: opts}
}

func (l *LocalLauncher) Name() string { return "local" }

func (l *LocalLauncher) Launch(ctx context.Context, sessionID, userDataDir string) (*Instance, error) {
	// The browser outlives the request that started it, so it hangs off Background.
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocatorOptions(l.opts, userDataDir)...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(func(format string, args ...interface{}) {
			log.Printf("[browser %s] "+format, append([]interface{}{sessionID[:8]}, args...)...)
		}),
	)

	// First Run starts the process.
	started := make(chan error, 1)
	go func() { started <- chromedp.Run(browserCtx) }()

	select {
	case err := <-started:
		if err != nil {
			cancelBrowser()
			cancelAlloc()
			return nil, fmt.Errorf("failed to start chrome: %w", err)
		}
	case <-ctx.Done():
		cancelBrowser()
		cancelAlloc()
		return nil, fmt.Errorf("chrome startup aborted: %w", ctx.Err())
	}

	return &Instance{
		Ctx: browserCtx,
		close: func(ctx context.Context) error {
			err := chromedp.Cancel(browserCtx)
			cancelBrowser()
			cancelAlloc()
			return err
		},
	}, nil
}

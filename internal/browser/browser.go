// Package browser drives a headless Chrome through chromedp and exposes loaded
// tabs as extract.Page values.
package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	"sjsage522/harvester/config"
	"sjsage522/harvester/logger"
)

// Options configures a browser session
type Options struct {
	Headless bool
	// UserDataDir is the persistent profile directory; empty means a throwaway profile
	UserDataDir string
	UserAgent   string
	Width       int
	Height      int
	// NavTimeout bounds each navigation
	NavTimeout time.Duration
}

// DefaultOptions returns a headless 1920x1080 session with a 30 second navigation timeout
func DefaultOptions() Options {
	return Options{
		Headless:   true,
		UserAgent:  config.DefaultUserAgent,
		Width:      1920,
		Height:     1080,
		NavTimeout: 30 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.UserAgent == "" {
		o.UserAgent = d.UserAgent
	}
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = d.Width, d.Height
	}
	if o.NavTimeout <= 0 {
		o.NavTimeout = d.NavTimeout
	}
	return o
}

func (o Options) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.WindowSize(o.Width, o.Height),
		chromedp.UserAgent(o.UserAgent),
	}
	if o.Headless {
		opts = append(opts, chromedp.Headless)
	}
	if o.UserDataDir != "" {
		opts = append(opts, chromedp.UserDataDir(o.UserDataDir))
	}
	return opts
}

// Session is one running browser. It must be closed on every path.
type Session struct {
	opts          Options
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	log           *logger.Logger
}

// Launch starts a browser process
func Launch(ctx context.Context, opts Options) (*Session, error) {
	opts = opts.withDefaults()

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	s := &Session{
		opts:          opts,
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		log:           logger.ForBrowser(),
	}

	// the first Run on a fresh context starts the browser
	if err := run(ctx, browserCtx); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	s.log.Info().
		Bool("headless", opts.Headless).
		Str("profile", opts.UserDataDir).
		Int("width", opts.Width).
		Int("height", opts.Height).
		Msg("browser launched")
	return s, nil
}

// Open navigates a new tab to url and waits for the body to be ready.
// The returned page must be closed by the caller.
func (s *Session) Open(ctx context.Context, url string) (*Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(s.browserCtx)
	p := &Page{ctx: tabCtx, cancel: tabCancel, url: url, log: s.log.WithField("url", url)}

	navCtx, cancel := context.WithTimeout(ctx, s.opts.NavTimeout)
	defer cancel()

	var location string
	err := run(navCtx, tabCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body"),
		chromedp.Location(&location),
	)
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	if location != "" {
		p.url = location
	}
	p.log.Debug().Str("location", p.url).Msg("page loaded")
	return p, nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	return nil
}

// run executes actions on target while honouring the caller's ctx.
// Cancelling a context derived from target does not close the tab.
func run(ctx, target context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(target)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

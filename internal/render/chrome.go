package render

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeOptions configures the Chrome process started for every session.
type ChromeOptions struct {
	Headless   bool
	NoSandbox  bool
	DisableGPU bool
	ExecPath   string
	UserAgent  string
}

// Chrome starts a fresh headless Chrome per session. Nothing is pooled: no
// cookies, cache or profile carry over between sessions.
type Chrome struct {
	opts ChromeOptions
}

// NewChrome creates a chromedp-backed Browser.
func NewChrome(opts ChromeOptions) *Chrome {
	return &Chrome{opts: opts}
}

// allocatorOptions builds the exec allocator flags for one session.
func (c *Chrome) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", c.opts.Headless),
		chromedp.Flag("disable-gpu", c.opts.DisableGPU),
		chromedp.Flag("no-sandbox", c.opts.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if c.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(c.opts.UserAgent))
	}
	if c.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(c.opts.ExecPath))
	}
	return opts
}

// NewSession starts a browser process bound to ctx.
func (c *Chrome) NewSession(ctx context.Context) (Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, c.allocatorOptions()...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Run with no actions starts the browser so launch failures surface here.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	return &chromeSession{
		ctx:         browserCtx,
		cancelTab:   browserCancel,
		cancelAlloc: allocCancel,
	}, nil
}

type chromeSession struct {
	ctx         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc

	closeOnce sync.Once
	closed    bool
	mu        sync.Mutex
}

func (s *chromeSession) live() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	return nil
}

func (s *chromeSession) Navigate(url string) error {
	if err := s.live(); err != nil {
		return err
	}
	if err := chromedp.Run(s.ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (s *chromeSession) WaitFor(selector string, timeout time.Duration) error {
	if err := s.live(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()

	err := chromedp.Run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s after %s", ErrWaitTimeout, selector, timeout)
	}
	return fmt.Errorf("wait for %s: %w", selector, err)
}

func (s *chromeSession) HTML() (string, error) {
	if err := s.live(); err != nil {
		return "", err
	}
	var html string
	if err := chromedp.Run(s.ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("read document: %w", err)
	}
	return html, nil
}

func (s *chromeSession) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		// Cancel closes the browser gracefully; the context cancels below
		// reap the process if that fails.
		err = chromedp.Cancel(s.ctx)
		s.cancelTab()
		s.cancelAlloc()
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	})
	return err
}

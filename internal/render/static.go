package render

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Static is a Browser that serves fixed markup per URL. Pages are treated as
// fully rendered; WaitFor succeeds when the selector matches the markup and
// reports ErrWaitTimeout otherwise, without sleeping.
type Static struct {
	mu     sync.Mutex
	pages  map[string]string
	opened int
	closed int
}

// NewStatic creates a Static browser from a URL → HTML map.
func NewStatic(pages map[string]string) *Static {
	cp := make(map[string]string, len(pages))
	for k, v := range pages {
		cp[k] = v
	}
	return &Static{pages: cp}
}

// Sessions returns how many sessions were opened and closed.
func (b *Static) Sessions() (opened, closed int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opened, b.closed
}

// NewSession opens a session over the canned pages.
func (b *Static) NewSession(ctx context.Context) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	b.opened++
	b.mu.Unlock()
	return &staticSession{browser: b}, nil
}

type staticSession struct {
	browser *Static
	html    string
	closed  bool
}

func (s *staticSession) Navigate(url string) error {
	if s.closed {
		return ErrSessionClosed
	}
	s.browser.mu.Lock()
	html, ok := s.browser.pages[url]
	s.browser.mu.Unlock()
	if !ok {
		return fmt.Errorf("navigate %s: no such page", url)
	}
	s.html = html
	return nil
}

func (s *staticSession) WaitFor(selector string, timeout time.Duration) error {
	if s.closed {
		return ErrSessionClosed
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s.html))
	if err != nil {
		return fmt.Errorf("parse page: %w", err)
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s after %s", ErrWaitTimeout, selector, timeout)
	}
	return nil
}

func (s *staticSession) HTML() (string, error) {
	if s.closed {
		return "", ErrSessionClosed
	}
	return s.html, nil
}

func (s *staticSession) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.browser.mu.Lock()
	s.browser.closed++
	s.browser.mu.Unlock()
	return nil
}

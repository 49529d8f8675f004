// Package render abstracts the browser that turns a URL into a rendered DOM.
//
// A Browser hands out isolated Sessions. Each Session is owned by a single
// caller for one page load and must be closed on every exit path. Chrome
// binds the interface to a headless Chrome via chromedp; Static serves canned
// markup for tests and offline runs.
package render

import (
	"context"
	"errors"
	"time"
)

// ErrWaitTimeout is returned by Session.WaitFor when the selector does not
// appear within the timeout.
var ErrWaitTimeout = errors.New("render: timed out waiting for selector")

// ErrSessionClosed is returned when a closed session is used.
var ErrSessionClosed = errors.New("render: session closed")

// Browser opens isolated rendering sessions.
type Browser interface {
	NewSession(ctx context.Context) (Session, error)
}

// Session is one isolated rendering context.
type Session interface {
	// Navigate loads url and waits for the document to be ready.
	Navigate(url string) error

	// WaitFor blocks until selector is present in the DOM or timeout elapses.
	WaitFor(selector string, timeout time.Duration) error

	// HTML returns a snapshot of the current document's markup.
	HTML() (string, error)

	// Close tears the session down. It is safe to call more than once.
	Close() error
}

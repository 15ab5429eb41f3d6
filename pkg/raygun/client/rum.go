// rum.go exposes the RUM session tracker.

package client

import (
	"context"

	"github.com/strongdm/raygun4go/pkg/raygun/rum"
)

// EnableRUM starts RUM tracking. The first session starts after
// Settings.RUM.StartDelay unless one is started explicitly before then.
func (c *Client) EnableRUM() {
	if !c.settings.HasAPIKey() {
		c.logger.Warn("api key is not set, RUM events will not be sent")
	}
	c.tracker.Enable()
}

// DisableRUM stops lifecycle tracking. The active session is left open.
func (c *Client) DisableRUM() {
	c.tracker.Disable()
}

// RUMEnabled reports whether RUM tracking is on.
func (c *Client) RUMEnabled() bool {
	return c.tracker.Enabled()
}

// SessionID returns the active RUM session id, or "".
func (c *Client) SessionID() string {
	return c.tracker.SessionID()
}

// StartSession ends the active session, if any, and starts a new one.
func (c *Client) StartSession(ctx context.Context) {
	c.tracker.StartSession(ctx)
}

// EndSession ends the active session and reports whether there was one.
func (c *Client) EndSession(ctx context.Context) bool {
	return c.tracker.EndSession(ctx)
}

// RecordTiming records a timing in milliseconds, starting a session if
// none is active.
func (c *Client) RecordTiming(ctx context.Context, typ rum.TimingType, name string, durationMs int64) {
	c.tracker.RecordTiming(ctx, typ, name, durationMs)
}

// Navigating marks the start of a view transition.
func (c *Client) Navigating(ev rum.NavigationEvent) {
	c.tracker.Navigating(ev)
}

// Navigated records how long the transition started by Navigating took.
func (c *Client) Navigated(ctx context.Context, ev rum.NavigationEvent) {
	c.tracker.Navigated(ctx, ev)
}

// FlushRUM waits until queued RUM events have been delivered or ctx is done.
func (c *Client) FlushRUM(ctx context.Context) error {
	return c.rumSender.Flush(ctx)
}

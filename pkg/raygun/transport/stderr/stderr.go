// Package stderr provides a Sender that prints payloads in a human-readable
// format. Useful for development and debugging.
package stderr

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/strongdm/raygun4go/pkg/raygun"
)

// Option configures the stderr sender.
type Option func(*config)

type config struct {
	verbose bool
	out     io.Writer
	now     func() time.Time
}

// WithVerbose prints the full payload below the summary line.
func WithVerbose() Option {
	return func(c *config) {
		c.verbose = true
	}
}

// WithWriter redirects output away from os.Stderr.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.out = w
		}
	}
}

// Sender writes payloads to stderr and always succeeds.
type Sender struct {
	verbose bool
	now     func() time.Time

	mu  sync.Mutex
	out io.Writer
}

var _ raygun.Sender = (*Sender)(nil)

// New creates a Sender that writes to stderr.
func New(opts ...Option) *Sender {
	cfg := &config{out: os.Stderr, now: time.Now}
	for _, opt := range opts {
		opt(cfg)
	}
	return &Sender{verbose: cfg.verbose, out: cfg.out, now: cfg.now}
}

// Send formats the payload.
// Format: [RAYGUN] <timestamp> POST <endpoint> (<n> bytes)
func (s *Sender) Send(ctx context.Context, endpoint string, payload []byte) error {
	timestamp := s.now().UTC().Format(time.RFC3339)

	var b strings.Builder
	fmt.Fprintf(&b, "[RAYGUN] %s POST %s (%d bytes)\n", timestamp, endpoint, len(payload))
	if s.verbose && len(payload) > 0 {
		body := payload
		if indented, err := raygun.Indent(payload); err == nil {
			body = indented
		}
		for _, line := range strings.Split(string(body), "\n") {
			fmt.Fprintf(&b, "        %s\n", line)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = io.WriteString(s.out, b.String())
	return nil
}

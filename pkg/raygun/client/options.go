// options.go defines the functional options for New.

package client

import (
	"go.uber.org/zap"

	"github.com/strongdm/raygun4go/pkg/raygun"
	"github.com/strongdm/raygun4go/pkg/raygun/queue"
	"github.com/strongdm/raygun4go/pkg/raygun/rum"
)

// Option configures a Client.
type Option func(*clientConfig)

type clientConfig struct {
	logger       *zap.Logger
	sender       raygun.Sender
	rumSender    raygun.Sender
	connectivity raygun.Connectivity
	store        queue.Store
	env          raygun.EnvironmentProvider
	imageReader  raygun.ImageReader
	userStore    raygun.AnonymousUserStore
	suspend      rum.Signal
	resume       rum.Signal
	scrubber     *raygun.Scrubber
	fingerprint  bool
}

// WithLogger sets the logger. Components log under named children of it.
func WithLogger(l *zap.Logger) Option {
	return func(c *clientConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithSender sets the crash report transport. The default posts over HTTP.
func WithSender(s raygun.Sender) Option {
	return func(c *clientConfig) {
		c.sender = s
	}
}

// WithRUMSender sets the RUM transport. It is wrapped in a bounded
// background dispatcher. The default is the crash report transport.
func WithRUMSender(s raygun.Sender) Option {
	return func(c *clientConfig) {
		c.rumSender = s
	}
}

// WithConnectivity sets the network probe used by the offline queue. The
// default dials the crash reporting endpoint.
func WithConnectivity(conn raygun.Connectivity) Option {
	return func(c *clientConfig) {
		c.connectivity = conn
	}
}

// WithStore sets the offline queue store. The default is a FileStore in
// Settings.OfflineStorage.Dir, or memory when no directory is set.
func WithStore(s queue.Store) Option {
	return func(c *clientConfig) {
		c.store = s
	}
}

// WithEnvironment sets the environment provider.
func WithEnvironment(env raygun.EnvironmentProvider) Option {
	return func(c *clientConfig) {
		c.env = env
	}
}

// WithImageReader enables native image debug info in crash reports.
func WithImageReader(r raygun.ImageReader) Option {
	return func(c *clientConfig) {
		c.imageReader = r
	}
}

// WithUserStore sets where the anonymous user id is persisted.
func WithUserStore(s raygun.AnonymousUserStore) Option {
	return func(c *clientConfig) {
		c.userStore = s
	}
}

// WithLifecycle sets the host signals that end and start RUM sessions.
func WithLifecycle(suspend, resume rum.Signal) Option {
	return func(c *clientConfig) {
		c.suspend = suspend
		c.resume = resume
	}
}

// WithScrubber redacts every crash report with s after the sending hooks
// have run.
func WithScrubber(s *raygun.Scrubber) Option {
	return func(c *clientConfig) {
		c.scrubber = s
	}
}

// WithFingerprintGrouping sets a grouping key derived from the error class
// names and leading frames when no OnGroupingKey hook supplies one.
func WithFingerprintGrouping() Option {
	return func(c *clientConfig) {
		c.fingerprint = true
	}
}

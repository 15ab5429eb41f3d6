// Package client wires crash reporting, the offline queue and RUM into a
// single owned Client.
//
// A Client is created with New and is safe for concurrent use. Nothing in
// this package panics into the caller or blocks it beyond the context it
// passes, except the explicit wait variants which are bounded by
// Settings.SendTimeout.
package client

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/strongdm/raygun4go/pkg/raygun"
	"github.com/strongdm/raygun4go/pkg/raygun/queue"
	"github.com/strongdm/raygun4go/pkg/raygun/rum"
	"github.com/strongdm/raygun4go/pkg/raygun/transport/async"
	httptransport "github.com/strongdm/raygun4go/pkg/raygun/transport/http"
)

// Client reports crashes and tracks RUM sessions for one application.
type Client struct {
	settings raygun.Settings
	logger   *zap.Logger

	env         raygun.EnvironmentProvider
	builder     *raygun.ErrorInfoBuilder
	breadcrumbs *raygun.Breadcrumbs
	defaultUser *raygun.DefaultUser
	queue       *queue.Queue
	rumSender   *async.Sender
	tracker     *rum.Tracker
	scrubber    *raygun.Scrubber
	fingerprint bool

	mu            sync.RWMutex
	user          *raygun.UserInfo
	version       string
	sendingHooks  []func(*SendingEvent)
	groupingHooks []func(*GroupingKeyEvent)

	// handlingHookPanic is set while the report for a panicking sending
	// hook is being sent. Hooks are skipped during that send.
	handlingHookPanic atomic.Bool

	// closeMu orders background sends against Close: wg.Add only happens
	// while closed is false and the lock is held.
	closeMu sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
}

// New validates settings and builds a Client. A missing API key is not an
// error: such a client logs and drops everything it is asked to send.
func New(settings raygun.Settings, opts ...Option) (*Client, error) {
	if err := settings.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid settings")
	}

	cfg := &clientConfig{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(cfg)
	}
	logger := cfg.logger

	if cfg.sender == nil {
		cfg.sender = httptransport.New(settings.APIKey, httptransport.WithLogger(logger))
	}
	if cfg.rumSender == nil {
		cfg.rumSender = cfg.sender
	}
	if cfg.connectivity == nil {
		prober, err := httptransport.NewProber(settings.CrashReportingEndpoint,
			httptransport.WithTTL(settings.Connectivity.TTL),
			httptransport.WithProberLogger(logger))
		if err != nil {
			return nil, errors.Wrap(err, "create connectivity probe")
		}
		cfg.connectivity = prober
	}
	if cfg.store == nil {
		if settings.OfflineStorage.Dir != "" {
			cfg.store = queue.NewFileStore(settings.OfflineStorage.Dir)
		} else {
			cfg.store = queue.NewMemoryStore()
		}
	}
	if cfg.env == nil {
		cfg.env = &raygun.SystemEnvironment{}
	}
	if cfg.userStore == nil {
		cfg.userStore = raygun.NewFileUserStore(raygun.DefaultUserStoreDir())
	}

	builderOpts := []raygun.ErrorInfoOption{
		raygun.WithImageCacheSize(settings.ImageCacheSize),
		raygun.WithErrorInfoLogger(logger),
	}
	if cfg.imageReader != nil {
		builderOpts = append(builderOpts, raygun.WithImageReader(cfg.imageReader))
	}

	defaultUser := raygun.NewDefaultUser(cfg.userStore, logger.Named("user"))
	rumSender := async.New(cfg.rumSender,
		async.WithQueueSize(settings.RUM.QueueSize),
		async.WithSendTimeout(settings.SendTimeout),
		async.WithLogger(logger))

	c := &Client{
		settings:    settings,
		logger:      logger.Named("client"),
		env:         cfg.env,
		builder:     raygun.NewErrorInfoBuilder(builderOpts...),
		breadcrumbs: raygun.NewBreadcrumbs(),
		defaultUser: defaultUser,
		queue: queue.New(cfg.sender, settings.CrashReportingEndpoint,
			queue.WithStore(cfg.store),
			queue.WithConnectivity(cfg.connectivity),
			queue.WithCapacity(settings.OfflineStorage.Capacity),
			queue.WithLogger(logger)),
		rumSender: rumSender,
		tracker: rum.New(rumSender, settings,
			rum.WithLogger(logger),
			rum.WithEnvironment(cfg.env),
			rum.WithDefaultUser(defaultUser),
			rum.WithLifecycle(cfg.suspend, cfg.resume)),
		scrubber:    cfg.scrubber,
		fingerprint: cfg.fingerprint,
		version:     settings.ApplicationVersion,
	}
	return c, nil
}

// Settings returns the settings the client was built with.
func (c *Client) Settings() raygun.Settings {
	return c.settings
}

// Enable replays crash reports stored by earlier runs. Call it once the
// application has started.
func (c *Client) Enable(ctx context.Context) error {
	if !c.settings.HasAPIKey() {
		c.logger.Warn("api key is not set, stored crash reports not sent")
		return raygun.ErrMissingAPIKey
	}
	if err := c.queue.Flush(ctx); err != nil {
		if errors.Is(err, queue.ErrNoConnectivity) {
			c.logger.Debug("offline, stored crash reports kept")
		} else {
			c.logger.Warn("failed to send stored crash reports", zap.Error(err))
		}
		return err
	}
	return nil
}

// QueueLen returns the number of stored crash reports.
func (c *Client) QueueLen(ctx context.Context) (int, error) {
	return c.queue.Len(ctx)
}

// RecordBreadcrumb appends a breadcrumb to the trail attached to crash
// reports.
func (c *Client) RecordBreadcrumb(crumb raygun.Breadcrumb) {
	c.breadcrumbs.Record(crumb)
}

// ClearBreadcrumbs empties the breadcrumb trail.
func (c *Client) ClearBreadcrumbs() {
	c.breadcrumbs.Clear()
}

// Breadcrumbs returns a copy of the breadcrumb trail, oldest first.
func (c *Client) Breadcrumbs() []raygun.Breadcrumb {
	return c.breadcrumbs.Snapshot()
}

// SetUser sets the user attached to crash reports and RUM events. nil
// reverts to the anonymous user.
func (c *Client) SetUser(ctx context.Context, u *raygun.UserInfo) {
	c.mu.Lock()
	if u == nil {
		c.user = nil
	} else {
		copied := *u
		c.user = &copied
	}
	c.mu.Unlock()

	c.tracker.SetUser(ctx, u)
}

// SetUserIdentifier sets a user with only an identifier. A blank identifier
// reverts to the anonymous user.
func (c *Client) SetUserIdentifier(ctx context.Context, identifier string) {
	c.SetUser(ctx, raygun.NewUserInfo(identifier))
}

// User returns a copy of the explicitly set user, or nil.
func (c *Client) User() *raygun.UserInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return nil
	}
	u := *c.user
	return &u
}

// SetApplicationVersion overrides the version reported with crashes and
// RUM events. Empty falls back to the package version.
func (c *Client) SetApplicationVersion(version string) {
	c.mu.Lock()
	c.version = version
	c.mu.Unlock()

	c.tracker.SetApplicationVersion(version)
}

// Close stops RUM tracking, waits for background sends and drains the RUM
// dispatcher. The client must not be used afterwards.
func (c *Client) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	c.tracker.Close()
	c.wg.Wait()

	var result *multierror.Error
	if err := c.rumSender.Close(); err != nil {
		result = multierror.Append(result, errors.Wrap(err, "close RUM dispatcher"))
	}
	return result.ErrorOrNil()
}

func (c *Client) resolveUser() *raygun.UserInfo {
	if u := c.User(); u != nil {
		return u
	}
	return c.defaultUser.Get()
}

func (c *Client) resolveVersion() string {
	c.mu.RLock()
	version := c.version
	c.mu.RUnlock()
	if version != "" {
		return version
	}
	return raygun.Lookup("package_version", c.env.PackageVersion, c.logger)
}

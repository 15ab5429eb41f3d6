// Package rum tracks real user monitoring sessions and timings.
//
// A Tracker holds at most one active session. Session start and end events
// are emitted on explicit calls, on host lifecycle signals and when the user
// identity changes. Events are best-effort: send failures are logged and
// never retried or stored.
package rum

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/strongdm/raygun4go/pkg/raygun"
)

// Option configures a Tracker.
type Option func(*trackerConfig)

type trackerConfig struct {
	logger      *zap.Logger
	env         raygun.EnvironmentProvider
	defaultUser *raygun.DefaultUser
	suspend     Signal
	resume      Signal
	now         func() time.Time
	newID       func() string
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *trackerConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithEnvironment sets the provider for OS, platform and package version.
func WithEnvironment(env raygun.EnvironmentProvider) Option {
	return func(c *trackerConfig) {
		if env != nil {
			c.env = env
		}
	}
}

// WithDefaultUser sets the anonymous user reported when no user is set.
func WithDefaultUser(u *raygun.DefaultUser) Option {
	return func(c *trackerConfig) {
		c.defaultUser = u
	}
}

// WithLifecycle sets the host signals that end (suspend) and start (resume)
// sessions while the tracker is enabled.
func WithLifecycle(suspend, resume Signal) Option {
	return func(c *trackerConfig) {
		c.suspend = suspend
		c.resume = resume
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *trackerConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// WithSessionIDGenerator overrides session id generation.
func WithSessionIDGenerator(fn func() string) Option {
	return func(c *trackerConfig) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// platformInfo is read once from the environment provider.
type platformInfo struct {
	os             string
	osVersion      string
	platform       string
	packageVersion string
}

// Tracker is the RUM session state machine. It is safe for concurrent use.
type Tracker struct {
	sender     raygun.Sender
	endpoint   string
	apiKey     string
	startDelay time.Duration
	logger     *zap.Logger
	env        raygun.EnvironmentProvider
	defUser    *raygun.DefaultUser
	suspend    Signal
	resume     Signal
	now        func() time.Time
	newID      func() string

	platformOnce sync.Once
	platform     platformInfo

	// mu guards session state and serializes emission, so a SessionEnd is
	// always sent before the following SessionStart.
	mu        sync.Mutex
	sessionID string
	user      *raygun.UserInfo
	version   string

	enabled atomic.Bool

	lmu          sync.Mutex
	unsubscribes []func()
	startTimer   *time.Timer

	navMu      sync.Mutex
	navStart   time.Time
	navigating bool

	wg sync.WaitGroup
}

// New creates a disabled tracker that posts events to settings.RUMEndpoint.
func New(sender raygun.Sender, settings raygun.Settings, opts ...Option) *Tracker {
	cfg := &trackerConfig{
		logger: zap.NewNop(),
		env:    &raygun.SystemEnvironment{},
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return &Tracker{
		sender:     sender,
		endpoint:   settings.RUMEndpoint,
		apiKey:     settings.APIKey,
		startDelay: settings.RUM.StartDelay,
		logger:     cfg.logger.Named("rum"),
		env:        cfg.env,
		defUser:    cfg.defaultUser,
		suspend:    cfg.suspend,
		resume:     cfg.resume,
		now:        cfg.now,
		newID:      cfg.newID,
		version:    settings.ApplicationVersion,
	}
}

// Enabled reports whether lifecycle tracking is on.
func (t *Tracker) Enabled() bool {
	return t.enabled.Load()
}

// Enable attaches the lifecycle listeners and schedules a session start
// after the start delay. The delayed start is skipped when a session has
// been started in the meantime.
func (t *Tracker) Enable() {
	t.Disable()

	t.lmu.Lock()
	defer t.lmu.Unlock()

	t.enabled.Store(true)
	if t.suspend != nil {
		t.unsubscribes = append(t.unsubscribes, t.suspend.Subscribe(func() {
			t.spawn("end session on suspend", func(ctx context.Context) {
				t.EndSession(ctx)
			})
		}))
	}
	if t.resume != nil {
		t.unsubscribes = append(t.unsubscribes, t.resume.Subscribe(func() {
			t.spawn("start session on resume", func(ctx context.Context) {
				t.StartSession(ctx)
			})
		}))
	}
	t.startTimer = time.AfterFunc(t.startDelay, func() {
		t.spawn("initial session start", func(ctx context.Context) {
			t.startIfNone(ctx)
		})
	})
}

// Disable detaches the lifecycle listeners and cancels a pending delayed
// start. An active session is not ended.
func (t *Tracker) Disable() {
	t.lmu.Lock()
	defer t.lmu.Unlock()

	t.enabled.Store(false)
	for _, unsubscribe := range t.unsubscribes {
		unsubscribe()
	}
	t.unsubscribes = nil
	if t.startTimer != nil {
		t.startTimer.Stop()
		t.startTimer = nil
	}
}

// Close disables the tracker and waits for in-flight lifecycle handlers.
func (t *Tracker) Close() {
	t.Disable()
	t.wg.Wait()
}

// SessionID returns the active session id, or "" when there is none.
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// StartSession ends the active session, if any, and starts a new one.
func (t *Tracker) StartSession(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startLocked(ctx)
}

// EndSession ends the active session. It returns false when there was no
// session and nothing was sent.
func (t *Tracker) EndSession(ctx context.Context) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.endLocked(ctx)
}

// RecordTiming emits a timing event, starting a session first if none is
// active.
func (t *Tracker) RecordTiming(ctx context.Context, typ TimingType, name string, durationMs int64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sessionID == "" {
		t.startLocked(ctx)
	}
	data, err := raygun.Marshal([]TimingEntry{{
		Name:   name,
		Timing: TimingValue{Type: typ, Duration: durationMs},
	}})
	if err != nil {
		t.logger.Warn("failed to encode timing", zap.String("name", name), zap.Error(err))
		return
	}
	t.emitLocked(ctx, Timing, string(data))
}

// SetUser changes the reported user. Replacing a previously set user with a
// different one while enabled ends the active session first, so the end
// event still carries the previous user.
func (t *Tracker) SetUser(ctx context.Context, u *raygun.UserInfo) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if raygun.SameUser(t.user, u) {
		return
	}
	if t.enabled.Load() && t.user != nil {
		t.endLocked(ctx)
	}
	if u == nil {
		t.user = nil
		return
	}
	copied := *u
	t.user = &copied
}

// User returns a copy of the explicitly set user, or nil.
func (t *Tracker) User() *raygun.UserInfo {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.user == nil {
		return nil
	}
	u := *t.user
	return &u
}

// SetApplicationVersion overrides the reported application version.
func (t *Tracker) SetApplicationVersion(version string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.version = version
}

// Navigating marks the start of a view transition.
func (t *Tracker) Navigating(ev NavigationEvent) {
	t.navMu.Lock()
	defer t.navMu.Unlock()
	t.navStart = time.Now()
	t.navigating = true
}

// Navigated completes a view transition started with Navigating and records
// a ViewLoaded timing for the destination view.
func (t *Tracker) Navigated(ctx context.Context, ev NavigationEvent) {
	t.navMu.Lock()
	if !t.navigating {
		t.navMu.Unlock()
		t.logger.Debug("navigated without navigating", zap.String("to", ev.To))
		return
	}
	elapsed := time.Since(t.navStart)
	t.navigating = false
	t.navMu.Unlock()

	t.RecordTiming(ctx, ViewLoaded, ev.To, elapsed.Milliseconds())
}

func (t *Tracker) startIfNone(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID != "" {
		return
	}
	t.startLocked(ctx)
}

func (t *Tracker) startLocked(ctx context.Context) {
	if t.sessionID != "" {
		t.endLocked(ctx)
	}
	t.sessionID = t.newID()
	t.emitLocked(ctx, SessionStart, "")
}

func (t *Tracker) endLocked(ctx context.Context) bool {
	if t.sessionID == "" {
		return false
	}
	t.emitLocked(ctx, SessionEnd, "")
	t.sessionID = ""
	return true
}

// emitLocked builds and sends one event for the active session. Failures are
// logged.
func (t *Tracker) emitLocked(ctx context.Context, typ EventType, data string) {
	if t.apiKey == "" {
		t.logger.Warn("api key is not set, RUM event not sent", zap.Stringer("type", typ))
		return
	}

	p := t.platformDetails()
	version := t.version
	if version == "" {
		version = p.packageVersion
	}
	user := t.user
	if user == nil && t.defUser != nil {
		user = t.defUser.Get()
	}

	msg := Message{EventData: []EventInfo{{
		SessionID: t.sessionID,
		Timestamp: t.now().UTC(),
		Type:      typ,
		User:      user,
		Version:   version,
		OS:        p.os,
		OSVersion: p.osVersion,
		Platform:  p.platform,
		Data:      data,
	}}}

	payload, err := raygun.Marshal(msg)
	if err != nil {
		t.logger.Warn("failed to encode RUM event", zap.Stringer("type", typ), zap.Error(err))
		return
	}
	defer func() {
		if p := recover(); p != nil {
			t.logger.Error("panic while sending RUM event", zap.Stringer("type", typ), zap.Any("panic", p))
		}
	}()
	if err := t.sender.Send(ctx, t.endpoint, payload); err != nil {
		t.logger.Warn("failed to send RUM event",
			zap.Stringer("type", typ),
			zap.String("session_id", t.sessionID),
			zap.Error(err))
	}
}

func (t *Tracker) platformDetails() platformInfo {
	t.platformOnce.Do(func() {
		lookup := func(field string, fn func() (string, error)) (v string) {
			defer func() {
				if p := recover(); p != nil {
					t.logger.Debug("environment lookup panicked", zap.String("field", field), zap.Any("panic", p))
					v = raygun.Unknown
				}
			}()
			var err error
			if v, err = fn(); err != nil || v == "" {
				t.logger.Debug("environment lookup failed", zap.String("field", field), zap.Error(err))
				return raygun.Unknown
			}
			return v
		}
		t.platform = platformInfo{
			os:             lookup("os", t.env.OperatingSystem),
			osVersion:      lookup("os_version", t.env.OperatingSystemVersion),
			platform:       lookup("platform", t.env.DeviceName),
			packageVersion: lookup("package_version", t.env.PackageVersion),
		}
	})
	return t.platform
}

// spawn runs fn on its own goroutine, logging any panic.
func (t *Tracker) spawn(name string, fn func(ctx context.Context)) {
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				t.logger.Error("panic in RUM handler", zap.String("handler", name), zap.Any("panic", p))
			}
		}()
		fn(context.Background())
	}()
}

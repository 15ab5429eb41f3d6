package rum

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/strongdm/raygun4go/pkg/raygun"
)

// testSender decodes and captures RUM messages.
type testSender struct {
	mu       sync.Mutex
	events   []EventInfo
	payloads []string
	err      error
}

func (s *testSender) Send(ctx context.Context, endpoint string, payload []byte) error {
	var msg Message
	if err := raygun.Unmarshal(payload, &msg); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, string(payload))
	s.events = append(s.events, msg.EventData...)
	return s.err
}

func (s *testSender) getEvents() []EventInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]EventInfo, len(s.events))
	copy(result, s.events)
	return result
}

type testEnvironment struct {
	raygun.EnvironmentProvider
}

var testEnv = testEnvironment{&raygun.SystemEnvironment{}}

func (testEnvironment) OperatingSystem() (string, error)        { return "Windows", nil }
func (testEnvironment) OperatingSystemVersion() (string, error) { return "10.0", nil }
func (testEnvironment) DeviceName() (string, error)             { return "Surface", nil }
func (testEnvironment) PackageVersion() (string, error)         { return "3.1.0", nil }

func testSettings() raygun.Settings {
	s := raygun.DefaultSettings()
	s.APIKey = "test-key"
	s.RUM.StartDelay = time.Hour
	return s
}

func newTestTracker(sender raygun.Sender, opts ...Option) *Tracker {
	opts = append([]Option{WithEnvironment(testEnv)}, opts...)
	return New(sender, testSettings(), opts...)
}

func TestTracker_StartSessionTwice(t *testing.T) {
	sender := &testSender{}
	tracker := newTestTracker(sender)
	ctx := context.Background()

	tracker.StartSession(ctx)
	first := tracker.SessionID()
	tracker.StartSession(ctx)
	second := tracker.SessionID()

	require.NotEmpty(t, first)
	require.NotEmpty(t, second)
	assert.NotEqual(t, first, second)

	events := sender.getEvents()
	require.Len(t, events, 3)
	assert.Equal(t, SessionStart, events[0].Type)
	assert.Equal(t, first, events[0].SessionID)
	assert.Equal(t, SessionEnd, events[1].Type)
	assert.Equal(t, first, events[1].SessionID, "end event carries the previous session id")
	assert.Equal(t, SessionStart, events[2].Type)
	assert.Equal(t, second, events[2].SessionID)
}

func TestTracker_EndSession(t *testing.T) {
	sender := &testSender{}
	tracker := newTestTracker(sender)
	ctx := context.Background()

	assert.False(t, tracker.EndSession(ctx), "nothing to end")
	assert.Empty(t, sender.getEvents())

	tracker.StartSession(ctx)
	id := tracker.SessionID()
	assert.True(t, tracker.EndSession(ctx))
	assert.Empty(t, tracker.SessionID())

	events := sender.getEvents()
	require.Len(t, events, 2)
	assert.Equal(t, SessionEnd, events[1].Type)
	assert.Equal(t, id, events[1].SessionID)
}

func TestTracker_RecordTimingStartsSession(t *testing.T) {
	sender := &testSender{}
	tracker := newTestTracker(sender)

	tracker.RecordTiming(context.Background(), ViewLoaded, "HomePage", 1500)

	events := sender.getEvents()
	require.Len(t, events, 2)
	assert.Equal(t, SessionStart, events[0].Type)
	timing := events[1]
	assert.Equal(t, Timing, timing.Type)
	assert.NotEmpty(t, timing.SessionID)
	assert.Equal(t, tracker.SessionID(), timing.SessionID)
	assert.Equal(t, events[0].SessionID, timing.SessionID)
	assert.JSONEq(t, `[{"Name":"HomePage","Timing":{"Type":"p","Duration":1500}}]`, timing.Data)
}

func TestTracker_TimingWireFormat(t *testing.T) {
	sender := &testSender{}
	tracker := newTestTracker(sender)

	tracker.RecordTiming(context.Background(), NetworkCall, "GET /api", 42)

	sender.mu.Lock()
	raw := sender.payloads[1]
	sender.mu.Unlock()

	var msg map[string]any
	require.NoError(t, raygun.Unmarshal([]byte(raw), &msg))
	eventData := msg["eventData"].([]any)
	require.Len(t, eventData, 1)
	event := eventData[0].(map[string]any)
	assert.Equal(t, "mobile_event_timing", event["type"])
	assert.Equal(t, "Windows", event["os"])
	assert.Equal(t, "10.0", event["osVersion"])
	assert.Equal(t, "Surface", event["platform"])
	assert.Equal(t, "3.1.0", event["version"])
	assert.JSONEq(t, `[{"Name":"GET /api","Timing":{"Type":"n","Duration":42}}]`, event["data"].(string))
}

func TestTracker_EventMetadata(t *testing.T) {
	sender := &testSender{}
	fixed := time.Date(2024, 5, 1, 10, 0, 0, 0, time.FixedZone("X", 7200))
	tracker := newTestTracker(sender,
		WithClock(func() time.Time { return fixed }),
		WithDefaultUser(raygun.NewDefaultUser(&raygun.MemoryUserStore{}, nil)))
	ctx := context.Background()

	tracker.StartSession(ctx)
	tracker.SetApplicationVersion("9.9.9")
	tracker.SetUser(ctx, &raygun.UserInfo{Identifier: "jane"})
	tracker.EndSession(ctx)

	events := sender.getEvents()
	require.Len(t, events, 2)
	start, end := events[0], events[1]

	assert.True(t, start.Timestamp.Equal(fixed))
	assert.Equal(t, time.UTC, start.Timestamp.Location())
	require.NotNil(t, start.User)
	assert.True(t, start.User.IsAnonymous, "anonymous user is used when none is set")
	assert.Len(t, start.User.Identifier, 32)
	assert.Equal(t, "3.1.0", start.Version, "package version is the fallback")

	require.NotNil(t, end.User)
	assert.Equal(t, "jane", end.User.Identifier)
	assert.Equal(t, "9.9.9", end.Version)
}

func TestTracker_SetUser(t *testing.T) {
	ctx := context.Background()
	jane := &raygun.UserInfo{Identifier: "jane"}
	john := &raygun.UserInfo{Identifier: "john"}

	t.Run("first user keeps the session", func(t *testing.T) {
		tracker := newTestTracker(&testSender{})
		tracker.Enable()
		defer tracker.Close()

		tracker.StartSession(ctx)
		id := tracker.SessionID()
		tracker.SetUser(ctx, jane)
		assert.Equal(t, id, tracker.SessionID())
	})

	t.Run("equal user is a no-op", func(t *testing.T) {
		sender := &testSender{}
		tracker := newTestTracker(sender)
		tracker.Enable()
		defer tracker.Close()

		tracker.SetUser(ctx, jane)
		tracker.StartSession(ctx)
		id := tracker.SessionID()
		tracker.SetUser(ctx, &raygun.UserInfo{Identifier: "jane"})
		assert.Equal(t, id, tracker.SessionID())
		assert.Len(t, sender.getEvents(), 1)
	})

	t.Run("different user ends the session", func(t *testing.T) {
		sender := &testSender{}
		tracker := newTestTracker(sender)
		tracker.Enable()
		defer tracker.Close()

		tracker.SetUser(ctx, jane)
		tracker.StartSession(ctx)
		id := tracker.SessionID()
		tracker.SetUser(ctx, john)
		assert.Empty(t, tracker.SessionID())

		tracker.RecordTiming(ctx, ViewLoaded, "Next", 10)
		assert.NotEqual(t, id, tracker.SessionID())

		events := sender.getEvents()
		require.Len(t, events, 4)
		assert.Equal(t, SessionEnd, events[1].Type)
		assert.Equal(t, "jane", events[1].User.Identifier, "end event carries the previous user")
		assert.Equal(t, "john", events[2].User.Identifier)
	})

	t.Run("clearing the user ends the session", func(t *testing.T) {
		tracker := newTestTracker(&testSender{})
		tracker.Enable()
		defer tracker.Close()

		tracker.SetUser(ctx, jane)
		tracker.StartSession(ctx)
		id := tracker.SessionID()
		tracker.SetUser(ctx, nil)
		tracker.RecordTiming(ctx, ViewLoaded, "Next", 10)
		assert.NotEqual(t, id, tracker.SessionID())
	})

	t.Run("disabled tracker keeps the session", func(t *testing.T) {
		tracker := newTestTracker(&testSender{})

		tracker.SetUser(ctx, jane)
		tracker.StartSession(ctx)
		id := tracker.SessionID()
		tracker.SetUser(ctx, john)
		assert.Equal(t, id, tracker.SessionID())
		assert.Equal(t, "john", tracker.User().Identifier)
	})
}

func TestTracker_MissingAPIKey(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sender := &testSender{}
	settings := testSettings()
	settings.APIKey = ""
	tracker := New(sender, settings, WithEnvironment(testEnv), WithLogger(zap.New(core)))

	tracker.RecordTiming(context.Background(), ViewLoaded, "HomePage", 1)

	assert.Empty(t, sender.getEvents())
	assert.NotEmpty(t, tracker.SessionID(), "session state still advances")
	assert.Equal(t, 2, logs.FilterMessage("api key is not set, RUM event not sent").Len())
}

func TestTracker_SendErrorsAreLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	sender := &testSender{err: errors.New("offline")}
	tracker := newTestTracker(sender, WithLogger(zap.New(core)))

	assert.NotPanics(t, func() {
		tracker.StartSession(context.Background())
	})
	assert.Equal(t, 1, logs.FilterMessage("failed to send RUM event").Len())
}

func TestTracker_Lifecycle(t *testing.T) {
	sender := &testSender{}
	suspend := NewBroadcaster()
	resume := NewBroadcaster()
	tracker := newTestTracker(sender, WithLifecycle(suspend, resume))

	tracker.Enable()
	tracker.Enable() // listeners are not attached twice
	assert.Equal(t, 1, suspend.Subscribers())
	assert.Equal(t, 1, resume.Subscribers())

	resume.Fire()
	assert.Eventually(t, func() bool { return tracker.SessionID() != "" }, time.Second, 5*time.Millisecond)

	suspend.Fire()
	assert.Eventually(t, func() bool { return tracker.SessionID() == "" }, time.Second, 5*time.Millisecond)

	tracker.Disable()
	assert.Equal(t, 0, suspend.Subscribers())
	assert.Equal(t, 0, resume.Subscribers())

	resume.Fire()
	tracker.Close()
	assert.Empty(t, tracker.SessionID(), "signals are ignored after Disable")
	assert.Len(t, sender.getEvents(), 2)
}

func TestTracker_DelayedStart(t *testing.T) {
	settings := testSettings()
	settings.RUM.StartDelay = 10 * time.Millisecond

	sender := &testSender{}
	tracker := New(sender, settings, WithEnvironment(testEnv))
	tracker.Enable()
	defer tracker.Close()

	assert.Eventually(t, func() bool { return tracker.SessionID() != "" }, time.Second, 5*time.Millisecond)
}

func TestTracker_DelayedStartSkippedWhenSessionExists(t *testing.T) {
	settings := testSettings()
	settings.RUM.StartDelay = 20 * time.Millisecond

	sender := &testSender{}
	tracker := New(sender, settings, WithEnvironment(testEnv))
	tracker.Enable()
	tracker.StartSession(context.Background())
	id := tracker.SessionID()

	time.Sleep(100 * time.Millisecond)
	tracker.Close()

	assert.Equal(t, id, tracker.SessionID())
	assert.Len(t, sender.getEvents(), 1)
}

func TestTracker_DisableCancelsDelayedStart(t *testing.T) {
	settings := testSettings()
	settings.RUM.StartDelay = 20 * time.Millisecond

	sender := &testSender{}
	tracker := New(sender, settings, WithEnvironment(testEnv))
	tracker.Enable()
	tracker.Disable()

	time.Sleep(100 * time.Millisecond)
	tracker.Close()
	assert.Empty(t, sender.getEvents())
}

func TestTracker_Navigation(t *testing.T) {
	sender := &testSender{}
	tracker := newTestTracker(sender)
	ctx := context.Background()

	tracker.Navigated(ctx, NavigationEvent{To: "Orphan"})
	assert.Empty(t, sender.getEvents(), "navigated without navigating records nothing")

	tracker.Navigating(NavigationEvent{From: "Home", To: "Details"})
	time.Sleep(15 * time.Millisecond)
	tracker.Navigated(ctx, NavigationEvent{From: "Home", To: "Details"})

	events := sender.getEvents()
	require.Len(t, events, 2)
	var entries []TimingEntry
	require.NoError(t, raygun.Unmarshal([]byte(events[1].Data), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "Details", entries[0].Name)
	assert.Equal(t, ViewLoaded, entries[0].Timing.Type)
	assert.GreaterOrEqual(t, entries[0].Timing.Duration, int64(15))
}

func TestTracker_ConcurrentStartsKeepOrdering(t *testing.T) {
	sender := &testSender{}
	tracker := newTestTracker(sender)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.StartSession(context.Background())
		}()
	}
	wg.Wait()

	events := sender.getEvents()
	require.Len(t, events, 39)
	for i := 1; i < len(events); i += 2 {
		assert.Equal(t, SessionEnd, events[i].Type)
		assert.Equal(t, events[i-1].SessionID, events[i].SessionID, "each end closes the preceding start")
	}
}

func TestTracker_SenderPanicIsContained(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	sender := raygun.SenderFunc(func(context.Context, string, []byte) error {
		panic("sender bug")
	})
	tracker := New(sender, testSettings(),
		WithEnvironment(testEnv),
		WithLogger(zap.New(core)),
		WithSessionIDGenerator(func() string { return "fixed" }))

	assert.NotPanics(t, func() { tracker.StartSession(context.Background()) })
	assert.Equal(t, "fixed", tracker.SessionID())
	assert.Equal(t, 1, logs.FilterMessage("panic while sending RUM event").Len())
}

func TestTracker_SpawnLogsPanics(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	tracker := newTestTracker(&testSender{}, WithLogger(zap.New(core)))

	tracker.spawn("exploding handler", func(context.Context) {
		panic("boom")
	})
	tracker.Close()

	entries := logs.FilterMessage("panic in RUM handler").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "exploding handler", entries[0].ContextMap()["handler"])
}

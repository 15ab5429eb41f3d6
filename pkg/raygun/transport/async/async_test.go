package async

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/strongdm/raygun4go/pkg/raygun"
)

// slowSender records payloads, optionally after a delay or a gate.
type slowSender struct {
	mu       sync.Mutex
	payloads []string
	delay    time.Duration
	gate     chan struct{}
	err      error
}

func (s *slowSender) Send(ctx context.Context, endpoint string, payload []byte) error {
	if s.gate != nil {
		<-s.gate
	}
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, string(payload))
	return s.err
}

func (s *slowSender) getPayloads() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]string, len(s.payloads))
	copy(result, s.payloads)
	return result
}

func TestSender_ImplementsSender(t *testing.T) {
	var _ raygun.Sender = New(&slowSender{})
}

func TestSender_SendReturnsImmediately(t *testing.T) {
	inner := &slowSender{delay: 100 * time.Millisecond}
	s := New(inner)
	defer s.Close()

	start := time.Now()
	require.NoError(t, s.Send(context.Background(), "e", []byte("1")))
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestSender_DeliversInOrder(t *testing.T) {
	inner := &slowSender{}
	s := New(inner, WithQueueSize(100))

	var want []string
	for i := 0; i < 20; i++ {
		p := strconv.Itoa(i)
		want = append(want, p)
		require.NoError(t, s.Send(context.Background(), "e", []byte(p)))
	}
	require.NoError(t, s.Close())

	assert.Equal(t, want, inner.getPayloads())
}

func TestSender_DropsOldestWhenFull(t *testing.T) {
	gate := make(chan struct{})
	inner := &slowSender{gate: gate}
	var dropped atomic.Int32
	s := New(inner, WithQueueSize(2), WithOnDropped(func(n int) { dropped.Add(int32(n)) }))

	// The worker takes "0" and blocks on the gate.
	require.NoError(t, s.Send(context.Background(), "e", []byte("0")))
	require.Eventually(t, func() bool { return len(s.queue) == 0 }, time.Second, time.Millisecond)

	for _, p := range []string{"1", "2", "3", "4"} {
		require.NoError(t, s.Send(context.Background(), "e", []byte(p)))
	}
	close(gate)
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"0", "3", "4"}, inner.getPayloads())
	assert.Equal(t, int32(2), dropped.Load())
	assert.Equal(t, int64(2), s.Dropped())
	assert.Equal(t, int64(0), s.Pending())
}

func TestSender_PayloadIsCopied(t *testing.T) {
	gate := make(chan struct{})
	inner := &slowSender{gate: gate}
	s := New(inner)

	buf := []byte("abc")
	require.NoError(t, s.Send(context.Background(), "e", buf))
	buf[0] = 'X'
	close(gate)
	require.NoError(t, s.Close())

	assert.Equal(t, []string{"abc"}, inner.getPayloads())
}

func TestSender_FlushWaitsForDelivery(t *testing.T) {
	inner := &slowSender{delay: 10 * time.Millisecond}
	s := New(inner)
	defer s.Close()

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Send(context.Background(), "e", []byte(strconv.Itoa(i))))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Flush(ctx))
	assert.Len(t, inner.getPayloads(), 5)
}

func TestSender_FlushHonorsContext(t *testing.T) {
	gate := make(chan struct{})
	s := New(&slowSender{gate: gate})
	defer s.Close()
	defer close(gate)

	require.NoError(t, s.Send(context.Background(), "e", []byte("x")))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Flush(ctx), context.DeadlineExceeded)
}

func TestSender_SendAfterClose(t *testing.T) {
	s := New(&slowSender{})
	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "close is idempotent")

	assert.ErrorIs(t, s.Send(context.Background(), "e", []byte("x")), ErrClosed)
}

func TestSender_LogsFailuresAndPanics(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	calls := 0
	inner := raygun.SenderFunc(func(ctx context.Context, endpoint string, payload []byte) error {
		calls++
		if calls == 1 {
			return errors.New("refused")
		}
		panic("kaboom")
	})
	s := New(inner, WithLogger(zap.New(core)))

	require.NoError(t, s.Send(context.Background(), "e", []byte("1")))
	require.NoError(t, s.Send(context.Background(), "e", []byte("2")))
	require.NoError(t, s.Close())

	assert.Equal(t, 1, logs.FilterMessage("failed to deliver payload").Len())
	assert.Equal(t, 1, logs.FilterMessage("panic while delivering payload").Len())
	assert.Equal(t, int64(0), s.Pending())
}

func TestSender_SendTimeoutBoundsDelivery(t *testing.T) {
	var sawDeadline atomic.Bool
	inner := raygun.SenderFunc(func(ctx context.Context, endpoint string, payload []byte) error {
		_, ok := ctx.Deadline()
		sawDeadline.Store(ok)
		<-ctx.Done()
		return ctx.Err()
	})
	s := New(inner, WithSendTimeout(10*time.Millisecond))
	require.NoError(t, s.Send(context.Background(), "e", []byte("1")))
	require.NoError(t, s.Close())
	assert.True(t, sawDeadline.Load())
}

func TestSender_ConcurrentSendAndClose(t *testing.T) {
	s := New(&slowSender{}, WithQueueSize(4))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				err := s.Send(context.Background(), "e", []byte("x"))
				if err != nil {
					assert.ErrorIs(t, err, ErrClosed)
				}
			}
		}()
	}
	time.Sleep(time.Millisecond)
	require.NoError(t, s.Close())
	wg.Wait()
	assert.Equal(t, int64(0), s.Pending())
}

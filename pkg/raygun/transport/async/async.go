// Package async provides a Sender wrapper with a bounded queue.
// Payloads are delivered on a background worker in FIFO order; the oldest
// pending payload is dropped when the queue is full.
package async

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/strongdm/raygun4go/pkg/raygun"
)

// DefaultQueueSize is the number of payloads held before dropping.
const DefaultQueueSize = 64

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("async sender is closed")

// Option configures the async sender.
type Option func(*config)

type config struct {
	queueSize   int
	sendTimeout time.Duration
	onDropped   func(count int)
	logger      *zap.Logger
}

// WithQueueSize sets the maximum number of pending payloads.
func WithQueueSize(size int) Option {
	return func(c *config) {
		if size > 0 {
			c.queueSize = size
		}
	}
}

// WithSendTimeout bounds each delivery made by the worker.
func WithSendTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.sendTimeout = d
		}
	}
}

// WithOnDropped sets a callback invoked when payloads are dropped due to
// queue overflow.
func WithOnDropped(fn func(count int)) Option {
	return func(c *config) {
		c.onDropped = fn
	}
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

type job struct {
	endpoint string
	payload  []byte
}

// Sender wraps another Sender with a bounded queue.
type Sender struct {
	inner       raygun.Sender
	queue       chan job
	done        chan struct{}
	sendTimeout time.Duration
	onDropped   func(count int)
	logger      *zap.Logger

	// pending counts queued plus in-flight payloads.
	pending atomic.Int64
	dropped atomic.Int64

	closeMu   sync.RWMutex
	closed    bool
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ raygun.Sender = (*Sender)(nil)

// New wraps inner. Send returns immediately; delivery happens in the
// background and failures are logged.
func New(inner raygun.Sender, opts ...Option) *Sender {
	cfg := &config{
		queueSize:   DefaultQueueSize,
		sendTimeout: raygun.DefaultSendTimeout,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := &Sender{
		inner:       inner,
		queue:       make(chan job, cfg.queueSize),
		done:        make(chan struct{}),
		sendTimeout: cfg.sendTimeout,
		onDropped:   cfg.onDropped,
		logger:      cfg.logger.Named("async"),
	}

	s.wg.Add(1)
	go s.processLoop()

	return s
}

// Send enqueues the payload. The ctx is not used for delivery, which always
// runs with its own timeout.
func (s *Sender) Send(_ context.Context, endpoint string, payload []byte) error {
	s.closeMu.RLock()
	defer s.closeMu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	j := job{endpoint: endpoint, payload: append([]byte(nil), payload...)}
	s.pending.Inc()
	select {
	case s.queue <- j:
	default:
		s.dropOldestAndEnqueue(j)
	}
	return nil
}

// dropOldestAndEnqueue drops the oldest payload and enqueues the new one.
func (s *Sender) dropOldestAndEnqueue(j job) {
	select {
	case <-s.queue:
		s.drop()
	default:
		// emptied by the worker in the meantime
	}

	select {
	case s.queue <- j:
	default:
		s.drop()
	}
}

func (s *Sender) drop() {
	s.pending.Dec()
	s.dropped.Inc()
	if s.onDropped != nil {
		s.onDropped(1)
	}
}

// Dropped returns the number of payloads lost to overflow.
func (s *Sender) Dropped() int64 {
	return s.dropped.Load()
}

// Pending returns the number of queued and in-flight payloads.
func (s *Sender) Pending() int64 {
	return s.pending.Load()
}

func (s *Sender) processLoop() {
	defer s.wg.Done()
	for {
		select {
		case j := <-s.queue:
			s.deliver(j)
		case <-s.done:
			for {
				select {
				case j := <-s.queue:
					s.deliver(j)
				default:
					return
				}
			}
		}
	}
}

func (s *Sender) deliver(j job) {
	defer s.pending.Dec()
	defer func() {
		if p := recover(); p != nil {
			s.logger.Error("panic while delivering payload", zap.String("endpoint", j.endpoint), zap.Any("panic", p))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	defer cancel()
	if err := s.inner.Send(ctx, j.endpoint, j.payload); err != nil {
		s.logger.Warn("failed to deliver payload", zap.String("endpoint", j.endpoint), zap.Error(err))
	}
}

// Flush blocks until every payload accepted so far has been delivered or
// dropped, or ctx is done.
func (s *Sender) Flush(ctx context.Context) error {
	ticker := time.NewTicker(5 * time.Millisecond)
	defer ticker.Stop()

	for {
		if s.pending.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close stops accepting payloads and waits for the queue to drain.
func (s *Sender) Close() error {
	s.closeOnce.Do(func() {
		s.closeMu.Lock()
		s.closed = true
		s.closeMu.Unlock()

		close(s.done)
		s.wg.Wait()
	})
	return nil
}

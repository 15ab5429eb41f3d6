// Package queue implements store-and-forward delivery of crash reports.
//
// A payload is sent immediately when the network is reachable. When it is not,
// or the send fails, the payload is written to a bounded Store and replayed in
// order on the next successful send or explicit Flush.
package queue

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/strongdm/raygun4go/pkg/raygun"
)

// DefaultCapacity is the number of payloads kept while offline.
const DefaultCapacity = raygun.DefaultOfflineCapacity

// ErrNoConnectivity is returned by Flush when the network is unreachable.
var ErrNoConnectivity = errors.New("no network connectivity")

// Option configures a Queue.
type Option func(*queueConfig)

type queueConfig struct {
	store        Store
	connectivity raygun.Connectivity
	capacity     int
	logger       *zap.Logger
}

// WithStore sets the payload store (default: in-memory).
func WithStore(s Store) Option {
	return func(c *queueConfig) {
		if s != nil {
			c.store = s
		}
	}
}

// WithConnectivity sets the connectivity probe (default: always connected).
func WithConnectivity(conn raygun.Connectivity) Option {
	return func(c *queueConfig) {
		if conn != nil {
			c.connectivity = conn
		}
	}
}

// WithCapacity bounds the number of stored payloads (default: 10).
func WithCapacity(n int) Option {
	return func(c *queueConfig) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *queueConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// Queue delivers crash report payloads to one endpoint, storing them while
// the endpoint cannot be reached. It is safe for concurrent use.
type Queue struct {
	sender       raygun.Sender
	endpoint     string
	store        Store
	connectivity raygun.Connectivity
	capacity     int
	logger       *zap.Logger

	// mu serializes every store mutation, including whole flushes, so
	// sequence numbers are assigned once and replayed items are deleted once.
	mu sync.Mutex
}

// New creates a queue that sends to endpoint through sender.
func New(sender raygun.Sender, endpoint string, opts ...Option) *Queue {
	cfg := &queueConfig{
		connectivity: raygun.AlwaysConnected,
		capacity:     DefaultCapacity,
		logger:       zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.store == nil {
		cfg.store = NewMemoryStore()
	}
	return &Queue{
		sender:       sender,
		endpoint:     endpoint,
		store:        cfg.store,
		connectivity: cfg.connectivity,
		capacity:     cfg.capacity,
		logger:       cfg.logger.Named("queue"),
	}
}

// Submit sends payload, or stores it for later when the network is down or
// the send fails. A successful send is followed by a flush of stored
// payloads. Submit never panics; the outcome reports what happened.
func (q *Queue) Submit(ctx context.Context, payload []byte) (outcome raygun.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			q.logger.Error("panic while submitting crash report", zap.Any("panic", p))
			outcome = raygun.Dropped
		}
	}()

	if q.connectivity.InternetAvailable() {
		err := q.sender.Send(ctx, q.endpoint, payload)
		if err == nil {
			if err := q.Flush(ctx); err != nil && !errors.Is(err, ErrNoConnectivity) {
				q.logger.Warn("failed to flush stored crash reports", zap.Error(err))
			}
			return raygun.Sent
		}
		q.logger.Warn("failed to send crash report, storing it for later", zap.Error(err))
	} else {
		q.logger.Debug("no connectivity, storing crash report")
	}

	// A send that ran out of time must still be stored.
	seq, err := q.persist(context.WithoutCancel(ctx), payload)
	if err != nil {
		q.logger.Warn("failed to store crash report", zap.Error(err))
		return raygun.Dropped
	}
	q.logger.Debug("stored crash report", zap.Int("sequence", seq))
	return raygun.Queued
}

// Flush sends stored payloads in ascending sequence order, deleting each as
// soon as it is accepted. It stops at the first failed send and leaves the
// rest stored. Unreadable items are deleted and skipped. The returned error
// aggregates every problem encountered and is for diagnostics only.
func (q *Queue) Flush(ctx context.Context) error {
	if !q.connectivity.InternetAvailable() {
		return ErrNoConnectivity
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	seqs, err := q.store.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list stored crash reports")
	}

	var result *multierror.Error
	for _, seq := range seqs {
		if err := ctx.Err(); err != nil {
			return multierror.Append(result, err).ErrorOrNil()
		}

		payload, err := q.store.Read(ctx, seq)
		if err == nil && !raygun.ValidPayload(payload) {
			err = errors.Errorf("item %d is not a valid payload", seq)
		}
		if err != nil {
			q.logger.Warn("discarding unreadable stored crash report", zap.Int("sequence", seq), zap.Error(err))
			result = multierror.Append(result, err)
			if err := q.store.Delete(ctx, seq); err != nil {
				result = multierror.Append(result, err)
			}
			continue
		}

		if err := q.sender.Send(ctx, q.endpoint, payload); err != nil {
			q.logger.Warn("failed to resend stored crash report", zap.Int("sequence", seq), zap.Error(err))
			result = multierror.Append(result, errors.Wrapf(err, "resend item %d", seq))
			break
		}
		if err := q.store.Delete(ctx, seq); err != nil {
			q.logger.Warn("failed to delete resent crash report", zap.Int("sequence", seq), zap.Error(err))
			result = multierror.Append(result, err)
			continue
		}
		q.logger.Debug("resent stored crash report", zap.Int("sequence", seq))
	}
	return result.ErrorOrNil()
}

// Len returns the number of stored payloads.
func (q *Queue) Len(ctx context.Context) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	seqs, err := q.store.List(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list stored crash reports")
	}
	return len(seqs), nil
}

// persist stores payload after the newest stored item. Sequence numbers stay
// within 1..capacity: when the top slot is taken the items are renumbered
// from 1, evicting the oldest first if the store is full.
func (q *Queue) persist(ctx context.Context, payload []byte) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	seqs, err := q.store.List(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list stored crash reports")
	}

	next := 1
	if n := len(seqs); n > 0 {
		next = seqs[n-1] + 1
	}
	if next > q.capacity {
		if excess := len(seqs) - q.capacity + 1; excess > 0 {
			for _, seq := range seqs[:excess] {
				if err := q.store.Delete(ctx, seq); err != nil {
					return 0, errors.Wrapf(err, "evict item %d", seq)
				}
				q.logger.Info("evicted oldest stored crash report", zap.Int("sequence", seq))
			}
			seqs = seqs[excess:]
		}
		if next, err = q.compact(ctx, seqs); err != nil {
			return 0, err
		}
	}

	if err := q.store.Write(ctx, next, payload); err != nil {
		return 0, errors.Wrapf(err, "write item %d", next)
	}
	return next, nil
}

// compact renumbers seqs (ascending) to 1..n keeping their order and returns
// the next free sequence number. Unreadable items are dropped.
func (q *Queue) compact(ctx context.Context, seqs []int) (int, error) {
	target := 1
	for _, seq := range seqs {
		if seq == target {
			target++
			continue
		}
		payload, err := q.store.Read(ctx, seq)
		if err != nil {
			q.logger.Warn("discarding unreadable stored crash report", zap.Int("sequence", seq), zap.Error(err))
			if err := q.store.Delete(ctx, seq); err != nil {
				return 0, errors.Wrapf(err, "delete item %d", seq)
			}
			continue
		}
		if err := q.store.Write(ctx, target, payload); err != nil {
			return 0, errors.Wrapf(err, "move item %d to %d", seq, target)
		}
		if err := q.store.Delete(ctx, seq); err != nil {
			// Keep a single copy of the payload.
			if rbErr := q.store.Delete(ctx, target); rbErr != nil {
				q.logger.Error("failed to undo crash report move, payload stored twice",
					zap.Int("sequence", seq), zap.Int("target", target), zap.Error(rbErr))
			}
			return 0, errors.Wrapf(err, "move item %d to %d", seq, target)
		}
		target++
	}
	return target, nil
}

// Package multi provides a Sender that fans out to multiple senders.
// Every sender receives every payload; errors are aggregated.
package multi

import (
	"context"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/strongdm/raygun4go/pkg/raygun"
)

// Sender fans out to multiple senders.
type Sender struct {
	senders []raygun.Sender
}

var _ raygun.Sender = (*Sender)(nil)

// New creates a Sender that delivers to each of senders in order. Nil
// senders are skipped.
func New(senders ...raygun.Sender) *Sender {
	s := &Sender{}
	for _, inner := range senders {
		if inner != nil {
			s.senders = append(s.senders, inner)
		}
	}
	return s
}

// Send delivers the payload to every sender, collecting any errors. All
// senders are called even if some fail.
func (s *Sender) Send(ctx context.Context, endpoint string, payload []byte) error {
	var result *multierror.Error
	for i, inner := range s.senders {
		if err := inner.Send(ctx, endpoint, payload); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "sender %d", i))
		}
	}
	return result.ErrorOrNil()
}

// Close closes every sender that implements io.Closer.
func (s *Sender) Close() error {
	var result *multierror.Error
	for _, inner := range s.senders {
		if c, ok := inner.(io.Closer); ok {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}

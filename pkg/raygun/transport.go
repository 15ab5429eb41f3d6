// transport.go defines the delivery collaborators and send outcomes.

package raygun

import (
	"context"

	"github.com/pkg/errors"
)

// Sender delivers a serialized payload to an endpoint.
//
// Implementations must be safe for concurrent use. Send returns nil only when
// the endpoint accepted the payload.
type Sender interface {
	Send(ctx context.Context, endpoint string, payload []byte) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, endpoint string, payload []byte) error

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, endpoint string, payload []byte) error {
	return f(ctx, endpoint, payload)
}

// Connectivity reports whether the network is currently reachable.
type Connectivity interface {
	InternetAvailable() bool
}

// ConnectivityFunc adapts a function to Connectivity.
type ConnectivityFunc func() bool

// InternetAvailable calls f.
func (f ConnectivityFunc) InternetAvailable() bool {
	return f()
}

// AlwaysConnected is a Connectivity that always reports the network as
// reachable and lets the send attempt decide.
var AlwaysConnected Connectivity = ConnectivityFunc(func() bool { return true })

// Outcome is the result of submitting a crash report.
type Outcome int

const (
	// Dropped means the report was neither sent nor stored.
	Dropped Outcome = iota
	// Queued means the report was stored for a later attempt.
	Queued
	// Sent means the endpoint accepted the report.
	Sent
)

var outcomeNames = map[Outcome]string{
	Dropped: "dropped",
	Queued:  "queued",
	Sent:    "sent",
}

// String returns the short tag of o.
func (o Outcome) String() string {
	if name, ok := outcomeNames[o]; ok {
		return name
	}
	return "unknown"
}

// MarshalText implements encoding.TextMarshaler.
func (o Outcome) MarshalText() ([]byte, error) {
	name, ok := outcomeNames[o]
	if !ok {
		return nil, errors.Errorf("unknown outcome %d", int(o))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (o *Outcome) UnmarshalText(text []byte) error {
	for k, v := range outcomeNames {
		if v == string(text) {
			*o = k
			return nil
		}
	}
	return errors.Errorf("unknown outcome %q", text)
}

// Worst returns the least successful of outcomes, or Sent when none are
// given.
func Worst(outcomes ...Outcome) Outcome {
	worst := Sent
	for _, o := range outcomes {
		if o < worst {
			worst = o
		}
	}
	return worst
}

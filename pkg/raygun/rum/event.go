// event.go defines the RUM wire model.

package rum

import (
	"time"

	"github.com/pkg/errors"

	"github.com/strongdm/raygun4go/pkg/raygun"
)

// EventType is the kind of a RUM event.
type EventType int

const (
	SessionStart EventType = iota
	SessionEnd
	Timing
)

var eventTypeNames = map[EventType]string{
	SessionStart: "session_start",
	SessionEnd:   "session_end",
	Timing:       "mobile_event_timing",
}

// String returns the wire tag of t.
func (t EventType) String() string {
	return eventTypeNames[t]
}

// MarshalText implements encoding.TextMarshaler.
func (t EventType) MarshalText() ([]byte, error) {
	name, ok := eventTypeNames[t]
	if !ok {
		return nil, errors.Errorf("unknown event type %d", int(t))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *EventType) UnmarshalText(text []byte) error {
	for k, v := range eventTypeNames {
		if v == string(text) {
			*t = k
			return nil
		}
	}
	return errors.Errorf("unknown event type %q", text)
}

// TimingType is the kind of a timing measurement.
type TimingType int

const (
	// ViewLoaded measures how long a view took to load.
	ViewLoaded TimingType = iota
	// NetworkCall measures a network request.
	NetworkCall
)

var timingTypeNames = map[TimingType]string{
	ViewLoaded:  "p",
	NetworkCall: "n",
}

// String returns the wire tag of t.
func (t TimingType) String() string {
	return timingTypeNames[t]
}

// MarshalText implements encoding.TextMarshaler.
func (t TimingType) MarshalText() ([]byte, error) {
	name, ok := timingTypeNames[t]
	if !ok {
		return nil, errors.Errorf("unknown timing type %d", int(t))
	}
	return []byte(name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *TimingType) UnmarshalText(text []byte) error {
	for k, v := range timingTypeNames {
		if v == string(text) {
			*t = k
			return nil
		}
	}
	return errors.Errorf("unknown timing type %q", text)
}

// Message is the payload posted to the RUM endpoint.
type Message struct {
	EventData []EventInfo `json:"eventData"`
}

// EventInfo is one RUM event.
type EventInfo struct {
	SessionID string           `json:"sessionId"`
	Timestamp time.Time        `json:"timestamp"`
	Type      EventType        `json:"type"`
	User      *raygun.UserInfo `json:"user,omitempty"`
	Version   string           `json:"version"`
	OS        string           `json:"os"`
	OSVersion string           `json:"osVersion"`
	Platform  string           `json:"platform"`
	// Data is the JSON encoded timing list for Timing events.
	Data string `json:"data,omitempty"`
}

// TimingEntry is one element of a Timing event's data.
type TimingEntry struct {
	Name   string      `json:"Name"`
	Timing TimingValue `json:"Timing"`
}

// TimingValue is a typed duration in milliseconds.
type TimingValue struct {
	Type     TimingType `json:"Type"`
	Duration int64      `json:"Duration"`
}

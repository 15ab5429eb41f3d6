// breadcrumbs.go provides the bounded breadcrumb trail attached to crash reports.

package raygun

import (
	"sync"
	"time"
)

// MaxBreadcrumbs is the capacity of the breadcrumb trail.
const MaxBreadcrumbs = 25

// Breadcrumb is a diagnostic trail entry recorded before a crash.
type Breadcrumb struct {
	Message    string         `json:"message"`
	Category   string         `json:"category,omitempty"`
	CustomData map[string]any `json:"customData"`
	// Timestamp is in milliseconds since the Unix epoch.
	Timestamp int64 `json:"timestamp"`
}

// NewBreadcrumb creates a breadcrumb stamped with the current time.
func NewBreadcrumb(message, category string) Breadcrumb {
	return Breadcrumb{
		Message:    message,
		Category:   category,
		CustomData: map[string]any{},
		Timestamp:  time.Now().UnixMilli(),
	}
}

// Breadcrumbs is a fixed-capacity FIFO of breadcrumbs. When full, recording
// evicts the oldest entry. It is safe for concurrent use.
type Breadcrumbs struct {
	mu       sync.Mutex
	records  []Breadcrumb
	maxSize  int
	writeIdx int
}

// NewBreadcrumbs creates an empty trail holding up to MaxBreadcrumbs entries.
func NewBreadcrumbs() *Breadcrumbs {
	return &Breadcrumbs{maxSize: MaxBreadcrumbs}
}

// Record appends a breadcrumb, evicting the oldest if the trail is full.
// Zero timestamps are set to now and a nil CustomData becomes empty.
func (b *Breadcrumbs) Record(crumb Breadcrumb) {
	if crumb.Timestamp == 0 {
		crumb.Timestamp = time.Now().UnixMilli()
	}
	crumb.CustomData = copyData(crumb.CustomData)

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.records) < b.maxSize {
		b.records = append(b.records, crumb)
		return
	}
	// Full: writeIdx points at the oldest entry.
	b.records[b.writeIdx] = crumb
	b.writeIdx = (b.writeIdx + 1) % b.maxSize
}

// Clear removes all breadcrumbs.
func (b *Breadcrumbs) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records = nil
	b.writeIdx = 0
}

// Size returns the number of stored breadcrumbs.
func (b *Breadcrumbs) Size() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// Snapshot returns a copy of the trail, oldest first. Later calls to Record
// do not affect the returned slice.
func (b *Breadcrumbs) Snapshot() []Breadcrumb {
	b.mu.Lock()
	defer b.mu.Unlock()

	result := make([]Breadcrumb, 0, len(b.records))
	result = append(result, b.records[b.writeIdx:]...)
	result = append(result, b.records[:b.writeIdx]...)
	for i := range result {
		result[i].CustomData = copyData(result[i].CustomData)
	}
	return result
}

func copyData(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

package monitor

import "context"

// RawField is one field of a source record. Value is typically a
// string, but timestamp fields carry time.Time and journal values may
// be numbers or arrays.
type RawField struct {
	Name  string
	Value any
}

// RawRecord is a source event with field encounter order preserved.
type RawRecord []RawField

// Get returns the string form of the named field, or "" when absent.
func (r RawRecord) Get(name string) string {
	for _, f := range r {
		if f.Name == name {
			if s, ok := f.Value.(string); ok {
				return s
			}
		}
	}
	return ""
}

// EventSource is a platform event stream. Severity filtering happens
// inside the source subscription, not in the monitor.
type EventSource interface {
	// Name tags events from this source (journald, eventlog).
	Name() string

	// Next blocks until a raw record is available or ctx is done.
	Next(ctx context.Context) (RawRecord, error)

	// Close releases the underlying subscription.
	Close() error
}

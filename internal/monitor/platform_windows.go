//go:build windows

package monitor

import "github.com/rs/zerolog"

// NewPlatformSource selects the host's event source at startup.
func NewPlatformSource(log zerolog.Logger) (EventSource, error) {
	return NewEventLogSource(log)
}

// DedupField is empty on Windows: event-log entries are not
// deduplicated, matching the journal-only dedup contract.
const DedupField = ""

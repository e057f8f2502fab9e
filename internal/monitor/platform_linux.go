//go:build linux

package monitor

import "github.com/rs/zerolog"

// NewPlatformSource selects the host's event source at startup.
func NewPlatformSource(log zerolog.Logger) (EventSource, error) {
	return NewJournaldSource(log)
}

// DedupField names the raw field deduplication keys on for this
// platform's source. Only the journal stream is deduplicated.
const DedupField = "MESSAGE"

package monitor

// Dedup suppresses repeated messages within one monitoring session.
// It is bounded by entry count with FIFO eviction; limit 0 keeps every
// message for the session's lifetime. Owned by a single monitor, never
// shared, never persisted.
type Dedup struct {
	seen  map[string]struct{}
	order []string
	limit int
}

// NewDedup builds a filter holding at most limit messages (0 for
// unbounded).
func NewDedup(limit int) *Dedup {
	return &Dedup{
		seen:  make(map[string]struct{}),
		limit: limit,
	}
}

// ShouldEmit reports whether message has not been seen this session,
// recording it when new. Empty messages are never emitted and never
// recorded.
func (d *Dedup) ShouldEmit(message string) bool {
	if message == "" {
		return false
	}
	if _, ok := d.seen[message]; ok {
		return false
	}

	if d.limit > 0 && len(d.order) >= d.limit {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}

	d.seen[message] = struct{}{}
	d.order = append(d.order, message)
	return true
}

// Len reports the number of messages currently held.
func (d *Dedup) Len() int { return len(d.seen) }

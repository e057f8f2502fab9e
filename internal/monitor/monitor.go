// Package monitor contains the generic monitoring loop shared by the
// journal, event-log, and vitals relays: pull the next payload from a
// feed, hand it to the delivery client, repeat until stopped.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/admin-iq/iq-agent/internal/delivery"
	"github.com/admin-iq/iq-agent/internal/metrics"
	"github.com/admin-iq/iq-agent/pkg/models"
)

// errSkip signals that the feed consumed a raw event without producing
// a payload (empty or duplicate message).
var errSkip = errors.New("event skipped")

// Feed produces the next ready-to-sign JSON payload. Both flavors of
// monitoring (push-subscribed event streams and the timer-driven
// vitals collector) implement this.
type Feed interface {
	// Kind labels payloads in logs and metrics (log, vitals).
	Kind() string

	// Next blocks until a payload is ready or ctx is done.
	Next(ctx context.Context) ([]byte, error)
}

// Monitor drives one feed against the delivery client.
type Monitor struct {
	name   string
	url    string
	feed   Feed
	client *delivery.Client
	log    zerolog.Logger
}

func New(name, url string, feed Feed, client *delivery.Client, log zerolog.Logger) *Monitor {
	return &Monitor{
		name:   name,
		url:    url,
		feed:   feed,
		client: client,
		log:    log.With().Str("monitor", name).Logger(),
	}
}

// Run loops until ctx is canceled. Source read errors skip the event;
// delivery exhaustion drops the payload; neither stops the loop. An
// in-flight delivery runs its full attempt ceiling before a pending
// stop is honored, so the delivery context is detached from ctx.
func (m *Monitor) Run(ctx context.Context) {
	m.log.Info().Msg("monitor started")
	for {
		payload, err := m.feed.Next(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			m.log.Info().Msg("monitor stopped")
			return
		case errors.Is(err, errSkip):
			continue
		case err != nil:
			m.log.Warn().Err(err).Msg("reading event source")
			// Avoid a hot loop when the source is persistently broken.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		if err := m.client.Deliver(context.Background(), m.url, m.feed.Kind(), payload); err != nil {
			// Already logged by the client; the event is dropped.
			continue
		}

		if ctx.Err() != nil {
			m.log.Info().Msg("monitor stopped")
			return
		}
	}
}

// LogFeed adapts an event source into the pipeline: pull, normalize,
// dedup, marshal. Dedup applies only when dedupField names a raw field
// (the journal MESSAGE field); sources without one skip filtering.
type LogFeed struct {
	source     EventSource
	dedup      *Dedup
	dedupField string
}

// NewLogFeed wires a source to an optional dedup filter keyed on the
// named raw field.
func NewLogFeed(source EventSource, dedup *Dedup, dedupField string) *LogFeed {
	return &LogFeed{source: source, dedup: dedup, dedupField: dedupField}
}

func (f *LogFeed) Kind() string { return "log" }

func (f *LogFeed) Next(ctx context.Context) ([]byte, error) {
	rec, err := f.source.Next(ctx)
	if err != nil {
		return nil, err
	}

	if f.dedupField != "" {
		message := rec.Get(f.dedupField)
		if !f.dedup.ShouldEmit(message) {
			if message != "" {
				metrics.DedupSuppressed.WithLabelValues(f.source.Name()).Inc()
			}
			return nil, errSkip
		}
	}

	event := Normalize(f.source.Name(), rec)
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encoding log event: %w", err)
	}
	return payload, nil
}

// Collector produces one vitals tree per call. Sub-probe failures are
// handled inside the collector; Collect never fails as a whole.
type Collector interface {
	Collect() map[string]any
}

// VitalsFeed emits one vitals payload per tick.
type VitalsFeed struct {
	collector Collector
	ticker    *time.Ticker
}

func NewVitalsFeed(collector Collector, interval time.Duration) *VitalsFeed {
	return &VitalsFeed{
		collector: collector,
		ticker:    time.NewTicker(interval),
	}
}

func (f *VitalsFeed) Kind() string { return "vitals" }

func (f *VitalsFeed) Next(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-f.ticker.C:
	}

	vitals, err := json.MarshalIndent(f.collector.Collect(), "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encoding vitals tree: %w", err)
	}

	payload, err := json.Marshal(models.VitalsEvent{Vitals: string(vitals)})
	if err != nil {
		return nil, fmt.Errorf("encoding vitals event: %w", err)
	}
	return payload, nil
}

// Stop releases the feed's ticker.
func (f *VitalsFeed) Stop() { f.ticker.Stop() }

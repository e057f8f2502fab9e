//go:build windows

package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// eventLogScript reads System log entries at critical or error level
// that arrived after the given record ID. Only the well-known members
// below are extracted; everything else in the rendered event is
// out of the wire contract.
const eventLogScript = `
$ErrorActionPreference = 'SilentlyContinue'
$events = Get-WinEvent -LogName System -FilterXPath "*[System[(Level=1 or Level=2)]]" -MaxEvents 128 |
    Where-Object { $_.RecordId -gt %d } |
    Sort-Object RecordId
$out = @($events | ForEach-Object {
    @{
        message        = $_.Message
        priority       = [string]$_.Level
        eventid        = $_.Id
        eventcategory  = $_.Task
        eventtype      = $_.LevelDisplayName
        recordnumber   = $_.RecordId
        sid            = [string]$_.UserId
        sourcename     = $_.ProviderName
        timegenerated  = $_.TimeCreated.ToUniversalTime().ToString('o')
        timewritten    = $_.TimeCreated.ToUniversalTime().ToString('o')
    }
})
ConvertTo-Json -InputObject $out -Depth 3 -Compress
`

// eventLogMembers fixes the property order of each relayed entry:
// the rendered message and level first, then the well-known members.
var eventLogMembers = []string{
	"message",
	"priority",
	"eventid",
	"eventcategory",
	"eventtype",
	"recordnumber",
	"sid",
	"sourcename",
	"timegenerated",
	"timewritten",
}

// EventLogSource polls the Windows System event log for critical and
// error entries, tracking a record-ID watermark so each entry is
// relayed once.
type EventLogSource struct {
	interval  time.Duration
	watermark int64
	pending   []RawRecord
	log       zerolog.Logger
}

func NewEventLogSource(log zerolog.Logger) (*EventLogSource, error) {
	s := &EventLogSource{
		interval: 5 * time.Second,
		log:      log.With().Str("source", "eventlog").Logger(),
	}

	// Seed the watermark so only future events are relayed.
	if err := s.fetch(); err != nil {
		return nil, fmt.Errorf("probing event log: %w", err)
	}
	s.pending = nil
	return s, nil
}

func (s *EventLogSource) Name() string { return "eventlog" }

func (s *EventLogSource) Next(ctx context.Context) (RawRecord, error) {
	for {
		if len(s.pending) > 0 {
			rec := s.pending[0]
			s.pending = s.pending[1:]
			return rec, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(s.interval):
		}

		if err := s.fetch(); err != nil {
			s.log.Warn().Err(err).Msg("event log poll failed")
		}
	}
}

func (s *EventLogSource) Close() error { return nil }

func (s *EventLogSource) fetch() error {
	script := fmt.Sprintf(eventLogScript, s.watermark)
	out, err := exec.Command("powershell",
		"-NoProfile", "-NonInteractive", "-Command", script).Output()
	if err != nil {
		return fmt.Errorf("powershell: %w", err)
	}

	text := strings.TrimSpace(strings.TrimPrefix(string(out), "\xef\xbb\xbf"))
	if text == "" || text == "null" {
		return nil
	}

	var entries []map[string]any
	if err := json.Unmarshal([]byte(text), &entries); err != nil {
		return fmt.Errorf("parsing event log output: %w", err)
	}

	for _, entry := range entries {
		var rec RawRecord
		for _, member := range eventLogMembers {
			value, ok := entry[member]
			if !ok || value == nil {
				continue
			}
			rec = append(rec, RawField{Name: member, Value: value})
		}
		if record, ok := entry["recordnumber"].(float64); ok && int64(record) > s.watermark {
			s.watermark = int64(record)
		}
		s.pending = append(s.pending, rec)
	}
	return nil
}

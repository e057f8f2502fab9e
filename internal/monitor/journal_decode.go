package monitor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// decodeJournalEntry parses one journalctl JSON line into an ordered
// record. Realtime timestamp fields (microseconds since epoch) are
// converted to time values so they render as ISO-8601 downstream.
func decodeJournalEntry(line []byte) (RawRecord, error) {
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("journal entry is not a JSON object")
	}

	var rec RawRecord
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		name, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected journal field key %v", keyTok)
		}

		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, err
		}

		if isRealtimeField(name) {
			if ts, ok := parseRealtime(value); ok {
				value = ts
			}
		}
		rec = append(rec, RawField{Name: name, Value: value})
	}
	return rec, nil
}

func isRealtimeField(name string) bool {
	return name == "__REALTIME_TIMESTAMP" || name == "_SOURCE_REALTIME_TIMESTAMP"
}

func parseRealtime(value any) (time.Time, bool) {
	var text string
	switch v := value.(type) {
	case string:
		text = v
	case json.Number:
		text = v.String()
	default:
		return time.Time{}, false
	}

	usec, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.UnixMicro(usec).UTC(), true
}

package monitor

import (
	"fmt"
	"strings"
	"time"

	"github.com/admin-iq/iq-agent/pkg/models"
)

// Normalize converts a raw source record into a canonical log event.
// Field names are lower-cased, timestamps render as ISO-8601, all
// other values take their default string form. Encounter order is
// preserved; no field is dropped.
func Normalize(source string, rec RawRecord) models.LogEvent {
	properties := make([]models.LogProperty, 0, len(rec))
	for _, f := range rec {
		properties = append(properties, models.LogProperty{
			Name:  strings.ToLower(f.Name),
			Value: stringify(f.Value),
		})
	}
	return models.NewLogEvent(source, properties)
}

func stringify(v any) string {
	switch val := v.(type) {
	case time.Time:
		return val.Format(time.RFC3339Nano)
	case string:
		return val
	default:
		return fmt.Sprint(val)
	}
}

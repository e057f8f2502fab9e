//go:build !linux && !windows

package monitor

import (
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
)

// NewPlatformSource selects the host's event source at startup.
func NewPlatformSource(log zerolog.Logger) (EventSource, error) {
	return nil, fmt.Errorf("no event source for %s", runtime.GOOS)
}

const DedupField = ""

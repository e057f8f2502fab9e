//go:build linux

package monitor

import (
	"bufio"
	"context"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog"
)

// JournaldSource tails the system journal at error priority and above
// via journalctl's JSON output. Field encounter order in each entry is
// preserved through an order-aware decode.
type JournaldSource struct {
	cmd     *exec.Cmd
	records chan RawRecord
	cancel  context.CancelFunc
	log     zerolog.Logger
}

// NewJournaldSource starts the journal tail from the current end, so
// only entries arriving after startup are relayed.
func NewJournaldSource(log zerolog.Logger) (*JournaldSource, error) {
	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, "journalctl",
		"--follow",
		"--lines=0",
		"--priority=err",
		"--output=json")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("opening journalctl pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting journalctl: %w", err)
	}

	s := &JournaldSource{
		cmd:     cmd,
		records: make(chan RawRecord, 64),
		cancel:  cancel,
		log:     log.With().Str("source", "journald").Logger(),
	}

	go func() {
		defer close(s.records)
		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			rec, err := decodeJournalEntry(scanner.Bytes())
			if err != nil {
				s.log.Warn().Err(err).Msg("skipping malformed journal entry")
				continue
			}
			select {
			case s.records <- rec:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			s.log.Warn().Err(err).Msg("journal stream closed")
		}
	}()

	return s, nil
}

func (s *JournaldSource) Name() string { return "journald" }

func (s *JournaldSource) Next(ctx context.Context) (RawRecord, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case rec, ok := <-s.records:
		if !ok {
			return nil, fmt.Errorf("journal stream ended")
		}
		return rec, nil
	}
}

func (s *JournaldSource) Close() error {
	s.cancel()
	return s.cmd.Wait()
}


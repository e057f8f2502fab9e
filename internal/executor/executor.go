// Package executor polls the service for pending server commands,
// runs them through the local shell, and reports results back on the
// per-command reply endpoint.
package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"runtime"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/admin-iq/iq-agent/internal/delivery"
	"github.com/admin-iq/iq-agent/internal/metrics"
	"github.com/admin-iq/iq-agent/internal/security"
	"github.com/admin-iq/iq-agent/pkg/models"
)

// Executor drives the command poll/execute/report cycle.
type Executor struct {
	http     *resty.Client
	delivery *delivery.Client
	url      string
	log      zerolog.Logger
}

// New builds an executor against the command endpoint. pollTimeout
// bounds the poll request; result delivery uses the shared client's
// own attempt ceiling.
func New(url string, sec *security.Provider, client *delivery.Client, pollTimeout time.Duration, log zerolog.Logger) *Executor {
	http := resty.New().
		SetTimeout(pollTimeout).
		SetHeader("Authorization", "Bearer "+sec.AccessToken()).
		SetHeader("Client-ID", sec.ClientID())

	return &Executor{
		http:     http,
		delivery: client,
		url:      url,
		log:      log.With().Str("component", "executor").Logger(),
	}
}

// Poll fetches commands awaiting execution. A failed or non-200 poll
// is logged and yields an empty list; polling is never fatal.
func (e *Executor) Poll(ctx context.Context) []models.ServerCommand {
	var commands []models.ServerCommand

	resp, err := e.http.R().
		SetContext(ctx).
		SetQueryParam("status", "pending").
		SetResult(&commands).
		Get(e.url)
	if err != nil {
		e.log.Error().Err(err).Msg("polling for commands failed")
		return nil
	}
	if resp.StatusCode() != 200 {
		e.log.Error().
			Int("status", resp.StatusCode()).
			Msg("service rejected command poll")
		return nil
	}

	return commands
}

// Execute runs the command text through the shell and captures the
// outcome. A non-zero exit is recorded in the result, not returned as
// an error; the shell is trusted with the text verbatim.
func (e *Executor) Execute(cmd models.ServerCommand) models.ServerCommandResult {
	start := time.Now()

	shell := shellCommand(cmd.Command)
	var stdout, stderr bytes.Buffer
	shell.Stdout = &stdout
	shell.Stderr = &stderr

	exitCode := 0
	if err := shell.Run(); err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			exitCode = -1
			fmt.Fprintf(&stderr, "%v", err)
		}
	}

	end := time.Now()
	metrics.CommandsExecuted.Inc()

	return models.ServerCommandResult{
		StartDate: start.UTC(),
		EndDate:   end.UTC(),
		TotalTime: end.Sub(start).Seconds(),
		ExitCode:  exitCode,
		Stdout:    stdout.String(),
		Stderr:    stderr.String(),
	}
}

// Run performs one poll cycle: execute each pending command and report
// its result. A failed report is dropped without blocking the rest of
// the cycle.
func (e *Executor) Run(ctx context.Context) {
	for _, cmd := range e.Poll(ctx) {
		e.log.Info().
			Str("command_id", cmd.ID.String()).
			Str("user", cmd.UserName).
			Msg("executing server command")

		result := e.Execute(cmd)

		payload, err := json.Marshal(result)
		if err != nil {
			e.log.Error().Err(err).
				Str("command_id", cmd.ID.String()).
				Msg("encoding command result")
			continue
		}

		url := fmt.Sprintf("%s%s/result/", e.url, cmd.ID)
		if err := e.delivery.Deliver(ctx, url, "result", payload); err != nil {
			// Logged by the client; move on to the next command.
			continue
		}
	}
}

func shellCommand(command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.Command("powershell",
			"-NonInteractive", "-NoProfile", "-Command", command)
	}
	return exec.Command("/bin/sh", "-c", command)
}

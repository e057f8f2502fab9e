package models

import (
	"time"

	"github.com/google/uuid"
)

// LogProperty is a single name/value pair attached to a log event.
type LogProperty struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// LogEvent is the canonical representation of one entry pulled from a
// host event source. Property order follows the order fields were
// encountered in the raw record.
type LogEvent struct {
	EventDate  time.Time     `json:"event_date"`
	Source     string        `json:"source"`
	Properties []LogProperty `json:"properties"`
}

// NewLogEvent stamps the event with the current time, mirroring the
// server-side creation default.
func NewLogEvent(source string, properties []LogProperty) LogEvent {
	return LogEvent{
		EventDate:  time.Now().UTC(),
		Source:     source,
		Properties: properties,
	}
}

// VitalsEvent carries one point-in-time snapshot of host vitals as a
// pre-serialized JSON blob.
type VitalsEvent struct {
	Vitals string `json:"vitals"`
}

// ServerCommandStatus enumerates the lifecycle states of a server
// command. The service owns the status; the agent only ever reads it.
type ServerCommandStatus string

const (
	CommandCanceled  ServerCommandStatus = "canceled"
	CommandCompleted ServerCommandStatus = "completed"
	CommandPending   ServerCommandStatus = "pending"
	CommandRejected  ServerCommandStatus = "rejected"
	CommandRequested ServerCommandStatus = "requested"
)

// ServerCommand is a command issued by the service for execution on
// this host. The agent reads Command and reports completion through a
// ServerCommandResult; it never mutates Status.
type ServerCommand struct {
	ID              uuid.UUID           `json:"id"`
	CreateDate      time.Time           `json:"create_date"`
	ChannelID       string              `json:"channel_id"`
	ServerID        uuid.UUID           `json:"server_id"`
	ThreadID        *string             `json:"thread_id,omitempty"`
	UserID          uuid.UUID           `json:"user_id"`
	ChannelName     string              `json:"channel_name"`
	ServerName      string              `json:"server_name"`
	UserName        string              `json:"user_name"`
	Query           string              `json:"query"`
	Command         string              `json:"command"`
	Status          ServerCommandStatus `json:"status"`
	NotificationURL *string             `json:"notification_url,omitempty"`
}

// ServerCommandResult describes the outcome of one executed command.
type ServerCommandResult struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	TotalTime float64   `json:"total_time"`
	ExitCode  int       `json:"exit_code"`
	Stdout    string    `json:"stdout,omitempty"`
	Stderr    string    `json:"stderr,omitempty"`
}

// Package events defines the messages pushed to browser clients over the
// WebSocket connection while data is loaded, processed and diagnosed.
package events

import (
	"time"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	// Connection lifecycle
	MessageTypeConnection MessageType = "connection"
	MessageTypeHeartbeat  MessageType = "heartbeat"

	// Session state changes
	MessageTypeDataLoaded      MessageType = "data:loaded"
	MessageTypeLayoutUpdated   MessageType = "layout:updated"
	MessageTypeParamsUpdated   MessageType = "parameters:updated"
	MessageTypeDiagnosisConfig MessageType = "diagnosis:config"

	// Pipeline progress
	MessageTypeStage            MessageType = "pipeline:stage"
	MessageTypePipelineComplete MessageType = "pipeline:complete"
	MessageTypeDiagnosisStage   MessageType = "diagnosis:stage"
	MessageTypeDiagnosisResult  MessageType = "diagnosis:complete"

	MessageTypeError MessageType = "error"
)

// StageStatus is the state of one pipeline stage.
type StageStatus string

const (
	StageStarted   StageStatus = "started"
	StageCompleted StageStatus = "completed"
	StageFailed    StageStatus = "failed"
)

// Message is the envelope for every server-to-client message.
type Message struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// NewMessage stamps a message with the current time.
func NewMessage(t MessageType, traceID string, data interface{}) Message {
	return Message{
		Type:      t,
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
		Data:      data,
	}
}

// ConnectionData greets a newly registered client.
type ConnectionData struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
	Message  string `json:"message"`
}

// DataLoaded is sent after a trace file has been parsed.
type DataLoaded struct {
	Source string `json:"source"`
	Wells  int    `json:"wells"`
	Frames int    `json:"frames"`
}

// LayoutUpdated is sent whenever the plate layout changes.
type LayoutUpdated struct {
	Reason   string   `json:"reason"`
	Assigned int      `json:"assigned"`
	Groups   []string `json:"groups,omitempty"`
}

// StageEvent reports a pipeline stage transition.
type StageEvent struct {
	RunID      string      `json:"run_id"`
	Stage      string      `json:"stage"`
	Status     StageStatus `json:"status"`
	DurationMS int64       `json:"duration_ms,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// PipelineComplete summarises a successful processing run.
type PipelineComplete struct {
	RunID       string `json:"run_id"`
	Wells       int    `json:"wells"`
	Groups      int    `json:"groups"`
	Normalized  int    `json:"normalized"`
	FitFailures int    `json:"fit_failures"`
	DurationMS  int64  `json:"duration_ms"`
}

// DiagnosisComplete summarises a diagnostic run.
type DiagnosisComplete struct {
	RunID    string            `json:"run_id"`
	QCPassed bool              `json:"qc_passed"`
	Failed   []string          `json:"failed_tests,omitempty"`
	Samples  map[string]string `json:"samples"`
}

// ErrorData is a structured error for the client.
type ErrorData struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Stage       string `json:"stage,omitempty"`
	Recoverable bool   `json:"recoverable"`
	Hint        string `json:"hint,omitempty"`
}

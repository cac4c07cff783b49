package models

import (
	"encoding/json"
	"time"
)

// OutputFormat is the export format of a job.
type OutputFormat string

const (
	FormatExcel OutputFormat = "excel"
	FormatCSV   OutputFormat = "csv"
)

// ParseOutputFormat validates a user-supplied format name.
func ParseOutputFormat(s string) (OutputFormat, bool) {
	switch OutputFormat(s) {
	case FormatExcel, FormatCSV:
		return OutputFormat(s), true
	}
	return "", false
}

// Extension returns the file extension for the format.
func (f OutputFormat) Extension() string {
	if f == FormatCSV {
		return "csv"
	}
	return "xlsx"
}

// ContentType returns the MIME type of exported files.
func (f OutputFormat) ContentType() string {
	if f == FormatCSV {
		return "text/csv; charset=utf-8"
	}
	return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
}

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusFinalizing JobStatus = "finalizing"
	StatusCompleted  JobStatus = "completed"
	StatusError      JobStatus = "error"
)

var statusRank = map[JobStatus]int{
	StatusQueued:     0,
	StatusProcessing: 1,
	StatusFinalizing: 2,
	StatusCompleted:  3,
	StatusError:      4,
}

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == StatusError
}

// CanTransition reports whether moving from s to next keeps the status monotonic.
// Error is reachable from every state before completed; completed and error
// are both final.
func (s JobStatus) CanTransition(next JobStatus) bool {
	if s.Terminal() || s == StatusCompleted {
		return false
	}
	if next == StatusError {
		return true
	}
	cur, ok := statusRank[s]
	if !ok {
		return false
	}
	n, ok := statusRank[next]
	return ok && n > cur
}

// Job is the registry snapshot of one batch.
type Job struct {
	ID           string       `json:"id"`
	Status       JobStatus    `json:"status"`
	OutputFormat OutputFormat `json:"outputFormat"`
	Total        int          `json:"total"`
	Processed    int          `json:"processed"`
	Failures     int          `json:"failures"`
	Files        []string     `json:"files,omitempty"`
	DownloadName string       `json:"downloadName,omitempty"`
	OutputKey    string       `json:"outputKey,omitempty"`
	Error        string       `json:"error,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// EventKind tags a ProgressEvent.
type EventKind string

const (
	EventQueued      EventKind = "queued"
	EventStart       EventKind = "start"
	EventProgress    EventKind = "progress"
	EventComplete    EventKind = "complete"
	EventOutputReady EventKind = "output_ready"
	EventFinished    EventKind = "finished"
	EventError       EventKind = "error"
	// EventKeepAlive is synthesized by the consumer on read timeout and never queued.
	EventKeepAlive EventKind = "keepalive"
)

// Terminal reports whether the kind ends a job's event stream.
func (k EventKind) Terminal() bool {
	return k == EventFinished || k == EventError
}

// Document outcome labels carried by progress events.
const (
	DocumentProcessed = "processed"
	DocumentFailed    = "failed"
)

// ProgressEvent is one message on a job's progress stream. Which payload fields are
// meaningful depends on Kind.
type ProgressEvent struct {
	Kind         EventKind
	Message      string
	Current      int
	Total        int
	Percent      int
	Status       string
	File         string
	Processed    int
	Failures     int
	OutputName   string
	DownloadURL  string
	DownloadName string
}

// MarshalJSON encodes only the payload fields of the event's kind.
func (e ProgressEvent) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{"event": e.Kind}
	if e.Message != "" {
		m["message"] = e.Message
	}
	switch e.Kind {
	case EventStart:
		m["total"] = e.Total
	case EventProgress:
		m["current"] = e.Current
		m["total"] = e.Total
		m["percent"] = e.Percent
		m["status"] = e.Status
		m["file"] = e.File
	case EventComplete:
		m["processed"] = e.Processed
		m["failures"] = e.Failures
	case EventOutputReady:
		m["output_name"] = e.OutputName
	case EventFinished:
		m["download_url"] = e.DownloadURL
		m["download_name"] = e.DownloadName
	}
	return json.Marshal(m)
}

package models

import "encoding/json"

// EventType discriminates the variants of a stream event.
type EventType string

const (
	// EventLog carries a free-text progress line. Informational only.
	EventLog EventType = "log"
	// EventStatus announces a phase transition.
	EventStatus EventType = "status"
	// EventFileWrite announces one generated artifact.
	EventFileWrite EventType = "file_write"
	// EventDone is the terminal success event.
	EventDone EventType = "done"
	// EventError is the terminal failure event.
	EventError EventType = "error"
)

// Event is one message on a clone job's event stream. It is a tagged union:
// Type selects the variant and only that variant's fields are populated.
type Event struct {
	Type EventType

	// EventLog
	Log string

	// EventStatus
	Status  JobStatus
	Message string

	// EventFileWrite
	File  string
	Lines int

	// EventDone
	Files      map[string]string
	PreviewURL string
	StaticHTML string
	CloneID    string
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Type == EventDone || e.Type == EventError
}

// LogEvent builds a log event.
func LogEvent(msg string) Event {
	return Event{Type: EventLog, Log: msg}
}

// StatusEvent builds a status event for a phase transition.
func StatusEvent(status JobStatus, message string) Event {
	return Event{Type: EventStatus, Status: status, Message: message}
}

// FileWriteEvent builds a file_write event for one generated artifact.
func FileWriteEvent(file string, lines int) Event {
	return Event{Type: EventFileWrite, File: file, Lines: lines}
}

// DoneEvent builds the terminal success event.
func DoneEvent(files map[string]string, previewURL, staticHTML, cloneID string) Event {
	return Event{
		Type:       EventDone,
		Files:      files,
		PreviewURL: previewURL,
		StaticHTML: staticHTML,
		CloneID:    cloneID,
	}
}

// ErrorEvent builds the terminal failure event.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

// wireEvent is the flat JSON shape consumed by stream subscribers. Fields
// are populated per variant; everything else stays absent.
type wireEvent struct {
	Log        string            `json:"log,omitempty"`
	Status     JobStatus         `json:"status,omitempty"`
	Message    string            `json:"message,omitempty"`
	Type       string            `json:"type,omitempty"`
	File       string            `json:"file,omitempty"`
	Lines      int               `json:"lines,omitempty"`
	Files      map[string]string `json:"files,omitempty"`
	PreviewURL string            `json:"preview_url,omitempty"`
	StaticHTML string            `json:"static_html,omitempty"`
	CloneID    string            `json:"clone_id,omitempty"`
}

// MarshalJSON serializes the event into its wire shape.
func (e Event) MarshalJSON() ([]byte, error) {
	var w wireEvent

	switch e.Type {
	case EventLog:
		w.Log = e.Log
	case EventStatus:
		w.Status = e.Status
		w.Message = e.Message
	case EventFileWrite:
		w.Type = string(EventFileWrite)
		w.File = e.File
		w.Lines = e.Lines
	case EventDone:
		w.Status = JobStatusDone
		w.Files = e.Files
		w.PreviewURL = e.PreviewURL
		w.StaticHTML = e.StaticHTML
		w.CloneID = e.CloneID
	case EventError:
		w.Status = JobStatusError
		w.Message = e.Message
	}

	return json.Marshal(w)
}

// UnmarshalJSON reconstructs the tagged union from the wire shape.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	switch {
	case w.Type == string(EventFileWrite):
		*e = FileWriteEvent(w.File, w.Lines)
	case w.Status == JobStatusDone:
		*e = DoneEvent(w.Files, w.PreviewURL, w.StaticHTML, w.CloneID)
	case w.Status == JobStatusError:
		*e = ErrorEvent(w.Message)
	case w.Status != "":
		*e = StatusEvent(w.Status, w.Message)
	default:
		*e = LogEvent(w.Log)
	}

	return nil
}

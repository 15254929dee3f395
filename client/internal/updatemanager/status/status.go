// Package status is the progress reporting contract between the update engine and its caller.
package status

import (
	log "github.com/sirupsen/logrus"
)

// Kind is the severity of a status event
type Kind int

const (
	// Error reports a failure that ended the operation
	Error Kind = -1
	// Success reports a completed operation
	Success Kind = 0
	// InProgress reports a step of a running operation
	InProgress Kind = 1
)

func (k Kind) String() string {
	switch k {
	case Error:
		return "error"
	case Success:
		return "success"
	case InProgress:
		return "in progress"
	default:
		return "unknown"
	}
}

// Messages reported by the update engine
const (
	MsgConnecting     = "Connecting to the update server..."
	MsgDownloading    = "Downloading the latest version..."
	MsgLaunched       = "The installer has been started."
	MsgLaunchFailed   = "The installer could not be started."
	MsgPublished      = "The manifest has been published."
	MsgUploadedRemote = "The manifest has been uploaded."
)

// Event is a single status report
type Event struct {
	Kind    Kind
	Message string
}

// Observer receives status events. It is called synchronously on the goroutine running the operation.
type Observer interface {
	OnStatus(Event)
}

// ObserverFunc adapts a function to the Observer interface
type ObserverFunc func(Event)

func (f ObserverFunc) OnStatus(e Event) {
	f(e)
}

// Discard is the default observer; it only traces the event
var Discard Observer = ObserverFunc(func(e Event) {
	log.Tracef("status %s: %s", e.Kind, e.Message)
})

// OrDiscard returns o, or Discard when o is nil
func OrDiscard(o Observer) Observer {
	if o == nil {
		return Discard
	}
	return o
}

// Report sends a single event to o
func Report(o Observer, kind Kind, message string) {
	OrDiscard(o).OnStatus(Event{Kind: kind, Message: message})
}

// Recorder keeps every event it receives. Used by callers that inspect the history after an operation.
type Recorder struct {
	Events []Event
}

func (r *Recorder) OnStatus(e Event) {
	r.Events = append(r.Events, e)
}

// Count returns how many recorded events have the given kind
func (r *Recorder) Count(kind Kind) int {
	var n int
	for _, e := range r.Events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

// Messages returns the messages of the recorded events of the given kind, in order
func (r *Recorder) Messages(kind Kind) []string {
	var msgs []string
	for _, e := range r.Events {
		if e.Kind == kind {
			msgs = append(msgs, e.Message)
		}
	}
	return msgs
}

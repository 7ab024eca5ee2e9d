package clone

import (
	"sync"

	"github.com/mirrorlabs/siteclone/internal/models"
)

// streamBuffer is the channel capacity of one event stream. A healthy
// subscriber drains far faster than phases produce, so the buffer only
// absorbs bursts around file writes.
const streamBuffer = 64

// Stream is the event sequence for one job run. It carries events to
// exactly one subscriber in production order, guarantees at most one
// terminal event, and keeps the producer from blocking forever after the
// subscriber goes away. A run has a single producing goroutine; Send must
// not be called concurrently.
type Stream struct {
	ch        chan models.Event
	abandoned chan struct{}

	mu       sync.Mutex
	once     sync.Once
	terminal bool
}

// NewStream creates an open event stream.
func NewStream() *Stream {
	return &Stream{
		ch:        make(chan models.Event, streamBuffer),
		abandoned: make(chan struct{}),
	}
}

// Events returns the subscriber side of the stream. The channel is closed
// after the terminal event has been delivered (or dropped on abandonment).
func (s *Stream) Events() <-chan models.Event {
	return s.ch
}

// Send appends one event to the stream. Events after the terminal one are
// discarded. Send blocks until the subscriber makes room, the stream is
// abandoned, or the event is terminal and buffered.
func (s *Stream) Send(ev models.Event) {
	s.mu.Lock()
	if s.terminal {
		s.mu.Unlock()
		return
	}
	isTerminal := ev.Terminal()
	if isTerminal {
		s.terminal = true
	}
	s.mu.Unlock()

	select {
	case s.ch <- ev:
	case <-s.abandoned:
		// Subscriber is gone; the run continues, delivery is skipped.
	}

	if isTerminal {
		close(s.ch)
	}
}

// Log is shorthand for sending a log event.
func (s *Stream) Log(msg string) {
	s.Send(models.LogEvent(msg))
}

// Status is shorthand for sending a status event.
func (s *Stream) Status(status models.JobStatus, message string) {
	s.Send(models.StatusEvent(status, message))
}

// Abandon marks the subscriber as gone. Pending and future sends are
// discarded instead of blocking; the producing run is not cancelled.
func (s *Stream) Abandon() {
	s.once.Do(func() {
		close(s.abandoned)
	})
}

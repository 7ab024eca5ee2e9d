package clone

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mirrorlabs/siteclone/internal/models"
)

func drain(t *testing.T, s *Stream) []models.Event {
	t.Helper()

	var events []models.Event
	timeout := time.After(5 * time.Second)
	for {
		select {
		case ev, open := <-s.Events():
			if !open {
				return events
			}
			events = append(events, ev)
		case <-timeout:
			t.Fatal("stream never closed")
		}
	}
}

func TestStreamDeliversInOrderAndClosesAfterTerminal(t *testing.T) {
	s := NewStream()

	go func() {
		s.Log("first")
		s.Status(models.JobStatusScraping, "Scraping")
		s.Send(models.FileWriteEvent("src/app/page.tsx", 42))
		s.Send(models.DoneEvent(map[string]string{"src/app/page.tsx": "x"}, "https://preview", "", "job-1"))
	}()

	events := drain(t, s)
	require.Len(t, events, 4)

	assert.Equal(t, models.EventLog, events[0].Type)
	assert.Equal(t, models.EventStatus, events[1].Type)
	assert.Equal(t, models.EventFileWrite, events[2].Type)
	assert.Equal(t, models.EventDone, events[3].Type)
}

func TestStreamDropsEventsAfterTerminal(t *testing.T) {
	s := NewStream()

	go func() {
		s.Send(models.ErrorEvent("boom"))
		s.Log("after terminal")
		s.Send(models.DoneEvent(nil, "", "", "job-1"))
	}()

	events := drain(t, s)
	require.Len(t, events, 1)
	assert.Equal(t, models.EventError, events[0].Type)
	assert.Equal(t, "boom", events[0].Message)
}

func TestStreamAbandonedProducerNeverBlocks(t *testing.T) {
	s := NewStream()
	s.Abandon()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		// Far more events than the buffer holds.
		for i := 0; i < streamBuffer*3; i++ {
			s.Log("progress")
		}
		s.Send(models.DoneEvent(nil, "", "", "job-1"))
	}()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("producer blocked after abandonment")
	}
}

func TestStreamAbandonMidwayKeepsProducerRunning(t *testing.T) {
	s := NewStream()

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for i := 0; i < streamBuffer*3; i++ {
			s.Log("progress")
		}
		s.Send(models.DoneEvent(nil, "", "", "job-1"))
	}()

	// Read a few events, then walk away.
	for i := 0; i < 3; i++ {
		select {
		case <-s.Events():
		case <-time.After(5 * time.Second):
			t.Fatal("no event delivered")
		}
	}
	s.Abandon()

	select {
	case <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("producer blocked after subscriber left")
	}
}

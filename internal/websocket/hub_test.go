package websocket

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/videowizard/render-api/internal/model"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newRunningHub() *Hub {
	h := NewHub(testLogger())
	go h.Run()
	return h
}

func (h *Hub) subscriberCount(jobID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[jobID])
}

func registerClient(t *testing.T, h *Hub, client *Client) {
	t.Helper()
	h.register <- client
	require.Eventually(t, func() bool {
		return h.subscriberCount(client.JobID) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestHub_BroadcastReachesSubscriber(t *testing.T) {
	h := newRunningHub()
	client := &Client{JobID: "job-1", Send: make(chan []byte, 4)}
	registerClient(t, h, client)

	progress := 0.5
	h.BroadcastJob(model.Job{
		ID:       "job-1",
		Status:   model.JobStatusInProgress,
		Progress: &progress,
	})

	select {
	case payload := <-client.Send:
		assert.Contains(t, string(payload), `"progress":0.5`)
	case <-time.After(time.Second):
		t.Fatal("no broadcast received")
	}
}

func TestHub_SlowConsumerEvictionLeavesSendOpen(t *testing.T) {
	h := newRunningHub()
	client := &Client{JobID: "job-1", Send: make(chan []byte, 1)}
	registerClient(t, h, client)

	// Fill the buffer so the next broadcast evicts the client.
	client.Send <- []byte("stale")

	h.BroadcastJob(model.Job{
		ID:       "job-1",
		Status:   model.JobStatusCompleted,
		VideoURL: "http://host/renders/job-1.mp4",
	})

	require.Eventually(t, func() bool {
		return h.subscriberCount("job-1") == 0
	}, time.Second, 5*time.Millisecond)

	// The read loop still replies to pings on Send after eviction; the
	// channel must stay open or that reply panics.
	<-client.Send
	select {
	case client.Send <- []byte("pong"):
	default:
		t.Fatal("send channel not writable after eviction")
	}
}

func TestHub_BroadcastIgnoresNonTerminalStatuses(t *testing.T) {
	h := newRunningHub()
	client := &Client{JobID: "job-1", Send: make(chan []byte, 4)}
	registerClient(t, h, client)

	h.BroadcastJob(model.Job{ID: "job-1", Status: model.JobStatusQueued})

	select {
	case payload := <-client.Send:
		t.Fatalf("unexpected broadcast for queued job: %s", payload)
	case <-time.After(50 * time.Millisecond):
	}
}

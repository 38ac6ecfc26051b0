package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/sirupsen/logrus"

	"github.com/videowizard/render-api/internal/model"
)

// Client represents one WebSocket subscriber to a job.
type Client struct {
	JobID string
	Conn  *websocket.Conn
	Send  chan []byte
}

// Hub fans job snapshots out to WebSocket subscribers. Polling the HTTP
// surface remains the primary contract; the hub is a push convenience on top
// of the same snapshots.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	log *logrus.Logger
	mu  sync.RWMutex
}

type broadcastMessage struct {
	jobID   string
	payload []byte
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		log:        log,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.JobID] == nil {
				h.clients[client.JobID] = make(map[*Client]bool)
			}
			h.clients[client.JobID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.JobID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
				}
				if len(clients) == 0 {
					delete(h.clients, client.JobID)
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.jobID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.payload:
					default:
						// Drop the slow consumer from the fan-out.
						// Closing Send stays with unregister: the
						// client's read loop may still reply on it.
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// BroadcastJob pushes a job snapshot to the job's subscribers, mapped onto a
// status-specific message.
func (h *Hub) BroadcastJob(job model.Job) {
	var msg interface{}
	switch job.Status {
	case model.JobStatusInProgress:
		progress := 0.0
		if job.Progress != nil {
			progress = *job.Progress
		}
		msg = model.WSProgressMessage{
			Type:     model.WSMessageTypeProgress,
			JobID:    job.ID,
			Status:   job.Status,
			Progress: progress,
		}
	case model.JobStatusCompleted:
		msg = model.WSCompleteMessage{
			Type:     model.WSMessageTypeComplete,
			JobID:    job.ID,
			VideoURL: job.VideoURL,
		}
	case model.JobStatusFailed:
		jobErr := model.JobError{Message: "render failed"}
		if job.Error != nil {
			jobErr = *job.Error
		}
		msg = model.WSErrorMessage{
			Type:  model.WSMessageTypeError,
			JobID: job.ID,
			Error: jobErr,
		}
	default:
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		h.log.WithError(err).Error("failed to marshal job broadcast")
		return
	}

	h.broadcast <- &broadcastMessage{jobID: job.ID, payload: data}
}

// HandleConnection runs the read/write loops for a subscriber connection.
func (h *Hub) HandleConnection(c *websocket.Conn, jobID string) {
	client := &Client{
		JobID: jobID,
		Conn:  c,
		Send:  make(chan []byte, 256),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.WithError(err).Debug("websocket read error")
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == model.WSMessageTypePing {
			pong, _ := json.Marshal(model.WSMessage{Type: model.WSMessageTypePong})
			select {
			case client.Send <- pong:
			default:
			}
		}
	}
}

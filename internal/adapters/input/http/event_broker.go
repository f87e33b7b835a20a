package http

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"facebot/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

const (
	// MaxEventClients is the maximum number of concurrent change feed connections
	MaxEventClients = 100

	eventConnected domain.ChangeKind = "connected"

	eventBuffer       = 16
	keepAliveInterval = 15 * time.Second
)

// EventBroker struct - Fans session store change events out to SSE clients.
// Every event carries the full state. A client that falls behind loses its oldest
// buffered events, never the latest one.
type EventBroker struct {
	mu      sync.Mutex
	clients map[int]chan domain.ChangeEvent
	nextID  int
	closed  bool
}

// NewEventBroker func - Creates new change feed broker
func NewEventBroker() *EventBroker {
	return &EventBroker{
		clients: make(map[int]chan domain.ChangeEvent),
	}
}

// Publish is a session store observer delivering the event to every client
func (b *EventBroker) Publish(event domain.ChangeEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.clients {
		select {
		case ch <- event:
		default:
			// only Publish sends, under mu, so the second send always has room
			select {
			case stale := <-ch:
				logrus.Debugf("Change feed client %d is behind, dropping %s", id, stale.Kind)
			default:
			}
			select {
			case ch <- event:
			default:
			}
		}
	}
}

// register adds a client. The returned channel is closed by unregister or Close.
func (b *EventBroker) register() (int, <-chan domain.ChangeEvent, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan domain.ChangeEvent, eventBuffer)
	if b.closed {
		close(ch)
		return 0, ch, nil
	}
	if len(b.clients) >= MaxEventClients {
		return 0, nil, fmt.Errorf("too many change feed clients")
	}

	b.nextID++
	b.clients[b.nextID] = ch
	return b.nextID, ch, nil
}

func (b *EventBroker) unregister(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.clients[id]; ok {
		close(ch)
		delete(b.clients, id)
	}
}

// ClientCount returns the number of connected clients
func (b *EventBroker) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// Close ends every stream and refuses new ones
func (b *EventBroker) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, ch := range b.clients {
		close(ch)
		delete(b.clients, id)
	}
}

// Stream serves the change feed as server-sent events. The first event is the state
// read by snapshot after the client is registered, so no mutation falls in between.
func (b *EventBroker) Stream(c *fiber.Ctx, snapshot func() domain.Snapshot) error {
	id, events, err := b.register()
	if err != nil {
		logrus.Warn(err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(ResponseBody{Status: Status{
			Code:    fiber.StatusServiceUnavailable,
			Message: []string{err.Error()},
		}})
	}

	initial := snapshot()

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer b.unregister(id)

		if err := writeEvent(w, domain.ChangeEvent{Kind: eventConnected, Snapshot: initial}); err != nil {
			return
		}

		ticker := time.NewTicker(keepAliveInterval)
		defer ticker.Stop()

		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeEvent(w, event); err != nil {
					logrus.Debugf("Change feed client %d disconnected: %v", id, err)
					return
				}
			case <-ticker.C:
				if _, err := w.WriteString(": keep-alive\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	})
	return nil
}

// writeEvent writes one SSE frame and flushes it
func writeEvent(w *bufio.Writer, event domain.ChangeEvent) error {
	if err := encodeEvent(w, event); err != nil {
		return err
	}
	return w.Flush()
}

func encodeEvent(w io.Writer, event domain.ChangeEvent) error {
	data, err := json.Marshal(ChangeEventResponse{
		Kind:      string(event.Kind),
		SessionID: event.SessionID,
		State:     toSessionListResponse(event.Snapshot),
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data)
	return err
}

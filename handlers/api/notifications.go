package api

import (
	"bufio"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/valyala/fasthttp"

	"cloudmail/utils"
)

// Notification is a change hint pushed to open pages. It carries no row
// data; the browser reacts by re-querying the list it is showing.
type Notification struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"` // "changed"
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// NotificationHandler fans realtime change hints out to connected
// browsers over websocket or SSE.
type NotificationHandler struct {
	subscribers map[string]chan Notification
	mu          sync.RWMutex
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler() *NotificationHandler {
	return &NotificationHandler{
		subscribers: make(map[string]chan Notification),
	}
}

// NotifyChanged broadcasts a mailbox-changed hint to every subscriber.
// Wired to the store's change subscription in main.
func (h *NotificationHandler) NotifyChanged() {
	h.broadcast(Notification{
		Type:    "changed",
		Message: "Mailbox changed",
	})
}

func (h *NotificationHandler) broadcast(notification Notification) {
	notification.ID = uuid.New().String()
	notification.Time = time.Now()

	h.mu.RLock()
	defer h.mu.RUnlock()

	for subscriberID, ch := range h.subscribers {
		select {
		case ch <- notification:
			// Sent successfully
		default:
			// Channel full, skip this subscriber
			utils.Log.Warn("Notification channel full for subscriber %s", subscriberID)
		}
	}
}

// HandleWebSocket streams change hints over a websocket connection
func (h *NotificationHandler) HandleWebSocket(c *websocket.Conn) {
	subscriberID := uuid.New().String()
	messageChan := make(chan Notification, 10)

	h.mu.Lock()
	h.subscribers[subscriberID] = messageChan
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.subscribers, subscriberID)
		close(messageChan)
		h.mu.Unlock()

		c.Close()
		utils.Log.Info("WebSocket subscriber disconnected: %s", subscriberID)
	}()

	utils.Log.Info("WebSocket subscriber connected: %s", subscriberID)

	for notification := range messageChan {
		if err := c.WriteJSON(notification); err != nil {
			utils.Log.Error("Failed to send WebSocket notification: %v", err)
			break
		}
	}
}

// HandleSSE streams change hints over Server-Sent Events as a fallback
// for clients without websocket support.
func (h *NotificationHandler) HandleSSE(c *fiber.Ctx) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	subscriberID := uuid.New().String()
	messageChan := make(chan Notification, 10)

	h.mu.Lock()
	h.subscribers[subscriberID] = messageChan
	h.mu.Unlock()

	utils.Log.Info("SSE subscriber connected: %s", subscriberID)

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer func() {
			h.mu.Lock()
			delete(h.subscribers, subscriberID)
			close(messageChan)
			h.mu.Unlock()

			utils.Log.Info("SSE subscriber disconnected: %s", subscriberID)
		}()

		// Keep-alive ticker
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case notification := <-messageChan:
				data, _ := json.Marshal(notification)
				w.WriteString("data: " + string(data) + "\n\n")
				if err := w.Flush(); err != nil {
					return
				}

			case <-ticker.C:
				w.WriteString(": keepalive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

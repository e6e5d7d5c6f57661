package backend

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/google/uuid"

	"cloudmail/utils"
)

// ChangeKind is the kind of row change the realtime feed reported.
type ChangeKind string

const (
	ChangeInsert ChangeKind = "insert"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Change is one realtime notification. No row payload is carried upward:
// the documented reaction is a full re-query, so the kind and table are all
// a subscriber may rely on.
type Change struct {
	Kind  ChangeKind
	Table string
}

const (
	heartbeatInterval    = 25 * time.Second
	initialReconnectWait = time.Second
	maxReconnectWait     = 30 * time.Second
)

// socketMessage is the provider's channel frame.
type socketMessage struct {
	Topic   string          `json:"topic"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Ref     string          `json:"ref"`
}

// ChangeFeed maintains the websocket subscription on one table's change
// events and fans them out to registered handlers. Events carry no ordering
// guarantee relative to the mutations that caused them; handlers must be
// idempotent.
type ChangeFeed struct {
	client *Client
	table  string

	mu       sync.RWMutex
	handlers map[string]func(Change)

	stopOnce sync.Once
	stop     chan struct{}
}

// NewChangeFeed creates a feed for the given table. Call Start to connect.
func (c *Client) NewChangeFeed(table string) *ChangeFeed {
	return &ChangeFeed{
		client:   c,
		table:    table,
		handlers: make(map[string]func(Change)),
		stop:     make(chan struct{}),
	}
}

// Subscribe registers a handler and returns its id for Unsubscribe.
func (f *ChangeFeed) Subscribe(fn func(Change)) string {
	id := uuid.New().String()
	f.mu.Lock()
	f.handlers[id] = fn
	f.mu.Unlock()
	return id
}

// Unsubscribe removes a handler.
func (f *ChangeFeed) Unsubscribe(id string) {
	f.mu.Lock()
	delete(f.handlers, id)
	f.mu.Unlock()
}

// Start runs the feed until Stop is called, reconnecting with backoff when
// the socket drops. A dropped connection only delays notifications; the
// store re-queries on demand anyway.
func (f *ChangeFeed) Start() {
	go f.run()
}

// Stop tears the feed down. A notification already in flight may still be
// delivered once; subscribers tolerate that.
func (f *ChangeFeed) Stop() {
	f.stopOnce.Do(func() { close(f.stop) })
}

func (f *ChangeFeed) run() {
	wait := initialReconnectWait
	for {
		select {
		case <-f.stop:
			return
		default:
		}

		started := time.Now()
		err := f.connect()
		if err != nil {
			utils.Log.Warn("Realtime feed disconnected: %v", err)
		}
		wait = nextReconnectWait(wait, time.Since(started))

		select {
		case <-f.stop:
			return
		case <-time.After(wait):
		}
	}
}

// nextReconnectWait advances the reconnect backoff. A connection that
// survived at least one heartbeat was genuinely established, so the next
// drop starts the backoff over instead of inheriting the cap.
func nextReconnectWait(wait, uptime time.Duration) time.Duration {
	if uptime >= heartbeatInterval {
		return initialReconnectWait
	}
	if wait < maxReconnectWait {
		wait *= 2
		if wait > maxReconnectWait {
			wait = maxReconnectWait
		}
	}
	return wait
}

// socketURL derives the websocket endpoint from the project URL.
func (f *ChangeFeed) socketURL() string {
	base := f.client.cfg.URL
	base = strings.Replace(base, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	return base + "/realtime/v1/websocket?apikey=" + f.client.cfg.AnonKey + "&vsn=1.0.0"
}

// connect dials the socket, joins the table topic and pumps events until
// the connection drops or the feed is stopped.
func (f *ChangeFeed) connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(f.socketURL(), nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	topic := "realtime:public:" + f.table

	var writeMu sync.Mutex
	send := func(msg socketMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(msg)
	}

	if err := send(socketMessage{Topic: topic, Event: "phx_join", Payload: json.RawMessage("{}"), Ref: "1"}); err != nil {
		return err
	}
	utils.Log.Info("Realtime feed joined %s", topic)

	// Heartbeats keep the channel open; the goroutine dies with the
	// connection.
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := send(socketMessage{Topic: "phoenix", Event: "heartbeat", Payload: json.RawMessage("{}")}); err != nil {
					return
				}
			case <-done:
				return
			case <-f.stop:
				conn.Close()
				return
			}
		}
	}()

	for {
		var msg socketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			select {
			case <-f.stop:
				return nil
			default:
				return err
			}
		}

		switch msg.Event {
		case "INSERT":
			f.dispatch(Change{Kind: ChangeInsert, Table: f.table})
		case "UPDATE":
			f.dispatch(Change{Kind: ChangeUpdate, Table: f.table})
		case "DELETE":
			f.dispatch(Change{Kind: ChangeDelete, Table: f.table})
		}
	}
}

func (f *ChangeFeed) dispatch(change Change) {
	f.mu.RLock()
	handlers := make([]func(Change), 0, len(f.handlers))
	for _, fn := range f.handlers {
		handlers = append(handlers, fn)
	}
	f.mu.RUnlock()

	for _, fn := range handlers {
		fn(change)
	}
}

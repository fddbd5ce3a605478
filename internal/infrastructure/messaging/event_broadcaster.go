package messaging

import (
	"encoding/json"
	"sync"

	"github.com/AuroraHealth/aurora-go/internal/domain/analytics"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/gorilla/websocket"
)

// LiveClient is one connected admin dashboard. The handler owns the read
// side of the connection; the broadcaster writes through Send.
type LiveClient struct {
	Conn *websocket.Conn
	Send chan []byte
}

// NewLiveClient wraps an upgraded websocket connection.
func NewLiveClient(conn *websocket.Conn, sendBuffer int) *LiveClient {
	return &LiveClient{
		Conn: conn,
		Send: make(chan []byte, sendBuffer),
	}
}

// EventBroadcaster fans funnel events out to every connected admin
// dashboard over websockets.
type EventBroadcaster struct {
	clients    map[*LiveClient]bool
	register   chan *LiveClient
	unregister chan *LiveClient
	events     chan []byte
	mu         sync.Mutex
	logger     *logging.ChanneledLogger
}

var (
	globalBroadcaster *EventBroadcaster
	once              sync.Once
)

// NewEventBroadcaster creates the singleton EventBroadcaster instance.
func NewEventBroadcaster(logger *logging.ChanneledLogger) *EventBroadcaster {
	once.Do(func() {
		globalBroadcaster = &EventBroadcaster{
			clients:    make(map[*LiveClient]bool),
			register:   make(chan *LiveClient),
			unregister: make(chan *LiveClient),
			events:     make(chan []byte, 64),
			logger:     logger,
		}
	})
	return globalBroadcaster
}

// Run processes register, unregister, and broadcast traffic. It must be
// started exactly once, on its own goroutine.
func (b *EventBroadcaster) Run() {
	for {
		select {
		case client := <-b.register:
			b.mu.Lock()
			b.clients[client] = true
			count := len(b.clients)
			b.mu.Unlock()
			b.logger.Live().Debug("Live feed client registered", "connections", count)

		case client := <-b.unregister:
			b.mu.Lock()
			if _, ok := b.clients[client]; ok {
				delete(b.clients, client)
				close(client.Send)
			}
			count := len(b.clients)
			b.mu.Unlock()
			b.logger.Live().Debug("Live feed client unregistered", "connections", count)

		case message := <-b.events:
			b.mu.Lock()
			for client := range b.clients {
				select {
				case client.Send <- message:
				default:
					// Slow consumer; drop it rather than block the feed.
					delete(b.clients, client)
					close(client.Send)
					b.logger.Live().Warn("Live feed client dropped, send buffer full")
				}
			}
			b.mu.Unlock()
		}
	}
}

// Register adds a client to the feed.
func (b *EventBroadcaster) Register(client *LiveClient) {
	b.register <- client
}

// Unregister removes a client from the feed.
func (b *EventBroadcaster) Unregister(client *LiveClient) {
	b.unregister <- client
}

// Broadcast pushes one funnel event to all connected dashboards. The feed
// keeps step ids but never carries raw answer values, response snapshots,
// or emails; those stay behind the data API.
func (b *EventBroadcaster) Broadcast(event *analytics.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Live().Error("Panic recovered in Broadcast", "error", r)
		}
	}()

	feed := *event
	feed.Value = nil
	feed.Email = ""
	feed.Responses = nil

	message, err := json.Marshal(feed)
	if err != nil {
		b.logger.Live().Error("Failed to marshal live feed event", "error", err.Error())
		return
	}

	select {
	case b.events <- message:
	default:
		b.logger.Live().Warn("Live feed event dropped, broadcast buffer full")
	}
}

// ConnectionCount returns the number of connected dashboards.
func (b *EventBroadcaster) ConnectionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

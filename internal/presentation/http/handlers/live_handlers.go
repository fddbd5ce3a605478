package handlers

import (
	"net/http"
	"time"

	"github.com/AuroraHealth/aurora-go/internal/infrastructure/messaging"
	"github.com/AuroraHealth/aurora-go/internal/infrastructure/observability/logging"
	"github.com/AuroraHealth/aurora-go/pkg/config"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

const (
	liveWriteWait = 10 * time.Second
	livePongWait  = 60 * time.Second
)

// LiveHandlers upgrades admin dashboards onto the websocket event feed.
type LiveHandlers struct {
	broadcaster *messaging.EventBroadcaster
	logger      *logging.ChanneledLogger
	upgrader    websocket.Upgrader
}

// NewLiveHandlers creates live feed handlers with injected dependencies.
func NewLiveHandlers(broadcaster *messaging.EventBroadcaster, logger *logging.ChanneledLogger) *LiveHandlers {
	return &LiveHandlers{
		broadcaster: broadcaster,
		logger:      logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if origin == "" {
					return true
				}
				for _, allowed := range config.CORSOrigins {
					if origin == allowed {
						return true
					}
				}
				return false
			},
		},
	}
}

// GetLiveFeed handles GET /api/v1/admin/live - upgrades to a websocket and
// streams redacted funnel events until the client disconnects.
func (h *LiveHandlers) GetLiveFeed(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Live().Error("Websocket upgrade failed", "error", err.Error())
		return
	}

	client := messaging.NewLiveClient(conn, config.LiveSendBuffer)
	h.broadcaster.Register(client)

	go h.writePump(client)
	go h.readPump(client)
}

// writePump drains the client's send channel onto the wire, interleaving
// pings to detect dead peers.
func (h *LiveHandlers) writePump(client *messaging.LiveClient) {
	ticker := time.NewTicker(config.LivePingInterval)
	defer func() {
		ticker.Stop()
		client.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			client.Conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if !ok {
				client.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := client.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			client.Conn.SetWriteDeadline(time.Now().Add(liveWriteWait))
			if err := client.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump discards inbound frames; the feed is one-way. Its job is to
// notice the disconnect and unregister the client.
func (h *LiveHandlers) readPump(client *messaging.LiveClient) {
	defer func() {
		h.broadcaster.Unregister(client)
		client.Conn.Close()
	}()

	client.Conn.SetReadLimit(512)
	client.Conn.SetReadDeadline(time.Now().Add(livePongWait))
	client.Conn.SetPongHandler(func(string) error {
		client.Conn.SetReadDeadline(time.Now().Add(livePongWait))
		return nil
	})

	for {
		if _, _, err := client.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

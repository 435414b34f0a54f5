package feed

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"agritenant/tenant-portal/tenant-portal-backend/internal/auth"
	"agritenant/tenant-portal/tenant-portal-backend/internal/onboarding"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	maxMessageSize = 512
	sendBuffer     = 256
)

// Connection represents one subscribed session of a tenant.
type Connection struct {
	ID       uuid.UUID
	TenantID uuid.UUID
	conn     *websocket.Conn
	send     chan onboarding.ChangeEvent
}

// Hub routes workflow and step change events to every connection of the
// owning tenant. Delivery is best effort: a session that cannot keep up is
// dropped and recovers through the reconciler's full-reload resync.
type Hub struct {
	mu         sync.RWMutex
	tenants    map[uuid.UUID]map[*Connection]bool
	register   chan *Connection
	unregister chan *Connection
	events     chan onboarding.ChangeEvent
	stop       chan struct{}
	logger     *zap.Logger
}

// NewHub creates and starts a hub.
func NewHub(logger *zap.Logger) *Hub {
	h := &Hub{
		tenants:    make(map[uuid.UUID]map[*Connection]bool),
		register:   make(chan *Connection),
		unregister: make(chan *Connection),
		events:     make(chan onboarding.ChangeEvent, sendBuffer),
		stop:       make(chan struct{}),
		logger:     logger,
	}
	go h.run()
	return h
}

// Broadcast implements onboarding.Broadcaster.
func (h *Hub) Broadcast(event onboarding.ChangeEvent) {
	select {
	case h.events <- event:
	case <-h.stop:
	}
}

// Stop shuts the hub down and closes every connection.
func (h *Hub) Stop() {
	close(h.stop)
}

func (h *Hub) run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			if h.tenants[conn.TenantID] == nil {
				h.tenants[conn.TenantID] = make(map[*Connection]bool)
			}
			h.tenants[conn.TenantID][conn] = true
			h.mu.Unlock()

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.tenants[conn.TenantID]; ok && conns[conn] {
				delete(conns, conn)
				close(conn.send)
				if len(conns) == 0 {
					delete(h.tenants, conn.TenantID)
				}
			}
			h.mu.Unlock()

		case event := <-h.events:
			h.mu.RLock()
			for conn := range h.tenants[event.TenantID] {
				select {
				case conn.send <- event:
				default:
					// Slow consumer; it resyncs on reconnect.
					h.logger.Warn("dropping slow feed connection",
						zap.String("tenant_id", conn.TenantID.String()))
					go func(c *Connection) { h.unregister <- c }(conn)
				}
			}
			h.mu.RUnlock()

		case <-h.stop:
			h.mu.Lock()
			for _, conns := range h.tenants {
				for conn := range conns {
					close(conn.send)
				}
			}
			h.tenants = make(map[uuid.UUID]map[*Connection]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Manager upgrades HTTP requests onto the change feed.
type Manager struct {
	hub      *Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewManager creates a new feed manager.
func NewManager(hub *Hub, logger *zap.Logger) *Manager {
	return &Manager{
		hub:    hub,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Origin checking is enforced at the gateway.
				return true
			},
		},
	}
}

// HandleConnection handles GET /api/v1/onboarding/ws
func (m *Manager) HandleConnection(c *gin.Context) {
	tenantID, ok := auth.TenantID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing tenant identity"})
		return
	}

	ws, err := m.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		m.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	conn := &Connection{
		ID:       uuid.New(),
		TenantID: tenantID,
		conn:     ws,
		send:     make(chan onboarding.ChangeEvent, sendBuffer),
	}
	m.hub.register <- conn

	go m.writePump(conn)
	go m.readPump(conn)
}

// readPump drains the client side of the connection. The feed is one-way;
// reads exist only to process control frames and detect closure.
func (m *Manager) readPump(conn *Connection) {
	defer func() {
		m.hub.unregister <- conn
		conn.conn.Close()
	}()

	conn.conn.SetReadLimit(maxMessageSize)
	conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.conn.SetPongHandler(func(string) error {
		conn.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				m.logger.Debug("feed connection closed", zap.Error(err))
			}
			return
		}
	}
}

// writePump pumps change events from the hub to the client.
func (m *Manager) writePump(conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.conn.Close()
	}()

	for {
		select {
		case event, ok := <-conn.send:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.conn.WriteJSON(event); err != nil {
				return
			}

		case <-ticker.C:
			conn.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// Package realtime bridges world-state change events onto WebSocket
// connections, filtered per-connection by owner or drone.
package realtime

import (
	"log"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/asgard/atc/internal/atc/world"
	"github.com/asgard/atc/internal/platform/observability"
	"github.com/asgard/atc/internal/services"
	"github.com/gorilla/websocket"
)

var activeConnections int64

// Envelope is the JSON shape pushed to a subscribed client.
type Envelope struct {
	DroneID string `json:"drone_id"`
	OwnerID string `json:"owner_id,omitempty"`
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const subscriberBuffer = 64

// HandleWebSocket upgrades GET /v1/ws?token=…&owner_id=…&drone_id=… and
// streams world events to the client, filtered by the owner_id/drone_id
// query parameters. A token is required unless the auth service is nil
// (development mode with auth disabled upstream).
func HandleWebSocket(w http.ResponseWriter, r *http.Request, store *world.Store, authService *services.AuthService) {
	if authService != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if _, err := authService.ValidateToken(token); err != nil {
			if _, err2 := authService.ValidateDroneToken(token); err2 != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}
	}

	ownerFilter := r.URL.Query().Get("owner_id")
	droneFilter := r.URL.Query().Get("drone_id")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[realtime] websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	observability.UpdateWebSocketConnections(int(atomic.AddInt64(&activeConnections, 1)))
	defer func() {
		observability.UpdateWebSocketConnections(int(atomic.AddInt64(&activeConnections, -1)))
	}()

	events, unsubscribe := store.Events.Subscribe(subscriberBuffer)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case ev, ok := <-events:
			if !ok {
				return
			}
			if ownerFilter != "" && ev.OwnerID != "" && ev.OwnerID != ownerFilter {
				continue
			}
			if droneFilter != "" && ev.DroneID != "" && ev.DroneID != droneFilter {
				continue
			}
			envelope := Envelope{DroneID: ev.DroneID, OwnerID: ev.OwnerID, Kind: string(ev.Kind), Payload: ev.Payload}
			if err := conn.WriteJSON(envelope); err != nil {
				log.Printf("[realtime] write error, dropping client: %v", err)
				return
			}
		}
	}
}

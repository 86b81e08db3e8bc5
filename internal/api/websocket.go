// internal/api/websocket.go
package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/novelmovie/novelmovie/internal/services"
	"github.com/novelmovie/novelmovie/internal/utils"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = (wsPongWait * 9) / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origins are enforced by the CORS middleware
	CheckOrigin: func(r *http.Request) bool { return true },
}

// progressClient is one websocket following one task.
type progressClient struct {
	conn   *websocket.Conn
	taskID string
	closed int32
}

func (client *progressClient) Close() {
	if atomic.CompareAndSwapInt32(&client.closed, 0, 1) {
		_ = client.conn.Close()
	}
}

func (client *progressClient) IsClosed() bool {
	return atomic.LoadInt32(&client.closed) == 1
}

func (client *progressClient) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return client.conn.WriteMessage(websocket.TextMessage, data)
}

// ProgressHub keeps the open progress websockets by task id.
type ProgressHub struct {
	progress    *services.ProgressService
	connections map[string]map[*progressClient]struct{}
	mutex       sync.RWMutex
	total       atomic.Int64
}

func NewProgressHub(progress *services.ProgressService) *ProgressHub {
	return &ProgressHub{
		progress:    progress,
		connections: make(map[string]map[*progressClient]struct{}),
	}
}

func (hub *ProgressHub) register(client *progressClient) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if hub.connections[client.taskID] == nil {
		hub.connections[client.taskID] = make(map[*progressClient]struct{})
	}
	hub.connections[client.taskID][client] = struct{}{}
	hub.total.Add(1)
}

func (hub *ProgressHub) unregister(client *progressClient) {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	if clients, ok := hub.connections[client.taskID]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(hub.connections, client.taskID)
		}
	}
	client.Close()
}

// Status reports the open connection counts.
func (hub *ProgressHub) Status() map[string]interface{} {
	hub.mutex.RLock()
	defer hub.mutex.RUnlock()

	active := 0
	for _, clients := range hub.connections {
		active += len(clients)
	}
	return map[string]interface{}{
		"active_connections": active,
		"tasks":              len(hub.connections),
		"total_connections":  hub.total.Load(),
	}
}

// CloseAll disconnects every client, used on shutdown.
func (hub *ProgressHub) CloseAll() {
	hub.mutex.Lock()
	defer hub.mutex.Unlock()
	for taskID, clients := range hub.connections {
		for client := range clients {
			client.Close()
		}
		delete(hub.connections, taskID)
	}
}

// serve streams tracker updates to the client until the task finishes or
// the client goes away.
func (hub *ProgressHub) serve(client *progressClient, tracker *services.ProgressTracker) {
	logger := utils.GetLogger().Named("progress_ws")
	hub.register(client)
	defer hub.unregister(client)

	updates := tracker.Subscribe()
	defer tracker.Unsubscribe(updates)

	// reader: only pongs and close frames are expected
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		client.conn.SetReadLimit(512)
		_ = client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		client.conn.SetPongHandler(func(string) error {
			return client.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := client.conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	finish := func() {
		_ = client.writeJSON(tracker.Snapshot())
		_ = client.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "task finished"),
			time.Now().Add(wsWriteWait))
	}

	for {
		select {
		case update := <-updates:
			if err := client.writeJSON(update); err != nil {
				logger.Debug("write failed", map[string]interface{}{"task_id": client.taskID, "error": err.Error()})
				return
			}
			if update.Status != services.ProgressRunning {
				finish()
				return
			}
		case <-tracker.Done():
			finish()
			return
		case <-ticker.C:
			_ = client.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := client.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		}
	}
}

package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/novelmovie/novelmovie/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressWebSocketStreamsUntilDone(t *testing.T) {
	a := newTestAPI(t, false)
	server := httptest.NewServer(a.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/v1/progress/task-ws/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() services.ProgressUpdate {
		t.Helper()
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var update services.ProgressUpdate
		require.NoError(t, json.Unmarshal(data, &update))
		return update
	}

	first := read()
	assert.Equal(t, "task-ws", first.TaskID)
	assert.Equal(t, services.ProgressRunning, first.Status)

	tracker, ok := a.svcs.Progress.GetTracker("task-ws")
	require.True(t, ok)
	tracker.UpdateProgress(50, "half")
	tracker.Complete("done")

	var last services.ProgressUpdate
	for i := 0; i < 5; i++ {
		last = read()
		if last.Status == services.ProgressCompleted {
			break
		}
	}
	assert.Equal(t, services.ProgressCompleted, last.Status)
	assert.Equal(t, 100, last.Progress)
}

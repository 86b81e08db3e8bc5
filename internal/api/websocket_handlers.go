// internal/api/websocket_handlers.go
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/novelmovie/novelmovie/internal/utils"
)

// ProgressSnapshot returns the current state of a task.
func (h *Handler) ProgressSnapshot(c *gin.Context) {
	tracker, ok := h.Progress.GetTracker(c.Param("taskId"))
	if !ok {
		h.Response.Error(c, http.StatusNotFound, ErrorTaskNotFound, "Task not found")
		return
	}
	h.Response.Success(c, tracker.Snapshot())
}

// ProgressWebSocket streams task updates. A task that has not started yet is
// created so clients can connect before launching the work.
func (h *Handler) ProgressWebSocket(c *gin.Context) {
	taskID := c.Param("taskId")
	tracker := h.Progress.CreateTracker(taskID)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		utils.GetLogger().Named("progress_ws").Warn("upgrade failed", map[string]interface{}{
			"task_id": taskID,
			"error":   err.Error(),
		})
		return
	}

	h.Hub.serve(&progressClient{conn: conn, taskID: taskID}, tracker)
}

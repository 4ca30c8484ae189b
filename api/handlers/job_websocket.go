package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linkgrab/linkgrab/internal/app"
	"github.com/linkgrab/linkgrab/internal/domain"
)

const pingInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// JobWebSocketHandler streams job events over WebSocket connections
type JobWebSocketHandler struct {
	jobMgr *app.JobManager
	logger *zap.Logger
}

// NewJobWebSocketHandler creates a new WebSocket handler
func NewJobWebSocketHandler(jobMgr *app.JobManager, log *zap.Logger) *JobWebSocketHandler {
	return &JobWebSocketHandler{
		jobMgr: jobMgr,
		logger: log,
	}
}

// HandleWebSocket handles GET /api/v1/jobs/:id/events. The first message is a
// snapshot of the job; the last is a snapshot taken after the job has ended.
func (h *JobWebSocketHandler) HandleWebSocket(c *gin.Context) {
	id := c.Param("id")

	job, events, unsubscribe, err := h.jobMgr.Subscribe(id)
	if err != nil {
		respondError(c, err)
		return
	}
	defer unsubscribe()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("WebSocket client connected",
		zap.String("job_id", id),
		zap.String("remote_addr", c.Request.RemoteAddr))

	if err := conn.WriteJSON(snapshotEvent(job)); err != nil {
		return
	}

	// Read messages from client so close frames and pongs are processed
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				h.sendFinal(conn, id)
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				h.logger.Debug("Failed to send job event", zap.String("job_id", id), zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

// sendFinal writes the terminal snapshot and a normal close frame
func (h *JobWebSocketHandler) sendFinal(conn *websocket.Conn, id string) {
	if job, err := h.jobMgr.GetJob(id); err == nil {
		if err := conn.WriteJSON(snapshotEvent(job)); err != nil {
			return
		}
	}
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished"),
		time.Now().Add(time.Second))
}

func snapshotEvent(job *domain.Job) domain.JobEvent {
	return domain.JobEvent{
		JobID:     job.ID,
		Type:      domain.JobEventSnapshot,
		Status:    job.Status,
		Processed: job.Processed,
		Total:     job.Total,
		Job:       job,
	}
}

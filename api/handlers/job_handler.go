package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linkgrab/linkgrab/internal/app"
	"github.com/linkgrab/linkgrab/internal/domain"
)

// JobHandler handles job-related HTTP requests
type JobHandler struct {
	jobMgr *app.JobManager
	logger *zap.Logger
}

// NewJobHandler creates a new job handler
func NewJobHandler(jobMgr *app.JobManager, logger *zap.Logger) *JobHandler {
	return &JobHandler{
		jobMgr: jobMgr,
		logger: logger,
	}
}

// SubmitDiscoveryRequest represents a request to queue a discovery
type SubmitDiscoveryRequest struct {
	URL      string `json:"url" binding:"required"`
	Category string `json:"category,omitempty"`
}

// JobResponse is a job with its decoded result attached
type JobResponse struct {
	*domain.Job
	Result json.RawMessage `json:"result,omitempty"`
}

func newJobResponse(job *domain.Job) JobResponse {
	resp := JobResponse{Job: job}
	if job.Result != "" {
		resp.Result = json.RawMessage(job.Result)
	}
	return resp
}

// SubmitDiscovery handles POST /api/v1/jobs/discover
func (h *JobHandler) SubmitDiscovery(c *gin.Context) {
	var req SubmitDiscoveryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	job, err := h.jobMgr.SubmitDiscovery(req.URL, req.Category)
	if err != nil {
		h.logger.Warn("Failed to submit discovery", zap.String("url", req.URL), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// SubmitDownload handles POST /api/v1/jobs/download
func (h *JobHandler) SubmitDownload(c *gin.Context) {
	var req app.DownloadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.Files) == 0 && req.PageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "either 'files' or 'page_url' is required"})
		return
	}

	job, err := h.jobMgr.SubmitDownload(req)
	if err != nil {
		h.logger.Warn("Failed to submit download", zap.String("page_url", req.PageURL), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, job)
}

// GetJob handles GET /api/v1/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobMgr.GetJob(c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, newJobResponse(job))
}

// ListJobs handles GET /api/v1/jobs
func (h *JobHandler) ListJobs(c *gin.Context) {
	filters := make(map[string]interface{})

	if status := c.Query("status"); status != "" {
		if !domain.ValidateJobStatus(domain.JobStatus(status)) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
			return
		}
		filters["status"] = status
	}
	if kind := c.Query("kind"); kind != "" {
		if kind != string(domain.JobKindDiscovery) && kind != string(domain.JobKindDownload) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid kind"})
			return
		}
		filters["kind"] = kind
	}

	jobs, err := h.jobMgr.ListJobs(filters)
	if err != nil {
		h.logger.Error("Failed to list jobs", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, jobs)
}

// GetStats handles GET /api/v1/jobs/stats
func (h *JobHandler) GetStats(c *gin.Context) {
	stats, err := h.jobMgr.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CancelJob handles POST /api/v1/jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	id := c.Param("id")

	if err := h.jobMgr.CancelJob(id); err != nil {
		h.logger.Warn("Failed to cancel job", zap.String("id", id), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "cancellation requested"})
}

// DeleteJob handles DELETE /api/v1/jobs/:id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	id := c.Param("id")

	if err := h.jobMgr.DeleteJob(id); err != nil {
		h.logger.Warn("Failed to delete job", zap.String("id", id), zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "job deleted"})
}

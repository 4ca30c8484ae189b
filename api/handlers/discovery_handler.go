package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/linkgrab/linkgrab/internal/app"
	"github.com/linkgrab/linkgrab/internal/domain"
)

// DiscoveryHandler serves the category table and synchronous discoveries
type DiscoveryHandler struct {
	discovery *app.DiscoveryService
	logger    *zap.Logger
}

// NewDiscoveryHandler creates a new discovery handler
func NewDiscoveryHandler(discovery *app.DiscoveryService, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{
		discovery: discovery,
		logger:    logger,
	}
}

// DiscoverResponse is a discovery result with the extensions present per category
type DiscoverResponse struct {
	*domain.DiscoveryResult
	Selected   int      `json:"selected"`
	Extensions []string `json:"extensions"`
}

// GetCategories handles GET /api/v1/categories
func (h *DiscoveryHandler) GetCategories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"default":    h.discovery.DefaultCategory(),
		"categories": h.discovery.Categories(),
	})
}

// Discover handles GET /api/v1/discover?url=&category=
func (h *DiscoveryHandler) Discover(c *gin.Context) {
	pageURL := c.Query("url")
	if pageURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter 'url' is required"})
		return
	}

	result, err := h.discovery.DiscoverShared(c.Request.Context(), pageURL, c.Query("category"))
	if err != nil {
		h.logger.Warn("Discovery request failed",
			zap.String("url", pageURL),
			zap.Error(err))
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, DiscoverResponse{
		DiscoveryResult: result,
		Selected:        len(domain.SelectedFiles(result.Files)),
		Extensions:      domain.ExtensionsIn(result.Files, result.Category),
	})
}

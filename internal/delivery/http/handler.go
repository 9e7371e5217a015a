package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/shelflink/backend/internal/domain"
	"github.com/shelflink/backend/internal/logger"
	"github.com/shelflink/backend/internal/usecase"
)

// Handler holds dependencies for HTTP handlers
type Handler struct {
	candidates *usecase.CandidateService
	matches    *usecase.MatchService
	log        *logger.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(candidates *usecase.CandidateService, matches *usecase.MatchService, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.NewNop()
	}
	return &Handler{candidates: candidates, matches: matches, log: log.With("component", "http")}
}

// HealthCheck returns the health status of the API
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "shelflink-backend",
		"version": "1.0.0",
	})
}

// GetCandidates returns the ranked candidate list for one internal record
// against one external source.
// GET /api/v1/products/:id/candidates?source_id=N
func (h *Handler) GetCandidates(c *gin.Context) {
	if h.candidates == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "candidate service not configured"})
		return
	}

	internalID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid product id"})
		return
	}
	sourceID, err := strconv.ParseInt(c.Query("source_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_id query parameter is required"})
		return
	}

	candidates, err := h.candidates.CandidatesForProduct(c.Request.Context(), internalID, sourceID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"productId":  internalID,
		"sourceId":   sourceID,
		"candidates": candidates,
		"count":      len(candidates),
	})
}

// CreateMatch persists a reviewer decision for a candidate pair.
// POST /api/v1/matches
func (h *Handler) CreateMatch(c *gin.Context) {
	if h.matches == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "match service not configured"})
		return
	}

	var req usecase.CreateMatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	record, err := h.matches.CreateMatch(c.Request.Context(), req)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, record)
}

// RemoveMatch soft-deletes the active match for a pair.
// DELETE /api/v1/matches?local_product_id=&external_product_key=&source_id=
func (h *Handler) RemoveMatch(c *gin.Context) {
	if h.matches == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "match service not configured"})
		return
	}

	localID, err := strconv.ParseInt(c.Query("local_product_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "local_product_id is required"})
		return
	}
	sourceID, err := strconv.ParseInt(c.Query("source_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "source_id is required"})
		return
	}
	externalKey := c.Query("external_product_key")
	if externalKey == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "external_product_key is required"})
		return
	}

	pair := domain.PairKey{
		LocalProductID:     localID,
		ExternalProductKey: externalKey,
		SourceID:           sourceID,
	}
	if err := h.matches.RemoveMatch(c.Request.Context(), pair, c.GetHeader("X-Reviewer")); err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// ListMatches returns match records filtered by local/external/source/status.
// GET /api/v1/matches
func (h *Handler) ListMatches(c *gin.Context) {
	if h.matches == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "match service not configured"})
		return
	}

	var filter domain.MatchFilter
	if raw := c.Query("local_product_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid local_product_id"})
			return
		}
		filter.LocalProductID = &id
	}
	if raw := c.Query("external_product_key"); raw != "" {
		filter.ExternalProductKey = &raw
	}
	if raw := c.Query("source_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source_id"})
			return
		}
		filter.SourceID = &id
	}
	if raw := c.Query("status"); raw != "" {
		status := domain.MatchStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("limit"); raw != "" {
		filter.Limit, _ = strconv.Atoi(raw)
	}
	if raw := c.Query("offset"); raw != "" {
		filter.Offset, _ = strconv.Atoi(raw)
	}

	records, err := h.matches.ListMatches(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"matches": records, "count": len(records)})
}

// respondError maps domain errors onto HTTP status codes.
func (h *Handler) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, domain.ErrMatchConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrMatchNotFound),
		errors.Is(err, domain.ErrProductNotFound),
		errors.Is(err, domain.ErrSourceNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrInvalidRequest),
		errors.Is(err, domain.ErrInvalidStatus):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

package handler

import (
	"context"
	"errors"
	"net/http"

	"citzn-api/internal/models"

	"github.com/gin-gonic/gin"
)

// InvalidateHandler handles cache invalidation requests for redistricting
// events and manual data corrections.
type InvalidateHandler struct {
	service InvalidationService
}

// Service interface for dependency injection
type InvalidationService interface {
	InvalidateZip(ctx context.Context, zip string) error
	InvalidateState(ctx context.Context, state string) (int, error)
	InvalidateDistrict(ctx context.Context, state string, chamber models.Chamber, district int) (int, error)
}

// NewInvalidateHandler creates a new invalidate handler
func NewInvalidateHandler(svc InvalidationService) *InvalidateHandler {
	return &InvalidateHandler{service: svc}
}

type invalidateRequest struct {
	Zip      string `json:"zip"`
	State    string `json:"state"`
	District *struct {
		State    string `json:"state"`
		Chamber  string `json:"chamber"`
		District int    `json:"district"`
	} `json:"district"`
}

// Invalidate handles POST /invalidate requests. Exactly one scope (zip,
// state, or district) must be present in the body.
func (h *InvalidateHandler) Invalidate(c *gin.Context) {
	var req invalidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ctx := c.Request.Context()

	switch {
	case req.Zip != "":
		if err := h.service.InvalidateZip(ctx, req.Zip); err != nil {
			if errors.Is(err, models.ErrInvalidZipFormat) {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ZIP code"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"invalidated": 1, "scope": "zip"})

	case req.State != "":
		n, err := h.service.InvalidateState(ctx, req.State)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"invalidated": n, "scope": "state"})

	case req.District != nil:
		chamber := models.Chamber(req.District.Chamber)
		switch chamber {
		case models.ChamberCongressional, models.ChamberStateSenate, models.ChamberStateAssembly:
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown chamber"})
			return
		}
		if req.District.District <= 0 || req.District.State == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "district invalidation requires state and a positive district number"})
			return
		}
		n, err := h.service.InvalidateDistrict(ctx, req.District.State, chamber, req.District.District)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"invalidated": n, "scope": "district"})

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "request must specify zip, state, or district"})
	}
}

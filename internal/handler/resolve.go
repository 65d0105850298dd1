package handler

import (
	"context"
	"errors"
	"net/http"

	"citzn-api/internal/models"

	"github.com/gin-gonic/gin"
)

// ResolveHandler handles ZIP resolution requests
type ResolveHandler struct {
	service ResolveService
}

// Service interface for dependency injection
type ResolveService interface {
	Resolve(ctx context.Context, zip string) (models.ZipLookupResult, error)
}

// NewResolveHandler creates a new resolve handler
func NewResolveHandler(svc ResolveService) *ResolveHandler {
	return &ResolveHandler{service: svc}
}

// Resolve handles GET /resolve/:zip requests
func (h *ResolveHandler) Resolve(c *gin.Context) {
	h.respond(c, c.Param("zip"))
}

// VerifyZip handles GET /verify-zip?zip= requests
func (h *ResolveHandler) VerifyZip(c *gin.Context) {
	zip := c.Query("zip")
	if zip == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required query parameter 'zip'"})
		return
	}
	h.respond(c, zip)
}

func (h *ResolveHandler) respond(c *gin.Context, zip string) {
	result, err := h.service.Resolve(c.Request.Context(), zip)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInvalidZipFormat):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid ZIP code",
				"message": "ZIP code must be 5 digits, optionally with a +4 suffix",
			})
		case errors.Is(err, models.ErrOutOfCoverageArea):
			c.JSON(http.StatusNotFound, gin.H{
				"error":   "ZIP code not recognized",
				"message": err.Error(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

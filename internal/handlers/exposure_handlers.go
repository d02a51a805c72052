package handlers

import (
	"net/http"
	"strconv"

	"github.com/epeers/exposure/internal/models"
	"github.com/epeers/exposure/internal/repository"
	"github.com/epeers/exposure/internal/services"
	"github.com/gin-gonic/gin"
)

// ExposureHandler exposes the resolution pipeline to the UI layer.
type ExposureHandler struct {
	pipelineSvc  *services.PipelineService
	positionRepo *repository.PositionRepository
}

// NewExposureHandler creates a new ExposureHandler.
func NewExposureHandler(pipelineSvc *services.PipelineService, positionRepo *repository.PositionRepository) *ExposureHandler {
	return &ExposureHandler{
		pipelineSvc:  pipelineSvc,
		positionRepo: positionRepo,
	}
}

// GenerateReport handles POST /portfolios/:id/exposure. The run always
// produces a report; incomplete data shows up in the report's quality
// section rather than as an error status.
func (h *ExposureHandler) GenerateReport(c *gin.Context) {
	id, ok := portfolioID(c)
	if !ok {
		return
	}

	exists, err := h.positionRepo.PortfolioExists(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "portfolio not found",
		})
		return
	}

	report, err := h.pipelineSvc.Run(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, report)
}

// ListPositions handles GET /portfolios/:id/positions.
func (h *ExposureHandler) ListPositions(c *gin.Context) {
	id, ok := portfolioID(c)
	if !ok {
		return
	}

	positions, err := h.positionRepo.LoadPositions(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"positions": positions})
}

func portfolioID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "bad_request",
			Message: "invalid portfolio ID",
		})
		return 0, false
	}
	return id, true
}

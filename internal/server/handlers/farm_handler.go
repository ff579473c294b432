package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmwatch/internal/domain/models"
	"github.com/mamadbah2/farmwatch/internal/service/farms"
	"github.com/mamadbah2/farmwatch/internal/service/monitoring"
	"github.com/mamadbah2/farmwatch/pkg/clients/agro"
)

// FarmService manages farms.
type FarmService interface {
	PreviewBoundary(points []models.BoundaryPoint) (farms.Preview, error)
	Register(ctx context.Context, userID string, req farms.RegisterRequest) (models.Farm, error)
	List(ctx context.Context, userID string) ([]models.Farm, error)
	Get(ctx context.Context, userID, farmID string) (models.Farm, error)
	Delete(ctx context.Context, userID, farmID string) error
}

// MonitorService exposes the monitoring views and on-demand checks of a farm.
type MonitorService interface {
	SoilReport(ctx context.Context, farm models.Farm) (monitoring.SoilReport, error)
	Conditions(ctx context.Context, farm models.Farm) (monitoring.Conditions, error)
	NDVIHistory(ctx context.Context, farm models.Farm, days int) ([]models.NDVIPoint, error)
	Evaluate(ctx context.Context, farm models.Farm, reading models.Reading, prev *models.Reading) ([]models.Alert, error)
	Refresh(ctx context.Context, farmID string) ([]models.Alert, error)
}

// Imagery resolves satellite image URLs.
type Imagery interface {
	SatelliteImageURL(ctx context.Context, polygonID string, imageType agro.ImageType) (string, error)
}

// FarmHandler serves the farm routes.
type FarmHandler struct {
	farms   FarmService
	monitor MonitorService
	imagery Imagery
	logger  *zap.Logger
}

// NewFarmHandler constructs the farm HTTP handler.
func NewFarmHandler(farmSvc FarmService, monitor MonitorService, imagery Imagery, logger *zap.Logger) *FarmHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FarmHandler{farms: farmSvc, monitor: monitor, imagery: imagery, logger: logger}
}

type previewRequest struct {
	Points []models.BoundaryPoint `json:"points"`
}

type evaluateRequest struct {
	Reading  models.Reading  `json:"reading"`
	Previous *models.Reading `json:"previous,omitempty"`
}

// Preview closes drawn points and reports the area.
func (h *FarmHandler) Preview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	preview, err := h.farms.PreviewBoundary(req.Points)
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, preview)
}

// Create registers a farm.
func (h *FarmHandler) Create(c *gin.Context) {
	var req farms.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	farm, err := h.farms.Register(c.Request.Context(), currentProfile(c).ID, req)
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusCreated, farm)
}

// List returns the caller's farms.
func (h *FarmHandler) List(c *gin.Context) {
	list, err := h.farms.List(c.Request.Context(), currentProfile(c).ID)
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Get returns one farm.
func (h *FarmHandler) Get(c *gin.Context) {
	farm, ok := h.loadFarm(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, farm)
}

// Delete removes a farm and its monitors.
func (h *FarmHandler) Delete(c *gin.Context) {
	if err := h.farms.Delete(c.Request.Context(), currentProfile(c).ID, c.Param("id")); err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

// Soil returns the soil view of a farm.
func (h *FarmHandler) Soil(c *gin.Context) {
	farm, ok := h.loadFarm(c)
	if !ok {
		return
	}
	report, err := h.monitor.SoilReport(c.Request.Context(), farm)
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, report)
}

// Weather returns current conditions over a farm.
func (h *FarmHandler) Weather(c *gin.Context) {
	farm, ok := h.loadFarm(c)
	if !ok {
		return
	}
	conditions, err := h.monitor.Conditions(c.Request.Context(), farm)
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, conditions)
}

// NDVI returns the vegetation index history of the last ?days= days.
func (h *FarmHandler) NDVI(c *gin.Context) {
	days := 30
	if raw := c.Query("days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 365 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "days must be an integer between 1 and 365"})
			return
		}
		days = n
	}

	farm, ok := h.loadFarm(c)
	if !ok {
		return
	}
	points, err := h.monitor.NDVIHistory(c.Request.Context(), farm, days)
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"farm_id": farm.ID, "days": days, "history": points})
}

// Imagery returns the latest satellite image URL of ?type=.
func (h *FarmHandler) Imagery(c *gin.Context) {
	imageType, err := agro.ParseImageType(c.Query("type"))
	if err != nil {
		writeError(c, h.logger, err, http.StatusBadRequest)
		return
	}

	farm, ok := h.loadFarm(c)
	if !ok {
		return
	}
	url, err := h.imagery.SatelliteImageURL(c.Request.Context(), farm.AgroPolygonID, imageType)
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"type": imageType, "url": url})
}

// Evaluate runs an alert pass over a posted reading.
func (h *FarmHandler) Evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	farm, ok := h.loadFarm(c)
	if !ok {
		return
	}
	produced, err := h.monitor.Evaluate(c.Request.Context(), farm, req.Reading, req.Previous)
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": nonNil(produced)})
}

// Refresh runs the farm checks now.
func (h *FarmHandler) Refresh(c *gin.Context) {
	farm, ok := h.loadFarm(c)
	if !ok {
		return
	}
	produced, err := h.monitor.Refresh(c.Request.Context(), farm.ID)
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": nonNil(produced)})
}

func (h *FarmHandler) loadFarm(c *gin.Context) (models.Farm, bool) {
	farm, err := h.farms.Get(c.Request.Context(), currentProfile(c).ID, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return models.Farm{}, false
	}
	return farm, true
}

func nonNil(alerts []models.Alert) []models.Alert {
	if alerts == nil {
		return []models.Alert{}
	}
	return alerts
}

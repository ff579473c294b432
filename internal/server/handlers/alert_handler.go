package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmwatch/internal/domain/models"
)

// AlertService manages alerts and alert preferences.
type AlertService interface {
	ListAlerts(ctx context.Context, farmID string) ([]models.Alert, error)
	Get(ctx context.Context, alertID string) (models.Alert, error)
	MarkRead(ctx context.Context, alertID string) error
	Delete(ctx context.Context, alertID string) error
	Preferences(ctx context.Context, userID string) (models.AlertPreferences, error)
	UpdatePreferences(ctx context.Context, userID string, patch models.PreferencesPatch) (models.AlertPreferences, error)
}

// AlertHandler serves alert and preference routes.
type AlertHandler struct {
	alerts AlertService
	farms  FarmService
	logger *zap.Logger
}

// NewAlertHandler constructs the alert HTTP handler.
func NewAlertHandler(alertSvc AlertService, farmSvc FarmService, logger *zap.Logger) *AlertHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertHandler{alerts: alertSvc, farms: farmSvc, logger: logger}
}

// ListForFarm returns a farm's alerts, newest first.
func (h *AlertHandler) ListForFarm(c *gin.Context) {
	farm, err := h.farms.Get(c.Request.Context(), currentProfile(c).ID, c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}

	list, err := h.alerts.ListAlerts(c.Request.Context(), farm.ID)
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, nonNil(list))
}

// MarkRead flags an alert of the caller as read.
func (h *AlertHandler) MarkRead(c *gin.Context) {
	alert, ok := h.ownedAlert(c)
	if !ok {
		return
	}
	if err := h.alerts.MarkRead(c.Request.Context(), alert.ID); err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

// Delete removes an alert of the caller.
func (h *AlertHandler) Delete(c *gin.Context) {
	alert, ok := h.ownedAlert(c)
	if !ok {
		return
	}
	if err := h.alerts.Delete(c.Request.Context(), alert.ID); err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetPreferences returns the caller's alert preferences.
func (h *AlertHandler) GetPreferences(c *gin.Context) {
	prefs, err := h.alerts.Preferences(c.Request.Context(), currentProfile(c).ID)
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// UpdatePreferences applies a partial update to the caller's preferences.
func (h *AlertHandler) UpdatePreferences(c *gin.Context) {
	var patch models.PreferencesPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	prefs, err := h.alerts.UpdatePreferences(c.Request.Context(), currentProfile(c).ID, patch)
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, prefs)
}

// ownedAlert loads the alert named by :id if it belongs to a farm of the caller.
func (h *AlertHandler) ownedAlert(c *gin.Context) (models.Alert, bool) {
	alert, err := h.alerts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return models.Alert{}, false
	}
	if _, err := h.farms.Get(c.Request.Context(), currentProfile(c).ID, alert.FarmID); err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return models.Alert{}, false
	}
	return alert, true
}

package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmwatch/internal/domain/models"
)

// ProfileHandler creates and returns profiles.
type ProfileHandler struct {
	profiles ProfileStore
	logger   *zap.Logger
}

// NewProfileHandler constructs the profile HTTP handler.
func NewProfileHandler(profiles ProfileStore, logger *zap.Logger) *ProfileHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProfileHandler{profiles: profiles, logger: logger}
}

type createProfileRequest struct {
	FullName             string `json:"full_name" binding:"required"`
	Phone                string `json:"phone"`
	NotificationsEnabled bool   `json:"notifications_enabled"`
}

// Create registers a new profile and returns it with its id.
func (h *ProfileHandler) Create(c *gin.Context) {
	var req createProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	profile := models.Profile{
		ID:                   uuid.NewString(),
		FullName:             strings.TrimSpace(req.FullName),
		Phone:                strings.TrimSpace(req.Phone),
		NotificationsEnabled: req.NotificationsEnabled,
		CreatedAt:            time.Now().UTC(),
	}
	if err := h.profiles.InsertProfile(c.Request.Context(), profile); err != nil {
		writeError(c, h.logger, err, http.StatusInternalServerError)
		return
	}

	h.logger.Info("profile created", zap.String("user_id", profile.ID))
	c.JSON(http.StatusCreated, profile)
}

// Me returns the calling profile.
func (h *ProfileHandler) Me(c *gin.Context) {
	c.JSON(http.StatusOK, currentProfile(c))
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmwatch/internal/domain/models"
)

// UserHeader carries the id of the calling profile.
const UserHeader = "X-User-ID"

const profileKey = "profile"

// ProfileStore resolves and creates profiles.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
	InsertProfile(ctx context.Context, profile models.Profile) error
}

// RequireProfile rejects requests whose UserHeader does not name a known profile.
func RequireProfile(profiles ProfileStore, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(UserHeader))
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing " + UserHeader + " header"})
			return
		}

		profile, err := profiles.GetProfile(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown user"})
				return
			}
			logger.Error("failed to resolve profile", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}

		c.Set(profileKey, profile)
		c.Next()
	}
}

func currentProfile(c *gin.Context) models.Profile {
	if v, ok := c.Get(profileKey); ok {
		if p, ok := v.(models.Profile); ok {
			return p
		}
	}
	return models.Profile{}
}

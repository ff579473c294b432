package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmwatch/internal/domain/models"
	"github.com/mamadbah2/farmwatch/internal/geometry"
	"github.com/mamadbah2/farmwatch/internal/service/alerts"
	"github.com/mamadbah2/farmwatch/internal/service/farms"
	"github.com/mamadbah2/farmwatch/internal/service/monitoring"
	"github.com/mamadbah2/farmwatch/pkg/clients/agro"
	"github.com/mamadbah2/farmwatch/pkg/clients/openweather"
)

var validationErrors = []error{
	geometry.ErrTooFewPoints,
	geometry.ErrAreaTooLarge,
	farms.ErrNameRequired,
	farms.ErrCropTypeRequired,
	farms.ErrInvalidField,
	alerts.ErrInvalidFrequency,
	agro.ErrUnsupportedImageType,
	monitoring.ErrNoBoundary,
}

// StatusFor maps a service error to an HTTP status. fallback is used for
// errors that carry no classification.
func StatusFor(err error, fallback int) int {
	for _, target := range validationErrors {
		if errors.Is(err, target) {
			return http.StatusUnprocessableEntity
		}
	}

	var (
		agroErr    *agro.APIError
		weatherErr *openweather.APIError
	)
	switch {
	case errors.Is(err, models.ErrNotFound), errors.Is(err, agro.ErrNoImagery):
		return http.StatusNotFound
	case errors.Is(err, agro.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.As(err, &agroErr), errors.As(err, &weatherErr),
		errors.Is(err, agro.ErrUnavailable), errors.Is(err, openweather.ErrUnavailable),
		errors.Is(err, openweather.ErrMalformedResponse):
		return http.StatusBadGateway
	}
	return fallback
}

func writeError(c *gin.Context, logger *zap.Logger, err error, fallback int) {
	status := StatusFor(err, fallback)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err), zap.String("path", c.FullPath()))
	} else {
		logger.Warn("request rejected", zap.Error(err), zap.Int("status", status))
	}

	message := err.Error()
	switch {
	case status == http.StatusBadGateway:
		message = "upstream service error"
	case status >= http.StatusInternalServerError:
		message = "internal error"
	}
	c.JSON(status, gin.H{"error": message})
}

// Package notify turns alerts into owner notifications.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmwatch/internal/domain/models"
	"github.com/mamadbah2/farmwatch/pkg/clients/whatsapp"
)

// ErrPermissionDenied is returned when the recipient has not granted notifications.
var ErrPermissionDenied = errors.New("notification permission not granted")

// Service delivers alert notifications as WhatsApp text messages.
type Service struct {
	sender whatsapp.Sender
	logger *zap.Logger
}

// NewService wires a new notification service.
func NewService(sender whatsapp.Sender, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{sender: sender, logger: logger}
}

// Build renders the notification of an alert for recipient.
func Build(recipient models.Profile, alert models.Alert) models.Notification {
	return models.Notification{
		To:      recipient.Phone,
		Title:   Title(alert),
		Body:    alert.Message,
		AlertID: alert.ID,
	}
}

// Title formats "<emoji> Farm Alert: <type>" where the emoji reflects severity.
func Title(alert models.Alert) string {
	return fmt.Sprintf("%s Farm Alert: %s", severityEmoji(alert.Severity), alert.Type)
}

func severityEmoji(s models.Severity) string {
	switch s {
	case models.SeverityHigh:
		return "🔴"
	case models.SeverityMedium:
		return "🟡"
	default:
		return "🟢"
	}
}

// NotifyAlert sends one alert to recipient. It returns ErrPermissionDenied
// without contacting the API when the recipient cannot receive notifications.
func (s *Service) NotifyAlert(ctx context.Context, recipient models.Profile, alert models.Alert) error {
	if !recipient.CanReceiveNotifications() {
		s.logger.Warn("notification skipped, permission not granted",
			zap.String("user_id", recipient.ID),
			zap.String("alert_id", alert.ID))
		return ErrPermissionDenied
	}

	n := Build(recipient, alert)
	body := fmt.Sprintf("*%s*\n%s", n.Title, n.Body)

	messageID, err := s.sender.SendText(ctx, n.To, body)
	if err != nil {
		return fmt.Errorf("send alert notification: %w", err)
	}

	s.logger.Info("alert notification sent",
		zap.String("user_id", recipient.ID),
		zap.String("alert_id", alert.ID),
		zap.String("message_id", messageID))
	return nil
}

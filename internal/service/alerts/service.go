// Package alerts evaluates threshold rules over farm readings and manages the
// resulting alert records and the user's alert preferences.
package alerts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmwatch/internal/domain/models"
	"github.com/mamadbah2/farmwatch/internal/repository/sheets"
	"github.com/mamadbah2/farmwatch/internal/service/notify"
)

// ErrInvalidFrequency indicates an unknown notification frequency.
var ErrInvalidFrequency = errors.New("invalid notification frequency")

// Store persists alerts and alert preferences.
type Store interface {
	InsertAlert(ctx context.Context, alert models.Alert) error
	GetAlert(ctx context.Context, alertID string) (models.Alert, error)
	ListAlerts(ctx context.Context, farmID string) ([]models.Alert, error)
	MarkAlertRead(ctx context.Context, alertID string) error
	DeleteAlert(ctx context.Context, alertID string) error
	GetPreferences(ctx context.Context, userID string) (models.AlertPreferences, error)
	UpsertPreferences(ctx context.Context, prefs models.AlertPreferences) error
}

// Notifier delivers a notification for a produced alert.
type Notifier interface {
	NotifyAlert(ctx context.Context, recipient models.Profile, alert models.Alert) error
}

// Service runs evaluation passes and exposes alert CRUD.
type Service struct {
	store     Store
	ledger    sheets.Repository
	notifier  Notifier
	evaluator *Evaluator
	logger    *zap.Logger
	now       func() time.Time
}

// NewService wires an alert service. ledger and notifier are optional.
func NewService(store Store, ledger sheets.Repository, notifier Notifier, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     store,
		ledger:    ledger,
		notifier:  notifier,
		evaluator: NewEvaluator(),
		logger:    logger,
		now:       time.Now,
	}
}

// EvaluateAndDispatch evaluates one reading for a farm and, for every alert
// produced, persists it, records it in the ledger and notifies the owner.
// A persistence failure stops the pass and is returned; ledger and
// notification failures are logged and do not undo the stored alert.
func (s *Service) EvaluateAndDispatch(ctx context.Context, farm models.Farm, reading models.Reading, prev *models.Reading, recipient models.Profile) ([]models.Alert, error) {
	prefs, err := s.Preferences(ctx, farm.UserID)
	if err != nil {
		return nil, err
	}

	if reading.FarmID == "" {
		reading.FarmID = farm.ID
	}

	produced := s.evaluator.Evaluate(reading, prev, prefs)
	if len(produced) == 0 {
		return nil, nil
	}

	persisted := make([]models.Alert, 0, len(produced))
	for _, alert := range produced {
		if err := s.store.InsertAlert(ctx, alert); err != nil {
			s.logger.Error("failed to persist alert",
				zap.Error(err),
				zap.String("farm_id", farm.ID),
				zap.String("type", string(alert.Type)))
			return persisted, fmt.Errorf("persist %s alert: %w", alert.Type, err)
		}
		persisted = append(persisted, alert)

		s.recordLedger(ctx, farm, alert)
		s.notify(ctx, recipient, alert)
	}

	s.logger.Info("evaluation pass produced alerts",
		zap.String("farm_id", farm.ID),
		zap.Int("count", len(persisted)))

	return persisted, nil
}

func (s *Service) recordLedger(ctx context.Context, farm models.Farm, alert models.Alert) {
	if s.ledger == nil {
		return
	}
	if err := s.ledger.WriteRow(ctx, sheets.AlertsRange, sheets.AlertRow(farm, alert)); err != nil {
		s.logger.Warn("failed to record alert in ledger", zap.Error(err), zap.String("alert_id", alert.ID))
	}
}

func (s *Service) notify(ctx context.Context, recipient models.Profile, alert models.Alert) {
	if s.notifier == nil {
		return
	}
	err := s.notifier.NotifyAlert(ctx, recipient, alert)
	if errors.Is(err, notify.ErrPermissionDenied) {
		return
	}
	if err != nil {
		s.logger.Warn("failed to schedule alert notification",
			zap.Error(err),
			zap.String("alert_id", alert.ID),
			zap.String("user_id", recipient.ID))
	}
}

// ListAlerts returns the farm's alerts, newest first.
func (s *Service) ListAlerts(ctx context.Context, farmID string) ([]models.Alert, error) {
	alerts, err := s.store.ListAlerts(ctx, farmID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	return alerts, nil
}

// Get loads one alert.
func (s *Service) Get(ctx context.Context, alertID string) (models.Alert, error) {
	return s.store.GetAlert(ctx, alertID)
}

// MarkRead flags an alert as read.
func (s *Service) MarkRead(ctx context.Context, alertID string) error {
	if err := s.store.MarkAlertRead(ctx, alertID); err != nil {
		return fmt.Errorf("mark alert read: %w", err)
	}
	return nil
}

// Delete removes an alert.
func (s *Service) Delete(ctx context.Context, alertID string) error {
	if err := s.store.DeleteAlert(ctx, alertID); err != nil {
		return fmt.Errorf("delete alert: %w", err)
	}
	return nil
}

// Preferences returns the stored preferences, or the defaults when the user
// never saved any.
func (s *Service) Preferences(ctx context.Context, userID string) (models.AlertPreferences, error) {
	prefs, err := s.store.GetPreferences(ctx, userID)
	if errors.Is(err, models.ErrNotFound) {
		return models.DefaultAlertPreferences(userID), nil
	}
	if err != nil {
		return models.AlertPreferences{}, fmt.Errorf("load alert preferences: %w", err)
	}
	if prefs.NotificationFrequency == "" {
		prefs.NotificationFrequency = models.FrequencyRealtime
	}
	return prefs, nil
}

// UpdatePreferences merges patch into the current preferences and upserts them.
func (s *Service) UpdatePreferences(ctx context.Context, userID string, patch models.PreferencesPatch) (models.AlertPreferences, error) {
	if patch.NotificationFrequency != nil && !patch.NotificationFrequency.Valid() {
		return models.AlertPreferences{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, *patch.NotificationFrequency)
	}

	current, err := s.Preferences(ctx, userID)
	if err != nil {
		return models.AlertPreferences{}, err
	}

	updated := patch.Apply(current)
	updated.UserID = userID
	updated.UpdatedAt = s.now().UTC()

	if err := s.store.UpsertPreferences(ctx, updated); err != nil {
		s.logger.Error("failed to update alert preferences", zap.Error(err), zap.String("user_id", userID))
		return models.AlertPreferences{}, fmt.Errorf("update alert preferences: %w", err)
	}
	return updated, nil
}

// Package farms registers fields, their remote polygons and their monitors.
package farms

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	geojson "github.com/paulmach/go.geojson"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmwatch/internal/domain/models"
	"github.com/mamadbah2/farmwatch/internal/geometry"
	"github.com/mamadbah2/farmwatch/pkg/clients/agro"
)

var (
	// ErrNameRequired means the farm has no name.
	ErrNameRequired = errors.New("farm name is required")
	// ErrCropTypeRequired means the farm has no crop type.
	ErrCropTypeRequired = errors.New("crop type is required")
	// ErrInvalidField means an enumerated field holds an unknown value.
	ErrInvalidField = errors.New("invalid field value")
)

// Store persists farms.
type Store interface {
	InsertFarm(ctx context.Context, farm models.Farm) error
	GetFarm(ctx context.Context, farmID string) (models.Farm, error)
	ListFarms(ctx context.Context, userID string) ([]models.Farm, error)
	DeleteFarm(ctx context.Context, farmID string) error
}

// PolygonRegistrar creates the remote polygon of a boundary.
type PolygonRegistrar interface {
	CreatePolygon(ctx context.Context, name string, feature *geojson.Feature) (*agro.Polygon, error)
}

// Monitors starts and stops the periodic checks of a farm.
type Monitors interface {
	Register(farm models.Farm)
	Unregister(farmID string)
}

// RegisterRequest is the user input for a new farm.
type RegisterRequest struct {
	Name             string                  `json:"name"`
	CropType         models.CropType         `json:"crop_type"`
	SoilType         models.SoilType         `json:"soil_type"`
	IrrigationMethod models.IrrigationMethod `json:"irrigation_method"`
	PlantingDate     time.Time               `json:"planting_date"`
	Points           []models.BoundaryPoint  `json:"points"`
}

// Preview is a closed boundary with its area and ceiling check.
type Preview struct {
	Boundary    models.FieldBoundary `json:"boundary"`
	MaxAcres    float64              `json:"max_acres"`
	OverCeiling bool                 `json:"over_ceiling"`
}

// Service manages farms.
type Service struct {
	store    Store
	polygons PolygonRegistrar
	monitors Monitors
	maxAcres float64
	logger   *zap.Logger
	now      func() time.Time
	newID    func() string
}

// NewService wires a farm service. monitors is optional.
func NewService(store Store, polygons PolygonRegistrar, monitors Monitors, maxAcres float64, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if math.IsNaN(maxAcres) || math.IsInf(maxAcres, 0) || maxAcres <= 0 {
		maxAcres = geometry.MaxAreaAcres
	}
	return &Service{
		store:    store,
		polygons: polygons,
		monitors: monitors,
		maxAcres: maxAcres,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// PreviewBoundary closes the drawn points and reports whether the area is acceptable.
func (s *Service) PreviewBoundary(points []models.BoundaryPoint) (Preview, error) {
	boundary, err := geometry.ClosePolygon(points)
	if err != nil {
		return Preview{}, err
	}
	return Preview{
		Boundary:    boundary,
		MaxAcres:    s.maxAcres,
		OverCeiling: geometry.ValidateArea(boundary, s.maxAcres) != nil,
	}, nil
}

// Register validates the request, registers the remote polygon, stores the
// farm and schedules its monitors. Nothing is sent remotely unless the
// request and its boundary are valid.
func (s *Service) Register(ctx context.Context, userID string, req RegisterRequest) (models.Farm, error) {
	if err := validate(req); err != nil {
		return models.Farm{}, err
	}

	boundary, err := geometry.ClosePolygon(req.Points)
	if err != nil {
		return models.Farm{}, err
	}
	if err := geometry.ValidateArea(boundary, s.maxAcres); err != nil {
		return models.Farm{}, err
	}

	name := strings.TrimSpace(req.Name)
	polygon, err := s.polygons.CreatePolygon(ctx, name, geometry.Feature(name, boundary))
	if err != nil {
		s.logger.Error("failed to create remote polygon", zap.Error(err), zap.String("user_id", userID))
		return models.Farm{}, fmt.Errorf("create polygon: %w", err)
	}

	now := s.now().UTC()
	farm := models.Farm{
		ID:               s.newID(),
		UserID:           userID,
		Name:             name,
		CropType:         req.CropType,
		SoilType:         req.SoilType,
		IrrigationMethod: req.IrrigationMethod,
		PlantingDate:     req.PlantingDate,
		AreaAcres:        boundary.AreaAcres,
		Boundary:         geometry.Polygon(boundary),
		AgroPolygonID:    polygon.ID,
		Status:           models.FarmHealthy,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	if err := s.store.InsertFarm(ctx, farm); err != nil {
		s.logger.Error("farm insert failed after polygon creation",
			zap.Error(err),
			zap.String("orphaned_polygon_id", polygon.ID),
			zap.String("user_id", userID))
		return models.Farm{}, fmt.Errorf("insert farm: %w", err)
	}

	if s.monitors != nil {
		s.monitors.Register(farm)
	}

	s.logger.Info("farm registered",
		zap.String("farm_id", farm.ID),
		zap.String("polygon_id", polygon.ID),
		zap.Float64("area_acres", farm.AreaAcres))
	return farm, nil
}

// List returns the user's farms, newest first.
func (s *Service) List(ctx context.Context, userID string) ([]models.Farm, error) {
	farms, err := s.store.ListFarms(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list farms: %w", err)
	}
	if farms == nil {
		farms = []models.Farm{}
	}
	return farms, nil
}

// Get loads a farm owned by userID. Farms of other users are reported as not found.
func (s *Service) Get(ctx context.Context, userID, farmID string) (models.Farm, error) {
	farm, err := s.store.GetFarm(ctx, farmID)
	if err != nil {
		return models.Farm{}, err
	}
	if farm.UserID != userID {
		return models.Farm{}, models.ErrNotFound
	}
	return farm, nil
}

// Delete removes a farm owned by userID and stops its monitors.
func (s *Service) Delete(ctx context.Context, userID, farmID string) error {
	if _, err := s.Get(ctx, userID, farmID); err != nil {
		return err
	}
	if err := s.store.DeleteFarm(ctx, farmID); err != nil {
		return fmt.Errorf("delete farm: %w", err)
	}
	if s.monitors != nil {
		s.monitors.Unregister(farmID)
	}
	s.logger.Info("farm deleted", zap.String("farm_id", farmID))
	return nil
}

func validate(req RegisterRequest) error {
	if strings.TrimSpace(req.Name) == "" {
		return ErrNameRequired
	}
	if req.CropType == "" {
		return ErrCropTypeRequired
	}
	if !req.CropType.Valid() {
		return fmt.Errorf("%w: crop_type %q", ErrInvalidField, req.CropType)
	}
	if req.SoilType != "" && !req.SoilType.Valid() {
		return fmt.Errorf("%w: soil_type %q", ErrInvalidField, req.SoilType)
	}
	if req.IrrigationMethod != "" && !req.IrrigationMethod.Valid() {
		return fmt.Errorf("%w: irrigation_method %q", ErrInvalidField, req.IrrigationMethod)
	}
	return nil
}

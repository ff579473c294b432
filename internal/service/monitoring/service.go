// Package monitoring fetches weather, soil and satellite data for farms,
// keeps the farm snapshots current and feeds the readings to the alert pass.
package monitoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/farmwatch/internal/domain/models"
	"github.com/mamadbah2/farmwatch/internal/service/alerts"
	"github.com/mamadbah2/farmwatch/pkg/clients/agro"
	"github.com/mamadbah2/farmwatch/pkg/clients/openweather"
)

// ErrNoBoundary means the farm has no usable boundary to locate it.
var ErrNoBoundary = errors.New("farm has no usable boundary")

const (
	forecastHorizon  = 24 * time.Hour
	vegetationWindow = 7 * 24 * time.Hour
	ndviLookback     = 30 * 24 * time.Hour
)

// FarmStore loads farms and updates their monitoring snapshots.
type FarmStore interface {
	GetFarm(ctx context.Context, farmID string) (models.Farm, error)
	UpdateWeatherData(ctx context.Context, farmID string, snapshot models.WeatherSnapshot) error
	UpdateSoilData(ctx context.Context, farmID string, snapshot models.SoilSnapshot) error
	AppendNDVI(ctx context.Context, farmID string, point models.NDVIPoint, imageURL string, at time.Time) error
	UpdateFarmStatus(ctx context.Context, farmID string, status models.FarmStatus, at time.Time) error
}

// ProfileStore resolves the owner of a farm.
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (models.Profile, error)
}

// Dispatcher runs one alert evaluation pass.
type Dispatcher interface {
	EvaluateAndDispatch(ctx context.Context, farm models.Farm, reading models.Reading, prev *models.Reading, recipient models.Profile) ([]models.Alert, error)
}

// Satellite is the subset of the agronomy API used by the monitors.
type Satellite interface {
	GetSoil(ctx context.Context, polygonID string) (*agro.Soil, error)
	GetNDVIHistory(ctx context.Context, polygonID string, start, end time.Time) ([]agro.NDVIEntry, error)
	GetWeather(ctx context.Context, polygonID string) (*agro.Weather, error)
	GetUVIndex(ctx context.Context, polygonID string) (float64, error)
	SatelliteImageURL(ctx context.Context, polygonID string, imageType agro.ImageType) (string, error)
}

// SoilReport is the soil view of a farm.
type SoilReport struct {
	Moisture       float64                  `json:"moisture"`
	SurfaceTempC   float64                  `json:"surface_temp_c"`
	Depth10TempC   float64                  `json:"depth_10cm_temp_c"`
	Level          MoistureLevel            `json:"level"`
	Recommendation IrrigationRecommendation `json:"recommendation"`
	ObservedAt     time.Time                `json:"observed_at"`
}

// Conditions is the current weather over a farm polygon.
type Conditions struct {
	TempC       float64   `json:"temp_c"`
	HumidityPct float64   `json:"humidity_pct"`
	PressureHPa float64   `json:"pressure_hpa"`
	WindSpeedMS float64   `json:"wind_speed_ms"`
	Description string    `json:"description,omitempty"`
	UVIndex     float64   `json:"uv_index"`
	ObservedAt  time.Time `json:"observed_at"`
}

// Service runs the per-farm checks.
type Service struct {
	farms      FarmStore
	profiles   ProfileStore
	dispatcher Dispatcher
	satellite  Satellite
	weather    openweather.Client
	logger     *zap.Logger
	now        func() time.Time
}

// NewService wires a monitoring service.
func NewService(farms FarmStore, profiles ProfileStore, dispatcher Dispatcher, satellite Satellite, weather openweather.Client, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		farms:      farms,
		profiles:   profiles,
		dispatcher: dispatcher,
		satellite:  satellite,
		weather:    weather,
		logger:     logger,
		now:        time.Now,
	}
}

// CheckWeather evaluates current conditions and the next 24 hours of forecast
// at the farm centroid, and stores the current conditions on the farm.
func (s *Service) CheckWeather(ctx context.Context, farmID string) ([]models.Alert, error) {
	farm, err := s.farms.GetFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}
	lat, lon, ok := farm.Centroid()
	if !ok {
		return nil, ErrNoBoundary
	}

	current, err := s.weather.Current(ctx, lat, lon)
	if err != nil {
		return nil, err
	}
	forecast, err := s.weather.Forecast(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	snapshot := models.WeatherSnapshot{
		Temperature: current.Main.Temp,
		Humidity:    current.Main.Humidity,
		Rainfall:    current.RainMM3h(),
		WindSpeed:   current.Wind.Speed,
		LastUpdate:  now,
	}
	if err := s.farms.UpdateWeatherData(ctx, farm.ID, snapshot); err != nil {
		return nil, fmt.Errorf("store weather snapshot: %w", err)
	}

	reading := WeatherReading(farm.ID, *current, forecast, now, forecastHorizon)
	return s.dispatch(ctx, farm, reading, nil)
}

// WeatherReading folds current conditions and the forecast slots within
// horizon of now into one reading: ambient temperature and humidity from the
// current conditions, the coldest forecast temperature and the heaviest
// forecast rain and wind.
func WeatherReading(farmID string, current openweather.Observation, forecast []openweather.Observation, now time.Time, horizon time.Duration) models.Reading {
	reading := current.CurrentReading(farmID)
	reading.ObservedAt = now
	reading.RainMM3h = nil
	reading.WindSpeedMS = nil

	end := now.Add(horizon)
	for _, slot := range forecast {
		at := slot.Time()
		if at.Before(now.Add(-3*time.Hour)) || at.After(end) {
			continue
		}
		r := slot.ForecastReading(farmID)
		reading.ForecastTempC = minPtr(reading.ForecastTempC, r.ForecastTempC)
		reading.RainMM3h = maxPtr(reading.RainMM3h, r.RainMM3h)
		reading.WindSpeedMS = maxPtr(reading.WindSpeedMS, r.WindSpeedMS)
	}
	return reading
}

// CheckSoil evaluates the latest soil observation and stores it on the farm.
func (s *Service) CheckSoil(ctx context.Context, farmID string) ([]models.Alert, error) {
	farm, err := s.farms.GetFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}

	soil, err := s.satellite.GetSoil(ctx, farm.AgroPolygonID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	snapshot := models.SoilSnapshot{
		Moisture:    soil.Moisture,
		Temperature: agro.KelvinToCelsius(soil.T0),
		LastUpdate:  now,
	}
	if err := s.farms.UpdateSoilData(ctx, farm.ID, snapshot); err != nil {
		return nil, fmt.Errorf("store soil snapshot: %w", err)
	}

	reading := models.Reading{
		FarmID:       farm.ID,
		ObservedAt:   soil.ObservedAt(),
		SoilMoisture: models.Float(soil.Moisture),
	}
	return s.dispatch(ctx, farm, reading, nil)
}

// SoilReport returns the current soil view of a farm without evaluating alerts.
func (s *Service) SoilReport(ctx context.Context, farm models.Farm) (SoilReport, error) {
	soil, err := s.satellite.GetSoil(ctx, farm.AgroPolygonID)
	if err != nil {
		return SoilReport{}, err
	}
	level := LevelFor(soil.Moisture)
	return SoilReport{
		Moisture:       soil.Moisture,
		SurfaceTempC:   agro.KelvinToCelsius(soil.T0),
		Depth10TempC:   agro.KelvinToCelsius(soil.T10),
		Level:          level,
		Recommendation: RecommendationFor(level),
		ObservedAt:     soil.ObservedAt(),
	}, nil
}

// Conditions returns the satellite API's current weather and UV index over the farm polygon.
func (s *Service) Conditions(ctx context.Context, farm models.Farm) (Conditions, error) {
	w, err := s.satellite.GetWeather(ctx, farm.AgroPolygonID)
	if err != nil {
		return Conditions{}, err
	}
	c := Conditions{
		TempC:       agro.KelvinToCelsius(w.Main.Temp),
		HumidityPct: w.Main.Humidity,
		PressureHPa: w.Main.Pressure,
		WindSpeedMS: w.Wind.Speed,
		ObservedAt:  time.Unix(w.DT, 0).UTC(),
	}
	if len(w.Weather) > 0 {
		c.Description = w.Weather[0].Description
	}

	uvi, err := s.satellite.GetUVIndex(ctx, farm.AgroPolygonID)
	if err != nil {
		s.logger.Warn("failed to fetch uv index", zap.Error(err), zap.String("farm_id", farm.ID))
	} else {
		c.UVIndex = uvi
	}
	return c, nil
}

// RefreshNDVI appends the newest NDVI scene to the farm history when it is
// newer than the last stored point, and records the latest NDVI image URL.
func (s *Service) RefreshNDVI(ctx context.Context, farmID string) error {
	farm, err := s.farms.GetFarm(ctx, farmID)
	if err != nil {
		return err
	}

	now := s.now().UTC()
	entries, err := s.satellite.GetNDVIHistory(ctx, farm.AgroPolygonID, now.Add(-ndviLookback), now)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		s.logger.Debug("no ndvi scenes available", zap.String("farm_id", farm.ID))
		return nil
	}

	sortByAcquisition(entries)
	latest := entries[len(entries)-1]
	point := models.NDVIPoint{Date: latest.AcquiredAt(), Value: latest.Data.Mean}

	if last, ok := lastNDVIPoint(farm); ok && !point.Date.After(last.Date) {
		return nil
	}

	imageURL, err := s.satellite.SatelliteImageURL(ctx, farm.AgroPolygonID, agro.ImageNDVI)
	if err != nil {
		s.logger.Warn("failed to fetch ndvi image", zap.Error(err), zap.String("farm_id", farm.ID))
		imageURL = ""
	}

	if err := s.farms.AppendNDVI(ctx, farm.ID, point, imageURL, now); err != nil {
		return fmt.Errorf("append ndvi point: %w", err)
	}
	return nil
}

// NDVIHistory returns the farm's NDVI scenes of the last days, oldest first.
func (s *Service) NDVIHistory(ctx context.Context, farm models.Farm, days int) ([]models.NDVIPoint, error) {
	if days <= 0 {
		days = 30
	}
	now := s.now().UTC()
	entries, err := s.satellite.GetNDVIHistory(ctx, farm.AgroPolygonID, now.AddDate(0, 0, -days), now)
	if err != nil {
		return nil, err
	}
	sortByAcquisition(entries)

	points := make([]models.NDVIPoint, 0, len(entries))
	for _, e := range entries {
		points = append(points, models.NDVIPoint{Date: e.AcquiredAt(), Value: e.Data.Mean})
	}
	return points, nil
}

// CheckVegetation compares the latest NDVI of the last 7 days with the first
// one of the window, evaluates the result and updates the farm status.
func (s *Service) CheckVegetation(ctx context.Context, farmID string) ([]models.Alert, error) {
	farm, err := s.farms.GetFarm(ctx, farmID)
	if err != nil {
		return nil, err
	}

	points, err := s.NDVIHistory(ctx, farm, int(vegetationWindow/(24*time.Hour)))
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, nil
	}

	latest := points[len(points)-1]
	reading := models.Reading{
		FarmID:     farm.ID,
		ObservedAt: latest.Date,
		NDVIMean:   models.Float(latest.Value),
	}
	var prev *models.Reading
	if len(points) > 1 {
		prev = &models.Reading{FarmID: farm.ID, ObservedAt: points[0].Date, NDVIMean: models.Float(points[0].Value)}
	}

	status := VegetationStatus(latest.Value, prev)
	if status != farm.Status {
		if err := s.farms.UpdateFarmStatus(ctx, farm.ID, status, s.now().UTC()); err != nil {
			s.logger.Warn("failed to update farm status", zap.Error(err), zap.String("farm_id", farm.ID))
		}
	}

	return s.dispatch(ctx, farm, reading, prev)
}

// VegetationStatus labels farm health from its vegetation index.
func VegetationStatus(latest float64, prev *models.Reading) models.FarmStatus {
	if latest < alerts.LowNDVI {
		return models.FarmCritical
	}
	if prev != nil && prev.NDVIMean != nil && alerts.SignificantNDVIDrop(*prev.NDVIMean, latest) {
		return models.FarmNeedsAttention
	}
	return models.FarmHealthy
}

// Refresh runs the weather, soil, NDVI and vegetation checks of a farm now.
// Every check runs; the first error is returned with the alerts of the others.
func (s *Service) Refresh(ctx context.Context, farmID string) ([]models.Alert, error) {
	checks := []struct {
		name string
		run  func(context.Context, string) ([]models.Alert, error)
	}{
		{name: "weather", run: s.CheckWeather},
		{name: "soil", run: s.CheckSoil},
		{name: "ndvi", run: func(ctx context.Context, id string) ([]models.Alert, error) {
			return nil, s.RefreshNDVI(ctx, id)
		}},
		{name: "vegetation", run: s.CheckVegetation},
	}

	var (
		produced []models.Alert
		firstErr error
	)
	for _, check := range checks {
		out, err := check.run(ctx, farmID)
		produced = append(produced, out...)
		if err != nil {
			s.logger.Warn("farm check failed", zap.Error(err), zap.String("check", check.name), zap.String("farm_id", farmID))
			if firstErr == nil {
				firstErr = fmt.Errorf("%s check: %w", check.name, err)
			}
		}
	}
	return produced, firstErr
}

// Evaluate runs an alert pass over a caller supplied reading.
func (s *Service) Evaluate(ctx context.Context, farm models.Farm, reading models.Reading, prev *models.Reading) ([]models.Alert, error) {
	reading.FarmID = farm.ID
	if reading.ObservedAt.IsZero() {
		reading.ObservedAt = s.now().UTC()
	}
	return s.dispatch(ctx, farm, reading, prev)
}

func (s *Service) dispatch(ctx context.Context, farm models.Farm, reading models.Reading, prev *models.Reading) ([]models.Alert, error) {
	return s.dispatcher.EvaluateAndDispatch(ctx, farm, reading, prev, s.recipient(ctx, farm))
}

func (s *Service) recipient(ctx context.Context, farm models.Farm) models.Profile {
	if s.profiles == nil {
		return models.Profile{ID: farm.UserID}
	}
	profile, err := s.profiles.GetProfile(ctx, farm.UserID)
	if err != nil {
		s.logger.Warn("failed to load farm owner, notifications disabled for this pass",
			zap.Error(err), zap.String("user_id", farm.UserID))
		return models.Profile{ID: farm.UserID}
	}
	return profile
}

func lastNDVIPoint(farm models.Farm) (models.NDVIPoint, bool) {
	if farm.SatelliteData == nil || len(farm.SatelliteData.NDVIHistory) == 0 {
		return models.NDVIPoint{}, false
	}
	history := farm.SatelliteData.NDVIHistory
	return history[len(history)-1], true
}

func sortByAcquisition(entries []agro.NDVIEntry) {
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].DT < entries[j].DT })
}

func minPtr(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil || *a <= *b {
		return a
	}
	return b
}

func maxPtr(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil || *a >= *b {
		return a
	}
	return b
}

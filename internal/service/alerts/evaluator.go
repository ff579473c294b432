package alerts

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mamadbah2/farmwatch/internal/domain/models"
)

// Rule thresholds. Every comparison is strict.
const (
	FrostTempC          = 2.0
	HeavyRainMM3h       = 10.0
	HighWindMS          = 20.0
	LowSoilMoisture     = 0.3
	VeryDrySoilMoisture = 0.2
	LowNDVI             = 0.3
	NDVIDropRatio       = 0.2
	HumidDiseasePct     = 80.0
	HumidDiseaseTempC   = 20.0
	HighTempC           = 35.0
	LowTempC            = 5.0
)

// ndviDropEpsilon absorbs float noise so an exact 20% drop still counts.
const ndviDropEpsilon = 1e-9

// Evaluator applies the threshold rules to readings. It holds no state
// between passes; the same still-true condition yields a new alert each time.
type Evaluator struct {
	now   func() time.Time
	newID func() string
}

// NewEvaluator builds an evaluator using wall-clock time and random UUIDs.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		now:   time.Now,
		newID: func() string { return uuid.NewString() },
	}
}

// Evaluate runs every rule against reading. prev is the earlier reading used
// by week-over-week comparisons and may be nil.
func Evaluate(reading models.Reading, prev *models.Reading, prefs models.AlertPreferences) []models.Alert {
	return NewEvaluator().Evaluate(reading, prev, prefs)
}

// Evaluate runs every rule against reading.
func (e *Evaluator) Evaluate(reading models.Reading, prev *models.Reading, prefs models.AlertPreferences) []models.Alert {
	var out []models.Alert
	emit := func(kind models.AlertKind, subtype string, severity models.Severity, message string) {
		out = append(out, models.Alert{
			ID:        e.newID(),
			FarmID:    reading.FarmID,
			Type:      kind,
			Subtype:   subtype,
			Severity:  severity,
			Message:   message,
			Timestamp: e.now().UTC(),
		})
	}

	if prefs.Enabled(models.AlertWeather) {
		if prefs.Enabled(models.AlertFrost) && below(reading.ForecastTempC, FrostTempC) {
			emit(models.AlertFrost, "", models.SeverityHigh,
				fmt.Sprintf("Frost risk detected! Temperature expected to drop to %.1f°C (below %.0f°C).", *reading.ForecastTempC, FrostTempC))
		}
		if prefs.Enabled(models.AlertHeavyRain) && above(reading.RainMM3h, HeavyRainMM3h) {
			emit(models.AlertHeavyRain, "", models.SeverityMedium,
				fmt.Sprintf("Heavy rain expected: %.1fmm in the next 3 hours.", *reading.RainMM3h))
		}
		if prefs.Enabled(models.AlertHighWinds) && above(reading.WindSpeedMS, HighWindMS) {
			emit(models.AlertHighWinds, "", models.SeverityHigh,
				fmt.Sprintf("High winds expected: %.1fm/s.", *reading.WindSpeedMS))
		}
	}

	if prefs.Enabled(models.AlertLowSoilMoisture) && below(reading.SoilMoisture, LowSoilMoisture) {
		moisture := *reading.SoilMoisture
		message := fmt.Sprintf("Low soil moisture detected (%.0f%%). Consider irrigation.", moisture*100)
		if moisture < VeryDrySoilMoisture {
			message = fmt.Sprintf("Soil is very dry (%.0f%% moisture). Irrigate now.", moisture*100)
		}
		emit(models.AlertLowSoilMoisture, "", models.SeverityHigh, message)
	}

	if prefs.Enabled(models.AlertDiseaseRisk) {
		e.evaluateVegetation(reading, prev, emit)

		if above(reading.HumidityPct, HumidDiseasePct) && above(reading.TempC, HumidDiseaseTempC) {
			emit(models.AlertDiseaseRisk, "", models.SeverityMedium, "High disease risk due to humid conditions.")
		}
	}

	if prefs.Enabled(models.AlertWeather) {
		switch {
		case above(reading.TempC, HighTempC):
			emit(models.AlertWeather, models.SubtypeHighTemperature, models.SeverityHigh,
				fmt.Sprintf("High temperature alert: %.0f°C.", *reading.TempC))
		case below(reading.TempC, LowTempC):
			emit(models.AlertWeather, models.SubtypeLowTemperature, models.SeverityMedium,
				fmt.Sprintf("Low temperature alert: %.0f°C.", *reading.TempC))
		}
	}

	return out
}

// evaluateVegetation fires at most one disease_risk alert: a low NDVI takes
// precedence over a relative drop.
func (e *Evaluator) evaluateVegetation(reading models.Reading, prev *models.Reading, emit func(models.AlertKind, string, models.Severity, string)) {
	if reading.NDVIMean == nil {
		return
	}
	latest := *reading.NDVIMean

	if latest < LowNDVI {
		emit(models.AlertDiseaseRisk, "", models.SeverityHigh,
			fmt.Sprintf("Vegetation health is low (NDVI %.2f). Inspect the field for disease or stress.", latest))
		return
	}

	if prev == nil || prev.NDVIMean == nil || *prev.NDVIMean <= 0 {
		return
	}
	previous := *prev.NDVIMean
	if SignificantNDVIDrop(previous, latest) {
		emit(models.AlertDiseaseRisk, "", models.SeverityMedium,
			fmt.Sprintf("Vegetation index dropped %.0f%% since the previous reading.", NDVIDrop(previous, latest)*100))
	}
}

// SignificantNDVIDrop reports whether latest is at least NDVIDropRatio below a
// positive previous value.
func SignificantNDVIDrop(previous, latest float64) bool {
	return previous > 0 && NDVIDrop(previous, latest)+ndviDropEpsilon >= NDVIDropRatio
}

// NDVIDrop is the relative decrease from previous to latest; negative when
// vegetation improved.
func NDVIDrop(previous, latest float64) float64 {
	if previous == 0 {
		return 0
	}
	return (previous - latest) / previous
}

func below(v *float64, limit float64) bool {
	return v != nil && *v < limit
}

func above(v *float64, limit float64) bool {
	return v != nil && *v > limit
}

package models

import "time"

// AlertKind is the category of a triggered alert.
type AlertKind string

const (
	AlertFrost            AlertKind = "frost"
	AlertHeavyRain        AlertKind = "heavy_rain"
	AlertHighWinds        AlertKind = "high_winds"
	AlertLowSoilMoisture  AlertKind = "low_soil_moisture"
	AlertDiseaseRisk      AlertKind = "disease_risk"
	AlertPestRisk         AlertKind = "pest_risk"
	AlertIrrigationNeeded AlertKind = "irrigation_needed"
	AlertWeather          AlertKind = "weather_alert"
)

// Severity ranks how urgent an alert is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Weather alert subtypes carried on weather_alert records.
const (
	SubtypeHighTemperature = "high_temperature"
	SubtypeLowTemperature  = "low_temperature"
)

// Alert is a persisted rule outcome for a farm.
type Alert struct {
	ID        string    `json:"id" bson:"_id"`
	FarmID    string    `json:"farm_id" bson:"farm_id"`
	Type      AlertKind `json:"type" bson:"type"`
	Subtype   string    `json:"subtype,omitempty" bson:"subtype,omitempty"`
	Severity  Severity  `json:"severity" bson:"severity"`
	Message   string    `json:"message" bson:"message"`
	Timestamp time.Time `json:"timestamp" bson:"created_at"`
	Read      bool      `json:"read" bson:"read"`
}

// NotificationFrequency is how often the user wants to be notified.
type NotificationFrequency string

const (
	FrequencyRealtime NotificationFrequency = "realtime"
	FrequencyDaily    NotificationFrequency = "daily"
	FrequencyWeekly   NotificationFrequency = "weekly"
)

// Valid reports whether f is a known frequency.
func (f NotificationFrequency) Valid() bool {
	switch f {
	case FrequencyRealtime, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

// AlertPreferences gates which alert kinds a user receives.
type AlertPreferences struct {
	UserID                string                `json:"user_id" bson:"_id"`
	Frost                 bool                  `json:"frost" bson:"frost"`
	HeavyRain             bool                  `json:"heavy_rain" bson:"heavy_rain"`
	HighWinds             bool                  `json:"high_winds" bson:"high_winds"`
	LowSoilMoisture       bool                  `json:"low_soil_moisture" bson:"low_soil_moisture"`
	DiseaseRisk           bool                  `json:"disease_risk" bson:"disease_risk"`
	PestRisk              bool                  `json:"pest_risk" bson:"pest_risk"`
	IrrigationNeeded      bool                  `json:"irrigation_needed" bson:"irrigation_needed"`
	WeatherAlert          bool                  `json:"weather_alert" bson:"weather_alert"`
	NotificationFrequency NotificationFrequency `json:"notification_frequency" bson:"notification_frequency"`
	QuietHoursStart       string                `json:"quiet_hours_start,omitempty" bson:"quiet_hours_start,omitempty"`
	QuietHoursEnd         string                `json:"quiet_hours_end,omitempty" bson:"quiet_hours_end,omitempty"`
	UpdatedAt             time.Time             `json:"updated_at" bson:"updated_at"`
}

// DefaultAlertPreferences enables every alert kind with realtime delivery.
func DefaultAlertPreferences(userID string) AlertPreferences {
	return AlertPreferences{
		UserID:                userID,
		Frost:                 true,
		HeavyRain:             true,
		HighWinds:             true,
		LowSoilMoisture:       true,
		DiseaseRisk:           true,
		PestRisk:              true,
		IrrigationNeeded:      true,
		WeatherAlert:          true,
		NotificationFrequency: FrequencyRealtime,
	}
}

// Enabled reports the flag for a single alert kind.
func (p AlertPreferences) Enabled(kind AlertKind) bool {
	switch kind {
	case AlertFrost:
		return p.Frost
	case AlertHeavyRain:
		return p.HeavyRain
	case AlertHighWinds:
		return p.HighWinds
	case AlertLowSoilMoisture:
		return p.LowSoilMoisture
	case AlertDiseaseRisk:
		return p.DiseaseRisk
	case AlertPestRisk:
		return p.PestRisk
	case AlertIrrigationNeeded:
		return p.IrrigationNeeded
	case AlertWeather:
		return p.WeatherAlert
	}
	return false
}

// PreferencesPatch is a partial preferences update; nil fields are left untouched.
type PreferencesPatch struct {
	Frost                 *bool                  `json:"frost"`
	HeavyRain             *bool                  `json:"heavy_rain"`
	HighWinds             *bool                  `json:"high_winds"`
	LowSoilMoisture       *bool                  `json:"low_soil_moisture"`
	DiseaseRisk           *bool                  `json:"disease_risk"`
	PestRisk              *bool                  `json:"pest_risk"`
	IrrigationNeeded      *bool                  `json:"irrigation_needed"`
	WeatherAlert          *bool                  `json:"weather_alert"`
	NotificationFrequency *NotificationFrequency `json:"notification_frequency"`
	QuietHoursStart       *string                `json:"quiet_hours_start"`
	QuietHoursEnd         *string                `json:"quiet_hours_end"`
}

// Apply merges the patch into p.
func (patch PreferencesPatch) Apply(p AlertPreferences) AlertPreferences {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.Frost, patch.Frost)
	set(&p.HeavyRain, patch.HeavyRain)
	set(&p.HighWinds, patch.HighWinds)
	set(&p.LowSoilMoisture, patch.LowSoilMoisture)
	set(&p.DiseaseRisk, patch.DiseaseRisk)
	set(&p.PestRisk, patch.PestRisk)
	set(&p.IrrigationNeeded, patch.IrrigationNeeded)
	set(&p.WeatherAlert, patch.WeatherAlert)
	if patch.NotificationFrequency != nil {
		p.NotificationFrequency = *patch.NotificationFrequency
	}
	if patch.QuietHoursStart != nil {
		p.QuietHoursStart = *patch.QuietHoursStart
	}
	if patch.QuietHoursEnd != nil {
		p.QuietHoursEnd = *patch.QuietHoursEnd
	}
	return p
}

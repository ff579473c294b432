package models

import "time"

// Reading is one observed or forecast set of quantities for a farm. Nil
// fields were not part of the observation.
type Reading struct {
	FarmID     string    `json:"farm_id"`
	ObservedAt time.Time `json:"observed_at"`

	ForecastTempC *float64 `json:"forecast_temp_c,omitempty"`
	TempC         *float64 `json:"temp_c,omitempty"`
	HumidityPct   *float64 `json:"humidity_pct,omitempty"`
	RainMM3h      *float64 `json:"rain_mm_3h,omitempty"`
	WindSpeedMS   *float64 `json:"wind_speed_ms,omitempty"`
	SoilMoisture  *float64 `json:"soil_moisture,omitempty"`
	NDVIMean      *float64 `json:"ndvi_mean,omitempty"`
}

// Float returns a pointer to v, for building readings.
func Float(v float64) *float64 {
	return &v
}

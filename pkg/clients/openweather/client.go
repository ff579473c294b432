// Package openweather is a client for the OpenWeather current and forecast APIs.
package openweather

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/farmwatch/internal/config"
	"github.com/mamadbah2/farmwatch/internal/domain/models"
)

var (
	// ErrMalformedResponse is returned when a response lacks the expected measurements.
	ErrMalformedResponse = errors.New("malformed weather response")
	// ErrUnavailable wraps transport failures reaching the API.
	ErrUnavailable = errors.New("openweather api unavailable")
)

// APIError is an error answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("openweather api error: status=%d, message=%s", e.StatusCode, e.Message)
}

// Client exposes the weather lookups used by the monitors.
type Client interface {
	Current(ctx context.Context, lat, lon float64) (*Observation, error)
	Forecast(ctx context.Context, lat, lon float64) ([]Observation, error)
}

// Main holds the thermodynamic measurements of an observation.
type Main struct {
	Temp     float64 `json:"temp"`
	Humidity float64 `json:"humidity"`
	Pressure float64 `json:"pressure"`
}

// Observation is a current or forecast weather slot in metric units.
type Observation struct {
	DT   int64 `json:"dt"`
	Main *Main `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Rain *struct {
		OneHour   float64 `json:"1h"`
		ThreeHour float64 `json:"3h"`
	} `json:"rain,omitempty"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
}

// Time returns the slot time.
func (o Observation) Time() time.Time {
	return time.Unix(o.DT, 0).UTC()
}

// RainMM3h returns the three hour precipitation, zero when absent.
func (o Observation) RainMM3h() float64 {
	if o.Rain == nil {
		return 0
	}
	return o.Rain.ThreeHour
}

func (o Observation) validate() error {
	if o.Main == nil {
		return fmt.Errorf("%w: missing main block", ErrMalformedResponse)
	}
	return nil
}

// CurrentReading converts current conditions into a reading for farmID.
func (o Observation) CurrentReading(farmID string) models.Reading {
	r := models.Reading{
		FarmID:      farmID,
		ObservedAt:  o.Time(),
		WindSpeedMS: models.Float(o.Wind.Speed),
	}
	if o.Main != nil {
		r.TempC = models.Float(o.Main.Temp)
		r.HumidityPct = models.Float(o.Main.Humidity)
	}
	if o.Rain != nil {
		r.RainMM3h = models.Float(o.Rain.ThreeHour)
	}
	return r
}

// ForecastReading converts a forecast slot into a reading for farmID.
func (o Observation) ForecastReading(farmID string) models.Reading {
	r := models.Reading{
		FarmID:      farmID,
		ObservedAt:  o.Time(),
		RainMM3h:    models.Float(o.RainMM3h()),
		WindSpeedMS: models.Float(o.Wind.Speed),
	}
	if o.Main != nil {
		r.ForecastTempC = models.Float(o.Main.Temp)
	}
	return r
}

type forecastResponse struct {
	List []Observation `json:"list"`
}

type apiError struct {
	Cod     any    `json:"cod"`
	Message string `json:"message"`
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
}

// NewClient builds an OpenWeather client requesting metric units.
func NewClient(cfg config.WeatherConfig) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetQueryParams(map[string]string{
			"appid": cfg.APIKey,
			"units": "metric",
		}).
		SetTimeout(15 * time.Second)

	return &APIClient{httpClient: restyClient}
}

// Current returns the current conditions at a coordinate.
func (c *APIClient) Current(ctx context.Context, lat, lon float64) (*Observation, error) {
	result := new(Observation)
	if err := c.get(ctx, "/weather", lat, lon, result); err != nil {
		return nil, fmt.Errorf("fetch current weather: %w", err)
	}
	if err := result.validate(); err != nil {
		return nil, fmt.Errorf("fetch current weather: %w", err)
	}
	return result, nil
}

// Forecast returns the 5 day / 3 hour forecast slots at a coordinate.
func (c *APIClient) Forecast(ctx context.Context, lat, lon float64) ([]Observation, error) {
	result := new(forecastResponse)
	if err := c.get(ctx, "/forecast", lat, lon, result); err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	for i, slot := range result.List {
		if err := slot.validate(); err != nil {
			return nil, fmt.Errorf("fetch forecast: slot %d: %w", i, err)
		}
	}
	return result.List, nil
}

func (c *APIClient) get(ctx context.Context, path string, lat, lon float64, result any) error {
	apiErr := new(apiError)
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"lat": strconv.FormatFloat(lat, 'f', 6, 64),
			"lon": strconv.FormatFloat(lon, 'f', 6, 64),
		}).
		SetResult(result).
		SetError(apiErr).
		Get(path)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return &APIError{StatusCode: resp.StatusCode(), Message: apiErr.Message}
	}
	return nil
}

// Package agro is a client for the AgroMonitoring satellite and agronomy API.
package agro

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	geojson "github.com/paulmach/go.geojson"

	"github.com/mamadbah2/farmwatch/internal/config"
)

var (
	// ErrRateLimited is returned when the API answers with HTTP 429.
	ErrRateLimited = errors.New("rate limit exceeded, try again later")
	// ErrNoImagery is returned when no satellite scene covers the requested period.
	ErrNoImagery = errors.New("no satellite images available for this period")
	// ErrUnsupportedImageType is returned for an unknown imagery type.
	ErrUnsupportedImageType = errors.New("unsupported image type")
	// ErrUnavailable wraps transport failures reaching the API.
	ErrUnavailable = errors.New("agro api unavailable")
)

// ImageType selects the rendering of a satellite scene.
type ImageType string

const (
	ImageNDVI      ImageType = "ndvi"
	ImageEVI       ImageType = "evi"
	ImageTrueColor ImageType = "true"
	ImageFalse     ImageType = "false"
)

const (
	imageWidth  = 1024
	imageHeight = 768
	// ndviPalette is the green palette used for NDVI renderings.
	ndviPalette = 1
	// imageLookback is how far back scenes are searched by default.
	imageLookback = 30 * 24 * time.Hour
)

// Client exposes the AgroMonitoring operations used by the monitors.
type Client interface {
	CreatePolygon(ctx context.Context, name string, feature *geojson.Feature) (*Polygon, error)
	GetSoil(ctx context.Context, polygonID string) (*Soil, error)
	GetNDVIHistory(ctx context.Context, polygonID string, start, end time.Time) ([]NDVIEntry, error)
	GetWeather(ctx context.Context, polygonID string) (*Weather, error)
	GetUVIndex(ctx context.Context, polygonID string) (float64, error)
	SatelliteImageURL(ctx context.Context, polygonID string, imageType ImageType) (string, error)
}

// APIError is a non-429 error answer from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("agro api error: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("agro api error: status=%d, message=%s", e.StatusCode, e.Message)
}

// Polygon is the registered remote polygon.
type Polygon struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Center    [2]float64 `json:"center"`
	Area      float64    `json:"area"`
	UserID    string     `json:"user_id"`
	CreatedAt int64      `json:"created_at"`
}

// Soil is the latest soil observation for a polygon. Temperatures are Kelvin.
type Soil struct {
	DT       int64   `json:"dt"`
	T10      float64 `json:"t10"`
	Moisture float64 `json:"moisture"`
	T0       float64 `json:"t0"`
}

// ObservedAt returns the observation time.
func (s Soil) ObservedAt() time.Time {
	return time.Unix(s.DT, 0).UTC()
}

// NDVIEntry is one scene of the vegetation index history.
type NDVIEntry struct {
	DT     int64   `json:"dt"`
	Source string  `json:"source"`
	Zoom   int     `json:"zoom"`
	DC     float64 `json:"dc"`
	CL     float64 `json:"cl"`
	Data   struct {
		Std    float64 `json:"std"`
		P75    float64 `json:"p75"`
		Min    float64 `json:"min"`
		Max    float64 `json:"max"`
		Median float64 `json:"median"`
		P25    float64 `json:"p25"`
		Num    int     `json:"num"`
		Mean   float64 `json:"mean"`
	} `json:"data"`
}

// AcquiredAt returns the scene acquisition time.
func (e NDVIEntry) AcquiredAt() time.Time {
	return time.Unix(e.DT, 0).UTC()
}

// Weather is the current weather over a polygon. Temperature is Kelvin.
type Weather struct {
	DT   int64 `json:"dt"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
		Pressure float64 `json:"pressure"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
		Deg   float64 `json:"deg"`
	} `json:"wind"`
	Weather []struct {
		ID          int    `json:"id"`
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
}

type uviResponse struct {
	DT  int64   `json:"dt"`
	UVI float64 `json:"uvi"`
}

type imageScene struct {
	DT    int64             `json:"dt"`
	Type  string            `json:"type"`
	Image map[string]string `json:"image"`
}

type apiError struct {
	Cod     any    `json:"cod"`
	Message string `json:"message"`
}

type createPolygonRequest struct {
	Name    string           `json:"name"`
	GeoJSON *geojson.Feature `json:"geo_json"`
}

// APIClient is a resty-backed implementation of Client.
type APIClient struct {
	httpClient *resty.Client
	now        func() time.Time
}

// NewClient builds an AgroMonitoring client authenticated with the appid query parameter.
func NewClient(cfg config.AgroConfig) *APIClient {
	restyClient := resty.New()
	restyClient.
		SetBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")).
		SetQueryParam("appid", cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(20 * time.Second)

	return &APIClient{
		httpClient: restyClient,
		now:        time.Now,
	}
}

// CreatePolygon registers a boundary feature remotely and returns its polygon.
func (c *APIClient) CreatePolygon(ctx context.Context, name string, feature *geojson.Feature) (*Polygon, error) {
	result := new(Polygon)
	resp, err := c.request(ctx).
		SetQueryParam("duplicated", "true").
		SetBody(createPolygonRequest{Name: name, GeoJSON: feature}).
		SetResult(result).
		Post("/polygons")
	if err := check(resp, err, "create polygon"); err != nil {
		return nil, err
	}
	if result.ID == "" {
		return nil, errors.New("create polygon: response carries no polygon id")
	}
	return result, nil
}

// GetSoil returns the latest soil observation of a polygon.
func (c *APIClient) GetSoil(ctx context.Context, polygonID string) (*Soil, error) {
	result := new(Soil)
	resp, err := c.request(ctx).
		SetQueryParam("polyid", polygonID).
		SetResult(result).
		Get("/soil")
	if err := check(resp, err, "fetch soil data"); err != nil {
		return nil, err
	}
	return result, nil
}

// GetNDVIHistory returns the vegetation index scenes acquired between start and end.
func (c *APIClient) GetNDVIHistory(ctx context.Context, polygonID string, start, end time.Time) ([]NDVIEntry, error) {
	var result []NDVIEntry
	resp, err := c.request(ctx).
		SetQueryParams(map[string]string{
			"polyid": polygonID,
			"start":  strconv.FormatInt(start.Unix(), 10),
			"end":    strconv.FormatInt(end.Unix(), 10),
		}).
		SetResult(&result).
		Get("/ndvi/history")
	if err := check(resp, err, "fetch ndvi history"); err != nil {
		return nil, err
	}
	return result, nil
}

// GetWeather returns the current weather over a polygon.
func (c *APIClient) GetWeather(ctx context.Context, polygonID string) (*Weather, error) {
	result := new(Weather)
	resp, err := c.request(ctx).
		SetQueryParam("polyid", polygonID).
		SetResult(result).
		Get("/weather")
	if err := check(resp, err, "fetch weather data"); err != nil {
		return nil, err
	}
	return result, nil
}

// GetUVIndex returns the current UV index over a polygon.
func (c *APIClient) GetUVIndex(ctx context.Context, polygonID string) (float64, error) {
	result := new(uviResponse)
	resp, err := c.request(ctx).
		SetPathParam("polygonID", polygonID).
		SetResult(result).
		Get("/uvi/{polygonID}")
	if err := check(resp, err, "fetch uv index"); err != nil {
		return 0, err
	}
	return result.UVI, nil
}

// SatelliteImageURL searches scenes of the last 30 days and returns the
// rendering URL of the most recent one, sized for display.
func (c *APIClient) SatelliteImageURL(ctx context.Context, polygonID string, imageType ImageType) (string, error) {
	key, ok := imageKey(imageType)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImageType, imageType)
	}

	end := c.now()
	start := end.Add(-imageLookback)

	var scenes []imageScene
	resp, err := c.request(ctx).
		SetQueryParams(map[string]string{
			"polyid": polygonID,
			"start":  strconv.FormatInt(start.Unix(), 10),
			"end":    strconv.FormatInt(end.Unix(), 10),
		}).
		SetResult(&scenes).
		Get("/image/search")
	if err := check(resp, err, "search satellite images"); err != nil {
		return "", err
	}
	if len(scenes) == 0 {
		return "", ErrNoImagery
	}

	url := scenes[0].Image[key]
	if url == "" {
		return "", fmt.Errorf("no %s image available", imageType)
	}

	if imageType == ImageNDVI {
		return fmt.Sprintf("%s&paletteid=%d&width=%d&height=%d", url, ndviPalette, imageWidth, imageHeight), nil
	}
	return fmt.Sprintf("%s&width=%d&height=%d", url, imageWidth, imageHeight), nil
}

// ParseImageType validates a user supplied imagery type. Empty means NDVI.
func ParseImageType(s string) (ImageType, error) {
	t := ImageType(strings.ToLower(strings.TrimSpace(s)))
	if t == "" {
		return ImageNDVI, nil
	}
	if _, ok := imageKey(t); !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedImageType, s)
	}
	return t, nil
}

func imageKey(t ImageType) (string, bool) {
	switch t {
	case ImageNDVI:
		return "ndvi", true
	case ImageEVI:
		return "evi", true
	case ImageTrueColor:
		return "truecolor", true
	case ImageFalse:
		return "falsecolor", true
	}
	return "", false
}

func (c *APIClient) request(ctx context.Context) *resty.Request {
	return c.httpClient.R().
		SetContext(ctx).
		SetError(new(apiError))
}

func check(resp *resty.Response, err error, action string) error {
	if err != nil {
		return fmt.Errorf("%s: %w: %w", action, ErrUnavailable, err)
	}
	if resp.StatusCode() == http.StatusTooManyRequests {
		return fmt.Errorf("%s: %w", action, ErrRateLimited)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		apiErr := &APIError{StatusCode: resp.StatusCode()}
		if body, ok := resp.Error().(*apiError); ok && body != nil {
			apiErr.Message = body.Message
		}
		return fmt.Errorf("%s: %w", action, apiErr)
	}
	return nil
}

// KelvinToCelsius converts the API's Kelvin temperatures.
func KelvinToCelsius(k float64) float64 {
	return k - 273.15
}

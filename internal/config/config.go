package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server     ServerConfig
	MongoDB    MongoDBConfig
	Agro       AgroConfig
	Weather    WeatherConfig
	WhatsApp   WhatsAppConfig
	Sheets     SheetsConfig
	Monitoring MonitoringConfig
	Boundary   BoundaryConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port     string
	LogLevel string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI    string
	DBName string
}

// AgroConfig configures the satellite/agronomy API.
type AgroConfig struct {
	APIKey  string
	BaseURL string
}

// WeatherConfig configures the weather API.
type WeatherConfig struct {
	APIKey  string
	BaseURL string
}

// WhatsAppConfig contains credentials for the Meta WhatsApp Cloud API used to
// deliver alert notifications. Notifications are disabled when AccessToken is empty.
type WhatsAppConfig struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string
	APIVersion    string
}

// Enabled reports whether notification delivery is configured.
func (c WhatsAppConfig) Enabled() bool {
	return c.AccessToken != "" && c.PhoneNumberID != ""
}

// SheetsConfig configures the optional alert ledger spreadsheet.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
}

// Enabled reports whether the alert ledger is configured.
func (c SheetsConfig) Enabled() bool {
	return c.CredentialsPath != "" && c.SpreadsheetID != ""
}

// MonitoringConfig holds the refresh interval of each monitor kind.
type MonitoringConfig struct {
	WeatherInterval    time.Duration
	SoilInterval       time.Duration
	NDVIInterval       time.Duration
	VegetationInterval time.Duration
	JobTimeout         time.Duration
}

// BoundaryConfig holds field boundary limits.
type BoundaryConfig struct {
	MaxAreaAcres float64
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are fine when configuration comes from the environment.
		_ = godotenv.Load()
	}

	var err error
	cfg := &Config{
		Server: ServerConfig{
			Port:     getenvWithDefault("APP_PORT", "8080"),
			LogLevel: getenvWithDefault("LOG_LEVEL", "info"),
		},
		MongoDB: MongoDBConfig{
			URI:    os.Getenv("MONGODB_URI"),
			DBName: getenvWithDefault("MONGODB_DB_NAME", "farmwatch"),
		},
		Agro: AgroConfig{
			APIKey:  os.Getenv("AGRO_API_KEY"),
			BaseURL: getenvWithDefault("AGRO_BASE_URL", "http://api.agromonitoring.com/agro/1.0"),
		},
		Weather: WeatherConfig{
			APIKey:  os.Getenv("OPENWEATHER_API_KEY"),
			BaseURL: getenvWithDefault("OPENWEATHER_BASE_URL", "https://api.openweathermap.org/data/2.5"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:   os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID: os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:       getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:    getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_ALERTS_ID"),
		},
	}

	if cfg.Monitoring, err = loadMonitoring(); err != nil {
		return nil, err
	}
	if cfg.Boundary.MaxAreaAcres, err = getenvFloat("BOUNDARY_MAX_ACRES", 7413); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadMonitoring() (MonitoringConfig, error) {
	var (
		m   MonitoringConfig
		err error
	)
	if m.WeatherInterval, err = getenvDuration("MONITOR_WEATHER_INTERVAL", 30*time.Minute); err != nil {
		return m, err
	}
	if m.SoilInterval, err = getenvDuration("MONITOR_SOIL_INTERVAL", 6*time.Hour); err != nil {
		return m, err
	}
	if m.NDVIInterval, err = getenvDuration("MONITOR_NDVI_INTERVAL", 24*time.Hour); err != nil {
		return m, err
	}
	if m.VegetationInterval, err = getenvDuration("MONITOR_VEGETATION_INTERVAL", 12*time.Hour); err != nil {
		return m, err
	}
	if m.JobTimeout, err = getenvDuration("MONITOR_JOB_TIMEOUT", 2*time.Minute); err != nil {
		return m, err
	}
	return m, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch {
	case c.MongoDB.URI == "":
		return errors.New("MONGODB_URI must be provided")
	case c.MongoDB.DBName == "":
		return errors.New("MONGODB_DB_NAME must not be empty")
	}

	switch {
	case c.Agro.APIKey == "":
		return errors.New("AGRO_API_KEY must be provided")
	case c.Agro.BaseURL == "":
		return errors.New("AGRO_BASE_URL must not be empty")
	}

	switch {
	case c.Weather.APIKey == "":
		return errors.New("OPENWEATHER_API_KEY must be provided")
	case c.Weather.BaseURL == "":
		return errors.New("OPENWEATHER_BASE_URL must not be empty")
	}

	if c.WhatsApp.AccessToken != "" && c.WhatsApp.PhoneNumberID == "" {
		return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided when WHATSAPP_TOKEN is set")
	}

	if c.Sheets.SpreadsheetID != "" && c.Sheets.CredentialsPath == "" {
		return errors.New("GOOGLE_SHEETS_CREDENTIALS_PATH must be provided when GOOGLE_SHEET_ALERTS_ID is set")
	}

	intervals := map[string]time.Duration{
		"MONITOR_WEATHER_INTERVAL":    c.Monitoring.WeatherInterval,
		"MONITOR_SOIL_INTERVAL":       c.Monitoring.SoilInterval,
		"MONITOR_NDVI_INTERVAL":       c.Monitoring.NDVIInterval,
		"MONITOR_VEGETATION_INTERVAL": c.Monitoring.VegetationInterval,
		"MONITOR_JOB_TIMEOUT":         c.Monitoring.JobTimeout,
	}
	for key, d := range intervals {
		if d < time.Second {
			return fmt.Errorf("%s must be at least 1s", key)
		}
	}

	if acres := c.Boundary.MaxAreaAcres; math.IsNaN(acres) || math.IsInf(acres, 0) || acres <= 0 {
		return errors.New("BOUNDARY_MAX_ACRES must be a positive finite number")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getenvFloat(key string, fallback float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

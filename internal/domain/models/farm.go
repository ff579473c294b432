package models

import (
	"errors"
	"time"
)

// ErrNotFound is returned by repositories when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// CropType enumerates the crops a farm can be registered with.
type CropType string

const (
	CropRice      CropType = "rice"
	CropWheat     CropType = "wheat"
	CropCorn      CropType = "corn"
	CropSoybean   CropType = "soybean"
	CropCotton    CropType = "cotton"
	CropSugarcane CropType = "sugarcane"
	CropOther     CropType = "other"
)

// Valid reports whether c is one of the known crop types.
func (c CropType) Valid() bool {
	switch c {
	case CropRice, CropWheat, CropCorn, CropSoybean, CropCotton, CropSugarcane, CropOther:
		return true
	}
	return false
}

// SoilType enumerates soil classes.
type SoilType string

const (
	SoilClay   SoilType = "clay"
	SoilSandy  SoilType = "sandy"
	SoilLoamy  SoilType = "loamy"
	SoilSilty  SoilType = "silty"
	SoilPeaty  SoilType = "peaty"
	SoilChalky SoilType = "chalky"
	SoilOther  SoilType = "other"
)

// Valid reports whether s is one of the known soil types.
func (s SoilType) Valid() bool {
	switch s {
	case SoilClay, SoilSandy, SoilLoamy, SoilSilty, SoilPeaty, SoilChalky, SoilOther:
		return true
	}
	return false
}

// IrrigationMethod enumerates irrigation setups.
type IrrigationMethod string

const (
	IrrigationDrip        IrrigationMethod = "drip"
	IrrigationSprinkler   IrrigationMethod = "sprinkler"
	IrrigationFlood       IrrigationMethod = "flood"
	IrrigationCenterPivot IrrigationMethod = "center_pivot"
	IrrigationOther       IrrigationMethod = "other"
)

// Valid reports whether m is one of the known irrigation methods.
func (m IrrigationMethod) Valid() bool {
	switch m {
	case IrrigationDrip, IrrigationSprinkler, IrrigationFlood, IrrigationCenterPivot, IrrigationOther:
		return true
	}
	return false
}

// FarmStatus is the coarse health label shown on the farm list.
type FarmStatus string

const (
	FarmHealthy        FarmStatus = "Healthy"
	FarmNeedsAttention FarmStatus = "Needs Attention"
	FarmCritical       FarmStatus = "Critical"
)

// BoundaryPoint is a single tapped map coordinate.
type BoundaryPoint struct {
	Latitude  float64 `json:"latitude" bson:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude"`
}

// FieldBoundary is a closed ring of points; the first and last point are equal.
type FieldBoundary struct {
	Points    []BoundaryPoint `json:"points" bson:"points"`
	AreaAcres float64         `json:"area_acres" bson:"area_acres"`
}

// GeoPolygon is the stored GeoJSON polygon geometry of a farm.
type GeoPolygon struct {
	Type        string        `json:"type" bson:"type"`
	Coordinates [][][]float64 `json:"coordinates" bson:"coordinates"`
}

// NDVIPoint is one entry of a farm's vegetation index history.
type NDVIPoint struct {
	Date  time.Time `json:"date" bson:"date"`
	Value float64   `json:"value" bson:"value"`
}

// SatelliteData holds the latest satellite-derived values of a farm.
type SatelliteData struct {
	NDVIHistory         []NDVIPoint `json:"ndvi_history" bson:"ndvi_history"`
	LastNDVIImage       string      `json:"last_ndvi_image,omitempty" bson:"last_ndvi_image,omitempty"`
	LastSatelliteUpdate *time.Time  `json:"last_satellite_update,omitempty" bson:"last_satellite_update,omitempty"`
}

// WeatherSnapshot is the last weather observation stored on the farm.
type WeatherSnapshot struct {
	Temperature float64   `json:"temperature" bson:"temperature"`
	Humidity    float64   `json:"humidity" bson:"humidity"`
	Rainfall    float64   `json:"rainfall" bson:"rainfall"`
	WindSpeed   float64   `json:"wind_speed" bson:"wind_speed"`
	LastUpdate  time.Time `json:"last_update" bson:"last_update"`
}

// SoilSnapshot is the last soil observation stored on the farm.
type SoilSnapshot struct {
	Moisture    float64   `json:"moisture" bson:"moisture"`
	Temperature float64   `json:"temperature" bson:"temperature"`
	LastUpdate  time.Time `json:"last_update" bson:"last_update"`
}

// Farm is a registered field with its boundary and monitoring snapshots.
type Farm struct {
	ID               string           `json:"id" bson:"_id"`
	UserID           string           `json:"user_id" bson:"user_id"`
	Name             string           `json:"name" bson:"name"`
	CropType         CropType         `json:"crop_type" bson:"crop_type"`
	SoilType         SoilType         `json:"soil_type,omitempty" bson:"soil_type,omitempty"`
	IrrigationMethod IrrigationMethod `json:"irrigation_method,omitempty" bson:"irrigation_method,omitempty"`
	PlantingDate     time.Time        `json:"planting_date" bson:"planting_date"`
	AreaAcres        float64          `json:"area" bson:"area"`
	Boundary         GeoPolygon       `json:"boundary" bson:"boundary"`
	AgroPolygonID    string           `json:"agro_polygon_id" bson:"agro_polygon_id"`
	Status           FarmStatus       `json:"status" bson:"status"`
	SatelliteData    *SatelliteData   `json:"satellite_data,omitempty" bson:"satellite_data,omitempty"`
	WeatherData      *WeatherSnapshot `json:"weather_data,omitempty" bson:"weather_data,omitempty"`
	SoilData         *SoilSnapshot    `json:"soil_data,omitempty" bson:"soil_data,omitempty"`
	CreatedAt        time.Time        `json:"created_at" bson:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at" bson:"updated_at"`
}

// Centroid returns the vertex average of the farm boundary ring, ignoring the
// closing point. It is good enough to place weather lookups.
func (f Farm) Centroid() (lat, lon float64, ok bool) {
	if len(f.Boundary.Coordinates) == 0 {
		return 0, 0, false
	}
	ring := f.Boundary.Coordinates[0]
	if n := len(ring); n > 1 && len(ring[0]) >= 2 && len(ring[n-1]) >= 2 &&
		ring[0][0] == ring[n-1][0] && ring[0][1] == ring[n-1][1] {
		ring = ring[:n-1]
	}
	if len(ring) == 0 {
		return 0, 0, false
	}
	for _, pos := range ring {
		if len(pos) < 2 {
			return 0, 0, false
		}
		lon += pos[0]
		lat += pos[1]
	}
	n := float64(len(ring))
	return lat / n, lon / n, true
}

// Profile is the account owning farms and receiving notifications.
type Profile struct {
	ID                   string    `json:"id" bson:"_id"`
	FullName             string    `json:"full_name" bson:"full_name"`
	Phone                string    `json:"phone,omitempty" bson:"phone,omitempty"`
	NotificationsEnabled bool      `json:"notifications_enabled" bson:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at" bson:"created_at"`
}

// CanReceiveNotifications reports whether the user granted notifications and
// has a destination for them.
func (p Profile) CanReceiveNotifications() bool {
	return p.NotificationsEnabled && p.Phone != ""
}

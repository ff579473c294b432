// Package geometry turns user-drawn map points into closed field boundaries
// and estimates their area.
//
// Drawing models the tap-by-tap session of a map client and is meant for
// embedding callers; the HTTP API receives the complete point list in one
// request and uses ClosePolygon directly.
package geometry

import (
	"errors"
	"fmt"
	"math"

	geojson "github.com/paulmach/go.geojson"

	"github.com/mamadbah2/farmwatch/internal/domain/models"
)

const (
	// AcresPerSquareDegree converts shoelace output in square degrees to acres.
	// Flat-earth approximation, only meaningful for small fields.
	AcresPerSquareDegree = 247.105

	// MaxAreaAcres mirrors the satellite API polygon cap (about 3,000 ha).
	MaxAreaAcres = 7413.0

	minPolygonPoints = 3
)

var (
	// ErrTooFewPoints means the ring has fewer than three distinct points.
	ErrTooFewPoints = errors.New("a field boundary needs at least 3 distinct points")
	// ErrAreaTooLarge means the boundary exceeds the accepted area ceiling.
	ErrAreaTooLarge = errors.New("field boundary area exceeds the maximum allowed")
)

// ValidationError is a user-correctable boundary problem.
type ValidationError struct {
	Err    error
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Detail)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Drawing accumulates tapped points for one drawing session.
type Drawing struct {
	points []models.BoundaryPoint
}

// AddPoint appends a point to the working sequence.
func (d *Drawing) AddPoint(p models.BoundaryPoint) {
	d.points = append(d.points, p)
}

// Points returns a copy of the working sequence.
func (d *Drawing) Points() []models.BoundaryPoint {
	out := make([]models.BoundaryPoint, len(d.points))
	copy(out, d.points)
	return out
}

// Len is the number of points tapped so far.
func (d *Drawing) Len() int { return len(d.points) }

// CanClose reports whether enough points exist to close the shape.
func (d *Drawing) CanClose() bool { return len(d.points) >= minPolygonPoints }

// LiveArea is the area of the open shape drawn so far.
func (d *Drawing) LiveArea() float64 { return ComputeArea(d.points) }

// Cancel discards the session's points.
func (d *Drawing) Cancel() { d.points = nil }

// Close finalizes the drawing into a field boundary.
func (d *Drawing) Close() (models.FieldBoundary, error) {
	return ClosePolygon(d.points)
}

// ComputeArea applies the planar shoelace formula over (longitude, latitude)
// pairs and converts the result to acres. Returns 0 below three points.
func ComputeArea(points []models.BoundaryPoint) float64 {
	n := len(points)
	if n < minPolygonPoints {
		return 0
	}

	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += points[i].Longitude*points[j].Latitude - points[j].Longitude*points[i].Latitude
	}

	return math.Abs(sum) / 2 * AcresPerSquareDegree
}

// ClosePolygon closes the ring by repeating the first point. An already
// closed ring is returned unchanged.
func ClosePolygon(points []models.BoundaryPoint) (models.FieldBoundary, error) {
	if distinct := countDistinct(points); distinct < minPolygonPoints {
		return models.FieldBoundary{}, &ValidationError{
			Err:    ErrTooFewPoints,
			Detail: fmt.Sprintf("got %d", distinct),
		}
	}

	ring := make([]models.BoundaryPoint, len(points), len(points)+1)
	copy(ring, points)
	if !isClosed(ring) {
		ring = append(ring, ring[0])
	}

	return models.FieldBoundary{Points: ring, AreaAcres: ComputeArea(ring)}, nil
}

// ValidateArea rejects boundaries larger than maxAcres. A non-positive or
// non-finite maxAcres falls back to MaxAreaAcres. A non-finite area is
// always rejected.
func ValidateArea(boundary models.FieldBoundary, maxAcres float64) error {
	if math.IsNaN(maxAcres) || math.IsInf(maxAcres, 0) || maxAcres <= 0 {
		maxAcres = MaxAreaAcres
	}
	if area := boundary.AreaAcres; math.IsNaN(area) || math.IsInf(area, 0) || area > maxAcres {
		return &ValidationError{
			Err:    ErrAreaTooLarge,
			Detail: fmt.Sprintf("%.1f acres, limit %.0f acres", boundary.AreaAcres, maxAcres),
		}
	}
	return nil
}

// Coordinates renders the ring as GeoJSON polygon coordinates ([lon, lat]).
func Coordinates(boundary models.FieldBoundary) [][][]float64 {
	ring := make([][]float64, 0, len(boundary.Points))
	for _, p := range boundary.Points {
		ring = append(ring, []float64{p.Longitude, p.Latitude})
	}
	return [][][]float64{ring}
}

// Polygon is the stored geometry for the boundary.
func Polygon(boundary models.FieldBoundary) models.GeoPolygon {
	return models.GeoPolygon{
		Type:        string(geojson.GeometryPolygon),
		Coordinates: Coordinates(boundary),
	}
}

// Feature wraps the boundary as a GeoJSON feature.
func Feature(name string, boundary models.FieldBoundary) *geojson.Feature {
	feature := geojson.NewFeature(geojson.NewPolygonGeometry(Coordinates(boundary)))
	if name != "" {
		feature.SetProperty("name", name)
	}
	feature.SetProperty("area", boundary.AreaAcres)
	return feature
}

func isClosed(points []models.BoundaryPoint) bool {
	return len(points) > 1 && points[0] == points[len(points)-1]
}

func countDistinct(points []models.BoundaryPoint) int {
	seen := make(map[models.BoundaryPoint]struct{}, len(points))
	for _, p := range points {
		seen[p] = struct{}{}
	}
	return len(seen)
}

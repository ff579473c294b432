package farms

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	geojson "github.com/paulmach/go.geojson"

	"github.com/mamadbah2/farmwatch/internal/domain/models"
	"github.com/mamadbah2/farmwatch/internal/geometry"
	"github.com/mamadbah2/farmwatch/pkg/clients/agro"
)

type fakeStore struct {
	farms     map[string]models.Farm
	insertErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{farms: make(map[string]models.Farm)}
}

func (f *fakeStore) InsertFarm(_ context.Context, farm models.Farm) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.farms[farm.ID] = farm
	return nil
}

func (f *fakeStore) GetFarm(_ context.Context, id string) (models.Farm, error) {
	farm, ok := f.farms[id]
	if !ok {
		return models.Farm{}, models.ErrNotFound
	}
	return farm, nil
}

func (f *fakeStore) ListFarms(_ context.Context, userID string) ([]models.Farm, error) {
	var out []models.Farm
	for _, farm := range f.farms {
		if farm.UserID == userID {
			out = append(out, farm)
		}
	}
	return out, nil
}

func (f *fakeStore) DeleteFarm(_ context.Context, id string) error {
	if _, ok := f.farms[id]; !ok {
		return models.ErrNotFound
	}
	delete(f.farms, id)
	return nil
}

type fakePolygons struct {
	calls   int
	feature *geojson.Feature
	err     error
}

func (f *fakePolygons) CreatePolygon(_ context.Context, _ string, feature *geojson.Feature) (*agro.Polygon, error) {
	f.calls++
	f.feature = feature
	if f.err != nil {
		return nil, f.err
	}
	return &agro.Polygon{ID: "poly-1"}, nil
}

type fakeMonitors struct {
	registered   []string
	unregistered []string
}

func (f *fakeMonitors) Register(farm models.Farm) { f.registered = append(f.registered, farm.ID) }
func (f *fakeMonitors) Unregister(id string) { f.unregistered = append(f.unregistered, id) }

// square returns the open corner points of a square with the given side in degrees.
func square(side float64) []models.BoundaryPoint {
	return []models.BoundaryPoint{
		{Latitude: 0, Longitude: 0},
		{Latitude: 0, Longitude: side},
		{Latitude: side, Longitude: side},
		{Latitude: side, Longitude: 0},
	}
}

func newTestService(store *fakeStore, polygons *fakePolygons, monitors *fakeMonitors) *Service {
	svc := NewService(store, polygons, monitors, geometry.MaxAreaAcres, nil)
	svc.now = func() time.Time { return time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC) }
	svc.newID = func() string { return "farm-1" }
	return svc
}

func validRequest() RegisterRequest {
	return RegisterRequest{
		Name:     "North field",
		CropType: models.CropCorn,
		SoilType: models.SoilLoamy,
		Points:   square(0.01),
	}
}

func TestRegister(t *testing.T) {
	store, polygons, monitors := newFakeStore(), &fakePolygons{}, &fakeMonitors{}
	svc := newTestService(store, polygons, monitors)

	farm, err := svc.Register(context.Background(), "user-1", validRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if farm.AgroPolygonID != "poly-1" || farm.UserID != "user-1" || farm.Status != models.FarmHealthy {
		t.Errorf("unexpected farm %+v", farm)
	}
	if farm.AreaAcres < 0.0247 || farm.AreaAcres > 0.0248 {
		t.Errorf("expected about 0.0247 acres, got %v", farm.AreaAcres)
	}
	ring := farm.Boundary.Coordinates[0]
	if len(ring) != 5 || ring[0][0] != ring[4][0] || ring[0][1] != ring[4][1] {
		t.Errorf("expected a closed 5 position ring, got %v", ring)
	}
	if _, ok := store.farms["farm-1"]; !ok {
		t.Error("expected the farm to be stored")
	}
	if len(monitors.registered) != 1 || monitors.registered[0] != "farm-1" {
		t.Errorf("expected monitors to be registered, got %v", monitors.registered)
	}
	if polygons.feature == nil || polygons.feature.Geometry.Type != geojson.GeometryPolygon {
		t.Errorf("expected a polygon feature, got %+v", polygons.feature)
	}
}

func TestRegister_ValidationMakesNoRemoteCall(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *RegisterRequest)
		wantErr error
	}{
		{name: "area over ceiling", mutate: func(r *RegisterRequest) { r.Points = square(6) }, wantErr: geometry.ErrAreaTooLarge},
		{name: "too few points", mutate: func(r *RegisterRequest) { r.Points = r.Points[:2] }, wantErr: geometry.ErrTooFewPoints},
		{name: "missing crop", mutate: func(r *RegisterRequest) { r.CropType = "" }, wantErr: ErrCropTypeRequired},
		{name: "missing name", mutate: func(r *RegisterRequest) { r.Name = "  " }, wantErr: ErrNameRequired},
		{name: "unknown crop", mutate: func(r *RegisterRequest) { r.CropType = "tulip" }, wantErr: ErrInvalidField},
		{name: "unknown soil", mutate: func(r *RegisterRequest) { r.SoilType = "lava" }, wantErr: ErrInvalidField},
		{name: "unknown irrigation", mutate: func(r *RegisterRequest) { r.IrrigationMethod = "bucket" }, wantErr: ErrInvalidField},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, polygons, monitors := newFakeStore(), &fakePolygons{}, &fakeMonitors{}
			svc := newTestService(store, polygons, monitors)

			req := validRequest()
			tt.mutate(&req)

			_, err := svc.Register(context.Background(), "user-1", req)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if polygons.calls != 0 {
				t.Errorf("expected no remote polygon call, got %d", polygons.calls)
			}
			if len(store.farms) != 0 || len(monitors.registered) != 0 {
				t.Error("expected nothing stored or scheduled")
			}
		})
	}
}

func TestRegister_RemoteFailure(t *testing.T) {
	store, monitors := newFakeStore(), &fakeMonitors{}
	polygons := &fakePolygons{err: agro.ErrRateLimited}
	svc := newTestService(store, polygons, monitors)

	_, err := svc.Register(context.Background(), "user-1", validRequest())
	if !errors.Is(err, agro.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if len(store.farms) != 0 {
		t.Error("expected no farm stored")
	}
}

func TestRegister_InsertFailureAfterPolygon(t *testing.T) {
	store, polygons, monitors := newFakeStore(), &fakePolygons{}, &fakeMonitors{}
	store.insertErr = errors.New("write concern")
	svc := newTestService(store, polygons, monitors)

	_, err := svc.Register(context.Background(), "user-1", validRequest())
	if !errors.Is(err, store.insertErr) {
		t.Fatalf("expected insert error, got %v", err)
	}
	if polygons.calls != 1 {
		t.Errorf("expected the polygon to have been created once, got %d", polygons.calls)
	}
	if len(monitors.registered) != 0 {
		t.Error("expected no monitors for an unsaved farm")
	}
}

func TestPreviewBoundary(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakePolygons{}, nil)

	small, err := svc.PreviewBoundary(square(0.01))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if small.OverCeiling || len(small.Boundary.Points) != 5 {
		t.Errorf("unexpected preview %+v", small)
	}

	large, err := svc.PreviewBoundary(square(6))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !large.OverCeiling {
		t.Errorf("expected %v acres to be over the ceiling", large.Boundary.AreaAcres)
	}

	if _, err := svc.PreviewBoundary(square(1)[:2]); !errors.Is(err, geometry.ErrTooFewPoints) {
		t.Errorf("expected ErrTooFewPoints, got %v", err)
	}
}

func TestNewService_NonFiniteCeilingFallsBack(t *testing.T) {
	for _, ceiling := range []float64{math.NaN(), math.Inf(1), -5} {
		svc := NewService(newFakeStore(), &fakePolygons{}, nil, ceiling, nil)
		preview, err := svc.PreviewBoundary(square(6))
		if err != nil {
			t.Fatalf("ceiling %v: unexpected error: %v", ceiling, err)
		}
		if preview.MaxAcres != geometry.MaxAreaAcres || !preview.OverCeiling {
			t.Errorf("ceiling %v: expected the default ceiling to apply, got %+v", ceiling, preview)
		}
	}
}

func TestGetAndDelete_Ownership(t *testing.T) {
	store, monitors := newFakeStore(), &fakeMonitors{}
	store.farms["farm-1"] = models.Farm{ID: "farm-1", UserID: "owner"}
	svc := newTestService(store, &fakePolygons{}, monitors)

	if _, err := svc.Get(context.Background(), "intruder", "farm-1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound for another user's farm, got %v", err)
	}
	if err := svc.Delete(context.Background(), "intruder", "farm-1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting another user's farm, got %v", err)
	}
	if _, ok := store.farms["farm-1"]; !ok {
		t.Fatal("farm must survive a foreign delete")
	}

	if err := svc.Delete(context.Background(), "owner", "farm-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(monitors.unregistered) != 1 || monitors.unregistered[0] != "farm-1" {
		t.Errorf("expected monitors to be unregistered, got %v", monitors.unregistered)
	}
}

func TestList_Empty(t *testing.T) {
	svc := newTestService(newFakeStore(), &fakePolygons{}, nil)

	farms, err := svc.List(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if farms == nil || len(farms) != 0 {
		t.Errorf("expected an empty non-nil slice, got %#v", farms)
	}
}

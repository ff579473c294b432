package monitoring

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/mamadbah2/farmwatch/internal/domain/models"
	"github.com/mamadbah2/farmwatch/pkg/clients/agro"
	"github.com/mamadbah2/farmwatch/pkg/clients/openweather"
)

var testNow = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

type fakeFarms struct {
	farm    models.Farm
	weather *models.WeatherSnapshot
	soil    *models.SoilSnapshot
	ndvi    []models.NDVIPoint
	image   string
	status  models.FarmStatus
}

func (f *fakeFarms) GetFarm(_ context.Context, id string) (models.Farm, error) {
	if id != f.farm.ID {
		return models.Farm{}, models.ErrNotFound
	}
	return f.farm, nil
}

func (f *fakeFarms) UpdateWeatherData(_ context.Context, _ string, s models.WeatherSnapshot) error {
	f.weather = &s
	return nil
}

func (f *fakeFarms) UpdateSoilData(_ context.Context, _ string, s models.SoilSnapshot) error {
	f.soil = &s
	return nil
}

func (f *fakeFarms) AppendNDVI(_ context.Context, _ string, p models.NDVIPoint, imageURL string, _ time.Time) error {
	f.ndvi = append(f.ndvi, p)
	f.image = imageURL
	return nil
}

func (f *fakeFarms) UpdateFarmStatus(_ context.Context, _ string, status models.FarmStatus, _ time.Time) error {
	f.status = status
	return nil
}

type fakeProfiles struct{}

func (fakeProfiles) GetProfile(_ context.Context, id string) (models.Profile, error) {
	return models.Profile{ID: id, Phone: "+1", NotificationsEnabled: true}, nil
}

type dispatchCall struct {
	reading   models.Reading
	prev      *models.Reading
	recipient models.Profile
}

type fakeDispatcher struct {
	calls []dispatchCall
	err   error
}

func (f *fakeDispatcher) EvaluateAndDispatch(_ context.Context, farm models.Farm, reading models.Reading, prev *models.Reading, recipient models.Profile) ([]models.Alert, error) {
	f.calls = append(f.calls, dispatchCall{reading: reading, prev: prev, recipient: recipient})
	if f.err != nil {
		return nil, f.err
	}
	return []models.Alert{{ID: "a", FarmID: farm.ID}}, nil
}

type fakeSatellite struct {
	soil     *agro.Soil
	ndvi     []agro.NDVIEntry
	weather  *agro.Weather
	imageErr error
	soilErr  error
	start    time.Time
}

func (f *fakeSatellite) GetSoil(context.Context, string) (*agro.Soil, error) {
	return f.soil, f.soilErr
}

func (f *fakeSatellite) GetNDVIHistory(_ context.Context, _ string, start, _ time.Time) ([]agro.NDVIEntry, error) {
	f.start = start
	out := make([]agro.NDVIEntry, len(f.ndvi))
	copy(out, f.ndvi)
	return out, nil
}

func (f *fakeSatellite) GetWeather(context.Context, string) (*agro.Weather, error) {
	return f.weather, nil
}

func (f *fakeSatellite) GetUVIndex(context.Context, string) (float64, error) {
	return 7.5, nil
}

func (f *fakeSatellite) SatelliteImageURL(context.Context, string, agro.ImageType) (string, error) {
	if f.imageErr != nil {
		return "", f.imageErr
	}
	return "http://img/ndvi", nil
}

type fakeWeather struct {
	current  openweather.Observation
	forecast []openweather.Observation
	lat, lon float64
}

func (f *fakeWeather) Current(_ context.Context, lat, lon float64) (*openweather.Observation, error) {
	f.lat, f.lon = lat, lon
	return &f.current, nil
}

func (f *fakeWeather) Forecast(context.Context, float64, float64) ([]openweather.Observation, error) {
	return f.forecast, nil
}

func observation(t *testing.T, raw string) openweather.Observation {
	t.Helper()
	var o openweather.Observation
	if err := json.Unmarshal([]byte(raw), &o); err != nil {
		t.Fatalf("decode observation: %v", err)
	}
	return o
}

func ndviEntry(at time.Time, mean float64) agro.NDVIEntry {
	e := agro.NDVIEntry{DT: at.Unix()}
	e.Data.Mean = mean
	return e
}

func testFarm() models.Farm {
	return models.Farm{
		ID:            "farm-1",
		UserID:        "user-1",
		AgroPolygonID: "poly-1",
		Status:        models.FarmHealthy,
		Boundary: models.GeoPolygon{
			Type:        "Polygon",
			Coordinates: [][][]float64{{{10, 20}, {12, 20}, {12, 22}, {10, 22}, {10, 20}}},
		},
	}
}

func newTestService(farms *fakeFarms, dispatcher *fakeDispatcher, sat *fakeSatellite, weather *fakeWeather) *Service {
	svc := NewService(farms, fakeProfiles{}, dispatcher, sat, weather, nil)
	svc.now = func() time.Time { return testNow }
	return svc
}

func TestCheckWeather(t *testing.T) {
	farms := &fakeFarms{farm: testFarm()}
	dispatcher := &fakeDispatcher{}
	weather := &fakeWeather{
		current: observation(t, `{"dt":1719835200,"main":{"temp":22,"humidity":85},"wind":{"speed":5}}`),
		forecast: []openweather.Observation{
			observation(t, `{"dt":1719846000,"main":{"temp":6},"wind":{"speed":8},"rain":{"3h":2}}`),
			observation(t, `{"dt":1719856800,"main":{"temp":1.5},"wind":{"speed":22},"rain":{"3h":12}}`),
			// beyond 24h, must be ignored
			observation(t, `{"dt":1720000000,"main":{"temp":-8},"wind":{"speed":40}}`),
		},
	}
	svc := newTestService(farms, dispatcher, &fakeSatellite{}, weather)

	if _, err := svc.CheckWeather(context.Background(), "farm-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if weather.lat != 21 || weather.lon != 11 {
		t.Errorf("expected the centroid (21, 11), got (%v, %v)", weather.lat, weather.lon)
	}
	if farms.weather == nil || farms.weather.Temperature != 22 || farms.weather.Humidity != 85 {
		t.Errorf("unexpected weather snapshot %+v", farms.weather)
	}

	if len(dispatcher.calls) != 1 {
		t.Fatalf("expected one evaluation pass, got %d", len(dispatcher.calls))
	}
	call := dispatcher.calls[0]
	r := call.reading
	if *r.ForecastTempC != 1.5 || *r.RainMM3h != 12 || *r.WindSpeedMS != 22 {
		t.Errorf("expected worst forecast within 24h, got temp=%v rain=%v wind=%v", *r.ForecastTempC, *r.RainMM3h, *r.WindSpeedMS)
	}
	if *r.TempC != 22 || *r.HumidityPct != 85 {
		t.Errorf("expected current ambient values, got %+v", r)
	}
	if !call.recipient.CanReceiveNotifications() {
		t.Error("expected the owner profile as recipient")
	}
}

func TestCheckWeather_NoBoundary(t *testing.T) {
	farm := testFarm()
	farm.Boundary = models.GeoPolygon{}
	svc := newTestService(&fakeFarms{farm: farm}, &fakeDispatcher{}, &fakeSatellite{}, &fakeWeather{})

	if _, err := svc.CheckWeather(context.Background(), "farm-1"); !errors.Is(err, ErrNoBoundary) {
		t.Fatalf("expected ErrNoBoundary, got %v", err)
	}
}

func TestCheckSoil(t *testing.T) {
	farms := &fakeFarms{farm: testFarm()}
	dispatcher := &fakeDispatcher{}
	sat := &fakeSatellite{soil: &agro.Soil{DT: testNow.Unix(), Moisture: 0.18, T0: 293.15, T10: 290.15}}
	svc := newTestService(farms, dispatcher, sat, &fakeWeather{})

	if _, err := svc.CheckSoil(context.Background(), "farm-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if farms.soil == nil || farms.soil.Moisture != 0.18 {
		t.Errorf("unexpected soil snapshot %+v", farms.soil)
	}
	if got := *dispatcher.calls[0].reading.SoilMoisture; got != 0.18 {
		t.Errorf("expected soil moisture reading, got %v", got)
	}

	report, err := svc.SoilReport(context.Background(), farms.farm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if report.Level != MoistureVeryDry || report.Recommendation != IrrigateNow {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestCheckSoil_UpstreamError(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	sat := &fakeSatellite{soilErr: agro.ErrRateLimited}
	svc := newTestService(&fakeFarms{farm: testFarm()}, dispatcher, sat, &fakeWeather{})

	if _, err := svc.CheckSoil(context.Background(), "farm-1"); !errors.Is(err, agro.ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if len(dispatcher.calls) != 0 {
		t.Error("expected no evaluation without data")
	}
}

func TestCheckVegetation(t *testing.T) {
	tests := []struct {
		name       string
		ndvi       []agro.NDVIEntry
		wantCalls  int
		wantPrev   bool
		wantStatus models.FarmStatus
	}{
		{name: "no scenes", wantCalls: 0, wantStatus: ""},
		{
			name:       "single scene",
			ndvi:       []agro.NDVIEntry{ndviEntry(testNow.Add(-24*time.Hour), 0.6)},
			wantCalls:  1,
			wantStatus: "",
		},
		{
			name: "drop within window",
			ndvi: []agro.NDVIEntry{
				ndviEntry(testNow.Add(-24*time.Hour), 0.47),
				ndviEntry(testNow.Add(-6*24*time.Hour), 0.6),
			},
			wantCalls:  1,
			wantPrev:   true,
			wantStatus: models.FarmNeedsAttention,
		},
		{
			name:       "low vegetation",
			ndvi:       []agro.NDVIEntry{ndviEntry(testNow.Add(-24*time.Hour), 0.2)},
			wantCalls:  1,
			wantStatus: models.FarmCritical,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			farms := &fakeFarms{farm: testFarm()}
			dispatcher := &fakeDispatcher{}
			sat := &fakeSatellite{ndvi: tt.ndvi}
			svc := newTestService(farms, dispatcher, sat, &fakeWeather{})

			if _, err := svc.CheckVegetation(context.Background(), "farm-1"); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !sat.start.Equal(testNow.AddDate(0, 0, -7)) {
				t.Errorf("expected a 7 day window, got start %s", sat.start)
			}
			if len(dispatcher.calls) != tt.wantCalls {
				t.Fatalf("expected %d passes, got %d", tt.wantCalls, len(dispatcher.calls))
			}
			if tt.wantCalls > 0 {
				call := dispatcher.calls[0]
				if (call.prev != nil) != tt.wantPrev {
					t.Fatalf("prev present = %v, want %v", call.prev != nil, tt.wantPrev)
				}
				if tt.wantPrev && (*call.prev.NDVIMean != 0.6 || *call.reading.NDVIMean != 0.47) {
					t.Errorf("expected oldest as prev and newest as latest, got %v -> %v", *call.prev.NDVIMean, *call.reading.NDVIMean)
				}
			}
			if farms.status != tt.wantStatus {
				t.Errorf("expected status %q, got %q", tt.wantStatus, farms.status)
			}
		})
	}
}

func TestRefreshNDVI(t *testing.T) {
	farm := testFarm()
	farm.SatelliteData = &models.SatelliteData{
		NDVIHistory: []models.NDVIPoint{{Date: testNow.Add(-48 * time.Hour), Value: 0.5}},
	}

	t.Run("appends newer scene", func(t *testing.T) {
		farms := &fakeFarms{farm: farm}
		sat := &fakeSatellite{ndvi: []agro.NDVIEntry{
			ndviEntry(testNow.Add(-24*time.Hour), 0.55),
			ndviEntry(testNow.Add(-72*time.Hour), 0.5),
		}}
		svc := newTestService(farms, &fakeDispatcher{}, sat, &fakeWeather{})

		if err := svc.RefreshNDVI(context.Background(), "farm-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(farms.ndvi) != 1 || farms.ndvi[0].Value != 0.55 {
			t.Fatalf("expected the newest scene appended, got %+v", farms.ndvi)
		}
		if farms.image != "http://img/ndvi" {
			t.Errorf("expected image url, got %q", farms.image)
		}
	})

	t.Run("skips stale scene", func(t *testing.T) {
		farms := &fakeFarms{farm: farm}
		sat := &fakeSatellite{ndvi: []agro.NDVIEntry{ndviEntry(testNow.Add(-72*time.Hour), 0.5)}}
		svc := newTestService(farms, &fakeDispatcher{}, sat, &fakeWeather{})

		if err := svc.RefreshNDVI(context.Background(), "farm-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(farms.ndvi) != 0 {
			t.Errorf("expected nothing appended, got %+v", farms.ndvi)
		}
	})

	t.Run("image failure still appends", func(t *testing.T) {
		farms := &fakeFarms{farm: testFarm()}
		sat := &fakeSatellite{ndvi: []agro.NDVIEntry{ndviEntry(testNow, 0.61)}, imageErr: agro.ErrNoImagery}
		svc := newTestService(farms, &fakeDispatcher{}, sat, &fakeWeather{})

		if err := svc.RefreshNDVI(context.Background(), "farm-1"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(farms.ndvi) != 1 || farms.image != "" {
			t.Errorf("unexpected result ndvi=%+v image=%q", farms.ndvi, farms.image)
		}
	})
}

func TestRefresh_FirstErrorKeepsOtherChecks(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	sat := &fakeSatellite{soilErr: errors.New("upstream down"), ndvi: []agro.NDVIEntry{ndviEntry(testNow, 0.6)}}
	weather := &fakeWeather{current: observation(t, `{"dt":1719835200,"main":{"temp":22,"humidity":40},"wind":{"speed":5}}`)}
	farms := &fakeFarms{farm: testFarm()}
	svc := newTestService(farms, dispatcher, sat, weather)

	produced, err := svc.Refresh(context.Background(), "farm-1")
	if !errors.Is(err, sat.soilErr) {
		t.Fatalf("expected the soil error, got %v", err)
	}
	if len(dispatcher.calls) != 2 || len(produced) != 2 {
		t.Errorf("expected weather and vegetation passes to run, got %d calls / %d alerts", len(dispatcher.calls), len(produced))
	}
	if len(farms.ndvi) != 1 {
		t.Errorf("expected the ndvi history to be refreshed, got %+v", farms.ndvi)
	}
}

func TestConditions(t *testing.T) {
	w := &agro.Weather{DT: testNow.Unix()}
	w.Main.Temp = 300.15
	w.Main.Humidity = 60
	svc := newTestService(&fakeFarms{farm: testFarm()}, &fakeDispatcher{}, &fakeSatellite{weather: w}, &fakeWeather{})

	c, err := svc.Conditions(context.Background(), testFarm())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.TempC < 26.99 || c.TempC > 27.01 || c.UVIndex != 7.5 || c.HumidityPct != 60 {
		t.Errorf("unexpected conditions %+v", c)
	}
}

func TestEvaluate_StampsFarm(t *testing.T) {
	dispatcher := &fakeDispatcher{}
	svc := newTestService(&fakeFarms{farm: testFarm()}, dispatcher, &fakeSatellite{}, &fakeWeather{})

	if _, err := svc.Evaluate(context.Background(), testFarm(), models.Reading{FarmID: "other", TempC: models.Float(40)}, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r := dispatcher.calls[0].reading
	if r.FarmID != "farm-1" || !r.ObservedAt.Equal(testNow) {
		t.Errorf("expected farm id and observation time to be stamped, got %+v", r)
	}
}

func TestMoistureLevel(t *testing.T) {
	tests := []struct {
		moisture float64
		level    MoistureLevel
		rec      IrrigationRecommendation
	}{
		{moisture: 0.1, level: MoistureVeryDry, rec: IrrigateNow},
		{moisture: 0.2, level: MoistureDry, rec: IrrigateSoon},
		{moisture: 0.39, level: MoistureDry, rec: IrrigateSoon},
		{moisture: 0.4, level: MoistureAdequate, rec: NoIrrigation},
		{moisture: 0.7, level: MoistureMoist, rec: NoIrrigation},
	}

	for _, tt := range tests {
		if got := LevelFor(tt.moisture); got != tt.level {
			t.Errorf("LevelFor(%v) = %s, want %s", tt.moisture, got, tt.level)
		}
		if got := RecommendationFor(tt.level); got != tt.rec {
			t.Errorf("RecommendationFor(%s) = %s, want %s", tt.level, got, tt.rec)
		}
	}
}

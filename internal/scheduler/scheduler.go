package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmwatch/internal/config"
	"github.com/mamadbah2/farmwatch/internal/domain/models"
)

// DataKind identifies one periodic check of a farm.
type DataKind string

const (
	KindWeather    DataKind = "weather"
	KindSoil       DataKind = "soil"
	KindNDVI       DataKind = "ndvi"
	KindVegetation DataKind = "vegetation"
)

// Monitor runs the checks of a farm.
type Monitor interface {
	CheckWeather(ctx context.Context, farmID string) ([]models.Alert, error)
	CheckSoil(ctx context.Context, farmID string) ([]models.Alert, error)
	RefreshNDVI(ctx context.Context, farmID string) error
	CheckVegetation(ctx context.Context, farmID string) ([]models.Alert, error)
}

// FarmLister lists every farm so monitors can be restored at startup.
type FarmLister interface {
	ListAllFarms(ctx context.Context) ([]models.Farm, error)
}

type jobKey struct {
	farmID string
	kind   DataKind
}

// Scheduler keeps one cron entry per farm and data kind. Every entry runs once
// when scheduled and then on its interval. Registering a key again replaces
// its entry, and overlapping runs of an entry are skipped.
type Scheduler struct {
	cron    *cron.Cron
	monitor Monitor
	farms   FarmLister
	cfg     config.MonitoringConfig
	logger  *zap.Logger

	mu      sync.Mutex
	entries map[jobKey]cron.EntryID

	// pending tracks the first runs started outside cron.
	pending sync.WaitGroup
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(cfg config.MonitoringConfig, monitor Monitor, farms FarmLister, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}

	c := cron.New(cron.WithLogger(cronLogger{logger.Sugar()}))

	return &Scheduler{
		cron:    c,
		monitor: monitor,
		farms:   farms,
		cfg:     cfg,
		logger:  logger,
		entries: make(map[jobKey]cron.EntryID),
	}
}

// Start registers the monitors of every stored farm and starts the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("starting scheduler")

	if s.farms != nil {
		farms, err := s.farms.ListAllFarms(ctx)
		if err != nil {
			return fmt.Errorf("restore monitors: %w", err)
		}
		for _, farm := range farms {
			s.Register(farm)
		}
		s.logger.Info("monitors restored", zap.Int("farms", len(farms)))
	}

	s.cron.Start()
	return nil
}

// Stop stops the scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	s.logger.Info("stopping scheduler")
	<-s.cron.Stop().Done()
	s.pending.Wait()
}

// Register schedules every check of a farm at its configured interval.
func (s *Scheduler) Register(farm models.Farm) {
	s.Schedule(farm.ID, KindWeather, s.cfg.WeatherInterval)
	s.Schedule(farm.ID, KindSoil, s.cfg.SoilInterval)
	s.Schedule(farm.ID, KindNDVI, s.cfg.NDVIInterval)
	s.Schedule(farm.ID, KindVegetation, s.cfg.VegetationInterval)
}

// Schedule registers one check, replacing an existing entry for the same farm
// and kind, and starts its first run in the background.
func (s *Scheduler) Schedule(farmID string, kind DataKind, interval time.Duration) {
	key := jobKey{farmID: farmID, kind: kind}
	job := cron.NewChain(cron.SkipIfStillRunning(cronLogger{s.logger.Sugar()})).
		Then(cron.FuncJob(func() { s.run(farmID, kind) }))

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[key]; ok {
		s.cron.Remove(id)
	}
	s.entries[key] = s.cron.Schedule(cron.Every(interval), job)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		job.Run()
	}()

	s.logger.Debug("monitor scheduled",
		zap.String("farm_id", farmID),
		zap.String("kind", string(kind)),
		zap.Duration("interval", interval))
}

// Unregister removes every check of a farm.
func (s *Scheduler) Unregister(farmID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, id := range s.entries {
		if key.farmID != farmID {
			continue
		}
		s.cron.Remove(id)
		delete(s.entries, key)
	}
	s.logger.Info("monitors unregistered", zap.String("farm_id", farmID))
}

// Scheduled reports whether a check is registered.
func (s *Scheduler) Scheduled(farmID string, kind DataKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[jobKey{farmID: farmID, kind: kind}]
	return ok
}

func (s *Scheduler) run(farmID string, kind DataKind) {
	timeout := s.cfg.JobTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	var (
		produced []models.Alert
		err      error
	)
	switch kind {
	case KindWeather:
		produced, err = s.monitor.CheckWeather(ctx, farmID)
	case KindSoil:
		produced, err = s.monitor.CheckSoil(ctx, farmID)
	case KindNDVI:
		err = s.monitor.RefreshNDVI(ctx, farmID)
	case KindVegetation:
		produced, err = s.monitor.CheckVegetation(ctx, farmID)
	default:
		err = fmt.Errorf("unknown monitor kind %q", kind)
	}

	fields := []zap.Field{
		zap.String("farm_id", farmID),
		zap.String("kind", string(kind)),
		zap.Duration("duration", time.Since(start)),
	}
	switch {
	case errors.Is(err, models.ErrNotFound):
		s.logger.Warn("farm no longer exists, dropping its monitors", fields...)
		s.Unregister(farmID)
	case err != nil:
		s.logger.Error("monitor run failed", append(fields, zap.Error(err))...)
	default:
		s.logger.Info("monitor run completed", append(fields, zap.Int("alerts", len(produced)))...)
	}
}

// cronLogger adapts zap to the cron.Logger interface.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

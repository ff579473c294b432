package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/mamadbah2/farmwatch/internal/config"
	"github.com/mamadbah2/farmwatch/internal/domain/models"
)

const (
	profilesCollection    = "profiles"
	farmsCollection       = "farms"
	alertsCollection      = "alerts"
	preferencesCollection = "alert_preferences"
)

// MongoDBRepository stores profiles, farms, alerts and alert preferences.
type MongoDBRepository struct {
	client *mongo.Client
	db     *mongo.Database
	logger *zap.Logger
}

// NewMongoDBRepository connects to MongoDB and verifies the connection.
func NewMongoDBRepository(ctx context.Context, cfg config.MongoDBConfig, logger *zap.Logger) (*MongoDBRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	clientOptions := options.Client().ApplyURI(cfg.URI)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client: client,
		db:     client.Database(cfg.DBName),
		logger: logger,
	}, nil
}

// EnsureIndexes creates the indexes backing the newest-first listings.
func (r *MongoDBRepository) EnsureIndexes(ctx context.Context) error {
	for coll, idx := range indexModels() {
		if _, err := r.db.Collection(coll).Indexes().CreateMany(ctx, idx); err != nil {
			return fmt.Errorf("create %s indexes: %w", coll, err)
		}
	}
	return nil
}

func indexModels() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		farmsCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		alertsCollection: {
			{Keys: bson.D{{Key: "farm_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}

// Profiles

// InsertProfile stores a new profile.
func (r *MongoDBRepository) InsertProfile(ctx context.Context, profile models.Profile) error {
	if _, err := r.db.Collection(profilesCollection).InsertOne(ctx, profile); err != nil {
		return fmt.Errorf("failed to insert profile: %w", err)
	}
	return nil
}

// GetProfile loads a profile by id.
func (r *MongoDBRepository) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	var profile models.Profile
	if err := r.findOne(ctx, profilesCollection, byID(userID), &profile); err != nil {
		return models.Profile{}, fmt.Errorf("get profile %s: %w", userID, err)
	}
	return profile, nil
}

// Farms

// InsertFarm stores a new farm.
func (r *MongoDBRepository) InsertFarm(ctx context.Context, farm models.Farm) error {
	if _, err := r.db.Collection(farmsCollection).InsertOne(ctx, farm); err != nil {
		return fmt.Errorf("failed to insert farm: %w", err)
	}
	return nil
}

// GetFarm loads a farm by id.
func (r *MongoDBRepository) GetFarm(ctx context.Context, farmID string) (models.Farm, error) {
	var farm models.Farm
	if err := r.findOne(ctx, farmsCollection, byID(farmID), &farm); err != nil {
		return models.Farm{}, fmt.Errorf("get farm %s: %w", farmID, err)
	}
	return farm, nil
}

// ListFarms returns the user's farms, newest first.
func (r *MongoDBRepository) ListFarms(ctx context.Context, userID string) ([]models.Farm, error) {
	var farms []models.Farm
	if err := r.find(ctx, farmsCollection, bson.M{"user_id": userID}, &farms); err != nil {
		return nil, fmt.Errorf("list farms: %w", err)
	}
	return farms, nil
}

// ListAllFarms returns every farm, used to restore monitors at startup.
func (r *MongoDBRepository) ListAllFarms(ctx context.Context) ([]models.Farm, error) {
	var farms []models.Farm
	if err := r.find(ctx, farmsCollection, bson.M{}, &farms); err != nil {
		return nil, fmt.Errorf("list all farms: %w", err)
	}
	return farms, nil
}

// DeleteFarm removes a farm and its alerts.
func (r *MongoDBRepository) DeleteFarm(ctx context.Context, farmID string) error {
	res, err := r.db.Collection(farmsCollection).DeleteOne(ctx, byID(farmID))
	if err != nil {
		return fmt.Errorf("failed to delete farm: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}

	if _, err := r.db.Collection(alertsCollection).DeleteMany(ctx, bson.M{"farm_id": farmID}); err != nil {
		r.logger.Warn("failed to delete farm alerts", zap.Error(err), zap.String("farm_id", farmID))
	}
	return nil
}

// UpdateWeatherData replaces the farm's weather snapshot.
func (r *MongoDBRepository) UpdateWeatherData(ctx context.Context, farmID string, snapshot models.WeatherSnapshot) error {
	return r.updateFarm(ctx, farmID, setFields(bson.M{"weather_data": snapshot}, snapshot.LastUpdate))
}

// UpdateSoilData replaces the farm's soil snapshot.
func (r *MongoDBRepository) UpdateSoilData(ctx context.Context, farmID string, snapshot models.SoilSnapshot) error {
	return r.updateFarm(ctx, farmID, setFields(bson.M{"soil_data": snapshot}, snapshot.LastUpdate))
}

// AppendNDVI appends one NDVI point and records the latest image URL.
func (r *MongoDBRepository) AppendNDVI(ctx context.Context, farmID string, point models.NDVIPoint, imageURL string, at time.Time) error {
	return r.updateFarm(ctx, farmID, ndviUpdate(point, imageURL, at))
}

// UpdateFarmStatus sets the farm's health label.
func (r *MongoDBRepository) UpdateFarmStatus(ctx context.Context, farmID string, status models.FarmStatus, at time.Time) error {
	return r.updateFarm(ctx, farmID, setFields(bson.M{"status": status}, at))
}

func (r *MongoDBRepository) updateFarm(ctx context.Context, farmID string, update bson.M) error {
	res, err := r.db.Collection(farmsCollection).UpdateOne(ctx, byID(farmID), update)
	if err != nil {
		return fmt.Errorf("failed to update farm %s: %w", farmID, err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Alerts

// InsertAlert stores a new alert.
func (r *MongoDBRepository) InsertAlert(ctx context.Context, alert models.Alert) error {
	if _, err := r.db.Collection(alertsCollection).InsertOne(ctx, alert); err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// GetAlert loads an alert by id.
func (r *MongoDBRepository) GetAlert(ctx context.Context, alertID string) (models.Alert, error) {
	var alert models.Alert
	if err := r.findOne(ctx, alertsCollection, byID(alertID), &alert); err != nil {
		return models.Alert{}, fmt.Errorf("get alert %s: %w", alertID, err)
	}
	return alert, nil
}

// ListAlerts returns a farm's alerts, newest first.
func (r *MongoDBRepository) ListAlerts(ctx context.Context, farmID string) ([]models.Alert, error) {
	var alerts []models.Alert
	if err := r.find(ctx, alertsCollection, bson.M{"farm_id": farmID}, &alerts); err != nil {
		return nil, err
	}
	return alerts, nil
}

// MarkAlertRead flags an alert as read.
func (r *MongoDBRepository) MarkAlertRead(ctx context.Context, alertID string) error {
	res, err := r.db.Collection(alertsCollection).UpdateOne(ctx, byID(alertID), bson.M{"$set": bson.M{"read": true}})
	if err != nil {
		return fmt.Errorf("failed to mark alert read: %w", err)
	}
	if res.MatchedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteAlert removes an alert.
func (r *MongoDBRepository) DeleteAlert(ctx context.Context, alertID string) error {
	res, err := r.db.Collection(alertsCollection).DeleteOne(ctx, byID(alertID))
	if err != nil {
		return fmt.Errorf("failed to delete alert: %w", err)
	}
	if res.DeletedCount == 0 {
		return models.ErrNotFound
	}
	return nil
}

// Preferences

// GetPreferences loads a user's alert preferences.
func (r *MongoDBRepository) GetPreferences(ctx context.Context, userID string) (models.AlertPreferences, error) {
	var prefs models.AlertPreferences
	if err := r.findOne(ctx, preferencesCollection, byID(userID), &prefs); err != nil {
		return models.AlertPreferences{}, err
	}
	return prefs, nil
}

// UpsertPreferences stores the user's preferences, creating them if needed.
func (r *MongoDBRepository) UpsertPreferences(ctx context.Context, prefs models.AlertPreferences) error {
	_, err := r.db.Collection(preferencesCollection).
		ReplaceOne(ctx, byID(prefs.UserID), prefs, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to upsert alert preferences: %w", err)
	}
	return nil
}

func (r *MongoDBRepository) findOne(ctx context.Context, coll string, filter bson.M, out any) error {
	err := r.db.Collection(coll).FindOne(ctx, filter).Decode(out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.ErrNotFound
	}
	return err
}

func (r *MongoDBRepository) find(ctx context.Context, coll string, filter bson.M, out any) error {
	cursor, err := r.db.Collection(coll).Find(ctx, filter, newestFirst())
	if err != nil {
		return fmt.Errorf("query %s: %w", coll, err)
	}
	if err := cursor.All(ctx, out); err != nil {
		return fmt.Errorf("decode %s: %w", coll, err)
	}
	return nil
}

func byID(id string) bson.M {
	return bson.M{"_id": id}
}

func newestFirst() *options.FindOptions {
	return options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
}

func setFields(fields bson.M, at time.Time) bson.M {
	fields["updated_at"] = at
	return bson.M{"$set": fields}
}

func ndviUpdate(point models.NDVIPoint, imageURL string, at time.Time) bson.M {
	set := bson.M{
		"satellite_data.last_satellite_update": at,
		"updated_at":                           at,
	}
	if imageURL != "" {
		set["satellite_data.last_ndvi_image"] = imageURL
	}
	return bson.M{
		"$push": bson.M{"satellite_data.ndvi_history": point},
		"$set":  set,
	}
}

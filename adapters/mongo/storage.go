package mongo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"ecorewards/core"
)

// Config holds MongoDB connection configuration
type Config struct {
	URI            string        `json:"uri" yaml:"uri" env:"ECOREWARDS_MONGO_URI"`
	Database       string        `json:"database" yaml:"database" env:"ECOREWARDS_MONGO_DATABASE"`
	Collection     string        `json:"collection" yaml:"collection" env:"ECOREWARDS_MONGO_COLLECTION"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
}

// DefaultConfig returns sensible defaults for a local MongoDB
func DefaultConfig() Config {
	return Config{
		URI:            "mongodb://localhost:27017",
		Database:       "ecorewards",
		Collection:     "profiles",
		ConnectTimeout: 10 * time.Second,
	}
}

// Store keeps one document per profile, keyed by user id.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

// profileDoc lifts the summary fields to the top level so they can be indexed.
type profileDoc struct {
	ID        string           `bson:"_id"`
	Points    int64            `bson:"points"`
	Level     int64            `bson:"level"`
	Streak    int64            `bson:"streak"`
	Profile   core.UserProfile `bson:"profile"`
	UpdatedAt time.Time        `bson:"updated_at"`
}

// New connects, pings and ensures the points index.
func New(config Config) (*Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), config.ConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}

	coll := client.Database(config.Database).Collection(config.Collection)
	pointsIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "points", Value: -1},
			{Key: "_id", Value: 1},
		},
	}
	if _, err := coll.Indexes().CreateOne(ctx, pointsIndex); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("error creating points index: %w", err)
	}
	return &Store{client: client, coll: coll}, nil
}

// NewWithCollection wraps an existing collection (useful for testing)
func NewWithCollection(coll *mongo.Collection) *Store {
	return &Store{coll: coll}
}

func (s *Store) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Disconnect(context.Background())
}

// Ping reports whether the primary is reachable. Stores built from a bare collection ping through it.
func (s *Store) Ping(ctx context.Context) error {
	if s.client == nil {
		return s.coll.Database().Client().Ping(ctx, nil)
	}
	return s.client.Ping(ctx, nil)
}

func (s *Store) Load(ctx context.Context, user core.UserID) (core.UserProfile, error) {
	var doc profileDoc
	err := s.coll.FindOne(ctx, bson.M{"_id": string(user)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return core.UserProfile{}, core.ErrNotFound
	}
	if err != nil {
		return core.UserProfile{}, fmt.Errorf("error finding profile: %w", err)
	}
	return doc.Profile, nil
}

// Save upserts the whole document.
func (s *Store) Save(ctx context.Context, profile core.UserProfile) error {
	doc := profileDoc{
		ID:        string(profile.UserID),
		Points:    profile.Points,
		Level:     profile.Level,
		Streak:    profile.Streak,
		Profile:   profile,
		UpdatedAt: profile.Updated.UTC(),
	}
	_, err := s.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("error saving profile: %w", err)
	}
	return nil
}

func (s *Store) Users(ctx context.Context) ([]core.UserID, error) {
	values, err := s.coll.Distinct(ctx, "_id", bson.D{})
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	out := make([]core.UserID, 0, len(values))
	for _, v := range values {
		if id, ok := v.(string); ok {
			out = append(out, core.UserID(id))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

package durable

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoBackend stores each artifact as one document keyed by its name.
type MongoBackend struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoBackend connects to cfg.MongoURI. The driver connects lazily, so
// an unreachable server surfaces on the first Put.
func NewMongoBackend(ctx context.Context, cfg PrimaryConfig) (*MongoBackend, error) {
	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("mongo: uri not set")
	}
	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(cfg.MongoURI).
		SetServerSelectionTimeout(5*time.Second))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	db := cfg.Database
	if db == "" {
		db = "refiner"
	}
	coll := cfg.Collection
	if coll == "" {
		coll = "refined_batches"
	}
	return &MongoBackend{
		client:     client,
		collection: client.Database(db).Collection(coll),
	}, nil
}

// Name implements Backend.
func (b *MongoBackend) Name() string { return "mongo" }

// Put implements Backend. The JSON body is stored as a nested document.
func (b *MongoBackend) Put(ctx context.Context, name string, body []byte) (string, error) {
	var data bson.M
	if err := bson.UnmarshalExtJSON(body, false, &data); err != nil {
		return "", fmt.Errorf("decode payload: %w", err)
	}
	opts := options.Replace().SetUpsert(true)
	_, err := b.collection.ReplaceOne(ctx, bson.M{"_id": name}, bson.M{
		"_id":        name,
		"created_at": time.Now().UTC(),
		"data":       data,
	}, opts)
	if err != nil {
		return "", fmt.Errorf("replace %s: %w", name, err)
	}
	return fmt.Sprintf("mongo://%s/%s/%s", b.collection.Database().Name(), b.collection.Name(), name), nil
}

// Close disconnects the client.
func (b *MongoBackend) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return b.client.Disconnect(ctx)
}

package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/walletmind/walletmind/session"
)

// MongoStore implements session storage using MongoDB.
type MongoStore struct {
	client     *mongo.Client
	db         *mongo.Database
	collection *mongo.Collection
}

// MongoConfig holds MongoDB connection configuration.
type MongoConfig struct {
	URI        string
	Database   string
	Collection string
}

// DefaultMongoConfig returns default MongoDB configuration.
func DefaultMongoConfig() *MongoConfig {
	return &MongoConfig{
		URI:        "mongodb://localhost:27017",
		Database:   "walletmind",
		Collection: "sessions",
	}
}

// mongoTurn is the BSON representation of one exchange.
type mongoTurn struct {
	Query   string    `bson:"query"`
	Kind    string    `bson:"kind"`
	Reason  string    `bson:"reason,omitempty"`
	AskedAt time.Time `bson:"asked_at"`
}

// mongoRecord is the BSON representation of a session record.
type mongoRecord struct {
	ID        string         `bson:"_id"`
	State     string         `bson:"state"`
	CreatedAt time.Time      `bson:"created_at"`
	UpdatedAt time.Time      `bson:"updated_at"`
	Turns     []mongoTurn    `bson:"turns,omitempty"`
	Metadata  map[string]any `bson:"metadata,omitempty"`
}

// NewMongoStore creates a new MongoDB-based session store and verifies the
// connection.
func NewMongoStore(config *MongoConfig) (*MongoStore, error) {
	if config == nil {
		config = DefaultMongoConfig()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(config.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(config.Database)
	store := &MongoStore{
		client:     client,
		db:         db,
		collection: db.Collection(config.Collection),
	}
	if err := store.createIndexes(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}
	return store, nil
}

func (s *MongoStore) createIndexes(ctx context.Context) error {
	indexModel := mongo.IndexModel{
		Keys: bson.D{{Key: "updated_at", Value: -1}},
	}
	_, err := s.collection.Indexes().CreateOne(ctx, indexModel)
	return err
}

// Save upserts a session record.
func (s *MongoStore) Save(ctx context.Context, record *session.Record) error {
	if record == nil || record.ID == "" {
		return fmt.Errorf("session record cannot be nil")
	}

	opts := options.Replace().SetUpsert(true)
	filter := bson.M{"_id": record.ID}
	if _, err := s.collection.ReplaceOne(ctx, filter, toMongoRecord(record), opts); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}

// Load retrieves a session record by ID.
func (s *MongoStore) Load(ctx context.Context, id string) (*session.Record, error) {
	var doc mongoRecord
	err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("session %s not found", id)
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return fromMongoRecord(&doc), nil
}

// Delete removes a session record.
func (s *MongoStore) Delete(ctx context.Context, id string) error {
	result, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// List returns all session IDs.
func (s *MongoStore) List(ctx context.Context) ([]string, error) {
	opts := options.Find().SetProjection(bson.M{"_id": 1})
	cursor, err := s.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode session ids: %w", err)
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	return ids, nil
}

// Count returns the number of stored sessions.
func (s *MongoStore) Count(ctx context.Context) (int, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return int(count), nil
}

// Exists checks if a session exists.
func (s *MongoStore) Exists(ctx context.Context, id string) (bool, error) {
	count, err := s.collection.CountDocuments(ctx, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("failed to check session existence: %w", err)
	}
	return count > 0, nil
}

// Close closes the MongoDB connection.
func (s *MongoStore) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return s.client.Disconnect(ctx)
}

// Ping checks if the MongoDB connection is alive.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func toMongoRecord(record *session.Record) *mongoRecord {
	doc := &mongoRecord{
		ID:        record.ID,
		State:     string(record.State),
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
		Metadata:  record.Metadata,
	}
	for _, t := range record.Turns {
		doc.Turns = append(doc.Turns, mongoTurn{
			Query:   t.Query,
			Kind:    t.Kind,
			Reason:  t.Reason,
			AskedAt: t.AskedAt,
		})
	}
	return doc
}

func fromMongoRecord(doc *mongoRecord) *session.Record {
	record := &session.Record{
		ID:        doc.ID,
		State:     session.State(doc.State),
		CreatedAt: doc.CreatedAt,
		UpdatedAt: doc.UpdatedAt,
		Metadata:  doc.Metadata,
	}
	for _, t := range doc.Turns {
		record.Turns = append(record.Turns, session.Turn{
			Query:   t.Query,
			Kind:    t.Kind,
			Reason:  t.Reason,
			AskedAt: t.AskedAt,
		})
	}
	return record
}

package mongodb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

var ErrNotInitialized = errors.New("mongodb client is not initialized, call InitMongoDB first")

var (
	mu             sync.RWMutex
	clientInstance *mongo.Client
	dbInstance     *mongo.Database
)

// InitMongoDB connects the shared client, verifies it with a ping and selects
// the database. Calling it again after a successful init is a no-op.
func InitMongoDB(ctx context.Context, uri, dbName string) error {
	mu.Lock()
	defer mu.Unlock()

	if clientInstance != nil {
		return nil
	}

	log.Info().Str("db", dbName).Msg("Initializing MongoDB client")
	clientOptions := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second).
		SetMonitor(otelmongo.NewMonitor())

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		log.Error().Err(err).Msg("Failed to connect to MongoDB")
		return err
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		log.Error().Err(err).Msg("Failed to ping MongoDB primary")
		_ = client.Disconnect(context.Background())
		return err
	}

	clientInstance = client
	dbInstance = client.Database(dbName)
	log.Info().Msg("MongoDB client initialized successfully.")
	return nil
}

// GetDB returns the database selected by InitMongoDB, or nil before it.
func GetDB() *mongo.Database {
	mu.RLock()
	defer mu.RUnlock()
	return dbInstance
}

// Ping sends a ping to the MongoDB server using the global client.
// This is useful for health checks.
func Ping(ctx context.Context) error {
	mu.RLock()
	client := clientInstance
	mu.RUnlock()

	if client == nil {
		return ErrNotInitialized
	}
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return client.Ping(pingCtx, readpref.Primary())
}

// CloseMongoDB disconnects the MongoDB client.
// It should be called on application shutdown.
func CloseMongoDB(ctx context.Context) {
	mu.Lock()
	defer mu.Unlock()

	if clientInstance == nil {
		return
	}
	log.Info().Msg("Closing MongoDB connection.")
	if err := clientInstance.Disconnect(ctx); err != nil {
		log.Error().Err(err).Msg("Error closing MongoDB connection")
	}
	clientInstance = nil
	dbInstance = nil
}

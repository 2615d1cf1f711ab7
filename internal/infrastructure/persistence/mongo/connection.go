// Package mongo implements the document store on MongoDB.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/coursehub/coursehub/internal/domain/shared"
	"github.com/coursehub/coursehub/pkg/retry"
)

const (
	coursesCollection = "courses"
	usersCollection   = "users"
)

// Config holds MongoDB connection settings.
type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
	MaxPoolSize    uint64
}

// Client wraps a mongo client bound to one database.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// Connect dials MongoDB, pings the primary and ensures indexes exist.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.Database == "" {
		return nil, errors.New("mongo: database name is required")
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	err = retry.DatabaseRetrier().Do(ctx, func(ctx context.Context) error {
		pingCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return retry.Retryable(client.Ping(pingCtx, readpref.Primary()))
	})
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	c := &Client{client: client, db: client.Database(cfg.Database)}
	if err := c.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return c, nil
}

// EnsureIndexes creates the unique email index on users.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	_, err := c.db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("uniq_email"),
	})
	if err != nil {
		return fmt.Errorf("mongo: create email index: %w", err)
	}
	return nil
}

// Ping checks that the primary is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}

// Courses returns a course repository on this database.
func (c *Client) Courses() *CourseRepository {
	return &CourseRepository{coll: c.db.Collection(coursesCollection)}
}

// Users returns a user repository on this database.
func (c *Client) Users() *UserRepository {
	return &UserRepository{coll: c.db.Collection(usersCollection)}
}

// storeError classifies driver errors. Typed domain errors pass through.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *shared.DomainError
	if errors.As(err, &de) {
		return err
	}
	return shared.StoreUnavailable(shared.StoreDocument, op, err)
}

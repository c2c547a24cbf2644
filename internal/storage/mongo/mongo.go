// Package mongo stores canonical tokens in a MongoDB collection.
package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Default database and collection names read by the dashboard API.
const (
	DefaultDatabase   = "TokenRadar"
	DefaultCollection = "Rader"
)

// Client wraps mongo.Client for dependency injection.
type Client struct {
	*mongo.Client
}

// Connect opens a client for uri and verifies it with a ping.
func Connect(ctx context.Context, uri string) (*Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect to mongo: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongo: %w", err)
	}

	return &Client{Client: client}, nil
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.Disconnect(ctx)
}

// EnsureIndexes creates the unique mint index and the listing sort index.
// Safe to call on every startup.
func EnsureIndexes(ctx context.Context, coll *mongo.Collection) error {
	_, err := coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "mint", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("mint_unique"),
		},
		{
			Keys:    bson.D{{Key: "created_timestamp", Value: -1}, {Key: "mint", Value: 1}},
			Options: options.Index().SetName("created_timestamp_desc"),
		},
	})
	if err != nil {
		return fmt.Errorf("create indexes: %w", err)
	}
	return nil
}

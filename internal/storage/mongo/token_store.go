package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"token-radar/internal/domain"
	"token-radar/internal/observability"
	"token-radar/internal/storage"
)

// matchNone never matches: every document has an _id.
var matchNone = bson.M{"_id": bson.M{"$exists": false}}

// TokenStore implements storage.TokenStore on a MongoDB collection keyed by mint.
type TokenStore struct {
	coll *mongo.Collection
}

// NewTokenStore creates a new TokenStore over coll.
// Call EnsureIndexes first so concurrent upserts cannot insert the same mint twice.
func NewTokenStore(coll *mongo.Collection) *TokenStore {
	return &TokenStore{coll: coll}
}

var _ storage.TokenStore = (*TokenStore)(nil)

// Upsert sets every stored field of the document with the token's mint, inserting it if absent.
func (s *TokenStore) Upsert(ctx context.Context, t *domain.Token) (storage.UpsertResult, error) {
	if t == nil {
		return storage.UpsertResult{}, fmt.Errorf("%w: nil token", storage.ErrInvalidInput)
	}
	if err := t.Validate(); err != nil {
		return storage.UpsertResult{}, fmt.Errorf("%w: %v", storage.ErrInvalidInput, err)
	}

	filter := bson.M{"mint": t.Mint}
	update := bson.M{"$set": t}
	opts := options.Update().SetUpsert(true)

	start := time.Now()
	res, err := s.coll.UpdateOne(ctx, filter, update, opts)
	if mongo.IsDuplicateKeyError(err) {
		// Lost an insert race on the unique index; the retry matches the winner.
		res, err = s.coll.UpdateOne(ctx, filter, update, opts)
	}
	observability.RecordDBQuery("mongo", "upsert", time.Since(start).Seconds(), err)
	if err != nil {
		return storage.UpsertResult{}, fmt.Errorf("upsert token %s: %w", t.Mint, err)
	}

	return storage.UpsertResult{Created: res.UpsertedCount > 0}, nil
}

// Count returns the number of tokens matching the filter.
func (s *TokenStore) Count(ctx context.Context, f storage.Filter) (int64, error) {
	q, err := toBSON(f)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	n, err := s.coll.CountDocuments(ctx, q)
	observability.RecordDBQuery("mongo", "count", time.Since(start).Seconds(), err)
	if err != nil {
		return 0, fmt.Errorf("count tokens: %w", err)
	}
	return n, nil
}

// Find returns up to limit tokens matching the filter, newest first.
func (s *TokenStore) Find(ctx context.Context, f storage.Filter, limit int) ([]*domain.Token, error) {
	q, err := toBSON(f)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_timestamp", Value: -1}, {Key: "mint", Value: 1}}).
		SetProjection(bson.M{"_id": 0})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	start := time.Now()
	cur, err := s.coll.Find(ctx, q, opts)
	if err != nil {
		observability.RecordDBQuery("mongo", "find", time.Since(start).Seconds(), err)
		return nil, fmt.Errorf("find tokens: %w", err)
	}

	var tokens []*domain.Token
	err = cur.All(ctx, &tokens)
	observability.RecordDBQuery("mongo", "find", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("decode tokens: %w", err)
	}
	return tokens, nil
}

// Get returns the token with the given mint.
// Returns storage.ErrNotFound if no such token exists.
func (s *TokenStore) Get(ctx context.Context, mint string) (*domain.Token, error) {
	var t domain.Token
	err := s.coll.FindOne(ctx, bson.M{"mint": mint}).Decode(&t)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token %s: %w", mint, err)
	}
	return &t, nil
}

// toBSON translates a filter into a query document.
func toBSON(f storage.Filter) (bson.M, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return buildQuery(f)
}

func buildQuery(f storage.Filter) (bson.M, error) {
	switch {
	case f.Op == "" || f.Op == storage.OpAll:
		return bson.M{}, nil
	case f.Op == storage.OpAnd || f.Op == storage.OpOr:
		if len(f.Children) == 0 {
			if f.Op == storage.OpAnd {
				return bson.M{}, nil
			}
			return matchNone, nil
		}
		parts := make(bson.A, 0, len(f.Children))
		for _, c := range f.Children {
			q, err := buildQuery(c)
			if err != nil {
				return nil, err
			}
			parts = append(parts, q)
		}
		return bson.M{"$" + string(f.Op): parts}, nil
	}

	v, err := f.NormalizedValue()
	if err != nil {
		return nil, err
	}
	return bson.M{f.Field: bson.M{"$" + string(f.Op): v}}, nil
}

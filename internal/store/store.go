// Package store persists enriched records to MongoDB.
//
// Records are keyed by (source, id) so the same catalog item observed on
// consecutive cycles updates in place; createdAt survives every update.
package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/hobbyfetch/cardharvest/internal/models"
)

const metaCollection = "meta"

// PersistError wraps a storage failure with the operation that caused it.
type PersistError struct {
	Op  string
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistError) Unwrap() error { return e.Err }

// collection is the slice of *mongo.Collection the store uses; tests swap
// in an in-memory double.
type collection interface {
	UpdateOne(ctx context.Context, filter interface{}, update interface{}, opts ...*options.UpdateOptions) (*mongo.UpdateResult, error)
}

// Store wraps the MongoDB collections the harvester writes to.
type Store struct {
	client  *mongo.Client
	records collection
	meta    collection
}

// Connect establishes a MongoDB session and verifies it with a ping.
func Connect(ctx context.Context, uri, database, collection string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &PersistError{Op: "connect", Err: err}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, &PersistError{Op: "ping", Err: err}
	}
	db := client.Database(database)
	return &Store{
		client:  client,
		records: db.Collection(collection),
		meta:    db.Collection(metaCollection),
	}, nil
}

// Close releases the underlying MongoDB session.
func (s *Store) Close(ctx context.Context) error {
	if err := s.client.Disconnect(ctx); err != nil {
		return &PersistError{Op: "disconnect", Err: err}
	}
	return nil
}

// UpsertRecord inserts or updates the record keyed by (source, id).
// createdAt is written only when the document is first inserted.
func (s *Store) UpsertRecord(ctx context.Context, rec *models.Record) error {
	if err := rec.Validate(); err != nil {
		return &PersistError{Op: "validate record", Err: err}
	}

	filter := bson.M{"source": rec.Source, "id": rec.ID}
	_, err := s.records.UpdateOne(ctx, filter, recordUpdate(rec), options.Update().SetUpsert(true))
	if err != nil {
		return &PersistError{Op: fmt.Sprintf("upsert %s/%d", rec.Source, rec.ID), Err: err}
	}
	return nil
}

// recordUpdate builds the upsert document. createdAt must stay out of $set
// or every cycle would look like a fresh discovery.
func recordUpdate(rec *models.Record) bson.M {
	return bson.M{
		"$set": bson.M{
			"id":                    rec.ID,
			"title":                 rec.Title,
			"price":                 rec.Price,
			"price_incl_protection": rec.PriceInclFees,
			"url":                   rec.URL,
			"photo_url":             rec.PhotoURL,
			"brand":                 rec.Brand,
			"condition":             rec.Condition,
			"likes":                 rec.Likes,
			"source":                rec.Source,
			"ebay_from":             rec.EbayFrom,
			"ebay_to":               rec.EbayTo,
			"ebay_count":            rec.EbayCount,
			"ebay_link":             rec.EbayLink,
			"updatedAt":             rec.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"createdAt": rec.UpdatedAt,
		},
	}
}

// SetLastUpdate records when a source's harvest last started.
func (s *Store) SetLastUpdate(ctx context.Context, source models.Source, t time.Time) error {
	filter := bson.M{"key": string(source) + "LastUpdate"}
	update := bson.M{"$set": bson.M{"key": string(source) + "LastUpdate", "value": t}}
	_, err := s.meta.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	if err != nil {
		return &PersistError{Op: fmt.Sprintf("set %s last update", source), Err: err}
	}
	return nil
}

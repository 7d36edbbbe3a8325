package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// EnsureIndexes creates the indexes the services rely on. The unique access
// code index is the backstop for concurrent code allocation.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	specs := map[string][]mongo.IndexModel{
		"quotations": {
			{
				Keys: bson.D{{Key: "sharing.access_code", Value: 1}},
				Options: options.Index().
					SetName("uniq_access_code").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"sharing.access_code": bson.M{"$exists": true}}),
			},
			{
				Keys: bson.D{{Key: "quotation_number", Value: 1}},
				Options: options.Index().
					SetName("uniq_quotation_number").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"quotation_number": bson.M{"$exists": true}}),
			},
			{Keys: bson.D{{Key: "country_code", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
		"tours": {
			{
				Keys: bson.D{{Key: "slug", Value: 1}},
				Options: options.Index().
					SetName("uniq_slug").
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"slug": bson.M{"$exists": true}}),
			},
			{Keys: bson.D{{Key: "country_code", Value: 1}}},
			{Keys: bson.D{{Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "created_at", Value: -1}}},
		},
	}

	for collection, models := range specs {
		if _, err := database.Collection(collection).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes for %s: %w", collection, err)
		}
	}
	return nil
}

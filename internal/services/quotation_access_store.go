package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"nguide/admin/internal/access"
	"nguide/admin/internal/db"
	"nguide/admin/internal/models"
)

// quotationAccessStore exposes the sharing sub-document of quotations to the
// access service. It is the only writer of sharing.*.
type quotationAccessStore struct {
	db *mongo.Database
}

// NewQuotationAccessStore creates the Mongo-backed access.QuotationStore.
func NewQuotationAccessStore(db *mongo.Database) access.QuotationStore {
	return &quotationAccessStore{db: db}
}

func liveQuotation(id int64) bson.M {
	return bson.M{"_id": id, "deleted_at": bson.M{"$exists": false}}
}

func (s *quotationAccessStore) FindByID(ctx context.Context, id int64) (*models.Quotation, error) {
	var q models.Quotation
	err := s.db.Collection(quotationsCollection).FindOne(ctx, liveQuotation(id)).Decode(&q)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, access.ErrNotFound
		}
		return nil, fmt.Errorf("error finding quotation %d: %w", id, err)
	}
	return &q, nil
}

// AccessCodeExists checks every quotation, deleted ones included, because the
// unique index covers them too.
func (s *quotationAccessStore) AccessCodeExists(ctx context.Context, code string) (bool, error) {
	count, err := s.db.Collection(quotationsCollection).CountDocuments(ctx,
		bson.M{"sharing.access_code": code},
		options.Count().SetLimit(1),
	)
	if err != nil {
		return false, fmt.Errorf("failed to look up access code: %w", err)
	}
	return count > 0, nil
}

func (s *quotationAccessStore) AssignAccessCode(ctx context.Context, a access.CodeAssignment) (*models.QuotationSharing, error) {
	filter := liveQuotation(a.QuotationID)
	if a.PreviousCode == "" {
		filter["sharing.access_code"] = bson.M{"$exists": false}
	} else {
		filter["sharing.access_code"] = a.PreviousCode
	}

	set := bson.M{
		"sharing.access_code":            a.Code,
		"sharing.access_code_created_at": a.At,
		"updated_at":                     a.At,
	}
	if a.ShareCount != nil {
		set["sharing.share_count"] = *a.ShareCount
	}
	if a.LastSharedAt != nil {
		set["sharing.last_shared_at"] = *a.LastSharedAt
	}

	sharing, err := s.updateSharing(ctx, filter, bson.M{"$set": set})
	switch {
	case err == nil:
		return sharing, nil
	case db.IsMongoDuplicateKeyError(err):
		return nil, access.ErrAccessCodeTaken
	case errors.Is(err, mongo.ErrNoDocuments):
		if _, findErr := s.FindByID(ctx, a.QuotationID); findErr != nil {
			return nil, findErr
		}
		return nil, access.ErrSharingChanged
	}
	return nil, fmt.Errorf("failed to assign access code to quotation %d: %w", a.QuotationID, err)
}

func (s *quotationAccessStore) RecordShare(ctx context.Context, id int64, at time.Time) (*models.QuotationSharing, error) {
	filter := liveQuotation(id)
	filter["sharing.access_code"] = bson.M{"$exists": true}
	update := bson.M{
		"$inc": bson.M{"sharing.share_count": 1},
		"$set": bson.M{"sharing.last_shared_at": at, "updated_at": at},
	}

	sharing, err := s.updateSharing(ctx, filter, update)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, access.ErrNotFound
		}
		return nil, fmt.Errorf("failed to record share of quotation %d: %w", id, err)
	}
	return sharing, nil
}

func (s *quotationAccessStore) updateSharing(ctx context.Context, filter, update bson.M) (*models.QuotationSharing, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"sharing": 1})

	var result struct {
		Sharing models.QuotationSharing `bson:"sharing"`
	}
	if err := s.db.Collection(quotationsCollection).FindOneAndUpdate(ctx, filter, update, opts).Decode(&result); err != nil {
		return nil, err
	}
	return &result.Sharing, nil
}

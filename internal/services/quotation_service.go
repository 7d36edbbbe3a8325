package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"nguide/admin/internal/config"
	"nguide/admin/internal/db"
	"nguide/admin/internal/models"
	"nguide/admin/internal/pricing"
)

// ErrDuplicateQuotationNumber is returned when a client-supplied quotation
// number is already in use.
var ErrDuplicateQuotationNumber = errors.New("quotation number already exists")

// maxQuotationListSize caps a single list response.
const maxQuotationListSize = 500

// QuotationFilter narrows ListQuotations. Empty fields are ignored.
type QuotationFilter struct {
	Status      string
	Country     string
	Email       string
	Phone       string
	Query       string
	CreatedFrom *time.Time
	CreatedTo   *time.Time
}

// IQuotationService defines the interface for quotation operations.
type IQuotationService interface {
	CreateQuotation(ctx context.Context, payload map[string]interface{}, actor string) (*models.Quotation, error)
	FindQuotationByID(ctx context.Context, id int64) (*models.Quotation, error)
	FindQuotationByNumber(ctx context.Context, number string) (*models.Quotation, error)
	ListQuotations(ctx context.Context, filter QuotationFilter) ([]models.Quotation, int64, error)
	UpdateQuotation(ctx context.Context, id int64, payload map[string]interface{}, actor string) (*models.Quotation, error)
	DeleteQuotation(ctx context.Context, id int64) error
	ListQuotationsWithoutAccessCode(ctx context.Context, limit int) ([]models.Quotation, error)
}

const (
	quotationsCollection = "quotations"
	quotationSequence    = "quotations"
)

// quotationService implements IQuotationService.
type quotationService struct {
	db  *mongo.Database
	cfg *config.Config
	now func() time.Time
}

// NewQuotationService creates a new QuotationService.
func NewQuotationService(db *mongo.Database, cfg *config.Config) IQuotationService {
	return &quotationService{db: db, cfg: cfg, now: time.Now}
}

func (s *quotationService) defaultCurrency() string {
	if s.cfg != nil && s.cfg.DefaultCurrency != "" {
		return s.cfg.DefaultCurrency
	}
	return pricing.DefaultCurrency
}

// buildQuotation maps and validates a create payload without touching the
// database.
func buildQuotation(payload map[string]interface{}, currency string, now time.Time) (*models.Quotation, error) {
	q := &models.Quotation{
		Status:        models.QuotationStatusQuotation,
		CountryCode:   "TH",
		Attractions:   []interface{}{},
		MealOptions:   []interface{}{},
		IncludedItems: []interface{}{},
		ExcludedItems: []interface{}{},
		Currency:      currency,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	touched := applyQuotationPayload(q, payload)

	if errs := validateQuotation(q, payload, touchedNames(touched), true); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	q.Recalculate()
	return q, nil
}

// CreateQuotation validates the payload, computes totals and stores a new
// quotation with the next numeric ID.
func (s *quotationService) CreateQuotation(ctx context.Context, payload map[string]interface{}, actor string) (*models.Quotation, error) {
	q, err := buildQuotation(payload, s.defaultCurrency(), s.now().UTC())
	if err != nil {
		return nil, err
	}
	q.CreatedBy = actor
	q.UpdatedBy = actor

	id, err := db.NextSequence(ctx, s.db, quotationSequence)
	if err != nil {
		return nil, err
	}
	q.ID = id
	if q.QuotationNumber == "" {
		q.QuotationNumber = QuotationNumber(q.CreatedAt, id)
	}

	if _, err := s.db.Collection(quotationsCollection).InsertOne(ctx, q); err != nil {
		if db.IsMongoDuplicateKeyError(err) {
			return nil, ErrDuplicateQuotationNumber
		}
		return nil, fmt.Errorf("failed to insert quotation %d: %w", id, err)
	}
	return q, nil
}

// QuotationNumber formats the human-readable number: QT-<year>-<last six
// digits of the ID>.
func QuotationNumber(createdAt time.Time, id int64) string {
	digits := strconv.FormatInt(id, 10)
	if len(digits) > 6 {
		digits = digits[len(digits)-6:]
	}
	return fmt.Sprintf("QT-%d-%s", createdAt.Year(), digits)
}

// FindQuotationByID finds a non-deleted quotation.
func (s *quotationService) FindQuotationByID(ctx context.Context, id int64) (*models.Quotation, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// FindQuotationByNumber finds a non-deleted quotation by its number.
func (s *quotationService) FindQuotationByNumber(ctx context.Context, number string) (*models.Quotation, error) {
	number = strings.TrimSpace(number)
	if number == "" {
		return nil, mongo.ErrNoDocuments
	}
	return s.findOne(ctx, bson.M{"quotation_number": number})
}

func (s *quotationService) findOne(ctx context.Context, filter bson.M) (*models.Quotation, error) {
	filter["deleted_at"] = bson.M{"$exists": false}
	var q models.Quotation
	err := s.db.Collection(quotationsCollection).FindOne(ctx, filter).Decode(&q)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding quotation: %w", err)
	}
	return &q, nil
}

// quotationListFilter builds the Mongo filter for ListQuotations.
func quotationListFilter(f QuotationFilter) bson.M {
	filter := bson.M{"deleted_at": bson.M{"$exists": false}}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Country != "" {
		filter["country_code"] = NormalizeCountryCode(f.Country)
	}
	if f.Email != "" {
		filter["customer_email"] = containsPattern(f.Email)
	}
	if f.Phone != "" {
		filter["customer_phone"] = containsPattern(f.Phone)
	}
	if f.CreatedFrom != nil && f.CreatedTo != nil {
		filter["created_at"] = bson.M{"$gte": *f.CreatedFrom, "$lte": *f.CreatedTo}
	}
	if f.Query != "" {
		pattern := containsPattern(f.Query)
		filter["$or"] = bson.A{
			bson.M{"quotation_number": pattern},
			bson.M{"customer_name": pattern},
			bson.M{"customer_email": pattern},
		}
	}
	return filter
}

func containsPattern(s string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(s), "$options": "i"}
}

// ListQuotations returns matching quotations, newest first, and the total
// number of matches.
func (s *quotationService) ListQuotations(ctx context.Context, f QuotationFilter) ([]models.Quotation, int64, error) {
	collection := s.db.Collection(quotationsCollection)
	filter := quotationListFilter(f)

	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count quotations: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(maxQuotationListSize)
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to execute quotation list query: %w", err)
	}
	defer cursor.Close(ctx)

	results := []models.Quotation{}
	if err = cursor.All(ctx, &results); err != nil {
		return nil, 0, fmt.Errorf("failed to decode quotation list results: %w", err)
	}
	return results, total, nil
}

// mergeQuotationUpdate overlays payload onto the stored quotation and returns
// the $set document. Totals are recomputed from the merged record only when
// a pricing field was touched.
func mergeQuotationUpdate(q *models.Quotation, payload map[string]interface{}, actor string, now time.Time) (bson.M, error) {
	touched := applyQuotationPayload(q, payload)
	names := touchedNames(touched)
	if errs := validateQuotation(q, payload, names, false); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	raw, err := bson.Marshal(q)
	if err != nil {
		return nil, fmt.Errorf("failed to encode quotation %d: %w", q.ID, err)
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode quotation %d: %w", q.ID, err)
	}

	set := bson.M{}
	for _, f := range touched {
		if f.bson == "quotation_number" {
			continue
		}
		if v, ok := doc[f.bson]; ok {
			set[f.bson] = v
		} else {
			set[f.bson] = nil
		}
	}
	if pricing.TouchesPricing(names) {
		q.Recalculate()
		set["calculated"] = q.Calculated
		set["currency"] = q.Currency
	}
	q.UpdatedAt = now
	set["updated_at"] = now
	if actor != "" {
		q.UpdatedBy = actor
		set["updated_by"] = actor
	}
	return set, nil
}

// UpdateQuotation applies a partial update. The quotation number and the
// sharing state are never changed here.
func (s *quotationService) UpdateQuotation(ctx context.Context, id int64, payload map[string]interface{}, actor string) (*models.Quotation, error) {
	existing, err := s.FindQuotationByID(ctx, id)
	if err != nil {
		return nil, err
	}
	number := existing.QuotationNumber

	set, err := mergeQuotationUpdate(existing, payload, actor, s.now().UTC())
	if err != nil {
		return nil, err
	}
	existing.QuotationNumber = number

	filter := bson.M{"_id": id, "deleted_at": bson.M{"$exists": false}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Quotation
	err = s.db.Collection(quotationsCollection).FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update quotation %d: %w", id, err)
	}
	return &updated, nil
}

// DeleteQuotation soft-deletes a quotation.
func (s *quotationService) DeleteQuotation(ctx context.Context, id int64) error {
	now := s.now().UTC()
	result, err := s.db.Collection(quotationsCollection).UpdateOne(ctx,
		bson.M{"_id": id, "deleted_at": bson.M{"$exists": false}},
		bson.M{"$set": bson.M{"deleted_at": now, "updated_at": now}},
	)
	if err != nil {
		return fmt.Errorf("db error deleting quotation %d: %w", id, err)
	}
	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListQuotationsWithoutAccessCode returns up to limit live quotations that
// have never been assigned an access code, oldest first.
func (s *quotationService) ListQuotationsWithoutAccessCode(ctx context.Context, limit int) ([]models.Quotation, error) {
	filter := bson.M{
		"deleted_at":          bson.M{"$exists": false},
		"sharing.access_code": bson.M{"$exists": false},
	}
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}).SetLimit(int64(limit))

	cursor, err := s.db.Collection(quotationsCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query quotations without access code: %w", err)
	}
	defer cursor.Close(ctx)

	var results []models.Quotation
	if err = cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("failed to decode quotations without access code: %w", err)
	}
	return results, nil
}

// validateQuotation checks the merged record. On create every required field
// is checked; on update only the touched ones.
func validateQuotation(q *models.Quotation, payload map[string]interface{}, touched []string, create bool) []string {
	var errs []string
	has := func(name string) bool {
		if create {
			return true
		}
		for _, t := range touched {
			if t == name {
				return true
			}
		}
		return false
	}

	if create {
		if _, ok := lookup(payload, "", "", "countryCode", "country"); !ok {
			errs = append(errs, "countryCode is required")
		}
	}
	required := []struct {
		name  string
		value string
	}{
		{"dateStart", q.DateStart},
		{"dateEnd", q.DateEnd},
		{"customerName", q.CustomerName},
		{"customerEmail", q.CustomerEmail},
		{"customerPhone", q.CustomerPhone},
	}
	for _, r := range required {
		if has(r.name) && r.value == "" {
			errs = append(errs, r.name+" is required")
		}
	}

	if has("dateStart") || has("dateEnd") {
		start, startOK := pricing.ParseDate(q.DateStart)
		end, endOK := pricing.ParseDate(q.DateEnd)
		if q.DateStart != "" && !startOK {
			errs = append(errs, "dateStart invalid")
		}
		if q.DateEnd != "" && !endOK {
			errs = append(errs, "dateEnd invalid")
		}
		if startOK && endOK && start.After(end) {
			errs = append(errs, "dateStart must be before or equal to dateEnd")
		}
	}
	if has("discountPercent") && (q.DiscountPercent < 0 || q.DiscountPercent > 100) {
		errs = append(errs, "discountPercent must be 0..100")
	}
	if has("status") && !models.ValidQuotationStatus(q.Status) {
		errs = append(errs, "status must be one of waiting, writing, quotation, check")
	}
	for _, n := range []struct {
		name  string
		value int
	}{{"adults", q.Adults}, {"children", q.Children}, {"infants", q.Infants}} {
		if has(n.name) && n.value < 0 {
			errs = append(errs, n.name+" must not be negative")
		}
	}
	return errs
}

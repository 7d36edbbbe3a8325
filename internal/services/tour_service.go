package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"nguide/admin/internal/cache"
	"nguide/admin/internal/config"
	"nguide/admin/internal/db"
	"nguide/admin/internal/metrics"
	"nguide/admin/internal/models"
	"nguide/admin/internal/pricing"
	"nguide/admin/internal/utils"
)

const (
	toursCollection = "tours"
	tourSequence    = "tours"
	tourListPrefix  = "tours:list"

	defaultTourPageSize = 12
	maxTourPageSize     = 50
)

// TourFilter narrows ListTours.
type TourFilter struct {
	Country  string
	Status   string
	Query    string
	Page     int
	PageSize int
}

// normalize applies the paging defaults and bounds.
func (f TourFilter) normalize() TourFilter {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = defaultTourPageSize
	}
	if f.PageSize > maxTourPageSize {
		f.PageSize = maxTourPageSize
	}
	return f
}

func (f TourFilter) cacheKey() string {
	return cache.MakeKey(tourListPrefix, map[string]string{
		"country":  f.Country,
		"status":   f.Status,
		"q":        f.Query,
		"page":     strconv.Itoa(f.Page),
		"pageSize": strconv.Itoa(f.PageSize),
	})
}

// TourPage is one page of tours.
type TourPage struct {
	Items      []models.TourView `json:"items"`
	Total      int64             `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"pageSize"`
	TotalPages int               `json:"totalPages"`
}

// ListCache is the response cache used for tour listings.
type ListCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	InvalidatePrefix(ctx context.Context, prefix string) error
}

// ITourService defines the interface for tour operations.
type ITourService interface {
	CreateTour(ctx context.Context, payload map[string]interface{}) (*models.Tour, error)
	FindTourByID(ctx context.Context, id int64) (*models.Tour, error)
	FindTourBySlug(ctx context.Context, slug string) (*models.Tour, error)
	ListTours(ctx context.Context, filter TourFilter) (*TourPage, error)
	UpdateTour(ctx context.Context, id int64, payload map[string]interface{}) (*models.Tour, error)
	PublishTour(ctx context.Context, id int64) (*models.Tour, error)
	DeleteTour(ctx context.Context, id int64) error
}

// tourService implements ITourService.
type tourService struct {
	db     *mongo.Database
	cfg    *config.Config
	cache  ListCache
	logger *zap.Logger
}

// NewTourService creates a new TourService. cache may be nil.
func NewTourService(db *mongo.Database, cfg *config.Config, cache ListCache, logger *zap.Logger) ITourService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &tourService{db: db, cfg: cfg, cache: cache, logger: logger}
}

// CreateTour validates the payload and stores a draft tour with a unique slug.
func (s *tourService) CreateTour(ctx context.Context, payload map[string]interface{}) (*models.Tour, error) {
	now := time.Now().UTC()
	t := &models.Tour{
		Status:        models.TourStatusDraft,
		Attractions:   []interface{}{},
		DayPlans:      []models.DayPlan{},
		IncludedItems: []interface{}{},
		ExcludedItems: []interface{}{},
		Gallery:       []interface{}{},
		MaxGuests:     models.DefaultMaxGuests,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	applyTourPayload(t, payload)
	if errs := validateTour(t, payload); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	id, err := db.NextSequence(ctx, s.db, tourSequence)
	if err != nil {
		return nil, err
	}
	t.ID = id

	slugBase := Slugify(t.Title, firstNonEmpty(t.Country, t.CountryCode))
	collection := s.db.Collection(toursCollection)
	operation := func() error {
		slug, err := s.allocateSlug(ctx, slugBase, 0)
		if err != nil {
			return err
		}
		t.Slug = slug
		_, err = collection.InsertOne(ctx, t)
		return err
	}
	if err := db.Try(operation); err != nil {
		return nil, fmt.Errorf("failed to insert tour %d: %w", id, err)
	}

	s.invalidateLists(ctx)
	return t, nil
}

func (s *tourService) allocateSlug(ctx context.Context, base string, excludeID int64) (string, error) {
	exists := func(ctx context.Context, candidate string) (bool, error) {
		filter := bson.M{"slug": candidate}
		if excludeID != 0 {
			filter["_id"] = bson.M{"$ne": excludeID}
		}
		count, err := s.db.Collection(toursCollection).CountDocuments(ctx, filter, options.Count().SetLimit(1))
		if err != nil {
			return false, err
		}
		return count > 0, nil
	}
	slug, err := allocateSlug(ctx, base, exists)
	if errors.Is(err, utils.ErrAllocationExhausted) {
		metrics.AllocationExhausted.WithLabelValues("tour_slug").Inc()
		s.logger.Error("tour slug allocation exhausted", zap.String("slug_base", base))
	}
	return slug, err
}

// FindTourByID finds a tour by its numeric ID.
func (s *tourService) FindTourByID(ctx context.Context, id int64) (*models.Tour, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

// FindTourBySlug finds a tour by slug.
func (s *tourService) FindTourBySlug(ctx context.Context, slug string) (*models.Tour, error) {
	if strings.TrimSpace(slug) == "" {
		return nil, mongo.ErrNoDocuments
	}
	return s.findOne(ctx, bson.M{"slug": slug})
}

func (s *tourService) findOne(ctx context.Context, filter bson.M) (*models.Tour, error) {
	var t models.Tour
	err := s.db.Collection(toursCollection).FindOne(ctx, filter).Decode(&t)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("error finding tour: %w", err)
	}
	return &t, nil
}

func tourListFilter(f TourFilter) bson.M {
	filter := bson.M{}
	if f.Country != "" {
		filter["country_code"] = NormalizeCountryCode(f.Country)
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Query != "" {
		pattern := containsPattern(f.Query)
		filter["$or"] = bson.A{
			bson.M{"title": pattern},
			bson.M{"slug": pattern},
		}
	}
	return filter
}

// ListTours returns one page of tours, newest first. Pages are served from
// the list cache when possible.
func (s *tourService) ListTours(ctx context.Context, f TourFilter) (*TourPage, error) {
	f = f.normalize()
	key := f.cacheKey()

	if s.cache != nil {
		var cached TourPage
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("tour list cache read failed", zap.Error(err))
		} else if hit {
			metrics.TourListCache.WithLabelValues("hit").Inc()
			return &cached, nil
		}
		metrics.TourListCache.WithLabelValues("miss").Inc()
	}

	collection := s.db.Collection(toursCollection)
	filter := tourListFilter(f)
	total, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to count tours: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((f.Page - 1) * f.PageSize)).
		SetLimit(int64(f.PageSize))
	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to execute tour list query: %w", err)
	}
	defer cursor.Close(ctx)

	var tours []models.Tour
	if err = cursor.All(ctx, &tours); err != nil {
		return nil, fmt.Errorf("failed to decode tour list results: %w", err)
	}

	page := &TourPage{
		Items:      make([]models.TourView, 0, len(tours)),
		Total:      total,
		Page:       f.Page,
		PageSize:   f.PageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(f.PageSize))),
	}
	for i := range tours {
		page.Items = append(page.Items, tours[i].ToView())
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, page); err != nil {
			s.logger.Warn("tour list cache write failed", zap.Error(err))
		}
	}
	return page, nil
}

// UpdateTour applies a partial update. A new title without an explicit slug
// re-derives the slug.
func (s *tourService) UpdateTour(ctx context.Context, id int64, payload map[string]interface{}) (*models.Tour, error) {
	existing, err := s.FindTourByID(ctx, id)
	if err != nil {
		return nil, err
	}

	touched := applyTourPayload(existing, payload)
	if errs := validateTourUpdate(existing, touched); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	set := bson.M{"updated_at": time.Now().UTC()}
	for _, field := range touched {
		switch field {
		case "title":
			set["title"] = existing.Title
		case "status":
			set["status"] = existing.Status
		case "country":
			set["country"] = existing.Country
		case "countryCode":
			set["country_code"] = existing.CountryCode
		case "attractions":
			set["attractions"] = existing.Attractions
		case "purpose":
			set["purpose"] = existing.Purpose
		case "dateStart":
			set["date_start"] = existing.DateStart
		case "dateEnd":
			set["date_end"] = existing.DateEnd
		case "accommodation":
			set["accommodation_name"] = existing.AccommodationName
			set["room_type"] = existing.RoomType
			set["child_room_type"] = existing.ChildRoomType
		case "dayPlans":
			set["day_plans"] = existing.DayPlans
		case "includedItems":
			set["included_items"] = existing.IncludedItems
		case "excludedItems":
			set["excluded_items"] = existing.ExcludedItems
		case "packagePrice":
			set["package_price"] = existing.PackagePrice
		case "discountPercent":
			set["discount_percent"] = existing.DiscountPercent
		case "additionalCost":
			set["additional_cost"] = existing.AdditionalCost
		case "gallery":
			set["gallery"] = existing.Gallery
		case "notes":
			set["notes"] = existing.Notes
		case "maxGuests":
			set["max_guests"] = existing.MaxGuests
		}
	}

	slugBase := ""
	if v, ok := payload["slug"]; ok {
		if requested, ok := toString(v); ok && requested != "" {
			slugBase = Slugify(requested, "")
		}
	} else if containsString(touched, "title") {
		slugBase = Slugify(existing.Title, firstNonEmpty(existing.Country, existing.CountryCode))
	}

	var updated models.Tour
	operation := func() error {
		if slugBase != "" {
			slug, err := s.allocateSlug(ctx, slugBase, id)
			if err != nil {
				return err
			}
			set["slug"] = slug
		}
		opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
		return s.db.Collection(toursCollection).FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": set}, opts).Decode(&updated)
	}
	if err := db.Try(operation); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to update tour %d: %w", id, err)
	}

	s.invalidateLists(ctx)
	return &updated, nil
}

// PublishTour marks a tour as published.
func (s *tourService) PublishTour(ctx context.Context, id int64) (*models.Tour, error) {
	update := bson.M{"$set": bson.M{"status": models.TourStatusPublished, "updated_at": time.Now().UTC()}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var updated models.Tour
	err := s.db.Collection(toursCollection).FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&updated)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, mongo.ErrNoDocuments
		}
		return nil, fmt.Errorf("failed to publish tour %d: %w", id, err)
	}
	s.invalidateLists(ctx)
	return &updated, nil
}

// DeleteTour removes a tour permanently.
func (s *tourService) DeleteTour(ctx context.Context, id int64) error {
	result, err := s.db.Collection(toursCollection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("db error deleting tour %d: %w", id, err)
	}
	if result.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	s.invalidateLists(ctx)
	return nil
}

func (s *tourService) invalidateLists(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidatePrefix(ctx, tourListPrefix); err != nil {
		s.logger.Warn("tour list cache invalidation failed", zap.Error(err))
	}
}

// applyTourPayload overlays payload onto t and returns the names of the
// fields it changed.
func applyTourPayload(t *models.Tour, payload map[string]interface{}) []string {
	var touched []string
	mark := func(name string) { touched = append(touched, name) }

	if v, ok := toString(payload["title"]); ok && payload["title"] != nil {
		t.Title = v
		mark("title")
	}
	if v, ok := toString(payload["status"]); ok && v != "" {
		t.Status = v
		mark("status")
	}
	if v, ok := toString(payload["country"]); ok && payload["country"] != nil {
		t.Country = v
		mark("country")
	}
	if raw, found := lookup(payload, "", "", "countryCode", "country"); found {
		if v, ok := toString(raw); ok && v != "" {
			t.CountryCode = NormalizeCountryCode(v)
			mark("countryCode")
		}
	}
	if v, ok := payload["attractions"]; ok {
		if l, ok := toList(v); ok {
			t.Attractions = l
			mark("attractions")
		}
	}
	if v, ok := toString(payload["purpose"]); ok && payload["purpose"] != nil {
		t.Purpose = v
		mark("purpose")
	}
	if v, ok := toString(payload["dateStart"]); ok && payload["dateStart"] != nil {
		t.DateStart = v
		mark("dateStart")
	}
	if v, ok := toString(payload["dateEnd"]); ok && payload["dateEnd"] != nil {
		t.DateEnd = v
		mark("dateEnd")
	}

	accommodationTouched := false
	if raw, found := lookup(payload, "accommodation", "name", "accommodationName", "accommodation"); found {
		if v, ok := toString(raw); ok {
			t.AccommodationName = v
			accommodationTouched = true
		}
	}
	if raw, found := lookup(payload, "accommodation", "roomType", "roomType"); found {
		if v, ok := toString(raw); ok {
			t.RoomType = v
			accommodationTouched = true
		}
	}
	if raw, found := lookup(payload, "accommodation", "childRoomType", "childRoomType"); found {
		if v, ok := toString(raw); ok {
			t.ChildRoomType = v
			accommodationTouched = true
		}
	}
	if accommodationTouched {
		mark("accommodation")
	}

	if v, ok := payload["dayPlans"]; ok {
		if l, ok := toList(v); ok {
			t.DayPlans = NormalizeDayPlans(l)
			mark("dayPlans")
		}
	}
	if v, ok := payload["includedItems"]; ok {
		if l, ok := toList(v); ok {
			t.IncludedItems = l
			mark("includedItems")
		}
	}
	if v, ok := payload["excludedItems"]; ok {
		if l, ok := toList(v); ok {
			t.ExcludedItems = l
			mark("excludedItems")
		}
	}
	if v, ok := payload["gallery"]; ok {
		if l, ok := toList(v); ok {
			t.Gallery = l
			mark("gallery")
		}
	}
	for _, f := range []struct {
		name string
		dst  *float64
	}{
		{"packagePrice", &t.PackagePrice},
		{"discountPercent", &t.DiscountPercent},
		{"additionalCost", &t.AdditionalCost},
	} {
		if v, present := payload[f.name]; present {
			if n, ok := pricing.ToFloat(v); ok {
				*f.dst = n
				mark(f.name)
			}
		}
	}
	if v, ok := toString(payload["notes"]); ok && payload["notes"] != nil {
		t.Notes = v
		mark("notes")
	}
	if v, present := payload["maxGuests"]; present {
		if n, ok := toInt(v); ok {
			if n <= 0 {
				n = models.DefaultMaxGuests
			}
			t.MaxGuests = n
			mark("maxGuests")
		}
	}
	return touched
}

// NormalizeDayPlans converts the accepted day plan shapes into DayPlan values.
// Items default to 09:00; legacy {plan} or {activity} entries become one item.
func NormalizeDayPlans(raw []interface{}) []models.DayPlan {
	plans := make([]models.DayPlan, 0, len(raw))
	for i, entry := range raw {
		m, _ := entry.(map[string]interface{})
		day, _ := toInt(m["day"])
		if day <= 0 {
			day = i + 1
		}
		title, _ := toString(m["title"])
		if title == "" {
			title = fmt.Sprintf("Day %d", day)
		}
		plan := models.DayPlan{Day: day, Title: title, Items: []models.DayPlanItem{}}

		if items, ok := m["items"].([]interface{}); ok {
			for _, it := range items {
				plan.Items = append(plan.Items, normalizeDayPlanItem(it))
			}
		} else if legacy := firstNonEmpty(stringValue(m["plan"]), stringValue(m["activity"])); legacy != "" {
			plan.Items = append(plan.Items, models.DayPlanItem{Time: "09:00", Name: legacy})
		}
		plans = append(plans, plan)
	}
	return plans
}

func normalizeDayPlanItem(it interface{}) models.DayPlanItem {
	item := models.DayPlanItem{Time: "09:00"}
	m, ok := it.(map[string]interface{})
	if !ok {
		item.Name = stringValue(it)
		return item
	}
	if t := stringValue(m["time"]); t != "" {
		item.Time = t
	}
	item.Name = firstNonEmpty(stringValue(m["name"]), stringValue(m["activity"]))
	return item
}

func validateTour(t *models.Tour, payload map[string]interface{}) []string {
	var errs []string
	if strings.TrimSpace(t.Title) == "" {
		errs = append(errs, "Title is required")
	}
	if t.DateStart == "" {
		errs = append(errs, "Start date is required")
	}
	if t.DateEnd == "" {
		errs = append(errs, "End date is required")
	}
	errs = append(errs, validateTourDates(t)...)
	if _, found := lookup(payload, "", "", "countryCode", "country"); !found {
		errs = append(errs, "Country or country code is required")
	}
	errs = append(errs, validateTourPrices(t)...)
	return errs
}

func validateTourUpdate(t *models.Tour, touched []string) []string {
	var errs []string
	if containsString(touched, "title") && strings.TrimSpace(t.Title) == "" {
		errs = append(errs, "Title is required")
	}
	if containsString(touched, "status") && t.Status != models.TourStatusDraft && t.Status != models.TourStatusPublished {
		errs = append(errs, "Status must be draft or published")
	}
	if containsString(touched, "dateStart") || containsString(touched, "dateEnd") {
		errs = append(errs, validateTourDates(t)...)
	}
	errs = append(errs, validateTourPrices(t)...)
	return errs
}

func validateTourDates(t *models.Tour) []string {
	var errs []string
	start, startOK := pricing.ParseDate(t.DateStart)
	end, endOK := pricing.ParseDate(t.DateEnd)
	if t.DateStart != "" && !startOK {
		errs = append(errs, "Start date is invalid")
	}
	if t.DateEnd != "" && !endOK {
		errs = append(errs, "End date is invalid")
	}
	if startOK && endOK && end.Before(start) {
		errs = append(errs, "End date must be after start date")
	}
	return errs
}

func validateTourPrices(t *models.Tour) []string {
	var errs []string
	if t.PackagePrice < 0 {
		errs = append(errs, "Package price must be non-negative")
	}
	if t.DiscountPercent < 0 || t.DiscountPercent > 100 {
		errs = append(errs, "Discount percent must be between 0 and 100")
	}
	return errs
}

func stringValue(v interface{}) string {
	s, _ := toString(v)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

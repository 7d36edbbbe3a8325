package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"nguide/admin/internal/config"
	"nguide/admin/internal/models"
	"nguide/admin/internal/utils"
)

func TestNormalizeDayPlans(t *testing.T) {
	raw := []interface{}{
		map[string]interface{}{
			"title": "Arrival",
			"items": []interface{}{
				map[string]interface{}{"time": "14:00", "name": "Check-in"},
				map[string]interface{}{"activity": "Night market"},
				"Dinner cruise",
			},
		},
		map[string]interface{}{"day": float64(5), "plan": "Free day"},
		map[string]interface{}{"activity": "Departure"},
		"garbage",
	}

	plans := NormalizeDayPlans(raw)
	require.Len(t, plans, 4)

	assert.Equal(t, models.DayPlan{Day: 1, Title: "Arrival", Items: []models.DayPlanItem{
		{Time: "14:00", Name: "Check-in"},
		{Time: "09:00", Name: "Night market"},
		{Time: "09:00", Name: "Dinner cruise"},
	}}, plans[0])
	assert.Equal(t, models.DayPlan{Day: 5, Title: "Day 5", Items: []models.DayPlanItem{{Time: "09:00", Name: "Free day"}}}, plans[1])
	assert.Equal(t, "Departure", plans[2].Items[0].Name)
	assert.Equal(t, models.DayPlan{Day: 4, Title: "Day 4", Items: []models.DayPlanItem{}}, plans[3])
}

func TestApplyTourPayload(t *testing.T) {
	tour := &models.Tour{MaxGuests: 8}
	touched := applyTourPayload(tour, map[string]interface{}{
		"title":         "Mekong Discovery",
		"country":       "Laos",
		"attractions":   `["Luang Prabang","Kuang Si"]`,
		"accommodation": map[string]interface{}{"name": "Riverside Lodge", "roomType": "Twin"},
		"includedItems": "Guide",
		"maxGuests":     float64(0),
		"packagePrice":  "12900",
	})

	assert.Equal(t, "Mekong Discovery", tour.Title)
	assert.Equal(t, "LA", tour.CountryCode)
	assert.Equal(t, []interface{}{"Luang Prabang", "Kuang Si"}, tour.Attractions)
	assert.Equal(t, "Riverside Lodge", tour.AccommodationName)
	assert.Equal(t, "Twin", tour.RoomType)
	assert.Equal(t, []interface{}{"Guide"}, tour.IncludedItems)
	assert.Equal(t, models.DefaultMaxGuests, tour.MaxGuests)
	assert.Equal(t, 12900.0, tour.PackagePrice)
	assert.ElementsMatch(t, []string{
		"title", "country", "countryCode", "attractions", "accommodation",
		"includedItems", "maxGuests", "packagePrice",
	}, touched)
}

func TestValidateTour(t *testing.T) {
	tour := &models.Tour{DateStart: "2025-05-10", DateEnd: "2025-05-01", DiscountPercent: 120}
	errs := validateTour(tour, map[string]interface{}{})

	assert.ElementsMatch(t, []string{
		"Title is required",
		"End date must be after start date",
		"Country or country code is required",
		"Discount percent must be between 0 and 100",
	}, errs)
}

func TestValidateTourUpdate_StatusAndTouchedOnly(t *testing.T) {
	tour := &models.Tour{Title: "", Status: "archived", DateStart: "bad"}
	errs := validateTourUpdate(tour, []string{"status"})
	assert.Equal(t, []string{"Status must be draft or published"}, errs)
}

func TestTourFilter_Normalize(t *testing.T) {
	f := TourFilter{Page: 0, PageSize: 500}.normalize()
	assert.Equal(t, 1, f.Page)
	assert.Equal(t, 50, f.PageSize)

	f = TourFilter{}.normalize()
	assert.Equal(t, 12, f.PageSize)
	assert.True(t, strings.HasPrefix(f.cacheKey(), "tours:list?"))
}

// memoryListCache is an in-process ListCache for service tests.
type memoryListCache struct {
	entries     map[string]*TourPage
	invalidated int
}

func newMemoryListCache() *memoryListCache {
	return &memoryListCache{entries: map[string]*TourPage{}}
}

func (c *memoryListCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	page, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	*dest.(*TourPage) = *page
	return true, nil
}

func (c *memoryListCache) Set(_ context.Context, key string, value interface{}) error {
	c.entries[key] = value.(*TourPage)
	return nil
}

func (c *memoryListCache) InvalidatePrefix(_ context.Context, prefix string) error {
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	c.invalidated++
	return nil
}

func validTourPayload(title string) map[string]interface{} {
	return map[string]interface{}{
		"title":       title,
		"countryCode": "TH",
		"dateStart":   "2025-05-01",
		"dateEnd":     "2025-05-04",
		"dayPlans":    []interface{}{map[string]interface{}{"plan": "Old town walk"}},
	}
}

func TestTourService_Lifecycle(t *testing.T) {
	database := utils.SetupTestDB(t, "testdb_tour_service", toursCollection, "counters")
	listCache := newMemoryListCache()
	svc := NewTourService(database, &config.Config{}, listCache, nil)
	ctx := context.Background()

	first, err := svc.CreateTour(ctx, validTourPayload("Chiang Mai Highlights"))
	require.NoError(t, err)
	assert.Equal(t, "chiang-mai-highlights-th", first.Slug)
	assert.Equal(t, models.TourStatusDraft, first.Status)
	assert.Equal(t, models.DefaultMaxGuests, first.MaxGuests)

	second, err := svc.CreateTour(ctx, validTourPayload("Chiang Mai Highlights"))
	require.NoError(t, err)
	assert.Equal(t, "chiang-mai-highlights-th-1", second.Slug)

	page, err := svc.ListTours(ctx, TourFilter{PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	require.Len(t, page.Items, 1)
	assert.Equal(t, second.ID, page.Items[0].ID)
	assert.Equal(t, 4, page.Items[0].Days)
	assert.Len(t, listCache.entries, 1)

	published, err := svc.PublishTour(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TourStatusPublished, published.Status)
	assert.Empty(t, listCache.entries)

	renamed, err := svc.UpdateTour(ctx, second.ID, map[string]interface{}{"title": "Lanna Trails"})
	require.NoError(t, err)
	assert.Equal(t, "lanna-trails-th", renamed.Slug)

	bySlug, err := svc.FindTourBySlug(ctx, "lanna-trails-th")
	require.NoError(t, err)
	assert.Equal(t, second.ID, bySlug.ID)

	require.NoError(t, svc.DeleteTour(ctx, first.ID))
	_, err = svc.FindTourByID(ctx, first.ID)
	assert.ErrorIs(t, err, mongo.ErrNoDocuments)
	assert.ErrorIs(t, svc.DeleteTour(ctx, first.ID), mongo.ErrNoDocuments)
}

func TestTourService_CreateValidation(t *testing.T) {
	database := utils.SetupTestDB(t, "testdb_tour_service_validation", toursCollection, "counters")
	svc := NewTourService(database, &config.Config{}, nil, nil)

	_, err := svc.CreateTour(context.Background(), map[string]interface{}{"title": " "})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Errors, "Title is required")
}

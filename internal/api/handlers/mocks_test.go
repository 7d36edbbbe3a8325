package handlers_test

import (
	"context"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/mock"
	"nguide/admin/internal/access"
	"nguide/admin/internal/models"
	"nguide/admin/internal/services"
)

// --- Mocks ---

// MockQuotationService
type MockQuotationService struct {
	mock.Mock
}

func (m *MockQuotationService) CreateQuotation(ctx context.Context, payload map[string]interface{}, actor string) (*models.Quotation, error) {
	args := m.Called(ctx, payload, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quotation), args.Error(1)
}

func (m *MockQuotationService) FindQuotationByID(ctx context.Context, id int64) (*models.Quotation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quotation), args.Error(1)
}

func (m *MockQuotationService) FindQuotationByNumber(ctx context.Context, number string) (*models.Quotation, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quotation), args.Error(1)
}

func (m *MockQuotationService) ListQuotations(ctx context.Context, filter services.QuotationFilter) ([]models.Quotation, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]models.Quotation), args.Get(1).(int64), args.Error(2)
}

func (m *MockQuotationService) UpdateQuotation(ctx context.Context, id int64, payload map[string]interface{}, actor string) (*models.Quotation, error) {
	args := m.Called(ctx, id, payload, actor)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quotation), args.Error(1)
}

func (m *MockQuotationService) DeleteQuotation(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQuotationService) ListQuotationsWithoutAccessCode(ctx context.Context, limit int) ([]models.Quotation, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Quotation), args.Error(1)
}

// MockAccessService
type MockAccessService struct {
	mock.Mock
}

func (m *MockAccessService) ShareQuotation(ctx context.Context, q *models.Quotation, baseURL string) (*access.ShareInfo, error) {
	args := m.Called(ctx, q, baseURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*access.ShareInfo), args.Error(1)
}

func (m *MockAccessService) RegenerateAccessCode(ctx context.Context, q *models.Quotation, baseURL string) (*access.ShareInfo, error) {
	args := m.Called(ctx, q, baseURL)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*access.ShareInfo), args.Error(1)
}

func (m *MockAccessService) VerifyCredentials(ctx context.Context, id int64, code string) (*access.Grant, error) {
	args := m.Called(ctx, id, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*access.Grant), args.Error(1)
}

func (m *MockAccessService) VerifyAccess(ctx context.Context, id int64, token string) (*models.Quotation, error) {
	args := m.Called(ctx, id, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Quotation), args.Error(1)
}

// MockTourService
type MockTourService struct {
	mock.Mock
}

func (m *MockTourService) CreateTour(ctx context.Context, payload map[string]interface{}) (*models.Tour, error) {
	args := m.Called(ctx, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tour), args.Error(1)
}

func (m *MockTourService) FindTourByID(ctx context.Context, id int64) (*models.Tour, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tour), args.Error(1)
}

func (m *MockTourService) FindTourBySlug(ctx context.Context, slug string) (*models.Tour, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tour), args.Error(1)
}

func (m *MockTourService) ListTours(ctx context.Context, filter services.TourFilter) (*services.TourPage, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*services.TourPage), args.Error(1)
}

func (m *MockTourService) UpdateTour(ctx context.Context, id int64, payload map[string]interface{}) (*models.Tour, error) {
	args := m.Called(ctx, id, payload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tour), args.Error(1)
}

func (m *MockTourService) PublishTour(ctx context.Context, id int64) (*models.Tour, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Tour), args.Error(1)
}

func (m *MockTourService) DeleteTour(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

// MockAsynqClient implements handlers.IAsynqClient
type MockAsynqClient struct {
	mock.Mock
}

func (m *MockAsynqClient) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	mockArgs := []interface{}{ctx, task}
	for _, opt := range opts {
		mockArgs = append(mockArgs, opt)
	}
	args := m.Called(mockArgs...)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*asynq.TaskInfo), args.Error(1)
}

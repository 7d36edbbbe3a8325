package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"nguide/admin/internal/access"
	"nguide/admin/internal/api/middleware"
	"nguide/admin/internal/config"
	"nguide/admin/internal/models"
	"nguide/admin/internal/services"
	"nguide/admin/internal/tasks"
)

// IAsynqClient defines the interface for the Asynq client methods used by the handlers.
type IAsynqClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// invalidCredentials is the single message for every failed public access.
const invalidCredentials = "Invalid or expired access credentials"

// RestQuotationHandler handles REST requests for quotations.
type RestQuotationHandler struct {
	cfg              *config.Config
	quotationService services.IQuotationService
	accessService    access.IAccessService
	taskClient       IAsynqClient
	logger           *zap.Logger
}

// NewRestQuotationHandler creates a new RestQuotationHandler. taskClient may be nil.
func NewRestQuotationHandler(cfg *config.Config, quotationService services.IQuotationService, accessService access.IAccessService, taskClient IAsynqClient, logger *zap.Logger) *RestQuotationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RestQuotationHandler{
		cfg:              cfg,
		quotationService: quotationService,
		accessService:    accessService,
		taskClient:       taskClient,
		logger:           logger,
	}
}

// CreateQuotation handles POST /v1/quotations
func (h *RestQuotationHandler) CreateQuotation(c *gin.Context) {
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	q, err := h.quotationService.CreateQuotation(c.Request.Context(), payload, actorID(c))
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Errors})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q.ToView())
}

// GetQuotation handles GET /v1/quotations/:id
func (h *RestQuotationHandler) GetQuotation(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	q, err := h.quotationService.FindQuotationByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q.ToView())
}

// ListQuotations handles GET /v1/quotations
func (h *RestQuotationHandler) ListQuotations(c *gin.Context) {
	filter := services.QuotationFilter{
		Status:  c.Query("status"),
		Country: c.Query("country"),
		Email:   c.Query("email"),
		Phone:   c.Query("phone"),
		Query:   strings.TrimSpace(c.Query("q")),
	}
	if from, ok := parseQueryTime(c.Query("createdFrom"), false); ok {
		filter.CreatedFrom = &from
	}
	if to, ok := parseQueryTime(c.Query("createdTo"), true); ok {
		filter.CreatedTo = &to
	}

	list, total, err := h.quotationService.ListQuotations(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	items := make([]models.QuotationView, 0, len(list))
	for i := range list {
		items = append(items, list[i].ToView())
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": total})
}

// parseQueryTime accepts a date or an RFC 3339 timestamp. A bare date used
// as an upper bound covers the whole day.
func parseQueryTime(s string, endOfDay bool) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, false
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return t, true
}

// UpdateQuotation handles PUT /v1/quotations/:id
func (h *RestQuotationHandler) UpdateQuotation(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	q, err := h.quotationService.UpdateQuotation(c.Request.Context(), id, payload, actorID(c))
	if err != nil {
		var verr *services.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"errors": verr.Errors})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, q.ToView())
}

// DeleteQuotation handles DELETE /v1/quotations/:id
func (h *RestQuotationHandler) DeleteQuotation(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.quotationService.DeleteQuotation(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GenerateAccessCode handles POST /v1/quotations/:id/generate-access-code
func (h *RestQuotationHandler) GenerateAccessCode(c *gin.Context) {
	h.share(c, h.accessService.ShareQuotation)
}

// RegenerateAccessCode handles POST /v1/quotations/:id/regenerate-access-code
func (h *RestQuotationHandler) RegenerateAccessCode(c *gin.Context) {
	h.share(c, h.accessService.RegenerateAccessCode)
}

type shareFunc func(ctx context.Context, q *models.Quotation, baseURL string) (*access.ShareInfo, error)

func (h *RestQuotationHandler) share(c *gin.Context, fn shareFunc) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var req struct {
		NotifyCustomer bool `json:"notifyCustomer"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, middleware.ErrorEnvelope(middleware.CodeValidation, "Invalid request body", nil))
			return
		}
	}

	ctx := c.Request.Context()
	q, err := h.quotationService.FindQuotationByID(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	info, err := fn(ctx, q, publicBaseURL(c, h.cfg))
	if err != nil {
		respondError(c, err)
		return
	}

	if req.NotifyCustomer {
		if queued := h.enqueueShareNotification(ctx, q, info); queued {
			c.Header("X-Notification-Queued", "true")
		}
	}
	c.JSON(http.StatusOK, info)
}

func (h *RestQuotationHandler) enqueueShareNotification(ctx context.Context, q *models.Quotation, info *access.ShareInfo) bool {
	if h.taskClient == nil || q.CustomerEmail == "" {
		return false
	}
	task, err := tasks.NewShareNotificationTask(tasks.ShareNotificationPayload{
		QuotationID:     q.ID,
		QuotationNumber: info.QuotationNumber,
		CustomerName:    q.CustomerName,
		To:              q.CustomerEmail,
		ShareURL:        info.ShareURL,
		AccessCode:      info.AccessCode,
	})
	if err == nil {
		_, err = h.taskClient.EnqueueContext(ctx, task)
	}
	if err != nil {
		h.logger.Error("failed to enqueue share notification", zap.Int64("quotation_id", q.ID), zap.Error(err))
		return false
	}
	return true
}

// resolveQuotationID accepts a numeric id or a quotation number.
func (h *RestQuotationHandler) resolveQuotationID(ctx context.Context, raw interface{}) (int64, error) {
	switch v := raw.(type) {
	case float64:
		if v <= 0 || v != float64(int64(v)) {
			return 0, access.ErrValidation
		}
		return int64(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0, access.ErrValidation
		}
		if id, err := strconv.ParseInt(s, 10, 64); err == nil {
			if id <= 0 {
				return 0, access.ErrValidation
			}
			return id, nil
		}
		q, err := h.quotationService.FindQuotationByNumber(ctx, s)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return 0, access.ErrNotFound
			}
			return 0, err
		}
		return q.ID, nil
	}
	return 0, access.ErrValidation
}

// accessCodeString accepts the code as a JSON string or a whole JSON number.
func accessCodeString(raw interface{}) string {
	switch v := raw.(type) {
	case string:
		return v
	case float64:
		if v >= 0 && v == math.Trunc(v) && v < 1e15 {
			return strconv.FormatInt(int64(v), 10)
		}
	}
	return ""
}

// VerifyAccessCode handles POST /v1/quotations/verify
func (h *RestQuotationHandler) VerifyAccessCode(c *gin.Context) {
	var req struct {
		QuotationID interface{} `json:"quotationId"`
		AccessCode  interface{} `json:"accessCode"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "quotationId and accessCode are required"})
		return
	}

	ctx := c.Request.Context()
	id, err := h.resolveQuotationID(ctx, req.QuotationID)
	var grant *access.Grant
	if err == nil {
		grant, err = h.accessService.VerifyCredentials(ctx, id, accessCodeString(req.AccessCode))
	}
	switch {
	case err == nil:
	case errors.Is(err, access.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "quotationId and accessCode are required"})
		return
	case errors.Is(err, access.ErrNotFound), errors.Is(err, access.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"valid": false, "error": invalidCredentials})
		return
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"valid": false, "error": "Internal Server Error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":     true,
		"token":     grant.Token,
		"expiresAt": grant.ExpiresAt,
		"quotation": gin.H{
			"id":              grant.Quotation.ID,
			"quotationNumber": grant.Quotation.QuotationNumber,
			"customerName":    grant.Quotation.CustomerName,
		},
	})
}

// GetPublicQuotation handles GET /v1/quotations/:id/public
func (h *RestQuotationHandler) GetPublicQuotation(c *gin.Context) {
	token, ok := middleware.BearerToken(c)
	if !ok {
		middleware.AbortWithError(c, http.StatusUnauthorized, middleware.CodeUnauthorized, invalidCredentials)
		return
	}

	ctx := c.Request.Context()
	id, err := h.resolveQuotationID(ctx, c.Param("id"))
	if err == nil {
		var q *models.Quotation
		q, err = h.accessService.VerifyAccess(ctx, id, token)
		if err == nil {
			c.JSON(http.StatusOK, q.ToView())
			return
		}
	}
	if errors.Is(err, access.ErrUnauthorized) || errors.Is(err, access.ErrNotFound) || errors.Is(err, access.ErrValidation) {
		middleware.AbortWithError(c, http.StatusUnauthorized, middleware.CodeUnauthorized, invalidCredentials)
		return
	}
	respondError(c, err)
}

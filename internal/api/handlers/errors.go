package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"
	"nguide/admin/internal/access"
	"nguide/admin/internal/api/middleware"
	"nguide/admin/internal/config"
	"nguide/admin/internal/services"
	"nguide/admin/internal/utils"
)

// respondError maps service errors onto the error envelope.
func respondError(c *gin.Context, err error) {
	var verr *services.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, middleware.ErrorEnvelope(middleware.CodeValidation, "Validation failed", verr.Errors))
	case errors.Is(err, mongo.ErrNoDocuments), errors.Is(err, access.ErrNotFound):
		c.JSON(http.StatusNotFound, middleware.ErrorEnvelope(middleware.CodeNotFound, "Not found", nil))
	case errors.Is(err, services.ErrDuplicateQuotationNumber):
		c.JSON(http.StatusConflict, middleware.ErrorEnvelope(middleware.CodeConflict, err.Error(), nil))
	case errors.Is(err, utils.ErrAllocationExhausted):
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, middleware.ErrorEnvelope(middleware.CodeInternal, "Could not allocate a unique value, please retry", nil))
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, middleware.ErrorEnvelope(middleware.CodeInternal, "Internal Server Error", nil))
	}
}

// parseIDParam reads a positive numeric :id.
func parseIDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, middleware.ErrorEnvelope(middleware.CodeValidation, "Invalid ID format", nil))
		return 0, false
	}
	return id, true
}

// bindPayload decodes a JSON object body.
func bindPayload(c *gin.Context) (map[string]interface{}, bool) {
	var payload map[string]interface{}
	if err := c.ShouldBindJSON(&payload); err != nil || payload == nil {
		c.JSON(http.StatusBadRequest, middleware.ErrorEnvelope(middleware.CodeValidation, "Invalid request body", nil))
		return nil, false
	}
	return payload, true
}

// publicBaseURL is the configured public URL or, failing that, the scheme
// and host the request came in on.
func publicBaseURL(c *gin.Context, cfg *config.Config) string {
	if cfg != nil && cfg.PublicBaseURL != "" {
		return cfg.PublicBaseURL
	}
	scheme := "http"
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	} else if c.Request.TLS != nil {
		scheme = "https"
	}
	host := c.GetHeader("X-Forwarded-Host")
	if host == "" {
		host = c.Request.Host
	}
	return scheme + "://" + host
}

func actorID(c *gin.Context) string {
	return c.GetString(middleware.ContextKeyUserID)
}

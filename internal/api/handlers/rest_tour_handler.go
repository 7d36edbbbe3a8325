package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"nguide/admin/internal/services"
)

// RestTourHandler handles REST requests for tours.
type RestTourHandler struct {
	tourService services.ITourService
}

// NewRestTourHandler creates a new RestTourHandler.
func NewRestTourHandler(tourService services.ITourService) *RestTourHandler {
	return &RestTourHandler{tourService: tourService}
}

// CreateTour handles POST /v1/tours
func (h *RestTourHandler) CreateTour(c *gin.Context) {
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	tour, err := h.tourService.CreateTour(c.Request.Context(), payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tour.ToView())
}

// ListTours handles GET /v1/tours
func (h *RestTourHandler) ListTours(c *gin.Context) {
	// Out-of-range paging is clamped by the service.
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("pageSize", "0"))

	result, err := h.tourService.ListTours(c.Request.Context(), services.TourFilter{
		Country:  strings.TrimSpace(c.Query("country")),
		Status:   strings.TrimSpace(c.Query("status")),
		Query:    strings.TrimSpace(c.Query("q")),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.Header("X-Total-Count", strconv.FormatInt(result.Total, 10))
	c.Header("X-Page", strconv.Itoa(result.Page))
	c.Header("X-Page-Size", strconv.Itoa(result.PageSize))
	c.Header("X-Total-Pages", strconv.Itoa(result.TotalPages))
	c.JSON(http.StatusOK, gin.H{"items": result.Items, "total": result.Total})
}

// GetTour handles GET /v1/tours/:id
func (h *RestTourHandler) GetTour(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	tour, err := h.tourService.FindTourByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tour.ToView())
}

// GetTourBySlug handles GET /v1/tours/slug/:slug
func (h *RestTourHandler) GetTourBySlug(c *gin.Context) {
	tour, err := h.tourService.FindTourBySlug(c.Request.Context(), strings.ToLower(c.Param("slug")))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tour.ToView())
}

// UpdateTour handles PUT and PATCH /v1/tours/:id. Both are partial.
func (h *RestTourHandler) UpdateTour(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	payload, ok := bindPayload(c)
	if !ok {
		return
	}
	tour, err := h.tourService.UpdateTour(c.Request.Context(), id, payload)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tour.ToView())
}

// PublishTour handles POST /v1/tours/:id/publish
func (h *RestTourHandler) PublishTour(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	tour, err := h.tourService.PublishTour(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tour.ToView())
}

// DeleteTour handles DELETE /v1/tours/:id
func (h *RestTourHandler) DeleteTour(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if err := h.tourService.DeleteTour(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "hardDeleted": true})
}

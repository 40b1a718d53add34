package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/middleware"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
)

// ImpactService is the gateway behind the impact dashboard routes.
type ImpactService interface {
	FetchCurrentMetrics(ctx context.Context) (*models.ImpactMetrics, error)
	FetchRecentActivities(ctx context.Context, limit int) ([]models.RecentActivity, error)
	PublishMetrics(ctx context.Context, m models.ImpactMetrics) (*models.ImpactMetrics, error)
	RecordActivity(ctx context.Context, req models.CreateActivityRequest) (*models.RecentActivity, error)
}

// ImpactHandler serves the public impact dashboard
type ImpactHandler struct {
	impact ImpactService
}

func NewImpactHandler(impact ImpactService) *ImpactHandler {
	return &ImpactHandler{impact: impact}
}

func (h *ImpactHandler) RegisterImpactRoutes(g *echo.Group) {
	coordinators := middleware.RequireRole(models.RoleCoordinator, models.RoleAdmin)
	g.GET("/impact/metrics", h.GetMetrics)
	g.PUT("/impact/metrics", h.PublishMetrics, coordinators)
	g.GET("/impact/activities", h.GetActivities)
	g.POST("/impact/activities", h.RecordActivity, coordinators)
}

func (h *ImpactHandler) GetMetrics(c echo.Context) error {
	metrics, err := h.impact.FetchCurrentMetrics(c.Request().Context())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": metrics})
}

// PublishMetrics replaces the dashboard snapshot
func (h *ImpactHandler) PublishMetrics(c echo.Context) error {
	var req models.ImpactMetrics
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	metrics, err := h.impact.PublishMetrics(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": metrics})
}

func (h *ImpactHandler) GetActivities(c echo.Context) error {
	activities, err := h.impact.FetchRecentActivities(c.Request().Context(), queryLimit(c))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"activities": activities}})
}

// RecordActivity adds a donation, adoption, volunteer or rescue entry to the feed
func (h *ImpactHandler) RecordActivity(c echo.Context) error {
	var req models.CreateActivityRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	activity, err := h.impact.RecordActivity(c.Request().Context(), req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": activity})
}

package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
)

// PreferencesService is the gateway behind the preference and device routes.
type PreferencesService interface {
	Get(ctx context.Context, userID string) (models.NotificationPreferences, error)
	Update(ctx context.Context, userID string, req models.UpdatePreferencesRequest) (models.NotificationPreferences, error)
	RegisterDevice(ctx context.Context, userID string, req models.RegisterDeviceRequest) (*models.DeviceToken, error)
	RemoveDevice(ctx context.Context, userID, token string) error
	Devices(ctx context.Context, userID string) ([]models.DeviceToken, error)
}

type PreferencesHandler struct {
	preferences PreferencesService
}

func NewPreferencesHandler(preferences PreferencesService) *PreferencesHandler {
	return &PreferencesHandler{preferences: preferences}
}

func (h *PreferencesHandler) RegisterPreferencesRoutes(g *echo.Group) {
	g.GET("/preferences", h.GetPreferences)
	g.PUT("/preferences", h.UpdatePreferences)
	g.GET("/devices", h.ListDevices)
	g.POST("/devices", h.RegisterDevice)
	g.DELETE("/devices/:token", h.RemoveDevice)
}

func (h *PreferencesHandler) GetPreferences(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	prefs, err := h.preferences.Get(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": prefs})
}

// UpdatePreferences saves the toggles present in the body; omitted toggles
// keep their stored value.
func (h *PreferencesHandler) UpdatePreferences(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req models.UpdatePreferencesRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	prefs, err := h.preferences.Update(c.Request().Context(), userID, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": prefs})
}

func (h *PreferencesHandler) ListDevices(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	devices, err := h.preferences.Devices(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "data": echo.Map{"devices": devices}})
}

// RegisterDevice stores an FCM registration token for push delivery
func (h *PreferencesHandler) RegisterDevice(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	var req models.RegisterDeviceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	device, err := h.preferences.RegisterDevice(c.Request().Context(), userID, req)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"success": true, "data": device})
}

func (h *PreferencesHandler) RemoveDevice(c echo.Context) error {
	userID, err := requireUser(c)
	if err != nil {
		return err
	}
	if err := h.preferences.RemoveDevice(c.Request().Context(), userID, c.Param("token")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

package handlers

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/middleware"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/service"
)

// httpError maps service errors onto HTTP status codes.
func httpError(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Resource not found")
	case errors.Is(err, service.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrRemoteUnavailable):
		log.Printf("Remote store unavailable: %v", err)
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Data store unavailable, please retry")
	}
	log.Printf("Unhandled error: %v", err)
	return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
}

func requireUser(c echo.Context) (string, error) {
	userID := middleware.UserID(c)
	if userID == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	}
	return userID, nil
}

func queryLimit(c echo.Context) int {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	return limit
}

package validators

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
)

func TestValidateRejectsUnknownNotificationType(t *testing.T) {
	v := NewValidator()
	n := models.Notification{
		ID:          "n1",
		Type:        "party_invite",
		Priority:    models.PriorityLow,
		Title:       "hello",
		RecipientID: "u1",
		CreatedAt:   time.Now(),
	}
	err := v.Validate(n)
	if err == nil {
		t.Fatalf("expected validation error for unknown type")
	}
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) || httpErr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 http error, got %v", err)
	}
}

func TestValidateAcceptsWellFormedNotification(t *testing.T) {
	v := NewValidator()
	n := models.Notification{
		ID:          "n1",
		Type:        models.NotificationMedicalAlert,
		Priority:    models.PriorityUrgent,
		Title:       "Bruno needs medication",
		RecipientID: "u1",
		CreatedAt:   time.Now(),
	}
	if err := v.Validate(n); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestStructRejectsNegativeMetric(t *testing.T) {
	v := NewValidator()
	m := models.MetricValue{Total: -1, Current: 0, Trend: models.TrendUp}
	if err := v.Struct(m); err == nil {
		t.Fatalf("expected negative total to be rejected")
	}
}

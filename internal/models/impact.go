package models

import (
	"strings"
	"time"
)

// Trend is a display-only direction signal for a metric.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// MetricValue describes one impact statistic.
type MetricValue struct {
	Total            int64    `json:"total" bson:"total" validate:"gte=0"`
	Current          int64    `json:"current" bson:"current" validate:"gte=0"`
	Trend            Trend    `json:"trend" bson:"trend" validate:"required,oneof=up down stable"`
	PercentageChange *float64 `json:"percentageChange,omitempty" bson:"percentage_change,omitempty"`
}

// ImpactMetrics is one snapshot of the impact dashboard (MongoDB)
type ImpactMetrics struct {
	ID                  string      `json:"id,omitempty" bson:"_id,omitempty"`
	AnimalsRescued      MetricValue `json:"animalsRescued" bson:"animals_rescued" validate:"required"`
	VolunteersActive    MetricValue `json:"volunteersActive" bson:"volunteers_active" validate:"required"`
	MealsProvided       MetricValue `json:"mealsProvided" bson:"meals_provided" validate:"required"`
	SuccessfulAdoptions MetricValue `json:"successfulAdoptions" bson:"successful_adoptions" validate:"required"`
	LastUpdated         time.Time   `json:"lastUpdated" bson:"last_updated"`
}

// ActivityType is the kind of event shown in the recent activity feed.
type ActivityType string

const (
	ActivityDonation  ActivityType = "donation"
	ActivityAdoption  ActivityType = "adoption"
	ActivityVolunteer ActivityType = "volunteer"
	ActivityRescue    ActivityType = "rescue"
)

// RecentActivityLimit bounds the recent activity feed.
const RecentActivityLimit = 10

// RecentActivity is one entry of the public activity feed (MongoDB)
type RecentActivity struct {
	ID          string       `json:"id" bson:"_id" validate:"required"`
	Type        ActivityType `json:"type" bson:"type" validate:"required,oneof=donation adoption volunteer rescue"`
	DisplayName string       `json:"displayName" bson:"display_name" validate:"required,max=100"`
	Timestamp   time.Time    `json:"timestamp" bson:"timestamp" validate:"required"`
	Message     string       `json:"message,omitempty" bson:"message,omitempty" validate:"max=500"`
}

// CreateActivityRequest defines the request body for recording an activity
type CreateActivityRequest struct {
	Type      ActivityType `json:"type" validate:"required,oneof=donation adoption volunteer rescue"`
	Name      string       `json:"name" validate:"max=200"`
	Anonymous bool         `json:"anonymous"`
	Message   string       `json:"message,omitempty" validate:"max=500"`
}

// DisplayName reduces a full name to what the public feed may show: the
// first name only, or "Anonymous".
func DisplayName(fullName string, anonymous bool) string {
	if anonymous {
		return "Anonymous"
	}
	fields := strings.Fields(fullName)
	if len(fields) == 0 {
		return "Anonymous"
	}
	first := fields[0]
	if r := []rune(first); len(r) > 50 {
		first = string(r[:50])
	}
	return first
}

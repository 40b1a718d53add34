package models

import "time"

// NotificationType is the closed set of notification kinds raised by task,
// medical and system triggers.
type NotificationType string

const (
	NotificationTaskReminder       NotificationType = "task_reminder"
	NotificationTaskAssigned       NotificationType = "task_assigned"
	NotificationTaskCompleted      NotificationType = "task_completed"
	NotificationMedicalAlert       NotificationType = "medical_alert"
	NotificationMedicalFollowup    NotificationType = "medical_followup"
	NotificationSystemAnnouncement NotificationType = "system_announcement"
	NotificationVolunteerUpdate    NotificationType = "volunteer_update"
)

// NotificationPriority ranks how prominently a notification is shown.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// Notification represents a volunteer notification (MongoDB)
type Notification struct {
	ID                string               `json:"id" bson:"_id" validate:"required"`
	Type              NotificationType     `json:"type" bson:"type" validate:"required,oneof=task_reminder task_assigned task_completed medical_alert medical_followup system_announcement volunteer_update"`
	Priority          NotificationPriority `json:"priority" bson:"priority" validate:"required,oneof=low medium high urgent"`
	Title             string               `json:"title" bson:"title" validate:"required,max=200"`
	Message           string               `json:"message" bson:"message" validate:"max=2000"`
	RecipientID       string               `json:"recipientId" bson:"recipient_id" validate:"required"`
	RelatedEntityID   string               `json:"relatedEntityId,omitempty" bson:"related_entity_id,omitempty"`
	RelatedEntityType string               `json:"relatedEntityType,omitempty" bson:"related_entity_type,omitempty"` // task, animal, medical_record
	Read              bool                 `json:"read" bson:"read"`
	ReadAt            *time.Time           `json:"readAt,omitempty" bson:"read_at,omitempty"`
	ActionURL         string               `json:"actionUrl,omitempty" bson:"action_url,omitempty" validate:"omitempty,max=2048"`
	CreatedAt         time.Time            `json:"createdAt" bson:"created_at" validate:"required"`
	ExpiresAt         *time.Time           `json:"expiresAt,omitempty" bson:"expires_at,omitempty"`
}

// Expired reports whether the notification is past its expiry at now.
func (n Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}

// CreateNotificationRequest defines the request body for raising a notification
type CreateNotificationRequest struct {
	Type              NotificationType     `json:"type" validate:"required,oneof=task_reminder task_assigned task_completed medical_alert medical_followup system_announcement volunteer_update"`
	Priority          NotificationPriority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high urgent"`
	Title             string               `json:"title" validate:"required,max=200"`
	Message           string               `json:"message" validate:"max=2000"`
	RecipientIDs      []string             `json:"recipientIds" validate:"required,min=1,max=500,dive,required"`
	RelatedEntityID   string               `json:"relatedEntityId,omitempty"`
	RelatedEntityType string               `json:"relatedEntityType,omitempty"`
	ActionURL         string               `json:"actionUrl,omitempty" validate:"omitempty,max=2048"`
	ExpiresAt         *time.Time           `json:"expiresAt,omitempty"`
}

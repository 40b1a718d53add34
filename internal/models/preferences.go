package models

import "time"

// NotificationPreferences holds a volunteer's delivery toggles (PostgreSQL).
// One record per user is enforced by the unique index on user_id.
type NotificationPreferences struct {
	ID                  uint      `json:"-" gorm:"primaryKey"`
	UserID              string    `json:"userId" gorm:"size:128;uniqueIndex"`
	EmailNotifications  bool      `json:"emailNotifications"`
	PushNotifications   bool      `json:"pushNotifications"`
	TaskReminders       bool      `json:"taskReminders"`
	MedicalAlerts       bool      `json:"medicalAlerts"`
	VolunteerUpdates    bool      `json:"volunteerUpdates"`
	SystemAnnouncements bool      `json:"systemAnnouncements"`
	DailyDigest         bool      `json:"dailyDigest"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// DefaultPreferences returns the toggles a user has before saving any.
func DefaultPreferences(userID string) NotificationPreferences {
	return NotificationPreferences{
		UserID:              userID,
		EmailNotifications:  true,
		PushNotifications:   true,
		TaskReminders:       true,
		MedicalAlerts:       true,
		VolunteerUpdates:    true,
		SystemAnnouncements: true,
		DailyDigest:         false,
	}
}

// Allows reports whether the category toggle for t is on.
func (p NotificationPreferences) Allows(t NotificationType) bool {
	switch t {
	case NotificationTaskReminder, NotificationTaskAssigned, NotificationTaskCompleted:
		return p.TaskReminders
	case NotificationMedicalAlert, NotificationMedicalFollowup:
		return p.MedicalAlerts
	case NotificationVolunteerUpdate:
		return p.VolunteerUpdates
	case NotificationSystemAnnouncement:
		return p.SystemAnnouncements
	}
	return false
}

// UpdatePreferencesRequest defines the request body for saving preferences.
// Pointer fields leave the stored value untouched when omitted.
type UpdatePreferencesRequest struct {
	EmailNotifications  *bool `json:"emailNotifications,omitempty"`
	PushNotifications   *bool `json:"pushNotifications,omitempty"`
	TaskReminders       *bool `json:"taskReminders,omitempty"`
	MedicalAlerts       *bool `json:"medicalAlerts,omitempty"`
	VolunteerUpdates    *bool `json:"volunteerUpdates,omitempty"`
	SystemAnnouncements *bool `json:"systemAnnouncements,omitempty"`
	DailyDigest         *bool `json:"dailyDigest,omitempty"`
}

// Apply copies the set fields of r onto p.
func (r UpdatePreferencesRequest) Apply(p *NotificationPreferences) {
	set := func(dst *bool, src *bool) {
		if src != nil {
			*dst = *src
		}
	}
	set(&p.EmailNotifications, r.EmailNotifications)
	set(&p.PushNotifications, r.PushNotifications)
	set(&p.TaskReminders, r.TaskReminders)
	set(&p.MedicalAlerts, r.MedicalAlerts)
	set(&p.VolunteerUpdates, r.VolunteerUpdates)
	set(&p.SystemAnnouncements, r.SystemAnnouncements)
	set(&p.DailyDigest, r.DailyDigest)
}

// DeviceToken is an FCM registration token owned by a user (PostgreSQL)
type DeviceToken struct {
	ID        uint      `json:"-" gorm:"primaryKey"`
	UserID    string    `json:"userId" gorm:"size:128;index"`
	Token     string    `json:"token" gorm:"size:512;uniqueIndex"`
	Platform  string    `json:"platform" gorm:"size:20"` // android, ios, web
	CreatedAt time.Time `json:"createdAt"`
}

// RegisterDeviceRequest defines the request body for registering a push token
type RegisterDeviceRequest struct {
	Token    string `json:"token" validate:"required,max=512"`
	Platform string `json:"platform" validate:"omitempty,oneof=android ios web"`
}

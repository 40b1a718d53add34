package repositories

import (
	"context"

	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PreferencesRepository defines the interface for preference storage
type PreferencesRepository interface {
	GetByUserID(ctx context.Context, userID string) (*models.NotificationPreferences, error)
	Upsert(ctx context.Context, prefs *models.NotificationPreferences) error
}

// DeviceTokenRepository defines the interface for push token storage
type DeviceTokenRepository interface {
	Register(ctx context.Context, token *models.DeviceToken) error
	ListByUserID(ctx context.Context, userID string) ([]models.DeviceToken, error)
	Delete(ctx context.Context, userID, token string) error
	DeleteToken(ctx context.Context, token string) error
}

type postgresPreferencesRepository struct {
	db *gorm.DB
}

func NewPostgresPreferencesRepository(db *gorm.DB) PreferencesRepository {
	return &postgresPreferencesRepository{db: db}
}

// GetByUserID returns gorm.ErrRecordNotFound when the user never saved preferences
func (r *postgresPreferencesRepository) GetByUserID(ctx context.Context, userID string) (*models.NotificationPreferences, error) {
	var prefs models.NotificationPreferences
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&prefs).Error; err != nil {
		return nil, err
	}
	return &prefs, nil
}

// Upsert relies on the unique user_id index to keep one row per user
func (r *postgresPreferencesRepository) Upsert(ctx context.Context, prefs *models.NotificationPreferences) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email_notifications", "push_notifications", "task_reminders", "medical_alerts",
			"volunteer_updates", "system_announcements", "daily_digest", "updated_at",
		}),
	}).Create(prefs).Error
}

type postgresDeviceTokenRepository struct {
	db *gorm.DB
}

func NewPostgresDeviceTokenRepository(db *gorm.DB) DeviceTokenRepository {
	return &postgresDeviceTokenRepository{db: db}
}

// Register claims the token for the user, moving it if another user held it
func (r *postgresDeviceTokenRepository) Register(ctx context.Context, token *models.DeviceToken) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "platform"}),
	}).Create(token).Error
}

func (r *postgresDeviceTokenRepository) ListByUserID(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	var tokens []models.DeviceToken
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).Find(&tokens).Error; err != nil {
		return nil, err
	}
	return tokens, nil
}

func (r *postgresDeviceTokenRepository) Delete(ctx context.Context, userID, token string) error {
	res := r.db.WithContext(ctx).Where("user_id = ? AND token = ?", userID, token).Delete(&models.DeviceToken{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *postgresDeviceTokenRepository) DeleteToken(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.DeviceToken{}).Error
}

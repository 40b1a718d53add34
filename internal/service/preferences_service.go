package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/models"
	"github.com/shree-crypto/ccf-animal-welfare-sub001/internal/repositories"
)

// PreferencesService manages notification toggles and push devices.
type PreferencesService struct {
	prefs   repositories.PreferencesRepository
	devices repositories.DeviceTokenRepository
}

func NewPreferencesService(prefs repositories.PreferencesRepository, devices repositories.DeviceTokenRepository) *PreferencesService {
	return &PreferencesService{prefs: prefs, devices: devices}
}

// Get returns the stored toggles, or the defaults when none were saved.
func (s *PreferencesService) Get(ctx context.Context, userID string) (models.NotificationPreferences, error) {
	prefs, err := s.prefs.GetByUserID(ctx, userID)
	if err != nil {
		if err = storeError("get preferences", err); errors.Is(err, ErrNotFound) {
			return models.DefaultPreferences(userID), nil
		}
		return models.NotificationPreferences{}, err
	}
	return *prefs, nil
}

func (s *PreferencesService) Update(ctx context.Context, userID string, req models.UpdatePreferencesRequest) (models.NotificationPreferences, error) {
	prefs, err := s.Get(ctx, userID)
	if err != nil {
		return models.NotificationPreferences{}, err
	}
	req.Apply(&prefs)
	prefs.UserID = userID
	if err := s.prefs.Upsert(ctx, &prefs); err != nil {
		return models.NotificationPreferences{}, storeError("save preferences", err)
	}
	return prefs, nil
}

func (s *PreferencesService) RegisterDevice(ctx context.Context, userID string, req models.RegisterDeviceRequest) (*models.DeviceToken, error) {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return nil, fmt.Errorf("%w: token is required", ErrInvalidInput)
	}
	platform := req.Platform
	if platform == "" {
		platform = "web"
	}
	device := &models.DeviceToken{UserID: userID, Token: token, Platform: platform}
	if err := s.devices.Register(ctx, device); err != nil {
		return nil, storeError("register device", err)
	}
	return device, nil
}

func (s *PreferencesService) RemoveDevice(ctx context.Context, userID, token string) error {
	return storeError("remove device", s.devices.Delete(ctx, userID, token))
}

func (s *PreferencesService) Devices(ctx context.Context, userID string) ([]models.DeviceToken, error) {
	devices, err := s.devices.ListByUserID(ctx, userID)
	if err != nil {
		return nil, storeError("list devices", err)
	}
	return devices, nil
}

// ForgetToken drops a token the push provider no longer accepts.
func (s *PreferencesService) ForgetToken(ctx context.Context, token string) error {
	return storeError("forget token", s.devices.DeleteToken(ctx, token))
}

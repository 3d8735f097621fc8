package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"craftMaxxingAPI/internal/apperr"
	"craftMaxxingAPI/internal/repository"
	"craftMaxxingAPI/internal/types/notification"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

type NotificationService struct {
	store NotificationStore
}

func NewNotificationService(store NotificationStore) *NotificationService {
	return &NotificationService{store: store}
}

// List returns the user's notifications, newest first. limit is clamped to
// [1, 100] and defaults to 20.
func (s *NotificationService) List(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	switch {
	case limit <= 0:
		limit = defaultNotificationLimit
	case limit > maxNotificationLimit:
		limit = maxNotificationLimit
	}
	out, err := s.store.ListNotifications(ctx, userID, limit)
	if err != nil {
		return nil, apperr.Internal("Failed to list notifications", err)
	}
	return out, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	count, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperr.Internal("Failed to count notifications", err)
	}
	return count, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id uuid.UUID, userID string) error {
	err := s.store.MarkRead(ctx, id, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("Notification not found")
	}
	if err != nil {
		return apperr.Internal("Failed to mark notification as read", err)
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) error {
	n, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return apperr.Internal("Failed to mark notifications as read", err)
	}
	log.Debug().Str("user_id", userID).Int64("count", n).Msg("MarkAllRead: done")
	return nil
}

// RegisterDevice stores a push token for the user. Re-registering a token
// updates its platform.
func (s *NotificationService) RegisterDevice(ctx context.Context, userID string, req *notification.RegisterDeviceRequest) error {
	token := strings.TrimSpace(req.Token)
	if token == "" {
		return apperr.InvalidArgument("Device token is required")
	}
	err := s.store.SaveDeviceToken(ctx, userID, notification.DeviceToken{
		Token:    token,
		Platform: strings.ToLower(req.Platform),
	})
	if err != nil {
		return apperr.Internal("Failed to register device", err)
	}
	log.Info().Str("user_id", userID).Str("platform", req.Platform).Msg("RegisterDevice: token saved")
	return nil
}

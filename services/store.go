package services

import (
	"context"
	"time"

	"github.com/google/uuid"

	"craftMaxxingAPI/internal/repository"
	"craftMaxxingAPI/internal/types/challenge"
	"craftMaxxingAPI/internal/types/friendship"
	"craftMaxxingAPI/internal/types/notification"
	"craftMaxxingAPI/internal/types/profile"
)

// Transactor runs fn as one unit of work. Stores called with the ctx passed to
// fn take part in it.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type ProfileStore interface {
	CreateProfile(ctx context.Context, p *profile.Profile) error
	GetProfile(ctx context.Context, id string) (*profile.Profile, error)
	GetProfileByUsername(ctx context.Context, username string) (*profile.Profile, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	UpdateProfile(ctx context.Context, id string, req *profile.UpdateProfileRequest, now time.Time) (*profile.Profile, error)
	SearchProfiles(ctx context.Context, prefix, excludeID string, limit int) ([]*profile.Summary, error)
	GetSummaries(ctx context.Context, ids []string) (map[string]*profile.Summary, error)
	RecordResult(ctx context.Context, winnerID, loserID string) error
}

type ChallengeStore interface {
	CreateChallenge(ctx context.Context, c *challenge.Challenge) error
	GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error)
	// GetChallengeForUpdate must be called inside WithinTx.
	GetChallengeForUpdate(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error)
	ListChallenges(ctx context.Context, filter repository.ChallengeFilter) ([]*challenge.Challenge, error)
	ListSharedChallenges(ctx context.Context, userA, userB string, limit int) ([]*challenge.Challenge, error)
	ListOverdueActive(ctx context.Context, now time.Time, limit int) ([]*challenge.Challenge, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to challenge.Status) error
	CompleteChallenge(ctx context.Context, id uuid.UUID, winnerID *string) error
	ExpireOverdue(ctx context.Context, now time.Time) (int64, error)

	CreateProgress(ctx context.Context, p *challenge.Progress) error
	GetProgress(ctx context.Context, challengeID uuid.UUID, userID string) (*challenge.Progress, error)
	ListProgress(ctx context.Context, challengeIDs []uuid.UUID) ([]*challenge.Progress, error)
	ListActiveProgress(ctx context.Context, userIDs []string) ([]*challenge.Progress, error)
	UpdateProgress(ctx context.Context, p *challenge.Progress, prevLogLen int) error
	DeleteProgress(ctx context.Context, challengeID uuid.UUID, userID string) error
	CountProgress(ctx context.Context, challengeID uuid.UUID) (int, error)
	ListSkills(ctx context.Context, userID string) ([]string, error)

	CreateLink(ctx context.Context, l *challenge.Link) error
	GetLinkByCode(ctx context.Context, code string) (*challenge.Link, error)
	ClaimLink(ctx context.Context, linkID uuid.UUID, userID string, challengeID uuid.UUID) error
}

type FriendStore interface {
	CreateFriendship(ctx context.Context, f *friendship.Friendship) error
	GetFriendship(ctx context.Context, id uuid.UUID) (*friendship.Friendship, error)
	FindFriendship(ctx context.Context, a, b string) (*friendship.Friendship, error)
	ListFriendships(ctx context.Context, userID string, status friendship.FriendshipStatus) ([]*friendship.Friendship, error)
	ListIncoming(ctx context.Context, userID string) ([]*friendship.Friendship, error)
	StatusesWith(ctx context.Context, userID string, otherIDs []string) (map[string]friendship.FriendshipStatus, error)
	AcceptFriendship(ctx context.Context, id uuid.UUID, receiverID string, now time.Time) error
	DeleteFriendship(ctx context.Context, id uuid.UUID) error
}

type NotificationStore interface {
	CreateNotification(ctx context.Context, n *notification.Notification) error
	ListNotifications(ctx context.Context, userID string, limit int) ([]*notification.Notification, error)
	CountUnread(ctx context.Context, userID string) (int, error)
	MarkRead(ctx context.Context, id uuid.UUID, userID string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	SaveDeviceToken(ctx context.Context, userID string, token notification.DeviceToken) error
	ListDeviceTokens(ctx context.Context, userID string) ([]notification.DeviceToken, error)
}

// Notifier accepts notifications for asynchronous delivery. Implementations
// must not block the caller for long and never report delivery failures.
type Notifier interface {
	Notify(n *notification.Notification)
}

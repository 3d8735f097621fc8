package friendship

import (
	"time"

	"github.com/google/uuid"
)

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

// Friendship is directed: UserID sent the request, FriendID receives it.
type Friendship struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	UserID    string           `json:"user_id" db:"user_id"`
	FriendID  string           `json:"friend_id" db:"friend_id"`
	Status    FriendshipStatus `json:"status" db:"status"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

func (f *Friendship) Involves(userID string) bool {
	return f.UserID == userID || f.FriendID == userID
}

func (f *Friendship) Other(userID string) string {
	if f.UserID == userID {
		return f.FriendID
	}
	return f.UserID
}

type AddFriendRequest struct {
	FriendID string `json:"friend_id" validate:"required"`
}

type RespondRequest struct {
	Accept bool `json:"accept"`
}

// Activity is one row of the friends feed: a friend's progress on an active challenge.
type Activity struct {
	ChallengeID   uuid.UUID `json:"challenge_id"`
	Username      string    `json:"username"`
	DisplayName   *string   `json:"display_name"`
	AvatarURL     *string   `json:"avatar_url"`
	SkillName     string    `json:"skill_name"`
	CompletedDays int       `json:"completed_days"`
	TotalDays     int       `json:"total_days"`
}

// Friend is the list/requests row: the other side's profile plus the friendship it came from.
type Friend struct {
	ID           string           `json:"id"`
	Username     string           `json:"username"`
	DisplayName  *string          `json:"display_name"`
	AvatarURL    *string          `json:"avatar_url"`
	Status       FriendshipStatus `json:"status"`
	FriendshipID uuid.UUID        `json:"friendship_id"`
}

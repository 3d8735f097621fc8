package notification

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationChallengeReceived     NotificationType = "challenge_received"
	NotificationChallengeAccepted     NotificationType = "challenge_accepted"
	NotificationChallengeDeclined     NotificationType = "challenge_declined"
	NotificationOpponentProgress      NotificationType = "opponent_progress"
	NotificationOpponentGaveUp        NotificationType = "opponent_gave_up"
	NotificationChallengeWithdrawn    NotificationType = "challenge_withdrawn"
	NotificationChallengeLinkAccepted NotificationType = "challenge_link_accepted"
	NotificationChallengeCompleted    NotificationType = "challenge_completed"
	NotificationFriendRequest         NotificationType = "friend_request"
	NotificationFriendAccepted        NotificationType = "friend_accepted"
)

type Notification struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	UserID    string           `json:"user_id" db:"user_id"`
	Type      NotificationType `json:"type" db:"type"`
	Title     string           `json:"title" db:"title"`
	Message   string           `json:"message" db:"message"`
	IsRead    bool             `json:"read" db:"read"`
	Data      map[string]any   `json:"data" db:"data"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
}

type DeviceToken struct {
	Token    string `json:"token" db:"token"`
	Platform string `json:"platform" db:"platform"`
}

package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"craftMaxxingAPI/internal/types/notification"
)

func newNotification(userID string, typ notification.NotificationType, title, message string, data map[string]any, now time.Time) *notification.Notification {
	return &notification.Notification{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      typ,
		Title:     title,
		Message:   message,
		Data:      data,
		CreatedAt: now,
	}
}

func challengeData(challengeID uuid.UUID) map[string]any {
	return map[string]any{"challenge_id": challengeID.String()}
}

func ChallengeReceived(opponentID, challengerUsername, opponentSkill string, challengeID uuid.UUID, now time.Time) *notification.Notification {
	return newNotification(opponentID, notification.NotificationChallengeReceived,
		fmt.Sprintf("New challenge from @%s!", challengerUsername),
		fmt.Sprintf("They want to challenge you to learn %s", opponentSkill),
		challengeData(challengeID), now)
}

func ChallengeAccepted(challengerID string, challengeID uuid.UUID, now time.Time) *notification.Notification {
	return newNotification(challengerID, notification.NotificationChallengeAccepted,
		"Challenge accepted! 🎉",
		"Your challenge has been accepted. Game on!",
		challengeData(challengeID), now)
}

func ChallengeDeclined(challengerID string, challengeID uuid.UUID, now time.Time) *notification.Notification {
	return newNotification(challengerID, notification.NotificationChallengeDeclined,
		"Challenge declined",
		"Your challenge was declined.",
		challengeData(challengeID), now)
}

func OpponentProgress(recipientID, username string, day int, completed bool, challengeID uuid.UUID, now time.Time) *notification.Notification {
	verb := "Logged"
	if completed {
		verb = "Completed"
	}
	data := challengeData(challengeID)
	data["day"] = day
	return newNotification(recipientID, notification.NotificationOpponentProgress,
		fmt.Sprintf("@%s checked in!", username),
		fmt.Sprintf("Day %d - %s", day, verb),
		data, now)
}

func OpponentGaveUp(recipientID, username string, challengeID uuid.UUID, now time.Time) *notification.Notification {
	return newNotification(recipientID, notification.NotificationOpponentGaveUp,
		fmt.Sprintf("@%s gave up on the challenge", username),
		"You can continue learning on your own!",
		challengeData(challengeID), now)
}

func ChallengeWithdrawn(opponentID, username string, challengeID uuid.UUID, now time.Time) *notification.Notification {
	return newNotification(opponentID, notification.NotificationChallengeWithdrawn,
		"Challenge withdrawn",
		fmt.Sprintf("@%s withdrew their challenge", username),
		challengeData(challengeID), now)
}

func ChallengeLinkAccepted(creatorID, username string, challengeID uuid.UUID, now time.Time) *notification.Notification {
	return newNotification(creatorID, notification.NotificationChallengeLinkAccepted,
		"Challenge link accepted!",
		fmt.Sprintf("@%s accepted your challenge invite", username),
		challengeData(challengeID), now)
}

// ChallengeCompleted tells one participant how a finished challenge ended.
// winnerID is empty for a draw.
func ChallengeCompleted(recipientID, winnerID string, challengeID uuid.UUID, now time.Time) *notification.Notification {
	title, message := "Challenge finished", "It's a draw! You both put in the work."
	switch {
	case winnerID == recipientID:
		title, message = "You won the challenge! 🏆", "You completed more days than your opponent."
	case winnerID != "":
		title, message = "Challenge finished", "Your opponent completed more days this time."
	}
	data := challengeData(challengeID)
	if winnerID != "" {
		data["winner_id"] = winnerID
	}
	return newNotification(recipientID, notification.NotificationChallengeCompleted, title, message, data, now)
}

func FriendRequest(recipientID, requesterID, username string, now time.Time) *notification.Notification {
	return newNotification(recipientID, notification.NotificationFriendRequest,
		"New Friend Request",
		fmt.Sprintf("@%s sent you a friend request", username),
		map[string]any{"requester_id": requesterID}, now)
}

func FriendAccepted(recipientID, friendID, username string, now time.Time) *notification.Notification {
	return newNotification(recipientID, notification.NotificationFriendAccepted,
		"Friend Request Accepted",
		fmt.Sprintf("@%s accepted your friend request", username),
		map[string]any{"friend_id": friendID}, now)
}

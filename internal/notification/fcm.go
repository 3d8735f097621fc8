package notification

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"

	"craftMaxxingAPI/internal/types/notification"
)

var ErrNoCredentials = errors.New("no firebase credentials configured")

type FCMService struct {
	client *messaging.Client
}

// NewFCMService prefers base64 encoded service account JSON and falls back to
// a key file on disk.
func NewFCMService(ctx context.Context, encodedCreds, localFilePath string) (*FCMService, error) {
	var opt option.ClientOption

	if encodedCreds != "" {
		decoded, err := base64.StdEncoding.DecodeString(encodedCreds)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials: %w", err)
		}
		opt = option.WithCredentialsJSON(decoded)
		log.Info().Msg("NewFCMService: using credentials from environment")
	} else {
		if _, err := os.Stat(localFilePath); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrNoCredentials, localFilePath)
		}
		opt = option.WithCredentialsFile(localFilePath)
		log.Info().Str("path", localFilePath).Msg("NewFCMService: using credentials file")
	}

	app, err := firebase.NewApp(ctx, nil, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get messaging client: %w", err)
	}

	return &FCMService{client: client}, nil
}

// SendPush delivers one message per token. The batch endpoint is not used.
// It fails only when every send failed.
func (s *FCMService) SendPush(ctx context.Context, tokens []notification.DeviceToken, n *notification.Notification) error {
	if len(tokens) == 0 {
		return nil
	}

	data := StringData(n)
	sent, failed := 0, 0
	for _, t := range tokens {
		_, err := s.client.Send(ctx, buildMessage(t, n, data))
		if err != nil {
			log.Warn().Err(err).Str("platform", t.Platform).Str("user_id", n.UserID).Msg("SendPush: failed to send to token")
			failed++
			continue
		}
		sent++
	}

	log.Debug().Int("sent", sent).Int("failed", failed).Str("notification_id", n.ID.String()).Msg("SendPush: done")
	if sent == 0 && failed > 0 {
		return fmt.Errorf("all %d push notifications failed", failed)
	}
	return nil
}

func buildMessage(t notification.DeviceToken, n *notification.Notification, data map[string]string) *messaging.Message {
	msg := &messaging.Message{
		Token: t.Token,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Message,
		},
		Data: data,
	}
	switch t.Platform {
	case "ios":
		msg.APNS = &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{Aps: &messaging.Aps{Sound: "default"}},
		}
	case "android", "":
		msg.Android = &messaging.AndroidConfig{
			Priority:     "high",
			Notification: &messaging.AndroidNotification{Sound: "default"},
		}
	}
	return msg
}

// StringData flattens the notification payload to the string map FCM requires.
func StringData(n *notification.Notification) map[string]string {
	out := make(map[string]string, len(n.Data)+2)
	for k, v := range n.Data {
		out[k] = fmt.Sprintf("%v", v)
	}
	out["notification_id"] = n.ID.String()
	out["type"] = string(n.Type)
	return out
}

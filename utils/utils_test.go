package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftMaxxingAPI/internal/types/notification"
)

func TestGenerateInviteCode(t *testing.T) {
	pattern := regexp.MustCompile(`^[a-z0-9]{8}$`)
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code, err := GenerateInviteCode()
		require.NoError(t, err)
		assert.Regexp(t, pattern, code)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 195)
}

func TestJoinPath(t *testing.T) {
	assert.Equal(t, "/challenges/join/abc12345", JoinPath("abc12345"))
}

func TestCanonicalUsername(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr error
	}{
		{in: "  Alice_01 ", want: "alice_01"},
		{in: "bob.the-builder", want: "bob.the-builder"},
		{in: "", wantErr: ErrUsernameRequired},
		{in: "zoë", wantErr: ErrUsernameASCII},
		{in: "ab", wantErr: ErrUsernameFormat},
		{in: "1abc", wantErr: ErrUsernameFormat},
		{in: "has space", wantErr: ErrUsernameFormat},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CanonicalUsername(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLookupUsername(t *testing.T) {
	assert.Equal(t, "alice", LookupUsername(" @Alice "))
}

func TestNotificationBuilders(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	id := uuid.New()

	n := ChallengeReceived("opp", "alice", "juggling", id, now)
	assert.Equal(t, "opp", n.UserID)
	assert.Equal(t, notification.NotificationChallengeReceived, n.Type)
	assert.Equal(t, "New challenge from @alice!", n.Title)
	assert.Equal(t, "They want to challenge you to learn juggling", n.Message)
	assert.Equal(t, id.String(), n.Data["challenge_id"])
	assert.Equal(t, now, n.CreatedAt)
	assert.NotEqual(t, uuid.Nil, n.ID)

	p := OpponentProgress("bob", "alice", 4, true, id, now)
	assert.Equal(t, "Day 4 - Completed", p.Message)
	assert.Equal(t, 4, p.Data["day"])
	assert.Equal(t, "Day 2 - Logged", OpponentProgress("bob", "alice", 2, false, id, now).Message)

	won := ChallengeCompleted("alice", "alice", id, now)
	assert.Contains(t, won.Title, "You won")
	lost := ChallengeCompleted("bob", "alice", id, now)
	assert.Equal(t, "alice", lost.Data["winner_id"])
	draw := ChallengeCompleted("bob", "", id, now)
	assert.Contains(t, draw.Message, "draw")
	assert.NotContains(t, draw.Data, "winner_id")
}

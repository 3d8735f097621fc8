package challenge

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func TestCanTransition(t *testing.T) {
	allowed := map[Status][]Status{
		StatusPending: {StatusActive, StatusDeclined, StatusExpired, StatusCancelled},
		StatusActive:  {StatusCompleted, StatusCancelled},
	}
	all := []Status{StatusPending, StatusActive, StatusDeclined, StatusExpired, StatusCancelled, StatusCompleted}

	for _, from := range all {
		for _, to := range all {
			want := false
			for _, s := range allowed[from] {
				if s == to {
					want = true
				}
			}
			assert.Equal(t, want, CanTransition(from, to), "%s -> %s", from, to)
		}
		assert.Equal(t, len(allowed[from]) == 0, from.IsTerminal(), from)
		assert.True(t, from.IsValid())
	}
	assert.False(t, Status("paused").IsValid())
}

func TestNormalizeResponseDays(t *testing.T) {
	for in, want := range map[int]int{1: 1, 3: 3, 7: 7, 0: 3, 2: 3, 14: 3, -1: 3} {
		assert.Equal(t, want, NormalizeResponseDays(in), in)
	}
}

func TestEffectiveStatus(t *testing.T) {
	deadline := t0.Add(time.Hour)
	c := &Challenge{Status: StatusPending, ResponseDeadline: &deadline}

	assert.Equal(t, StatusPending, EffectiveStatus(c, t0))
	assert.Equal(t, StatusPending, EffectiveStatus(c, deadline), "the deadline instant itself is still open")
	assert.Equal(t, StatusExpired, EffectiveStatus(c, deadline.Add(time.Second)))

	c.Status = StatusActive
	assert.Equal(t, StatusActive, EffectiveStatus(c, deadline.Add(time.Hour)))

	assert.Equal(t, StatusPending, EffectiveStatus(&Challenge{Status: StatusPending}, t0.AddDate(1, 0, 0)))
}

func TestParticipants(t *testing.T) {
	c := &Challenge{ChallengerID: "a", OpponentID: "b", ChallengerSkill: "Juggling", OpponentSkill: "Origami"}

	assert.True(t, c.IsParticipant("a"))
	assert.True(t, c.IsParticipant("b"))
	assert.False(t, c.IsParticipant("c"))
	assert.Equal(t, "b", c.OtherParticipant("a"))
	assert.Equal(t, "a", c.OtherParticipant("b"))
	assert.Equal(t, "Juggling", c.SkillFor("a"))
	assert.Equal(t, "Origami", c.SkillFor("b"))
}

func TestRecordCheckin(t *testing.T) {
	p := NewProgress(uuid.New(), "a", "Juggling", t0)
	assert.Equal(t, TotalDays, p.TotalDays)
	assert.NotNil(t, p.DailyLog)

	note := "dropped it a lot"
	entry := p.RecordCheckin(true, &note, t0)
	assert.Equal(t, 1, entry.Day)
	assert.Equal(t, 1, p.CompletedDays)
	assert.InDelta(t, 100.0/30, p.CompletionPercentage, 1e-9)
	require.NotNil(t, p.LastCheckin)
	assert.Equal(t, t0, *p.LastCheckin)

	entry = p.RecordCheckin(false, nil, t0.Add(24*time.Hour))
	assert.Equal(t, 2, entry.Day)
	assert.False(t, entry.Completed)
	assert.Equal(t, 1, p.CompletedDays)
	assert.Len(t, p.DailyLog, 2)

	for i := 0; i < 40; i++ {
		p.RecordCheckin(true, nil, t0)
	}
	assert.Equal(t, TotalDays, p.CompletedDays)
	assert.Equal(t, 100.0, p.CompletionPercentage)
	assert.Len(t, p.DailyLog, 42)
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, 50.0, Percentage(15, 30))
	assert.Zero(t, Percentage(3, 0))
}

func TestLinkState(t *testing.T) {
	expires := t0.Add(time.Hour)
	l := &Link{ExpiresAt: &expires}

	assert.False(t, l.IsUsed())
	assert.False(t, l.IsExpired(t0))
	assert.True(t, l.IsExpired(expires.Add(time.Nanosecond)))

	user := "b"
	l.UsedBy = &user
	assert.True(t, l.IsUsed())

	assert.False(t, (&Link{}).IsExpired(t0.AddDate(5, 0, 0)), "links without expiry never expire")
}

func TestWinner(t *testing.T) {
	c := &Challenge{ChallengerID: "a", OpponentID: "b"}
	row := func(user string, days int) *Progress {
		return &Progress{UserID: user, CompletedDays: days}
	}

	tests := []struct {
		name       string
		progress   []*Progress
		wantWinner string
		wantLoser  string
	}{
		{"challenger ahead", []*Progress{row("a", 20), row("b", 12)}, "a", "b"},
		{"opponent ahead", []*Progress{row("a", 3), row("b", 4)}, "b", "a"},
		{"tie", []*Progress{row("a", 9), row("b", 9)}, "", ""},
		{"only opponent left", []*Progress{row("b", 0)}, "b", "a"},
		{"only challenger left", []*Progress{row("a", 1)}, "a", "b"},
		{"nobody left", nil, "", ""},
		{"stranger ignored", []*Progress{row("z", 30), row("a", 1)}, "a", "b"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winner, loser := Winner(c, tt.progress)
			assert.Equal(t, tt.wantWinner, winner)
			assert.Equal(t, tt.wantLoser, loser)
		})
	}
}

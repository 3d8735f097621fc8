package challenge

import (
	"time"

	"github.com/google/uuid"

	"craftMaxxingAPI/internal/types/profile"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusDeclined  Status = "declined"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

const (
	TotalDays           = 30
	DefaultResponseDays = 3
)

// IsValid reports whether s names a known lifecycle state.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusActive, StatusDeclined, StatusExpired, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusDeclined, StatusExpired, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// CanTransition encodes the lifecycle graph.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusActive || to == StatusDeclined || to == StatusExpired || to == StatusCancelled
	case StatusActive:
		return to == StatusCompleted || to == StatusCancelled
	}
	return false
}

// NormalizeResponseDays keeps only the supported response windows.
func NormalizeResponseDays(days int) int {
	switch days {
	case 1, 3, 7:
		return days
	}
	return DefaultResponseDays
}

type Challenge struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	ChallengerID     string     `json:"challenger_id" db:"challenger_id"`
	OpponentID       string     `json:"opponent_id" db:"opponent_id"`
	ChallengerSkill  string     `json:"challenger_skill" db:"challenger_skill"`
	OpponentSkill    string     `json:"opponent_skill" db:"opponent_skill"`
	Deadline         time.Time  `json:"deadline" db:"deadline"`
	Message          *string    `json:"message" db:"message"`
	ResponseDeadline *time.Time `json:"response_deadline" db:"response_deadline"`
	Status           Status     `json:"status" db:"status"`
	WinnerID         *string    `json:"winner_id" db:"winner_id"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`

	Challenger *profile.Summary `json:"challenger"`
	Opponent   *profile.Summary `json:"opponent"`
}

// EffectiveStatus is the status every read path reports: a pending challenge whose
// response window has elapsed is expired regardless of what the store says.
func EffectiveStatus(c *Challenge, now time.Time) Status {
	if c.Status == StatusPending && c.ResponseDeadline != nil && c.ResponseDeadline.Before(now) {
		return StatusExpired
	}
	return c.Status
}

func (c *Challenge) IsParticipant(userID string) bool {
	return c.ChallengerID == userID || c.OpponentID == userID
}

// OtherParticipant returns the id on the opposite side of userID.
func (c *Challenge) OtherParticipant(userID string) string {
	if c.ChallengerID == userID {
		return c.OpponentID
	}
	return c.ChallengerID
}

// SkillFor returns the skill the given participant committed to.
func (c *Challenge) SkillFor(userID string) string {
	if c.ChallengerID == userID {
		return c.ChallengerSkill
	}
	return c.OpponentSkill
}

type DailyLogEntry struct {
	Day       int       `json:"day"`
	Completed bool      `json:"completed"`
	Notes     *string   `json:"notes"`
	Date      time.Time `json:"date"`
}

type Progress struct {
	ID                   uuid.UUID       `json:"id" db:"id"`
	ChallengeID          uuid.UUID       `json:"challenge_id" db:"challenge_id"`
	UserID               string          `json:"user_id" db:"user_id"`
	SkillName            string          `json:"skill_name" db:"skill_name"`
	CompletedDays        int             `json:"completed_days" db:"completed_days"`
	TotalDays            int             `json:"total_days" db:"total_days"`
	CompletionPercentage float64         `json:"completion_percentage" db:"completion_percentage"`
	LastCheckin          *time.Time      `json:"last_checkin" db:"last_checkin"`
	DailyLog             []DailyLogEntry `json:"daily_log" db:"daily_log"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
}

// NewProgress builds the zeroed row written when a challenge activates.
func NewProgress(challengeID uuid.UUID, userID, skill string, now time.Time) *Progress {
	return &Progress{
		ID:          uuid.New(),
		ChallengeID: challengeID,
		UserID:      userID,
		SkillName:   skill,
		TotalDays:   TotalDays,
		DailyLog:    []DailyLogEntry{},
		CreatedAt:   now,
	}
}

// RecordCheckin appends one log entry. completed_days never exceeds total_days, so the
// percentage stays within 0..100 and always equals completed_days/total_days*100.
func (p *Progress) RecordCheckin(completed bool, notes *string, now time.Time) DailyLogEntry {
	if completed && p.CompletedDays < p.TotalDays {
		p.CompletedDays++
	}
	p.CompletionPercentage = Percentage(p.CompletedDays, p.TotalDays)

	entry := DailyLogEntry{
		Day:       len(p.DailyLog) + 1,
		Completed: completed,
		Notes:     notes,
		Date:      now,
	}
	p.DailyLog = append(p.DailyLog, entry)
	p.LastCheckin = &now
	return entry
}

func Percentage(completed, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(completed) / float64(total) * 100
}

type Link struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	CreatorID   string     `json:"creator_id" db:"creator_id"`
	Skill       string     `json:"skill" db:"skill"`
	Deadline    time.Time  `json:"deadline" db:"deadline"`
	Message     *string    `json:"message" db:"message"`
	Code        string     `json:"code" db:"code"`
	UsedBy      *string    `json:"used_by" db:"used_by"`
	ChallengeID *uuid.UUID `json:"challenge_id" db:"challenge_id"`
	ExpiresAt   *time.Time `json:"expires_at" db:"expires_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`

	Creator *profile.Summary `json:"creator"`
}

func (l *Link) IsUsed() bool {
	return l.UsedBy != nil
}

func (l *Link) IsExpired(now time.Time) bool {
	return l.ExpiresAt != nil && l.ExpiresAt.Before(now)
}

// WithProgress is one entry of a user's challenge list.
type WithProgress struct {
	Challenge        *Challenge `json:"challenge"`
	MyProgress       *Progress  `json:"my_progress"`
	OpponentProgress *Progress  `json:"opponent_progress"`
}

// Winner picks the winner of a finished challenge from its remaining progress
// rows. The participant with strictly more completed days wins; a tie has no
// winner. When only one participant still has progress that participant wins.
func Winner(c *Challenge, progress []*Progress) (winnerID, loserID string) {
	var mine, theirs *Progress
	for _, p := range progress {
		switch p.UserID {
		case c.ChallengerID:
			mine = p
		case c.OpponentID:
			theirs = p
		}
	}

	switch {
	case mine != nil && theirs != nil:
		if mine.CompletedDays > theirs.CompletedDays {
			return c.ChallengerID, c.OpponentID
		}
		if theirs.CompletedDays > mine.CompletedDays {
			return c.OpponentID, c.ChallengerID
		}
		return "", ""
	case mine != nil:
		return c.ChallengerID, c.OpponentID
	case theirs != nil:
		return c.OpponentID, c.ChallengerID
	}
	return "", ""
}

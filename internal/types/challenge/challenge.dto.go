package challenge

import "time"

type CreateChallengeRequest struct {
	OpponentUsername string    `json:"opponent_username" validate:"required"`
	ChallengerSkill  string    `json:"challenger_skill" validate:"required,max=100"`
	OpponentSkill    string    `json:"opponent_skill" validate:"required,max=100"`
	Deadline         time.Time `json:"deadline" validate:"required"`
	Message          *string   `json:"message,omitempty" validate:"omitempty,max=500"`
	ResponseDays     int       `json:"response_days,omitempty"`
}

type RespondRequest struct {
	Accept bool `json:"accept"`
}

type CheckinRequest struct {
	Completed bool    `json:"completed"`
	Notes     *string `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

// CreateLinkRequest mirrors the payload the client sends for direct challenges;
// only the challenger skill, deadline and message are used.
type CreateLinkRequest struct {
	OpponentUsername string    `json:"opponent_username,omitempty"`
	ChallengerSkill  string    `json:"challenger_skill" validate:"required,max=100"`
	OpponentSkill    string    `json:"opponent_skill,omitempty"`
	Deadline         time.Time `json:"deadline" validate:"required"`
	Message          *string   `json:"message,omitempty" validate:"omitempty,max=500"`
}

type CreateLinkResponse struct {
	Code      string     `json:"code"`
	Link      string     `json:"link"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type AcceptLinkResponse struct {
	Message     string `json:"message"`
	ChallengeID string `json:"challenge_id"`
}

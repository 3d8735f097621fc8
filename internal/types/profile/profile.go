package profile

import "time"

type Profile struct {
	ID          string    `json:"id" db:"id"`
	Username    string    `json:"username" db:"username"`
	DisplayName *string   `json:"display_name" db:"display_name"`
	Bio         *string   `json:"bio" db:"bio"`
	AvatarURL   *string   `json:"avatar_url" db:"avatar_url"`
	TotalWins   int       `json:"total_wins" db:"total_wins"`
	TotalLosses int       `json:"total_losses" db:"total_losses"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Summary is the embedded form used when enriching challenges, links and friends.
type Summary struct {
	ID           string  `json:"id"`
	Username     string  `json:"username"`
	DisplayName  *string `json:"display_name"`
	AvatarURL    *string `json:"avatar_url"`
	FriendStatus *string `json:"friendStatus,omitempty"`
}

func (p *Profile) Summary() *Summary {
	if p == nil {
		return nil
	}
	return &Summary{
		ID:          p.ID,
		Username:    p.Username,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL,
	}
}

// CurrentSkill is a skill a user is learning in an active challenge.
type CurrentSkill struct {
	SkillName            string  `json:"skill_name"`
	CompletedDays        int     `json:"completed_days"`
	TotalDays            int     `json:"total_days"`
	CompletionPercentage float64 `json:"completion_percentage"`
}


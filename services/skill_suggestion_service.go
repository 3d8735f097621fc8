package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/rs/zerolog/log"

	"craftMaxxingAPI/internal/ai"
	"craftMaxxingAPI/internal/types/plan"
)

const (
	maxAvoidSkills = 30

	skillSuggestionSystemPrompt = `You suggest one practical, specific skill a person could make real progress on in 30 days with 15-30 minutes a day.
Respond with a single JSON object {"skill_name": string, "description": string} where description is one short sentence.
Do not add any text outside the JSON object.`
)

// FallbackSuggestion is returned whenever the model cannot produce a usable suggestion.
var FallbackSuggestion = plan.SkillSuggestion{
	SkillName:   "Juggling",
	Description: "Learn to keep three balls in the air with a few focused minutes of practice each day.",
}

type SkillSuggestionService struct {
	generator  ai.TextGenerator
	challenges ChallengeStore
	seed       func() int
}

func NewSkillSuggestionService(generator ai.TextGenerator, challenges ChallengeStore) *SkillSuggestionService {
	return &SkillSuggestionService{
		generator:  generator,
		challenges: challenges,
		seed:       func() int { return rand.IntN(1_000_000) },
	}
}

// Suggest proposes a skill the user has not tried yet. It never fails.
func (s *SkillSuggestionService) Suggest(ctx context.Context, userID string) plan.SkillSuggestion {
	skills, err := s.challenges.ListSkills(ctx, userID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Suggest: failed to load past skills")
		skills = nil
	}

	raw, err := s.generator.Generate(ctx, ai.Prompt{
		System:      skillSuggestionSystemPrompt,
		User:        suggestionUserPrompt(skills, s.seed()),
		Temperature: 1.0,
	})
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Suggest: generator failed, using fallback")
		return FallbackSuggestion
	}

	var out plan.SkillSuggestion
	if err := json.Unmarshal([]byte(StripCodeFence(raw)), &out); err != nil {
		log.Warn().Err(err).Msg("Suggest: could not decode suggestion, using fallback")
		return FallbackSuggestion
	}
	out.SkillName = strings.TrimSpace(out.SkillName)
	out.Description = strings.TrimSpace(out.Description)
	if out.SkillName == "" || out.Description == "" {
		log.Warn().Msg("Suggest: suggestion had empty fields, using fallback")
		return FallbackSuggestion
	}
	return out
}

func suggestionUserPrompt(avoid []string, seed int) string {
	var b strings.Builder
	b.WriteString("Suggest a skill to learn.")
	if len(avoid) > maxAvoidSkills {
		avoid = avoid[:maxAvoidSkills]
	}
	if len(avoid) > 0 {
		fmt.Fprintf(&b, " Avoid these skills the user already tried: %s.", strings.Join(avoid, ", "))
	}
	fmt.Fprintf(&b, " Random seed: %d.", seed)
	return b.String()
}

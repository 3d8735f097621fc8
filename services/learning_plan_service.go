package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"craftMaxxingAPI/internal/ai"
	"craftMaxxingAPI/internal/apperr"
	"craftMaxxingAPI/internal/types/plan"
	"craftMaxxingAPI/utils"
)

const learningPlanSystemPrompt = `You are a precise planning assistant. Generate a 30-day learning plan.

Requirements:
- weeklyMilestones: array of exactly 4 objects {"week": 1-4, "goal": string}, one per week
- days: array of exactly 30 objects, days 1 through 30, each with:
  - day: number
  - tasks: array of 2-3 objects {"title": string, "instruction": string}
- Tasks should take 15-30 minutes and build on each other.

Respond with a single JSON object of the form
{"weeklyMilestones": [...], "days": [...]}
and nothing else.`

type LearningPlanService struct {
	generator ai.TextGenerator
}

func NewLearningPlanService(generator ai.TextGenerator) *LearningPlanService {
	return &LearningPlanService{generator: generator}
}

// Generate asks the model for a 30-day plan and rejects anything that does not
// match the plan schema exactly.
func (s *LearningPlanService) Generate(ctx context.Context, skillName string) (*plan.LearningPlan, error) {
	skillName = strings.TrimSpace(skillName)
	if skillName == "" {
		return nil, apperr.InvalidArgument("skill_name is required")
	}

	raw, err := s.generator.Generate(ctx, ai.Prompt{
		System:      learningPlanSystemPrompt,
		User:        "Create the learning plan for this skill: " + skillName,
		Temperature: 0.3,
	})
	if err != nil {
		return nil, apperr.Upstream("Failed to generate learning plan", err)
	}

	lp, err := ParseLearningPlan(raw)
	if err != nil {
		log.Warn().Err(err).Str("skill", skillName).Msg("Generate: model returned an invalid plan")
		return nil, apperr.Upstream("The generated learning plan was invalid", err)
	}
	return lp, nil
}

// ParseLearningPlan decodes model output strictly and validates it.
func ParseLearningPlan(raw string) (*plan.LearningPlan, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(StripCodeFence(raw))))
	dec.DisallowUnknownFields()

	var lp plan.LearningPlan
	if err := dec.Decode(&lp); err != nil {
		return nil, fmt.Errorf("failed to decode plan: %w", err)
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected content after plan")
	}
	if err := utils.Validate.Struct(&lp); err != nil {
		return nil, fmt.Errorf("invalid plan: %s", utils.ValidationMessage(err))
	}

	weeks := make(map[int]bool, plan.MilestoneCount)
	for _, m := range lp.WeeklyMilestones {
		if weeks[m.Week] {
			return nil, fmt.Errorf("duplicate milestone for week %d", m.Week)
		}
		weeks[m.Week] = true
	}
	days := make(map[int]bool, plan.DayCount)
	for _, d := range lp.Days {
		if days[d.Day] {
			return nil, fmt.Errorf("duplicate plan for day %d", d.Day)
		}
		days[d.Day] = true
	}
	return &lp, nil
}

// StripCodeFence removes a surrounding ``` or ```json fence if present.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

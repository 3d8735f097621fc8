package handlers

import (
	"context"
	"net/http"

	"craftMaxxingAPI/internal/types/plan"
)

type LearningPlanGenerator interface {
	Generate(ctx context.Context, skillName string) (*plan.LearningPlan, error)
}

type SkillSuggester interface {
	Suggest(ctx context.Context, userID string) plan.SkillSuggestion
}

type AIHandler struct {
	plans       LearningPlanGenerator
	suggestions SkillSuggester
}

func NewAIHandler(plans LearningPlanGenerator, suggestions SkillSuggester) *AIHandler {
	return &AIHandler{plans: plans, suggestions: suggestions}
}

// POST /api/learning-plan
func (h *AIHandler) LearningPlan(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), aiTimeout)
	defer cancel()

	if _, ok := requireUser(w, r); !ok {
		return
	}
	var req plan.GenerateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.plans.Generate(ctx, req.SkillName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

// POST /api/suggest-skill - always answers, falling back to a fixed skill
func (h *AIHandler) SuggestSkill(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), aiTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	respondWithJSON(w, http.StatusOK, h.suggestions.Suggest(ctx, userID))
}

package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"craftMaxxingAPI/internal/types/challenge"
)

type ChallengeService interface {
	Create(ctx context.Context, challengerID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error)
	List(ctx context.Context, userID string, status string) ([]*challenge.WithProgress, error)
	Get(ctx context.Context, challengeID uuid.UUID, userID string) (*challenge.WithProgress, error)
	Respond(ctx context.Context, challengeID uuid.UUID, responderID string, accept bool) (*challenge.Challenge, error)
	CheckIn(ctx context.Context, challengeID uuid.UUID, userID string, completed bool, notes *string) (*challenge.Progress, error)
	GiveUp(ctx context.Context, challengeID uuid.UUID, userID string) error
	Withdraw(ctx context.Context, challengeID uuid.UUID, challengerID string) error
}

type ChallengeHandler struct {
	challengeService ChallengeService
}

func NewChallengeHandler(challengeService ChallengeService) *ChallengeHandler {
	return &ChallengeHandler{challengeService: challengeService}
}

// POST /api/challenges
func (h *ChallengeHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req challenge.CreateChallengeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.challengeService.Create(ctx, userID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, c)
}

// GET /api/challenges?status=
func (h *ChallengeHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	out, err := h.challengeService.List(ctx, userID, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

// GET /api/challenges/{id}
func (h *ChallengeHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	out, err := h.challengeService.Get(ctx, id, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

// POST /api/challenges/{id}/respond
func (h *ChallengeHandler) Respond(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req challenge.RespondRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	c, err := h.challengeService.Respond(ctx, id, userID, req.Accept)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, c)
}

// POST /api/challenges/{id}/checkin
func (h *ChallengeHandler) CheckIn(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	var req challenge.CheckinRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.challengeService.CheckIn(ctx, id, userID, req.Completed, req.Notes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

// POST /api/challenges/{id}/give-up
func (h *ChallengeHandler) GiveUp(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.challengeService.GiveUp(ctx, id, userID); err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "You gave up on this challenge"})
}

// POST /api/challenges/{id}/withdraw
func (h *ChallengeHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.challengeService.Withdraw(ctx, id, userID); err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Challenge withdrawn"})
}

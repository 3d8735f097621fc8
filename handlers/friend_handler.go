package handlers

import (
	"context"
	"net/http"

	"craftMaxxingAPI/internal/types/friendship"
	"craftMaxxingAPI/services"
)

type FriendHandler struct {
	friendService *services.FriendService
}

func NewFriendHandler(friendService *services.FriendService) *FriendHandler {
	return &FriendHandler{friendService: friendService}
}

// GET /api/friends
func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	out, err := h.friendService.List(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

// GET /api/friends/requests
func (h *FriendHandler) Requests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	out, err := h.friendService.Requests(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

// GET /api/friends/activity
func (h *FriendHandler) Activity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	out, err := h.friendService.Activity(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

// POST /api/friends
func (h *FriendHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req friendship.AddFriendRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	f, err := h.friendService.Add(ctx, userID, req.FriendID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, f)
}

// POST /api/friends/{id}/respond
func (h *FriendHandler) Respond(w http.ResponseWriter, r *http.Request) {
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
	var req friendship.RespondRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.friendService.Respond(ctx, id, userID, req.Accept); err != nil {
		writeError(w, r, err)
		return
	}
	msg := "Friend request declined"
	if req.Accept {
		msg = "Friend request accepted"
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": msg})
}

// DELETE /api/friends/{id}
func (h *FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
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

	if err := h.friendService.Remove(ctx, id, userID); err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"message": "Friend removed"})
}

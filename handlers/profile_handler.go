package handlers

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"craftMaxxingAPI/internal/apperr"
	"craftMaxxingAPI/internal/types/profile"
	"craftMaxxingAPI/services"
)

type ProfileHandler struct {
	profileService *services.ProfileService
}

func NewProfileHandler(profileService *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profileService: profileService}
}

// POST /api/profiles
func (h *ProfileHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req profile.CreateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.profileService.Create(ctx, userID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, p)
}

// GET /api/profiles/me - null when the user has not created a profile yet
func (h *ProfileHandler) GetMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	p, err := h.profileService.GetMine(ctx, userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

// PATCH /api/profiles/me
func (h *ProfileHandler) UpdateMine(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req profile.UpdateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	p, err := h.profileService.UpdateMine(ctx, userID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

// POST /api/profiles/me/avatar - multipart form with an "avatar" file
func (h *ProfileHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, services.MaxAvatarBytes+(64<<10))
	file, header, err := r.FormFile("avatar")
	if err != nil {
		respondWithError(w, http.StatusBadRequest, apperr.KindInvalidArgument, "Form file 'avatar' is required")
		return
	}
	defer file.Close()

	body, err := io.ReadAll(io.LimitReader(file, services.MaxAvatarBytes+1))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, apperr.KindInvalidArgument, "Failed to read avatar")
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(body)
	}

	p, err := h.profileService.UploadAvatar(ctx, userID, body, contentType)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

// GET /api/profiles/search?q=&limit=
func (h *ProfileHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	out, err := h.profileService.Search(ctx, userID, r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

// GET /api/profiles/{username}
func (h *ProfileHandler) GetByUsername(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	p, err := h.profileService.GetByUsername(ctx, mux.Vars(r)["username"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, p)
}

// GET /api/profiles/{username}/full
func (h *ProfileHandler) GetFull(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	out, err := h.profileService.GetFull(ctx, userID, mux.Vars(r)["username"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

// GET /api/profiles/check/{username} - public
func (h *ProfileHandler) CheckUsername(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	out, err := h.profileService.CheckUsername(ctx, mux.Vars(r)["username"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, out)
}

package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"craftMaxxingAPI/internal/types/challenge"
)

type InviteService interface {
	CreateLink(ctx context.Context, creatorID string, req *challenge.CreateLinkRequest) (*challenge.CreateLinkResponse, error)
	Resolve(ctx context.Context, code string) (*challenge.Link, error)
	Accept(ctx context.Context, code, acceptorID string) (*challenge.AcceptLinkResponse, error)
	QRCode(ctx context.Context, code string) ([]byte, error)
}

type InviteHandler struct {
	inviteService InviteService
}

func NewInviteHandler(inviteService InviteService) *InviteHandler {
	return &InviteHandler{inviteService: inviteService}
}

// POST /api/challenges/invite-link
func (h *InviteHandler) CreateLink(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	var req challenge.CreateLinkRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := h.inviteService.CreateLink(ctx, userID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, out)
}

// GET /api/challenges/invite/{code}
func (h *InviteHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	link, err := h.inviteService.Resolve(ctx, mux.Vars(r)["code"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusOK, link)
}

// GET /api/challenges/invite/{code}/qr
func (h *InviteHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	png, err := h.inviteService.QRCode(ctx, mux.Vars(r)["code"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}

// POST /api/challenges/invite/{code}/accept
func (h *InviteHandler) Accept(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	out, err := h.inviteService.Accept(ctx, mux.Vars(r)["code"], userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, out)
}

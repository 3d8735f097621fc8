package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"craftMaxxingAPI/internal/identity"
	"craftMaxxingAPI/middleware"
)

const uuidPattern = "{id:[0-9a-fA-F-]{36}}"

// RouterDeps collects everything NewRouter mounts. Nil handlers leave their
// routes unregistered, which keeps tests small.
type RouterDeps struct {
	Verifier    identity.Verifier
	RateLimiter *middleware.RateLimiter
	Health      func(ctx context.Context) error
	MetricsUser string
	MetricsPass string

	Challenges    *ChallengeHandler
	Invites       *InviteHandler
	Profiles      *ProfileHandler
	Friends       *FriendHandler
	Notifications *NotificationHandler
	AI            *AIHandler
}

func NewRouter(deps RouterDeps) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.RequestLogger)
	r.Use(middleware.MonitorMiddleware)
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Middleware)
	}

	r.HandleFunc("/health", healthHandler(deps.Health)).Methods("GET")
	r.Handle("/metrics", middleware.BasicAuthMiddleware(deps.MetricsUser, deps.MetricsPass)(promhttp.Handler())).Methods("GET")

	if deps.Profiles != nil {
		r.HandleFunc("/api/profiles/check/{username}", deps.Profiles.CheckUsername).Methods("GET")
	}

	// -------------------------------------------------------------------------
	// PROTECTED ROUTES (REQUIRE AUTH HEADER)
	// -------------------------------------------------------------------------
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.AuthMiddleware(deps.Verifier))

	if h := deps.AI; h != nil {
		api.HandleFunc("/learning-plan", h.LearningPlan).Methods("POST")
		api.HandleFunc("/suggest-skill", h.SuggestSkill).Methods("POST")
	}

	if h := deps.Invites; h != nil {
		api.HandleFunc("/challenges/invite-link", h.CreateLink).Methods("POST")
		api.HandleFunc("/challenges/invite/{code}", h.Resolve).Methods("GET")
		api.HandleFunc("/challenges/invite/{code}/qr", h.QRCode).Methods("GET")
		api.HandleFunc("/challenges/invite/{code}/accept", h.Accept).Methods("POST")
	}

	if h := deps.Challenges; h != nil {
		api.HandleFunc("/challenges", h.Create).Methods("POST")
		api.HandleFunc("/challenges", h.List).Methods("GET")
		api.HandleFunc("/challenges/"+uuidPattern, h.Get).Methods("GET")
		api.HandleFunc("/challenges/"+uuidPattern+"/respond", h.Respond).Methods("POST")
		api.HandleFunc("/challenges/"+uuidPattern+"/checkin", h.CheckIn).Methods("POST")
		api.HandleFunc("/challenges/"+uuidPattern+"/give-up", h.GiveUp).Methods("POST")
		api.HandleFunc("/challenges/"+uuidPattern+"/withdraw", h.Withdraw).Methods("POST")
	}

	// /me and /search must be registered before /{username}
	if h := deps.Profiles; h != nil {
		api.HandleFunc("/profiles", h.Create).Methods("POST")
		api.HandleFunc("/profiles/me", h.GetMine).Methods("GET")
		api.HandleFunc("/profiles/me", h.UpdateMine).Methods("PATCH")
		api.HandleFunc("/profiles/me/avatar", h.UploadAvatar).Methods("POST")
		api.HandleFunc("/profiles/search", h.Search).Methods("GET")
		api.HandleFunc("/profiles/{username}", h.GetByUsername).Methods("GET")
		api.HandleFunc("/profiles/{username}/full", h.GetFull).Methods("GET")
	}

	if h := deps.Friends; h != nil {
		api.HandleFunc("/friends", h.List).Methods("GET")
		api.HandleFunc("/friends", h.Add).Methods("POST")
		api.HandleFunc("/friends/requests", h.Requests).Methods("GET")
		api.HandleFunc("/friends/activity", h.Activity).Methods("GET")
		api.HandleFunc("/friends/"+uuidPattern+"/respond", h.Respond).Methods("POST")
		api.HandleFunc("/friends/"+uuidPattern, h.Remove).Methods("DELETE")
	}

	if h := deps.Notifications; h != nil {
		api.HandleFunc("/notifications", h.List).Methods("GET")
		api.HandleFunc("/notifications/unread-count", h.UnreadCount).Methods("GET")
		api.HandleFunc("/notifications/read-all", h.MarkAllRead).Methods("POST")
		api.HandleFunc("/notifications/register-device", h.RegisterDevice).Methods("POST")
		api.HandleFunc("/notifications/ws", h.Stream).Methods("GET")
		api.HandleFunc("/notifications/"+uuidPattern+"/read", h.MarkRead).Methods("POST")
	}

	return r
}

func healthHandler(check func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if check != nil {
			if err := check(ctx); err != nil {
				respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  "database connection failed",
				})
				return
			}
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "healthy", "service": "craftmaxxing-api"})
	}
}

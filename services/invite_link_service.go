package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/skip2/go-qrcode"

	"craftMaxxingAPI/internal/apperr"
	"craftMaxxingAPI/internal/repository"
	"craftMaxxingAPI/internal/types/challenge"
	"craftMaxxingAPI/utils"
)

const (
	maxCodeAttempts = 5
	qrCodeSize      = 256
)

type InviteLinkService struct {
	tx         Transactor
	challenges ChallengeStore
	profiles   ProfileStore
	notifier   Notifier
	ttl        time.Duration
	publicURL  string
	now        func() time.Time
	newCode    func() (string, error)
}

func NewInviteLinkService(tx Transactor, challenges ChallengeStore, profiles ProfileStore, notifier Notifier, ttl time.Duration, publicURL string) *InviteLinkService {
	return &InviteLinkService{
		tx:         tx,
		challenges: challenges,
		profiles:   profiles,
		notifier:   notifier,
		ttl:        ttl,
		publicURL:  strings.TrimRight(publicURL, "/"),
		now:        func() time.Time { return time.Now().UTC() },
		newCode:    utils.GenerateInviteCode,
	}
}

// CreateLink stores an open challenge offer anyone holding the code can accept.
func (s *InviteLinkService) CreateLink(ctx context.Context, creatorID string, req *challenge.CreateLinkRequest) (*challenge.CreateLinkResponse, error) {
	now := s.now()

	skill := strings.TrimSpace(req.ChallengerSkill)
	if skill == "" {
		return nil, apperr.InvalidArgument("A skill is required")
	}

	if _, err := s.profiles.GetProfile(ctx, creatorID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.InvalidArgument("You must create a profile first")
		}
		return nil, apperr.Internal("Failed to load profile", err)
	}
	if !req.Deadline.After(now) {
		return nil, apperr.InvalidArgument("Deadline must be in the future")
	}

	expiresAt := now.Add(s.ttl)
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return nil, apperr.Internal("Failed to generate invite code", err)
		}

		link := &challenge.Link{
			ID:        uuid.New(),
			CreatorID: creatorID,
			Skill:     skill,
			Deadline:  req.Deadline.UTC(),
			Message:   req.Message,
			Code:      code,
			ExpiresAt: &expiresAt,
			CreatedAt: now,
		}
		err = s.challenges.CreateLink(ctx, link)
		if errors.Is(err, repository.ErrDuplicate) {
			log.Warn().Int("attempt", attempt).Msg("CreateLink: invite code collision, retrying")
			continue
		}
		if err != nil {
			return nil, apperr.Wrap(apperr.KindConflict, "Failed to create challenge link", err)
		}

		log.Info().Str("link_id", link.ID.String()).Str("creator_id", creatorID).Msg("CreateLink: invite link created")
		return &challenge.CreateLinkResponse{
			Code:      code,
			Link:      utils.JoinPath(code),
			ExpiresAt: link.ExpiresAt,
		}, nil
	}
	return nil, apperr.Conflict("Failed to create challenge link")
}

// Resolve returns the open offer behind code with its creator's summary.
func (s *InviteLinkService) Resolve(ctx context.Context, code string) (*challenge.Link, error) {
	link, err := s.loadLink(ctx, code)
	if err != nil {
		return nil, err
	}
	if link.IsUsed() {
		return nil, apperr.InvalidState("This challenge link has already been used")
	}
	if link.IsExpired(s.now()) {
		return nil, apperr.Expired("This challenge link has expired")
	}

	summaries, err := s.profiles.GetSummaries(ctx, []string{link.CreatorID})
	if err != nil {
		log.Warn().Err(err).Str("code", code).Msg("Resolve: failed to load creator summary")
	} else {
		link.Creator = summaries[link.CreatorID]
	}
	return link, nil
}

// Accept turns the offer into a pending challenge between its creator and the acceptor.
func (s *InviteLinkService) Accept(ctx context.Context, code, acceptorID string) (*challenge.AcceptLinkResponse, error) {
	now := s.now()
	var (
		link     *challenge.Link
		c        *challenge.Challenge
		acceptor string
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		link, err = s.loadLink(ctx, code)
		if err != nil {
			return err
		}
		if link.IsUsed() {
			return apperr.InvalidState("This link has already been used")
		}
		if link.CreatorID == acceptorID {
			return apperr.InvalidArgument("You cannot accept your own challenge link")
		}
		if link.IsExpired(now) {
			return apperr.Expired("This challenge link has expired")
		}

		me, err := s.profiles.GetProfile(ctx, acceptorID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.InvalidArgument("You must create a profile first")
		}
		if err != nil {
			return apperr.Internal("Failed to load profile", err)
		}
		acceptor = me.Username

		responseDeadline := now.AddDate(0, 0, challenge.DefaultResponseDays)
		c = &challenge.Challenge{
			ID:               uuid.New(),
			ChallengerID:     link.CreatorID,
			OpponentID:       acceptorID,
			ChallengerSkill:  link.Skill,
			OpponentSkill:    link.Skill,
			Deadline:         link.Deadline,
			Message:          link.Message,
			ResponseDeadline: &responseDeadline,
			Status:           challenge.StatusPending,
			CreatedAt:        now,
		}
		if err := s.challenges.CreateChallenge(ctx, c); err != nil {
			return apperr.Wrap(apperr.KindConflict, "Failed to create challenge", err)
		}

		err = s.challenges.ClaimLink(ctx, link.ID, acceptorID, c.ID)
		if errors.Is(err, repository.ErrStale) {
			return apperr.InvalidState("This link has already been used")
		}
		if err != nil {
			return apperr.Internal("Failed to claim challenge link", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("link_id", link.ID.String()).Str("challenge_id", c.ID.String()).Str("acceptor_id", acceptorID).Msg("Accept: invite link consumed")
	s.notifier.Notify(utils.ChallengeLinkAccepted(link.CreatorID, acceptor, c.ID, now))

	return &challenge.AcceptLinkResponse{
		Message:     "Challenge created from invite link",
		ChallengeID: c.ID.String(),
	}, nil
}

// QRCode renders a PNG QR code of the public join URL for an open link.
func (s *InviteLinkService) QRCode(ctx context.Context, code string) ([]byte, error) {
	if _, err := s.Resolve(ctx, code); err != nil {
		return nil, err
	}
	png, err := qrcode.Encode(s.JoinURL(code), qrcode.Medium, qrCodeSize)
	if err != nil {
		return nil, apperr.Internal("Failed to generate QR code", fmt.Errorf("failed to generate QR png: %w", err))
	}
	return png, nil
}

func (s *InviteLinkService) JoinURL(code string) string {
	return s.publicURL + utils.JoinPath(code)
}

func (s *InviteLinkService) loadLink(ctx context.Context, code string) (*challenge.Link, error) {
	link, err := s.challenges.GetLinkByCode(ctx, strings.ToLower(strings.TrimSpace(code)))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Challenge link not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load challenge link", err)
	}
	return link, nil
}

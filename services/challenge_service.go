package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"craftMaxxingAPI/internal/apperr"
	"craftMaxxingAPI/internal/metrics"
	"craftMaxxingAPI/internal/repository"
	"craftMaxxingAPI/internal/types/challenge"
	"craftMaxxingAPI/utils"
)

const finalizeBatchSize = 100

// errWindowClosed aborts a respond transaction whose response window has elapsed
// so the expiry can be written after rollback.
var errWindowClosed = errors.New("response window closed")

type ChallengeService struct {
	tx         Transactor
	challenges ChallengeStore
	profiles   ProfileStore
	notifier   Notifier
	now        func() time.Time
}

func NewChallengeService(tx Transactor, challenges ChallengeStore, profiles ProfileStore, notifier Notifier) *ChallengeService {
	return &ChallengeService{
		tx:         tx,
		challenges: challenges,
		profiles:   profiles,
		notifier:   notifier,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Create issues a challenge from challengerID to the user named in req.
func (s *ChallengeService) Create(ctx context.Context, challengerID string, req *challenge.CreateChallengeRequest) (*challenge.Challenge, error) {
	now := s.now()

	challengerSkill := strings.TrimSpace(req.ChallengerSkill)
	opponentSkill := strings.TrimSpace(req.OpponentSkill)
	if challengerSkill == "" || opponentSkill == "" {
		return nil, apperr.InvalidArgument("Both skills are required")
	}

	me, err := s.profiles.GetProfile(ctx, challengerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.InvalidArgument("You must create a profile first")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load profile", err)
	}

	opponent, err := s.profiles.GetProfileByUsername(ctx, utils.LookupUsername(req.OpponentUsername))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(fmt.Sprintf("User @%s not found", req.OpponentUsername))
	}
	if err != nil {
		return nil, apperr.Internal("Failed to look up opponent", err)
	}

	if opponent.ID == challengerID {
		return nil, apperr.InvalidArgument("You cannot challenge yourself")
	}
	if !req.Deadline.After(now) {
		return nil, apperr.InvalidArgument("Deadline must be in the future")
	}

	responseDeadline := now.AddDate(0, 0, challenge.NormalizeResponseDays(req.ResponseDays))
	c := &challenge.Challenge{
		ID:               uuid.New(),
		ChallengerID:     challengerID,
		OpponentID:       opponent.ID,
		ChallengerSkill:  challengerSkill,
		OpponentSkill:    opponentSkill,
		Deadline:         req.Deadline.UTC(),
		Message:          req.Message,
		ResponseDeadline: &responseDeadline,
		Status:           challenge.StatusPending,
		CreatedAt:        now,
	}
	if err := s.challenges.CreateChallenge(ctx, c); err != nil {
		return nil, apperr.Wrap(apperr.KindConflict, "Failed to create challenge", err)
	}

	c.Challenger = me.Summary()
	c.Opponent = opponent.Summary()

	log.Info().Str("challenge_id", c.ID.String()).Str("challenger_id", challengerID).Str("opponent_id", opponent.ID).Msg("Create: challenge issued")
	s.notifier.Notify(utils.ChallengeReceived(opponent.ID, me.Username, opponentSkill, c.ID, now))
	return c, nil
}

// List returns the user's challenges, newest first. status filters on the
// effective status and may be empty.
func (s *ChallengeService) List(ctx context.Context, userID string, status string) ([]*challenge.WithProgress, error) {
	filter := repository.ChallengeFilter{UserID: userID}
	var want challenge.Status
	if status != "" {
		want = challenge.Status(strings.ToLower(strings.TrimSpace(status)))
		if !want.IsValid() {
			return nil, apperr.InvalidArgument(fmt.Sprintf("Unknown challenge status %q", status))
		}
		filter.Statuses = storedStatusesFor(want)
	}

	all, err := s.challenges.ListChallenges(ctx, filter)
	if err != nil {
		return nil, apperr.Internal("Failed to list challenges", err)
	}

	now := s.now()
	challenges := make([]*challenge.Challenge, 0, len(all))
	for _, c := range all {
		s.reconcile(ctx, c, now)
		if want != "" && c.Status != want {
			continue
		}
		challenges = append(challenges, c)
	}

	return s.withProgress(ctx, userID, challenges)
}

// Get returns one challenge the user takes part in.
func (s *ChallengeService) Get(ctx context.Context, challengeID uuid.UUID, userID string) (*challenge.WithProgress, error) {
	c, err := s.loadChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !c.IsParticipant(userID) {
		return nil, apperr.InvalidState("You are not part of this challenge")
	}
	s.reconcile(ctx, c, s.now())

	out, err := s.withProgress(ctx, userID, []*challenge.Challenge{c})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// Respond accepts or declines a pending challenge on behalf of its opponent.
func (s *ChallengeService) Respond(ctx context.Context, challengeID uuid.UUID, responderID string, accept bool) (*challenge.Challenge, error) {
	now := s.now()
	var c *challenge.Challenge

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.lockChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if c.OpponentID != responderID {
			return apperr.InvalidState("Only the challenged user can respond")
		}
		if c.Status != challenge.StatusPending {
			return apperr.InvalidState("Challenge is no longer pending")
		}
		if challenge.EffectiveStatus(c, now) == challenge.StatusExpired {
			return errWindowClosed
		}

		to := challenge.StatusDeclined
		if accept {
			to = challenge.StatusActive
		}
		if err := s.transition(ctx, c, to); err != nil {
			return err
		}

		if accept {
			for _, p := range []*challenge.Progress{
				challenge.NewProgress(c.ID, c.ChallengerID, c.ChallengerSkill, now),
				challenge.NewProgress(c.ID, c.OpponentID, c.OpponentSkill, now),
			} {
				if err := s.challenges.CreateProgress(ctx, p); err != nil {
					return apperr.Internal("Failed to create progress", err)
				}
			}
		}
		return nil
	})
	if errors.Is(err, errWindowClosed) {
		s.reconcile(ctx, c, now)
		return nil, apperr.Expired("Response deadline has passed. This challenge has expired.")
	}
	if err != nil {
		return nil, err
	}

	metrics.ChallengeTransitions.WithLabelValues(string(challenge.StatusPending), string(c.Status)).Inc()
	log.Info().Str("challenge_id", c.ID.String()).Str("status", string(c.Status)).Msg("Respond: challenge answered")

	if accept {
		s.notifier.Notify(utils.ChallengeAccepted(c.ChallengerID, c.ID, now))
	} else {
		s.notifier.Notify(utils.ChallengeDeclined(c.ChallengerID, c.ID, now))
	}

	s.attachProfiles(ctx, c)
	return c, nil
}

// CheckIn appends one day to the caller's progress on an active challenge.
func (s *ChallengeService) CheckIn(ctx context.Context, challengeID uuid.UUID, userID string, completed bool, notes *string) (*challenge.Progress, error) {
	now := s.now()
	var (
		c     *challenge.Challenge
		p     *challenge.Progress
		entry challenge.DailyLogEntry
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.lockChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if !c.IsParticipant(userID) {
			return apperr.InvalidState("You are not part of this challenge")
		}
		if c.Status != challenge.StatusActive {
			return apperr.InvalidState("Challenge is not active")
		}
		if now.After(c.Deadline) {
			return apperr.Expired("Challenge deadline has passed")
		}

		p, err = s.challenges.GetProgress(ctx, challengeID, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Progress record not found")
		}
		if err != nil {
			return apperr.Internal("Failed to load progress", err)
		}

		prev := len(p.DailyLog)
		entry = p.RecordCheckin(completed, notes, now)
		err = s.challenges.UpdateProgress(ctx, p, prev)
		if errors.Is(err, repository.ErrStale) {
			return apperr.Conflict("Another check-in was recorded at the same time, please retry")
		}
		if err != nil {
			return apperr.Internal("Failed to record check-in", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(utils.OpponentProgress(c.OtherParticipant(userID), s.username(ctx, userID), entry.Day, completed, c.ID, now))
	return p, nil
}

// GiveUp removes the caller from an active challenge. The challenge is cancelled
// once nobody is left in it.
func (s *ChallengeService) GiveUp(ctx context.Context, challengeID uuid.UUID, userID string) error {
	now := s.now()
	var (
		c         *challenge.Challenge
		cancelled bool
	)

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.lockChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if c.Status != challenge.StatusActive {
			return apperr.InvalidState("Can only give up on active challenges")
		}
		if !c.IsParticipant(userID) {
			return apperr.InvalidState("You are not part of this challenge")
		}

		err = s.challenges.DeleteProgress(ctx, challengeID, userID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.InvalidState("You already gave up on this challenge")
		}
		if err != nil {
			return apperr.Internal("Failed to remove progress", err)
		}

		remaining, err := s.challenges.CountProgress(ctx, challengeID)
		if err != nil {
			return apperr.Internal("Failed to count progress", err)
		}
		if remaining == 0 {
			if err := s.transition(ctx, c, challenge.StatusCancelled); err != nil {
				return err
			}
			cancelled = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	if cancelled {
		metrics.ChallengeTransitions.WithLabelValues(string(challenge.StatusActive), string(challenge.StatusCancelled)).Inc()
	}
	log.Info().Str("challenge_id", c.ID.String()).Str("user_id", userID).Bool("cancelled", cancelled).Msg("GiveUp: participant left")

	s.notifier.Notify(utils.OpponentGaveUp(c.OtherParticipant(userID), s.username(ctx, userID), c.ID, now))
	return nil
}

// Withdraw cancels a pending challenge on behalf of its challenger.
func (s *ChallengeService) Withdraw(ctx context.Context, challengeID uuid.UUID, challengerID string) error {
	now := s.now()
	var c *challenge.Challenge

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.lockChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if c.ChallengerID != challengerID {
			return apperr.InvalidState("Only the challenger can withdraw")
		}
		if challenge.EffectiveStatus(c, now) != challenge.StatusPending {
			return apperr.InvalidState("Can only withdraw pending challenges")
		}
		return s.transition(ctx, c, challenge.StatusCancelled)
	})
	if err != nil {
		return err
	}

	metrics.ChallengeTransitions.WithLabelValues(string(challenge.StatusPending), string(challenge.StatusCancelled)).Inc()
	s.notifier.Notify(utils.ChallengeWithdrawn(c.OpponentID, s.username(ctx, challengerID), c.ID, now))
	return nil
}

// FinalizeDue completes every active challenge past its deadline and writes
// expired for pending challenges whose response window closed. It returns the
// number of challenges completed.
func (s *ChallengeService) FinalizeDue(ctx context.Context) (int, error) {
	now := s.now()

	expired, err := s.challenges.ExpireOverdue(ctx, now)
	if err != nil {
		return 0, apperr.Internal("Failed to expire pending challenges", err)
	}
	if expired > 0 {
		metrics.ChallengeTransitions.WithLabelValues(string(challenge.StatusPending), string(challenge.StatusExpired)).Add(float64(expired))
		log.Info().Int64("count", expired).Msg("FinalizeDue: expired pending challenges")
	}

	due, err := s.challenges.ListOverdueActive(ctx, now, finalizeBatchSize)
	if err != nil {
		return 0, apperr.Internal("Failed to list overdue challenges", err)
	}

	completed := 0
	for _, c := range due {
		done, err := s.finalize(ctx, c.ID, now)
		if err != nil {
			log.Error().Err(err).Str("challenge_id", c.ID.String()).Msg("FinalizeDue: failed to complete challenge")
			continue
		}
		if done {
			completed++
		}
	}
	return completed, nil
}

// finalize completes one overdue challenge. It reports false when the
// challenge was no longer active once its row lock was held.
func (s *ChallengeService) finalize(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	var (
		c        *challenge.Challenge
		winnerID string
		skipped  bool
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		c, err = s.challenges.GetChallengeForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to lock challenge: %w", err)
		}
		if c.Status != challenge.StatusActive {
			skipped = true
			return nil
		}

		progress, err := s.challenges.ListProgress(ctx, []uuid.UUID{c.ID})
		if err != nil {
			return fmt.Errorf("failed to load progress: %w", err)
		}

		var loserID string
		winnerID, loserID = challenge.Winner(c, progress)
		var winner *string
		if winnerID != "" {
			winner = &winnerID
		}
		if err := s.challenges.CompleteChallenge(ctx, c.ID, winner); err != nil {
			return err
		}
		if winnerID != "" {
			return s.profiles.RecordResult(ctx, winnerID, loserID)
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	if skipped {
		log.Debug().Str("challenge_id", id.String()).Str("status", string(c.Status)).Msg("finalize: challenge no longer active")
		return false, nil
	}

	metrics.ChallengeTransitions.WithLabelValues(string(challenge.StatusActive), string(challenge.StatusCompleted)).Inc()
	log.Info().Str("challenge_id", c.ID.String()).Str("winner_id", winnerID).Msg("finalize: challenge completed")

	s.notifier.Notify(utils.ChallengeCompleted(c.ChallengerID, winnerID, c.ID, now))
	s.notifier.Notify(utils.ChallengeCompleted(c.OpponentID, winnerID, c.ID, now))
	return true, nil
}

func (s *ChallengeService) loadChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	c, err := s.challenges.GetChallenge(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Challenge not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load challenge", err)
	}
	return c, nil
}

// lockChallenge is loadChallenge taking the row lock. Every lifecycle
// transaction starts with it so transitions on one challenge never interleave.
func (s *ChallengeService) lockChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	c, err := s.challenges.GetChallengeForUpdate(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Challenge not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load challenge", err)
	}
	return c, nil
}

// transition writes c.Status = to, conditional on the status c was read with.
func (s *ChallengeService) transition(ctx context.Context, c *challenge.Challenge, to challenge.Status) error {
	if !challenge.CanTransition(c.Status, to) {
		return apperr.InvalidState(fmt.Sprintf("Challenge cannot move from %s to %s", c.Status, to))
	}
	err := s.challenges.TransitionStatus(ctx, c.ID, c.Status, to)
	if errors.Is(err, repository.ErrStale) {
		return apperr.InvalidState("Challenge was changed by another request")
	}
	if err != nil {
		return apperr.Internal("Failed to update challenge", err)
	}
	c.Status = to
	return nil
}

// reconcile replaces c.Status with its effective status and persists an expiry
// it discovers. The write is best effort.
func (s *ChallengeService) reconcile(ctx context.Context, c *challenge.Challenge, now time.Time) {
	effective := challenge.EffectiveStatus(c, now)
	if effective == c.Status {
		return
	}
	err := s.challenges.TransitionStatus(ctx, c.ID, c.Status, effective)
	switch {
	case err == nil:
		metrics.ChallengeTransitions.WithLabelValues(string(c.Status), string(effective)).Inc()
	case errors.Is(err, repository.ErrStale):
		// someone else moved it first; report what is stored now
		fresh, err := s.challenges.GetChallenge(ctx, c.ID)
		if err != nil {
			log.Warn().Err(err).Str("challenge_id", c.ID.String()).Msg("reconcile: failed to re-read challenge")
			break
		}
		c.Status = challenge.EffectiveStatus(fresh, now)
		c.WinnerID = fresh.WinnerID
		return
	default:
		log.Warn().Err(err).Str("challenge_id", c.ID.String()).Msg("reconcile: failed to persist expiry")
	}
	c.Status = effective
}

func (s *ChallengeService) withProgress(ctx context.Context, userID string, challenges []*challenge.Challenge) ([]*challenge.WithProgress, error) {
	out := make([]*challenge.WithProgress, 0, len(challenges))
	if len(challenges) == 0 {
		return out, nil
	}

	ids := make([]uuid.UUID, 0, len(challenges))
	for _, c := range challenges {
		ids = append(ids, c.ID)
	}
	progress, err := s.challenges.ListProgress(ctx, ids)
	if err != nil {
		return nil, apperr.Internal("Failed to load progress", err)
	}

	type key struct {
		challengeID uuid.UUID
		userID      string
	}
	byKey := make(map[key]*challenge.Progress, len(progress))
	for _, p := range progress {
		byKey[key{p.ChallengeID, p.UserID}] = p
	}

	s.attachProfiles(ctx, challenges...)
	for _, c := range challenges {
		out = append(out, &challenge.WithProgress{
			Challenge:        c,
			MyProgress:       byKey[key{c.ID, userID}],
			OpponentProgress: byKey[key{c.ID, c.OtherParticipant(userID)}],
		})
	}
	return out, nil
}

// attachProfiles fills in participant summaries. Lookup failures leave them nil.
func (s *ChallengeService) attachProfiles(ctx context.Context, challenges ...*challenge.Challenge) {
	ids := make([]string, 0, len(challenges)*2)
	for _, c := range challenges {
		ids = append(ids, c.ChallengerID, c.OpponentID)
	}
	summaries, err := s.profiles.GetSummaries(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Msg("attachProfiles: failed to load profile summaries")
		return
	}
	for _, c := range challenges {
		c.Challenger = summaries[c.ChallengerID]
		c.Opponent = summaries[c.OpponentID]
	}
}

func (s *ChallengeService) username(ctx context.Context, userID string) string {
	return lookupUsername(ctx, s.profiles, userID)
}

func lookupUsername(ctx context.Context, profiles ProfileStore, userID string) string {
	p, err := profiles.GetProfile(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.Warn().Err(err).Str("user_id", userID).Msg("lookupUsername: failed to load profile")
		}
		return "Someone"
	}
	return p.Username
}

// storedStatusesFor lists the stored statuses whose effective status can be want.
func storedStatusesFor(want challenge.Status) []challenge.Status {
	if want == challenge.StatusExpired {
		return []challenge.Status{challenge.StatusExpired, challenge.StatusPending}
	}
	return []challenge.Status{want}
}

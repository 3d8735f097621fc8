package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"craftMaxxingAPI/internal/apperr"
	"craftMaxxingAPI/internal/repository"
	"craftMaxxingAPI/internal/types/friendship"
	"craftMaxxingAPI/internal/types/profile"
	"craftMaxxingAPI/utils"
)

type FriendService struct {
	friends    FriendStore
	profiles   ProfileStore
	challenges ChallengeStore
	notifier   Notifier
	now        func() time.Time
}

func NewFriendService(friends FriendStore, profiles ProfileStore, challenges ChallengeStore, notifier Notifier) *FriendService {
	return &FriendService{
		friends:    friends,
		profiles:   profiles,
		challenges: challenges,
		notifier:   notifier,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// List returns accepted friends regardless of who sent the request.
func (s *FriendService) List(ctx context.Context, userID string) ([]*friendship.Friend, error) {
	rows, err := s.friends.ListFriendships(ctx, userID, friendship.FriendshipAccepted)
	if err != nil {
		return nil, apperr.Internal("Failed to list friends", err)
	}
	return s.toFriends(ctx, userID, rows)
}

// Requests returns pending requests the user has received.
func (s *FriendService) Requests(ctx context.Context, userID string) ([]*friendship.Friend, error) {
	rows, err := s.friends.ListIncoming(ctx, userID)
	if err != nil {
		return nil, apperr.Internal("Failed to list friend requests", err)
	}
	return s.toFriends(ctx, userID, rows)
}

func (s *FriendService) Add(ctx context.Context, userID, friendID string) (*friendship.Friendship, error) {
	if friendID == userID {
		return nil, apperr.InvalidArgument("Cannot add yourself as friend")
	}
	if _, err := s.profiles.GetProfile(ctx, friendID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("Failed to load profile", err)
	}

	existing, err := s.friends.FindFriendship(ctx, userID, friendID)
	switch {
	case err == nil && existing.Status == friendship.FriendshipAccepted:
		return nil, apperr.Conflict("Already friends")
	case err == nil:
		return nil, apperr.Conflict("Friend request already pending")
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperr.Internal("Failed to check friendship", err)
	}

	now := s.now()
	f := &friendship.Friendship{
		ID:        uuid.New(),
		UserID:    userID,
		FriendID:  friendID,
		Status:    friendship.FriendshipPending,
		CreatedAt: now,
	}
	err = s.friends.CreateFriendship(ctx, f)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, apperr.Conflict("Friend request already pending")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to send friend request", err)
	}

	log.Info().Str("friendship_id", f.ID.String()).Str("user_id", userID).Str("friend_id", friendID).Msg("Add: friend request sent")
	s.notifier.Notify(utils.FriendRequest(friendID, userID, lookupUsername(ctx, s.profiles, userID), now))
	return f, nil
}

// Respond accepts or declines a request. Only its receiver may answer; a
// declined request is deleted.
func (s *FriendService) Respond(ctx context.Context, requestID uuid.UUID, userID string, accept bool) error {
	f, err := s.friends.GetFriendship(ctx, requestID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("Request not found")
	}
	if err != nil {
		return apperr.Internal("Failed to load friend request", err)
	}
	if f.FriendID != userID {
		return apperr.InvalidState("Not authorized to respond to this request")
	}
	if f.Status != friendship.FriendshipPending {
		return apperr.InvalidState("Friend request was already answered")
	}

	if !accept {
		err := s.friends.DeleteFriendship(ctx, requestID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("Request not found")
		}
		if err != nil {
			return apperr.Internal("Failed to decline friend request", err)
		}
		log.Info().Str("friendship_id", requestID.String()).Msg("Respond: friend request declined")
		return nil
	}

	now := s.now()
	err = s.friends.AcceptFriendship(ctx, requestID, userID, now)
	if errors.Is(err, repository.ErrStale) {
		return apperr.InvalidState("Friend request was already answered")
	}
	if err != nil {
		return apperr.Internal("Failed to accept friend request", err)
	}

	log.Info().Str("friendship_id", requestID.String()).Msg("Respond: friend request accepted")
	s.notifier.Notify(utils.FriendAccepted(f.UserID, userID, lookupUsername(ctx, s.profiles, userID), now))
	return nil
}

// Remove deletes a friendship or request the user is part of.
func (s *FriendService) Remove(ctx context.Context, friendshipID uuid.UUID, userID string) error {
	f, err := s.friends.GetFriendship(ctx, friendshipID)
	if errors.Is(err, repository.ErrNotFound) || (err == nil && !f.Involves(userID)) {
		return apperr.NotFound("Friendship not found")
	}
	if err != nil {
		return apperr.Internal("Failed to load friendship", err)
	}

	err = s.friends.DeleteFriendship(ctx, friendshipID)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("Friendship not found")
	}
	if err != nil {
		return apperr.Internal("Failed to remove friend", err)
	}
	return nil
}

// Activity lists what the user's friends are learning in active challenges.
func (s *FriendService) Activity(ctx context.Context, userID string) ([]*friendship.Activity, error) {
	rows, err := s.friends.ListFriendships(ctx, userID, friendship.FriendshipAccepted)
	if err != nil {
		return nil, apperr.Internal("Failed to list friends", err)
	}
	out := []*friendship.Activity{}
	if len(rows) == 0 {
		return out, nil
	}

	friendIDs := make([]string, 0, len(rows))
	for _, f := range rows {
		friendIDs = append(friendIDs, f.Other(userID))
	}

	progress, err := s.challenges.ListActiveProgress(ctx, friendIDs)
	if err != nil {
		return nil, apperr.Internal("Failed to load friend activity", err)
	}
	summaries := s.summaries(ctx, friendIDs)

	for _, p := range progress {
		a := &friendship.Activity{
			ChallengeID:   p.ChallengeID,
			Username:      "unknown",
			SkillName:     p.SkillName,
			CompletedDays: p.CompletedDays,
			TotalDays:     p.TotalDays,
		}
		if sum, ok := summaries[p.UserID]; ok {
			a.Username = sum.Username
			a.DisplayName = sum.DisplayName
			a.AvatarURL = sum.AvatarURL
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *FriendService) toFriends(ctx context.Context, userID string, rows []*friendship.Friendship) ([]*friendship.Friend, error) {
	out := make([]*friendship.Friend, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(rows))
	for _, f := range rows {
		ids = append(ids, f.Other(userID))
	}
	summaries := s.summaries(ctx, ids)

	for _, f := range rows {
		friend := &friendship.Friend{
			ID:           f.Other(userID),
			Username:     "unknown",
			Status:       f.Status,
			FriendshipID: f.ID,
		}
		if sum, ok := summaries[friend.ID]; ok {
			friend.Username = sum.Username
			friend.DisplayName = sum.DisplayName
			friend.AvatarURL = sum.AvatarURL
		}
		out = append(out, friend)
	}
	return out, nil
}

// summaries loads profile summaries for display. A failed lookup leaves the
// rows undecorated.
func (s *FriendService) summaries(ctx context.Context, ids []string) map[string]*profile.Summary {
	summaries, err := s.profiles.GetSummaries(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Int("count", len(ids)).Msg("summaries: failed to load friend profiles")
		return map[string]*profile.Summary{}
	}
	return summaries
}

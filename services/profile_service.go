package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"craftMaxxingAPI/internal/apperr"
	"craftMaxxingAPI/internal/repository"
	"craftMaxxingAPI/internal/types/challenge"
	"craftMaxxingAPI/internal/types/friendship"
	"craftMaxxingAPI/internal/types/profile"
	"craftMaxxingAPI/utils"
)

const (
	minSearchLength      = 2
	defaultSearchLimit   = 10
	maxSearchLimit       = 50
	sharedChallengeLimit = 20
	MaxAvatarBytes       = 5 << 20
)

var avatarContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// AvatarUploader stores avatar images and returns their public URL.
type AvatarUploader interface {
	Upload(ctx context.Context, userID string, body []byte, contentType string) (string, error)
}

// ProfileDetails is a profile as seen by another user. Skills and shared
// challenges are only filled for the owner and accepted friends.
type ProfileDetails struct {
	Profile          *profile.Profile       `json:"profile"`
	IsSelf           bool                   `json:"is_self"`
	IsFriend         bool                   `json:"is_friend"`
	Friendship       *friendship.Friendship `json:"friendship"`
	CurrentSkills    []profile.CurrentSkill `json:"current_skills"`
	SharedChallenges []*challenge.Challenge `json:"shared_challenges"`
}

type ProfileService struct {
	profiles   ProfileStore
	friends    FriendStore
	challenges ChallengeStore
	avatars    AvatarUploader
	now        func() time.Time
}

func NewProfileService(profiles ProfileStore, friends FriendStore, challenges ChallengeStore) *ProfileService {
	return &ProfileService{
		profiles:   profiles,
		friends:    friends,
		challenges: challenges,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetAvatarUploader enables avatar uploads. Without one UploadAvatar fails.
func (s *ProfileService) SetAvatarUploader(avatars AvatarUploader) {
	s.avatars = avatars
}

func (s *ProfileService) Create(ctx context.Context, userID string, req *profile.CreateProfileRequest) (*profile.Profile, error) {
	username, err := utils.CanonicalUsername(req.Username)
	if err != nil {
		return nil, apperr.InvalidArgument(err.Error())
	}

	taken, err := s.profiles.UsernameExists(ctx, username)
	if err != nil {
		return nil, apperr.Internal("Failed to check username", err)
	}
	if taken {
		return nil, apperr.Conflict("Username already taken")
	}

	_, err = s.profiles.GetProfile(ctx, userID)
	if err == nil {
		return nil, apperr.Conflict("Profile already exists")
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.Internal("Failed to load profile", err)
	}

	displayName := username
	if req.DisplayName != nil && strings.TrimSpace(*req.DisplayName) != "" {
		displayName = strings.TrimSpace(*req.DisplayName)
	}

	now := s.now()
	p := &profile.Profile{
		ID:          userID,
		Username:    username,
		DisplayName: &displayName,
		Bio:         req.Bio,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err = s.profiles.CreateProfile(ctx, p)
	if errors.Is(err, repository.ErrDuplicate) {
		// lost a race on the username or the id
		return nil, apperr.Conflict("Username already taken")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to create profile", err)
	}

	log.Info().Str("user_id", userID).Str("username", username).Msg("Create: profile created")
	return p, nil
}

// GetMine returns nil without error when the user has no profile yet.
func (s *ProfileService) GetMine(ctx context.Context, userID string) (*profile.Profile, error) {
	p, err := s.profiles.GetProfile(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load profile", err)
	}
	return p, nil
}

func (s *ProfileService) UpdateMine(ctx context.Context, userID string, req *profile.UpdateProfileRequest) (*profile.Profile, error) {
	if req.IsEmpty() {
		return nil, apperr.InvalidArgument("No fields to update")
	}
	p, err := s.profiles.UpdateProfile(ctx, userID, req, s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("Profile not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to update profile", err)
	}
	return p, nil
}

// Search matches usernames by prefix for @tagging and annotates each hit with
// its friendship status toward the caller.
func (s *ProfileService) Search(ctx context.Context, userID, q string, limit int) ([]*profile.Summary, error) {
	q = utils.LookupUsername(q)
	if len(q) < minSearchLength {
		return []*profile.Summary{}, nil
	}
	switch {
	case limit <= 0:
		limit = defaultSearchLimit
	case limit > maxSearchLimit:
		limit = maxSearchLimit
	}

	results, err := s.profiles.SearchProfiles(ctx, q, userID, limit)
	if err != nil {
		return nil, apperr.Internal("Failed to search profiles", err)
	}
	if len(results) == 0 {
		return results, nil
	}

	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	statuses, err := s.friends.StatusesWith(ctx, userID, ids)
	if err != nil {
		log.Warn().Err(err).Str("user_id", userID).Msg("Search: failed to load friendship statuses")
		return results, nil
	}
	for _, r := range results {
		if st, ok := statuses[r.ID]; ok {
			status := string(st)
			r.FriendStatus = &status
		}
	}
	return results, nil
}

func (s *ProfileService) GetByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	p, err := s.profiles.GetProfileByUsername(ctx, utils.LookupUsername(username))
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("User not found")
	}
	if err != nil {
		return nil, apperr.Internal("Failed to load profile", err)
	}
	return p, nil
}

func (s *ProfileService) GetFull(ctx context.Context, userID, username string) (*ProfileDetails, error) {
	target, err := s.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}

	details := &ProfileDetails{Profile: target, IsSelf: target.ID == userID}
	if !details.IsSelf {
		f, err := s.friends.FindFriendship(ctx, userID, target.ID)
		switch {
		case err == nil:
			details.Friendship = f
			details.IsFriend = f.Status == friendship.FriendshipAccepted
		case !errors.Is(err, repository.ErrNotFound):
			return nil, apperr.Internal("Failed to load friendship", err)
		}
	}
	if !details.IsSelf && !details.IsFriend {
		return details, nil
	}

	progress, err := s.challenges.ListActiveProgress(ctx, []string{target.ID})
	if err != nil {
		return nil, apperr.Internal("Failed to load current skills", err)
	}
	details.CurrentSkills = make([]profile.CurrentSkill, 0, len(progress))
	for _, p := range progress {
		details.CurrentSkills = append(details.CurrentSkills, profile.CurrentSkill{
			SkillName:            p.SkillName,
			CompletedDays:        p.CompletedDays,
			TotalDays:            p.TotalDays,
			CompletionPercentage: p.CompletionPercentage,
		})
	}

	shared, err := s.challenges.ListSharedChallenges(ctx, userID, target.ID, sharedChallengeLimit)
	if err != nil {
		return nil, apperr.Internal("Failed to load shared challenges", err)
	}
	now := s.now()
	for _, c := range shared {
		c.Status = challenge.EffectiveStatus(c, now)
	}
	if len(shared) > 0 {
		summaries, err := s.profiles.GetSummaries(ctx, []string{userID, target.ID})
		if err != nil {
			log.Warn().Err(err).Msg("GetFull: failed to load profile summaries")
		} else {
			for _, c := range shared {
				c.Challenger = summaries[c.ChallengerID]
				c.Opponent = summaries[c.OpponentID]
			}
		}
	}
	details.SharedChallenges = shared
	return details, nil
}

// CheckUsername reports whether username could be registered right now.
func (s *ProfileService) CheckUsername(ctx context.Context, username string) (*profile.UsernameAvailability, error) {
	canonical, err := utils.CanonicalUsername(username)
	if err != nil {
		return &profile.UsernameAvailability{Available: false}, nil
	}
	taken, err := s.profiles.UsernameExists(ctx, canonical)
	if err != nil {
		return nil, apperr.Internal("Failed to check username", err)
	}
	return &profile.UsernameAvailability{Available: !taken}, nil
}

// UploadAvatar stores the image and points the profile's avatar_url at it.
func (s *ProfileService) UploadAvatar(ctx context.Context, userID string, body []byte, contentType string) (*profile.Profile, error) {
	if s.avatars == nil {
		return nil, apperr.Upstream("Avatar uploads are not configured", nil)
	}
	if len(body) == 0 {
		return nil, apperr.InvalidArgument("Avatar image is empty")
	}
	if len(body) > MaxAvatarBytes {
		return nil, apperr.InvalidArgument(fmt.Sprintf("Avatar must be at most %d MB", MaxAvatarBytes>>20))
	}
	contentType = strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !avatarContentTypes[contentType] {
		return nil, apperr.InvalidArgument("Avatar must be a JPEG, PNG or WebP image")
	}

	if _, err := s.profiles.GetProfile(ctx, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("Profile not found")
		}
		return nil, apperr.Internal("Failed to load profile", err)
	}

	url, err := s.avatars.Upload(ctx, userID, body, contentType)
	if err != nil {
		return nil, apperr.Upstream("Failed to upload avatar", err)
	}
	log.Info().Str("user_id", userID).Str("url", url).Msg("UploadAvatar: avatar stored")
	return s.UpdateMine(ctx, userID, &profile.UpdateProfileRequest{AvatarURL: &url})
}

package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"craftMaxxingAPI/internal/repository"
	"craftMaxxingAPI/internal/types/challenge"
	"craftMaxxingAPI/internal/types/friendship"
	"craftMaxxingAPI/internal/types/notification"
	"craftMaxxingAPI/internal/types/profile"
)

type progressKey struct {
	challengeID uuid.UUID
	userID      string
}

// memStore is an in-memory stand-in for the PostgreSQL repositories. Units of
// work are serialized and rolled back on error.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	profiles      map[string]profile.Profile
	challenges    map[uuid.UUID]challenge.Challenge
	progress      map[progressKey]challenge.Progress
	links         map[string]challenge.Link
	friends       map[uuid.UUID]friendship.Friendship
	notifications []notification.Notification
	tokens        map[string][]notification.DeviceToken

	staleTransitions int
	summariesErr     error
	linkCollisions   int

	// row locks taken, and how many of them were taken outside WithinTx
	txOpen         bool
	locks          []uuid.UUID
	unguardedLocks int
	// beforeLock runs ahead of each row lock, standing in for a writer that
	// committed first
	beforeLock func(id uuid.UUID)
}

func newMemStore() *memStore {
	return &memStore{
		profiles:   make(map[string]profile.Profile),
		challenges: make(map[uuid.UUID]challenge.Challenge),
		progress:   make(map[progressKey]challenge.Progress),
		links:      make(map[string]challenge.Link),
		friends:    make(map[uuid.UUID]friendship.Friendship),
		tokens:     make(map[string][]notification.DeviceToken),
	}
}

type memSnapshot struct {
	profiles      map[string]profile.Profile
	challenges    map[uuid.UUID]challenge.Challenge
	progress      map[progressKey]challenge.Progress
	links         map[string]challenge.Link
	friends       map[uuid.UUID]friendship.Friendship
	notifications []notification.Notification
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func copyProgress(p challenge.Progress) challenge.Progress {
	p.DailyLog = append([]challenge.DailyLogEntry{}, p.DailyLog...)
	return p
}

func (m *memStore) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snap := memSnapshot{
		profiles:      copyMap(m.profiles),
		challenges:    copyMap(m.challenges),
		links:         copyMap(m.links),
		friends:       copyMap(m.friends),
		notifications: append([]notification.Notification{}, m.notifications...),
		progress:      make(map[progressKey]challenge.Progress, len(m.progress)),
	}
	for k, v := range m.progress {
		snap.progress[k] = copyProgress(v)
	}
	m.txOpen = true
	m.mu.Unlock()

	err := fn(ctx)

	m.mu.Lock()
	m.txOpen = false
	m.mu.Unlock()

	if err != nil {
		m.mu.Lock()
		m.profiles = snap.profiles
		m.challenges = snap.challenges
		m.progress = snap.progress
		m.links = snap.links
		m.friends = snap.friends
		m.notifications = snap.notifications
		m.mu.Unlock()
		return err
	}
	return nil
}

// seeding helpers

func (m *memStore) addProfile(id, username string) *profile.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	p := profile.Profile{ID: id, Username: username, CreatedAt: time.Now(), UpdatedAt: time.Now()}
	m.profiles[id] = p
	return &p
}

func (m *memStore) challenge(id uuid.UUID) challenge.Challenge {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.challenges[id]
}

func (m *memStore) progressRows(id uuid.UUID) []challenge.Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []challenge.Progress
	for k, p := range m.progress {
		if k.challengeID == id {
			out = append(out, copyProgress(p))
		}
	}
	return out
}

func (m *memStore) challengeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.challenges)
}

// ProfileStore

func (m *memStore) CreateProfile(ctx context.Context, p *profile.Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.profiles[p.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, existing := range m.profiles {
		if existing.Username == p.Username {
			return repository.ErrDuplicate
		}
	}
	p.UpdatedAt = p.CreatedAt
	m.profiles[p.ID] = *p
	return nil
}

func (m *memStore) GetProfile(ctx context.Context, id string) (*profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (m *memStore) GetProfileByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.profiles {
		if p.Username == username {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) UsernameExists(ctx context.Context, username string) (bool, error) {
	_, err := m.GetProfileByUsername(ctx, username)
	return err == nil, nil
}

func (m *memStore) UpdateProfile(ctx context.Context, id string, req *profile.UpdateProfileRequest, now time.Time) (*profile.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if req.DisplayName != nil {
		p.DisplayName = req.DisplayName
	}
	if req.Bio != nil {
		p.Bio = req.Bio
	}
	if req.AvatarURL != nil {
		p.AvatarURL = req.AvatarURL
	}
	p.UpdatedAt = now
	m.profiles[id] = p
	return &p, nil
}

func (m *memStore) SearchProfiles(ctx context.Context, prefix, excludeID string, limit int) ([]*profile.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*profile.Summary{}
	for _, p := range m.profiles {
		if p.ID != excludeID && strings.HasPrefix(p.Username, strings.ToLower(prefix)) {
			out = append(out, p.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetSummaries(ctx context.Context, ids []string) (map[string]*profile.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.summariesErr != nil {
		return nil, m.summariesErr
	}
	out := make(map[string]*profile.Summary)
	for _, id := range ids {
		if p, ok := m.profiles[id]; ok {
			out[id] = p.Summary()
		}
	}
	return out, nil
}

func (m *memStore) RecordResult(ctx context.Context, winnerID, loserID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[winnerID]; ok {
		p.TotalWins++
		m.profiles[winnerID] = p
	}
	if p, ok := m.profiles[loserID]; ok {
		p.TotalLosses++
		m.profiles[loserID] = p
	}
	return nil
}

// ChallengeStore

func (m *memStore) CreateChallenge(ctx context.Context, c *challenge.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *c
	stored.Challenger, stored.Opponent = nil, nil
	m.challenges[c.ID] = stored
	return nil
}

func (m *memStore) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (m *memStore) GetChallengeForUpdate(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	if m.beforeLock != nil {
		m.beforeLock(id)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locks = append(m.locks, id)
	if !m.txOpen {
		m.unguardedLocks++
	}
	c, ok := m.challenges[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &c, nil
}

func (m *memStore) lockCount(id uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, l := range m.locks {
		if l == id {
			n++
		}
	}
	return n
}

func (m *memStore) sortedChallenges(keep func(challenge.Challenge) bool) []*challenge.Challenge {
	out := []*challenge.Challenge{}
	for _, c := range m.challenges {
		if keep(c) {
			c := c
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) ListChallenges(ctx context.Context, filter repository.ChallengeFilter) ([]*challenge.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sortedChallenges(func(c challenge.Challenge) bool {
		if !c.IsParticipant(filter.UserID) {
			return false
		}
		if len(filter.Statuses) == 0 {
			return true
		}
		for _, s := range filter.Statuses {
			if c.Status == s {
				return true
			}
		}
		return false
	}), nil
}

func (m *memStore) ListSharedChallenges(ctx context.Context, userA, userB string, limit int) ([]*challenge.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sortedChallenges(func(c challenge.Challenge) bool {
		return (c.ChallengerID == userA && c.OpponentID == userB) ||
			(c.ChallengerID == userB && c.OpponentID == userA)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) ListOverdueActive(ctx context.Context, now time.Time, limit int) ([]*challenge.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.sortedChallenges(func(c challenge.Challenge) bool {
		return c.Status == challenge.StatusActive && c.Deadline.Before(now)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) TransitionStatus(ctx context.Context, id uuid.UUID, from, to challenge.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.staleTransitions > 0 {
		m.staleTransitions--
		return repository.ErrStale
	}
	c, ok := m.challenges[id]
	if !ok || c.Status != from {
		return repository.ErrStale
	}
	c.Status = to
	m.challenges[id] = c
	return nil
}

func (m *memStore) CompleteChallenge(ctx context.Context, id uuid.UUID, winnerID *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.challenges[id]
	if !ok || c.Status != challenge.StatusActive {
		return repository.ErrStale
	}
	c.Status = challenge.StatusCompleted
	c.WinnerID = winnerID
	m.challenges[id] = c
	return nil
}

func (m *memStore) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, c := range m.challenges {
		if c.Status == challenge.StatusPending && c.ResponseDeadline != nil && c.ResponseDeadline.Before(now) {
			c.Status = challenge.StatusExpired
			m.challenges[id] = c
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateProgress(ctx context.Context, p *challenge.Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := progressKey{p.ChallengeID, p.UserID}
	if _, ok := m.progress[k]; ok {
		return repository.ErrDuplicate
	}
	m.progress[k] = copyProgress(*p)
	return nil
}

func (m *memStore) GetProgress(ctx context.Context, challengeID uuid.UUID, userID string) (*challenge.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[progressKey{challengeID, userID}]
	if !ok {
		return nil, repository.ErrNotFound
	}
	p = copyProgress(p)
	return &p, nil
}

func (m *memStore) ListProgress(ctx context.Context, challengeIDs []uuid.UUID) ([]*challenge.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[uuid.UUID]bool, len(challengeIDs))
	for _, id := range challengeIDs {
		want[id] = true
	}
	out := []*challenge.Progress{}
	for k, p := range m.progress {
		if want[k.challengeID] {
			p := copyProgress(p)
			out = append(out, &p)
		}
	}
	return out, nil
}

func (m *memStore) ListActiveProgress(ctx context.Context, userIDs []string) ([]*challenge.Progress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(userIDs))
	for _, id := range userIDs {
		want[id] = true
	}
	out := []*challenge.Progress{}
	for k, p := range m.progress {
		if want[k.userID] && m.challenges[k.challengeID].Status == challenge.StatusActive {
			p := copyProgress(p)
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SkillName < out[j].SkillName })
	return out, nil
}

func (m *memStore) UpdateProgress(ctx context.Context, p *challenge.Progress, prevLogLen int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := progressKey{p.ChallengeID, p.UserID}
	stored, ok := m.progress[k]
	if !ok || len(stored.DailyLog) != prevLogLen {
		return repository.ErrStale
	}
	m.progress[k] = copyProgress(*p)
	return nil
}

func (m *memStore) DeleteProgress(ctx context.Context, challengeID uuid.UUID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := progressKey{challengeID, userID}
	if _, ok := m.progress[k]; !ok {
		return repository.ErrNotFound
	}
	delete(m.progress, k)
	return nil
}

func (m *memStore) CountProgress(ctx context.Context, challengeID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for k := range m.progress {
		if k.challengeID == challengeID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) ListSkills(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[string]bool{}
	out := []string{}
	for _, c := range m.challenges {
		if !c.IsParticipant(userID) {
			continue
		}
		skill := c.SkillFor(userID)
		if !seen[skill] {
			seen[skill] = true
			out = append(out, skill)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) CreateLink(ctx context.Context, l *challenge.Link) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.linkCollisions > 0 {
		m.linkCollisions--
		return repository.ErrDuplicate
	}
	if _, ok := m.links[l.Code]; ok {
		return repository.ErrDuplicate
	}
	m.links[l.Code] = *l
	return nil
}

func (m *memStore) GetLinkByCode(ctx context.Context, code string) (*challenge.Link, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[code]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (m *memStore) ClaimLink(ctx context.Context, linkID uuid.UUID, userID string, challengeID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, l := range m.links {
		if l.ID != linkID {
			continue
		}
		if l.UsedBy != nil {
			return repository.ErrStale
		}
		l.UsedBy = &userID
		l.ChallengeID = &challengeID
		m.links[code] = l
		return nil
	}
	return repository.ErrStale
}

// FriendStore

func (m *memStore) CreateFriendship(ctx context.Context, f *friendship.Friendship) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.friends {
		if existing.UserID == f.UserID && existing.FriendID == f.FriendID {
			return repository.ErrDuplicate
		}
	}
	m.friends[f.ID] = *f
	return nil
}

func (m *memStore) GetFriendship(ctx context.Context, id uuid.UUID) (*friendship.Friendship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.friends[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &f, nil
}

func (m *memStore) FindFriendship(ctx context.Context, a, b string) (*friendship.Friendship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.friends {
		if f.Involves(a) && f.Involves(b) {
			return &f, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) ListFriendships(ctx context.Context, userID string, status friendship.FriendshipStatus) ([]*friendship.Friendship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*friendship.Friendship{}
	for _, f := range m.friends {
		if f.Involves(userID) && f.Status == status {
			f := f
			out = append(out, &f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ListIncoming(ctx context.Context, userID string) ([]*friendship.Friendship, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*friendship.Friendship{}
	for _, f := range m.friends {
		if f.FriendID == userID && f.Status == friendship.FriendshipPending {
			f := f
			out = append(out, &f)
		}
	}
	return out, nil
}

func (m *memStore) StatusesWith(ctx context.Context, userID string, otherIDs []string) (map[string]friendship.FriendshipStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := make(map[string]bool, len(otherIDs))
	for _, id := range otherIDs {
		want[id] = true
	}
	out := make(map[string]friendship.FriendshipStatus)
	for _, f := range m.friends {
		if f.Involves(userID) && want[f.Other(userID)] {
			out[f.Other(userID)] = f.Status
		}
	}
	return out, nil
}

func (m *memStore) AcceptFriendship(ctx context.Context, id uuid.UUID, receiverID string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.friends[id]
	if !ok || f.FriendID != receiverID || f.Status != friendship.FriendshipPending {
		return repository.ErrStale
	}
	f.Status = friendship.FriendshipAccepted
	m.friends[id] = f
	return nil
}

func (m *memStore) DeleteFriendship(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.friends[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.friends, id)
	return nil
}

// NotificationStore

func (m *memStore) CreateNotification(ctx context.Context, n *notification.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifications = append(m.notifications, *n)
	return nil
}

func (m *memStore) ListNotifications(ctx context.Context, userID string, limit int) ([]*notification.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*notification.Notification{}
	for i := len(m.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if n := m.notifications[i]; n.UserID == userID {
			out = append(out, &n)
		}
	}
	return out, nil
}

func (m *memStore) CountUnread(ctx context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *memStore) MarkRead(ctx context.Context, id uuid.UUID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, n := range m.notifications {
		if n.ID == id && n.UserID == userID {
			m.notifications[i].IsRead = true
			return nil
		}
	}
	return repository.ErrNotFound
}

func (m *memStore) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for i, n := range m.notifications {
		if n.UserID == userID && !n.IsRead {
			m.notifications[i].IsRead = true
			count++
		}
	}
	return count, nil
}

func (m *memStore) SaveDeviceToken(ctx context.Context, userID string, token notification.DeviceToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, t := range m.tokens[userID] {
		if t.Token == token.Token {
			m.tokens[userID][i] = token
			return nil
		}
	}
	m.tokens[userID] = append(m.tokens[userID], token)
	return nil
}

func (m *memStore) ListDeviceTokens(ctx context.Context, userID string) ([]notification.DeviceToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]notification.DeviceToken{}, m.tokens[userID]...), nil
}

// recordingNotifier captures notifications instead of dispatching them.
type recordingNotifier struct {
	mu   sync.Mutex
	sent []*notification.Notification
}

func (r *recordingNotifier) Notify(n *notification.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) ofType(t notification.NotificationType) []*notification.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*notification.Notification
	for _, n := range r.sent {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

// testClock is a settable time source.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var (
	_ ProfileStore      = (*memStore)(nil)
	_ ChallengeStore    = (*memStore)(nil)
	_ FriendStore       = (*memStore)(nil)
	_ NotificationStore = (*memStore)(nil)
	_ Transactor        = (*memStore)(nil)
)

package repository

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"craftMaxxingAPI/internal/types/challenge"
	"craftMaxxingAPI/internal/types/profile"
)

// setupTestDB connects to TEST_DATABASE_URL and applies the schema. Tests
// using it are skipped when no database is configured.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dbURL := os.Getenv("TEST_DATABASE_URL")
	if dbURL == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dbURL)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))
	require.NoError(t, Migrate(ctx, pool))
	t.Cleanup(pool.Close)
	return pool
}

// seedProfiles inserts throwaway profiles and removes everything that
// references them when the test ends.
func seedProfiles(t *testing.T, pool *pgxpool.Pool, n int) []string {
	t.Helper()
	ctx := context.Background()
	repo := NewProfileRepository(pool)
	suffix := strings.ReplaceAll(uuid.NewString()[:13], "-", "")

	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("user_test_%d_%s", i, suffix)
		require.NoError(t, repo.CreateProfile(ctx, &profile.Profile{
			ID:        ids[i],
			Username:  fmt.Sprintf("t%d_%s", i, suffix),
			CreatedAt: time.Now(),
		}))
	}

	t.Cleanup(func() {
		for _, stmt := range []string{
			`DELETE FROM challenge_links WHERE creator_id = ANY($1)`,
			`DELETE FROM challenge_progress WHERE user_id = ANY($1)`,
			`DELETE FROM challenges WHERE challenger_id = ANY($1) OR opponent_id = ANY($1)`,
			`DELETE FROM friends WHERE user_id = ANY($1) OR friend_id = ANY($1)`,
			`DELETE FROM notifications WHERE user_id = ANY($1)`,
			`DELETE FROM profiles WHERE id = ANY($1)`,
		} {
			if _, err := pool.Exec(context.Background(), stmt, ids); err != nil {
				t.Logf("Warning: failed to cleanup test data: %v", err)
			}
		}
	})
	return ids
}

func TestChallengeLifecycleAgainstPostgres(t *testing.T) {
	pool := setupTestDB(t)
	users := seedProfiles(t, pool, 2)
	ctx := context.Background()
	repo := NewChallengeRepository(pool)
	tx := NewTxManager(pool)
	now := time.Now().UTC().Truncate(time.Microsecond)

	responseBy := now.Add(72 * time.Hour)
	c := &challenge.Challenge{
		ID: uuid.New(), ChallengerID: users[0], OpponentID: users[1],
		ChallengerSkill: "Juggling", OpponentSkill: "Origami",
		Deadline: now.AddDate(0, 0, 30), ResponseDeadline: &responseBy,
		Status: challenge.StatusPending, CreatedAt: now,
	}
	require.NoError(t, repo.CreateChallenge(ctx, c))

	err := tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := repo.TransitionStatus(ctx, c.ID, challenge.StatusPending, challenge.StatusActive); err != nil {
			return err
		}
		for _, p := range []*challenge.Progress{
			challenge.NewProgress(c.ID, users[0], "Juggling", now),
			challenge.NewProgress(c.ID, users[1], "Origami", now),
		} {
			if err := repo.CreateProgress(ctx, p); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	assert.ErrorIs(t, repo.TransitionStatus(ctx, c.ID, challenge.StatusPending, challenge.StatusActive), ErrStale)

	p, err := repo.GetProgress(ctx, c.ID, users[0])
	require.NoError(t, err)
	p.RecordCheckin(true, nil, now)
	require.NoError(t, repo.UpdateProgress(ctx, p, 0))
	assert.ErrorIs(t, repo.UpdateProgress(ctx, p, 0), ErrStale, "log length guards concurrent check-ins")

	stored, err := repo.GetProgress(ctx, c.ID, users[0])
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CompletedDays)
	require.Len(t, stored.DailyLog, 1)

	skills, err := repo.ListSkills(ctx, users[1])
	require.NoError(t, err)
	assert.Equal(t, []string{"Origami"}, skills)

	winner := users[0]
	require.NoError(t, repo.CompleteChallenge(ctx, c.ID, &winner))
	got, err := repo.GetChallenge(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusCompleted, got.Status)
	require.NotNil(t, got.WinnerID)
	assert.Equal(t, winner, *got.WinnerID)
}

func TestWithinTxRollsBack(t *testing.T) {
	pool := setupTestDB(t)
	users := seedProfiles(t, pool, 2)
	ctx := context.Background()
	repo := NewChallengeRepository(pool)

	id := uuid.New()
	err := NewTxManager(pool).WithinTx(ctx, func(ctx context.Context) error {
		if err := repo.CreateChallenge(ctx, &challenge.Challenge{
			ID: id, ChallengerID: users[0], OpponentID: users[1],
			ChallengerSkill: "a", OpponentSkill: "b",
			Deadline: time.Now().AddDate(0, 0, 30), Status: challenge.StatusPending, CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return ErrStale
	})
	assert.ErrorIs(t, err, ErrStale)

	_, err = repo.GetChallenge(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClaimLinkOnlyOnce(t *testing.T) {
	pool := setupTestDB(t)
	users := seedProfiles(t, pool, 3)
	ctx := context.Background()
	repo := NewChallengeRepository(pool)
	now := time.Now()

	link := &challenge.Link{
		ID: uuid.New(), CreatorID: users[0], Skill: "Calligraphy",
		Deadline: now.AddDate(0, 0, 30), Code: uuid.NewString()[:8], CreatedAt: now,
	}
	require.NoError(t, repo.CreateLink(ctx, link))
	assert.ErrorIs(t, repo.CreateLink(ctx, &challenge.Link{
		ID: uuid.New(), CreatorID: users[0], Skill: "x", Deadline: now, Code: link.Code, CreatedAt: now,
	}), ErrDuplicate)

	c := &challenge.Challenge{
		ID: uuid.New(), ChallengerID: users[0], OpponentID: users[1],
		ChallengerSkill: "Calligraphy", OpponentSkill: "Calligraphy",
		Deadline: link.Deadline, Status: challenge.StatusPending, CreatedAt: now,
	}
	require.NoError(t, repo.CreateChallenge(ctx, c))

	require.NoError(t, repo.ClaimLink(ctx, link.ID, users[1], c.ID))
	assert.ErrorIs(t, repo.ClaimLink(ctx, link.ID, users[2], c.ID), ErrStale)

	got, err := repo.GetLinkByCode(ctx, link.Code)
	require.NoError(t, err)
	require.NotNil(t, got.UsedBy)
	assert.Equal(t, users[1], *got.UsedBy)
}

func TestGetChallengeForUpdateHoldsRowLock(t *testing.T) {
	pool := setupTestDB(t)
	users := seedProfiles(t, pool, 2)
	ctx := context.Background()
	repo := NewChallengeRepository(pool)
	tx := NewTxManager(pool)

	c := &challenge.Challenge{
		ID: uuid.New(), ChallengerID: users[0], OpponentID: users[1],
		ChallengerSkill: "a", OpponentSkill: "b",
		Deadline: time.Now().AddDate(0, 0, 30), Status: challenge.StatusPending, CreatedAt: time.Now(),
	}
	require.NoError(t, repo.CreateChallenge(ctx, c))

	locked := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- tx.WithinTx(ctx, func(ctx context.Context) error {
			got, err := repo.GetChallengeForUpdate(ctx, c.ID)
			if err != nil {
				return err
			}
			close(locked)
			<-release
			return repo.TransitionStatus(ctx, got.ID, got.Status, challenge.StatusActive)
		})
	}()
	select {
	case <-locked:
	case err := <-done:
		t.Fatalf("lock transaction ended early: %v", err)
	}

	// a competing writer blocks until the lock is released
	waitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()
	err := repo.TransitionStatus(waitCtx, c.ID, challenge.StatusPending, challenge.StatusCancelled)
	assert.Error(t, err, "blocked behind the row lock until the deadline")

	close(release)
	require.NoError(t, <-done)
	assert.ErrorIs(t, repo.TransitionStatus(ctx, c.ID, challenge.StatusPending, challenge.StatusCancelled), ErrStale)

	got, err := repo.GetChallenge(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, challenge.StatusActive, got.Status)

	_, err = repo.GetChallengeForUpdate(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

package repository

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"craftMaxxingAPI/internal/types/challenge"
)

const challengeColumns = "id, challenger_id, opponent_id, challenger_skill, opponent_skill, deadline, message, response_deadline, status, winner_id, created_at"

const progressColumns = "id, challenge_id, user_id, skill_name, completed_days, total_days, completion_percentage, last_checkin, daily_log, created_at"

const linkColumns = "id, creator_id, skill, deadline, message, code, used_by, challenge_id, expires_at, created_at"

// ChallengeFilter narrows ListChallenges. An empty Statuses matches every status.
type ChallengeFilter struct {
	UserID   string
	Statuses []challenge.Status
}

type ChallengeRepository struct {
	db *pgxpool.Pool
}

func NewChallengeRepository(db *pgxpool.Pool) *ChallengeRepository {
	return &ChallengeRepository{db: db}
}

func scanChallenge(row pgx.Row) (*challenge.Challenge, error) {
	var c challenge.Challenge
	err := row.Scan(
		&c.ID, &c.ChallengerID, &c.OpponentID, &c.ChallengerSkill, &c.OpponentSkill,
		&c.Deadline, &c.Message, &c.ResponseDeadline, &c.Status, &c.WinnerID, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanProgress(row pgx.Row) (*challenge.Progress, error) {
	var p challenge.Progress
	err := row.Scan(
		&p.ID, &p.ChallengeID, &p.UserID, &p.SkillName, &p.CompletedDays, &p.TotalDays,
		&p.CompletionPercentage, &p.LastCheckin, &p.DailyLog, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.DailyLog == nil {
		p.DailyLog = []challenge.DailyLogEntry{}
	}
	return &p, nil
}

func scanLink(row pgx.Row) (*challenge.Link, error) {
	var l challenge.Link
	err := row.Scan(
		&l.ID, &l.CreatorID, &l.Skill, &l.Deadline, &l.Message, &l.Code,
		&l.UsedBy, &l.ChallengeID, &l.ExpiresAt, &l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *ChallengeRepository) queryChallenges(ctx context.Context, action string, q sq.SelectBuilder) ([]*challenge.Challenge, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, mapErr("build "+action, err)
	}
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(action, err)
	}
	defer rows.Close()

	challenges := []*challenge.Challenge{}
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, mapErr(action, err)
		}
		challenges = append(challenges, c)
	}
	return challenges, mapErr(action, rows.Err())
}

func (r *ChallengeRepository) CreateChallenge(ctx context.Context, c *challenge.Challenge) error {
	query := `
		INSERT INTO challenges (
			id, challenger_id, opponent_id, challenger_skill, opponent_skill,
			deadline, message, response_deadline, status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := conn(ctx, r.db).Exec(ctx, query,
		c.ID, c.ChallengerID, c.OpponentID, c.ChallengerSkill, c.OpponentSkill,
		c.Deadline, c.Message, c.ResponseDeadline, c.Status, c.CreatedAt,
	)
	return mapErr("create challenge", err)
}

func (r *ChallengeRepository) GetChallenge(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1`
	c, err := scanChallenge(conn(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapErr("get challenge", err)
	}
	return c, nil
}

// GetChallengeForUpdate reads a challenge and locks its row until the
// surrounding transaction ends. Lifecycle changes to one challenge take this
// lock first so they run one after another.
func (r *ChallengeRepository) GetChallengeForUpdate(ctx context.Context, id uuid.UUID) (*challenge.Challenge, error) {
	query := `SELECT ` + challengeColumns + ` FROM challenges WHERE id = $1 FOR UPDATE`
	c, err := scanChallenge(conn(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapErr("lock challenge", err)
	}
	return c, nil
}

// ListChallenges returns the user's challenges on either side, newest first.
func (r *ChallengeRepository) ListChallenges(ctx context.Context, filter ChallengeFilter) ([]*challenge.Challenge, error) {
	q := psql.Select(challengeColumns).
		From("challenges").
		Where(sq.Or{
			sq.Eq{"challenger_id": filter.UserID},
			sq.Eq{"opponent_id": filter.UserID},
		}).
		OrderBy("created_at DESC")
	if len(filter.Statuses) > 0 {
		q = q.Where(sq.Eq{"status": filter.Statuses})
	}
	return r.queryChallenges(ctx, "list challenges", q)
}

// ListSharedChallenges returns challenges between the two users in either role.
func (r *ChallengeRepository) ListSharedChallenges(ctx context.Context, userA, userB string, limit int) ([]*challenge.Challenge, error) {
	q := psql.Select(challengeColumns).
		From("challenges").
		Where(sq.Or{
			sq.Eq{"challenger_id": userA, "opponent_id": userB},
			sq.Eq{"challenger_id": userB, "opponent_id": userA},
		}).
		OrderBy("created_at DESC").
		Limit(uint64(limit))
	return r.queryChallenges(ctx, "list shared challenges", q)
}

// ListOverdueActive returns active challenges whose deadline is before now.
func (r *ChallengeRepository) ListOverdueActive(ctx context.Context, now time.Time, limit int) ([]*challenge.Challenge, error) {
	q := psql.Select(challengeColumns).
		From("challenges").
		Where(sq.Eq{"status": challenge.StatusActive}).
		Where(sq.Lt{"deadline": now}).
		OrderBy("deadline").
		Limit(uint64(limit))
	return r.queryChallenges(ctx, "list overdue challenges", q)
}

// TransitionStatus moves a challenge from one status to another. ErrStale is
// returned when the stored status is no longer from.
func (r *ChallengeRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to challenge.Status) error {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE challenges SET status = $3 WHERE id = $1 AND status = $2`,
		id, from, to,
	)
	if err != nil {
		return mapErr("update challenge status", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// CompleteChallenge moves an active challenge to completed and records the winner.
func (r *ChallengeRepository) CompleteChallenge(ctx context.Context, id uuid.UUID, winnerID *string) error {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE challenges SET status = $2, winner_id = $3 WHERE id = $1 AND status = $4`,
		id, challenge.StatusCompleted, winnerID, challenge.StatusActive,
	)
	if err != nil {
		return mapErr("complete challenge", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

// ExpireOverdue writes expired for pending challenges whose response window has closed.
func (r *ChallengeRepository) ExpireOverdue(ctx context.Context, now time.Time) (int64, error) {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE challenges SET status = $1 WHERE status = $2 AND response_deadline < $3`,
		challenge.StatusExpired, challenge.StatusPending, now,
	)
	if err != nil {
		return 0, mapErr("expire pending challenges", err)
	}
	return tag.RowsAffected(), nil
}

func (r *ChallengeRepository) CreateProgress(ctx context.Context, p *challenge.Progress) error {
	query := `
		INSERT INTO challenge_progress (
			id, challenge_id, user_id, skill_name, completed_days, total_days,
			completion_percentage, daily_log, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := conn(ctx, r.db).Exec(ctx, query,
		p.ID, p.ChallengeID, p.UserID, p.SkillName, p.CompletedDays, p.TotalDays,
		p.CompletionPercentage, p.DailyLog, p.CreatedAt,
	)
	return mapErr("create progress", err)
}

func (r *ChallengeRepository) GetProgress(ctx context.Context, challengeID uuid.UUID, userID string) (*challenge.Progress, error) {
	query := `SELECT ` + progressColumns + ` FROM challenge_progress WHERE challenge_id = $1 AND user_id = $2`
	p, err := scanProgress(conn(ctx, r.db).QueryRow(ctx, query, challengeID, userID))
	if err != nil {
		return nil, mapErr("get progress", err)
	}
	return p, nil
}

// ListProgress returns every progress row of the given challenges.
func (r *ChallengeRepository) ListProgress(ctx context.Context, challengeIDs []uuid.UUID) ([]*challenge.Progress, error) {
	if len(challengeIDs) == 0 {
		return []*challenge.Progress{}, nil
	}
	q := psql.Select(progressColumns).
		From("challenge_progress").
		Where(sq.Eq{"challenge_id": challengeIDs})
	return r.queryProgress(ctx, "list progress", q)
}

// ListActiveProgress returns the users' progress rows that belong to active challenges.
func (r *ChallengeRepository) ListActiveProgress(ctx context.Context, userIDs []string) ([]*challenge.Progress, error) {
	if len(userIDs) == 0 {
		return []*challenge.Progress{}, nil
	}
	q := psql.Select(prefixColumns("p", progressColumns)).
		From("challenge_progress p").
		Join("challenges c ON c.id = p.challenge_id").
		Where(sq.Eq{"p.user_id": userIDs, "c.status": challenge.StatusActive}).
		OrderBy("p.last_checkin DESC NULLS LAST")
	return r.queryProgress(ctx, "list active progress", q)
}

func (r *ChallengeRepository) queryProgress(ctx context.Context, action string, q sq.SelectBuilder) ([]*challenge.Progress, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, mapErr("build "+action, err)
	}
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(action, err)
	}
	defer rows.Close()

	progress := []*challenge.Progress{}
	for rows.Next() {
		p, err := scanProgress(rows)
		if err != nil {
			return nil, mapErr(action, err)
		}
		progress = append(progress, p)
	}
	return progress, mapErr(action, rows.Err())
}

// UpdateProgress writes a check-in. The write only lands when the stored log still
// has prevLogLen entries, otherwise ErrStale.
func (r *ChallengeRepository) UpdateProgress(ctx context.Context, p *challenge.Progress, prevLogLen int) error {
	query := `
		UPDATE challenge_progress
		SET completed_days = $2, completion_percentage = $3, last_checkin = $4, daily_log = $5
		WHERE id = $1 AND jsonb_array_length(daily_log) = $6
	`
	tag, err := conn(ctx, r.db).Exec(ctx, query,
		p.ID, p.CompletedDays, p.CompletionPercentage, p.LastCheckin, p.DailyLog, prevLogLen,
	)
	if err != nil {
		return mapErr("update progress", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

func (r *ChallengeRepository) DeleteProgress(ctx context.Context, challengeID uuid.UUID, userID string) error {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`DELETE FROM challenge_progress WHERE challenge_id = $1 AND user_id = $2`,
		challengeID, userID,
	)
	if err != nil {
		return mapErr("delete progress", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ChallengeRepository) CountProgress(ctx context.Context, challengeID uuid.UUID) (int, error) {
	var n int
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT COUNT(*) FROM challenge_progress WHERE challenge_id = $1`, challengeID,
	).Scan(&n)
	if err != nil {
		return 0, mapErr("count progress", err)
	}
	return n, nil
}

// ListSkills returns every distinct skill the user has taken on, in either role.
func (r *ChallengeRepository) ListSkills(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT challenger_skill FROM challenges WHERE challenger_id = $1
		UNION
		SELECT opponent_skill FROM challenges WHERE opponent_id = $1
	`
	rows, err := conn(ctx, r.db).Query(ctx, query, userID)
	if err != nil {
		return nil, mapErr("list skills", err)
	}
	skills, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, mapErr("list skills", err)
	}
	return skills, nil
}

func (r *ChallengeRepository) CreateLink(ctx context.Context, l *challenge.Link) error {
	query := `
		INSERT INTO challenge_links (id, creator_id, skill, deadline, message, code, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := conn(ctx, r.db).Exec(ctx, query,
		l.ID, l.CreatorID, l.Skill, l.Deadline, l.Message, l.Code, l.ExpiresAt, l.CreatedAt,
	)
	return mapErr("create challenge link", err)
}

func (r *ChallengeRepository) GetLinkByCode(ctx context.Context, code string) (*challenge.Link, error) {
	query := `SELECT ` + linkColumns + ` FROM challenge_links WHERE code = $1`
	l, err := scanLink(conn(ctx, r.db).QueryRow(ctx, query, code))
	if err != nil {
		return nil, mapErr("get challenge link", err)
	}
	return l, nil
}

// ClaimLink marks an unused link as consumed. ErrStale when someone else got there first.
func (r *ChallengeRepository) ClaimLink(ctx context.Context, linkID uuid.UUID, userID string, challengeID uuid.UUID) error {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE challenge_links SET used_by = $2, challenge_id = $3 WHERE id = $1 AND used_by IS NULL`,
		linkID, userID, challengeID,
	)
	if err != nil {
		return mapErr("claim challenge link", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

func prefixColumns(alias, columns string) string {
	parts := strings.Split(columns, ", ")
	for i, c := range parts {
		parts[i] = alias + "." + c
	}
	return strings.Join(parts, ", ")
}

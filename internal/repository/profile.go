package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"craftMaxxingAPI/internal/types/profile"
)

const profileColumns = "id, username, display_name, bio, avatar_url, total_wins, total_losses, created_at, updated_at"

type ProfileRepository struct {
	db *pgxpool.Pool
}

func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func scanProfile(row pgx.Row) (*profile.Profile, error) {
	var p profile.Profile
	err := row.Scan(
		&p.ID, &p.Username, &p.DisplayName, &p.Bio, &p.AvatarURL,
		&p.TotalWins, &p.TotalLosses, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ProfileRepository) CreateProfile(ctx context.Context, p *profile.Profile) error {
	query := `
		INSERT INTO profiles (id, username, display_name, bio, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`
	_, err := conn(ctx, r.db).Exec(ctx, query, p.ID, p.Username, p.DisplayName, p.Bio, p.CreatedAt)
	return mapErr("create profile", err)
}

func (r *ProfileRepository) GetProfile(ctx context.Context, id string) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(conn(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapErr("get profile", err)
	}
	return p, nil
}

func (r *ProfileRepository) GetProfileByUsername(ctx context.Context, username string) (*profile.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE username = $1`
	p, err := scanProfile(conn(ctx, r.db).QueryRow(ctx, query, username))
	if err != nil {
		return nil, mapErr("get profile by username", err)
	}
	return p, nil
}

func (r *ProfileRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM profiles WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, mapErr("check username", err)
	}
	return exists, nil
}

// UpdateProfile applies the non-nil fields of req.
func (r *ProfileRepository) UpdateProfile(ctx context.Context, id string, req *profile.UpdateProfileRequest, now time.Time) (*profile.Profile, error) {
	q := psql.Update("profiles").Set("updated_at", now).Where(sq.Eq{"id": id}).Suffix("RETURNING " + profileColumns)
	if req.DisplayName != nil {
		q = q.Set("display_name", *req.DisplayName)
	}
	if req.Bio != nil {
		q = q.Set("bio", *req.Bio)
	}
	if req.AvatarURL != nil {
		q = q.Set("avatar_url", *req.AvatarURL)
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, mapErr("build profile update", err)
	}
	p, err := scanProfile(conn(ctx, r.db).QueryRow(ctx, query, args...))
	if err != nil {
		return nil, mapErr("update profile", err)
	}
	return p, nil
}

// SearchProfiles does a case-insensitive username prefix match.
func (r *ProfileRepository) SearchProfiles(ctx context.Context, prefix, excludeID string, limit int) ([]*profile.Summary, error) {
	query, args, err := psql.
		Select("id", "username", "display_name", "avatar_url").
		From("profiles").
		Where(sq.ILike{"username": escapeLike(prefix) + "%"}).
		Where(sq.NotEq{"id": excludeID}).
		OrderBy("username").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, mapErr("build profile search", err)
	}
	return r.querySummaries(ctx, "search profiles", query, args...)
}

// GetSummaries returns the display summaries for ids keyed by id. Unknown ids are absent.
func (r *ProfileRepository) GetSummaries(ctx context.Context, ids []string) (map[string]*profile.Summary, error) {
	out := make(map[string]*profile.Summary, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	query, args, err := psql.
		Select("id", "username", "display_name", "avatar_url").
		From("profiles").
		Where(sq.Eq{"id": ids}).
		ToSql()
	if err != nil {
		return nil, mapErr("build profile summaries", err)
	}
	summaries, err := r.querySummaries(ctx, "get profile summaries", query, args...)
	if err != nil {
		return nil, err
	}
	for _, s := range summaries {
		out[s.ID] = s
	}
	return out, nil
}

func (r *ProfileRepository) querySummaries(ctx context.Context, action, query string, args ...any) ([]*profile.Summary, error) {
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(action, err)
	}
	defer rows.Close()

	summaries := []*profile.Summary{}
	for rows.Next() {
		var s profile.Summary
		if err := rows.Scan(&s.ID, &s.Username, &s.DisplayName, &s.AvatarURL); err != nil {
			return nil, mapErr(action, err)
		}
		summaries = append(summaries, &s)
	}
	return summaries, mapErr(action, rows.Err())
}

// RecordResult bumps the win and loss counters after a challenge completes.
func (r *ProfileRepository) RecordResult(ctx context.Context, winnerID, loserID string) error {
	query := `
		UPDATE profiles
		SET total_wins = total_wins + CASE WHEN id = $1 THEN 1 ELSE 0 END,
		    total_losses = total_losses + CASE WHEN id = $2 THEN 1 ELSE 0 END
		WHERE id IN ($1, $2)
	`
	_, err := conn(ctx, r.db).Exec(ctx, query, winnerID, loserID)
	return mapErr("record challenge result", err)
}

func escapeLike(s string) string {
	out := make([]rune, 0, len(s))
	for _, c := range s {
		if c == '%' || c == '_' || c == '\\' {
			out = append(out, '\\')
		}
		out = append(out, c)
	}
	return string(out)
}

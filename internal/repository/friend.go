package repository

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"craftMaxxingAPI/internal/types/friendship"
)

const friendshipColumns = "id, user_id, friend_id, status, created_at"

type FriendRepository struct {
	db *pgxpool.Pool
}

func NewFriendRepository(db *pgxpool.Pool) *FriendRepository {
	return &FriendRepository{db: db}
}

func scanFriendship(row pgx.Row) (*friendship.Friendship, error) {
	var f friendship.Friendship
	if err := row.Scan(&f.ID, &f.UserID, &f.FriendID, &f.Status, &f.CreatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *FriendRepository) CreateFriendship(ctx context.Context, f *friendship.Friendship) error {
	query := `
		INSERT INTO friends (id, user_id, friend_id, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
	`
	_, err := conn(ctx, r.db).Exec(ctx, query, f.ID, f.UserID, f.FriendID, f.Status, f.CreatedAt)
	return mapErr("create friendship", err)
}

func (r *FriendRepository) GetFriendship(ctx context.Context, id uuid.UUID) (*friendship.Friendship, error) {
	query := `SELECT ` + friendshipColumns + ` FROM friends WHERE id = $1`
	f, err := scanFriendship(conn(ctx, r.db).QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapErr("get friendship", err)
	}
	return f, nil
}

// FindFriendship returns the row between a and b in either direction.
func (r *FriendRepository) FindFriendship(ctx context.Context, a, b string) (*friendship.Friendship, error) {
	query := `
		SELECT ` + friendshipColumns + ` FROM friends
		WHERE (user_id = $1 AND friend_id = $2) OR (user_id = $2 AND friend_id = $1)
		LIMIT 1
	`
	f, err := scanFriendship(conn(ctx, r.db).QueryRow(ctx, query, a, b))
	if err != nil {
		return nil, mapErr("find friendship", err)
	}
	return f, nil
}

// ListFriendships returns the user's rows in either direction with the given status.
func (r *FriendRepository) ListFriendships(ctx context.Context, userID string, status friendship.FriendshipStatus) ([]*friendship.Friendship, error) {
	q := psql.Select(friendshipColumns).
		From("friends").
		Where(sq.Or{sq.Eq{"user_id": userID}, sq.Eq{"friend_id": userID}}).
		Where(sq.Eq{"status": status}).
		OrderBy("created_at DESC")
	return r.query(ctx, "list friendships", q)
}

// ListIncoming returns pending requests the user has received.
func (r *FriendRepository) ListIncoming(ctx context.Context, userID string) ([]*friendship.Friendship, error) {
	q := psql.Select(friendshipColumns).
		From("friends").
		Where(sq.Eq{"friend_id": userID, "status": friendship.FriendshipPending}).
		OrderBy("created_at DESC")
	return r.query(ctx, "list friend requests", q)
}

// StatusesWith maps each of otherIDs that has a row with userID to that row's status.
func (r *FriendRepository) StatusesWith(ctx context.Context, userID string, otherIDs []string) (map[string]friendship.FriendshipStatus, error) {
	out := make(map[string]friendship.FriendshipStatus, len(otherIDs))
	if len(otherIDs) == 0 {
		return out, nil
	}
	q := psql.Select(friendshipColumns).
		From("friends").
		Where(sq.Or{
			sq.Eq{"user_id": userID, "friend_id": otherIDs},
			sq.Eq{"friend_id": userID, "user_id": otherIDs},
		})
	rows, err := r.query(ctx, "get friendship statuses", q)
	if err != nil {
		return nil, err
	}
	for _, f := range rows {
		out[f.Other(userID)] = f.Status
	}
	return out, nil
}

// AcceptFriendship flips a pending request to accepted. Only the receiver may do
// this; any other state yields ErrStale.
func (r *FriendRepository) AcceptFriendship(ctx context.Context, id uuid.UUID, receiverID string, now time.Time) error {
	tag, err := conn(ctx, r.db).Exec(ctx,
		`UPDATE friends SET status = $3, updated_at = $4 WHERE id = $1 AND friend_id = $2 AND status = $5`,
		id, receiverID, friendship.FriendshipAccepted, now, friendship.FriendshipPending,
	)
	if err != nil {
		return mapErr("accept friendship", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrStale
	}
	return nil
}

func (r *FriendRepository) DeleteFriendship(ctx context.Context, id uuid.UUID) error {
	tag, err := conn(ctx, r.db).Exec(ctx, `DELETE FROM friends WHERE id = $1`, id)
	if err != nil {
		return mapErr("delete friendship", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *FriendRepository) query(ctx context.Context, action string, q sq.SelectBuilder) ([]*friendship.Friendship, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, mapErr("build "+action, err)
	}
	rows, err := conn(ctx, r.db).Query(ctx, query, args...)
	if err != nil {
		return nil, mapErr(action, err)
	}
	defer rows.Close()

	out := []*friendship.Friendship{}
	for rows.Next() {
		f, err := scanFriendship(rows)
		if err != nil {
			return nil, mapErr(action, err)
		}
		out = append(out, f)
	}
	return out, mapErr(action, rows.Err())
}

package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/load28/foodie/internal/models"
	"github.com/load28/foodie/internal/pkg/ulid"
)

// FriendRepository defines the interface for friendship operations.
type FriendRepository interface {
	CreateRequest(ctx context.Context, req *models.FriendRequest) error
	GetRequestByID(ctx context.Context, id string) (*models.FriendRequest, error)
	GetPendingBetween(ctx context.Context, a, b string) (*models.FriendRequest, error)
	ListIncoming(ctx context.Context, userID string) ([]*models.FriendRequest, error)
	ListOutgoing(ctx context.Context, userID string) ([]*models.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID string) (*models.FriendRequest, error)
	UpdateRequestStatus(ctx context.Context, requestID string, status models.FriendRequestStatus) error
	DeleteRequest(ctx context.Context, requestID string) error
	AreFriends(ctx context.Context, a, b string) (bool, error)
	ListFriendIDs(ctx context.Context, userID string) ([]string, error)
	ListFriends(ctx context.Context, userID string) ([]*models.User, error)
	RemoveFriendship(ctx context.Context, a, b string) error
	GetStats(ctx context.Context, userID string) (*models.FriendStats, error)
	RefreshStats(ctx context.Context, userID string) error
}

type friendRepo struct {
	pool *pgxpool.Pool
}

// NewFriendRepository creates a new friendship repository.
func NewFriendRepository(pool *pgxpool.Pool) FriendRepository {
	return &friendRepo{pool: pool}
}

// querier covers the query surface shared by the pool and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const requestColumns = `id, sender_id, receiver_id, status, message, created_at, updated_at`

func scanRequest(row pgx.Row) (*models.FriendRequest, error) {
	var req models.FriendRequest
	err := row.Scan(
		&req.ID,
		&req.SenderID,
		&req.ReceiverID,
		&req.Status,
		&req.Message,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// CreateRequest inserts a pending friend request and refreshes both
// users' pending counters.
func (r *friendRepo) CreateRequest(ctx context.Context, req *models.FriendRequest) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if req.ID == "" {
		req.ID = ulid.New()
	}
	if req.Status == "" {
		req.Status = models.RequestPending
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO friend_requests (id, sender_id, receiver_id, status, message)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at, updated_at`,
		req.ID, req.SenderID, req.ReceiverID, req.Status, req.Message,
	).Scan(&req.CreatedAt, &req.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}

	if err := refreshStats(ctx, tx, req.SenderID); err != nil {
		return err
	}
	if err := refreshStats(ctx, tx, req.ReceiverID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetRequestByID retrieves a request by ID. Returns nil when not found.
func (r *friendRepo) GetRequestByID(ctx context.Context, id string) (*models.FriendRequest, error) {
	query := `SELECT ` + requestColumns + ` FROM friend_requests WHERE id = $1`
	return scanRequest(r.pool.QueryRow(ctx, query, id))
}

// GetPendingBetween finds a pending request in either direction
// between two users.
func (r *friendRepo) GetPendingBetween(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM friend_requests
		WHERE status = $3
		  AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		LIMIT 1`
	return scanRequest(r.pool.QueryRow(ctx, query, a, b, models.RequestPending))
}

// ListIncoming returns pending requests sent to a user, newest first.
func (r *friendRepo) ListIncoming(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM friend_requests
		WHERE receiver_id = $1 AND status = $2
		ORDER BY created_at DESC`
	return r.queryRequests(ctx, query, userID, models.RequestPending)
}

// ListOutgoing returns pending requests sent by a user, newest first.
func (r *friendRepo) ListOutgoing(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	query := `
		SELECT ` + requestColumns + `
		FROM friend_requests
		WHERE sender_id = $1 AND status = $2
		ORDER BY created_at DESC`
	return r.queryRequests(ctx, query, userID, models.RequestPending)
}

func (r *friendRepo) queryRequests(ctx context.Context, query string, args ...any) ([]*models.FriendRequest, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []*models.FriendRequest
	for rows.Next() {
		var req models.FriendRequest
		if err := rows.Scan(
			&req.ID,
			&req.SenderID,
			&req.ReceiverID,
			&req.Status,
			&req.Message,
			&req.CreatedAt,
			&req.UpdatedAt,
		); err != nil {
			return nil, err
		}
		requests = append(requests, &req)
	}
	return requests, rows.Err()
}

// AcceptRequest marks a pending request accepted, creates the
// canonical friendship edge, and refreshes both users' stats. All of
// it happens in one transaction so the edge and counters never
// diverge.
func (r *friendRepo) AcceptRequest(ctx context.Context, requestID string) (*models.FriendRequest, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var req models.FriendRequest
	err = tx.QueryRow(ctx,
		`UPDATE friend_requests
		 SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = $3
		 RETURNING `+requestColumns,
		requestID, models.RequestAccepted, models.RequestPending,
	).Scan(&req.ID, &req.SenderID, &req.ReceiverID, &req.Status, &req.Message, &req.CreatedAt, &req.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	lo, hi := models.CanonicalPair(req.SenderID, req.ReceiverID)
	if _, err := tx.Exec(ctx,
		`INSERT INTO friendships (user_lo, user_hi) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		lo, hi); err != nil {
		return nil, err
	}

	if err := refreshStats(ctx, tx, req.SenderID); err != nil {
		return nil, err
	}
	if err := refreshStats(ctx, tx, req.ReceiverID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &req, nil
}

// UpdateRequestStatus transitions a pending request to rejected or
// blocked and refreshes both users' pending counters.
func (r *friendRepo) UpdateRequestStatus(ctx context.Context, requestID string, status models.FriendRequestStatus) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var senderID, receiverID string
	err = tx.QueryRow(ctx,
		`UPDATE friend_requests
		 SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = $3
		 RETURNING sender_id, receiver_id`,
		requestID, status, models.RequestPending,
	).Scan(&senderID, &receiverID)
	if err != nil {
		return err
	}

	if err := refreshStats(ctx, tx, senderID); err != nil {
		return err
	}
	if err := refreshStats(ctx, tx, receiverID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// DeleteRequest removes a request (sender cancellation) and refreshes
// both users' pending counters.
func (r *friendRepo) DeleteRequest(ctx context.Context, requestID string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var senderID, receiverID string
	err = tx.QueryRow(ctx,
		`DELETE FROM friend_requests WHERE id = $1 RETURNING sender_id, receiver_id`,
		requestID,
	).Scan(&senderID, &receiverID)
	if err != nil {
		return err
	}

	if err := refreshStats(ctx, tx, senderID); err != nil {
		return err
	}
	if err := refreshStats(ctx, tx, receiverID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// AreFriends reports whether two users share a friendship edge.
func (r *friendRepo) AreFriends(ctx context.Context, a, b string) (bool, error) {
	lo, hi := models.CanonicalPair(a, b)
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM friendships WHERE user_lo = $1 AND user_hi = $2)`,
		lo, hi).Scan(&exists)
	return exists, err
}

// ListFriendIDs returns the IDs of a user's friends.
func (r *friendRepo) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT CASE WHEN user_lo = $1 THEN user_hi ELSE user_lo END
		 FROM friendships
		 WHERE user_lo = $1 OR user_hi = $1`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListFriends returns a user's friends as full user records.
func (r *friendRepo) ListFriends(ctx context.Context, userID string) ([]*models.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT u.id, u.email, u.password_hash, u.name, u.profile_image_url, u.status, u.created_at, u.updated_at
		 FROM friendships f
		 JOIN users u ON u.id = CASE WHEN f.user_lo = $1 THEN f.user_hi ELSE f.user_lo END
		 WHERE f.user_lo = $1 OR f.user_hi = $1
		 ORDER BY u.name`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(
			&u.ID,
			&u.Email,
			&u.PasswordHash,
			&u.Name,
			&u.ProfileImageURL,
			&u.Status,
			&u.CreatedAt,
			&u.UpdatedAt,
		); err != nil {
			return nil, err
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// RemoveFriendship deletes the edge between two users, drops any
// accepted request rows between them, and refreshes both stats.
func (r *friendRepo) RemoveFriendship(ctx context.Context, a, b string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	lo, hi := models.CanonicalPair(a, b)
	tag, err := tx.Exec(ctx,
		`DELETE FROM friendships WHERE user_lo = $1 AND user_hi = $2`,
		lo, hi)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	if _, err := tx.Exec(ctx,
		`DELETE FROM friend_requests
		 WHERE status = $3
		   AND ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))`,
		a, b, models.RequestAccepted); err != nil {
		return err
	}

	if err := refreshStats(ctx, tx, a); err != nil {
		return err
	}
	if err := refreshStats(ctx, tx, b); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetStats returns a user's cached aggregates. Returns zeroed stats
// when the row does not exist yet.
func (r *friendRepo) GetStats(ctx context.Context, userID string) (*models.FriendStats, error) {
	var stats models.FriendStats
	err := r.pool.QueryRow(ctx,
		`SELECT user_id, friend_count, pending_sent, pending_received, updated_at
		 FROM friend_stats WHERE user_id = $1`,
		userID,
	).Scan(&stats.UserID, &stats.FriendCount, &stats.PendingSent, &stats.PendingReceived, &stats.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return &models.FriendStats{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// RefreshStats recomputes a user's aggregates from source tables.
func (r *friendRepo) RefreshStats(ctx context.Context, userID string) error {
	return refreshStats(ctx, r.pool, userID)
}

// refreshStats upserts friend_stats with aggregates computed inside
// the statement itself, so concurrent writers cannot interleave a
// stale read between count and write.
func refreshStats(ctx context.Context, q querier, userID string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO friend_stats (user_id, friend_count, pending_sent, pending_received, updated_at)
		VALUES (
			$1,
			(SELECT COUNT(*) FROM friendships WHERE user_lo = $1 OR user_hi = $1),
			(SELECT COUNT(*) FROM friend_requests WHERE sender_id = $1 AND status = 'PENDING'),
			(SELECT COUNT(*) FROM friend_requests WHERE receiver_id = $1 AND status = 'PENDING'),
			now()
		)
		ON CONFLICT (user_id) DO UPDATE
		SET friend_count = EXCLUDED.friend_count,
		    pending_sent = EXCLUDED.pending_sent,
		    pending_received = EXCLUDED.pending_received,
		    updated_at = now()`,
		userID)
	return err
}

// Compile-time check to ensure friendRepo implements FriendRepository.
var _ FriendRepository = (*friendRepo)(nil)

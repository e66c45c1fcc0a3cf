package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/load28/foodie/internal/models"
	"github.com/load28/foodie/internal/pkg/ulid"
)

// AuditRepository defines the interface for audit log operations.
type AuditRepository interface {
	Create(ctx context.Context, log *models.AuditLog) error
	List(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error)
	CountRecentFailures(ctx context.Context, ip string, window time.Duration) (int64, error)
}

type auditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates a new audit log repository.
func NewAuditRepository(pool *pgxpool.Pool) AuditRepository {
	return &auditRepo{pool: pool}
}

// Create inserts a new audit log entry.
func (r *auditRepo) Create(ctx context.Context, log *models.AuditLog) error {
	query := `
		INSERT INTO audit_logs (id, user_id, event_type, ip_address, user_agent, success, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`

	if log.ID == "" {
		log.ID = ulid.New()
	}

	return r.pool.QueryRow(ctx, query,
		log.ID,
		log.UserID,
		log.EventType,
		log.IPAddress,
		log.UserAgent,
		log.Success,
		log.Details,
	).Scan(&log.CreatedAt)
}

// List retrieves audit logs matching the filter, newest first.
func (r *auditRepo) List(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error) {
	query := `
		SELECT id, user_id, event_type, ip_address, user_agent, success, details, created_at
		FROM audit_logs
		WHERE 1=1`

	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.UserID != nil {
		query += ` AND user_id = ` + arg(*filter.UserID)
	}
	if filter.EventType != nil {
		query += ` AND event_type = ` + arg(*filter.EventType)
	}
	if filter.Success != nil {
		query += ` AND success = ` + arg(*filter.Success)
	}
	if filter.Since != nil {
		query += ` AND created_at >= ` + arg(*filter.Since)
	}
	if filter.Until != nil {
		query += ` AND created_at <= ` + arg(*filter.Until)
	}

	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.AuditLog
	for rows.Next() {
		var log models.AuditLog
		if err := rows.Scan(
			&log.ID,
			&log.UserID,
			&log.EventType,
			&log.IPAddress,
			&log.UserAgent,
			&log.Success,
			&log.Details,
			&log.CreatedAt,
		); err != nil {
			return nil, err
		}
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}

// CountRecentFailures counts failed login attempts from an IP within
// the window. Feeds brute-force throttling decisions.
func (r *auditRepo) CountRecentFailures(ctx context.Context, ip string, window time.Duration) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM audit_logs
		WHERE ip_address = $1
		  AND success = false
		  AND event_type IN ($2, $3)
		  AND created_at >= $4`

	var count int64
	err := r.pool.QueryRow(ctx, query,
		ip,
		models.AuditEventLoginFailed,
		models.AuditEventOAuthFailed,
		time.Now().Add(-window),
	).Scan(&count)
	return count, err
}

// Compile-time check to ensure auditRepo implements AuditRepository.
var _ AuditRepository = (*auditRepo)(nil)

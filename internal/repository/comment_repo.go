package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/load28/foodie/internal/models"
	"github.com/load28/foodie/internal/pkg/ulid"
)

// CommentRepository defines the interface for comment operations.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id string) (*models.Comment, error)
	ListByPost(ctx context.Context, postID string, limit, offset int) ([]*models.Comment, error)
	Delete(ctx context.Context, id string) error
}

type commentRepo struct {
	pool *pgxpool.Pool
}

// NewCommentRepository creates a new comment repository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepo{pool: pool}
}

// Create inserts a comment, records its mentions, and increments the
// post's comment counter in one transaction.
func (r *commentRepo) Create(ctx context.Context, comment *models.Comment) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if comment.ID == "" {
		comment.ID = ulid.New()
	}

	comment.IsReply = comment.ParentID != nil

	err = tx.QueryRow(ctx,
		`INSERT INTO comments (id, post_id, author_id, parent_id, content, is_reply)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING created_at, updated_at`,
		comment.ID, comment.PostID, comment.AuthorID, comment.ParentID, comment.Content, comment.IsReply,
	).Scan(&comment.CreatedAt, &comment.UpdatedAt)
	if err != nil {
		return err
	}

	for _, userID := range comment.Mentions {
		if _, err := tx.Exec(ctx,
			`INSERT INTO comment_mentions (comment_id, mentioned_user_id)
			 VALUES ($1, $2)
			 ON CONFLICT DO NOTHING`,
			comment.ID, userID); err != nil {
			return err
		}
	}

	tag, err := tx.Exec(ctx,
		`UPDATE feed_posts SET comments_count = comments_count + 1, updated_at = now() WHERE id = $1`,
		comment.PostID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}

	return tx.Commit(ctx)
}

// GetByID retrieves a comment by ID, including mentions. Returns nil
// when not found.
func (r *commentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	var c models.Comment
	err := r.pool.QueryRow(ctx,
		`SELECT id, post_id, author_id, parent_id, content, is_reply, created_at, updated_at FROM comments WHERE id = $1`,
		id,
	).Scan(&c.ID, &c.PostID, &c.AuthorID, &c.ParentID, &c.Content, &c.IsReply, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	mentions, err := r.mentionsFor(ctx, []string{c.ID})
	if err != nil {
		return nil, err
	}
	c.Mentions = mentions[c.ID]
	return &c, nil
}

// ListByPost returns a post's comments, oldest first.
func (r *commentRepo) ListByPost(ctx context.Context, postID string, limit, offset int) ([]*models.Comment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, post_id, author_id, parent_id, content, is_reply, created_at, updated_at
		 FROM comments
		 WHERE post_id = $1
		 ORDER BY created_at ASC
		 LIMIT $2 OFFSET $3`,
		postID, normalizeLimit(limit), offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var comments []*models.Comment
	var ids []string
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.ParentID, &c.Content, &c.IsReply, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		comments = append(comments, &c)
		ids = append(ids, c.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	mentions, err := r.mentionsFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, c := range comments {
		c.Mentions = mentions[c.ID]
	}
	return comments, nil
}

func (r *commentRepo) mentionsFor(ctx context.Context, commentIDs []string) (map[string][]string, error) {
	if len(commentIDs) == 0 {
		return nil, nil
	}

	rows, err := r.pool.Query(ctx,
		`SELECT comment_id, mentioned_user_id FROM comment_mentions WHERE comment_id = ANY($1)`,
		commentIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string][]string)
	for rows.Next() {
		var commentID, userID string
		if err := rows.Scan(&commentID, &userID); err != nil {
			return nil, err
		}
		result[commentID] = append(result[commentID], userID)
	}
	return result, rows.Err()
}

// Delete removes a comment and decrements the post's comment counter
// in one transaction.
func (r *commentRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var postID string
	err = tx.QueryRow(ctx, `DELETE FROM comments WHERE id = $1 RETURNING post_id`, id).Scan(&postID)
	if errors.Is(err, pgx.ErrNoRows) {
		return pgx.ErrNoRows
	}
	if err != nil {
		return err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE feed_posts SET comments_count = GREATEST(comments_count - 1, 0), updated_at = now() WHERE id = $1`,
		postID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Compile-time check to ensure commentRepo implements CommentRepository.
var _ CommentRepository = (*commentRepo)(nil)

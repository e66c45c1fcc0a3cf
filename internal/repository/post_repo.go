package repository

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/load28/foodie/internal/models"
	"github.com/load28/foodie/internal/pkg/ulid"
)

// PostRepository defines the interface for feed post operations.
type PostRepository interface {
	Create(ctx context.Context, post *models.FeedPost) error
	GetByID(ctx context.Context, id string) (*models.FeedPost, error)
	ListFeed(ctx context.Context, limit, offset int, category *models.FoodCategory) ([]*models.FeedPost, error)
	ListByAuthors(ctx context.Context, authorIDs []string, limit, offset int) ([]*models.FeedPost, error)
	ListIDsByAuthor(ctx context.Context, authorID string) ([]string, error)
	Delete(ctx context.Context, id string) error
	ToggleLike(ctx context.Context, postID, userID string) (liked bool, likes int, err error)
	HasLiked(ctx context.Context, postID, userID string) (bool, error)
}

type postRepo struct {
	pool *pgxpool.Pool
}

// NewPostRepository creates a new feed post repository.
func NewPostRepository(pool *pgxpool.Pool) PostRepository {
	return &postRepo{pool: pool}
}

const postColumns = `id, author_id, title, content, location, category, tags, rating, image_urls, likes, comments_count, created_at, updated_at`

func scanPost(row pgx.Row) (*models.FeedPost, error) {
	var p models.FeedPost
	var images []byte
	err := row.Scan(
		&p.ID,
		&p.AuthorID,
		&p.Title,
		&p.Content,
		&p.Location,
		&p.Category,
		&p.Tags,
		&p.Rating,
		&images,
		&p.Likes,
		&p.CommentsCount,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(images, &p.Images); err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new post.
func (r *postRepo) Create(ctx context.Context, post *models.FeedPost) error {
	query := `
		INSERT INTO feed_posts (id, author_id, title, content, location, category, tags, rating, image_urls)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`

	if post.ID == "" {
		post.ID = ulid.New()
	}
	if post.Tags == nil {
		post.Tags = []string{}
	}
	if post.Images == nil {
		post.Images = []models.PostImage{}
	}

	images, err := json.Marshal(post.Images)
	if err != nil {
		return err
	}

	return r.pool.QueryRow(ctx, query,
		post.ID,
		post.AuthorID,
		post.Title,
		post.Content,
		post.Location,
		post.Category,
		post.Tags,
		post.Rating,
		images,
	).Scan(&post.CreatedAt, &post.UpdatedAt)
}

// GetByID retrieves a post by ID. Returns nil when not found.
func (r *postRepo) GetByID(ctx context.Context, id string) (*models.FeedPost, error) {
	query := `SELECT ` + postColumns + ` FROM feed_posts WHERE id = $1`
	return scanPost(r.pool.QueryRow(ctx, query, id))
}

// ListFeed returns the global feed, newest first, optionally restricted
// to a single category.
func (r *postRepo) ListFeed(ctx context.Context, limit, offset int, category *models.FoodCategory) ([]*models.FeedPost, error) {
	if category != nil {
		query := `
			SELECT ` + postColumns + `
			FROM feed_posts
			WHERE category = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3`
		return r.queryPosts(ctx, query, *category, normalizeLimit(limit), offset)
	}

	query := `
		SELECT ` + postColumns + `
		FROM feed_posts
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	return r.queryPosts(ctx, query, normalizeLimit(limit), offset)
}

// ListByAuthors returns posts from the given authors, newest first.
// Used for the friends feed.
func (r *postRepo) ListByAuthors(ctx context.Context, authorIDs []string, limit, offset int) ([]*models.FeedPost, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT ` + postColumns + `
		FROM feed_posts
		WHERE author_id = ANY($1)
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	return r.queryPosts(ctx, query, authorIDs, normalizeLimit(limit), offset)
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 20
	}
	return limit
}

func (r *postRepo) queryPosts(ctx context.Context, query string, args ...any) ([]*models.FeedPost, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []*models.FeedPost
	for rows.Next() {
		var p models.FeedPost
		var images []byte
		if err := rows.Scan(
			&p.ID,
			&p.AuthorID,
			&p.Title,
			&p.Content,
			&p.Location,
			&p.Category,
			&p.Tags,
			&p.Rating,
			&images,
			&p.Likes,
			&p.CommentsCount,
			&p.CreatedAt,
			&p.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(images, &p.Images); err != nil {
			return nil, err
		}
		posts = append(posts, &p)
	}
	return posts, rows.Err()
}

// ListIDsByAuthor returns the IDs of every post a user has authored.
func (r *postRepo) ListIDsByAuthor(ctx context.Context, authorID string) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT id FROM feed_posts WHERE author_id = $1`, authorID)
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

// Delete removes a post. Likes and comments cascade at the schema level.
func (r *postRepo) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM feed_posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// ToggleLike flips a user's like on a post and keeps the denormalized
// counter in step, all inside one transaction.
func (r *postRepo) ToggleLike(ctx context.Context, postID, userID string) (bool, int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`DELETE FROM post_likes WHERE post_id = $1 AND user_id = $2`,
		postID, userID)
	if err != nil {
		return false, 0, err
	}

	liked := tag.RowsAffected() == 0
	var likes int
	if liked {
		if _, err := tx.Exec(ctx,
			`INSERT INTO post_likes (post_id, user_id) VALUES ($1, $2)`,
			postID, userID); err != nil {
			return false, 0, err
		}
		err = tx.QueryRow(ctx,
			`UPDATE feed_posts SET likes = likes + 1, updated_at = now() WHERE id = $1 RETURNING likes`,
			postID).Scan(&likes)
	} else {
		err = tx.QueryRow(ctx,
			`UPDATE feed_posts SET likes = GREATEST(likes - 1, 0), updated_at = now() WHERE id = $1 RETURNING likes`,
			postID).Scan(&likes)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return false, 0, pgx.ErrNoRows
	}
	if err != nil {
		return false, 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, err
	}
	return liked, likes, nil
}

// HasLiked reports whether a user has liked a post.
func (r *postRepo) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM post_likes WHERE post_id = $1 AND user_id = $2)`,
		postID, userID).Scan(&exists)
	return exists, err
}

// Compile-time check to ensure postRepo implements PostRepository.
var _ PostRepository = (*postRepo)(nil)

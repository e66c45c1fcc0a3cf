package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/load28/foodie/internal/models"
	apierrors "github.com/load28/foodie/internal/pkg/errors"
	"github.com/load28/foodie/internal/repository"
	"github.com/load28/foodie/internal/search"
	"github.com/load28/foodie/internal/storage"
)

// maxImagesPerPost caps uploads per post; each image expands into six
// stored renditions.
const maxImagesPerPost = 10

// CreatePostInput is the payload for creating a post.
type CreatePostInput struct {
	Title    string
	Content  string
	Location *string
	Category *models.FoodCategory
	Tags     []string
	Rating   *float64
	// Images are base64 data URIs uploaded inline.
	Images []string
}

// AddCommentInput is the payload for commenting on a post.
type AddCommentInput struct {
	Content  string
	ParentID *string
	Mentions []string
}

// UpdateProfileInput is the payload for updating a user profile.
type UpdateProfileInput struct {
	Name         *string
	Status       *models.UserStatus
	ProfileImage *string // base64 data URI
}

// Uploader is the object store surface the post service needs.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, body []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// Indexer is the search surface the post service needs.
type Indexer interface {
	IndexPost(ctx context.Context, post *models.FeedPost) error
	DeletePost(ctx context.Context, postID string) error
}

// PostService defines the feed post interface.
type PostService interface {
	CreatePost(ctx context.Context, authorID string, input CreatePostInput) (*models.FeedPost, error)
	GetPost(ctx context.Context, id, viewerID string) (*models.FeedPost, error)
	Feed(ctx context.Context, limit, offset int, category *models.FoodCategory) ([]*models.FeedPost, error)
	DeletePost(ctx context.Context, postID, userID string) error
	ToggleLike(ctx context.Context, postID, userID string) (liked bool, likes int, err error)
	AddComment(ctx context.Context, postID, authorID string, input AddCommentInput) (*models.Comment, error)
	ListComments(ctx context.Context, postID string, limit, offset int) ([]*models.Comment, error)
	DeleteComment(ctx context.Context, commentID, userID string) error
	UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*models.User, error)
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetProfile(ctx context.Context, userID string) (*models.PublicProfile, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]models.PublicProfile, error)
}

type postService struct {
	posts    repository.PostRepository
	comments repository.CommentRepository
	users    repository.UserRepository
	store    Uploader
	indexer  Indexer
	logger   *slog.Logger
}

// NewPostService creates a new feed post service.
func NewPostService(
	posts repository.PostRepository,
	comments repository.CommentRepository,
	users repository.UserRepository,
	store Uploader,
	indexer Indexer,
	logger *slog.Logger,
) PostService {
	return &postService{
		posts:    posts,
		comments: comments,
		users:    users,
		store:    store,
		indexer:  indexer,
		logger:   logger,
	}
}

// CreatePost processes inline images into stored renditions, persists
// the post, and indexes it. If persistence fails after uploads, the
// uploaded objects are deleted so no orphans accumulate.
func (s *postService) CreatePost(ctx context.Context, authorID string, input CreatePostInput) (*models.FeedPost, error) {
	if input.Title == "" || input.Content == "" {
		return nil, apierrors.NewInvalidInputError("Title and content are required")
	}
	if input.Category != nil && !models.IsValidCategory(string(*input.Category)) {
		return nil, apierrors.NewInvalidInputError("Unknown category")
	}
	if len(input.Images) > maxImagesPerPost {
		return nil, apierrors.NewInvalidInputError("Too many images")
	}
	if input.Rating != nil && (*input.Rating < 0 || *input.Rating > 5) {
		return nil, apierrors.NewInvalidInputError("Rating must be between 0 and 5")
	}

	var uploadedKeys []string
	cleanup := func() {
		for _, key := range uploadedKeys {
			if err := s.store.Delete(ctx, key); err != nil {
				s.logger.Warn("failed to clean up uploaded object", "key", key, "error", err)
			}
		}
	}

	images := make([]models.PostImage, 0, len(input.Images))
	for _, dataURI := range input.Images {
		img, err := storage.DecodeDataURI(dataURI)
		if err != nil {
			cleanup()
			return nil, apierrors.NewInvalidInputError("Invalid image data")
		}

		imageID := storage.NewImageID()
		renditions, err := storage.ProcessAllVariants(img, authorID, imageID)
		if err != nil {
			cleanup()
			s.logger.Error("image processing failed", "error", err)
			return nil, apierrors.ErrInternal
		}

		urls := models.PostImage{}
		for _, r := range renditions {
			url, err := s.store.Upload(ctx, r.Key, r.ContentType, r.Data)
			if err != nil {
				cleanup()
				s.logger.Error("image upload failed", "key", r.Key, "error", err)
				return nil, apierrors.NewExternalError("Image upload failed")
			}
			uploadedKeys = append(uploadedKeys, r.Key)

			var slot *models.ImageFormatURLs
			switch r.Variant {
			case storage.VariantThumbnail:
				slot = &urls.Thumbnail
			case storage.VariantMedium:
				slot = &urls.Medium
			case storage.VariantLarge:
				slot = &urls.Large
			}
			if r.Format == "webp" {
				slot.WebP = url
			} else {
				slot.JPEG = url
			}
		}
		images = append(images, urls)
	}

	post := &models.FeedPost{
		AuthorID: authorID,
		Title:    input.Title,
		Content:  input.Content,
		Location: input.Location,
		Category: input.Category,
		Tags:     input.Tags,
		Rating:   input.Rating,
		Images:   images,
	}
	if err := s.posts.Create(ctx, post); err != nil {
		cleanup()
		s.logger.Error("failed to create post", "error", err)
		return nil, apierrors.ErrInternal
	}

	// Indexing is best effort; the post is visible in the feed either way
	if err := s.indexer.IndexPost(ctx, post); err != nil {
		s.logger.Warn("failed to index post", "post_id", post.ID, "error", err)
	}

	return post, nil
}

func (s *postService) GetPost(ctx context.Context, id, viewerID string) (*models.FeedPost, error) {
	post, err := s.posts.GetByID(ctx, id)
	if err != nil {
		return nil, apierrors.ErrInternal
	}
	if post == nil {
		return nil, apierrors.NewNotFoundError("Post")
	}
	if viewerID != "" {
		liked, err := s.posts.HasLiked(ctx, id, viewerID)
		if err != nil {
			return nil, apierrors.ErrInternal
		}
		post.IsLikedByMe = liked
	}
	return post, nil
}

func (s *postService) Feed(ctx context.Context, limit, offset int, category *models.FoodCategory) ([]*models.FeedPost, error) {
	if category != nil && !models.IsValidCategory(string(*category)) {
		return nil, apierrors.NewInvalidInputError("Unknown category")
	}
	posts, err := s.posts.ListFeed(ctx, limit, offset, category)
	if err != nil {
		s.logger.Error("failed to list feed", "error", err)
		return nil, apierrors.ErrInternal
	}
	return posts, nil
}

func (s *postService) DeletePost(ctx context.Context, postID, userID string) error {
	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return apierrors.ErrInternal
	}
	if post == nil {
		return apierrors.NewNotFoundError("Post")
	}
	if post.AuthorID != userID {
		return apierrors.ErrUnauthorized.WithMessage("Only the author can delete a post")
	}

	if err := s.posts.Delete(ctx, postID); err != nil {
		s.logger.Error("failed to delete post", "error", err)
		return apierrors.ErrInternal
	}

	if err := s.indexer.DeletePost(ctx, postID); err != nil {
		s.logger.Warn("failed to remove post from index", "post_id", postID, "error", err)
	}
	return nil
}

func (s *postService) ToggleLike(ctx context.Context, postID, userID string) (bool, int, error) {
	liked, likes, err := s.posts.ToggleLike(ctx, postID, userID)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, 0, apierrors.NewNotFoundError("Post")
	}
	if err != nil {
		s.logger.Error("failed to toggle like", "error", err)
		return false, 0, apierrors.ErrInternal
	}

	// Keep the search index's engagement signal fresh
	if post, err := s.posts.GetByID(ctx, postID); err == nil && post != nil {
		if err := s.indexer.IndexPost(ctx, post); err != nil {
			s.logger.Warn("failed to reindex post", "post_id", postID, "error", err)
		}
	}
	return liked, likes, nil
}

func (s *postService) AddComment(ctx context.Context, postID, authorID string, input AddCommentInput) (*models.Comment, error) {
	if input.Content == "" {
		return nil, apierrors.NewInvalidInputError("Comment content is required")
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		return nil, apierrors.ErrInternal
	}
	if post == nil {
		return nil, apierrors.NewNotFoundError("Post")
	}

	if input.ParentID != nil {
		parent, err := s.comments.GetByID(ctx, *input.ParentID)
		if err != nil {
			return nil, apierrors.ErrInternal
		}
		if parent == nil || parent.PostID != postID {
			return nil, apierrors.NewNotFoundError("Parent comment")
		}
	}

	// Drop mentions of unknown users rather than failing the comment
	var valid []string
	for _, userID := range input.Mentions {
		u, err := s.users.GetByID(ctx, userID)
		if err != nil {
			return nil, apierrors.ErrInternal
		}
		if u != nil {
			valid = append(valid, userID)
		}
	}

	comment := &models.Comment{
		PostID:   postID,
		AuthorID: authorID,
		ParentID: input.ParentID,
		Content:  input.Content,
		Mentions: valid,
	}
	if err := s.comments.Create(ctx, comment); err != nil {
		s.logger.Error("failed to create comment", "error", err)
		return nil, apierrors.ErrInternal
	}

	if updated, err := s.posts.GetByID(ctx, postID); err == nil && updated != nil {
		if err := s.indexer.IndexPost(ctx, updated); err != nil {
			s.logger.Warn("failed to reindex post", "post_id", postID, "error", err)
		}
	}
	return comment, nil
}

func (s *postService) ListComments(ctx context.Context, postID string, limit, offset int) ([]*models.Comment, error) {
	comments, err := s.comments.ListByPost(ctx, postID, limit, offset)
	if err != nil {
		return nil, apierrors.ErrInternal
	}
	return comments, nil
}

func (s *postService) DeleteComment(ctx context.Context, commentID, userID string) error {
	comment, err := s.comments.GetByID(ctx, commentID)
	if err != nil {
		return apierrors.ErrInternal
	}
	if comment == nil {
		return apierrors.NewNotFoundError("Comment")
	}
	if comment.AuthorID != userID {
		return apierrors.ErrUnauthorized.WithMessage("Only the author can delete a comment")
	}

	if err := s.comments.Delete(ctx, commentID); err != nil {
		s.logger.Error("failed to delete comment", "error", err)
		return apierrors.ErrInternal
	}
	return nil
}

// UpdateProfile updates name, status, and optionally replaces the
// profile image through the same rendition pipeline as post images.
func (s *postService) UpdateProfile(ctx context.Context, userID string, input UpdateProfileInput) (*models.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apierrors.ErrInternal
	}
	if user == nil {
		return nil, apierrors.NewNotFoundError("User")
	}

	if input.Name != nil {
		if *input.Name == "" {
			return nil, apierrors.NewInvalidInputError("Name cannot be empty")
		}
		user.Name = *input.Name
	}
	if input.Status != nil {
		if !models.IsValidUserStatus(string(*input.Status)) {
			return nil, apierrors.NewInvalidInputError("Unknown status")
		}
		user.Status = *input.Status
	}
	if input.ProfileImage != nil {
		img, err := storage.DecodeDataURI(*input.ProfileImage)
		if err != nil {
			return nil, apierrors.NewInvalidInputError("Invalid image data")
		}
		imageID := storage.NewImageID()
		resized := storage.Resize(img, 300)
		data, err := storage.EncodeJPEG(resized)
		if err != nil {
			s.logger.Error("profile image encoding failed", "error", err)
			return nil, apierrors.ErrInternal
		}
		key := storage.ObjectKey(userID, imageID, storage.VariantThumbnail, "jpeg")
		url, err := s.store.Upload(ctx, key, "image/jpeg", data)
		if err != nil {
			s.logger.Error("profile image upload failed", "error", err)
			return nil, apierrors.NewExternalError("Image upload failed")
		}
		user.ProfileImageURL = &url
	}

	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Error("failed to update profile", "error", err)
		return nil, apierrors.ErrInternal
	}
	return user, nil
}

// GetProfile returns the public view of a user.
func (s *postService) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, apierrors.ErrInternal
	}
	if user == nil {
		return nil, apierrors.NewNotFoundError("User")
	}
	return user, nil
}

func (s *postService) GetProfile(ctx context.Context, userID string) (*models.PublicProfile, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, apierrors.ErrInternal
	}
	if user == nil {
		return nil, apierrors.NewNotFoundError("User")
	}
	profile := user.Public()
	return &profile, nil
}

// SearchUsers finds users by display name. This stays relational; the
// search index only holds posts.
func (s *postService) SearchUsers(ctx context.Context, query string, limit int) ([]models.PublicProfile, error) {
	if query == "" {
		return []models.PublicProfile{}, nil
	}

	users, err := s.users.SearchByName(ctx, query, limit)
	if err != nil {
		return nil, apierrors.ErrInternal
	}

	profiles := make([]models.PublicProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Public())
	}
	return profiles, nil
}

// Compile-time check to ensure postService implements PostService.
var _ PostService = (*postService)(nil)

// ensure the production search service satisfies the Indexer surface
var _ Indexer = (*search.Service)(nil)

// ensure the production object store satisfies the Uploader surface
var _ Uploader = (*storage.ObjectStore)(nil)

package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/load28/foodie/internal/cache"
	"github.com/load28/foodie/internal/models"
	apierrors "github.com/load28/foodie/internal/pkg/errors"
	"github.com/load28/foodie/internal/repository"
)

// FriendService defines the friendship interface.
type FriendService interface {
	SendRequest(ctx context.Context, senderID, receiverID string, message *string) (*models.FriendRequest, error)
	AcceptRequest(ctx context.Context, requestID, userID string) (*models.FriendRequest, error)
	RejectRequest(ctx context.Context, requestID, userID string) error
	CancelRequest(ctx context.Context, requestID, userID string) error
	Unfriend(ctx context.Context, userID, otherID string) error
	ListFriends(ctx context.Context, userID string) ([]models.PublicProfile, error)
	FriendIDs(ctx context.Context, userID string) ([]string, error)
	IsFriend(ctx context.Context, a, b string) (bool, error)
	FriendCount(ctx context.Context, userID string) (int, error)
	Stats(ctx context.Context, userID string) (*models.FriendStats, error)
	IncomingRequests(ctx context.Context, userID string) ([]*models.FriendRequest, error)
	OutgoingRequests(ctx context.Context, userID string) ([]*models.FriendRequest, error)
	FriendPosts(ctx context.Context, userID string, limit, offset int) ([]*models.FeedPost, error)
}

type friendService struct {
	friends repository.FriendRepository
	users   repository.UserRepository
	posts   repository.PostRepository
	cache   *cache.FriendCache
	logger  *slog.Logger
}

// NewFriendService creates a new friendship service.
func NewFriendService(
	friends repository.FriendRepository,
	users repository.UserRepository,
	posts repository.PostRepository,
	friendCache *cache.FriendCache,
	logger *slog.Logger,
) FriendService {
	return &friendService{
		friends: friends,
		users:   users,
		posts:   posts,
		cache:   friendCache,
		logger:  logger,
	}
}

// SendRequest creates a pending request. When the receiver already has
// a pending request toward the sender, the two requests collapse: the
// existing one is accepted instead of creating a mirror.
func (s *friendService) SendRequest(ctx context.Context, senderID, receiverID string, message *string) (*models.FriendRequest, error) {
	if senderID == receiverID {
		return nil, apierrors.NewInvalidInputError("Cannot send a friend request to yourself")
	}

	receiver, err := s.users.GetByID(ctx, receiverID)
	if err != nil {
		s.logger.Error("failed to look up receiver", "error", err)
		return nil, apierrors.ErrInternal
	}
	if receiver == nil {
		return nil, apierrors.NewNotFoundError("User")
	}

	already, err := s.friends.AreFriends(ctx, senderID, receiverID)
	if err != nil {
		return nil, apierrors.ErrInternal
	}
	if already {
		return nil, apierrors.NewConflictError("Already friends")
	}

	pending, err := s.friends.GetPendingBetween(ctx, senderID, receiverID)
	if err != nil {
		return nil, apierrors.ErrInternal
	}
	if pending != nil {
		if pending.SenderID == senderID {
			return nil, apierrors.NewConflictError("Friend request already sent")
		}
		// Reciprocal request: both sides want the friendship
		accepted, err := s.friends.AcceptRequest(ctx, pending.ID)
		if err != nil {
			s.logger.Error("failed to accept reciprocal request", "error", err)
			return nil, apierrors.ErrInternal
		}
		if accepted == nil {
			return nil, apierrors.NewConflictError("Friend request already resolved")
		}
		s.invalidatePair(ctx, senderID, receiverID)
		return accepted, nil
	}

	req := &models.FriendRequest{SenderID: senderID, ReceiverID: receiverID, Message: message}
	if err := s.friends.CreateRequest(ctx, req); err != nil {
		if err == repository.ErrDuplicate {
			return nil, apierrors.NewConflictError("Friend request already sent")
		}
		s.logger.Error("failed to create friend request", "error", err)
		return nil, apierrors.ErrInternal
	}
	return req, nil
}

func (s *friendService) AcceptRequest(ctx context.Context, requestID, userID string) (*models.FriendRequest, error) {
	req, err := s.friends.GetRequestByID(ctx, requestID)
	if err != nil {
		return nil, apierrors.ErrInternal
	}
	if req == nil || req.Status != models.RequestPending {
		return nil, apierrors.NewNotFoundError("Friend request")
	}
	if req.ReceiverID != userID {
		return nil, apierrors.ErrUnauthorized.WithMessage("Only the receiver can accept a request")
	}

	accepted, err := s.friends.AcceptRequest(ctx, requestID)
	if err != nil {
		s.logger.Error("failed to accept friend request", "error", err)
		return nil, apierrors.ErrInternal
	}
	if accepted == nil {
		return nil, apierrors.NewNotFoundError("Friend request")
	}

	s.invalidatePair(ctx, accepted.SenderID, accepted.ReceiverID)
	return accepted, nil
}

func (s *friendService) RejectRequest(ctx context.Context, requestID, userID string) error {
	req, err := s.friends.GetRequestByID(ctx, requestID)
	if err != nil {
		return apierrors.ErrInternal
	}
	if req == nil || req.Status != models.RequestPending {
		return apierrors.NewNotFoundError("Friend request")
	}
	if req.ReceiverID != userID {
		return apierrors.ErrUnauthorized.WithMessage("Only the receiver can reject a request")
	}

	if err := s.friends.UpdateRequestStatus(ctx, requestID, models.RequestRejected); err != nil {
		s.logger.Error("failed to reject friend request", "error", err)
		return apierrors.ErrInternal
	}
	return nil
}

func (s *friendService) CancelRequest(ctx context.Context, requestID, userID string) error {
	req, err := s.friends.GetRequestByID(ctx, requestID)
	if err != nil {
		return apierrors.ErrInternal
	}
	if req == nil || req.Status != models.RequestPending {
		return apierrors.NewNotFoundError("Friend request")
	}
	if req.SenderID != userID {
		return apierrors.ErrUnauthorized.WithMessage("Only the sender can cancel a request")
	}

	if err := s.friends.DeleteRequest(ctx, requestID); err != nil {
		s.logger.Error("failed to cancel friend request", "error", err)
		return apierrors.ErrInternal
	}
	return nil
}

func (s *friendService) Unfriend(ctx context.Context, userID, otherID string) error {
	if err := s.friends.RemoveFriendship(ctx, userID, otherID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apierrors.NewNotFoundError("Friendship")
		}
		s.logger.Error("failed to remove friendship", "error", err)
		return apierrors.ErrInternal
	}

	s.invalidatePair(ctx, userID, otherID)
	return nil
}

// ListFriends serves the friend list from cache when possible.
func (s *friendService) ListFriends(ctx context.Context, userID string) ([]models.PublicProfile, error) {
	if cached, found, err := s.cache.GetFriends(ctx, userID); err == nil && found {
		return cached, nil
	}

	users, err := s.friends.ListFriends(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list friends", "error", err)
		return nil, apierrors.ErrInternal
	}

	profiles := make([]models.PublicProfile, 0, len(users))
	for _, u := range users {
		profiles = append(profiles, u.Public())
	}

	if err := s.cache.SetFriends(ctx, userID, profiles); err != nil {
		s.logger.Warn("failed to cache friends", "error", err)
	}
	return profiles, nil
}

// FriendIDs serves the friend ID set from cache when possible.
func (s *friendService) FriendIDs(ctx context.Context, userID string) ([]string, error) {
	if cached, found, err := s.cache.GetFriendIDs(ctx, userID); err == nil && found {
		return cached, nil
	}

	ids, err := s.friends.ListFriendIDs(ctx, userID)
	if err != nil {
		s.logger.Error("failed to list friend ids", "error", err)
		return nil, apierrors.ErrInternal
	}

	if err := s.cache.SetFriendIDs(ctx, userID, ids); err != nil {
		s.logger.Warn("failed to cache friend ids", "error", err)
	}
	return ids, nil
}

func (s *friendService) IsFriend(ctx context.Context, a, b string) (bool, error) {
	ids, err := s.FriendIDs(ctx, a)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == b {
			return true, nil
		}
	}
	return false, nil
}

func (s *friendService) FriendCount(ctx context.Context, userID string) (int, error) {
	if count, found, err := s.cache.GetFriendCount(ctx, userID); err == nil && found {
		return count, nil
	}

	stats, err := s.friends.GetStats(ctx, userID)
	if err != nil {
		return 0, apierrors.ErrInternal
	}

	if err := s.cache.SetFriendCount(ctx, userID, stats.FriendCount); err != nil {
		s.logger.Warn("failed to cache friend count", "error", err)
	}
	return stats.FriendCount, nil
}

func (s *friendService) Stats(ctx context.Context, userID string) (*models.FriendStats, error) {
	stats, err := s.friends.GetStats(ctx, userID)
	if err != nil {
		return nil, apierrors.ErrInternal
	}
	return stats, nil
}

func (s *friendService) IncomingRequests(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	requests, err := s.friends.ListIncoming(ctx, userID)
	if err != nil {
		return nil, apierrors.ErrInternal
	}
	return requests, nil
}

func (s *friendService) OutgoingRequests(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	requests, err := s.friends.ListOutgoing(ctx, userID)
	if err != nil {
		return nil, apierrors.ErrInternal
	}
	return requests, nil
}

// FriendPosts returns the friends feed: recent posts authored by the
// user's friends.
func (s *friendService) FriendPosts(ctx context.Context, userID string, limit, offset int) ([]*models.FeedPost, error) {
	ids, err := s.FriendIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*models.FeedPost{}, nil
	}

	posts, err := s.posts.ListByAuthors(ctx, ids, limit, offset)
	if err != nil {
		s.logger.Error("failed to list friend posts", "error", err)
		return nil, apierrors.ErrInternal
	}
	return posts, nil
}

func (s *friendService) invalidatePair(ctx context.Context, a, b string) {
	if err := s.cache.InvalidatePair(ctx, a, b); err != nil {
		s.logger.Warn("failed to invalidate friend cache", "error", err)
	}
}

// Compile-time check to ensure friendService implements FriendService.
var _ FriendService = (*friendService)(nil)

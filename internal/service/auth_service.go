// Package service provides business logic implementations.
package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/load28/foodie/internal/auth"
	"github.com/load28/foodie/internal/cache"
	"github.com/load28/foodie/internal/models"
	apierrors "github.com/load28/foodie/internal/pkg/errors"
	"github.com/load28/foodie/internal/repository"
	"github.com/load28/foodie/internal/session"
)

// invalidCredentialsMessage is returned for unknown emails and wrong
// passwords alike, so responses cannot be used to probe which emails
// have accounts.
const invalidCredentialsMessage = "Invalid email or password"

// LoginResult carries everything a successful authentication yields.
type LoginResult struct {
	User      *models.User `json:"user"`
	Token     string       `json:"token"`
	SessionID string       `json:"session_id"`
}

// RequestMeta carries client attribution for audit records.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// AuthService defines the authentication interface.
type AuthService interface {
	Register(ctx context.Context, email, password, name string, meta RequestMeta) (*LoginResult, error)
	Login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error)
	Logout(ctx context.Context, sessionID, userID string, meta RequestMeta) error
	KakaoLoginURL(ctx context.Context, meta RequestMeta) (string, error)
	LoginWithKakao(ctx context.Context, code, state string, meta RequestMeta) (*LoginResult, error)
	RefreshKakaoToken(ctx context.Context, userID string) error
	UnlinkKakao(ctx context.Context, userID string, meta RequestMeta) error
	DeleteAccount(ctx context.Context, userID string) error
}

type authService struct {
	users       repository.UserRepository
	providers   repository.ProviderRepository
	audits      repository.AuditRepository
	posts       repository.PostRepository
	friends     repository.FriendRepository
	sessions    *session.Store
	tokens      *auth.TokenIssuer
	cipher      *auth.TokenCipher
	states      *auth.StateManager
	kakao       *auth.KakaoClient
	indexer     Indexer
	friendCache *cache.FriendCache
	logger      *slog.Logger
}

// NewAuthService creates a new authentication service. The post and
// friend repositories, indexer, and friend cache serve account
// deletion, which has to clean up everything the user left behind.
func NewAuthService(
	users repository.UserRepository,
	providers repository.ProviderRepository,
	audits repository.AuditRepository,
	posts repository.PostRepository,
	friends repository.FriendRepository,
	sessions *session.Store,
	tokens *auth.TokenIssuer,
	cipher *auth.TokenCipher,
	states *auth.StateManager,
	kakao *auth.KakaoClient,
	indexer Indexer,
	friendCache *cache.FriendCache,
	logger *slog.Logger,
) AuthService {
	return &authService{
		users:       users,
		providers:   providers,
		audits:      audits,
		posts:       posts,
		friends:     friends,
		sessions:    sessions,
		tokens:      tokens,
		cipher:      cipher,
		states:      states,
		kakao:       kakao,
		indexer:     indexer,
		friendCache: friendCache,
		logger:      logger,
	}
}

func (s *authService) Register(ctx context.Context, email, password, name string, meta RequestMeta) (*LoginResult, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, apierrors.ErrInternal
	}

	user := &models.User{
		Email:        &email,
		PasswordHash: hash,
		Name:         name,
		Status:       models.UserStatusOnline,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if err == repository.ErrDuplicate {
			return nil, apierrors.NewConflictError("Email already registered")
		}
		s.logger.Error("failed to create user", "error", err)
		return nil, apierrors.ErrInternal
	}

	s.audit(ctx, &user.ID, models.AuditEventRegister, meta, true, nil)

	return s.establish(ctx, user)
}

func (s *authService) Login(ctx context.Context, email, password string, meta RequestMeta) (*LoginResult, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to look up user", "error", err)
		return nil, apierrors.ErrInternal
	}
	if user == nil {
		s.audit(ctx, nil, models.AuditEventLoginFailed, meta, false, map[string]string{"email": email})
		return nil, apierrors.ErrUnauthorized.WithMessage(invalidCredentialsMessage)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		s.audit(ctx, &user.ID, models.AuditEventLoginFailed, meta, false, nil)
		return nil, apierrors.ErrUnauthorized.WithMessage(invalidCredentialsMessage)
	}

	if err := s.users.UpdateStatus(ctx, user.ID, models.UserStatusOnline); err != nil {
		s.logger.Warn("failed to mark user online", "user_id", user.ID, "error", err)
	} else {
		user.Status = models.UserStatusOnline
	}

	s.audit(ctx, &user.ID, models.AuditEventLogin, meta, true, nil)

	return s.establish(ctx, user)
}

func (s *authService) Logout(ctx context.Context, sessionID, userID string, meta RequestMeta) error {
	if sessionID != "" {
		if err := s.sessions.Delete(ctx, sessionID); err != nil {
			s.logger.Warn("failed to delete session", "error", err)
		}
	}
	if err := s.users.UpdateStatus(ctx, userID, models.UserStatusOffline); err != nil {
		s.logger.Warn("failed to mark user offline", "user_id", userID, "error", err)
	}

	s.audit(ctx, &userID, models.AuditEventLogout, meta, true, nil)
	return nil
}

func (s *authService) KakaoLoginURL(ctx context.Context, meta RequestMeta) (string, error) {
	state, err := s.states.Create(ctx, meta.IP)
	if err != nil {
		s.logger.Error("failed to create oauth state", "error", err)
		return "", apierrors.ErrInternal
	}
	return s.kakao.AuthCodeURL(state), nil
}

func (s *authService) LoginWithKakao(ctx context.Context, code, state string, meta RequestMeta) (*LoginResult, error) {
	data, found, err := s.states.Consume(ctx, state)
	if err != nil {
		s.logger.Error("failed to consume oauth state", "error", err)
		return nil, apierrors.ErrInternal
	}
	if !found {
		s.audit(ctx, nil, models.AuditEventOAuthFailed, meta, false, map[string]string{"reason": "invalid_state"})
		return nil, apierrors.NewInvalidInputError("Invalid state parameter")
	}
	if data.IP != meta.IP {
		s.audit(ctx, nil, models.AuditEventOAuthFailed, meta, false, map[string]string{"reason": "state_ip_mismatch"})
		return nil, apierrors.NewInvalidInputError("Invalid state parameter")
	}

	token, err := s.kakao.Exchange(ctx, code)
	if err != nil {
		s.audit(ctx, nil, models.AuditEventOAuthFailed, meta, false, map[string]string{"reason": "exchange_failed"})
		s.logger.Error("kakao token exchange failed", "error", err)
		return nil, apierrors.NewExternalError("Identity provider rejected the authorization code")
	}

	info, err := s.kakao.FetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		s.audit(ctx, nil, models.AuditEventOAuthFailed, meta, false, map[string]string{"reason": "userinfo_failed"})
		s.logger.Error("kakao user info fetch failed", "error", err)
		return nil, apierrors.NewExternalError("Failed to fetch profile from identity provider")
	}

	user, err := s.findOrCreateKakaoUser(ctx, info)
	if err != nil {
		return nil, err
	}

	// Store provider tokens encrypted
	encryptedAccess, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		s.logger.Error("failed to encrypt access token", "error", err)
		return nil, apierrors.ErrInternal
	}
	var encryptedRefresh *string
	if token.RefreshToken != "" {
		sealed, err := s.cipher.Encrypt(token.RefreshToken)
		if err != nil {
			s.logger.Error("failed to encrypt refresh token", "error", err)
			return nil, apierrors.ErrInternal
		}
		encryptedRefresh = &sealed
	}
	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		expiresAt = &token.Expiry
	}

	link := &models.OAuthProvider{
		UserID:         user.ID,
		Provider:       models.ProviderKakao,
		ProviderUserID: info.ID,
		AccessToken:    encryptedAccess,
		RefreshToken:   encryptedRefresh,
		TokenExpiresAt: expiresAt,
	}
	if err := s.providers.Upsert(ctx, link); err != nil {
		s.logger.Error("failed to store provider link", "error", err)
		return nil, apierrors.ErrInternal
	}

	if err := s.users.UpdateStatus(ctx, user.ID, models.UserStatusOnline); err == nil {
		user.Status = models.UserStatusOnline
	}

	s.audit(ctx, &user.ID, models.AuditEventOAuthLogin, meta, true, map[string]string{"provider": "kakao"})

	return s.establish(ctx, user)
}

func (s *authService) findOrCreateKakaoUser(ctx context.Context, info *auth.KakaoUserInfo) (*models.User, error) {
	link, err := s.providers.GetByProviderUserID(ctx, models.ProviderKakao, info.ID)
	if err != nil {
		s.logger.Error("failed to look up provider link", "error", err)
		return nil, apierrors.ErrInternal
	}
	if link != nil {
		user, err := s.users.GetByID(ctx, link.UserID)
		if err != nil {
			return nil, apierrors.ErrInternal
		}
		if user == nil {
			return nil, apierrors.ErrInternal
		}
		return user, nil
	}

	// Link by email when the account already exists
	if info.Email != "" {
		user, err := s.users.GetByEmail(ctx, info.Email)
		if err != nil {
			return nil, apierrors.ErrInternal
		}
		if user != nil {
			return user, nil
		}
	}

	name := info.Nickname
	if name == "" {
		name = "카카오 사용자"
	}
	user := &models.User{
		Name:   name,
		Status: models.UserStatusOnline,
	}
	if info.Email != "" {
		email := info.Email
		user.Email = &email
	}
	if info.ProfileImageURL != "" {
		user.ProfileImageURL = &info.ProfileImageURL
	}
	if err := s.users.Create(ctx, user); err != nil {
		s.logger.Error("failed to create kakao user", "error", err)
		return nil, apierrors.ErrInternal
	}
	return user, nil
}

func (s *authService) RefreshKakaoToken(ctx context.Context, userID string) error {
	link, err := s.providers.GetByUserID(ctx, userID, models.ProviderKakao)
	if err != nil {
		return apierrors.ErrInternal
	}
	if link == nil || link.RefreshToken == nil {
		return apierrors.NewNotFoundError("Kakao link")
	}

	refreshToken, err := s.cipher.Decrypt(*link.RefreshToken)
	if err != nil {
		s.logger.Error("failed to decrypt refresh token", "user_id", userID)
		return apierrors.ErrInternal
	}

	token, err := s.kakao.Refresh(ctx, refreshToken)
	if err != nil {
		s.logger.Error("kakao token refresh failed", "error", err)
		return apierrors.NewExternalError("Identity provider rejected the refresh token")
	}

	encryptedAccess, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return apierrors.ErrInternal
	}
	var encryptedRefresh *string
	if token.RefreshToken != "" {
		sealed, err := s.cipher.Encrypt(token.RefreshToken)
		if err != nil {
			return apierrors.ErrInternal
		}
		encryptedRefresh = &sealed
	}
	var expiresAt *time.Time
	if !token.Expiry.IsZero() {
		expiresAt = &token.Expiry
	}

	if err := s.providers.UpdateTokens(ctx, link.ID, encryptedAccess, encryptedRefresh, expiresAt); err != nil {
		s.logger.Error("failed to store refreshed tokens", "error", err)
		return apierrors.ErrInternal
	}
	return nil
}

func (s *authService) UnlinkKakao(ctx context.Context, userID string, meta RequestMeta) error {
	link, err := s.providers.GetByUserID(ctx, userID, models.ProviderKakao)
	if err != nil {
		return apierrors.ErrInternal
	}
	if link == nil {
		return apierrors.NewNotFoundError("Kakao link")
	}

	accessToken, err := s.cipher.Decrypt(link.AccessToken)
	if err != nil {
		s.logger.Error("failed to decrypt access token", "user_id", userID)
		return apierrors.ErrInternal
	}

	if err := s.kakao.Unlink(ctx, accessToken); err != nil {
		// The provider-side unlink is best effort; the local link is
		// removed either way so the account cannot keep using it.
		s.logger.Warn("kakao unlink call failed", "user_id", userID, "error", err)
	}

	if err := s.providers.Delete(ctx, link.ID); err != nil {
		s.logger.Error("failed to delete provider link", "error", err)
		return apierrors.ErrInternal
	}

	s.audit(ctx, &userID, models.AuditEventUnlink, meta, true, map[string]string{"provider": "kakao"})
	return nil
}

// DeleteAccount removes the user row, every live session, the user's
// search documents, and the cached friend lists on both sides of each
// friendship. Database rows for posts, comments, likes, and provider
// links cascade at the schema level.
func (s *authService) DeleteAccount(ctx context.Context, userID string) error {
	if _, err := s.sessions.DeleteAllForUser(ctx, userID); err != nil {
		s.logger.Warn("failed to delete user sessions", "user_id", userID, "error", err)
	}

	postIDs, err := s.posts.ListIDsByAuthor(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to list user posts for deindexing", "user_id", userID, "error", err)
	}

	friendIDs, err := s.friends.ListFriendIDs(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to list friends for cache cleanup", "user_id", userID, "error", err)
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		s.logger.Error("failed to delete user", "user_id", userID, "error", err)
		return apierrors.ErrInternal
	}

	for _, postID := range postIDs {
		if err := s.indexer.DeletePost(ctx, postID); err != nil {
			s.logger.Warn("failed to deindex post", "post_id", postID, "error", err)
		}
	}

	if err := s.friendCache.Invalidate(ctx, userID); err != nil {
		s.logger.Warn("failed to invalidate friend cache", "user_id", userID, "error", err)
	}
	for _, friendID := range friendIDs {
		if err := s.friendCache.Invalidate(ctx, friendID); err != nil {
			s.logger.Warn("failed to invalidate friend cache", "user_id", friendID, "error", err)
		}
	}
	return nil
}

// establish mints both credentials for a logged-in user: a server-side
// session and a bearer token.
func (s *authService) establish(ctx context.Context, user *models.User) (*LoginResult, error) {
	sessionID, err := s.sessions.Create(ctx, user.ID)
	if err != nil {
		s.logger.Error("failed to create session", "error", err)
		return nil, apierrors.ErrInternal
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.logger.Error("failed to issue token", "error", err)
		return nil, apierrors.ErrInternal
	}

	return &LoginResult{User: user, Token: token, SessionID: sessionID}, nil
}

func (s *authService) audit(ctx context.Context, userID *string, event models.AuditEvent, meta RequestMeta, success bool, details any) {
	log := &models.AuditLog{
		UserID:    userID,
		EventType: event,
		Success:   success,
	}
	if meta.IP != "" {
		log.IPAddress = &meta.IP
	}
	if meta.UserAgent != "" {
		log.UserAgent = &meta.UserAgent
	}
	if details != nil {
		if raw, err := json.Marshal(details); err == nil {
			log.Details = raw
		}
	}

	// Audit failure must not fail the request it describes
	if err := s.audits.Create(ctx, log); err != nil {
		s.logger.Error("failed to write audit log", "event", event, "error", err)
	}
}

// Compile-time check to ensure authService implements AuthService.
var _ AuthService = (*authService)(nil)

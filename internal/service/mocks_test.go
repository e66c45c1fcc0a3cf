package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/load28/foodie/internal/models"
	"github.com/load28/foodie/internal/pkg/ulid"
	"github.com/load28/foodie/internal/repository"
)

// Mock repositories for testing

type mockUserRepo struct {
	users     map[string]*models.User
	createErr error
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*models.User)}
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	for _, u := range m.users {
		if u.Email != nil && user.Email != nil && *u.Email == *user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = ulid.New()
	}
	if user.Status == "" {
		user.Status = models.UserStatusOffline
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) GetByID(ctx context.Context, id string) (*models.User, error) {
	return m.users[id], nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range m.users {
		if u.Email != nil && *u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.users[user.ID] = user
	return nil
}

func (m *mockUserRepo) UpdateStatus(ctx context.Context, id string, status models.UserStatus) error {
	u, ok := m.users[id]
	if !ok {
		return pgx.ErrNoRows
	}
	u.Status = status
	return nil
}

func (m *mockUserRepo) SearchByName(ctx context.Context, query string, limit int) ([]*models.User, error) {
	var result []*models.User
	for _, u := range m.users {
		if query != "" && strings.Contains(u.Name, query) {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *mockUserRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.users[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.users, id)
	return nil
}

type mockProviderRepo struct {
	links map[string]*models.OAuthProvider // by id
}

func newMockProviderRepo() *mockProviderRepo {
	return &mockProviderRepo{links: make(map[string]*models.OAuthProvider)}
}

func (m *mockProviderRepo) Upsert(ctx context.Context, provider *models.OAuthProvider) error {
	for _, l := range m.links {
		if l.Provider == provider.Provider && l.ProviderUserID == provider.ProviderUserID {
			l.AccessToken = provider.AccessToken
			l.RefreshToken = provider.RefreshToken
			l.TokenExpiresAt = provider.TokenExpiresAt
			l.UpdatedAt = time.Now()
			*provider = *l
			return nil
		}
	}
	if provider.ID == "" {
		provider.ID = ulid.New()
	}
	now := time.Now()
	provider.CreatedAt = now
	provider.UpdatedAt = now
	m.links[provider.ID] = provider
	return nil
}

func (m *mockProviderRepo) GetByProviderUserID(ctx context.Context, kind models.OAuthProviderKind, providerUserID string) (*models.OAuthProvider, error) {
	for _, l := range m.links {
		if l.Provider == kind && l.ProviderUserID == providerUserID {
			return l, nil
		}
	}
	return nil, nil
}

func (m *mockProviderRepo) GetByUserID(ctx context.Context, userID string, kind models.OAuthProviderKind) (*models.OAuthProvider, error) {
	for _, l := range m.links {
		if l.UserID == userID && l.Provider == kind {
			return l, nil
		}
	}
	return nil, nil
}

func (m *mockProviderRepo) UpdateTokens(ctx context.Context, id, accessToken string, refreshToken *string, expiresAt *time.Time) error {
	l, ok := m.links[id]
	if !ok {
		return pgx.ErrNoRows
	}
	l.AccessToken = accessToken
	if refreshToken != nil {
		l.RefreshToken = refreshToken
	}
	l.TokenExpiresAt = expiresAt
	return nil
}

func (m *mockProviderRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.links[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.links, id)
	return nil
}

type mockAuditRepo struct {
	logs []*models.AuditLog
}

func newMockAuditRepo() *mockAuditRepo {
	return &mockAuditRepo{}
}

func (m *mockAuditRepo) Create(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = ulid.New()
	}
	log.CreatedAt = time.Now()
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockAuditRepo) List(ctx context.Context, filter models.AuditLogFilter) ([]*models.AuditLog, error) {
	return m.logs, nil
}

func (m *mockAuditRepo) CountRecentFailures(ctx context.Context, ip string, window time.Duration) (int64, error) {
	var count int64
	for _, l := range m.logs {
		if !l.Success && l.IPAddress != nil && *l.IPAddress == ip {
			count++
		}
	}
	return count, nil
}

func (m *mockAuditRepo) lastEvent() *models.AuditLog {
	if len(m.logs) == 0 {
		return nil
	}
	return m.logs[len(m.logs)-1]
}

type mockFriendRepo struct {
	requests    map[string]*models.FriendRequest
	friendships map[string]bool // "lo|hi"
	users       *mockUserRepo
}

func newMockFriendRepo(users *mockUserRepo) *mockFriendRepo {
	return &mockFriendRepo{
		requests:    make(map[string]*models.FriendRequest),
		friendships: make(map[string]bool),
		users:       users,
	}
}

func pairKey(a, b string) string {
	lo, hi := models.CanonicalPair(a, b)
	return lo + "|" + hi
}

func (m *mockFriendRepo) CreateRequest(ctx context.Context, req *models.FriendRequest) error {
	for _, r := range m.requests {
		if r.SenderID == req.SenderID && r.ReceiverID == req.ReceiverID && r.Status == models.RequestPending {
			return repository.ErrDuplicate
		}
	}
	if req.ID == "" {
		req.ID = ulid.New()
	}
	if req.Status == "" {
		req.Status = models.RequestPending
	}
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now
	m.requests[req.ID] = req
	return nil
}

func (m *mockFriendRepo) GetRequestByID(ctx context.Context, id string) (*models.FriendRequest, error) {
	return m.requests[id], nil
}

func (m *mockFriendRepo) GetPendingBetween(ctx context.Context, a, b string) (*models.FriendRequest, error) {
	for _, r := range m.requests {
		if r.Status != models.RequestPending {
			continue
		}
		if (r.SenderID == a && r.ReceiverID == b) || (r.SenderID == b && r.ReceiverID == a) {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockFriendRepo) ListIncoming(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	var result []*models.FriendRequest
	for _, r := range m.requests {
		if r.ReceiverID == userID && r.Status == models.RequestPending {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *mockFriendRepo) ListOutgoing(ctx context.Context, userID string) ([]*models.FriendRequest, error) {
	var result []*models.FriendRequest
	for _, r := range m.requests {
		if r.SenderID == userID && r.Status == models.RequestPending {
			result = append(result, r)
		}
	}
	return result, nil
}

func (m *mockFriendRepo) AcceptRequest(ctx context.Context, requestID string) (*models.FriendRequest, error) {
	r, ok := m.requests[requestID]
	if !ok || r.Status != models.RequestPending {
		return nil, nil
	}
	r.Status = models.RequestAccepted
	r.UpdatedAt = time.Now()
	m.friendships[pairKey(r.SenderID, r.ReceiverID)] = true
	return r, nil
}

func (m *mockFriendRepo) UpdateRequestStatus(ctx context.Context, requestID string, status models.FriendRequestStatus) error {
	r, ok := m.requests[requestID]
	if !ok || r.Status != models.RequestPending {
		return pgx.ErrNoRows
	}
	r.Status = status
	return nil
}

func (m *mockFriendRepo) DeleteRequest(ctx context.Context, requestID string) error {
	if _, ok := m.requests[requestID]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.requests, requestID)
	return nil
}

func (m *mockFriendRepo) AreFriends(ctx context.Context, a, b string) (bool, error) {
	return m.friendships[pairKey(a, b)], nil
}

func (m *mockFriendRepo) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	for key := range m.friendships {
		var lo, hi string
		for i := 0; i < len(key); i++ {
			if key[i] == '|' {
				lo, hi = key[:i], key[i+1:]
				break
			}
		}
		if lo == userID {
			ids = append(ids, hi)
		} else if hi == userID {
			ids = append(ids, lo)
		}
	}
	return ids, nil
}

func (m *mockFriendRepo) ListFriends(ctx context.Context, userID string) ([]*models.User, error) {
	ids, _ := m.ListFriendIDs(ctx, userID)
	var result []*models.User
	for _, id := range ids {
		if u, ok := m.users.users[id]; ok {
			result = append(result, u)
		}
	}
	return result, nil
}

func (m *mockFriendRepo) RemoveFriendship(ctx context.Context, a, b string) error {
	key := pairKey(a, b)
	if !m.friendships[key] {
		return pgx.ErrNoRows
	}
	delete(m.friendships, key)
	return nil
}

func (m *mockFriendRepo) GetStats(ctx context.Context, userID string) (*models.FriendStats, error) {
	ids, _ := m.ListFriendIDs(ctx, userID)
	return &models.FriendStats{UserID: userID, FriendCount: len(ids)}, nil
}

func (m *mockFriendRepo) RefreshStats(ctx context.Context, userID string) error {
	return nil
}

type mockPostRepo struct {
	posts map[string]*models.FeedPost
	likes map[string]bool // "postID|userID"
}

func newMockPostRepo() *mockPostRepo {
	return &mockPostRepo{
		posts: make(map[string]*models.FeedPost),
		likes: make(map[string]bool),
	}
}

func (m *mockPostRepo) Create(ctx context.Context, post *models.FeedPost) error {
	if post.ID == "" {
		post.ID = ulid.New()
	}
	now := time.Now()
	post.CreatedAt = now
	post.UpdatedAt = now
	m.posts[post.ID] = post
	return nil
}

func (m *mockPostRepo) GetByID(ctx context.Context, id string) (*models.FeedPost, error) {
	return m.posts[id], nil
}

func (m *mockPostRepo) ListFeed(ctx context.Context, limit, offset int, category *models.FoodCategory) ([]*models.FeedPost, error) {
	var result []*models.FeedPost
	for _, p := range m.posts {
		if category != nil && (p.Category == nil || *p.Category != *category) {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

func (m *mockPostRepo) ListIDsByAuthor(ctx context.Context, authorID string) ([]string, error) {
	var ids []string
	for _, p := range m.posts {
		if p.AuthorID == authorID {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}

func (m *mockPostRepo) ListByAuthors(ctx context.Context, authorIDs []string, limit, offset int) ([]*models.FeedPost, error) {
	var result []*models.FeedPost
	for _, p := range m.posts {
		for _, id := range authorIDs {
			if p.AuthorID == id {
				result = append(result, p)
				break
			}
		}
	}
	return result, nil
}

func (m *mockPostRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.posts[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.posts, id)
	return nil
}

func (m *mockPostRepo) ToggleLike(ctx context.Context, postID, userID string) (bool, int, error) {
	post, ok := m.posts[postID]
	if !ok {
		return false, 0, pgx.ErrNoRows
	}
	key := postID + "|" + userID
	if m.likes[key] {
		delete(m.likes, key)
		post.Likes--
		return false, post.Likes, nil
	}
	m.likes[key] = true
	post.Likes++
	return true, post.Likes, nil
}

func (m *mockPostRepo) HasLiked(ctx context.Context, postID, userID string) (bool, error) {
	return m.likes[postID+"|"+userID], nil
}

type mockCommentRepo struct {
	comments map[string]*models.Comment
	posts    *mockPostRepo
}

func newMockCommentRepo(posts *mockPostRepo) *mockCommentRepo {
	return &mockCommentRepo{comments: make(map[string]*models.Comment), posts: posts}
}

func (m *mockCommentRepo) Create(ctx context.Context, comment *models.Comment) error {
	post, ok := m.posts.posts[comment.PostID]
	if !ok {
		return pgx.ErrNoRows
	}
	if comment.ID == "" {
		comment.ID = ulid.New()
	}
	comment.IsReply = comment.ParentID != nil
	now := time.Now()
	comment.CreatedAt = now
	comment.UpdatedAt = now
	m.comments[comment.ID] = comment
	post.CommentsCount++
	return nil
}

func (m *mockCommentRepo) GetByID(ctx context.Context, id string) (*models.Comment, error) {
	return m.comments[id], nil
}

func (m *mockCommentRepo) ListByPost(ctx context.Context, postID string, limit, offset int) ([]*models.Comment, error) {
	var result []*models.Comment
	for _, c := range m.comments {
		if c.PostID == postID {
			result = append(result, c)
		}
	}
	return result, nil
}

func (m *mockCommentRepo) Delete(ctx context.Context, id string) error {
	c, ok := m.comments[id]
	if !ok {
		return pgx.ErrNoRows
	}
	if post, ok := m.posts.posts[c.PostID]; ok && post.CommentsCount > 0 {
		post.CommentsCount--
	}
	delete(m.comments, id)
	return nil
}

// Fakes for object store and search

type mockUploader struct {
	objects   map[string][]byte
	deleted   []string
	uploadErr error
	failAfter int // fail uploads after this many succeed, 0 = never
}

func newMockUploader() *mockUploader {
	return &mockUploader{objects: make(map[string][]byte)}
}

func (m *mockUploader) Upload(ctx context.Context, key, contentType string, body []byte) (string, error) {
	if m.uploadErr != nil {
		return "", m.uploadErr
	}
	if m.failAfter > 0 && len(m.objects) >= m.failAfter {
		return "", errors.New("upload failed")
	}
	m.objects[key] = body
	return "https://cdn.test/" + key, nil
}

func (m *mockUploader) Delete(ctx context.Context, key string) error {
	delete(m.objects, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type mockIndexer struct {
	indexed  map[string]*models.FeedPost
	deleted  []string
	indexErr error
}

func newMockIndexer() *mockIndexer {
	return &mockIndexer{indexed: make(map[string]*models.FeedPost)}
}

func (m *mockIndexer) IndexPost(ctx context.Context, post *models.FeedPost) error {
	if m.indexErr != nil {
		return m.indexErr
	}
	m.indexed[post.ID] = post
	return nil
}

func (m *mockIndexer) DeletePost(ctx context.Context, postID string) error {
	delete(m.indexed, postID)
	m.deleted = append(m.deleted, postID)
	return nil
}

package service

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/load28/foodie/internal/cache"
	"github.com/load28/foodie/internal/database"
	"github.com/load28/foodie/internal/models"
	apierrors "github.com/load28/foodie/internal/pkg/errors"
)

type friendFixture struct {
	svc     FriendService
	friends *mockFriendRepo
	users   *mockUserRepo
	posts   *mockPostRepo
	redis   *miniredis.Miniredis
}

func newFriendFixture(t *testing.T) *friendFixture {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := database.NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	f := &friendFixture{
		users: newMockUserRepo(),
		posts: newMockPostRepo(),
		redis: mr,
	}
	f.friends = newMockFriendRepo(f.users)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f.svc = NewFriendService(f.friends, f.users, f.posts, cache.NewFriendCache(rdb), logger)
	return f
}

func (f *friendFixture) addUser(t *testing.T, name string) *models.User {
	t.Helper()
	email := name + "@example.com"
	user := &models.User{Email: &email, Name: name}
	require.NoError(t, f.users.Create(context.Background(), user))
	return user
}

func (f *friendFixture) befriend(t *testing.T, a, b *models.User) {
	t.Helper()
	req, err := f.svc.SendRequest(context.Background(), a.ID, b.ID, nil)
	require.NoError(t, err)
	_, err = f.svc.AcceptRequest(context.Background(), req.ID, b.ID)
	require.NoError(t, err)
}

func TestSendRequest(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	msg := "hello"
	req, err := f.svc.SendRequest(ctx, alice.ID, bob.ID, &msg)
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, alice.ID, req.SenderID)
	assert.Equal(t, bob.ID, req.ReceiverID)
	assert.Equal(t, models.RequestPending, req.Status)
}

func TestSendRequestToSelf(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser(t, "alice")

	_, err := f.svc.SendRequest(context.Background(), alice.ID, alice.ID, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, apierrors.AsAPIError(err).StatusCode)
}

func TestSendRequestToUnknownUser(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser(t, "alice")

	_, err := f.svc.SendRequest(context.Background(), alice.ID, "no-such-user", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apierrors.AsAPIError(err).StatusCode)
}

func TestSendRequestDuplicate(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	_, err := f.svc.SendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.SendRequest(ctx, alice.ID, bob.ID, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apierrors.AsAPIError(err).StatusCode)
}

func TestSendRequestAfterRejection(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	req, err := f.svc.SendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)
	require.NoError(t, f.svc.RejectRequest(ctx, req.ID, bob.ID))

	// A rejected request leaves the pair free to try again
	again, err := f.svc.SendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, again.Status)
	assert.NotEqual(t, req.ID, again.ID)
}

func TestSendRequestWhenAlreadyFriends(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	f.befriend(t, alice, bob)

	_, err := f.svc.SendRequest(context.Background(), alice.ID, bob.ID, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusConflict, apierrors.AsAPIError(err).StatusCode)
}

func TestSendRequestReciprocalAutoAccepts(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	_, err := f.svc.SendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)

	// Bob answering with his own request accepts Alice's instead
	req, err := f.svc.SendRequest(ctx, bob.ID, alice.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RequestAccepted, req.Status)
	assert.Equal(t, alice.ID, req.SenderID)

	friends, err := f.svc.IsFriend(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, friends)
}

func TestAcceptRequest(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	req, err := f.svc.SendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)

	accepted, err := f.svc.AcceptRequest(ctx, req.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestAccepted, accepted.Status)

	friends, err := f.svc.IsFriend(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.True(t, friends)
}

func TestAcceptRequestOnlyReceiver(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	req, err := f.svc.SendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)

	_, err = f.svc.AcceptRequest(ctx, req.ID, alice.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apierrors.AsAPIError(err).StatusCode)
}

func TestRejectRequest(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	req, err := f.svc.SendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)

	require.NoError(t, f.svc.RejectRequest(ctx, req.ID, bob.ID))

	friends, err := f.svc.IsFriend(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, friends)

	// A resolved request cannot be accepted afterwards
	_, err = f.svc.AcceptRequest(ctx, req.ID, bob.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apierrors.AsAPIError(err).StatusCode)
}

func TestCancelRequestOnlySender(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	req, err := f.svc.SendRequest(ctx, alice.ID, bob.ID, nil)
	require.NoError(t, err)

	err = f.svc.CancelRequest(ctx, req.ID, bob.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, apierrors.AsAPIError(err).StatusCode)

	require.NoError(t, f.svc.CancelRequest(ctx, req.ID, alice.ID))

	incoming, err := f.svc.IncomingRequests(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, incoming)
}

func TestUnfriend(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	f.befriend(t, alice, bob)

	require.NoError(t, f.svc.Unfriend(ctx, alice.ID, bob.ID))

	friends, err := f.svc.IsFriend(ctx, alice.ID, bob.ID)
	require.NoError(t, err)
	assert.False(t, friends)
}

func TestUnfriendNotFriends(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")

	err := f.svc.Unfriend(context.Background(), alice.ID, bob.ID)
	require.Error(t, err)
	assert.Equal(t, http.StatusNotFound, apierrors.AsAPIError(err).StatusCode)
}

func TestListFriendsUsesCache(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	f.befriend(t, alice, bob)

	profiles, err := f.svc.ListFriends(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, bob.ID, profiles[0].ID)

	// A direct repo change is invisible until the cache is invalidated
	delete(f.friends.friendships, pairKey(alice.ID, bob.ID))

	profiles, err = f.svc.ListFriends(ctx, alice.ID)
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestUnfriendInvalidatesCache(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	f.befriend(t, alice, bob)

	// Warm the cache for both sides
	_, err := f.svc.ListFriends(ctx, alice.ID)
	require.NoError(t, err)
	_, err = f.svc.FriendIDs(ctx, bob.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Unfriend(ctx, alice.ID, bob.ID))

	profiles, err := f.svc.ListFriends(ctx, alice.ID)
	require.NoError(t, err)
	assert.Empty(t, profiles)

	ids, err := f.svc.FriendIDs(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestFriendCount(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	carol := f.addUser(t, "carol")
	f.befriend(t, alice, bob)
	f.befriend(t, alice, carol)

	count, err := f.svc.FriendCount(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = f.svc.FriendCount(ctx, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestFriendPosts(t *testing.T) {
	f := newFriendFixture(t)
	ctx := context.Background()
	alice := f.addUser(t, "alice")
	bob := f.addUser(t, "bob")
	carol := f.addUser(t, "carol")
	f.befriend(t, alice, bob)

	require.NoError(t, f.posts.Create(ctx, &models.FeedPost{AuthorID: bob.ID, Title: "bob post", Content: "x"}))
	require.NoError(t, f.posts.Create(ctx, &models.FeedPost{AuthorID: carol.ID, Title: "carol post", Content: "x"}))

	posts, err := f.svc.FriendPosts(ctx, alice.ID, 20, 0)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, bob.ID, posts[0].AuthorID)
}

func TestFriendPostsWithoutFriends(t *testing.T) {
	f := newFriendFixture(t)
	alice := f.addUser(t, "alice")

	posts, err := f.svc.FriendPosts(context.Background(), alice.ID, 20, 0)
	require.NoError(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

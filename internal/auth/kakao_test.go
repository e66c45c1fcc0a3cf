package auth

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/load28/foodie/internal/config"
)

type fakeHTTPClient struct {
	handler func(req *http.Request) (*http.Response, error)
}

func (f *fakeHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return f.handler(req)
}

func jsonResponse(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

func testKakaoConfig() config.KakaoConfig {
	return config.KakaoConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:8080/v1/auth/kakao/callback",
	}
}

func TestKakaoClient_AuthCodeURL(t *testing.T) {
	c := NewKakaoClient(testKakaoConfig())

	u := c.AuthCodeURL("state-token")
	assert.Contains(t, u, "https://kauth.kakao.com/oauth/authorize")
	assert.Contains(t, u, "client_id=client-id")
	assert.Contains(t, u, "state=state-token")
	assert.Contains(t, u, "response_type=code")
}

func TestKakaoClient_Exchange(t *testing.T) {
	client := &fakeHTTPClient{handler: func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "https://kauth.kakao.com/oauth/token", req.URL.String())
		assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))

		require.NoError(t, req.ParseForm())
		assert.Equal(t, "authorization_code", req.PostForm.Get("grant_type"))
		assert.Equal(t, "auth-code", req.PostForm.Get("code"))

		return jsonResponse(http.StatusOK, `{"access_token":"at","refresh_token":"rt","expires_in":3600,"token_type":"bearer"}`), nil
	}}

	c := NewKakaoClientWithHTTP(testKakaoConfig(), client)
	token, err := c.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "at", token.AccessToken)
	assert.Equal(t, "rt", token.RefreshToken)
	assert.False(t, token.Expiry.IsZero())
}

func TestKakaoClient_ExchangeFailure(t *testing.T) {
	client := &fakeHTTPClient{handler: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusBadRequest, `{"error":"invalid_grant"}`), nil
	}}

	c := NewKakaoClientWithHTTP(testKakaoConfig(), client)
	_, err := c.Exchange(context.Background(), "bad-code")
	require.Error(t, err)
	// Upstream body is preserved for diagnosis
	assert.Contains(t, err.Error(), "invalid_grant")
}

func TestKakaoClient_FetchUserInfo(t *testing.T) {
	client := &fakeHTTPClient{handler: func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "https://kapi.kakao.com/v2/user/me", req.URL.String())
		assert.Equal(t, "Bearer access-token", req.Header.Get("Authorization"))

		return jsonResponse(http.StatusOK, `{
			"id": 12345678,
			"kakao_account": {
				"email": "user@example.com",
				"profile": {"nickname": "철수", "profile_image_url": "https://cdn.example.com/p.jpg"}
			}
		}`), nil
	}}

	c := NewKakaoClientWithHTTP(testKakaoConfig(), client)
	info, err := c.FetchUserInfo(context.Background(), "access-token")
	require.NoError(t, err)
	assert.Equal(t, "12345678", info.ID)
	assert.Equal(t, "user@example.com", info.Email)
	assert.Equal(t, "철수", info.Nickname)
	assert.Equal(t, "https://cdn.example.com/p.jpg", info.ProfileImageURL)
}

func TestKakaoClient_FetchUserInfoMissingID(t *testing.T) {
	client := &fakeHTTPClient{handler: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{}`), nil
	}}

	c := NewKakaoClientWithHTTP(testKakaoConfig(), client)
	_, err := c.FetchUserInfo(context.Background(), "access-token")
	assert.Error(t, err)
}

func TestKakaoClient_Refresh(t *testing.T) {
	client := &fakeHTTPClient{handler: func(req *http.Request) (*http.Response, error) {
		require.NoError(t, req.ParseForm())
		assert.Equal(t, "refresh_token", req.PostForm.Get("grant_type"))
		assert.Equal(t, "old-rt", req.PostForm.Get("refresh_token"))

		return jsonResponse(http.StatusOK, `{"access_token":"new-at","expires_in":3600}`), nil
	}}

	c := NewKakaoClientWithHTTP(testKakaoConfig(), client)
	token, err := c.Refresh(context.Background(), "old-rt")
	require.NoError(t, err)
	assert.Equal(t, "new-at", token.AccessToken)
}

func TestKakaoClient_Unlink(t *testing.T) {
	client := &fakeHTTPClient{handler: func(req *http.Request) (*http.Response, error) {
		assert.Equal(t, "https://kapi.kakao.com/v1/user/unlink", req.URL.String())
		assert.Equal(t, "Bearer access-token", req.Header.Get("Authorization"))
		return jsonResponse(http.StatusOK, `{"id":12345678}`), nil
	}}

	c := NewKakaoClientWithHTTP(testKakaoConfig(), client)
	assert.NoError(t, c.Unlink(context.Background(), "access-token"))
}

func TestKakaoClient_UnlinkFailure(t *testing.T) {
	client := &fakeHTTPClient{handler: func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusUnauthorized, `{"msg":"invalid token"}`), nil
	}}

	c := NewKakaoClientWithHTTP(testKakaoConfig(), client)
	err := c.Unlink(context.Background(), "expired")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

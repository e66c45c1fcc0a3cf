package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/load28/foodie/internal/config"
)

const (
	kakaoAuthURL   = "https://kauth.kakao.com/oauth/authorize"
	kakaoTokenURL  = "https://kauth.kakao.com/oauth/token"
	kakaoUserURL   = "https://kapi.kakao.com/v2/user/me"
	kakaoUnlinkURL = "https://kapi.kakao.com/v1/user/unlink"
)

// HTTPClient interface for making HTTP requests (allows mocking in tests).
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// KakaoUserInfo contains the profile fields fetched from Kakao.
type KakaoUserInfo struct {
	ID              string
	Email           string
	Nickname        string
	ProfileImageURL string
}

// KakaoClient talks to the Kakao identity provider.
type KakaoClient struct {
	oauth      *oauth2.Config
	httpClient HTTPClient
}

// NewKakaoClient creates a Kakao client from application credentials.
func NewKakaoClient(cfg config.KakaoConfig) *KakaoClient {
	return &KakaoClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:  kakaoAuthURL,
				TokenURL: kakaoTokenURL,
			},
		},
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// NewKakaoClientWithHTTP creates a Kakao client with a custom HTTP
// client. This is primarily used for testing.
func NewKakaoClientWithHTTP(cfg config.KakaoConfig, httpClient HTTPClient) *KakaoClient {
	c := NewKakaoClient(cfg)
	c.httpClient = httpClient
	return c
}

// AuthCodeURL returns the authorization URL the browser is redirected
// to, carrying the CSRF state token.
func (c *KakaoClient) AuthCodeURL(state string) string {
	return c.oauth.AuthCodeURL(state)
}

// Exchange trades an authorization code for tokens.
func (c *KakaoClient) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.oauth.ClientID)
	form.Set("client_secret", c.oauth.ClientSecret)
	form.Set("redirect_uri", c.oauth.RedirectURL)
	form.Set("code", code)

	return c.tokenRequest(ctx, form)
}

// Refresh trades a refresh token for a new access token.
func (c *KakaoClient) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.oauth.ClientID)
	form.Set("client_secret", c.oauth.ClientSecret)
	form.Set("refresh_token", refreshToken)

	return c.tokenRequest(ctx, form)
}

func (c *KakaoClient) tokenRequest(ctx context.Context, form url.Values) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, kakaoTokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("kakao token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var data struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
		ExpiresIn    int64  `json:"expires_in"`
		TokenType    string `json:"token_type"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	token := &oauth2.Token{
		AccessToken:  data.AccessToken,
		RefreshToken: data.RefreshToken,
		TokenType:    data.TokenType,
	}
	if data.ExpiresIn > 0 {
		token.Expiry = time.Now().Add(time.Duration(data.ExpiresIn) * time.Second)
	}
	return token, nil
}

// FetchUserInfo retrieves the profile of the token's owner.
func (c *KakaoClient) FetchUserInfo(ctx context.Context, accessToken string) (*KakaoUserInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, kakaoUserURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build user info request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("user info request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read user info response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("kakao user endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var data struct {
		ID           int64 `json:"id"`
		KakaoAccount struct {
			Email   string `json:"email"`
			Profile struct {
				Nickname        string `json:"nickname"`
				ProfileImageURL string `json:"profile_image_url"`
			} `json:"profile"`
		} `json:"kakao_account"`
	}
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("failed to decode user info response: %w", err)
	}
	if data.ID == 0 {
		return nil, fmt.Errorf("kakao user response missing id")
	}

	return &KakaoUserInfo{
		ID:              strconv.FormatInt(data.ID, 10),
		Email:           data.KakaoAccount.Email,
		Nickname:        data.KakaoAccount.Profile.Nickname,
		ProfileImageURL: data.KakaoAccount.Profile.ProfileImageURL,
	}, nil
}

// Unlink disconnects the app from the token owner's Kakao account.
func (c *KakaoClient) Unlink(ctx context.Context, accessToken string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, kakaoUnlinkURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build unlink request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("unlink request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return fmt.Errorf("kakao unlink endpoint returned %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// Package handler provides HTTP handlers for the API server.
package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/load28/foodie/internal/middleware"
	apierrors "github.com/load28/foodie/internal/pkg/errors"
	"github.com/load28/foodie/internal/pkg/response"
	"github.com/load28/foodie/internal/service"
)

// AuthHandler handles authentication HTTP requests.
type AuthHandler struct {
	authService service.AuthService
	validate    *validator.Validate
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validate:    validator.New(),
	}
}

// Routes returns a chi router with auth routes. The login and callback
// endpoints are public; everything else sits behind authMW.
func (h *AuthHandler) Routes(authMW func(next http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.Register)
	r.Post("/login", h.Login)
	r.Get("/kakao/login-url", h.KakaoLoginURL)
	r.Get("/kakao/callback", h.KakaoCallback)

	r.Group(func(r chi.Router) {
		r.Use(authMW)

		r.Post("/logout", h.Logout)
		r.Post("/kakao/refresh", h.KakaoRefresh)
		r.Delete("/kakao/link", h.KakaoUnlink)
		r.Delete("/account", h.DeleteAccount)
	})

	return r
}

// RegisterHTTPRequest is the HTTP request body for registering.
type RegisterHTTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Name     string `json:"name" validate:"required"`
}

// Register handles POST /v1/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	result, err := h.authService.Register(r.Context(), req.Email, req.Password, req.Name, requestMeta(r))
	if err != nil {
		response.Error(w, err)
		return
	}

	response.Created(w, result)
}

// LoginHTTPRequest is the HTTP request body for logging in.
type LoginHTTPRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Login handles POST /v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password, requestMeta(r))
	if err != nil {
		response.Error(w, err)
		return
	}

	middleware.IncrementLogins("password")
	response.OK(w, result)
}

// KakaoLoginURL handles GET /v1/auth/kakao/login-url
func (h *AuthHandler) KakaoLoginURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.authService.KakaoLoginURL(r.Context(), requestMeta(r))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]string{"url": url})
}

// KakaoCallback handles GET /v1/auth/kakao/callback
func (h *AuthHandler) KakaoCallback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		response.BadRequest(w, "code and state are required")
		return
	}

	result, err := h.authService.LoginWithKakao(r.Context(), code, state, requestMeta(r))
	if err != nil {
		response.Error(w, err)
		return
	}

	middleware.IncrementLogins("kakao")
	response.OK(w, result)
}

// Logout handles POST /v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	if err := h.authService.Logout(r.Context(), middleware.SessionID(r.Context()), userID, requestMeta(r)); err != nil {
		response.Error(w, err)
		return
	}

	response.NoContent(w)
}

// KakaoRefresh handles POST /v1/auth/kakao/refresh
func (h *AuthHandler) KakaoRefresh(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	if err := h.authService.RefreshKakaoToken(r.Context(), userID); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// KakaoUnlink handles DELETE /v1/auth/kakao/link
func (h *AuthHandler) KakaoUnlink(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	if err := h.authService.UnlinkKakao(r.Context(), userID, requestMeta(r)); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// DeleteAccount handles DELETE /v1/auth/account
func (h *AuthHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	if err := h.authService.DeleteAccount(r.Context(), userID); err != nil {
		response.Error(w, err)
		return
	}

	response.NoContent(w)
}

// requestMeta extracts client attribution for audit records.
func requestMeta(r *http.Request) service.RequestMeta {
	ip := r.RemoteAddr
	if host := strings.Split(ip, ":"); len(host) > 0 {
		ip = host[0]
	}
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		ip = strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		ip = realIP
	}
	return service.RequestMeta{IP: ip, UserAgent: r.UserAgent()}
}

// validationError converts a validator error into the API taxonomy.
func validationError(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		field := strings.ToLower(verrs[0].Field())
		return apierrors.NewValidationError(field, "failed validation on "+verrs[0].Tag())
	}
	return apierrors.ErrInvalidInput
}

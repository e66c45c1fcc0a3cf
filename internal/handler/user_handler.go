package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/load28/foodie/internal/middleware"
	"github.com/load28/foodie/internal/models"
	"github.com/load28/foodie/internal/pkg/response"
	"github.com/load28/foodie/internal/service"
)

// UserHandler handles user profile HTTP requests.
type UserHandler struct {
	postService service.PostService
	validate    *validator.Validate
}

// NewUserHandler creates a new user handler.
func NewUserHandler(postService service.PostService) *UserHandler {
	return &UserHandler{
		postService: postService,
		validate:    validator.New(),
	}
}

// Routes returns a chi router with user routes.
func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/search", h.Search)
	r.Get("/me", h.Me)
	r.Patch("/me", h.UpdateProfile)
	r.Get("/{id}", h.GetProfile)

	return r
}

// Me handles GET /v1/users/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	user, err := h.postService.GetUser(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, user)
}

// GetProfile handles GET /v1/users/{id}
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.postService.GetProfile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, profile)
}

// UpdateProfileHTTPRequest is the HTTP request body for updating a profile.
type UpdateProfileHTTPRequest struct {
	Name         *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Status       *string `json:"status,omitempty"`
	ProfileImage *string `json:"profile_image,omitempty"`
}

// UpdateProfile handles PATCH /v1/users/me
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	var req UpdateProfileHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	input := service.UpdateProfileInput{
		Name:         req.Name,
		ProfileImage: req.ProfileImage,
	}
	if req.Status != nil {
		status := models.UserStatus(*req.Status)
		input.Status = &status
	}

	user, err := h.postService.UpdateProfile(r.Context(), userID, input)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, user)
}

// Search handles GET /v1/users/search
func (h *UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	limit, _ := pagination(r)

	profiles, err := h.postService.SearchUsers(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, profiles)
}

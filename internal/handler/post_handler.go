package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/load28/foodie/internal/middleware"
	"github.com/load28/foodie/internal/models"
	"github.com/load28/foodie/internal/pkg/response"
	"github.com/load28/foodie/internal/service"
)

// PostHandler handles feed post HTTP requests.
type PostHandler struct {
	postService service.PostService
	validate    *validator.Validate
}

// NewPostHandler creates a new post handler.
func NewPostHandler(postService service.PostService) *PostHandler {
	return &PostHandler{
		postService: postService,
		validate:    validator.New(),
	}
}

// Routes returns a chi router with post routes.
func (h *PostHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/", h.Create)
	r.Get("/", h.Feed)
	r.Get("/{id}", h.Get)
	r.Delete("/{id}", h.Delete)
	r.Post("/{id}/like", h.ToggleLike)
	r.Get("/{id}/comments", h.ListComments)
	r.Post("/{id}/comments", h.AddComment)
	r.Delete("/comments/{commentID}", h.DeleteComment)

	return r
}

// CreatePostHTTPRequest is the HTTP request body for creating a post.
type CreatePostHTTPRequest struct {
	Title    string   `json:"title" validate:"required,max=200"`
	Content  string   `json:"content" validate:"required"`
	Location *string  `json:"location,omitempty"`
	Category *string  `json:"category,omitempty"`
	Tags     []string `json:"tags,omitempty"`
	Rating   *float64 `json:"rating,omitempty" validate:"omitempty,gte=0,lte=5"`
	Images   []string `json:"images,omitempty"`
}

// Create handles POST /v1/posts
func (h *PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	var req CreatePostHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	input := service.CreatePostInput{
		Title:    req.Title,
		Content:  req.Content,
		Location: req.Location,
		Tags:     req.Tags,
		Rating:   req.Rating,
		Images:   req.Images,
	}
	if req.Category != nil {
		category := models.FoodCategory(*req.Category)
		input.Category = &category
	}

	post, err := h.postService.CreatePost(r.Context(), userID, input)
	if err != nil {
		response.Error(w, err)
		return
	}

	middleware.IncrementPostsCreated()
	middleware.IncrementImagesProcessed(len(req.Images))
	response.Created(w, post)
}

// Feed handles GET /v1/posts
func (h *PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	var category *models.FoodCategory
	if raw := r.URL.Query().Get("category"); raw != "" {
		c := models.FoodCategory(raw)
		category = &c
	}

	posts, err := h.postService.Feed(r.Context(), limit, offset, category)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, posts, &response.Meta{Limit: limit, Offset: offset})
}

// Get handles GET /v1/posts/{id}
func (h *PostHandler) Get(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := middleware.UserID(r.Context())
	post, err := h.postService.GetPost(r.Context(), chi.URLParam(r, "id"), viewerID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, post)
}

// Delete handles DELETE /v1/posts/{id}
func (h *PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	if err := h.postService.DeletePost(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// ToggleLike handles POST /v1/posts/{id}/like
func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	liked, likes, err := h.postService.ToggleLike(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]any{"liked": liked, "likes": likes})
}

// AddCommentHTTPRequest is the HTTP request body for adding a comment.
type AddCommentHTTPRequest struct {
	Content  string   `json:"content" validate:"required"`
	ParentID *string  `json:"parent_id,omitempty"`
	Mentions []string `json:"mentions,omitempty"`
}

// AddComment handles POST /v1/posts/{id}/comments
func (h *PostHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	var req AddCommentHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	comment, err := h.postService.AddComment(r.Context(), chi.URLParam(r, "id"), userID, service.AddCommentInput{
		Content:  req.Content,
		ParentID: req.ParentID,
		Mentions: req.Mentions,
	})
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, comment)
}

// ListComments handles GET /v1/posts/{id}/comments
func (h *PostHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	comments, err := h.postService.ListComments(r.Context(), chi.URLParam(r, "id"), limit, offset)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, comments, &response.Meta{Limit: limit, Offset: offset})
}

// DeleteComment handles DELETE /v1/posts/comments/{commentID}
func (h *PostHandler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	if err := h.postService.DeleteComment(r.Context(), chi.URLParam(r, "commentID"), userID); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// pagination parses limit and offset query parameters with defaults.
func pagination(r *http.Request) (limit, offset int) {
	limit = 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}

package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/load28/foodie/internal/middleware"
	"github.com/load28/foodie/internal/pkg/response"
	"github.com/load28/foodie/internal/search"
	"github.com/load28/foodie/internal/service"
)

// SearchHandler handles post search HTTP requests.
type SearchHandler struct {
	searchService *search.Service
	friendService service.FriendService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(searchService *search.Service, friendService service.FriendService) *SearchHandler {
	return &SearchHandler{
		searchService: searchService,
		friendService: friendService,
	}
}

// Routes returns a chi router with search routes.
func (h *SearchHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/posts", h.SearchPosts)
	r.Get("/posts/friends", h.SearchFriendPosts)

	return r
}

// SearchPosts handles GET /v1/search/posts
func (h *SearchHandler) SearchPosts(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		response.BadRequest(w, "q is required")
		return
	}

	var category *string
	if c := r.URL.Query().Get("category"); c != "" {
		category = &c
	}

	limit, offset := pagination(r)
	result, err := h.searchService.Search(r.Context(), query, category, limit, offset)
	if err != nil {
		response.Error(w, err)
		return
	}

	middleware.IncrementSearchQueries()
	response.JSONWithMeta(w, http.StatusOK, result.Hits, &response.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  result.Total,
	})
}

// SearchFriendPosts handles GET /v1/search/posts/friends. Results are
// restricted to posts authored by the caller's friends and boosted by
// recency. The query string is optional; without it the friends'
// posts come back newest first.
func (h *SearchHandler) SearchFriendPosts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	query := r.URL.Query().Get("q")

	friendIDs, err := h.friendService.FriendIDs(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}

	limit, offset := pagination(r)
	result, err := h.searchService.SearchFriendPosts(r.Context(), query, friendIDs, limit, offset)
	if err != nil {
		response.Error(w, err)
		return
	}

	middleware.IncrementSearchQueries()
	response.JSONWithMeta(w, http.StatusOK, result.Hits, &response.Meta{
		Limit:  limit,
		Offset: offset,
		Total:  result.Total,
	})
}

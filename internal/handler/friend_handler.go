package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/load28/foodie/internal/middleware"
	"github.com/load28/foodie/internal/pkg/response"
	"github.com/load28/foodie/internal/service"
)

// FriendHandler handles friendship HTTP requests.
type FriendHandler struct {
	friendService service.FriendService
	validate      *validator.Validate
}

// NewFriendHandler creates a new friend handler.
func NewFriendHandler(friendService service.FriendService) *FriendHandler {
	return &FriendHandler{
		friendService: friendService,
		validate:      validator.New(),
	}
}

// Routes returns a chi router with friendship routes.
func (h *FriendHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Post("/requests", h.SendRequest)
	r.Get("/requests/incoming", h.IncomingRequests)
	r.Get("/requests/outgoing", h.OutgoingRequests)
	r.Post("/requests/{id}/accept", h.AcceptRequest)
	r.Post("/requests/{id}/reject", h.RejectRequest)
	r.Delete("/requests/{id}", h.CancelRequest)

	r.Get("/", h.List)
	r.Get("/ids", h.ListIDs)
	r.Get("/stats", h.Stats)
	r.Get("/feed", h.Feed)
	r.Get("/{userID}/status", h.Status)
	r.Delete("/{userID}", h.Unfriend)

	return r
}

// SendRequestHTTPRequest is the HTTP request body for a friend request.
type SendRequestHTTPRequest struct {
	ReceiverID string  `json:"receiver_id" validate:"required"`
	Message    *string `json:"message,omitempty" validate:"omitempty,max=500"`
}

// SendRequest handles POST /v1/friends/requests
func (h *FriendHandler) SendRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	var req SendRequestHTTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(w, validationError(err))
		return
	}

	request, err := h.friendService.SendRequest(r.Context(), userID, req.ReceiverID, req.Message)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.Created(w, request)
}

// IncomingRequests handles GET /v1/friends/requests/incoming
func (h *FriendHandler) IncomingRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	requests, err := h.friendService.IncomingRequests(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, requests)
}

// OutgoingRequests handles GET /v1/friends/requests/outgoing
func (h *FriendHandler) OutgoingRequests(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	requests, err := h.friendService.OutgoingRequests(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, requests)
}

// AcceptRequest handles POST /v1/friends/requests/{id}/accept
func (h *FriendHandler) AcceptRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	request, err := h.friendService.AcceptRequest(r.Context(), chi.URLParam(r, "id"), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, request)
}

// RejectRequest handles POST /v1/friends/requests/{id}/reject
func (h *FriendHandler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	if err := h.friendService.RejectRequest(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// CancelRequest handles DELETE /v1/friends/requests/{id}
func (h *FriendHandler) CancelRequest(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	if err := h.friendService.CancelRequest(r.Context(), chi.URLParam(r, "id"), userID); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

// List handles GET /v1/friends
func (h *FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	friends, err := h.friendService.ListFriends(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, friends)
}

// ListIDs handles GET /v1/friends/ids
func (h *FriendHandler) ListIDs(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	ids, err := h.friendService.FriendIDs(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	response.OK(w, ids)
}

// Stats handles GET /v1/friends/stats
func (h *FriendHandler) Stats(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	stats, err := h.friendService.Stats(r.Context(), userID)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, stats)
}

// Feed handles GET /v1/friends/feed
func (h *FriendHandler) Feed(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	limit, offset := pagination(r)
	posts, err := h.friendService.FriendPosts(r.Context(), userID, limit, offset)
	if err != nil {
		response.Error(w, err)
		return
	}
	response.JSONWithMeta(w, http.StatusOK, posts, &response.Meta{Limit: limit, Offset: offset})
}

// Status handles GET /v1/friends/{userID}/status
func (h *FriendHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	isFriend, err := h.friendService.IsFriend(r.Context(), userID, chi.URLParam(r, "userID"))
	if err != nil {
		response.Error(w, err)
		return
	}
	response.OK(w, map[string]bool{"is_friend": isFriend})
}

// Unfriend handles DELETE /v1/friends/{userID}
func (h *FriendHandler) Unfriend(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w)
		return
	}

	if err := h.friendService.Unfriend(r.Context(), userID, chi.URLParam(r, "userID")); err != nil {
		response.Error(w, err)
		return
	}
	response.NoContent(w)
}

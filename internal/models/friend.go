package models

import (
	"time"
)

// FriendRequestStatus is the lifecycle state of a friend request.
type FriendRequestStatus string

const (
	RequestPending  FriendRequestStatus = "PENDING"
	RequestAccepted FriendRequestStatus = "ACCEPTED"
	RequestRejected FriendRequestStatus = "REJECTED"
	RequestBlocked  FriendRequestStatus = "BLOCKED"
)

// FriendRequest is a directed invitation from sender to receiver.
type FriendRequest struct {
	ID         string              `json:"id" db:"id"`
	SenderID   string              `json:"sender_id" db:"sender_id"`
	ReceiverID string              `json:"receiver_id" db:"receiver_id"`
	Status     FriendRequestStatus `json:"status" db:"status"`
	Message    *string             `json:"message,omitempty" db:"message"`
	CreatedAt  time.Time           `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at" db:"updated_at"`
}

// Friendship is an undirected edge stored once in canonical order.
type Friendship struct {
	UserLo    string    `json:"user_lo" db:"user_lo"`
	UserHi    string    `json:"user_hi" db:"user_hi"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// CanonicalPair orders two user IDs so (a, b) and (b, a) map to the
// same friendship row.
func CanonicalPair(a, b string) (lo, hi string) {
	if a < b {
		return a, b
	}
	return b, a
}

// FriendStats caches per-user friendship aggregates.
type FriendStats struct {
	UserID          string    `json:"user_id" db:"user_id"`
	FriendCount     int       `json:"friend_count" db:"friend_count"`
	PendingSent     int       `json:"pending_sent" db:"pending_sent"`
	PendingReceived int       `json:"pending_received" db:"pending_received"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

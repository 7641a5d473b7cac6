package models

import (
	"time"

	"github.com/google/uuid"
)

type FriendRequestStatus string

const (
	FriendRequestStatusPending  FriendRequestStatus = "PENDING"
	FriendRequestStatusAccepted FriendRequestStatus = "ACCEPTED"
	FriendRequestStatusDeclined FriendRequestStatus = "DECLINED"
)

type FriendRequestDecision string

const (
	DecisionAccept  FriendRequestDecision = "accept"
	DecisionDecline FriendRequestDecision = "decline"
)

// Friendship is stored once per unordered pair with AID < BID.
type Friendship struct {
	ID        uuid.UUID `json:"id"`
	AID       uuid.UUID `json:"a_id"`
	BID       uuid.UUID `json:"b_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Other returns the member of the pair that is not userID.
func (f *Friendship) Other(userID uuid.UUID) uuid.UUID {
	if f.AID == userID {
		return f.BID
	}
	return f.AID
}

type FriendRequest struct {
	ID          uuid.UUID           `json:"id"`
	RequesterID uuid.UUID           `json:"requester_id"`
	RecipientID uuid.UUID           `json:"recipient_id"`
	Status      FriendRequestStatus `json:"status"`
	CreatedAt   time.Time           `json:"created_at"`
	RespondedAt *time.Time          `json:"responded_at,omitempty"`
}

type Friend struct {
	UserSummary
	Since time.Time `json:"since"`
}

// FriendRequestWithUser carries the username of the other side of the request.
type FriendRequestWithUser struct {
	FriendRequest
	OtherUsername string  `json:"other_username"`
	OtherName     *string `json:"other_name,omitempty"`
}

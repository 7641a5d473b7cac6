package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/time2watch/internal/models"
)

// UserServiceInterface defines the contract for user operations.
type UserServiceInterface interface {
	Register(ctx context.Context, params models.RegisterUserParams) (*models.User, string, error)
	Authenticate(ctx context.Context, code string) (*models.User, error)
	RecoverCode(ctx context.Context, email string) (*models.User, string, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error)
}

// AuthServiceInterface defines the contract for session operations.
type AuthServiceInterface interface {
	CreateSession(ctx context.Context, identity *models.Identity) (string, error)
	ValidateSession(ctx context.Context, token string) (*models.Identity, error)
	DeleteSession(ctx context.Context, token string) error
	RevokeUserSessions(ctx context.Context, userID uuid.UUID) (int, error)
}

// FriendServiceInterface defines the contract for friend operations.
type FriendServiceInterface interface {
	SendRequest(ctx context.Context, requesterID uuid.UUID, recipientUsername string) (*models.FriendRequest, error)
	Respond(ctx context.Context, recipientID, requestID uuid.UUID, decision models.FriendRequestDecision) (*models.FriendRequest, error)
	CancelRequest(ctx context.Context, requesterID, requestID uuid.UUID) error
	RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error
	IsFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
	ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
	ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
}

// ListServiceInterface defines the contract for watchlist operations.
type ListServiceInterface interface {
	Add(ctx context.Context, params models.AddListItemParams) (*models.ListItem, error)
	ListActive(ctx context.Context, ownerID uuid.UUID) ([]models.ListItem, error)
	ListFriendActive(ctx context.Context, viewerID uuid.UUID, username string) ([]models.ListItem, error)
	SetWatched(ctx context.Context, ownerID, itemID uuid.UUID, watched bool) (*models.ListItem, error)
	Remove(ctx context.Context, ownerID, itemID uuid.UUID) error
}

// PickServiceInterface defines the contract for random picks.
type PickServiceInterface interface {
	PickSolo(ctx context.Context, ownerID uuid.UUID) (*models.PickResult, error)
	PickPaired(ctx context.Context, pickerID, partnerID uuid.UUID) (*models.PickResult, error)
	RecentSoloPicks(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.PickHistoryEntry, error)
	RecentPairedPicks(ctx context.Context, userID uuid.UUID, limit int) ([]models.PickHistoryEntry, error)
}

// Mailer delivers a freshly issued login code to the user's email.
type Mailer interface {
	SendLoginCode(ctx context.Context, to, username, code string) error
}

var (
	_ UserServiceInterface   = (*UserService)(nil)
	_ AuthServiceInterface   = (*AuthService)(nil)
	_ FriendServiceInterface = (*FriendService)(nil)
	_ ListServiceInterface   = (*ListService)(nil)
	_ PickServiceInterface   = (*PickService)(nil)
	_ Mailer                 = (*EmailService)(nil)
	_ Limiter                = (*PostgresLimiter)(nil)
	_ Limiter                = (*RedisLimiter)(nil)
	_ Limiter                = (*MemoryLimiter)(nil)
)

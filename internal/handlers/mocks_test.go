package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/time2watch/internal/catalog"
	"github.com/HammerMeetNail/time2watch/internal/models"
	"github.com/HammerMeetNail/time2watch/internal/services"
)

type mockUserService struct {
	RegisterFunc      func(ctx context.Context, params models.RegisterUserParams) (*models.User, string, error)
	AuthenticateFunc  func(ctx context.Context, code string) (*models.User, error)
	RecoverCodeFunc   func(ctx context.Context, email string) (*models.User, string, error)
	GetByIDFunc       func(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUsernameFunc func(ctx context.Context, username string) (*models.User, error)
	UpdateProfileFunc func(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error)
}

func (m *mockUserService) Register(ctx context.Context, params models.RegisterUserParams) (*models.User, string, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, params)
	}
	return nil, "", nil
}

func (m *mockUserService) Authenticate(ctx context.Context, code string) (*models.User, error) {
	if m.AuthenticateFunc != nil {
		return m.AuthenticateFunc(ctx, code)
	}
	return nil, services.ErrInvalidLoginCode
}

func (m *mockUserService) RecoverCode(ctx context.Context, email string) (*models.User, string, error) {
	if m.RecoverCodeFunc != nil {
		return m.RecoverCodeFunc(ctx, email)
	}
	return nil, "", services.ErrUserNotFound
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, services.ErrUserNotFound
}

func (m *mockUserService) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, services.ErrUserNotFound
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID uuid.UUID, params models.UpdateProfileParams) (*models.User, error) {
	if m.UpdateProfileFunc != nil {
		return m.UpdateProfileFunc(ctx, userID, params)
	}
	return nil, nil
}

type mockAuthService struct {
	CreateSessionFunc      func(ctx context.Context, identity *models.Identity) (string, error)
	ValidateSessionFunc    func(ctx context.Context, token string) (*models.Identity, error)
	DeleteSessionFunc      func(ctx context.Context, token string) error
	RevokeUserSessionsFunc func(ctx context.Context, userID uuid.UUID) (int, error)
}

func (m *mockAuthService) CreateSession(ctx context.Context, identity *models.Identity) (string, error) {
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, identity)
	}
	return "session-token", nil
}

func (m *mockAuthService) ValidateSession(ctx context.Context, token string) (*models.Identity, error) {
	if m.ValidateSessionFunc != nil {
		return m.ValidateSessionFunc(ctx, token)
	}
	return nil, services.ErrSessionNotFound
}

func (m *mockAuthService) DeleteSession(ctx context.Context, token string) error {
	if m.DeleteSessionFunc != nil {
		return m.DeleteSessionFunc(ctx, token)
	}
	return nil
}

func (m *mockAuthService) RevokeUserSessions(ctx context.Context, userID uuid.UUID) (int, error) {
	if m.RevokeUserSessionsFunc != nil {
		return m.RevokeUserSessionsFunc(ctx, userID)
	}
	return 0, nil
}

type mockFriendService struct {
	SendRequestFunc   func(ctx context.Context, requesterID uuid.UUID, recipientUsername string) (*models.FriendRequest, error)
	RespondFunc       func(ctx context.Context, recipientID, requestID uuid.UUID, decision models.FriendRequestDecision) (*models.FriendRequest, error)
	CancelRequestFunc func(ctx context.Context, requesterID, requestID uuid.UUID) error
	RemoveFriendFunc  func(ctx context.Context, userID, friendID uuid.UUID) error
	IsFriendFunc      func(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
	ListFriendsFunc   func(ctx context.Context, userID uuid.UUID) ([]models.Friend, error)
	ListIncomingFunc  func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
	ListOutgoingFunc  func(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error)
}

func (m *mockFriendService) SendRequest(ctx context.Context, requesterID uuid.UUID, recipientUsername string) (*models.FriendRequest, error) {
	if m.SendRequestFunc != nil {
		return m.SendRequestFunc(ctx, requesterID, recipientUsername)
	}
	return &models.FriendRequest{ID: uuid.New(), RequesterID: requesterID, Status: models.FriendRequestStatusPending}, nil
}

func (m *mockFriendService) Respond(ctx context.Context, recipientID, requestID uuid.UUID, decision models.FriendRequestDecision) (*models.FriendRequest, error) {
	if m.RespondFunc != nil {
		return m.RespondFunc(ctx, recipientID, requestID, decision)
	}
	return &models.FriendRequest{ID: requestID, RecipientID: recipientID, Status: models.FriendRequestStatusAccepted}, nil
}

func (m *mockFriendService) CancelRequest(ctx context.Context, requesterID, requestID uuid.UUID) error {
	if m.CancelRequestFunc != nil {
		return m.CancelRequestFunc(ctx, requesterID, requestID)
	}
	return nil
}

func (m *mockFriendService) RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error {
	if m.RemoveFriendFunc != nil {
		return m.RemoveFriendFunc(ctx, userID, friendID)
	}
	return nil
}

func (m *mockFriendService) IsFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	if m.IsFriendFunc != nil {
		return m.IsFriendFunc(ctx, userID, otherUserID)
	}
	return false, nil
}

func (m *mockFriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	if m.ListFriendsFunc != nil {
		return m.ListFriendsFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockFriendService) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	if m.ListIncomingFunc != nil {
		return m.ListIncomingFunc(ctx, userID)
	}
	return nil, nil
}

func (m *mockFriendService) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	if m.ListOutgoingFunc != nil {
		return m.ListOutgoingFunc(ctx, userID)
	}
	return nil, nil
}

type mockListService struct {
	AddFunc              func(ctx context.Context, params models.AddListItemParams) (*models.ListItem, error)
	ListActiveFunc       func(ctx context.Context, ownerID uuid.UUID) ([]models.ListItem, error)
	ListFriendActiveFunc func(ctx context.Context, viewerID uuid.UUID, username string) ([]models.ListItem, error)
	SetWatchedFunc       func(ctx context.Context, ownerID, itemID uuid.UUID, watched bool) (*models.ListItem, error)
	RemoveFunc           func(ctx context.Context, ownerID, itemID uuid.UUID) error
}

func (m *mockListService) Add(ctx context.Context, params models.AddListItemParams) (*models.ListItem, error) {
	if m.AddFunc != nil {
		return m.AddFunc(ctx, params)
	}
	return &models.ListItem{ID: uuid.New(), OwnerID: params.OwnerID, CatalogID: params.CatalogID, MediaType: params.MediaType, Title: params.Title}, nil
}

func (m *mockListService) ListActive(ctx context.Context, ownerID uuid.UUID) ([]models.ListItem, error) {
	if m.ListActiveFunc != nil {
		return m.ListActiveFunc(ctx, ownerID)
	}
	return nil, nil
}

func (m *mockListService) ListFriendActive(ctx context.Context, viewerID uuid.UUID, username string) ([]models.ListItem, error) {
	if m.ListFriendActiveFunc != nil {
		return m.ListFriendActiveFunc(ctx, viewerID, username)
	}
	return nil, nil
}

func (m *mockListService) SetWatched(ctx context.Context, ownerID, itemID uuid.UUID, watched bool) (*models.ListItem, error) {
	if m.SetWatchedFunc != nil {
		return m.SetWatchedFunc(ctx, ownerID, itemID, watched)
	}
	return &models.ListItem{ID: itemID, OwnerID: ownerID, Watched: watched}, nil
}

func (m *mockListService) Remove(ctx context.Context, ownerID, itemID uuid.UUID) error {
	if m.RemoveFunc != nil {
		return m.RemoveFunc(ctx, ownerID, itemID)
	}
	return nil
}

type mockPickService struct {
	PickSoloFunc          func(ctx context.Context, ownerID uuid.UUID) (*models.PickResult, error)
	PickPairedFunc        func(ctx context.Context, pickerID, partnerID uuid.UUID) (*models.PickResult, error)
	RecentSoloPicksFunc   func(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.PickHistoryEntry, error)
	RecentPairedPicksFunc func(ctx context.Context, userID uuid.UUID, limit int) ([]models.PickHistoryEntry, error)
}

func (m *mockPickService) PickSolo(ctx context.Context, ownerID uuid.UUID) (*models.PickResult, error) {
	if m.PickSoloFunc != nil {
		return m.PickSoloFunc(ctx, ownerID)
	}
	return &models.PickResult{}, nil
}

func (m *mockPickService) PickPaired(ctx context.Context, pickerID, partnerID uuid.UUID) (*models.PickResult, error) {
	if m.PickPairedFunc != nil {
		return m.PickPairedFunc(ctx, pickerID, partnerID)
	}
	return &models.PickResult{}, nil
}

func (m *mockPickService) RecentSoloPicks(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.PickHistoryEntry, error) {
	if m.RecentSoloPicksFunc != nil {
		return m.RecentSoloPicksFunc(ctx, ownerID, limit)
	}
	return nil, nil
}

func (m *mockPickService) RecentPairedPicks(ctx context.Context, userID uuid.UUID, limit int) ([]models.PickHistoryEntry, error) {
	if m.RecentPairedPicksFunc != nil {
		return m.RecentPairedPicksFunc(ctx, userID, limit)
	}
	return nil, nil
}

type mockMailer struct {
	SendLoginCodeFunc func(ctx context.Context, to, username, code string) error
	sent              []string
}

func (m *mockMailer) SendLoginCode(ctx context.Context, to, username, code string) error {
	m.sent = append(m.sent, to)
	if m.SendLoginCodeFunc != nil {
		return m.SendLoginCodeFunc(ctx, to, username, code)
	}
	return nil
}

type mockLimiter struct {
	HitFunc func(ctx context.Context, key string) (models.RateLimitResult, error)
	keys    []string
}

func (m *mockLimiter) Hit(ctx context.Context, key string) (models.RateLimitResult, error) {
	m.keys = append(m.keys, key)
	if m.HitFunc != nil {
		return m.HitFunc(ctx, key)
	}
	return models.RateLimitResult{Allowed: true, Remaining: 1}, nil
}

type mockSearcher struct {
	SearchFunc func(ctx context.Context, query string, page int) (*catalog.SearchResponse, error)
}

func (m *mockSearcher) Search(ctx context.Context, query string, page int) (*catalog.SearchResponse, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query, page)
	}
	return &catalog.SearchResponse{Page: page}, nil
}

var (
	_ services.UserServiceInterface   = (*mockUserService)(nil)
	_ services.AuthServiceInterface   = (*mockAuthService)(nil)
	_ services.FriendServiceInterface = (*mockFriendService)(nil)
	_ services.ListServiceInterface   = (*mockListService)(nil)
	_ services.PickServiceInterface   = (*mockPickService)(nil)
	_ services.Mailer                 = (*mockMailer)(nil)
	_ services.Limiter                = (*mockLimiter)(nil)
	_ catalog.Searcher                = (*mockSearcher)(nil)
)

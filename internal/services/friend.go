package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/time2watch/internal/models"
)

var (
	ErrFriendRequestNotFound  = errors.New("friend request not found")
	ErrFriendshipNotFound     = errors.New("friendship not found")
	ErrCannotFriendSelf       = errors.New("cannot send friend request to yourself")
	ErrAlreadyFriends         = errors.New("you are already friends with this user")
	ErrRequestAlreadySent     = errors.New("friend request already sent")
	ErrRequestPendingFromThem = errors.New("this user already invited you, respond to their request instead")
	ErrNotRequestRecipient    = errors.New("only the recipient can respond to this request")
	ErrNotRequestRequester    = errors.New("only the requester can cancel this request")
	ErrRequestNotPending      = errors.New("friend request is not pending")
	ErrInvalidTransition      = errors.New("friend request cannot move to that state")
	ErrInvalidDecision        = errors.New("decision must be accept or decline")
)

// statusNone is the state of an ordered pair with no request row.
const statusNone models.FriendRequestStatus = ""

// friendRequestTransitions lists every allowed status change of a single
// ordered-pair request. ACCEPTED may reopen once the friendship was removed.
var friendRequestTransitions = map[models.FriendRequestStatus][]models.FriendRequestStatus{
	statusNone:                         {models.FriendRequestStatusPending},
	models.FriendRequestStatusPending:  {models.FriendRequestStatusAccepted, models.FriendRequestStatusDeclined},
	models.FriendRequestStatusDeclined: {models.FriendRequestStatusPending},
	models.FriendRequestStatusAccepted: {models.FriendRequestStatusPending},
}

func canTransition(from, to models.FriendRequestStatus) bool {
	for _, next := range friendRequestTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// canonicalPair orders two ids the way the friendships table stores them.
func canonicalPair(x, y uuid.UUID) (uuid.UUID, uuid.UUID) {
	if bytes.Compare(x[:], y[:]) <= 0 {
		return x, y
	}
	return y, x
}

const friendRequestColumns = `id, requester_id, recipient_id, status, created_at, responded_at`

type FriendService struct {
	db  DB
	now func() time.Time
}

func NewFriendService(db DB) *FriendService {
	return &FriendService{db: db, now: time.Now}
}

// lockPair serializes every request mutation touching the unordered pair for
// the rest of the transaction.
func lockPair(ctx context.Context, tx Tx, x, y uuid.UUID) error {
	a, b := canonicalPair(x, y)
	_, err := tx.Exec(ctx,
		"SELECT pg_advisory_xact_lock(hashtextextended($1, 0))",
		"friend:"+a.String()+":"+b.String(),
	)
	if err != nil {
		return fmt.Errorf("locking friend pair: %w", err)
	}
	return nil
}

func (s *FriendService) SendRequest(ctx context.Context, requesterID uuid.UUID, recipientUsername string) (*models.FriendRequest, error) {
	var recipientID uuid.UUID
	err := s.db.QueryRow(ctx,
		"SELECT id FROM users WHERE username = $1",
		NormalizeUsername(recipientUsername),
	).Scan(&recipientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up recipient: %w", err)
	}
	if recipientID == requesterID {
		return nil, ErrCannotFriendSelf
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	if err := lockPair(ctx, tx, requesterID, recipientID); err != nil {
		return nil, err
	}

	friends, err := areFriends(ctx, tx, requesterID, recipientID)
	if err != nil {
		return nil, err
	}
	if friends {
		return nil, ErrAlreadyFriends
	}

	current, err := s.pairStatus(ctx, tx, requesterID, recipientID)
	if err != nil {
		return nil, err
	}
	if current.reverse == models.FriendRequestStatusPending {
		return nil, ErrRequestPendingFromThem
	}
	if current.forward == models.FriendRequestStatusPending {
		return nil, ErrRequestAlreadySent
	}
	if !canTransition(current.forward, models.FriendRequestStatusPending) {
		return nil, ErrInvalidTransition
	}

	// The WHERE clause keeps a concurrent duplicate from resetting a live request.
	request, err := scanFriendRequest(tx.QueryRow(ctx,
		`INSERT INTO friend_requests (requester_id, recipient_id, status, created_at)
		 VALUES ($1, $2, 'PENDING', $3)
		 ON CONFLICT (requester_id, recipient_id) DO UPDATE
		   SET status = 'PENDING', created_at = EXCLUDED.created_at, responded_at = NULL
		   WHERE friend_requests.status <> 'PENDING'
		 RETURNING `+friendRequestColumns,
		requesterID, recipientID, s.now(),
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRequestAlreadySent
	}
	if err != nil {
		return nil, fmt.Errorf("creating friend request: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing friend request: %w", err)
	}
	committed = true

	return request, nil
}

type pairStatus struct {
	forward models.FriendRequestStatus
	reverse models.FriendRequestStatus
}

func (s *FriendService) pairStatus(ctx context.Context, q Querier, requesterID, recipientID uuid.UUID) (pairStatus, error) {
	rows, err := q.Query(ctx,
		`SELECT requester_id, status FROM friend_requests
		 WHERE (requester_id = $1 AND recipient_id = $2)
		    OR (requester_id = $2 AND recipient_id = $1)`,
		requesterID, recipientID,
	)
	if err != nil {
		return pairStatus{}, fmt.Errorf("checking existing requests: %w", err)
	}
	defer rows.Close()

	var status pairStatus
	for rows.Next() {
		var from uuid.UUID
		var st models.FriendRequestStatus
		if err := rows.Scan(&from, &st); err != nil {
			return pairStatus{}, fmt.Errorf("scanning request status: %w", err)
		}
		if from == requesterID {
			status.forward = st
		} else {
			status.reverse = st
		}
	}
	if err := rows.Err(); err != nil {
		return pairStatus{}, fmt.Errorf("iterating requests: %w", err)
	}
	return status, nil
}

// Respond resolves a pending request addressed to recipientID. Accepting flips
// the request and creates the friendship in one transaction.
func (s *FriendService) Respond(ctx context.Context, recipientID, requestID uuid.UUID, decision models.FriendRequestDecision) (*models.FriendRequest, error) {
	var next models.FriendRequestStatus
	switch decision {
	case models.DecisionAccept:
		next = models.FriendRequestStatusAccepted
	case models.DecisionDecline:
		next = models.FriendRequestStatusDeclined
	default:
		return nil, ErrInvalidDecision
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback(ctx)
		}
	}()

	request, err := getFriendRequest(ctx, tx, requestID, false)
	if err != nil {
		return nil, err
	}
	if request.RecipientID != recipientID {
		return nil, ErrNotRequestRecipient
	}

	// Pair lock before row lock, matching SendRequest.
	if err := lockPair(ctx, tx, request.RequesterID, request.RecipientID); err != nil {
		return nil, err
	}
	request, err = getFriendRequest(ctx, tx, requestID, true)
	if err != nil {
		return nil, err
	}
	if request.Status != models.FriendRequestStatusPending {
		return nil, ErrRequestNotPending
	}
	if !canTransition(request.Status, next) {
		return nil, ErrInvalidTransition
	}

	now := s.now()
	_, err = tx.Exec(ctx,
		"UPDATE friend_requests SET status = $1, responded_at = $2 WHERE id = $3",
		next, now, requestID,
	)
	if err != nil {
		return nil, fmt.Errorf("updating friend request: %w", err)
	}

	if next == models.FriendRequestStatusAccepted {
		a, b := canonicalPair(request.RequesterID, request.RecipientID)
		_, err = tx.Exec(ctx,
			`INSERT INTO friendships (a_id, b_id, created_at)
			 VALUES ($1, $2, $3)
			 ON CONFLICT (a_id, b_id) DO NOTHING`,
			a, b, now,
		)
		if err != nil {
			return nil, fmt.Errorf("creating friendship: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing friend response: %w", err)
	}
	committed = true

	request.Status = next
	request.RespondedAt = &now
	return request, nil
}

// CancelRequest deletes a pending outgoing request; cancellations keep no history.
func (s *FriendService) CancelRequest(ctx context.Context, requesterID, requestID uuid.UUID) error {
	request, err := getFriendRequest(ctx, s.db, requestID, false)
	if err != nil {
		return err
	}
	if request.RequesterID != requesterID {
		return ErrNotRequestRequester
	}
	if request.Status != models.FriendRequestStatusPending {
		return ErrRequestNotPending
	}

	result, err := s.db.Exec(ctx,
		"DELETE FROM friend_requests WHERE id = $1 AND status = 'PENDING'",
		requestID,
	)
	if err != nil {
		return fmt.Errorf("canceling friend request: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRequestNotPending
	}
	return nil
}

// RemoveFriend deletes the friendship between userID and friendID whichever way it is stored.
func (s *FriendService) RemoveFriend(ctx context.Context, userID, friendID uuid.UUID) error {
	a, b := canonicalPair(userID, friendID)
	result, err := s.db.Exec(ctx,
		"DELETE FROM friendships WHERE a_id = $1 AND b_id = $2",
		a, b,
	)
	if err != nil {
		return fmt.Errorf("removing friendship: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrFriendshipNotFound
	}
	return nil
}

func (s *FriendService) IsFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error) {
	return areFriends(ctx, s.db, userID, otherUserID)
}

func areFriends(ctx context.Context, q Querier, x, y uuid.UUID) (bool, error) {
	a, b := canonicalPair(x, y)
	var exists bool
	err := q.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM friendships WHERE a_id = $1 AND b_id = $2)",
		a, b,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking friendship: %w", err)
	}
	return exists, nil
}

func (s *FriendService) ListFriends(ctx context.Context, userID uuid.UUID) ([]models.Friend, error) {
	rows, err := s.db.Query(ctx,
		`SELECT u.id, u.username, u.name, u.avatar_url, f.created_at
		 FROM friendships f
		 JOIN users u ON u.id = CASE WHEN f.a_id = $1 THEN f.b_id ELSE f.a_id END
		 WHERE f.a_id = $1 OR f.b_id = $1
		 ORDER BY u.username`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing friends: %w", err)
	}
	defer rows.Close()

	friends := []models.Friend{}
	for rows.Next() {
		var f models.Friend
		if err := rows.Scan(&f.ID, &f.Username, &f.Name, &f.AvatarURL, &f.Since); err != nil {
			return nil, fmt.Errorf("scanning friend: %w", err)
		}
		friends = append(friends, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating friends: %w", err)
	}
	return friends, nil
}

// ListIncoming returns pending requests addressed to userID, newest first.
func (s *FriendService) ListIncoming(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	return s.listPending(ctx,
		`SELECT r.id, r.requester_id, r.recipient_id, r.status, r.created_at, r.responded_at, u.username, u.name
		 FROM friend_requests r
		 JOIN users u ON u.id = r.requester_id
		 WHERE r.recipient_id = $1 AND r.status = 'PENDING'
		 ORDER BY r.created_at DESC`,
		userID, "listing incoming requests",
	)
}

// ListOutgoing returns pending requests sent by userID, newest first.
func (s *FriendService) ListOutgoing(ctx context.Context, userID uuid.UUID) ([]models.FriendRequestWithUser, error) {
	return s.listPending(ctx,
		`SELECT r.id, r.requester_id, r.recipient_id, r.status, r.created_at, r.responded_at, u.username, u.name
		 FROM friend_requests r
		 JOIN users u ON u.id = r.recipient_id
		 WHERE r.requester_id = $1 AND r.status = 'PENDING'
		 ORDER BY r.created_at DESC`,
		userID, "listing outgoing requests",
	)
}

func (s *FriendService) listPending(ctx context.Context, query string, userID uuid.UUID, action string) ([]models.FriendRequestWithUser, error) {
	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	defer rows.Close()

	requests := []models.FriendRequestWithUser{}
	for rows.Next() {
		var r models.FriendRequestWithUser
		if err := rows.Scan(&r.ID, &r.RequesterID, &r.RecipientID, &r.Status, &r.CreatedAt, &r.RespondedAt, &r.OtherUsername, &r.OtherName); err != nil {
			return nil, fmt.Errorf("scanning request: %w", err)
		}
		requests = append(requests, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	return requests, nil
}

func getFriendRequest(ctx context.Context, q Querier, requestID uuid.UUID, forUpdate bool) (*models.FriendRequest, error) {
	query := `SELECT ` + friendRequestColumns + ` FROM friend_requests WHERE id = $1`
	if forUpdate {
		query += " FOR UPDATE"
	}
	request, err := scanFriendRequest(q.QueryRow(ctx, query, requestID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrFriendRequestNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting friend request: %w", err)
	}
	return request, nil
}

func scanFriendRequest(row Row) (*models.FriendRequest, error) {
	r := &models.FriendRequest{}
	if err := row.Scan(&r.ID, &r.RequesterID, &r.RecipientID, &r.Status, &r.CreatedAt, &r.RespondedAt); err != nil {
		return nil, err
	}
	return r, nil
}

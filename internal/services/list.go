package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/HammerMeetNail/time2watch/internal/models"
)

var (
	ErrListItemNotFound = errors.New("list item not found")
	ErrInvalidListItem  = errors.New("list item needs a catalog id, a media type of MOVIE or TV, and a title")
	ErrNotFriends       = errors.New("you are not friends with this user")
)

// listItemColumns expects the list_items table aliased as li.
const listItemColumns = `li.id, li.owner_id, li.catalog_id, li.media_type, li.title, li.overview,
	li.poster_path, li.backdrop_path, li.release_date, li.watched, li.archived, li.created_at, li.updated_at`

type friendChecker interface {
	IsFriend(ctx context.Context, userID, otherUserID uuid.UUID) (bool, error)
}

type ListService struct {
	db      DB
	friends friendChecker
	policy  models.RemovalPolicy
	now     func() time.Time
}

func NewListService(db DB, friends friendChecker, policy models.RemovalPolicy) *ListService {
	if policy != models.RemovalPolicyPurge {
		policy = models.RemovalPolicyArchive
	}
	return &ListService{db: db, friends: friends, policy: policy, now: time.Now}
}

func (s *ListService) RemovalPolicy() models.RemovalPolicy {
	return s.policy
}

// Add stores the catalog snapshot for the owner. Adding an item already on the
// list refreshes the snapshot and brings it back if it was archived.
func (s *ListService) Add(ctx context.Context, params models.AddListItemParams) (*models.ListItem, error) {
	params.Title = strings.TrimSpace(params.Title)
	if params.CatalogID <= 0 || !params.MediaType.Valid() || params.Title == "" {
		return nil, ErrInvalidListItem
	}

	now := s.now()
	item, err := scanListItem(s.db.QueryRow(ctx,
		`INSERT INTO list_items AS li (owner_id, catalog_id, media_type, title, overview,
		                               poster_path, backdrop_path, release_date, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)
		 ON CONFLICT (owner_id, catalog_id, media_type) DO UPDATE SET
		   title = EXCLUDED.title,
		   overview = EXCLUDED.overview,
		   poster_path = EXCLUDED.poster_path,
		   backdrop_path = EXCLUDED.backdrop_path,
		   release_date = EXCLUDED.release_date,
		   archived = false,
		   updated_at = EXCLUDED.updated_at
		 RETURNING `+listItemColumns,
		params.OwnerID, params.CatalogID, params.MediaType, params.Title, params.Overview,
		params.PosterPath, params.BackdropPath, params.ReleaseDate, now,
	))
	if err != nil {
		return nil, fmt.Errorf("adding list item: %w", err)
	}
	return item, nil
}

// ListActive returns the owner's non-archived items, newest first.
func (s *ListService) ListActive(ctx context.Context, ownerID uuid.UUID) ([]models.ListItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+listItemColumns+`
		 FROM list_items li
		 WHERE li.owner_id = $1 AND li.archived = false
		 ORDER BY li.created_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing items: %w", err)
	}
	return collectListItems(rows)
}

// ListFriendActive returns the active list of the user named username, who
// must be viewerID or one of their friends.
func (s *ListService) ListFriendActive(ctx context.Context, viewerID uuid.UUID, username string) ([]models.ListItem, error) {
	var ownerID uuid.UUID
	err := s.db.QueryRow(ctx,
		"SELECT id FROM users WHERE username = $1",
		NormalizeUsername(username),
	).Scan(&ownerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("looking up list owner: %w", err)
	}

	if ownerID != viewerID {
		ok, err := s.friends.IsFriend(ctx, viewerID, ownerID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrNotFriends
		}
	}

	return s.ListActive(ctx, ownerID)
}

func (s *ListService) SetWatched(ctx context.Context, ownerID, itemID uuid.UUID, watched bool) (*models.ListItem, error) {
	item, err := scanListItem(s.db.QueryRow(ctx,
		`UPDATE list_items AS li SET watched = $1, updated_at = $2
		 WHERE li.id = $3 AND li.owner_id = $4 AND li.archived = false
		 RETURNING `+listItemColumns,
		watched, s.now(), itemID, ownerID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrListItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("updating watched flag: %w", err)
	}
	return item, nil
}

// Remove archives or deletes the item depending on the configured policy.
func (s *ListService) Remove(ctx context.Context, ownerID, itemID uuid.UUID) error {
	var (
		result CommandTag
		err    error
	)
	switch s.policy {
	case models.RemovalPolicyPurge:
		result, err = s.db.Exec(ctx,
			"DELETE FROM list_items WHERE id = $1 AND owner_id = $2",
			itemID, ownerID,
		)
	default:
		result, err = s.db.Exec(ctx,
			`UPDATE list_items SET archived = true, updated_at = $1
			 WHERE id = $2 AND owner_id = $3 AND archived = false`,
			s.now(), itemID, ownerID,
		)
	}
	if err != nil {
		return fmt.Errorf("removing list item: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrListItemNotFound
	}
	return nil
}

func collectListItems(rows Rows) ([]models.ListItem, error) {
	defer rows.Close()

	items := []models.ListItem{}
	for rows.Next() {
		item, err := scanListItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning list item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating list items: %w", err)
	}
	return items, nil
}

func scanListItem(row Row) (*models.ListItem, error) {
	item := &models.ListItem{}
	err := row.Scan(&item.ID, &item.OwnerID, &item.CatalogID, &item.MediaType, &item.Title, &item.Overview,
		&item.PosterPath, &item.BackdropPath, &item.ReleaseDate, &item.Watched, &item.Archived, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return item, nil
}

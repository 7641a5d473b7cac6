package services

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/time2watch/internal/models"
)

var ErrPickSelf = errors.New("cannot pick together with yourself")

const DefaultPickHistoryLimit = 20

// PickService chooses something to watch from eligible (unwatched, unarchived) items.
type PickService struct {
	db          DB
	friends     friendChecker
	randomIndex func(n int) int
	now         func() time.Time
}

func NewPickService(db DB, friends friendChecker) *PickService {
	return &PickService{
		db:          db,
		friends:     friends,
		randomIndex: rand.IntN,
		now:         time.Now,
	}
}

// PickSolo draws from the owner's eligible items. An empty pool is not an
// error; it returns an empty result and records nothing.
func (s *PickService) PickSolo(ctx context.Context, ownerID uuid.UUID) (*models.PickResult, error) {
	pool, err := s.eligible(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return &models.PickResult{}, nil
	}

	picked := pool[s.randomIndex(len(pool))]
	_, err = s.db.Exec(ctx,
		"INSERT INTO pick_histories (owner_id, item_id, picked_at) VALUES ($1, $2, $3)",
		ownerID, picked.ID, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("recording pick: %w", err)
	}

	return &models.PickResult{Picked: &picked, PoolSize: len(pool)}, nil
}

// PickPaired draws from both friends' eligible items. The pool is not
// de-duplicated, so a title on both lists is twice as likely to come up.
func (s *PickService) PickPaired(ctx context.Context, pickerID, partnerID uuid.UUID) (*models.PickResult, error) {
	if pickerID == partnerID {
		return nil, ErrPickSelf
	}

	ok, err := s.friends.IsFriend(ctx, pickerID, partnerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFriends
	}

	pool, err := s.eligible(ctx, pickerID, partnerID)
	if err != nil {
		return nil, err
	}
	if len(pool) == 0 {
		return &models.PickResult{}, nil
	}

	picked := pool[s.randomIndex(len(pool))]
	_, err = s.db.Exec(ctx,
		`INSERT INTO shared_pick_histories (picker_id, partner_id, item_id, picked_at)
		 VALUES ($1, $2, $3, $4)`,
		pickerID, partnerID, picked.ID, s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("recording paired pick: %w", err)
	}

	return &models.PickResult{Picked: &picked, PoolSize: len(pool)}, nil
}

func (s *PickService) eligible(ctx context.Context, ownerIDs ...uuid.UUID) ([]models.ListItem, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+listItemColumns+`
		 FROM list_items li
		 WHERE li.owner_id = ANY($1) AND li.watched = false AND li.archived = false
		 ORDER BY li.owner_id, li.created_at`,
		ownerIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("loading pick pool: %w", err)
	}
	return collectListItems(rows)
}

func (s *PickService) RecentSoloPicks(ctx context.Context, ownerID uuid.UUID, limit int) ([]models.PickHistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultPickHistoryLimit
	}
	rows, err := s.db.Query(ctx,
		`SELECT h.picked_at, `+listItemColumns+`
		 FROM pick_histories h
		 JOIN list_items li ON li.id = h.item_id
		 WHERE h.owner_id = $1
		 ORDER BY h.picked_at DESC
		 LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing picks: %w", err)
	}
	defer rows.Close()

	entries := []models.PickHistoryEntry{}
	for rows.Next() {
		var e models.PickHistoryEntry
		it := &e.Item
		err := rows.Scan(&e.PickedAt, &it.ID, &it.OwnerID, &it.CatalogID, &it.MediaType, &it.Title, &it.Overview,
			&it.PosterPath, &it.BackdropPath, &it.ReleaseDate, &it.Watched, &it.Archived, &it.CreatedAt, &it.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning pick: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating picks: %w", err)
	}
	return entries, nil
}

// RecentPairedPicks lists paired picks where userID was either side; the
// partner columns describe the other user.
func (s *PickService) RecentPairedPicks(ctx context.Context, userID uuid.UUID, limit int) ([]models.PickHistoryEntry, error) {
	if limit <= 0 {
		limit = DefaultPickHistoryLimit
	}
	rows, err := s.db.Query(ctx,
		`SELECT h.picked_at, u.id, u.username, `+listItemColumns+`
		 FROM shared_pick_histories h
		 JOIN list_items li ON li.id = h.item_id
		 JOIN users u ON u.id = CASE WHEN h.picker_id = $1 THEN h.partner_id ELSE h.picker_id END
		 WHERE h.picker_id = $1 OR h.partner_id = $1
		 ORDER BY h.picked_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing paired picks: %w", err)
	}
	defer rows.Close()

	entries := []models.PickHistoryEntry{}
	for rows.Next() {
		var e models.PickHistoryEntry
		var partnerID uuid.UUID
		var partnerName string
		it := &e.Item
		err := rows.Scan(&e.PickedAt, &partnerID, &partnerName, &it.ID, &it.OwnerID, &it.CatalogID, &it.MediaType, &it.Title, &it.Overview,
			&it.PosterPath, &it.BackdropPath, &it.ReleaseDate, &it.Watched, &it.Archived, &it.CreatedAt, &it.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning paired pick: %w", err)
		}
		e.PartnerID = &partnerID
		e.PartnerName = &partnerName
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating paired picks: %w", err)
	}
	return entries, nil
}

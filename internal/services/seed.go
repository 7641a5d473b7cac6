package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/HammerMeetNail/time2watch/internal/models"
)

// SeededUser is a demo account and the access code issued for it.
type SeededUser struct {
	ID       uuid.UUID
	Username string
	Code     string
}

type demoUser struct {
	username string
	name     string
	items    []models.AddListItemParams
}

var demoUsers = []demoUser{
	{
		username: "tester01",
		name:     "Tester",
		items: []models.AddListItemParams{
			{CatalogID: 603, MediaType: models.MediaTypeMovie, Title: "The Matrix"},
			{CatalogID: 1396, MediaType: models.MediaTypeTV, Title: "Breaking Bad"},
		},
	},
	{
		username: "cinebuddy",
		name:     "Cine Buddy",
		items: []models.AddListItemParams{
			{CatalogID: 27205, MediaType: models.MediaTypeMovie, Title: "Inception"},
		},
	},
}

// Seeder loads the demo accounts used for local development.
type Seeder struct {
	db       DB
	generate codeGenerator
	now      func() time.Time
}

func NewSeeder(db DB) *Seeder {
	return &Seeder{db: db, generate: GenerateLoginCode, now: time.Now}
}

// SeedDemo creates or refreshes the demo users, befriends them and fills their
// lists. Re-running it issues new codes and leaves everything else in place.
func (s *Seeder) SeedDemo(ctx context.Context) ([]SeededUser, error) {
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

	now := s.now()
	seeded := make([]SeededUser, 0, len(demoUsers))
	for _, du := range demoUsers {
		code, codeHash, err := issueLoginCode(ctx, tx, s.generate)
		if err != nil {
			return nil, err
		}

		var id uuid.UUID
		err = tx.QueryRow(ctx,
			`INSERT INTO users (name, username, login_code_hash, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $4)
			 ON CONFLICT (username) DO UPDATE
			   SET login_code_hash = EXCLUDED.login_code_hash, updated_at = EXCLUDED.updated_at
			 RETURNING id`,
			du.name, du.username, codeHash, now,
		).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("seeding user %s: %w", du.username, err)
		}

		for _, item := range du.items {
			_, err = tx.Exec(ctx,
				`INSERT INTO list_items (owner_id, catalog_id, media_type, title, created_at, updated_at)
				 VALUES ($1, $2, $3, $4, $5, $5)
				 ON CONFLICT (owner_id, catalog_id, media_type) DO NOTHING`,
				id, item.CatalogID, item.MediaType, item.Title, now,
			)
			if err != nil {
				return nil, fmt.Errorf("seeding list item %d: %w", item.CatalogID, err)
			}
		}

		seeded = append(seeded, SeededUser{ID: id, Username: du.username, Code: code})
	}

	// A friendship may not sit next to a pending request in either direction.
	requester, recipient := seeded[0].ID, seeded[1].ID
	_, err = tx.Exec(ctx,
		`INSERT INTO friend_requests (requester_id, recipient_id, status, created_at, responded_at)
		 VALUES ($1, $2, 'ACCEPTED', $3, $3)
		 ON CONFLICT (requester_id, recipient_id) DO UPDATE
		 SET status = 'ACCEPTED', responded_at = EXCLUDED.responded_at
		 WHERE friend_requests.status <> 'ACCEPTED'`,
		requester, recipient, now,
	)
	if err != nil {
		return nil, fmt.Errorf("seeding friend request: %w", err)
	}
	_, err = tx.Exec(ctx,
		`UPDATE friend_requests SET status = 'ACCEPTED', responded_at = $3
		 WHERE requester_id = $1 AND recipient_id = $2 AND status = 'PENDING'`,
		recipient, requester, now,
	)
	if err != nil {
		return nil, fmt.Errorf("resolving reverse friend request: %w", err)
	}

	a, b := canonicalPair(requester, recipient)
	_, err = tx.Exec(ctx,
		`INSERT INTO friendships (a_id, b_id, created_at)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (a_id, b_id) DO NOTHING`,
		a, b, now,
	)
	if err != nil {
		return nil, fmt.Errorf("seeding friendship: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing seed: %w", err)
	}
	committed = true

	return seeded, nil
}

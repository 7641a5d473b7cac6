package models

import (
	"time"

	"github.com/google/uuid"
)

type PickHistory struct {
	ID       uuid.UUID `json:"id"`
	OwnerID  uuid.UUID `json:"owner_id"`
	ItemID   uuid.UUID `json:"item_id"`
	PickedAt time.Time `json:"picked_at"`
}

type SharedPickHistory struct {
	ID        uuid.UUID `json:"id"`
	PickerID  uuid.UUID `json:"picker_id"`
	PartnerID uuid.UUID `json:"partner_id"`
	ItemID    uuid.UUID `json:"item_id"`
	PickedAt  time.Time `json:"picked_at"`
}

// PickResult has a nil Picked when there was nothing eligible to choose from.
type PickResult struct {
	Picked   *ListItem `json:"picked,omitempty"`
	PoolSize int       `json:"pool_size"`
}

func (r *PickResult) Empty() bool {
	return r.Picked == nil
}

type PickHistoryEntry struct {
	PickedAt    time.Time  `json:"picked_at"`
	Item        ListItem   `json:"item"`
	PartnerID   *uuid.UUID `json:"partner_id,omitempty"`
	PartnerName *string    `json:"partner_username,omitempty"`
}

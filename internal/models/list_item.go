package models

import (
	"time"

	"github.com/google/uuid"
)

type MediaType string

const (
	MediaTypeMovie MediaType = "MOVIE"
	MediaTypeTV    MediaType = "TV"
)

func (m MediaType) Valid() bool {
	return m == MediaTypeMovie || m == MediaTypeTV
}

type ListItem struct {
	ID           uuid.UUID  `json:"id"`
	OwnerID      uuid.UUID  `json:"owner_id"`
	CatalogID    int64      `json:"catalog_id"`
	MediaType    MediaType  `json:"type"`
	Title        string     `json:"title"`
	Overview     *string    `json:"overview,omitempty"`
	PosterPath   *string    `json:"poster_path,omitempty"`
	BackdropPath *string    `json:"backdrop_path,omitempty"`
	ReleaseDate  *time.Time `json:"release_date,omitempty"`
	Watched      bool       `json:"watched"`
	Archived     bool       `json:"archived"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// AddListItemParams is the catalog snapshot taken when an item is added.
type AddListItemParams struct {
	OwnerID      uuid.UUID
	CatalogID    int64
	MediaType    MediaType
	Title        string
	Overview     *string
	PosterPath   *string
	BackdropPath *string
	ReleaseDate  *time.Time
}

type RemovalPolicy string

const (
	RemovalPolicyArchive RemovalPolicy = "archive"
	RemovalPolicyPurge   RemovalPolicy = "purge"
)

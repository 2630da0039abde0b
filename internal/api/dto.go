package api

import (
	"time"

	"github.com/starford/arkvault/internal/storeservice"
)

// IndexStatusResponse summarizes the monitored index.
type IndexStatusResponse struct {
	Entries    int       `json:"entries" example:"1532" validate:"required"`
	Collisions int       `json:"collisions" example:"2" validate:"required"`
	LastUpdate time.Time `json:"last_update" validate:"required"`
}

// CollisionDTO is an identifier produced by several paths.
type CollisionDTO struct {
	ID    string   `json:"id" example:"5-3fa2..." validate:"required"`
	Count int      `json:"count" example:"2" validate:"required"`
	Paths []string `json:"paths" validate:"required"`
}

// CollisionsResponse wraps the collision report.
type CollisionsResponse struct {
	Collisions []CollisionDTO `json:"collisions" validate:"required"`
}

// StorageListResponse wraps a storage listing.
type StorageListResponse struct {
	Storage string                  `json:"storage" example:"tags" validate:"required"`
	Items   []storeservice.ListItem `json:"items" validate:"required"`
}

// WriteValueRequest is the body for appending or inserting a value.
type WriteValueRequest struct {
	Content string `json:"content" example:"a=1, b=2"`
	Format  string `json:"format,omitempty" example:"json" enums:"raw,json"`
}

// ValueDetail is the stored value response (aliased from the domain layer).
type ValueDetail = storeservice.ValueDetail

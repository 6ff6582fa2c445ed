package entity

import "time"

// Module is the content module a student enrolls in. This service only
// reads modules; authoring lives elsewhere.
type Module struct {
	ID string

	Title      string
	EducatorID string

	PriceCents int64
	Currency   string

	IsActive bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

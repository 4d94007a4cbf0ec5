package domain

import "github.com/google/uuid"

// Product belongs to exactly one category.
type Product struct {
	ID          uuid.UUID
	CategoryID  uuid.UUID
	Name        string
	Description string
	Shortcode   string
	Quantity    int
	CreatedAt   int64
	UpdatedAt   int64
}

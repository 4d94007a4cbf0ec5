package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/vietddude/dal/internal/core/domain"
)

var (
	// ErrNotFound is returned when an entity doesn't exist
	ErrNotFound = errors.New("not found")

	// ErrTxDone is returned when a unit of work is used after Commit or Rollback
	ErrTxDone = errors.New("unit of work already completed")
)

// CategoryRepository handles category storage operations
type CategoryRepository interface {
	// Create saves a new category, filling in ID and CreatedAt when unset
	Create(ctx context.Context, c *domain.Category) error

	// CreateBatch saves multiple categories atomically
	CreateBatch(ctx context.Context, cs []*domain.Category) error

	// GetByID retrieves a category by ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error)

	// List retrieves one page of categories ordered by creation time
	List(ctx context.Context, page domain.PageRequest) (domain.Paginated[*domain.Category], error)

	// Update overwrites name and type of an existing category
	Update(ctx context.Context, c *domain.Category) error

	// Rename sets the name of every listed category and returns the ones that exist
	Rename(ctx context.Context, ids []uuid.UUID, name string) ([]*domain.Category, error)

	// Delete removes a category and its products
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteAll removes every category and returns how many were removed
	DeleteAll(ctx context.Context) (int64, error)

	// Count returns the number of categories
	Count(ctx context.Context) (int64, error)

	// ExistsByName reports whether a category with the given name exists
	ExistsByName(ctx context.Context, name string) (bool, error)
}

// ProductRepository handles product storage operations
type ProductRepository interface {
	// Create saves a new product; the category must exist
	Create(ctx context.Context, p *domain.Product) error

	// GetByID retrieves a product by ID
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)

	// ListByCategory retrieves one page of the products of a category
	ListByCategory(
		ctx context.Context,
		categoryID uuid.UUID,
		page domain.PageRequest,
	) (domain.Paginated[*domain.Product], error)

	// Update overwrites the mutable fields of an existing product
	Update(ctx context.Context, p *domain.Product) error

	// Delete removes a product
	Delete(ctx context.Context, id uuid.UUID) error
}

// UnitOfWork groups repository calls into one atomic change.
type UnitOfWork interface {
	Categories() CategoryRepository
	Products() ProductRepository

	// Commit applies every change made through the unit of work
	Commit() error

	// Rollback discards the changes. Safe to call after Commit.
	Rollback() error
}

// Store is a complete storage backend.
type Store interface {
	Categories() CategoryRepository
	Products() ProductRepository

	// Begin starts a unit of work
	Begin(ctx context.Context) (UnitOfWork, error)

	// Health checks if the backend is reachable
	Health(ctx context.Context) error

	Close() error
}

// InTx runs fn inside a unit of work, committing on success and rolling back
// on error.
func InTx(ctx context.Context, s Store, fn func(uow UnitOfWork) error) error {
	uow, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer uow.Rollback()

	if err := fn(uow); err != nil {
		return err
	}
	return uow.Commit()
}

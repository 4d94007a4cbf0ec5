package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/vietddude/dal/internal/infra/storage"
)

// UnitOfWork bundles repository calls into a single database transaction,
// ensuring atomicity (all succeed or all fail).
type UnitOfWork struct {
	tx         *sqlx.Tx
	categories *CategoryRepo
	products   *ProductRepo
}

// Begin creates a new unit of work with an active transaction.
func (db *DB) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	return db.NewUnitOfWork(ctx)
}

// NewUnitOfWork is Begin returning the concrete type.
func (db *DB) NewUnitOfWork(ctx context.Context) (*UnitOfWork, error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &UnitOfWork{
		tx:         tx,
		categories: NewCategoryRepo(tx),
		products:   NewProductRepo(tx),
	}, nil
}

func (u *UnitOfWork) Categories() storage.CategoryRepository { return u.categories }
func (u *UnitOfWork) Products() storage.ProductRepository     { return u.products }

// Commit commits the transaction.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return storage.ErrTxDone
	}
	err := u.tx.Commit()
	u.tx = nil
	return err
}

// Rollback rolls back the transaction. Safe to call multiple times.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil // Already committed or rolled back
	}
	err := u.tx.Rollback()
	u.tx = nil
	return err
}

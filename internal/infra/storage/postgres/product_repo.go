package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vietddude/dal/internal/core/domain"
	"github.com/vietddude/dal/internal/infra/storage"
)

const productColumns = "id, category_id, name, description, shortcode, quantity, created_at, updated_at"

type productRow struct {
	ID          uuid.UUID `db:"id"`
	CategoryID  uuid.UUID `db:"category_id"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	Shortcode   string    `db:"shortcode"`
	Quantity    int       `db:"quantity"`
	CreatedAt   int64     `db:"created_at"`
	UpdatedAt   int64     `db:"updated_at"`
}

func (r productRow) toDomain() *domain.Product {
	return &domain.Product{
		ID:          r.ID,
		CategoryID:  r.CategoryID,
		Name:        r.Name,
		Description: r.Description,
		Shortcode:   r.Shortcode,
		Quantity:    r.Quantity,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// ProductRepo implements storage.ProductRepository with SQL.
type ProductRepo struct {
	q sqlx.ExtContext
}

func NewProductRepo(q sqlx.ExtContext) *ProductRepo {
	return &ProductRepo{q: q}
}

// Create saves a new product. The category must exist.
func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	var n int64
	err := sqlx.GetContext(ctx, r.q, &n,
		r.q.Rebind(`SELECT COUNT(*) FROM categories WHERE id = ?`), p.CategoryID)
	if err != nil {
		return fmt.Errorf("failed to check category: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("category %s: %w", p.CategoryID, storage.ErrNotFound)
	}

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}

	_, err = r.q.ExecContext(ctx,
		r.q.Rebind(`INSERT INTO products (`+productColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`),
		p.ID, p.CategoryID, p.Name, p.Description, p.Shortcode, p.Quantity, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create product: %w", err)
	}
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	var row productRow
	err := sqlx.GetContext(ctx, r.q, &row,
		r.q.Rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return row.toDomain(), nil
}

func (r *ProductRepo) ListByCategory(
	ctx context.Context,
	categoryID uuid.UUID,
	page domain.PageRequest,
) (domain.Paginated[*domain.Product], error) {
	var total int64
	err := sqlx.GetContext(ctx, r.q, &total,
		r.q.Rebind(`SELECT COUNT(*) FROM products WHERE category_id = ?`), categoryID)
	if err != nil {
		return domain.Paginated[*domain.Product]{}, fmt.Errorf("failed to count products: %w", err)
	}

	query := `SELECT ` + productColumns + ` FROM products WHERE category_id = ? ORDER BY created_at, id`
	args := []any{categoryID}
	if page.Paged() {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.ItemsPerPage, page.Offset())
	}

	var rows []productRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(query), args...); err != nil {
		return domain.Paginated[*domain.Product]{}, fmt.Errorf("failed to list products: %w", err)
	}

	items := make([]*domain.Product, len(rows))
	for i, row := range rows {
		items[i] = row.toDomain()
	}
	return domain.NewPaginated(items, total, page), nil
}

func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) error {
	res, err := r.q.ExecContext(ctx,
		r.q.Rebind(`UPDATE products SET name = ?, description = ?, shortcode = ?, quantity = ?, updated_at = ? WHERE id = ?`),
		p.Name, p.Description, p.Shortcode, p.Quantity, time.Now().Unix(), p.ID,
	)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("failed to update product: %w", err)
	}

	updated, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *updated
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.q.ExecContext(ctx, r.q.Rebind(`DELETE FROM products WHERE id = ?`), id)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}
	return nil
}

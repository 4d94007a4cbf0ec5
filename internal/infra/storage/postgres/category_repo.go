package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vietddude/dal/internal/core/domain"
	"github.com/vietddude/dal/internal/infra/storage"
	"github.com/vietddude/dal/internal/metrics"
)

const categoryColumns = "id, name, type_id, created_at, updated_at"

type categoryRow struct {
	ID        uuid.UUID `db:"id"`
	Name      string    `db:"name"`
	TypeID    int       `db:"type_id"`
	CreatedAt int64     `db:"created_at"`
	UpdatedAt int64     `db:"updated_at"`
}

func (r categoryRow) toDomain() *domain.Category {
	return &domain.Category{
		ID:        r.ID,
		Name:      r.Name,
		Type:      domain.CategoryType(r.TypeID),
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

// CategoryRepo implements storage.CategoryRepository with SQL. q is either
// the pool or a transaction.
type CategoryRepo struct {
	q sqlx.ExtContext
}

// NewCategoryRepo creates a category repository on top of q.
func NewCategoryRepo(q sqlx.ExtContext) *CategoryRepo {
	return &CategoryRepo{q: q}
}

// Create saves a new category.
func (r *CategoryRepo) Create(ctx context.Context, c *domain.Category) error {
	prepareCategory(c)
	_, err := r.q.ExecContext(ctx,
		r.q.Rebind(`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?)`),
		c.ID, c.Name, int(c.Type), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}
	return nil
}

// CreateBatch saves multiple categories with one multi-row INSERT.
func (r *CategoryRepo) CreateBatch(ctx context.Context, cs []*domain.Category) error {
	if len(cs) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(`INSERT INTO categories (` + categoryColumns + `) VALUES `)
	args := make([]any, 0, len(cs)*5)
	for i, c := range cs {
		prepareCategory(c)
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(?, ?, ?, ?, ?)")
		args = append(args, c.ID, c.Name, int(c.Type), c.CreatedAt, c.UpdatedAt)
	}

	// Record batch size metric
	metrics.DBBatchSize.WithLabelValues("create_categories").Observe(float64(len(cs)))

	if _, err := r.q.ExecContext(ctx, r.q.Rebind(b.String()), args...); err != nil {
		return fmt.Errorf("failed to create categories: %w", err)
	}
	return nil
}

// GetByID retrieves a category by ID.
func (r *CategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	var row categoryRow
	err := sqlx.GetContext(ctx, r.q, &row,
		r.q.Rebind(`SELECT `+categoryColumns+` FROM categories WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return row.toDomain(), nil
}

// List retrieves one page of categories ordered by creation time.
func (r *CategoryRepo) List(ctx context.Context, page domain.PageRequest) (domain.Paginated[*domain.Category], error) {
	total, err := r.Count(ctx)
	if err != nil {
		return domain.Paginated[*domain.Category]{}, err
	}

	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY created_at, id`
	var args []any
	if page.Paged() {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, page.ItemsPerPage, page.Offset())
	}

	var rows []categoryRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(query), args...); err != nil {
		return domain.Paginated[*domain.Category]{}, fmt.Errorf("failed to list categories: %w", err)
	}

	items := make([]*domain.Category, len(rows))
	for i, row := range rows {
		items[i] = row.toDomain()
	}
	return domain.NewPaginated(items, total, page), nil
}

// Update overwrites name and type and reloads c from the row.
func (r *CategoryRepo) Update(ctx context.Context, c *domain.Category) error {
	res, err := r.q.ExecContext(ctx,
		r.q.Rebind(`UPDATE categories SET name = ?, type_id = ?, updated_at = ? WHERE id = ?`),
		c.Name, int(c.Type), time.Now().Unix(), c.ID,
	)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	updated, err := r.GetByID(ctx, c.ID)
	if err != nil {
		return err
	}
	*c = *updated
	return nil
}

// Rename sets the name of every listed category that exists.
func (r *CategoryRepo) Rename(ctx context.Context, ids []uuid.UUID, name string) ([]*domain.Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`UPDATE categories SET name = ?, updated_at = ? WHERE id IN (?)`,
		name, time.Now().Unix(), ids)
	if err != nil {
		return nil, err
	}
	if _, err := r.q.ExecContext(ctx, r.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to rename categories: %w", err)
	}

	query, args, err = sqlx.In(`SELECT `+categoryColumns+` FROM categories WHERE id IN (?) ORDER BY created_at, id`, ids)
	if err != nil {
		return nil, err
	}
	var rows []categoryRow
	if err := sqlx.SelectContext(ctx, r.q, &rows, r.q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to load renamed categories: %w", err)
	}

	out := make([]*domain.Category, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

// Delete removes a category and its products.
func (r *CategoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	// Products go first so the delete does not depend on ON DELETE CASCADE
	// being enforced by the driver.
	if _, err := r.q.ExecContext(ctx,
		r.q.Rebind(`DELETE FROM products WHERE category_id = ?`), id); err != nil {
		return fmt.Errorf("failed to delete products: %w", err)
	}

	res, err := r.q.ExecContext(ctx, r.q.Rebind(`DELETE FROM categories WHERE id = ?`), id)
	if err := affectedOne(res, err); err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	return nil
}

// DeleteAll removes every category and product.
func (r *CategoryRepo) DeleteAll(ctx context.Context) (int64, error) {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM products`); err != nil {
		return 0, fmt.Errorf("failed to delete products: %w", err)
	}
	res, err := r.q.ExecContext(ctx, `DELETE FROM categories`)
	if err != nil {
		return 0, fmt.Errorf("failed to delete categories: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of categories.
func (r *CategoryRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := sqlx.GetContext(ctx, r.q, &n, `SELECT COUNT(*) FROM categories`); err != nil {
		return 0, fmt.Errorf("failed to count categories: %w", err)
	}
	return n, nil
}

// ExistsByName reports whether a category with the given name exists.
func (r *CategoryRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	var n int64
	err := sqlx.GetContext(ctx, r.q, &n,
		r.q.Rebind(`SELECT COUNT(*) FROM categories WHERE name = ?`), name)
	if err != nil {
		return false, fmt.Errorf("failed to check category name: %w", err)
	}
	return n > 0, nil
}

func prepareCategory(c *domain.Category) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}
}

// affectedOne maps a statement that touched no row to storage.ErrNotFound.
func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

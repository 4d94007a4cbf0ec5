package memory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/dal/internal/core/domain"
	"github.com/vietddude/dal/internal/infra/storage"
)

// data holds entity values, never pointers handed out to callers.
type data struct {
	mu         sync.RWMutex
	categories map[uuid.UUID]domain.Category
	products   map[uuid.UUID]domain.Product
}

func newData() *data {
	return &data{
		categories: make(map[uuid.UUID]domain.Category),
		products:   make(map[uuid.UUID]domain.Product),
	}
}

func (d *data) clone() *data {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c := &data{
		categories: make(map[uuid.UUID]domain.Category, len(d.categories)),
		products:   make(map[uuid.UUID]domain.Product, len(d.products)),
	}
	for k, v := range d.categories {
		c.categories[k] = v
	}
	for k, v := range d.products {
		c.products[k] = v
	}
	return c
}

type MemoryStorage struct {
	data       *data
	categories *CategoryRepo
	products   *ProductRepo
}

var _ storage.Store = (*MemoryStorage)(nil)

func NewMemoryStorage() *MemoryStorage {
	d := newData()
	return &MemoryStorage{
		data:       d,
		categories: &CategoryRepo{data: d},
		products:   &ProductRepo{data: d},
	}
}

func (s *MemoryStorage) Categories() storage.CategoryRepository { return s.categories }
func (s *MemoryStorage) Products() storage.ProductRepository     { return s.products }
func (s *MemoryStorage) Health(ctx context.Context) error        { return nil }
func (s *MemoryStorage) Close() error                            { return nil }

// Begin starts a unit of work. Reads see a snapshot taken here plus the unit
// of work's own writes. Commit applies only the recorded changes, so writes
// made outside the unit of work in the meantime survive.
func (s *MemoryStorage) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	snap := s.data.clone()
	j := newJournal()
	return &UnitOfWork{
		store:      s,
		snap:       snap,
		journal:    j,
		categories: &CategoryRepo{data: snap, journal: j},
		products:   &ProductRepo{data: snap, journal: j},
	}, nil
}

// -----------------------------------------------------------------------------
// Unit of Work
// -----------------------------------------------------------------------------

type change[T any] struct {
	value   T
	deleted bool
	created bool
}

// journal records the writes of a unit of work. It is guarded by the
// snapshot's mutex.
type journal struct {
	cleared    bool
	categories map[uuid.UUID]change[domain.Category]
	products   map[uuid.UUID]change[domain.Product]
}

func newJournal() *journal {
	return &journal{
		categories: make(map[uuid.UUID]change[domain.Category]),
		products:   make(map[uuid.UUID]change[domain.Product]),
	}
}

func record[T any](m map[uuid.UUID]change[T], id uuid.UUID, v T, created bool) {
	if prev, ok := m[id]; ok && prev.created && !prev.deleted {
		created = true
	}
	m[id] = change[T]{value: v, created: created}
}

func (j *journal) putCategory(c domain.Category, created bool) {
	if j != nil {
		record(j.categories, c.ID, c, created)
	}
}

func (j *journal) deleteCategory(id uuid.UUID) {
	if j != nil {
		j.categories[id] = change[domain.Category]{deleted: true}
	}
}

func (j *journal) putProduct(p domain.Product, created bool) {
	if j != nil {
		record(j.products, p.ID, p, created)
	}
}

func (j *journal) deleteProduct(id uuid.UUID) {
	if j != nil {
		j.products[id] = change[domain.Product]{deleted: true}
	}
}

func (j *journal) clear() {
	if j != nil {
		j.cleared = true
		clear(j.categories)
		clear(j.products)
	}
}

// categoryExists reports whether id will name a category once the journal
// is applied to d.
func (j *journal) categoryExists(d *data, id uuid.UUID) bool {
	if ch, ok := j.categories[id]; ok {
		if ch.deleted {
			return false
		}
		if ch.created {
			return true
		}
	}
	if j.cleared {
		return false
	}
	_, ok := d.categories[id]
	return ok
}

// apply writes the journal into d. Updates of rows removed from d meanwhile
// are dropped. d.mu must be held.
func (j *journal) apply(d *data) error {
	for id, ch := range j.products {
		if ch.created && !ch.deleted && !j.categoryExists(d, ch.value.CategoryID) {
			return fmt.Errorf("product %s: category %s: %w", id, ch.value.CategoryID, storage.ErrNotFound)
		}
	}

	if j.cleared {
		clear(d.categories)
		clear(d.products)
	}
	for id, ch := range j.categories {
		_, live := d.categories[id]
		switch {
		case ch.deleted:
			delete(d.categories, id)
			for pid, p := range d.products {
				if p.CategoryID == id {
					delete(d.products, pid)
				}
			}
		case ch.created || live:
			d.categories[id] = ch.value
		}
	}
	for id, ch := range j.products {
		_, live := d.products[id]
		_, parent := d.categories[ch.value.CategoryID]
		switch {
		case ch.deleted:
			delete(d.products, id)
		case (ch.created || live) && parent:
			d.products[id] = ch.value
		}
	}
	return nil
}

type UnitOfWork struct {
	store      *MemoryStorage
	snap       *data
	journal    *journal
	done       bool
	categories *CategoryRepo
	products   *ProductRepo
}

func (u *UnitOfWork) Categories() storage.CategoryRepository { return u.categories }
func (u *UnitOfWork) Products() storage.ProductRepository     { return u.products }

// Commit applies the unit of work atomically. A product whose category was
// deleted outside the unit of work fails the whole commit with ErrNotFound.
func (u *UnitOfWork) Commit() error {
	if u.done {
		return storage.ErrTxDone
	}
	u.done = true

	u.snap.mu.Lock()
	defer u.snap.mu.Unlock()
	target := u.store.data
	target.mu.Lock()
	defer target.mu.Unlock()
	return u.journal.apply(target)
}

func (u *UnitOfWork) Rollback() error {
	u.done = true
	return nil
}

// -----------------------------------------------------------------------------
// Category Repository
// -----------------------------------------------------------------------------

type CategoryRepo struct {
	data    *data
	journal *journal
}

func (r *CategoryRepo) Create(ctx context.Context, c *domain.Category) error {
	prepareCategory(c)
	r.data.mu.Lock()
	defer r.data.mu.Unlock()
	r.data.categories[c.ID] = *c
	r.journal.putCategory(*c, true)
	return nil
}

func (r *CategoryRepo) CreateBatch(ctx context.Context, cs []*domain.Category) error {
	r.data.mu.Lock()
	defer r.data.mu.Unlock()
	for _, c := range cs {
		prepareCategory(c)
		r.data.categories[c.ID] = *c
		r.journal.putCategory(*c, true)
	}
	return nil
}

func (r *CategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Category, error) {
	r.data.mu.RLock()
	defer r.data.mu.RUnlock()
	c, ok := r.data.categories[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &c, nil
}

func (r *CategoryRepo) List(ctx context.Context, page domain.PageRequest) (domain.Paginated[*domain.Category], error) {
	r.data.mu.RLock()
	all := make([]*domain.Category, 0, len(r.data.categories))
	for _, c := range r.data.categories {
		c := c
		all = append(all, &c)
	}
	r.data.mu.RUnlock()

	slices.SortFunc(all, func(a, b *domain.Category) int {
		return cmp.Or(cmp.Compare(a.CreatedAt, b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return domain.Paginate(all, page), nil
}

func (r *CategoryRepo) Update(ctx context.Context, c *domain.Category) error {
	r.data.mu.Lock()
	defer r.data.mu.Unlock()
	cur, ok := r.data.categories[c.ID]
	if !ok {
		return storage.ErrNotFound
	}
	cur.Name = c.Name
	cur.Type = c.Type
	cur.UpdatedAt = time.Now().Unix()
	r.data.categories[c.ID] = cur
	r.journal.putCategory(cur, false)
	*c = cur
	return nil
}

func (r *CategoryRepo) Rename(ctx context.Context, ids []uuid.UUID, name string) ([]*domain.Category, error) {
	r.data.mu.Lock()
	defer r.data.mu.Unlock()
	now := time.Now().Unix()
	var updated []*domain.Category
	for _, id := range ids {
		cur, ok := r.data.categories[id]
		if !ok {
			continue
		}
		cur.Name = name
		cur.UpdatedAt = now
		r.data.categories[id] = cur
		r.journal.putCategory(cur, false)
		updated = append(updated, &cur)
	}
	return updated, nil
}

func (r *CategoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.data.mu.Lock()
	defer r.data.mu.Unlock()
	if _, ok := r.data.categories[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.data.categories, id)
	r.journal.deleteCategory(id)
	for pid, p := range r.data.products {
		if p.CategoryID == id {
			delete(r.data.products, pid)
			r.journal.deleteProduct(pid)
		}
	}
	return nil
}

func (r *CategoryRepo) DeleteAll(ctx context.Context) (int64, error) {
	r.data.mu.Lock()
	defer r.data.mu.Unlock()
	n := int64(len(r.data.categories))
	clear(r.data.categories)
	clear(r.data.products)
	r.journal.clear()
	return n, nil
}

func (r *CategoryRepo) Count(ctx context.Context) (int64, error) {
	r.data.mu.RLock()
	defer r.data.mu.RUnlock()
	return int64(len(r.data.categories)), nil
}

func (r *CategoryRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	r.data.mu.RLock()
	defer r.data.mu.RUnlock()
	for _, c := range r.data.categories {
		if c.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// -----------------------------------------------------------------------------
// Product Repository
// -----------------------------------------------------------------------------

type ProductRepo struct {
	data    *data
	journal *journal
}

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	r.data.mu.Lock()
	defer r.data.mu.Unlock()
	if _, ok := r.data.categories[p.CategoryID]; !ok {
		return fmt.Errorf("category %s: %w", p.CategoryID, storage.ErrNotFound)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.CreatedAt == 0 {
		p.CreatedAt = time.Now().Unix()
	}
	r.data.products[p.ID] = *p
	r.journal.putProduct(*p, true)
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	r.data.mu.RLock()
	defer r.data.mu.RUnlock()
	p, ok := r.data.products[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &p, nil
}

func (r *ProductRepo) ListByCategory(
	ctx context.Context,
	categoryID uuid.UUID,
	page domain.PageRequest,
) (domain.Paginated[*domain.Product], error) {
	r.data.mu.RLock()
	var all []*domain.Product
	for _, p := range r.data.products {
		if p.CategoryID == categoryID {
			p := p
			all = append(all, &p)
		}
	}
	r.data.mu.RUnlock()

	slices.SortFunc(all, func(a, b *domain.Product) int {
		return cmp.Or(cmp.Compare(a.CreatedAt, b.CreatedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})
	return domain.Paginate(all, page), nil
}

func (r *ProductRepo) Update(ctx context.Context, p *domain.Product) error {
	r.data.mu.Lock()
	defer r.data.mu.Unlock()
	cur, ok := r.data.products[p.ID]
	if !ok {
		return storage.ErrNotFound
	}
	cur.Name = p.Name
	cur.Description = p.Description
	cur.Shortcode = p.Shortcode
	cur.Quantity = p.Quantity
	cur.UpdatedAt = time.Now().Unix()
	r.data.products[p.ID] = cur
	r.journal.putProduct(cur, false)
	*p = cur
	return nil
}

func (r *ProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.data.mu.Lock()
	defer r.data.mu.Unlock()
	if _, ok := r.data.products[id]; !ok {
		return storage.ErrNotFound
	}
	delete(r.data.products, id)
	r.journal.deleteProduct(id)
	return nil
}

func prepareCategory(c *domain.Category) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CreatedAt == 0 {
		c.CreatedAt = time.Now().Unix()
	}
}

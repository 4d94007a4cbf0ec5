package cached

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/vietddude/dal/internal/core/domain"
	"github.com/vietddude/dal/internal/infra/storage"
)

// Store serves categories through a CategoryRepo and passes everything else
// to the wrapped store.
type Store struct {
	storage.Store
	categories *CategoryRepo
}

var _ storage.Store = (*Store)(nil)

func NewStore(base storage.Store, categories *CategoryRepo) *Store {
	return &Store{Store: base, categories: categories}
}

func (s *Store) Categories() storage.CategoryRepository { return s.categories }

// Begin tracks the categories a unit of work changes and invalidates them
// once it commits.
func (s *Store) Begin(ctx context.Context) (storage.UnitOfWork, error) {
	uow, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	u := &unitOfWork{UnitOfWork: uow, cache: s.categories}
	u.repo = &trackingRepo{CategoryRepository: uow.Categories(), uow: u}
	return u, nil
}

type unitOfWork struct {
	storage.UnitOfWork
	cache *CategoryRepo
	repo  *trackingRepo

	mu      sync.Mutex
	touched []uuid.UUID
	all     bool
}

func (u *unitOfWork) Categories() storage.CategoryRepository { return u.repo }

func (u *unitOfWork) touch(ids ...uuid.UUID) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.touched = append(u.touched, ids...)
}

func (u *unitOfWork) Commit() error {
	if err := u.UnitOfWork.Commit(); err != nil {
		return err
	}

	u.mu.Lock()
	touched, all := u.touched, u.all
	u.touched, u.all = nil, false
	u.mu.Unlock()

	// Commit carries no context.
	u.cache.Invalidate(context.Background(), touched...)
	if all {
		u.cache.InvalidateAll()
	}
	return nil
}

type trackingRepo struct {
	storage.CategoryRepository
	uow *unitOfWork
}

func (r *trackingRepo) Update(ctx context.Context, c *domain.Category) error {
	if err := r.CategoryRepository.Update(ctx, c); err != nil {
		return err
	}
	r.uow.touch(c.ID)
	return nil
}

func (r *trackingRepo) Rename(ctx context.Context, ids []uuid.UUID, name string) ([]*domain.Category, error) {
	renamed, err := r.CategoryRepository.Rename(ctx, ids, name)
	if err != nil {
		return nil, err
	}
	r.uow.touch(ids...)
	return renamed, nil
}

func (r *trackingRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.CategoryRepository.Delete(ctx, id); err != nil {
		return err
	}
	r.uow.touch(id)
	return nil
}

func (r *trackingRepo) DeleteAll(ctx context.Context) (int64, error) {
	all, err := r.CategoryRepository.List(ctx, domain.All())
	if err != nil {
		return 0, err
	}
	n, err := r.CategoryRepository.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}
	ids := make([]uuid.UUID, 0, len(all.Items))
	for _, c := range all.Items {
		ids = append(ids, c.ID)
	}
	r.uow.touch(ids...)

	r.uow.mu.Lock()
	r.uow.all = true
	r.uow.mu.Unlock()
	return n, nil
}

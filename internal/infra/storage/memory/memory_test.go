package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/vietddude/dal/internal/core/domain"
	"github.com/vietddude/dal/internal/infra/storage"
	"github.com/vietddude/dal/internal/infra/storage/storagetest"
)

func TestMemoryStorage(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return NewMemoryStorage()
	})
}

func TestReturnedEntitiesAreCopies(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	c := &domain.Category{Name: "original", Type: domain.CategoryTypeGeneral}
	if err := s.Categories().Create(ctx, c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	c.Name = "mutated by caller"

	got, _ := s.Categories().GetByID(ctx, c.ID)
	if got.Name != "original" {
		t.Fatalf("stored entity aliased caller's value: %q", got.Name)
	}
	got.Name = "mutated again"
	again, _ := s.Categories().GetByID(ctx, c.ID)
	if again.Name != "original" {
		t.Fatalf("stored entity aliased returned value: %q", again.Name)
	}
}

func TestUnitOfWorkMergesWithOutsideWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	kept := &domain.Category{Name: "kept", Type: domain.CategoryTypeGeneral}
	doomed := &domain.Category{Name: "doomed", Type: domain.CategoryTypeGeneral}
	renamed := &domain.Category{Name: "renamed", Type: domain.CategoryTypeGeneral}
	for _, c := range []*domain.Category{kept, doomed, renamed} {
		if err := s.Categories().Create(ctx, c); err != nil {
			t.Fatalf("Create(%s) error = %v", c.Name, err)
		}
	}

	uow, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	if err := uow.Categories().Delete(ctx, doomed.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := uow.Categories().Rename(ctx, []uuid.UUID{renamed.ID}, "renamed-inside"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}

	// Written while the unit of work is open.
	p := &domain.Product{CategoryID: kept.ID, Name: "outside"}
	if err := s.Products().Create(ctx, p); err != nil {
		t.Fatalf("product Create() error = %v", err)
	}
	late := &domain.Product{CategoryID: doomed.ID, Name: "late"}
	if err := s.Products().Create(ctx, late); err != nil {
		t.Fatalf("product Create() error = %v", err)
	}
	if err := s.Categories().Delete(ctx, renamed.ID); err != nil {
		t.Fatalf("outside Delete() error = %v", err)
	}

	if err := uow.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if _, err := s.Products().GetByID(ctx, p.ID); err != nil {
		t.Fatalf("outside product lost: %v", err)
	}
	if _, err := s.Products().GetByID(ctx, late.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("product of deleted category survived: %v", err)
	}
	if _, err := s.Categories().GetByID(ctx, renamed.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("rename resurrected a deleted category: %v", err)
	}
	if n, _ := s.Categories().Count(ctx); n != 1 {
		t.Fatalf("Count() = %d, want 1", n)
	}
}

func TestUnitOfWorkCommitFailsForVanishedCategory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	c := &domain.Category{Name: "parent", Type: domain.CategoryTypeGeneral}
	if err := s.Categories().Create(ctx, c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	uow, _ := s.Begin(ctx)
	other := &domain.Category{Name: "other", Type: domain.CategoryTypeGeneral}
	if err := uow.Categories().Create(ctx, other); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := uow.Products().Create(ctx, &domain.Product{CategoryID: c.ID, Name: "child"}); err != nil {
		t.Fatalf("product Create() error = %v", err)
	}
	if err := s.Categories().Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}

	if err := uow.Commit(); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Commit() = %v, want ErrNotFound", err)
	}
	if _, err := s.Categories().GetByID(ctx, other.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("failed commit applied part of its writes: %v", err)
	}
}

func TestUnitOfWorkDeleteAllKeepsLaterWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()
	if err := s.Categories().Create(ctx, &domain.Category{Name: "old", Type: domain.CategoryTypeGeneral}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	uow, _ := s.Begin(ctx)
	if _, err := uow.Categories().DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll() error = %v", err)
	}
	fresh := &domain.Category{Name: "fresh", Type: domain.CategoryTypeGeneral}
	if err := uow.Categories().Create(ctx, fresh); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := uow.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if n, _ := s.Categories().Count(ctx); n != 1 {
		t.Fatalf("Count() = %d, want 1", n)
	}
	if _, err := s.Categories().GetByID(ctx, fresh.ID); err != nil {
		t.Fatalf("GetByID(fresh) error = %v", err)
	}
}

// Package storagetest holds behaviour tests every storage.Store must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/dal/internal/core/domain"
	"github.com/vietddude/dal/internal/infra/storage"
)

// Run executes the suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s storage.Store)
	}{
		{"CategoryCRUD", testCategoryCRUD},
		{"CategoryList", testCategoryList},
		{"CategoryBatchAndRename", testCategoryBatchAndRename},
		{"DeleteAll", testDeleteAll},
		{"Products", testProducts},
		{"DeleteCascadesToProducts", testDeleteCascades},
		{"UnitOfWorkCommit", testUnitOfWorkCommit},
		{"UnitOfWorkRollback", testUnitOfWorkRollback},
		{"UnitOfWorkKeepsOutsideWrites", testUnitOfWorkKeepsOutsideWrites},
		{"InTx", testInTx},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			tt.fn(t, s)
		})
	}
}

func seedCategories(t *testing.T, s storage.Store, n int) []*domain.Category {
	t.Helper()
	ctx := context.Background()
	out := make([]*domain.Category, 0, n)
	for i := 0; i < n; i++ {
		c := &domain.Category{
			Name:      fmt.Sprintf("category-%02d", i),
			Type:      domain.CategoryTypeGeneral,
			CreatedAt: int64(1711775556 + i),
		}
		if err := s.Categories().Create(ctx, c); err != nil {
			t.Fatalf("Create(%s) error = %v", c.Name, err)
		}
		out = append(out, c)
	}
	return out
}

func testCategoryCRUD(t *testing.T, s storage.Store) {
	ctx := context.Background()
	repo := s.Categories()

	c := &domain.Category{Name: "Beverages", Type: domain.CategoryTypeGrocery}
	if err := repo.Create(ctx, c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if c.ID == uuid.Nil || c.CreatedAt == 0 {
		t.Fatalf("Create() did not fill ID/CreatedAt: %+v", c)
	}

	got, err := repo.GetByID(ctx, c.ID)
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.Name != "Beverages" || got.Type != domain.CategoryTypeGrocery || got.CreatedAt != c.CreatedAt {
		t.Fatalf("GetByID() = %+v, want %+v", got, c)
	}

	exists, err := repo.ExistsByName(ctx, "Beverages")
	if err != nil || !exists {
		t.Fatalf("ExistsByName(Beverages) = %v, %v", exists, err)
	}
	if exists, _ := repo.ExistsByName(ctx, "Tools"); exists {
		t.Fatal("ExistsByName(Tools) = true")
	}

	upd := &domain.Category{ID: c.ID, Name: "Drinks", Type: domain.CategoryTypeGeneral}
	if err := repo.Update(ctx, upd); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, _ = repo.GetByID(ctx, c.ID)
	if got.Name != "Drinks" || got.Type != domain.CategoryTypeGeneral || got.UpdatedAt == 0 {
		t.Fatalf("after Update = %+v", got)
	}

	if err := repo.Update(ctx, &domain.Category{ID: uuid.New(), Name: "x"}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Update(unknown) = %v, want ErrNotFound", err)
	}

	if err := repo.Delete(ctx, c.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.GetByID(ctx, c.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetByID after Delete = %v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, c.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("second Delete = %v, want ErrNotFound", err)
	}
}

func testCategoryList(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seeded := seedCategories(t, s, 7)

	page, err := s.Categories().List(ctx, domain.PageRequest{PageIndex: 2, ItemsPerPage: 3, RangeOfPages: 1})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("page 2 has %d items, want 3", len(page.Items))
	}
	for i, c := range page.Items {
		if c.ID != seeded[3+i].ID {
			t.Errorf("item %d = %s, want %s", i, c.Name, seeded[3+i].Name)
		}
	}
	if page.Paging.TotalItems != 7 || page.Paging.TotalPages() != 3 {
		t.Errorf("paging = %+v, want 7 items over 3 pages", page.Paging)
	}
	if !page.Paging.HasNextPage() || !page.Paging.HasPreviousPage() {
		t.Errorf("page 2 of 3 must have next and previous")
	}

	last, _ := s.Categories().List(ctx, domain.PageRequest{PageIndex: 3, ItemsPerPage: 3})
	if len(last.Items) != 1 || last.Paging.PageIndexItems() != 1 {
		t.Errorf("last page = %d items, PageIndexItems %d", len(last.Items), last.Paging.PageIndexItems())
	}

	all, _ := s.Categories().List(ctx, domain.All())
	if len(all.Items) != 7 || all.Paging.TotalPages() != 1 {
		t.Errorf("unpaged list = %d items over %d pages", len(all.Items), all.Paging.TotalPages())
	}

	n, err := s.Categories().Count(ctx)
	if err != nil || n != 7 {
		t.Errorf("Count() = %d, %v", n, err)
	}
}

func testCategoryBatchAndRename(t *testing.T, s storage.Store) {
	ctx := context.Background()
	batch := []*domain.Category{
		{Name: "a", Type: domain.CategoryTypeGeneral},
		{Name: "b", Type: domain.CategoryTypeClothing},
		{Name: "c", Type: domain.CategoryTypeElectronics},
	}
	if err := s.Categories().CreateBatch(ctx, batch); err != nil {
		t.Fatalf("CreateBatch() error = %v", err)
	}
	for _, c := range batch {
		if c.ID == uuid.Nil {
			t.Fatal("CreateBatch() left an ID unset")
		}
	}

	ids := []uuid.UUID{batch[0].ID, batch[2].ID, uuid.New()}
	renamed, err := s.Categories().Rename(ctx, ids, "renamed")
	if err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	if len(renamed) != 2 {
		t.Fatalf("Rename() returned %d categories, want 2", len(renamed))
	}
	for _, c := range renamed {
		if c.Name != "renamed" {
			t.Errorf("renamed category %s has name %q", c.ID, c.Name)
		}
	}
	b, _ := s.Categories().GetByID(ctx, batch[1].ID)
	if b.Name != "b" {
		t.Errorf("untouched category renamed to %q", b.Name)
	}
}

func testDeleteAll(t *testing.T, s storage.Store) {
	ctx := context.Background()
	seedCategories(t, s, 4)

	n, err := s.Categories().DeleteAll(ctx)
	if err != nil || n != 4 {
		t.Fatalf("DeleteAll() = %d, %v; want 4", n, err)
	}
	if n, _ := s.Categories().Count(ctx); n != 0 {
		t.Fatalf("Count after DeleteAll = %d", n)
	}
}

func testProducts(t *testing.T, s storage.Store) {
	ctx := context.Background()
	cats := seedCategories(t, s, 2)

	orphan := &domain.Product{CategoryID: uuid.New(), Name: "orphan"}
	if err := s.Products().Create(ctx, orphan); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Create with unknown category = %v, want ErrNotFound", err)
	}

	for i := 0; i < 5; i++ {
		p := &domain.Product{
			CategoryID:  cats[i%2].ID,
			Name:        fmt.Sprintf("product-%d", i),
			Description: "desc",
			Shortcode:   fmt.Sprintf("P%03d", i),
			Quantity:    i * 10,
			CreatedAt:   int64(1711775556 + i),
		}
		if err := s.Products().Create(ctx, p); err != nil {
			t.Fatalf("Create(%s) error = %v", p.Name, err)
		}
	}

	page, err := s.Products().ListByCategory(ctx, cats[0].ID, domain.PageRequest{PageIndex: 1, ItemsPerPage: 2})
	if err != nil {
		t.Fatalf("ListByCategory() error = %v", err)
	}
	if page.Paging.TotalItems != 3 || len(page.Items) != 2 {
		t.Fatalf("ListByCategory() = %d items of %d, want 2 of 3", len(page.Items), page.Paging.TotalItems)
	}
	if page.Items[0].Name != "product-0" || page.Items[1].Name != "product-2" {
		t.Errorf("order = %s, %s", page.Items[0].Name, page.Items[1].Name)
	}

	p := page.Items[0]
	p.Quantity = 99
	if err := s.Products().Update(ctx, p); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
	got, err := s.Products().GetByID(ctx, p.ID)
	if err != nil || got.Quantity != 99 || got.Shortcode != "P000" {
		t.Fatalf("GetByID() = %+v, %v", got, err)
	}

	if err := s.Products().Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Products().GetByID(ctx, p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("GetByID after Delete = %v", err)
	}
}

func testDeleteCascades(t *testing.T, s storage.Store) {
	ctx := context.Background()
	cat := seedCategories(t, s, 1)[0]
	p := &domain.Product{CategoryID: cat.ID, Name: "widget"}
	if err := s.Products().Create(ctx, p); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	if err := s.Categories().Delete(ctx, cat.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Products().GetByID(ctx, p.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("product survived category delete: %v", err)
	}
}

func testUnitOfWorkCommit(t *testing.T, s storage.Store) {
	ctx := context.Background()
	uow, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	c := &domain.Category{Name: "in-tx", Type: domain.CategoryTypeGeneral}
	if err := uow.Categories().Create(ctx, c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := uow.Products().Create(ctx, &domain.Product{CategoryID: c.ID, Name: "p"}); err != nil {
		t.Fatalf("product Create() error = %v", err)
	}
	if err := uow.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if err := uow.Rollback(); err != nil {
		t.Fatalf("Rollback after Commit = %v, want nil", err)
	}
	if err := uow.Commit(); !errors.Is(err, storage.ErrTxDone) {
		t.Fatalf("second Commit = %v, want ErrTxDone", err)
	}

	if _, err := s.Categories().GetByID(ctx, c.ID); err != nil {
		t.Fatalf("committed category missing: %v", err)
	}
	page, _ := s.Products().ListByCategory(ctx, c.ID, domain.All())
	if len(page.Items) != 1 {
		t.Fatalf("committed products = %d, want 1", len(page.Items))
	}
}

// testUnitOfWorkKeepsOutsideWrites commits a unit of work while another
// writer uses the store directly. Stores with a single connection block the
// outside write until the commit, so it runs on its own goroutine.
func testUnitOfWorkKeepsOutsideWrites(t *testing.T, s storage.Store) {
	ctx := context.Background()
	uow, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}

	outside := &domain.Category{Name: "outside", Type: domain.CategoryTypeGeneral}
	done := make(chan error, 1)
	go func() { done <- s.Categories().Create(ctx, outside) }()

	var outsideErr error
	finished := false
	select {
	case outsideErr = <-done:
		finished = true
	case <-time.After(200 * time.Millisecond):
	}

	inside := &domain.Category{Name: "inside", Type: domain.CategoryTypeGeneral}
	if err := uow.Categories().Create(ctx, inside); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := uow.Commit(); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
	if !finished {
		outsideErr = <-done
	}
	if outsideErr != nil {
		t.Fatalf("outside Create() error = %v", outsideErr)
	}

	for _, c := range []*domain.Category{outside, inside} {
		if _, err := s.Categories().GetByID(ctx, c.ID); err != nil {
			t.Fatalf("GetByID(%s) error = %v", c.Name, err)
		}
	}
	if n, _ := s.Categories().Count(ctx); n != 2 {
		t.Fatalf("Count() = %d, want 2", n)
	}
}

func testUnitOfWorkRollback(t *testing.T, s storage.Store) {
	ctx := context.Background()
	uow, err := s.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	c := &domain.Category{Name: "discarded", Type: domain.CategoryTypeGeneral}
	if err := uow.Categories().Create(ctx, c); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := uow.Rollback(); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}
	if err := uow.Rollback(); err != nil {
		t.Fatalf("second Rollback() error = %v", err)
	}

	if _, err := s.Categories().GetByID(ctx, c.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("rolled back category visible: %v", err)
	}
}

func testInTx(t *testing.T, s storage.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := storage.InTx(ctx, s, func(uow storage.UnitOfWork) error {
		if err := uow.Categories().Create(ctx, &domain.Category{Name: "x", Type: domain.CategoryTypeGeneral}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("InTx() = %v, want boom", err)
	}
	if n, _ := s.Categories().Count(ctx); n != 0 {
		t.Fatalf("failed InTx left %d categories", n)
	}

	err = storage.InTx(ctx, s, func(uow storage.UnitOfWork) error {
		return uow.Categories().CreateBatch(ctx, []*domain.Category{
			{Name: "y", Type: domain.CategoryTypeGeneral},
			{Name: "z", Type: domain.CategoryTypeGeneral},
		})
	})
	if err != nil {
		t.Fatalf("InTx() error = %v", err)
	}
	if n, _ := s.Categories().Count(ctx); n != 2 {
		t.Fatalf("Count after InTx = %d, want 2", n)
	}
}

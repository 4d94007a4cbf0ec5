package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/vietddude/dal/internal/core/domain"
	"github.com/vietddude/dal/internal/infra/storage"
)

func idParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

func includeProducts(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("include_products"))
	return v
}

// withProducts converts c and, if asked, attaches all of its products.
func (a *API) withProducts(ctx context.Context, c *domain.Category, include bool) (CategoryResponse, error) {
	resp := toCategoryResponse(c)
	if !include {
		return resp, nil
	}
	products, err := a.store.Products().ListByCategory(ctx, c.ID, domain.All())
	if err != nil {
		return resp, err
	}
	resp.Products = make([]ProductResponse, len(products.Items))
	for i, p := range products.Items {
		resp.Products[i] = toProductResponse(p)
	}
	return resp, nil
}

// listCategories handles GET /api/categories.
//
// Query: page, per_page, range, include_products. Without page and per_page
// every category is returned as a single page.
func (a *API) listCategories(w http.ResponseWriter, r *http.Request) {
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := a.store.Categories().List(r.Context(), page)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	include := includeProducts(r)
	resp := toPageResponse(result, toCategoryResponse)
	if include {
		for i, c := range result.Items {
			if resp.Items[i], err = a.withProducts(r.Context(), c, true); err != nil {
				writeStoreError(w, r, err)
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// getCategory handles GET /api/categories/{id}.
func (a *API) getCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}

	c, err := a.store.Categories().GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	resp, err := a.withProducts(r.Context(), c, includeProducts(r))
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// createCategory handles POST /api/categories. Names are unique.
func (a *API) createCategory(w http.ResponseWriter, r *http.Request) {
	var req CategoryRequest
	if !decode(w, r, &req) {
		return
	}

	exists, err := a.store.Categories().ExistsByName(r.Context(), req.Name)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	if exists {
		writeError(w, http.StatusConflict, fmt.Sprintf("category %q already exists", req.Name))
		return
	}

	c := req.category()
	if err := a.store.Categories().Create(r.Context(), c); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategoryResponse(c))
}

// createCategories handles POST /api/categories/range. The batch is stored in
// one unit of work: either every category is created or none.
func (a *API) createCategories(w http.ResponseWriter, r *http.Request) {
	var req CategoriesRequest
	if !decode(w, r, &req) {
		return
	}

	seen := make(map[string]bool, len(req.Categories))
	batch := make([]*domain.Category, 0, len(req.Categories))
	for _, cr := range req.Categories {
		if seen[cr.Name] {
			writeError(w, http.StatusConflict, fmt.Sprintf("category %q listed twice", cr.Name))
			return
		}
		seen[cr.Name] = true
		batch = append(batch, cr.category())
	}

	var conflict string
	err := storage.InTx(r.Context(), a.store, func(uow storage.UnitOfWork) error {
		for _, c := range batch {
			exists, err := uow.Categories().ExistsByName(r.Context(), c.Name)
			if err != nil {
				return err
			}
			if exists {
				conflict = c.Name
				return errConflict
			}
		}
		return uow.Categories().CreateBatch(r.Context(), batch)
	})
	if conflict != "" {
		writeError(w, http.StatusConflict, fmt.Sprintf("category %q already exists", conflict))
		return
	}
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	resp := make([]CategoryResponse, len(batch))
	for i, c := range batch {
		resp[i] = toCategoryResponse(c)
	}
	writeJSON(w, http.StatusCreated, resp)
}

// updateCategory handles PUT /api/categories/{id}.
func (a *API) updateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req CategoryRequest
	if !decode(w, r, &req) {
		return
	}

	c := req.category()
	c.ID = id
	if err := a.store.Categories().Update(r.Context(), c); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategoryResponse(c))
}

// renameCategories handles PUT /api/categories/range. Unknown ids are
// skipped; the response lists the categories that were renamed.
func (a *API) renameCategories(w http.ResponseWriter, r *http.Request) {
	var req RenameCategoriesRequest
	if !decode(w, r, &req) {
		return
	}

	renamed, err := a.store.Categories().Rename(r.Context(), parseIDs(req.IDs), req.Name)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}

	resp := make([]CategoryResponse, len(renamed))
	for i, c := range renamed {
		resp[i] = toCategoryResponse(c)
	}
	writeJSON(w, http.StatusOK, resp)
}

// deleteCategory handles DELETE /api/categories/{id}. Products go with it.
func (a *API) deleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := a.store.Categories().Delete(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// deleteAllCategories handles DELETE /api/categories/range.
func (a *API) deleteAllCategories(w http.ResponseWriter, r *http.Request) {
	n, err := a.store.Categories().DeleteAll(r.Context())
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	a.logger.Info("Removed all categories", "count", n)
	writeJSON(w, http.StatusOK, RemovedResponse{Removed: n})
}

// listCategoryProducts handles GET /api/categories/{id}/products.
func (a *API) listCategoryProducts(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	page, err := pageRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := a.store.Categories().GetByID(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	result, err := a.store.Products().ListByCategory(r.Context(), id, page)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPageResponse(result, toProductResponse))
}

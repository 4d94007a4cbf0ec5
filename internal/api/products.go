package api

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/vietddude/dal/internal/core/domain"
)

// createProduct handles POST /api/products. 404 if the category is unknown.
func (a *API) createProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decode(w, r, &req) {
		return
	}

	p := &domain.Product{
		CategoryID:  uuid.MustParse(req.CategoryID),
		Name:        req.Name,
		Description: req.Description,
		Shortcode:   req.Shortcode,
		Quantity:    req.Quantity,
	}
	if err := a.store.Products().Create(r.Context(), p); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductResponse(p))
}

func (a *API) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	p, err := a.store.Products().GetByID(r.Context(), id)
	if err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (a *API) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	var req UpdateProductRequest
	if !decode(w, r, &req) {
		return
	}

	p := &domain.Product{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Shortcode:   req.Shortcode,
		Quantity:    req.Quantity,
	}
	if err := a.store.Products().Update(r.Context(), p); err != nil {
		writeStoreError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductResponse(p))
}

func (a *API) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam(w, r)
	if !ok {
		return
	}
	if err := a.store.Products().Delete(r.Context(), id); err != nil {
		writeStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

package api

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"

	"github.com/vietddude/dal/internal/core/domain"
)

const (
	maxBatch   = 500
	maxPerPage = 1000
	// maxPage keeps (page-1)*per_page inside int64.
	maxPage = math.MaxInt64 / maxPerPage
)

// -----------------------------------------------------------------------------
// Requests
// -----------------------------------------------------------------------------

var validCategoryType = validation.By(func(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	if _, err := domain.ParseCategoryType(s); err != nil {
		return errors.New("must be one of GENERAL, GROCERY, ELECTRONICS, CLOTHING")
	}
	return nil
})

type CategoryRequest struct {
	Name string `json:"name"`
	// Type defaults to GENERAL.
	Type string `json:"type"`
}

func (r *CategoryRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Type, validCategoryType),
	)
}

func (r *CategoryRequest) category() *domain.Category {
	t := domain.CategoryTypeGeneral
	if r.Type != "" {
		t, _ = domain.ParseCategoryType(r.Type)
	}
	return &domain.Category{Name: r.Name, Type: t}
}

type CategoriesRequest struct {
	Categories []CategoryRequest `json:"categories"`
}

func (r *CategoriesRequest) Validate() error {
	err := validation.ValidateStruct(r,
		validation.Field(&r.Categories, validation.Required, validation.Length(1, maxBatch)),
	)
	if err != nil {
		return err
	}
	for i := range r.Categories {
		if err := r.Categories[i].Validate(); err != nil {
			return validation.Errors{fmt.Sprintf("categories[%d]", i): err}
		}
	}
	return nil
}

type RenameCategoriesRequest struct {
	IDs  []string `json:"ids"`
	Name string   `json:"name"`
}

func (r *RenameCategoriesRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.IDs, validation.Required, validation.Length(1, maxBatch), validation.Each(is.UUID)),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
	)
}

type ProductRequest struct {
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Shortcode   string `json:"shortcode"`
	Quantity    int    `json:"quantity"`
}

func (r *ProductRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.CategoryID, validation.Required, is.UUID),
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Shortcode, validation.Length(0, 32)),
		validation.Field(&r.Quantity, validation.Min(0)),
	)
}

type UpdateProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Shortcode   string `json:"shortcode"`
	Quantity    int    `json:"quantity"`
}

func (r *UpdateProductRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 200)),
		validation.Field(&r.Shortcode, validation.Length(0, 32)),
		validation.Field(&r.Quantity, validation.Min(0)),
	)
}

// pageRequest reads page, per_page and range. Missing page or per_page
// selects everything. per_page is capped at maxPerPage.
func pageRequest(r *http.Request) (domain.PageRequest, error) {
	var req domain.PageRequest
	q := r.URL.Query()
	for _, p := range []struct {
		name  string
		dst   *int64
		limit int64
	}{
		{"page", &req.PageIndex, maxPage},
		{"per_page", &req.ItemsPerPage, maxPerPage},
		{"range", &req.RangeOfPages, maxPage},
	} {
		s := q.Get(p.name)
		if s == "" {
			continue
		}
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil || v < 0 || v > p.limit {
			return req, errors.New("invalid " + p.name)
		}
		*p.dst = v
	}
	return req, nil
}

func parseIDs(ids []string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(ids))
	for _, s := range ids {
		if id, err := uuid.Parse(s); err == nil {
			out = append(out, id)
		}
	}
	return out
}

// -----------------------------------------------------------------------------
// Responses
// -----------------------------------------------------------------------------

type CategoryResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Type      string            `json:"type"`
	CreatedAt int64             `json:"created_at"`
	UpdatedAt int64             `json:"updated_at,omitempty"`
	Products  []ProductResponse `json:"products,omitempty"`
}

func toCategoryResponse(c *domain.Category) CategoryResponse {
	return CategoryResponse{
		ID:        c.ID.String(),
		Name:      c.Name,
		Type:      c.Type.String(),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

type ProductResponse struct {
	ID          string `json:"id"`
	CategoryID  string `json:"category_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Shortcode   string `json:"shortcode,omitempty"`
	Quantity    int    `json:"quantity"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at,omitempty"`
}

func toProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID.String(),
		CategoryID:  p.CategoryID.String(),
		Name:        p.Name,
		Description: p.Description,
		Shortcode:   p.Shortcode,
		Quantity:    p.Quantity,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type PagingResponse struct {
	PageIndex       int64 `json:"page_index"`
	ItemsPerPage    int64 `json:"items_per_page"`
	TotalItems      int64 `json:"total_items"`
	TotalPages      int64 `json:"total_pages"`
	PageIndexItems  int64 `json:"page_index_items"`
	StartIndex      int64 `json:"start_index"`
	FinishIndex     int64 `json:"finish_index"`
	HasNextPage     bool  `json:"has_next_page"`
	HasPreviousPage bool  `json:"has_previous_page"`
}

type PageResponse[T any] struct {
	Items  []T            `json:"items"`
	Paging PagingResponse `json:"paging"`
}

func toPageResponse[T, U any](p domain.Paginated[T], fn func(T) U) PageResponse[U] {
	mapped := domain.MapPaginated(p, fn)
	info := p.Paging
	return PageResponse[U]{
		Items: mapped.Items,
		Paging: PagingResponse{
			PageIndex:       info.PageIndex,
			ItemsPerPage:    info.ItemsPerPage,
			TotalItems:      info.TotalItems,
			TotalPages:      info.TotalPages(),
			PageIndexItems:  info.PageIndexItems(),
			StartIndex:      info.StartIndex(),
			FinishIndex:     info.FinishIndex(),
			HasNextPage:     info.HasNextPage(),
			HasPreviousPage: info.HasPreviousPage(),
		},
	}
}

type RemovedResponse struct {
	Removed int64 `json:"removed"`
}

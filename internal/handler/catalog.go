package handler

import (
	"net/http"

	"github.com/xenking/storefront/internal/domain/product"
)

func (h *Handler) searchProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := h.Catalog.Search(r.Context(), product.RawSearch{
		Query:    q.Get("q"),
		Category: q.Get("category"),
		Price:    q.Get("price"),
		Rating:   q.Get("rating"),
		Sort:     q.Get("sort"),
		Page:     q.Get("page"),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newPage(page.Items, page.Total, page.TotalPages, h.product))
}

func (h *Handler) latestProducts(w http.ResponseWriter, r *http.Request) {
	items, err := h.Catalog.Latest(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.products(items))
}

func (h *Handler) featuredProducts(w http.ResponseWriter, r *http.Request) {
	items, err := h.Catalog.Featured(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.products(items))
}

func (h *Handler) categories(w http.ResponseWriter, r *http.Request) {
	facet, err := h.Catalog.Categories(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	out := make([]categoryDTO, len(facet))
	for i, c := range facet {
		out[i] = categoryDTO{Category: c.Category, Count: c.Count}
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) productBySlug(w http.ResponseWriter, r *http.Request) {
	p, err := h.Catalog.BySlug(r.Context(), r.PathValue("slug"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.product(*p))
}

package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-petstore/internal/auth"
	"github.com/ariefcatur/go-petstore/internal/catalog"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type ProductStore interface {
	Create(ctx context.Context, p *catalog.Product) error
	Get(ctx context.Context, id int64) (*catalog.Product, error)
	List(ctx context.Context, category string) ([]catalog.Product, error)
}

type StockLedger interface {
	Available(ctx context.Context, productID int64) (int, error)
	SetQuantity(ctx context.Context, productID int64, qty int) error
}

// CacheInvalidator drops cached listings that embed stock levels.
type CacheInvalidator interface {
	Invalidate(ctx context.Context)
}

type CatalogHandler struct {
	Products ProductStore
	Stock    StockLedger
	Cache    CacheInvalidator
	Now      func() time.Time
}

// productView adds the date-gated price to the stored product.
type productView struct {
	catalog.Product
	EffectivePrice decimal.Decimal `json:"effective_price"`
	OnDiscount     bool            `json:"on_discount"`
}

func viewOf(p *catalog.Product, now time.Time) productView {
	return productView{Product: *p, EffectivePrice: p.EffectivePrice(now), OnDiscount: p.IsOnDiscount(now)}
}

type setStockReq struct {
	QuantityInStock *int `json:"quantity_in_stock"`
}

func (h *CatalogHandler) Register(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
	r.With(auth.Require(auth.ManageProducts)).Post("/products", h.create)
	r.With(auth.Require(auth.ManageStock)).Get("/products/{id}/stock", h.available)
	r.With(auth.Require(auth.ManageStock)).Put("/products/{id}/stock", h.setStock)
}

func (h *CatalogHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *CatalogHandler) list(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Products.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := h.now()
	out := make([]productView, 0, len(ps))
	for i := range ps {
		out = append(out, viewOf(&ps[i], now))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *CatalogHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	p, err := h.Products.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(p, h.now()))
}

// create ignores any discount fields in the body; discounts go through /discounts.
func (h *CatalogHandler) create(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if !decode(w, r, &p) {
		return
	}
	p.OriginalPrice = decimal.NullDecimal{}
	p.DiscountRate = decimal.Zero
	p.DiscountStartDate, p.DiscountEndDate = nil, nil
	if err := p.Validate(); err != nil {
		writeError(w, r, err)
		return
	}
	p.EnsureCost()
	if err := h.Products.Create(r.Context(), &p); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(&p, h.now()))
}

func (h *CatalogHandler) available(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	n, err := h.Stock.Available(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": id, "quantity_in_stock": n})
}

func (h *CatalogHandler) setStock(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req setStockReq
	if !decode(w, r, &req) {
		return
	}
	if req.QuantityInStock == nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing field: quantity_in_stock", Field: "quantity_in_stock"})
		return
	}
	if err := h.Stock.SetQuantity(r.Context(), id, *req.QuantityInStock); err != nil {
		writeError(w, r, err)
		return
	}
	if h.Cache != nil {
		h.Cache.Invalidate(r.Context())
	}
	writeJSON(w, http.StatusOK, map[string]any{"product_id": id, "quantity_in_stock": *req.QuantityInStock})
}

package httpx

import (
	"context"
	"net/http"
	"time"

	"github.com/ariefcatur/go-petstore/internal/auth"
	"github.com/ariefcatur/go-petstore/internal/catalog"
	"github.com/ariefcatur/go-petstore/internal/discounts"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type DiscountService interface {
	Apply(ctx context.Context, ids []int64, rate decimal.Decimal, w discounts.Window) (*discounts.ApplyResult, error)
	Remove(ctx context.Context, ids []int64) ([]catalog.Product, error)
	Discounted(ctx context.Context) ([]catalog.Product, error)

	CreateCampaign(ctx context.Context, c *discounts.Campaign) error
	UpdateCampaign(ctx context.Context, c *discounts.Campaign) error
	GetCampaign(ctx context.Context, id int64) (*discounts.Campaign, error)
	ListCampaigns(ctx context.Context) ([]discounts.Campaign, error)
	DeleteCampaign(ctx context.Context, id int64) error
	ApplyCampaign(ctx context.Context, id int64) (*discounts.ApplyResult, error)
	EndCampaign(ctx context.Context, id int64) ([]catalog.Product, error)
}

type DiscountsHandler struct {
	Service DiscountService
	Now     func() time.Time
}

type applyDiscountReq struct {
	ProductIDs []int64         `json:"product_ids"`
	Rate       decimal.Decimal `json:"discount_rate"`
	discounts.Window
}

type removeDiscountReq struct {
	ProductIDs []int64 `json:"product_ids"`
}

func (h *DiscountsHandler) Register(r chi.Router) {
	r.Get("/discounts", h.listDiscounted)
	r.With(auth.Require(auth.ManageDiscounts)).Post("/discounts/apply", h.apply)
	r.With(auth.Require(auth.ManageDiscounts)).Post("/discounts/remove", h.remove)

	r.Route("/campaigns", func(r chi.Router) {
		r.Use(auth.Require(auth.ManageCampaigns))
		r.Get("/", h.listCampaigns)
		r.Post("/", h.createCampaign)
		r.Get("/{id}", h.getCampaign)
		r.Put("/{id}", h.updateCampaign)
		r.Delete("/{id}", h.deleteCampaign)
		r.Post("/{id}/apply", h.applyCampaign)
		r.Post("/{id}/end", h.endCampaign)
	})
}

func (h *DiscountsHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *DiscountsHandler) apply(w http.ResponseWriter, r *http.Request) {
	var req applyDiscountReq
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Service.Apply(r.Context(), req.ProductIDs, req.Rate, req.Window)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *DiscountsHandler) remove(w http.ResponseWriter, r *http.Request) {
	var req removeDiscountReq
	if !decode(w, r, &req) {
		return
	}
	out, err := h.Service.Remove(r.Context(), req.ProductIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated_products": out})
}

func (h *DiscountsHandler) listDiscounted(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.Discounted(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	now := h.now()
	views := make([]productView, 0, len(out))
	for i := range out {
		views = append(views, viewOf(&out[i], now))
	}
	writeJSON(w, http.StatusOK, map[string]any{"discounted_products": views})
}

func (h *DiscountsHandler) listCampaigns(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.ListCampaigns(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *DiscountsHandler) createCampaign(w http.ResponseWriter, r *http.Request) {
	var c discounts.Campaign
	if !decode(w, r, &c) {
		return
	}
	if err := h.Service.CreateCampaign(r.Context(), &c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *DiscountsHandler) getCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	c, err := h.Service.GetCampaign(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *DiscountsHandler) updateCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var c discounts.Campaign
	if !decode(w, r, &c) {
		return
	}
	c.ID = id
	if err := h.Service.UpdateCampaign(r.Context(), &c); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *DiscountsHandler) deleteCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	if err := h.Service.DeleteCampaign(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *DiscountsHandler) applyCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	res, err := h.Service.ApplyCampaign(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *DiscountsHandler) endCampaign(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	out, err := h.Service.EndCampaign(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated_products": out})
}

package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-petstore/internal/auth"
	"github.com/ariefcatur/go-petstore/internal/orders"
	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	Create(ctx context.Context, c orders.Cart, idemKey string) (*orders.Order, bool, error)
	Get(ctx context.Context, deliveryID string) (*orders.Order, error)
	List(ctx context.Context, status string) ([]orders.Order, error)
	History(ctx context.Context, email string) ([]orders.Order, error)
	SetStatus(ctx context.Context, deliveryID, status string) (*orders.Order, error)
	Stats(ctx context.Context) (*orders.Stats, error)
}

type OrdersHandler struct {
	Service OrderService
}

type setStatusReq struct {
	Status string `json:"status"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.With(auth.Require(auth.PlaceOrder)).Post("/orders", h.createOrder)
	r.With(auth.Require(auth.ViewOrders)).Get("/orders", h.listOrders)
	r.With(auth.Require(auth.PlaceOrder)).Get("/orders/history", h.history)
	r.With(auth.Require(auth.ViewReports)).Get("/orders/stats", h.stats)
	r.With(auth.Require(auth.PlaceOrder)).Get("/orders/{id}", h.getOrder)
	r.With(auth.Require(auth.UpdateDelivery)).Put("/orders/{id}/status", h.setStatus)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var cart orders.Cart
	if !decode(w, r, &cart) {
		return
	}
	o, replay, err := h.Service.Create(r.Context(), cart, r.Header.Get("Idempotency-Key"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	code := http.StatusCreated
	if replay {
		code = http.StatusOK
	}
	writeJSON(w, code, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.List(r.Context(), r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) history(w http.ResponseWriter, r *http.Request) {
	out, err := h.Service.History(r.Context(), r.URL.Query().Get("email"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *OrdersHandler) stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Service.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusReq
	if !decode(w, r, &req) {
		return
	}
	o, err := h.Service.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

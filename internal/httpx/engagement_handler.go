package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-petstore/internal/auth"
	"github.com/ariefcatur/go-petstore/internal/reviews"
	"github.com/ariefcatur/go-petstore/internal/wishlist"
	"github.com/go-chi/chi/v5"
)

type WishlistStore interface {
	Add(ctx context.Context, userID, email string, productID int64) (*wishlist.Entry, error)
	Remove(ctx context.Context, userID string, productID int64) error
	ListByUser(ctx context.Context, userID string) ([]wishlist.Entry, error)
}

type ReviewStore interface {
	Create(ctx context.Context, rv *reviews.Review) error
	List(ctx context.Context, status reviews.Status) ([]reviews.Review, int, error)
	Moderate(ctx context.Context, id int64, action string) (*reviews.Review, error)
}

type EngagementHandler struct {
	Wishlist WishlistStore
	Reviews  ReviewStore
}

type wishlistReq struct {
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
	ProductID int64  `json:"product_id"`
}

type moderateReq struct {
	Action string `json:"action"`
}

func (h *EngagementHandler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(auth.Require(auth.ManageWishlist))
		r.Post("/wishlist/add", h.addWishlist)
		r.Post("/wishlist/remove", h.removeWishlist)
		r.Get("/wishlist", h.listWishlist)
	})
	r.With(auth.Require(auth.WriteReview)).Post("/reviews", h.createReview)
	r.With(auth.Require(auth.ModerateReviews)).Get("/reviews", h.listReviews)
	r.With(auth.Require(auth.ModerateReviews)).Put("/reviews/{id}/moderate", h.moderate)
}

func (h *EngagementHandler) addWishlist(w http.ResponseWriter, r *http.Request) {
	var req wishlistReq
	if !decode(w, r, &req) {
		return
	}
	e, err := h.Wishlist.Add(r.Context(), req.UserID, req.UserEmail, req.ProductID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *EngagementHandler) removeWishlist(w http.ResponseWriter, r *http.Request) {
	var req wishlistReq
	if !decode(w, r, &req) {
		return
	}
	if err := h.Wishlist.Remove(r.Context(), req.UserID, req.ProductID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"removed": true})
}

func (h *EngagementHandler) listWishlist(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "missing field: user_id", Field: "user_id"})
		return
	}
	out, err := h.Wishlist.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *EngagementHandler) createReview(w http.ResponseWriter, r *http.Request) {
	var rv reviews.Review
	if !decode(w, r, &rv) {
		return
	}
	if err := h.Reviews.Create(r.Context(), &rv); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (h *EngagementHandler) listReviews(w http.ResponseWriter, r *http.Request) {
	var status reviews.Status
	if s := r.URL.Query().Get("status"); s != "" {
		var err error
		if status, err = reviews.ParseStatus(s); err != nil {
			writeError(w, r, err)
			return
		}
	}
	out, pending, err := h.Reviews.List(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reviews": out, "pending_count": pending})
}

func (h *EngagementHandler) moderate(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req moderateReq
	if !decode(w, r, &req) {
		return
	}
	rv, err := h.Reviews.Moderate(r.Context(), id, req.Action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

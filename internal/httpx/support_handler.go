package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-petstore/internal/auth"
	"github.com/ariefcatur/go-petstore/internal/support"
	"github.com/go-chi/chi/v5"
)

type SupportStore interface {
	Open(ctx context.Context, req support.OpenRequest) (*support.Conversation, error)
	List(ctx context.Context, status support.Status) ([]support.Conversation, error)
	Get(ctx context.Context, id int64) (*support.Conversation, error)
	Assign(ctx context.Context, id int64, agentID string) (*support.Conversation, error)
	Close(ctx context.Context, id int64) (*support.Conversation, error)
	PostMessage(ctx context.Context, id int64, senderID string, fromAgent bool, content string) (*support.Message, error)
}

type SupportHandler struct {
	Store SupportStore
}

type assignReq struct {
	AgentID string `json:"agent_id"`
}

type messageReq struct {
	SenderID string `json:"sender_id"`
	Content  string `json:"content"`
}

func (h *SupportHandler) Register(r chi.Router) {
	r.Route("/support/conversations", func(r chi.Router) {
		r.With(auth.Require(auth.OpenSupport)).Post("/", h.open)
		r.With(auth.Require(auth.OpenSupport)).Post("/{id}/messages", h.postMessage)
		r.Group(func(r chi.Router) {
			r.Use(auth.Require(auth.HandleSupport))
			r.Get("/", h.list)
			r.Get("/{id}", h.get)
			r.Post("/{id}/assign", h.assign)
			r.Post("/{id}/close", h.close)
		})
	})
}

func (h *SupportHandler) open(w http.ResponseWriter, r *http.Request) {
	var req support.OpenRequest
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Store.Open(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *SupportHandler) list(w http.ResponseWriter, r *http.Request) {
	var status support.Status
	if s := r.URL.Query().Get("status"); s != "" {
		var err error
		if status, err = support.ParseStatus(s); err != nil {
			writeError(w, r, err)
			return
		}
	}
	out, err := h.Store.List(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *SupportHandler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	c, err := h.Store.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *SupportHandler) assign(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req assignReq
	if !decode(w, r, &req) {
		return
	}
	c, err := h.Store.Assign(r.Context(), id, req.AgentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *SupportHandler) close(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	c, err := h.Store.Close(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// postMessage marks the message as from an agent when the caller may handle support.
func (h *SupportHandler) postMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := int64Param(w, r, "id")
	if !ok {
		return
	}
	var req messageReq
	if !decode(w, r, &req) {
		return
	}
	role, _ := auth.RoleFrom(r.Context())
	m, err := h.Store.PostMessage(r.Context(), id, req.SenderID, auth.Can(role, auth.HandleSupport), req.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

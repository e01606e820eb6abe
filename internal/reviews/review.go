package reviews

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/ariefcatur/go-petstore/internal/validate"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Review struct {
	ID          int64     `json:"id"`
	ProductID   int64     `json:"product_id" validate:"required,gt=0"`
	ProductName string    `json:"product_name"`
	UserID      string    `json:"user_id" validate:"notblank"`
	UserName    string    `json:"user_name"`
	UserEmail   string    `json:"user_email"`
	Rating      int       `json:"rating" validate:"min=1,max=5"`
	Comment     string    `json:"comment" validate:"notblank"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r *Review) Validate() error {
	return validate.Struct(r)
}

// Moderate applies "approve" or "reject". Only pending reviews can be moderated.
func (r *Review) Moderate(action string) error {
	var to Status
	switch action {
	case "approve":
		to = StatusApproved
	case "reject":
		to = StatusRejected
	default:
		return apperr.Validation("action", fmt.Sprintf("invalid action %q: must be approve or reject", action))
	}
	if r.Status != StatusPending {
		return apperr.Validation("status", fmt.Sprintf("review %d is already %s", r.ID, r.Status))
	}
	r.Status = to
	return nil
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected:
		return st, nil
	}
	return "", apperr.Validation("status", fmt.Sprintf("invalid status %q", s))
}

// Package support is the customer support ticketing queue.
package support

import (
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-petstore/internal/apperr"
)

type Status string

const (
	StatusWaiting Status = "waiting"
	StatusActive  Status = "active"
	StatusClosed  Status = "closed"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

type Conversation struct {
	ID         int64      `json:"id"`
	CustomerID *string    `json:"customer_id"`
	GuestID    *string    `json:"guest_id"`
	AgentID    *string    `json:"agent_id"`
	Status     Status     `json:"status"`
	Priority   Priority   `json:"priority"`
	Tags       string     `json:"tags"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	ClosedAt   *time.Time `json:"closed_at"`
	Messages   []Message  `json:"messages,omitempty"`
}

type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       *string   `json:"sender_id"`
	IsFromAgent    bool      `json:"is_from_agent"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

func ParsePriority(s string) (Priority, error) {
	if s == "" {
		return PriorityMedium, nil
	}
	switch p := Priority(s); p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", apperr.Validation("priority", fmt.Sprintf("invalid priority %q", s))
}

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusWaiting, StatusActive, StatusClosed:
		return st, nil
	}
	return "", apperr.Validation("status", fmt.Sprintf("invalid status %q", s))
}

// Assign hands a waiting or active conversation to agentID and makes it active.
func (c *Conversation) Assign(agentID string) error {
	if strings.TrimSpace(agentID) == "" {
		return apperr.Missing("agent_id")
	}
	if c.Status == StatusClosed {
		return apperr.Validation("status", fmt.Sprintf("conversation %d is closed", c.ID))
	}
	c.AgentID = &agentID
	c.Status = StatusActive
	return nil
}

func (c *Conversation) Close(now time.Time) error {
	if c.Status == StatusClosed {
		return apperr.Validation("status", fmt.Sprintf("conversation %d is already closed", c.ID))
	}
	c.Status = StatusClosed
	c.ClosedAt = &now
	return nil
}

func (c *Conversation) CanPost() error {
	if c.Status == StatusClosed {
		return apperr.Validation("status", fmt.Sprintf("conversation %d is closed", c.ID))
	}
	return nil
}

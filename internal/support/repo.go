package support

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/ariefcatur/go-petstore/internal/postgres"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repo struct{ DB *pgxpool.Pool }

type OpenRequest struct {
	CustomerID string `json:"customer_id"`
	GuestID    string `json:"guest_id"`
	Priority   string `json:"priority"`
	Tags       string `json:"tags"`
	Message    string `json:"message"`
}

func nullable(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}

const conversationColumns = `id, customer_id, guest_id, agent_id, status, priority, tags, created_at,
	updated_at, closed_at`

func scanConversation(row interface{ Scan(...any) error }) (*Conversation, error) {
	var c Conversation
	err := row.Scan(&c.ID, &c.CustomerID, &c.GuestID, &c.AgentID, &c.Status, &c.Priority, &c.Tags,
		&c.CreatedAt, &c.UpdatedAt, &c.ClosedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Open starts a waiting conversation, optionally with the customer's first message.
func (r *Repo) Open(ctx context.Context, req OpenRequest) (*Conversation, error) {
	if nullable(req.CustomerID) == nil && nullable(req.GuestID) == nil {
		return nil, apperr.Missing("customer_id")
	}
	prio, err := ParsePriority(req.Priority)
	if err != nil {
		return nil, err
	}

	var out *Conversation
	err = postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		c, err := scanConversation(tx.QueryRow(ctx, `
			INSERT INTO support_conversations (customer_id, guest_id, status, priority, tags)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING `+conversationColumns,
			nullable(req.CustomerID), nullable(req.GuestID), StatusWaiting, prio, strings.TrimSpace(req.Tags)))
		if err != nil {
			return fmt.Errorf("insert conversation: %w", err)
		}
		if strings.TrimSpace(req.Message) != "" {
			sender := c.CustomerID
			if sender == nil {
				sender = c.GuestID
			}
			m, err := insertMessage(ctx, tx, c.ID, sender, false, req.Message)
			if err != nil {
				return err
			}
			c.Messages = []Message{*m}
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func insertMessage(ctx context.Context, q postgres.Querier, convID int64, sender *string, fromAgent bool, content string) (*Message, error) {
	m := Message{ConversationID: convID, SenderID: sender, IsFromAgent: fromAgent, Content: strings.TrimSpace(content)}
	err := q.QueryRow(ctx, `
		INSERT INTO support_messages (conversation_id, sender_id, is_from_agent, content)
		VALUES ($1,$2,$3,$4) RETURNING id, created_at`,
		convID, sender, fromAgent, m.Content,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &m, nil
}

func (r *Repo) List(ctx context.Context, status Status) ([]Conversation, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+conversationColumns+` FROM support_conversations
		WHERE ($1 = '' OR status = $1)
		ORDER BY CASE priority WHEN 'urgent' THEN 0 WHEN 'high' THEN 1 WHEN 'medium' THEN 2 ELSE 3 END,
			created_at, id`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Conversation{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *Repo) Get(ctx context.Context, id int64) (*Conversation, error) {
	c, err := r.lock(ctx, r.DB, id, false)
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.Query(ctx, `SELECT id, conversation_id, sender_id, is_from_agent, content, created_at
		FROM support_messages WHERE conversation_id=$1 ORDER BY created_at, id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	c.Messages = []Message{}
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.IsFromAgent, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		c.Messages = append(c.Messages, m)
	}
	return c, rows.Err()
}

func (r *Repo) lock(ctx context.Context, q postgres.Querier, id int64, forUpdate bool) (*Conversation, error) {
	sql := `SELECT ` + conversationColumns + ` FROM support_conversations WHERE id=$1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	c, err := scanConversation(q.QueryRow(ctx, sql, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("conversation", id)
	}
	return c, err
}

func (r *Repo) mutate(ctx context.Context, id int64, fn func(tx pgx.Tx, c *Conversation) error) (*Conversation, error) {
	var out *Conversation
	err := postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		c, err := r.lock(ctx, tx, id, true)
		if err != nil {
			return err
		}
		if err := fn(tx, c); err != nil {
			return err
		}
		err = tx.QueryRow(ctx, `
			UPDATE support_conversations SET agent_id=$2, status=$3, closed_at=$4, updated_at=NOW()
			WHERE id=$1 RETURNING updated_at`,
			c.ID, c.AgentID, c.Status, c.ClosedAt,
		).Scan(&c.UpdatedAt)
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repo) Assign(ctx context.Context, id int64, agentID string) (*Conversation, error) {
	return r.mutate(ctx, id, func(_ pgx.Tx, c *Conversation) error {
		return c.Assign(agentID)
	})
}

func (r *Repo) Close(ctx context.Context, id int64) (*Conversation, error) {
	return r.mutate(ctx, id, func(_ pgx.Tx, c *Conversation) error {
		return c.Close(time.Now().UTC())
	})
}

// PostMessage appends a message to an open conversation.
func (r *Repo) PostMessage(ctx context.Context, id int64, senderID string, fromAgent bool, content string) (*Message, error) {
	if strings.TrimSpace(content) == "" {
		return nil, apperr.Missing("content")
	}
	var msg *Message
	_, err := r.mutate(ctx, id, func(tx pgx.Tx, c *Conversation) error {
		if err := c.CanPost(); err != nil {
			return err
		}
		m, err := insertMessage(ctx, tx, c.ID, nullable(senderID), fromAgent, content)
		if err != nil {
			return err
		}
		msg = m
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

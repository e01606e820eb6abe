package discounts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-petstore/internal/apperr"
	"github.com/ariefcatur/go-petstore/internal/catalog"
	"github.com/ariefcatur/go-petstore/internal/postgres"
	"github.com/ariefcatur/go-petstore/internal/validate"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

type CampaignStatus string

const (
	CampaignScheduled CampaignStatus = "scheduled"
	CampaignActive    CampaignStatus = "active"
	CampaignEnded     CampaignStatus = "ended"
	CampaignCancelled CampaignStatus = "cancelled"
)

type Campaign struct {
	ID                 int64          `json:"id"`
	Title              string         `json:"title" validate:"notblank"`
	Description        string         `json:"description"`
	DiscountPercentage int            `json:"discount_percentage" validate:"min=1,max=100"`
	StartDate          time.Time      `json:"start_date" validate:"required"`
	EndDate            time.Time      `json:"end_date" validate:"required,gtfield=StartDate"`
	Status             CampaignStatus `json:"status" validate:"omitempty,oneof=scheduled active ended cancelled"`
	ProductIDs         []int64        `json:"product_ids"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// Validate checks the campaign and defaults an empty status to scheduled.
func (c *Campaign) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Status == "" {
		c.Status = CampaignScheduled
	}
	return nil
}

func (c *Campaign) Rate() decimal.Decimal { return decimal.NewFromInt(int64(c.DiscountPercentage)) }

type CampaignStore interface {
	Create(ctx context.Context, c *Campaign) error
	Get(ctx context.Context, id int64) (*Campaign, error)
	List(ctx context.Context) ([]Campaign, error)
	Update(ctx context.Context, c *Campaign) error
	Transition(ctx context.Context, id int64, from, to CampaignStatus) error
	Delete(ctx context.Context, id int64) error
}

type CampaignRepo struct{ DB *pgxpool.Pool }

func (r *CampaignRepo) Create(ctx context.Context, c *Campaign) error {
	return postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO campaigns (title, description, discount_percentage, start_date, end_date, status)
			VALUES ($1,$2,$3,$4,$5,$6)
			RETURNING id, created_at, updated_at`,
			c.Title, c.Description, c.DiscountPercentage, c.StartDate, c.EndDate, c.Status,
		).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert campaign: %w", err)
		}
		return replaceProducts(ctx, tx, c.ID, c.ProductIDs)
	})
}

func replaceProducts(ctx context.Context, tx pgx.Tx, campaignID int64, ids []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM campaign_products WHERE campaign_id=$1`, campaignID); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	// unknown product ids are dropped by the join
	_, err := tx.Exec(ctx, `
		INSERT INTO campaign_products (campaign_id, product_id)
		SELECT $1, id FROM products WHERE id = ANY($2)
		ON CONFLICT DO NOTHING`, campaignID, ids)
	return err
}

const campaignColumns = `c.id, c.title, c.description, c.discount_percentage, c.start_date, c.end_date,
	c.status, c.created_at, c.updated_at,
	COALESCE(ARRAY(SELECT product_id FROM campaign_products cp WHERE cp.campaign_id = c.id ORDER BY product_id), '{}')`

func scanCampaign(row interface{ Scan(...any) error }) (*Campaign, error) {
	var c Campaign
	err := row.Scan(&c.ID, &c.Title, &c.Description, &c.DiscountPercentage, &c.StartDate, &c.EndDate,
		&c.Status, &c.CreatedAt, &c.UpdatedAt, &c.ProductIDs)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id int64) (*Campaign, error) {
	c, err := scanCampaign(r.DB.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns c WHERE c.id=$1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("campaign", id)
	}
	return c, err
}

func (r *CampaignRepo) List(ctx context.Context) ([]Campaign, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+campaignColumns+` FROM campaigns c ORDER BY c.start_date DESC, c.id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Campaign{}
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) Update(ctx context.Context, c *Campaign) error {
	return postgres.InTx(ctx, r.DB, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE campaigns SET title=$2, description=$3, discount_percentage=$4, start_date=$5,
				end_date=$6, status=$7, updated_at=NOW()
			WHERE id=$1 RETURNING updated_at`,
			c.ID, c.Title, c.Description, c.DiscountPercentage, c.StartDate, c.EndDate, c.Status,
		).Scan(&c.UpdatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.NotFound("campaign", c.ID)
		}
		if err != nil {
			return err
		}
		return replaceProducts(ctx, tx, c.ID, c.ProductIDs)
	})
}

// Transition moves the campaign from one status to another. A campaign that is no
// longer in from is ErrConflict, so concurrent or repeated calls change it once.
func (r *CampaignRepo) Transition(ctx context.Context, id int64, from, to CampaignStatus) error {
	ct, err := r.DB.Exec(ctx, `UPDATE campaigns SET status=$3, updated_at=NOW() WHERE id=$1 AND status=$2`,
		id, from, to)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 1 {
		return nil
	}
	var cur CampaignStatus
	err = r.DB.QueryRow(ctx, `SELECT status FROM campaigns WHERE id=$1`, id).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperr.NotFound("campaign", id)
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("campaign %d is %s, not %s: %w", id, cur, from, apperr.ErrConflict)
}

func (r *CampaignRepo) Delete(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM campaigns WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return apperr.NotFound("campaign", id)
	}
	return nil
}

func (m *Manager) CreateCampaign(ctx context.Context, c *Campaign) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return m.Campaigns.Create(ctx, c)
}

func (m *Manager) UpdateCampaign(ctx context.Context, c *Campaign) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return m.Campaigns.Update(ctx, c)
}

func (m *Manager) GetCampaign(ctx context.Context, id int64) (*Campaign, error) {
	return m.Campaigns.Get(ctx, id)
}

func (m *Manager) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	return m.Campaigns.List(ctx)
}

// DeleteCampaign refuses to delete an active campaign; end it first.
func (m *Manager) DeleteCampaign(ctx context.Context, id int64) error {
	c, err := m.Campaigns.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status == CampaignActive {
		return apperr.Validation("status", "end the campaign before deleting it")
	}
	return m.Campaigns.Delete(ctx, id)
}

// ApplyCampaign discounts the campaign's products for its window and marks it active.
// The status flips first, so a repeated call is ErrConflict and never re-notifies.
func (m *Manager) ApplyCampaign(ctx context.Context, id int64) (*ApplyResult, error) {
	c, err := m.Campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	switch c.Status {
	case CampaignEnded, CampaignCancelled:
		return nil, apperr.Validation("status", fmt.Sprintf("campaign is %s", c.Status))
	case CampaignActive:
		return nil, fmt.Errorf("campaign %d is already active: %w", id, apperr.ErrConflict)
	}
	now := m.now()
	if now.Before(c.StartDate) {
		return nil, apperr.Validation("start_date", fmt.Sprintf("campaign starts at %s", c.StartDate.Format(time.RFC3339)))
	}
	if now.After(c.EndDate) {
		return nil, apperr.Validation("end_date", fmt.Sprintf("campaign ended at %s", c.EndDate.Format(time.RFC3339)))
	}

	if err := m.Campaigns.Transition(ctx, id, CampaignScheduled, CampaignActive); err != nil {
		return nil, err
	}
	start, end := c.StartDate, c.EndDate
	res, err := m.Apply(ctx, c.ProductIDs, c.Rate(), Window{Start: &start, End: &end})
	if err != nil {
		if rerr := m.Campaigns.Transition(ctx, id, CampaignActive, CampaignScheduled); rerr != nil {
			log.Printf("campaign %d: revert to scheduled: %v", id, rerr)
		}
		return nil, err
	}
	return res, nil
}

// EndCampaign removes the discounts of the campaign's products and marks it ended.
func (m *Manager) EndCampaign(ctx context.Context, id int64) ([]catalog.Product, error) {
	c, err := m.Campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status != CampaignActive {
		return nil, apperr.Validation("status", fmt.Sprintf("campaign is %s, not active", c.Status))
	}
	if err := m.Campaigns.Transition(ctx, id, CampaignActive, CampaignEnded); err != nil {
		return nil, err
	}
	updated, err := m.Remove(ctx, c.ProductIDs)
	if err != nil {
		if rerr := m.Campaigns.Transition(ctx, id, CampaignEnded, CampaignActive); rerr != nil {
			log.Printf("campaign %d: revert to active: %v", id, rerr)
		}
		return nil, err
	}
	return updated, nil
}

package campaign

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/noah-isme/backend-storefront/internal/promo"
)

// ErrNotFound reports that no campaign matched the identifier.
var ErrNotFound = errors.New("campaign not found")

// Store persists campaigns in Postgres. Rule parameters live in a JSONB
// document keyed by kind so new rule families do not need schema changes.
type Store struct {
	Pool *pgxpool.Pool
}

// configDoc is the JSONB shape stored in the config column. At most one field
// is populated, matching the campaign kind.
type configDoc struct {
	BuyXGetY      *promo.BuyXGetYPercent  `json:"buyXGetY,omitempty"`
	FirstPurchase *promo.FirstPurchase    `json:"firstPurchase,omitempty"`
	FlashSale     *promo.FlashSale        `json:"flashSale,omitempty"`
	Quantity      *promo.QuantityDiscount `json:"quantity,omitempty"`
	Bogo          *promo.Bogo             `json:"bogo,omitempty"`
	SpendAndSave  *promo.SpendAndSave     `json:"spendAndSave,omitempty"`
}

func encodeConfig(c promo.Campaign) ([]byte, error) {
	doc := configDoc{
		BuyXGetY:      c.BuyXGetY,
		FirstPurchase: c.FirstPurchase,
		FlashSale:     c.FlashSale,
		Quantity:      c.Quantity,
		Bogo:          c.Bogo,
		SpendAndSave:  c.SpendAndSave,
	}
	return json.Marshal(doc)
}

func decodeConfig(raw []byte, c *promo.Campaign) {
	var doc configDoc
	// A document that fails to decode leaves the campaign without a config,
	// which the resolver treats as not eligible rather than an error.
	if err := json.Unmarshal(raw, &doc); err != nil {
		return
	}
	c.BuyXGetY = doc.BuyXGetY
	c.FirstPurchase = doc.FirstPurchase
	c.FlashSale = doc.FlashSale
	c.Quantity = doc.Quantity
	c.Bogo = doc.Bogo
	c.SpendAndSave = doc.SpendAndSave
}

const campaignColumns = "id, title, scope, kind, product_ids, priority, active, config"

func scanCampaign(row pgx.Row) (promo.Campaign, error) {
	var (
		c   promo.Campaign
		raw []byte
	)
	if err := row.Scan(&c.ID, &c.Title, &c.Scope, &c.Kind, &c.ProductIDs, &c.Priority, &c.Active, &raw); err != nil {
		return promo.Campaign{}, err
	}
	decodeConfig(raw, &c)
	return c, nil
}

// Insert stores a new campaign and returns it with its generated identifier.
func (s *Store) Insert(ctx context.Context, c promo.Campaign) (promo.Campaign, error) {
	cfg, err := encodeConfig(c)
	if err != nil {
		return promo.Campaign{}, fmt.Errorf("encode config: %w", err)
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO campaigns (title, scope, kind, product_ids, priority, active, config)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+campaignColumns,
		c.Title, c.Scope, c.Kind, c.ProductIDs, c.Priority, c.Active, cfg)
	return scanCampaign(row)
}

// Update replaces a campaign's definition.
func (s *Store) Update(ctx context.Context, c promo.Campaign) (promo.Campaign, error) {
	cfg, err := encodeConfig(c)
	if err != nil {
		return promo.Campaign{}, fmt.Errorf("encode config: %w", err)
	}
	row := s.Pool.QueryRow(ctx, `
		UPDATE campaigns
		SET title = $2, scope = $3, kind = $4, product_ids = $5, priority = $6, active = $7, config = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+campaignColumns,
		c.ID, c.Title, c.Scope, c.Kind, c.ProductIDs, c.Priority, c.Active, cfg)
	updated, err := scanCampaign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return promo.Campaign{}, ErrNotFound
	}
	return updated, err
}

// Delete removes a campaign.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID fetches a single campaign.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (promo.Campaign, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id)
	c, err := scanCampaign(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return promo.Campaign{}, ErrNotFound
	}
	return c, err
}

// List returns a page of campaigns ordered by priority then creation time,
// along with the total count.
func (s *Store) List(ctx context.Context, limit, offset int) ([]promo.Campaign, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM campaigns`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		ORDER BY priority, created_at
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	out := make([]promo.Campaign, 0, limit)
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// ListActive returns every active campaign ordered by priority.
func (s *Store) ListActive(ctx context.Context) ([]promo.Campaign, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT `+campaignColumns+`
		FROM campaigns
		WHERE active
		ORDER BY priority, created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []promo.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

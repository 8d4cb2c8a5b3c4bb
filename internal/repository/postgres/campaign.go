package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/minicrm/internal/domain"
	"github.com/ignite/minicrm/internal/service/campaign"
)

const campaignCols = `id, created_by, name, message, segment_rules, audience_size, status, created_at, updated_at`

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

func scanCampaign(row interface{ Scan(...interface{}) error }) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	var rules []byte
	err := row.Scan(&c.ID, &c.CreatedBy, &c.Name, &c.Message, &rules,
		&c.AudienceSize, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.SegmentRules = rules
	return c, nil
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c, err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignCols+` FROM campaigns WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) List(ctx context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if f.CreatedBy != "" {
		where += " AND created_by = " + arg(f.CreatedBy)
	}
	if f.Status != "" {
		where += " AND status = " + arg(f.Status)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM campaigns`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count campaigns: %w", err)
	}

	q := `SELECT ` + campaignCols + ` FROM campaigns` + where +
		` ORDER BY updated_at DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CampaignRepo) CreateWithLogs(ctx context.Context, c *domain.Campaign, logs []domain.CommunicationLog) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO campaigns (id, created_by, name, message, segment_rules, audience_size, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, c.ID, c.CreatedBy, c.Name, c.Message, []byte(c.SegmentRules), c.AudienceSize, c.Status, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}

	if len(logs) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO communication_logs (id, campaign_id, customer_id, status, message, vendor_response, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, '', $6, $6)
		`)
		if err != nil {
			return fmt.Errorf("prepare: %w", err)
		}
		defer stmt.Close()

		for _, l := range logs {
			if _, err := stmt.ExecContext(ctx, l.ID, l.CampaignID, l.CustomerID, l.Status, l.Message, l.CreatedAt); err != nil {
				return fmt.Errorf("insert communication log for customer %s: %w", l.CustomerID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *CampaignRepo) Update(ctx context.Context, id string, u campaign.UpdateFields) error {
	var rules []byte
	if u.SegmentRules != nil {
		rules = []byte(*u.SegmentRules)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns
		SET name          = COALESCE($2, name),
		    message       = COALESCE($3, message),
		    segment_rules = COALESCE($4, segment_rules),
		    audience_size = COALESCE($5, audience_size),
		    updated_at    = NOW()
		WHERE id = $1
	`, id, u.Name, u.Message, rules, u.AudienceSize)
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) UpdateStatus(ctx context.Context, id string, from, to domain.CampaignStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2
	`, id, from, to)
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update campaign status: %w", err)
	}
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

func (r *CampaignRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM campaigns WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete campaign: %w", err)
	}
	if n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}

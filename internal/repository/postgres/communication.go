package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ignite/minicrm/internal/domain"
	"github.com/ignite/minicrm/internal/service/campaign"
	"github.com/ignite/minicrm/internal/service/delivery"
)

const logCols = `id, campaign_id, customer_id, status, message, COALESCE(vendor_response,''), created_at, updated_at`

// CommunicationRepo implements campaign.LogRepository and
// delivery.Repository against PostgreSQL.
type CommunicationRepo struct{ db *sql.DB }

// NewCommunicationRepo creates a Postgres-backed communication-log
// repository.
func NewCommunicationRepo(db *sql.DB) *CommunicationRepo { return &CommunicationRepo{db: db} }

func scanLog(row interface{ Scan(...interface{}) error }) (*domain.CommunicationLog, error) {
	l := &domain.CommunicationLog{}
	err := row.Scan(&l.ID, &l.CampaignID, &l.CustomerID, &l.Status, &l.Message,
		&l.VendorResponse, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (r *CommunicationRepo) ListByCampaign(ctx context.Context, campaignID string, f campaign.LogFilter) ([]domain.CommunicationLog, int, error) {
	where := ` WHERE campaign_id = $1`
	args := []interface{}{campaignID}
	if f.Status != "" {
		args = append(args, f.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM communication_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count communication logs: %w", err)
	}

	q := `SELECT ` + logCols + ` FROM communication_logs` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list communication logs: %w", err)
	}
	defer rows.Close()

	var out []domain.CommunicationLog
	for rows.Next() {
		l, err := scanLog(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan communication log: %w", err)
		}
		out = append(out, *l)
	}
	return out, total, rows.Err()
}

func (r *CommunicationRepo) CountByStatus(ctx context.Context, campaignID string) (map[domain.DeliveryStatus]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM communication_logs
		WHERE campaign_id = $1
		GROUP BY status
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.DeliveryStatus]int)
	for rows.Next() {
		var status domain.DeliveryStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan status count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// ReconcilePending flips the unique (campaign, customer) row out of PENDING
// with a conditional update, so concurrent receipts cannot both win.
func (r *CommunicationRepo) ReconcilePending(ctx context.Context, campaignID, customerID string, status domain.DeliveryStatus, vendorResponse string) (*domain.CommunicationLog, error) {
	l, err := scanLog(r.db.QueryRowContext(ctx, `
		UPDATE communication_logs
		SET status = $3, vendor_response = $4, updated_at = NOW()
		WHERE campaign_id = $1 AND customer_id = $2 AND status = 'PENDING'
		RETURNING `+logCols,
		campaignID, customerID, status, vendorResponse))
	if err == nil {
		return l, nil
	}
	if err != sql.ErrNoRows {
		return nil, fmt.Errorf("reconcile delivery: %w", err)
	}

	// No pending row matched: distinguish a missing pair from one that has
	// already been reconciled.
	var exists bool
	err = r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM communication_logs
			WHERE campaign_id = $1 AND customer_id = $2
		)
	`, campaignID, customerID).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("reconcile delivery: %w", err)
	}
	if exists {
		return nil, delivery.ErrAlreadyReconciled
	}
	return nil, delivery.ErrNotFound
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/minicrm/internal/domain"
	"github.com/ignite/minicrm/internal/service/order"
)

const orderCols = `id, customer_id, items, amount, order_date, created_at, updated_at`

// OrderRepo implements order.Repository against PostgreSQL. Line items are
// stored as a JSONB column; aggregates on the customer row are maintained
// with additive increments inside the same transaction as the order write.
type OrderRepo struct{ db *sql.DB }

// NewOrderRepo creates a Postgres-backed order repository.
func NewOrderRepo(db *sql.DB) *OrderRepo { return &OrderRepo{db: db} }

func scanOrder(row interface{ Scan(...interface{}) error }) (*domain.Order, error) {
	o := &domain.Order{}
	var items []byte
	err := row.Scan(&o.ID, &o.CustomerID, &items, &o.Amount, &o.OrderDate, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	return o, nil
}

func (r *OrderRepo) Get(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRowContext(ctx,
		`SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, order.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (r *OrderRepo) List(ctx context.Context, f order.ListFilter) ([]domain.Order, int, error) {
	where := " WHERE 1=1"
	var args []interface{}
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.CustomerID != "" {
		where += " AND customer_id = " + arg(f.CustomerID)
	}
	if !f.From.IsZero() {
		where += " AND order_date >= " + arg(f.From)
	}
	if !f.To.IsZero() {
		where += " AND order_date <= " + arg(f.To)
	}
	if f.MinAmount != nil {
		where += " AND amount >= " + arg(*f.MinAmount)
	}
	if f.MaxAmount != nil {
		where += " AND amount <= " + arg(*f.MaxAmount)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	q := `SELECT ` + orderCols + ` FROM orders` + where +
		` ORDER BY order_date DESC, created_at DESC LIMIT ` + arg(f.Limit) + ` OFFSET ` + arg(f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list orders: %w", err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		out = append(out, *o)
	}
	return out, total, rows.Err()
}

// applyDelta adjusts one customer's aggregates inside tx. Spend and visits
// are additive increments; last_active only moves forward.
func applyDelta(ctx context.Context, tx *sql.Tx, d order.CustomerDelta) error {
	var res sql.Result
	var err error
	if d.LastActive.IsZero() {
		res, err = tx.ExecContext(ctx, `
			UPDATE customers
			SET total_spend = total_spend + $2,
			    visits      = visits + $3,
			    updated_at  = NOW()
			WHERE id = $1
		`, d.CustomerID, d.SpendDelta, d.VisitDelta)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE customers
			SET total_spend = total_spend + $2,
			    visits      = visits + $3,
			    last_active = GREATEST(last_active, $4),
			    updated_at  = NOW()
			WHERE id = $1
		`, d.CustomerID, d.SpendDelta, d.VisitDelta, d.LastActive)
	}
	if err != nil {
		return fmt.Errorf("apply customer delta: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("apply customer delta: %w", err)
	}
	if n == 0 {
		return &order.MissingCustomerError{CustomerID: d.CustomerID}
	}
	return nil
}

func insertOrder(ctx context.Context, tx *sql.Tx, o *domain.Order) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, customer_id, items, amount, order_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, o.ID, o.CustomerID, items, o.Amount, o.OrderDate, o.CreatedAt, o.UpdatedAt)
	if isForeignKeyViolation(err) {
		return &order.MissingCustomerError{CustomerID: o.CustomerID}
	}
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepo) CreateWithDelta(ctx context.Context, o *domain.Order, delta order.CustomerDelta) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := insertOrder(ctx, tx, o); err != nil {
		return err
	}
	if err := applyDelta(ctx, tx, delta); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *OrderRepo) UpdateWithDeltas(ctx context.Context, o *domain.Order, deltas []order.CustomerDelta) error {
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode items: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET customer_id = $2, items = $3, amount = $4, order_date = $5, updated_at = $6
		WHERE id = $1
	`, o.ID, o.CustomerID, items, o.Amount, o.OrderDate, o.UpdatedAt)
	if isForeignKeyViolation(err) {
		return &order.MissingCustomerError{CustomerID: o.CustomerID}
	}
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if n == 0 {
		return order.ErrNotFound
	}

	for _, d := range deltas {
		if err := applyDelta(ctx, tx, d); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *OrderRepo) DeleteWithDelta(ctx context.Context, id string, delta order.CustomerDelta) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if n == 0 {
		return order.ErrNotFound
	}

	if err := applyDelta(ctx, tx, delta); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *OrderRepo) CreateBatchWithDeltas(ctx context.Context, orders []domain.Order, deltas []order.CustomerDelta) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	// existence check up front so the first dangling reference aborts the
	// batch with a precise error instead of a generic constraint failure
	ids := make([]string, len(deltas))
	for i, d := range deltas {
		ids[i] = d.CustomerID
	}
	if missing, err := missingCustomers(ctx, tx, ids); err != nil {
		return err
	} else if missing != "" {
		return &order.MissingCustomerError{CustomerID: missing}
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO orders (id, customer_id, items, amount, order_date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range orders {
		items, err := json.Marshal(o.Items)
		if err != nil {
			return fmt.Errorf("encode items: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, o.ID, o.CustomerID, items, o.Amount, o.OrderDate, o.CreatedAt, o.UpdatedAt); err != nil {
			return fmt.Errorf("insert order %s: %w", o.ID, err)
		}
	}

	for _, d := range deltas {
		if err := applyDelta(ctx, tx, d); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// missingCustomers returns the first customer ID from ids with no row, or
// empty when all exist. One query per batch.
func missingCustomers(ctx context.Context, tx *sql.Tx, ids []string) (string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT id FROM customers WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return "", fmt.Errorf("check customers: %w", err)
	}
	defer rows.Close()

	found := make(map[string]bool, len(ids))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("check customers: %w", err)
		}
		found[id] = true
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("check customers: %w", err)
	}
	for _, id := range ids {
		if !found[id] {
			return id, nil
		}
	}
	return "", nil
}

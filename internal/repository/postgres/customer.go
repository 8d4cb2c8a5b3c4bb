package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/minicrm/internal/domain"
	"github.com/ignite/minicrm/internal/segment"
	"github.com/ignite/minicrm/internal/service/customer"
)

const customerCols = `id, name, email, COALESCE(phone,''), total_spend, visits, last_active, created_at, updated_at`

// CustomerRepo implements customer.Repository and the audience resolver's
// store contract against PostgreSQL.
type CustomerRepo struct{ db *sql.DB }

// NewCustomerRepo creates a Postgres-backed customer repository.
func NewCustomerRepo(db *sql.DB) *CustomerRepo { return &CustomerRepo{db: db} }

func scanCustomer(row interface{ Scan(...interface{}) error }) (*domain.Customer, error) {
	c := &domain.Customer{}
	err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.TotalSpend, &c.Visits,
		&c.LastActive, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *CustomerRepo) Get(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := scanCustomer(r.db.QueryRowContext(ctx,
		`SELECT `+customerCols+` FROM customers WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, customer.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return c, nil
}

func (r *CustomerRepo) List(ctx context.Context, f customer.ListFilter) ([]domain.Customer, int, error) {
	where := ""
	var args []interface{}
	if f.Search != "" {
		where = ` WHERE name ILIKE $1 OR email ILIKE $1`
		args = append(args, "%"+f.Search+"%")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count customers: %w", err)
	}

	q := `SELECT ` + customerCols + ` FROM customers` + where +
		fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list customers: %w", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, *c)
	}
	return out, total, rows.Err()
}

func (r *CustomerRepo) Create(ctx context.Context, c *domain.Customer) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, email, phone, total_spend, visits, last_active, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4,''), 0, 0, $5, $6, $6)
	`, c.ID, c.Name, c.Email, c.Phone, c.LastActive, c.CreatedAt)
	if isUniqueViolation(err) {
		return customer.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("create customer: %w", err)
	}
	return nil
}

func (r *CustomerRepo) CreateBatch(ctx context.Context, cs []domain.Customer) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO customers (id, name, email, phone, total_spend, visits, last_active, created_at, updated_at)
		VALUES ($1, $2, $3, NULLIF($4,''), 0, 0, $5, $6, $6)
	`)
	if err != nil {
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range cs {
		if _, err := stmt.ExecContext(ctx, c.ID, c.Name, c.Email, c.Phone, c.LastActive, c.CreatedAt); err != nil {
			if isUniqueViolation(err) {
				return customer.ErrDuplicateEmail
			}
			return fmt.Errorf("insert customer %s: %w", c.Email, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *CustomerRepo) Update(ctx context.Context, id string, u customer.UpdateFields) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE customers
		SET name       = COALESCE($2, name),
		    email      = COALESCE($3, email),
		    phone      = COALESCE(NULLIF($4,''), phone),
		    updated_at = NOW()
		WHERE id = $1
	`, id, u.Name, u.Email, orEmpty(u.Phone))
	if isUniqueViolation(err) {
		return customer.ErrDuplicateEmail
	}
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update customer: %w", err)
	}
	if n == 0 {
		return customer.ErrNotFound
	}
	return nil
}

func (r *CustomerRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete customer: %w", err)
	}
	if n == 0 {
		return customer.ErrNotFound
	}
	return nil
}

// FindByFilter queries customers with a sanitized segment rule, newest
// activity first.
func (r *CustomerRepo) FindByFilter(ctx context.Context, rules segment.Rules, limit int) ([]domain.Customer, error) {
	q, args, err := segment.NewQueryBuilder().BuildSelect(rules, limit)
	if err != nil {
		return nil, fmt.Errorf("build filter: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("filter customers: %w", err)
	}
	defer rows.Close()

	var out []domain.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan customer: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CountByFilter counts customers matching a sanitized segment rule.
func (r *CustomerRepo) CountByFilter(ctx context.Context, rules segment.Rules) (int, error) {
	q, args, err := segment.NewQueryBuilder().BuildCount(rules)
	if err != nil {
		return 0, fmt.Errorf("build filter: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count filtered customers: %w", err)
	}
	return total, nil
}

func isUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func isForeignKeyViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23503"
	}
	return false
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

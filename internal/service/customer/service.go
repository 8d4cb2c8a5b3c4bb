package customer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/minicrm/internal/domain"
)

// Service implements customer business logic. All public methods are safe
// for concurrent use if the underlying repository is concurrency-safe.
type Service struct {
	repo Repository
}

// NewService creates a customer service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CreateInput holds the fields for creating a new customer.
type CreateInput struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Get returns a single customer.
func (s *Service) Get(ctx context.Context, id string) (*domain.Customer, error) {
	return s.repo.Get(ctx, id)
}

// List returns customers matching the filter plus the total match count.
func (s *Service) List(ctx context.Context, f ListFilter) ([]domain.Customer, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return s.repo.List(ctx, f)
}

// Create validates and persists a new customer with zeroed aggregates.
func (s *Service) Create(ctx context.Context, input CreateInput) (*domain.Customer, error) {
	c, err := newCustomer(input)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// BulkImport validates every row up front and inserts the batch atomically.
// The first invalid row fails the whole import, reporting its 1-based index.
func (s *Service) BulkImport(ctx context.Context, inputs []CreateInput) ([]domain.Customer, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("empty customer batch")
	}

	customers := make([]domain.Customer, 0, len(inputs))
	seen := make(map[string]int, len(inputs))
	for i, input := range inputs {
		c, err := newCustomer(input)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		if prev, dup := seen[c.Email]; dup {
			return nil, fmt.Errorf("row %d: duplicate email within batch (also row %d)", i+1, prev)
		}
		seen[c.Email] = i + 1
		customers = append(customers, *c)
	}

	if err := s.repo.CreateBatch(ctx, customers); err != nil {
		return nil, err
	}
	return customers, nil
}

// Update applies partial changes to a customer.
func (s *Service) Update(ctx context.Context, id string, u UpdateFields) (*domain.Customer, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}
	if u.Email != nil {
		email := normalizeEmail(*u.Email)
		if !validEmail(email) {
			return nil, fmt.Errorf("invalid email %q", *u.Email)
		}
		u.Email = &email
	}
	if err := s.repo.Update(ctx, id, u); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a customer. Orders referencing the customer are left to
// the caller to clean up; deleting a customer is an operator action, not
// part of normal order flow.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func newCustomer(input CreateInput) (*domain.Customer, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, fmt.Errorf("name is required")
	}
	email := normalizeEmail(input.Email)
	if !validEmail(email) {
		return nil, fmt.Errorf("invalid email %q", input.Email)
	}

	now := time.Now().UTC()
	return &domain.Customer{
		ID:         uuid.New().String(),
		Name:       name,
		Email:      email,
		Phone:      strings.TrimSpace(input.Phone),
		LastActive: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validEmail(email string) bool {
	if len(email) < 5 || len(email) > 254 {
		return false
	}
	at := strings.LastIndex(email, "@")
	if at < 1 || at >= len(email)-1 {
		return false
	}
	dom := email[at+1:]
	if !strings.Contains(dom, ".") || len(dom) < 3 {
		return false
	}
	return true
}

// Package audience resolves segment rules into concrete customer sets.
//
// Rules are sanitized before they touch the store, so a resolver can be
// handed rules from either the API validator or the AI extraction path.
package audience

import (
	"context"
	"fmt"

	"github.com/ignite/minicrm/internal/domain"
	"github.com/ignite/minicrm/internal/segment"
)

// MaxPreviewLimit caps how many members a preview resolve may return.
// The total count is always exact regardless of the cap.
const MaxPreviewLimit = 100

// DefaultPreviewLimit applies when the caller gives no limit.
const DefaultPreviewLimit = 20

// Repository is the customer-store contract the resolver queries.
type Repository interface {
	// FindByFilter returns customers matching the sanitized rules, newest
	// activity first, up to limit rows (0 means no limit).
	FindByFilter(ctx context.Context, rules segment.Rules, limit int) ([]domain.Customer, error)

	// CountByFilter returns the exact number of customers matching the rules.
	CountByFilter(ctx context.Context, rules segment.Rules) (int, error)
}

// Options controls a resolve call.
type Options struct {
	// Limit caps returned members; values above MaxPreviewLimit are clamped.
	Limit int
	// CountOnly skips member materialization and fills only Total.
	CountOnly bool
}

// Result is the outcome of a resolve: the (possibly truncated) member list
// and the true total match count.
type Result struct {
	Members []domain.Customer `json:"members"`
	Total   int               `json:"total"`
}

// Resolver computes audiences from segment rules.
type Resolver struct {
	repo Repository
}

// NewResolver creates a resolver backed by the given customer store.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve sanitizes the rules and queries the store. Store failures
// propagate wrapped; they are infrastructure errors, not empty audiences.
func (r *Resolver) Resolve(ctx context.Context, rules segment.Rules, opts Options) (*Result, error) {
	sanitized := segment.Sanitize(rules)

	total, err := r.repo.CountByFilter(ctx, sanitized)
	if err != nil {
		return nil, fmt.Errorf("count audience: %w", err)
	}
	if opts.CountOnly {
		return &Result{Total: total}, nil
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultPreviewLimit
	}
	if limit > MaxPreviewLimit {
		limit = MaxPreviewLimit
	}

	members, err := r.repo.FindByFilter(ctx, sanitized, limit)
	if err != nil {
		return nil, fmt.Errorf("materialize audience: %w", err)
	}
	return &Result{Members: members, Total: total}, nil
}

// ResolveAll materializes the full audience with no preview cap. Campaign
// dispatch uses this; previews must go through Resolve.
func (r *Resolver) ResolveAll(ctx context.Context, rules segment.Rules) (*Result, error) {
	sanitized := segment.Sanitize(rules)

	members, err := r.repo.FindByFilter(ctx, sanitized, 0)
	if err != nil {
		return nil, fmt.Errorf("materialize audience: %w", err)
	}
	return &Result{Members: members, Total: len(members)}, nil
}

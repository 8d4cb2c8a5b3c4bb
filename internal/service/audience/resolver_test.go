package audience_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/minicrm/internal/domain"
	"github.com/ignite/minicrm/internal/segment"
	"github.com/ignite/minicrm/internal/service/audience"
)

// memStore fakes the customer store and records the rules it was queried with.
type memStore struct {
	customers  []domain.Customer
	lastRules  segment.Rules
	lastLimit  int
	findErr    error
	countErr   error
	countCalls int
	findCalls  int
}

func (m *memStore) FindByFilter(_ context.Context, rules segment.Rules, limit int) ([]domain.Customer, error) {
	m.findCalls++
	m.lastRules = rules
	m.lastLimit = limit
	if m.findErr != nil {
		return nil, m.findErr
	}
	if limit > 0 && len(m.customers) > limit {
		return m.customers[:limit], nil
	}
	return m.customers, nil
}

func (m *memStore) CountByFilter(_ context.Context, rules segment.Rules) (int, error) {
	m.countCalls++
	m.lastRules = rules
	if m.countErr != nil {
		return 0, m.countErr
	}
	return len(m.customers), nil
}

func customers(n int) []domain.Customer {
	out := make([]domain.Customer, n)
	for i := range out {
		out[i] = domain.Customer{ID: string(rune('a' + i))}
	}
	return out
}

func TestResolveReturnsMembersAndTotal(t *testing.T) {
	store := &memStore{customers: customers(3)}
	r := audience.NewResolver(store)

	res, err := r.Resolve(context.Background(), segment.Rules{}, audience.Options{Limit: 10})
	require.NoError(t, err)
	assert.Len(t, res.Members, 3)
	assert.Equal(t, 3, res.Total)
}

func TestResolveTotalIndependentOfLimit(t *testing.T) {
	store := &memStore{customers: customers(8)}
	r := audience.NewResolver(store)

	res, err := r.Resolve(context.Background(), segment.Rules{}, audience.Options{Limit: 5})
	require.NoError(t, err)
	assert.Len(t, res.Members, 5)
	assert.Equal(t, 8, res.Total)
}

func TestResolveClampsPreviewLimit(t *testing.T) {
	store := &memStore{}
	r := audience.NewResolver(store)

	_, err := r.Resolve(context.Background(), segment.Rules{}, audience.Options{Limit: 5000})
	require.NoError(t, err)
	assert.Equal(t, audience.MaxPreviewLimit, store.lastLimit)
}

func TestResolveDefaultLimit(t *testing.T) {
	store := &memStore{}
	r := audience.NewResolver(store)

	_, err := r.Resolve(context.Background(), segment.Rules{}, audience.Options{})
	require.NoError(t, err)
	assert.Equal(t, audience.DefaultPreviewLimit, store.lastLimit)
}

func TestResolveCountOnlySkipsMaterialization(t *testing.T) {
	store := &memStore{customers: customers(4)}
	r := audience.NewResolver(store)

	res, err := r.Resolve(context.Background(), segment.Rules{}, audience.Options{CountOnly: true})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
	assert.Empty(t, res.Members)
	assert.Zero(t, store.findCalls)
}

func TestResolveSanitizesRules(t *testing.T) {
	store := &memStore{}
	r := audience.NewResolver(store)

	rules := segment.Rules{
		"totalSpend": {Ops: map[segment.Op]any{segment.OpGte: float64(1000)}},
		"city":       {Ops: map[segment.Op]any{segment.OpEq: "Mumbai"}},
	}
	_, err := r.Resolve(context.Background(), rules, audience.Options{CountOnly: true})
	require.NoError(t, err)

	_, hasSpend := store.lastRules["totalSpend"]
	_, hasCity := store.lastRules["city"]
	assert.True(t, hasSpend)
	assert.False(t, hasCity, "disallowed field must be dropped before querying")
}

func TestResolvePropagatesStoreErrors(t *testing.T) {
	boom := errors.New("connection refused")
	r := audience.NewResolver(&memStore{countErr: boom})

	_, err := r.Resolve(context.Background(), segment.Rules{}, audience.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestResolveAllHasNoCap(t *testing.T) {
	store := &memStore{customers: customers(7)}
	r := audience.NewResolver(store)

	res, err := r.ResolveAll(context.Background(), segment.Rules{})
	require.NoError(t, err)
	assert.Equal(t, 0, store.lastLimit)
	assert.Len(t, res.Members, 7)
	assert.Equal(t, 7, res.Total)
	assert.Zero(t, store.countCalls)
}

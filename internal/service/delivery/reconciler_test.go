package delivery_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/minicrm/internal/domain"
	"github.com/ignite/minicrm/internal/service/delivery"
)

type pairKey struct{ campaignID, customerID string }

// memRepo enforces the same PENDING-only update the Postgres repository
// performs with a conditional write.
type memRepo struct {
	mu   sync.Mutex
	logs map[pairKey]*domain.CommunicationLog
}

func newMemRepo() *memRepo {
	return &memRepo{logs: make(map[pairKey]*domain.CommunicationLog)}
}

func (m *memRepo) seed(campaignID, customerID string) {
	m.logs[pairKey{campaignID, customerID}] = &domain.CommunicationLog{
		ID:         campaignID + "/" + customerID,
		CampaignID: campaignID,
		CustomerID: customerID,
		Status:     domain.DeliveryPending,
		Message:    "Hi there, hello",
	}
}

func (m *memRepo) ReconcilePending(_ context.Context, campaignID, customerID string, status domain.DeliveryStatus, vendorResponse string) (*domain.CommunicationLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.logs[pairKey{campaignID, customerID}]
	if !ok {
		return nil, delivery.ErrNotFound
	}
	if l.Status != domain.DeliveryPending {
		return nil, delivery.ErrAlreadyReconciled
	}
	l.Status = status
	l.VendorResponse = vendorResponse
	l.UpdatedAt = time.Now().UTC()
	cp := *l
	return &cp, nil
}

func TestApplyReceiptSent(t *testing.T) {
	repo := newMemRepo()
	repo.seed("camp-1", "cust-1")
	r := delivery.NewReconciler(repo)

	log, err := r.ApplyReceipt(context.Background(), delivery.Receipt{
		CampaignID:     "camp-1",
		CustomerID:     "cust-1",
		Status:         "SENT",
		VendorResponse: "Delivered OK",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DeliverySent, log.Status)
	assert.Equal(t, "Delivered OK", log.VendorResponse)
}

func TestApplyReceiptFailed(t *testing.T) {
	repo := newMemRepo()
	repo.seed("camp-1", "cust-1")
	r := delivery.NewReconciler(repo)

	log, err := r.ApplyReceipt(context.Background(), delivery.Receipt{
		CampaignID:     "camp-1",
		CustomerID:     "cust-1",
		Status:         "FAILED",
		VendorResponse: "Simulated vendor failure",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.DeliveryFailed, log.Status)
}

func TestApplyReceiptUpdatesOnlyMatchingRow(t *testing.T) {
	repo := newMemRepo()
	repo.seed("camp-1", "cust-1")
	repo.seed("camp-1", "cust-2")
	repo.seed("camp-2", "cust-1")
	r := delivery.NewReconciler(repo)

	_, err := r.ApplyReceipt(context.Background(), delivery.Receipt{
		CampaignID: "camp-1", CustomerID: "cust-1", Status: "SENT",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.DeliveryPending, repo.logs[pairKey{"camp-1", "cust-2"}].Status)
	assert.Equal(t, domain.DeliveryPending, repo.logs[pairKey{"camp-2", "cust-1"}].Status)
}

func TestApplyReceiptUnknownPair(t *testing.T) {
	r := delivery.NewReconciler(newMemRepo())

	_, err := r.ApplyReceipt(context.Background(), delivery.Receipt{
		CampaignID: "ghost", CustomerID: "nobody", Status: "SENT",
	})
	assert.ErrorIs(t, err, delivery.ErrNotFound)
}

func TestApplyReceiptRejectsReapplication(t *testing.T) {
	repo := newMemRepo()
	repo.seed("camp-1", "cust-1")
	r := delivery.NewReconciler(repo)
	ctx := context.Background()

	_, err := r.ApplyReceipt(ctx, delivery.Receipt{
		CampaignID: "camp-1", CustomerID: "cust-1", Status: "SENT",
	})
	require.NoError(t, err)

	_, err = r.ApplyReceipt(ctx, delivery.Receipt{
		CampaignID: "camp-1", CustomerID: "cust-1", Status: "FAILED",
	})
	assert.ErrorIs(t, err, delivery.ErrAlreadyReconciled)
	// first outcome sticks
	assert.Equal(t, domain.DeliverySent, repo.logs[pairKey{"camp-1", "cust-1"}].Status)
}

func TestApplyReceiptValidatesStatus(t *testing.T) {
	repo := newMemRepo()
	repo.seed("camp-1", "cust-1")
	r := delivery.NewReconciler(repo)
	ctx := context.Background()

	for _, bad := range []string{"", "PENDING", "sent", "DELIVERED"} {
		_, err := r.ApplyReceipt(ctx, delivery.Receipt{
			CampaignID: "camp-1", CustomerID: "cust-1", Status: bad,
		})
		require.Error(t, err, "status %q must be rejected", bad)
	}
	assert.Equal(t, domain.DeliveryPending, repo.logs[pairKey{"camp-1", "cust-1"}].Status)
}

func TestApplyReceiptRequiresIdentifiers(t *testing.T) {
	r := delivery.NewReconciler(newMemRepo())
	_, err := r.ApplyReceipt(context.Background(), delivery.Receipt{Status: "SENT"})
	require.Error(t, err)
}

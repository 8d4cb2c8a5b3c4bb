// Package delivery reconciles vendor receipts into communication logs.
//
// A receipt names a (campaign, customer) pair and a terminal outcome. The
// reconciler is the only writer of terminal delivery status; once a row has
// left PENDING it never transitions again.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/ignite/minicrm/internal/domain"
)

// Sentinel errors for the delivery service layer.
var (
	ErrNotFound          = errors.New("communication log not found")
	ErrAlreadyReconciled = errors.New("delivery already reconciled")
)

// Repository is the communication-log contract the reconciler writes
// through.
type Repository interface {
	// ReconcilePending updates the unique (campaign, customer) row from
	// PENDING to the given terminal status, returning the updated row.
	// Returns ErrNotFound when no such pair exists and ErrAlreadyReconciled
	// when the row has already reached SENT or FAILED.
	ReconcilePending(ctx context.Context, campaignID, customerID string, status domain.DeliveryStatus, vendorResponse string) (*domain.CommunicationLog, error)
}

// Receipt is one vendor outcome report.
type Receipt struct {
	CampaignID     string `json:"campaignId"`
	CustomerID     string `json:"customerId"`
	Status         string `json:"status"`
	VendorResponse string `json:"vendorResponse"`
}

// Reconciler applies vendor receipts.
type Reconciler struct {
	repo Repository
}

// NewReconciler creates a reconciler backed by the given repository.
func NewReconciler(repo Repository) *Reconciler {
	return &Reconciler{repo: repo}
}

// ApplyReceipt validates the receipt and flips the matching PENDING row to
// the reported terminal status.
func (r *Reconciler) ApplyReceipt(ctx context.Context, receipt Receipt) (*domain.CommunicationLog, error) {
	if receipt.CampaignID == "" || receipt.CustomerID == "" {
		return nil, fmt.Errorf("campaignId and customerId are required")
	}

	status := domain.DeliveryStatus(receipt.Status)
	if status != domain.DeliverySent && status != domain.DeliveryFailed {
		return nil, fmt.Errorf("status must be %s or %s, got %q",
			domain.DeliverySent, domain.DeliveryFailed, receipt.Status)
	}

	return r.repo.ReconcilePending(ctx, receipt.CampaignID, receipt.CustomerID, status, receipt.VendorResponse)
}

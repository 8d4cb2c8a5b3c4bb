package domain

import "time"

// DeliveryStatus enumerates the lifecycle of a single communication log row.
type DeliveryStatus string

const (
	DeliveryPending DeliveryStatus = "PENDING"
	DeliverySent    DeliveryStatus = "SENT"
	DeliveryFailed  DeliveryStatus = "FAILED"
)

// TerminalDeliveryStatus reports whether s is an outcome a vendor receipt may
// carry. PENDING is the initial state only; receipts never move a row back
// to it.
func TerminalDeliveryStatus(s DeliveryStatus) bool {
	return s == DeliverySent || s == DeliveryFailed
}

// CommunicationLog tracks one message to one customer within one campaign.
// Exactly one row exists per (campaign, customer) pair; the pair is unique
// at the storage layer.
type CommunicationLog struct {
	ID             string         `json:"id" db:"id"`
	CampaignID     string         `json:"campaign_id" db:"campaign_id"`
	CustomerID     string         `json:"customer_id" db:"customer_id"`
	Status         DeliveryStatus `json:"status" db:"status"`
	Message        string         `json:"message" db:"message"`
	VendorResponse string         `json:"vendor_response" db:"vendor_response"`
	CreatedAt      time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at" db:"updated_at"`
}

package campaign

import (
	"context"
	"encoding/json"

	"github.com/ignite/minicrm/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// List returns campaigns matching the filter plus the total match
	// count, ordered by updated_at DESC.
	List(ctx context.Context, filter ListFilter) ([]domain.Campaign, int, error)

	// CreateWithLogs inserts the campaign and its PENDING communication
	// logs in one transaction. The campaign row carries the final audience
	// size. An empty log slice inserts just the campaign.
	CreateWithLogs(ctx context.Context, c *domain.Campaign, logs []domain.CommunicationLog) error

	// Update applies the non-nil fields. Returns ErrNotFound when absent.
	Update(ctx context.Context, id string, u UpdateFields) error

	// UpdateStatus moves the campaign from one status to another with a
	// conditional write. Returns ErrNotFound when no row matched, which
	// covers both a missing campaign and a lost transition race.
	UpdateStatus(ctx context.Context, id string, from, to domain.CampaignStatus) error

	// Delete removes a campaign. Returns ErrNotFound when absent.
	Delete(ctx context.Context, id string) error
}

// LogRepository is the communication-log contract the dispatcher reads.
type LogRepository interface {
	// ListByCampaign returns logs for the campaign, newest first,
	// optionally filtered by delivery status.
	ListByCampaign(ctx context.Context, campaignID string, filter LogFilter) ([]domain.CommunicationLog, int, error)

	// CountByStatus returns the per-status log counts for a campaign.
	CountByStatus(ctx context.Context, campaignID string) (map[domain.DeliveryStatus]int, error)
}

// ListFilter controls filtering and pagination for campaign lists.
// CreatedBy scopes results to one principal; empty means all.
type ListFilter struct {
	CreatedBy string
	Status    string
	Limit     int
	Offset    int
}

// LogFilter controls filtering and pagination for communication-log lists.
type LogFilter struct {
	Status string
	Limit  int
	Offset int
}

// UpdateFields holds the mutable campaign fields. Nil fields are not
// applied. AudienceSize travels with SegmentRules: a rule change always
// carries its recount.
type UpdateFields struct {
	Name         *string
	Message      *string
	SegmentRules *json.RawMessage
	AudienceSize *int
}

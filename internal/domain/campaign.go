package domain

import (
	"encoding/json"
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignRunning   CampaignStatus = "running"
	CampaignCompleted CampaignStatus = "completed"
)

// campaignTransitions is the full transition table. Status only ever moves
// forward; "completed" is terminal.
var campaignTransitions = map[CampaignStatus][]CampaignStatus{
	CampaignDraft:     {CampaignRunning},
	CampaignRunning:   {CampaignCompleted},
	CampaignCompleted: {},
}

// ValidCampaignStatus reports whether s is a known status value.
func ValidCampaignStatus(s CampaignStatus) bool {
	_, ok := campaignTransitions[s]
	return ok
}

// CanTransition reports whether a campaign may move from one status to
// another, purely by table lookup.
func CanTransition(from, to CampaignStatus) bool {
	for _, next := range campaignTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Campaign represents an outbound messaging campaign targeting a customer
// segment.
//
// SegmentRules holds the sanitized rule object as opaque JSON; the segment
// package owns its structure. AudienceSize is a point-in-time snapshot taken
// at creation (and again when SegmentRules is explicitly updated), never
// live-recomputed.
type Campaign struct {
	ID           string          `json:"id" db:"id"`
	CreatedBy    string          `json:"created_by" db:"created_by"`
	Name         string          `json:"name" db:"name"`
	Message      string          `json:"message" db:"message"`
	SegmentRules json.RawMessage `json:"segment_rules" db:"segment_rules"`
	AudienceSize int             `json:"audience_size" db:"audience_size"`
	Status       CampaignStatus  `json:"status" db:"status"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// IsTerminal returns true if the campaign can no longer change status.
func (c *Campaign) IsTerminal() bool {
	return len(campaignTransitions[c.Status]) == 0
}

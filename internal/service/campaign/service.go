package campaign

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/minicrm/internal/domain"
	"github.com/ignite/minicrm/internal/pkg/distlock"
	"github.com/ignite/minicrm/internal/pkg/logger"
	"github.com/ignite/minicrm/internal/segment"
	"github.com/ignite/minicrm/internal/service/audience"
)

// DispatchLockTTL bounds how long a crashed dispatcher can hold the
// per-campaign fan-out lock. The wiring passes it to the lock constructor.
const DispatchLockTTL = 10 * time.Minute

// AudienceResolver resolves segment rules into customer sets. Satisfied by
// *audience.Resolver.
type AudienceResolver interface {
	Resolve(ctx context.Context, rules segment.Rules, opts audience.Options) (*audience.Result, error)
	ResolveAll(ctx context.Context, rules segment.Rules) (*audience.Result, error)
}

// Personalizer renders the per-recipient message text. Satisfied by
// *message.Renderer.
type Personalizer interface {
	Personalize(name, body string) (string, error)
}

// Sender hands one message to the vendor. Send blocks until the vendor
// accepts or fails; the dispatcher always calls it from detached goroutines.
type Sender interface {
	Send(ctx context.Context, campaignID, customerID, message string) error
}

// LockFunc builds a distributed lock for the given key. Wired to
// distlock.New in production; nil disables locking (single-instance runs
// and tests).
type LockFunc func(key string) distlock.Lock

// Stats summarizes delivery progress for one campaign.
type Stats struct {
	Audience int `json:"audienceSize"`
	Pending  int `json:"pending"`
	Sent     int `json:"sent"`
	Failed   int `json:"failed"`
}

// Dispatcher orchestrates campaign creation, audience fan-out, and
// lifecycle transitions.
type Dispatcher struct {
	campaigns Repository
	logs      LogRepository
	resolver  AudienceResolver
	renderer  Personalizer
	sender    Sender
	newLock   LockFunc

	// wg tracks in-flight fan-outs so tests and shutdown can drain them.
	wg sync.WaitGroup
}

// NewDispatcher wires a campaign dispatcher. newLock may be nil.
func NewDispatcher(campaigns Repository, logs LogRepository, resolver AudienceResolver, renderer Personalizer, sender Sender, newLock LockFunc) *Dispatcher {
	return &Dispatcher{
		campaigns: campaigns,
		logs:      logs,
		resolver:  resolver,
		renderer:  renderer,
		sender:    sender,
		newLock:   newLock,
	}
}

// CreateInput holds the fields for creating a new campaign.
type CreateInput struct {
	CreatedBy string
	Name      string
	Message   string
	Rules     segment.Rules
}

// UpdateInput holds partial campaign changes. A rule change triggers an
// audience-size recount; it never re-dispatches communications.
type UpdateInput struct {
	Name    *string
	Message *string
	Rules   *segment.Rules
}

// recipient pairs a resolved audience member with its rendered message.
type recipient struct {
	customerID string
	message    string
}

// Create persists a draft campaign with its full audience fan-out: one
// PENDING communication log per resolved member, all in one transaction,
// then detached vendor sends per recipient. Vendor failures never roll the
// campaign back.
func (d *Dispatcher) Create(ctx context.Context, input CreateInput) (*domain.Campaign, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("name is required")
	}
	if strings.TrimSpace(input.Message) == "" {
		return nil, fmt.Errorf("message is required")
	}
	if input.CreatedBy == "" {
		return nil, fmt.Errorf("creator principal is required")
	}

	sanitized := segment.Sanitize(input.Rules)
	rulesJSON, err := sanitized.JSON()
	if err != nil {
		return nil, fmt.Errorf("encode rules: %w", err)
	}

	res, err := d.resolver.ResolveAll(ctx, input.Rules)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	c := &domain.Campaign{
		ID:           uuid.New().String(),
		CreatedBy:    input.CreatedBy,
		Name:         strings.TrimSpace(input.Name),
		Message:      input.Message,
		SegmentRules: rulesJSON,
		AudienceSize: res.Total,
		Status:       domain.CampaignDraft,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	logs := make([]domain.CommunicationLog, 0, len(res.Members))
	recipients := make([]recipient, 0, len(res.Members))
	for _, member := range res.Members {
		text, err := d.renderer.Personalize(member.Name, input.Message)
		if err != nil {
			return nil, fmt.Errorf("render message for customer %s: %w", member.ID, err)
		}
		logs = append(logs, domain.CommunicationLog{
			ID:         uuid.New().String(),
			CampaignID: c.ID,
			CustomerID: member.ID,
			Status:     domain.DeliveryPending,
			Message:    text,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		recipients = append(recipients, recipient{customerID: member.ID, message: text})
	}

	if err := d.campaigns.CreateWithLogs(ctx, c, logs); err != nil {
		return nil, err
	}

	d.wg.Add(1)
	go d.fanOut(c.ID, recipients)

	return c, nil
}

// fanOut pushes every recipient to the vendor, at most once per campaign
// across replicas. Runs detached from the creating request.
func (d *Dispatcher) fanOut(campaignID string, recipients []recipient) {
	defer d.wg.Done()
	if len(recipients) == 0 {
		return
	}

	ctx := context.Background()
	if d.newLock != nil {
		lock := d.newLock("campaign:dispatch:" + campaignID)
		got, err := lock.TryAcquire(ctx)
		if err != nil {
			logger.Error("campaign dispatch lock failed", "campaign_id", campaignID, "error", err)
			return
		}
		if !got {
			logger.Warn("campaign dispatch already in progress elsewhere", "campaign_id", campaignID)
			return
		}
		defer lock.Release(ctx)
	}

	var wg sync.WaitGroup
	for _, r := range recipients {
		wg.Add(1)
		go func(r recipient) {
			defer wg.Done()
			if err := d.sender.Send(ctx, campaignID, r.customerID, r.message); err != nil {
				logger.Warn("vendor send failed",
					"campaign_id", campaignID, "customer_id", r.customerID, "error", err)
			}
		}(r)
	}
	wg.Wait()
	logger.Info("campaign dispatched", "campaign_id", campaignID, "recipients", len(recipients))
}

// WaitForDispatch blocks until all in-flight fan-outs have finished.
// Intended for graceful shutdown and tests.
func (d *Dispatcher) WaitForDispatch() {
	d.wg.Wait()
}

// Get returns a single campaign.
func (d *Dispatcher) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	return d.campaigns.Get(ctx, id)
}

// GetWithStats returns a campaign with its delivery progress counts.
func (d *Dispatcher) GetWithStats(ctx context.Context, id string) (*domain.Campaign, *Stats, error) {
	c, err := d.campaigns.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	counts, err := d.logs.CountByStatus(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("count deliveries: %w", err)
	}
	return c, &Stats{
		Audience: c.AudienceSize,
		Pending:  counts[domain.DeliveryPending],
		Sent:     counts[domain.DeliverySent],
		Failed:   counts[domain.DeliveryFailed],
	}, nil
}

// List returns campaigns matching the filter plus the total match count.
func (d *Dispatcher) List(ctx context.Context, f ListFilter) ([]domain.Campaign, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return d.campaigns.List(ctx, f)
}

// Logs lists a campaign's communication logs.
func (d *Dispatcher) Logs(ctx context.Context, campaignID string, f LogFilter) ([]domain.CommunicationLog, int, error) {
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if _, err := d.campaigns.Get(ctx, campaignID); err != nil {
		return nil, 0, err
	}
	return d.logs.ListByCampaign(ctx, campaignID, f)
}

// Update applies partial changes. Editing the rules recomputes the audience
// size as a count-only resolve; existing communication logs are untouched.
func (d *Dispatcher) Update(ctx context.Context, id string, input UpdateInput) (*domain.Campaign, error) {
	if input.Name != nil && strings.TrimSpace(*input.Name) == "" {
		return nil, fmt.Errorf("name cannot be empty")
	}
	if input.Message != nil && strings.TrimSpace(*input.Message) == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}

	u := UpdateFields{Name: input.Name, Message: input.Message}
	if input.Rules != nil {
		sanitized := segment.Sanitize(*input.Rules)
		rulesJSON, err := sanitized.JSON()
		if err != nil {
			return nil, fmt.Errorf("encode rules: %w", err)
		}
		res, err := d.resolver.Resolve(ctx, *input.Rules, audience.Options{CountOnly: true})
		if err != nil {
			return nil, err
		}
		raw := json.RawMessage(rulesJSON)
		u.SegmentRules = &raw
		u.AudienceSize = &res.Total
	}

	if err := d.campaigns.Update(ctx, id, u); err != nil {
		return nil, err
	}
	return d.campaigns.Get(ctx, id)
}

// SetStatus moves a campaign forward through its lifecycle. The legal
// transitions are table-driven on the domain type; anything else is
// rejected without changing state.
func (d *Dispatcher) SetStatus(ctx context.Context, id string, to domain.CampaignStatus) (*domain.Campaign, error) {
	if !domain.ValidCampaignStatus(to) {
		return nil, fmt.Errorf("unknown status %q", to)
	}
	c, err := d.campaigns.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(c.Status, to) {
		return nil, &TransitionError{From: c.Status, To: to}
	}
	if err := d.campaigns.UpdateStatus(ctx, id, c.Status, to); err != nil {
		return nil, err
	}
	c.Status = to
	return c, nil
}

// Delete removes a draft campaign. Running and completed campaigns carry
// delivery history and cannot be deleted.
func (d *Dispatcher) Delete(ctx context.Context, id string) error {
	c, err := d.campaigns.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Status != domain.CampaignDraft {
		return ErrNotDraft
	}
	return d.campaigns.Delete(ctx, id)
}

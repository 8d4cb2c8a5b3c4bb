package campaign_test

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/minicrm/internal/domain"
	"github.com/ignite/minicrm/internal/message"
	"github.com/ignite/minicrm/internal/segment"
	"github.com/ignite/minicrm/internal/service/audience"
	"github.com/ignite/minicrm/internal/service/campaign"
)

// memRepo is an in-memory campaign repository for unit testing.
type memRepo struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
	logs      map[string][]domain.CommunicationLog // keyed by campaign id
}

func newMemRepo() *memRepo {
	return &memRepo{
		campaigns: make(map[string]*domain.Campaign),
		logs:      make(map[string][]domain.CommunicationLog),
	}
}

func (m *memRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if f.CreatedBy != "" && c.CreatedBy != f.CreatedBy {
			continue
		}
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *memRepo) CreateWithLogs(_ context.Context, c *domain.Campaign, logs []domain.CommunicationLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := make(map[string]bool)
	for _, l := range logs {
		if seen[l.CustomerID] {
			return campaign.ErrNotFound // pair uniqueness stand-in, unreachable in these tests
		}
		seen[l.CustomerID] = true
	}
	cp := *c
	m.campaigns[cp.ID] = &cp
	m.logs[cp.ID] = append([]domain.CommunicationLog(nil), logs...)
	return nil
}

func (m *memRepo) Update(_ context.Context, id string, u campaign.UpdateFields) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Message != nil {
		c.Message = *u.Message
	}
	if u.SegmentRules != nil {
		c.SegmentRules = *u.SegmentRules
	}
	if u.AudienceSize != nil {
		c.AudienceSize = *u.AudienceSize
	}
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id string, from, to domain.CampaignStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok || c.Status != from {
		return campaign.ErrNotFound
	}
	c.Status = to
	return nil
}

func (m *memRepo) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.campaigns[id]; !ok {
		return campaign.ErrNotFound
	}
	delete(m.campaigns, id)
	return nil
}

func (m *memRepo) ListByCampaign(_ context.Context, campaignID string, f campaign.LogFilter) ([]domain.CommunicationLog, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CommunicationLog
	for _, l := range m.logs[campaignID] {
		if f.Status != "" && string(l.Status) != f.Status {
			continue
		}
		out = append(out, l)
	}
	return out, len(out), nil
}

func (m *memRepo) CountByStatus(_ context.Context, campaignID string) (map[domain.DeliveryStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[domain.DeliveryStatus]int)
	for _, l := range m.logs[campaignID] {
		counts[l.Status]++
	}
	return counts, nil
}

// memStore backs the audience resolver with a fixed customer set.
type memStore struct {
	customers []domain.Customer
}

func (m *memStore) FindByFilter(_ context.Context, _ segment.Rules, limit int) ([]domain.Customer, error) {
	if limit > 0 && len(m.customers) > limit {
		return m.customers[:limit], nil
	}
	return m.customers, nil
}

func (m *memStore) CountByFilter(_ context.Context, _ segment.Rules) (int, error) {
	return len(m.customers), nil
}

// recordingSender captures vendor sends.
type recordingSender struct {
	mu    sync.Mutex
	sends []sentMsg
}

type sentMsg struct {
	campaignID, customerID, message string
}

func (s *recordingSender) Send(_ context.Context, campaignID, customerID, msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, sentMsg{campaignID, customerID, msg})
	return nil
}

func newDispatcher(repo *memRepo, customers ...domain.Customer) (*campaign.Dispatcher, *recordingSender) {
	sender := &recordingSender{}
	resolver := audience.NewResolver(&memStore{customers: customers})
	d := campaign.NewDispatcher(repo, repo, resolver, message.NewRenderer(), sender, nil)
	return d, sender
}

func TestCreateCampaignFansOut(t *testing.T) {
	repo := newMemRepo()
	d, sender := newDispatcher(repo,
		domain.Customer{ID: "c1", Name: "Asha"},
		domain.Customer{ID: "c2", Name: ""},
	)

	c, err := d.Create(context.Background(), campaign.CreateInput{
		CreatedBy: "user-1",
		Name:      "Winback",
		Message:   "we have an offer for you.",
		Rules:     segment.Rules{},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignDraft, c.Status)
	assert.Equal(t, 2, c.AudienceSize)

	logs := repo.logs[c.ID]
	require.Len(t, logs, 2)
	for _, l := range logs {
		assert.Equal(t, domain.DeliveryPending, l.Status)
		assert.Equal(t, c.ID, l.CampaignID)
	}
	assert.Equal(t, "Hi Asha, we have an offer for you.", logs[0].Message)
	assert.Equal(t, "Hi there, we have an offer for you.", logs[1].Message)

	d.WaitForDispatch()
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Len(t, sender.sends, 2)
}

func TestCreateCampaignEmptyAudience(t *testing.T) {
	repo := newMemRepo()
	d, sender := newDispatcher(repo)

	c, err := d.Create(context.Background(), campaign.CreateInput{
		CreatedBy: "user-1",
		Name:      "Ghost town",
		Message:   "anyone there?",
	})
	require.NoError(t, err)
	assert.Zero(t, c.AudienceSize)
	assert.Empty(t, repo.logs[c.ID])

	d.WaitForDispatch()
	assert.Empty(t, sender.sends)
}

func TestCreateCampaignValidation(t *testing.T) {
	d, _ := newDispatcher(newMemRepo())
	ctx := context.Background()

	_, err := d.Create(ctx, campaign.CreateInput{CreatedBy: "u", Message: "m"})
	require.Error(t, err)

	_, err = d.Create(ctx, campaign.CreateInput{CreatedBy: "u", Name: "n"})
	require.Error(t, err)

	_, err = d.Create(ctx, campaign.CreateInput{Name: "n", Message: "m"})
	require.Error(t, err)
}

func TestTwoCampaignsSameRulesIndependentLogs(t *testing.T) {
	repo := newMemRepo()
	d, _ := newDispatcher(repo, domain.Customer{ID: "c1", Name: "A"})
	ctx := context.Background()

	first, err := d.Create(ctx, campaign.CreateInput{CreatedBy: "u", Name: "One", Message: "hi"})
	require.NoError(t, err)
	second, err := d.Create(ctx, campaign.CreateInput{CreatedBy: "u", Name: "Two", Message: "hi"})
	require.NoError(t, err)

	assert.Len(t, repo.logs[first.ID], 1)
	assert.Len(t, repo.logs[second.ID], 1)
	assert.NotEqual(t, repo.logs[first.ID][0].ID, repo.logs[second.ID][0].ID)
}

func TestStatusTransitions(t *testing.T) {
	repo := newMemRepo()
	d, _ := newDispatcher(repo, domain.Customer{ID: "c1"})
	ctx := context.Background()

	c, err := d.Create(ctx, campaign.CreateInput{CreatedBy: "u", Name: "N", Message: "m"})
	require.NoError(t, err)

	got, err := d.SetStatus(ctx, c.ID, domain.CampaignRunning)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignRunning, got.Status)

	got, err = d.SetStatus(ctx, c.ID, domain.CampaignCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignCompleted, got.Status)
}

func TestStatusTransitionRejectsSkipsAndBackwards(t *testing.T) {
	repo := newMemRepo()
	d, _ := newDispatcher(repo)
	ctx := context.Background()

	c, err := d.Create(ctx, campaign.CreateInput{CreatedBy: "u", Name: "N", Message: "m"})
	require.NoError(t, err)

	// draft -> completed skips running
	_, err = d.SetStatus(ctx, c.ID, domain.CampaignCompleted)
	require.Error(t, err)
	assert.ErrorIs(t, err, campaign.ErrInvalidTransition)
	assert.Contains(t, err.Error(), "draft")
	assert.Contains(t, err.Error(), "completed")

	// status unchanged after rejection
	cur, err := d.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CampaignDraft, cur.Status)

	_, err = d.SetStatus(ctx, c.ID, domain.CampaignRunning)
	require.NoError(t, err)
	_, err = d.SetStatus(ctx, c.ID, domain.CampaignDraft)
	assert.ErrorIs(t, err, campaign.ErrInvalidTransition)

	_, err = d.SetStatus(ctx, c.ID, domain.CampaignCompleted)
	require.NoError(t, err)
	// completed is terminal
	_, err = d.SetStatus(ctx, c.ID, domain.CampaignRunning)
	assert.ErrorIs(t, err, campaign.ErrInvalidTransition)
}

func TestSetStatusUnknownValue(t *testing.T) {
	d, _ := newDispatcher(newMemRepo())
	_, err := d.SetStatus(context.Background(), "whatever", domain.CampaignStatus("paused"))
	require.Error(t, err)
}

func TestUpdateRulesRecountsWithoutRedispatch(t *testing.T) {
	repo := newMemRepo()
	d, sender := newDispatcher(repo,
		domain.Customer{ID: "c1", Name: "A"},
		domain.Customer{ID: "c2", Name: "B"},
	)
	ctx := context.Background()

	c, err := d.Create(ctx, campaign.CreateInput{CreatedBy: "u", Name: "N", Message: "m"})
	require.NoError(t, err)
	d.WaitForDispatch()
	sendsAfterCreate := len(sender.sends)

	rules := segment.Rules{"totalSpend": {Ops: map[segment.Op]any{segment.OpGte: float64(100)}}}
	got, err := d.Update(ctx, c.ID, campaign.UpdateInput{Rules: &rules})
	require.NoError(t, err)
	assert.Equal(t, 2, got.AudienceSize)

	var stored map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(got.SegmentRules, &stored))
	assert.Contains(t, stored, "totalSpend")

	// no new logs, no new sends
	d.WaitForDispatch()
	assert.Len(t, repo.logs[c.ID], 2)
	assert.Equal(t, sendsAfterCreate, len(sender.sends))
}

func TestGetWithStats(t *testing.T) {
	repo := newMemRepo()
	d, _ := newDispatcher(repo, domain.Customer{ID: "c1"}, domain.Customer{ID: "c2"}, domain.Customer{ID: "c3"})
	ctx := context.Background()

	c, err := d.Create(ctx, campaign.CreateInput{CreatedBy: "u", Name: "N", Message: "m"})
	require.NoError(t, err)

	// simulate two reconciled deliveries
	repo.mu.Lock()
	repo.logs[c.ID][0].Status = domain.DeliverySent
	repo.logs[c.ID][1].Status = domain.DeliveryFailed
	repo.mu.Unlock()

	_, stats, err := d.GetWithStats(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Audience)
	assert.Equal(t, 1, stats.Sent)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Pending)
}

func TestDeleteOnlyDraft(t *testing.T) {
	repo := newMemRepo()
	d, _ := newDispatcher(repo)
	ctx := context.Background()

	c, err := d.Create(ctx, campaign.CreateInput{CreatedBy: "u", Name: "N", Message: "m"})
	require.NoError(t, err)

	_, err = d.SetStatus(ctx, c.ID, domain.CampaignRunning)
	require.NoError(t, err)

	err = d.Delete(ctx, c.ID)
	assert.ErrorIs(t, err, campaign.ErrNotDraft)

	c2, err := d.Create(ctx, campaign.CreateInput{CreatedBy: "u", Name: "N2", Message: "m"})
	require.NoError(t, err)
	require.NoError(t, d.Delete(ctx, c2.ID))
	_, err = d.Get(ctx, c2.ID)
	assert.ErrorIs(t, err, campaign.ErrNotFound)
}

func TestListScopedToPrincipal(t *testing.T) {
	repo := newMemRepo()
	d, _ := newDispatcher(repo)
	ctx := context.Background()

	_, err := d.Create(ctx, campaign.CreateInput{CreatedBy: "alice", Name: "A", Message: "m"})
	require.NoError(t, err)
	_, err = d.Create(ctx, campaign.CreateInput{CreatedBy: "bob", Name: "B", Message: "m"})
	require.NoError(t, err)

	mine, total, err := d.List(ctx, campaign.ListFilter{CreatedBy: "alice"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, mine, 1)
	assert.Equal(t, "A", mine[0].Name)

	_, total, err = d.List(ctx, campaign.ListFilter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
}

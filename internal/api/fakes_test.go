package api

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ignite/minicrm/internal/ai"
	"github.com/ignite/minicrm/internal/domain"
	"github.com/ignite/minicrm/internal/segment"
	"github.com/ignite/minicrm/internal/service/campaign"
	"github.com/ignite/minicrm/internal/service/customer"
	"github.com/ignite/minicrm/internal/service/delivery"
	"github.com/ignite/minicrm/internal/service/order"
)

// memStore is a single in-memory backing store shared by every repository
// fake, so order deltas land on the same customers the handlers read back.
type memStore struct {
	mu        sync.Mutex
	customers map[string]domain.Customer
	orders    map[string]domain.Order
	campaigns map[string]domain.Campaign
	logs      map[string]domain.CommunicationLog
}

func newMemStore() *memStore {
	return &memStore{
		customers: make(map[string]domain.Customer),
		orders:    make(map[string]domain.Order),
		campaigns: make(map[string]domain.Campaign),
		logs:      make(map[string]domain.CommunicationLog),
	}
}

// --- customer.Repository ---

type memCustomerRepo struct{ store *memStore }

func (r *memCustomerRepo) Get(_ context.Context, id string) (*domain.Customer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.customers[id]
	if !ok {
		return nil, customer.ErrNotFound
	}
	return &c, nil
}

func (r *memCustomerRepo) List(_ context.Context, f customer.ListFilter) ([]domain.Customer, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.Customer
	for _, c := range r.store.customers {
		if f.Search != "" {
			q := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(c.Name), q) && !strings.Contains(strings.ToLower(c.Email), q) {
				continue
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := len(out)
	if f.Offset < len(out) {
		out = out[f.Offset:]
	} else {
		out = nil
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (r *memCustomerRepo) Create(_ context.Context, c *domain.Customer) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.customers {
		if existing.Email == c.Email {
			return customer.ErrDuplicateEmail
		}
	}
	r.store.customers[c.ID] = *c
	return nil
}

func (r *memCustomerRepo) CreateBatch(ctx context.Context, cs []domain.Customer) error {
	for i := range cs {
		if err := r.Create(ctx, &cs[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *memCustomerRepo) Update(_ context.Context, id string, u customer.UpdateFields) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.customers[id]
	if !ok {
		return customer.ErrNotFound
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Email != nil {
		c.Email = *u.Email
	}
	if u.Phone != nil {
		c.Phone = *u.Phone
	}
	c.UpdatedAt = time.Now()
	r.store.customers[id] = c
	return nil
}

func (r *memCustomerRepo) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.customers[id]; !ok {
		return customer.ErrNotFound
	}
	delete(r.store.customers, id)
	return nil
}

// --- audience.Repository ---
//
// Rule evaluation is not reimplemented here; the fake matches every stored
// customer, newest activity first. Rule semantics are covered by the
// segment and audience packages.

type memAudienceRepo struct{ store *memStore }

func (r *memAudienceRepo) FindByFilter(_ context.Context, _ segment.Rules, limit int) ([]domain.Customer, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.Customer
	for _, c := range r.store.customers {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastActive.After(out[j].LastActive) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memAudienceRepo) CountByFilter(_ context.Context, _ segment.Rules) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	return len(r.store.customers), nil
}

// --- order.Repository ---

type memOrderRepo struct{ store *memStore }

func (r *memOrderRepo) Get(_ context.Context, id string) (*domain.Order, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	o, ok := r.store.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	return &o, nil
}

func (r *memOrderRepo) List(_ context.Context, f order.ListFilter) ([]domain.Order, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.Order
	for _, o := range r.store.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderDate.After(out[j].OrderDate) })
	total := len(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (r *memOrderRepo) applyDelta(d order.CustomerDelta) error {
	c, ok := r.store.customers[d.CustomerID]
	if !ok {
		return &order.MissingCustomerError{CustomerID: d.CustomerID}
	}
	c.TotalSpend += d.SpendDelta
	c.Visits += d.VisitDelta
	if !d.LastActive.IsZero() && d.LastActive.After(c.LastActive) {
		c.LastActive = d.LastActive
	}
	r.store.customers[d.CustomerID] = c
	return nil
}

func (r *memOrderRepo) CreateWithDelta(_ context.Context, o *domain.Order, delta order.CustomerDelta) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if err := r.applyDelta(delta); err != nil {
		return err
	}
	r.store.orders[o.ID] = *o
	return nil
}

func (r *memOrderRepo) UpdateWithDeltas(_ context.Context, o *domain.Order, deltas []order.CustomerDelta) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.orders[o.ID]; !ok {
		return order.ErrNotFound
	}
	for _, d := range deltas {
		if err := r.applyDelta(d); err != nil {
			return err
		}
	}
	r.store.orders[o.ID] = *o
	return nil
}

func (r *memOrderRepo) DeleteWithDelta(_ context.Context, id string, delta order.CustomerDelta) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.orders[id]; !ok {
		return order.ErrNotFound
	}
	if delta.CustomerID != "" {
		if err := r.applyDelta(delta); err != nil {
			return err
		}
	}
	delete(r.store.orders, id)
	return nil
}

func (r *memOrderRepo) CreateBatchWithDeltas(_ context.Context, orders []domain.Order, deltas []order.CustomerDelta) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, d := range deltas {
		if _, ok := r.store.customers[d.CustomerID]; !ok {
			return &order.MissingCustomerError{CustomerID: d.CustomerID}
		}
	}
	for _, o := range orders {
		r.store.orders[o.ID] = o
	}
	for _, d := range deltas {
		if err := r.applyDelta(d); err != nil {
			return err
		}
	}
	return nil
}

// --- campaign.Repository + campaign.LogRepository + delivery.Repository ---

type memCampaignRepo struct{ store *memStore }

func (r *memCampaignRepo) Get(_ context.Context, id string) (*domain.Campaign, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	return &c, nil
}

func (r *memCampaignRepo) List(_ context.Context, f campaign.ListFilter) ([]domain.Campaign, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.Campaign
	for _, c := range r.store.campaigns {
		if f.CreatedBy != "" && c.CreatedBy != f.CreatedBy {
			continue
		}
		if f.Status != "" && string(c.Status) != f.Status {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	total := len(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (r *memCampaignRepo) CreateWithLogs(_ context.Context, c *domain.Campaign, logs []domain.CommunicationLog) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	r.store.campaigns[c.ID] = *c
	for _, l := range logs {
		r.store.logs[l.ID] = l
	}
	return nil
}

func (r *memCampaignRepo) Update(_ context.Context, id string, u campaign.UpdateFields) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.campaigns[id]
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
	c.UpdatedAt = time.Now()
	r.store.campaigns[id] = c
	return nil
}

func (r *memCampaignRepo) UpdateStatus(_ context.Context, id string, from, to domain.CampaignStatus) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	c, ok := r.store.campaigns[id]
	if !ok || c.Status != from {
		return campaign.ErrNotFound
	}
	c.Status = to
	c.UpdatedAt = time.Now()
	r.store.campaigns[id] = c
	return nil
}

func (r *memCampaignRepo) Delete(_ context.Context, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.campaigns[id]; !ok {
		return campaign.ErrNotFound
	}
	delete(r.store.campaigns, id)
	return nil
}

func (r *memCampaignRepo) ListByCampaign(_ context.Context, campaignID string, f campaign.LogFilter) ([]domain.CommunicationLog, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []domain.CommunicationLog
	for _, l := range r.store.logs {
		if l.CampaignID != campaignID {
			continue
		}
		if f.Status != "" && string(l.Status) != f.Status {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerID < out[j].CustomerID })
	total := len(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, total, nil
}

func (r *memCampaignRepo) CountByStatus(_ context.Context, campaignID string) (map[domain.DeliveryStatus]int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	counts := make(map[domain.DeliveryStatus]int)
	for _, l := range r.store.logs {
		if l.CampaignID == campaignID {
			counts[l.Status]++
		}
	}
	return counts, nil
}

func (r *memCampaignRepo) ReconcilePending(_ context.Context, campaignID, customerID string, status domain.DeliveryStatus, vendorResponse string) (*domain.CommunicationLog, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, l := range r.store.logs {
		if l.CampaignID != campaignID || l.CustomerID != customerID {
			continue
		}
		if l.Status != domain.DeliveryPending {
			return nil, delivery.ErrAlreadyReconciled
		}
		l.Status = status
		l.VendorResponse = vendorResponse
		l.UpdatedAt = time.Now()
		r.store.logs[id] = l
		return &l, nil
	}
	return nil, delivery.ErrNotFound
}

// --- AIService stub ---

type stubAI struct {
	rules    segment.Rules
	rulesErr error
	variants []ai.CopyVariant
	copyErr  error
	lastText string
}

func (s *stubAI) ExtractRules(_ context.Context, text string) (segment.Rules, error) {
	s.lastText = text
	if s.rulesErr != nil {
		return nil, s.rulesErr
	}
	return s.rules, nil
}

func (s *stubAI) SuggestCopy(_ context.Context, _ ai.CopyRequest) ([]ai.CopyVariant, error) {
	if s.copyErr != nil {
		return nil, s.copyErr
	}
	return s.variants, nil
}

// noopSender leaves dispatched communications PENDING.
type noopSender struct{}

func (noopSender) Send(context.Context, string, string, string) error { return nil }

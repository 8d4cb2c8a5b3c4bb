// Package vendorsim simulates an external messaging vendor.
//
// Each accepted message waits a randomized delay, succeeds with probability
// 0.9, then reports the outcome back through the delivery-receipt interface
// exactly like a real vendor webhook would.
package vendorsim

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ignite/minicrm/internal/domain"
	"github.com/ignite/minicrm/internal/service/delivery"
)

const (
	defaultSuccessRate = 0.9

	responseDelivered = "Delivered OK"
	responseFailed    = "Simulated vendor failure"
)

// ReceiptSink receives the vendor's outcome report. Satisfied by
// *delivery.Reconciler.
type ReceiptSink interface {
	ApplyReceipt(ctx context.Context, receipt delivery.Receipt) (*domain.CommunicationLog, error)
}

// Simulator implements the vendor-send contract with randomized outcomes.
type Simulator struct {
	sink        ReceiptSink
	successRate float64
	delay       func() time.Duration

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Simulator.
type Option func(*Simulator)

// WithRand seeds outcome selection, for deterministic tests.
func WithRand(rng *rand.Rand) Option {
	return func(s *Simulator) { s.rng = rng }
}

// WithDelay replaces the randomized network-latency delay.
func WithDelay(delay func() time.Duration) Option {
	return func(s *Simulator) { s.delay = delay }
}

// WithSuccessRate overrides the SENT probability.
func WithSuccessRate(p float64) Option {
	return func(s *Simulator) { s.successRate = p }
}

// NewSimulator creates a simulator reporting into the given sink.
func NewSimulator(sink ReceiptSink, opts ...Option) *Simulator {
	s := &Simulator{
		sink:        sink,
		successRate: defaultSuccessRate,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.delay = func() time.Duration {
		// 50ms to 550ms, mimicking vendor latency
		s.mu.Lock()
		d := time.Duration(s.rng.Intn(500)+50) * time.Millisecond
		s.mu.Unlock()
		return d
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send accepts one message, waits the simulated latency, picks an outcome,
// and posts the receipt. A cancelled context abandons the send without a
// receipt, leaving the communication row PENDING.
func (s *Simulator) Send(ctx context.Context, campaignID, customerID, message string) error {
	select {
	case <-time.After(s.delay()):
	case <-ctx.Done():
		return ctx.Err()
	}

	status := "FAILED"
	response := responseFailed
	if s.roll() < s.successRate {
		status = "SENT"
		response = responseDelivered
	}

	_, err := s.sink.ApplyReceipt(ctx, delivery.Receipt{
		CampaignID:     campaignID,
		CustomerID:     customerID,
		Status:         status,
		VendorResponse: response,
	})
	if err != nil {
		return fmt.Errorf("post receipt: %w", err)
	}
	return nil
}

func (s *Simulator) roll() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

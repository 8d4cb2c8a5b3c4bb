package campaign

import (
	"errors"
	"fmt"

	"github.com/ignite/minicrm/internal/domain"
)

// Sentinel errors for the campaign service layer.
var (
	ErrNotFound          = errors.New("campaign not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotDraft          = errors.New("only draft campaigns can be deleted")
)

// TransitionError reports a rejected status change. It unwraps to
// ErrInvalidTransition.
type TransitionError struct {
	From domain.CampaignStatus
	To   domain.CampaignStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

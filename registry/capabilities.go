package registry

import (
	"time"

	"github.com/lyzr/flowd/models"
)

// Control-flow handlers implement one of the optional interfaces below.
// The scheduler discovers them by type assertion; ordinary action
// handlers need none of this.

// BranchSelector is implemented by condition and switch handlers.
// After a successful execute, the scheduler activates only the selected
// outgoing port; the other branches' exclusive downstream is skipped.
type BranchSelector interface {
	SelectedPort(output *models.NodeOutput) (string, bool)
}

// MergeSpec declares how a merge node joins its incoming edges
type MergeSpec struct {
	// Strategy: all, any, majority
	Strategy string
	// CombineMode: array, object, first, last
	CombineMode string
}

// Merger is implemented by merge handlers. The scheduler uses the
// MergeSpec for readiness (when to fire) and the handler combines the
// inputs.
type Merger interface {
	MergeSpec(parameters map[string]interface{}) MergeSpec
}

// Iterator is implemented by loop and split handlers. The scheduler
// invokes Execute once per item with a fresh context carrying the
// iteration variables; downstream sees the union of iteration outputs
// keyed by index.
type Iterator interface {
	Items(nodeCtx *models.NodeContext, parameters map[string]interface{}) ([]interface{}, error)
}

// RetryPolicy is exponential backoff applied to a wrapped action:
// delay = InitialDelay * Multiplier^attempt, capped at MaxDelay,
// up to MaxAttempts attempts.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
}

// Delay returns the backoff before the given attempt (1-based; the
// first retry waits for attempt 1)
func (p RetryPolicy) Delay(attempt int) time.Duration {
	delay := p.InitialDelay
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * p.Multiplier)
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// RetryProvider is implemented by retry handlers. The policy applies to
// the retry node's immediate downstream actions.
type RetryProvider interface {
	RetryPolicy(parameters map[string]interface{}) RetryPolicy
}

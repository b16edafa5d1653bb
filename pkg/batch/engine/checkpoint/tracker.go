// Package checkpoint decides when a chunk transaction ends.
package checkpoint

import (
	"context"
	"time"

	port "github.com/bryant1410/jsr352/pkg/batch/core/application/port"
	model "github.com/bryant1410/jsr352/pkg/batch/core/domain/model"
)

// Clock returns the current time.
type Clock func() time.Time

// Policy is the chunk boundary configuration of a step.
// With Custom set, ItemCount and TimeLimit are both ignored; only a timeout reported by Custom bounds the chunk.
type Policy struct {
	ItemCount int
	TimeLimit time.Duration
	Custom    port.CheckpointAlgorithm
}

// PolicyFor builds the policy of a chunk definition. custom is the resolved checkpoint algorithm,
// required when the definition uses the custom checkpoint policy.
func PolicyFor(def *model.ChunkDefinition, custom port.CheckpointAlgorithm) Policy {
	p := Policy{ItemCount: def.EffectiveItemCount(), TimeLimit: def.TimeLimit}
	if def.CheckpointPolicy == model.CheckpointPolicyCustom {
		p.Custom = custom
	}
	return p
}

// Tracker counts the items and time of the current chunk.
type Tracker struct {
	policy    Policy
	now       Clock
	items     int
	started   time.Time
	timeLimit time.Duration
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option {
	return func(t *Tracker) { t.now = c }
}

// NewTracker creates a tracker for policy.
func NewTracker(policy Policy, opts ...Option) *Tracker {
	if policy.ItemCount <= 0 {
		policy.ItemCount = model.DefaultItemCount
	}
	t := &Tracker{policy: policy, now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Begin starts a new chunk.
func (t *Tracker) Begin(ctx context.Context) error {
	t.items = 0
	t.started = t.now()
	if t.policy.Custom == nil {
		t.timeLimit = t.policy.TimeLimit
		return nil
	}
	t.timeLimit = 0
	if to, ok := t.policy.Custom.(port.CheckpointTimeout); ok {
		d, err := to.CheckpointTimeout(ctx)
		if err != nil {
			return err
		}
		t.timeLimit = d
	}
	if lc, ok := t.policy.Custom.(port.CheckpointLifecycle); ok {
		return lc.BeginCheckpoint(ctx)
	}
	return nil
}

// ItemRead records one item read into the current chunk.
func (t *Tracker) ItemRead() { t.items++ }

// Items returns the number of items read in the current chunk.
func (t *Tracker) Items() int { return t.items }

// Elapsed returns the time since Begin.
func (t *Tracker) Elapsed() time.Duration { return t.now().Sub(t.started) }

// Decide reports whether the current chunk should be committed now:
// when the item threshold or the time limit is reached, whichever comes first.
// A custom algorithm replaces both, bounded only by its own CheckpointTimeout.
func (t *Tracker) Decide(ctx context.Context) (bool, error) {
	if t.timeLimit > 0 && t.Elapsed() >= t.timeLimit {
		return true, nil
	}
	if t.policy.Custom != nil {
		return t.policy.Custom.IsReadyToCheckpoint(ctx)
	}
	return t.items >= t.policy.ItemCount, nil
}

// End notifies a custom algorithm that the chunk was committed.
func (t *Tracker) End(ctx context.Context) error {
	if lc, ok := t.policy.Custom.(port.CheckpointLifecycle); ok {
		return lc.EndCheckpoint(ctx)
	}
	return nil
}

// CommitAtEndOfData reports whether reaching the end of input forces a final commit.
// It does once at least one item was read by the step execution, even if the last chunk is empty.
func CommitAtEndOfData(itemsReadByExecution int) bool {
	return itemsReadByExecution > 0
}

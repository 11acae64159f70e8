package repository

import (
	"context"
	"maps"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/bastion/pkg/domain/interfaces"
	"github.com/secmon-lab/bastion/pkg/domain/model/entity"
	"github.com/secmon-lab/bastion/pkg/domain/model/errs"
	"github.com/secmon-lab/bastion/pkg/domain/model/incident"
	"github.com/secmon-lab/bastion/pkg/domain/types"
	"github.com/secmon-lab/bastion/pkg/utils/clock"
)

type entityKey struct {
	kind entity.Kind
	key  string
}

type Memory struct {
	mu       sync.RWMutex
	entities map[entityKey]*entity.Entity
	alerts   map[types.AlertID]*incident.Alert
	outcomes map[types.AlertID][]incident.Outcome

	// Call counter for tracking method invocations
	callCounts map[string]int
	callMu     sync.RWMutex

	eb *goerr.Builder
}

var _ interfaces.Repository = &Memory{}

func NewMemory() *Memory {
	return &Memory{
		entities:   make(map[entityKey]*entity.Entity),
		alerts:     make(map[types.AlertID]*incident.Alert),
		outcomes:   make(map[types.AlertID][]incident.Outcome),
		callCounts: make(map[string]int),
		eb:         goerr.NewBuilder(goerr.TV(errs.RepositoryKey, "memory")),
	}
}

func (r *Memory) incrementCallCount(methodName string) {
	r.callMu.Lock()
	defer r.callMu.Unlock()
	r.callCounts[methodName]++
}

// GetCallCount returns the number of times a method has been called
func (r *Memory) GetCallCount(methodName string) int {
	r.callMu.RLock()
	defer r.callMu.RUnlock()
	return r.callCounts[methodName]
}

func (r *Memory) GetOrCreateEntity(ctx context.Context, kind entity.Kind, key string, attrs map[string]string) (*entity.Entity, error) {
	r.incrementCallCount("GetOrCreateEntity")
	if key == "" {
		return nil, r.eb.New("entity key is empty", goerr.T(errs.TagValidation), goerr.V("kind", kind))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := entityKey{kind: kind, key: key}
	if e, ok := r.entities[k]; ok {
		copied := *e
		copied.Attrs = maps.Clone(e.Attrs)
		return &copied, nil
	}

	now := clock.Now(ctx)
	e := &entity.Entity{
		ID:        types.NewEntityID(),
		Kind:      kind,
		Key:       key,
		Attrs:     maps.Clone(attrs),
		CreatedAt: now,
		UpdatedAt: now,
	}
	r.entities[k] = e

	copied := *e
	copied.Attrs = maps.Clone(e.Attrs)
	return &copied, nil
}

func (r *Memory) PutAlert(ctx context.Context, alert *incident.Alert) error {
	r.incrementCallCount("PutAlert")
	if alert == nil {
		return r.eb.New("alert is nil", goerr.T(errs.TagValidation))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *alert
	r.alerts[alert.ID] = &copied
	return nil
}

func (r *Memory) GetAlert(ctx context.Context, id types.AlertID) (*incident.Alert, error) {
	r.incrementCallCount("GetAlert")
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.alerts[id]
	if !ok {
		return nil, nil
	}
	copied := *a
	return &copied, nil
}

func (r *Memory) RecordOutcome(ctx context.Context, outcome incident.Outcome) error {
	r.incrementCallCount("RecordOutcome")
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcomes[outcome.AlertID] = append(r.outcomes[outcome.AlertID], outcome)
	return nil
}

func (r *Memory) ListOutcomes(ctx context.Context, id types.AlertID) ([]incident.Outcome, error) {
	r.incrementCallCount("ListOutcomes")
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]incident.Outcome(nil), r.outcomes[id]...), nil
}

func (r *Memory) CountActive(ctx context.Context, kind types.SignalKind, subject types.UserID, communityID types.CommunityID) (int, error) {
	r.incrementCallCount("CountActive")
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, a := range r.alerts {
		if a.ThreatType == kind && a.SubjectUserID == subject && a.CommunityID == communityID && !a.Resolved() {
			count++
		}
	}
	return count, nil
}

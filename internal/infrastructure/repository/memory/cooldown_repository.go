package memory

import (
	"context"
	"sync"
	"time"

	"github.com/riskibarqy/guildhall/internal/domain/cooldown"
)

type CooldownRepository struct {
	mu     sync.RWMutex
	last   map[string]cooldown.Event
	window time.Duration
	now    func() time.Time
}

func NewCooldownRepository(window time.Duration) *CooldownRepository {
	return &CooldownRepository{
		last:   make(map[string]cooldown.Event),
		window: window,
		now:    time.Now,
	}
}

func (r *CooldownRepository) Status(_ context.Context, tenantID, userID string) (cooldown.Status, error) {
	r.mu.RLock()
	event, ok := r.last[cooldownKey(tenantID, userID)]
	now := r.now()
	r.mu.RUnlock()
	if !ok {
		return cooldown.Status{}, nil
	}
	return cooldown.StatusFromEvent(event, r.window, now), nil
}

func (r *CooldownRepository) RecordLeave(_ context.Context, event cooldown.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.LeftAt.IsZero() {
		event.LeftAt = r.now()
	}

	key := cooldownKey(event.TenantID, event.UserID)
	if prev, ok := r.last[key]; ok && prev.LeftAt.After(event.LeftAt) {
		return nil
	}
	r.last[key] = event
	return nil
}

// SetNow overrides the clock.
func (r *CooldownRepository) SetNow(now func() time.Time) {
	r.mu.Lock()
	r.now = now
	r.mu.Unlock()
}

func cooldownKey(tenantID, userID string) string {
	return tenantID + "::" + userID
}

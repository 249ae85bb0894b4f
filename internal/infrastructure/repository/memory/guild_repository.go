package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
)

// GuildRepository keeps guilds in process. One mutex serializes every conditional
// write, which gives the same atomicity the Postgres row lock does.
type GuildRepository struct {
	mu    sync.RWMutex
	items map[string]guild.Guild
	now   func() time.Time
}

func NewGuildRepository(seed ...guild.Guild) *GuildRepository {
	items := make(map[string]guild.Guild, len(seed))
	for _, g := range seed {
		items[g.ID] = g.Clone()
	}
	return &GuildRepository{items: items, now: time.Now}
}

func (r *GuildRepository) Create(_ context.Context, g guild.Guild) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.items {
		if existing.TenantID == g.TenantID && strings.EqualFold(existing.Name, g.Name) {
			return guild.ErrDuplicateName
		}
	}
	r.items[g.ID] = g.Clone()
	return nil
}

func (r *GuildRepository) GetByID(_ context.Context, guildID string) (guild.Guild, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	g, ok := r.items[guildID]
	if !ok {
		return guild.Guild{}, false, nil
	}
	return g.Clone(), true, nil
}

func (r *GuildRepository) GetByName(_ context.Context, tenantID, name string) (guild.Guild, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, g := range r.items {
		if g.TenantID == tenantID && strings.EqualFold(g.Name, name) {
			return g.Clone(), true, nil
		}
	}
	return guild.Guild{}, false, nil
}

func (r *GuildRepository) FindByMember(_ context.Context, tenantID, userID string) (guild.Guild, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, g := range r.sortedLocked(tenantID) {
		for _, id := range g.OccupantIDs() {
			if id == userID {
				return g.Clone(), true, nil
			}
		}
	}
	return guild.Guild{}, false, nil
}

func (r *GuildRepository) ListByTenant(_ context.Context, tenantID string) ([]guild.Guild, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.sortedLocked(tenantID)
	out := make([]guild.Guild, 0, len(items))
	for _, g := range items {
		out = append(out, g.Clone())
	}
	return out, nil
}

func (r *GuildRepository) ConditionalUpdate(_ context.Context, guildID string, pre guild.Precondition, mut guild.Mutation) (guild.UpdateOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[guildID]
	if !ok {
		return guild.UpdateOutcome{Result: guild.UpdateNotFound}, nil
	}

	out, err := guild.Evaluate(current.Clone(), pre, mut)
	if err != nil {
		return guild.UpdateOutcome{}, err
	}
	if out.Result == guild.UpdateApplied {
		out.Guild.UpdatedAt = r.now().UTC()
		r.items[guildID] = out.Guild.Clone()
	}
	return out, nil
}

func (r *GuildRepository) Delete(_ context.Context, guildID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[guildID]; !ok {
		return false, nil
	}
	delete(r.items, guildID)
	return true, nil
}

func (r *GuildRepository) Ping(context.Context) error {
	return nil
}

func (r *GuildRepository) sortedLocked(tenantID string) []guild.Guild {
	out := make([]guild.Guild, 0)
	for _, g := range r.items {
		if g.TenantID == tenantID {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

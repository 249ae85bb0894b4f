package cache

import (
	"context"
	"time"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
	basecache "github.com/riskibarqy/guildhall/internal/platform/cache"
)

// GuildRepository caches guild reads by id. Writes always reach next and then refresh
// the snapshot. A snapshot is only replaced by one with an equal or higher version, so
// a read that raced a write cannot park an older guild in the cache.
type GuildRepository struct {
	next  guild.Repository
	cache *basecache.Store[cachedGuildByID]
}

func NewGuildRepository(next guild.Repository, ttl time.Duration) *GuildRepository {
	return &GuildRepository{next: next, cache: basecache.NewOrderedStore(ttl, supersedes)}
}

func (r *GuildRepository) Create(ctx context.Context, g guild.Guild) error {
	if err := r.next.Create(ctx, g); err != nil {
		r.cache.Delete(ctx, guildKey(g.ID))
		return err
	}
	r.cache.Set(ctx, guildKey(g.ID), cachedGuildByID{value: g.Clone(), exists: true})
	return nil
}

func (r *GuildRepository) GetByID(ctx context.Context, guildID string) (guild.Guild, bool, error) {
	cached, err := r.cache.GetOrLoad(ctx, guildKey(guildID), func(ctx context.Context) (cachedGuildByID, error) {
		item, exists, err := r.next.GetByID(ctx, guildID)
		if err != nil {
			return cachedGuildByID{}, err
		}
		return cachedGuildByID{value: item, exists: exists}, nil
	})
	if err != nil {
		return guild.Guild{}, false, err
	}
	return cached.value.Clone(), cached.exists, nil
}

func (r *GuildRepository) GetByName(ctx context.Context, tenantID, name string) (guild.Guild, bool, error) {
	return r.next.GetByName(ctx, tenantID, name)
}

func (r *GuildRepository) FindByMember(ctx context.Context, tenantID, userID string) (guild.Guild, bool, error) {
	return r.next.FindByMember(ctx, tenantID, userID)
}

func (r *GuildRepository) ListByTenant(ctx context.Context, tenantID string) ([]guild.Guild, error) {
	return r.next.ListByTenant(ctx, tenantID)
}

func (r *GuildRepository) ConditionalUpdate(ctx context.Context, guildID string, pre guild.Precondition, mut guild.Mutation) (guild.UpdateOutcome, error) {
	out, err := r.next.ConditionalUpdate(ctx, guildID, pre, mut)
	if err != nil {
		r.cache.Delete(ctx, guildKey(guildID))
		return out, err
	}
	switch out.Result {
	case guild.UpdateApplied, guild.UpdatePreconditionFailed:
		r.cache.Set(ctx, guildKey(guildID), cachedGuildByID{value: out.Guild.Clone(), exists: true})
	case guild.UpdateNotFound:
		r.cache.Delete(ctx, guildKey(guildID))
	}
	return out, nil
}

func (r *GuildRepository) Delete(ctx context.Context, guildID string) (bool, error) {
	deleted, err := r.next.Delete(ctx, guildID)
	if err != nil {
		r.cache.Delete(ctx, guildKey(guildID))
		return deleted, err
	}
	r.cache.Set(ctx, guildKey(guildID), cachedGuildByID{removed: true})
	return deleted, nil
}

func (r *GuildRepository) Ping(ctx context.Context) error {
	return r.next.Ping(ctx)
}

func guildKey(guildID string) string {
	return "guild:id:" + guildID
}

type cachedGuildByID struct {
	value  guild.Guild
	exists bool
	// removed marks a guild deleted through this repository. Ids are never reused.
	removed bool
}

func supersedes(current, incoming cachedGuildByID) bool {
	switch {
	case current.removed:
		return false
	case incoming.removed:
		return true
	case !incoming.exists:
		return !current.exists
	case !current.exists:
		return true
	}
	return incoming.value.Version >= current.value.Version
}

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
	"github.com/riskibarqy/guildhall/internal/domain/invitation"
	"github.com/riskibarqy/guildhall/internal/infrastructure/repository/memory"
)

type countingGuilds struct {
	*memory.GuildRepository
	gets int
}

func (c *countingGuilds) GetByID(ctx context.Context, guildID string) (guild.Guild, bool, error) {
	c.gets++
	return c.GuildRepository.GetByID(ctx, guildID)
}

func seedGuild() guild.Guild {
	return guild.Guild{
		ID:           "guild-wolves",
		TenantID:     "tenant-1",
		Name:         "Iron Wolves",
		Status:       guild.StatusActive,
		RegisteredBy: "lead",
		Members:      []guild.Member{{UserID: "lead", Role: guild.RoleLeader}},
		Regions:      []guild.Region{{Code: guild.RegionEU, Status: guild.StatusActive, MainRoster: []string{"lead"}}},
		Version:      1,
	}
}

func TestGuildRepository_GetByIDIsCached(t *testing.T) {
	next := &countingGuilds{GuildRepository: memory.NewGuildRepository(seedGuild())}
	repo := NewGuildRepository(next, time.Minute)

	for range 3 {
		g, ok, err := repo.GetByID(t.Context(), "guild-wolves")
		if err != nil || !ok || g.Name != "Iron Wolves" {
			t.Fatalf("get guild: %+v %v %v", g, ok, err)
		}
	}
	if next.gets != 1 {
		t.Fatalf("expected one load, got %d", next.gets)
	}

	if _, ok, _ := repo.GetByID(t.Context(), "guild-none"); ok {
		t.Fatalf("expected missing guild")
	}
	if _, ok, _ := repo.GetByID(t.Context(), "guild-none"); ok {
		t.Fatalf("expected missing guild on second read")
	}
	if next.gets != 2 {
		t.Fatalf("expected misses to be cached too, got %d loads", next.gets)
	}
}

func TestGuildRepository_ConditionalUpdateRefreshesSnapshot(t *testing.T) {
	next := &countingGuilds{GuildRepository: memory.NewGuildRepository(seedGuild())}
	repo := NewGuildRepository(next, time.Minute)

	if _, _, err := repo.GetByID(t.Context(), "guild-wolves"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}
	out, err := repo.ConditionalUpdate(t.Context(), "guild-wolves", guild.Precondition{guild.ManagersExclude("mg1")}, guild.Mutation{guild.PushManager("mg1")})
	if err != nil || out.Result != guild.UpdateApplied {
		t.Fatalf("update: %s (%v)", out.Result, err)
	}

	g, _, _ := repo.GetByID(t.Context(), "guild-wolves")
	if !guild.IsManager(g, "mg1") || g.Version != 2 {
		t.Fatalf("expected refreshed snapshot, got %+v", g)
	}
	if next.gets != 1 {
		t.Fatalf("expected no reload after update, got %d loads", next.gets)
	}

	// Mutating a returned copy must not leak into the cache.
	g.Managers[0] = "tampered"
	again, _, _ := repo.GetByID(t.Context(), "guild-wolves")
	if again.Managers[0] != "mg1" {
		t.Fatalf("cached guild was aliased")
	}
}

func TestGuildRepository_DeleteEvicts(t *testing.T) {
	next := &countingGuilds{GuildRepository: memory.NewGuildRepository(seedGuild())}
	repo := NewGuildRepository(next, time.Minute)

	_, _, _ = repo.GetByID(t.Context(), "guild-wolves")
	deleted, err := repo.Delete(t.Context(), "guild-wolves")
	if err != nil || !deleted {
		t.Fatalf("delete: %v %v", deleted, err)
	}
	if _, ok, _ := repo.GetByID(t.Context(), "guild-wolves"); ok {
		t.Fatalf("expected deleted guild to be gone")
	}
}

// gatedGuilds parks the first GetByID after it has read the store, until release closes.
type gatedGuilds struct {
	*memory.GuildRepository
	once    sync.Once
	loaded  chan struct{}
	release chan struct{}
}

func (g *gatedGuilds) GetByID(ctx context.Context, guildID string) (guild.Guild, bool, error) {
	item, ok, err := g.GuildRepository.GetByID(ctx, guildID)
	g.once.Do(func() {
		close(g.loaded)
		<-g.release
	})
	return item, ok, err
}

func TestGuildRepository_SlowReadDoesNotOverwriteNewerWrite(t *testing.T) {
	next := &gatedGuilds{
		GuildRepository: memory.NewGuildRepository(seedGuild()),
		loaded:          make(chan struct{}),
		release:         make(chan struct{}),
	}
	repo := NewGuildRepository(next, time.Minute)

	read := make(chan guild.Guild, 1)
	go func() {
		g, _, _ := repo.GetByID(context.Background(), "guild-wolves")
		read <- g
	}()

	<-next.loaded
	out, err := repo.ConditionalUpdate(t.Context(), "guild-wolves", guild.Precondition{guild.ManagersExclude("mg1")}, guild.Mutation{guild.PushManager("mg1")})
	if err != nil || out.Result != guild.UpdateApplied {
		t.Fatalf("update: %s (%v)", out.Result, err)
	}
	close(next.release)

	if g := <-read; g.Version != 2 {
		t.Fatalf("expected the slow read to return version 2, got %d", g.Version)
	}
	g, _, _ := repo.GetByID(t.Context(), "guild-wolves")
	if g.Version != 2 || !guild.IsManager(g, "mg1") {
		t.Fatalf("expected cached version 2 with mg1, got %+v", g)
	}
}

func TestGuildRepository_CreateReplacesCachedMiss(t *testing.T) {
	next := &countingGuilds{GuildRepository: memory.NewGuildRepository()}
	repo := NewGuildRepository(next, time.Minute)

	if _, ok, _ := repo.GetByID(t.Context(), "guild-wolves"); ok {
		t.Fatalf("expected miss before create")
	}
	if err := repo.Create(t.Context(), seedGuild()); err != nil {
		t.Fatalf("create: %v", err)
	}
	g, ok, err := repo.GetByID(t.Context(), "guild-wolves")
	if err != nil || !ok || g.Name != "Iron Wolves" {
		t.Fatalf("expected created guild, got %+v %v %v", g, ok, err)
	}
	if next.gets != 1 {
		t.Fatalf("expected create to seed the cache, got %d loads", next.gets)
	}
}

func TestSupersedes(t *testing.T) {
	v := func(version int64) cachedGuildByID {
		return cachedGuildByID{value: guild.Guild{Version: version}, exists: true}
	}
	missing := cachedGuildByID{}
	removed := cachedGuildByID{removed: true}

	cases := []struct {
		name              string
		current, incoming cachedGuildByID
		want              bool
	}{
		{"newer version", v(1), v(2), true},
		{"same version", v(2), v(2), true},
		{"older version", v(3), v(2), false},
		{"miss after hit", v(1), missing, false},
		{"hit after miss", missing, v(1), true},
		{"miss after miss", missing, missing, true},
		{"removal wins", v(4), removed, true},
		{"removal sticks", removed, v(9), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := supersedes(tc.current, tc.incoming); got != tc.want {
				t.Fatalf("supersedes = %t, want %t", got, tc.want)
			}
		})
	}
}

func TestInvitationResolutions(t *testing.T) {
	tracker := NewInvitationResolutions(time.Hour)

	if _, ok, _ := tracker.Resolution(t.Context(), "inv-1"); ok {
		t.Fatalf("expected no resolution yet")
	}
	if err := tracker.MarkResolved(t.Context(), "inv-1", invitation.StateDeclined); err != nil {
		t.Fatalf("mark resolved: %v", err)
	}
	state, ok, err := tracker.Resolution(t.Context(), "inv-1")
	if err != nil || !ok || state != invitation.StateDeclined {
		t.Fatalf("expected declined, got %s %v %v", state, ok, err)
	}
}

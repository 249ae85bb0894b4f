package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/guildhall/internal/domain/cooldown"
	"github.com/riskibarqy/guildhall/internal/domain/guild"
)

func wolves(created time.Time) guild.Guild {
	return guild.Guild{
		ID:           "guild-wolves",
		TenantID:     "tenant-1",
		Name:         "Iron Wolves",
		Status:       guild.StatusActive,
		RegisteredBy: "lead",
		Members: []guild.Member{
			{UserID: "lead", Role: guild.RoleLeader},
			{UserID: "m1", Role: guild.RoleMember},
		},
		Regions: []guild.Region{
			{Code: guild.RegionEU, Status: guild.StatusActive, Elo: guild.DefaultElo, MainRoster: []string{"lead", "m1"}},
		},
		Version:   1,
		CreatedAt: created,
	}
}

func TestGuildRepository_Lookups(t *testing.T) {
	older := wolves(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	newer := wolves(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	newer.ID = "guild-crows"
	newer.Name = "Storm Crows"
	repo := NewGuildRepository(newer, older)
	ctx := context.Background()

	if err := repo.Create(ctx, guild.Guild{ID: "dup", TenantID: "tenant-1", Name: "iron wolves"}); !errors.Is(err, guild.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	g, ok, err := repo.GetByName(ctx, "tenant-1", "STORM CROWS")
	if err != nil || !ok || g.ID != "guild-crows" {
		t.Fatalf("get by name: %s %v %v", g.ID, ok, err)
	}
	if _, ok, _ := repo.GetByName(ctx, "tenant-2", "Storm Crows"); ok {
		t.Fatalf("name lookup must be tenant scoped")
	}

	// m1 sits in both guilds; the oldest wins.
	g, ok, err = repo.FindByMember(ctx, "tenant-1", "m1")
	if err != nil || !ok || g.ID != "guild-wolves" {
		t.Fatalf("find by member: %s %v %v", g.ID, ok, err)
	}

	list, err := repo.ListByTenant(ctx, "tenant-1")
	if err != nil || len(list) != 2 || list[0].ID != "guild-wolves" {
		t.Fatalf("unexpected list %v (%v)", list, err)
	}
}

func TestGuildRepository_ReturnsCopies(t *testing.T) {
	repo := NewGuildRepository(wolves(time.Now()))

	g, _, _ := repo.GetByID(context.Background(), "guild-wolves")
	g.Members[0].Role = guild.RoleMember
	g.Regions[0].MainRoster[0] = "intruder"

	again, _, _ := repo.GetByID(context.Background(), "guild-wolves")
	if !guild.IsLeader(again, "lead") || again.Regions[0].MainRoster[0] != "lead" {
		t.Fatalf("stored guild was modified through a returned copy")
	}
}

func TestGuildRepository_ConditionalUpdate(t *testing.T) {
	repo := NewGuildRepository(wolves(time.Now()))
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return fixed }
	ctx := context.Background()

	pre := guild.Precondition{guild.ManagersBelow(guild.MaxManagers), guild.ManagersExclude("mg1")}
	mut := guild.Mutation{guild.PushManager("mg1")}

	out, err := repo.ConditionalUpdate(ctx, "guild-wolves", pre, mut)
	if err != nil || out.Result != guild.UpdateApplied {
		t.Fatalf("first update: %s (%v)", out.Result, err)
	}
	if out.Guild.Version != 2 || !out.Guild.UpdatedAt.Equal(fixed) {
		t.Fatalf("unexpected version/updated_at %d %v", out.Guild.Version, out.Guild.UpdatedAt)
	}

	out, err = repo.ConditionalUpdate(ctx, "guild-wolves", pre, mut)
	if err != nil || out.Result != guild.UpdatePreconditionFailed {
		t.Fatalf("second update: %s (%v)", out.Result, err)
	}
	if out.FailedCondition == "" || out.Guild.Version != 2 {
		t.Fatalf("refusal must report the failed condition and observed state, got %+v", out)
	}

	out, err = repo.ConditionalUpdate(ctx, "guild-none", pre, mut)
	if err != nil || out.Result != guild.UpdateNotFound {
		t.Fatalf("missing guild: %s (%v)", out.Result, err)
	}
}

func TestGuildRepository_Delete(t *testing.T) {
	repo := NewGuildRepository(wolves(time.Now()))
	ctx := context.Background()

	deleted, err := repo.Delete(ctx, "guild-wolves")
	if err != nil || !deleted {
		t.Fatalf("delete: %v %v", deleted, err)
	}
	deleted, err = repo.Delete(ctx, "guild-wolves")
	if err != nil || deleted {
		t.Fatalf("second delete must report nothing removed: %v %v", deleted, err)
	}
	if _, ok, _ := repo.FindByMember(ctx, "tenant-1", "lead"); ok {
		t.Fatalf("deleted guild must not resolve members")
	}
}

func TestCooldownRepository(t *testing.T) {
	now := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	repo := NewCooldownRepository(24 * time.Hour)
	repo.SetNow(func() time.Time { return now })
	ctx := context.Background()

	status, err := repo.Status(ctx, "tenant-1", "u1")
	if err != nil || status.Active {
		t.Fatalf("expected no cooldown for an unknown user, got %+v (%v)", status, err)
	}

	left := now.Add(-2 * time.Hour)
	if err := repo.RecordLeave(ctx, cooldown.Event{TenantID: "tenant-1", UserID: "u1", GuildID: "guild-wolves", LeftAt: left}); err != nil {
		t.Fatalf("record leave: %v", err)
	}
	// An older event never replaces a newer one.
	if err := repo.RecordLeave(ctx, cooldown.Event{TenantID: "tenant-1", UserID: "u1", GuildID: "guild-old", LeftAt: left.Add(-time.Hour)}); err != nil {
		t.Fatalf("record older leave: %v", err)
	}

	status, err = repo.Status(ctx, "tenant-1", "u1")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Active || status.Remaining != 22*time.Hour || status.LastLeftGuildID != "guild-wolves" {
		t.Fatalf("unexpected status %+v", status)
	}

	if status, _ := repo.Status(ctx, "tenant-2", "u1"); status.Active {
		t.Fatalf("cooldown must be tenant scoped")
	}

	repo.SetNow(func() time.Time { return now.Add(23 * time.Hour) })
	if status, _ := repo.Status(ctx, "tenant-1", "u1"); status.Active {
		t.Fatalf("expected cooldown to lapse after the window")
	}
}

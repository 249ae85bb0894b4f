package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
	"github.com/riskibarqy/guildhall/internal/domain/invitation"
	"github.com/riskibarqy/guildhall/internal/domain/notification"
	"github.com/riskibarqy/guildhall/internal/infrastructure/repository/memory"
	idgen "github.com/riskibarqy/guildhall/internal/platform/id"
	"github.com/riskibarqy/guildhall/internal/platform/logging"
)

const testTenant = "tenant-1"

var testNow = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

type staticIDGenerator struct {
	id string
}

func (g staticIDGenerator) NewID() (string, error) {
	return g.id, nil
}

// recordingGateway accepts every delivery directly unless the user is listed in
// refuseDirect.
type recordingGateway struct {
	settle       func()
	mu           sync.Mutex
	refuseDirect map[string]bool
	delivered    []deliveredPayload
}

type deliveredPayload struct {
	userID  string
	payload notification.Payload
	via     notification.Channel
}

func (g *recordingGateway) Deliver(_ context.Context, _ string, userID string, payload notification.Payload, dc notification.DeliveryContext) (notification.DeliveryReceipt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	via := notification.ChannelDirect
	if g.refuseDirect[userID] {
		if !dc.AllowFallback {
			return notification.DeliveryReceipt{}, fmt.Errorf("direct messages closed for %s", userID)
		}
		via = notification.ChannelFallback
	}
	g.delivered = append(g.delivered, deliveredPayload{userID: userID, payload: payload, via: via})
	return notification.DeliveryReceipt{Delivered: true, Via: via}, nil
}

func (g *recordingGateway) kinds(userID string) []notification.Kind {
	g.settle()
	g.mu.Lock()
	defer g.mu.Unlock()

	var out []notification.Kind
	for _, d := range g.delivered {
		if d.userID == userID {
			out = append(out, d.payload.Kind)
		}
	}
	return out
}

type recordingRoles struct {
	settle  func()
	mu      sync.Mutex
	changes []notification.RoleChange
}

func (r *recordingRoles) Grant(_ context.Context, change notification.RoleChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return nil
}

func (r *recordingRoles) Revoke(ctx context.Context, change notification.RoleChange) error {
	return r.Grant(ctx, change)
}

func (r *recordingRoles) has(userID string, role notification.RoleKind, grant bool) bool {
	r.settle()
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, c := range r.changes {
		if c.UserID == userID && c.Role == role && c.Grant == grant {
			return true
		}
	}
	return false
}

// mapCodec keeps invitations in memory and hands out sequential handles.
type mapCodec struct {
	mu      sync.Mutex
	items   map[invitation.Handle]invitation.Invitation
	expired map[invitation.Handle]bool
}

func newMapCodec() *mapCodec {
	return &mapCodec{
		items:   make(map[invitation.Handle]invitation.Invitation),
		expired: make(map[invitation.Handle]bool),
	}
}

func (c *mapCodec) Encode(inv invitation.Invitation) (invitation.Handle, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	h := invitation.Handle(fmt.Sprintf("handle-%d", len(c.items)+1))
	c.items[h] = inv
	return h, nil
}

func (c *mapCodec) Decode(h invitation.Handle) (invitation.Invitation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.expired[h] {
		return invitation.Invitation{}, invitation.ErrExpiredHandle
	}
	inv, ok := c.items[h]
	if !ok {
		return invitation.Invitation{}, invitation.ErrInvalidHandle
	}
	return inv, nil
}

type mapTracker struct {
	mu     sync.Mutex
	states map[string]invitation.State
}

func (m *mapTracker) MarkResolved(_ context.Context, id string, state invitation.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states == nil {
		m.states = make(map[string]invitation.State)
	}
	m.states[id] = state
	return nil
}

func (m *mapTracker) Resolution(_ context.Context, id string) (invitation.State, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	state, ok := m.states[id]
	return state, ok, nil
}

type harness struct {
	guilds      *memory.GuildRepository
	cooldowns   *memory.CooldownRepository
	gateway     *recordingGateway
	roles       *recordingRoles
	codec       *mapCodec
	tracker     *mapTracker
	engine      *MutationEngine
	roster      *RosterService
	invitations *InvitationService
	guildSvc    *GuildService
}

func newHarness(t *testing.T, seed ...guild.Guild) *harness {
	t.Helper()

	logger := logging.NewNop()
	h := &harness{
		guilds:    memory.NewGuildRepository(seed...),
		cooldowns: memory.NewCooldownRepository(24 * time.Hour),
		gateway:   &recordingGateway{refuseDirect: map[string]bool{}},
		roles:     &recordingRoles{},
		codec:     newMapCodec(),
		tracker:   &mapTracker{},
	}
	h.cooldowns.SetNow(func() time.Time { return testNow })

	notifier, err := NewLifecycleNotifier(h.gateway, h.roles, 4, logger)
	if err != nil {
		t.Fatalf("create notifier: %v", err)
	}
	t.Cleanup(notifier.Close)
	h.gateway.settle = notifier.Flush
	h.roles.settle = notifier.Flush

	h.engine = NewMutationEngine(h.guilds, logger)
	h.roster = NewRosterService(h.guilds, h.engine, h.cooldowns, notifier, logger)
	h.roster.now = func() time.Time { return testNow }
	h.invitations = NewInvitationService(h.guilds, h.engine, h.roster, h.codec, h.tracker, notifier,
		idgen.NewSequence("inv-1", "inv-2", "inv-3", "inv-4", "inv-5", "inv-6", "inv-7", "inv-8"), 0, logger)
	h.invitations.now = func() time.Time { return testNow }
	h.guildSvc = NewGuildService(h.guilds, h.engine, h.cooldowns, notifier, staticIDGenerator{id: "guild-new"}, logger)
	h.guildSvc.now = func() time.Time { return testNow }
	return h
}

func (h *harness) guild(t *testing.T, id string) guild.Guild {
	t.Helper()
	g, ok, err := h.guilds.GetByID(t.Context(), id)
	if err != nil || !ok {
		t.Fatalf("get guild %s: ok=%v err=%v", id, ok, err)
	}
	return g
}

// invite creates an invitation and returns its handle, failing the test on error.
func (h *harness) invite(t *testing.T, input CreateInvitationInput) invitation.Handle {
	t.Helper()
	if input.TenantID == "" {
		input.TenantID = testTenant
	}
	created, err := h.invitations.CreateInvitation(t.Context(), input)
	if err != nil {
		t.Fatalf("create %s invitation: %v", input.Type, err)
	}
	return created.Handle
}

// ironWolves has leader "lead", plain member "m1", and an active EU region with m1 on
// the main roster. NA is inactive.
func ironWolves() guild.Guild {
	created := testNow.Add(-30 * 24 * time.Hour)
	return guild.Guild{
		ID:           "guild-wolves",
		TenantID:     testTenant,
		Name:         "Iron Wolves",
		Status:       guild.StatusActive,
		RegisteredBy: "lead",
		Members: []guild.Member{
			{UserID: "lead", Role: guild.RoleLeader, JoinedAt: created},
			{UserID: "m1", Role: guild.RoleMember, JoinedAt: created},
		},
		Regions: []guild.Region{
			{Code: guild.RegionEU, Elo: guild.DefaultElo, Status: guild.StatusActive, MainRoster: []string{"lead", "m1"}},
			{Code: guild.RegionNA, Elo: guild.DefaultElo, Status: guild.StatusInactive},
		},
		Version:   1,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

func stormCrows() guild.Guild {
	created := testNow.Add(-10 * 24 * time.Hour)
	return guild.Guild{
		ID:           "guild-crows",
		TenantID:     testTenant,
		Name:         "Storm Crows",
		Status:       guild.StatusActive,
		RegisteredBy: "crow-lead",
		Members: []guild.Member{
			{UserID: "crow-lead", Role: guild.RoleLeader, JoinedAt: created},
		},
		Regions: []guild.Region{
			{Code: guild.RegionEU, Elo: guild.DefaultElo, Status: guild.StatusActive, MainRoster: []string{"crow-lead"}},
		},
		Version:   1,
		CreatedAt: created,
		UpdatedAt: created,
	}
}

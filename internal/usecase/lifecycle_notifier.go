package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"github.com/sourcegraph/conc/panics"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
	"github.com/riskibarqy/guildhall/internal/domain/invitation"
	"github.com/riskibarqy/guildhall/internal/domain/notification"
	"github.com/riskibarqy/guildhall/internal/platform/logging"
)

// LifecycleNotifier fans out messages and role sync after a guild change. Nothing it
// does can fail the command that triggered it: every error is logged and dropped.
// Work runs in the background; callers only block while every worker is busy.
type LifecycleNotifier struct {
	gateway  notification.Gateway
	roles    notification.RoleSync
	pool     *ants.Pool
	logger   *logging.Logger
	inflight tasksInFlight
}

// tasksInFlight counts queued tasks. add may run concurrently with wait.
type tasksInFlight struct {
	mu   sync.Mutex
	idle *sync.Cond
	n    int
}

func (t *tasksInFlight) add() {
	t.mu.Lock()
	t.n++
	t.mu.Unlock()
}

func (t *tasksInFlight) done() {
	t.mu.Lock()
	t.n--
	if t.n == 0 && t.idle != nil {
		t.idle.Broadcast()
	}
	t.mu.Unlock()
}

func (t *tasksInFlight) wait() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.idle == nil {
		t.idle = sync.NewCond(&t.mu)
	}
	for t.n > 0 {
		t.idle.Wait()
	}
}

func NewLifecycleNotifier(gateway notification.Gateway, roles notification.RoleSync, workers int, logger *logging.Logger) (*LifecycleNotifier, error) {
	if workers < 1 {
		workers = 1
	}
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, fmt.Errorf("create notifier pool: %w", err)
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LifecycleNotifier{
		gateway: gateway,
		roles:   roles,
		pool:    pool,
		logger:  logger.Named("lifecycle_notifier"),
	}, nil
}

// Flush waits for every task submitted so far.
func (n *LifecycleNotifier) Flush() {
	if n == nil {
		return
	}
	n.inflight.wait()
}

// Close drains in-flight work and releases the pool. Later dispatches run inline.
func (n *LifecycleNotifier) Close() {
	if n == nil || n.pool == nil {
		return
	}
	n.inflight.wait()
	n.pool.Release()
}

// DeliverInvitation sends the invitation to its target, falling back to the guild
// channel when direct delivery is refused.
func (n *LifecycleNotifier) DeliverInvitation(ctx context.Context, inv invitation.Invitation, handle invitation.Handle) notification.DeliveryReceipt {
	if n == nil || n.gateway == nil {
		return notification.DeliveryReceipt{}
	}
	payload := notification.Payload{
		Kind:             notification.KindInvitation,
		Title:            invitationTitle(inv),
		Body:             fmt.Sprintf("%s invited you. Accept or decline from this message.", inv.InviterUserID),
		GuildID:          inv.GuildID,
		GuildName:        inv.GuildName,
		InvitationID:     inv.ID,
		InvitationType:   string(inv.Type),
		InvitationHandle: string(handle),
		ActorUserID:      inv.InviterUserID,
	}
	receipt, err := n.gateway.Deliver(context.WithoutCancel(ctx), inv.TenantID, inv.TargetUserID, payload, notification.DeliveryContext{
		GuildID:       inv.GuildID,
		AllowFallback: true,
	})
	if err != nil {
		n.logger.WarnContext(ctx, "deliver invitation failed",
			"tenant_id", inv.TenantID,
			"guild_id", inv.GuildID,
			"user_id", inv.TargetUserID,
			"invitation_type", inv.Type,
			"error", err,
		)
		return notification.DeliveryReceipt{}
	}
	return receipt
}

func (n *LifecycleNotifier) InvitationAccepted(ctx context.Context, inv invitation.Invitation, g guild.Guild, changes []notification.RoleChange) {
	payload := notification.Payload{
		Kind:           notification.KindInvitationAccepted,
		Title:          invitationTitle(inv),
		Body:           fmt.Sprintf("%s accepted the invitation to %s.", inv.TargetUserID, g.Name),
		GuildID:        g.ID,
		GuildName:      g.Name,
		InvitationID:   inv.ID,
		InvitationType: string(inv.Type),
		ActorUserID:    inv.TargetUserID,
	}
	recipients := []string{inv.InviterUserID}
	if inv.Context.OldHolderID != "" {
		recipients = append(recipients, inv.Context.OldHolderID)
	}
	n.dispatch(ctx, inv.TenantID, changes, recipients, payload)
}

func (n *LifecycleNotifier) InvitationDeclined(ctx context.Context, inv invitation.Invitation) {
	payload := notification.Payload{
		Kind:           notification.KindInvitationDeclined,
		Title:          invitationTitle(inv),
		Body:           fmt.Sprintf("%s declined the invitation.", inv.TargetUserID),
		GuildID:        inv.GuildID,
		GuildName:      inv.GuildName,
		InvitationID:   inv.ID,
		InvitationType: string(inv.Type),
		ActorUserID:    inv.TargetUserID,
	}
	n.dispatch(ctx, inv.TenantID, nil, []string{inv.InviterUserID}, payload)
}

// RoleChanged syncs roles and tells the affected users about a direct change.
func (n *LifecycleNotifier) RoleChanged(ctx context.Context, g guild.Guild, actorID, body string, changes []notification.RoleChange) {
	recipients := make([]string, 0, len(changes))
	for _, c := range changes {
		if c.UserID != actorID {
			recipients = append(recipients, c.UserID)
		}
	}
	payload := notification.Payload{
		Kind:        notification.KindRoleChanged,
		Title:       fmt.Sprintf("Update from %s", g.Name),
		Body:        body,
		GuildID:     g.ID,
		GuildName:   g.Name,
		ActorUserID: actorID,
	}
	n.dispatch(ctx, g.TenantID, changes, uniqueIDs(recipients), payload)
}

// GuildDeleted revokes every guild role and notifies everyone who held one.
func (n *LifecycleNotifier) GuildDeleted(ctx context.Context, g guild.Guild, actorID string) {
	changes := revokeAllRoles(g)
	recipients := make([]string, 0, len(changes))
	for _, c := range changes {
		if c.UserID != actorID {
			recipients = append(recipients, c.UserID)
		}
	}
	payload := notification.Payload{
		Kind:        notification.KindGuildDeleted,
		Title:       fmt.Sprintf("%s was disbanded", g.Name),
		Body:        "The guild was deleted and your guild roles were removed.",
		GuildID:     g.ID,
		GuildName:   g.Name,
		ActorUserID: actorID,
	}
	n.dispatch(ctx, g.TenantID, changes, uniqueIDs(recipients), payload)
}

// dispatch queues every role change and message on the pool.
func (n *LifecycleNotifier) dispatch(ctx context.Context, tenantID string, changes []notification.RoleChange, recipients []string, payload notification.Payload) {
	if n == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)

	tasks := make([]func(), 0, len(changes)+len(recipients))
	for _, change := range changes {
		tasks = append(tasks, func() { n.syncRole(ctx, change) })
	}
	for _, userID := range recipients {
		if userID == "" {
			continue
		}
		tasks = append(tasks, func() { n.deliver(ctx, tenantID, userID, payload) })
	}
	n.run(ctx, tasks)
}

func (n *LifecycleNotifier) run(ctx context.Context, tasks []func()) {
	for _, task := range tasks {
		n.inflight.add()
		guarded := func() {
			defer n.inflight.done()
			var pc panics.Catcher
			pc.Try(task)
			if r := pc.Recovered(); r != nil {
				n.logger.ErrorContext(ctx, "notifier task panicked", "panic", r.String())
			}
		}
		if err := n.pool.Submit(guarded); err != nil {
			n.logger.WarnContext(ctx, "notifier pool rejected task, running inline", "error", err)
			guarded()
		}
	}
}

func (n *LifecycleNotifier) syncRole(ctx context.Context, change notification.RoleChange) {
	if n.roles == nil {
		return
	}
	var err error
	if change.Grant {
		err = n.roles.Grant(ctx, change)
	} else {
		err = n.roles.Revoke(ctx, change)
	}
	if err != nil {
		n.logger.WarnContext(ctx, "role sync failed",
			"tenant_id", change.TenantID,
			"guild_id", change.GuildID,
			"user_id", change.UserID,
			"role", change.Role,
			"grant", change.Grant,
			"error", err,
		)
	}
}

func (n *LifecycleNotifier) deliver(ctx context.Context, tenantID, userID string, payload notification.Payload) {
	if n.gateway == nil {
		return
	}
	_, err := n.gateway.Deliver(ctx, tenantID, userID, payload, notification.DeliveryContext{GuildID: payload.GuildID})
	if err != nil {
		n.logger.WarnContext(ctx, "notification delivery failed",
			"tenant_id", tenantID,
			"guild_id", payload.GuildID,
			"user_id", userID,
			"kind", payload.Kind,
			"error", err,
		)
	}
}

func invitationTitle(inv invitation.Invitation) string {
	switch inv.Type {
	case invitation.TypeLeaderTransfer:
		return fmt.Sprintf("Leadership of %s", inv.GuildName)
	case invitation.TypeCoLeaderAdd, invitation.TypeCoLeaderReplace:
		return fmt.Sprintf("Co-leader of %s", inv.GuildName)
	case invitation.TypeManagerAdd:
		return fmt.Sprintf("Manager of %s", inv.GuildName)
	default:
		return fmt.Sprintf("%s %s roster of %s", inv.Context.Region, inv.Context.Roster, inv.GuildName)
	}
}

func roleChange(g guild.Guild, userID string, role notification.RoleKind, grant bool, correlationID string) notification.RoleChange {
	return notification.RoleChange{
		TenantID:      g.TenantID,
		GuildID:       g.ID,
		UserID:        userID,
		Role:          role,
		Grant:         grant,
		CorrelationID: correlationID,
	}
}

func revokeAllRoles(g guild.Guild) []notification.RoleChange {
	var changes []notification.RoleChange
	if leader := guild.LeaderID(g); leader != "" {
		changes = append(changes, roleChange(g, leader, notification.RoleGuildLeader, false, g.ID))
	}
	if co := guild.CoLeaderID(g); co != "" {
		changes = append(changes, roleChange(g, co, notification.RoleGuildCoLeader, false, g.ID))
	}
	for _, m := range g.Managers {
		changes = append(changes, roleChange(g, m, notification.RoleGuildManager, false, g.ID))
	}
	for _, id := range g.OccupantIDs() {
		changes = append(changes, roleChange(g, id, notification.RoleGuildMember, false, g.ID))
	}
	return changes
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

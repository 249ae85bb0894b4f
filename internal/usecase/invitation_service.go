package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
	"github.com/riskibarqy/guildhall/internal/domain/invitation"
	"github.com/riskibarqy/guildhall/internal/domain/notification"
	idgen "github.com/riskibarqy/guildhall/internal/platform/id"
	"github.com/riskibarqy/guildhall/internal/platform/logging"
)

type CreateInvitationInput struct {
	Type              string
	TenantID          string
	GuildID           string
	InviterUserID     string
	InviterIsAdmin    bool
	TargetUserID      string
	TargetDisplayName string
	Region            string
	Roster            string
}

type CreatedInvitation struct {
	Invitation   invitation.Invitation
	Handle       invitation.Handle
	State        invitation.State
	DeliveredVia notification.Channel
}

type RespondInvitationInput struct {
	Handle       string
	ActingUserID string
}

// InvitationService issues invitations and resolves responses to them. Invitations
// are not stored: accepting one replays the command against the guild as it is now.
type InvitationService struct {
	guilds   guild.Repository
	engine   *MutationEngine
	roster   *RosterService
	codec    invitation.Codec
	tracker  invitation.ResolutionTracker
	notifier *LifecycleNotifier
	idGen    idgen.Generator
	ttl      time.Duration
	logger   *logging.Logger
	now      func() time.Time
}

func NewInvitationService(
	guilds guild.Repository,
	engine *MutationEngine,
	roster *RosterService,
	codec invitation.Codec,
	tracker invitation.ResolutionTracker,
	notifier *LifecycleNotifier,
	idGen idgen.Generator,
	ttl time.Duration,
	logger *logging.Logger,
) *InvitationService {
	if logger == nil {
		logger = logging.Default()
	}
	return &InvitationService{
		guilds:   guilds,
		engine:   engine,
		roster:   roster,
		codec:    codec,
		tracker:  tracker,
		notifier: notifier,
		idGen:    idGen,
		ttl:      ttl,
		logger:   logger.Named("invitation"),
		now:      time.Now,
	}
}

func (s *InvitationService) CreateInvitation(ctx context.Context, input CreateInvitationInput) (CreatedInvitation, error) {
	inv, err := s.parseCreateInput(input)
	if err != nil {
		return CreatedInvitation{}, err
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.InvitationService.CreateInvitation", guildAttrs(inv.TenantID, inv.GuildID)...)
	defer span.End()

	g, ok, err := s.guilds.GetByID(ctx, inv.GuildID)
	if err != nil {
		return CreatedInvitation{}, fmt.Errorf("%w: get guild: %v", ErrStoreUnavailable, err)
	}
	if !ok || g.TenantID != inv.TenantID {
		return CreatedInvitation{}, fmt.Errorf("%w: guild %s does not exist", ErrNotFound, inv.GuildID)
	}
	inv.GuildName = g.Name

	if !canInvite(g, inv.Type, inv.InviterUserID, input.InviterIsAdmin) {
		return CreatedInvitation{}, fmt.Errorf("%w: you cannot send a %s invitation for %s", ErrUnauthorized, inv.Type, g.Name)
	}
	if refusal := s.checkIssuable(ctx, g, &inv); refusal != nil {
		return CreatedInvitation{}, refusal.Err()
	}

	inv.ID, err = s.idGen.NewID()
	if err != nil {
		return CreatedInvitation{}, fmt.Errorf("generate invitation id: %w", err)
	}
	inv.CreatedAt = s.now().UTC()
	if s.ttl > 0 {
		expiresAt := inv.CreatedAt.Add(s.ttl)
		inv.ExpiresAt = &expiresAt
	}

	handle, err := s.codec.Encode(inv)
	if err != nil {
		return CreatedInvitation{}, fmt.Errorf("encode invitation handle: %w", err)
	}

	created := CreatedInvitation{Invitation: inv, Handle: handle, State: invitation.StateCreated}
	if receipt := s.notifier.DeliverInvitation(ctx, inv, handle); receipt.Delivered {
		created.State = invitation.StateDelivered
		created.DeliveredVia = receipt.Via
	}

	s.logger.InfoContext(ctx, "invitation created",
		"tenant_id", inv.TenantID,
		"guild_id", inv.GuildID,
		"invitation_id", inv.ID,
		"invitation_type", inv.Type,
		"state", created.State,
	)
	return created, nil
}

// checkIssuable validates the target against the guild as it is now and captures the
// context the acceptance will be checked against.
func (s *InvitationService) checkIssuable(ctx context.Context, g guild.Guild, inv *invitation.Invitation) *Result {
	target := inv.TargetUserID
	switch inv.Type {
	case invitation.TypeLeaderTransfer:
		if guild.IsLeader(g, target) {
			r := resultf(OutcomeAlreadyHolds, g, "%s already leads %s", target, g.Name)
			return &r
		}
		inv.Context.PreviousLeaderID = guild.LeaderID(g)
	case invitation.TypeCoLeaderAdd:
		if guild.IsLeader(g, target) {
			r := resultf(OutcomeIneligible, g, "the leader of %s cannot also be its co-leader", g.Name)
			return &r
		}
		if guild.IsCoLeader(g, target) {
			r := resultf(OutcomeAlreadyHolds, g, "%s is already co-leader of %s", target, g.Name)
			return &r
		}
		if current := guild.CoLeaderID(g); current != "" {
			r := resultf(OutcomeIneligible, g, "%s already has a co-leader (%s); send a replacement invitation instead", g.Name, current)
			return &r
		}
	case invitation.TypeCoLeaderReplace:
		current := guild.CoLeaderID(g)
		switch {
		case current == "":
			r := resultf(OutcomeIneligible, g, "%s has no co-leader to replace; send a co-leader invitation instead", g.Name)
			return &r
		case current == target:
			r := resultf(OutcomeAlreadyHolds, g, "%s is already co-leader of %s", target, g.Name)
			return &r
		case guild.IsLeader(g, target):
			r := resultf(OutcomeIneligible, g, "the leader of %s cannot also be its co-leader", g.Name)
			return &r
		}
		inv.Context.OldHolderID = current
	case invitation.TypeManagerAdd:
		if guild.IsManager(g, target) {
			r := resultf(OutcomeAlreadyHolds, g, "%s is already a manager of %s", target, g.Name)
			return &r
		}
		if !guild.HasCapacity(g.Managers, guild.MaxManagers) {
			r := resultf(OutcomeCapacityReached, g, "%s already has %d managers", g.Name, guild.MaxManagers)
			return &r
		}
	case invitation.TypeRosterAdd:
		region, ok := g.Region(inv.Context.Region)
		if !ok {
			r := resultf(OutcomeNotFound, g, "%s does not compete in %s", g.Name, inv.Context.Region)
			return &r
		}
		if region.Status != guild.StatusActive {
			r := resultf(OutcomeIneligible, g, "the %s region of %s is %s", region.Code, g.Name, region.Status)
			return &r
		}
		list := g.RosterFor(inv.Context.Region, inv.Context.Roster)
		slot := rosterSlot(inv.Context.Region, inv.Context.Roster)
		if slot.heldBy(g, target) {
			r := resultf(OutcomeAlreadyHolds, g, "%s is already on the %s", target, slot)
			return &r
		}
		if !guild.HasCapacity(list, guild.MaxRosterSize) {
			r := resultf(OutcomeCapacityReached, g, "the %s of %s is full", slot, g.Name)
			return &r
		}
	}
	return checkExclusivity(ctx, s.guilds, inv.TenantID, target, g.ID)
}

// Accept applies an invitation on behalf of its target.
func (s *InvitationService) Accept(ctx context.Context, input RespondInvitationInput) (Result, error) {
	inv, stale, err := s.openHandle(input)
	if err != nil || stale != nil {
		return derefResult(stale), err
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.InvitationService.Accept", guildAttrs(inv.TenantID, inv.GuildID)...)
	defer span.End()

	if state, resolved := s.resolution(ctx, inv.ID); resolved && state == invitation.StateDeclined {
		return Result{Outcome: OutcomeStale, Message: "this invitation was already declined", Invitation: &inv}, nil
	}

	result := s.accept(ctx, inv)
	result.Invitation = &inv
	if result.Outcome == OutcomeApplied {
		s.markResolved(ctx, inv, invitation.StateAccepted)
	} else {
		s.logger.InfoContext(ctx, "invitation refused",
			"tenant_id", inv.TenantID,
			"guild_id", inv.GuildID,
			"invitation_id", inv.ID,
			"invitation_type", inv.Type,
			"outcome", result.Outcome,
		)
	}
	return result, nil
}

func (s *InvitationService) accept(ctx context.Context, inv invitation.Invitation) Result {
	if inv.Type == invitation.TypeRosterAdd {
		return s.roster.admit(ctx, rosterRequest{
			tenantID:      inv.TenantID,
			guildID:       inv.GuildID,
			actorID:       inv.TargetUserID,
			viaInvitation: true,
			correlationID: inv.ID,
			member:        guild.Member{UserID: inv.TargetUserID, DisplayName: inv.TargetName},
			region:        inv.Context.Region,
			roster:        inv.Context.Roster,
		})
	}

	g, refusal := loadGuild(ctx, s.guilds, inv.TenantID, inv.GuildID)
	if refusal != nil {
		return *refusal
	}
	if r := checkExclusivity(ctx, s.guilds, inv.TenantID, inv.TargetUserID, g.ID); r != nil {
		return *r
	}

	target := guild.Member{UserID: inv.TargetUserID, DisplayName: inv.TargetName, JoinedAt: s.now().UTC()}
	switch inv.Type {
	case invitation.TypeLeaderTransfer:
		return s.acceptLeaderTransfer(ctx, inv, g, target)
	case invitation.TypeCoLeaderAdd:
		return s.acceptCoLeader(ctx, inv, g, target)
	case invitation.TypeCoLeaderReplace:
		return s.acceptCoLeaderReplace(ctx, inv, g, target)
	case invitation.TypeManagerAdd:
		return s.acceptManager(ctx, inv, g)
	default:
		return resultf(OutcomeStateConflict, g, "unsupported invitation type %s", inv.Type)
	}
}

func (s *InvitationService) acceptLeaderTransfer(ctx context.Context, inv invitation.Invitation, g guild.Guild, target guild.Member) Result {
	if guild.IsLeader(g, target.UserID) {
		return applied(g, fmt.Sprintf("%s already leads %s", target.UserID, g.Name))
	}
	prev := inv.Context.PreviousLeaderID
	if prev == "" {
		prev = inv.InviterUserID
	}

	combined, fallback := leaderTransferSteps(g, prev, target)
	out, err := s.engine.ApplyTwoPhase(ctx, g.ID, combined, fallback...)
	if r, done := settle(ctx, s.engine, g.ID, out, err, leaderSlot(), target.UserID, prev); done {
		if r.Outcome == OutcomeAlreadyHolds {
			r.Outcome = OutcomeApplied
		}
		return r
	}

	changes := []notification.RoleChange{
		roleChange(out.Guild, target.UserID, notification.RoleGuildLeader, true, inv.ID),
		roleChange(out.Guild, prev, notification.RoleGuildLeader, false, inv.ID),
	}
	if guild.IsCoLeader(g, target.UserID) {
		changes = append(changes, roleChange(out.Guild, target.UserID, notification.RoleGuildCoLeader, false, inv.ID))
	}
	if appliedStep(out, stepInsert) {
		changes = append(changes, roleChange(out.Guild, target.UserID, notification.RoleGuildMember, true, inv.ID))
	}
	s.notifier.InvitationAccepted(ctx, inv, out.Guild, changes)
	return applied(out.Guild, fmt.Sprintf("%s is now the leader of %s", target.UserID, out.Guild.Name))
}

func (s *InvitationService) acceptCoLeader(ctx context.Context, inv invitation.Invitation, g guild.Guild, target guild.Member) Result {
	if guild.IsLeader(g, target.UserID) {
		return resultf(OutcomeIneligible, g, "the leader of %s cannot also be its co-leader", g.Name)
	}

	combined, fallback := coLeaderAddSteps(target)
	out, err := s.engine.ApplyTwoPhase(ctx, g.ID, combined, fallback...)
	if r, done := settle(ctx, s.engine, g.ID, out, err, coLeaderSlot(), target.UserID, ""); done {
		return r
	}

	changes := []notification.RoleChange{
		roleChange(out.Guild, target.UserID, notification.RoleGuildCoLeader, true, inv.ID),
	}
	if appliedStep(out, stepInsert) {
		changes = append(changes, roleChange(out.Guild, target.UserID, notification.RoleGuildMember, true, inv.ID))
	}
	s.notifier.InvitationAccepted(ctx, inv, out.Guild, changes)
	return applied(out.Guild, fmt.Sprintf("%s is now co-leader of %s", target.UserID, out.Guild.Name))
}

func (s *InvitationService) acceptCoLeaderReplace(ctx context.Context, inv invitation.Invitation, g guild.Guild, target guild.Member) Result {
	if guild.IsLeader(g, target.UserID) {
		return resultf(OutcomeIneligible, g, "the leader of %s cannot also be its co-leader", g.Name)
	}
	oldHolder := inv.Context.OldHolderID

	combined, fallback := coLeaderReplaceSteps(oldHolder, target)
	out, err := s.engine.ApplyTwoPhase(ctx, g.ID, combined, fallback...)

	demoted := out.Result == guild.UpdateApplied || appliedStep(out, stepDemote)
	var changes []notification.RoleChange
	if demoted && oldHolder != "" {
		changes = append(changes, roleChange(g, oldHolder, notification.RoleGuildCoLeader, false, inv.ID))
	}

	expected := oldHolder
	if appliedStep(out, stepDemote) {
		expected = ""
	}
	if r, done := settle(ctx, s.engine, g.ID, out, err, coLeaderSlot(), target.UserID, expected); done {
		if len(changes) > 0 {
			s.notifier.RoleChanged(ctx, g, inv.TargetUserID, fmt.Sprintf("%s is no longer co-leader of %s.", oldHolder, g.Name), changes)
		}
		return r
	}

	changes = append(changes, roleChange(out.Guild, target.UserID, notification.RoleGuildCoLeader, true, inv.ID))
	if appliedStep(out, stepInsert) {
		changes = append(changes, roleChange(out.Guild, target.UserID, notification.RoleGuildMember, true, inv.ID))
	}
	s.notifier.InvitationAccepted(ctx, inv, out.Guild, changes)
	return applied(out.Guild, fmt.Sprintf("%s replaced %s as co-leader of %s", target.UserID, oldHolder, out.Guild.Name))
}

func (s *InvitationService) acceptManager(ctx context.Context, inv invitation.Invitation, g guild.Guild) Result {
	out, err := s.engine.Apply(ctx, g.ID, managerAddStep(inv.TargetUserID))
	if r, done := settle(ctx, s.engine, g.ID, out, err, managerSlot(), inv.TargetUserID, ""); done {
		return r
	}
	s.notifier.InvitationAccepted(ctx, inv, out.Guild, []notification.RoleChange{
		roleChange(out.Guild, inv.TargetUserID, notification.RoleGuildManager, true, inv.ID),
	})
	return applied(out.Guild, fmt.Sprintf("%s is now a manager of %s", inv.TargetUserID, out.Guild.Name))
}

// Decline records the refusal and tells the inviter. The guild is never touched.
func (s *InvitationService) Decline(ctx context.Context, input RespondInvitationInput) (Result, error) {
	inv, stale, err := s.openHandle(input)
	if err != nil || stale != nil {
		return derefResult(stale), err
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.InvitationService.Decline", guildAttrs(inv.TenantID, inv.GuildID)...)
	defer span.End()

	if state, resolved := s.resolution(ctx, inv.ID); resolved && state == invitation.StateAccepted {
		return Result{Outcome: OutcomeStale, Message: "this invitation was already accepted", Invitation: &inv}, nil
	}

	s.markResolved(ctx, inv, invitation.StateDeclined)
	s.notifier.InvitationDeclined(ctx, inv)
	return Result{
		Outcome:    OutcomeDeclined,
		Message:    fmt.Sprintf("you declined the invitation from %s", inv.GuildName),
		Invitation: &inv,
	}, nil
}

// openHandle decodes and authorizes a response. Expired handles come back as a stale
// result rather than an error.
func (s *InvitationService) openHandle(input RespondInvitationInput) (invitation.Invitation, *Result, error) {
	handle := strings.TrimSpace(input.Handle)
	actor := strings.TrimSpace(input.ActingUserID)
	if handle == "" {
		return invitation.Invitation{}, nil, fmt.Errorf("%w: invitation handle is required", ErrInvalidInput)
	}
	if actor == "" {
		return invitation.Invitation{}, nil, fmt.Errorf("%w: acting user id is required", ErrInvalidInput)
	}

	inv, err := s.codec.Decode(invitation.Handle(handle))
	switch {
	case errors.Is(err, invitation.ErrExpiredHandle):
		r := refused(OutcomeStale, "this invitation has expired; ask for a new one")
		return invitation.Invitation{}, &r, nil
	case err != nil:
		return invitation.Invitation{}, nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if inv.TargetUserID != actor {
		return invitation.Invitation{}, nil, fmt.Errorf("%w: only the invited user can respond to this invitation", ErrUnauthorized)
	}
	return inv, nil, nil
}

func (s *InvitationService) resolution(ctx context.Context, invitationID string) (invitation.State, bool) {
	if s.tracker == nil {
		return "", false
	}
	state, ok, err := s.tracker.Resolution(ctx, invitationID)
	if err != nil {
		s.logger.WarnContext(ctx, "read invitation resolution failed", "invitation_id", invitationID, "error", err)
		return "", false
	}
	return state, ok
}

func (s *InvitationService) markResolved(ctx context.Context, inv invitation.Invitation, state invitation.State) {
	if s.tracker == nil {
		return
	}
	if err := s.tracker.MarkResolved(ctx, inv.ID, state); err != nil {
		s.logger.WarnContext(ctx, "mark invitation resolved failed",
			"tenant_id", inv.TenantID,
			"guild_id", inv.GuildID,
			"invitation_id", inv.ID,
			"error", err,
		)
	}
}

func (s *InvitationService) parseCreateInput(input CreateInvitationInput) (invitation.Invitation, error) {
	typ, ok := invitation.ParseType(input.Type)
	if !ok {
		return invitation.Invitation{}, fmt.Errorf("%w: unknown invitation type %q", ErrInvalidInput, input.Type)
	}
	inv := invitation.Invitation{
		Type:          typ,
		TenantID:      strings.TrimSpace(input.TenantID),
		GuildID:       strings.TrimSpace(input.GuildID),
		InviterUserID: strings.TrimSpace(input.InviterUserID),
		TargetUserID:  strings.TrimSpace(input.TargetUserID),
		TargetName:    strings.TrimSpace(input.TargetDisplayName),
	}
	switch {
	case inv.TenantID == "":
		return invitation.Invitation{}, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	case inv.GuildID == "":
		return invitation.Invitation{}, fmt.Errorf("%w: guild id is required", ErrInvalidInput)
	case inv.InviterUserID == "":
		return invitation.Invitation{}, fmt.Errorf("%w: inviter user id is required", ErrInvalidInput)
	case inv.TargetUserID == "":
		return invitation.Invitation{}, fmt.Errorf("%w: target user id is required", ErrInvalidInput)
	case inv.TargetUserID == inv.InviterUserID && typ != invitation.TypeRosterAdd:
		return invitation.Invitation{}, fmt.Errorf("%w: you cannot invite yourself", ErrInvalidInput)
	}

	if typ == invitation.TypeRosterAdd {
		region, ok := guild.ParseRegionCode(input.Region)
		if !ok {
			return invitation.Invitation{}, fmt.Errorf("%w: unknown region %q", ErrInvalidInput, input.Region)
		}
		roster, ok := guild.ParseRosterKind(input.Roster)
		if !ok {
			return invitation.Invitation{}, fmt.Errorf("%w: roster must be main or sub", ErrInvalidInput)
		}
		inv.Context.Region = region
		inv.Context.Roster = roster
	}
	return inv, nil
}

// canInvite applies the per-type authority rules to the inviter.
func canInvite(g guild.Guild, typ invitation.Type, inviterID string, isAdmin bool) bool {
	if isAdmin {
		return true
	}
	level := guild.RoleLevel(g, inviterID)
	switch typ {
	case invitation.TypeLeaderTransfer, invitation.TypeCoLeaderAdd, invitation.TypeCoLeaderReplace:
		return level == guild.LevelLeader
	case invitation.TypeManagerAdd:
		return level >= guild.LevelCoLeader
	case invitation.TypeRosterAdd:
		return level >= guild.LevelManager
	default:
		return false
	}
}

func derefResult(r *Result) Result {
	if r == nil {
		return Result{}
	}
	return *r
}

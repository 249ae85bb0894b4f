package usecase

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/riskibarqy/guildhall/internal/domain/cooldown"
	"github.com/riskibarqy/guildhall/internal/domain/guild"
	"github.com/riskibarqy/guildhall/internal/domain/notification"
	"github.com/riskibarqy/guildhall/internal/platform/logging"
)

type RosterInput struct {
	TenantID     string
	GuildID      string
	ActorUserID  string
	ActorIsAdmin bool
	UserID       string
	DisplayName  string
	Region       string
	Roster       string
}

type rosterRequest struct {
	tenantID      string
	guildID       string
	actorID       string
	actorIsAdmin  bool
	viaInvitation bool
	correlationID string
	member        guild.Member
	region        guild.RegionCode
	roster        guild.RosterKind
}

type RosterService struct {
	guilds    guild.Repository
	engine    *MutationEngine
	cooldowns cooldown.Oracle
	notifier  *LifecycleNotifier
	logger    *logging.Logger
	now       func() time.Time
}

func NewRosterService(
	guilds guild.Repository,
	engine *MutationEngine,
	cooldowns cooldown.Oracle,
	notifier *LifecycleNotifier,
	logger *logging.Logger,
) *RosterService {
	if logger == nil {
		logger = logging.Default()
	}
	return &RosterService{
		guilds:    guilds,
		engine:    engine,
		cooldowns: cooldowns,
		notifier:  notifier,
		logger:    logger.Named("roster"),
		now:       time.Now,
	}
}

func (s *RosterService) AddToRoster(ctx context.Context, input RosterInput) (Result, error) {
	req, err := s.parseInput(input)
	if err != nil {
		return Result{}, err
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.AddToRoster", guildAttrs(req.tenantID, req.guildID)...)
	defer span.End()

	return s.admit(ctx, req), nil
}

// admit runs the admission pipeline. Each check refuses with its own outcome; the
// final write re-checks capacity, duplicates and region state atomically.
func (s *RosterService) admit(ctx context.Context, req rosterRequest) Result {
	userID := req.member.UserID
	slot := rosterSlot(req.region, req.roster)

	if err := s.guilds.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "guild store unreachable", "guild_id", req.guildID, "error", err)
		return refused(OutcomeStoreUnavailable, "guild storage is unreachable, try again shortly")
	}

	g, refusal := loadGuild(ctx, s.guilds, req.tenantID, req.guildID)
	if refusal != nil {
		return *refusal
	}

	if !req.viaInvitation && !req.actorIsAdmin && !canAdmit(g, req.actorID, userID) {
		return resultf(OutcomeIneligible, g, "you need to be a manager or above in %s to change this roster", g.Name)
	}

	region, ok := g.Region(req.region)
	if !ok {
		return resultf(OutcomeNotFound, g, "%s does not compete in %s", g.Name, req.region)
	}
	if region.Status != guild.StatusActive {
		return resultf(OutcomeIneligible, g, "the %s region of %s is %s", req.region, g.Name, region.Status)
	}

	if r := checkExclusivity(ctx, s.guilds, req.tenantID, userID, g.ID); r != nil {
		return *r
	}

	alreadyInGuild := guild.IsMember(g, userID) || guild.HasRosterPresence(g, userID, "", "")
	if !alreadyInGuild && s.cooldowns != nil {
		status, err := s.cooldowns.Status(ctx, req.tenantID, userID)
		if err != nil {
			s.logger.WarnContext(ctx, "cooldown lookup failed", "tenant_id", req.tenantID, "user_id", userID, "error", err)
			return refused(OutcomeStoreUnavailable, "could not check the guild transition cooldown, try again shortly")
		}
		if !status.Allows(g.ID) {
			return resultf(OutcomeCooldownActive, g, "%s left a guild recently and can join another in %s", userID, status.Remaining.Round(time.Minute))
		}
	}

	list := g.RosterFor(req.region, req.roster)
	if slices.Contains(list, userID) {
		return resultf(OutcomeAlreadyHolds, g, "%s is already on the %s", userID, slot)
	}
	if !guild.HasCapacity(list, guild.MaxRosterSize) {
		return resultf(OutcomeCapacityReached, g, "the %s of %s is full", slot, g.Name)
	}

	newMember := !guild.IsMember(g, userID)
	step := MutationStep{
		Name: "admit",
		Pre: guild.Precondition{
			guild.RegionIsActive(req.region),
			guild.RosterBelow(req.region, req.roster, guild.MaxRosterSize),
			guild.RosterExcludes(req.region, req.roster, userID),
		},
		Mut: guild.Mutation{guild.PushRoster(req.region, req.roster, userID)},
	}
	if newMember {
		member := req.member
		member.Role = guild.RoleMember
		member.JoinedAt = s.now().UTC()
		step.Pre = append(step.Pre, guild.NotMember(userID))
		step.Mut = append(step.Mut, guild.PushMember(member))
	} else {
		step.Pre = append(step.Pre, guild.IsMemberCond(userID))
	}

	out, err := s.engine.Apply(ctx, g.ID, step)
	if err != nil {
		return refused(OutcomeStoreUnavailable, "guild storage is unreachable, try again shortly")
	}
	switch out.Result {
	case guild.UpdateNotFound:
		return refused(OutcomeNotFound, "this guild no longer exists")
	case guild.UpdatePreconditionFailed:
		return s.engine.Explain(ctx, g.ID, slot, userID, "")
	}

	var changes []notification.RoleChange
	if newMember {
		changes = append(changes, roleChange(out.Guild, userID, notification.RoleGuildMember, true, req.correlationID))
	}
	s.notifier.RoleChanged(ctx, out.Guild, req.actorID, fmt.Sprintf("%s joined the %s.", userID, slot), changes)

	return applied(out.Guild, fmt.Sprintf("%s joined the %s of %s", userID, slot, out.Guild.Name))
}

// RemoveFromRoster takes a user off one list. A user left with no roster spot also
// leaves the guild and starts a transition cooldown; the leader keeps membership.
func (s *RosterService) RemoveFromRoster(ctx context.Context, input RosterInput) (Result, error) {
	req, err := s.parseInput(input)
	if err != nil {
		return Result{}, err
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.RosterService.RemoveFromRoster", guildAttrs(req.tenantID, req.guildID)...)
	defer span.End()

	userID := req.member.UserID
	slot := rosterSlot(req.region, req.roster)

	if err := s.guilds.Ping(ctx); err != nil {
		s.logger.WarnContext(ctx, "guild store unreachable", "guild_id", req.guildID, "error", err)
		return refused(OutcomeStoreUnavailable, "guild storage is unreachable, try again shortly"), nil
	}
	g, refusal := loadGuild(ctx, s.guilds, req.tenantID, req.guildID)
	if refusal != nil {
		return *refusal, nil
	}
	if req.actorID != userID && !req.actorIsAdmin && !canAdmit(g, req.actorID, userID) {
		return resultf(OutcomeIneligible, g, "you need to outrank %s in %s to remove them", userID, g.Name), nil
	}
	if _, ok := g.Region(req.region); !ok {
		return resultf(OutcomeNotFound, g, "%s does not compete in %s", g.Name, req.region), nil
	}
	if !slices.Contains(g.RosterFor(req.region, req.roster), userID) {
		return resultf(OutcomeNotFound, g, "%s is not on the %s", userID, slot), nil
	}

	wasCoLeader := guild.IsCoLeader(g, userID)
	leaving := guild.IsMember(g, userID) &&
		!guild.IsLeader(g, userID) &&
		!guild.HasRosterPresence(g, userID, req.region, req.roster)
	demote := !leaving && wasCoLeader && req.roster == guild.RosterMain

	step := MutationStep{
		Name: "release",
		Pre:  guild.Precondition{guild.RosterIncludes(req.region, req.roster, userID)},
		Mut:  guild.Mutation{guild.PullRoster(req.region, req.roster, userID)},
	}
	switch {
	case leaving:
		step.Pre = append(step.Pre, guild.NoOtherRosterPresence(req.region, req.roster, userID), guild.NotLeader(userID))
		step.Mut = append(step.Mut, guild.PullMember(userID))
	case demote:
		step.Pre = append(step.Pre, guild.MemberWithRoleIs(guild.RoleCoLeader, userID))
		step.Mut = append(step.Mut, guild.SetRole(userID, guild.RoleMember))
	}

	out, err := s.engine.Apply(ctx, g.ID, step)
	if err != nil {
		return refused(OutcomeStoreUnavailable, "guild storage is unreachable, try again shortly"), nil
	}
	switch out.Result {
	case guild.UpdateNotFound:
		return refused(OutcomeNotFound, "this guild no longer exists"), nil
	case guild.UpdatePreconditionFailed:
		return s.explainRelease(ctx, g.ID, userID, slot, leaving, demote), nil
	}

	var changes []notification.RoleChange
	if leaving {
		changes = append(changes, roleChange(out.Guild, userID, notification.RoleGuildMember, false, ""))
		if wasCoLeader {
			changes = append(changes, roleChange(out.Guild, userID, notification.RoleGuildCoLeader, false, ""))
		}
		s.recordLeave(ctx, req.tenantID, userID, g.ID)
	}
	if demote {
		changes = append(changes, roleChange(out.Guild, userID, notification.RoleGuildCoLeader, false, ""))
	}
	s.notifier.RoleChanged(ctx, out.Guild, req.actorID, fmt.Sprintf("%s left the %s.", userID, slot), changes)

	return applied(out.Guild, fmt.Sprintf("%s was removed from the %s of %s", userID, slot, out.Guild.Name)), nil
}

// explainRelease re-reads the guild after a refused release and names the clause that
// stopped it.
func (s *RosterService) explainRelease(ctx context.Context, guildID, userID string, slot slotRef, leaving, demote bool) Result {
	g, ok, err := s.guilds.GetByID(ctx, guildID)
	switch {
	case err != nil:
		s.logger.WarnContext(ctx, "re-read after refused release failed", "guild_id", guildID, "error", err)
		return refused(OutcomeStoreUnavailable, "guild storage is unreachable, try again shortly")
	case !ok:
		return refused(OutcomeNotFound, "this guild no longer exists")
	case !slices.Contains(g.RosterFor(slot.region, slot.roster), userID):
		return resultf(OutcomeNotFound, g, "%s is no longer on the %s", userID, slot)
	case leaving && guild.IsLeader(g, userID):
		return resultf(OutcomeStateConflict, g, "%s became leader of %s meanwhile; transfer leadership before leaving", userID, g.Name)
	case leaving && guild.HasRosterPresence(g, userID, slot.region, slot.roster):
		return resultf(OutcomeStateConflict, g, "%s picked up another roster spot in %s meanwhile; try again to release only the %s", userID, g.Name, slot)
	case leaving && !guild.IsMember(g, userID):
		return resultf(OutcomeStateConflict, g, "%s is no longer a member of %s", userID, g.Name)
	case demote && !guild.IsCoLeader(g, userID):
		return resultf(OutcomeStateConflict, g, "%s is no longer co-leader of %s; try again", userID, g.Name)
	}
	return resultf(OutcomeStateConflict, g, "%s changed while this was processed; please try again", g.Name)
}

func (s *RosterService) recordLeave(ctx context.Context, tenantID, userID, guildID string) {
	if s.cooldowns == nil {
		return
	}
	err := s.cooldowns.RecordLeave(ctx, cooldown.Event{
		TenantID: tenantID,
		UserID:   userID,
		GuildID:  guildID,
		LeftAt:   s.now().UTC(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "record guild leave failed",
			"tenant_id", tenantID,
			"guild_id", guildID,
			"user_id", userID,
			"error", err,
		)
	}
}

func (s *RosterService) parseInput(input RosterInput) (rosterRequest, error) {
	input.TenantID = strings.TrimSpace(input.TenantID)
	input.GuildID = strings.TrimSpace(input.GuildID)
	input.ActorUserID = strings.TrimSpace(input.ActorUserID)
	input.UserID = strings.TrimSpace(input.UserID)
	input.DisplayName = strings.TrimSpace(input.DisplayName)
	switch {
	case input.TenantID == "":
		return rosterRequest{}, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	case input.GuildID == "":
		return rosterRequest{}, fmt.Errorf("%w: guild id is required", ErrInvalidInput)
	case input.UserID == "":
		return rosterRequest{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	case input.ActorUserID == "":
		return rosterRequest{}, fmt.Errorf("%w: actor user id is required", ErrInvalidInput)
	}
	region, ok := guild.ParseRegionCode(input.Region)
	if !ok {
		return rosterRequest{}, fmt.Errorf("%w: unknown region %q", ErrInvalidInput, input.Region)
	}
	roster, ok := guild.ParseRosterKind(input.Roster)
	if !ok {
		return rosterRequest{}, fmt.Errorf("%w: roster must be main or sub", ErrInvalidInput)
	}
	return rosterRequest{
		tenantID:     input.TenantID,
		guildID:      input.GuildID,
		actorID:      input.ActorUserID,
		actorIsAdmin: input.ActorIsAdmin,
		member:       guild.Member{UserID: input.UserID, DisplayName: input.DisplayName},
		region:       region,
		roster:       roster,
	}, nil
}

// canAdmit allows managers and above to place themselves or anyone they outrank.
func canAdmit(g guild.Guild, actorID, userID string) bool {
	if guild.RoleLevel(g, actorID) < guild.LevelManager {
		return false
	}
	return actorID == userID || guild.CanManage(g, actorID, userID)
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/riskibarqy/guildhall/internal/domain/cooldown"
	"github.com/riskibarqy/guildhall/internal/domain/guild"
	"github.com/riskibarqy/guildhall/internal/domain/notification"
	idgen "github.com/riskibarqy/guildhall/internal/platform/id"
	"github.com/riskibarqy/guildhall/internal/platform/logging"
)

type RegisterGuildInput struct {
	TenantID         string
	ActorUserID      string
	ActorDisplayName string
	Name             string
	Regions          []string
}

// GuildActionInput identifies an actor working on a guild, and the user affected when
// the action targets someone.
type GuildActionInput struct {
	TenantID          string
	GuildID           string
	ActorUserID       string
	ActorIsAdmin      bool
	TargetUserID      string
	TargetDisplayName string
}

type RegionStatusInput struct {
	TenantID     string
	GuildID      string
	ActorUserID  string
	ActorIsAdmin bool
	Region       string
	Status       string
}

// GuildService covers registration, lookups, deletion and the synchronous admin
// operations that do not go through an invitation.
type GuildService struct {
	guilds    guild.Repository
	engine    *MutationEngine
	cooldowns cooldown.Oracle
	notifier  *LifecycleNotifier
	idGen     idgen.Generator
	logger    *logging.Logger
	now       func() time.Time
}

func NewGuildService(
	guilds guild.Repository,
	engine *MutationEngine,
	cooldowns cooldown.Oracle,
	notifier *LifecycleNotifier,
	idGen idgen.Generator,
	logger *logging.Logger,
) *GuildService {
	if logger == nil {
		logger = logging.Default()
	}
	return &GuildService{
		guilds:    guilds,
		engine:    engine,
		cooldowns: cooldowns,
		notifier:  notifier,
		idGen:     idGen,
		logger:    logger.Named("guild"),
		now:       time.Now,
	}
}

func (s *GuildService) RegisterGuild(ctx context.Context, input RegisterGuildInput) (guild.Guild, error) {
	input.TenantID = strings.TrimSpace(input.TenantID)
	input.ActorUserID = strings.TrimSpace(input.ActorUserID)
	input.Name = strings.TrimSpace(input.Name)
	switch {
	case input.TenantID == "":
		return guild.Guild{}, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	case input.ActorUserID == "":
		return guild.Guild{}, fmt.Errorf("%w: actor user id is required", ErrInvalidInput)
	case input.Name == "":
		return guild.Guild{}, fmt.Errorf("%w: guild name is required", ErrInvalidInput)
	case len(input.Name) > 64:
		return guild.Guild{}, fmt.Errorf("%w: guild name must be at most 64 characters", ErrInvalidInput)
	case len(input.Regions) == 0:
		return guild.Guild{}, fmt.Errorf("%w: at least one region is required", ErrInvalidInput)
	}

	regions := make([]guild.Region, 0, len(input.Regions))
	seen := make(map[guild.RegionCode]struct{}, len(input.Regions))
	for _, raw := range input.Regions {
		code, ok := guild.ParseRegionCode(raw)
		if !ok {
			return guild.Guild{}, fmt.Errorf("%w: unknown region %q", ErrInvalidInput, raw)
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		regions = append(regions, guild.Region{Code: code, Elo: guild.DefaultElo, Status: guild.StatusActive})
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.GuildService.RegisterGuild", guildAttrs(input.TenantID, "")...)
	defer span.End()

	if err := s.guilds.Ping(ctx); err != nil {
		return guild.Guild{}, fmt.Errorf("%w: guild storage is unreachable, try again shortly", ErrStoreUnavailable)
	}
	if r := checkExclusivity(ctx, s.guilds, input.TenantID, input.ActorUserID, ""); r != nil {
		return guild.Guild{}, r.Err()
	}
	if s.cooldowns != nil {
		status, err := s.cooldowns.Status(ctx, input.TenantID, input.ActorUserID)
		if err != nil {
			return guild.Guild{}, fmt.Errorf("%w: check transition cooldown: %v", ErrStoreUnavailable, err)
		}
		if status.Active {
			return guild.Guild{}, fmt.Errorf("%w: you left a guild recently and can register a new one in %s", ErrCooldownActive, status.Remaining.Round(time.Minute))
		}
	}

	id, err := s.idGen.NewID()
	if err != nil {
		return guild.Guild{}, fmt.Errorf("generate guild id: %w", err)
	}
	now := s.now().UTC()
	g := guild.Guild{
		ID:           id,
		TenantID:     input.TenantID,
		Name:         input.Name,
		Status:       guild.StatusActive,
		RegisteredBy: input.ActorUserID,
		Members: []guild.Member{{
			UserID:      input.ActorUserID,
			DisplayName: strings.TrimSpace(input.ActorDisplayName),
			Role:        guild.RoleLeader,
			JoinedAt:    now,
		}},
		Regions:   regions,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := guild.Validate(g); err != nil {
		return guild.Guild{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if err := s.guilds.Create(ctx, g); err != nil {
		if errors.Is(err, guild.ErrDuplicateName) {
			return guild.Guild{}, fmt.Errorf("%w: a guild named %q already exists", ErrInvalidInput, input.Name)
		}
		return guild.Guild{}, fmt.Errorf("%w: create guild: %v", ErrStoreUnavailable, err)
	}

	s.notifier.RoleChanged(ctx, g, input.ActorUserID, fmt.Sprintf("%s was registered.", g.Name), []notification.RoleChange{
		roleChange(g, input.ActorUserID, notification.RoleGuildLeader, true, g.ID),
		roleChange(g, input.ActorUserID, notification.RoleGuildMember, true, g.ID),
	})
	s.logger.InfoContext(ctx, "guild registered", "tenant_id", g.TenantID, "guild_id", g.ID, "user_id", input.ActorUserID)
	return g, nil
}

func (s *GuildService) GetGuild(ctx context.Context, tenantID, guildID string) (guild.Guild, error) {
	tenantID = strings.TrimSpace(tenantID)
	guildID = strings.TrimSpace(guildID)
	if tenantID == "" || guildID == "" {
		return guild.Guild{}, fmt.Errorf("%w: tenant id and guild id are required", ErrInvalidInput)
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.GuildService.GetGuild", guildAttrs(tenantID, guildID)...)
	defer span.End()

	g, ok, err := s.guilds.GetByID(ctx, guildID)
	if err != nil {
		return guild.Guild{}, fmt.Errorf("%w: get guild: %v", ErrStoreUnavailable, err)
	}
	if !ok || g.TenantID != tenantID {
		return guild.Guild{}, fmt.Errorf("%w: guild %s does not exist", ErrNotFound, guildID)
	}
	return g, nil
}

// FindGuildForUser answers the tenant membership index query.
func (s *GuildService) FindGuildForUser(ctx context.Context, tenantID, userID string) (guild.Guild, error) {
	tenantID = strings.TrimSpace(tenantID)
	userID = strings.TrimSpace(userID)
	if tenantID == "" || userID == "" {
		return guild.Guild{}, fmt.Errorf("%w: tenant id and user id are required", ErrInvalidInput)
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.GuildService.FindGuildForUser", guildAttrs(tenantID, "")...)
	defer span.End()

	g, ok, err := s.guilds.FindByMember(ctx, tenantID, userID)
	if err != nil {
		return guild.Guild{}, fmt.Errorf("%w: find guild for user: %v", ErrStoreUnavailable, err)
	}
	if !ok {
		return guild.Guild{}, fmt.Errorf("%w: %s is not in a guild", ErrNotFound, userID)
	}
	return g, nil
}

func (s *GuildService) ListGuilds(ctx context.Context, tenantID string) ([]guild.Guild, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return nil, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.GuildService.ListGuilds", guildAttrs(tenantID, "")...)
	defer span.End()

	items, err := s.guilds.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: list guilds: %v", ErrStoreUnavailable, err)
	}
	return items, nil
}

// DeleteGuild removes the guild and revokes every role it granted. Members are not put
// on a transition cooldown.
func (s *GuildService) DeleteGuild(ctx context.Context, input GuildActionInput) error {
	input, err := trimAction(input, false)
	if err != nil {
		return err
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.GuildService.DeleteGuild", guildAttrs(input.TenantID, input.GuildID)...)
	defer span.End()

	g, refusal := loadGuild(ctx, s.guilds, input.TenantID, input.GuildID)
	if refusal != nil {
		return refusal.Err()
	}
	if !input.ActorIsAdmin && !guild.IsLeader(g, input.ActorUserID) {
		return fmt.Errorf("%w: only the leader of %s or an admin can delete it", ErrUnauthorized, g.Name)
	}

	deleted, err := s.guilds.Delete(ctx, g.ID)
	if err != nil {
		return fmt.Errorf("%w: delete guild: %v", ErrStoreUnavailable, err)
	}
	if !deleted {
		return fmt.Errorf("%w: guild %s does not exist", ErrNotFound, g.ID)
	}

	s.notifier.GuildDeleted(ctx, g, input.ActorUserID)
	s.logger.InfoContext(ctx, "guild deleted", "tenant_id", g.TenantID, "guild_id", g.ID, "user_id", input.ActorUserID)
	return nil
}

// TransferLeadership hands the guild to a new leader immediately, without an
// invitation. Only the current leader or an admin may do this.
func (s *GuildService) TransferLeadership(ctx context.Context, input GuildActionInput) (Result, error) {
	input, err := trimAction(input, true)
	if err != nil {
		return Result{}, err
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.GuildService.TransferLeadership", guildAttrs(input.TenantID, input.GuildID)...)
	defer span.End()

	g, refusal := loadGuild(ctx, s.guilds, input.TenantID, input.GuildID)
	if refusal != nil {
		return *refusal, nil
	}
	current := guild.LeaderID(g)
	if !input.ActorIsAdmin && input.ActorUserID != current {
		return Result{}, fmt.Errorf("%w: only the leader of %s or an admin can transfer leadership", ErrUnauthorized, g.Name)
	}
	if current == input.TargetUserID {
		return resultf(OutcomeAlreadyHolds, g, "%s already leads %s", input.TargetUserID, g.Name), nil
	}
	if r := checkExclusivity(ctx, s.guilds, input.TenantID, input.TargetUserID, g.ID); r != nil {
		return *r, nil
	}

	target := guild.Member{UserID: input.TargetUserID, DisplayName: input.TargetDisplayName, JoinedAt: s.now().UTC()}
	combined, fallback := leaderTransferSteps(g, current, target)
	out, err := s.engine.ApplyTwoPhase(ctx, g.ID, combined, fallback...)
	if r, done := settle(ctx, s.engine, g.ID, out, err, leaderSlot(), input.TargetUserID, current); done {
		return r, nil
	}

	changes := []notification.RoleChange{
		roleChange(out.Guild, input.TargetUserID, notification.RoleGuildLeader, true, ""),
		roleChange(out.Guild, current, notification.RoleGuildLeader, false, ""),
	}
	if guild.IsCoLeader(g, input.TargetUserID) {
		changes = append(changes, roleChange(out.Guild, input.TargetUserID, notification.RoleGuildCoLeader, false, ""))
	}
	if appliedStep(out, stepInsert) {
		changes = append(changes, roleChange(out.Guild, input.TargetUserID, notification.RoleGuildMember, true, ""))
	}
	s.notifier.RoleChanged(ctx, out.Guild, input.ActorUserID,
		fmt.Sprintf("%s is now the leader of %s.", input.TargetUserID, out.Guild.Name), changes)

	return applied(out.Guild, fmt.Sprintf("%s is now the leader of %s", input.TargetUserID, out.Guild.Name)), nil
}

// RemoveCoLeader demotes the co-leader back to member.
func (s *GuildService) RemoveCoLeader(ctx context.Context, input GuildActionInput) (Result, error) {
	input, err := trimAction(input, true)
	if err != nil {
		return Result{}, err
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.GuildService.RemoveCoLeader", guildAttrs(input.TenantID, input.GuildID)...)
	defer span.End()

	g, refusal := loadGuild(ctx, s.guilds, input.TenantID, input.GuildID)
	if refusal != nil {
		return *refusal, nil
	}
	self := input.ActorUserID == input.TargetUserID
	if !input.ActorIsAdmin && !self && !guild.IsLeader(g, input.ActorUserID) {
		return Result{}, fmt.Errorf("%w: only the leader of %s or an admin can remove its co-leader", ErrUnauthorized, g.Name)
	}
	if !guild.IsCoLeader(g, input.TargetUserID) {
		return resultf(OutcomeNotFound, g, "%s is not the co-leader of %s", input.TargetUserID, g.Name), nil
	}

	out, err := s.engine.Apply(ctx, g.ID, MutationStep{
		Name: stepDemote,
		Pre:  guild.Precondition{guild.MemberWithRoleIs(guild.RoleCoLeader, input.TargetUserID)},
		Mut:  guild.Mutation{guild.SetRole(input.TargetUserID, guild.RoleMember)},
	})
	if r, done := settle(ctx, s.engine, g.ID, out, err, coLeaderSlot(), "", input.TargetUserID); done {
		return r, nil
	}

	s.notifier.RoleChanged(ctx, out.Guild, input.ActorUserID,
		fmt.Sprintf("%s is no longer co-leader of %s.", input.TargetUserID, out.Guild.Name),
		[]notification.RoleChange{roleChange(out.Guild, input.TargetUserID, notification.RoleGuildCoLeader, false, "")})
	return applied(out.Guild, fmt.Sprintf("%s is no longer co-leader of %s", input.TargetUserID, out.Guild.Name)), nil
}

func (s *GuildService) AddManager(ctx context.Context, input GuildActionInput) (Result, error) {
	input, err := trimAction(input, true)
	if err != nil {
		return Result{}, err
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.GuildService.AddManager", guildAttrs(input.TenantID, input.GuildID)...)
	defer span.End()

	g, refusal := loadGuild(ctx, s.guilds, input.TenantID, input.GuildID)
	if refusal != nil {
		return *refusal, nil
	}
	if !input.ActorIsAdmin && guild.RoleLevel(g, input.ActorUserID) < guild.LevelCoLeader {
		return Result{}, fmt.Errorf("%w: only the leader or co-leader of %s can add managers", ErrUnauthorized, g.Name)
	}

	out, err := s.engine.Apply(ctx, g.ID, managerAddStep(input.TargetUserID))
	if r, done := settle(ctx, s.engine, g.ID, out, err, managerSlot(), input.TargetUserID, ""); done {
		return r, nil
	}

	s.notifier.RoleChanged(ctx, out.Guild, input.ActorUserID,
		fmt.Sprintf("%s is now a manager of %s.", input.TargetUserID, out.Guild.Name),
		[]notification.RoleChange{roleChange(out.Guild, input.TargetUserID, notification.RoleGuildManager, true, "")})
	return applied(out.Guild, fmt.Sprintf("%s is now a manager of %s", input.TargetUserID, out.Guild.Name)), nil
}

// RemoveManager lets a manager step down, or a co-leader and above remove one.
func (s *GuildService) RemoveManager(ctx context.Context, input GuildActionInput) (Result, error) {
	input, err := trimAction(input, true)
	if err != nil {
		return Result{}, err
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.GuildService.RemoveManager", guildAttrs(input.TenantID, input.GuildID)...)
	defer span.End()

	g, refusal := loadGuild(ctx, s.guilds, input.TenantID, input.GuildID)
	if refusal != nil {
		return *refusal, nil
	}
	self := input.ActorUserID == input.TargetUserID
	if !input.ActorIsAdmin && !self && guild.RoleLevel(g, input.ActorUserID) < guild.LevelCoLeader {
		return Result{}, fmt.Errorf("%w: only the leader or co-leader of %s can remove managers", ErrUnauthorized, g.Name)
	}
	if !guild.IsManager(g, input.TargetUserID) {
		return resultf(OutcomeNotFound, g, "%s is not a manager of %s", input.TargetUserID, g.Name), nil
	}

	out, err := s.engine.Apply(ctx, g.ID, MutationStep{
		Name: "remove_manager",
		Pre:  guild.Precondition{guild.ManagersInclude(input.TargetUserID)},
		Mut:  guild.Mutation{guild.PullManager(input.TargetUserID)},
	})
	if err != nil {
		return refused(OutcomeStoreUnavailable, "guild storage is unreachable, try again shortly"), nil
	}
	switch out.Result {
	case guild.UpdateNotFound:
		return refused(OutcomeNotFound, "this guild no longer exists"), nil
	case guild.UpdatePreconditionFailed:
		return resultf(OutcomeNotFound, out.Guild, "%s is no longer a manager of %s", input.TargetUserID, g.Name), nil
	}

	s.notifier.RoleChanged(ctx, out.Guild, input.ActorUserID,
		fmt.Sprintf("%s is no longer a manager of %s.", input.TargetUserID, out.Guild.Name),
		[]notification.RoleChange{roleChange(out.Guild, input.TargetUserID, notification.RoleGuildManager, false, "")})
	return applied(out.Guild, fmt.Sprintf("%s is no longer a manager of %s", input.TargetUserID, out.Guild.Name)), nil
}

// SetRegionStatus is an admin action. Inactive and suspended regions refuse new
// roster admissions but keep their current occupants.
func (s *GuildService) SetRegionStatus(ctx context.Context, input RegionStatusInput) (Result, error) {
	input.TenantID = strings.TrimSpace(input.TenantID)
	input.GuildID = strings.TrimSpace(input.GuildID)
	if input.TenantID == "" || input.GuildID == "" {
		return Result{}, fmt.Errorf("%w: tenant id and guild id are required", ErrInvalidInput)
	}
	region, ok := guild.ParseRegionCode(input.Region)
	if !ok {
		return Result{}, fmt.Errorf("%w: unknown region %q", ErrInvalidInput, input.Region)
	}
	status, ok := guild.ParseStatus(input.Status)
	if !ok {
		return Result{}, fmt.Errorf("%w: status must be active, inactive or suspended", ErrInvalidInput)
	}
	if !input.ActorIsAdmin {
		return Result{}, fmt.Errorf("%w: only an admin can change region status", ErrUnauthorized)
	}

	ctx, span := startUsecaseSpan(ctx, "usecase.GuildService.SetRegionStatus", guildAttrs(input.TenantID, input.GuildID)...)
	defer span.End()

	g, refusal := loadGuild(ctx, s.guilds, input.TenantID, input.GuildID)
	if refusal != nil {
		return *refusal, nil
	}
	current, ok := g.Region(region)
	if !ok {
		return resultf(OutcomeNotFound, g, "%s does not compete in %s", g.Name, region), nil
	}
	if current.Status == status {
		return applied(g, fmt.Sprintf("the %s region of %s is already %s", region, g.Name, status)), nil
	}

	out, err := s.engine.Apply(ctx, g.ID, MutationStep{
		Name: "set_region_status",
		Mut:  guild.Mutation{guild.SetRegionStatus(region, status)},
	})
	if err != nil {
		return refused(OutcomeStoreUnavailable, "guild storage is unreachable, try again shortly"), nil
	}
	switch out.Result {
	case guild.UpdateNotFound:
		return refused(OutcomeNotFound, "this guild no longer exists"), nil
	case guild.UpdatePreconditionFailed:
		return resultf(OutcomeStateConflict, out.Guild, "%s changed while this was processed; please try again", g.Name), nil
	}

	s.logger.InfoContext(ctx, "region status changed",
		"tenant_id", g.TenantID,
		"guild_id", g.ID,
		"region", region,
		"status", status,
	)
	return applied(out.Guild, fmt.Sprintf("the %s region of %s is now %s", region, out.Guild.Name, status)), nil
}

// settle converts a non-applied engine outcome into a refusal. done is false only
// when the write was applied.
func settle(ctx context.Context, engine *MutationEngine, guildID string, out EngineOutcome, err error, slot slotRef, targetID, expectedHolder string) (Result, bool) {
	if err != nil {
		return refused(OutcomeStoreUnavailable, "guild storage is unreachable, try again shortly"), true
	}
	switch out.Result {
	case guild.UpdateApplied:
		return Result{}, false
	case guild.UpdateNotFound:
		return refused(OutcomeNotFound, "this guild no longer exists"), true
	default:
		return engine.Explain(ctx, guildID, slot, targetID, expectedHolder), true
	}
}

func trimAction(input GuildActionInput, needTarget bool) (GuildActionInput, error) {
	input.TenantID = strings.TrimSpace(input.TenantID)
	input.GuildID = strings.TrimSpace(input.GuildID)
	input.ActorUserID = strings.TrimSpace(input.ActorUserID)
	input.TargetUserID = strings.TrimSpace(input.TargetUserID)
	input.TargetDisplayName = strings.TrimSpace(input.TargetDisplayName)
	switch {
	case input.TenantID == "":
		return input, fmt.Errorf("%w: tenant id is required", ErrInvalidInput)
	case input.GuildID == "":
		return input, fmt.Errorf("%w: guild id is required", ErrInvalidInput)
	case input.ActorUserID == "":
		return input, fmt.Errorf("%w: actor user id is required", ErrInvalidInput)
	case needTarget && input.TargetUserID == "":
		return input, fmt.Errorf("%w: target user id is required", ErrInvalidInput)
	}
	return input, nil
}

package usecase

import (
	"context"
	"fmt"
	"slices"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
)

const (
	stepPromote = "promote"
	stepInsert  = "insert"
	stepDemote  = "demote"
)

// leaderTransferSteps moves leadership from prev to target. prev stays in the guild
// as a member; when prev was only the implicit leader it is added as one.
func leaderTransferSteps(g guild.Guild, prev string, target guild.Member) (MutationStep, []MutationStep) {
	prevCond, prevOp := guild.IsMemberCond(prev), guild.SetRole(prev, guild.RoleMember)
	if !guild.IsMember(g, prev) {
		prevCond = guild.NotMember(prev)
		prevOp = guild.PushMember(guild.Member{UserID: prev, Role: guild.RoleMember, JoinedAt: g.CreatedAt})
	}

	target.Role = guild.RoleLeader
	combined := MutationStep{
		Name: stepPromote,
		Pre:  guild.Precondition{guild.LeaderIs(prev), prevCond, guild.IsMemberCond(target.UserID)},
		Mut:  guild.Mutation{prevOp, guild.SetRole(target.UserID, guild.RoleLeader)},
	}
	insert := MutationStep{
		Name: stepInsert,
		Pre:  guild.Precondition{guild.LeaderIs(prev), prevCond, guild.NotMember(target.UserID)},
		Mut:  guild.Mutation{prevOp, guild.PushMember(target)},
	}
	return combined, []MutationStep{insert}
}

func coLeaderAddSteps(target guild.Member) (MutationStep, []MutationStep) {
	target.Role = guild.RoleCoLeader
	combined := MutationStep{
		Name: stepPromote,
		Pre: guild.Precondition{
			guild.NoMemberWithRole(guild.RoleCoLeader),
			guild.MemberWithRoleIs(guild.RoleMember, target.UserID),
		},
		Mut: guild.Mutation{guild.SetRole(target.UserID, guild.RoleCoLeader)},
	}
	insert := MutationStep{
		Name: stepInsert,
		Pre: guild.Precondition{
			guild.NoMemberWithRole(guild.RoleCoLeader),
			guild.NotMember(target.UserID),
			guild.NotLeader(target.UserID),
		},
		Mut: guild.Mutation{guild.PushMember(target)},
	}
	return combined, []MutationStep{insert}
}

// coLeaderReplaceSteps swaps oldHolder for target. The slot may also have been emptied
// since the invitation was issued; a third holder fails every step.
func coLeaderReplaceSteps(oldHolder string, target guild.Member) (MutationStep, []MutationStep) {
	target.Role = guild.RoleCoLeader
	slotUnchanged := guild.AnyOf(
		guild.MemberWithRoleIs(guild.RoleCoLeader, oldHolder),
		guild.NoMemberWithRole(guild.RoleCoLeader),
	)
	combined := MutationStep{
		Name: stepPromote,
		Pre:  guild.Precondition{slotUnchanged, guild.MemberWithRoleIs(guild.RoleMember, target.UserID)},
		Mut:  guild.Mutation{guild.DemoteRole(guild.RoleCoLeader), guild.SetRole(target.UserID, guild.RoleCoLeader)},
	}
	demote := MutationStep{
		Name: stepDemote,
		Pre:  guild.Precondition{slotUnchanged, guild.NotMember(target.UserID), guild.NotLeader(target.UserID)},
		Mut:  guild.Mutation{guild.DemoteRole(guild.RoleCoLeader)},
	}
	insert := MutationStep{
		Name: stepInsert,
		Pre: guild.Precondition{
			guild.NoMemberWithRole(guild.RoleCoLeader),
			guild.NotMember(target.UserID),
			guild.NotLeader(target.UserID),
		},
		Mut: guild.Mutation{guild.PushMember(target)},
	}
	return combined, []MutationStep{demote, insert}
}

func managerAddStep(userID string) MutationStep {
	return MutationStep{
		Name: "add_manager",
		Pre:  guild.Precondition{guild.ManagersBelow(guild.MaxManagers), guild.ManagersExclude(userID)},
		Mut:  guild.Mutation{guild.PushManager(userID)},
	}
}

func appliedStep(out EngineOutcome, name string) bool {
	return slices.Contains(out.AppliedSteps, name)
}

// loadGuild resolves a guild for a command, turning absence and store errors into
// refusals.
func loadGuild(ctx context.Context, guilds guild.Repository, tenantID, guildID string) (guild.Guild, *Result) {
	g, ok, err := guilds.GetByID(ctx, guildID)
	if err != nil {
		r := refused(OutcomeStoreUnavailable, "guild storage is unreachable, try again shortly")
		return guild.Guild{}, &r
	}
	if !ok || g.TenantID != tenantID {
		r := refused(OutcomeNotFound, "guild %s does not exist", guildID)
		return guild.Guild{}, &r
	}
	return g, nil
}

// checkExclusivity refuses when userID already belongs to a different guild in the
// tenant. It is a read followed by a decision, so two concurrent joins into different
// guilds can both pass.
func checkExclusivity(ctx context.Context, guilds guild.Repository, tenantID, userID, guildID string) *Result {
	other, found, err := guilds.FindByMember(ctx, tenantID, userID)
	if err != nil {
		r := refused(OutcomeStoreUnavailable, "guild storage is unreachable, try again shortly")
		return &r
	}
	if found && other.ID != guildID {
		r := refused(OutcomeAlreadyInOtherGuild, "%s is already in %s; leave that guild first", userID, other.Name)
		return &r
	}
	return nil
}

func resultf(outcome Outcome, g guild.Guild, format string, args ...any) Result {
	return Result{Outcome: outcome, Guild: g, Message: fmt.Sprintf(format, args...)}
}

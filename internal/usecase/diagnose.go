package usecase

import (
	"fmt"
	"slices"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
)

type slotKind int

const (
	slotLeader slotKind = iota
	slotCoLeader
	slotManager
	slotRoster
)

// slotRef names the role or list a command was trying to fill.
type slotRef struct {
	kind   slotKind
	region guild.RegionCode
	roster guild.RosterKind
}

func leaderSlot() slotRef   { return slotRef{kind: slotLeader} }
func coLeaderSlot() slotRef { return slotRef{kind: slotCoLeader} }
func managerSlot() slotRef  { return slotRef{kind: slotManager} }

func rosterSlot(region guild.RegionCode, roster guild.RosterKind) slotRef {
	return slotRef{kind: slotRoster, region: region, roster: roster}
}

func (s slotRef) String() string {
	switch s.kind {
	case slotLeader:
		return "leader"
	case slotCoLeader:
		return "co-leader"
	case slotManager:
		return "manager"
	default:
		return fmt.Sprintf("%s %s roster", s.region, s.roster)
	}
}

func (s slotRef) singleton() bool {
	return s.kind == slotLeader || s.kind == slotCoLeader
}

func (s slotRef) heldBy(g guild.Guild, userID string) bool {
	switch s.kind {
	case slotLeader:
		return guild.IsLeader(g, userID)
	case slotCoLeader:
		return guild.IsCoLeader(g, userID)
	case slotManager:
		return guild.IsManager(g, userID)
	default:
		return slices.Contains(g.RosterFor(s.region, s.roster), userID)
	}
}

func (s slotRef) holder(g guild.Guild) string {
	if s.kind == slotLeader {
		return guild.LeaderID(g)
	}
	return guild.CoLeaderID(g)
}

func (s slotRef) full(g guild.Guild) bool {
	switch s.kind {
	case slotManager:
		return !guild.HasCapacity(g.Managers, guild.MaxManagers)
	case slotRoster:
		return !guild.HasCapacity(g.RosterFor(s.region, s.roster), guild.MaxRosterSize)
	default:
		return false
	}
}

// diagnose explains why a guarded write did not apply, checking in order: the target
// already holds the slot, a singleton slot changed hands, a list is full.
func diagnose(g guild.Guild, s slotRef, targetID, expectedHolder string) Result {
	if s.heldBy(g, targetID) {
		return Result{Outcome: OutcomeAlreadyHolds, Guild: g, Message: fmt.Sprintf("%s already holds the %s spot in %s", targetID, s, g.Name)}
	}
	if s.singleton() {
		if holder := s.holder(g); holder != expectedHolder {
			if holder == "" {
				return Result{Outcome: OutcomeSlotChanged, Guild: g, Message: fmt.Sprintf("the %s of %s changed since this was issued; the slot is now empty", s, g.Name)}
			}
			return Result{Outcome: OutcomeSlotChanged, Guild: g, Message: fmt.Sprintf("the %s of %s changed since this was issued; it is now held by %s", s, g.Name, holder)}
		}
	}
	if s.full(g) {
		return Result{Outcome: OutcomeCapacityReached, Guild: g, Message: fmt.Sprintf("the %s of %s is full", s, g.Name)}
	}
	return Result{Outcome: OutcomeStateConflict, Guild: g, Message: fmt.Sprintf("%s changed while this was processed; please try again", g.Name)}
}

package guild

import (
	"errors"
	"fmt"
	"slices"
)

const (
	LevelMember   = 0
	LevelManager  = 1
	LevelCoLeader = 2
	LevelLeader   = 3
)

var ErrInvariantViolation = errors.New("guild invariant violation")

// LeaderID returns the explicit leader, or RegisteredBy when no member carries the role.
func LeaderID(g Guild) string {
	for _, m := range g.Members {
		if m.Role == RoleLeader {
			return m.UserID
		}
	}
	return g.RegisteredBy
}

// CoLeaderID returns the current co-leader or "" when the slot is empty.
func CoLeaderID(g Guild) string {
	for _, m := range g.Members {
		if m.Role == RoleCoLeader {
			return m.UserID
		}
	}
	return ""
}

func IsLeader(g Guild, userID string) bool {
	return userID != "" && LeaderID(g) == userID
}

func IsCoLeader(g Guild, userID string) bool {
	return userID != "" && CoLeaderID(g) == userID
}

func IsManager(g Guild, userID string) bool {
	return userID != "" && slices.Contains(g.Managers, userID)
}

func IsMember(g Guild, userID string) bool {
	_, ok := g.Member(userID)
	return ok
}

func RoleLevel(g Guild, userID string) int {
	switch {
	case IsLeader(g, userID):
		return LevelLeader
	case IsCoLeader(g, userID):
		return LevelCoLeader
	case IsManager(g, userID):
		return LevelManager
	default:
		return LevelMember
	}
}

// CanManage reports whether actor outranks target.
func CanManage(g Guild, actorID, targetID string) bool {
	return RoleLevel(g, actorID) > RoleLevel(g, targetID)
}

func HasCapacity(list []string, max int) bool {
	return len(list) < max
}

// HasRosterPresence reports whether userID occupies any roster list, optionally
// ignoring one (region, kind) pair.
func HasRosterPresence(g Guild, userID string, skipRegion RegionCode, skipKind RosterKind) bool {
	for _, r := range g.Regions {
		for _, kind := range []RosterKind{RosterMain, RosterSub} {
			if r.Code == skipRegion && kind == skipKind {
				continue
			}
			if slices.Contains(g.RosterFor(r.Code, kind), userID) {
				return true
			}
		}
	}
	return false
}

func RegionActive(g Guild, code RegionCode) bool {
	r, ok := g.Region(code)
	return ok && r.Status == StatusActive
}

// Validate checks the structural invariants that must hold after every mutation.
func Validate(g Guild) error {
	if len(g.Regions) == 0 {
		return fmt.Errorf("%w: guild must have at least one region", ErrInvariantViolation)
	}

	seen := make(map[string]struct{}, len(g.Members))
	leaders, coLeaders := 0, 0
	for _, m := range g.Members {
		if _, dup := seen[m.UserID]; dup {
			return fmt.Errorf("%w: member %s listed twice", ErrInvariantViolation, m.UserID)
		}
		seen[m.UserID] = struct{}{}
		switch m.Role {
		case RoleLeader:
			leaders++
		case RoleCoLeader:
			coLeaders++
		case RoleMember:
		default:
			return fmt.Errorf("%w: member %s has unknown role %q", ErrInvariantViolation, m.UserID, m.Role)
		}
	}
	if leaders > 1 {
		return fmt.Errorf("%w: %d leaders", ErrInvariantViolation, leaders)
	}
	if coLeaders > MaxCoLeaders {
		return fmt.Errorf("%w: %d co-leaders", ErrInvariantViolation, coLeaders)
	}
	if leaders == 0 && g.RegisteredBy == "" {
		return fmt.Errorf("%w: guild has no leader", ErrInvariantViolation)
	}

	if len(g.Managers) > MaxManagers {
		return fmt.Errorf("%w: %d managers", ErrInvariantViolation, len(g.Managers))
	}
	if hasDuplicates(g.Managers) {
		return fmt.Errorf("%w: duplicate manager", ErrInvariantViolation)
	}

	regions := make(map[RegionCode]struct{}, len(g.Regions))
	for _, r := range g.Regions {
		if _, dup := regions[r.Code]; dup {
			return fmt.Errorf("%w: region %s listed twice", ErrInvariantViolation, r.Code)
		}
		regions[r.Code] = struct{}{}
		for _, kind := range []RosterKind{RosterMain, RosterSub} {
			list := r.list(kind)
			if len(list) > MaxRosterSize {
				return fmt.Errorf("%w: %s %s roster has %d players", ErrInvariantViolation, r.Code, kind, len(list))
			}
			if hasDuplicates(list) {
				return fmt.Errorf("%w: duplicate player on %s %s roster", ErrInvariantViolation, r.Code, kind)
			}
		}
	}

	return nil
}

func hasDuplicates(list []string) bool {
	seen := make(map[string]struct{}, len(list))
	for _, v := range list {
		if _, ok := seen[v]; ok {
			return true
		}
		seen[v] = struct{}{}
	}
	return false
}

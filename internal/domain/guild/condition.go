package guild

import (
	"fmt"
	"slices"
	"strings"
)

// Condition is one clause of a precondition evaluated against the stored guild at
// write time.
type Condition interface {
	holds(g Guild) bool
	String() string
}

// Precondition is a conjunction of conditions.
type Precondition []Condition

// Check returns the first condition that does not hold.
func (p Precondition) Check(g Guild) (Condition, bool) {
	for _, c := range p {
		if !c.holds(g) {
			return c, false
		}
	}
	return nil, true
}

func (p Precondition) String() string {
	parts := make([]string, 0, len(p))
	for _, c := range p {
		parts = append(parts, c.String())
	}
	return strings.Join(parts, " AND ")
}

type noMemberWithRole struct {
	role Role
}

func NoMemberWithRole(role Role) Condition {
	return noMemberWithRole{role: role}
}

func (c noMemberWithRole) holds(g Guild) bool {
	return !slices.ContainsFunc(g.Members, func(m Member) bool { return m.Role == c.role })
}

func (c noMemberWithRole) String() string {
	return fmt.Sprintf("no member with role %s", c.role)
}

type memberWithRoleIs struct {
	role   Role
	userID string
}

// MemberWithRoleIs holds when the member carrying role is exactly userID.
func MemberWithRoleIs(role Role, userID string) Condition {
	return memberWithRoleIs{role: role, userID: userID}
}

func (c memberWithRoleIs) holds(g Guild) bool {
	m, ok := g.Member(c.userID)
	return ok && m.Role == c.role
}

func (c memberWithRoleIs) String() string {
	return fmt.Sprintf("%s is %s", c.role, c.userID)
}

type anyOf struct {
	conds []Condition
}

func AnyOf(conds ...Condition) Condition {
	return anyOf{conds: conds}
}

func (c anyOf) holds(g Guild) bool {
	for _, cond := range c.conds {
		if cond.holds(g) {
			return true
		}
	}
	return false
}

func (c anyOf) String() string {
	parts := make([]string, 0, len(c.conds))
	for _, cond := range c.conds {
		parts = append(parts, cond.String())
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

type isMember struct {
	userID string
	want   bool
}

func IsMemberCond(userID string) Condition {
	return isMember{userID: userID, want: true}
}

func NotMember(userID string) Condition {
	return isMember{userID: userID, want: false}
}

func (c isMember) holds(g Guild) bool {
	return IsMember(g, c.userID) == c.want
}

func (c isMember) String() string {
	if c.want {
		return fmt.Sprintf("%s is a member", c.userID)
	}
	return fmt.Sprintf("%s is not a member", c.userID)
}

type leaderIs struct {
	userID string
	want   bool
}

func LeaderIs(userID string) Condition {
	return leaderIs{userID: userID, want: true}
}

func NotLeader(userID string) Condition {
	return leaderIs{userID: userID, want: false}
}

func (c leaderIs) holds(g Guild) bool {
	return IsLeader(g, c.userID) == c.want
}

func (c leaderIs) String() string {
	if c.want {
		return fmt.Sprintf("leader is %s", c.userID)
	}
	return fmt.Sprintf("leader is not %s", c.userID)
}

type managersBelow struct {
	n int
}

func ManagersBelow(n int) Condition {
	return managersBelow{n: n}
}

func (c managersBelow) holds(g Guild) bool {
	return len(g.Managers) < c.n
}

func (c managersBelow) String() string {
	return fmt.Sprintf("managers < %d", c.n)
}

type managersContain struct {
	userID string
	want   bool
}

func ManagersInclude(userID string) Condition {
	return managersContain{userID: userID, want: true}
}

func ManagersExclude(userID string) Condition {
	return managersContain{userID: userID, want: false}
}

func (c managersContain) holds(g Guild) bool {
	return slices.Contains(g.Managers, c.userID) == c.want
}

func (c managersContain) String() string {
	if c.want {
		return fmt.Sprintf("managers include %s", c.userID)
	}
	return fmt.Sprintf("managers exclude %s", c.userID)
}

type rosterBelow struct {
	region RegionCode
	kind   RosterKind
	n      int
}

func RosterBelow(region RegionCode, kind RosterKind, n int) Condition {
	return rosterBelow{region: region, kind: kind, n: n}
}

func (c rosterBelow) holds(g Guild) bool {
	if _, ok := g.Region(c.region); !ok {
		return false
	}
	return len(g.RosterFor(c.region, c.kind)) < c.n
}

func (c rosterBelow) String() string {
	return fmt.Sprintf("%s %s roster < %d", c.region, c.kind, c.n)
}

type rosterContains struct {
	region RegionCode
	kind   RosterKind
	userID string
	want   bool
}

func RosterIncludes(region RegionCode, kind RosterKind, userID string) Condition {
	return rosterContains{region: region, kind: kind, userID: userID, want: true}
}

func RosterExcludes(region RegionCode, kind RosterKind, userID string) Condition {
	return rosterContains{region: region, kind: kind, userID: userID, want: false}
}

func (c rosterContains) holds(g Guild) bool {
	if _, ok := g.Region(c.region); !ok {
		return false
	}
	return slices.Contains(g.RosterFor(c.region, c.kind), c.userID) == c.want
}

func (c rosterContains) String() string {
	verb := "excludes"
	if c.want {
		verb = "includes"
	}
	return fmt.Sprintf("%s %s roster %s %s", c.region, c.kind, verb, c.userID)
}

type noOtherRosterPresence struct {
	region RegionCode
	kind   RosterKind
	userID string
}

// NoOtherRosterPresence holds when userID occupies no roster list besides (region, kind).
func NoOtherRosterPresence(region RegionCode, kind RosterKind, userID string) Condition {
	return noOtherRosterPresence{region: region, kind: kind, userID: userID}
}

func (c noOtherRosterPresence) holds(g Guild) bool {
	return !HasRosterPresence(g, c.userID, c.region, c.kind)
}

func (c noOtherRosterPresence) String() string {
	return fmt.Sprintf("%s has no roster spot outside %s %s", c.userID, c.region, c.kind)
}

type regionActive struct {
	region RegionCode
}

func RegionIsActive(region RegionCode) Condition {
	return regionActive{region: region}
}

func (c regionActive) holds(g Guild) bool {
	return RegionActive(g, c.region)
}

func (c regionActive) String() string {
	return fmt.Sprintf("region %s is active", c.region)
}

type statusIs struct {
	status Status
}

func StatusIs(status Status) Condition {
	return statusIs{status: status}
}

func (c statusIs) holds(g Guild) bool {
	return g.Status == c.status
}

func (c statusIs) String() string {
	return fmt.Sprintf("status is %s", c.status)
}

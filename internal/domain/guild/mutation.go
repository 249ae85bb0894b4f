package guild

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

var ErrOpRejected = errors.New("mutation rejected")

// Op is one atomic change to a guild. Ops never read anything but the guild they mutate.
type Op interface {
	apply(g *Guild) error
	String() string
}

// Mutation is an ordered list of ops applied as one unit.
type Mutation []Op

// Apply runs every op against a copy of g and validates the result. The input is never modified.
func (m Mutation) Apply(g Guild) (Guild, error) {
	next := g.Clone()
	for _, op := range m {
		if err := op.apply(&next); err != nil {
			return Guild{}, err
		}
	}
	if err := Validate(next); err != nil {
		return Guild{}, err
	}
	return next, nil
}

func (m Mutation) String() string {
	parts := make([]string, 0, len(m))
	for _, op := range m {
		parts = append(parts, op.String())
	}
	return strings.Join(parts, "; ")
}

type setRole struct {
	userID string
	role   Role
}

func SetRole(userID string, role Role) Op {
	return setRole{userID: userID, role: role}
}

func (o setRole) apply(g *Guild) error {
	idx := g.memberIndex(o.userID)
	if idx < 0 {
		return fmt.Errorf("%w: %s is not a member", ErrOpRejected, o.userID)
	}
	g.Members[idx].Role = o.role
	return nil
}

func (o setRole) String() string {
	return fmt.Sprintf("set %s role=%s", o.userID, o.role)
}

type demoteRole struct {
	role Role
}

// DemoteRole resets whoever holds role back to member. It is a no-op when nobody does.
func DemoteRole(role Role) Op {
	return demoteRole{role: role}
}

func (o demoteRole) apply(g *Guild) error {
	for i := range g.Members {
		if g.Members[i].Role == o.role {
			g.Members[i].Role = RoleMember
		}
	}
	return nil
}

func (o demoteRole) String() string {
	return fmt.Sprintf("demote %s", o.role)
}

type pushMember struct {
	member Member
}

func PushMember(member Member) Op {
	return pushMember{member: member}
}

func (o pushMember) apply(g *Guild) error {
	if g.memberIndex(o.member.UserID) >= 0 {
		return fmt.Errorf("%w: %s is already a member", ErrOpRejected, o.member.UserID)
	}
	g.Members = append(g.Members, o.member)
	return nil
}

func (o pushMember) String() string {
	return fmt.Sprintf("push member %s as %s", o.member.UserID, o.member.Role)
}

type pullMember struct {
	userID string
}

func PullMember(userID string) Op {
	return pullMember{userID: userID}
}

func (o pullMember) apply(g *Guild) error {
	g.Members = slices.DeleteFunc(g.Members, func(m Member) bool { return m.UserID == o.userID })
	return nil
}

func (o pullMember) String() string {
	return fmt.Sprintf("pull member %s", o.userID)
}

type pushManager struct {
	userID string
}

func PushManager(userID string) Op {
	return pushManager{userID: userID}
}

func (o pushManager) apply(g *Guild) error {
	if slices.Contains(g.Managers, o.userID) {
		return fmt.Errorf("%w: %s is already a manager", ErrOpRejected, o.userID)
	}
	g.Managers = append(g.Managers, o.userID)
	return nil
}

func (o pushManager) String() string {
	return fmt.Sprintf("push manager %s", o.userID)
}

type pullManager struct {
	userID string
}

func PullManager(userID string) Op {
	return pullManager{userID: userID}
}

func (o pullManager) apply(g *Guild) error {
	g.Managers = slices.DeleteFunc(g.Managers, func(id string) bool { return id == o.userID })
	return nil
}

func (o pullManager) String() string {
	return fmt.Sprintf("pull manager %s", o.userID)
}

type pushRoster struct {
	region RegionCode
	kind   RosterKind
	userID string
}

func PushRoster(region RegionCode, kind RosterKind, userID string) Op {
	return pushRoster{region: region, kind: kind, userID: userID}
}

func (o pushRoster) apply(g *Guild) error {
	list, region, err := materializeRoster(g, o.region, o.kind)
	if err != nil {
		return err
	}
	if slices.Contains(list, o.userID) {
		return fmt.Errorf("%w: %s is already on the %s %s roster", ErrOpRejected, o.userID, o.region, o.kind)
	}
	region.setList(o.kind, append(list, o.userID))
	return nil
}

func (o pushRoster) String() string {
	return fmt.Sprintf("push %s to %s %s roster", o.userID, o.region, o.kind)
}

type pullRoster struct {
	region RegionCode
	kind   RosterKind
	userID string
}

func PullRoster(region RegionCode, kind RosterKind, userID string) Op {
	return pullRoster{region: region, kind: kind, userID: userID}
}

func (o pullRoster) apply(g *Guild) error {
	list, region, err := materializeRoster(g, o.region, o.kind)
	if err != nil {
		return err
	}
	region.setList(o.kind, slices.DeleteFunc(list, func(id string) bool { return id == o.userID }))
	return nil
}

func (o pullRoster) String() string {
	return fmt.Sprintf("pull %s from %s %s roster", o.userID, o.region, o.kind)
}

// materializeRoster resolves the writable list for (code, kind), moving legacy
// occupants into the primary region first.
func materializeRoster(g *Guild, code RegionCode, kind RosterKind) ([]string, *Region, error) {
	region := g.regionRef(code)
	if region == nil {
		return nil, nil, fmt.Errorf("%w: region %s is not configured", ErrOpRejected, code)
	}
	list := region.list(kind)
	if len(list) == 0 && g.Regions[0].Code == code {
		if legacy := g.legacyList(kind); len(legacy) > 0 {
			list = append([]string(nil), legacy...)
			g.clearLegacy(kind)
		}
	}
	return slices.Clone(list), region, nil
}

type setRegionStatus struct {
	region RegionCode
	status Status
}

func SetRegionStatus(region RegionCode, status Status) Op {
	return setRegionStatus{region: region, status: status}
}

func (o setRegionStatus) apply(g *Guild) error {
	region := g.regionRef(o.region)
	if region == nil {
		return fmt.Errorf("%w: region %s is not configured", ErrOpRejected, o.region)
	}
	region.Status = o.status
	return nil
}

func (o setRegionStatus) String() string {
	return fmt.Sprintf("set region %s status=%s", o.region, o.status)
}

package guild

import (
	"slices"
	"strings"
	"time"
)

type Role string

const (
	RoleLeader   Role = "leader"
	RoleCoLeader Role = "co-leader"
	RoleMember   Role = "member"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusInactive  Status = "inactive"
	StatusSuspended Status = "suspended"
)

type RegionCode string

const (
	RegionNA   RegionCode = "NA"
	RegionSA   RegionCode = "SA"
	RegionEU   RegionCode = "EU"
	RegionAsia RegionCode = "ASIA"
	RegionOCE  RegionCode = "OCE"
	RegionME   RegionCode = "ME"
	RegionAF   RegionCode = "AF"
)

type RosterKind string

const (
	RosterMain RosterKind = "main"
	RosterSub  RosterKind = "sub"
)

const (
	MaxCoLeaders  = 1
	MaxManagers   = 2
	MaxRosterSize = 5
	DefaultElo    = 1000
)

// Member is a tracked guild member. Managers are a separate tier and are not stored here.
type Member struct {
	UserID      string
	DisplayName string
	Role        Role
	JoinedAt    time.Time
}

type Region struct {
	Code       RegionCode
	Wins       int
	Losses     int
	Elo        int
	Status     Status
	MainRoster []string
	SubRoster  []string
}

// Guild is the unit of consistency: every invariant is enforced within one instance.
type Guild struct {
	ID           string
	TenantID     string
	Name         string
	Status       Status
	RegisteredBy string
	Members      []Member
	Managers     []string
	Regions      []Region
	// MainRoster and SubRoster are the pre-region flat lists. They belong to the
	// primary (first) region and are moved into it by the first roster write.
	MainRoster []string
	SubRoster  []string
	Version    int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func ParseRegionCode(v string) (RegionCode, bool) {
	code := RegionCode(strings.ToUpper(strings.TrimSpace(v)))
	switch code {
	case RegionNA, RegionSA, RegionEU, RegionAsia, RegionOCE, RegionME, RegionAF:
		return code, true
	default:
		return "", false
	}
}

func ParseRosterKind(v string) (RosterKind, bool) {
	kind := RosterKind(strings.ToLower(strings.TrimSpace(v)))
	switch kind {
	case RosterMain, RosterSub:
		return kind, true
	default:
		return "", false
	}
}

func ParseStatus(v string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(v)))
	switch status {
	case StatusActive, StatusInactive, StatusSuspended:
		return status, true
	default:
		return "", false
	}
}

// Clone returns a deep copy so callers never share slices with a stored snapshot.
func (g Guild) Clone() Guild {
	copied := g
	copied.Members = append([]Member(nil), g.Members...)
	copied.Managers = append([]string(nil), g.Managers...)
	copied.MainRoster = append([]string(nil), g.MainRoster...)
	copied.SubRoster = append([]string(nil), g.SubRoster...)
	copied.Regions = make([]Region, 0, len(g.Regions))
	for _, region := range g.Regions {
		r := region
		r.MainRoster = append([]string(nil), region.MainRoster...)
		r.SubRoster = append([]string(nil), region.SubRoster...)
		copied.Regions = append(copied.Regions, r)
	}
	return copied
}

func (g Guild) Member(userID string) (Member, bool) {
	for _, m := range g.Members {
		if m.UserID == userID {
			return m, true
		}
	}
	return Member{}, false
}

func (g Guild) Region(code RegionCode) (Region, bool) {
	for _, r := range g.Regions {
		if r.Code == code {
			return r, true
		}
	}
	return Region{}, false
}

// RosterFor returns the occupants of a region list. For the primary region an empty
// list falls back to the legacy flat list.
func (g Guild) RosterFor(code RegionCode, kind RosterKind) []string {
	region, ok := g.Region(code)
	if !ok {
		return nil
	}
	list := region.list(kind)
	if len(list) > 0 || g.Regions[0].Code != code {
		return list
	}
	return g.legacyList(kind)
}

// PrimaryRegion is the first configured region.
func (g Guild) PrimaryRegion() (Region, bool) {
	if len(g.Regions) == 0 {
		return Region{}, false
	}
	return g.Regions[0], true
}

func (g Guild) legacyList(kind RosterKind) []string {
	if kind == RosterSub {
		return g.SubRoster
	}
	return g.MainRoster
}

func (g *Guild) clearLegacy(kind RosterKind) {
	if kind == RosterSub {
		g.SubRoster = nil
		return
	}
	g.MainRoster = nil
}

func (r Region) list(kind RosterKind) []string {
	if kind == RosterSub {
		return r.SubRoster
	}
	return r.MainRoster
}

func (r *Region) setList(kind RosterKind, list []string) {
	if kind == RosterSub {
		r.SubRoster = list
		return
	}
	r.MainRoster = list
}

func (g *Guild) regionRef(code RegionCode) *Region {
	for i := range g.Regions {
		if g.Regions[i].Code == code {
			return &g.Regions[i]
		}
	}
	return nil
}

func (g *Guild) memberIndex(userID string) int {
	return slices.IndexFunc(g.Members, func(m Member) bool { return m.UserID == userID })
}

// RegionCodes lists the configured regions in stored order.
func (g Guild) RegionCodes() []RegionCode {
	out := make([]RegionCode, 0, len(g.Regions))
	for _, r := range g.Regions {
		out = append(out, r.Code)
	}
	return out
}

// OccupantIDs returns every user tracked as a member or roster occupant. Managers are
// not included because they are not part of the membership tier.
func (g Guild) OccupantIDs() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0, len(g.Members))
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, m := range g.Members {
		add(m.UserID)
	}
	for _, r := range g.Regions {
		for _, kind := range []RosterKind{RosterMain, RosterSub} {
			for _, id := range g.RosterFor(r.Code, kind) {
				add(id)
			}
		}
	}
	return out
}

package invitation

import (
	"errors"
	"strings"
	"time"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
)

var (
	ErrInvalidHandle = errors.New("invalid invitation handle")
	ErrExpiredHandle = errors.New("invitation handle expired")
)

type Type string

const (
	TypeLeaderTransfer  Type = "leader_transfer"
	TypeCoLeaderAdd     Type = "co_leader_add"
	TypeCoLeaderReplace Type = "co_leader_replace"
	TypeManagerAdd      Type = "manager_add"
	TypeRosterAdd       Type = "roster_add"
)

func ParseType(v string) (Type, bool) {
	t := Type(strings.ToLower(strings.TrimSpace(v)))
	switch t {
	case TypeLeaderTransfer, TypeCoLeaderAdd, TypeCoLeaderReplace, TypeManagerAdd, TypeRosterAdd:
		return t, true
	default:
		return "", false
	}
}

type State string

const (
	StateCreated   State = "created"
	StateDelivered State = "delivered"
	StateAccepted  State = "accepted"
	StateDeclined  State = "declined"
	StateStale     State = "stale"
)

// Context is the guild state captured when the invitation was issued.
type Context struct {
	PreviousLeaderID string
	OldHolderID      string
	Region           guild.RegionCode
	Roster           guild.RosterKind
}

// Invitation is never persisted. It travels inside its handle and is re-validated
// against the current guild on every response.
type Invitation struct {
	ID            string
	Type          Type
	TenantID      string
	GuildID       string
	GuildName     string
	InviterUserID string
	TargetUserID  string
	TargetName    string
	Context       Context
	CreatedAt     time.Time
	ExpiresAt     *time.Time
}

// Handle is the opaque token handed to the target.
type Handle string

type Codec interface {
	Encode(inv Invitation) (Handle, error)
	Decode(handle Handle) (Invitation, error)
}

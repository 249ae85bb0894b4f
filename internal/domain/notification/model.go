package notification

import "context"

type Kind string

const (
	KindInvitation         Kind = "invitation"
	KindInvitationAccepted Kind = "invitation_accepted"
	KindInvitationDeclined Kind = "invitation_declined"
	KindRoleChanged        Kind = "role_changed"
	KindRosterChanged      Kind = "roster_changed"
	KindGuildDeleted       Kind = "guild_deleted"
)

type Channel string

const (
	ChannelDirect   Channel = "direct"
	ChannelFallback Channel = "fallback-channel"
)

// RoleKind names an external role kept in sync with guild state.
type RoleKind string

const (
	RoleGuildLeader   RoleKind = "guild_leader"
	RoleGuildCoLeader RoleKind = "guild_co_leader"
	RoleGuildManager  RoleKind = "guild_manager"
	RoleGuildMember   RoleKind = "guild_member"
)

type Payload struct {
	Kind             Kind   `json:"kind"`
	Title            string `json:"title"`
	Body             string `json:"body"`
	GuildID          string `json:"guild_id,omitempty"`
	GuildName        string `json:"guild_name,omitempty"`
	InvitationID     string `json:"invitation_id,omitempty"`
	InvitationType   string `json:"invitation_type,omitempty"`
	InvitationHandle string `json:"invitation_handle,omitempty"`
	ActorUserID      string `json:"actor_user_id,omitempty"`
}

// DeliveryContext tells the gateway where a fallback post may go.
type DeliveryContext struct {
	GuildID       string
	AllowFallback bool
}

type DeliveryReceipt struct {
	Delivered bool
	Via       Channel
}

type Gateway interface {
	Deliver(ctx context.Context, tenantID, userID string, payload Payload, dc DeliveryContext) (DeliveryReceipt, error)
}

// RoleSync grants and revokes external roles. Both calls are idempotent.
type RoleSync interface {
	Grant(ctx context.Context, change RoleChange) error
	Revoke(ctx context.Context, change RoleChange) error
}

type RoleChange struct {
	TenantID      string   `json:"tenant_id"`
	GuildID       string   `json:"guild_id"`
	UserID        string   `json:"user_id"`
	Role          RoleKind `json:"role"`
	Grant         bool     `json:"grant"`
	CorrelationID string   `json:"correlation_id,omitempty"`
}

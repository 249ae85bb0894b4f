package cache

import (
	"context"
	"time"

	"github.com/riskibarqy/guildhall/internal/domain/invitation"
	basecache "github.com/riskibarqy/guildhall/internal/platform/cache"
)

// InvitationResolutions is an in-process invitation.ResolutionTracker. Entries expire
// with the ttl; after that an answered invitation falls back to full re-validation.
type InvitationResolutions struct {
	store *basecache.Store[invitation.State]
}

func NewInvitationResolutions(ttl time.Duration) *InvitationResolutions {
	return &InvitationResolutions{store: basecache.NewStore[invitation.State](ttl)}
}

func (r *InvitationResolutions) MarkResolved(ctx context.Context, invitationID string, state invitation.State) error {
	r.store.Set(ctx, resolutionKey(invitationID), state)
	return nil
}

func (r *InvitationResolutions) Resolution(ctx context.Context, invitationID string) (invitation.State, bool, error) {
	state, ok := r.store.Get(ctx, resolutionKey(invitationID))
	return state, ok, nil
}

func resolutionKey(invitationID string) string {
	if invitationID == "" {
		return ""
	}
	return "invitation:resolution:" + invitationID
}

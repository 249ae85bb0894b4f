package invitation

import "context"

// ResolutionTracker remembers which delivered invitations were already answered so the
// interaction can be made inert. It is advisory: acceptance always re-validates the guild.
type ResolutionTracker interface {
	MarkResolved(ctx context.Context, invitationID string, state State) error
	Resolution(ctx context.Context, invitationID string) (State, bool, error)
}

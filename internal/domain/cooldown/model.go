package cooldown

import (
	"context"
	"time"
)

// Event records a user leaving a guild.
type Event struct {
	TenantID string
	UserID   string
	GuildID  string
	LeftAt   time.Time
}

type Status struct {
	Active          bool
	Remaining       time.Duration
	LastLeftGuildID string
}

// Oracle answers whether a user recently left a guild within a tenant.
type Oracle interface {
	Status(ctx context.Context, tenantID, userID string) (Status, error)
	RecordLeave(ctx context.Context, event Event) error
}

// StatusFromEvent derives the cooldown status of the latest leave event.
func StatusFromEvent(last Event, window time.Duration, now time.Time) Status {
	if last.LeftAt.IsZero() || window <= 0 {
		return Status{}
	}
	remaining := last.LeftAt.Add(window).Sub(now)
	if remaining <= 0 {
		return Status{LastLeftGuildID: last.GuildID}
	}
	return Status{Active: true, Remaining: remaining, LastLeftGuildID: last.GuildID}
}

// Allows reports whether joining guildID is permitted under s. Returning to the guild
// that was just left is always allowed.
func (s Status) Allows(guildID string) bool {
	return !s.Active || s.LastLeftGuildID == guildID
}

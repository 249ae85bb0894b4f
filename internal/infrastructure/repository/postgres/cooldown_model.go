package postgres

import "time"

const guildTransitionTable = "guild_transition_events"

type guildTransitionTableModel struct {
	TenantID string    `db:"tenant_id"`
	UserID   string    `db:"user_id"`
	GuildID  string    `db:"guild_public_id"`
	LeftAt   time.Time `db:"left_at"`
}

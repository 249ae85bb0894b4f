package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/guildhall/internal/domain/cooldown"
	qb "github.com/riskibarqy/guildhall/internal/platform/querybuilder"
)

// CooldownRepository answers cooldown questions from the append-only leave log.
type CooldownRepository struct {
	db     *sqlx.DB
	window time.Duration
	now    func() time.Time
}

func NewCooldownRepository(db *sqlx.DB, window time.Duration) *CooldownRepository {
	return &CooldownRepository{db: db, window: window, now: time.Now}
}

func (r *CooldownRepository) Status(ctx context.Context, tenantID, userID string) (cooldown.Status, error) {
	query, args, err := qb.Select(qb.Columns(guildTransitionTableModel{})...).
		From(guildTransitionTable).
		Where(
			qb.Eq("tenant_id", tenantID),
			qb.Eq("user_id", userID),
		).
		OrderBy("left_at DESC").
		Limit(1).
		ToSQL()
	if err != nil {
		return cooldown.Status{}, fmt.Errorf("build cooldown status query: %w", err)
	}

	var row guildTransitionTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return cooldown.Status{}, nil
		}
		return cooldown.Status{}, fmt.Errorf("get latest guild transition: %w", err)
	}

	last := cooldown.Event{
		TenantID: row.TenantID,
		UserID:   row.UserID,
		GuildID:  row.GuildID,
		LeftAt:   row.LeftAt,
	}
	return cooldown.StatusFromEvent(last, r.window, r.now()), nil
}

func (r *CooldownRepository) RecordLeave(ctx context.Context, event cooldown.Event) error {
	if event.LeftAt.IsZero() {
		event.LeftAt = r.now()
	}
	model := guildTransitionTableModel{
		TenantID: strings.TrimSpace(event.TenantID),
		UserID:   strings.TrimSpace(event.UserID),
		GuildID:  strings.TrimSpace(event.GuildID),
		LeftAt:   event.LeftAt.UTC(),
	}

	query, args, err := qb.InsertModel(guildTransitionTable, model, "")
	if err != nil {
		return fmt.Errorf("build insert guild transition query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert guild transition: %w", err)
	}
	return nil
}

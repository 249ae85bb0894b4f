package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
	qb "github.com/riskibarqy/guildhall/internal/platform/querybuilder"
)

var errConcurrentGuildWrite = errors.New("guild row changed under lock")

var guildColumns = qb.Columns(guildTableModel{})

type GuildRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

func NewGuildRepository(db *sqlx.DB) *GuildRepository {
	return &GuildRepository{db: db, now: time.Now}
}

func (r *GuildRepository) Create(ctx context.Context, g guild.Guild) error {
	model, err := guildInsertFromDomain(g)
	if err != nil {
		return err
	}

	query, args, err := qb.InsertModel(guildTable, model, "")
	if err != nil {
		return fmt.Errorf("build insert guild query: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", guild.ErrDuplicateName, g.Name)
		}
		return fmt.Errorf("insert guild: %w", err)
	}
	return nil
}

func (r *GuildRepository) GetByID(ctx context.Context, guildID string) (guild.Guild, bool, error) {
	return r.getOne(ctx, "get guild",
		qb.Eq("public_id", guildID),
		qb.IsNull("deleted_at"),
	)
}

func (r *GuildRepository) GetByName(ctx context.Context, tenantID, name string) (guild.Guild, bool, error) {
	return r.getOne(ctx, "get guild by name",
		qb.Eq("tenant_id", tenantID),
		qb.Expr("lower(name) = lower(?)", name),
		qb.IsNull("deleted_at"),
	)
}

// FindByMember returns the oldest guild tracking userID as a member or roster occupant.
func (r *GuildRepository) FindByMember(ctx context.Context, tenantID, userID string) (guild.Guild, bool, error) {
	return r.getOne(ctx, "find guild by member",
		qb.Eq("tenant_id", tenantID),
		qb.ArrayContains("occupant_ids", userID),
		qb.IsNull("deleted_at"),
	)
}

func (r *GuildRepository) ListByTenant(ctx context.Context, tenantID string) ([]guild.Guild, error) {
	query, args, err := qb.Select(guildColumns...).
		From(guildTable).
		Where(
			qb.Eq("tenant_id", tenantID),
			qb.IsNull("deleted_at"),
		).
		OrderBy("created_at ASC", "public_id ASC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build list guilds query: %w", err)
	}

	var rows []guildTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list guilds: %w", err)
	}

	out := make([]guild.Guild, 0, len(rows))
	for _, row := range rows {
		g, err := guildFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, nil
}

// ConditionalUpdate locks the guild row, evaluates pre against the locked state and
// writes the mutated document with a bumped version in the same transaction.
func (r *GuildRepository) ConditionalUpdate(ctx context.Context, guildID string, pre guild.Precondition, mut guild.Mutation) (guild.UpdateOutcome, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return guild.UpdateOutcome{}, fmt.Errorf("begin tx for guild update: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query, args, err := qb.Select(guildColumns...).
		From(guildTable).
		Where(
			qb.Eq("public_id", guildID),
			qb.IsNull("deleted_at"),
		).
		Limit(1).
		ForUpdate().
		ToSQL()
	if err != nil {
		return guild.UpdateOutcome{}, fmt.Errorf("build lock guild query: %w", err)
	}

	var row guildTableModel
	if err := tx.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return guild.UpdateOutcome{Result: guild.UpdateNotFound}, nil
		}
		return guild.UpdateOutcome{}, fmt.Errorf("lock guild: %w", err)
	}
	current, err := guildFromRow(row)
	if err != nil {
		return guild.UpdateOutcome{}, err
	}

	out, err := guild.Evaluate(current, pre, mut)
	if err != nil || out.Result != guild.UpdateApplied {
		return out, err
	}
	out.Guild.UpdatedAt = r.now().UTC()

	doc, err := encodeGuildDocument(out.Guild)
	if err != nil {
		return guild.UpdateOutcome{}, err
	}
	query, args, err = qb.Update(guildTable).
		Set("status", string(out.Guild.Status)).
		Set("document", doc).
		Set("occupant_ids", pq.StringArray(out.Guild.OccupantIDs())).
		SetExpr("version", "version + 1").
		Set("updated_at", out.Guild.UpdatedAt).
		Where(
			qb.Eq("public_id", guildID),
			qb.Eq("version", current.Version),
		).
		ToSQL()
	if err != nil {
		return guild.UpdateOutcome{}, fmt.Errorf("build update guild query: %w", err)
	}

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return guild.UpdateOutcome{}, fmt.Errorf("update guild: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return guild.UpdateOutcome{}, fmt.Errorf("update guild rows affected: %w", err)
	}
	if affected != 1 {
		return guild.UpdateOutcome{}, fmt.Errorf("%w: %s", errConcurrentGuildWrite, guildID)
	}

	if err := tx.Commit(); err != nil {
		return guild.UpdateOutcome{}, fmt.Errorf("commit guild update: %w", err)
	}
	return out, nil
}

func (r *GuildRepository) Delete(ctx context.Context, guildID string) (bool, error) {
	query, args, err := qb.Update(guildTable).
		Set("deleted_at", r.now().UTC()).
		Where(
			qb.Eq("public_id", guildID),
			qb.IsNull("deleted_at"),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build delete guild query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("delete guild: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete guild rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *GuildRepository) Ping(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping guild store: %w", err)
	}
	return nil
}

func (r *GuildRepository) getOne(ctx context.Context, op string, conds ...qb.Condition) (guild.Guild, bool, error) {
	query, args, err := qb.Select(guildColumns...).
		From(guildTable).
		Where(conds...).
		OrderBy("created_at ASC", "public_id ASC").
		Limit(1).
		ToSQL()
	if err != nil {
		return guild.Guild{}, false, fmt.Errorf("build %s query: %w", op, err)
	}

	var row guildTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return guild.Guild{}, false, nil
		}
		return guild.Guild{}, false, fmt.Errorf("%s: %w", op, err)
	}

	g, err := guildFromRow(row)
	if err != nil {
		return guild.Guild{}, false, err
	}
	return g, true, nil
}

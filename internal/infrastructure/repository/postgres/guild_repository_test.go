package postgres

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/riskibarqy/guildhall/internal/domain/guild"
)

var fixedNow = time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)

const wolvesDocument = `{"members":[{"user_id":"lead","role":"leader","joined_at":"2026-01-01T00:00:00Z"},{"user_id":"m1","role":"member","joined_at":"2026-01-02T00:00:00Z"}],"regions":[{"code":"EU","wins":3,"losses":1,"elo":1040,"status":"active","main_roster":["lead","m1"]}]}`

func newMockGuildRepository(t *testing.T) (*GuildRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	repo := NewGuildRepository(sqlx.NewDb(db, "postgres"))
	repo.now = func() time.Time { return fixedNow }
	return repo, mock
}

func guildRows() *sqlmock.Rows {
	return sqlmock.NewRows(guildColumns)
}

func addWolvesRow(rows *sqlmock.Rows, version int64) *sqlmock.Rows {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	return rows.AddRow(int64(7), "guild-wolves", "tenant-1", "Iron Wolves", "active", "lead", wolvesDocument, "{lead,m1}", version, created, created, nil)
}

func TestGuildRepository_GetByID(t *testing.T) {
	tests := []struct {
		name      string
		mock      func(mock sqlmock.Sqlmock)
		wantFound bool
		wantErr   bool
	}{
		{
			name: "decodes the document",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .* FROM guilds WHERE public_id = \$1 AND deleted_at IS NULL ORDER BY created_at ASC, public_id ASC LIMIT 1`).
					WithArgs("guild-wolves").
					WillReturnRows(addWolvesRow(guildRows(), 4))
			},
			wantFound: true,
		},
		{
			name: "missing row is not an error",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .* FROM guilds WHERE public_id = \$1`).
					WithArgs("guild-wolves").
					WillReturnError(sql.ErrNoRows)
			},
		},
		{
			name: "driver error",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT .* FROM guilds WHERE public_id = \$1`).
					WithArgs("guild-wolves").
					WillReturnError(sql.ErrConnDone)
			},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockGuildRepository(t)
			tt.mock(mock)

			g, found, err := repo.GetByID(t.Context(), "guild-wolves")
			if tt.wantErr {
				require.ErrorIs(t, err, sql.ErrConnDone)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.wantFound, found)
			if found {
				require.Equal(t, "Iron Wolves", g.Name)
				require.Equal(t, int64(4), g.Version)
				require.True(t, guild.IsLeader(g, "lead"))
				require.Equal(t, []string{"lead", "m1"}, g.RosterFor(guild.RegionEU, guild.RosterMain))
				require.Equal(t, 1040, g.Regions[0].Elo)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGuildRepository_FindByMember(t *testing.T) {
	repo, mock := newMockGuildRepository(t)
	mock.ExpectQuery(`SELECT .* FROM guilds WHERE tenant_id = \$1 AND \$2 = ANY\(occupant_ids\) AND deleted_at IS NULL ORDER BY created_at ASC, public_id ASC LIMIT 1`).
		WithArgs("tenant-1", "m1").
		WillReturnRows(addWolvesRow(guildRows(), 1))

	g, found, err := repo.FindByMember(t.Context(), "tenant-1", "m1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "guild-wolves", g.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGuildRepository_GetByName_IsCaseInsensitive(t *testing.T) {
	repo, mock := newMockGuildRepository(t)
	mock.ExpectQuery(`SELECT .* FROM guilds WHERE tenant_id = \$1 AND lower\(name\) = lower\(\$2\) AND deleted_at IS NULL`).
		WithArgs("tenant-1", "IRON WOLVES").
		WillReturnRows(addWolvesRow(guildRows(), 1))

	_, found, err := repo.GetByName(t.Context(), "tenant-1", "IRON WOLVES")
	require.NoError(t, err)
	require.True(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGuildRepository_Create(t *testing.T) {
	g := guild.Guild{
		ID:           "guild-owls",
		TenantID:     "tenant-1",
		Name:         "Night Owls",
		Status:       guild.StatusActive,
		RegisteredBy: "founder",
		Members:      []guild.Member{{UserID: "founder", Role: guild.RoleLeader, JoinedAt: fixedNow}},
		Regions:      []guild.Region{{Code: guild.RegionEU, Elo: guild.DefaultElo, Status: guild.StatusActive}},
		Version:      1,
		CreatedAt:    fixedNow,
		UpdatedAt:    fixedNow,
	}

	tests := []struct {
		name    string
		mock    func(mock sqlmock.Sqlmock)
		wantErr error
	}{
		{
			name: "inserts",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO guilds \(public_id, tenant_id, name, status, registered_by, document, occupant_ids, version, created_at, updated_at\)`).
					WithArgs("guild-owls", "tenant-1", "Night Owls", "active", "founder", sqlmock.AnyArg(), sqlmock.AnyArg(), int64(1), fixedNow, fixedNow).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name: "unique violation maps to duplicate name",
			mock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(`INSERT INTO guilds`).
					WillReturnError(&pq.Error{Code: "23505"})
			},
			wantErr: guild.ErrDuplicateName,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockGuildRepository(t)
			tt.mock(mock)

			err := repo.Create(t.Context(), g)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

const lockGuildQuery = `SELECT .* FROM guilds WHERE public_id = \$1 AND deleted_at IS NULL LIMIT 1 FOR UPDATE`

func TestGuildRepository_ConditionalUpdate(t *testing.T) {
	addManager := guild.Mutation{guild.PushManager("mg1")}
	guarded := guild.Precondition{guild.ManagersBelow(guild.MaxManagers), guild.ManagersExclude("mg1")}

	t.Run("applies under the row lock", func(t *testing.T) {
		repo, mock := newMockGuildRepository(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockGuildQuery).
			WithArgs("guild-wolves").
			WillReturnRows(addWolvesRow(guildRows(), 3))
		mock.ExpectExec(`UPDATE guilds SET status = \$1, document = \$2, occupant_ids = \$3, version = version \+ 1, updated_at = \$4 WHERE public_id = \$5 AND version = \$6`).
			WithArgs("active", sqlmock.AnyArg(), sqlmock.AnyArg(), fixedNow, "guild-wolves", int64(3)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		out, err := repo.ConditionalUpdate(t.Context(), "guild-wolves", guarded, addManager)
		require.NoError(t, err)
		require.Equal(t, guild.UpdateApplied, out.Result)
		require.Equal(t, int64(4), out.Guild.Version)
		require.Equal(t, []string{"mg1"}, out.Guild.Managers)
		require.True(t, out.Guild.UpdatedAt.Equal(fixedNow))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("failed precondition writes nothing", func(t *testing.T) {
		repo, mock := newMockGuildRepository(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockGuildQuery).
			WithArgs("guild-wolves").
			WillReturnRows(addWolvesRow(guildRows(), 3))
		mock.ExpectRollback()

		out, err := repo.ConditionalUpdate(t.Context(), "guild-wolves", guild.Precondition{guild.LeaderIs("m1")}, addManager)
		require.NoError(t, err)
		require.Equal(t, guild.UpdatePreconditionFailed, out.Result)
		require.Equal(t, "leader is m1", out.FailedCondition)
		require.Equal(t, int64(3), out.Guild.Version)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing guild", func(t *testing.T) {
		repo, mock := newMockGuildRepository(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockGuildQuery).
			WithArgs("guild-none").
			WillReturnRows(guildRows())
		mock.ExpectRollback()

		out, err := repo.ConditionalUpdate(t.Context(), "guild-none", guarded, addManager)
		require.NoError(t, err)
		require.Equal(t, guild.UpdateNotFound, out.Result)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("version moved under the lock", func(t *testing.T) {
		repo, mock := newMockGuildRepository(t)
		mock.ExpectBegin()
		mock.ExpectQuery(lockGuildQuery).
			WithArgs("guild-wolves").
			WillReturnRows(addWolvesRow(guildRows(), 3))
		mock.ExpectExec(`UPDATE guilds SET`).
			WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectRollback()

		_, err := repo.ConditionalUpdate(t.Context(), "guild-wolves", guarded, addManager)
		require.ErrorIs(t, err, errConcurrentGuildWrite)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin fails", func(t *testing.T) {
		repo, mock := newMockGuildRepository(t)
		mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

		_, err := repo.ConditionalUpdate(t.Context(), "guild-wolves", guarded, addManager)
		require.ErrorIs(t, err, sql.ErrConnDone)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGuildRepository_Delete(t *testing.T) {
	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{name: "soft deletes", affected: 1, want: true},
		{name: "already gone", affected: 0, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo, mock := newMockGuildRepository(t)
			mock.ExpectExec(`UPDATE guilds SET deleted_at = \$1 WHERE public_id = \$2 AND deleted_at IS NULL`).
				WithArgs(fixedNow, "guild-wolves").
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			deleted, err := repo.Delete(t.Context(), "guild-wolves")
			require.NoError(t, err)
			require.Equal(t, tt.want, deleted)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGuildRepository_ListByTenant(t *testing.T) {
	repo, mock := newMockGuildRepository(t)
	mock.ExpectQuery(`SELECT .* FROM guilds WHERE tenant_id = \$1 AND deleted_at IS NULL ORDER BY created_at ASC, public_id ASC`).
		WithArgs("tenant-1").
		WillReturnRows(addWolvesRow(guildRows(), 1))

	items, err := repo.ListByTenant(t.Context(), "tenant-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGuildRepository_Ping(t *testing.T) {
	repo, mock := newMockGuildRepository(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	require.Error(t, repo.Ping(t.Context()))
	require.NoError(t, mock.ExpectationsWereMet())
}

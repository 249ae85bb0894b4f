package jobqueue

import (
	"context"
	"strings"
	"time"

	"github.com/riskibarqy/guildhall/internal/domain/notification"
	"github.com/riskibarqy/guildhall/internal/platform/logging"
)

const (
	roleGrantPath  = "/v1/internal/jobs/roles/grant"
	roleRevokePath = "/v1/internal/jobs/roles/revoke"
)

type enqueuer interface {
	Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error
}

// RoleSync hands role changes to the job queue. The worker on the other side talks to
// the chat platform and is retried by QStash; dedup ids make repeats harmless.
type RoleSync struct {
	queue enqueuer
}

func NewRoleSync(queue enqueuer) *RoleSync {
	return &RoleSync{queue: queue}
}

func (s *RoleSync) Grant(ctx context.Context, change notification.RoleChange) error {
	change.Grant = true
	return s.queue.Enqueue(ctx, roleGrantPath, change, 0, roleDedupID(change))
}

func (s *RoleSync) Revoke(ctx context.Context, change notification.RoleChange) error {
	change.Grant = false
	return s.queue.Enqueue(ctx, roleRevokePath, change, 0, roleDedupID(change))
}

func roleDedupID(change notification.RoleChange) string {
	op := "revoke"
	if change.Grant {
		op = "grant"
	}
	parts := []string{"role", op, change.TenantID, change.GuildID, change.UserID, string(change.Role)}
	if change.CorrelationID != "" {
		parts = append(parts, change.CorrelationID)
	}
	return strings.Join(parts, ":")
}

// LogRoleSync only records role changes. Used when the queue is disabled.
type LogRoleSync struct {
	logger *logging.Logger
}

func NewLogRoleSync(logger *logging.Logger) *LogRoleSync {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogRoleSync{logger: logger.Named("role_sync")}
}

func (s *LogRoleSync) Grant(ctx context.Context, change notification.RoleChange) error {
	s.logger.InfoContext(ctx, "role grant skipped, queue disabled", "tenant_id", change.TenantID, "guild_id", change.GuildID, "user_id", change.UserID, "role", change.Role)
	return nil
}

func (s *LogRoleSync) Revoke(ctx context.Context, change notification.RoleChange) error {
	s.logger.InfoContext(ctx, "role revoke skipped, queue disabled", "tenant_id", change.TenantID, "guild_id", change.GuildID, "user_id", change.UserID, "role", change.Role)
	return nil
}

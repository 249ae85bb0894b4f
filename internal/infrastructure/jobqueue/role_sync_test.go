package jobqueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/guildhall/internal/domain/notification"
	"github.com/riskibarqy/guildhall/internal/platform/logging"
)

type enqueuedJob struct {
	path    string
	payload any
	dedupID string
}

type fakeEnqueuer struct {
	jobs []enqueuedJob
	err  error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, path string, payload any, _ time.Duration, deduplicationID string) error {
	f.jobs = append(f.jobs, enqueuedJob{path: path, payload: payload, dedupID: deduplicationID})
	return f.err
}

func TestRoleSync_EnqueuesGrantAndRevoke(t *testing.T) {
	queue := &fakeEnqueuer{}
	sync := NewRoleSync(queue)

	change := notification.RoleChange{
		TenantID:      "tenant-1",
		GuildID:       "guild-wolves",
		UserID:        "u1",
		Role:          notification.RoleGuildMember,
		CorrelationID: "inv-1",
	}
	if err := sync.Grant(t.Context(), change); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := sync.Revoke(t.Context(), change); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	if len(queue.jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(queue.jobs))
	}
	grant := queue.jobs[0]
	if grant.path != roleGrantPath {
		t.Fatalf("unexpected grant path %s", grant.path)
	}
	if got := grant.payload.(notification.RoleChange); !got.Grant {
		t.Fatalf("grant payload must carry grant=true")
	}
	if grant.dedupID != "role:grant:tenant-1:guild-wolves:u1:"+string(notification.RoleGuildMember)+":inv-1" {
		t.Fatalf("unexpected dedup id %s", grant.dedupID)
	}

	revoke := queue.jobs[1]
	if revoke.path != roleRevokePath || revoke.payload.(notification.RoleChange).Grant {
		t.Fatalf("unexpected revoke job %+v", revoke)
	}
	if revoke.dedupID == grant.dedupID {
		t.Fatalf("grant and revoke must not share a dedup id")
	}
}

func TestRoleSync_PropagatesQueueError(t *testing.T) {
	queue := &fakeEnqueuer{err: errors.New("qstash down")}
	if err := NewRoleSync(queue).Grant(t.Context(), notification.RoleChange{UserID: "u1"}); err == nil {
		t.Fatalf("expected queue error")
	}
}

func TestLogRoleSync_NeverFails(t *testing.T) {
	sync := NewLogRoleSync(logging.NewNop())
	change := notification.RoleChange{UserID: "u1", Role: notification.RoleGuildLeader}
	if err := sync.Grant(t.Context(), change); err != nil {
		t.Fatalf("grant: %v", err)
	}
	if err := sync.Revoke(t.Context(), change); err != nil {
		t.Fatalf("revoke: %v", err)
	}
}

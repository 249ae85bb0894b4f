package cooldown

import (
	"testing"
	"time"
)

func TestStatusFromEvent(t *testing.T) {
	leftAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	event := Event{TenantID: "t1", UserID: "u1", GuildID: "g1", LeftAt: leftAt}

	status := StatusFromEvent(event, 24*time.Hour, leftAt.Add(time.Hour))
	if !status.Active {
		t.Fatalf("expected active cooldown")
	}
	if status.Remaining != 23*time.Hour {
		t.Fatalf("expected 23h remaining, got %s", status.Remaining)
	}
	if status.Allows("g2") {
		t.Fatalf("expected other guild to be blocked")
	}
	if !status.Allows("g1") {
		t.Fatalf("expected return to the left guild to be allowed")
	}

	status = StatusFromEvent(event, 24*time.Hour, leftAt.Add(25*time.Hour))
	if status.Active {
		t.Fatalf("expected cooldown to be over")
	}

	if StatusFromEvent(Event{}, 24*time.Hour, leftAt).Active {
		t.Fatalf("expected no cooldown without a leave event")
	}
}

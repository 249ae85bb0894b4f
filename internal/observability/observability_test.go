package observability

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/riskibarqy/guildhall/internal/config"
	"github.com/riskibarqy/guildhall/internal/platform/logging"
)

func TestStart_AllDisabled(t *testing.T) {
	rt, err := Start(config.Config{ServiceName: "guildhall-api", AppEnv: config.EnvDev}, logging.NewNop())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if enabled := rt.Enabled(); len(enabled) != 0 {
		t.Fatalf("expected nothing enabled, got %v", enabled)
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
}

func TestStart_UptraceWithoutDSNIsSkipped(t *testing.T) {
	rt, err := Start(config.Config{UptraceEnabled: true, UptraceDSN: "  "}, logging.NewNop())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if enabled := rt.Enabled(); len(enabled) != 0 {
		t.Fatalf("expected uptrace skipped, got %v", enabled)
	}
}

func TestStart_PprofServesAndStops(t *testing.T) {
	rt, err := Start(config.Config{PprofEnabled: true, PprofAddr: "127.0.0.1:0"}, logging.NewNop())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if enabled := rt.Enabled(); len(enabled) != 1 || enabled[0] != "pprof" {
		t.Fatalf("expected pprof enabled, got %v", enabled)
	}
	if err := rt.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if enabled := rt.Enabled(); len(enabled) != 0 {
		t.Fatalf("expected shutdown to clear components, got %v", enabled)
	}
}

func TestStart_PprofPortTaken(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer taken.Close()

	if _, err := Start(config.Config{PprofEnabled: true, PprofAddr: taken.Addr().String()}, logging.NewNop()); err == nil {
		t.Fatalf("expected start to fail on a taken port")
	}
}

func TestPprofMux_Index(t *testing.T) {
	rec := httptest.NewRecorder()
	pprofMux().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected pprof index, got %d", rec.Code)
	}
}

func TestRuntime_ShutdownJoinsErrors(t *testing.T) {
	var order []string
	rt := &Runtime{logger: logging.NewNop(), started: []started{
		{name: "first", stop: func(context.Context) error { order = append(order, "first"); return errors.New("boom") }},
		{name: "second", stop: func(context.Context) error { order = append(order, "second"); return nil }},
	}}

	err := rt.Shutdown(context.Background())
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if len(order) != 2 || order[0] != "second" {
		t.Fatalf("expected reverse stop order, got %v", order)
	}

	var nilRuntime *Runtime
	if err := nilRuntime.Shutdown(context.Background()); err != nil {
		t.Fatalf("nil runtime shutdown: %v", err)
	}
}

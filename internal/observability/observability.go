package observability

import (
	"context"
	"errors"
	"fmt"

	"github.com/riskibarqy/guildhall/internal/config"
	"github.com/riskibarqy/guildhall/internal/platform/logging"
)

type stopFunc func(context.Context) error

type component struct {
	name  string
	start func(cfg config.Config, logger *logging.Logger) (stopFunc, error)
}

var components = []component{
	{name: "uptrace", start: startTracing},
	{name: "pyroscope", start: startProfiling},
	{name: "pprof", start: startPprof},
}

type started struct {
	name string
	stop stopFunc
}

// Runtime owns the process-wide telemetry exporters. Disabled components are skipped.
type Runtime struct {
	logger  *logging.Logger
	started []started
}

func Start(cfg config.Config, logger *logging.Logger) (*Runtime, error) {
	if logger == nil {
		logger = logging.Default()
	}
	rt := &Runtime{logger: logger.Named("observability")}

	for _, c := range components {
		stop, err := c.start(cfg, rt.logger)
		if err != nil {
			_ = rt.Shutdown(context.Background())
			return nil, fmt.Errorf("start %s: %w", c.name, err)
		}
		if stop != nil {
			rt.started = append(rt.started, started{name: c.name, stop: stop})
		}
	}
	return rt, nil
}

// Enabled lists the running components in start order.
func (rt *Runtime) Enabled() []string {
	names := make([]string, 0, len(rt.started))
	for _, s := range rt.started {
		names = append(names, s.name)
	}
	return names
}

// Shutdown stops components in reverse start order and reports every failure.
func (rt *Runtime) Shutdown(ctx context.Context) error {
	if rt == nil {
		return nil
	}
	var errs []error
	for i := len(rt.started) - 1; i >= 0; i-- {
		s := rt.started[i]
		if err := s.stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", s.name, err))
			continue
		}
		rt.logger.Info("telemetry component stopped", "component", s.name)
	}
	rt.started = nil
	return errors.Join(errs...)
}

package observability

import (
	"strings"

	"github.com/uptrace/uptrace-go/uptrace"

	"github.com/riskibarqy/guildhall/internal/config"
	"github.com/riskibarqy/guildhall/internal/platform/logging"
)

// startTracing installs the global OpenTelemetry providers. The HTTP server, the usecase
// spans and the otelsqlx pool all report through them.
func startTracing(cfg config.Config, logger *logging.Logger) (stopFunc, error) {
	dsn := strings.TrimSpace(cfg.UptraceDSN)
	switch {
	case !cfg.UptraceEnabled:
		logger.Info("uptrace disabled", "reason", "UPTRACE_ENABLED=false")
		return nil, nil
	case dsn == "":
		logger.Warn("uptrace disabled", "reason", "no dsn in UPTRACE_DSN or OTEL_EXPORTER_OTLP_HEADERS")
		return nil, nil
	}

	uptrace.ConfigureOpentelemetry(
		uptrace.WithDSN(dsn),
		uptrace.WithServiceName(cfg.ServiceName),
		uptrace.WithServiceVersion(cfg.ServiceVersion),
		uptrace.WithDeploymentEnvironment(cfg.AppEnv),
	)
	logger.Info("uptrace enabled", "service_name", cfg.ServiceName, "service_version", cfg.ServiceVersion, "environment", cfg.AppEnv)

	return uptrace.Shutdown, nil
}

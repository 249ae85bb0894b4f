package config

import (
	"testing"
	"time"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_UptraceRequiresDSNWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when UPTRACE_ENABLED=true without UPTRACE_DSN")
	}
}

func TestLoad_UptraceDSNFromOTLPHeaders(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "true")
	t.Setenv("UPTRACE_DSN", "")
	t.Setenv("OTEL_EXPORTER_OTLP_HEADERS", `x-other=1, uptrace-dsn="https://token@api.uptrace.dev?grpc=4317"`)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.UptraceDSN != "https://token@api.uptrace.dev?grpc=4317" {
		t.Fatalf("unexpected uptrace dsn: %q", cfg.UptraceDSN)
	}
}

func TestLoad_DefaultsByEnv(t *testing.T) {
	t.Run("prod disables swagger by default", func(t *testing.T) {
		t.Setenv("APP_ENV", EnvProd)
		t.Setenv("UPTRACE_ENABLED", "false")
		t.Setenv("SWAGGER_ENABLED", "")
		t.Setenv("INTERNAL_API_TOKEN", "internal")
		t.Setenv("INVITE_TOKEN_SECRET", "secret")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if cfg.SwaggerEnabled {
			t.Fatalf("expected SwaggerEnabled=false in prod by default")
		}
	})

	t.Run("prod requires secrets", func(t *testing.T) {
		t.Setenv("APP_ENV", EnvProd)
		t.Setenv("UPTRACE_ENABLED", "false")
		t.Setenv("INTERNAL_API_TOKEN", "internal")
		t.Setenv("INVITE_TOKEN_SECRET", "")

		if _, err := Load(); err == nil {
			t.Fatalf("expected error without INVITE_TOKEN_SECRET in prod")
		}

		t.Setenv("INVITE_TOKEN_SECRET", "secret")
		t.Setenv("INTERNAL_API_TOKEN", "")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error without INTERNAL_API_TOKEN in prod")
		}
	})

	t.Run("dev defaults", func(t *testing.T) {
		t.Setenv("APP_ENV", EnvDev)
		t.Setenv("UPTRACE_ENABLED", "false")
		t.Setenv("SWAGGER_ENABLED", "")
		t.Setenv("INVITE_TOKEN_SECRET", "")
		t.Setenv("STORE_DRIVER", "")
		t.Setenv("INVITE_TOKEN_TTL", "")
		t.Setenv("GUILD_TRANSITION_COOLDOWN", "")
		t.Setenv("NOTIFIER_WORKERS", "")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if !cfg.SwaggerEnabled {
			t.Fatalf("expected SwaggerEnabled=true in dev by default")
		}
		if cfg.InviteTokenSecret == "" {
			t.Fatalf("expected a dev invite secret")
		}
		if cfg.StoreDriver != StoreDriverPostgres {
			t.Fatalf("unexpected store driver: %q", cfg.StoreDriver)
		}
		if cfg.InviteTokenTTL != 0 {
			t.Fatalf("expected invitations to never expire by default, got %s", cfg.InviteTokenTTL)
		}
		if cfg.GuildTransitionCooldown != 24*time.Hour {
			t.Fatalf("unexpected cooldown: %s", cfg.GuildTransitionCooldown)
		}
		if cfg.NotifierWorkers != 8 {
			t.Fatalf("unexpected notifier workers: %d", cfg.NotifierWorkers)
		}
	})
}

func TestLoad_StoreDriver(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")

	t.Setenv("STORE_DRIVER", " Memory ")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.StoreDriver != StoreDriverMemory {
		t.Fatalf("unexpected store driver: %q", cfg.StoreDriver)
	}

	t.Setenv("STORE_DRIVER", "sqlite")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown STORE_DRIVER")
	}
}

func TestLoad_GuildDurations(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")

	cases := []struct {
		key     string
		value   string
		wantErr bool
	}{
		{"INVITE_TOKEN_TTL", "72h", false},
		{"INVITE_TOKEN_TTL", "-1h", true},
		{"GUILD_TRANSITION_COOLDOWN", "0s", false},
		{"GUILD_TRANSITION_COOLDOWN", "soon", true},
		{"INVITATION_RESOLUTION_TTL", "0s", true},
		{"NOTIFIER_WORKERS", "0", true},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.value, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := Load()
			if tc.wantErr && err == nil {
				t.Fatalf("expected error for %s=%s", tc.key, tc.value)
			}
			if !tc.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoad_PprofDefaultsAddrWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("PPROF_ENABLED", "true")
	t.Setenv("PPROF_ADDR", "  ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PprofAddr != ":6060" {
		t.Fatalf("expected default pprof addr :6060, got %q", cfg.PprofAddr)
	}
}

func TestLoad_PyroscopeRequiresServerAddressWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when PYROSCOPE_ENABLED=true without PYROSCOPE_SERVER_ADDRESS")
	}
}

func TestLoad_PyroscopeAppNameDefaultsToServiceName(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")
	t.Setenv("APP_SERVICE_NAME", "guildhall-api-test")
	t.Setenv("PYROSCOPE_ENABLED", "true")
	t.Setenv("PYROSCOPE_SERVER_ADDRESS", "http://localhost:4040")
	t.Setenv("PYROSCOPE_APP_NAME", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.PyroscopeAppName != "guildhall-api-test" {
		t.Fatalf("unexpected pyroscope app name: %q", cfg.PyroscopeAppName)
	}
}

func TestLoad_CORSOriginsDefaultAndParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")

	t.Run("default wildcard", func(t *testing.T) {
		t.Setenv("CORS_ALLOWED_ORIGINS", "")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
			t.Fatalf("unexpected default CORS origins: %+v", cfg.CORSAllowedOrigins)
		}
	})

	t.Run("comma separated parsing", func(t *testing.T) {
		t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example.com, http://localhost:5173 ")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if len(cfg.CORSAllowedOrigins) != 2 {
			t.Fatalf("unexpected CORS origins length: %d", len(cfg.CORSAllowedOrigins))
		}
		if cfg.CORSAllowedOrigins[0] != "https://a.example.com" {
			t.Fatalf("unexpected first CORS origin: %s", cfg.CORSAllowedOrigins[0])
		}
	})
}

func TestLoad_CacheConfigParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("CACHE_ENABLED", "")
		t.Setenv("CACHE_TTL", "")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if !cfg.CacheEnabled {
			t.Fatalf("expected cache enabled by default")
		}
		if cfg.CacheTTL != 60*time.Second {
			t.Fatalf("unexpected default cache ttl: %s", cfg.CacheTTL)
		}
	})

	t.Run("invalid ttl", func(t *testing.T) {
		t.Setenv("CACHE_TTL", "bad")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for invalid CACHE_TTL")
		}
	})
}

func TestLoad_DiscordConfigParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")

	t.Run("enabled requires token", func(t *testing.T) {
		t.Setenv("DISCORD_BOT_ENABLED", "true")
		t.Setenv("DISCORD_BOT_TOKEN", "")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error when DISCORD_BOT_ENABLED=true without DISCORD_BOT_TOKEN")
		}
	})

	t.Run("circuit settings", func(t *testing.T) {
		t.Setenv("DISCORD_BOT_ENABLED", "true")
		t.Setenv("DISCORD_BOT_TOKEN", "bot-token")
		t.Setenv("DISCORD_BOT_FALLBACK_CHANNEL_ID", "1234")
		t.Setenv("DISCORD_BOT_CIRCUIT_FAILURE_COUNT", "3")
		t.Setenv("DISCORD_BOT_CIRCUIT_OPEN_TIMEOUT", "30s")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if cfg.DiscordFallbackChannelID != "1234" || cfg.DiscordBaseURL != "https://discord.com/api/v10" {
			t.Fatalf("unexpected discord config: %+v", cfg)
		}
		if !cfg.DiscordCircuit.Enabled || cfg.DiscordCircuit.FailureThreshold != 3 || cfg.DiscordCircuit.OpenTimeout != 30*time.Second {
			t.Fatalf("unexpected discord circuit: %+v", cfg.DiscordCircuit)
		}
	})

	t.Run("invalid circuit", func(t *testing.T) {
		t.Setenv("DISCORD_BOT_CIRCUIT_HALF_OPEN_MAX_REQ", "0")
		if _, err := Load(); err == nil {
			t.Fatalf("expected error for DISCORD_BOT_CIRCUIT_HALF_OPEN_MAX_REQ=0")
		}
	})
}

func TestLoad_QStashConfigParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("UPTRACE_ENABLED", "false")

	t.Run("disabled by default", func(t *testing.T) {
		t.Setenv("QSTASH_ENABLED", "")
		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if cfg.QStashEnabled {
			t.Fatalf("expected QStashEnabled=false by default")
		}
	})

	t.Run("enabled requires token and target and internal token", func(t *testing.T) {
		t.Setenv("QSTASH_ENABLED", "true")
		t.Setenv("QSTASH_TOKEN", "")
		t.Setenv("QSTASH_TARGET_BASE_URL", "")
		t.Setenv("INTERNAL_API_TOKEN", "")

		if _, err := Load(); err == nil {
			t.Fatalf("expected error when QSTASH_ENABLED=true without required env")
		}
	})

	t.Run("enabled with required values", func(t *testing.T) {
		t.Setenv("QSTASH_ENABLED", "true")
		t.Setenv("QSTASH_TOKEN", "qstash-token")
		t.Setenv("QSTASH_TARGET_BASE_URL", "https://guildhall-bot.fly.dev")
		t.Setenv("INTERNAL_API_TOKEN", "internal-token")
		t.Setenv("QSTASH_RETRIES", "2")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("load config: %v", err)
		}
		if !cfg.QStashEnabled || cfg.QStashRetries != 2 {
			t.Fatalf("unexpected qstash config: enabled=%v retries=%d", cfg.QStashEnabled, cfg.QStashRetries)
		}
		if cfg.InternalAPIToken != "internal-token" {
			t.Fatalf("unexpected internal token: %q", cfg.InternalAPIToken)
		}
	})
}

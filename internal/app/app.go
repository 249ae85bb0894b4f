package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jmoiron/sqlx"

	"github.com/riskibarqy/guildhall/internal/config"
	"github.com/riskibarqy/guildhall/internal/domain/cooldown"
	"github.com/riskibarqy/guildhall/internal/domain/guild"
	"github.com/riskibarqy/guildhall/internal/domain/notification"
	"github.com/riskibarqy/guildhall/internal/infrastructure/discordbot"
	"github.com/riskibarqy/guildhall/internal/infrastructure/invitetoken"
	"github.com/riskibarqy/guildhall/internal/infrastructure/jobqueue"
	"github.com/riskibarqy/guildhall/internal/infrastructure/repository/cache"
	"github.com/riskibarqy/guildhall/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/guildhall/internal/infrastructure/repository/postgres"
	"github.com/riskibarqy/guildhall/internal/interfaces/httpapi"
	"github.com/riskibarqy/guildhall/internal/platform/database"
	idgen "github.com/riskibarqy/guildhall/internal/platform/id"
	"github.com/riskibarqy/guildhall/internal/platform/logging"
	"github.com/riskibarqy/guildhall/internal/usecase"
)

// App is the assembled API server plus the resources it must release on shutdown.
type App struct {
	Server   *http.Server
	db       *sqlx.DB
	notifier *usecase.LifecycleNotifier
}

func NewHTTPServer(ctx context.Context, cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPAddr == "" {
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	a := &App{}
	guilds, cooldowns, err := a.openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if cfg.CacheEnabled {
		guilds = cache.NewGuildRepository(guilds, cfg.CacheTTL)
	}

	codec, err := invitetoken.NewCodec(cfg.InviteTokenSecret)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build invitation codec: %w", err)
	}

	a.notifier, err = usecase.NewLifecycleNotifier(newGateway(cfg, logger), newRoleSync(cfg, logger), cfg.NotifierWorkers, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	engine := usecase.NewMutationEngine(guilds, logger)
	roster := usecase.NewRosterService(guilds, engine, cooldowns, a.notifier, logger)
	invitations := usecase.NewInvitationService(
		guilds,
		engine,
		roster,
		codec,
		cache.NewInvitationResolutions(cfg.InvitationResolutionTTL),
		a.notifier,
		idgen.NewUUIDGenerator(),
		cfg.InviteTokenTTL,
		logger,
	)
	guildSvc := usecase.NewGuildService(guilds, engine, cooldowns, a.notifier, idgen.NewUUIDGenerator(), logger)

	handler := httpapi.NewHandler(guildSvc, roster, invitations, logger)
	router := httpapi.NewRouter(handler, logger, httpapi.RouterConfig{
		SwaggerEnabled:     cfg.SwaggerEnabled,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		InternalToken:      cfg.InternalAPIToken,
	})

	a.Server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return a, nil
}

// Shutdown stops accepting requests, then releases the notifier pool and the database.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.Server != nil {
		err = a.Server.Shutdown(ctx)
	}
	return errors.Join(err, a.Close())
}

func (a *App) Close() error {
	a.notifier.Close()
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func (a *App) openStore(ctx context.Context, cfg config.Config, logger *logging.Logger) (guild.Repository, cooldown.Oracle, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory guild store", "store_driver", cfg.StoreDriver)
		return memory.NewGuildRepository(), memory.NewCooldownRepository(cfg.GuildTransitionCooldown), nil
	}

	db, err := database.Open(ctx, database.Options{
		URL:                         cfg.DBURL,
		DisablePreparedBinaryResult: cfg.DBDisablePreparedBinary,
	})
	if err != nil {
		return nil, nil, err
	}
	a.db = db

	return postgres.NewGuildRepository(db), postgres.NewCooldownRepository(db, cfg.GuildTransitionCooldown), nil
}

func newGateway(cfg config.Config, logger *logging.Logger) notification.Gateway {
	if !cfg.DiscordEnabled {
		logger.Info("discord delivery disabled", "reason", "DISCORD_BOT_ENABLED=false")
		return nil
	}
	return discordbot.NewClient(discordbot.ClientConfig{
		BaseURL:           cfg.DiscordBaseURL,
		Token:             cfg.DiscordToken,
		FallbackChannelID: cfg.DiscordFallbackChannelID,
		RespondURL:        cfg.DiscordRespondURL,
		Timeout:           cfg.DiscordTimeout,
		MaxRetries:        cfg.DiscordMaxRetries,
		Logger:            logger,
		CircuitBreaker:    cfg.DiscordCircuit,
	})
}

func newRoleSync(cfg config.Config, logger *logging.Logger) notification.RoleSync {
	if !cfg.QStashEnabled {
		return jobqueue.NewLogRoleSync(logger)
	}
	publisher := jobqueue.NewQStashPublisher(jobqueue.QStashPublisherConfig{
		BaseURL:          cfg.QStashBaseURL,
		Token:            cfg.QStashToken,
		TargetBaseURL:    cfg.QStashTargetBaseURL,
		Retries:          cfg.QStashRetries,
		InternalJobToken: cfg.InternalAPIToken,
		CircuitBreaker:   cfg.QStashCircuit,
	}, logger)
	return jobqueue.NewRoleSync(publisher)
}

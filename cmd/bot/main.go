package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	discordapi "github.com/spec-kit/ticket-bot/internal/api/discord"
	httptransport "github.com/spec-kit/ticket-bot/internal/api/http"
	"github.com/spec-kit/ticket-bot/internal/api/http/handlers"
	"github.com/spec-kit/ticket-bot/internal/auth"
	"github.com/spec-kit/ticket-bot/internal/clock"
	"github.com/spec-kit/ticket-bot/internal/config"
	"github.com/spec-kit/ticket-bot/internal/events"
	"github.com/spec-kit/ticket-bot/internal/exchange"
	"github.com/spec-kit/ticket-bot/internal/observability"
	"github.com/spec-kit/ticket-bot/internal/persistence"
	platformdiscord "github.com/spec-kit/ticket-bot/internal/platform/discord"
	"github.com/spec-kit/ticket-bot/internal/repository"
	"github.com/spec-kit/ticket-bot/internal/service"
	"github.com/spec-kit/ticket-bot/internal/worker"
)

const shutdownTimeout = 10 * time.Second

type flags struct {
	envFile      string
	guildConfig  string
	store        string
	disableHTTP  bool
	hashPassword string
}

func parseFlags() flags {
	var f flags
	pflag.StringVar(&f.envFile, "env-file", "", "load environment variables from this file before .env")
	pflag.StringVar(&f.guildConfig, "guild-config", "", "override GUILD_CONFIG_PATH")
	pflag.StringVar(&f.store, "store", "", "override STORE_BACKEND (file, redis, postgres, memory)")
	pflag.BoolVar(&f.disableHTTP, "no-http", false, "do not start the ops HTTP server")
	pflag.StringVar(&f.hashPassword, "hash-password", "", "print a bcrypt hash for ADMIN_API_PASSWORD_HASH and exit")
	pflag.Parse()
	return f
}

func main() {
	opts := parseFlags()
	if opts.envFile != "" {
		if err := godotenv.Load(opts.envFile); err != nil {
			log.Fatalf("failed to load %s: %v", opts.envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if opts.hashPassword != "" {
		hash, err := auth.HashPassword(opts.hashPassword, cfg.Auth.BcryptCost)
		if err != nil {
			log.Fatalf("failed to hash password: %v", err)
		}
		fmt.Println(hash)
		return
	}
	if opts.guildConfig != "" {
		cfg.Discord.GuildConfigPath = opts.guildConfig
	}
	if opts.store != "" {
		cfg.Store.Backend = opts.store
	}
	if opts.disableHTTP {
		cfg.App.HTTPEnabled = false
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("bot stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("bot stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	guild, err := config.LoadGuild(cfg.Discord.GuildConfigPath)
	if err != nil {
		return fmt.Errorf("load guild config: %w", err)
	}
	metrics := observability.NewMetrics()
	clk := clock.Real()

	store, closeStore, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer closeStore()

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsDirectMessages
	botUser, err := session.User("@me", discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("resolve bot user: %w", err)
	}
	chat := platformdiscord.New(session, logger)

	authz := auth.NewAuthorizer(guild)
	dispatcher := events.NewInMemoryDispatcher(logger)
	service.NewNotificationService(dispatcher, chat, guild.LogChannelID, logger).RegisterHandlers()

	registry, err := service.NewTicketRegistry(ctx, repository.NewTicketRepository(store, logger), logger)
	if err != nil {
		return fmt.Errorf("load tickets: %w", err)
	}
	if err := importPendingCloses(ctx, registry, repository.NewPendingCloseRepository(store, logger), logger); err != nil {
		return err
	}

	pricingService, err := service.NewPricingService(ctx, service.PricingDependencies{
		PriceRepo:       repository.NewRateRepository(store, persistence.TablePrices, logger),
		FeeRepo:         repository.NewRateRepository(store, persistence.TableFees, logger),
		PaymentInfoRepo: repository.NewTextRepository(store, persistence.TablePaymentInfo, logger),
		Authorizer:      authz,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("load pricing: %w", err)
	}
	ledgerService, err := service.NewLedgerService(ctx, service.LedgerDependencies{
		Repo:       repository.NewLedgerRepository(store, logger),
		Authorizer: authz,
		Dispatcher: dispatcher,
		Clock:      clk,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	stickyService, err := service.NewStickyService(ctx, service.StickyDependencies{
		TextRepo:   repository.NewTextRepository(store, persistence.TableStickyMessages, logger),
		IDRepo:     repository.NewTextRepository(store, persistence.TableStickyMessageIDs, logger),
		Platform:   chat,
		Authorizer: authz,
		Clock:      clk,
		Delay:      cfg.Policy.StickyDelay,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("load sticky messages: %w", err)
	}
	defer stickyService.Stop()

	var archive *persistence.TranscriptArchive
	ticketDeps := service.TicketDependencies{
		Registry:   registry,
		Platform:   chat,
		Authorizer: authz,
		Pricing:    pricingService,
		Ledger:     ledgerService,
		Dispatcher: dispatcher,
		Clock:      clk,
		Guild:      guild,
		GuildID:    cfg.Discord.GuildID,
		Policy:     cfg.Policy,
		Metrics:    metrics,
		Logger:     logger,
		BotUserID:  botUser.ID,
	}
	if cfg.Store.TranscriptDir != "" {
		archive, err = persistence.NewTranscriptArchive(cfg.Store.TranscriptDir)
		if err != nil {
			return err
		}
		ticketDeps.Archive = archive
	}
	ticketService := service.NewTicketService(ticketDeps)

	router := discordapi.NewRouter(discordapi.Dependencies{
		Session:    session,
		Tickets:    ticketService,
		Pricing:    pricingService,
		Ledger:     ledgerService,
		Sticky:     stickyService,
		Exchange:   exchange.NewClient(cfg.Exchange, logger),
		Authorizer: authz,
		Guild:      guild,
		GuildID:    cfg.Discord.GuildID,
		Policy:     cfg.Policy,
		Clock:      clk,
		Metrics:    metrics,
		Logger:     logger,
	})
	router.Register(session)

	var startOnce sync.Once
	session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		logger.Info("gateway ready", zap.String("user", r.User.Username), zap.Int("guilds", len(r.Guilds)))
		startOnce.Do(func() {
			if err := router.Start(ctx, r.User.ID); err != nil {
				logger.Error("command registration failed", zap.Error(err))
			}
		})
	})
	if err := session.Open(); err != nil {
		return fmt.Errorf("open gateway: %w", err)
	}
	defer session.Close()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return worker.NewInactivityWorker(ticketService, clk, cfg.Policy, metrics, logger).Run(gctx)
	})
	g.Go(func() error {
		return worker.NewTierWorker(worker.TierDependencies{
			Ledger:   ledgerService,
			Platform: chat,
			Tiers:    guild.SortedTiers(),
			GuildID:  cfg.Discord.GuildID,
			Clock:    clk,
			Interval: cfg.Policy.TierSweepInterval,
			Metrics:  metrics,
			Logger:   logger,
		}).Run(gctx)
	})
	if cfg.App.HTTPEnabled {
		var transcripts handlers.TranscriptStore
		if archive != nil {
			transcripts = archive
		}
		tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
		app := httptransport.NewApp(cfg.App, logger, metrics, httptransport.RouteConfig{
			Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.Store.Backend, store),
			Auth:           handlers.NewAuthHandler(auth.NewOperatorLogin(cfg.Auth.AdminPasswordHash, tokens)),
			Tickets:        handlers.NewTicketsHandler(ticketService),
			Pricing:        handlers.NewPricingHandler(pricingService),
			Ledger:         handlers.NewLedgerHandler(ledgerService, cfg.Policy.LeaderboardSize),
			Transcripts:    handlers.NewTranscriptsHandler(transcripts),
			Metrics:        metrics.Handler(),
			AuthMiddleware: auth.NewAuthMiddleware(tokens),
		})
		g.Go(func() error {
			logger.Info("ops api listening", zap.String("addr", cfg.App.Addr()))
			return app.Listen(cfg.App.Addr())
		})
		g.Go(func() error {
			<-gctx.Done()
			return app.ShutdownWithTimeout(shutdownTimeout)
		})
	}

	logger.Info("bot running", zap.String("guild_id", cfg.Discord.GuildID), zap.String("store", cfg.Store.Backend))
	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func importPendingCloses(ctx context.Context, registry *service.TicketRegistry, repo repository.PendingCloseRepository, logger *zap.Logger) error {
	pending, err := repo.Load(ctx)
	if err != nil {
		return fmt.Errorf("load pending closes: %w", err)
	}
	if len(pending) == 0 {
		return nil
	}
	imported, err := registry.ImportPendingCloses(ctx, pending)
	if err != nil {
		return fmt.Errorf("import pending closes: %w", err)
	}
	if err := repo.Clear(ctx); err != nil {
		return fmt.Errorf("clear pending closes: %w", err)
	}
	logger.Info("imported legacy pending closes", zap.Int("records", len(pending)), zap.Int("applied", imported))
	return nil
}

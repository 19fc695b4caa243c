package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sandevgo/factbot/internal/config"
	"github.com/sandevgo/factbot/internal/core"
	"github.com/sandevgo/factbot/internal/providers/llm"
	"github.com/sandevgo/factbot/internal/providers/search"
	"github.com/sandevgo/factbot/internal/service/command"
	"github.com/sandevgo/factbot/internal/service/identity"
	"github.com/sandevgo/factbot/internal/service/memory"
	"github.com/sandevgo/factbot/internal/service/quota"
	"github.com/sandevgo/factbot/internal/service/state"
	"github.com/sandevgo/factbot/internal/service/turn"
	"github.com/sandevgo/factbot/internal/storage/redis"
	"github.com/sandevgo/factbot/internal/storage/sqlite"
	"github.com/sandevgo/factbot/internal/transport/api"
	"github.com/sandevgo/factbot/internal/transport/telegram"
	"github.com/sandevgo/factbot/pkg/log"
	"github.com/sandevgo/factbot/pkg/srv"
)

// storage is shared by the server and the one-shot admin commands.
type storage struct {
	db       *sql.DB
	quota    core.QuotaStore
	memories core.MemoryStore
	prefs    *sqlite.PreferencesRepo
	services []srv.Service
}

func (s *storage) Close(ctx context.Context) {
	for i := len(s.services) - 1; i >= 0; i-- {
		if err := s.services[i].Shutdown(ctx); err != nil {
			log.FromCtx(ctx).Warn().Err(err).Msg("failed to close storage")
		}
	}
}

func openStorage(ctx context.Context, cfg *config.AppConfig) (*storage, error) {
	db, err := sqlite.NewDB(ctx, cfg.GetDatabasePath())
	if err != nil {
		return nil, err
	}

	st := &storage{
		db:       db,
		quota:    sqlite.NewQuotaRepo(db),
		memories: sqlite.NewMemoriesRepo(db),
		prefs:    sqlite.NewPreferencesRepo(db),
		services: []srv.Service{srv.NewCleanup(db.Close)},
	}

	switch strings.ToLower(cfg.QuotaBackend) {
	case "", "sqlite":
	case "redis":
		rcfg := config.NewRedisConfig(ctx)
		store, err := redis.NewQuotaStore(ctx, redis.Options{
			Addr:     rcfg.Addr,
			Password: rcfg.Password,
			DB:       rcfg.DB,
			Prefix:   rcfg.Prefix,
		})
		if err != nil {
			st.Close(ctx)
			return nil, err
		}
		st.quota = store
		st.services = append(st.services, store)
	default:
		st.Close(ctx)
		return nil, fmt.Errorf("unknown quota backend %q", cfg.QuotaBackend)
	}

	log.FromCtx(ctx).Debug().
		Str("path", cfg.GetDatabasePath()).
		Str("quota_backend", cfg.QuotaBackend).
		Msg("storage ready")
	return st, nil
}

// NewServices wires the turn pipeline and the enabled transports. The order
// matters: ShutdownServices stops them last to first.
func NewServices(ctx context.Context) []srv.Service {
	logger := log.FromCtx(ctx)

	if err := initEnv(ctx, config.GetRuntimePath()); err != nil {
		logger.Fatal().Err(err).Msg("failed to init env")
	}

	// 1. Configuration
	appCfg := config.NewAppConfig(ctx)
	llmCfg := config.NewLLMConfig(ctx)
	searchCfg := config.NewSearchConfig(ctx)

	// 2. Storage
	st, err := openStorage(ctx, appCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize storage")
	}
	services := append([]srv.Service{}, st.services...)

	// 3. Background work outlives the request that scheduled it
	background := srv.NewBackground()

	plans, err := identity.NewResolver(st.quota, appCfg.PlanCacheTTL, appCfg.DependencyAttempts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize plan resolver")
	}
	services = append(services, plans)

	// 4. Model backends
	model, err := llm.NewProvider(ctx, llmCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize LLM provider")
	}

	// 5. Evidence sources
	evidence, searchTool, err := search.NewFromConfig(searchCfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize search")
	}
	if searchTool != nil {
		services = append(services, searchTool)
	}
	if len(evidence.Sources()) == 0 {
		logger.Warn().Msg("no evidence source configured, answers will not be grounded")
	}

	// 6. Memory and quota
	memories := memory.NewService(st.memories, background, appCfg.DependencyAttempts)
	ledger := quota.NewLedger(st.quota)

	// 7. Turn pipeline
	turns := turn.NewOrchestrator(turn.Deps{
		Plans:       plans,
		Model:       model,
		Ledger:      ledger,
		Evidence:    evidence,
		Memories:    memories,
		Extractor:   memory.NewExtractor(memories),
		Preferences: st.prefs,
		Detach:      background,
		Prompt:      turn.NewPromptBuilder(appCfg.GetSystemPath()),
	}, turn.Options{
		DefaultModel:     appCfg.DefaultModel,
		ChatModelMarkers: appCfg.ChatModelMarkers,
		DefaultTimezone:  appCfg.DefaultTimezone,
		Attempts:         appCfg.DependencyAttempts,
	})

	// 8. Transports stop first, then background drains before storage closes
	services = append(services, background)

	if appCfg.EnableHTTP {
		router := api.NewRouter(
			api.NewChatHandler(turns),
			api.NewQuotaHandler(ledger, plans),
			api.NewMemoryHandler(memories),
		)
		services = append(services, api.NewServer(appCfg.HTTPAddr, router))
	}

	if appCfg.EnableTelegram {
		models := state.NewModelSelection(appCfg.DefaultModel)
		commands := command.New(command.NewCommands(ledger, memories, models, evidence))
		bot, err := telegram.NewBot(
			ctx,
			config.NewTelegramConfig(ctx),
			appCfg.DefaultTimezone,
			turns,
			commands,
			models,
			state.NewConversations(0),
		)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to initialize telegram bot")
		}
		services = append(services, bot)
	}

	if !appCfg.EnableHTTP && !appCfg.EnableTelegram {
		logger.Warn().Msg("no transport enabled, set ENABLE_HTTP or ENABLE_TELEGRAM")
	}

	return services
}

func initEnv(ctx context.Context, runtimePath string) error {
	logger := log.FromCtx(ctx)
	envFile := filepath.Join(runtimePath, ".env")

	if _, err := os.Stat(envFile); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	if err := godotenv.Load(envFile); err != nil {
		logger.Warn().Err(err).Str("path", envFile).Msg("failed to load .env file")
		return err
	}

	logger.Debug().Str("path", envFile).Msg("loaded .env file")
	return nil
}

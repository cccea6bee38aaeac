package setup

import (
	"context"
	"log"

	"github.com/robalyx/sentinel/internal/dispatcher"
	"github.com/robalyx/sentinel/internal/engine"
	"github.com/robalyx/sentinel/internal/logging"
	"github.com/robalyx/sentinel/internal/setup/config"
	"github.com/robalyx/sentinel/internal/storage/database"
	"github.com/robalyx/sentinel/internal/storage/redis"
	"go.uber.org/zap"
)

// App bundles all core dependencies and services needed by the application.
// Each field represents a major subsystem that needs initialization and cleanup.
type App struct {
	Config       *config.Config        // Application configuration
	Logger       *zap.Logger           // Main application logger
	StoreLogger  *zap.Logger           // Storage-specific logger
	RedisManager *redis.Manager        // Redis connection manager, nil when Redis is disabled
	EventQueue   *redis.EventQueue     // Pending event queue, nil when Redis is disabled
	DB           *database.Client      // Infraction log database, nil when PostgreSQL is disabled
	Rules        *config.RuleProvider  // Per-community detection rulesets
	Engine       *engine.Engine        // Behavioral evaluation engine
	Dispatcher   *dispatcher.Dispatcher
}

// InitializeApp bootstraps all application dependencies in the correct order,
// ensuring each component has its required dependencies available.
func InitializeApp(ctx context.Context, logDir string) (*App, error) {
	// Load app configuration
	cfg, configPath, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// Logging system is initialized next to capture setup issues
	logger, storeLogger, err := logging.SetupLogging(logDir, cfg.Debug.LogLevel, cfg.Debug.MaxLogsToKeep)
	if err != nil {
		return nil, err
	}

	// Redis backs both persisted suspicion state and the pending event queue
	var (
		redisManager *redis.Manager
		eventQueue   *redis.EventQueue
		store        engine.StateStore
	)

	if cfg.Redis.Enabled {
		redisManager = redis.NewManager(&cfg.Redis.Config, storeLogger)

		stateClient, err := redisManager.GetClient(redis.StateDBIndex)
		if err != nil {
			return nil, err
		}

		queueClient, err := redisManager.GetClient(redis.QueueDBIndex)
		if err != nil {
			redisManager.Close()
			return nil, err
		}

		store = redis.NewStateStore(stateClient, storeLogger)
		eventQueue = redis.NewEventQueue(queueClient, storeLogger)
	}

	// Infraction log database
	var db *database.Client

	if cfg.PostgreSQL.Enabled {
		db, err = database.NewConnection(ctx, &cfg.PostgreSQL.Config, storeLogger)
		if err != nil {
			if redisManager != nil {
				redisManager.Close()
			}

			return nil, err
		}
	}

	// Compile detection rulesets and watch the config file for changes
	rules, err := config.NewRuleProvider(cfg, logger)
	if err != nil {
		return nil, err
	}

	if err := rules.Watch(configPath); err != nil {
		logger.Warn("Config hot reload unavailable",
			zap.String("path", configPath),
			zap.Error(err))
	}

	eng := engine.New(store, logger)
	disp := dispatcher.New(db, store, logger)

	// Bundle all initialized components
	return &App{
		Config:       cfg,
		Logger:       logger,
		StoreLogger:  storeLogger,
		RedisManager: redisManager,
		EventQueue:   eventQueue,
		DB:           db,
		Rules:        rules,
		Engine:       eng,
		Dispatcher:   disp,
	}, nil
}

// Cleanup ensures graceful shutdown of all components in reverse initialization order.
// Logs but does not fail on cleanup errors to ensure all components get cleanup attempts.
func (s *App) Cleanup(_ context.Context) {
	// Sync buffered logs before shutdown
	if err := s.Logger.Sync(); err != nil {
		log.Printf("Failed to sync logger: %v", err)
	}

	if err := s.StoreLogger.Sync(); err != nil {
		log.Printf("Failed to sync storage logger: %v", err)
	}

	// Close database connections
	if s.DB != nil {
		if err := s.DB.Close(); err != nil {
			log.Printf("Failed to close database connection: %v", err)
		}
	}

	// Close Redis connections last as other components might need it during cleanup
	if s.RedisManager != nil {
		s.RedisManager.Close()
	}
}

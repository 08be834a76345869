package di

import (
	"context"
	"time"

	"gorm.io/gorm"

	"paper-agent-chat/backend/agent"
	conversationapi "paper-agent-chat/backend/conversation/api"
	conversationrepo "paper-agent-chat/backend/conversation/repository"
	conversationservice "paper-agent-chat/backend/conversation/service"
	"paper-agent-chat/backend/pkg/cache"
	"paper-agent-chat/backend/pkg/config"
	"paper-agent-chat/backend/pkg/health"
	"paper-agent-chat/backend/pkg/logger"
	"paper-agent-chat/backend/pkg/secrets"
	"paper-agent-chat/backend/relay"
	relayapi "paper-agent-chat/backend/relay/api"
	sessionapi "paper-agent-chat/backend/session/api"
	sessionrepo "paper-agent-chat/backend/session/repository"
	sessionservice "paper-agent-chat/backend/session/service"
	sharedredis "paper-agent-chat/backend/shared/redis"
	"paper-agent-chat/backend/title"
)

// Container wires the application graph: repositories, services, the relay
// engine and the HTTP handlers. Construction order follows dependency order,
// so a wiring mistake fails here rather than at request time.
type Container struct {
	Config *config.Config
	DB     *gorm.DB
	Logger *logger.Logger

	SessionService *sessionservice.SessionService
	MessageService *conversationservice.MessageService
	AgentClient    *agent.Client
	Engine         *relay.Engine
	TurnGuard      *relay.TurnGuard
	TitlePool      *title.Pool
	Health         *health.Checker

	SessionHandler *sessionapi.SessionHandler
	HistoryHandler *conversationapi.HistoryHandler
	ChatHandler    *relayapi.ChatHandler

	redisClient *sharedredis.Client
}

// NewContainer builds the full application graph from configuration.
func NewContainer(cfg *config.Config, db *gorm.DB, log *logger.Logger) (*Container, error) {
	c := &Container{
		Config: cfg,
		DB:     db,
		Logger: log,
	}

	secretsManager, err := secrets.NewVaultManager(log)
	if err != nil {
		return nil, err
	}
	ctx := context.Background()
	agentAPIKey := secretsManager.GetSecretWithDefault(ctx, "agent_api_key", cfg.Agent.APIKey)
	titleAPIKey := secretsManager.GetSecretWithDefault(ctx, "title_llm_api_key", cfg.TitleLLM.APIKey)

	// Repositories
	sessionRepo := sessionrepo.NewGormSessionRepository(db)
	messageRepo := conversationrepo.NewGormMessageRepository(db)

	// Session list cache: redis when configured, in-process otherwise
	var listCache sessionservice.ListCache
	if cfg.Cache.Enabled {
		if cfg.Cache.RedisURL != "" {
			c.redisClient = sharedredis.NewClient(cfg.Cache.RedisURL, cfg.Cache.TTL)
			if err := c.redisClient.Ping(ctx); err != nil {
				log.Warn("redis unreachable, falling back to in-memory cache", "error", err.Error())
				c.redisClient = nil
			} else {
				listCache = c.redisClient
			}
		}
		if listCache == nil {
			listCache = cache.New(cache.Options{
				TTL:         cfg.Cache.TTL,
				PurgeWindow: cfg.Cache.PurgeWindow,
				MaxItems:    cfg.Cache.MaxSize,
			})
		}
	}

	// Services
	c.SessionService = sessionservice.NewSessionService(sessionRepo, listCache, log)
	c.MessageService = conversationservice.NewMessageService(messageRepo)

	// Upstream agent client
	c.AgentClient = agent.NewClient(agent.Config{
		BaseURL: cfg.Agent.BaseURL,
		APIKey:  agentAPIKey,
		Timeout: cfg.Agent.Timeout,
	}, log)

	// Title derivation pipeline
	titleClient := title.NewLLMClient(title.LLMConfig{
		BaseURL:             cfg.TitleLLM.BaseURL,
		APIKey:              titleAPIKey,
		Model:               cfg.TitleLLM.Model,
		Timeout:             cfg.TitleLLM.Timeout,
		MaxCompletionTokens: cfg.TitleLLM.MaxCompletionTokens,
	}, log)
	titleService := title.NewService(c.SessionService, c.MessageService, titleClient, log)
	c.TitlePool = title.NewPool(titleService, title.PoolOptions{
		Workers:   cfg.TitleLLM.Workers,
		QueueSize: cfg.TitleLLM.QueueSize,
		Sync:      cfg.TitleLLM.Sync,
	}, log)

	// Relay engine
	c.Engine = relay.NewEngine(c.AgentClient, c.MessageService, c.SessionService, c.TitlePool, relay.Options{
		ChunkSize:  cfg.Stream.ChunkSize,
		ChunkDelay: cfg.Stream.ChunkDelay,
		PunctDelay: cfg.Stream.PunctDelay,
	}, log)
	c.TurnGuard = relay.NewTurnGuard()

	// HTTP handlers
	c.SessionHandler = sessionapi.NewSessionHandler(c.SessionService, c.MessageService)
	c.HistoryHandler = conversationapi.NewHistoryHandler(c.MessageService, c.SessionService, cfg.Features.HistoryAfterArchive)
	c.ChatHandler = relayapi.NewChatHandler(c.Engine, c.SessionService, c.MessageService, c.TurnGuard, log)

	// Health checks
	c.Health = health.NewChecker(log, 30*time.Second)
	c.Health.RegisterDatabaseCheck(func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Ping()
	})
	c.Health.RegisterAgentConfigCheck(func() bool {
		return cfg.Agent.BaseURL != "" && agentAPIKey != ""
	})

	return c, nil
}

// Close releases resources held by the container.
func (c *Container) Close() error {
	if c.redisClient != nil {
		if err := c.redisClient.Close(); err != nil {
			return err
		}
	}
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

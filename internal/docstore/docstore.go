package docstore

import (
	"context"
	"fmt"

	dshttp "mission-control/internal/docstore/adapter/http"
	"mission-control/internal/docstore/adapter/persistence"
	"mission-control/internal/docstore/adapter/persistence/canned"
	"mission-control/internal/docstore/adapter/persistence/mysql"
	"mission-control/internal/docstore/config"
	"mission-control/internal/docstore/domain/repository"
	"mission-control/internal/docstore/usecase"
	"mission-control/internal/shared/eventbus"
	"mission-control/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// DocstoreModule wires the document adapter: one storage handle, the event bus, the
// registry, the translator and their HTTP surfaces.
type DocstoreModule struct {
	config     *config.StoreConfig
	storage    repository.Storage
	pool       *mysql.Pool
	bus        *eventbus.EventBus
	registry   *usecase.Registry
	accessor   *usecase.DocumentAccessor
	translator *usecase.Translator
	eventStore *persistence.RedisEventStore
	redis      *redis.Client
	handler    *dshttp.Handler
	wsHandler  *dshttp.WebSocketHandler
	log        logger.Logger
}

// NewDocstoreModule opens the storage selected by cfg.Driver and builds the module. The
// Redis stream sink is attached when enabled and reachable; it also backs feed resumes.
func NewDocstoreModule(ctx context.Context, cfg *config.StoreConfig, log logger.Logger) (*DocstoreModule, error) {
	if cfg == nil {
		cfg = config.DefaultStoreConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	var (
		storage      repository.Storage
		pool         *mysql.Pool
		cannedTables []string
	)
	switch cfg.Driver {
	case config.DriverCanned:
		store, err := canned.New(log)
		if err != nil {
			return nil, fmt.Errorf("failed to load canned datasets: %w", err)
		}
		log.Warn("using canned sample data, writes are not persisted")
		storage = store
		cannedTables = store.Tables()
	case config.DriverMySQL, "":
		p, err := mysql.Open(ctx, cfg.Database, log)
		if err != nil {
			return nil, err
		}
		pool = p
		storage = p
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}

	m := NewDocstoreModuleWithStorage(cfg, storage, log)
	m.pool = pool
	if cannedTables != nil {
		for _, name := range missingTables(m.registry, cannedTables) {
			log.Warnf("canned datasets have no %s table, reads of it return nothing", name)
		}
	}

	if cfg.Redis.Enabled {
		client, err := persistence.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warnf("change events will not be streamed: %v", err)
		} else {
			m.redis = client
			m.eventStore = persistence.NewRedisEventStore(client, cfg.Redis, log)
			m.eventStore.Subscribe(m.bus)
			m.wsHandler.UseChangeLog(m.eventStore)
			log.Infof("streaming change events to Redis at %s, feeds can resume", cfg.Redis.GetAddr())
		}
	}
	return m, nil
}

// NewDocstoreModuleWithStorage builds the module over an existing storage handle.
func NewDocstoreModuleWithStorage(cfg *config.StoreConfig, storage repository.Storage, log logger.Logger) *DocstoreModule {
	if cfg == nil {
		cfg = config.DefaultStoreConfig()
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	bus := eventbus.NewEventBus(log)
	registry := usecase.NewRegistry(storage, cfg.UnknownCollectionPolicy, bus, log)
	accessor := usecase.NewDocumentAccessor(storage, registry, bus, log)
	translator := usecase.NewTranslator(registry, accessor, log)

	return &DocstoreModule{
		config:     cfg,
		storage:    storage,
		bus:        bus,
		registry:   registry,
		accessor:   accessor,
		translator: translator,
		handler:    dshttp.NewHandler(registry, translator, log),
		wsHandler:  dshttp.NewWebSocketHandler(bus, registry, cfg.Realtime.ClientSendChannelBuffer, log),
		log:        log.WithComponent("docstore"),
	}
}

// RegisterRoutes mounts the REST routes under /api/v1 and the change feed under the
// configured websocket path.
func (m *DocstoreModule) RegisterRoutes(router fiber.Router) {
	m.handler.RegisterRoutes(router.Group("/api/v1"))
	m.wsHandler.RegisterRoutes(router, m.config.Realtime.WebSocketPath)
}

// Registry returns the name-dispatched entrypoint.
func (m *DocstoreModule) Registry() *usecase.Registry { return m.registry }

// Translator returns the query-descriptor entrypoint.
func (m *DocstoreModule) Translator() *usecase.Translator { return m.translator }

// EventBus returns the bus change events are published on.
func (m *DocstoreModule) EventBus() *eventbus.EventBus { return m.bus }

// Health pings the storage handle when it supports it.
func (m *DocstoreModule) Health(ctx context.Context) error {
	if hc, ok := m.storage.(repository.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

// Stop releases the storage pool and the Redis client.
func (m *DocstoreModule) Stop() error {
	var firstErr error
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			firstErr = err
		}
	}
	if m.pool != nil {
		if err := m.pool.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// missingTables lists the registered tables absent from have.
func missingTables(registry *usecase.Registry, have []string) []string {
	present := make(map[string]bool, len(have))
	for _, t := range have {
		present[t] = true
	}
	var missing []string
	for _, name := range registry.Collections() {
		if e, ok := registry.Lookup(name); ok && !present[e.Table] {
			missing = append(missing, e.Table)
		}
	}
	return missing
}

package di

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"mission-control/internal/auth"
	authconfig "mission-control/internal/auth/config"
	"mission-control/internal/docstore"
	storeconfig "mission-control/internal/docstore/config"
	"mission-control/internal/shared/logger"

	"github.com/gofiber/fiber/v2"
)

// Container owns the application modules and their shutdown order.
type Container struct {
	mu        sync.RWMutex
	services  map[reflect.Type]interface{}
	factories map[reflect.Type]func() (interface{}, error)

	DocstoreModule *docstore.DocstoreModule
	AuthModule     *auth.AuthModule

	StoreConfig *storeconfig.StoreConfig
	AuthConfig  *authconfig.Config

	Logger logger.Logger
}

// NewContainer creates an empty container. A nil logger is replaced by the default one.
func NewContainer(log logger.Logger) *Container {
	if log == nil {
		log = logger.NewLogger()
	}
	return &Container{
		services:  make(map[reflect.Type]interface{}),
		factories: make(map[reflect.Type]func() (interface{}, error)),
		Logger:    log,
	}
}

// InitializeDocstore opens the storage and builds the document adapter.
func (c *Container) InitializeDocstore(ctx context.Context, cfg *storeconfig.StoreConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, err := docstore.NewDocstoreModule(ctx, cfg, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create docstore module: %w", err)
	}
	c.StoreConfig = cfg
	c.DocstoreModule = m
	return nil
}

// InitializeAuth builds the auth module over the docstore's users collection.
func (c *Container) InitializeAuth(cfg *authconfig.Config) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.DocstoreModule == nil {
		return fmt.Errorf("docstore module must be initialized before auth module")
	}
	m, err := auth.NewAuthModule(c.DocstoreModule.Registry(), cfg, c.Logger)
	if err != nil {
		return fmt.Errorf("failed to create auth module: %w", err)
	}
	c.AuthConfig = cfg
	c.AuthModule = m
	return nil
}

// RegisterRoutes mounts every initialized module. When auth is present the collection
// routes require a token; the websocket feed accepts one optionally.
func (c *Container) RegisterRoutes(app fiber.Router) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.AuthModule != nil {
		c.AuthModule.RegisterRoutes(app.Group("/api/v1/auth"))
		mw := c.AuthModule.GetMiddleware()
		app.Use("/api/v1/collections", mw.Protect())
		if c.StoreConfig != nil {
			app.Use(c.StoreConfig.Realtime.WebSocketPath, mw.OptionalAuth())
		}
	}
	if c.DocstoreModule != nil {
		c.DocstoreModule.RegisterRoutes(app)
	}
}

// Register registers a service instance
func (c *Container) Register(service interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	serviceType := reflect.TypeOf(service)
	if serviceType.Kind() == reflect.Ptr {
		serviceType = serviceType.Elem()
	}

	c.services[serviceType] = service
	return nil
}

// RegisterFactory registers a lazily built service.
func (c *Container) RegisterFactory(serviceType reflect.Type, factory func() (interface{}, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.factories[serviceType] = factory
	return nil
}

// Resolve returns the registered instance, building it from its factory on first use.
func (c *Container) Resolve(serviceType reflect.Type) (interface{}, error) {
	c.mu.RLock()
	service, exists := c.services[serviceType]
	factory, hasFactory := c.factories[serviceType]
	c.mu.RUnlock()

	if exists {
		return service, nil
	}
	if !hasFactory {
		return nil, fmt.Errorf("service of type %v not registered", serviceType)
	}

	service, err := factory()
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.services[serviceType]; ok {
		return existing, nil
	}
	c.services[serviceType] = service
	return service, nil
}

// GetService is a generic helper for resolving services. T is the registered type
// without its pointer.
func GetService[T any](c *Container) (*T, error) {
	serviceType := reflect.TypeOf((*T)(nil)).Elem()

	service, err := c.Resolve(serviceType)
	if err != nil {
		return nil, err
	}

	if typed, ok := service.(*T); ok {
		return typed, nil
	}
	return nil, fmt.Errorf("service is not of expected type %v", serviceType)
}

// HealthCheck pings the storage.
func (c *Container) HealthCheck(ctx context.Context) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.DocstoreModule != nil {
		if err := c.DocstoreModule.Health(ctx); err != nil {
			return fmt.Errorf("storage health check failed: %w", err)
		}
	}
	return nil
}

// Cleanup stops the modules in reverse order of initialization and then any registered
// service exposing Cleanup.
func (c *Container) Cleanup(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var errs []error

	c.AuthModule = nil
	if c.DocstoreModule != nil {
		if err := c.DocstoreModule.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop docstore: %w", err))
		}
		c.DocstoreModule = nil
	}

	for _, service := range c.services {
		if cleaner, ok := service.(interface{ Cleanup(context.Context) error }); ok {
			if err := cleaner.Cleanup(ctx); err != nil {
				errs = append(errs, fmt.Errorf("failed to cleanup service: %w", err))
			}
		}
	}

	c.services = make(map[reflect.Type]interface{})
	c.factories = make(map[reflect.Type]func() (interface{}, error))

	if len(errs) > 0 {
		return fmt.Errorf("cleanup errors: %v", errs)
	}
	return nil
}

// Close runs Cleanup with a 30 second deadline.
func (c *Container) Close() error {
	c.Logger.Info("closing container resources")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.Cleanup(ctx); err != nil {
		c.Logger.Warnf("cleanup errors occurred: %v", err)
		return err
	}
	return nil
}

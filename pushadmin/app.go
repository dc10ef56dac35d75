// Package pushadmin assembles the SDK surface from configuration: one App
// per backend project, handing out messaging and tenant clients that share
// the App's credentials.
package pushadmin

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/tinywideclouds/go-push-admin/internal/storage/cache"
	"github.com/tinywideclouds/go-push-admin/messaging"
	"github.com/tinywideclouds/go-push-admin/pushadmin/config"
	"github.com/tinywideclouds/go-push-admin/tenant"
)

// App is the root handle. Construct once per project binding; the clients
// it vends are safe for concurrent use.
type App struct {
	cfg         *config.Config
	tokenSource oauth2.TokenSource
	logger      *slog.Logger

	mu          sync.Mutex
	msgClient   *messaging.Client
	tenants     tenant.Source
	redisClient *cache.RedisClient
}

// New assembles the App.
func New(cfg *config.Config, ts oauth2.TokenSource, logger *slog.Logger) (*App, error) {
	if cfg == nil || cfg.ProjectID == "" {
		return nil, fmt.Errorf("pushadmin: project ID is required")
	}
	if ts == nil {
		if cfg.Credentials.AccessToken == "" {
			return nil, fmt.Errorf("pushadmin: a token source or a static access token is required")
		}
		ts = oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Credentials.AccessToken})
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		cfg:         cfg,
		tokenSource: ts,
		logger:      logger.With("component", "PushAdmin"),
	}, nil
}

// Messaging returns the messaging client, constructing it on first use.
func (a *App) Messaging() (*messaging.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.msgClient != nil {
		return a.msgClient, nil
	}
	client, err := messaging.NewClient(&messaging.Config{
		ProjectID:     a.cfg.ProjectID,
		Endpoint:      a.cfg.Endpoint,
		BatchEndpoint: a.cfg.BatchEndpoint,
		TokenSource:   a.tokenSource,
		Logger:        a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create messaging client: %w", err)
	}
	a.msgClient = client
	return client, nil
}

// Tenants returns the tenant source, constructing it on first use. When the
// Redis cache is enabled the manager is wrapped in a read-aside decorator.
func (a *App) Tenants() (tenant.Source, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.tenants != nil {
		return a.tenants, nil
	}
	manager, err := tenant.NewManager(&tenant.Config{
		ProjectID:   a.cfg.ProjectID,
		Endpoint:    a.cfg.AuthEndpoint,
		TokenSource: a.tokenSource,
		Logger:      a.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create tenant manager: %w", err)
	}

	var source tenant.Source = manager
	if a.cfg.Redis.Enabled {
		a.logger.Info("Initializing Redis Cache layer...", "addr", a.cfg.Redis.Addr)
		redisClient, err := cache.NewRedisClient(a.cfg.Redis.Addr, a.cfg.Redis.Password, a.cfg.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		a.redisClient = redisClient
		ttl := time.Duration(a.cfg.TenantCacheTTLSecond) * time.Second
		source = cache.NewCachedTenantSource(manager, redisClient, ttl)
		a.logger.Info("Tenant source upgraded", "type", "redis_cached")
	}

	a.tenants = source
	return source, nil
}

// Close releases resources held by the App. Safe to call more than once.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.redisClient == nil {
		return nil
	}
	err := a.redisClient.Close()
	a.redisClient = nil
	// The memoized source wraps the closed client; the next Tenants call
	// rebuilds the whole stack.
	a.tenants = nil
	return err
}

package pushadmin_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/tinywideclouds/go-push-admin/pushadmin"
	"github.com/tinywideclouds/go-push-admin/pushadmin/config"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func staticSource() oauth2.TokenSource {
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "test-token"})
}

func TestNew(t *testing.T) {
	t.Run("Requires a project ID", func(t *testing.T) {
		_, err := pushadmin.New(&config.Config{}, staticSource(), newTestLogger())
		assert.Error(t, err)
	})

	t.Run("Requires credentials in some form", func(t *testing.T) {
		_, err := pushadmin.New(&config.Config{ProjectID: "p"}, nil, newTestLogger())
		assert.Error(t, err)
	})

	t.Run("Static access token stands in for a token source", func(t *testing.T) {
		cfg := &config.Config{
			ProjectID:   "p",
			Credentials: config.CredentialsConfig{AccessToken: "cfg-token"},
		}
		app, err := pushadmin.New(cfg, nil, newTestLogger())
		require.NoError(t, err)
		require.NotNil(t, app)
	})
}

func TestAppClients(t *testing.T) {
	app, err := pushadmin.New(&config.Config{ProjectID: "p"}, staticSource(), newTestLogger())
	require.NoError(t, err)

	t.Run("Messaging is memoized", func(t *testing.T) {
		first, err := app.Messaging()
		require.NoError(t, err)
		second, err := app.Messaging()
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("Tenants is memoized", func(t *testing.T) {
		first, err := app.Tenants()
		require.NoError(t, err)
		second, err := app.Tenants()
		require.NoError(t, err)
		assert.Same(t, first, second)
	})

	t.Run("Close with no redis is a no-op", func(t *testing.T) {
		assert.NoError(t, app.Close())
	})
}

func TestAppWithRedisCache(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := &config.Config{
		ProjectID:            "p",
		TenantCacheTTLSecond: 60,
		Redis: config.RedisConfig{
			Enabled: true,
			Addr:    mr.Addr(),
		},
	}
	app, err := pushadmin.New(cfg, staticSource(), newTestLogger())
	require.NoError(t, err)

	source, err := app.Tenants()
	require.NoError(t, err)
	require.NotNil(t, source)

	assert.NoError(t, app.Close())
	assert.NoError(t, app.Close(), "Close must be idempotent")

	t.Run("Tenants after Close rebuilds over a fresh connection", func(t *testing.T) {
		rebuilt, err := app.Tenants()
		require.NoError(t, err)
		assert.NotSame(t, source, rebuilt, "the source over the closed client must not be reused")
		assert.NoError(t, app.Close())
	})
}

func TestAppWithUnreachableRedis(t *testing.T) {
	cfg := &config.Config{
		ProjectID: "p",
		Redis: config.RedisConfig{
			Enabled: true,
			Addr:    "127.0.0.1:1", // nothing listens here
		},
	}
	app, err := pushadmin.New(cfg, staticSource(), newTestLogger())
	require.NoError(t, err)

	_, err = app.Tenants()
	assert.Error(t, err, "cache layer must fail fast when Redis is unreachable")
}

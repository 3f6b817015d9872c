package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/shopcatalog/internal/config"
	"github.com/utafrali/shopcatalog/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeSeed(t *testing.T) string {
	t.Helper()
	items := []domain.CatalogItem{
		{ID: "p-1", Name: "Trail Runner", Brand: "Nike", Category: "Shoes", Price: 12999, Active: true, InStock: true},
		{ID: "p-2", Name: "Road Runner", Brand: "Adidas", Category: "Shoes", Price: 9999, Active: true, InStock: true},
		{ID: "p-3", Name: "Cap", Brand: "Nike", Category: "Hats", Price: 1999, Active: false},
	}
	raw, err := json.Marshal(items)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	return path
}

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.CatalogSeedFile = writeSeed(t)
	return cfg
}

func TestNewApp_MemoryWiring(t *testing.T) {
	a, err := NewApp(loadConfig(t), testLogger())
	require.NoError(t, err)
	t.Cleanup(a.close)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/catalog/products", http.NoBody)
	req.Header.Set("X-Session-ID", "s1")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Trail Runner")
	assert.NotContains(t, rec.Body.String(), `"Cap"`)
}

func TestNewApp_RedisStateStore(t *testing.T) {
	mr := miniredis.RunT(t)
	host, port, _ := strings.Cut(mr.Addr(), ":")

	cfg := loadConfig(t)
	cfg.StateStore = config.StateRedis
	cfg.RedisHost = host
	cfg.RedisPort, _ = strconv.Atoi(port)

	a, err := NewApp(cfg, testLogger())
	require.NoError(t, err)
	t.Cleanup(a.close)

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/catalog/filters/brands", strings.NewReader(`{"brands":["Nike"]}`))
	req.Header.Set("X-Session-ID", "s1")
	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.True(t, mr.Exists("catalog_filter_state:s1"))

	ready := httptest.NewRecorder()
	a.Handler().ServeHTTP(ready, httptest.NewRequest(http.MethodGet, "/health/ready", http.NoBody))
	assert.Equal(t, http.StatusOK, ready.Code)
	assert.Contains(t, ready.Body.String(), "redis")
}

func TestNewApp_RedisUnreachable(t *testing.T) {
	cfg := loadConfig(t)
	cfg.StateStore = config.StateRedis
	cfg.RedisHost = "127.0.0.1"
	cfg.RedisPort = 1

	_, err := NewApp(cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connect to redis")
}

func TestNewApp_BadSeed(t *testing.T) {
	cfg := loadConfig(t)
	cfg.CatalogSeedFile = filepath.Join(t.TempDir(), "missing.json")

	_, err := NewApp(cfg, testLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read catalog seed")
}

func TestApp_RunStopsOnCancel(t *testing.T) {
	cfg := loadConfig(t)
	cfg.HTTPPort = 0

	a, err := NewApp(cfg, testLogger())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestLoadSeed_EmptyPath(t *testing.T) {
	items, err := loadSeed("", 0)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestLoadSeed_Generated(t *testing.T) {
	items, err := loadSeed("", 50)
	require.NoError(t, err)
	assert.Len(t, items, 50)

	again, err := loadSeed("", 50)
	require.NoError(t, err)
	assert.Equal(t, items[0].ID, again[0].ID)
}

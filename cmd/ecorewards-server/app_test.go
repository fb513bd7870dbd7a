package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ecorewards/adapters/jsonfile"
	mem "ecorewards/adapters/memory"
	"ecorewards/config"
	"ecorewards/core"
)

func TestSetupLogging(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Logging.Format = "json"
	cfg.Logging.Output = "stderr"
	cfg.Logging.Attributes = map[string]string{"region": "eu"}

	var stdout, stderr bytes.Buffer
	log := setupLogging(cfg, &stdout, &stderr)
	t.Cleanup(func() { slog.SetDefault(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))) })

	log.Info("hello")
	assert.Empty(t, stdout.String())
	assert.Contains(t, stderr.String(), `"region":"eu"`)
	assert.Contains(t, stderr.String(), `"service":"ecorewards"`)

	log.Debug("hidden")
	assert.NotContains(t, stderr.String(), "hidden")
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("warn"))
	assert.Equal(t, slog.LevelError, parseLogLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestCatalogForAppliesLevelPolicy(t *testing.T) {
	cat := catalogFor(config.RewardsConfig{PointsPerLevel: 250, MaxLevel: 10})
	assert.Equal(t, int64(250), cat.Levels.PointsPerLevel)
	assert.Equal(t, int64(10), cat.Levels.MaxLevel)

	def := catalogFor(config.RewardsConfig{})
	assert.Equal(t, core.DefaultLevelPolicy().PointsPerLevel, def.Levels.PointsPerLevel)
}

func TestSetupStorage(t *testing.T) {
	cfg := config.DefaultConfig()

	store, err := setupStorage(cfg)
	require.NoError(t, err)
	assert.IsType(t, &mem.Store{}, store)

	cfg.Storage.Adapter = "file"
	cfg.Storage.File.Path = filepath.Join(t.TempDir(), "profiles.json")
	store, err = setupStorage(cfg)
	require.NoError(t, err)
	assert.IsType(t, &jsonfile.Store{}, store)

	cfg.Storage.Adapter = "etcd"
	_, err = setupStorage(cfg)
	assert.Error(t, err)
}

type fakePinger struct {
	mem.Store
	err error
}

func (f *fakePinger) Ping(context.Context) error { return f.err }

func TestStorageHealth(t *testing.T) {
	assert.Nil(t, storageHealth(mem.New()))

	p := &fakePinger{}
	check := storageHealth(p)
	require.NotNil(t, check)
	assert.NoError(t, check(context.Background()))

	p.err = errors.New("down")
	assert.Error(t, check(context.Background()))
}

func TestMetricsServer(t *testing.T) {
	cfg := config.DefaultConfig()
	reg := provideRegistry(cfg)

	assert.Nil(t, provideMetricsServer(cfg, reg).Server)

	cfg.Metrics.Enabled = true
	ms := provideMetricsServer(cfg, reg)
	require.NotNil(t, ms.Server)

	rec := httptest.NewRecorder()
	ms.Server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, cfg.Metrics.Path, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestSetupWebhooks(t *testing.T) {
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	assert.Nil(t, setupWebhooks(config.NotificationsConfig{}, log))

	sink := setupWebhooks(config.NotificationsConfig{
		Webhooks:      []string{"http://127.0.0.1:1/hook"},
		WebhookEvents: []string{"level_up"},
	}, log)
	assert.NotNil(t, sink)
}

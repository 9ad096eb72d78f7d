package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fastinghub/pulse/internal/app"
	"github.com/fastinghub/pulse/internal/models"
	"github.com/fastinghub/pulse/internal/services"
)

func TestConvertDatabaseConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		input  app.DatabaseConfig
		expect string
	}{
		{name: "defaults to sqlite", input: app.DatabaseConfig{}, expect: "sqlite"},
		{name: "postgresql alias", input: app.DatabaseConfig{Driver: "PostgreSQL"}, expect: "postgres"},
		{name: "mariadb alias", input: app.DatabaseConfig{Driver: "mariadb"}, expect: "mysql"},
		{name: "sqlite passthrough", input: app.DatabaseConfig{Driver: " sqlite "}, expect: "sqlite"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := &app.Config{Database: tc.input}
			require.Equal(t, tc.expect, convertDatabaseConfig(cfg).Driver)
		})
	}

	cfg := &app.Config{Database: app.DatabaseConfig{
		Driver:   "postgres",
		Host:     " db.internal ",
		Port:     5433,
		User:     " pulse ",
		Password: "secret",
		Name:     " pulse_events ",
		Options:  map[string]string{"sslmode": "disable"},
	}}
	converted := convertDatabaseConfig(cfg)
	require.Equal(t, "db.internal", converted.Host)
	require.Equal(t, 5433, converted.Port)
	require.Equal(t, "pulse", converted.User)
	require.Equal(t, "secret", converted.Password)
	require.Equal(t, "pulse_events", converted.Name)
	require.Equal(t, "disable", converted.Options["sslmode"])
}

func TestBootstrapRuntimeServesPipeline(t *testing.T) {
	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)

	cfg.Database.Path = filepath.Join(t.TempDir(), "pulse.sqlite")
	cfg.Dispatch.Mode = services.DispatchModeSync

	log := zap.NewNop()
	stack, err := bootstrapRuntime(context.Background(), cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), log) })

	require.NotNil(t, stack.Router)
	require.NotNil(t, stack.Dispatcher)
	require.NotNil(t, stack.Cleaner)
	require.NotNil(t, stack.RateStore)

	// Migrations and seeding ran: the catalog is served.
	w := httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/event-types", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "app_open")

	// Readiness covers database, redis fallback, dispatcher, maintenance.
	w = httptest.NewRecorder()
	stack.Router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
	for _, component := range []string{"database", "redis", "dispatcher", "maintenance"} {
		require.Contains(t, w.Body.String(), component)
	}

	// Full ingest round-trip through the synchronous pipeline.
	user := models.User{BaseModel: models.BaseModel{ID: "boot-user"}, Username: "grace", DisplayName: "Grace Kim"}
	require.NoError(t, stack.DB.Create(&user).Error)

	body := strings.NewReader(`{"event_type":"app_open"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/events", body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", user.ID)
	w = httptest.NewRecorder()
	stack.Router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var count int64
	require.NoError(t, stack.DB.Model(&models.Event{}).Where("event_type_code = ?", models.EventAppOpen).Count(&count).Error)
	require.NotZero(t, count)
}

func TestBootstrapRuntimeRejectsBadDriver(t *testing.T) {
	cfg, err := app.LoadConfig(t.TempDir())
	require.NoError(t, err)
	cfg.Database.Driver = "oracle"

	_, err = bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

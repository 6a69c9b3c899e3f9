package app

import (
	"testing"

	"github.com/machsheltie/Equoria-sub009/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTestApp(t *testing.T) *App {
	cfg := testutils.GetTestConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = "0"
	cfg.Database.AutoMigrate = true

	application, err := NewApp().WithConfig(cfg).Build()
	require.NoError(t, err)
	require.NotNil(t, application)

	return application
}

func TestAppBuilder_Build(t *testing.T) {
	application := buildTestApp(t)

	assert.NotNil(t, application.Config())
	assert.NotNil(t, application.Logger())
}

func TestAppBuilder_NilConfig(t *testing.T) {
	application, err := NewApp().WithConfig(nil).Build()

	require.Error(t, err)
	assert.Nil(t, application)
	assert.Contains(t, err.Error(), "config cannot be nil")
}

func TestApp_StartAndStop(t *testing.T) {
	application := buildTestApp(t)

	require.NoError(t, application.Start())
	defer application.Stop()

	assert.NotNil(t, application.DB())
	assert.NotNil(t, application.Server())

	// The credential tables were auto-migrated on start.
	assert.True(t, application.DB().Migrator().HasTable("credentials"))
	assert.True(t, application.DB().Migrator().HasTable("security_events"))
	assert.True(t, application.DB().Migrator().HasTable("users"))
}

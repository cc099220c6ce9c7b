package config_test

import (
	"github.com/denisschmidt/localstore/config"
	"github.com/stretchr/testify/require"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	c, err := config.Load("")
	require.NoError(t, err)

	require.Equal(t, config.DefaultPort, c.Port)
	require.Equal(t, config.DefaultAdminPort, c.AdminPort)
	require.Equal(t, config.BackendSQLite, c.Backend)
	require.Equal(t, config.DefaultDBDriver, c.DBDriver)
	require.Equal(t, config.DefaultDBPath, c.DBPath)
	require.Equal(t, config.DefaultChunkSize, c.DBChunkSize)
	require.Equal(t, int64(0), c.MaxStoreBytes)
	require.NotNil(t, c.Options)
	require.Contains(t, c.Options.DefaultUserAgent, config.DefaultUserAgent)
}

func TestLoadFromString(t *testing.T) {
	c, err := config.LoadFromString(`{
		"port": 9000,
		"backend": "bolt",
		"bolt_path": "/tmp/x.bolt",
		"max_store_bytes": 1024,
		"secret_key": "hello",
		"allowed_origins": ["*"],
		"options": {"enable_stats": true}
	}`)
	require.NoError(t, err)

	require.Equal(t, 9000, c.Port)
	require.Equal(t, config.BackendBolt, c.Backend)
	require.Equal(t, "/tmp/x.bolt", c.BoltPath)
	require.Equal(t, int64(1024), c.MaxStoreBytes)
	require.Equal(t, "hello", c.SecretKey)
	require.Equal(t, []string{"*"}, c.AllowedOrigins)
	require.True(t, c.Options.EnableStats)
	require.Equal(t, config.DefaultChunkSize, c.DBChunkSize)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte("db_path: /var/lib/localstore/records.db\ndb_chunk_size: 1024\n"), 0600)
	require.NoError(t, err)

	c, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/localstore/records.db", c.DBPath)
	require.Equal(t, 1024, c.DBChunkSize)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("LOCALSTORE_DB_PATH", "/env/records.db")
	t.Setenv("LOCALSTORE_OPTIONS_ENABLE_HEALTH", "true")

	c, err := config.Load("")
	require.NoError(t, err)
	require.Equal(t, "/env/records.db", c.DBPath)
	require.True(t, c.Options.EnableHealth)
}

func TestInvalid(t *testing.T) {
	for _, row := range []struct {
		description string
		content     string
	}{
		{
			description: "unknown backend",
			content:     `{"backend": "redis"}`,
		},
		{
			description: "zero chunk size",
			content:     `{"db_chunk_size": 0}`,
		},
		{
			description: "negative quota",
			content:     `{"max_store_bytes": -1}`,
		},
		{
			description: "malformed json",
			content:     `{"port": `,
		},
	} {
		t.Run(row.description, func(t *testing.T) {
			_, err := config.LoadFromString(row.content)
			require.Error(t, err)
		})
	}
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	// Insulate from ambient environment.
	for _, key := range []string{"COUCHBASE_CONNSTR", "COUCHBASE_BUCKET", "QUERY_TIMEOUT", "QUERY_MAX_RETRIES"} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "couchbase://localhost", cfg.ConnectionString)
	require.Equal(t, "travel-sample", cfg.Bucket)
	require.Equal(t, 75*time.Second, cfg.QueryTimeout)
	require.Equal(t, 3, cfg.MaxRetries)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("COUCHBASE_CONNSTR", "couchbases://cb.example.com")
	t.Setenv("QUERY_TIMEOUT", "30s")
	t.Setenv("QUERY_MAX_RETRIES", "5")

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, "couchbases://cb.example.com", cfg.ConnectionString)
	require.Equal(t, 30*time.Second, cfg.QueryTimeout)
	require.Equal(t, 5, cfg.MaxRetries)
}

func TestLoad_InvalidDurationFails(t *testing.T) {
	t.Setenv("QUERY_TIMEOUT", "soon")

	_, err := Load()
	require.Error(t, err)
}

func TestString_MasksPassword(t *testing.T) {
	t.Setenv("COUCHBASE_PASSWORD", "hunter2")

	cfg, err := Load()
	require.NoError(t, err)

	require.NotContains(t, cfg.String(), "hunter2")
	require.Contains(t, cfg.String(), "********")
}

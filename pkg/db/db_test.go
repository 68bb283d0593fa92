package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"aervo/pkg/config"
)

func TestOpenSQLite(t *testing.T) {
	log := zap.NewNop().Sugar()

	for _, f := range []string{"", ":memory:"} {
		handle, err := OpenSQLite(config.Config{DBFile: f}, log)
		require.NoError(t, err)
		assert.Nil(t, handle)
	}

	handle, err := OpenSQLite(config.Config{DBFile: filepath.Join(t.TempDir(), "data.sqlite")}, log)
	require.NoError(t, err)
	require.NotNil(t, handle)
	assert.NoError(t, handle.Close())
}

func TestDisabledBackendsReturnNil(t *testing.T) {
	log := zap.NewNop().Sugar()
	assert.Nil(t, MustConnect(config.Config{}, log))
	assert.Nil(t, MustRedis(config.Config{}, log))
}

func TestRedactDSN(t *testing.T) {
	assert.Equal(t, "***@db:5432/aervo", redactDSN("postgres://u:p@db:5432/aervo"))
	assert.Equal(t, "db", redactDSN("db"))
}

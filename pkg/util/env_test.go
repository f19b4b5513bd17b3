package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("BEACON_INT", "42")
	t.Setenv("BEACON_BOOL", "yes")
	t.Setenv("BEACON_DUR", "15")
	t.Setenv("BEACON_DUR2", "250ms")
	t.Setenv("BEACON_LIST", "a:9092, b:9092,,")

	assert.Equal(t, int64(42), GetIntEnv("BEACON_INT"))
	assert.Equal(t, int64(0), GetIntEnv("BEACON_MISSING"))
	assert.True(t, GetBoolEnv("BEACON_BOOL"))
	assert.Equal(t, 15*time.Second, GetDurationEnv("BEACON_DUR", time.Second))
	assert.Equal(t, 250*time.Millisecond, GetDurationEnv("BEACON_DUR2", time.Second))
	assert.Equal(t, []string{"a:9092", "b:9092"}, GetListEnv("BEACON_LIST"))
	assert.Equal(t, "fallback", GetEnvDefault("BEACON_MISSING", "fallback"))

	_, ok := LookupBoolEnv("BEACON_MISSING")
	assert.False(t, ok)
}

func TestLoadEnvDoesNotOverride(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("BEACON_ADDR=:9000\nBEACON_MODE=debug\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.test"), []byte("BEACON_MODE=test\n"), 0o600))
	t.Setenv("BEACON_ADDR", ":7000")
	t.Setenv("BEACON_MODE", "")
	require.NoError(t, os.Unsetenv("BEACON_MODE"))

	require.NoError(t, LoadEnv("test"))
	assert.Equal(t, ":7000", os.Getenv("BEACON_ADDR"))
	assert.Equal(t, "test", os.Getenv("BEACON_MODE"))
	_ = os.Unsetenv("BEACON_MODE")
}

func TestLoadEnvMissing(t *testing.T) {
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	err = LoadEnv("nothing")
	assert.True(t, IsNotExist(err))
}

func TestOpenDatabaseSqlite(t *testing.T) {
	db, err := OpenDatabase(nil, "", "")
	require.NoError(t, err)
	require.NoError(t, db.Exec("SELECT 1").Error)

	_, err = OpenDatabase(nil, "oracle", "x")
	assert.Error(t, err)
}

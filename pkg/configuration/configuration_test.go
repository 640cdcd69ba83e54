package configuration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ACADEMICA_DB_PATH", "")
	os.Unsetenv("ACADEMICA_DB_PATH")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "data/base_de_datos/academica.db", c.DBPath)
	assert.Equal(t, "_output/inscripciones_carreras", c.ReportDir)
	assert.Equal(t, logrus.InfoLevel, c.Logger().GetLevel())
}

func TestLoadReadsEnvFiles(t *testing.T) {
	tmp := t.TempDir()
	envFile := filepath.Join(tmp, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ACADEMICA_CODES_PATH=ref/carreras.csv\nLOG_LEVEL=debug\n"), 0o644))

	t.Setenv("ACADEMICA_CODES_PATH", "")
	os.Unsetenv("ACADEMICA_CODES_PATH")
	t.Setenv("LOG_LEVEL", "")
	os.Unsetenv("LOG_LEVEL")

	n, err := LoadEnv([]string{envFile, filepath.Join(tmp, ".env.local")})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ref/carreras.csv", c.CodesPath)
	assert.Equal(t, logrus.DebugLevel, c.Logger().GetLevel())
}

func TestSetLogLevel(t *testing.T) {
	c := &Configuration{}
	require.NoError(t, c.SetLogLevel("WARN"))
	assert.Equal(t, logrus.WarnLevel, c.Logger().GetLevel())
	assert.Error(t, c.SetLogLevel("verbose"))
}

package logging

import (
	"os"
	"path/filepath"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLogLevel(t *testing.T) {
	out, level := log.StandardLogger().Out, log.GetLevel()
	t.Cleanup(func() {
		log.SetOutput(out)
		log.SetLevel(level)
	})

	require.NoError(t, InitLog("debug", "console"))
	assert.Equal(t, log.DebugLevel, log.GetLevel())

	assert.Error(t, InitLog("loud", "console"))
}

func TestInitLogFile(t *testing.T) {
	out, level := log.StandardLogger().Out, log.GetLevel()
	t.Cleanup(func() {
		log.SetOutput(out)
		log.SetLevel(level)
	})

	path := filepath.Join(t.TempDir(), "appupdate.log")
	require.NoError(t, InitLog("info", path))
	log.Info("bundle check started")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "bundle check started")
}

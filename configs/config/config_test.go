package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"appupdate-go/internal/cstmerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, "https://dev.3rddigital.com/appupdate-api/api/", cfg.APIBaseURL)
	assert.True(t, cfg.RestartAfterInstall)
	assert.Equal(t, time.Second, cfg.RestartDelay)
	assert.Equal(t, uint64(3), cfg.DownloadRetries)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "terminal", cfg.Prompt.Mode)
	assert.False(t, cfg.Database.Enabled)
	assert.Equal(t, 5432, cfg.Database.Port)
}

func TestLoadFileValues(t *testing.T) {
	path := writeConfig(t, `
platform = "ios"
restart_delay = "250ms"

[identity]
key = "proj-key"
ios_package = "com.example.ios"
android_package = "com.example.android"

[dialog]
title = "New stuff"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ios", cfg.Platform)
	assert.Equal(t, 250*time.Millisecond, cfg.RestartDelay)
	assert.Equal(t, "proj-key", cfg.Identity.Key)
	assert.Equal(t, "com.example.ios", cfg.Identity.IOSPackage)
	assert.Equal(t, "New stuff", cfg.Dialog.Title)
	assert.Empty(t, cfg.Dialog.Message)
	assert.NoError(t, cfg.Validate())
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[identity]
key = "from-file"
`)
	t.Setenv("APPUPDATE_IDENTITY_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Identity.Key)
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, "platform = ["))
	require.Error(t, err)

	var ioErr *cstmerr.FileIOError
	assert.True(t, errors.As(err, &ioErr))
}

func TestValidateRequiresIdentity(t *testing.T) {
	cfg, err := Load(writeConfig(t, ""))
	require.NoError(t, err)

	err = cfg.Validate()
	var cfgErr *cstmerr.ConfigError
	require.True(t, errors.As(err, &cfgErr))
	assert.Contains(t, err.Error(), "identity.key")

	cfg.Identity = IdentityConfig{Key: "k", IOSPackage: "ios"}
	assert.Error(t, cfg.Validate())

	cfg.Identity.AndroidPackage = "android"
	assert.NoError(t, cfg.Validate())
}

func TestValidatePromptMode(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[identity]
key = "k"
ios_package = "ios"
android_package = "android"

[prompt]
mode = "auto-confirm"
`))
	require.NoError(t, err)
	assert.Equal(t, "auto-confirm", cfg.Prompt.Mode)
	assert.NoError(t, cfg.Validate())

	cfg.Prompt.Mode = "popup"
	assert.Error(t, cfg.Validate())
}

package main

import (
	"appupdate-go/configs/config"
	"appupdate-go/internal/cstmerr"
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsFromFlagsAndEnv(t *testing.T) {
	t.Setenv("APPUPDATE_RELEASE_PROJECT_ID", "proj-env")
	v := config.New()
	root := newRootCmd(v)

	require.NoError(t, root.PersistentFlags().Parse([]string{
		"--token", "secret",
		"--environment", "production",
		"--app-version", "1.2.0",
		"--build-number", "42",
		"--force",
	}))

	s := settingsFrom(v)
	assert.Equal(t, "secret", s.APIToken)
	assert.Equal(t, "proj-env", s.ProjectID)
	assert.Equal(t, "production", s.Environment)
	assert.Equal(t, "1.2.0", s.Version)
	assert.Equal(t, "42", s.BuildNumber)
	assert.True(t, s.ForceUpdate)
	assert.True(t, s.ForceSet)

	n, err := s.Validate()
	require.NoError(t, err)
	assert.Equal(t, 42, n)
}

func TestForceUnsetIsAsked(t *testing.T) {
	v := config.New()
	root := newRootCmd(v)
	require.NoError(t, root.PersistentFlags().Parse([]string{"--token", "secret"}))

	s := settingsFrom(v)
	assert.False(t, s.ForceUpdate)
	assert.False(t, s.ForceSet)
}

func TestReleaseCommands(t *testing.T) {
	root := newRootCmd(config.New())
	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"android", "ios", "all"}, names)
}

func TestNonInteractiveMissingSettingsFails(t *testing.T) {
	root := newRootCmd(config.New())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs([]string{"android", "--non-interactive", "--project-dir", t.TempDir(), "--config", writeEmptyConfig(t)})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API Token is required")
}

func TestReleaseRejectsArguments(t *testing.T) {
	root := newRootCmd(config.New())
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ios", "extra"})
	assert.Error(t, root.Execute())
}

func TestRootWithoutPlatformFails(t *testing.T) {
	root := newRootCmd(config.New())
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{})

	err := root.Execute()
	var cfgErr *cstmerr.ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "android | ios | all")
	assert.Contains(t, out.String(), "appupdate-bundle")
}

func writeEmptyConfig(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

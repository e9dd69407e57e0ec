package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localrivet/summbench/internal/config"
	"github.com/localrivet/summbench/internal/errortypes"
)

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summbench.json")

	cmd := NewRootCommand()
	cmd.SetArgs([]string{"config", "init", path})
	require.NoError(t, cmd.Execute())

	cfg, err := config.LoadConfigWithPath(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultModelName, cfg.Model.Name)

	cmd = NewRootCommand()
	cmd.SetArgs([]string{"config", "init", path})
	assert.Error(t, cmd.Execute(), "existing file must not be overwritten without --force")

	cmd = NewRootCommand()
	cmd.SetArgs([]string{"config", "init", "--force", path})
	assert.NoError(t, cmd.Execute())
}

func TestRunRejectsUnknownStrategy(t *testing.T) {
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"run", "--strategies", "deep"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
	assert.True(t, errortypes.IsValidationError(err))
	assert.Contains(t, out.String(), "Usage:")
}

func TestRootCommandWiring(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"run", "serve", "config", "check"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)
		assert.Equal(t, name, sub.Name())
	}
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))
	assert.NotNil(t, cmd.PersistentFlags().Lookup("log-level"))
}


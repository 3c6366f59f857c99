package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/younsl/allowme/pkg/config"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestMissingConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.env")

	_, _, err := execute(t, "--config", path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, config.ErrNotConfigured))
	assert.Contains(t, formatError(err), "allowme setup")
	assert.Contains(t, formatError(err), path)
}

func TestInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.env")
	require.NoError(t, os.WriteFile(path, []byte("NETWORK_ACL_ID=acl-1\n"), 0o600))

	_, _, err := execute(t, "--config", path)
	var verr *config.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, formatError(err), "run 'allowme setup' again")
}

func TestSetupWritesConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowme", "config.env")

	stdout, _, err := execute(t, "setup", "--config", path,
		"--acl-id", "acl-0123456789abcdef0",
		"--sg-id", "sg-0fedcba9876543210",
		"--region", "eu-west-1",
	)
	require.NoError(t, err)
	assert.Contains(t, stdout, path)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "acl-0123456789abcdef0", cfg.NetworkACLID)
	assert.Equal(t, "sg-0fedcba9876543210", cfg.SecurityGroupID)
	assert.Equal(t, "eu-west-1", cfg.Region)
	assert.Equal(t, config.DefaultRuleNumber, cfg.RuleNumber)
}

func TestSetupRejectsBadIdentifiers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.env")

	_, _, err := execute(t, "setup", "--config", path, "--acl-id", "sg-1", "--sg-id", "sg-2")
	require.Error(t, err)

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUnknownIPSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.env")
	require.NoError(t, config.Save(path, config.Config{
		NetworkACLID:    "acl-1",
		SecurityGroupID: "sg-1",
		Region:          "us-east-1",
		RuleNumber:      config.DefaultRuleNumber,
	}))

	_, _, err := execute(t, "--config", path, "--ip-source", "dns")
	assert.ErrorContains(t, err, `unknown --ip-source "dns"`)
}

func TestVersion(t *testing.T) {
	stdout, _, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "allowme version")

	stdout, _, err = execute(t, "--version")
	require.NoError(t, err)
	assert.Contains(t, stdout, "allowme version")
}

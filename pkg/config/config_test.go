package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadMissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "config.env")

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConfigured))

	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, path, nf.Path)
}

func TestLoad(t *testing.T) {
	path := writeFile(t, `# written by allowme setup
export NETWORK_ACL_ID=acl-0123456789abcdef0
SECURITY_GROUP_ID="sg-0fedcba9876543210"
AWS_REGION=ap-northeast-2
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "acl-0123456789abcdef0", cfg.NetworkACLID)
	assert.Equal(t, "sg-0fedcba9876543210", cfg.SecurityGroupID)
	assert.Equal(t, "ap-northeast-2", cfg.Region)
	assert.Equal(t, DefaultRuleNumber, cfg.RuleNumber)
	assert.Equal(t, DefaultEchoURL, cfg.EchoEndpoint())
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		fields  []string
	}{
		{
			name:    "missing security group",
			content: "NETWORK_ACL_ID=acl-1\n",
			fields:  []string{KeySecurityGroupID},
		},
		{
			name:    "swapped identifiers",
			content: "NETWORK_ACL_ID=sg-1\nSECURITY_GROUP_ID=acl-1\n",
			fields:  []string{KeyNetworkACLID, KeySecurityGroupID},
		},
		{
			name:    "rule number out of range",
			content: "NETWORK_ACL_ID=acl-1\nSECURITY_GROUP_ID=sg-1\nRULE_NUMBER=40000\n",
			fields:  []string{KeyRuleNumber},
		},
		{
			name:    "rule number not a number",
			content: "NETWORK_ACL_ID=acl-1\nSECURITY_GROUP_ID=sg-1\nRULE_NUMBER=first\n",
			fields:  []string{KeyRuleNumber},
		},
		{
			name:    "bad region",
			content: "NETWORK_ACL_ID=acl-1\nSECURITY_GROUP_ID=sg-1\nAWS_REGION=Seoul\n",
			fields:  []string{KeyRegion},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.content))
			require.Error(t, err)

			var verr *ValidationError
			require.True(t, errors.As(err, &verr), "got %T: %v", err, err)
			assert.ElementsMatch(t, tt.fields, verr.Fields)
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "allowme", "config.env")
	want := Config{
		NetworkACLID:    "acl-0123456789abcdef0",
		SecurityGroupID: "sg-0fedcba9876543210",
		Region:          "us-west-2",
		Profile:         "ops",
		RuleNumber:      150,
	}

	require.NoError(t, Save(path, want))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSaveRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.env")

	err := Save(path, Config{NetworkACLID: "acl-1", RuleNumber: DefaultRuleNumber})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))

	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

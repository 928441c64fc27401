package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseEnv() []string {
	return []string{
		"AUTOMATION_NAME=AMI-Windows-Update",
		"PLATFORM=Windows2016",
		"PROFILE_ROLE=ami-build-profile",
		"AUTOMATION_ROLE=arn:aws:iam::123456789012:role/automation",
		"AMI_SUBNET=subnet-0abc",
		"TARGET_AMI_NAME=Ami_Auto_Update_{{global:DATE_TIME}}",
		"TAG_OWNER=platform-team",
		"S3_PATH=ami-registry:/windows/2016/",
	}
}

func TestFromEnv(t *testing.T) {
	env := append(baseEnv(),
		"AMI_LOOKUP_PATTERN=Ami_Auto_Update_*",
		"DEFAULT_AMI_ID= ami-0fallback ",
		"AMI_SHARE_ACCOUNTS=111111111111, 222222222222,,",
		"ALERT_ARN2=arn:aws:sns:us-east-1:123456789012:b",
		"ALERT_ARN=arn:aws:sns:us-east-1:123456789012:a",
		"ALERT_ARN3=  ",
		"ALERT_ARN_SUFFIX=arn:aws:sns:us-east-1:123456789012:ignored",
	)

	cfg, err := FromEnv(env)
	require.NoError(t, err)
	assert.Equal(t, "AMI-Windows-Update", cfg.AutomationName)
	assert.Equal(t, "ami-0fallback", cfg.DefaultAMIID)
	assert.Equal(t, []string{"111111111111", "222222222222"}, cfg.ShareAccounts)
	assert.Equal(t, []string{
		"arn:aws:sns:us-east-1:123456789012:a",
		"arn:aws:sns:us-east-1:123456789012:b",
	}, cfg.AlertARNs)
	assert.Equal(t, "ami-registry", cfg.S3Bucket)
	assert.Equal(t, "windows/2016/", cfg.S3Key)
	assert.Equal(t, DefaultFeedURL, cfg.FeedURL)
	assert.Equal(t, slog.LevelInfo, cfg.SlogLevel())
}

func TestFromEnv_MissingRequired(t *testing.T) {
	for _, name := range []string{
		"AUTOMATION_NAME", "PLATFORM", "PROFILE_ROLE", "AUTOMATION_ROLE",
		"AMI_SUBNET", "TARGET_AMI_NAME", "TAG_OWNER", "S3_PATH",
	} {
		t.Run(name, func(t *testing.T) {
			var env []string
			for _, kv := range baseEnv() {
				if len(kv) > len(name) && kv[:len(name)+1] == name+"=" {
					continue
				}
				env = append(env, kv)
			}
			_, err := FromEnv(env)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingSetting)
			assert.Contains(t, err.Error(), name)
		})
	}
}

func TestFromEnv_BadS3Path(t *testing.T) {
	env := append(baseEnv(), "S3_PATH=no-separator")
	_, err := FromEnv(env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3-bucket-name:/key1/key2/key3")
}

func TestFromEnv_S3PathSplitsOnLastSeparator(t *testing.T) {
	env := append(baseEnv(), "S3_PATH=bucket:/a:/b.txt")
	cfg, err := FromEnv(env)
	require.NoError(t, err)
	assert.Equal(t, "bucket:/a", cfg.S3Bucket)
	assert.Equal(t, "b.txt", cfg.S3Key)
}

func TestFromEnv_OptionalUnset(t *testing.T) {
	cfg, err := FromEnv(baseEnv())
	require.NoError(t, err)
	assert.Empty(t, cfg.LookupPattern)
	assert.Empty(t, cfg.DefaultAMIID)
	assert.Nil(t, cfg.AlertARNs)
	assert.Nil(t, cfg.ShareAccounts)
}

func TestFromEnv_LogLevel(t *testing.T) {
	cfg, err := FromEnv(append(baseEnv(), "LOG_LEVEL=debug"))
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, cfg.SlogLevel())

	_, err = FromEnv(append(baseEnv(), "LOG_LEVEL=chatty"))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	content := `automationName: AMI-Windows-Update
platform: Windows2019
amiLookupPattern: Ami_Auto_Update_*
profileRole: ami-build-profile
automationRole: arn:aws:iam::123456789012:role/automation
subnet: subnet-0abc
targetAmiName: Ami_Auto_Update
tagOwner: platform-team
s3Path: "ami-registry:/windows/latest.txt"
alertArns:
  - arn:aws:sns:us-east-1:123456789012:a
shareAccounts: ["111111111111"]
feedUrl: http://localhost/feed
`
	path := filepath.Join(dir, "amipatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Windows2019", cfg.Platform)
	assert.Equal(t, "ami-registry", cfg.S3Bucket)
	assert.Equal(t, "windows/latest.txt", cfg.S3Key)
	assert.Equal(t, "http://localhost/feed", cfg.FeedURL)
	assert.Len(t, cfg.AlertARNs, 1)
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile("/nonexistent/amipatch.yaml")
	assert.Error(t, err)
}

func TestLoadFile_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amipatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("invalid: [yaml"), 0o644))

	_, err := LoadFile(path)
	assert.Error(t, err)
}

func TestLoadFile_Validates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "amipatch.yaml")
	require.NoError(t, os.WriteFile(path, []byte("platform: Windows2019\n"), 0o644))

	_, err := LoadFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingSetting)
	assert.Contains(t, err.Error(), "AUTOMATION_NAME")
}

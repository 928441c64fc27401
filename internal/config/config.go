// Package config loads and validates the AMI patcher settings, either from
// the Lambda environment or from a YAML file for local runs.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultFeedURL is the security bulletin feed consulted when FEED_URL is unset.
const DefaultFeedURL = "https://technet.microsoft.com/en-us/security/rss/bulletin"

// ErrMissingSetting is wrapped by every "required setting absent" error.
var ErrMissingSetting = errors.New("missing required setting")

var (
	s3PathPattern   = regexp.MustCompile(`^(.+):/(.+?)$`)
	alertKeyPattern = regexp.MustCompile(`^ALERT_ARN\d*$`)
)

// Config is the resolved settings for a single invocation. Build it with
// FromEnv or LoadFile and treat it as read-only afterwards.
type Config struct {
	AutomationName string   `yaml:"automationName"`
	Platform       string   `yaml:"platform"`
	LookupPattern  string   `yaml:"amiLookupPattern,omitempty"`
	DefaultAMIID   string   `yaml:"defaultAmiId,omitempty"`
	ProfileRole    string   `yaml:"profileRole"`
	AutomationRole string   `yaml:"automationRole"`
	Subnet         string   `yaml:"subnet"`
	TargetAMIName  string   `yaml:"targetAmiName"`
	TagOwner       string   `yaml:"tagOwner"`
	TagDescription string   `yaml:"tagDescription,omitempty"`
	S3Path         string   `yaml:"s3Path"`
	AlertARNs      []string `yaml:"alertArns,omitempty"`
	ShareAccounts  []string `yaml:"shareAccounts,omitempty"`
	FeedURL        string   `yaml:"feedUrl,omitempty"`
	LogLevel       string   `yaml:"logLevel,omitempty"`

	// Derived from S3Path during validation.
	S3Bucket string `yaml:"-"`
	S3Key    string `yaml:"-"`
}

// FromEnv builds a Config from environment entries in os.Environ form
// ("KEY=value"). Topic ARNs are collected from every ALERT_ARN, ALERT_ARN1,
// ALERT_ARN2... key, in key order.
func FromEnv(environ []string) (Config, error) {
	env := make(map[string]string, len(environ))
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			env[k] = v
		}
	}

	cfg := Config{
		AutomationName: env["AUTOMATION_NAME"],
		Platform:       env["PLATFORM"],
		LookupPattern:  env["AMI_LOOKUP_PATTERN"],
		DefaultAMIID:   env["DEFAULT_AMI_ID"],
		ProfileRole:    env["PROFILE_ROLE"],
		AutomationRole: env["AUTOMATION_ROLE"],
		Subnet:         env["AMI_SUBNET"],
		TargetAMIName:  env["TARGET_AMI_NAME"],
		TagOwner:       env["TAG_OWNER"],
		TagDescription: env["TAG_DESCRIPTION"],
		S3Path:         env["S3_PATH"],
		FeedURL:        env["FEED_URL"],
		LogLevel:       env["LOG_LEVEL"],
		ShareAccounts:  splitList(env["AMI_SHARE_ACCOUNTS"]),
	}

	var alertKeys []string
	for k := range env {
		if alertKeyPattern.MatchString(k) {
			alertKeys = append(alertKeys, k)
		}
	}
	sort.Strings(alertKeys)
	for _, k := range alertKeys {
		cfg.AlertARNs = append(cfg.AlertARNs, env[k])
	}

	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile reads a YAML settings file. Keys match the yaml tags on Config.
func LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// normalize trims list entries, applies defaults and validates.
func (c *Config) normalize() error {
	c.DefaultAMIID = strings.TrimSpace(c.DefaultAMIID)
	c.AlertARNs = compact(c.AlertARNs)
	c.ShareAccounts = compact(c.ShareAccounts)
	if c.FeedURL == "" {
		c.FeedURL = DefaultFeedURL
	}
	if err := c.validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

func (c *Config) validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"AUTOMATION_NAME", c.AutomationName},
		{"PLATFORM", c.Platform},
		{"PROFILE_ROLE", c.ProfileRole},
		{"AUTOMATION_ROLE", c.AutomationRole},
		{"AMI_SUBNET", c.Subnet},
		{"TARGET_AMI_NAME", c.TargetAMIName},
		{"TAG_OWNER", c.TagOwner},
		{"S3_PATH", c.S3Path},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return fmt.Errorf("%w: please set %s", ErrMissingSetting, r.name)
		}
	}

	m := s3PathPattern.FindStringSubmatch(c.S3Path)
	if m == nil {
		return fmt.Errorf("S3_PATH %q must look like \"s3-bucket-name:/key1/key2/key3\"", c.S3Path)
	}
	c.S3Bucket, c.S3Key = m[1], m[2]

	if c.LogLevel != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
			return fmt.Errorf("LOG_LEVEL: %w", err)
		}
	}
	return nil
}

// SlogLevel returns the configured log level, info when unset.
func (c Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if c.LogLevel == "" || lvl.UnmarshalText([]byte(c.LogLevel)) != nil {
		return slog.LevelInfo
	}
	return lvl
}

func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ",")
}

func compact(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Package config loads the updater configuration from an optional JSON file and command line overrides.
package config

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/genup/genup/client/internal/updatemanager"
	"github.com/genup/genup/client/internal/updatemanager/downloader"
	"github.com/genup/genup/util"
)

const (
	DefaultLogLevel    = "info"
	DefaultLogFile     = "console"
	DefaultHTTPTimeout = 5 * time.Minute
	DefaultRetryDelay  = 2 * time.Second
)

// Duration is a time.Duration stored as a string such as "30s" in the config file
type Duration time.Duration

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("duration must be a string: %w", err)
	}
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// ConfigInput carries overrides of the config file values. Empty or nil fields keep the file value.
type ConfigInput struct {
	ConfigPath     string
	ManifestURL    string
	ExecutablePath string
	TempDir        string
	Policy         string
	Retries        *uint64
	RetryDelay     *time.Duration
	HTTPTimeout    *time.Duration
	UserAgent      string
	LogLevel       string
	LogFile        string
	S3Region       string
	S3Endpoint     string
}

// Config Configuration type
type Config struct {
	// ManifestURL is where the manifest document of the latest release is served
	ManifestURL string
	// ExecutablePath is the installed binary whose version is checked; defaults to the running executable
	ExecutablePath string
	// TempDir receives downloads; the system temp dir when empty
	TempDir string
	// Policy is "exact" (any difference is an update) or "newer"
	Policy string
	// Retries of a failed download; zero disables retrying
	Retries     uint64
	RetryDelay  Duration
	HTTPTimeout Duration
	UserAgent   string
	LogLevel    string
	LogFile     string

	S3Region   string
	S3Endpoint string
}

// ReadConfig reads the config file of input.ConfigPath when present and applies input on top of it
func ReadConfig(input ConfigInput) (*Config, error) {
	config := &Config{}

	if input.ConfigPath != "" {
		if util.FileExists(input.ConfigPath) {
			if _, err := util.ReadJsonWithEnvSub(input.ConfigPath, config); err != nil {
				return nil, fmt.Errorf("read config %s: %w", input.ConfigPath, err)
			}
		} else {
			log.Debugf("config file %s not found, using defaults", input.ConfigPath)
		}
	}

	if err := config.apply(input); err != nil {
		return nil, err
	}

	return config, nil
}

func (config *Config) apply(input ConfigInput) error {
	if input.ManifestURL != "" && input.ManifestURL != config.ManifestURL {
		log.Debugf("manifest URL overridden to %s (old value %q)", input.ManifestURL, config.ManifestURL)
		config.ManifestURL = input.ManifestURL
	}
	if config.ManifestURL != "" {
		if _, err := parseURL("manifest URL", config.ManifestURL); err != nil {
			return err
		}
	}

	if input.ExecutablePath != "" {
		config.ExecutablePath = input.ExecutablePath
	}
	if config.ExecutablePath == "" {
		exe, err := os.Executable()
		if err != nil {
			return fmt.Errorf("resolve running executable: %w", err)
		}
		config.ExecutablePath = exe
	}

	if input.TempDir != "" {
		config.TempDir = input.TempDir
	}

	if input.Policy != "" {
		config.Policy = input.Policy
	}
	policy, err := updatemanager.ParsePolicy(config.Policy)
	if err != nil {
		return err
	}
	config.Policy = string(policy)

	if input.Retries != nil {
		config.Retries = *input.Retries
	}
	if input.RetryDelay != nil {
		config.RetryDelay = Duration(*input.RetryDelay)
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = Duration(DefaultRetryDelay)
	}

	if input.HTTPTimeout != nil {
		config.HTTPTimeout = Duration(*input.HTTPTimeout)
	}
	if config.HTTPTimeout <= 0 {
		config.HTTPTimeout = Duration(DefaultHTTPTimeout)
	}

	if input.UserAgent != "" {
		config.UserAgent = input.UserAgent
	}

	if input.LogLevel != "" {
		config.LogLevel = input.LogLevel
	}
	if config.LogLevel == "" {
		config.LogLevel = DefaultLogLevel
	}
	if input.LogFile != "" {
		config.LogFile = input.LogFile
	}
	if config.LogFile == "" {
		config.LogFile = DefaultLogFile
	}

	if input.S3Region != "" {
		config.S3Region = input.S3Region
	}
	if input.S3Endpoint != "" {
		config.S3Endpoint = input.S3Endpoint
	}

	return nil
}

// ManagerConfig maps the configuration to the update engine settings
func (config *Config) ManagerConfig() updatemanager.Config {
	return updatemanager.Config{
		ManifestURL: config.ManifestURL,
		TempDir:     config.TempDir,
		Policy:      updatemanager.Policy(config.Policy),
		Download: downloader.Options{
			Client:     &http.Client{Timeout: time.Duration(config.HTTPTimeout)},
			Retries:    config.Retries,
			RetryDelay: time.Duration(config.RetryDelay),
			UserAgent:  config.UserAgent,
		},
	}
}

// parseURL parses and validates a service URL
func parseURL(serviceName, serviceURL string) (*url.URL, error) {
	parsed, err := url.ParseRequestURI(serviceURL)
	if err != nil {
		log.Errorf("failed parsing %s %s: [%s]", serviceName, serviceURL, err.Error())
		return nil, err
	}

	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return nil, fmt.Errorf(
			"invalid %s provided %s. Supported format [http|https]://[host]:[port]/[path]",
			serviceName, serviceURL)
	}

	return parsed, nil
}

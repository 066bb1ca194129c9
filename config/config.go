// Package config loads the bridge configuration from an optional YAML file
// with environment variable overrides. Environment values always win over
// file values so deployments can keep one base file per environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type (
	// Config is the full bridge configuration.
	Config struct {
		// HTTP is the front-end server configuration.
		HTTP HTTPConfig `yaml:"http"`
		// Agent is the upstream agent API configuration.
		Agent AgentConfig `yaml:"agent"`
		// Description is the description service configuration. Optional:
		// when the URL is empty, on-demand description generation is
		// disabled.
		Description DescriptionConfig `yaml:"description"`
		// Redis configures the durable preference store. Optional: when the
		// address is empty, preferences are held in memory.
		Redis RedisConfig `yaml:"redis"`
		// Mongo configures the durable thread identity mapper. Optional:
		// when the URI is empty, mappings are held in memory.
		Mongo MongoConfig `yaml:"mongo"`
		// Refresh configures the client refresh scheduler hints.
		Refresh RefreshConfig `yaml:"refresh"`
		// Debug enables debug log level and the debug HTTP mounts.
		Debug bool `yaml:"debug"`
	}

	// HTTPConfig configures the listen address.
	HTTPConfig struct {
		Addr string `yaml:"addr"`
	}

	// AgentConfig configures the upstream agent API.
	AgentConfig struct {
		URL         string        `yaml:"url"`
		AssistantID string        `yaml:"assistant_id"`
		Timeout     time.Duration `yaml:"timeout"`
	}

	// DescriptionConfig configures the description service.
	DescriptionConfig struct {
		URL         string        `yaml:"url"`
		AssistantID string        `yaml:"assistant_id"`
		Timeout     time.Duration `yaml:"timeout"`
	}

	// RedisConfig configures the Redis preference store.
	RedisConfig struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	}

	// MongoConfig configures the Mongo identity mapper.
	MongoConfig struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	}

	// RefreshConfig configures the refresh scheduler.
	RefreshConfig struct {
		Window   time.Duration `yaml:"window"`
		Debounce time.Duration `yaml:"debounce"`
	}
)

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		HTTP:  HTTPConfig{Addr: ":8080"},
		Agent: AgentConfig{AssistantID: "agent", Timeout: 60 * time.Second},
		Description: DescriptionConfig{
			AssistantID: "agent",
			Timeout:     30 * time.Second,
		},
		Mongo:   MongoConfig{Database: "chatbridge"},
		Refresh: RefreshConfig{Window: 4 * time.Second, Debounce: 250 * time.Millisecond},
	}
}

// Load reads the configuration: defaults, then the YAML file at path (when
// non-empty), then environment overrides, then validation.
func Load(path string) (Config, error) {
	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv overlays CHATBRIDGE_* environment variables.
func (c *Config) applyEnv() error {
	setString(&c.HTTP.Addr, "CHATBRIDGE_HTTP_ADDR")
	setString(&c.Agent.URL, "CHATBRIDGE_AGENT_URL")
	setString(&c.Agent.AssistantID, "CHATBRIDGE_AGENT_ASSISTANT_ID")
	setString(&c.Description.URL, "CHATBRIDGE_DESCRIPTION_URL")
	setString(&c.Description.AssistantID, "CHATBRIDGE_DESCRIPTION_ASSISTANT_ID")
	setString(&c.Redis.Addr, "CHATBRIDGE_REDIS_ADDR")
	setString(&c.Redis.Password, "CHATBRIDGE_REDIS_PASSWORD")
	setString(&c.Mongo.URI, "CHATBRIDGE_MONGO_URI")
	setString(&c.Mongo.Database, "CHATBRIDGE_MONGO_DATABASE")
	if err := setDuration(&c.Agent.Timeout, "CHATBRIDGE_AGENT_TIMEOUT"); err != nil {
		return err
	}
	if err := setDuration(&c.Refresh.Window, "CHATBRIDGE_REFRESH_WINDOW"); err != nil {
		return err
	}
	if err := setDuration(&c.Refresh.Debounce, "CHATBRIDGE_REFRESH_DEBOUNCE"); err != nil {
		return err
	}
	if v, ok := os.LookupEnv("CHATBRIDGE_DEBUG"); ok {
		debug, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CHATBRIDGE_DEBUG %q: %w", v, err)
		}
		c.Debug = debug
	}
	return nil
}

// Validate checks the required settings.
func (c Config) Validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http listen address is required")
	}
	if c.Agent.URL == "" {
		return errors.New("agent API URL is required")
	}
	if c.Refresh.Window <= 0 {
		return errors.New("refresh window must be positive")
	}
	if c.Mongo.URI != "" && c.Mongo.Database == "" {
		return errors.New("mongo database is required when mongo URI is set")
	}
	return nil
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, key string) error {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}

// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/gatekeeper/config.yaml",
	"/etc/gatekeeper/config.yml",
}

// ConfigPathEnvVar overrides the config file path when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. Defaults
// load first, then the config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			Timeout:         30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			PublicBaseURL:   "http://localhost:8080",
		},
		Database: DatabaseConfig{
			Path:      "/data/gatekeeper.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Storage: StorageConfig{
			Endpoint:    "127.0.0.1:9000",
			Bucket:      "gatekeeper",
			UseSSL:      false,
			PhotoPrefix: "visitor-photos",
			PassPrefix:  "visitor-passes",
		},
		Email: EmailConfig{
			Port:     587,
			FromName: "NK Tech Union",
			Timeout:  15 * time.Second,
		},
		Pass: PassConfig{
			FrontendBaseURL:   "http://localhost:3000",
			ReadySelector:     "#pass-ready",
			NavigationTimeout: 30 * time.Second,
			ReadyTimeout:      15 * time.Second,
		},
		Security: SecurityConfig{
			ApprovalTokenTTL:  24 * time.Hour,
			VisitorCodePrefix: "NK",
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load returns the fully resolved and validated configuration.
func Load() (*Config, error) {
	return LoadWithKoanf()
}

// LoadWithKoanf loads configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in sensible defaults
//  2. Config file: optional YAML file (if present)
//  3. Environment variables: override any setting
//
// Precedence: ENV > file > defaults.
func LoadWithKoanf() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Flat env names map to nested koanf paths, e.g.
	// DUCKDB_PATH -> database.path, SMTP_HOST -> email.host.
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches CONFIG_PATH and the default paths in order.
// Returns empty string when no file exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive from the environment as plain strings.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values to slices
// for known slice fields. Env vars come in as strings; YAML arrives as
// real slices and is left alone.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config
// paths. Unmapped variables are skipped so random environment noise
// never pollutes the config.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DUCKDB_PATH -> database.path
//   - S3_BUCKET -> storage.bucket
//   - SMTP_HOST -> email.host
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":             "server.host",
		"http_port":             "server.port",
		"http_timeout":          "server.timeout",
		"http_shutdown_timeout": "server.shutdown_timeout",
		"public_base_url":       "server.public_base_url",

		// Database mappings
		"duckdb_path":       "database.path",
		"duckdb_max_memory": "database.max_memory",
		"duckdb_threads":    "database.threads",

		// Object storage mappings
		"s3_endpoint":        "storage.endpoint",
		"s3_access_key":      "storage.access_key",
		"s3_secret_key":      "storage.secret_key",
		"s3_bucket":          "storage.bucket",
		"s3_region":          "storage.region",
		"s3_use_ssl":         "storage.use_ssl",
		"s3_public_base_url": "storage.public_base_url",
		"s3_photo_prefix":    "storage.photo_prefix",
		"s3_pass_prefix":     "storage.pass_prefix",

		// Email mappings
		"smtp_host":     "email.host",
		"smtp_port":     "email.port",
		"smtp_username": "email.username",
		"smtp_password": "email.password",
		"from_email":    "email.from",
		"from_name":     "email.from_name",
		"smtp_timeout":  "email.timeout",

		// Pass rendering mappings
		"frontend_base_url":       "pass.frontend_base_url",
		"pass_ready_selector":     "pass.ready_selector",
		"pass_navigation_timeout": "pass.navigation_timeout",
		"pass_ready_timeout":      "pass.ready_timeout",
		"chrome_path":             "pass.chrome_path",

		// Security mappings
		"admin_username":      "security.admin_username",
		"admin_password":      "security.admin_password",
		"approval_token_ttl":  "security.approval_token_ttl",
		"visitor_code_prefix": "security.visitor_code_prefix",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

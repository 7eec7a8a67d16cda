// Gatekeeper - Visitor Management and Gate Pass Service
// Copyright 2026 NK Tech Union
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/nktu/gatekeeper

// Package config loads and validates Gatekeeper configuration from
// layered sources: built-in defaults, an optional YAML file, and
// environment variables (highest priority).
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config is the root configuration for Gatekeeper.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Storage  StorageConfig  `koanf:"storage"`
	Email    EmailConfig    `koanf:"email"`
	Pass     PassConfig     `koanf:"pass"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the listen address. Default: 0.0.0.0
	Host string `koanf:"host"`

	// Port is the listen port. Default: 8080
	Port int `koanf:"port"`

	// Timeout applies to read and write on the listener.
	Timeout time.Duration `koanf:"timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// PublicBaseURL is the externally reachable base URL of this
	// service. Approve/reject links in host emails are built from it.
	PublicBaseURL string `koanf:"public_base_url"`
}

// DatabaseConfig holds DuckDB settings.
type DatabaseConfig struct {
	// Path is the DuckDB database file. Default: /data/gatekeeper.duckdb
	Path string `koanf:"path"`

	// MaxMemory caps DuckDB memory usage, e.g. "2GB".
	MaxMemory string `koanf:"max_memory"`

	// Threads limits DuckDB worker threads. 0 = runtime.NumCPU().
	Threads int `koanf:"threads"`
}

// StorageConfig holds S3-compatible object storage settings.
type StorageConfig struct {
	// Endpoint is the S3 endpoint host[:port], without scheme.
	Endpoint string `koanf:"endpoint"`

	AccessKey string `koanf:"access_key"`
	SecretKey string `koanf:"secret_key"`

	// Bucket holds visitor photos and generated passes.
	Bucket string `koanf:"bucket"`

	// Region is passed through to the S3 client. Optional.
	Region string `koanf:"region"`

	UseSSL bool `koanf:"use_ssl"`

	// PublicBaseURL overrides the URL prefix recorded for uploaded
	// objects. When empty, URLs are derived from the endpoint.
	PublicBaseURL string `koanf:"public_base_url"`

	// PhotoPrefix and PassPrefix are the object key folders.
	PhotoPrefix string `koanf:"photo_prefix"`
	PassPrefix  string `koanf:"pass_prefix"`
}

// EmailConfig holds SMTP settings for transactional mail.
type EmailConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`

	// From is the sender address; FromName the display name.
	From     string `koanf:"from"`
	FromName string `koanf:"from_name"`

	// Timeout bounds a single SMTP delivery.
	Timeout time.Duration `koanf:"timeout"`
}

// PassConfig holds gate pass rendering settings.
type PassConfig struct {
	// FrontendBaseURL is the base URL of the web front end that
	// serves the printable pass page at /pass/{id}.
	FrontendBaseURL string `koanf:"frontend_base_url"`

	// ReadySelector is the CSS selector the pass page exposes once
	// fully rendered.
	ReadySelector string `koanf:"ready_selector"`

	// NavigationTimeout bounds page load, ReadyTimeout bounds the
	// wait for ReadySelector.
	NavigationTimeout time.Duration `koanf:"navigation_timeout"`
	ReadyTimeout      time.Duration `koanf:"ready_timeout"`

	// ChromePath points at a Chrome/Chromium binary. Empty lets the
	// browser allocator find one on PATH.
	ChromePath string `koanf:"chrome_path"`
}

// SecurityConfig holds auth, token, and rate limit settings.
type SecurityConfig struct {
	// AdminUsername/AdminPassword gate the admin listing surface.
	// Both must be set; there is no session or token issuance.
	AdminUsername string `koanf:"admin_username"`
	AdminPassword string `koanf:"admin_password"`

	// ApprovalTokenTTL is how long a host decision link stays valid.
	ApprovalTokenTTL time.Duration `koanf:"approval_token_ttl"`

	// VisitorCodePrefix is the prefix of generated visitor codes,
	// e.g. "NK" yields NK-2026-0421.
	VisitorCodePrefix string `koanf:"visitor_code_prefix"`

	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`

	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Validate checks the configuration for values that would fail at
// runtime. It is called by LoadWithKoanf after all layers are merged.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path must not be empty")
	}
	if c.Storage.Endpoint != "" && strings.Contains(c.Storage.Endpoint, "://") {
		return fmt.Errorf("storage.endpoint must be host[:port] without scheme, got %q", c.Storage.Endpoint)
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket must not be empty")
	}
	for _, u := range []struct {
		name, val string
	}{
		{"server.public_base_url", c.Server.PublicBaseURL},
		{"storage.public_base_url", c.Storage.PublicBaseURL},
		{"pass.frontend_base_url", c.Pass.FrontendBaseURL},
	} {
		if u.val == "" {
			continue
		}
		parsed, err := url.Parse(u.val)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", u.name, u.val)
		}
	}
	if c.Security.ApprovalTokenTTL <= 0 {
		return fmt.Errorf("security.approval_token_ttl must be positive, got %s", c.Security.ApprovalTokenTTL)
	}
	if c.Security.AdminUsername == "" || c.Security.AdminPassword == "" {
		return fmt.Errorf("security.admin_username and security.admin_password must both be set")
	}
	if c.Email.Host != "" && (c.Email.Port < 1 || c.Email.Port > 65535) {
		return fmt.Errorf("email.port must be 1-65535, got %d", c.Email.Port)
	}
	return nil
}

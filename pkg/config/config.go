// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config loads the gateway's process configuration from the
// environment. All knobs are environment variables; no config files.
package config

import (
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/stacklok/toolhive-core/env"

	"github.com/stacklok/datahive/pkg/crypto"
)

// Environment variable names.
const (
	// EnvMasterKey holds the credential master key as 64 hex characters.
	EnvMasterKey = "CREDENTIAL_MASTER_KEY"
	// EnvDatabaseURL selects the PostgreSQL metadata store; empty selects
	// the embedded SQLite store.
	EnvDatabaseURL = "DATABASE_URL"
	// EnvSQLitePath overrides the embedded store's file path.
	EnvSQLitePath = "DATAHIVE_SQLITE_PATH"
	// EnvHost is the listen address.
	EnvHost = "DATAHIVE_HOST"
	// EnvPort is the listen port.
	EnvPort = "DATAHIVE_PORT"
	// EnvInternalToken gates the internal API; unset leaves it unmounted.
	EnvInternalToken = "DATAHIVE_INTERNAL_TOKEN" //nolint:gosec // env var name, not a credential
	// EnvOTELEndpoint is the OTLP collector endpoint.
	EnvOTELEndpoint = "DATAHIVE_OTEL_ENDPOINT"
	// EnvEnableMetrics exposes the Prometheus /metrics route.
	EnvEnableMetrics = "DATAHIVE_ENABLE_METRICS"
)

// Defaults.
const (
	DefaultHost = "0.0.0.0"
	DefaultPort = 8080
)

// Config is the gateway's process configuration.
type Config struct {
	Host string
	Port int

	// MasterKey is the decoded 32-byte credential master key.
	MasterKey []byte

	// DatabaseURL selects PostgreSQL when non-empty.
	DatabaseURL string
	// SQLitePath is the embedded store path; empty uses the store default.
	SQLitePath string

	// InternalToken enables the internal API when non-empty.
	InternalToken string

	// OTELEndpoint enables OTLP export when non-empty.
	OTELEndpoint string
	// EnableMetrics exposes the Prometheus /metrics route.
	EnableMetrics bool
}

// FromEnv reads the configuration. A missing or malformed master key is a
// hard error: the gateway must never start without the ability to unseal
// credentials.
func FromEnv(envReader env.Reader) (*Config, error) {
	cfg := &Config{
		Host:          DefaultHost,
		Port:          DefaultPort,
		DatabaseURL:   envReader.Getenv(EnvDatabaseURL),
		SQLitePath:    envReader.Getenv(EnvSQLitePath),
		InternalToken: envReader.Getenv(EnvInternalToken),
		OTELEndpoint:  envReader.Getenv(EnvOTELEndpoint),
	}

	key, err := decodeMasterKey(envReader.Getenv(EnvMasterKey))
	if err != nil {
		return nil, err
	}
	cfg.MasterKey = key

	if host := envReader.Getenv(EnvHost); host != "" {
		cfg.Host = host
	}
	if portStr := envReader.Getenv(EnvPort); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil || port < 1 || port > 65535 {
			return nil, fmt.Errorf("invalid %s: %q", EnvPort, portStr)
		}
		cfg.Port = port
	}
	if enable := envReader.Getenv(EnvEnableMetrics); enable != "" {
		value, err := strconv.ParseBool(enable)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %q", EnvEnableMetrics, enable)
		}
		cfg.EnableMetrics = value
	}

	return cfg, nil
}

func decodeMasterKey(value string) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("%s is required", EnvMasterKey)
	}
	key, err := hex.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%s must be hex-encoded", EnvMasterKey)
	}
	if len(key) != crypto.MasterKeySize {
		return nil, fmt.Errorf("%s must decode to %d bytes, got %d",
			EnvMasterKey, crypto.MasterKeySize, len(key))
	}
	return key, nil
}

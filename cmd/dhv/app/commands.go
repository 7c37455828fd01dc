// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package app provides the entry point for the dhv command-line application.
package app

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/toolhive-core/env"

	"github.com/stacklok/datahive/pkg/adapters"
	"github.com/stacklok/datahive/pkg/config"
	"github.com/stacklok/datahive/pkg/crypto"
	"github.com/stacklok/datahive/pkg/gateway"
	"github.com/stacklok/datahive/pkg/logger"
	"github.com/stacklok/datahive/pkg/quota"
	"github.com/stacklok/datahive/pkg/rpc"
	"github.com/stacklok/datahive/pkg/store/factory"
	"github.com/stacklok/datahive/pkg/telemetry"
	"github.com/stacklok/datahive/pkg/usage"
	"github.com/stacklok/datahive/pkg/versions"
)

var rootCmd = &cobra.Command{
	Use:               "dhv",
	DisableAutoGenTag: true,
	Short:             "DataHive Gateway - Managed MCP endpoints for SaaS data sources",
	Long: `DataHive Gateway (dhv) serves per-customer MCP (Model Context Protocol)
endpoints backed by stored, encrypted credentials. Each endpoint exposes a
read-only tool surface for a configured service:

- PostgreSQL, MySQL, and SQL Server schema inspection and row queries
- Supabase PostgREST table access and read-only SQL
- Stripe balance, customer, charge, and invoice listings
- Mixpanel event, segmentation, retention, and profile queries

Credentials never leave the gateway; MCP clients authenticate with nothing
but their endpoint URL.`,
	Run: func(cmd *cobra.Command, _ []string) {
		// If no subcommand is provided, print help
		if err := cmd.Help(); err != nil {
			logger.Errorf("Error displaying help: %v", err)
		}
	},
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.Initialize()
	},
}

// NewRootCmd creates a new root command for the dhv CLI.
func NewRootCmd() *cobra.Command {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug mode")
	err := viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	if err != nil {
		logger.Errorf("Error binding debug flag: %v", err)
	}

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Silence printing the usage on error
	rootCmd.SilenceUsage = true

	return rootCmd
}

// newServeCmd creates the serve command for starting the gateway
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the DataHive gateway",
		Long: `Start the DataHive gateway and listen for MCP client connections.

Configuration is read from the environment (CREDENTIAL_MASTER_KEY, DATABASE_URL,
DATAHIVE_SQLITE_PATH, and friends); flags override the corresponding variables.`,
		RunE: runServe,
	}

	cmd.Flags().String("host", "", "Host to listen on (overrides DATAHIVE_HOST)")
	cmd.Flags().Int("port", 0, "Port to listen on (overrides DATAHIVE_PORT)")
	cmd.Flags().String("otel-endpoint", "", "OTLP endpoint for traces and metrics (overrides OTEL_EXPORTER_OTLP_ENDPOINT)")
	cmd.Flags().Bool("enable-metrics", false, "Expose a Prometheus /metrics endpoint (overrides DATAHIVE_ENABLE_METRICS)")

	return cmd
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  "Display version information for dhv",
		Run: func(_ *cobra.Command, _ []string) {
			info := versions.GetVersionInfo()
			logger.Infof("dhv version: %s (commit %s, built %s, %s, %s)",
				info.Version, info.Commit, info.BuildDate, info.GoVersion, info.Platform)
		},
	}
}

// runServe implements the serve command logic
func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := config.FromEnv(&env.OSReader{})
	if err != nil {
		return fmt.Errorf("configuration loading failed: %w", err)
	}
	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return err
	}

	st, err := factory.New(ctx, cfg.DatabaseURL, cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := st.Close(); err != nil {
			logger.Errorf("Failed to close store: %v", err)
		}
	}()

	cipher, err := crypto.NewCipher(cfg.MasterKey)
	if err != nil {
		return fmt.Errorf("failed to initialize credential cipher: %w", err)
	}

	registry, err := adapters.DefaultRegistry()
	if err != nil {
		return fmt.Errorf("failed to build adapter registry: %w", err)
	}

	telemetryCfg := telemetry.DefaultConfig()
	telemetryCfg.Endpoint = cfg.OTELEndpoint
	telemetryCfg.EnablePrometheusMetricsPath = cfg.EnableMetrics
	provider, err := telemetry.NewProvider(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(ctx); err != nil {
			logger.Errorf("Failed to shut down telemetry: %v", err)
		}
	}()

	metrics, err := telemetry.NewGatewayMetrics(provider.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create gateway metrics: %w", err)
	}

	recorder := usage.NewRecorder(st, usage.DefaultQueueSize)
	defer func() {
		if err := recorder.Close(ctx); err != nil {
			logger.Errorf("Failed to drain usage recorder: %v", err)
		}
	}()

	dispatcher := rpc.NewDispatcher(st, registry, cipher, quota.New(st), recorder, metrics)

	handler := gateway.NewRouter(gateway.RouterConfig{
		Store:         st,
		Dispatcher:    dispatcher,
		Recorder:      recorder,
		InternalToken: cfg.InternalToken,
		Telemetry:     provider,
	})

	logger.Infof("Starting DataHive gateway on %s:%d", cfg.Host, cfg.Port)
	return gateway.NewServer(cfg.Host, cfg.Port, handler).Run(ctx)
}

// applyFlagOverrides layers explicitly-set serve flags over the
// environment-derived configuration.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	if cmd.Flags().Changed("host") {
		host, err := cmd.Flags().GetString("host")
		if err != nil {
			return err
		}
		cfg.Host = host
	}
	if cmd.Flags().Changed("port") {
		port, err := cmd.Flags().GetInt("port")
		if err != nil {
			return err
		}
		if port < 1 || port > 65535 {
			return fmt.Errorf("invalid port: %d", port)
		}
		cfg.Port = port
	}
	if cmd.Flags().Changed("otel-endpoint") {
		endpoint, err := cmd.Flags().GetString("otel-endpoint")
		if err != nil {
			return err
		}
		cfg.OTELEndpoint = endpoint
	}
	if cmd.Flags().Changed("enable-metrics") {
		enabled, err := cmd.Flags().GetBool("enable-metrics")
		if err != nil {
			return err
		}
		cfg.EnableMetrics = enabled
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/tattler-io/tattler/internal/plugins"
	"github.com/tattler-io/tattler/internal/server"
	"github.com/tattler-io/tattler/observability"
	"github.com/tattler-io/tattler/pkg/config"
	"github.com/tattler-io/tattler/pkg/dispatch"
	"github.com/tattler-io/tattler/pkg/logger"
	"github.com/tattler-io/tattler/pkg/logger/adapters"
	"github.com/tattler-io/tattler/pkg/plugin"
	"github.com/tattler-io/tattler/pkg/sendable"
	"github.com/tattler-io/tattler/pkg/template"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "tattlerd:", err)
		os.Exit(1)
	}
}

func run() error {
	opts := []config.Option{config.FromEnv()}
	if path := os.Getenv("TATTLER_CONFIG"); path != "" {
		opts = append([]config.Option{config.FromFile(path)}, opts...)
	}
	settings, err := config.New(opts...)
	if err != nil {
		return err
	}
	if err := settings.Validate(); err != nil {
		return err
	}

	zl := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Str("service", "tattlerd").Logger()
	log := adapters.NewZerologAdapter(zl, logger.ParseLevel(settings.LogLevel))
	log.Info("Starting", "configuration", settings)

	telemetry, err := observability.NewTelemetryProvider(settings.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = telemetry.Shutdown(ctx)
	}()

	registry := plugin.NewRegistry(log)
	if settings.Redis.Addr != "" {
		registry.RegisterAddressbook(plugins.NewRedisAddressbook(settings.Redis))
	}
	registry.RegisterAddressbook(plugins.NewPassthrough())
	registry.Init()

	processor := template.NewProcessor(settings.TemplateType, log)
	probes := sendable.Probes(sendable.VectorConfigFrom(settings), processor, log)
	templates, err := template.NewManager(settings.TemplateBase, probes, log,
		template.WithBaseValidator(sendable.ValidateBlacklist(settings)))
	if err != nil {
		return err
	}
	if err := templates.ValidateTemplates(); err != nil {
		log.Warn("Template tree has defects", "error", err)
	}
	if err := templates.ValidateConfiguration(); err != nil {
		return err
	}

	orchestrator, err := dispatch.NewOrchestrator(settings, templates, registry, telemetry, log)
	if err != nil {
		return err
	}

	return server.New(orchestrator, log).Run(settings.ListenAddress)
}

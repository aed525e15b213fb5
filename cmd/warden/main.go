// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

// Package main contains warden main function to start the warden
// authentication service.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/voxlink/warden/auth"
	"github.com/voxlink/warden/auth/api"
	"github.com/voxlink/warden/auth/backends"
	"github.com/voxlink/warden/auth/pbkdf2"
	apostgres "github.com/voxlink/warden/auth/postgres"
	"github.com/voxlink/warden/internal/env"
	wrdlog "github.com/voxlink/warden/logger"
	"github.com/voxlink/warden/pkg/events/nats"
	"github.com/voxlink/warden/pkg/postgres"
	"github.com/voxlink/warden/pkg/prometheus"
	"github.com/voxlink/warden/pkg/server"
	httpserver "github.com/voxlink/warden/pkg/server/http"
	"github.com/voxlink/warden/pkg/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	svcName        = "auth"
	envPrefix      = "WRD_"
	envPrefixDB    = "WRD_AUTH_DB_"
	envPrefixHTTP  = "WRD_AUTH_HTTP_"
	defDB          = "warden"
	defSvcHTTPPort = "9497"
	sessionStream  = "sessions"
)

type config struct {
	LogLevel        string        `env:"WRD_LOG_LEVEL"         envDefault:"info"`
	ESURL           string        `env:"WRD_ES_URL"            envDefault:"nats://localhost:4222"`
	CleanupInterval time.Duration `env:"WRD_CLEANUP_INTERVAL"  envDefault:"60s"`
	ServiceLogin    string        `env:"WRD_SERVICE_LOGIN"     envDefault:""`
	ServiceSecret   string        `env:"WRD_SERVICE_SECRET"    envDefault:""`
	ServiceACLs     []string      `env:"WRD_SERVICE_ACLS"      envSeparator:"," envDefault:""`
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	cfg := config{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load %s configuration : %s", svcName, err)
	}

	logger, err := wrdlog.New(os.Stdout, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %s", err)
	}

	var exitCode int
	defer wrdlog.ExitWithError(&exitCode)

	dbConfig := postgres.Config{Name: defDB}
	if err := env.Parse(&dbConfig, env.Options{Prefix: envPrefixDB}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s database configuration : %s", svcName, err))
		exitCode = 1
		return
	}
	db, err := postgres.Setup(dbConfig, apostgres.Migration())
	if err != nil {
		logger.Error(err.Error())
		exitCode = 1
		return
	}
	defer db.Close()

	tokenCfg := auth.Config{}
	if err := env.Parse(&tokenCfg, env.Options{Prefix: envPrefix}); err != nil {
		logger.Error(fmt.Sprintf("failed to load token configuration : %s", err))
		exitCode = 1
		return
	}

	publisher, err := nats.NewPublisher(ctx, cfg.ESURL, sessionStream)
	if err != nil {
		logger.Error(fmt.Sprintf("failed to connect to event store: %s", err))
		exitCode = 1
		return
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Error(fmt.Sprintf("failed to close event publisher: %s", err))
		}
	}()

	database := postgres.NewDatabase(db)
	idp := uuid.New()

	tokenRepo := apostgres.NewTokenRepository(database)
	userRepo := apostgres.NewUserRepository(database, idp)
	policyRepo := apostgres.NewPolicyRepository(database)
	groupRepo := apostgres.NewGroupRepository(database)
	tenantRepo := apostgres.NewTenantRepository(database)

	registry := auth.NewRegistry(logger)
	registry.Register(backends.NativeName, backends.NewNative(userRepo, pbkdf2.New()))
	if cfg.ServiceLogin != "" {
		accounts := map[string]backends.Account{
			cfg.ServiceLogin: {
				Password: cfg.ServiceSecret,
				ACLs:     cfg.ServiceACLs,
			},
		}
		registry.Register(backends.ServiceName, backends.NewService(accounts))
	}

	svc := auth.New(tokenRepo, userRepo, policyRepo, groupRepo, tenantRepo, registry, idp, tokenCfg)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = api.MetricsMiddleware(svc, counter, latency)
	svc = api.LoggingMiddleware(svc, logger)

	if cfg.ServiceLogin != "" {
		localTokens := auth.NewLocalTokenManager(svc, backends.ServiceName, cfg.ServiceLogin, cfg.ServiceSecret, tokenCfg.DefaultExpiration, logger)
		if err := localTokens.Start(ctx); err != nil {
			logger.Error(fmt.Sprintf("failed to mint the service token: %s", err))
			exitCode = 1
			return
		}
		defer localTokens.Stop()
	}

	cleaner := auth.NewCleaner(tokenRepo, publisher, cfg.CleanupInterval, logger)
	cleaner.Start()
	defer cleaner.Stop()

	httpServerConfig := server.Config{Port: defSvcHTTPPort}
	if err := env.Parse(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err))
		exitCode = 1
		return
	}
	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svcName), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service terminated: %s", svcName, err))
		exitCode = 1
	}
}

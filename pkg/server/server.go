// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

// Package server provides graceful server lifecycle management.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// StopWaitTime is the time waited for a server to finish in-flight
// requests during shutdown.
const StopWaitTime = 5 * time.Second

// Server is a live network server that can be stopped gracefully.
type Server interface {
	Start() error
	Stop() error
}

// Config contains the bind address and the optional TLS material of a server.
type Config struct {
	Host     string `env:"HOST"        envDefault:""`
	Port     string `env:"PORT"        envDefault:""`
	CertFile string `env:"SERVER_CERT" envDefault:""`
	KeyFile  string `env:"SERVER_KEY"  envDefault:""`
}

// BaseServer carries the state shared by all server implementations.
type BaseServer struct {
	Ctx      context.Context
	Cancel   context.CancelFunc
	Name     string
	Address  string
	Config   Config
	Logger   *slog.Logger
	Protocol string
}

// NewBaseServer populates a BaseServer from the given config.
func NewBaseServer(ctx context.Context, cancel context.CancelFunc, name string, config Config, logger *slog.Logger) BaseServer {
	return BaseServer{
		Ctx:     ctx,
		Cancel:  cancel,
		Name:    name,
		Address: fmt.Sprintf("%s:%s", config.Host, config.Port),
		Config:  config,
		Logger:  logger,
	}
}

func stopAllServer(servers ...Server) error {
	var err error
	for _, server := range servers {
		err1 := server.Stop()
		if err1 != nil {
			if err == nil {
				err = fmt.Errorf("%w", err1)
			} else {
				err = fmt.Errorf("%v ; %w", err, err1)
			}
		}
	}
	return err
}

// StopSignalHandler blocks until the context ends or a stop signal
// arrives, then shuts all servers down.
func StopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger, svcName string, servers ...Server) error {
	var err error
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGABRT)
	select {
	case sig := <-c:
		defer cancel()
		err = stopAllServer(servers...)
		if err != nil {
			logger.Error(fmt.Sprintf("%s service error during shutdown: %v", svcName, err))
		}
		logger.Info(fmt.Sprintf("%s service shutdown by signal: %s", svcName, sig))
		return err
	case <-ctx.Done():
		return nil
	}
}

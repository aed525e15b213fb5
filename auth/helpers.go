// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// renewalFraction of the token lifetime after which the local token is
// re-minted, leaving headroom before expiry.
const renewalFraction = 0.75

// LocalTokenManager mints the daemon's own token against a back-end
// and keeps renewing it before it expires. Internal consumers read the
// current token through Token.
type LocalTokenManager struct {
	svc         Service
	backendName string
	login       string
	password    string
	expiration  time.Duration
	logger      *slog.Logger

	mu    sync.RWMutex
	token Token

	stop chan struct{}
	done chan struct{}
}

// NewLocalTokenManager returns a manager minting tokens with the given
// back-end and credentials.
func NewLocalTokenManager(svc Service, backendName, login, password string, expiration time.Duration, logger *slog.Logger) *LocalTokenManager {
	return &LocalTokenManager{
		svc:         svc,
		backendName: backendName,
		login:       login,
		password:    password,
		expiration:  expiration,
		logger:      logger,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Start mints the initial token and launches the renewal loop.
func (m *LocalTokenManager) Start(ctx context.Context) error {
	if err := m.renew(ctx); err != nil {
		return err
	}

	go m.run()

	return nil
}

// Token returns the current token value.
func (m *LocalTokenManager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token.UUID
}

// Stop ends the renewal loop and revokes the current token.
func (m *LocalTokenManager) Stop() {
	close(m.stop)
	<-m.done

	m.mu.RLock()
	id := m.token.UUID
	m.mu.RUnlock()
	if id == "" {
		return
	}
	if err := m.svc.Revoke(context.Background(), id); err != nil {
		m.logger.Warn("failed to revoke local token", slog.Any("error", err))
	}
}

func (m *LocalTokenManager) run() {
	defer close(m.done)

	for {
		select {
		case <-m.stop:
			return
		case <-time.After(time.Duration(float64(m.expiration) * renewalFraction)):
		}

		if err := m.renew(context.Background()); err != nil {
			m.logger.Error("failed to renew local token", slog.Any("error", err))
		}
	}
}

func (m *LocalTokenManager) renew(ctx context.Context) error {
	token, err := m.svc.Issue(ctx, m.backendName, TokenRequest{
		Login:      m.login,
		Password:   m.password,
		Expiration: m.expiration,
	})
	if err != nil {
		return err
	}

	m.mu.Lock()
	previous := m.token.UUID
	m.token = token
	m.mu.Unlock()

	if previous != "" {
		if err := m.svc.Revoke(ctx, previous); err != nil {
			m.logger.Warn("failed to revoke replaced local token", slog.Any("error", err))
		}
	}

	return nil
}

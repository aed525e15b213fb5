// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"log/slog"
	"time"

	sessevents "github.com/voxlink/warden/auth/events"
	"github.com/voxlink/warden/pkg/events"
)

// Cleaner is the expiry sweeper: a background loop that deletes
// expired tokens and their orphaned sessions, announces the deletions,
// and warns holders of sessions expiring within the next cycle.
type Cleaner struct {
	tokens    TokenRepository
	publisher events.Publisher
	interval  time.Duration
	logger    *slog.Logger
	stop      chan struct{}
	done      chan struct{}
}

// NewCleaner returns a sweeper over the given token repository,
// publishing session events at each cycle.
func NewCleaner(tokens TokenRepository, publisher events.Publisher, interval time.Duration, logger *slog.Logger) *Cleaner {
	return &Cleaner{
		tokens:    tokens,
		publisher: publisher,
		interval:  interval,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the sweeper loop in its own goroutine.
func (c *Cleaner) Start() {
	go c.run()
}

// Stop signals shutdown and waits for the in-flight cycle to finish.
// The shutdown signal is honored between phases; a running phase
// always completes.
func (c *Cleaner) Stop() {
	close(c.stop)
	<-c.done
}

func (c *Cleaner) run() {
	defer close(c.done)

	for {
		started := time.Now()

		c.cleanup()
		select {
		case <-c.stop:
			return
		default:
		}
		c.notify()

		elapsed := time.Since(started)
		if elapsed >= c.interval {
			c.logger.Warn("sweeper cycle overran the cleanup interval", slog.Duration("elapsed", elapsed), slog.Duration("interval", c.interval))
		} else {
			c.logger.Debug("sweeper cycle finished", slog.Duration("elapsed", elapsed))
		}

		select {
		case <-c.stop:
			return
		case <-time.After(c.interval - elapsed):
		}
	}
}

// cleanup deletes expired tokens and orphaned sessions in one
// transaction, then publishes a SessionDeleted event per session. A
// failed transaction publishes nothing.
func (c *Cleaner) cleanup() {
	ctx := context.Background()

	tokens, sessions, err := c.tokens.RemoveExpired(ctx)
	if err != nil {
		c.logger.Error("failed to remove expired tokens", slog.Any("error", err))
		return
	}

	for _, session := range sessions {
		token, ok := tokenForSession(tokens, session)
		if !ok {
			c.logger.Warn("removed session has no matching token", slog.String("session_uuid", session.UUID))
			continue
		}
		event := sessevents.SessionDeleted{
			UUID:       session.UUID,
			UserUUID:   token.AuthID,
			TenantUUID: token.TenantUUID(),
		}
		if err := c.publisher.Publish(ctx, event); err != nil {
			c.logger.Error("failed to publish session deletion", slog.String("session_uuid", session.UUID), slog.Any("error", err))
		}
	}
}

// notify publishes a SessionExpireSoon event for every session whose
// tokens expire within the next cleanup interval.
func (c *Cleaner) notify() {
	ctx := context.Background()

	tokens, sessions, err := c.tokens.RetrieveExpiringWithin(ctx, c.interval)
	if err != nil {
		c.logger.Error("failed to query expiring tokens", slog.Any("error", err))
		return
	}

	for _, session := range sessions {
		token, ok := tokenForSession(tokens, session)
		if !ok {
			c.logger.Warn("expiring session has no matching token", slog.String("session_uuid", session.UUID))
			continue
		}
		event := sessevents.SessionExpireSoon{
			UUID:       session.UUID,
			UserUUID:   token.AuthID,
			TenantUUID: token.TenantUUID(),
		}
		if err := c.publisher.Publish(ctx, event); err != nil {
			c.logger.Error("failed to publish session expiry notice", slog.String("session_uuid", session.UUID), slog.Any("error", err))
		}
	}
}

func tokenForSession(tokens []Token, session Session) (Token, bool) {
	for _, token := range tokens {
		if token.SessionUUID == session.UUID {
			return token, true
		}
	}
	return Token{}, false
}

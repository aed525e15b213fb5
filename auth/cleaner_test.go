// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sessevents "github.com/voxlink/warden/auth/events"
	"github.com/voxlink/warden/pkg/errors"
	"github.com/voxlink/warden/pkg/events"
)

type sweeperRepoStub struct {
	tokens   []Token
	sessions []Session
	err      error
	window   time.Duration
}

func (s *sweeperRepoStub) Save(ctx context.Context, token Token) (string, error) {
	return token.UUID, nil
}

func (s *sweeperRepoStub) Retrieve(ctx context.Context, id string) (Token, error) {
	return Token{}, ErrTokenNotFound
}

func (s *sweeperRepoStub) Remove(ctx context.Context, id string) error {
	return nil
}

func (s *sweeperRepoStub) RemoveExpired(ctx context.Context) ([]Token, []Session, error) {
	return s.tokens, s.sessions, s.err
}

func (s *sweeperRepoStub) RetrieveExpiringWithin(ctx context.Context, window time.Duration) ([]Token, []Session, error) {
	s.window = window
	return s.tokens, s.sessions, s.err
}

type capturingPublisher struct {
	events []events.Event
	errs   []error
}

func (p *capturingPublisher) Publish(ctx context.Context, event events.Event) error {
	p.events = append(p.events, event)
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return err
	}
	return nil
}

func (p *capturingPublisher) Close() error {
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCleanupPublishesOneDeletionPerSession(t *testing.T) {
	repo := &sweeperRepoStub{
		tokens: []Token{
			{UUID: "T1", AuthID: "U1", SessionUUID: "S1", Metadata: map[string]interface{}{"tenant_uuid": "TEN1"}},
			{UUID: "T2", AuthID: "U1", SessionUUID: "S1"},
			{UUID: "T3", AuthID: "U2", SessionUUID: "S2"},
		},
		sessions: []Session{{UUID: "S1"}, {UUID: "S2"}},
	}
	publisher := &capturingPublisher{}

	c := NewCleaner(repo, publisher, time.Minute, discardLogger())
	c.cleanup()

	require.Len(t, publisher.events, 2)
	assert.Equal(t, sessevents.SessionDeleted{UUID: "S1", UserUUID: "U1", TenantUUID: "TEN1"}, publisher.events[0])
	assert.Equal(t, sessevents.SessionDeleted{UUID: "S2", UserUUID: "U2"}, publisher.events[1])
}

func TestCleanupSkipsSessionWithoutToken(t *testing.T) {
	repo := &sweeperRepoStub{
		tokens:   []Token{{UUID: "T1", AuthID: "U1", SessionUUID: "S1"}},
		sessions: []Session{{UUID: "S1"}, {UUID: "S-orphan"}},
	}
	publisher := &capturingPublisher{}

	c := NewCleaner(repo, publisher, time.Minute, discardLogger())
	c.cleanup()

	require.Len(t, publisher.events, 1)
	assert.Equal(t, sessevents.SessionDeleted{UUID: "S1", UserUUID: "U1"}, publisher.events[0])
}

func TestCleanupRepositoryErrorPublishesNothing(t *testing.T) {
	repo := &sweeperRepoStub{err: errors.New("connection reset")}
	publisher := &capturingPublisher{}

	c := NewCleaner(repo, publisher, time.Minute, discardLogger())
	c.cleanup()

	assert.Empty(t, publisher.events)
}

func TestCleanupPublisherErrorContinues(t *testing.T) {
	repo := &sweeperRepoStub{
		tokens: []Token{
			{UUID: "T1", AuthID: "U1", SessionUUID: "S1"},
			{UUID: "T2", AuthID: "U2", SessionUUID: "S2"},
		},
		sessions: []Session{{UUID: "S1"}, {UUID: "S2"}},
	}
	publisher := &capturingPublisher{errs: []error{errors.New("broker unavailable")}}

	c := NewCleaner(repo, publisher, time.Minute, discardLogger())
	c.cleanup()

	assert.Len(t, publisher.events, 2, "a failed publication must not stop the sweep")
}

func TestNotifyUsesTheCleanupIntervalAsWindow(t *testing.T) {
	repo := &sweeperRepoStub{
		tokens:   []Token{{UUID: "T1", AuthID: "U1", SessionUUID: "S1"}},
		sessions: []Session{{UUID: "S1"}},
	}
	publisher := &capturingPublisher{}

	c := NewCleaner(repo, publisher, 30*time.Second, discardLogger())
	c.notify()

	assert.Equal(t, 30*time.Second, repo.window)
	require.Len(t, publisher.events, 1)
	assert.Equal(t, sessevents.SessionExpireSoon{UUID: "S1", UserUUID: "U1"}, publisher.events[0])
}

func TestCleanerStartStop(t *testing.T) {
	repo := &sweeperRepoStub{}
	publisher := &capturingPublisher{}

	c := NewCleaner(repo, publisher, time.Hour, discardLogger())
	c.Start()

	done := make(chan struct{})
	go func() {
		c.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("cleaner did not stop in time")
	}
}

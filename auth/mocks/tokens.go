// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/voxlink/warden/auth"
)

type tokenRepoMock struct {
	mu     sync.Mutex
	tokens map[string]auth.Token
}

// NewTokenRepository returns an in-memory token repository mock.
func NewTokenRepository() auth.TokenRepository {
	return &tokenRepoMock{tokens: map[string]auth.Token{}}
}

func (trm *tokenRepoMock) Save(ctx context.Context, token auth.Token) (string, error) {
	trm.mu.Lock()
	defer trm.mu.Unlock()

	trm.tokens[token.UUID] = token
	return token.UUID, nil
}

func (trm *tokenRepoMock) Retrieve(ctx context.Context, id string) (auth.Token, error) {
	trm.mu.Lock()
	defer trm.mu.Unlock()

	token, ok := trm.tokens[id]
	if !ok {
		return auth.Token{}, auth.ErrTokenNotFound
	}
	return token, nil
}

func (trm *tokenRepoMock) Remove(ctx context.Context, id string) error {
	trm.mu.Lock()
	defer trm.mu.Unlock()

	delete(trm.tokens, id)
	return nil
}

func (trm *tokenRepoMock) RemoveExpired(ctx context.Context) ([]auth.Token, []auth.Session, error) {
	trm.mu.Lock()
	defer trm.mu.Unlock()

	now := time.Now()
	removed := []auth.Token{}
	for id, token := range trm.tokens {
		if token.IsExpired(now) {
			removed = append(removed, token)
			delete(trm.tokens, id)
		}
	}

	return removed, trm.orphanedSessions(removed), nil
}

func (trm *tokenRepoMock) RetrieveExpiringWithin(ctx context.Context, window time.Duration) ([]auth.Token, []auth.Session, error) {
	trm.mu.Lock()
	defer trm.mu.Unlock()

	now := time.Now()
	deadline := now.Add(window)
	expiring := []auth.Token{}
	sessions := []auth.Session{}
	seen := map[string]bool{}
	for _, token := range trm.tokens {
		if token.IsExpired(now) || token.ExpireT > deadline.Unix() {
			continue
		}
		expiring = append(expiring, token)
		if !seen[token.SessionUUID] {
			seen[token.SessionUUID] = true
			sessions = append(sessions, auth.Session{UUID: token.SessionUUID})
		}
	}

	return expiring, sessions, nil
}

// orphanedSessions lists the sessions of the removed tokens that no
// remaining token still references.
func (trm *tokenRepoMock) orphanedSessions(removed []auth.Token) []auth.Session {
	live := map[string]bool{}
	for _, token := range trm.tokens {
		live[token.SessionUUID] = true
	}

	sessions := []auth.Session{}
	seen := map[string]bool{}
	for _, token := range removed {
		if live[token.SessionUUID] || seen[token.SessionUUID] {
			continue
		}
		seen[token.SessionUUID] = true
		sessions = append(sessions, auth.Session{UUID: token.SessionUUID})
	}
	return sessions
}

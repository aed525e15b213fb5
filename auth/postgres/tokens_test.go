// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package postgres_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxlink/warden/auth"
	"github.com/voxlink/warden/auth/postgres"
	"github.com/voxlink/warden/pkg/errors"
)

func TestTokenSaveAndRetrieve(t *testing.T) {
	repo := postgres.NewTokenRepository(database)
	ctx := context.Background()
	now := time.Now()

	token := auth.Token{
		UUID:         generateUUID(t),
		AuthID:       generateUUID(t),
		UserUUID:     generateUUID(t),
		InstanceUUID: generateUUID(t),
		IssuedT:      now.Unix(),
		ExpireT:      now.Add(time.Hour).Unix(),
		SessionUUID:  generateUUID(t),
		UserAgent:    "curl/8.0",
		RemoteAddr:   "127.0.0.1",
		Metadata:     map[string]interface{}{"tenant_uuid": "TEN1", "purpose": "user"},
		ACLs:         []string{"confd.#", "!confd.users.delete", "dird.me.#"},
		RefreshToken: generateUUID(t),
	}

	id, err := repo.Save(ctx, token)
	require.Nil(t, err, fmt.Sprintf("save token unexpected error: %s", err))
	assert.Equal(t, token.UUID, id)

	read, err := repo.Retrieve(ctx, token.UUID)
	require.Nil(t, err, fmt.Sprintf("retrieve token unexpected error: %s", err))
	assert.Equal(t, token, read, "acl order and metadata must survive the round trip")
}

func TestTokenRetrieveUnknown(t *testing.T) {
	repo := postgres.NewTokenRepository(database)

	_, err := repo.Retrieve(context.Background(), generateUUID(t))
	assert.True(t, errors.Contains(err, auth.ErrTokenNotFound), fmt.Sprintf("expected %v got %v\n", auth.ErrTokenNotFound, err))
}

func TestTokenRemoveIsIdempotent(t *testing.T) {
	repo := postgres.NewTokenRepository(database)
	ctx := context.Background()
	now := time.Now()

	token := auth.Token{
		UUID:        generateUUID(t),
		AuthID:      generateUUID(t),
		IssuedT:     now.Unix(),
		ExpireT:     now.Add(time.Hour).Unix(),
		SessionUUID: generateUUID(t),
	}
	_, err := repo.Save(ctx, token)
	require.Nil(t, err)

	assert.Nil(t, repo.Remove(ctx, token.UUID))

	_, err = repo.Retrieve(ctx, token.UUID)
	assert.True(t, errors.Contains(err, auth.ErrTokenNotFound))

	assert.Nil(t, repo.Remove(ctx, token.UUID), "removing a missing token must succeed")
}

func TestTokenRemoveKeepsSharedSession(t *testing.T) {
	repo := postgres.NewTokenRepository(database)
	ctx := context.Background()
	now := time.Now()
	session := generateUUID(t)

	first := auth.Token{
		UUID:        generateUUID(t),
		AuthID:      generateUUID(t),
		IssuedT:     now.Unix(),
		ExpireT:     now.Add(time.Hour).Unix(),
		SessionUUID: session,
	}
	second := first
	second.UUID = generateUUID(t)

	_, err := repo.Save(ctx, first)
	require.Nil(t, err)
	_, err = repo.Save(ctx, second)
	require.Nil(t, err)

	require.Nil(t, repo.Remove(ctx, first.UUID))

	read, err := repo.Retrieve(ctx, second.UUID)
	require.Nil(t, err)
	assert.Equal(t, session, read.SessionUUID, "a session shared with a live token must survive")
}

func TestTokenRemoveExpired(t *testing.T) {
	repo := postgres.NewTokenRepository(database)
	ctx := context.Background()
	now := time.Now()

	sharedSession := generateUUID(t)
	soloSession := generateUUID(t)
	liveSession := generateUUID(t)

	expired := func(session string) auth.Token {
		return auth.Token{
			UUID:        generateUUID(t),
			AuthID:      generateUUID(t),
			IssuedT:     now.Add(-2 * time.Hour).Unix(),
			ExpireT:     now.Add(-time.Hour).Unix(),
			SessionUUID: session,
		}
	}

	first := expired(sharedSession)
	second := expired(sharedSession)
	third := expired(soloSession)
	live := auth.Token{
		UUID:        generateUUID(t),
		AuthID:      generateUUID(t),
		IssuedT:     now.Unix(),
		ExpireT:     now.Add(time.Hour).Unix(),
		SessionUUID: liveSession,
	}

	for _, token := range []auth.Token{first, second, third, live} {
		_, err := repo.Save(ctx, token)
		require.Nil(t, err)
	}

	tokens, sessions, err := repo.RemoveExpired(ctx)
	require.Nil(t, err, fmt.Sprintf("remove expired unexpected error: %s", err))

	removed := map[string]bool{}
	for _, token := range tokens {
		removed[token.UUID] = true
	}
	assert.True(t, removed[first.UUID])
	assert.True(t, removed[second.UUID])
	assert.True(t, removed[third.UUID])
	assert.False(t, removed[live.UUID], "a live token must not be swept")

	gone := map[string]bool{}
	for _, session := range sessions {
		gone[session.UUID] = true
	}
	assert.True(t, gone[sharedSession])
	assert.True(t, gone[soloSession])
	assert.False(t, gone[liveSession], "a session with a live token must not be reported deleted")

	_, err = repo.Retrieve(ctx, live.UUID)
	assert.Nil(t, err)
}

func TestTokenRetrieveExpiringWithin(t *testing.T) {
	repo := postgres.NewTokenRepository(database)
	ctx := context.Background()
	now := time.Now()

	session := generateUUID(t)
	soon := auth.Token{
		UUID:        generateUUID(t),
		AuthID:      generateUUID(t),
		IssuedT:     now.Unix(),
		ExpireT:     now.Add(30 * time.Second).Unix(),
		SessionUUID: session,
	}
	alsoSoon := soon
	alsoSoon.UUID = generateUUID(t)
	later := auth.Token{
		UUID:        generateUUID(t),
		AuthID:      generateUUID(t),
		IssuedT:     now.Unix(),
		ExpireT:     now.Add(2 * time.Hour).Unix(),
		SessionUUID: generateUUID(t),
	}

	for _, token := range []auth.Token{soon, alsoSoon, later} {
		_, err := repo.Save(ctx, token)
		require.Nil(t, err)
	}

	tokens, sessions, err := repo.RetrieveExpiringWithin(ctx, time.Minute)
	require.Nil(t, err)

	found := map[string]bool{}
	for _, token := range tokens {
		found[token.UUID] = true
	}
	assert.True(t, found[soon.UUID])
	assert.True(t, found[alsoSoon.UUID])
	assert.False(t, found[later.UUID], "a token outside the window must not be reported")

	count := 0
	for _, s := range sessions {
		if s.UUID == session {
			count++
		}
	}
	assert.Equal(t, 1, count, "a session must be reported once even with several expiring tokens")
}

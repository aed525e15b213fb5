// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

// Package backends holds the built-in authentication back-ends.
package backends

import (
	"context"

	"github.com/voxlink/warden/auth"
	"github.com/voxlink/warden/pkg/errors"
)

// NativeName is the registry name of the stored-credentials back-end.
const NativeName = "native"

var _ auth.Backend = (*native)(nil)

// native authenticates users against the credentials kept in the
// identity store. The auth-id of a native identity is the user uuid.
type native struct {
	users  auth.UserRepository
	hasher auth.Hasher
}

// NewNative returns a factory for the stored-credentials back-end.
func NewNative(users auth.UserRepository, hasher auth.Hasher) auth.BackendFactory {
	return func() (auth.Backend, error) {
		return &native{
			users:  users,
			hasher: hasher,
		}, nil
	}
}

func (b *native) VerifyPassword(ctx context.Context, login, password string, _ map[string]interface{}) (bool, error) {
	user, err := b.users.RetrieveCredentials(ctx, login)
	if err != nil {
		if errors.Contains(err, auth.ErrUsernameNotFound) {
			return false, nil
		}
		return false, err
	}

	return b.hasher.Verify(password, user.PasswordHash, user.PasswordSalt), nil
}

func (b *native) GetIDs(ctx context.Context, login string, _ map[string]interface{}) (string, string, error) {
	user, err := b.users.RetrieveCredentials(ctx, login)
	if err != nil {
		return "", "", err
	}

	return user.UUID, user.UUID, nil
}

func (b *native) GetACLs(_ context.Context, _ string, _ map[string]interface{}) ([]string, error) {
	return nil, nil
}

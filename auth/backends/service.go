// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package backends

import (
	"context"
	"crypto/subtle"

	"github.com/voxlink/warden/auth"
)

// ServiceName is the registry name of the service-accounts back-end.
const ServiceName = "service"

// Account is a configured service account: a shared secret and the
// base ACLs granted to it. Service accounts are not users, so tokens
// minted through this back-end carry no user uuid.
type Account struct {
	Password string
	ACLs     []string
}

var _ auth.Backend = (*serviceBackend)(nil)

type serviceBackend struct {
	accounts map[string]Account
}

// NewService returns a factory for the service-accounts back-end.
func NewService(accounts map[string]Account) auth.BackendFactory {
	return func() (auth.Backend, error) {
		return &serviceBackend{accounts: accounts}, nil
	}
}

func (b *serviceBackend) VerifyPassword(_ context.Context, login, password string, _ map[string]interface{}) (bool, error) {
	account, ok := b.accounts[login]
	if !ok {
		return false, nil
	}

	return subtle.ConstantTimeCompare([]byte(password), []byte(account.Password)) == 1, nil
}

func (b *serviceBackend) GetIDs(_ context.Context, login string, _ map[string]interface{}) (string, string, error) {
	return login, "", nil
}

func (b *serviceBackend) GetACLs(_ context.Context, login string, _ map[string]interface{}) ([]string, error) {
	account, ok := b.accounts[login]
	if !ok {
		return nil, nil
	}

	acls := make([]string, len(account.ACLs))
	copy(acls, account.ACLs)

	return acls, nil
}

// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"fmt"
	"sync"

	"github.com/voxlink/warden/auth"
)

type userRepoMock struct {
	mu       sync.Mutex
	counter  int
	order    []string
	users    map[string]auth.User
	policies map[string]map[string]bool
}

// NewUserRepository returns an in-memory user repository mock.
func NewUserRepository() auth.UserRepository {
	return &userRepoMock{
		users:    map[string]auth.User{},
		policies: map[string]map[string]bool{},
	}
}

func (urm *userRepoMock) Save(ctx context.Context, user auth.User) (auth.User, error) {
	urm.mu.Lock()
	defer urm.mu.Unlock()

	for _, existing := range urm.users {
		if existing.Username == user.Username {
			return auth.User{}, &auth.ConflictError{Entity: "users", Field: "username", Value: user.Username}
		}
	}

	urm.order = append(urm.order, user.UUID)
	urm.users[user.UUID] = user
	return user, nil
}

func (urm *userRepoMock) RetrieveByUUID(ctx context.Context, id string) (auth.User, error) {
	urm.mu.Lock()
	defer urm.mu.Unlock()

	user, ok := urm.users[id]
	if !ok {
		return auth.User{}, auth.ErrUserNotFound
	}
	return user, nil
}

func (urm *userRepoMock) RetrieveCredentials(ctx context.Context, username string) (auth.User, error) {
	urm.mu.Lock()
	defer urm.mu.Unlock()

	for _, user := range urm.users {
		if user.Username == username {
			return user, nil
		}
	}
	return auth.User{}, auth.ErrUsernameNotFound
}

func (urm *userRepoMock) RetrieveAll(ctx context.Context, pm auth.Page) (auth.UsersPage, error) {
	urm.mu.Lock()
	defer urm.mu.Unlock()

	users := []auth.User{}
	for _, id := range urm.order {
		users = append(users, urm.users[id])
	}

	total := uint64(len(users))
	if pm.Offset < total {
		users = users[pm.Offset:]
	} else {
		users = []auth.User{}
	}
	if pm.Limit != auth.NoLimit && int64(len(users)) > pm.Limit {
		users = users[:pm.Limit]
	}

	return auth.UsersPage{Total: total, Filtered: total, Users: users}, nil
}

func (urm *userRepoMock) UpdateEmails(ctx context.Context, userID string, desired []auth.EmailUpdate) ([]auth.Email, error) {
	urm.mu.Lock()
	defer urm.mu.Unlock()

	user, ok := urm.users[userID]
	if !ok {
		return nil, auth.ErrUserNotFound
	}

	existing := map[string]auth.Email{}
	for _, e := range user.Emails {
		existing[e.Address] = e
	}

	emails := make([]auth.Email, 0, len(desired))
	for _, d := range desired {
		email := auth.Email{Address: d.Address, Main: d.Main}
		if prev, ok := existing[d.Address]; ok {
			email.UUID = prev.UUID
			email.Confirmed = prev.Confirmed
		} else {
			urm.counter++
			email.UUID = fmt.Sprintf("email-%04d", urm.counter)
		}
		if d.Confirmed != nil {
			email.Confirmed = *d.Confirmed
		}
		emails = append(emails, email)
	}

	user.Emails = emails
	urm.users[userID] = user
	return emails, nil
}

func (urm *userRepoMock) UpdatePassword(ctx context.Context, id, hash, salt string) error {
	urm.mu.Lock()
	defer urm.mu.Unlock()

	user, ok := urm.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	user.PasswordHash = hash
	user.PasswordSalt = salt
	urm.users[id] = user
	return nil
}

func (urm *userRepoMock) Delete(ctx context.Context, id string) error {
	urm.mu.Lock()
	defer urm.mu.Unlock()

	if _, ok := urm.users[id]; !ok {
		return auth.ErrUserNotFound
	}
	delete(urm.users, id)
	for k, uid := range urm.order {
		if uid == id {
			urm.order = append(urm.order[:k], urm.order[k+1:]...)
			break
		}
	}
	return nil
}

func (urm *userRepoMock) Exists(ctx context.Context, id string) (bool, error) {
	urm.mu.Lock()
	defer urm.mu.Unlock()

	_, ok := urm.users[id]
	return ok, nil
}

func (urm *userRepoMock) AddPolicy(ctx context.Context, userID, policyID string) error {
	urm.mu.Lock()
	defer urm.mu.Unlock()

	if _, ok := urm.users[userID]; !ok {
		return auth.ErrUserNotFound
	}
	if urm.policies[userID] == nil {
		urm.policies[userID] = map[string]bool{}
	}
	urm.policies[userID][policyID] = true
	return nil
}

func (urm *userRepoMock) RemovePolicy(ctx context.Context, userID, policyID string) error {
	urm.mu.Lock()
	defer urm.mu.Unlock()

	if !urm.policies[userID][policyID] {
		return auth.ErrUserPolicyNotFound
	}
	delete(urm.policies[userID], policyID)
	return nil
}

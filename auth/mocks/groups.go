// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/voxlink/warden/auth"
)

type groupRepoMock struct {
	mu      sync.Mutex
	order   []string
	groups  map[string]auth.Group
	members map[string][]auth.User
}

// NewGroupRepository returns an in-memory group repository mock.
func NewGroupRepository() auth.GroupRepository {
	return &groupRepoMock{
		groups:  map[string]auth.Group{},
		members: map[string][]auth.User{},
	}
}

func (grm *groupRepoMock) Save(ctx context.Context, group auth.Group) (auth.Group, error) {
	grm.mu.Lock()
	defer grm.mu.Unlock()

	for _, existing := range grm.groups {
		if existing.Name == group.Name {
			return auth.Group{}, &auth.ConflictError{Entity: "groups", Field: "name", Value: group.Name}
		}
	}

	grm.order = append(grm.order, group.UUID)
	grm.groups[group.UUID] = group
	for _, u := range group.Users {
		grm.members[group.UUID] = append(grm.members[group.UUID], u)
	}
	return group, nil
}

func (grm *groupRepoMock) Delete(ctx context.Context, id string) error {
	grm.mu.Lock()
	defer grm.mu.Unlock()

	if _, ok := grm.groups[id]; !ok {
		return auth.ErrGroupNotFound
	}
	delete(grm.groups, id)
	delete(grm.members, id)
	return nil
}

func (grm *groupRepoMock) RetrieveByUUID(ctx context.Context, id string) (auth.Group, error) {
	grm.mu.Lock()
	defer grm.mu.Unlock()

	group, ok := grm.groups[id]
	if !ok {
		return auth.Group{}, auth.ErrGroupNotFound
	}
	group.Users = append([]auth.User{}, grm.members[id]...)
	return group, nil
}

func (grm *groupRepoMock) RetrieveAll(ctx context.Context, pm auth.Page) (auth.GroupsPage, error) {
	grm.mu.Lock()
	defer grm.mu.Unlock()

	groups := []auth.Group{}
	for _, id := range grm.order {
		groups = append(groups, grm.groups[id])
	}

	return auth.GroupsPage{
		Total:    uint64(len(groups)),
		Filtered: uint64(len(groups)),
		Groups:   groups,
	}, nil
}

func (grm *groupRepoMock) RetrieveForUser(ctx context.Context, userID string) ([]auth.Group, error) {
	grm.mu.Lock()
	defer grm.mu.Unlock()

	groups := []auth.Group{}
	for id, users := range grm.members {
		for _, u := range users {
			if u.UUID == userID {
				group := grm.groups[id]
				group.Users = append([]auth.User{}, users...)
				groups = append(groups, group)
				break
			}
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Name < groups[j].Name })

	return groups, nil
}

func (grm *groupRepoMock) AddUser(ctx context.Context, groupID, userID string) error {
	grm.mu.Lock()
	defer grm.mu.Unlock()

	if _, ok := grm.groups[groupID]; !ok {
		return auth.ErrGroupNotFound
	}
	for _, u := range grm.members[groupID] {
		if u.UUID == userID {
			return nil
		}
	}
	grm.members[groupID] = append(grm.members[groupID], auth.User{UUID: userID})
	return nil
}

func (grm *groupRepoMock) RemoveUser(ctx context.Context, groupID, userID string) error {
	grm.mu.Lock()
	defer grm.mu.Unlock()

	if _, ok := grm.groups[groupID]; !ok {
		return auth.ErrGroupNotFound
	}
	users := grm.members[groupID]
	for k, u := range users {
		if u.UUID == userID {
			grm.members[groupID] = append(users[:k], users[k+1:]...)
			return nil
		}
	}
	return nil
}

func (grm *groupRepoMock) AddPolicy(ctx context.Context, groupID, policyID string) error {
	grm.mu.Lock()
	defer grm.mu.Unlock()

	if _, ok := grm.groups[groupID]; !ok {
		return auth.ErrGroupNotFound
	}
	return nil
}

func (grm *groupRepoMock) RemovePolicy(ctx context.Context, groupID, policyID string) error {
	grm.mu.Lock()
	defer grm.mu.Unlock()

	if _, ok := grm.groups[groupID]; !ok {
		return auth.ErrGroupNotFound
	}
	return nil
}

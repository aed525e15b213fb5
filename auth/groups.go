// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

import "context"

// Group gathers users and grants them its policies.
type Group struct {
	UUID  string
	Name  string
	Users []User
}

// GroupsPage is one page of groups.
type GroupsPage struct {
	Total    uint64
	Filtered uint64
	Groups   []Group
}

// GroupRepository persists groups and their user and policy
// memberships.
type GroupRepository interface {
	// Save persists a new group. A name collision yields a
	// ConflictError.
	Save(ctx context.Context, group Group) (Group, error)

	// Delete removes the group and its joins. A missing group yields
	// ErrGroupNotFound.
	Delete(ctx context.Context, id string) error

	// RetrieveByUUID fetches a group.
	RetrieveByUUID(ctx context.Context, id string) (Group, error)

	// RetrieveAll lists groups matching the page filters.
	RetrieveAll(ctx context.Context, pm Page) (GroupsPage, error)

	// RetrieveForUser returns the groups the user belongs to, each
	// populated with its member users.
	RetrieveForUser(ctx context.Context, userID string) ([]Group, error)

	// AddUser makes the user a member. Idempotent.
	AddUser(ctx context.Context, groupID, userID string) error

	// RemoveUser drops a membership. Removing a missing membership
	// succeeds when both group and user exist.
	RemoveUser(ctx context.Context, groupID, userID string) error

	// AddPolicy attaches a policy to the group. Idempotent.
	AddPolicy(ctx context.Context, groupID, policyID string) error

	// RemovePolicy detaches a policy. Removing a missing association
	// succeeds when both group and policy exist.
	RemovePolicy(ctx context.Context, groupID, policyID string) error
}

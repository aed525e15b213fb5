// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

import "context"

// Email is a user-owned address. Exactly one email per user is main.
type Email struct {
	UUID      string
	Address   string
	Main      bool
	Confirmed bool
}

// EmailUpdate is one entry of a desired email set. A nil Confirmed
// preserves the stored flag for an existing address and defaults to
// false for a new one; callers without admin rights always pass nil.
type EmailUpdate struct {
	Address   string
	Main      bool
	Confirmed *bool
}

// User is an authenticatable principal of the identity graph.
type User struct {
	UUID         string
	Username     string
	FirstName    string
	LastName     string
	PasswordHash string
	PasswordSalt string
	Emails       []Email
}

// UsersPage is one page of users. Total counts all users, Filtered the
// ones matching the page filters.
type UsersPage struct {
	Total    uint64
	Filtered uint64
	Users    []User
}

// UserRepository persists users and their email sets, group, tenant
// and policy memberships.
type UserRepository interface {
	// Save persists a new user together with its main email in one
	// transaction. A username or address collision yields a
	// ConflictError naming the field.
	Save(ctx context.Context, user User) (User, error)

	// RetrieveByUUID fetches a user with its emails.
	RetrieveByUUID(ctx context.Context, id string) (User, error)

	// RetrieveCredentials fetches the password hash and salt of the
	// user carrying the given username. A missing username yields
	// ErrUsernameNotFound.
	RetrieveCredentials(ctx context.Context, username string) (User, error)

	// RetrieveAll lists users matching the page filters. Rows are
	// joined with their emails; duplicates are folded preserving the
	// order of first appearance.
	RetrieveAll(ctx context.Context, pm Page) (UsersPage, error)

	// UpdateEmails reconciles the user's email set with the desired
	// one in a single transaction: matching addresses keep their uuid,
	// new addresses get fresh uuids, omitted addresses are deleted.
	UpdateEmails(ctx context.Context, userID string, desired []EmailUpdate) ([]Email, error)

	// UpdatePassword replaces the stored hash and salt.
	UpdatePassword(ctx context.Context, id, hash, salt string) error

	// Delete removes the user, its emails and all its joins in one
	// transaction. A missing user yields ErrUserNotFound.
	Delete(ctx context.Context, id string) error

	// Exists reports whether the user uuid is known.
	Exists(ctx context.Context, id string) (bool, error)

	// AddPolicy associates a policy directly with the user. Re-adding
	// an existing association succeeds without a second row.
	AddPolicy(ctx context.Context, userID, policyID string) error

	// RemovePolicy drops a direct user-policy association. Removing a
	// missing association yields ErrUserPolicyNotFound.
	RemovePolicy(ctx context.Context, userID, policyID string) error
}

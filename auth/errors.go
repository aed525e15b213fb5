// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"fmt"

	"github.com/voxlink/warden/pkg/errors"
)

var (
	// ErrTokenNotFound indicates the referenced token does not exist.
	ErrTokenNotFound = errors.New("unknown token")

	// ErrUserNotFound indicates the referenced user does not exist.
	ErrUserNotFound = errors.New("unknown user")

	// ErrUsernameNotFound indicates no user carries the given username.
	ErrUsernameNotFound = errors.New("unknown username")

	// ErrPolicyNotFound indicates the referenced policy does not exist.
	ErrPolicyNotFound = errors.New("unknown policy")

	// ErrGroupNotFound indicates the referenced group does not exist.
	ErrGroupNotFound = errors.New("unknown group")

	// ErrTenantNotFound indicates the referenced tenant does not exist.
	ErrTenantNotFound = errors.New("unknown tenant")

	// ErrUserPolicyNotFound indicates the user is not associated with the policy.
	ErrUserPolicyNotFound = errors.New("unknown user policy")

	// ErrDuplicatePolicy indicates a policy with the same name already exists.
	ErrDuplicatePolicy = errors.New("duplicate policy")

	// ErrDuplicateTemplate indicates the template is already associated with the policy.
	ErrDuplicateTemplate = errors.New("duplicate template")

	// ErrInvalidCredentials indicates the back-end rejected the password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUnauthorizedBackend indicates the requested back-end name is
	// unknown or disabled.
	ErrUnauthorizedBackend = errors.New("unauthorized backend")

	// ErrMalformedEmails indicates the desired email set names an
	// address more than once or does not mark exactly one address main.
	ErrMalformedEmails = errors.New("email set must name each address once with exactly one main address")

	// ErrInvalidLimit indicates the limit is not a non-negative integer.
	ErrInvalidLimit = errors.New("invalid limit")

	// ErrInvalidOffset indicates the offset is not a non-negative integer.
	ErrInvalidOffset = errors.New("invalid offset")

	// ErrInvalidSortColumn indicates the order column is not sortable.
	ErrInvalidSortColumn = errors.New("invalid sort column")

	// ErrInvalidSortDirection indicates the direction is neither asc nor desc.
	ErrInvalidSortDirection = errors.New("invalid sort direction")
)

// ConflictError reports a uniqueness violation on a named entity field.
type ConflictError struct {
	Entity string
	Field  string
	Value  string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists: %s=%s", e.Entity, e.Field, e.Value)
}

// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

import "context"

// Tenant partitions users into organizations.
type Tenant struct {
	UUID string
	Name string
}

// TenantsPage is one page of tenants.
type TenantsPage struct {
	Total    uint64
	Filtered uint64
	Tenants  []Tenant
}

// TenantRepository persists tenants and their user memberships.
type TenantRepository interface {
	// Save persists a new tenant.
	Save(ctx context.Context, tenant Tenant) (Tenant, error)

	// Delete removes the tenant and its memberships. A missing tenant
	// yields ErrTenantNotFound.
	Delete(ctx context.Context, id string) error

	// RetrieveByUUID fetches a tenant.
	RetrieveByUUID(ctx context.Context, id string) (Tenant, error)

	// RetrieveAll lists tenants matching the page filters.
	RetrieveAll(ctx context.Context, pm Page) (TenantsPage, error)

	// RetrieveForUser returns the tenants the user belongs to.
	RetrieveForUser(ctx context.Context, userID string) ([]Tenant, error)

	// AddUser makes the user a member. Idempotent.
	AddUser(ctx context.Context, tenantID, userID string) error

	// RemoveUser drops a membership. Removing a missing membership
	// succeeds when both tenant and user exist.
	RemoveUser(ctx context.Context, tenantID, userID string) error

	// Exists reports whether the tenant uuid is known.
	Exists(ctx context.Context, id string) (bool, error)
}

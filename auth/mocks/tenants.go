// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/voxlink/warden/auth"
)

type tenantRepoMock struct {
	mu      sync.Mutex
	order   []string
	tenants map[string]auth.Tenant
	members map[string]map[string]bool
}

// NewTenantRepository returns an in-memory tenant repository mock.
func NewTenantRepository() auth.TenantRepository {
	return &tenantRepoMock{
		tenants: map[string]auth.Tenant{},
		members: map[string]map[string]bool{},
	}
}

func (trm *tenantRepoMock) Save(ctx context.Context, tenant auth.Tenant) (auth.Tenant, error) {
	trm.mu.Lock()
	defer trm.mu.Unlock()

	trm.order = append(trm.order, tenant.UUID)
	trm.tenants[tenant.UUID] = tenant
	return tenant, nil
}

func (trm *tenantRepoMock) Delete(ctx context.Context, id string) error {
	trm.mu.Lock()
	defer trm.mu.Unlock()

	if _, ok := trm.tenants[id]; !ok {
		return auth.ErrTenantNotFound
	}
	delete(trm.tenants, id)
	delete(trm.members, id)
	return nil
}

func (trm *tenantRepoMock) RetrieveByUUID(ctx context.Context, id string) (auth.Tenant, error) {
	trm.mu.Lock()
	defer trm.mu.Unlock()

	tenant, ok := trm.tenants[id]
	if !ok {
		return auth.Tenant{}, auth.ErrTenantNotFound
	}
	return tenant, nil
}

func (trm *tenantRepoMock) RetrieveAll(ctx context.Context, pm auth.Page) (auth.TenantsPage, error) {
	trm.mu.Lock()
	defer trm.mu.Unlock()

	tenants := []auth.Tenant{}
	for _, id := range trm.order {
		tenants = append(tenants, trm.tenants[id])
	}

	return auth.TenantsPage{
		Total:    uint64(len(tenants)),
		Filtered: uint64(len(tenants)),
		Tenants:  tenants,
	}, nil
}

func (trm *tenantRepoMock) RetrieveForUser(ctx context.Context, userID string) ([]auth.Tenant, error) {
	trm.mu.Lock()
	defer trm.mu.Unlock()

	tenants := []auth.Tenant{}
	for id, users := range trm.members {
		if users[userID] {
			tenants = append(tenants, trm.tenants[id])
		}
	}
	sort.Slice(tenants, func(i, j int) bool { return tenants[i].Name < tenants[j].Name })

	return tenants, nil
}

func (trm *tenantRepoMock) AddUser(ctx context.Context, tenantID, userID string) error {
	trm.mu.Lock()
	defer trm.mu.Unlock()

	if _, ok := trm.tenants[tenantID]; !ok {
		return auth.ErrTenantNotFound
	}
	if trm.members[tenantID] == nil {
		trm.members[tenantID] = map[string]bool{}
	}
	trm.members[tenantID][userID] = true
	return nil
}

func (trm *tenantRepoMock) RemoveUser(ctx context.Context, tenantID, userID string) error {
	trm.mu.Lock()
	defer trm.mu.Unlock()

	if _, ok := trm.tenants[tenantID]; !ok {
		return auth.ErrTenantNotFound
	}
	delete(trm.members[tenantID], userID)
	return nil
}

func (trm *tenantRepoMock) Exists(ctx context.Context, id string) (bool, error) {
	trm.mu.Lock()
	defer trm.mu.Unlock()

	_, ok := trm.tenants[id]
	return ok, nil
}

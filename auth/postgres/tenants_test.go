// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package postgres_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxlink/warden/auth"
	"github.com/voxlink/warden/auth/postgres"
	"github.com/voxlink/warden/pkg/errors"
)

func TestTenantSaveRetrieveDelete(t *testing.T) {
	repo := postgres.NewTenantRepository(database)
	ctx := context.Background()

	tenant := auth.Tenant{UUID: generateUUID(t), Name: "acme-" + generateUUID(t)}
	_, err := repo.Save(ctx, tenant)
	require.Nil(t, err, fmt.Sprintf("save tenant unexpected error: %s", err))

	read, err := repo.RetrieveByUUID(ctx, tenant.UUID)
	require.Nil(t, err)
	assert.Equal(t, tenant.Name, read.Name)

	ok, err := repo.Exists(ctx, tenant.UUID)
	require.Nil(t, err)
	assert.True(t, ok)

	require.Nil(t, repo.Delete(ctx, tenant.UUID))

	_, err = repo.RetrieveByUUID(ctx, tenant.UUID)
	assert.True(t, errors.Contains(err, auth.ErrTenantNotFound))
	err = repo.Delete(ctx, tenant.UUID)
	assert.True(t, errors.Contains(err, auth.ErrTenantNotFound))
}

func TestTenantMembership(t *testing.T) {
	tenants := postgres.NewTenantRepository(database)
	ctx := context.Background()

	tenant, err := tenants.Save(ctx, auth.Tenant{UUID: generateUUID(t), Name: "members-" + generateUUID(t)})
	require.Nil(t, err)
	user := saveUser(t, "tenant-member-"+generateUUID(t))

	require.Nil(t, tenants.AddUser(ctx, tenant.UUID, user.UUID))
	assert.Nil(t, tenants.AddUser(ctx, tenant.UUID, user.UUID), "re-adding a member must succeed")

	mine, err := tenants.RetrieveForUser(ctx, user.UUID)
	require.Nil(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, tenant.UUID, mine[0].UUID)

	err = tenants.AddUser(ctx, tenant.UUID, generateUUID(t))
	assert.True(t, errors.Contains(err, auth.ErrUserNotFound))
	err = tenants.AddUser(ctx, generateUUID(t), user.UUID)
	assert.True(t, errors.Contains(err, auth.ErrTenantNotFound))

	require.Nil(t, tenants.RemoveUser(ctx, tenant.UUID, user.UUID))
	assert.Nil(t, tenants.RemoveUser(ctx, tenant.UUID, user.UUID), "removing an absent member of a valid pair must succeed")

	err = tenants.RemoveUser(ctx, generateUUID(t), user.UUID)
	assert.True(t, errors.Contains(err, auth.ErrTenantNotFound))
	err = tenants.RemoveUser(ctx, tenant.UUID, generateUUID(t))
	assert.True(t, errors.Contains(err, auth.ErrUserNotFound))

	mine, err = tenants.RetrieveForUser(ctx, user.UUID)
	require.Nil(t, err)
	assert.Empty(t, mine)
}

func TestTenantRetrieveAll(t *testing.T) {
	tenants := postgres.NewTenantRepository(database)
	ctx := context.Background()

	prefix := "tpage-" + generateUUID(t)[:8]
	for i := 0; i < 3; i++ {
		_, err := tenants.Save(ctx, auth.Tenant{UUID: generateUUID(t), Name: fmt.Sprintf("%s-%d", prefix, i)})
		require.Nil(t, err)
	}

	pm, err := auth.PageQuery{Search: prefix, Limit: "2", Offset: "1"}.Validate("name")
	require.Nil(t, err)

	page, err := tenants.RetrieveAll(ctx, pm)
	require.Nil(t, err)
	assert.Equal(t, uint64(3), page.Filtered)
	require.Len(t, page.Tenants, 2)
	assert.Equal(t, prefix+"-1", page.Tenants[0].Name)
	assert.Equal(t, prefix+"-2", page.Tenants[1].Name)
}

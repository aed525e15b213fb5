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

func TestPolicySaveAndRetrieve(t *testing.T) {
	repo := postgres.NewPolicyRepository(database)
	ctx := context.Background()

	policy := auth.Policy{
		UUID:        generateUUID(t),
		Name:        "policy-" + generateUUID(t),
		Description: "read everything",
		ACLTemplates: []string{
			"confd.users.read",
			"user.{{ .user.uuid }}.#",
			"confd.users.read",
		},
	}

	saved, err := repo.Save(ctx, policy)
	require.Nil(t, err, fmt.Sprintf("save policy unexpected error: %s", err))
	assert.Equal(t, []string{"confd.users.read", "user.{{ .user.uuid }}.#"}, saved.ACLTemplates, "duplicated templates are collapsed")

	read, err := repo.RetrieveByUUID(ctx, policy.UUID)
	require.Nil(t, err)
	assert.Equal(t, policy.Name, read.Name)
	assert.Equal(t, policy.Description, read.Description)
	assert.Equal(t, saved.ACLTemplates, read.ACLTemplates, "association order is preserved")

	_, err = repo.RetrieveByUUID(ctx, generateUUID(t))
	assert.True(t, errors.Contains(err, auth.ErrPolicyNotFound))
}

func TestPolicyWithoutTemplates(t *testing.T) {
	repo := postgres.NewPolicyRepository(database)
	ctx := context.Background()

	policy := auth.Policy{UUID: generateUUID(t), Name: "empty-" + generateUUID(t)}
	_, err := repo.Save(ctx, policy)
	require.Nil(t, err)

	read, err := repo.RetrieveByUUID(ctx, policy.UUID)
	require.Nil(t, err)
	assert.Equal(t, []string{}, read.ACLTemplates, "no templates means an empty list, not nil")
}

func TestPolicySaveDuplicateName(t *testing.T) {
	repo := postgres.NewPolicyRepository(database)
	ctx := context.Background()

	policy := auth.Policy{UUID: generateUUID(t), Name: "dup-" + generateUUID(t)}
	_, err := repo.Save(ctx, policy)
	require.Nil(t, err)

	_, err = repo.Save(ctx, auth.Policy{UUID: generateUUID(t), Name: policy.Name})
	assert.True(t, errors.Contains(err, auth.ErrDuplicatePolicy), fmt.Sprintf("expected %v got %v\n", auth.ErrDuplicatePolicy, err))
}

func TestPolicyUpdate(t *testing.T) {
	repo := postgres.NewPolicyRepository(database)
	ctx := context.Background()

	policy := auth.Policy{
		UUID:         generateUUID(t),
		Name:         "update-" + generateUUID(t),
		ACLTemplates: []string{"confd.lines.read"},
	}
	_, err := repo.Save(ctx, policy)
	require.Nil(t, err)

	policy.Description = "renamed"
	policy.ACLTemplates = []string{"confd.lines.#", "provd.#"}
	_, err = repo.Update(ctx, policy)
	require.Nil(t, err)

	read, err := repo.RetrieveByUUID(ctx, policy.UUID)
	require.Nil(t, err)
	assert.Equal(t, "renamed", read.Description)
	assert.Equal(t, []string{"confd.lines.#", "provd.#"}, read.ACLTemplates, "the template set is replaced wholesale")

	_, err = repo.Update(ctx, auth.Policy{UUID: generateUUID(t), Name: "ghost"})
	assert.True(t, errors.Contains(err, auth.ErrPolicyNotFound))
}

func TestPolicyTemplateAssociations(t *testing.T) {
	repo := postgres.NewPolicyRepository(database)
	ctx := context.Background()

	policy := auth.Policy{UUID: generateUUID(t), Name: "assoc-" + generateUUID(t)}
	_, err := repo.Save(ctx, policy)
	require.Nil(t, err)

	require.Nil(t, repo.AssociateTemplate(ctx, policy.UUID, "confd.users.read"))

	err = repo.AssociateTemplate(ctx, policy.UUID, "confd.users.read")
	assert.True(t, errors.Contains(err, auth.ErrDuplicateTemplate), fmt.Sprintf("expected %v got %v\n", auth.ErrDuplicateTemplate, err))

	require.Nil(t, repo.DissociateTemplate(ctx, policy.UUID, "confd.users.read"))

	read, err := repo.RetrieveByUUID(ctx, policy.UUID)
	require.Nil(t, err)
	assert.Equal(t, []string{}, read.ACLTemplates)

	assert.Nil(t, repo.DissociateTemplate(ctx, policy.UUID, "never.there"), "dissociating a missing template must succeed")
}

func TestPolicyDelete(t *testing.T) {
	repo := postgres.NewPolicyRepository(database)
	ctx := context.Background()

	policy := auth.Policy{UUID: generateUUID(t), Name: "del-" + generateUUID(t), ACLTemplates: []string{"confd.#"}}
	_, err := repo.Save(ctx, policy)
	require.Nil(t, err)

	require.Nil(t, repo.Delete(ctx, policy.UUID))

	_, err = repo.RetrieveByUUID(ctx, policy.UUID)
	assert.True(t, errors.Contains(err, auth.ErrPolicyNotFound))

	err = repo.Delete(ctx, policy.UUID)
	assert.True(t, errors.Contains(err, auth.ErrPolicyNotFound))
}

func TestPolicyRetrieveForUser(t *testing.T) {
	policies := postgres.NewPolicyRepository(database)
	users := postgres.NewUserRepository(database, idProvider)
	groups := postgres.NewGroupRepository(database)
	ctx := context.Background()

	user := saveUser(t, "effective-"+generateUUID(t))
	group, err := groups.Save(ctx, auth.Group{UUID: generateUUID(t), Name: "effective-" + generateUUID(t)})
	require.Nil(t, err)
	require.Nil(t, groups.AddUser(ctx, group.UUID, user.UUID))

	suffix := generateUUID(t)[:8]
	direct, err := policies.Save(ctx, auth.Policy{UUID: generateUUID(t), Name: "b-direct-" + suffix, ACLTemplates: []string{"direct.read"}})
	require.Nil(t, err)
	viaGroup, err := policies.Save(ctx, auth.Policy{UUID: generateUUID(t), Name: "a-group-" + suffix, ACLTemplates: []string{"group.read"}})
	require.Nil(t, err)
	both, err := policies.Save(ctx, auth.Policy{UUID: generateUUID(t), Name: "c-both-" + suffix, ACLTemplates: []string{"both.read"}})
	require.Nil(t, err)

	require.Nil(t, users.AddPolicy(ctx, user.UUID, direct.UUID))
	require.Nil(t, users.AddPolicy(ctx, user.UUID, both.UUID))
	require.Nil(t, groups.AddPolicy(ctx, group.UUID, viaGroup.UUID))
	require.Nil(t, groups.AddPolicy(ctx, group.UUID, both.UUID))

	effective, err := policies.RetrieveForUser(ctx, user.UUID)
	require.Nil(t, err, fmt.Sprintf("retrieve for user unexpected error: %s", err))
	require.Len(t, effective, 3, "a policy granted both ways must appear once")
	assert.Equal(t, viaGroup.UUID, effective[0].UUID, "effective policies are ordered by name")
	assert.Equal(t, direct.UUID, effective[1].UUID)
	assert.Equal(t, both.UUID, effective[2].UUID)
	assert.Equal(t, []string{"group.read"}, effective[0].ACLTemplates)
}

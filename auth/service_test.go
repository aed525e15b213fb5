// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxlink/warden/auth"
	"github.com/voxlink/warden/auth/mocks"
	"github.com/voxlink/warden/pkg/errors"
	"github.com/voxlink/warden/pkg/uuid"
)

const backendName = "native"

type backendMock struct {
	password string
	authID   string
	userID   string
	acls     []string
}

func (b *backendMock) VerifyPassword(ctx context.Context, login, password string, args map[string]interface{}) (bool, error) {
	return password == b.password, nil
}

func (b *backendMock) GetIDs(ctx context.Context, login string, args map[string]interface{}) (string, string, error) {
	return b.authID, b.userID, nil
}

func (b *backendMock) GetACLs(ctx context.Context, login string, args map[string]interface{}) ([]string, error) {
	return append([]string{}, b.acls...), nil
}

type testEnv struct {
	svc      auth.Service
	tokens   auth.TokenRepository
	users    auth.UserRepository
	policies *mocks.PolicyRepository
	groups   auth.GroupRepository
	tenants  auth.TenantRepository
}

func newTestEnv(backend auth.Backend) testEnv {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	registry := auth.NewRegistry(logger)
	if backend != nil {
		registry.Register(backendName, func() (auth.Backend, error) {
			return backend, nil
		})
	}

	env := testEnv{
		tokens:   mocks.NewTokenRepository(),
		users:    mocks.NewUserRepository(),
		policies: mocks.NewPolicyRepository(),
		groups:   mocks.NewGroupRepository(),
		tenants:  mocks.NewTenantRepository(),
	}
	env.svc = auth.New(env.tokens, env.users, env.policies, env.groups, env.tenants, registry, uuid.NewMock(), auth.Config{
		DefaultExpiration: 2 * time.Hour,
		MinExpiration:     10 * time.Second,
		MaxExpiration:     8760 * time.Hour,
	})

	return env
}

func TestIssueUnknownBackend(t *testing.T) {
	env := newTestEnv(nil)

	_, err := env.svc.Issue(context.Background(), "ldap", auth.TokenRequest{Login: "alice", Password: "secret"})
	assert.True(t, errors.Contains(err, auth.ErrUnauthorizedBackend), fmt.Sprintf("expected %v got %v\n", auth.ErrUnauthorizedBackend, err))
}

func TestIssueWrongPassword(t *testing.T) {
	env := newTestEnv(&backendMock{password: "secret", authID: "U1", userID: "U1"})

	_, err := env.svc.Issue(context.Background(), backendName, auth.TokenRequest{Login: "alice", Password: "wrong"})
	assert.True(t, errors.Contains(err, auth.ErrInvalidCredentials), fmt.Sprintf("expected %v got %v\n", auth.ErrInvalidCredentials, err))
}

func TestIssueOrdersBackendACLsFirst(t *testing.T) {
	env := newTestEnv(&backendMock{password: "secret", authID: "U1", userID: "U1", acls: []string{"base.read"}})
	ctx := context.Background()

	_, err := env.policies.Save(ctx, auth.Policy{UUID: "P-beta", Name: "beta", ACLTemplates: []string{"policy.b.read"}})
	require.Nil(t, err)
	_, err = env.policies.Save(ctx, auth.Policy{UUID: "P-alpha", Name: "alpha", ACLTemplates: []string{"policy.a.read", "policy.b.read"}})
	require.Nil(t, err)
	env.policies.Grant("U1", "P-beta")
	env.policies.Grant("U1", "P-alpha")

	token, err := env.svc.Issue(ctx, backendName, auth.TokenRequest{Login: "alice", Password: "secret"})
	require.Nil(t, err)

	assert.Equal(t, []string{"base.read", "policy.a.read", "policy.b.read"}, token.ACLs)
	assert.Equal(t, "U1", token.AuthID)
	assert.Equal(t, "U1", token.UserUUID)
	assert.NotEmpty(t, token.SessionUUID)
}

func TestIssueRendersIdentityTemplates(t *testing.T) {
	env := newTestEnv(&backendMock{password: "secret", authID: "U1", userID: "U1"})
	ctx := context.Background()

	_, err := env.users.Save(ctx, auth.User{UUID: "U1", Username: "alice"})
	require.Nil(t, err)
	_, err = env.policies.Save(ctx, auth.Policy{UUID: "P1", Name: "self", ACLTemplates: []string{"user.{{ .user.uuid }}.read"}})
	require.Nil(t, err)
	env.policies.Grant("U1", "P1")

	token, err := env.svc.Issue(ctx, backendName, auth.TokenRequest{Login: "alice", Password: "secret"})
	require.Nil(t, err)
	assert.Equal(t, []string{"user.U1.read"}, token.ACLs)
}

func TestIssueRendersGroupMemberTemplates(t *testing.T) {
	env := newTestEnv(&backendMock{password: "secret", authID: "U1", userID: "U1"})
	ctx := context.Background()

	_, err := env.users.Save(ctx, auth.User{UUID: "U1", Username: "alice"})
	require.Nil(t, err)
	_, err = env.groups.Save(ctx, auth.Group{
		UUID:  "G1",
		Name:  "one",
		Users: []auth.User{{UUID: "U1"}, {UUID: "U2"}, {UUID: "U3"}},
	})
	require.Nil(t, err)

	tmpl := "{{ range .groups }}{{ range .users }}user.{{ .uuid }}.*\n{{ end }}{{ end }}"
	_, err = env.policies.Save(ctx, auth.Policy{UUID: "P1", Name: "group-wide", ACLTemplates: []string{tmpl}})
	require.Nil(t, err)
	env.policies.Grant("U1", "P1")

	token, err := env.svc.Issue(ctx, backendName, auth.TokenRequest{Login: "alice", Password: "secret"})
	require.Nil(t, err)
	assert.Equal(t, []string{"user.U1.*", "user.U2.*", "user.U3.*"}, token.ACLs)
}

func TestIssueServiceIdentitySkipsPolicies(t *testing.T) {
	env := newTestEnv(&backendMock{password: "secret", authID: "svc-acct", acls: []string{"svc.#"}})
	ctx := context.Background()

	_, err := env.policies.Save(ctx, auth.Policy{UUID: "P1", Name: "self", ACLTemplates: []string{"policy.read"}})
	require.Nil(t, err)

	token, err := env.svc.Issue(ctx, backendName, auth.TokenRequest{Login: "svc-acct", Password: "secret"})
	require.Nil(t, err)
	assert.Equal(t, []string{"svc.#"}, token.ACLs)
	assert.Empty(t, token.UserUUID)
}

func TestIssueClampsExpiration(t *testing.T) {
	cases := []struct {
		desc      string
		requested time.Duration
		lifetime  time.Duration
	}{
		{"absent expiration defaults", 0, 2 * time.Hour},
		{"too short is raised to the floor", time.Second, 10 * time.Second},
		{"too long is capped", 100000 * time.Hour, 8760 * time.Hour},
		{"in-range is kept", 30 * time.Minute, 30 * time.Minute},
	}

	for _, tc := range cases {
		env := newTestEnv(&backendMock{password: "secret", authID: "U1"})

		token, err := env.svc.Issue(context.Background(), backendName, auth.TokenRequest{
			Login:      "alice",
			Password:   "secret",
			Expiration: tc.requested,
		})
		require.Nil(t, err, fmt.Sprintf("%s: unexpected error %v\n", tc.desc, err))

		lifetime := time.Duration(token.ExpireT-token.IssuedT) * time.Second
		assert.Equal(t, tc.lifetime, lifetime, fmt.Sprintf("%s: expected %v got %v\n", tc.desc, tc.lifetime, lifetime))
	}
}

func TestIssueReusesSessionUUID(t *testing.T) {
	env := newTestEnv(&backendMock{password: "secret", authID: "U1"})
	ctx := context.Background()

	first, err := env.svc.Issue(ctx, backendName, auth.TokenRequest{Login: "alice", Password: "secret"})
	require.Nil(t, err)
	second, err := env.svc.Issue(ctx, backendName, auth.TokenRequest{
		Login:       "alice",
		Password:    "secret",
		SessionUUID: first.SessionUUID,
	})
	require.Nil(t, err)

	assert.Equal(t, first.SessionUUID, second.SessionUUID)
	assert.NotEqual(t, first.UUID, second.UUID)
}

func TestRevokeIsIdempotent(t *testing.T) {
	env := newTestEnv(&backendMock{password: "secret", authID: "U1"})
	ctx := context.Background()

	token, err := env.svc.Issue(ctx, backendName, auth.TokenRequest{Login: "alice", Password: "secret"})
	require.Nil(t, err)

	assert.Nil(t, env.svc.Revoke(ctx, token.UUID))
	assert.Nil(t, env.svc.Revoke(ctx, token.UUID))

	_, err = env.svc.Retrieve(ctx, token.UUID)
	assert.True(t, errors.Contains(err, auth.ErrTokenNotFound), fmt.Sprintf("expected %v got %v\n", auth.ErrTokenNotFound, err))
}

func TestValidate(t *testing.T) {
	env := newTestEnv(nil)
	ctx := context.Background()
	now := time.Now()

	_, err := env.tokens.Save(ctx, auth.Token{
		UUID:    "T-live",
		AuthID:  "U1",
		IssuedT: now.Unix(),
		ExpireT: now.Add(time.Hour).Unix(),
		ACLs:    []string{"confd.#", "!confd.users.delete"},
	})
	require.Nil(t, err)
	_, err = env.tokens.Save(ctx, auth.Token{
		UUID:    "T-expired",
		AuthID:  "U1",
		IssuedT: now.Add(-2 * time.Hour).Unix(),
		ExpireT: now.Add(-time.Hour).Unix(),
		ACLs:    []string{"confd.#"},
	})
	require.Nil(t, err)

	cases := []struct {
		desc     string
		id       string
		required string
		valid    bool
	}{
		{"granted acl", "T-live", "confd.users.read", true},
		{"empty required acl", "T-live", "", true},
		{"denied acl", "T-live", "dird.me.read", false},
		{"negative rule wins", "T-live", "confd.users.delete", false},
		{"expired token", "T-expired", "confd.users.read", false},
		{"unknown token", "T-missing", "confd.users.read", false},
	}

	for _, tc := range cases {
		valid, err := env.svc.Validate(ctx, tc.id, tc.required)
		assert.Nil(t, err, fmt.Sprintf("%s: unexpected error %v\n", tc.desc, err))
		assert.Equal(t, tc.valid, valid, fmt.Sprintf("%s: expected %v got %v\n", tc.desc, tc.valid, valid))
	}
}

func TestUpdateUserEmailsConfirmedHandling(t *testing.T) {
	ctx := context.Background()
	seed := auth.User{
		UUID:     "U1",
		Username: "alice",
		Emails: []auth.Email{
			{UUID: "E1", Address: "alice@example.com", Main: true, Confirmed: true},
		},
	}
	desired := []auth.Email{
		{Address: "alice@example.com", Main: true, Confirmed: false},
		{Address: "ally@example.com", Main: false, Confirmed: true},
	}

	env := newTestEnv(nil)
	_, err := env.users.Save(ctx, seed)
	require.Nil(t, err)

	emails, err := env.svc.UpdateUserEmails(ctx, "U1", desired, false)
	require.Nil(t, err)
	require.Len(t, emails, 2)
	assert.Equal(t, "E1", emails[0].UUID, "an existing address keeps its uuid")
	assert.True(t, emails[0].Confirmed, "without admin rights the stored flag is preserved")
	assert.False(t, emails[1].Confirmed, "without admin rights a new address starts unconfirmed")

	env = newTestEnv(nil)
	_, err = env.users.Save(ctx, seed)
	require.Nil(t, err)

	emails, err = env.svc.UpdateUserEmails(ctx, "U1", desired, true)
	require.Nil(t, err)
	require.Len(t, emails, 2)
	assert.False(t, emails[0].Confirmed, "an admin overrides the stored flag")
	assert.True(t, emails[1].Confirmed, "an admin confirms a new address directly")
}

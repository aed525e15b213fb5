// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"time"

	"github.com/voxlink/warden"
	"github.com/voxlink/warden/pkg/errors"
	svcerr "github.com/voxlink/warden/pkg/errors/service"
)

// Config holds the token minting tunables. Requested expirations are
// clamped to [MinExpiration, MaxExpiration]; an absent expiration
// falls back to DefaultExpiration.
type Config struct {
	DefaultExpiration time.Duration `env:"TOKEN_DEFAULT_EXPIRATION" envDefault:"2h"`
	MinExpiration     time.Duration `env:"TOKEN_MIN_EXPIRATION"     envDefault:"10s"`
	MaxExpiration     time.Duration `env:"TOKEN_MAX_EXPIRATION"     envDefault:"8760h"`
	InstanceUUID      string        `env:"INSTANCE_UUID"            envDefault:""`
}

// TokenRequest carries the mint inputs beyond the back-end name.
type TokenRequest struct {
	Login        string
	Password     string
	Expiration   time.Duration
	SessionUUID  string
	UserAgent    string
	RemoteAddr   string
	Metadata     map[string]interface{}
	RefreshToken string
	Args         map[string]interface{}
}

// Service is the token manager: it mints tokens against a named
// back-end, revokes, fetches and validates them, and maintains user
// email sets.
type Service interface {
	// Issue mints a token: credential check, identity resolution, ACL
	// expansion, persistence. Back-end ACLs come first in the token
	// ACL set, followed by policy expansion output in policy name
	// order, then template order.
	Issue(ctx context.Context, backendName string, req TokenRequest) (Token, error)

	// Revoke deletes a token unconditionally. Idempotent.
	Revoke(ctx context.Context, id string) error

	// Retrieve fetches a token without extending its lifetime.
	Retrieve(ctx context.Context, id string) (Token, error)

	// Validate reports whether the token exists, has not expired and
	// grants the required ACL.
	Validate(ctx context.Context, id, requiredACL string) (bool, error)

	// UpdateUserEmails reconciles a user's email set. Without admin
	// rights the confirmed flags of the request are ignored: existing
	// addresses keep their stored flag, new addresses start
	// unconfirmed.
	UpdateUserEmails(ctx context.Context, userID string, desired []Email, asAdmin bool) ([]Email, error)
}

type service struct {
	tokens   TokenRepository
	users    UserRepository
	policies PolicyRepository
	groups   GroupRepository
	tenants  TenantRepository
	backends *Registry
	idp      warden.IDProvider
	cfg      Config
}

var _ Service = (*service)(nil)

// New returns a token manager backed by the given repositories and
// back-end registry.
func New(tokens TokenRepository, users UserRepository, policies PolicyRepository, groups GroupRepository, tenants TenantRepository, backends *Registry, idp warden.IDProvider, cfg Config) Service {
	return &service{
		tokens:   tokens,
		users:    users,
		policies: policies,
		groups:   groups,
		tenants:  tenants,
		backends: backends,
		idp:      idp,
		cfg:      cfg,
	}
}

func (svc *service) Issue(ctx context.Context, backendName string, req TokenRequest) (Token, error) {
	backend, err := svc.backends.Get(backendName)
	if err != nil {
		return Token{}, err
	}

	ok, err := backend.VerifyPassword(ctx, req.Login, req.Password, req.Args)
	if err != nil {
		return Token{}, errors.Wrap(svcerr.ErrAuthentication, err)
	}
	if !ok {
		return Token{}, ErrInvalidCredentials
	}

	authID, userID, err := backend.GetIDs(ctx, req.Login, req.Args)
	if err != nil {
		return Token{}, errors.Wrap(svcerr.ErrAuthentication, err)
	}

	acls, err := backend.GetACLs(ctx, req.Login, req.Args)
	if err != nil {
		return Token{}, errors.Wrap(svcerr.ErrAuthentication, err)
	}

	if userID != "" {
		expanded, err := svc.expandPolicyACLs(ctx, userID)
		if err != nil {
			return Token{}, err
		}
		acls = append(acls, expanded...)
	}

	id, err := svc.idp.ID()
	if err != nil {
		return Token{}, errors.Wrap(svcerr.ErrUniqueID, err)
	}
	sessionID := req.SessionUUID
	if sessionID == "" {
		if sessionID, err = svc.idp.ID(); err != nil {
			return Token{}, errors.Wrap(svcerr.ErrUniqueID, err)
		}
	}

	now := time.Now()
	token := Token{
		UUID:         id,
		AuthID:       authID,
		UserUUID:     userID,
		InstanceUUID: svc.cfg.InstanceUUID,
		IssuedT:      now.Unix(),
		ExpireT:      now.Add(svc.clampExpiration(req.Expiration)).Unix(),
		SessionUUID:  sessionID,
		UserAgent:    req.UserAgent,
		RemoteAddr:   req.RemoteAddr,
		Metadata:     req.Metadata,
		ACLs:         acls,
		RefreshToken: req.RefreshToken,
	}

	if _, err := svc.tokens.Save(ctx, token); err != nil {
		return Token{}, errors.Wrap(svcerr.ErrCreateEntity, err)
	}

	return token, nil
}

func (svc *service) Revoke(ctx context.Context, id string) error {
	return svc.tokens.Remove(ctx, id)
}

func (svc *service) Retrieve(ctx context.Context, id string) (Token, error) {
	return svc.tokens.Retrieve(ctx, id)
}

func (svc *service) Validate(ctx context.Context, id, requiredACL string) (bool, error) {
	token, err := svc.tokens.Retrieve(ctx, id)
	if err != nil {
		if errors.Contains(err, ErrTokenNotFound) {
			return false, nil
		}
		return false, err
	}

	if token.IsExpired(time.Now()) {
		return false, nil
	}

	return token.MatchesRequiredACL(requiredACL), nil
}

func (svc *service) UpdateUserEmails(ctx context.Context, userID string, desired []Email, asAdmin bool) ([]Email, error) {
	updates := make([]EmailUpdate, 0, len(desired))
	for _, e := range desired {
		u := EmailUpdate{
			Address: e.Address,
			Main:    e.Main,
		}
		if asAdmin {
			confirmed := e.Confirmed
			u.Confirmed = &confirmed
		}
		updates = append(updates, u)
	}

	return svc.users.UpdateEmails(ctx, userID, updates)
}

// expandPolicyACLs renders the ACL templates of the user's effective
// policies. Templates are deduplicated by content, keeping the first
// occurrence while walking policies in name order, so a single
// renderer fetches the identity context at most once.
func (svc *service) expandPolicyACLs(ctx context.Context, userID string) ([]string, error) {
	policies, err := svc.policies.RetrieveForUser(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(svcerr.ErrViewEntity, err)
	}

	seen := map[string]struct{}{}
	templates := []string{}
	for _, p := range policies {
		for _, t := range p.ACLTemplates {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			templates = append(templates, t)
		}
	}

	return NewRenderer(templates, svc.identityContext(userID)).Render(ctx)
}

// identityContext defers the expensive identity graph snapshot until a
// template actually references it.
func (svc *service) identityContext(userID string) ContextFunc {
	return func(ctx context.Context) (map[string]interface{}, error) {
		user, err := svc.users.RetrieveByUUID(ctx, userID)
		if err != nil {
			return nil, errors.Wrap(svcerr.ErrViewEntity, err)
		}
		groups, err := svc.groups.RetrieveForUser(ctx, userID)
		if err != nil {
			return nil, errors.Wrap(svcerr.ErrViewEntity, err)
		}
		tenants, err := svc.tenants.RetrieveForUser(ctx, userID)
		if err != nil {
			return nil, errors.Wrap(svcerr.ErrViewEntity, err)
		}

		groupMaps := make([]interface{}, 0, len(groups))
		for _, g := range groups {
			users := make([]interface{}, 0, len(g.Users))
			for _, u := range g.Users {
				users = append(users, userContext(u))
			}
			groupMaps = append(groupMaps, map[string]interface{}{
				"uuid":  g.UUID,
				"name":  g.Name,
				"users": users,
			})
		}

		tenantMaps := make([]interface{}, 0, len(tenants))
		for _, t := range tenants {
			tenantMaps = append(tenantMaps, map[string]interface{}{
				"uuid": t.UUID,
				"name": t.Name,
			})
		}

		return map[string]interface{}{
			"user":    userContext(user),
			"groups":  groupMaps,
			"tenants": tenantMaps,
		}, nil
	}
}

func userContext(u User) map[string]interface{} {
	return map[string]interface{}{
		"uuid":      u.UUID,
		"username":  u.Username,
		"firstname": u.FirstName,
		"lastname":  u.LastName,
	}
}

func (svc *service) clampExpiration(expiration time.Duration) time.Duration {
	if expiration == 0 {
		expiration = svc.cfg.DefaultExpiration
	}
	if expiration < svc.cfg.MinExpiration {
		return svc.cfg.MinExpiration
	}
	if expiration > svc.cfg.MaxExpiration {
		return svc.cfg.MaxExpiration
	}
	return expiration
}

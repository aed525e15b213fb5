// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"time"
)

// isoFormat is the timestamp layout of the token payload.
const isoFormat = "2006-01-02T15:04:05"

// Token is an opaque bearer token together with the identity and ACL
// set stamped on it at mint time. Tokens are value objects: immutable
// once minted, deleted on revocation or expiry.
type Token struct {
	UUID         string
	AuthID       string
	UserUUID     string
	InstanceUUID string
	IssuedT      int64
	ExpireT      int64
	SessionUUID  string
	UserAgent    string
	RemoteAddr   string
	Metadata     map[string]interface{}
	ACLs         []string
	RefreshToken string
}

// Session groups the tokens minted under one session uuid. Lifecycle
// events are emitted per session, not per token.
type Session struct {
	UUID string
}

// IsExpired reports whether the token expired before now.
func (t Token) IsExpired(now time.Time) bool {
	return t.ExpireT < now.Unix()
}

// MatchesRequiredACL decides whether the token grants the required ACL.
func (t Token) MatchesRequiredACL(required string) bool {
	return MatchACL(t.AuthID, t.ACLs, required)
}

// TenantUUID returns the tenant recorded in the token metadata, if any.
func (t Token) TenantUUID() string {
	if t.Metadata == nil {
		return ""
	}
	if v, ok := t.Metadata["tenant_uuid"].(string); ok {
		return v
	}
	return ""
}

// Payload returns the wire shape of the token: identifiers, the ACL
// set, opaque metadata, and issue/expiry timestamps in both local and
// UTC ISO form.
func (t Token) Payload() map[string]interface{} {
	issued := time.Unix(t.IssuedT, 0)
	expires := time.Unix(t.ExpireT, 0)

	payload := map[string]interface{}{
		"token":          t.UUID,
		"auth_id":        t.AuthID,
		"xivo_user_uuid": t.UserUUID,
		"xivo_uuid":      t.InstanceUUID,
		"issued_at":      issued.Format(isoFormat),
		"expires_at":     expires.Format(isoFormat),
		"utc_issued_at":  issued.UTC().Format(isoFormat),
		"utc_expires_at": expires.UTC().Format(isoFormat),
		"acls":           t.ACLs,
		"metadata":       t.Metadata,
		"session_uuid":   t.SessionUUID,
		"remote_addr":    t.RemoteAddr,
		"user_agent":     t.UserAgent,
	}
	if t.RefreshToken != "" {
		payload["refresh_token"] = t.RefreshToken
	}

	return payload
}

// TokenRepository persists tokens and their sessions.
type TokenRepository interface {
	// Save persists the token, creating its session when it does not
	// exist yet, and returns the token uuid.
	Save(ctx context.Context, token Token) (string, error)

	// Retrieve fetches a token by uuid. A missing token yields
	// ErrTokenNotFound.
	Retrieve(ctx context.Context, id string) (Token, error)

	// Remove deletes a token and garbage-collects its session when no
	// other token references it. Removing a missing token succeeds.
	Remove(ctx context.Context, id string) error

	// RemoveExpired deletes, in one transaction, every token whose
	// expiry passed and every session left without tokens, returning
	// summaries of the deleted rows.
	RemoveExpired(ctx context.Context) ([]Token, []Session, error)

	// RetrieveExpiringWithin returns the tokens expiring in
	// (now, now+window] together with their sessions.
	RetrieveExpiringWithin(ctx context.Context, window time.Duration) ([]Token, []Session, error)
}

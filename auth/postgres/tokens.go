// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/voxlink/warden/auth"
	"github.com/voxlink/warden/pkg/errors"
	repoerr "github.com/voxlink/warden/pkg/errors/repository"
	"github.com/voxlink/warden/pkg/postgres"
)

type tokenRepo struct {
	db postgres.Database
}

// NewTokenRepository instantiates the PostgreSQL token repository.
func NewTokenRepository(db postgres.Database) auth.TokenRepository {
	return &tokenRepo{db: db}
}

func (tr *tokenRepo) Save(ctx context.Context, token auth.Token) (string, error) {
	dbt, err := toDBToken(token)
	if err != nil {
		return "", errors.Wrap(repoerr.ErrCreateEntity, err)
	}

	tx, err := tr.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(repoerr.ErrCreateEntity, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `INSERT INTO auth_session (uuid) VALUES ($1) ON CONFLICT (uuid) DO NOTHING`, token.SessionUUID); err != nil {
		return "", postgres.HandleError(repoerr.ErrCreateEntity, err)
	}

	q := `INSERT INTO auth_token (uuid, auth_id, user_uuid, xivo_uuid, issued_t, expire_t, session_uuid, user_agent, remote_addr, metadata, refresh_token)
	      VALUES (:uuid, :auth_id, :user_uuid, :xivo_uuid, :issued_t, :expire_t, :session_uuid, :user_agent, :remote_addr, :metadata, :refresh_token)`
	if _, err := tx.NamedExecContext(ctx, q, dbt); err != nil {
		return "", postgres.HandleError(repoerr.ErrCreateEntity, err)
	}

	for _, acl := range token.ACLs {
		if _, err := tx.ExecContext(ctx, `INSERT INTO auth_acl (value, token_uuid) VALUES ($1, $2)`, acl, token.UUID); err != nil {
			return "", postgres.HandleError(repoerr.ErrCreateEntity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(repoerr.ErrCreateEntity, err)
	}

	return token.UUID, nil
}

func (tr *tokenRepo) Retrieve(ctx context.Context, id string) (auth.Token, error) {
	q := `SELECT uuid, auth_id, user_uuid, xivo_uuid, issued_t, expire_t, session_uuid, user_agent, remote_addr, metadata, refresh_token
	      FROM auth_token WHERE uuid = :uuid`

	rows, err := tr.db.NamedQueryContext(ctx, q, dbToken{UUID: id})
	if err != nil {
		return auth.Token{}, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return auth.Token{}, auth.ErrTokenNotFound
	}

	var dbt dbToken
	if err := rows.StructScan(&dbt); err != nil {
		return auth.Token{}, errors.Wrap(repoerr.ErrFailedOpDB, err)
	}

	token, err := toToken(dbt)
	if err != nil {
		return auth.Token{}, errors.Wrap(repoerr.ErrFailedOpDB, err)
	}

	acls, err := tr.retrieveACLs(ctx, id)
	if err != nil {
		return auth.Token{}, err
	}
	token.ACLs = acls

	return token, nil
}

func (tr *tokenRepo) Remove(ctx context.Context, id string) error {
	tx, err := tr.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(repoerr.ErrRemoveEntity, err)
	}
	defer func() { _ = tx.Rollback() }()

	var sessionID string
	err = tx.QueryRowxContext(ctx, `DELETE FROM auth_token WHERE uuid = $1 RETURNING session_uuid`, id).Scan(&sessionID)
	switch {
	case err == nil:
		q := `DELETE FROM auth_session WHERE uuid = $1
		      AND NOT EXISTS (SELECT 1 FROM auth_token WHERE session_uuid = $1)`
		if _, err := tx.ExecContext(ctx, q, sessionID); err != nil {
			return postgres.HandleError(repoerr.ErrRemoveEntity, err)
		}
	case isNoRows(err):
		// Removing a missing token succeeds.
	default:
		return postgres.HandleError(repoerr.ErrRemoveEntity, err)
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(repoerr.ErrRemoveEntity, err)
	}

	return nil
}

func (tr *tokenRepo) RemoveExpired(ctx context.Context) ([]auth.Token, []auth.Session, error) {
	tx, err := tr.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, nil, errors.Wrap(repoerr.ErrRemoveEntity, err)
	}
	defer func() { _ = tx.Rollback() }()

	q := `DELETE FROM auth_token WHERE expire_t < $1
	      RETURNING uuid, auth_id, user_uuid, xivo_uuid, issued_t, expire_t, session_uuid, user_agent, remote_addr, metadata, refresh_token`
	rows, err := tx.QueryxContext(ctx, q, time.Now().Unix())
	if err != nil {
		return nil, nil, postgres.HandleError(repoerr.ErrRemoveEntity, err)
	}
	tokens, err := scanTokens(rows)
	if err != nil {
		return nil, nil, err
	}

	sessionRows, err := tx.QueryxContext(ctx, `DELETE FROM auth_session s WHERE NOT EXISTS (SELECT 1 FROM auth_token t WHERE t.session_uuid = s.uuid) RETURNING uuid`)
	if err != nil {
		return nil, nil, postgres.HandleError(repoerr.ErrRemoveEntity, err)
	}
	sessions := []auth.Session{}
	for sessionRows.Next() {
		var s auth.Session
		if err := sessionRows.Scan(&s.UUID); err != nil {
			sessionRows.Close()
			return nil, nil, errors.Wrap(repoerr.ErrFailedOpDB, err)
		}
		sessions = append(sessions, s)
	}
	sessionRows.Close()

	if err := tx.Commit(); err != nil {
		return nil, nil, errors.Wrap(repoerr.ErrRemoveEntity, err)
	}

	return tokens, sessions, nil
}

func (tr *tokenRepo) RetrieveExpiringWithin(ctx context.Context, window time.Duration) ([]auth.Token, []auth.Session, error) {
	now := time.Now().Unix()

	q := `SELECT uuid, auth_id, user_uuid, xivo_uuid, issued_t, expire_t, session_uuid, user_agent, remote_addr, metadata, refresh_token
	      FROM auth_token WHERE expire_t > $1 AND expire_t <= $2`
	rows, err := tr.db.QueryxContext(ctx, q, now, now+int64(window.Seconds()))
	if err != nil {
		return nil, nil, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	tokens, err := scanTokens(rows)
	if err != nil {
		return nil, nil, err
	}

	sessions := []auth.Session{}
	seen := map[string]struct{}{}
	for _, token := range tokens {
		if _, ok := seen[token.SessionUUID]; ok {
			continue
		}
		seen[token.SessionUUID] = struct{}{}
		sessions = append(sessions, auth.Session{UUID: token.SessionUUID})
	}

	return tokens, sessions, nil
}

func (tr *tokenRepo) retrieveACLs(ctx context.Context, tokenID string) ([]string, error) {
	rows, err := tr.db.QueryxContext(ctx, `SELECT value FROM auth_acl WHERE token_uuid = $1 ORDER BY id`, tokenID)
	if err != nil {
		return nil, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	defer rows.Close()

	acls := []string{}
	for rows.Next() {
		var acl string
		if err := rows.Scan(&acl); err != nil {
			return nil, errors.Wrap(repoerr.ErrFailedOpDB, err)
		}
		acls = append(acls, acl)
	}

	return acls, nil
}

type dbToken struct {
	UUID         string  `db:"uuid"`
	AuthID       string  `db:"auth_id"`
	UserUUID     *string `db:"user_uuid"`
	InstanceUUID *string `db:"xivo_uuid"`
	IssuedT      int64   `db:"issued_t"`
	ExpireT      int64   `db:"expire_t"`
	SessionUUID  string  `db:"session_uuid"`
	UserAgent    *string `db:"user_agent"`
	RemoteAddr   *string `db:"remote_addr"`
	Metadata     *string `db:"metadata"`
	RefreshToken *string `db:"refresh_token"`
}

func toDBToken(token auth.Token) (dbToken, error) {
	dbt := dbToken{
		UUID:         token.UUID,
		AuthID:       token.AuthID,
		UserUUID:     nullable(token.UserUUID),
		InstanceUUID: nullable(token.InstanceUUID),
		IssuedT:      token.IssuedT,
		ExpireT:      token.ExpireT,
		SessionUUID:  token.SessionUUID,
		UserAgent:    nullable(token.UserAgent),
		RemoteAddr:   nullable(token.RemoteAddr),
		RefreshToken: nullable(token.RefreshToken),
	}

	if len(token.Metadata) > 0 {
		raw, err := json.Marshal(token.Metadata)
		if err != nil {
			return dbToken{}, err
		}
		metadata := string(raw)
		dbt.Metadata = &metadata
	}

	return dbt, nil
}

func toToken(dbt dbToken) (auth.Token, error) {
	token := auth.Token{
		UUID:         dbt.UUID,
		AuthID:       dbt.AuthID,
		UserUUID:     deref(dbt.UserUUID),
		InstanceUUID: deref(dbt.InstanceUUID),
		IssuedT:      dbt.IssuedT,
		ExpireT:      dbt.ExpireT,
		SessionUUID:  dbt.SessionUUID,
		UserAgent:    deref(dbt.UserAgent),
		RemoteAddr:   deref(dbt.RemoteAddr),
		RefreshToken: deref(dbt.RefreshToken),
	}

	if dbt.Metadata != nil && *dbt.Metadata != "" {
		if err := json.Unmarshal([]byte(*dbt.Metadata), &token.Metadata); err != nil {
			return auth.Token{}, err
		}
	}

	return token, nil
}

func scanTokens(rows *sqlx.Rows) ([]auth.Token, error) {
	defer rows.Close()

	tokens := []auth.Token{}
	for rows.Next() {
		var dbt dbToken
		if err := rows.StructScan(&dbt); err != nil {
			return nil, errors.Wrap(repoerr.ErrFailedOpDB, err)
		}
		token, err := toToken(dbt)
		if err != nil {
			return nil, errors.Wrap(repoerr.ErrFailedOpDB, err)
		}
		tokens = append(tokens, token)
	}

	return tokens, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/voxlink/warden"
	"github.com/voxlink/warden/auth"
	"github.com/voxlink/warden/pkg/errors"
	repoerr "github.com/voxlink/warden/pkg/errors/repository"
	"github.com/voxlink/warden/pkg/postgres"
)

type userRepo struct {
	db  postgres.Database
	idp warden.IDProvider
}

// NewUserRepository instantiates the PostgreSQL user repository. The
// id provider allocates uuids for email rows created during set
// reconciliation.
func NewUserRepository(db postgres.Database, idp warden.IDProvider) auth.UserRepository {
	return &userRepo{
		db:  db,
		idp: idp,
	}
}

func (ur *userRepo) Save(ctx context.Context, user auth.User) (auth.User, error) {
	if len(user.Emails) == 0 {
		return auth.User{}, errors.Wrap(repoerr.ErrCreateEntity, errors.New("user needs a main email"))
	}

	tx, err := ur.db.BeginTxx(ctx, nil)
	if err != nil {
		return auth.User{}, errors.Wrap(repoerr.ErrCreateEntity, err)
	}
	defer func() { _ = tx.Rollback() }()

	q := `INSERT INTO auth_user (uuid, username, firstname, lastname, password_hash, password_salt)
	      VALUES (:uuid, :username, :firstname, :lastname, :password_hash, :password_salt)`
	if _, err := tx.NamedExecContext(ctx, q, toDBUser(user)); err != nil {
		return auth.User{}, ur.translateUserError(err, user)
	}

	email := user.Emails[0]
	email.Main = true
	if email.UUID == "" {
		if email.UUID, err = ur.idp.ID(); err != nil {
			return auth.User{}, errors.Wrap(repoerr.ErrCreateEntity, err)
		}
	}
	if err := insertEmail(ctx, tx, user.UUID, email); err != nil {
		return auth.User{}, ur.translateUserError(err, user)
	}

	if err := tx.Commit(); err != nil {
		return auth.User{}, errors.Wrap(repoerr.ErrCreateEntity, err)
	}

	user.Emails = []auth.Email{email}

	return user, nil
}

func (ur *userRepo) RetrieveByUUID(ctx context.Context, id string) (auth.User, error) {
	q := `SELECT uuid, username, firstname, lastname, password_hash, password_salt FROM auth_user WHERE uuid = :uuid`

	rows, err := ur.db.NamedQueryContext(ctx, q, dbUser{UUID: id})
	if err != nil {
		return auth.User{}, postgres.HandleError(repoerr.ErrViewEntity, err)
	}

	var dbu dbUser
	if !rows.Next() {
		rows.Close()
		return auth.User{}, auth.ErrUserNotFound
	}
	if err := rows.StructScan(&dbu); err != nil {
		rows.Close()
		return auth.User{}, errors.Wrap(repoerr.ErrFailedOpDB, err)
	}
	rows.Close()

	user := toUser(dbu)
	if user.Emails, err = ur.retrieveEmails(ctx, id); err != nil {
		return auth.User{}, err
	}

	return user, nil
}

func (ur *userRepo) RetrieveCredentials(ctx context.Context, username string) (auth.User, error) {
	q := `SELECT uuid, username, firstname, lastname, password_hash, password_salt FROM auth_user WHERE username = :username`

	rows, err := ur.db.NamedQueryContext(ctx, q, dbUser{Username: username})
	if err != nil {
		return auth.User{}, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return auth.User{}, auth.ErrUsernameNotFound
	}

	var dbu dbUser
	if err := rows.StructScan(&dbu); err != nil {
		return auth.User{}, errors.Wrap(repoerr.ErrFailedOpDB, err)
	}

	return toUser(dbu), nil
}

func (ur *userRepo) RetrieveAll(ctx context.Context, pm auth.Page) (auth.UsersPage, error) {
	params := map[string]interface{}{"search": searchPattern(pm.Search)}
	strict := strictClauses(pm.Filters, map[string]string{
		"uuid":          "u.uuid",
		"username":      "u.username",
		"email_address": "e.address",
	}, params)
	if tenant, ok := pm.Filters["tenant_uuid"]; ok {
		strict = append(strict, `u.uuid IN (SELECT user_uuid FROM auth_tenant_user WHERE tenant_uuid = :tenant_uuid)`)
		params["tenant_uuid"] = tenant
	}
	search := searchClause(pm.Search, "u.username", "u.firstname", "u.lastname", "e.address")
	where := whereClause(append([]string{search}, strict...)...)

	base := `FROM auth_user u
	         LEFT JOIN auth_user_email ue ON ue.user_uuid = u.uuid
	         LEFT JOIN auth_email e ON e.uuid = ue.email_uuid `

	inner := applyPaging(`SELECT DISTINCT u.uuid, u.username, u.firstname, u.lastname, u.password_hash, u.password_salt `+base+where, qualifyOrder(pm, "u"))
	q := `SELECT f.uuid, f.username, f.firstname, f.lastname, f.password_hash, f.password_salt,
	             e.uuid AS email_uuid, e.address AS email_address, e.confirmed AS email_confirmed, ue.main AS email_main
	      FROM (` + inner + `) f
	      LEFT JOIN auth_user_email ue ON ue.user_uuid = f.uuid
	      LEFT JOIN auth_email e ON e.uuid = ue.email_uuid
	      ORDER BY f.` + pm.Order + ` ` + pm.Direction + `, e.address`

	rows, err := ur.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return auth.UsersPage{}, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	users, err := foldUserRows(rows)
	if err != nil {
		return auth.UsersPage{}, err
	}

	total, err := postgres.Total(ctx, ur.db, `SELECT COUNT(*) FROM auth_user u`, map[string]interface{}{})
	if err != nil {
		return auth.UsersPage{}, errors.Wrap(repoerr.ErrViewEntity, err)
	}
	filtered, err := postgres.Total(ctx, ur.db, `SELECT COUNT(DISTINCT u.uuid) `+base+where, params)
	if err != nil {
		return auth.UsersPage{}, errors.Wrap(repoerr.ErrViewEntity, err)
	}

	return auth.UsersPage{
		Total:    total,
		Filtered: filtered,
		Users:    users,
	}, nil
}

func (ur *userRepo) UpdateEmails(ctx context.Context, userID string, desired []auth.EmailUpdate) ([]auth.Email, error) {
	if err := validateEmailSet(desired); err != nil {
		return nil, err
	}

	tx, err := ur.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(repoerr.ErrUpdateEntity, err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowxContext(ctx, `SELECT EXISTS (SELECT 1 FROM auth_user WHERE uuid = $1)`, userID).Scan(&exists); err != nil {
		return nil, postgres.HandleError(repoerr.ErrUpdateEntity, err)
	}
	if !exists {
		return nil, auth.ErrUserNotFound
	}

	existing, err := emailsInTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	existingByAddress := map[string]auth.Email{}
	for _, e := range existing {
		existingByAddress[e.Address] = e
	}

	// Clear main flags first so the partial unique index never sees
	// two main rows mid-reconcile.
	if _, err := tx.ExecContext(ctx, `UPDATE auth_user_email SET main = FALSE WHERE user_uuid = $1`, userID); err != nil {
		return nil, postgres.HandleError(repoerr.ErrUpdateEntity, err)
	}

	final := make([]auth.Email, 0, len(desired))
	kept := map[string]struct{}{}
	for _, d := range desired {
		if current, ok := existingByAddress[d.Address]; ok {
			kept[d.Address] = struct{}{}
			confirmed := current.Confirmed
			if d.Confirmed != nil {
				confirmed = *d.Confirmed
			}
			if _, err := tx.ExecContext(ctx, `UPDATE auth_email SET confirmed = $1 WHERE uuid = $2`, confirmed, current.UUID); err != nil {
				return nil, postgres.HandleError(repoerr.ErrUpdateEntity, err)
			}
			if _, err := tx.ExecContext(ctx, `UPDATE auth_user_email SET main = $1 WHERE user_uuid = $2 AND email_uuid = $3`, d.Main, userID, current.UUID); err != nil {
				return nil, postgres.HandleError(repoerr.ErrUpdateEntity, err)
			}
			final = append(final, auth.Email{UUID: current.UUID, Address: d.Address, Main: d.Main, Confirmed: confirmed})
			continue
		}

		email := auth.Email{Address: d.Address, Main: d.Main}
		if d.Confirmed != nil {
			email.Confirmed = *d.Confirmed
		}
		if email.UUID, err = ur.idp.ID(); err != nil {
			return nil, errors.Wrap(repoerr.ErrUpdateEntity, err)
		}
		if err := insertEmail(ctx, tx, userID, email); err != nil {
			return nil, ur.translateEmailError(err, email.Address)
		}
		final = append(final, email)
	}

	for _, e := range existing {
		if _, ok := kept[e.Address]; ok {
			continue
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM auth_email WHERE uuid = $1`, e.UUID); err != nil {
			return nil, postgres.HandleError(repoerr.ErrUpdateEntity, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(repoerr.ErrUpdateEntity, err)
	}

	return final, nil
}

func (ur *userRepo) UpdatePassword(ctx context.Context, id, hash, salt string) error {
	res, err := ur.db.ExecContext(ctx, `UPDATE auth_user SET password_hash = $1, password_salt = $2 WHERE uuid = $3`, hash, salt, id)
	if err != nil {
		return postgres.HandleError(repoerr.ErrUpdateEntity, err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (ur *userRepo) Delete(ctx context.Context, id string) error {
	tx, err := ur.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(repoerr.ErrRemoveEntity, err)
	}
	defer func() { _ = tx.Rollback() }()

	// Emails are co-owned: deleting the user deletes its addresses,
	// not only the join rows.
	if _, err := tx.ExecContext(ctx, `DELETE FROM auth_email WHERE uuid IN (SELECT email_uuid FROM auth_user_email WHERE user_uuid = $1)`, id); err != nil {
		return postgres.HandleError(repoerr.ErrRemoveEntity, err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM auth_user WHERE uuid = $1`, id)
	if err != nil {
		return postgres.HandleError(repoerr.ErrRemoveEntity, err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return auth.ErrUserNotFound
	}

	return tx.Commit()
}

func (ur *userRepo) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, ur.db, `SELECT EXISTS (SELECT 1 FROM auth_user WHERE uuid = $1)`, id)
}

func (ur *userRepo) AddPolicy(ctx context.Context, userID, policyID string) error {
	_, err := ur.db.ExecContext(ctx, `INSERT INTO auth_user_policy (user_uuid, policy_uuid) VALUES ($1, $2)`, userID, policyID)
	if err != nil {
		if mapped, ok := constraintError(err, map[string]error{
			"auth_user_policy_pkey":             nil,
			"auth_user_policy_user_uuid_fkey":   auth.ErrUserNotFound,
			"auth_user_policy_policy_uuid_fkey": auth.ErrPolicyNotFound,
		}); ok {
			return mapped
		}
		return postgres.HandleError(repoerr.ErrCreateEntity, err)
	}
	return nil
}

func (ur *userRepo) RemovePolicy(ctx context.Context, userID, policyID string) error {
	res, err := ur.db.ExecContext(ctx, `DELETE FROM auth_user_policy WHERE user_uuid = $1 AND policy_uuid = $2`, userID, policyID)
	if err != nil {
		return postgres.HandleError(repoerr.ErrRemoveEntity, err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return auth.ErrUserPolicyNotFound
	}
	return nil
}

func (ur *userRepo) retrieveEmails(ctx context.Context, userID string) ([]auth.Email, error) {
	q := `SELECT e.uuid, e.address, e.confirmed, ue.main
	      FROM auth_email e JOIN auth_user_email ue ON ue.email_uuid = e.uuid
	      WHERE ue.user_uuid = $1 ORDER BY e.address`

	rows, err := ur.db.QueryxContext(ctx, q, userID)
	if err != nil {
		return nil, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	defer rows.Close()

	return scanEmails(rows)
}

// translateUserError maps constraint violations raised while saving a
// user onto conflict errors naming the colliding field.
func (ur *userRepo) translateUserError(err error, user auth.User) error {
	if pgErr, ok := postgres.PgError(err); ok {
		switch pgErr.ConstraintName {
		case "auth_user_username_key":
			return &auth.ConflictError{Entity: "users", Field: "username", Value: user.Username}
		case "auth_email_address_key":
			return &auth.ConflictError{Entity: "users", Field: "email_address", Value: user.Emails[0].Address}
		}
	}
	return postgres.HandleError(repoerr.ErrCreateEntity, err)
}

func (ur *userRepo) translateEmailError(err error, address string) error {
	if pgErr, ok := postgres.PgError(err); ok && pgErr.ConstraintName == "auth_email_address_key" {
		return &auth.ConflictError{Entity: "users", Field: "email_address", Value: address}
	}
	return postgres.HandleError(repoerr.ErrUpdateEntity, err)
}

func validateEmailSet(desired []auth.EmailUpdate) error {
	mains := 0
	seen := map[string]struct{}{}
	for _, d := range desired {
		if _, ok := seen[d.Address]; ok {
			return auth.ErrMalformedEmails
		}
		seen[d.Address] = struct{}{}
		if d.Main {
			mains++
		}
	}
	if mains != 1 {
		return auth.ErrMalformedEmails
	}
	return nil
}

func insertEmail(ctx context.Context, tx *sqlx.Tx, userID string, email auth.Email) error {
	if _, err := tx.ExecContext(ctx, `INSERT INTO auth_email (uuid, address, confirmed) VALUES ($1, $2, $3)`, email.UUID, email.Address, email.Confirmed); err != nil {
		return err
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO auth_user_email (user_uuid, email_uuid, main) VALUES ($1, $2, $3)`, userID, email.UUID, email.Main)
	return err
}

func emailsInTx(ctx context.Context, tx *sqlx.Tx, userID string) ([]auth.Email, error) {
	q := `SELECT e.uuid, e.address, e.confirmed, ue.main
	      FROM auth_email e JOIN auth_user_email ue ON ue.email_uuid = e.uuid
	      WHERE ue.user_uuid = $1 ORDER BY e.address`

	rows, err := tx.QueryxContext(ctx, q, userID)
	if err != nil {
		return nil, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	defer rows.Close()

	return scanEmails(rows)
}

func scanEmails(rows *sqlx.Rows) ([]auth.Email, error) {
	emails := []auth.Email{}
	for rows.Next() {
		var e dbEmail
		if err := rows.StructScan(&e); err != nil {
			return nil, errors.Wrap(repoerr.ErrFailedOpDB, err)
		}
		emails = append(emails, auth.Email{UUID: e.UUID, Address: e.Address, Main: e.Main, Confirmed: e.Confirmed})
	}
	return emails, nil
}

// foldUserRows collapses the user-email join rows into users carrying
// their email lists, preserving the order of first appearance.
func foldUserRows(rows *sqlx.Rows) ([]auth.User, error) {
	defer rows.Close()

	users := []auth.User{}
	index := map[string]int{}
	for rows.Next() {
		var r dbUserRow
		if err := rows.StructScan(&r); err != nil {
			return nil, errors.Wrap(repoerr.ErrFailedOpDB, err)
		}

		i, ok := index[r.UUID]
		if !ok {
			users = append(users, toUser(r.dbUser))
			i = len(users) - 1
			index[r.UUID] = i
		}
		if r.EmailUUID != nil {
			users[i].Emails = append(users[i].Emails, auth.Email{
				UUID:      *r.EmailUUID,
				Address:   deref(r.EmailAddress),
				Main:      r.EmailMain != nil && *r.EmailMain,
				Confirmed: r.EmailConfirmed != nil && *r.EmailConfirmed,
			})
		}
	}

	return users, nil
}

func exists(ctx context.Context, db postgres.Database, query, id string) (bool, error) {
	var ok bool
	if err := db.QueryRowxContext(ctx, query, id).Scan(&ok); err != nil {
		return false, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	return ok, nil
}

type dbUser struct {
	UUID         string  `db:"uuid"`
	Username     string  `db:"username"`
	FirstName    *string `db:"firstname"`
	LastName     *string `db:"lastname"`
	PasswordHash string  `db:"password_hash"`
	PasswordSalt string  `db:"password_salt"`
}

type dbUserRow struct {
	dbUser
	EmailUUID      *string `db:"email_uuid"`
	EmailAddress   *string `db:"email_address"`
	EmailConfirmed *bool   `db:"email_confirmed"`
	EmailMain      *bool   `db:"email_main"`
}

type dbEmail struct {
	UUID      string `db:"uuid"`
	Address   string `db:"address"`
	Confirmed bool   `db:"confirmed"`
	Main      bool   `db:"main"`
}

func toDBUser(user auth.User) dbUser {
	return dbUser{
		UUID:         user.UUID,
		Username:     user.Username,
		FirstName:    nullable(user.FirstName),
		LastName:     nullable(user.LastName),
		PasswordHash: user.PasswordHash,
		PasswordSalt: user.PasswordSalt,
	}
}

func toUser(dbu dbUser) auth.User {
	return auth.User{
		UUID:         dbu.UUID,
		Username:     dbu.Username,
		FirstName:    deref(dbu.FirstName),
		LastName:     deref(dbu.LastName),
		PasswordHash: dbu.PasswordHash,
		PasswordSalt: dbu.PasswordSalt,
	}
}

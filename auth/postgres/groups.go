// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"

	"github.com/voxlink/warden/auth"
	"github.com/voxlink/warden/pkg/errors"
	repoerr "github.com/voxlink/warden/pkg/errors/repository"
	"github.com/voxlink/warden/pkg/postgres"
)

type groupRepo struct {
	db postgres.Database
}

// NewGroupRepository instantiates the PostgreSQL group repository.
func NewGroupRepository(db postgres.Database) auth.GroupRepository {
	return &groupRepo{db: db}
}

func (gr *groupRepo) Save(ctx context.Context, group auth.Group) (auth.Group, error) {
	q := `INSERT INTO auth_group (uuid, name) VALUES (:uuid, :name)`
	if _, err := gr.db.NamedExecContext(ctx, q, dbGroup{UUID: group.UUID, Name: group.Name}); err != nil {
		if pgErr, ok := postgres.PgError(err); ok && pgErr.ConstraintName == "auth_group_name_key" {
			return auth.Group{}, &auth.ConflictError{Entity: "groups", Field: "name", Value: group.Name}
		}
		return auth.Group{}, postgres.HandleError(repoerr.ErrCreateEntity, err)
	}
	return group, nil
}

func (gr *groupRepo) Delete(ctx context.Context, id string) error {
	res, err := gr.db.ExecContext(ctx, `DELETE FROM auth_group WHERE uuid = $1`, id)
	if err != nil {
		return postgres.HandleError(repoerr.ErrRemoveEntity, err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return auth.ErrGroupNotFound
	}
	return nil
}

func (gr *groupRepo) RetrieveByUUID(ctx context.Context, id string) (auth.Group, error) {
	rows, err := gr.db.NamedQueryContext(ctx, `SELECT uuid, name FROM auth_group WHERE uuid = :uuid`, dbGroup{UUID: id})
	if err != nil {
		return auth.Group{}, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return auth.Group{}, auth.ErrGroupNotFound
	}

	var dbg dbGroup
	if err := rows.StructScan(&dbg); err != nil {
		return auth.Group{}, errors.Wrap(repoerr.ErrFailedOpDB, err)
	}

	return auth.Group{UUID: dbg.UUID, Name: dbg.Name}, nil
}

func (gr *groupRepo) RetrieveAll(ctx context.Context, pm auth.Page) (auth.GroupsPage, error) {
	params := map[string]interface{}{"search": searchPattern(pm.Search)}
	strict := strictClauses(pm.Filters, map[string]string{
		"uuid": "g.uuid",
		"name": "g.name",
	}, params)
	if user, ok := pm.Filters["user_uuid"]; ok {
		strict = append(strict, `g.uuid IN (SELECT group_uuid FROM auth_user_group WHERE user_uuid = :user_uuid)`)
		params["user_uuid"] = user
	}
	search := searchClause(pm.Search, "g.name")
	where := whereClause(append([]string{search}, strict...)...)

	q := applyPaging(`SELECT g.uuid, g.name FROM auth_group g `+where, qualifyOrder(pm, "g"))

	rows, err := gr.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return auth.GroupsPage{}, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	defer rows.Close()

	groups := []auth.Group{}
	for rows.Next() {
		var dbg dbGroup
		if err := rows.StructScan(&dbg); err != nil {
			return auth.GroupsPage{}, errors.Wrap(repoerr.ErrFailedOpDB, err)
		}
		groups = append(groups, auth.Group{UUID: dbg.UUID, Name: dbg.Name})
	}

	total, err := postgres.Total(ctx, gr.db, `SELECT COUNT(*) FROM auth_group g`, map[string]interface{}{})
	if err != nil {
		return auth.GroupsPage{}, errors.Wrap(repoerr.ErrViewEntity, err)
	}
	filtered, err := postgres.Total(ctx, gr.db, `SELECT COUNT(*) FROM auth_group g `+where, params)
	if err != nil {
		return auth.GroupsPage{}, errors.Wrap(repoerr.ErrViewEntity, err)
	}

	return auth.GroupsPage{
		Total:    total,
		Filtered: filtered,
		Groups:   groups,
	}, nil
}

func (gr *groupRepo) RetrieveForUser(ctx context.Context, userID string) ([]auth.Group, error) {
	q := `SELECT g.uuid, g.name, u.uuid AS member_uuid, u.username AS member_username, u.firstname AS member_firstname, u.lastname AS member_lastname
	      FROM auth_group g
	      JOIN auth_user_group mine ON mine.group_uuid = g.uuid AND mine.user_uuid = $1
	      LEFT JOIN auth_user_group ug ON ug.group_uuid = g.uuid
	      LEFT JOIN auth_user u ON u.uuid = ug.user_uuid
	      ORDER BY g.name, u.username`

	rows, err := gr.db.QueryxContext(ctx, q, userID)
	if err != nil {
		return nil, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	defer rows.Close()

	groups := []auth.Group{}
	index := map[string]int{}
	for rows.Next() {
		var r dbGroupMemberRow
		if err := rows.StructScan(&r); err != nil {
			return nil, errors.Wrap(repoerr.ErrFailedOpDB, err)
		}

		i, ok := index[r.UUID]
		if !ok {
			groups = append(groups, auth.Group{UUID: r.UUID, Name: r.Name})
			i = len(groups) - 1
			index[r.UUID] = i
		}
		if r.MemberUUID != nil {
			groups[i].Users = append(groups[i].Users, auth.User{
				UUID:      *r.MemberUUID,
				Username:  deref(r.MemberUsername),
				FirstName: deref(r.MemberFirstName),
				LastName:  deref(r.MemberLastName),
			})
		}
	}

	return groups, nil
}

func (gr *groupRepo) AddUser(ctx context.Context, groupID, userID string) error {
	_, err := gr.db.ExecContext(ctx, `INSERT INTO auth_user_group (user_uuid, group_uuid) VALUES ($1, $2)`, userID, groupID)
	if err != nil {
		if mapped, ok := constraintError(err, map[string]error{
			"auth_user_group_pkey":            nil,
			"auth_user_group_user_uuid_fkey":  auth.ErrUserNotFound,
			"auth_user_group_group_uuid_fkey": auth.ErrGroupNotFound,
		}); ok {
			return mapped
		}
		return postgres.HandleError(repoerr.ErrCreateEntity, err)
	}
	return nil
}

func (gr *groupRepo) RemoveUser(ctx context.Context, groupID, userID string) error {
	res, err := gr.db.ExecContext(ctx, `DELETE FROM auth_user_group WHERE user_uuid = $1 AND group_uuid = $2`, userID, groupID)
	if err != nil {
		return postgres.HandleError(repoerr.ErrRemoveEntity, err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return gr.checkEndpoints(ctx, groupID, userID, `SELECT EXISTS (SELECT 1 FROM auth_user WHERE uuid = $1)`, auth.ErrUserNotFound)
	}
	return nil
}

func (gr *groupRepo) AddPolicy(ctx context.Context, groupID, policyID string) error {
	_, err := gr.db.ExecContext(ctx, `INSERT INTO auth_group_policy (group_uuid, policy_uuid) VALUES ($1, $2)`, groupID, policyID)
	if err != nil {
		if mapped, ok := constraintError(err, map[string]error{
			"auth_group_policy_pkey":             nil,
			"auth_group_policy_group_uuid_fkey":  auth.ErrGroupNotFound,
			"auth_group_policy_policy_uuid_fkey": auth.ErrPolicyNotFound,
		}); ok {
			return mapped
		}
		return postgres.HandleError(repoerr.ErrCreateEntity, err)
	}
	return nil
}

func (gr *groupRepo) RemovePolicy(ctx context.Context, groupID, policyID string) error {
	res, err := gr.db.ExecContext(ctx, `DELETE FROM auth_group_policy WHERE group_uuid = $1 AND policy_uuid = $2`, groupID, policyID)
	if err != nil {
		return postgres.HandleError(repoerr.ErrRemoveEntity, err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return gr.checkEndpoints(ctx, groupID, policyID, `SELECT EXISTS (SELECT 1 FROM auth_policy WHERE uuid = $1)`, auth.ErrPolicyNotFound)
	}
	return nil
}

// checkEndpoints decides the outcome of a removal that hit zero rows:
// success when both endpoints exist, the missing endpoint's error
// otherwise.
func (gr *groupRepo) checkEndpoints(ctx context.Context, groupID, otherID, otherQuery string, otherErr error) error {
	ok, err := exists(ctx, gr.db, `SELECT EXISTS (SELECT 1 FROM auth_group WHERE uuid = $1)`, groupID)
	if err != nil {
		return err
	}
	if !ok {
		return auth.ErrGroupNotFound
	}

	ok, err = exists(ctx, gr.db, otherQuery, otherID)
	if err != nil {
		return err
	}
	if !ok {
		return otherErr
	}

	return nil
}

type dbGroup struct {
	UUID string `db:"uuid"`
	Name string `db:"name"`
}

type dbGroupMemberRow struct {
	dbGroup
	MemberUUID      *string `db:"member_uuid"`
	MemberUsername  *string `db:"member_username"`
	MemberFirstName *string `db:"member_firstname"`
	MemberLastName  *string `db:"member_lastname"`
}

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

type tenantRepo struct {
	db postgres.Database
}

// NewTenantRepository instantiates the PostgreSQL tenant repository.
func NewTenantRepository(db postgres.Database) auth.TenantRepository {
	return &tenantRepo{db: db}
}

func (tr *tenantRepo) Save(ctx context.Context, tenant auth.Tenant) (auth.Tenant, error) {
	q := `INSERT INTO auth_tenant (uuid, name) VALUES (:uuid, :name)`
	if _, err := tr.db.NamedExecContext(ctx, q, dbTenant{UUID: tenant.UUID, Name: tenant.Name}); err != nil {
		return auth.Tenant{}, postgres.HandleError(repoerr.ErrCreateEntity, err)
	}
	return tenant, nil
}

func (tr *tenantRepo) Delete(ctx context.Context, id string) error {
	res, err := tr.db.ExecContext(ctx, `DELETE FROM auth_tenant WHERE uuid = $1`, id)
	if err != nil {
		return postgres.HandleError(repoerr.ErrRemoveEntity, err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return auth.ErrTenantNotFound
	}
	return nil
}

func (tr *tenantRepo) RetrieveByUUID(ctx context.Context, id string) (auth.Tenant, error) {
	rows, err := tr.db.NamedQueryContext(ctx, `SELECT uuid, name FROM auth_tenant WHERE uuid = :uuid`, dbTenant{UUID: id})
	if err != nil {
		return auth.Tenant{}, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return auth.Tenant{}, auth.ErrTenantNotFound
	}

	var dbt dbTenant
	if err := rows.StructScan(&dbt); err != nil {
		return auth.Tenant{}, errors.Wrap(repoerr.ErrFailedOpDB, err)
	}

	return auth.Tenant{UUID: dbt.UUID, Name: dbt.Name}, nil
}

func (tr *tenantRepo) RetrieveAll(ctx context.Context, pm auth.Page) (auth.TenantsPage, error) {
	params := map[string]interface{}{"search": searchPattern(pm.Search)}
	strict := strictClauses(pm.Filters, map[string]string{
		"uuid": "t.uuid",
		"name": "t.name",
	}, params)
	if user, ok := pm.Filters["user_uuid"]; ok {
		strict = append(strict, `t.uuid IN (SELECT tenant_uuid FROM auth_tenant_user WHERE user_uuid = :user_uuid)`)
		params["user_uuid"] = user
	}
	search := searchClause(pm.Search, "t.name")
	where := whereClause(append([]string{search}, strict...)...)

	q := applyPaging(`SELECT t.uuid, t.name FROM auth_tenant t `+where, qualifyOrder(pm, "t"))

	rows, err := tr.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return auth.TenantsPage{}, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	defer rows.Close()

	tenants := []auth.Tenant{}
	for rows.Next() {
		var dbt dbTenant
		if err := rows.StructScan(&dbt); err != nil {
			return auth.TenantsPage{}, errors.Wrap(repoerr.ErrFailedOpDB, err)
		}
		tenants = append(tenants, auth.Tenant{UUID: dbt.UUID, Name: dbt.Name})
	}

	total, err := postgres.Total(ctx, tr.db, `SELECT COUNT(*) FROM auth_tenant t`, map[string]interface{}{})
	if err != nil {
		return auth.TenantsPage{}, errors.Wrap(repoerr.ErrViewEntity, err)
	}
	filtered, err := postgres.Total(ctx, tr.db, `SELECT COUNT(*) FROM auth_tenant t `+where, params)
	if err != nil {
		return auth.TenantsPage{}, errors.Wrap(repoerr.ErrViewEntity, err)
	}

	return auth.TenantsPage{
		Total:    total,
		Filtered: filtered,
		Tenants:  tenants,
	}, nil
}

func (tr *tenantRepo) RetrieveForUser(ctx context.Context, userID string) ([]auth.Tenant, error) {
	q := `SELECT t.uuid, t.name FROM auth_tenant t
	      JOIN auth_tenant_user tu ON tu.tenant_uuid = t.uuid
	      WHERE tu.user_uuid = $1 ORDER BY t.name`

	rows, err := tr.db.QueryxContext(ctx, q, userID)
	if err != nil {
		return nil, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	defer rows.Close()

	tenants := []auth.Tenant{}
	for rows.Next() {
		var dbt dbTenant
		if err := rows.StructScan(&dbt); err != nil {
			return nil, errors.Wrap(repoerr.ErrFailedOpDB, err)
		}
		tenants = append(tenants, auth.Tenant{UUID: dbt.UUID, Name: dbt.Name})
	}

	return tenants, nil
}

func (tr *tenantRepo) AddUser(ctx context.Context, tenantID, userID string) error {
	_, err := tr.db.ExecContext(ctx, `INSERT INTO auth_tenant_user (tenant_uuid, user_uuid) VALUES ($1, $2)`, tenantID, userID)
	if err != nil {
		if mapped, ok := constraintError(err, map[string]error{
			"auth_tenant_user_pkey":             nil,
			"auth_tenant_user_tenant_uuid_fkey": auth.ErrTenantNotFound,
			"auth_tenant_user_user_uuid_fkey":   auth.ErrUserNotFound,
		}); ok {
			return mapped
		}
		return postgres.HandleError(repoerr.ErrCreateEntity, err)
	}
	return nil
}

func (tr *tenantRepo) RemoveUser(ctx context.Context, tenantID, userID string) error {
	res, err := tr.db.ExecContext(ctx, `DELETE FROM auth_tenant_user WHERE tenant_uuid = $1 AND user_uuid = $2`, tenantID, userID)
	if err != nil {
		return postgres.HandleError(repoerr.ErrRemoveEntity, err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		ok, err := tr.Exists(ctx, tenantID)
		if err != nil {
			return err
		}
		if !ok {
			return auth.ErrTenantNotFound
		}
		ok, err = exists(ctx, tr.db, `SELECT EXISTS (SELECT 1 FROM auth_user WHERE uuid = $1)`, userID)
		if err != nil {
			return err
		}
		if !ok {
			return auth.ErrUserNotFound
		}
	}
	return nil
}

func (tr *tenantRepo) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, tr.db, `SELECT EXISTS (SELECT 1 FROM auth_tenant WHERE uuid = $1)`, id)
}

type dbTenant struct {
	UUID string `db:"uuid"`
	Name string `db:"name"`
}

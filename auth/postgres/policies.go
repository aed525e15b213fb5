// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/voxlink/warden/auth"
	"github.com/voxlink/warden/pkg/errors"
	repoerr "github.com/voxlink/warden/pkg/errors/repository"
	"github.com/voxlink/warden/pkg/postgres"
)

type policyRepo struct {
	db postgres.Database
}

// NewPolicyRepository instantiates the PostgreSQL policy repository.
func NewPolicyRepository(db postgres.Database) auth.PolicyRepository {
	return &policyRepo{db: db}
}

// aggregated policy row; templates are string_agg'ed behind a
// non-printable separator, see splitTemplates.
const policySelect = `SELECT p.uuid, p.name, p.description,
	COALESCE(string_agg(t.template, E'\x1f' ORDER BY pt.template_id), '') AS acl_templates
	FROM auth_policy p
	LEFT JOIN auth_policy_template pt ON pt.policy_uuid = p.uuid
	LEFT JOIN auth_acl_template t ON t.id = pt.template_id `

const policyGroup = ` GROUP BY p.uuid, p.name, p.description`

func (pr *policyRepo) Save(ctx context.Context, policy auth.Policy) (auth.Policy, error) {
	tx, err := pr.db.BeginTxx(ctx, nil)
	if err != nil {
		return auth.Policy{}, errors.Wrap(repoerr.ErrCreateEntity, err)
	}
	defer func() { _ = tx.Rollback() }()

	q := `INSERT INTO auth_policy (uuid, name, description) VALUES (:uuid, :name, :description)`
	if _, err := tx.NamedExecContext(ctx, q, toDBPolicy(policy)); err != nil {
		return auth.Policy{}, translatePolicyError(err)
	}

	policy.ACLTemplates = dedupTemplates(policy.ACLTemplates)
	for _, tmpl := range policy.ACLTemplates {
		if err := associateTemplate(ctx, tx, policy.UUID, tmpl); err != nil {
			return auth.Policy{}, translatePolicyError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return auth.Policy{}, errors.Wrap(repoerr.ErrCreateEntity, err)
	}

	return policy, nil
}

func (pr *policyRepo) Update(ctx context.Context, policy auth.Policy) (auth.Policy, error) {
	tx, err := pr.db.BeginTxx(ctx, nil)
	if err != nil {
		return auth.Policy{}, errors.Wrap(repoerr.ErrUpdateEntity, err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.NamedExecContext(ctx, `UPDATE auth_policy SET name = :name, description = :description WHERE uuid = :uuid`, toDBPolicy(policy))
	if err != nil {
		return auth.Policy{}, translatePolicyError(err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return auth.Policy{}, auth.ErrPolicyNotFound
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM auth_policy_template WHERE policy_uuid = $1`, policy.UUID); err != nil {
		return auth.Policy{}, postgres.HandleError(repoerr.ErrUpdateEntity, err)
	}
	policy.ACLTemplates = dedupTemplates(policy.ACLTemplates)
	for _, tmpl := range policy.ACLTemplates {
		if err := associateTemplate(ctx, tx, policy.UUID, tmpl); err != nil {
			return auth.Policy{}, translatePolicyError(err)
		}
	}

	if err := tx.Commit(); err != nil {
		return auth.Policy{}, errors.Wrap(repoerr.ErrUpdateEntity, err)
	}

	return policy, nil
}

func (pr *policyRepo) Delete(ctx context.Context, id string) error {
	res, err := pr.db.ExecContext(ctx, `DELETE FROM auth_policy WHERE uuid = $1`, id)
	if err != nil {
		return postgres.HandleError(repoerr.ErrRemoveEntity, err)
	}
	if count, _ := res.RowsAffected(); count == 0 {
		return auth.ErrPolicyNotFound
	}
	return nil
}

func (pr *policyRepo) RetrieveByUUID(ctx context.Context, id string) (auth.Policy, error) {
	q := policySelect + `WHERE p.uuid = $1` + policyGroup

	rows, err := pr.db.QueryxContext(ctx, q, id)
	if err != nil {
		return auth.Policy{}, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	defer rows.Close()

	if !rows.Next() {
		return auth.Policy{}, auth.ErrPolicyNotFound
	}

	var dbp dbPolicy
	if err := rows.StructScan(&dbp); err != nil {
		return auth.Policy{}, errors.Wrap(repoerr.ErrFailedOpDB, err)
	}

	return toPolicy(dbp), nil
}

func (pr *policyRepo) RetrieveAll(ctx context.Context, pm auth.Page) (auth.PoliciesPage, error) {
	params := map[string]interface{}{"search": searchPattern(pm.Search)}
	strict := strictClauses(pm.Filters, map[string]string{
		"uuid": "p.uuid",
		"name": "p.name",
	}, params)
	if user, ok := pm.Filters["user_uuid"]; ok {
		strict = append(strict, `p.uuid IN (SELECT policy_uuid FROM auth_user_policy WHERE user_uuid = :user_uuid)`)
		params["user_uuid"] = user
	}
	search := searchClause(pm.Search, "p.name", "p.description")
	where := whereClause(append([]string{search}, strict...)...)

	q := applyPaging(policySelect+where+policyGroup, qualifyOrder(pm, "p"))

	rows, err := pr.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return auth.PoliciesPage{}, postgres.HandleError(repoerr.ErrViewEntity, err)
	}
	policies, err := scanPolicies(rows)
	if err != nil {
		return auth.PoliciesPage{}, err
	}

	total, err := postgres.Total(ctx, pr.db, `SELECT COUNT(*) FROM auth_policy p`, map[string]interface{}{})
	if err != nil {
		return auth.PoliciesPage{}, errors.Wrap(repoerr.ErrViewEntity, err)
	}
	filtered, err := postgres.Total(ctx, pr.db, `SELECT COUNT(DISTINCT p.uuid) FROM auth_policy p `+where, params)
	if err != nil {
		return auth.PoliciesPage{}, errors.Wrap(repoerr.ErrViewEntity, err)
	}

	return auth.PoliciesPage{
		Total:    total,
		Filtered: filtered,
		Policies: policies,
	}, nil
}

func (pr *policyRepo) RetrieveForUser(ctx context.Context, userID string) ([]auth.Policy, error) {
	q := `SELECT p.uuid, p.name, p.description,
	      COALESCE(string_agg(t.template, E'\x1f' ORDER BY pt.template_id), '') AS acl_templates
	      FROM auth_policy p
	      JOIN (
	          SELECT policy_uuid FROM auth_user_policy WHERE user_uuid = $1
	          UNION
	          SELECT gp.policy_uuid FROM auth_group_policy gp
	          JOIN auth_user_group ug ON ug.group_uuid = gp.group_uuid
	          WHERE ug.user_uuid = $1
	      ) up ON up.policy_uuid = p.uuid
	      LEFT JOIN auth_policy_template pt ON pt.policy_uuid = p.uuid
	      LEFT JOIN auth_acl_template t ON t.id = pt.template_id
	      GROUP BY p.uuid, p.name, p.description
	      ORDER BY p.name ASC`

	rows, err := pr.db.QueryxContext(ctx, q, userID)
	if err != nil {
		return nil, postgres.HandleError(repoerr.ErrViewEntity, err)
	}

	return scanPolicies(rows)
}

func (pr *policyRepo) AssociateTemplate(ctx context.Context, policyID, template string) error {
	tx, err := pr.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(repoerr.ErrCreateEntity, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := associateTemplate(ctx, tx, policyID, template); err != nil {
		return translatePolicyError(err)
	}

	return tx.Commit()
}

func (pr *policyRepo) DissociateTemplate(ctx context.Context, policyID, template string) error {
	q := `DELETE FROM auth_policy_template
	      WHERE policy_uuid = $1 AND template_id = (SELECT id FROM auth_acl_template WHERE template = $2)`
	if _, err := pr.db.ExecContext(ctx, q, policyID, template); err != nil {
		return postgres.HandleError(repoerr.ErrRemoveEntity, err)
	}
	return nil
}

func (pr *policyRepo) Exists(ctx context.Context, id string) (bool, error) {
	return exists(ctx, pr.db, `SELECT EXISTS (SELECT 1 FROM auth_policy WHERE uuid = $1)`, id)
}

// associateTemplate upserts the globally deduplicated template row and
// links it to the policy.
func associateTemplate(ctx context.Context, tx *sqlx.Tx, policyID, template string) error {
	var templateID int64
	q := `INSERT INTO auth_acl_template (template) VALUES ($1)
	      ON CONFLICT ON CONSTRAINT auth_acl_template_template_key DO UPDATE SET template = EXCLUDED.template
	      RETURNING id`
	if err := tx.QueryRowxContext(ctx, q, template).Scan(&templateID); err != nil {
		return err
	}

	_, err := tx.ExecContext(ctx, `INSERT INTO auth_policy_template (policy_uuid, template_id) VALUES ($1, $2)`, policyID, templateID)
	return err
}

func translatePolicyError(err error) error {
	if mapped, ok := constraintError(err, map[string]error{
		"auth_policy_name_key":                  auth.ErrDuplicatePolicy,
		"auth_policy_template_pkey":             auth.ErrDuplicateTemplate,
		"auth_policy_template_policy_uuid_fkey": auth.ErrPolicyNotFound,
	}); ok {
		return mapped
	}
	return postgres.HandleError(repoerr.ErrCreateEntity, err)
}

func scanPolicies(rows *sqlx.Rows) ([]auth.Policy, error) {
	defer rows.Close()

	policies := []auth.Policy{}
	for rows.Next() {
		var dbp dbPolicy
		if err := rows.StructScan(&dbp); err != nil {
			return nil, errors.Wrap(repoerr.ErrFailedOpDB, err)
		}
		policies = append(policies, toPolicy(dbp))
	}

	return policies, nil
}

func dedupTemplates(templates []string) []string {
	seen := map[string]struct{}{}
	out := []string{}
	for _, t := range templates {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

type dbPolicy struct {
	UUID         string  `db:"uuid"`
	Name         string  `db:"name"`
	Description  *string `db:"description"`
	ACLTemplates string  `db:"acl_templates"`
}

func toDBPolicy(policy auth.Policy) dbPolicy {
	return dbPolicy{
		UUID:        policy.UUID,
		Name:        policy.Name,
		Description: nullable(policy.Description),
	}
}

func toPolicy(dbp dbPolicy) auth.Policy {
	return auth.Policy{
		UUID:         dbp.UUID,
		Name:         dbp.Name,
		Description:  deref(dbp.Description),
		ACLTemplates: splitTemplates(dbp.ACLTemplates),
	}
}

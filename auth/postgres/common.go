// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"database/sql"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/voxlink/warden/auth"
	"github.com/voxlink/warden/pkg/postgres"
)

// templateSeparator joins aggregated ACL templates in SQL; templates
// are free text with newlines, so a non-printable separator is used.
const templateSeparator = "\x1f"

// searchPattern builds the ILIKE pattern of a free-form search string:
// whitespace-separated words become ordered substring matches.
func searchPattern(search string) string {
	words := strings.Fields(search)
	if len(words) == 0 {
		return "%"
	}
	return "%" + strings.Join(words, "%") + "%"
}

// searchClause ORs a case-insensitive substring predicate over the
// given columns, bound to the :search parameter. An empty search
// yields no clause and matches everything.
func searchClause(search string, columns ...string) string {
	if strings.TrimSpace(search) == "" {
		return ""
	}

	preds := make([]string, 0, len(columns))
	for _, column := range columns {
		preds = append(preds, column+" ILIKE :search")
	}

	return "(" + strings.Join(preds, " OR ") + ")"
}

// strictClauses AND-combines exact-match filters. Only filters named
// in allowed are honored; the map binds filter keys to column
// expressions. Bound values land in params under the filter key.
func strictClauses(filters map[string]string, allowed map[string]string, params map[string]interface{}) []string {
	clauses := []string{}
	for key, expr := range allowed {
		value, ok := filters[key]
		if !ok {
			continue
		}
		clauses = append(clauses, fmt.Sprintf("%s = :%s", expr, key))
		params[key] = value
	}
	return clauses
}

// whereClause joins the collected conditions, dropping empties.
func whereClause(clauses ...string) string {
	conds := []string{}
	for _, clause := range clauses {
		if clause != "" {
			conds = append(conds, clause)
		}
	}
	if len(conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(conds, " AND ")
}

// applyPaging appends ordering, limit and offset. The order column is
// validated against the sortable set before it reaches this point.
func applyPaging(query string, pm auth.Page) string {
	query += fmt.Sprintf(" ORDER BY %s %s", pm.Order, strings.ToUpper(pm.Direction))
	if pm.Limit != auth.NoLimit {
		query += fmt.Sprintf(" LIMIT %d", pm.Limit)
	}
	if pm.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", pm.Offset)
	}
	return query
}

// qualifyOrder prefixes the validated order column with a table alias.
func qualifyOrder(pm auth.Page, alias string) auth.Page {
	pm.Order = alias + "." + pm.Order
	return pm
}

// constraintError maps a driver error onto the domain error registered
// for the violated constraint. The boolean reports whether a mapping
// applied.
func constraintError(err error, constraints map[string]error) (error, bool) {
	pgErr, ok := postgres.PgError(err)
	if !ok {
		return nil, false
	}
	mapped, ok := constraints[pgErr.ConstraintName]
	return mapped, ok
}

// isNoRows reports whether the error marks an empty single-row query.
func isNoRows(err error) bool {
	return stderrors.Is(err, sql.ErrNoRows)
}

// splitTemplates undoes the string_agg aggregation of ACL templates.
// An empty aggregate means no templates, never a single empty one.
func splitTemplates(aggregate string) []string {
	if aggregate == "" {
		return []string{}
	}
	return strings.Split(aggregate, templateSeparator)
}

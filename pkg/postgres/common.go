// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"context"
	"database/sql"
	stderrors "errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/voxlink/warden/pkg/errors"
	repoerr "github.com/voxlink/warden/pkg/errors/repository"
)

// Database provides a database interface.
type Database interface {
	// NamedQueryContext executes a named query against the database and returns
	// the resulting rows.
	NamedQueryContext(ctx context.Context, query string, args interface{}) (*sqlx.Rows, error)

	// NamedExecContext executes a named query against the database and returns
	// the result of the execution.
	NamedExecContext(ctx context.Context, query string, args interface{}) (sql.Result, error)

	// QueryRowxContext queries the database and returns an *sqlx.Row.
	QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row

	// QueryxContext queries the database and returns an *sqlx.Rows.
	QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error)

	// ExecContext executes a query without returning any rows.
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)

	// BeginTxx begins a transaction and returns an *sqlx.Tx.
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

var _ Database = (*database)(nil)

type database struct {
	db *sqlx.DB
}

// NewDatabase creates a Database instance.
func NewDatabase(db *sqlx.DB) Database {
	return &database{db: db}
}

func (d *database) NamedQueryContext(ctx context.Context, query string, args interface{}) (*sqlx.Rows, error) {
	return d.db.NamedQueryContext(ctx, query, args)
}

func (d *database) NamedExecContext(ctx context.Context, query string, args interface{}) (sql.Result, error) {
	return d.db.NamedExecContext(ctx, query, args)
}

func (d *database) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	return d.db.QueryRowxContext(ctx, query, args...)
}

func (d *database) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	return d.db.QueryxContext(ctx, query, args...)
}

func (d *database) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return d.db.ExecContext(ctx, query, args...)
}

func (d *database) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return d.db.BeginTxx(ctx, opts)
}

// PgError returns the underlying *pgconn.PgError if err carries one.
func PgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// HandleError translates a driver error into a repository error wrapped
// with the given wrapper. Unclassified errors are wrapped as-is.
func HandleError(wrapper, err error) error {
	if pgErr, ok := PgError(err); ok {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return errors.Wrap(repoerr.ErrConflict, err)
		case pgerrcode.InvalidTextRepresentation:
			return errors.Wrap(repoerr.ErrMalformedEntity, err)
		case pgerrcode.ForeignKeyViolation:
			return errors.Wrap(repoerr.ErrNotFound, err)
		case pgerrcode.StringDataRightTruncationDataException:
			return errors.Wrap(repoerr.ErrMalformedEntity, err)
		}
	}

	return errors.Wrap(wrapper, err)
}

// Total executes a named count query and returns the resulting count.
func Total(ctx context.Context, db Database, query string, params interface{}) (uint64, error) {
	rows, err := db.NamedQueryContext(ctx, query, params)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	total := uint64(0)
	if rows.Next() {
		if err := rows.Scan(&total); err != nil {
			return 0, err
		}
	}
	return total, nil
}

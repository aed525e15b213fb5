// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"strconv"
)

// Sort directions accepted by list operations.
const (
	DirAsc  = "asc"
	DirDesc = "desc"
)

// NoLimit marks a page without a row limit.
const NoLimit = int64(-1)

// PageQuery carries the raw, unvalidated query inputs of a list
// operation: pagination, ordering, free-text search, and exact-match
// filters keyed by column name.
type PageQuery struct {
	Limit     string
	Offset    string
	Order     string
	Direction string
	Search    string
	Filters   map[string]string
}

// Page is a validated PageQuery. Limit is NoLimit when the query did
// not set one.
type Page struct {
	Limit     int64
	Offset    uint64
	Order     string
	Direction string
	Search    string
	Filters   map[string]string
}

// Validate checks the query against the sortable columns of the target
// list operation. The first sortable column is the default order, so at
// least one column must be given. Limit and offset must parse as
// non-negative integers; absent offset defaults to zero, absent limit
// to no limit at all.
func (pq PageQuery) Validate(sortable ...string) (Page, error) {
	if len(sortable) == 0 {
		return Page{}, ErrInvalidSortColumn
	}

	p := Page{
		Limit:     NoLimit,
		Order:     sortable[0],
		Direction: DirAsc,
		Search:    pq.Search,
		Filters:   pq.Filters,
	}

	if pq.Order != "" {
		if !contains(sortable, pq.Order) {
			return Page{}, ErrInvalidSortColumn
		}
		p.Order = pq.Order
	}

	switch pq.Direction {
	case "":
	case DirAsc, DirDesc:
		p.Direction = pq.Direction
	default:
		return Page{}, ErrInvalidSortDirection
	}

	if pq.Limit != "" {
		limit, err := strconv.ParseUint(pq.Limit, 10, 32)
		if err != nil {
			return Page{}, ErrInvalidLimit
		}
		p.Limit = int64(limit)
	}

	if pq.Offset != "" {
		offset, err := strconv.ParseUint(pq.Offset, 10, 32)
		if err != nil {
			return Page{}, ErrInvalidOffset
		}
		p.Offset = offset
	}

	return p, nil
}

func contains(columns []string, column string) bool {
	for _, c := range columns {
		if c == column {
			return true
		}
	}
	return false
}

// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/voxlink/warden/auth"
)

func TestPageQueryValidate(t *testing.T) {
	cases := []struct {
		desc  string
		query auth.PageQuery
		page  auth.Page
		err   error
	}{
		{
			desc:  "defaults",
			query: auth.PageQuery{},
			page: auth.Page{
				Limit:     auth.NoLimit,
				Order:     "username",
				Direction: auth.DirAsc,
			},
		},
		{
			desc:  "explicit order and direction",
			query: auth.PageQuery{Order: "lastname", Direction: "desc"},
			page: auth.Page{
				Limit:     auth.NoLimit,
				Order:     "lastname",
				Direction: auth.DirDesc,
			},
		},
		{
			desc:  "unknown sort column",
			query: auth.PageQuery{Order: "password_hash"},
			err:   auth.ErrInvalidSortColumn,
		},
		{
			desc:  "bad direction",
			query: auth.PageQuery{Direction: "sideways"},
			err:   auth.ErrInvalidSortDirection,
		},
		{
			desc:  "limit and offset",
			query: auth.PageQuery{Limit: "25", Offset: "50"},
			page: auth.Page{
				Limit:     25,
				Offset:    50,
				Order:     "username",
				Direction: auth.DirAsc,
			},
		},
		{
			desc:  "boolean limit rejected",
			query: auth.PageQuery{Limit: "true"},
			err:   auth.ErrInvalidLimit,
		},
		{
			desc:  "negative limit rejected",
			query: auth.PageQuery{Limit: "-1"},
			err:   auth.ErrInvalidLimit,
		},
		{
			desc:  "boolean offset rejected",
			query: auth.PageQuery{Offset: "False"},
			err:   auth.ErrInvalidOffset,
		},
		{
			desc:  "zero limit kept",
			query: auth.PageQuery{Limit: "0"},
			page: auth.Page{
				Limit:     0,
				Order:     "username",
				Direction: auth.DirAsc,
			},
		},
	}

	for _, tc := range cases {
		page, err := tc.query.Validate("username", "firstname", "lastname")
		if tc.err != nil {
			assert.Equal(t, tc.err, err, fmt.Sprintf("%s: expected %v got %v\n", tc.desc, tc.err, err))
			continue
		}
		assert.Nil(t, err, fmt.Sprintf("%s: unexpected error %v\n", tc.desc, err))
		assert.Equal(t, tc.page, page, fmt.Sprintf("%s: expected %v got %v\n", tc.desc, tc.page, page))
	}
}

func TestPageQueryValidateWithoutSortableColumns(t *testing.T) {
	_, err := auth.PageQuery{}.Validate()
	assert.Equal(t, auth.ErrInvalidSortColumn, err, fmt.Sprintf("expected %v got %v\n", auth.ErrInvalidSortColumn, err))
}

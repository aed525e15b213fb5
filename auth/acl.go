// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"regexp"
	"strings"
)

// negationPrefix marks an ACL as a denial rule.
const negationPrefix = "!"

// MatchACL decides whether the required ACL is granted by the given ACL
// set. An empty required ACL is always granted. Denial rules are checked
// first: a single matching negative rule denies regardless of any
// positive match.
func MatchACL(authID string, acls []string, required string) bool {
	if required == "" {
		return true
	}

	for _, acl := range acls {
		if !strings.HasPrefix(acl, negationPrefix) {
			continue
		}
		re, err := compileACL(strings.TrimPrefix(acl, negationPrefix), authID)
		if err != nil {
			// A denial rule that cannot be evaluated fails closed.
			return false
		}
		if re.MatchString(required) {
			return false
		}
	}

	for _, acl := range acls {
		if strings.HasPrefix(acl, negationPrefix) {
			continue
		}
		re, err := compileACL(acl, authID)
		if err != nil {
			continue
		}
		if re.MatchString(required) {
			return true
		}
	}

	return false
}

// compileACL turns a dot-separated ACL pattern into an anchored regexp.
// `*` spans a single segment, `#` spans any number of segments, and a
// whole-segment `me` also accepts the token's auth-id. Both the pattern
// and the auth-id are escaped, so metacharacters in either match
// literally.
func compileACL(acl, authID string) (*regexp.Regexp, error) {
	id := regexp.QuoteMeta(authID)
	expr := regexp.QuoteMeta(acl)
	expr = strings.ReplaceAll(expr, `\*`, `[^.]*?`)
	expr = strings.ReplaceAll(expr, `#`, `.*?`)
	expr = strings.ReplaceAll(expr, `\.me\.`, `\.(me|`+id+`)\.`)
	if strings.HasSuffix(expr, `\.me`) {
		expr = strings.TrimSuffix(expr, `me`) + `(me|` + id + `)`
	}

	return regexp.Compile(`^` + expr + `$`)
}

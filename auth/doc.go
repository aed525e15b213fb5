// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

// Package auth contains the token lifecycle service: minting opaque
// bearer tokens against pluggable credential back-ends, expanding
// policy ACL templates over the caller's identity graph, matching
// required ACLs against issued tokens, and sweeping expired sessions.
package auth

// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

// Hasher derives and verifies password hashes. Hash and salt are
// hex-encoded for storage in text columns.
type Hasher interface {
	// Hash derives a hash from the password under a fresh random salt.
	Hash(password string) (hash, salt string, err error)

	// Verify reports whether the password matches the stored hash and
	// salt. Comparison is constant-time.
	Verify(password, hash, salt string) bool
}

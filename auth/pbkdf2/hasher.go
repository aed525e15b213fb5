// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

// Package pbkdf2 provides the PBKDF2-SHA512 password hasher.
package pbkdf2

import (
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"

	"github.com/voxlink/warden/auth"
	"github.com/voxlink/warden/pkg/errors"
	"golang.org/x/crypto/pbkdf2"
)

const (
	iterations = 250000
	saltBytes  = 64
	keyBytes   = 64
)

// ErrGeneratingSalt indicates the random salt could not be drawn.
var ErrGeneratingSalt = errors.New("failed to generate password salt")

var _ auth.Hasher = (*hasher)(nil)

type hasher struct{}

// New instantiates a PBKDF2-SHA512 hasher.
func New() auth.Hasher {
	return &hasher{}
}

func (h *hasher) Hash(password string) (string, string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", "", errors.Wrap(ErrGeneratingSalt, err)
	}

	key := pbkdf2.Key([]byte(password), salt, iterations, keyBytes, sha512.New)

	return hex.EncodeToString(key), hex.EncodeToString(salt), nil
}

func (h *hasher) Verify(password, hash, salt string) bool {
	rawSalt, err := hex.DecodeString(salt)
	if err != nil {
		return false
	}
	rawHash, err := hex.DecodeString(hash)
	if err != nil {
		return false
	}

	key := pbkdf2.Key([]byte(password), rawSalt, iterations, keyBytes, sha512.New)

	return subtle.ConstantTimeCompare(key, rawHash) == 1
}

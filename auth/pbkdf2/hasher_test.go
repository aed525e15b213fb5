// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package pbkdf2_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxlink/warden/auth/pbkdf2"
)

func TestHashAndVerify(t *testing.T) {
	h := pbkdf2.New()

	hash, salt, err := h.Hash("s3cret")
	require.Nil(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEmpty(t, salt)

	assert.True(t, h.Verify("s3cret", hash, salt))
	assert.False(t, h.Verify("wrong", hash, salt))
	assert.False(t, h.Verify("s3cret", hash, "not-hex"))
}

func TestHashIsSalted(t *testing.T) {
	h := pbkdf2.New()

	first, firstSalt, err := h.Hash("s3cret")
	require.Nil(t, err)
	second, secondSalt, err := h.Hash("s3cret")
	require.Nil(t, err)

	assert.NotEqual(t, firstSalt, secondSalt)
	assert.NotEqual(t, first, second)
}

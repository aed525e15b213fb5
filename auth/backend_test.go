// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth_test

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxlink/warden/auth"
	"github.com/voxlink/warden/pkg/errors"
)

func TestRegistryRegisterAndGet(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := auth.NewRegistry(logger)

	native := &backendMock{password: "secret", authID: "U1"}
	registry.Register("native", func() (auth.Backend, error) {
		return native, nil
	})

	backend, err := registry.Get("native")
	require.Nil(t, err)
	assert.Equal(t, auth.Backend(native), backend)

	_, err = registry.Get("ldap")
	assert.True(t, errors.Contains(err, auth.ErrUnauthorizedBackend))
}

func TestRegistrySkipsFailedFactory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := auth.NewRegistry(logger)

	registry.Register("broken", func() (auth.Backend, error) {
		return nil, errors.New("plugin failed to load")
	})
	registry.Register("native", func() (auth.Backend, error) {
		return &backendMock{}, nil
	})

	_, err := registry.Get("broken")
	assert.True(t, errors.Contains(err, auth.ErrUnauthorizedBackend), "a failed backend must not be served")
	assert.Equal(t, []string{"native"}, registry.Names())
}

func TestRegistryNamesKeepRegistrationOrder(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	registry := auth.NewRegistry(logger)

	registry.Register("native", func() (auth.Backend, error) { return &backendMock{}, nil })
	registry.Register("service", func() (auth.Backend, error) { return &backendMock{}, nil })
	registry.Register("native", func() (auth.Backend, error) { return &backendMock{}, nil })

	assert.Equal(t, []string{"native", "service"}, registry.Names())
}

// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"log/slog"
)

// Backend is a pluggable credential verifier and identity resolver,
// selected by name at token mint time.
type Backend interface {
	// VerifyPassword is a pure credential check with no side effects.
	VerifyPassword(ctx context.Context, login, password string, args map[string]interface{}) (bool, error)

	// GetIDs returns the stable identifier pair stamped on the token.
	// The user uuid is empty for non-user identities such as service
	// accounts.
	GetIDs(ctx context.Context, login string, args map[string]interface{}) (authID, userID string, err error)

	// GetACLs returns the base ACLs attributable to the login,
	// independent of policy-derived ACLs.
	GetACLs(ctx context.Context, login string, args map[string]interface{}) ([]string, error)
}

// BackendFactory builds a back-end instance at registry load time.
type BackendFactory func() (Backend, error)

// Registry holds the named authentication back-ends in registration
// order. A back-end whose factory fails is logged and skipped so that
// one broken back-end does not prevent the rest from loading.
type Registry struct {
	names    []string
	backends map[string]Backend
	logger   *slog.Logger
}

// NewRegistry returns an empty back-end registry.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		backends: map[string]Backend{},
		logger:   logger,
	}
}

// Register builds the back-end through its factory and stores it under
// the given name.
func (r *Registry) Register(name string, factory BackendFactory) {
	backend, err := factory()
	if err != nil {
		r.logger.Warn("skipping authentication backend", slog.String("backend", name), slog.Any("error", err))
		return
	}

	if _, ok := r.backends[name]; !ok {
		r.names = append(r.names, name)
	}
	r.backends[name] = backend
	r.logger.Info("loaded authentication backend", slog.String("backend", name))
}

// Get resolves a back-end by name. An unknown name yields
// ErrUnauthorizedBackend.
func (r *Registry) Get(name string) (Backend, error) {
	backend, ok := r.backends[name]
	if !ok {
		return nil, ErrUnauthorizedBackend
	}
	return backend, nil
}

// Names lists the loaded back-ends in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.names))
	copy(names, r.names)
	return names
}

// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package uuid

import (
	"fmt"
	"sync"

	"github.com/voxlink/warden"
)

// Prefix represents the prefix used to generate deterministic mock UUIDs.
const Prefix = "123e4567-e89b-12d3-a456-"

var _ warden.IDProvider = (*mockProvider)(nil)

type mockProvider struct {
	mu      sync.Mutex
	counter int
}

// NewMock creates "mirror" uuid provider, i.e. generated
// token will hold value provided by the caller.
func NewMock() warden.IDProvider {
	return &mockProvider{}
}

func (mp *mockProvider) ID() (string, error) {
	mp.mu.Lock()
	defer mp.mu.Unlock()

	mp.counter++
	return fmt.Sprintf("%s%012d", Prefix, mp.counter), nil
}

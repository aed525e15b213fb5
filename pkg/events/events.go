// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

// Package events provides the event bus abstraction used to announce
// session lifecycle changes.
package events

import "context"

// Event represents an event emitted on the bus.
type Event interface {
	// Encode encodes event to map.
	Encode() (map[string]interface{}, error)
}

// Publisher specifies an event publishing API.
type Publisher interface {
	// Publish publishes event to the bus.
	Publish(ctx context.Context, event Event) error

	// Close gracefully closes event publisher's connection.
	Close() error
}

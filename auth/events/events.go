// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

// Package events defines the session lifecycle events emitted by the
// expiry sweeper.
package events

import "github.com/voxlink/warden/pkg/events"

const (
	sessionPrefix = "session."

	sessionDeleted    = sessionPrefix + "deleted"
	sessionExpireSoon = sessionPrefix + "expire_soon"
)

var (
	_ events.Event = (*SessionDeleted)(nil)
	_ events.Event = (*SessionExpireSoon)(nil)
)

// SessionDeleted announces that a session and its tokens were removed.
type SessionDeleted struct {
	UUID       string
	UserUUID   string
	TenantUUID string
}

func (e SessionDeleted) Encode() (map[string]interface{}, error) {
	return encodeSession(sessionDeleted, e.UUID, e.UserUUID, e.TenantUUID), nil
}

// SessionExpireSoon announces that a session's tokens expire within
// the next sweeper cycle.
type SessionExpireSoon struct {
	UUID       string
	UserUUID   string
	TenantUUID string
}

func (e SessionExpireSoon) Encode() (map[string]interface{}, error) {
	return encodeSession(sessionExpireSoon, e.UUID, e.UserUUID, e.TenantUUID), nil
}

func encodeSession(name, uuid, userUUID, tenantUUID string) map[string]interface{} {
	return map[string]interface{}{
		"name":        name,
		"uuid":        uuid,
		"user_uuid":   userUUID,
		"tenant_uuid": tenantUUID,
	}
}

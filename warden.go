// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

// Package warden holds the top-level contracts shared by all warden
// services and packages.
package warden

import (
	"encoding/json"
	"net/http"
)

// Version of the warden service.
const Version string = "1.0.0"

// IDProvider specifies an API for generating unique identifiers.
type IDProvider interface {
	// ID generates the unique identifier.
	ID() (string, error)
}

// VersionInfo contains version endpoint response.
type VersionInfo struct {
	// Service contains service name.
	Service string `json:"service"`

	// Version contains service current version value.
	Version string `json:"version"`
}

// Health exposes an HTTP handler for retrieving service version.
func Health(service string) http.HandlerFunc {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		res := VersionInfo{service, Version}

		data, _ := json.Marshal(res)

		rw.Header().Set("Content-Type", "application/json")
		rw.Write(data)
	})
}

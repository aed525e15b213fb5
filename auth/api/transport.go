// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

// Package api decorates the token manager with logging and metrics and
// exposes the service's operational HTTP endpoints.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/voxlink/warden"
)

// MakeHandler returns the operational HTTP handler: health and
// Prometheus metrics.
func MakeHandler(svcName string) http.Handler {
	mux := chi.NewRouter()

	mux.Get("/health", warden.Health(svcName))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

// Package logger provides the structured logger used by all warden
// services.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// New returns a JSON slog.Logger writing to w at the given level.
// An unparseable level yields a non-nil error.
func New(w io.Writer, levelText string) (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelText)); err != nil {
		return nil, err
	}

	logHandler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})

	return slog.New(logHandler), nil
}

// ExitWithError terminates the process with the given code. Deferred
// in main so that all other defers run before os.Exit.
func ExitWithError(exitCode *int) {
	if *exitCode != 0 {
		os.Exit(*exitCode)
	}
}

// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/voxlink/warden/auth"
)

var _ auth.Service = (*loggingMiddleware)(nil)

type loggingMiddleware struct {
	logger *slog.Logger
	svc    auth.Service
}

// LoggingMiddleware adds logging facilities to the token manager.
func LoggingMiddleware(svc auth.Service, logger *slog.Logger) auth.Service {
	return &loggingMiddleware{logger, svc}
}

func (lm *loggingMiddleware) Issue(ctx context.Context, backendName string, req auth.TokenRequest) (token auth.Token, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("backend", backendName),
			slog.String("login", req.Login),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Issue token failed", args...)
			return
		}
		args = append(args, slog.String("session_uuid", token.SessionUUID))
		lm.logger.Info("Issue token completed successfully", args...)
	}(time.Now())
	return lm.svc.Issue(ctx, backendName, req)
}

func (lm *loggingMiddleware) Revoke(ctx context.Context, id string) (err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Revoke token failed", args...)
			return
		}
		lm.logger.Info("Revoke token completed successfully", args...)
	}(time.Now())
	return lm.svc.Revoke(ctx, id)
}

func (lm *loggingMiddleware) Retrieve(ctx context.Context, id string) (token auth.Token, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Retrieve token failed", args...)
			return
		}
		lm.logger.Info("Retrieve token completed successfully", args...)
	}(time.Now())
	return lm.svc.Retrieve(ctx, id)
}

func (lm *loggingMiddleware) Validate(ctx context.Context, id, requiredACL string) (valid bool, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("required_acl", requiredACL),
			slog.Bool("valid", valid),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Validate token failed", args...)
			return
		}
		lm.logger.Info("Validate token completed successfully", args...)
	}(time.Now())
	return lm.svc.Validate(ctx, id, requiredACL)
}

func (lm *loggingMiddleware) UpdateUserEmails(ctx context.Context, userID string, desired []auth.Email, asAdmin bool) (emails []auth.Email, err error) {
	defer func(begin time.Time) {
		args := []any{
			slog.String("duration", time.Since(begin).String()),
			slog.String("user_uuid", userID),
			slog.Bool("as_admin", asAdmin),
		}
		if err != nil {
			args = append(args, slog.Any("error", err))
			lm.logger.Warn("Update user emails failed", args...)
			return
		}
		lm.logger.Info("Update user emails completed successfully", args...)
	}(time.Now())
	return lm.svc.UpdateUserEmails(ctx, userID, desired, asAdmin)
}

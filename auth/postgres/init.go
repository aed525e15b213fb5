// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

// Package postgres contains the PostgreSQL repositories of the
// identity graph and the token table. Constraint names are referenced
// by the repositories' error translation maps, so renaming one here
// requires updating the matching map.
package postgres

import migrate "github.com/rubenv/sql-migrate"

// Migration of the identity graph and token schema.
func Migration() migrate.MemoryMigrationSource {
	return migrate.MemoryMigrationSource{
		Migrations: []*migrate.Migration{
			{
				Id: "auth_1",
				Up: []string{
					`CREATE TABLE IF NOT EXISTS auth_user (
						uuid            VARCHAR(36) PRIMARY KEY,
						username        VARCHAR(128) NOT NULL,
						firstname       TEXT,
						lastname        TEXT,
						password_hash   TEXT NOT NULL,
						password_salt   TEXT NOT NULL,
						CONSTRAINT auth_user_username_key UNIQUE (username)
					)`,
					`CREATE TABLE IF NOT EXISTS auth_email (
						uuid        VARCHAR(36) PRIMARY KEY,
						address     TEXT NOT NULL,
						confirmed   BOOLEAN NOT NULL DEFAULT FALSE,
						CONSTRAINT auth_email_address_key UNIQUE (address)
					)`,
					`CREATE TABLE IF NOT EXISTS auth_user_email (
						user_uuid   VARCHAR(36) NOT NULL,
						email_uuid  VARCHAR(36) NOT NULL,
						main        BOOLEAN NOT NULL DEFAULT FALSE,
						PRIMARY KEY (user_uuid, email_uuid),
						CONSTRAINT auth_user_email_user_uuid_fkey FOREIGN KEY (user_uuid) REFERENCES auth_user (uuid) ON DELETE CASCADE,
						CONSTRAINT auth_user_email_email_uuid_fkey FOREIGN KEY (email_uuid) REFERENCES auth_email (uuid) ON DELETE CASCADE
					)`,
					`CREATE UNIQUE INDEX IF NOT EXISTS auth_user_email_main_idx ON auth_user_email (user_uuid) WHERE main`,
					`CREATE TABLE IF NOT EXISTS auth_session (
						uuid    VARCHAR(36) PRIMARY KEY
					)`,
					`CREATE TABLE IF NOT EXISTS auth_token (
						uuid            VARCHAR(36) PRIMARY KEY,
						auth_id         TEXT NOT NULL,
						user_uuid       VARCHAR(36),
						xivo_uuid       TEXT,
						issued_t        BIGINT NOT NULL,
						expire_t        BIGINT NOT NULL,
						session_uuid    VARCHAR(36) NOT NULL,
						user_agent      TEXT,
						remote_addr     TEXT,
						metadata        TEXT,
						refresh_token   TEXT,
						CONSTRAINT auth_token_session_uuid_fkey FOREIGN KEY (session_uuid) REFERENCES auth_session (uuid)
					)`,
					`CREATE TABLE IF NOT EXISTS auth_acl (
						id          BIGSERIAL PRIMARY KEY,
						value       TEXT NOT NULL,
						token_uuid  VARCHAR(36) NOT NULL,
						CONSTRAINT auth_acl_token_uuid_fkey FOREIGN KEY (token_uuid) REFERENCES auth_token (uuid) ON DELETE CASCADE
					)`,
					`CREATE TABLE IF NOT EXISTS auth_policy (
						uuid        VARCHAR(36) PRIMARY KEY,
						name        TEXT NOT NULL,
						description TEXT,
						CONSTRAINT auth_policy_name_key UNIQUE (name)
					)`,
					`CREATE TABLE IF NOT EXISTS auth_acl_template (
						id          BIGSERIAL PRIMARY KEY,
						template    TEXT NOT NULL,
						CONSTRAINT auth_acl_template_template_key UNIQUE (template)
					)`,
					`CREATE TABLE IF NOT EXISTS auth_policy_template (
						policy_uuid VARCHAR(36) NOT NULL,
						template_id BIGINT NOT NULL,
						PRIMARY KEY (policy_uuid, template_id),
						CONSTRAINT auth_policy_template_policy_uuid_fkey FOREIGN KEY (policy_uuid) REFERENCES auth_policy (uuid) ON DELETE CASCADE,
						CONSTRAINT auth_policy_template_template_id_fkey FOREIGN KEY (template_id) REFERENCES auth_acl_template (id) ON DELETE CASCADE
					)`,
					`CREATE TABLE IF NOT EXISTS auth_group (
						uuid    VARCHAR(36) PRIMARY KEY,
						name    TEXT NOT NULL,
						CONSTRAINT auth_group_name_key UNIQUE (name)
					)`,
					`CREATE TABLE IF NOT EXISTS auth_user_group (
						user_uuid   VARCHAR(36) NOT NULL,
						group_uuid  VARCHAR(36) NOT NULL,
						PRIMARY KEY (user_uuid, group_uuid),
						CONSTRAINT auth_user_group_user_uuid_fkey FOREIGN KEY (user_uuid) REFERENCES auth_user (uuid) ON DELETE CASCADE,
						CONSTRAINT auth_user_group_group_uuid_fkey FOREIGN KEY (group_uuid) REFERENCES auth_group (uuid) ON DELETE CASCADE
					)`,
					`CREATE TABLE IF NOT EXISTS auth_group_policy (
						group_uuid  VARCHAR(36) NOT NULL,
						policy_uuid VARCHAR(36) NOT NULL,
						PRIMARY KEY (group_uuid, policy_uuid),
						CONSTRAINT auth_group_policy_group_uuid_fkey FOREIGN KEY (group_uuid) REFERENCES auth_group (uuid) ON DELETE CASCADE,
						CONSTRAINT auth_group_policy_policy_uuid_fkey FOREIGN KEY (policy_uuid) REFERENCES auth_policy (uuid) ON DELETE CASCADE
					)`,
					`CREATE TABLE IF NOT EXISTS auth_tenant (
						uuid    VARCHAR(36) PRIMARY KEY,
						name    TEXT NOT NULL
					)`,
					`CREATE TABLE IF NOT EXISTS auth_tenant_user (
						tenant_uuid VARCHAR(36) NOT NULL,
						user_uuid   VARCHAR(36) NOT NULL,
						PRIMARY KEY (tenant_uuid, user_uuid),
						CONSTRAINT auth_tenant_user_tenant_uuid_fkey FOREIGN KEY (tenant_uuid) REFERENCES auth_tenant (uuid) ON DELETE CASCADE,
						CONSTRAINT auth_tenant_user_user_uuid_fkey FOREIGN KEY (user_uuid) REFERENCES auth_user (uuid) ON DELETE CASCADE
					)`,
					`CREATE TABLE IF NOT EXISTS auth_user_policy (
						user_uuid   VARCHAR(36) NOT NULL,
						policy_uuid VARCHAR(36) NOT NULL,
						PRIMARY KEY (user_uuid, policy_uuid),
						CONSTRAINT auth_user_policy_user_uuid_fkey FOREIGN KEY (user_uuid) REFERENCES auth_user (uuid) ON DELETE CASCADE,
						CONSTRAINT auth_user_policy_policy_uuid_fkey FOREIGN KEY (policy_uuid) REFERENCES auth_policy (uuid) ON DELETE CASCADE
					)`,
				},
				Down: []string{
					`DROP TABLE IF EXISTS auth_user_policy`,
					`DROP TABLE IF EXISTS auth_tenant_user`,
					`DROP TABLE IF EXISTS auth_tenant`,
					`DROP TABLE IF EXISTS auth_group_policy`,
					`DROP TABLE IF EXISTS auth_user_group`,
					`DROP TABLE IF EXISTS auth_group`,
					`DROP TABLE IF EXISTS auth_policy_template`,
					`DROP TABLE IF EXISTS auth_acl_template`,
					`DROP TABLE IF EXISTS auth_policy`,
					`DROP TABLE IF EXISTS auth_acl`,
					`DROP TABLE IF EXISTS auth_token`,
					`DROP TABLE IF EXISTS auth_session`,
					`DROP TABLE IF EXISTS auth_user_email`,
					`DROP TABLE IF EXISTS auth_email`,
					`DROP TABLE IF EXISTS auth_user`,
				},
			},
		},
	}
}

// Copyright (c) Voxlink
// SPDX-License-Identifier: Apache-2.0

package postgres_test

import (
	"fmt"
	"os"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/require"
	"github.com/voxlink/warden/auth/postgres"
	wrdlog "github.com/voxlink/warden/logger"
	pgclient "github.com/voxlink/warden/pkg/postgres"
	"github.com/voxlink/warden/pkg/uuid"
)

var (
	testLog, _ = wrdlog.New(os.Stdout, "info")
	db         *sqlx.DB
	database   pgclient.Database
	idProvider = uuid.New()
)

func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		testLog.Error(fmt.Sprintf("Could not connect to docker: %s", err))
	}

	cfg := []string{
		"POSTGRES_USER=test",
		"POSTGRES_PASSWORD=test",
		"POSTGRES_DB=test",
	}
	container, err := pool.Run("postgres", "13.3-alpine", cfg)
	if err != nil {
		testLog.Error(fmt.Sprintf("Could not start container: %s", err))
	}

	port := container.GetPort("5432/tcp")

	if err := pool.Retry(func() error {
		url := fmt.Sprintf("host=localhost port=%s user=test dbname=test password=test sslmode=disable", port)
		db, err = sqlx.Open("pgx", url)
		if err != nil {
			return err
		}
		return db.Ping()
	}); err != nil {
		testLog.Error(fmt.Sprintf("Could not connect to docker: %s", err))
	}

	dbConfig := pgclient.Config{
		Host:    "localhost",
		Port:    port,
		User:    "test",
		Pass:    "test",
		Name:    "test",
		SSLMode: "disable",
	}

	if db, err = pgclient.Setup(dbConfig, postgres.Migration()); err != nil {
		testLog.Error(fmt.Sprintf("Could not setup test DB connection: %s", err))
	}
	database = pgclient.NewDatabase(db)

	code := m.Run()

	// Defers will not be run when using os.Exit
	db.Close()
	if err := pool.Purge(container); err != nil {
		testLog.Error(fmt.Sprintf("Could not purge container: %s", err))
	}

	os.Exit(code)
}

func generateUUID(t *testing.T) string {
	id, err := idProvider.ID()
	require.Nil(t, err, fmt.Sprintf("got unexpected error generating id: %s", err))
	return id
}

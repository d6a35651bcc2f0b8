package postgrescontainer

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/adeilh/carefeed/internal/testutil/docker"
)

const (
	hostPort = "55432"
	user     = "carefeed"
	password = "secret"
	dbName   = "carefeed_test"
)

var container = &docker.Container{
	Dockerfile:    "Dockerfile.postgres.test",
	Image:         "carefeed-postgres-test",
	Name:          "carefeed-postgres-test",
	HostPort:      hostPort,
	ContainerPort: "5432",
	Ready:         ping,
	ReadyTimeout:  10 * time.Second,
}

// Addr returns host:port for connecting to the test Postgres instance.
func Addr() string { return "127.0.0.1:" + hostPort }

// DSN returns a lib/pq formatted connection string.
func DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable", user, password, Addr(), dbName)
}

// Setup builds and launches the Postgres container if it isn't already running.
func Setup() error { return container.Start() }

// Teardown stops the container launched by Setup.
func Teardown() error { return container.Stop() }

func ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	db, err := sql.Open("postgres", DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}

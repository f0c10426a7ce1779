// Package common provides shared test infrastructure.
package common

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// SurrealDBContainer is a SurrealDB instance shared by every storage test in
// the process. Starting one container per test would dominate the run time,
// so tests isolate themselves with unique database names instead.
type SurrealDBContainer struct {
	container testcontainers.Container
	address   string
}

var (
	surrealOnce      sync.Once
	surrealContainer *SurrealDBContainer
	surrealError     error
)

// StartSurrealDB returns the shared SurrealDB container, starting it on
// first use. Credentials are root/root.
func StartSurrealDB(t *testing.T) *SurrealDBContainer {
	t.Helper()

	surrealOnce.Do(func() {
		surrealContainer, surrealError = startSurrealDB(context.Background())
	})
	if surrealError != nil {
		t.Fatalf("SurrealDB container failed: %v", surrealError)
	}
	return surrealContainer
}

func startSurrealDB(ctx context.Context) (*SurrealDBContainer, error) {
	req := testcontainers.ContainerRequest{
		Image:        "surrealdb/surrealdb:v3.0.0",
		ExposedPorts: []string{"8000/tcp"},
		Cmd:          []string{"start", "--user", "root", "--pass", "root"},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("8000/tcp"),
			wait.ForLog("Started web server"),
		).WithDeadline(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("start SurrealDB container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("resolve SurrealDB host: %w", err)
	}
	port, err := container.MappedPort(ctx, "8000/tcp")
	if err != nil {
		container.Terminate(ctx)
		return nil, fmt.Errorf("resolve SurrealDB port: %w", err)
	}

	return &SurrealDBContainer{
		container: container,
		address:   fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()),
	}, nil
}

// Address returns the WebSocket RPC address for SurrealDB.
func (c *SurrealDBContainer) Address() string {
	return c.address
}

// Cleanup terminates the container. Call from TestMain if needed.
func (c *SurrealDBContainer) Cleanup() {
	if c != nil && c.container != nil {
		c.container.Terminate(context.Background())
	}
}

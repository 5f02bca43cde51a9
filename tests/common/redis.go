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

var (
	redisOnce      sync.Once
	redisContainer *RedisContainer
	redisError     error
)

// RedisContainer wraps a testcontainers Redis instance.
type RedisContainer struct {
	container testcontainers.Container
	host      string
	port      string
}

// StartRedis starts a shared Redis container for the test run.
// Uses sync.Once so only one container is created per process.
func StartRedis(t *testing.T) *RedisContainer {
	t.Helper()

	redisOnce.Do(func() {
		ctx := context.Background()

		req := testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("6379/tcp"),
				wait.ForLog("Ready to accept connections"),
			).WithDeadline(60 * time.Second),
		}

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			redisError = fmt.Errorf("start Redis container: %w", err)
			return
		}

		host, err := container.Host(ctx)
		if err != nil {
			container.Terminate(ctx)
			redisError = fmt.Errorf("get Redis host: %w", err)
			return
		}

		mappedPort, err := container.MappedPort(ctx, "6379/tcp")
		if err != nil {
			container.Terminate(ctx)
			redisError = fmt.Errorf("get Redis port: %w", err)
			return
		}

		redisContainer = &RedisContainer{
			container: container,
			host:      host,
			port:      mappedPort.Port(),
		}
	})

	if redisError != nil {
		t.Fatalf("Redis container failed: %v", redisError)
	}

	return redisContainer
}

// Address returns the host:port address for go-redis.
func (c *RedisContainer) Address() string {
	return fmt.Sprintf("%s:%s", c.host, c.port)
}

// Cleanup terminates the container. Call from TestMain if needed.
func (c *RedisContainer) Cleanup() {
	if c != nil && c.container != nil {
		c.container.Terminate(context.Background())
	}
}

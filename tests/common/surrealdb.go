package common

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/bobmcallan/playasset/internal/common"
)

// DefaultSurrealDBImage is the server version the storage layer is tested
// against. Override with PLAYASSET_TEST_SURREALDB_IMAGE.
const DefaultSurrealDBImage = "surrealdb/surrealdb:v3.0.0"

var (
	surrealOnce      sync.Once
	surrealContainer *SurrealDBContainer
	surrealError     error
)

// SurrealDBContainer wraps a testcontainers SurrealDB instance started with
// the default storage credentials.
type SurrealDBContainer struct {
	container testcontainers.Container
	address   string
	username  string
	password  string
}

// StartSurrealDB starts a shared SurrealDB container for the test run.
// Uses sync.Once so only one container is created per process.
func StartSurrealDB(t *testing.T) *SurrealDBContainer {
	t.Helper()

	surrealOnce.Do(func() {
		ctx := context.Background()
		defaults := common.NewDefaultConfig().Storage

		image := os.Getenv("PLAYASSET_TEST_SURREALDB_IMAGE")
		if image == "" {
			image = DefaultSurrealDBImage
		}

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        image,
				ExposedPorts: []string{"8000/tcp"},
				Cmd:          []string{"start", "--user", defaults.Username, "--pass", defaults.Password},
				WaitingFor: wait.ForAll(
					wait.ForListeningPort("8000/tcp"),
					wait.ForLog("Started web server"),
				).WithDeadline(60 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			surrealError = fmt.Errorf("start SurrealDB container %s: %w", image, err)
			return
		}

		endpoint, err := container.PortEndpoint(ctx, "8000/tcp", "ws")
		if err != nil {
			container.Terminate(ctx)
			surrealError = fmt.Errorf("get SurrealDB endpoint: %w", err)
			return
		}

		surrealContainer = &SurrealDBContainer{
			container: container,
			address:   endpoint + "/rpc",
			username:  defaults.Username,
			password:  defaults.Password,
		}
	})

	if surrealError != nil {
		t.Fatalf("SurrealDB container failed: %v", surrealError)
	}

	return surrealContainer
}

// Address returns the WebSocket RPC address for SurrealDB.
func (c *SurrealDBContainer) Address() string {
	return c.address
}

// StorageConfig returns a storage section pointing at a database of its own
// for the calling test, inside the given namespace.
func (c *SurrealDBContainer) StorageConfig(t *testing.T, namespace string) common.StorageConfig {
	t.Helper()
	return common.StorageConfig{
		Backend:   "surrealdb",
		Address:   c.address,
		Namespace: namespace,
		Database:  TestDatabaseName(t),
		Username:  c.username,
		Password:  c.password,
	}
}

// TestDatabaseName derives a database name from the test name. SurrealDB
// rejects "/" in names, which subtests produce.
func TestDatabaseName(t *testing.T) string {
	sanitized := strings.NewReplacer("/", "_", " ", "_", "-", "_").Replace(t.Name())
	return fmt.Sprintf("t_%s_%d", sanitized, time.Now().UnixNano()%1000000)
}

// Cleanup terminates the container. Call from TestMain if needed.
func (c *SurrealDBContainer) Cleanup() {
	if c != nil && c.container != nil {
		c.container.Terminate(context.Background())
	}
}

package lambda

import (
	"context"
	"sync"

	"teams-notify-api/internal/config"
	"teams-notify-api/pkg/server"
)

// ConnectionManager holds the dependency container for Lambda functions.
// The container (credentials, connection pools, token cache) is built on
// the first invocation of a fresh execution environment and reused until
// the environment is recycled.
type ConnectionManager struct {
	mu        sync.Mutex
	container *server.Container
}

var (
	globalConnectionManager *ConnectionManager
	connectionManagerOnce   sync.Once
)

// GetConnectionManager returns the global connection manager instance.
func GetConnectionManager() *ConnectionManager {
	connectionManagerOnce.Do(func() {
		globalConnectionManager = &ConnectionManager{}
	})
	return globalConnectionManager
}

// GetContainer returns the service container, initializing it on the
// first call. A failed initialization is retried on the next invocation
// rather than pinning the environment to a dead container.
func (cm *ConnectionManager) GetContainer(ctx context.Context) (*server.Container, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if cm.container != nil {
		return cm.container, nil
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	container, err := server.NewContainer(ctx, cfg)
	if err != nil {
		return nil, err
	}

	cm.container = container
	return cm.container, nil
}

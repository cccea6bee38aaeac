package redis

import (
	"fmt"
	"sync"

	"github.com/redis/rueidis"
	"go.uber.org/zap"
)

const (
	// StateDBIndex holds persisted suspicion state.
	StateDBIndex = 0
	// QueueDBIndex holds the pending event queue.
	QueueDBIndex = 1
)

// Config contains Redis connection configuration.
type Config struct {
	Host     string `koanf:"host"`     // Redis hostname
	Port     int    `koanf:"port"`     // Redis port
	Username string `koanf:"username"` // Redis username
	Password string `koanf:"password"` // Redis password
}

// Manager handles Redis client management.
type Manager struct {
	clients map[int]rueidis.Client
	config  *Config
	logger  *zap.Logger
	mu      sync.Mutex
}

// NewManager creates a new Redis manager instance.
func NewManager(config *Config, logger *zap.Logger) *Manager {
	return &Manager{
		clients: make(map[int]rueidis.Client),
		config:  config,
		logger:  logger.Named("redis"),
	}
}

// GetClient returns a Redis client for the given database index, creating it
// on first use.
func (m *Manager) GetClient(dbIndex int) (rueidis.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, exists := m.clients[dbIndex]; exists {
		return client, nil
	}

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)},
		Username:    m.config.Username,
		Password:    m.config.Password,
		SelectDB:    dbIndex,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client for DB %d: %w", dbIndex, err)
	}

	m.clients[dbIndex] = client
	m.logger.Debug("Created new Redis client", zap.Int("dbIndex", dbIndex))
	return client, nil
}

// Close closes all Redis clients.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for dbIndex, client := range m.clients {
		client.Close()
		m.logger.Debug("Closed Redis client", zap.Int("dbIndex", dbIndex))
	}
}

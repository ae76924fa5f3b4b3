package grpc

import (
	"context"
	"fmt"
	"time"

	"github.com/example/khanpan/pkg/config"
	"github.com/example/khanpan/pkg/discovery"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// ClientManager owns the connection to the order service used when the
// gateway runs with a remote ledger.
type ClientManager struct {
	config    *config.Config
	discovery *discovery.ServiceDiscovery
	logger    *zap.Logger

	conn   *grpc.ClientConn
	ledger *OrderClient
}

// NewClientManager creates a manager. disc may be nil.
func NewClientManager(cfg *config.Config, logger *zap.Logger, disc *discovery.ServiceDiscovery) *ClientManager {
	return &ClientManager{
		config:    cfg,
		discovery: disc,
		logger:    logger.Named("grpc-client"),
	}
}

// Connect picks the target in this order: ledger.target from config, the
// first instance registered in etcd, then the configured server address.
func (m *ClientManager) Connect(ctx context.Context) error {
	target := m.target(ctx)
	m.logger.Info("Connecting to order service", zap.String("target", target))

	conn, err := Dial(target)
	if err != nil {
		return fmt.Errorf("failed to connect to order service: %w", err)
	}

	m.conn = conn
	m.ledger = NewOrderClient(conn)
	return nil
}

func (m *ClientManager) target(ctx context.Context) string {
	if m.config.Ledger.Target != "" {
		return m.config.Ledger.Target
	}

	fallback := m.config.Server.Addr()
	if m.discovery == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	addr, err := m.discovery.Resolve(ctx, m.config.Server.Name)
	if err != nil {
		m.logger.Info("Using default address for order service",
			zap.String("address", fallback), zap.Error(err))
		return fallback
	}
	m.logger.Info("Discovered order service", zap.String("address", addr))
	return addr
}

// Ledger returns the remote ledger. Connect must have succeeded.
func (m *ClientManager) Ledger() *OrderClient {
	return m.ledger
}

func (m *ClientManager) Close() error {
	if m.conn == nil {
		return nil
	}
	if err := m.conn.Close(); err != nil {
		return fmt.Errorf("failed to close order service connection: %w", err)
	}
	return nil
}

// Package discovery registers and finds the order ledger service in etcd.
// Instances live under <prefix><service>/<host:port> bound to a lease, so a
// crashed instance disappears once its lease expires.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/example/khanpan/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

// LeaseTTL is the etcd lease lifetime in seconds.
const LeaseTTL = 30

var ErrNoInstances = errors.New("no service instances registered")

// ServiceDiscovery talks to etcd through the KV and Lease halves of the
// client.
type ServiceDiscovery struct {
	kv     clientv3.KV
	lease  clientv3.Lease
	closer func() error
	prefix string
	logger *zap.Logger
}

type ServiceInstance struct {
	Name string
	Host string
	Port int
}

func (i *ServiceInstance) Addr() string {
	return net.JoinHostPort(i.Host, strconv.Itoa(i.Port))
}

func NewServiceDiscovery(cfg *config.EtcdConfig, logger *zap.Logger) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return newServiceDiscovery(cli, cli, cli.Close, cfg.Prefix, logger), nil
}

func newServiceDiscovery(kv clientv3.KV, lease clientv3.Lease, closeFn func() error, prefix string, logger *zap.Logger) *ServiceDiscovery {
	return &ServiceDiscovery{
		kv:     kv,
		lease:  lease,
		closer: closeFn,
		prefix: prefix,
		logger: logger.Named("discovery"),
	}
}

func (sd *ServiceDiscovery) key(instance *ServiceInstance) string {
	return fmt.Sprintf("%s%s/%s", sd.prefix, instance.Name, instance.Addr())
}

// Register publishes the instance and keeps its lease alive until ctx is done.
func (sd *ServiceDiscovery) Register(ctx context.Context, instance *ServiceInstance) error {
	lease, err := sd.lease.Grant(ctx, LeaseTTL)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	if _, err := sd.kv.Put(ctx, sd.key(instance), instance.Addr(), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, err := sd.lease.KeepAlive(ctx, lease.ID)
	if err != nil {
		return fmt.Errorf("failed to keep alive: %w", err)
	}

	go func() {
		for range ch {
		}
		sd.logger.Info("Lease keep-alive stopped", zap.String("service", instance.Name))
	}()

	sd.logger.Info("Registered service",
		zap.String("service", instance.Name),
		zap.String("address", instance.Addr()))
	return nil
}

func (sd *ServiceDiscovery) Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	resp, err := sd.kv.Get(ctx, fmt.Sprintf("%s%s/", sd.prefix, serviceName), clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover service: %w", err)
	}

	instances := make([]*ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		host, portStr, err := net.SplitHostPort(string(kv.Value))
		if err != nil {
			sd.logger.Warn("Skipping malformed instance", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			sd.logger.Warn("Skipping malformed instance", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, &ServiceInstance{Name: serviceName, Host: host, Port: port})
	}

	return instances, nil
}

// Resolve returns the address of the first registered instance.
func (sd *ServiceDiscovery) Resolve(ctx context.Context, serviceName string) (string, error) {
	instances, err := sd.Discover(ctx, serviceName)
	if err != nil {
		return "", err
	}
	if len(instances) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoInstances, serviceName)
	}
	return instances[0].Addr(), nil
}

func (sd *ServiceDiscovery) Deregister(ctx context.Context, instance *ServiceInstance) error {
	if _, err := sd.kv.Delete(ctx, sd.key(instance)); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

func (sd *ServiceDiscovery) Close() error {
	return sd.closer()
}

// Package registry self-registers a running lookup instance in etcd so
// operators and sidecars can discover live instances and see which index
// build each one serves.
//
// Registration is optional: a service without registry configuration simply
// is not discoverable. Entries live under an etcd lease that a background
// goroutine renews every TTL/3 seconds; when an instance crashes, its entry
// expires on its own.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// InstanceInfo describes one registered lookup instance.
type InstanceInfo struct {
	// Name is the service name, normally "countermap".
	Name string `json:"name"`

	// Version is the release version of the binary.
	Version string `json:"version"`

	// InstanceID uniquely identifies this instance (typically a UUID).
	InstanceID string `json:"instance_id"`

	// Endpoint is the address this instance advertises, "host:port".
	Endpoint string `json:"endpoint"`

	// BuildID identifies the index build this instance serves.
	BuildID string `json:"build_id,omitempty"`

	// Techniques is the technique count of the served index.
	Techniques int `json:"techniques,omitempty"`

	// StartedAt is when this instance started.
	StartedAt time.Time `json:"started_at"`
}

// Config holds etcd connection settings.
type Config struct {
	// Endpoints lists etcd endpoints (e.g., ["localhost:2379"]).
	Endpoints []string

	// Namespace prefixes all keys. Default: "countermap"
	Namespace string

	// TTL is the registration lease TTL in seconds. Default: 30
	TTL int
}

// Client registers a single lookup instance with etcd. All methods are
// safe for concurrent use.
type Client struct {
	client    *clientv3.Client
	namespace string
	ttl       int

	mu       sync.Mutex
	info     InstanceInfo
	leaseID  clientv3.LeaseID
	cancelFn context.CancelFunc
	wg       sync.WaitGroup
	closed   bool
}

// NewClient connects to etcd and verifies connectivity.
func NewClient(cfg Config) (*Client, error) {
	if len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("registry endpoints cannot be empty")
	}
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "countermap"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30
	}

	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create etcd client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if _, err := cli.Get(ctx, "health-check"); err != nil && err != context.DeadlineExceeded {
		cli.Close()
		return nil, fmt.Errorf("etcd health check failed: %w", err)
	}

	return &Client{client: cli, namespace: namespace, ttl: ttl}, nil
}

// Register writes this instance's entry under a fresh lease and starts the
// keepalive goroutine. Calling it again replaces the previous registration.
func (c *Client) Register(ctx context.Context, info InstanceInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("registry client is closed")
	}
	if c.cancelFn != nil {
		c.cancelFn()
		c.cancelFn = nil
	}

	lease, err := c.client.Grant(ctx, int64(c.ttl))
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("failed to marshal instance info: %w", err)
	}
	if _, err := c.client.Put(ctx, c.key(info.InstanceID), string(data), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("failed to register instance: %w", err)
	}

	c.info = info
	c.leaseID = lease.ID

	keepaliveCtx, cancel := context.WithCancel(context.Background())
	c.cancelFn = cancel
	c.wg.Add(1)
	go c.keepalive(keepaliveCtx, lease.ID)

	return nil
}

// UpdateBuild refreshes the build metadata of the current registration
// after an index rebuild, keeping the existing lease. A client that has
// not registered yet is a no-op; the metadata goes out with Register.
func (c *Client) UpdateBuild(ctx context.Context, buildID string, techniques int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("registry client is closed")
	}
	if c.cancelFn == nil {
		return nil
	}

	c.info.BuildID = buildID
	c.info.Techniques = techniques

	data, err := json.Marshal(c.info)
	if err != nil {
		return fmt.Errorf("failed to marshal instance info: %w", err)
	}
	if _, err := c.client.Put(ctx, c.key(c.info.InstanceID), string(data), clientv3.WithLease(c.leaseID)); err != nil {
		return fmt.Errorf("failed to update registration: %w", err)
	}
	return nil
}

// Deregister revokes the lease, removing this instance's entry. A client
// that never registered is a no-op.
func (c *Client) Deregister(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return fmt.Errorf("registry client is closed")
	}
	if c.cancelFn == nil {
		return nil
	}
	c.cancelFn()
	c.cancelFn = nil

	if _, err := c.client.Revoke(ctx, c.leaseID); err != nil {
		return fmt.Errorf("failed to revoke lease: %w", err)
	}
	return nil
}

// Instances returns all currently registered lookup instances.
func (c *Client) Instances(ctx context.Context) ([]InstanceInfo, error) {
	prefix := fmt.Sprintf("/%s/instances/", c.namespace)
	resp, err := c.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to list instances: %w", err)
	}

	instances := make([]InstanceInfo, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var info InstanceInfo
		if err := json.Unmarshal(kv.Value, &info); err != nil {
			continue
		}
		instances = append(instances, info)
	}
	return instances, nil
}

// Close stops the keepalive goroutine and closes the etcd connection.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	if c.cancelFn != nil {
		c.cancelFn()
		c.cancelFn = nil
	}
	c.mu.Unlock()

	c.wg.Wait()
	return c.client.Close()
}

// keepalive renews the lease every TTL/3 seconds until cancelled or the
// lease becomes invalid.
func (c *Client) keepalive(ctx context.Context, leaseID clientv3.LeaseID) {
	defer c.wg.Done()

	interval := time.Duration(c.ttl) * time.Second / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := c.client.KeepAliveOnce(context.Background(), leaseID); err != nil {
				return
			}
		}
	}
}

// key builds the etcd key for an instance: /namespace/instances/instance-id
func (c *Client) key(instanceID string) string {
	return fmt.Sprintf("/%s/instances/%s", c.namespace, instanceID)
}

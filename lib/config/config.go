// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/aclsync/lib/cluster"
)

// EnvVar names the environment variable Load reads the config path
// from.
const EnvVar = "ACLSYNC_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the configuration shared by aclsync-node and the aclsync
// command.
type Config struct {
	// Environment selects which override section applies.
	Environment Environment `yaml:"environment"`

	Node        NodeConfig        `yaml:"node"`
	Cluster     ClusterConfig     `yaml:"cluster"`
	Convergence ConvergenceConfig `yaml:"convergence"`
	Metrics     MetricsConfig     `yaml:"metrics"`

	// Per-environment overrides of the convergence bounds, applied
	// after the base config is loaded.
	Development *Overrides `yaml:"development,omitempty"`
	Staging     *Overrides `yaml:"staging,omitempty"`
	Production  *Overrides `yaml:"production,omitempty"`
}

// Overrides contains fields that can be overridden per environment.
type Overrides struct {
	Convergence *ConvergenceConfig `yaml:"convergence,omitempty"`
}

// NodeConfig describes the local node.
type NodeConfig struct {
	// ID names the node in membership lists and version snapshots.
	ID cluster.NodeID `yaml:"id"`

	// SocketPath is where the node's endpoint server listens.
	SocketPath string `yaml:"socket_path"`

	// Superusers hold every action. Names starting with "@" are groups.
	Superusers []string `yaml:"superusers"`

	// Groups maps a group name to its members.
	Groups map[string][]string `yaml:"groups"`
}

// ClusterConfig lists the other nodes.
type ClusterConfig struct {
	// ACLNode hosts the ACL table: grants and revokes are sent there.
	ACLNode cluster.NodeID `yaml:"acl_node"`

	// Peers are every other node of the cluster.
	Peers []cluster.Peer `yaml:"peers"`
}

// ConvergenceConfig bounds the wait after a grant or revoke.
type ConvergenceConfig struct {
	// Timeout is the overall deadline. Default: 10s.
	Timeout time.Duration `yaml:"timeout"`

	// PollInterval is the time between version samples. Default: 100ms.
	PollInterval time.Duration `yaml:"poll_interval"`

	// NodeTimeout bounds one node's version read. Default: the poll
	// interval.
	NodeTimeout time.Duration `yaml:"node_timeout"`
}

// MetricsConfig configures the Prometheus listener.
type MetricsConfig struct {
	// Listen is the address for /metrics. Empty disables the listener.
	Listen string `yaml:"listen"`
}

// Default returns the configuration every file is loaded on top of.
// It fills only the convergence bounds; node identity and peers must
// come from the file.
func Default() *Config {
	return &Config{
		Environment: Development,
		Convergence: ConvergenceConfig{
			Timeout:      10 * time.Second,
			PollInterval: 100 * time.Millisecond,
			NodeTimeout:  100 * time.Millisecond,
		},
	}
}

// Load loads configuration from the path in ACLSYNC_CONFIG.
//
// There are no fallbacks: if ACLSYNC_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your aclsync.yaml config file, or use --config flag", EnvVar)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from path, applies the environment
// overrides, and expands ${VAR} references in socket paths.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *Overrides
	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil || overrides.Convergence == nil {
		return
	}

	if overrides.Convergence.Timeout != 0 {
		c.Convergence.Timeout = overrides.Convergence.Timeout
	}
	if overrides.Convergence.PollInterval != 0 {
		c.Convergence.PollInterval = overrides.Convergence.PollInterval
	}
	if overrides.Convergence.NodeTimeout != 0 {
		c.Convergence.NodeTimeout = overrides.Convergence.NodeTimeout
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// socket paths. ${NODE_ID} expands to the local node id.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"NODE_ID": string(c.Node.ID),
		"HOME":    os.Getenv("HOME"),
	}

	c.Node.SocketPath = expandVars(c.Node.SocketPath, vars)
	for i := range c.Cluster.Peers {
		c.Cluster.Peers[i].SocketPath = expandVars(c.Cluster.Peers[i].SocketPath, vars)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate reports every problem with the configuration at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Node.ID == "" {
		errs = append(errs, errors.New("node.id is required"))
	}
	if c.Node.SocketPath == "" {
		errs = append(errs, errors.New("node.socket_path is required"))
	}

	known := map[cluster.NodeID]bool{c.Node.ID: true}
	for i, peer := range c.Cluster.Peers {
		if peer.ID == "" {
			errs = append(errs, fmt.Errorf("cluster.peers[%d].id is required", i))
			continue
		}
		if peer.SocketPath == "" {
			errs = append(errs, fmt.Errorf("cluster.peers[%d].socket_path is required", i))
		}
		if known[peer.ID] {
			errs = append(errs, fmt.Errorf("cluster.peers[%d]: duplicate node id %q", i, peer.ID))
		}
		known[peer.ID] = true
	}
	if c.Cluster.ACLNode == "" {
		errs = append(errs, errors.New("cluster.acl_node is required"))
	} else if !known[c.Cluster.ACLNode] {
		errs = append(errs, fmt.Errorf("cluster.acl_node %q is neither this node nor a peer", c.Cluster.ACLNode))
	}

	if c.Convergence.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("convergence.timeout must be positive, got %v", c.Convergence.Timeout))
	}
	if c.Convergence.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("convergence.poll_interval must be positive, got %v", c.Convergence.PollInterval))
	}
	if c.Convergence.NodeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("convergence.node_timeout must be positive, got %v", c.Convergence.NodeTimeout))
	}
	if c.Convergence.PollInterval > c.Convergence.Timeout {
		errs = append(errs, fmt.Errorf("convergence.poll_interval %v exceeds convergence.timeout %v",
			c.Convergence.PollInterval, c.Convergence.Timeout))
	}

	return errors.Join(errs...)
}

// Members returns every node of the cluster, the local node first.
func (c *Config) Members() []cluster.Peer {
	members := make([]cluster.Peer, 0, len(c.Cluster.Peers)+1)
	members = append(members, cluster.Peer{ID: c.Node.ID, SocketPath: c.Node.SocketPath})
	return append(members, c.Cluster.Peers...)
}

// PeerIDs returns the ids of every peer.
func (c *Config) PeerIDs() []cluster.NodeID {
	ids := make([]cluster.NodeID, len(c.Cluster.Peers))
	for i, peer := range c.Cluster.Peers {
		ids[i] = peer.ID
	}
	return ids
}

package service

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/binsense/coapnode-go/pkg/payload"
	"github.com/binsense/coapnode-go/pkg/subscription"
)

// Service errors.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrAlreadyStarted = errors.New("service already started")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

// ServiceState represents the service state.
type ServiceState uint8

const (
	// StateIdle - service created but not started.
	StateIdle ServiceState = iota

	// StateStarting - service is starting up.
	StateStarting

	// StateRunning - service is running normally.
	StateRunning

	// StateStopping - service is shutting down.
	StateStopping

	// StateStopped - service has stopped.
	StateStopped
)

// String returns the state name.
func (s ServiceState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateStarting:
		return "STARTING"
	case StateRunning:
		return "RUNNING"
	case StateStopping:
		return "STOPPING"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}

// NodeConfig configures a NodeService.
type NodeConfig struct {
	// ListenAddress is the UDP address to listen on (e.g., ":5683").
	ListenAddress string `yaml:"listen_address"`

	// InstanceName is the DNS-SD instance name.
	InstanceName string `yaml:"instance_name"`

	// SamplingInterval is the boot-time sensor sampling period in
	// seconds; clients can change it at runtime via /config.
	SamplingInterval int64 `yaml:"sampling_interval"`

	// ObserverLimit caps observers per resource.
	ObserverLimit int `yaml:"observer_limit"`

	// EnableDiscovery turns DNS-SD advertising on.
	EnableDiscovery bool `yaml:"enable_discovery"`

	// DiscoveryInterface restricts advertising to one network
	// interface. Empty means all interfaces.
	DiscoveryInterface string `yaml:"discovery_interface"`
}

// DefaultNodeConfig returns the default node configuration.
func DefaultNodeConfig() NodeConfig {
	return NodeConfig{
		ListenAddress:    ":5683",
		InstanceName:     "coapnode",
		SamplingInterval: payload.DefaultSamplingInterval,
		ObserverLimit:    subscription.DefaultMaxPerResource,
		EnableDiscovery:  false,
	}
}

// Validate checks the configuration for wiring errors.
func (c NodeConfig) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("%w: listen_address is required", ErrInvalidConfig)
	}
	if c.SamplingInterval < payload.MinSamplingInterval || c.SamplingInterval > payload.MaxSamplingInterval {
		return fmt.Errorf("%w: sampling_interval %d not in [%d, %d]",
			ErrInvalidConfig, c.SamplingInterval, payload.MinSamplingInterval, payload.MaxSamplingInterval)
	}
	if c.ObserverLimit < 0 {
		return fmt.Errorf("%w: observer_limit must not be negative", ErrInvalidConfig)
	}
	if c.EnableDiscovery && c.InstanceName == "" {
		return fmt.Errorf("%w: instance_name is required for discovery", ErrInvalidConfig)
	}
	return nil
}

// Interval returns the boot-time sampling interval as a duration.
func (c NodeConfig) Interval() time.Duration {
	return time.Duration(c.SamplingInterval) * time.Second
}

// LoadNodeConfig reads a YAML configuration file, applying defaults for
// absent keys.
func LoadNodeConfig(path string) (NodeConfig, error) {
	config := DefaultNodeConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return config, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return config, err
	}
	return config, nil
}

package discovery

import (
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/enbility/zeroconf/v3"
)

// DNS-SD service parameters for CoAP over UDP.
const (
	ServiceTypeCoAP = "_coap._udp"
	Domain          = "local."
)

// AdvertiserConfig configures advertiser behavior.
type AdvertiserConfig struct {
	// InstanceName is the advertised service instance name.
	InstanceName string

	// Interface specifies which network interface to use.
	// Empty string means all interfaces.
	Interface string

	// TTL is the DNS record TTL. Default: 120 seconds.
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig(instanceName string) AdvertiserConfig {
	return AdvertiserConfig{
		InstanceName: instanceName,
		TTL:          120 * time.Second,
	}
}

// Advertiser advertises one _coap._udp service instance using zeroconf.
type Advertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewAdvertiser creates an mDNS advertiser.
func NewAdvertiser(config AdvertiserConfig) *Advertiser {
	if config.TTL <= 0 {
		config.TTL = 120 * time.Second
	}
	return &Advertiser{config: config}
}

// Advertise starts advertising the service on the given port with the
// given TXT records. Advertising again replaces the previous
// registration.
func (a *Advertiser) Advertise(port int, txt []string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	opts := []zeroconf.ServerOption{
		zeroconf.TTL(uint32(a.config.TTL.Seconds())),
	}

	server, err := zeroconf.Register(
		a.config.InstanceName,
		ServiceTypeCoAP,
		Domain,
		port,
		txt,
		a.getInterfaces(),
		opts...,
	)
	if err != nil {
		return fmt.Errorf("discovery: register %s: %w", a.config.InstanceName, err)
	}
	a.server = server
	return nil
}

// Stop withdraws the advertisement.
func (a *Advertiser) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// getInterfaces returns the network interfaces to use for advertising.
// Returns nil to use all interfaces.
func (a *Advertiser) getInterfaces() []net.Interface {
	if a.config.Interface == "" {
		return nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil
	}
	return []net.Interface{*iface}
}

// BuildTXT builds TXT records advertising the hosted resource types.
// Types are deduplicated and sorted for a stable record.
func BuildTXT(resourceTypes []string, contentFormat uint16) []string {
	seen := make(map[string]struct{})
	var types []string
	for _, rt := range resourceTypes {
		if rt == "" {
			continue
		}
		if _, dup := seen[rt]; dup {
			continue
		}
		seen[rt] = struct{}{}
		types = append(types, rt)
	}
	sort.Strings(types)

	return []string{
		fmt.Sprintf("rt=%s", strings.Join(types, " ")),
		fmt.Sprintf("ct=%d", contentFormat),
	}
}

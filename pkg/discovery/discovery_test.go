package discovery

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBuildTXT(t *testing.T) {
	txt := BuildTXT([]string{
		"oic.r.sensor",
		"oic.r.coreconf",
		"oic.r.configuration",
		"oic.r.led",
		"oic.r.sensor", // duplicate
		"",
	}, 60)

	assert.Equal(t, []string{
		"rt=oic.r.configuration oic.r.coreconf oic.r.led oic.r.sensor",
		"ct=60",
	}, txt)
}

func TestBuildTXTEmpty(t *testing.T) {
	txt := BuildTXT(nil, 60)
	assert.Equal(t, []string{"rt=", "ct=60"}, txt)
}

func TestDefaultAdvertiserConfig(t *testing.T) {
	cfg := DefaultAdvertiserConfig("bin-node-1")
	assert.Equal(t, "bin-node-1", cfg.InstanceName)
	assert.Equal(t, 120*time.Second, cfg.TTL)
}

func TestMergeAddresses(t *testing.T) {
	merged := mergeAddresses([]string{"192.168.1.10"}, []string{"192.168.1.10", "fe80::1"})
	assert.Equal(t, []string{"192.168.1.10", "fe80::1"}, merged)
}

func TestStopWithoutAdvertise(t *testing.T) {
	a := NewAdvertiser(DefaultAdvertiserConfig("bin-node-1"))
	a.Stop() // must not panic
}

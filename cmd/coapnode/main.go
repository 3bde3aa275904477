// Command coapnode runs a CoAP sensor node: simulated environmental
// sensors, a small LED actuator bank, and a hardware-style push button,
// served over UDP with observe support and optional DNS-SD advertising.
//
// Usage:
//
//	coapnode [flags]
//
// Flags:
//
//	-config string      Configuration file path (YAML)
//	-listen string      UDP listen address (default ":5683")
//	-interval int       Sampling interval in seconds (default 10)
//	-name string        DNS-SD instance name (default "coapnode")
//	-advertise          Advertise the node via DNS-SD
//	-log-level string   Log level: debug, info, warn, error (default "info")
//	-log-file string    Write the CBOR protocol log to this file
//	-interactive        Enable interactive command mode
//
// Examples:
//
//	# Run on the default CoAP port with simulated sensors
//	coapnode
//
//	# Run with a config file and protocol capture
//	coapnode -config /etc/coapnode/node.yaml -log-file node.cborlog
//
//	# Run interactively to drive the button and LEDs by hand
//	coapnode -interactive -log-level debug
package main

import (
	"context"
	"flag"
	stdlog "log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/binsense/coapnode-go/cmd/coapnode/interactive"
	"github.com/binsense/coapnode-go/pkg/driver"
	"github.com/binsense/coapnode-go/pkg/log"
	"github.com/binsense/coapnode-go/pkg/sampling"
	"github.com/binsense/coapnode-go/pkg/service"
)

// Config holds the node's command-line configuration.
type Config struct {
	ConfigFile  string
	Listen      string
	Interval    int64
	Name        string
	Advertise   bool
	LogLevel    string
	LogFile     string
	Interactive bool
}

var config Config

func init() {
	flag.StringVar(&config.ConfigFile, "config", "", "Configuration file path (YAML)")
	flag.StringVar(&config.Listen, "listen", "", "UDP listen address")
	flag.Int64Var(&config.Interval, "interval", 0, "Sampling interval in seconds")
	flag.StringVar(&config.Name, "name", "", "DNS-SD instance name")
	flag.BoolVar(&config.Advertise, "advertise", false, "Advertise the node via DNS-SD")
	flag.StringVar(&config.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	flag.StringVar(&config.LogFile, "log-file", "", "Write the CBOR protocol log to this file")
	flag.BoolVar(&config.Interactive, "interactive", false, "Enable interactive command mode")
}

func main() {
	flag.Parse()

	slogger := newSlogger(config.LogLevel)

	nodeConfig, err := loadNodeConfig()
	if err != nil {
		stdlog.Fatalf("Invalid configuration: %v", err)
	}

	stdlog.SetFlags(stdlog.Ltime | stdlog.Lmicroseconds)
	stdlog.Println("CoAP Sensor Node")
	stdlog.Println("================")
	stdlog.Printf("Listen address: %s", nodeConfig.ListenAddress)
	stdlog.Printf("Sampling interval: %ds", nodeConfig.SamplingInterval)
	stdlog.Printf("Discovery: %v", nodeConfig.EnableDiscovery)

	// Hardware: simulated sensors, LED bank, push button.
	leds := driver.NewLEDBank()
	button := driver.NewButton(leds)
	sensors := []sampling.Sensor{
		driver.NewClimate(),
		driver.NewLight(),
		driver.NewFill(25),
	}

	svc, err := service.NewNodeService(nodeConfig, sensors, leds)
	if err != nil {
		stdlog.Fatalf("Failed to create node service: %v", err)
	}

	protocolLogger, closeLogger, err := buildProtocolLogger(slogger)
	if err != nil {
		stdlog.Fatalf("Failed to open log file: %v", err)
	}
	defer closeLogger()
	svc.SetLogger(protocolLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		stdlog.Fatalf("Failed to start node: %v", err)
	}
	stdlog.Printf("Node listening on %s (state: %s)", svc.Addr(), svc.State())

	if config.Interactive {
		node, err := interactive.New(svc, leds, button)
		if err != nil {
			stdlog.Fatalf("Failed to create interactive mode: %v", err)
		}
		// Redirect log output through readline to avoid interfering
		// with input.
		stdlog.SetOutput(node.Stdout())
		go node.Run(ctx, cancel)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		stdlog.Printf("Received signal: %v", sig)
	case <-ctx.Done():
		// Cancelled by the interactive quit command.
	}

	stdlog.Println("Shutting down...")
	if err := svc.Stop(); err != nil {
		stdlog.Printf("Error stopping node: %v", err)
	}
	stdlog.Println("Goodbye!")
}

// loadNodeConfig merges the config file with command-line overrides.
func loadNodeConfig() (service.NodeConfig, error) {
	nodeConfig := service.DefaultNodeConfig()
	if config.ConfigFile != "" {
		loaded, err := service.LoadNodeConfig(config.ConfigFile)
		if err != nil {
			return nodeConfig, err
		}
		nodeConfig = loaded
	}

	if config.Listen != "" {
		nodeConfig.ListenAddress = config.Listen
	}
	if config.Interval != 0 {
		nodeConfig.SamplingInterval = config.Interval
	}
	if config.Name != "" {
		nodeConfig.InstanceName = config.Name
	}
	if config.Advertise {
		nodeConfig.EnableDiscovery = true
	}
	return nodeConfig, nodeConfig.Validate()
}

// buildProtocolLogger assembles the protocol logger: slog always, plus
// the CBOR file capture when requested.
func buildProtocolLogger(slogger *slog.Logger) (log.Logger, func(), error) {
	slogAdapter := log.NewSlogAdapter(slogger)
	if config.LogFile == "" {
		return slogAdapter, func() {}, nil
	}

	fileLogger, err := log.NewFileLogger(config.LogFile)
	if err != nil {
		return nil, nil, err
	}
	return log.NewMultiLogger(slogAdapter, fileLogger), func() { fileLogger.Close() }, nil
}

func newSlogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

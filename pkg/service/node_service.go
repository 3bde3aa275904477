package service

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/binsense/coapnode-go/pkg/discovery"
	"github.com/binsense/coapnode-go/pkg/driver"
	"github.com/binsense/coapnode-go/pkg/interaction"
	"github.com/binsense/coapnode-go/pkg/log"
	"github.com/binsense/coapnode-go/pkg/model"
	"github.com/binsense/coapnode-go/pkg/payload"
	"github.com/binsense/coapnode-go/pkg/sampling"
	"github.com/binsense/coapnode-go/pkg/subscription"
	"github.com/binsense/coapnode-go/pkg/transport"
	"github.com/binsense/coapnode-go/pkg/wire"
)

// datagramQueueDepth bounds the inbound queue between the transport
// goroutine and the event loop. Datagrams beyond it are dropped; UDP
// clients retransmit.
const datagramQueueDepth = 64

type datagram struct {
	endpoint string
	data     []byte
}

// NodeService orchestrates a CoAP sensor node.
type NodeService struct {
	mu sync.RWMutex

	config NodeConfig
	state  ServiceState

	registry   *model.Registry
	observers  *subscription.Table
	dispatcher *interaction.Server
	scheduler  *sampling.Scheduler
	leds       *driver.LEDBank
	advertiser *discovery.Advertiser

	udp *transport.Server

	// Protocol logger for structured event capture (optional).
	logger log.Logger

	// Event loop inputs.
	datagrams chan datagram
	hwEvents  chan struct{}

	// Resources resolved once at construction.
	resSensors *model.Resource
	resConfig  *model.Resource
	resLEDs    *model.Resource

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewNodeService creates a node service over the given sensors and LED
// bank. A nil bank gets a fresh simulated one.
func NewNodeService(config NodeConfig, sensors []sampling.Sensor, leds *driver.LEDBank) (*NodeService, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if leds == nil {
		leds = driver.NewLEDBank()
	}

	s := &NodeService{
		config:    config,
		state:     StateIdle,
		observers: subscription.NewTableWithLimit(config.ObserverLimit),
		leds:      leds,
		logger:    log.NoopLogger{},
		datagrams: make(chan datagram, datagramQueueDepth),
		hwEvents:  make(chan struct{}, 1),
	}

	registry, err := s.buildRegistry()
	if err != nil {
		return nil, err
	}
	s.registry = registry

	s.dispatcher = interaction.NewServer(registry, s.observers)
	s.scheduler = sampling.NewScheduler(sensors, leds.State)

	// Wake the event loop on out-of-band LED changes (the hardware
	// button). The channel is a level trigger: the loop reads the bank
	// state, so coalescing wakeups is fine.
	leds.OnChange(func(payload.LEDState) {
		select {
		case s.hwEvents <- struct{}{}:
		default:
		}
	})

	if config.EnableDiscovery {
		s.advertiser = discovery.NewAdvertiser(discovery.AdvertiserConfig{
			InstanceName: config.InstanceName,
			Interface:    config.DiscoveryInterface,
		})
	}

	return s, nil
}

// buildRegistry registers the node's four resources with their
// validators.
func (s *NodeService) buildRegistry() (*model.Registry, error) {
	registry := model.NewRegistry()

	initialSensors, err := payload.Marshal(payload.SensorData{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		LEDStates: s.leds.State(),
	})
	if err != nil {
		return nil, err
	}
	s.resSensors, err = registry.Register(model.PathSensors, model.Descriptor{
		Kind:          model.KindSensors,
		ResourceType:  model.RTSensor,
		Interface:     model.IFBaseline,
		ContentFormat: wire.ContentFormatCBOR,
		Observable:    true,
		Initial:       initialSensors,
	})
	if err != nil {
		return nil, err
	}

	capabilities, err := payload.Marshal(payload.DefaultCapabilityModel())
	if err != nil {
		return nil, err
	}
	if _, err = registry.Register(model.PathCapabilities, model.Descriptor{
		Kind:          model.KindCapabilities,
		ResourceType:  model.RTCoreconf,
		Interface:     model.IFBaseline,
		ContentFormat: wire.ContentFormatCBOR,
		Initial:       capabilities,
	}); err != nil {
		return nil, err
	}

	initialConfig, err := payload.Marshal(payload.Config{SamplingInterval: s.config.SamplingInterval})
	if err != nil {
		return nil, err
	}
	s.resConfig, err = registry.Register(model.PathConfig, model.Descriptor{
		Kind:          model.KindConfig,
		ResourceType:  model.RTConfiguration,
		Interface:     model.IFBaseline,
		ContentFormat: wire.ContentFormatCBOR,
		Validate:      validateConfigWrite,
		Initial:       initialConfig,
	})
	if err != nil {
		return nil, err
	}

	initialLEDs, err := payload.Marshal(s.leds.State())
	if err != nil {
		return nil, err
	}
	s.resLEDs, err = registry.Register(model.PathLEDs, model.Descriptor{
		Kind:          model.KindLEDs,
		ResourceType:  model.RTLED,
		Interface:     model.IFActuator,
		ContentFormat: wire.ContentFormatCBOR,
		Observable:    true,
		Validate:      s.validateLEDWrite,
		Initial:       initialLEDs,
	})
	if err != nil {
		return nil, err
	}

	return registry, nil
}

// validateConfigWrite applies a /config PUT on top of the current
// configuration.
func validateConfigWrite(current, data []byte) ([]byte, error) {
	var cur payload.Config
	if err := payload.Unmarshal(current, &cur); err != nil {
		return nil, err
	}
	next, err := payload.DecodeConfig(data, cur)
	if err != nil {
		return nil, err
	}
	return payload.Marshal(next)
}

// validateLEDWrite applies a /leds PUT: the patch is decoded against
// the current state and driven to the hardware before the canonical
// representation is stored.
func (s *NodeService) validateLEDWrite(current, data []byte) ([]byte, error) {
	var cur payload.LEDState
	if err := payload.Unmarshal(current, &cur); err != nil {
		return nil, err
	}
	next, err := payload.DecodeLEDState(data, cur)
	if err != nil {
		return nil, err
	}
	s.leds.Apply(next)
	return payload.Marshal(next)
}

// SetLogger sets the protocol logger for the whole node. Must be
// called before Start.
func (s *NodeService) SetLogger(logger log.Logger) {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger = logger
	s.dispatcher.SetLogger(logger)
	s.scheduler.SetLogger(logger)
}

// Registry returns the resource registry.
func (s *NodeService) Registry() *model.Registry {
	return s.registry
}

// Observers returns the observer table.
func (s *NodeService) Observers() *subscription.Table {
	return s.observers
}

// State returns the current service state.
func (s *NodeService) State() ServiceState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Addr returns the bound UDP address, or nil before Start.
func (s *NodeService) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.udp == nil {
		return nil
	}
	return s.udp.Addr()
}

// Start binds the transport, begins advertising, and runs the event
// loop until Stop or ctx cancellation.
func (s *NodeService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateStopped {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.state = StateStarting
	s.mu.Unlock()

	s.ctx, s.cancel = context.WithCancel(ctx)

	udp := transport.NewServer(transport.ServerConfig{
		Address: s.config.ListenAddress,
		Logger:  s.logger,
		OnDatagram: func(endpoint string, data []byte) {
			select {
			case s.datagrams <- datagram{endpoint: endpoint, data: data}:
			default:
				// Queue full; the client will retransmit.
			}
		},
		OnError: func(err error) {
			s.logger.Log(log.Event{
				Timestamp: time.Now(),
				Layer:     log.LayerTransport,
				Category:  log.CategoryError,
				Error: &log.ErrorEventData{
					Layer:   log.LayerTransport,
					Message: err.Error(),
				},
			})
		},
	})
	if err := udp.Start(s.ctx); err != nil {
		s.setState(StateIdle)
		return err
	}

	s.mu.Lock()
	s.udp = udp
	s.mu.Unlock()

	s.dispatcher.SetSender(func(endpoint string, msg *wire.Message) {
		data, err := wire.Encode(msg)
		if err != nil {
			return
		}
		_ = udp.Send(endpoint, data)
	})

	if s.advertiser != nil {
		if err := s.advertiser.Advertise(udpPort(udp.Addr()), s.discoveryTXT()); err != nil {
			// Advertising is best effort; the node serves without it.
			s.logger.Log(log.Event{
				Timestamp: time.Now(),
				Layer:     log.LayerService,
				Category:  log.CategoryError,
				Error: &log.ErrorEventData{
					Layer:   log.LayerService,
					Message: err.Error(),
					Context: "dns-sd advertise",
				},
			})
		}
	}

	s.wg.Add(1)
	go s.run()

	s.setState(StateRunning)
	s.logStateChange("STARTING", "RUNNING")
	return nil
}

// Stop shuts the node down and waits for the event loop to exit.
func (s *NodeService) Stop() error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return ErrNotStarted
	}
	s.state = StateStopping
	s.mu.Unlock()

	s.cancel()
	if s.advertiser != nil {
		s.advertiser.Stop()
	}
	err := s.udp.Stop()
	s.wg.Wait()

	s.setState(StateStopped)
	s.logStateChange("RUNNING", "STOPPED")
	return err
}

// run is the event loop. All resource mutation happens here.
func (s *NodeService) run() {
	defer s.wg.Done()

	// First sample immediately so /sensors carries data before the
	// first tick.
	s.sample()

	interval := s.currentInterval()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case d := <-s.datagrams:
			s.dispatcher.HandleDatagram(s.ctx, d.endpoint, d.data)
			// A /config write takes effect on the next cycle.
			if next := s.currentInterval(); next != interval {
				interval = next
				ticker.Reset(interval)
			}

		case <-s.hwEvents:
			s.applyHardwareLEDState()

		case <-ticker.C:
			s.sample()
		}
	}
}

// sample runs one sampling cycle and publishes the result.
func (s *NodeService) sample() {
	data := s.scheduler.Sample(s.ctx)
	encoded, err := payload.Marshal(data)
	if err != nil {
		s.logger.Log(log.Event{
			Timestamp: time.Now(),
			Layer:     log.LayerService,
			Category:  log.CategoryError,
			Error: &log.ErrorEventData{
				Layer:   log.LayerService,
				Message: err.Error(),
				Context: "encode sensor data",
			},
		})
		return
	}
	if s.registry.SetRepresentation(s.resSensors, encoded) {
		s.dispatcher.NotifyObservers(model.PathSensors)
	}
}

// applyHardwareLEDState publishes an LED change that happened outside
// the network path. After a network write the stored representation
// already matches the bank, so this is a no-op then.
func (s *NodeService) applyHardwareLEDState() {
	encoded, err := payload.Marshal(s.leds.State())
	if err != nil {
		return
	}
	if s.registry.SetRepresentation(s.resLEDs, encoded) {
		s.dispatcher.NotifyObservers(model.PathLEDs)
	}
}

// currentInterval reads the sampling interval from the /config
// representation.
func (s *NodeService) currentInterval() time.Duration {
	var cfg payload.Config
	if err := payload.Unmarshal(s.resConfig.Read(), &cfg); err != nil {
		return s.config.Interval()
	}
	return cfg.Interval()
}

// discoveryTXT builds the DNS-SD TXT records from the registry.
func (s *NodeService) discoveryTXT() []string {
	var types []string
	for _, r := range s.registry.List() {
		types = append(types, r.ResourceType())
	}
	return discovery.BuildTXT(types, wire.ContentFormatCBOR)
}

func (s *NodeService) setState(state ServiceState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
}

func (s *NodeService) logStateChange(oldState, newState string) {
	s.logger.Log(log.Event{
		Timestamp: time.Now(),
		Layer:     log.LayerService,
		Category:  log.CategoryState,
		StateChange: &log.StateChangeEvent{
			Entity:   log.StateEntityServer,
			OldState: oldState,
			NewState: newState,
		},
	})
}

func udpPort(addr net.Addr) int {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return transport.DefaultPort
	}
	return udpAddr.Port
}

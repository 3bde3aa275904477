package sampling

import (
	"context"
	"time"

	"github.com/binsense/coapnode-go/pkg/log"
	"github.com/binsense/coapnode-go/pkg/payload"
)

// Value keys sensors may report. Unknown keys are ignored.
const (
	KeyTemperature = "temperature"
	KeyHumidity    = "humidity"
	KeyLightLevel  = "lightLevel"
	KeyBinLevel    = "binLevel"
)

// DefaultReadTimeout bounds a single sensor read.
const DefaultReadTimeout = 2 * time.Second

// Sensor is a driver that produces named values on demand.
type Sensor interface {
	// Name identifies the sensor in logs.
	Name() string

	// Read performs one measurement. It must respect ctx cancellation.
	Read(ctx context.Context) (map[string]float64, error)
}

// LEDSource reports the current LED states for inclusion in the
// /sensors representation.
type LEDSource func() payload.LEDState

// Scheduler runs sampling cycles over a fixed set of sensors and
// accumulates the latest good value per measurement.
type Scheduler struct {
	sensors     []Sensor
	leds        LEDSource
	readTimeout time.Duration
	logger      log.Logger

	// now is replaceable for tests.
	now func() time.Time

	// last holds the most recent good value per key, carried forward
	// across faults.
	last payload.SensorData
}

// NewScheduler creates a scheduler over the given sensors. A nil leds
// source reports all LEDs off.
func NewScheduler(sensors []Sensor, leds LEDSource) *Scheduler {
	if leds == nil {
		leds = func() payload.LEDState { return payload.LEDState{} }
	}
	return &Scheduler{
		sensors:     sensors,
		leds:        leds,
		readTimeout: DefaultReadTimeout,
		logger:      log.NoopLogger{},
		now:         time.Now,
	}
}

// SetLogger sets the diagnostic logger. Pass nil to disable.
func (s *Scheduler) SetLogger(logger log.Logger) {
	if logger == nil {
		logger = log.NoopLogger{}
	}
	s.logger = logger
}

// SetReadTimeout overrides the per-sensor read timeout.
func (s *Scheduler) SetReadTimeout(d time.Duration) {
	if d > 0 {
		s.readTimeout = d
	}
}

// Sample runs one sampling cycle and returns the merged /sensors
// representation. Faulty sensors keep their previous values.
func (s *Scheduler) Sample(ctx context.Context) payload.SensorData {
	for _, sensor := range s.sensors {
		values, err := s.read(ctx, sensor)
		if err != nil {
			s.logger.Log(log.Event{
				Timestamp: s.now(),
				Layer:     log.LayerService,
				Category:  log.CategorySensor,
				Sensor: &log.SensorEvent{
					Name:  sensor.Name(),
					Fault: err.Error(),
				},
			})
			continue
		}
		s.merge(values)
		s.logger.Log(log.Event{
			Timestamp: s.now(),
			Layer:     log.LayerService,
			Category:  log.CategorySensor,
			Sensor: &log.SensorEvent{
				Name:   sensor.Name(),
				Values: values,
			},
		})
	}

	s.last.Timestamp = s.now().UTC().Format(time.RFC3339)
	s.last.LEDStates = s.leds()
	return s.last
}

// read performs one bounded sensor read.
func (s *Scheduler) read(ctx context.Context, sensor Sensor) (map[string]float64, error) {
	ctx, cancel := context.WithTimeout(ctx, s.readTimeout)
	defer cancel()
	return sensor.Read(ctx)
}

// merge folds a reading into the accumulated state.
func (s *Scheduler) merge(values map[string]float64) {
	for key, value := range values {
		v := value
		switch key {
		case KeyTemperature:
			s.last.Temperature = &v
		case KeyHumidity:
			s.last.Humidity = &v
		case KeyLightLevel:
			s.last.LightLevel = &v
		case KeyBinLevel:
			s.last.BinLevel = &v
		}
	}
}

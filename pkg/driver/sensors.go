package driver

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/binsense/coapnode-go/pkg/sampling"
)

// ErrSensorFault simulates a transient hardware fault (bad checksum,
// missed echo).
var ErrSensorFault = errors.New("driver: sensor fault")

// Climate simulates a DHT22 temperature and humidity sensor.
type Climate struct {
	// FaultRate is the probability of a transient read fault, in
	// [0, 1]. Zero means reads always succeed.
	FaultRate float64

	now func() time.Time
	rng *rand.Rand
	mu  sync.Mutex
}

// NewClimate creates a simulated DHT22.
func NewClimate() *Climate {
	return &Climate{
		now: time.Now,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name implements sampling.Sensor.
func (c *Climate) Name() string { return "dht22" }

// Read implements sampling.Sensor. Temperature follows a slow daily
// curve around 21 degrees; humidity moves inversely.
func (c *Climate) Read(ctx context.Context) (map[string]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.FaultRate > 0 && c.rng.Float64() < c.FaultRate {
		return nil, ErrSensorFault
	}

	phase := dayPhase(c.now())
	temperature := 21.0 + 4.0*math.Sin(phase) + c.rng.Float64()*0.4 - 0.2
	humidity := 50.0 - 10.0*math.Sin(phase) + c.rng.Float64()*2.0 - 1.0

	return map[string]float64{
		sampling.KeyTemperature: round1(temperature),
		sampling.KeyHumidity:    round1(humidity),
	}, nil
}

// Light simulates an ambient light sensor reporting lux.
type Light struct {
	now func() time.Time
	rng *rand.Rand
	mu  sync.Mutex
}

// NewLight creates a simulated light sensor.
func NewLight() *Light {
	return &Light{
		now: time.Now,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name implements sampling.Sensor.
func (l *Light) Name() string { return "light" }

// Read implements sampling.Sensor. Output is near zero at night and
// peaks around midday.
func (l *Light) Read(ctx context.Context) (map[string]float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hour := float64(l.now().Hour()) + float64(l.now().Minute())/60.0
	daylight := math.Max(0, math.Sin((hour-6.0)/12.0*math.Pi))
	lux := daylight*800.0 + l.rng.Float64()*20.0

	return map[string]float64{sampling.KeyLightLevel: round1(lux)}, nil
}

// Fill simulates an HC-SR04 ultrasonic fill-level sensor mounted in a
// waste bin lid. The level climbs slowly and resets when the bin is
// emptied.
type Fill struct {
	// FaultRate is the probability of a missed echo, in [0, 1].
	FaultRate float64

	level float64
	rng   *rand.Rand
	mu    sync.Mutex
}

// NewFill creates a simulated fill-level sensor starting at the given
// percentage.
func NewFill(initial float64) *Fill {
	return &Fill{
		level: math.Min(math.Max(initial, 0), 100),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Name implements sampling.Sensor.
func (f *Fill) Name() string { return "hcsr04" }

// Read implements sampling.Sensor.
func (f *Fill) Read(ctx context.Context) (map[string]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.FaultRate > 0 && f.rng.Float64() < f.FaultRate {
		return nil, ErrSensorFault
	}

	f.level += f.rng.Float64() * 0.5
	if f.level >= 100 {
		// Bin emptied.
		f.level = 0
	}
	return map[string]float64{sampling.KeyBinLevel: round1(f.level)}, nil
}

// dayPhase maps the wall clock to an angle with its peak mid-afternoon.
func dayPhase(t time.Time) float64 {
	hour := float64(t.Hour()) + float64(t.Minute())/60.0
	return (hour - 9.0) / 24.0 * 2 * math.Pi
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// Package driver provides the device's hardware drivers. The bundled
// implementations are simulations that produce plausible readings from
// the wall clock plus jitter, so a full node can run on a workstation;
// real hardware swaps in by implementing the same sampling.Sensor
// interface.
package driver

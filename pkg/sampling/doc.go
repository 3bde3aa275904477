// Package sampling implements the periodic sensor sampling cycle: each
// cycle reads every registered sensor, isolates per-sensor faults, and
// merges the results with the LED states into the /sensors
// representation.
//
// A sensor fault never fails the cycle: the faulty sensor's previous
// value is carried forward (or stays null if it never produced one) and
// the fault is logged. Reads run with a per-sensor timeout so a hung
// driver cannot stall the device.
package sampling

// Package log provides structured diagnostic logging for the CoAP node.
//
// Components emit Event values describing datagrams, decoded messages,
// sensor faults and state changes; applications choose a sink: NoopLogger
// to disable, SlogAdapter for console output through log/slog, FileLogger
// for a compact CBOR event stream, or MultiLogger to combine sinks.
//
// Logging is fire and forget: sinks never return errors to the caller and
// must not block the event loop.
package log

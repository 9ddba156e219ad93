// SPDX-License-Identifier: BSD-3-Clause

// Package sensorreader implements the kiln control core's leaf component:
// a 4 Hz task that samples the Type-K thermocouple-to-digital converter
// over SPI, decodes its 32-bit frame, and publishes the latest reading
// into a single-writer cell exposed over NATS IPC.
//
// # Overview
//
// The sensor reader owns the thermocouple sensor exclusively. It performs
// no temperature correction, fault interpretation, or safety logic of its
// own — that is the Safety Monitor's and Firing Engine's job, both of
// which read the latest reading over [ipc.SubjectSensorReading]. A failed
// SPI transaction is logged and does not overwrite the cached reading;
// staleness is someone else's problem to detect.
//
// # NATS IPC Endpoints
//
//   - sensor.reading - returns the most recently decoded reading
package sensorreader

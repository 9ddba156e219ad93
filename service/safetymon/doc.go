// SPDX-License-Identifier: BSD-3-Clause

// Package safetymon implements the kiln control core's independent safety
// layer: a 2 Hz audit task that observes the latest thermocouple reading,
// enforces hardware and user-configurable over-temperature limits, detects
// stale or faulted sensor data, and latches an emergency state that forces
// the SSR and vent GPIOs low.
//
// # Overview
//
// The safety monitor is deliberately simple and deliberately independent
// of the firing engine: it has its own task, its own clock, and direct
// access to the SSR modulator's emergency override so that a stuck or
// crashed firing engine cannot prevent it from cutting power. Its emergency
// flag is latching — once set, it stays set until an operator explicitly
// clears it via [ipc.SubjectSafetyClear].
//
// # NATS IPC Endpoints
//
//   - safety.status - returns the latched emergency flag and last fault state
//   - safety.clear - clears the latched emergency flag only
//   - safety.maxtemp - sets the user max safe temperature, clamped to
//     [100, hardware_max_temp]; a value of zero or below is rejected
//
// # Events
//
// The monitor publishes (not request/reply) to event.emergencystop when the
// emergency flag is latched, and to event.tempfault whenever the
// temperature-fault flag changes. Clearing the emergency publishes nothing.
package safetymon

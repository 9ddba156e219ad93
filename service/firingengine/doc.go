// SPDX-License-Identifier: BSD-3-Clause

// Package firingengine implements the kiln control core's orchestrator:
// a 1 Hz task that drains operator commands, advances a firing profile
// segment by segment, derives a moving setpoint, drives the PID/SSR chain,
// records history, and enforces the kiln-rising and runaway guards.
//
// # Overview
//
// The firing engine owns the active profile copy, the per-segment timers,
// the PID and auto-tune instances, and the observable progress snapshot.
// It reads the latest thermocouple reading and the safety monitor's
// emergency flag once per tick; it never blocks waiting on either. Its
// command surface is a bounded channel: an enqueue waits at most the
// enqueue timeout for a free slot, the tick drains it without blocking,
// and commands enqueued by an external producer (a REST layer, a CLI, a
// test) are observed on the engine's next tick at the latest.
//
// # NATS IPC Endpoints
//
//   - firing.start / firing.stop / firing.pause / firing.resume / firing.skip
//   - firing.progress - snapshot of the current FiringProgress
//   - firing.settingsget / firing.settingsset
//   - autotune.start / autotune.stop
package firingengine

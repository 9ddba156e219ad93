// SPDX-License-Identifier: BSD-3-Clause

// Package telemetry provides OpenTelemetry integration for the kiln control
// services: span helpers, NATS trace-context propagation, and a provider
// that defaults to NoOp in production and can be switched to a stdout
// exporter for bench debugging of segment transitions and PID ticks.
//
// # Basic Setup
//
//	func main() {
//		telemetry.DefaultSetup()
//		logger := log.GetGlobalLogger()
//		logger.Info("firing engine starting")
//	}
//
// # Distributed Tracing with NATS
//
// Spans started in one service (e.g. the firing engine) are propagated to
// another (e.g. the IPC layer) via NATS message headers:
//
//	ctx := telemetry.GetCtxFromReq(req)
//	ctx, span := telemetry.StartSpan(ctx, "firingengine", "handle-start-command")
//	defer span.End()
//
// # Bench Debugging
//
// Switch to the stdout exporter to watch span output while developing a
// new profile or tuning a segment transition:
//
//	shutdown, err := telemetry.Setup(ctx, telemetry.WithStdout())
//	defer shutdown(ctx)
package telemetry

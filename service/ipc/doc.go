// SPDX-License-Identifier: BSD-3-Clause

// Package ipc provides an in-process NATS server for inter-process communication
// within the kiln controller core. This service acts as the central message bus
// for the sensor reader, safety monitor and firing engine services.
//
// The IPC service creates and manages a NATS server instance embedded within the
// kilnctl process, eliminating the need for an external NATS server. It provides
// JetStream capabilities for persistent messaging (settings, PID gains, firing
// history) across services.
//
// # Core Features
//
//   - Embedded NATS server with JetStream support
//   - In-process connection provider for other services
//   - Configurable server options and storage directories
//   - Graceful startup and shutdown handling
//
// # Usage
//
//	ipcService := ipc.New(
//		ipc.WithServiceName("ipc"),
//		ipc.WithStoreDir("/var/lib/kilnctl/ipc"),
//	)
//	err := ipcService.Run(ctx, nil)
//
// Other services obtain connection providers to communicate through the bus:
//
//	connProvider := ipcService.GetConnProvider()
//	conn, err := connProvider.InProcessConn()
//
// # Architecture
//
// The IPC service follows the standard kilnctl service pattern: it implements
// service.Service, runs until its context is canceled, and performs a lame-duck
// shutdown of the embedded server before returning.
package ipc

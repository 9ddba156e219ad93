// SPDX-License-Identifier: BSD-3-Clause

// Package ipc provides utilities and interfaces for inter-process communication
// within the kiln controller core. This package serves as a bridge between the
// sensor reader, safety monitor and firing engine services, offering
// abstractions and helpers that simplify service-to-service communication over
// the in-process NATS bus.
//
// # Core Components
//
//   - ConnProvider: interface for obtaining IPC connections
//   - Subject constants: command, query and event subjects shared by all
//     services so none of them constructs a subject string by hand
//
// # Connection Management
//
// The ConnProvider interface abstracts the creation of network connections
// for inter-process communication so services don't need to know the
// underlying transport details:
//
//	type ConnProvider interface {
//		InProcessConn() (net.Conn, error)
//	}
//
// # Integration with Services
//
//	func (s *MyService) Run(ctx context.Context, ipcConn nats.InProcessConnProvider) error {
//		conn, err := ipcConn.InProcessConn()
//		if err != nil {
//			return err
//		}
//		defer conn.Close()
//		// ...
//	}
package ipc

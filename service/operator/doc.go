// SPDX-License-Identifier: BSD-3-Clause

// Package operator provides the kiln control core's root supervisor. It
// wires the sensor reader, safety monitor, and firing engine services (plus
// the embedded NATS IPC bus they talk over) into an oversight supervision
// tree and runs them until the process is asked to stop.
//
// # Architecture
//
// The operator itself does no kiln control; it owns process lifecycle only.
// Each configured service.Service is supervised transiently: a crash
// restarts that one service without tearing down the others, since the
// services only share state through NATS requests and a handful of
// directly-injected hardware interfaces (the SSR modulator, the alarm/vent
// helper) rather than through the operator.
//
// Unlike a general-purpose BMC, the kiln core has no hardware-less default
// configuration: the sensor reader needs a SPI bus, the safety monitor and
// firing engine both need the shared SSR modulator, and the firing engine
// needs a safety-monitor reference for its in-process emergency trigger.
// cmd/kilnctl wires all of this before constructing the operator; an
// unconfigured service is simply omitted from the supervision tree.
//
// # Usage
//
//	op := operator.New(
//		operator.WithSensorReader(sensorreader.WithSource(spi)),
//		operator.WithSafetyMonitor(sm),
//		operator.WithFiringEngine(
//			firingengine.WithStore(store),
//			firingengine.WithModulator(modulator),
//			firingengine.WithSafetySource(sm),
//			firingengine.WithSafetyTrigger(sm),
//		),
//	)
//	err := op.Run(ctx, nil)
package operator
